package db

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/linguaflow/linguaflow/internal/types"
)

// TranslatedQuery is a backend-neutral query rewritten for one target
// backend, paired with its ordered parameter list.
type TranslatedQuery struct {
	SQL  string
	Args []any

	// NoOp marks a statement with no equivalent on the target backend
	// (session pragmas on the client-server store). A no-op executes
	// nothing and yields an empty row set.
	NoOp bool
}

// Translator rewrites the neutral query convention used by application code
// into the syntax of a single backend. Application queries use the embedded
// store's dialect as the neutral form: `?` positional placeholders,
// `INSERT OR IGNORE` / `INSERT OR REPLACE` conflict handling, `PRAGMA`
// diagnostics, and `sqlite_master` catalog lookups.
//
// All client-server rewrites are driven by the rule table below plus
// per-table conflict-column metadata. The metadata is required because the
// client-server store expresses conflict handling as ON CONFLICT over an
// explicit unique-constraint column list; a purely syntactic rewrite cannot
// recover those columns from the statement text.
type Translator struct {
	backend      types.Backend
	conflictKeys map[string][]string
}

// NewTranslator returns a Translator for the given backend. conflictKeys
// maps table name to the unique-constraint columns used to translate
// conflict-handling inserts; tables absent from the map cannot be the target
// of INSERT OR IGNORE / INSERT OR REPLACE on the client-server backend.
func NewTranslator(backend types.Backend, conflictKeys map[string][]string) *Translator {
	return &Translator{backend: backend, conflictKeys: conflictKeys}
}

// Backend returns the backend this translator targets.
func (t *Translator) Backend() types.Backend { return t.backend }

// rewriteRule is one entry in the client-server rewrite table. Rules are
// tried in order; the first whose pattern matches is applied and no further
// rules run. Keeping the table enumerable makes coverage testable: every
// embedded-only construct either has a rule here or is rejected by the
// guards in checkResidue.
type rewriteRule struct {
	name    string
	pattern *regexp.Regexp
	apply   func(t *Translator, query string, groups []string) (sql string, noop bool, err error)
}

var (
	insertOrIgnoreRe  = regexp.MustCompile(`(?is)^\s*INSERT\s+OR\s+IGNORE\s+INTO\s+([A-Za-z_][A-Za-z0-9_]*)\s+(.+?)\s*;?\s*$`)
	insertOrReplaceRe = regexp.MustCompile(`(?is)^\s*INSERT\s+OR\s+REPLACE\s+INTO\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(([^)]+)\)\s*(.+?)\s*;?\s*$`)
	pragmaRe          = regexp.MustCompile(`(?is)^\s*PRAGMA\b`)
	listTablesRe      = regexp.MustCompile(`(?is)^\s*SELECT\s+name\s+FROM\s+sqlite_master\s+WHERE\s+type\s*=\s*'table'\s*;?\s*$`)

	insertOrOtherRe = regexp.MustCompile(`(?is)^\s*INSERT\s+OR\s+(\w+)`)
	autoincrementRe = regexp.MustCompile(`(?i)\bAUTOINCREMENT\b`)
	catalogTokenRe  = regexp.MustCompile(`(?i)\bsqlite_master\b`)
)

// clientServerRules is the single source of truth for dialect rewrites
// targeting the client-server backend.
var clientServerRules = []rewriteRule{
	{
		name:    "insert-or-ignore",
		pattern: insertOrIgnoreRe,
		apply: func(t *Translator, query string, g []string) (string, bool, error) {
			table, rest := g[1], g[2]
			keys, ok := t.conflictKeys[table]
			if !ok {
				return "", false, &types.TranslationError{
					Original: query,
					Reason:   fmt.Sprintf("no conflict-column metadata for table %q", table),
				}
			}
			sql := fmt.Sprintf("INSERT INTO %s %s ON CONFLICT (%s) DO NOTHING",
				table, rest, strings.Join(keys, ", "))
			return sql, false, nil
		},
	},
	{
		name:    "insert-or-replace",
		pattern: insertOrReplaceRe,
		apply: func(t *Translator, query string, g []string) (string, bool, error) {
			table, columnList, rest := g[1], g[2], g[3]
			keys, ok := t.conflictKeys[table]
			if !ok {
				return "", false, &types.TranslationError{
					Original: query,
					Reason:   fmt.Sprintf("no conflict-column metadata for table %q", table),
				}
			}
			columns := splitColumns(columnList)
			if len(columns) == 0 {
				return "", false, &types.TranslationError{
					Original: query,
					Reason:   "could not parse column list of INSERT OR REPLACE",
				}
			}

			conflict := make(map[string]bool, len(keys))
			for _, k := range keys {
				conflict[k] = true
			}
			var updates []string
			for _, c := range columns {
				if !conflict[c] {
					updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
				}
			}

			// Replace-on-conflict maps to DO UPDATE over every non-key
			// column; degrading to a plain INSERT would lose the replace
			// semantics entirely.
			action := "DO NOTHING"
			if len(updates) > 0 {
				action = "DO UPDATE SET " + strings.Join(updates, ", ")
			}
			sql := fmt.Sprintf("INSERT INTO %s (%s) %s ON CONFLICT (%s) %s",
				table, strings.Join(columns, ", "), rest, strings.Join(keys, ", "), action)
			return sql, false, nil
		},
	},
	{
		name:    "pragma-noop",
		pattern: pragmaRe,
		apply: func(t *Translator, query string, g []string) (string, bool, error) {
			// The client-server store has no session pragmas; the
			// statement becomes inert and yields an empty row set.
			return "", true, nil
		},
	},
	{
		name:    "list-tables-catalog",
		pattern: listTablesRe,
		apply: func(t *Translator, query string, g []string) (string, bool, error) {
			// Alias table_name back to `name` so call sites see the same
			// result column on both backends. The type='table' filter in the
			// neutral form excludes views, so the rewrite must too.
			return "SELECT table_name AS name FROM information_schema.tables WHERE table_schema = 'public' AND table_type = 'BASE TABLE'", false, nil
		},
	},
}

// Translate rewrites query for the translator's backend and validates that
// the placeholder count matches the parameter list. The embedded backend is
// the neutral dialect, so only placeholder validation applies there.
func (t *Translator) Translate(query string, args []any) (TranslatedQuery, error) {
	sql := query

	if t.backend == types.BackendClientServer {
		for _, rule := range clientServerRules {
			groups := rule.pattern.FindStringSubmatch(sql)
			if groups == nil {
				continue
			}
			rewritten, noop, err := rule.apply(t, query, groups)
			if err != nil {
				return TranslatedQuery{}, err
			}
			if noop {
				return TranslatedQuery{NoOp: true}, nil
			}
			sql = rewritten
			break
		}
		if err := t.checkResidue(query, sql); err != nil {
			return TranslatedQuery{}, err
		}
	}

	converted, count := convertPlaceholders(sql, t.backend == types.BackendClientServer)
	if count != len(args) {
		return TranslatedQuery{}, &types.TranslationError{
			Original:  query,
			Attempted: converted,
			Reason:    fmt.Sprintf("query has %d placeholders but %d parameters", count, len(args)),
		}
	}

	return TranslatedQuery{SQL: converted, Args: args}, nil
}

// checkResidue rejects embedded-only constructs that survived every rewrite
// rule. Silently passing them to the client-server store would fail there
// with an opaque syntax error instead of a translation diagnostic.
func (t *Translator) checkResidue(original, rewritten string) error {
	if g := insertOrOtherRe.FindStringSubmatch(rewritten); g != nil {
		return &types.TranslationError{
			Original:  original,
			Attempted: rewritten,
			Reason:    fmt.Sprintf("INSERT OR %s has no client-server rewrite rule", strings.ToUpper(g[1])),
		}
	}
	if catalogTokenRe.MatchString(rewritten) {
		return &types.TranslationError{
			Original:  original,
			Attempted: rewritten,
			Reason:    "unsupported sqlite_master catalog query form",
		}
	}
	if autoincrementRe.MatchString(rewritten) {
		return &types.TranslationError{
			Original:  original,
			Attempted: rewritten,
			Reason:    "AUTOINCREMENT has no client-server equivalent; use schema DDL rendering",
		}
	}
	return nil
}

// convertPlaceholders rewrites neutral `?` placeholders to `$1..$n` when
// positional is true, and counts them either way. Placeholders inside
// single-quoted literals and double-quoted identifiers are left untouched.
// sqlx.Rebind does the same conversion but replaces every byte `?` blindly;
// quote tracking keeps literal question marks in stored text intact.
func convertPlaceholders(query string, positional bool) (string, int) {
	var (
		b        strings.Builder
		count    int
		inSingle bool
		inDouble bool
	)
	b.Grow(len(query) + 8)

	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			b.WriteByte(c)
		case c == '"' && !inSingle:
			inDouble = !inDouble
			b.WriteByte(c)
		case c == '?' && !inSingle && !inDouble:
			count++
			if positional {
				fmt.Fprintf(&b, "$%d", count)
			} else {
				b.WriteByte(c)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), count
}

// splitColumns parses the comma-separated column list of an INSERT
// statement. Returns nil if any element is not a plain identifier.
func splitColumns(list string) []string {
	parts := strings.Split(list, ",")
	columns := make([]string, 0, len(parts))
	for _, p := range parts {
		c := strings.TrimSpace(p)
		if !identifierRe.MatchString(c) {
			return nil
		}
		columns = append(columns, c)
	}
	return columns
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
