package db

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/linguaflow/linguaflow/internal/types"
)

// ColType is a logical column type rendered into backend-appropriate DDL.
type ColType int

const (
	// ColSerial is an auto-assigned integer primary key.
	ColSerial ColType = iota
	ColText
	ColInt
	ColReal
	ColDate
	ColTimestamp
)

// typeSQL renders the logical type for one backend.
func (c ColType) typeSQL(b types.Backend) string {
	switch c {
	case ColSerial:
		if b == types.BackendClientServer {
			return "SERIAL"
		}
		return "INTEGER"
	case ColText:
		return "TEXT"
	case ColInt:
		return "INTEGER"
	case ColReal:
		return "REAL"
	case ColDate:
		return "DATE"
	case ColTimestamp:
		if b == types.BackendClientServer {
			return "TIMESTAMP"
		}
		return "DATETIME"
	default:
		return "TEXT"
	}
}

// Column describes one required column of a table.
type Column struct {
	Name       string
	Type       ColType
	NotNull    bool
	PrimaryKey bool
	Unique     bool
	Default    string // literal DDL default, e.g. "0" or "CURRENT_TIMESTAMP"
}

// Table describes one required table. UniqueKey doubles as the
// conflict-column metadata consumed by the dialect translator, so the schema
// stays the single source of truth for both DDL and upsert rewrites.
type Table struct {
	Name      string
	Columns   []Column
	UniqueKey []string
}

// SchemaSpec is the full set of tables the application requires. Loaded once
// at process start; reconciliation only ever adds, never removes.
type SchemaSpec struct {
	Tables []Table
}

// ConflictKeys returns the table-to-unique-columns metadata used by the
// dialect translator for conflict-handling insert rewrites.
func (s *SchemaSpec) ConflictKeys() map[string][]string {
	keys := make(map[string][]string, len(s.Tables))
	for _, t := range s.Tables {
		if len(t.UniqueKey) > 0 {
			keys[t.Name] = t.UniqueKey
		}
	}
	return keys
}

// createSQL renders CREATE TABLE IF NOT EXISTS for one backend.
func (t Table) createSQL(b types.Backend) string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		defs = append(defs, c.columnDef(b))
	}
	if len(t.UniqueKey) > 0 {
		defs = append(defs, fmt.Sprintf("UNIQUE (%s)", strings.Join(t.UniqueKey, ", ")))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.Name, strings.Join(defs, ", "))
}

func (c Column) columnDef(b types.Backend) string {
	if c.PrimaryKey && c.Type == ColSerial {
		if b == types.BackendClientServer {
			return c.Name + " SERIAL PRIMARY KEY"
		}
		return c.Name + " INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	def := c.Name + " " + c.Type.typeSQL(b)
	if c.PrimaryKey {
		def += " PRIMARY KEY"
	}
	if c.Unique {
		def += " UNIQUE"
	}
	if c.NotNull {
		def += " NOT NULL"
	}
	if c.Default != "" {
		def += " DEFAULT " + c.Default
	}
	return def
}

// addColumnSQL renders the repair statement for one missing column. Added
// columns never carry NOT NULL: existing rows would make the ALTER fail on
// both backends.
func (t Table) addColumnSQL(c Column, b types.Backend) string {
	def := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", t.Name, c.Name, c.Type.typeSQL(b))
	if c.Default != "" {
		def += " DEFAULT " + c.Default
	}
	return def
}

// Reconcile idempotently ensures every declared table and column exists.
// Each statement runs in its own implicit transaction so one failure cannot
// poison the rest. A column-add that fails because the column already exists
// counts as success. The returned error aggregates real failures; the
// connection factory logs and swallows it, because application availability
// is prioritized over strict schema enforcement.
func (s *SchemaSpec) Reconcile(conn *sqlx.DB, backend types.Backend, log *slog.Logger) error {
	var errs []error
	for _, tbl := range s.Tables {
		if _, err := conn.Exec(tbl.createSQL(backend)); err != nil {
			log.Warn("schema reconcile: create table failed",
				"table", tbl.Name, "backend", backend.String(), "error", err)
			errs = append(errs, fmt.Errorf("create table %s: %w", tbl.Name, err))
			continue
		}
		for _, col := range tbl.Columns {
			if col.PrimaryKey {
				continue
			}
			if _, err := conn.Exec(tbl.addColumnSQL(col, backend)); err != nil && !isDuplicateColumn(err) {
				log.Warn("schema reconcile: add column failed",
					"table", tbl.Name, "column", col.Name, "error", err)
				errs = append(errs, fmt.Errorf("add column %s.%s: %w", tbl.Name, col.Name, err))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", types.ErrSchemaReconciliation, errors.Join(errs...))
	}
	return nil
}

// isDuplicateColumn classifies an ALTER TABLE ADD COLUMN failure caused by
// the column already existing. sqlite reports "duplicate column name";
// the client-server store reports SQLSTATE 42701 ("already exists").
func isDuplicateColumn(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "42701" {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}
