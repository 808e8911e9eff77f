package db

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/linguaflow/linguaflow/internal/types"
)

// Handle is the single object application code talks to. It owns one raw
// backend connection for the duration of one logical unit of work (one
// request) and is never shared across concurrent callers. The first Execute
// begins the unit-of-work transaction; Commit or Rollback end it; Close
// releases the raw connection. After Close every method fails with
// types.ErrClosedHandle.
type Handle struct {
	backend    types.Backend
	conn       *sqlx.DB
	tx         *sqlx.Tx
	translator *Translator
	log        *slog.Logger
	closed     bool
}

// Backend returns the backend this handle is connected to.
func (h *Handle) Backend() types.Backend { return h.backend }

// Execute translates the backend-neutral query, runs it inside the handle's
// transaction, and returns a normalized result set. Statements the target
// backend has no equivalent for (pragmas on the client-server store) skip
// the driver entirely and yield an empty result.
func (h *Handle) Execute(query string, args ...any) (*Rows, error) {
	if h.closed {
		return nil, fmt.Errorf("%w: execute", types.ErrClosedHandle)
	}

	tq, err := h.translator.Translate(query, args)
	if err != nil {
		return nil, err
	}
	if tq.NoOp {
		return &Rows{}, nil
	}

	if h.tx == nil {
		tx, err := h.conn.Beginx()
		if err != nil {
			return nil, fmt.Errorf("%w: begin transaction: %w", types.ErrConnection, err)
		}
		h.tx = tx
	}

	if returnsRows(tq.SQL) {
		native, err := h.tx.Queryx(tq.SQL, tq.Args...)
		if err != nil {
			h.log.Error("query failed", "backend", h.backend.String(), "sql", tq.SQL, "error", err)
			return nil, fmt.Errorf("%w: %w", types.ErrQueryExecution, err)
		}
		rows, err := normalizeRows(native)
		if err != nil {
			h.log.Error("result scan failed", "backend", h.backend.String(), "sql", tq.SQL, "error", err)
			return nil, fmt.Errorf("%w: %w", types.ErrQueryExecution, err)
		}
		return rows, nil
	}

	res, err := h.tx.Exec(tq.SQL, tq.Args...)
	if err != nil {
		h.log.Error("statement failed", "backend", h.backend.String(), "sql", tq.SQL, "error", err)
		return nil, fmt.Errorf("%w: %w", types.ErrQueryExecution, err)
	}
	affected, _ := res.RowsAffected()
	return &Rows{affected: affected}, nil
}

// Commit commits the open transaction. A handle with no statements executed
// commits trivially.
func (h *Handle) Commit() error {
	if h.closed {
		return fmt.Errorf("%w: commit", types.ErrClosedHandle)
	}
	if h.tx == nil {
		return nil
	}
	err := h.tx.Commit()
	h.tx = nil
	if err != nil {
		return fmt.Errorf("%w: commit: %w", types.ErrQueryExecution, err)
	}
	return nil
}

// Rollback aborts the open transaction, if any.
func (h *Handle) Rollback() error {
	if h.closed {
		return fmt.Errorf("%w: rollback", types.ErrClosedHandle)
	}
	if h.tx == nil {
		return nil
	}
	err := h.tx.Rollback()
	h.tx = nil
	if err != nil {
		return fmt.Errorf("%w: rollback: %w", types.ErrQueryExecution, err)
	}
	return nil
}

// Close releases the raw connection. An uncommitted transaction is rolled
// back first. The handle is unusable afterwards.
func (h *Handle) Close() error {
	if h.closed {
		return fmt.Errorf("%w: close", types.ErrClosedHandle)
	}
	if h.tx != nil {
		if err := h.tx.Rollback(); err != nil {
			h.log.Warn("rollback during close failed", "error", err)
		}
		h.tx = nil
	}
	h.closed = true
	return h.conn.Close()
}

var returningRe = regexp.MustCompile(`(?i)\bRETURNING\b`)

// returnsRows classifies a statement as row-producing. INSERT/UPDATE/DELETE
// with a RETURNING clause count as queries on both backends.
func returnsRows(sql string) bool {
	first := strings.ToLower(firstKeyword(sql))
	switch first {
	case "select", "with", "values", "pragma", "explain":
		return true
	}
	return returningRe.MatchString(sql)
}

func firstKeyword(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
