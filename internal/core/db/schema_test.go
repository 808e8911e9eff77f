package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq"

	"github.com/linguaflow/linguaflow/internal/types"
)

func TestSchemaSpec_ReconcileIdempotent(t *testing.T) {
	f := newMemoryFactory(t)
	h, err := f.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v, want nil", err)
	}
	defer h.Close()

	// Acquire already reconciled once; running both DDL passes again inside
	// the same connection must be a clean no-op.
	if err := testSchema().Reconcile(h.conn, types.BackendEmbedded, discardLogger()); err != nil {
		t.Fatalf("second Reconcile() error = %v, want nil", err)
	}

	rows, err := h.Execute("SELECT name FROM sqlite_master WHERE type='table'")
	if err != nil {
		t.Fatalf("Execute(catalog) error = %v, want nil", err)
	}
	found := map[string]bool{}
	for _, row := range rows.FetchAll() {
		found[row.String("name")] = true
	}
	for _, table := range []string{"study_list", "user_progress"} {
		if !found[table] {
			t.Errorf("table %q missing after reconcile, have %v", table, found)
		}
	}
}

func TestSchemaSpec_ReconcileAddsMissingColumn(t *testing.T) {
	f := newMemoryFactory(t)
	h, err := f.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v, want nil", err)
	}
	defer h.Close()

	widened := testSchema()
	widened.Tables[0].Columns = append(widened.Tables[0].Columns,
		Column{Name: "note", Type: ColText})
	if err := widened.Reconcile(h.conn, types.BackendEmbedded, discardLogger()); err != nil {
		t.Fatalf("Reconcile(widened) error = %v, want nil", err)
	}

	if _, err := h.Execute("INSERT INTO study_list (user_id, word, note) VALUES (?, ?, ?)",
		int64(1), "hola", "greeting"); err != nil {
		t.Fatalf("insert into added column error = %v, want nil", err)
	}
}

func TestSchemaSpec_ConflictKeys(t *testing.T) {
	keys := testSchema().ConflictKeys()
	if got := keys["study_list"]; len(got) != 2 || got[0] != "user_id" || got[1] != "word" {
		t.Errorf("ConflictKeys()[study_list] = %v, want [user_id word]", got)
	}
	if got := keys["user_progress"]; len(got) != 1 || got[0] != "user_id" {
		t.Errorf("ConflictKeys()[user_progress] = %v, want [user_id]", got)
	}
}

func TestTable_CreateSQL(t *testing.T) {
	tbl := testSchema().Tables[0]

	embedded := tbl.createSQL(types.BackendEmbedded)
	if !strings.Contains(embedded, "CREATE TABLE IF NOT EXISTS study_list") {
		t.Errorf("embedded DDL = %q, want CREATE TABLE IF NOT EXISTS", embedded)
	}
	if !strings.Contains(embedded, "INTEGER PRIMARY KEY AUTOINCREMENT") {
		t.Errorf("embedded DDL = %q, want AUTOINCREMENT id column", embedded)
	}
	if !strings.Contains(embedded, "UNIQUE (user_id, word)") {
		t.Errorf("embedded DDL = %q, want unique constraint", embedded)
	}

	cs := tbl.createSQL(types.BackendClientServer)
	if !strings.Contains(cs, "SERIAL PRIMARY KEY") {
		t.Errorf("client-server DDL = %q, want SERIAL PRIMARY KEY", cs)
	}
	if strings.Contains(cs, "AUTOINCREMENT") {
		t.Errorf("client-server DDL = %q, must not contain AUTOINCREMENT", cs)
	}
}

func TestTable_AddColumnSQLDropsNotNull(t *testing.T) {
	tbl := testSchema().Tables[0]
	got := tbl.addColumnSQL(Column{Name: "word", Type: ColText, NotNull: true}, types.BackendEmbedded)
	if strings.Contains(got, "NOT NULL") {
		t.Errorf("addColumnSQL() = %q, must not carry NOT NULL", got)
	}
}

func TestIsDuplicateColumn(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"embedded duplicate", errors.New("duplicate column name: note"), true},
		{"client-server duplicate code", &pq.Error{Code: "42701"}, true},
		{"client-server already exists", errors.New(`column "note" of relation "study_list" already exists`), true},
		{"unrelated failure", errors.New("disk I/O error"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDuplicateColumn(tt.err); got != tt.want {
				t.Errorf("isDuplicateColumn(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
