package db

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Row is an immutable, ordered column-name-to-value mapping. Both backends
// produce the same Row shape for the same logical query: never a positional
// tuple, never a driver-native row object.
type Row struct {
	cols []string
	vals map[string]any
}

// Columns returns the column names in result order.
func (r Row) Columns() []string {
	out := make([]string, len(r.cols))
	copy(out, r.cols)
	return out
}

// Get returns the value for the named column and whether the column exists.
func (r Row) Get(name string) (any, bool) {
	v, ok := r.vals[name]
	return v, ok
}

// String returns the named column coerced to a string. Missing columns and
// NULLs yield the empty string.
func (r Row) String(name string) string {
	switch v := r.vals[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Int64 returns the named column coerced to an int64, or 0.
func (r Row) Int64(name string) int64 {
	switch v := r.vals[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Float64 returns the named column coerced to a float64, or 0.
func (r Row) Float64(name string) float64 {
	switch v := r.vals[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// Bool returns the named column as a boolean. Integer columns are used for
// flags on both backends, so non-zero integers count as true.
func (r Row) Bool(name string) bool {
	switch v := r.vals[name].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return false
	}
}

// Time returns the named column as a time.Time when the driver produced one,
// or parses the common timestamp encodings the embedded store emits.
func (r Row) Time(name string) (time.Time, bool) {
	switch v := r.vals[name].(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// Rows is a fully materialized result set with cursor-style access. Results
// are read eagerly at execution time so the native cursor is released before
// the caller sees the data; a Rows never holds driver resources.
type Rows struct {
	rows     []Row
	next     int
	affected int64
}

// FetchOne returns the next row. The second return value is false when the
// result set is exhausted; an empty result is not an error.
func (r *Rows) FetchOne() (Row, bool) {
	if r == nil || r.next >= len(r.rows) {
		return Row{}, false
	}
	row := r.rows[r.next]
	r.next++
	return row, true
}

// FetchAll returns all remaining rows. Empty results yield an empty slice.
func (r *Rows) FetchAll() []Row {
	if r == nil || r.next >= len(r.rows) {
		return []Row{}
	}
	out := make([]Row, len(r.rows)-r.next)
	copy(out, r.rows[r.next:])
	r.next = len(r.rows)
	return out
}

// Len returns the total number of rows in the result set.
func (r *Rows) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rows)
}

// RowsAffected reports the row count of a non-returning statement (INSERT,
// UPDATE, DELETE). Zero for queries and no-op statements.
func (r *Rows) RowsAffected() int64 {
	if r == nil {
		return 0
	}
	return r.affected
}

// normalizeRows drains a native cursor into uniform Rows. Byte slices are
// converted to strings: the client-server driver returns []byte for several
// text-ish types while the embedded driver returns string, and callers must
// see one shape.
func normalizeRows(native *sqlx.Rows) (*Rows, error) {
	defer native.Close()

	cols, err := native.Columns()
	if err != nil {
		return nil, err
	}

	result := &Rows{}
	for native.Next() {
		vals := make(map[string]any, len(cols))
		if err := native.MapScan(vals); err != nil {
			return nil, err
		}
		for k, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[k] = string(b)
			}
		}
		result.rows = append(result.rows, Row{cols: cols, vals: vals})
	}
	if err := native.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
