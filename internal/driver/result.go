package driver

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// Row is one translated result row keyed by column name
type Row map[string]any

// String returns the column as a string, or "" when NULL
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the column as an int64, or 0 when NULL or not numeric
func (r Row) Int(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// Float returns the column as a float64, or 0 when NULL or not numeric
func (r Row) Float(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

// Bytes returns the column as raw bytes, or nil when NULL
func (r Row) Bytes(col string) []byte {
	switch v := r[col].(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return nil
	}
}

// Valid reports whether the column is present and not NULL
func (r Row) Valid(col string) bool {
	v, ok := r[col]
	return ok && v != nil
}

// Result is the engine-independent shape of a statement's outcome.
// Only the fields relevant to the statement's OpKind are populated.
type Result struct {
	Rows       []Row
	Affected   int64
	InsertedID int64
	Count      int64
}

// Strings flattens one column of the row set into a slice
func (r *Result) Strings(col string) []string {
	out := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, row.String(col))
	}
	return out
}

// normalizer converts a driver-native value into a plain Go value
type normalizer func(v any, dbType string) any

// translateRows drains rows into the engine-independent shape
func translateRows(rows *sql.Rows, normalize normalizer) ([]Row, error) {
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			row[col.Name()] = normalize(values[i], col.DatabaseTypeName())
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// translateCount pulls the single scalar out of a count query
func translateCount(rows []Row) int64 {
	if len(rows) == 0 {
		return 0
	}
	for _, v := range rows[0] {
		return Row{"n": v}.Int("n")
	}
	return 0
}

// translateExec maps a mutation outcome. Engines without LastInsertId
// support simply leave InsertedID at zero.
func translateExec(res sql.Result, kind OpKind) *Result {
	out := &Result{}
	if n, err := res.RowsAffected(); err == nil {
		out.Affected = n
	}
	if kind == OpInsert {
		if id, err := res.LastInsertId(); err == nil {
			out.InsertedID = id
		}
	}
	return out
}
