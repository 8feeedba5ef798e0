package procedure

import (
	"errors"
	"fmt"
)

var ErrNotSingle = errors.New("result is not a single record")
var ErrNoSuchColumn = errors.New("no such column")

// Record is a row of ResultTable.
type Record map[string]any

// String returns the value of key when it is a string.
func (r Record) String(key string) (string, bool) {
	s, ok := r[key].(string)
	return s, ok
}

// ResultTable is a table of records returned from remote calls.
type ResultTable struct {
	// Columns in the order the server returned.
	Columns []string

	Rows []Record
}

func (t ResultTable) Len() int {
	return len(t.Rows)
}

// Single returns the only record of the table.
//
// It returns ErrNotSingle when the table has zero or more than one records.
func (t ResultTable) Single() (Record, error) {
	if len(t.Rows) != 1 {
		return nil, fmt.Errorf("%w: it has %d records", ErrNotSingle, len(t.Rows))
	}
	return t.Rows[0], nil
}

// Column returns values in the column name, in row order.
func (t ResultTable) Column(name string) ([]any, error) {
	found := false
	for _, c := range t.Columns {
		if c == name {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s (columns: %v)", ErrNoSuchColumn, name, t.Columns)
	}

	ret := make([]any, 0, len(t.Rows))
	for _, r := range t.Rows {
		ret = append(ret, r[name])
	}
	return ret, nil
}
