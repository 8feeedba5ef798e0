package jobs

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/opst/gdsremote/pkg/procedure"
)

// ErrMalformedResult means a result document is not json lines of objects.
var ErrMalformedResult = errors.New("malformed result")

// ReadJSONLines reads json lines, each line being an object, into a ResultTable.
//
// Columns are keys in the order they first appear. Blank lines are skipped.
// Integral numbers are decoded as int64 and others as float64.
func ReadJSONLines(r io.Reader) (procedure.ResultTable, error) {
	table := procedure.ResultTable{Columns: []string{}, Rows: []procedure.Record{}}
	seen := map[string]struct{}{}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	lineno := 0
	for sc.Scan() {
		lineno += 1
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		keys, rec, err := decodeObject(line)
		if err != nil {
			return procedure.ResultTable{}, fmt.Errorf("%w: line %d: %w", ErrMalformedResult, lineno, err)
		}
		for _, k := range keys {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				table.Columns = append(table.Columns, k)
			}
		}
		table.Rows = append(table.Rows, rec)
	}
	if err := sc.Err(); err != nil {
		return procedure.ResultTable{}, err
	}
	return table, nil
}

func decodeObject(line []byte) ([]string, procedure.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("not an object: %s", line)
	}

	keys := []string{}
	rec := procedure.Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token: %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		if _, dup := rec[key]; !dup {
			keys = append(keys, key)
		}
		rec[key] = normalize(v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	if dec.More() {
		return nil, nil, fmt.Errorf("trailing data: %s", line)
	}
	return keys, rec, nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalize(x[k])
		}
		return x
	default:
		return v
	}
}
