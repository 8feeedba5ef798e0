package jobs_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/opst/gdsremote/internal/testutils/try"
	"github.com/opst/gdsremote/pkg/jobs"
)

func TestReadJSONLines(t *testing.T) {
	t.Run("values are normalized", func(t *testing.T) {
		table := try.To(jobs.ReadJSONLines(strings.NewReader(
			`{"i": 3, "f": 2.5, "s": "x", "l": [1, 2.5], "n": null}` + "\n\n",
		))).OrFatal(t)

		if table.Len() != 1 {
			t.Fatalf("rows: %v", table.Rows)
		}
		row := table.Rows[0]
		if row["i"] != int64(3) || row["f"] != 2.5 || row["s"] != "x" || row["n"] != nil {
			t.Errorf("row: %v", row)
		}
		l := row["l"].([]any)
		if l[0] != int64(1) || l[1] != 2.5 {
			t.Errorf("list: %v", l)
		}
		expected := []string{"i", "f", "s", "l", "n"}
		for i := range expected {
			if table.Columns[i] != expected[i] {
				t.Errorf("columns: %v", table.Columns)
			}
		}
	})

	t.Run("empty document", func(t *testing.T) {
		table := try.To(jobs.ReadJSONLines(strings.NewReader(""))).OrFatal(t)
		if table.Len() != 0 || len(table.Columns) != 0 {
			t.Errorf("table: %v", table)
		}
	})

	for name, doc := range map[string]string{
		"array line":    `[1, 2]`,
		"trailing data": `{"a": 1} {"b": 2}`,
		"broken":        `{"a": `,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := jobs.ReadJSONLines(strings.NewReader(doc)); !errors.Is(err, jobs.ErrMalformedResult) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
