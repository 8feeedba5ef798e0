package procedure_test

import (
	"context"
	"errors"
	"testing"

	"github.com/opst/gdsremote/pkg/procedure"
)

func TestQuery(t *testing.T) {
	for name, testcase := range map[string]struct {
		endpoint string
		params   *procedure.CallParameters
		yields   []string
		expected string
	}{
		"with parameters and yields": {
			endpoint: "gds.graph.drop",
			params:   procedure.NewCallParameters(procedure.P("graph_name", "g")),
			yields:   []string{"graphName", "nodeCount"},
			expected: "CALL gds.graph.drop($graph_name) YIELD graphName, nodeCount",
		},
		"without yields": {
			endpoint: "gds.arrow.write.v2",
			params: procedure.NewCallParameters(
				procedure.P("graphName", "g"),
				procedure.P("jobId", "j"),
			),
			expected: "CALL gds.arrow.write.v2($graphName, $jobId)",
		},
		"without parameters": {
			endpoint: "gds.session.dbms.protocol.version",
			yields:   []string{"version"},
			expected: "CALL gds.session.dbms.protocol.version() YIELD version",
		},
	} {
		t.Run(name, func(t *testing.T) {
			actual := procedure.Query(testcase.endpoint, testcase.params, testcase.yields)
			if actual != testcase.expected {
				t.Errorf("actual=%q, expected=%q", actual, testcase.expected)
			}
		})
	}
}

type recordingRunner struct {
	endpoints []string
	yields    [][]string
}

func (r *recordingRunner) CallProcedure(_ context.Context, endpoint string, _ *procedure.CallParameters, yields []string) (procedure.ResultTable, error) {
	r.endpoints = append(r.endpoints, endpoint)
	r.yields = append(r.yields, yields)
	return procedure.ResultTable{}, nil
}

func TestCallBuilder(t *testing.T) {
	runner := &recordingRunner{}
	gds := procedure.NewCallBuilder(runner, "gds")

	graph := gds.Sub("graph")
	drop := graph.Sub("drop")
	project := graph.Sub("project.cypher")

	if name := drop.Name(); name != "gds.graph.drop" {
		t.Errorf("drop: %q", name)
	}
	if name := project.Name(); name != "gds.graph.project.cypher" {
		t.Errorf("project: %q", name)
	}
	if name := graph.Name(); name != "gds.graph" {
		t.Errorf("Sub should not change receiver: %q", name)
	}

	if _, err := drop.Call(context.Background(), nil, "graphName"); err != nil {
		t.Fatal(err)
	}
	if len(runner.endpoints) != 1 || runner.endpoints[0] != "gds.graph.drop" {
		t.Errorf("called: %v", runner.endpoints)
	}
	if len(runner.yields[0]) != 1 || runner.yields[0][0] != "graphName" {
		t.Errorf("yields: %v", runner.yields)
	}
}

func TestResultTable(t *testing.T) {
	t.Run("Single returns the only record", func(t *testing.T) {
		table := procedure.ResultTable{
			Columns: []string{"status"},
			Rows:    []procedure.Record{{"status": "COMPLETED"}},
		}
		rec, err := table.Single()
		if err != nil {
			t.Fatal(err)
		}
		if s, ok := rec.String("status"); !ok || s != "COMPLETED" {
			t.Errorf("status: (%q, %v)", s, ok)
		}
	})

	for name, rows := range map[string][]procedure.Record{
		"empty":    {},
		"multiple": {{"status": "A"}, {"status": "B"}},
	} {
		t.Run("Single fails when "+name, func(t *testing.T) {
			table := procedure.ResultTable{Columns: []string{"status"}, Rows: rows}
			if _, err := table.Single(); !errors.Is(err, procedure.ErrNotSingle) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	t.Run("Column", func(t *testing.T) {
		table := procedure.ResultTable{
			Columns: []string{"version"},
			Rows:    []procedure.Record{{"version": "v2"}, {"version": "v1"}},
		}
		col, err := table.Column("version")
		if err != nil {
			t.Fatal(err)
		}
		if len(col) != 2 || col[0] != "v2" || col[1] != "v1" {
			t.Errorf("column: %v", col)
		}
		if _, err := table.Column("nope"); !errors.Is(err, procedure.ErrNoSuchColumn) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
