package procedure_test

import (
	"errors"
	"testing"

	"github.com/opst/gdsremote/pkg/procedure"
)

func TestCallParameters_PlaceholderString(t *testing.T) {
	type when struct {
		params *procedure.CallParameters
	}
	type then struct {
		placeholder string
		keys        []string
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			actual := when.params.PlaceholderString()
			if actual != then.placeholder {
				t.Errorf("placeholder: actual=%q, expected=%q", actual, then.placeholder)
			}

			keys := when.params.Keys()
			if len(keys) != len(then.keys) {
				t.Fatalf("keys: actual=%v, expected=%v", keys, then.keys)
			}
			for i := range keys {
				if keys[i] != then.keys[i] {
					t.Errorf("keys: actual=%v, expected=%v", keys, then.keys)
				}
			}
		}
	}

	t.Run("it keeps insertion order", theory(
		when{
			params: procedure.NewCallParameters(
				procedure.P("b", 2),
				procedure.P("a", 1),
			),
		},
		then{
			placeholder: "$b, $a",
			keys:        []string{"b", "a"},
		},
	))

	t.Run("it keeps the first position for overwritten names", theory(
		when{
			params: procedure.NewCallParameters(
				procedure.P("graphName", "g"),
				procedure.P("jobId", "j"),
				procedure.P("graphName", "h"),
			),
		},
		then{
			placeholder: "$graphName, $jobId",
			keys:        []string{"graphName", "jobId"},
		},
	))

	t.Run("empty parameters render nothing", theory(
		when{params: procedure.NewCallParameters()},
		then{placeholder: "", keys: []string{}},
	))

	t.Run("nil parameters render nothing", theory(
		when{params: nil},
		then{placeholder: "", keys: []string{}},
	))
}

func TestCallParameters_Set(t *testing.T) {
	params := procedure.NewCallParameters(procedure.P("a", 1))
	params.Set("b", 2)
	params.Set("a", 3)

	if v, ok := params.Get("a"); !ok || v != 3 {
		t.Errorf("a: actual=(%v, %v), expected=(3, true)", v, ok)
	}
	if !params.Has("b") {
		t.Error("b should exist")
	}
	if params.Has("c") {
		t.Error("c should not exist")
	}

	m := params.ToMap()
	if len(m) != 2 || m["a"] != 3 || m["b"] != 2 {
		t.Errorf("ToMap: %v", m)
	}
}

func TestCallParameters_JobId(t *testing.T) {
	t.Run("it reads jobId in config", func(t *testing.T) {
		params := procedure.NewCallParameters(
			procedure.P("config", map[string]any{"jobId": "foo"}),
		)
		id, ok := params.JobId()
		if !ok || id != "foo" {
			t.Errorf("actual=(%q, %v)", id, ok)
		}
	})

	t.Run("it reads job_id in config", func(t *testing.T) {
		params := procedure.NewCallParameters(
			procedure.P("config", map[string]any{"job_id": "bar"}),
		)
		id, ok := params.JobId()
		if !ok || id != "bar" {
			t.Errorf("actual=(%q, %v)", id, ok)
		}
	})

	t.Run("it reports not found without config", func(t *testing.T) {
		params := procedure.NewCallParameters(procedure.P("graphName", "g"))
		if id, ok := params.JobId(); ok {
			t.Errorf("unexpected job id: %q", id)
		}
	})

	t.Run("it reports not found for empty job id", func(t *testing.T) {
		params := procedure.NewCallParameters(
			procedure.P("config", map[string]any{"jobId": ""}),
		)
		if id, ok := params.JobId(); ok {
			t.Errorf("unexpected job id: %q", id)
		}
	})
}

func TestCallParameters_EnsureJobId(t *testing.T) {
	t.Run("it keeps existing job id", func(t *testing.T) {
		params := procedure.NewCallParameters(
			procedure.P("config", map[string]any{"jobId": "foo"}),
		)
		id, err := params.EnsureJobId()
		if err != nil {
			t.Fatal(err)
		}
		if id != "foo" {
			t.Errorf("actual=%q, expected=foo", id)
		}
	})

	t.Run("it generates job id under existing key", func(t *testing.T) {
		conf := map[string]any{"job_id": nil}
		params := procedure.NewCallParameters(procedure.P("config", conf))
		id, err := params.EnsureJobId()
		if err != nil {
			t.Fatal(err)
		}
		if id == "" {
			t.Fatal("job id should be generated")
		}
		if conf["job_id"] != id {
			t.Errorf("config is not updated: %v", conf)
		}
		if got, ok := params.JobId(); !ok || got != id {
			t.Errorf("JobId: actual=(%q, %v), expected=%q", got, ok, id)
		}
	})

	t.Run("it generates job id as jobId", func(t *testing.T) {
		conf := map[string]any{}
		params := procedure.NewCallParameters(procedure.P("config", conf))
		id, err := params.EnsureJobId()
		if err != nil {
			t.Fatal(err)
		}
		if conf["jobId"] != id {
			t.Errorf("config is not updated: %v", conf)
		}
	})

	t.Run("it fails without config", func(t *testing.T) {
		params := procedure.NewCallParameters()
		if _, err := params.EnsureJobId(); !errors.Is(err, procedure.ErrNoConfig) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
