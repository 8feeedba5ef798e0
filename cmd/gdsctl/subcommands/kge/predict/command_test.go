package predict_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opst/gdsremote/cmd/gdsctl/subcommands/internal/commandline"
	kge_predict "github.com/opst/gdsremote/cmd/gdsctl/subcommands/kge/predict"
	"github.com/opst/gdsremote/internal/testutils/cluster"
	"github.com/opst/gdsremote/internal/testutils/runner"
	"github.com/opst/gdsremote/internal/testutils/try"
	"github.com/opst/gdsremote/pkg/jobs"
	"github.com/opst/gdsremote/pkg/kge"
	"github.com/opst/gdsremote/pkg/logger"
	"github.com/opst/gdsremote/pkg/procedure"
	"github.com/opst/gdsremote/pkg/session"
	"github.com/opst/gdsremote/pkg/utils/args"
	"github.com/youta-t/flarc"
)

func startSession(t *testing.T, c *cluster.Cluster) *session.Session {
	t.Helper()
	client := try.To(jobs.NewClient(c.URL)).OrFatal(t)
	return try.To(session.Start(context.Background(), session.Components{
		Runner:       runner.New(runner.Table(procedure.Record{"version": "v1"})),
		Orchestrator: jobs.NewOrchestrator(client, jobs.WithPollInterval(10*time.Millisecond)),
		KGE:          kge.Config{ComputeClusterHost: "10.0.0.1", ArrowURI: "session.example.com:8491"},
	}, nil)).OrFatal(t)
}

func mock(stdout *strings.Builder, f kge_predict.Flag) commandline.MockCommandline[kge_predict.Flag] {
	return commandline.MockCommandline[kge_predict.Flag]{
		Fullname_: "gdsctl kge predict",
		Stdout_:   stdout,
		Stderr_:   new(strings.Builder),
		Flags_:    f,
		Args_:     map[string][]string{kge_predict.ARG_MODEL: {"m"}},
	}
}

func TestPredict(t *testing.T) {
	t.Run("it prints predicted links as json lines", func(t *testing.T) {
		c := cluster.Start(t)
		c.Script(cluster.Status{JobStatus: jobs.JobExited})
		c.Result = "{\"node_id\": 1, \"target\": 7}\n{\"node_id\": 2, \"target\": 8}\n"

		topK := args.Int()
		if err := topK.Set("5"); err != nil {
			t.Fatal(err)
		}
		stdout := new(strings.Builder)
		if err := kge_predict.Task(
			context.Background(), logger.Null(), startSession(t, c),
			mock(stdout, kge_predict.Flag{
				TopK:     topK,
				NodeId:   &args.Numbers{1, 2},
				RelType:  &args.Names{"KNOWS"},
				Deadline: args.Duration(),
			}),
			nil,
		); err != nil {
			t.Fatal(err)
		}

		lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
		if len(lines) != 2 {
			t.Fatalf("output: %q", stdout.String())
		}
		first := map[string]any{}
		if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
			t.Fatal(err)
		}
		if first["node_id"] != 1.0 || first["target"] != 7.0 {
			t.Errorf("first line: %v", first)
		}

		started, _, fetches := c.Snapshot()
		algo := started[0]["task_config"].(map[string]any)["task_config"].(map[string]any)
		if algo["top_k"] != 5.0 {
			t.Errorf("algorithm config: %v", algo)
		}
		if len(fetches) != 1 || fetches[0]["job_id"] != "job-1" || fetches[0]["modelname"] != "m" {
			t.Errorf("fetches: %v", fetches)
		}
	})

	t.Run("missing top-k is usage error", func(t *testing.T) {
		c := cluster.Start(t)
		err := kge_predict.Task(
			context.Background(), logger.Null(), startSession(t, c),
			mock(new(strings.Builder), kge_predict.Flag{TopK: args.Int(), Deadline: args.Duration()}),
			nil,
		)
		if !errors.Is(err, flarc.ErrUsage) {
			t.Errorf("actual error = %v", err)
		}
	})
}
