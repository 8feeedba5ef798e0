package kge_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/opst/gdsremote/internal/testutils/cluster"
	"github.com/opst/gdsremote/internal/testutils/try"
	"github.com/opst/gdsremote/pkg/jobs"
	"github.com/opst/gdsremote/pkg/kge"
)

func newRunner(t *testing.T, c *cluster.Cluster, conf kge.Config) *kge.Runner {
	t.Helper()
	client := try.To(jobs.NewClient(c.URL)).OrFatal(t)
	orch := jobs.NewOrchestrator(client, jobs.WithPollInterval(10*time.Millisecond))
	return kge.NewRunner(orch, conf, nil)
}

func TestRunner_Train(t *testing.T) {
	t.Run("it submits a training job and waits for it", func(t *testing.T) {
		c := cluster.Start(t)
		c.Script(
			cluster.Status{JobStatus: jobs.JobRunning},
			cluster.Status{JobStatus: jobs.JobExited},
		)
		testee := newRunner(t, c, kge.Config{
			ComputeClusterHost:  "10.0.0.1",
			ArrowURI:            "session.example.com:8491",
			EncryptedDBPassword: "c2VjcmV0",
		})

		result := try.To(testee.Train(
			context.Background(), "g", "m", kge.DefaultTrainOptions(10, 8),
			kge.WithMLflowExperiment("exp"),
		)).OrFatal(t)
		if result.JobId != "job-1" || result.Status != "finished" {
			t.Errorf("result: %+v", result)
		}

		started, polls, _ := c.Snapshot()
		if len(polls) != 2 {
			t.Errorf("polls: %d", len(polls))
		}
		body := started[0]
		if body["task"] != jobs.TaskKGETraining || body["user_name"] != jobs.DefaultUserName {
			t.Errorf("body: %v", body)
		}
		if body["graph_arrow_uri"] != "session.example.com:8491" || body["encrypted_db_password"] != "c2VjcmV0" {
			t.Errorf("body: %v", body)
		}
		tc := body["task_config"].(map[string]any)
		if tc["modelname"] != "m" || tc["graph_config"].(map[string]any)["name"] != "g" {
			t.Errorf("task_config: %v", tc)
		}
		mlflow := tc["mlflow"].(map[string]any)["config"].(map[string]any)
		if mlflow["tracking_uri"] != "http://10.0.0.1:8080" || mlflow["experiment_name"] != "exp" {
			t.Errorf("mlflow: %v", mlflow)
		}
		algo := tc["task_config"].(map[string]any)
		if algo["num_epochs"] != 10.0 || algo["embedding_dimension"] != 8.0 {
			t.Errorf("algorithm config: %v", algo)
		}
	})

	t.Run("invalid options are not submitted", func(t *testing.T) {
		c := cluster.Start(t)
		testee := newRunner(t, c, kge.Config{ComputeClusterHost: "10.0.0.1"})

		_, err := testee.Train(context.Background(), "g", "m", kge.DefaultTrainOptions(0, 8))
		if !errors.Is(err, kge.ErrInvalidOption) {
			t.Errorf("unexpected error: %v", err)
		}
		if started, _, _ := c.Snapshot(); len(started) != 0 {
			t.Errorf("started: %v", started)
		}
	})

	t.Run("validation failure", func(t *testing.T) {
		c := cluster.Start(t)
		c.Script(cluster.Status{Code: http.StatusBadRequest, JobStatus: jobs.JobFailed, Errors: []string{"bad"}})
		testee := newRunner(t, c, kge.Config{ComputeClusterHost: "10.0.0.1"})

		_, err := testee.Train(context.Background(), "g", "m", kge.DefaultTrainOptions(10, 8))
		var verr *jobs.JobValidationFailure
		if !errors.As(err, &verr) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestRunner_Predict(t *testing.T) {
	t.Run("it submits a prediction and fetches its result", func(t *testing.T) {
		c := cluster.Start(t)
		c.Script(cluster.Status{JobStatus: jobs.JobExited})
		c.Result = "{\"node_id\": 1, \"rel_type\": \"KNOWS\", \"target\": 7, \"score\": 0.9}\n"
		testee := newRunner(t, c, kge.Config{ComputeClusterHost: "10.0.0.1", ArrowURI: "a:1"})

		table := try.To(testee.Predict(context.Background(), "m", kge.PredictRequest{
			TopK: 3, NodeIds: []int64{1, 2}, RelTypes: []string{"KNOWS"},
		})).OrFatal(t)
		if table.Len() != 1 || table.Rows[0]["target"] != int64(7) {
			t.Errorf("result: %v", table)
		}

		started, _, fetches := c.Snapshot()
		body := started[0]
		if body["task"] != jobs.TaskKGEPredict {
			t.Errorf("task: %v", body["task"])
		}
		if _, ok := body["encrypted_db_password"]; ok {
			t.Errorf("empty password should be omitted: %v", body)
		}
		tc := body["task_config"].(map[string]any)
		if _, ok := tc["graph_config"]; ok {
			t.Errorf("prediction has no graph_config: %v", tc)
		}
		if _, ok := tc["mlflow"]; ok {
			t.Errorf("mlflow should be omitted: %v", tc)
		}
		algo := tc["task_config"].(map[string]any)
		if algo["top_k"] != 3.0 || len(algo["node_ids"].([]any)) != 2 || algo["rel_types"].([]any)[0] != "KNOWS" {
			t.Errorf("algorithm config: %v", algo)
		}

		if len(fetches) != 1 || fetches[0]["job_id"] != "job-1" || fetches[0]["modelname"] != "m" ||
			fetches[0]["user_name"] != jobs.DefaultUserName {
			t.Errorf("fetches: %v", fetches)
		}
	})

	t.Run("top_k should be positive", func(t *testing.T) {
		c := cluster.Start(t)
		testee := newRunner(t, c, kge.Config{ComputeClusterHost: "10.0.0.1"})
		if _, err := testee.Predict(context.Background(), "m", kge.PredictRequest{}); !errors.Is(err, kge.ErrInvalidOption) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
