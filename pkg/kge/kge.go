// Package kge trains knowledge graph embedding models on the compute cluster
// and predicts links with them.
package kge

import (
	"context"
	"fmt"
	"log"

	"github.com/opst/gdsremote/pkg/jobs"
	"github.com/opst/gdsremote/pkg/logger"
	"github.com/opst/gdsremote/pkg/procedure"
)

// Config of Runner.
type Config struct {
	// ComputeClusterHost is the host (or IP) of the compute cluster.
	ComputeClusterHost string

	// ArrowURI is where jobs read graphs from, like "session.example.com:8491".
	ArrowURI string

	// EncryptedDBPassword is passed through to jobs. Empty is not sent.
	EncryptedDBPassword string

	// UserName jobs are submitted as. Empty means jobs.DefaultUserName.
	UserName string
}

// Runner submits KGE jobs and waits for them.
type Runner struct {
	orch   *jobs.Orchestrator
	conf   Config
	logger *log.Logger
}

func NewRunner(orch *jobs.Orchestrator, conf Config, l *log.Logger) *Runner {
	if conf.UserName == "" {
		conf.UserName = jobs.DefaultUserName
	}
	return &Runner{orch: orch, conf: conf, logger: logger.OrNull(l)}
}

type runConfig struct {
	experiment string
	wait       []jobs.WaitOption
}

type RunOption func(*runConfig) *runConfig

// WithMLflowExperiment records the job in the MLflow experiment.
func WithMLflowExperiment(name string) RunOption {
	return func(rc *runConfig) *runConfig {
		rc.experiment = name
		return rc
	}
}

// WithWaitOptions passes options to waiting for the job.
func WithWaitOptions(options ...jobs.WaitOption) RunOption {
	return func(rc *runConfig) *runConfig {
		rc.wait = append(rc.wait, options...)
		return rc
	}
}

func (r *Runner) descriptor(task string, tc jobs.TaskConfig, rc *runConfig) jobs.JobDescriptor {
	if rc.experiment != "" {
		tc.MLflow = &jobs.MLflow{Config: jobs.MLflowConfig{
			TrackingURI:    jobs.MLflowURI(r.conf.ComputeClusterHost),
			ExperimentName: rc.experiment,
		}}
	}
	return jobs.JobDescriptor{
		UserName:            r.conf.UserName,
		Task:                task,
		TaskConfig:          tc,
		GraphArrowURI:       r.conf.ArrowURI,
		EncryptedDBPassword: r.conf.EncryptedDBPassword,
	}
}

// TrainResult is the outcome of a training job.
type TrainResult struct {
	JobId  string
	Status string
}

// Train trains the model modelName on the graph graphName, and waits for the training.
func (r *Runner) Train(ctx context.Context, graphName, modelName string, opts TrainOptions, options ...RunOption) (TrainResult, error) {
	if err := opts.Validate(); err != nil {
		return TrainResult{}, err
	}
	rc := &runConfig{}
	for _, opt := range options {
		rc = opt(rc)
	}

	desc := r.descriptor(jobs.TaskKGETraining, jobs.TaskConfig{
		GraphConfig: &jobs.GraphConfig{Name: graphName},
		ModelName:   modelName,
		TaskConfig:  opts.TaskConfig(),
	}, rc)

	jobId, err := r.orch.Run(ctx, desc, rc.wait...)
	if err != nil {
		return TrainResult{JobId: jobId}, fmt.Errorf("training %s on %s: %w", modelName, graphName, err)
	}
	r.logger.Printf("KGE job completed! (job id: %s)", jobId)
	return TrainResult{JobId: jobId, Status: "finished"}, nil
}

// PredictRequest asks top-K links from nodes.
type PredictRequest struct {
	TopK     int
	NodeIds  []int64
	RelTypes []string
}

func (p PredictRequest) taskConfig() map[string]any {
	nodeIds := p.NodeIds
	if nodeIds == nil {
		nodeIds = []int64{}
	}
	relTypes := p.RelTypes
	if relTypes == nil {
		relTypes = []string{}
	}
	return map[string]any{
		"top_k":     p.TopK,
		"node_ids":  nodeIds,
		"rel_types": relTypes,
	}
}

// Predict predicts links with the model modelName, waits for it and fetches the result.
func (r *Runner) Predict(ctx context.Context, modelName string, req PredictRequest, options ...RunOption) (procedure.ResultTable, error) {
	if req.TopK <= 0 {
		return procedure.ResultTable{}, fmt.Errorf("%w: top_k should be positive (got %d)", ErrInvalidOption, req.TopK)
	}
	rc := &runConfig{}
	for _, opt := range options {
		rc = opt(rc)
	}

	desc := r.descriptor(jobs.TaskKGEPredict, jobs.TaskConfig{
		ModelName:  modelName,
		TaskConfig: req.taskConfig(),
	}, rc)

	jobId, err := r.orch.Run(ctx, desc, rc.wait...)
	if err != nil {
		return procedure.ResultTable{}, fmt.Errorf("predicting with %s: %w", modelName, err)
	}
	return r.orch.FetchResult(ctx, desc.UserName, modelName, jobId)
}
