package jobs

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/opst/gdsremote/pkg/logger"
	"github.com/opst/gdsremote/pkg/loop"
	"github.com/opst/gdsremote/pkg/procedure"
	"github.com/opst/gdsremote/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultPollInterval is the interval between status polls.
const DefaultPollInterval = 1 * time.Second

// Orchestrator submits jobs and waits for them to finish.
type Orchestrator struct {
	client   Client
	interval time.Duration
	logger   *log.Logger
}

type OrchestratorOption func(*Orchestrator) *Orchestrator

// WithPollInterval sets the interval between status polls. Non-positive values are ignored.
func WithPollInterval(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) *Orchestrator {
		if 0 < d {
			o.interval = d
		}
		return o
	}
}

func WithLogger(l *log.Logger) OrchestratorOption {
	return func(o *Orchestrator) *Orchestrator {
		o.logger = l
		return o
	}
}

func NewOrchestrator(client Client, options ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{client: client, interval: DefaultPollInterval}
	for _, opt := range options {
		o = opt(o)
	}
	o.logger = logger.OrNull(o.logger)
	return o
}

// Submit starts a job. It is not retried on failure.
func (o *Orchestrator) Submit(ctx context.Context, desc JobDescriptor) (jobId string, err error) {
	ctx, span := tracing.Start(
		ctx, "jobs.submit",
		attribute.String("task", desc.Task),
		attribute.String("model", desc.TaskConfig.ModelName),
	)
	defer func() { tracing.End(span, err) }()

	return o.client.Start(ctx, desc)
}

type waitConfig struct {
	deadline time.Duration
}

type WaitOption func(*waitConfig) *waitConfig

// WithDeadline bounds the whole wait. Without this, Wait waits as long as ctx allows.
func WithDeadline(d time.Duration) WaitOption {
	return func(wc *waitConfig) *waitConfig {
		wc.deadline = d
		return wc
	}
}

// Wait polls the job status until it exits or fails.
//
// Each poll is preceded by a sleep of the poll interval.
//
// # Returns
//
// - error:
//
//   - nil if the job exited.
//
//   - *JobValidationFailure if the job failed and the cluster answered 400.
//
//   - *JobExecutionFailure if the job failed otherwise.
//
//   - *TransportError if the status could not be got.
//
//   - ctx.Err() when ctx is done (or the deadline passes).
func (o *Orchestrator) Wait(ctx context.Context, jobId string, options ...WaitOption) (err error) {
	wc := &waitConfig{}
	for _, opt := range options {
		wc = opt(wc)
	}
	if 0 < wc.deadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wc.deadline)
		defer cancel()
	}

	ctx, span := tracing.Start(ctx, "jobs.wait", attribute.String("job_id", jobId))
	defer func() { tracing.End(span, err) }()

	polls := 0
	_, err = loop.Start(
		ctx, StatusReport{},
		func(ctx context.Context, _ StatusReport) (StatusReport, loop.Next) {
			polls += 1
			report, err := o.client.Status(ctx, jobId)
			if err != nil {
				return report, loop.Break(err)
			}

			switch report.JobStatus {
			case JobExited:
				o.logger.Printf("job %s completed (polled %d times)", jobId, polls)
				return report, loop.Break(nil)
			case JobFailed:
				if report.StatusCode == http.StatusBadRequest {
					return report, loop.Break(&JobValidationFailure{JobId: jobId, Errors: report.Errors})
				}
				return report, loop.Break(&JobExecutionFailure{
					JobId: jobId, StatusCode: report.StatusCode, Errors: report.Errors,
				})
			default:
				return report, loop.Continue(o.interval)
			}
		},
		loop.WithInitialDelay(o.interval),
	)
	return err
}

// Run submits a job and waits for it.
func (o *Orchestrator) Run(ctx context.Context, desc JobDescriptor, options ...WaitOption) (string, error) {
	jobId, err := o.Submit(ctx, desc)
	if err != nil {
		return "", err
	}
	if err := o.Wait(ctx, jobId, options...); err != nil {
		return jobId, err
	}
	return jobId, nil
}

// FetchResult downloads the result of a finished job.
func (o *Orchestrator) FetchResult(ctx context.Context, userName, modelName, jobId string) (procedure.ResultTable, error) {
	table, err := o.client.FetchResult(ctx, userName, modelName, jobId)
	if err != nil {
		return table, fmt.Errorf("job %s: %w", jobId, err)
	}
	return table, nil
}
