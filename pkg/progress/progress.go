// Package progress reports progress of long running procedures.
//
// Runner wraps a procedure.Runner. While a procedure having a "config" parameter runs,
// it polls the server's task list by the job id and draws a progress bar.
package progress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/opst/gdsremote/pkg/logger"
	"github.com/opst/gdsremote/pkg/loop"
	"github.com/opst/gdsremote/pkg/procedure"

	pb "github.com/cheggaaa/pb/v3"
)

const (
	// ListProgress is the procedure listing tasks of a job.
	ListProgress = "gds.listProgress"

	// BetaListProgress is used when the server does not know ListProgress.
	BetaListProgress = "gds.beta.listProgress"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultPollTimeout  = 5 * time.Second
)

// noTaskMessage is in the error for a job which has not started or already completed.
const noTaskMessage = "No task with job id"

const (
	templateRelative pb.ProgressBarTemplate = `{{string . "prefix"}} {{bar . }} {{percent . }} [elapsed: {{etime . }}]{{with string . "suffix"}} {{.}}{{end}}`
	templateUnknown  pb.ProgressBarTemplate = `{{string . "prefix"}} [elapsed: {{etime . }}]{{with string . "suffix"}} {{.}}{{end}}`
)

// Task is the root task of a job, as the server reports.
type Task struct {
	Name   string
	Status string

	// Progress like "42.5%", or "n/a" when the volume of the task is unknown.
	Progress string

	// SubTasks are running sub tasks, joined with "::".
	SubTasks string
}

// Percent returns the progress in percent, or false if it is unknown.
func (t Task) Percent() (float64, bool) {
	p, ok := strings.CutSuffix(t.Progress, "%")
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseTasks reads the root task from a task list.
//
// The first row is the root task. Other rows which are RUNNING make SubTasks.
func ParseTasks(table procedure.ResultTable) (Task, error) {
	if table.Len() == 0 {
		return Task{}, errors.New("progress: empty task list")
	}
	root := table.Rows[0]
	t := Task{}
	t.Name, _ = root.String("taskName")
	t.Status, _ = root.String("status")
	t.Progress, _ = root.String("progress")

	subs := []string{}
	for _, r := range table.Rows[1:] {
		if st, _ := r.String("status"); st != "RUNNING" {
			continue
		}
		name, _ := r.String("taskName")
		name = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(name), "|-"))
		subs = append(subs, name)
	}
	t.SubTasks = strings.Join(subs, "::")
	return t, nil
}

// Runner is a procedure.Runner reporting progress of calls to out.
//
// Calls without "config" parameter pass through as they are.
// The wrapped Runner is called concurrently: one for the procedure, one for polling.
type Runner struct {
	inner    procedure.Runner
	out      io.Writer
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger
}

var _ procedure.Runner = &Runner{}

type Option func(*Runner) *Runner

// WithPollInterval sets the interval of polling. Non-positive values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(r *Runner) *Runner {
		if 0 < d {
			r.interval = d
		}
		return r
	}
}

// WithPollTimeout bounds each poll. Non-positive values are ignored.
func WithPollTimeout(d time.Duration) Option {
	return func(r *Runner) *Runner {
		if 0 < d {
			r.timeout = d
		}
		return r
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *Runner) *Runner {
		r.logger = l
		return r
	}
}

func New(inner procedure.Runner, out io.Writer, options ...Option) *Runner {
	r := &Runner{
		inner:    inner,
		out:      out,
		interval: DefaultPollInterval,
		timeout:  DefaultPollTimeout,
	}
	for _, opt := range options {
		r = opt(r)
	}
	r.logger = logger.OrNull(r.logger)
	return r
}

func (r *Runner) CallProcedure(ctx context.Context, endpoint string, params *procedure.CallParameters, yields []string) (procedure.ResultTable, error) {
	jobId, err := params.EnsureJobId()
	if err != nil {
		return r.inner.CallProcedure(ctx, endpoint, params, yields)
	}

	pctx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.track(pctx, jobId)
	}()

	table, err := r.inner.CallProcedure(ctx, endpoint, params, yields)
	stop()
	<-done
	return table, err
}

type tracker struct {
	endpoint string
	bar      *pb.ProgressBar
	relative bool
	warned   bool
}

func (r *Runner) track(ctx context.Context, jobId string) {
	tr := &tracker{endpoint: ListProgress}
	loop.Start(
		ctx, tr,
		func(rctx context.Context, tr *tracker) (*tracker, loop.Next) {
			task, err := r.fetch(rctx, tr, jobId)
			if ctx.Err() != nil {
				return tr, loop.Break(nil)
			}
			if err != nil {
				if strings.Contains(err.Error(), noTaskMessage) {
					return tr, loop.Continue(r.interval)
				}
				if !tr.warned {
					r.logger.Printf("unable to get progress of job %s: %v", jobId, err)
					tr.warned = true
				}
				return tr, loop.Continue(r.interval)
			}
			r.render(tr, task)
			return tr, loop.Continue(r.interval)
		},
		loop.WithInitialDelay(r.interval),
		loop.WithTimeout(r.timeout),
	)

	if tr.bar == nil {
		return
	}
	if tr.relative {
		tr.bar.SetCurrent(tr.bar.Total())
	}
	tr.bar.Set("suffix", "status: finished")
	tr.bar.Finish()
}

func (r *Runner) fetch(ctx context.Context, tr *tracker, jobId string) (Task, error) {
	params := procedure.NewCallParameters(procedure.P("job_id", jobId))
	table, err := r.inner.CallProcedure(ctx, tr.endpoint, params, nil)
	if errors.Is(err, procedure.ErrProcedureNotFound) && tr.endpoint == ListProgress {
		tr.endpoint = BetaListProgress
		table, err = r.inner.CallProcedure(ctx, tr.endpoint, params, nil)
	}
	if err != nil {
		return Task{}, err
	}
	return ParseTasks(table)
}

func (r *Runner) render(tr *tracker, task Task) {
	percent, relative := task.Percent()
	if tr.bar == nil {
		tmpl, total := templateUnknown, 0
		if relative {
			tmpl, total = templateRelative, 100
		}
		tr.relative = relative
		tr.bar = tmpl.New(total)
		tr.bar.SetWriter(r.out)
		tr.bar.Set("prefix", task.Name)
		tr.bar.Start()
	}

	tr.bar.Set("suffix", fmt.Sprintf("status: %s, task: %s", task.Status, task.SubTasks))
	if tr.relative && relative {
		tr.bar.SetCurrent(int64(percent))
	}
}
