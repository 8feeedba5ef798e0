package train

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/opst/gdsremote/cmd/gdsctl/subcommands/common"
	"github.com/opst/gdsremote/pkg/jobs"
	"github.com/opst/gdsremote/pkg/kge"
	"github.com/opst/gdsremote/pkg/session"
	"github.com/opst/gdsremote/pkg/utils/args"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Epochs          *args.Adapter[args.Number]   `flag:"epochs" metavar:"N" help:"number of epochs. Required."`
	Dimension       *args.Adapter[args.Number]   `flag:"dimension" metavar:"N" help:"embedding dimension. Required."`
	ScoringFunction string                       `flag:"scoring-function" help:"scoring function, like transe, distmult or rotate."`
	BatchSize       *args.Adapter[args.Number]   `flag:"batch-size" metavar:"N" help:"training batch size."`
	Experiment      string                       `flag:"experiment" help:"MLflow experiment to record the training in."`
	Deadline        *args.Adapter[time.Duration] `flag:"deadline" metavar:"DURATION" help:"give up waiting for the job after this, like 30m. Waits forever by default."`
}

const (
	ARG_GRAPH = "GRAPH_NAME"
	ARG_MODEL = "MODEL_NAME"
)

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Train a KGE model on the compute cluster.",
		Flag{
			Epochs:    args.Int(),
			Dimension: args.Int(),
			BatchSize: args.Int(),
			Deadline:  args.Duration(),
		},
		flarc.Args{
			{
				Name: ARG_GRAPH, Required: true,
				Help: "name of the graph to train on.",
			},
			{
				Name: ARG_MODEL, Required: true,
				Help: "name of the model to be trained.",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Train a knowledge graph embedding model on the compute cluster, and wait for it.

Hyperparameters not given take their default values.
`),
	)
}

func Task(
	ctx context.Context,
	l *log.Logger,
	sess *session.Session,
	cl flarc.Commandline[Flag],
	_ []any,
) error {
	a := cl.Args()
	graphName, modelName := a[ARG_GRAPH][0], a[ARG_MODEL][0]
	flags := cl.Flags()

	if !flags.Epochs.IsSet() || !flags.Dimension.IsSet() {
		return fmt.Errorf("%w: --epochs and --dimension are required", flarc.ErrUsage)
	}
	opts := kge.DefaultTrainOptions(flags.Epochs.Value().Int(), flags.Dimension.Value().Int())
	if flags.ScoringFunction != "" {
		opts.ScoringFunction = flags.ScoringFunction
	}
	opts.BatchSize = flags.BatchSize.ValueOr(args.Number(opts.BatchSize)).Int()
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("%w: %w", flarc.ErrUsage, err)
	}

	runner, err := sess.KGE()
	if err != nil {
		return err
	}

	runOpts := []kge.RunOption{}
	if flags.Experiment != "" {
		runOpts = append(runOpts, kge.WithMLflowExperiment(flags.Experiment))
	}
	if flags.Deadline.IsSet() {
		runOpts = append(runOpts, kge.WithWaitOptions(jobs.WithDeadline(flags.Deadline.Value())))
	}

	l.Printf("training %s on graph %s", modelName, graphName)
	result, err := runner.Train(ctx, graphName, modelName, opts, runOpts...)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cl.Stdout())
	enc.SetIndent("", "    ")
	return enc.Encode(map[string]string{"jobId": result.JobId, "status": result.Status})
}
