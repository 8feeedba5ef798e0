package predict

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
	TopK       *args.Adapter[args.Number]   `flag:"top-k" alias:"k" metavar:"K" help:"number of links predicted per node. Required."`
	NodeId     *args.Numbers                `flag:"node-id" alias:"n" metavar:"ID,..." help:"nodes to predict links from. Repeatable."`
	RelType    *args.Names                  `flag:"rel-type" alias:"r" metavar:"TYPE,..." help:"relationship types to be predicted. Repeatable."`
	Experiment string                       `flag:"experiment" help:"MLflow experiment to record the prediction in."`
	Deadline   *args.Adapter[time.Duration] `flag:"deadline" metavar:"DURATION" help:"give up waiting for the job after this, like 10m. Waits forever by default."`
}

const ARG_MODEL = "MODEL_NAME"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Predict links with a KGE model on the compute cluster.",
		Flag{
			TopK:     args.Int(),
			NodeId:   &args.Numbers{},
			RelType:  &args.Names{},
			Deadline: args.Duration(),
		},
		flarc.Args{
			{
				Name: ARG_MODEL, Required: true,
				Help: "name of a trained model.",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Predict links with a trained KGE model, wait for it, and print the result as JSON lines.
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
	modelName := cl.Args()[ARG_MODEL][0]
	flags := cl.Flags()

	if !flags.TopK.IsSet() {
		return fmt.Errorf("%w: --top-k is required", flarc.ErrUsage)
	}
	req := kge.PredictRequest{TopK: flags.TopK.Value().Int()}
	if flags.NodeId != nil {
		req.NodeIds = *flags.NodeId
	}
	if flags.RelType != nil {
		req.RelTypes = *flags.RelType
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

	l.Printf("predicting with %s", modelName)
	table, err := runner.Predict(ctx, modelName, req, runOpts...)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cl.Stdout())
	for _, row := range table.Rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}
