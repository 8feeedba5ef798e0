package write

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/opst/gdsremote/cmd/gdsctl/subcommands/common"
	"github.com/opst/gdsremote/pkg/procedure"
	"github.com/opst/gdsremote/pkg/session"
	"github.com/opst/gdsremote/pkg/utils/args"
	"github.com/opst/gdsremote/pkg/writeback"
	"github.com/youta-t/flarc"
)

type Flag struct {
	JobId       string                     `flag:"job-id" help:"job id of the write-back. Generated when not given."`
	Concurrency *args.Adapter[args.Number] `flag:"concurrency" metavar:"N" help:"concurrency of the write-back job. Sent on protocol v2 and later."`
	Transport   string                     `flag:"transport" metavar:"JSON" help:"transport configuration as JSON object, like '{\"host\": \"db.example.com\", \"port\": 8491}'"`
	Yield       *args.Names                `flag:"yield" alias:"y" metavar:"COLUMN" help:"columns to be yielded. Repeatable."`
}

const ARG_GRAPH = "GRAPH_NAME"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Write a graph on the session back to the database.",
		Flag{
			Concurrency: args.Int(),
			Yield:       &args.Names{},
		},
		flarc.Args{
			{
				Name: ARG_GRAPH, Required: true,
				Help: "name of the graph to be written back.",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Write a graph on the session back to the database.

The procedure and its arguments follow the protocol version negotiated with the session.
With protocol v3, this command waits until the write-back is completed.
`),
	)
}

// Result is the output of this command.
type Result struct {
	JobId   string             `json:"jobId"`
	Version string             `json:"protocol"`
	Columns []string           `json:"columns"`
	Rows    []procedure.Record `json:"rows"`
}

func Task(
	ctx context.Context,
	l *log.Logger,
	sess *session.Session,
	cl flarc.Commandline[Flag],
	_ []any,
) error {
	graphName := cl.Args()[ARG_GRAPH][0]
	flags := cl.Flags()

	req := writeback.Request{
		GraphName:       graphName,
		JobId:           flags.JobId,
		JobConfig:       map[string]any{},
		TransportConfig: map[string]any{},
	}
	if flags.Concurrency != nil && flags.Concurrency.IsSet() {
		req.JobConfig["concurrency"] = flags.Concurrency.Value().Int()
	}
	if flags.Transport != "" {
		if err := json.Unmarshal([]byte(flags.Transport), &req.TransportConfig); err != nil {
			return fmt.Errorf("%w: --transport should be JSON object: %w", flarc.ErrUsage, err)
		}
	}
	if flags.Yield != nil {
		req.Yields = *flags.Yield
	}

	jobId, table, err := sess.WriteBack(ctx, req)
	if err != nil {
		return err
	}

	rows := table.Rows
	if rows == nil {
		rows = []procedure.Record{}
	}
	enc := json.NewEncoder(cl.Stdout())
	enc.SetIndent("", "    ")
	return enc.Encode(Result{
		JobId:   jobId,
		Version: sess.Version().Tag(),
		Columns: table.Columns,
		Rows:    rows,
	})
}
