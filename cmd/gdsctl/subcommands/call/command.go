package call

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/opst/gdsremote/cmd/gdsctl/subcommands/common"
	"github.com/opst/gdsremote/pkg/procedure"
	"github.com/opst/gdsremote/pkg/session"
	"github.com/opst/gdsremote/pkg/utils/args"
	"github.com/youta-t/flarc"
)

type Flag struct {
	Param      *args.Params `flag:"param" alias:"p" metavar:"NAME=VALUE" help:"procedure parameter. VALUE is JSON or a plain string. Repeatable, in order."`
	Yield      *args.Names  `flag:"yield" alias:"y" metavar:"COLUMN,..." help:"columns to be yielded. All by default."`
	NoProgress bool         `flag:"no-progress" help:"do not draw progress of the call."`
}

const ARG_PROCEDURE = "PROCEDURE"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Call a graph analytics procedure on the session.",
		Flag{
			Param: &args.Params{},
			Yield: &args.Names{},
		},
		flarc.Args{
			{
				Name: ARG_PROCEDURE, Required: true,
				Help: `procedure name, like "wcc.write" or "gds.wcc.write".`,
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Call a procedure in the "gds" namespace and print yielded records as JSON lines.

When the procedure takes a "config" parameter, a job id is given to it (unless set)
and the progress of the job is drawn on stderr while the call runs.
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
	name := strings.TrimPrefix(cl.Args()[ARG_PROCEDURE][0], "gds.")
	flags := cl.Flags()

	params := procedure.NewCallParameters()
	if flags.Param != nil {
		for _, kv := range *flags.Param {
			params.Set(kv.Key, kv.Value)
		}
	}
	yields := []string{}
	if flags.Yield != nil {
		yields = *flags.Yield
	}

	gds := sess.GDSWithProgress(cl.Stderr())
	if flags.NoProgress {
		gds = sess.GDS()
	}
	call := gds.Sub(name)
	l.Printf("calling %s", call.Name())
	table, err := call.Call(ctx, params, yields...)
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
