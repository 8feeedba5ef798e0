package protocol

import (
	"context"
	"encoding/json"
	"log"

	"github.com/opst/gdsremote/cmd/gdsctl/subcommands/common"
	"github.com/opst/gdsremote/pkg/session"
	"github.com/youta-t/flarc"
)

type Flag struct{}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show protocol versions the session speaks.",
		Flag{},
		flarc.Args{},
		common.NewTask(Task),
		flarc.WithDescription(`
Show protocol versions announced by the session, and the version selected for write-back.

Sessions not knowing the version discovery procedure are treated as speaking v1 only.
`),
	)
}

// Versions is the output of this command.
type Versions struct {
	Selected  string   `json:"selected"`
	Supported []string `json:"supported"`
}

func Task(
	ctx context.Context,
	l *log.Logger,
	sess *session.Session,
	cl flarc.Commandline[Flag],
	_ []any,
) error {
	out := Versions{Selected: sess.Version().Tag(), Supported: []string{}}
	for _, v := range sess.ProtocolVersions() {
		out.Supported = append(out.Supported, v.Tag())
	}

	enc := json.NewEncoder(cl.Stdout())
	enc.SetIndent("", "    ")
	return enc.Encode(out)
}
