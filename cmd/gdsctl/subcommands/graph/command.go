package graph

import (
	graph_load "github.com/opst/gdsremote/cmd/gdsctl/subcommands/graph/load"
	graph_write "github.com/opst/gdsremote/cmd/gdsctl/subcommands/graph/write"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	load, err := graph_load.New()
	if err != nil {
		return nil, err
	}
	write, err := graph_write.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Construct graphs on the session and write them back.",
		struct{}{},
		flarc.WithSubcommand("load", load),
		flarc.WithSubcommand("write", write),
	)
}
