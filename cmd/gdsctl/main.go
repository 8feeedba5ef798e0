package main

import (
	"context"
	"os"
	"os/signal"
	"path"

	subcall "github.com/opst/gdsremote/cmd/gdsctl/subcommands/call"
	"github.com/opst/gdsremote/cmd/gdsctl/subcommands/common"
	subgraph "github.com/opst/gdsremote/cmd/gdsctl/subcommands/graph"
	subinit "github.com/opst/gdsremote/cmd/gdsctl/subcommands/init"
	subkge "github.com/opst/gdsremote/cmd/gdsctl/subcommands/kge"
	subprotocol "github.com/opst/gdsremote/cmd/gdsctl/subcommands/protocol"
	subver "github.com/opst/gdsremote/cmd/gdsctl/subcommands/version"
	"github.com/opst/gdsremote/pkg/logger"
	"github.com/opst/gdsremote/pkg/tracing"
	"github.com/youta-t/flarc"
)

func main() {
	name := path.Base(os.Args[0])
	l := logger.Prefixed(os.Stderr, name)

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()

	shutdown, err := tracing.Init(ctx, name, tracing.FromEnv())
	if err != nil {
		l.Fatal(err)
	}

	cf, err := common.Flags()
	if err != nil {
		l.Fatal(err)
	}
	initCmd, err := subinit.New()
	if err != nil {
		l.Fatal(err)
	}
	protocol, err := subprotocol.New()
	if err != nil {
		l.Fatal(err)
	}
	graph, err := subgraph.New()
	if err != nil {
		l.Fatal(err)
	}
	call, err := subcall.New()
	if err != nil {
		l.Fatal(err)
	}
	kge, err := subkge.New()
	if err != nil {
		l.Fatal(err)
	}
	version, err := subver.New()
	if err != nil {
		l.Fatal(err)
	}

	gdsctl, err := flarc.NewCommandGroup(
		"Remote graph analytics session client",
		cf,
		flarc.WithSubcommand("init", initCmd),
		flarc.WithSubcommand("protocol", protocol),
		flarc.WithSubcommand("graph", graph),
		flarc.WithSubcommand("call", call),
		flarc.WithSubcommand("kge", kge),
		flarc.WithSubcommand("version", version),
	)
	if err != nil {
		l.Fatal(err)
	}

	code := flarc.Run(ctx, gdsctl, flarc.WithHelp(true))
	if err := shutdown(context.WithoutCancel(ctx)); err != nil {
		l.Printf("failed to flush traces: %v", err)
	}
	os.Exit(code)
}
