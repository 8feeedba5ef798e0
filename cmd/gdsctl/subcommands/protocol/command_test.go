package protocol_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/opst/gdsremote/cmd/gdsctl/subcommands/internal/commandline"
	subprotocol "github.com/opst/gdsremote/cmd/gdsctl/subcommands/protocol"
	"github.com/opst/gdsremote/internal/testutils/runner"
	"github.com/opst/gdsremote/internal/testutils/try"
	"github.com/opst/gdsremote/pkg/logger"
	"github.com/opst/gdsremote/pkg/procedure"
	"github.com/opst/gdsremote/pkg/session"
)

func TestProtocol(t *testing.T) {
	sess := try.To(session.Start(context.Background(), session.Components{
		Runner: runner.New(runner.Table(
			procedure.Record{"version": "v1"},
			procedure.Record{"version": "v3"},
		)),
	}, nil)).OrFatal(t)

	stdout := new(strings.Builder)
	if err := subprotocol.Task(
		context.Background(), logger.Null(), sess,
		commandline.MockCommandline[subprotocol.Flag]{Stdout_: stdout, Stderr_: new(strings.Builder)},
		nil,
	); err != nil {
		t.Fatal(err)
	}

	actual := subprotocol.Versions{}
	if err := json.Unmarshal([]byte(stdout.String()), &actual); err != nil {
		t.Fatal(err)
	}
	if actual.Selected != "v3" {
		t.Errorf("selected: %s", actual.Selected)
	}
	if strings.Join(actual.Supported, ",") != "v1,v3" {
		t.Errorf("supported: %v", actual.Supported)
	}
}
