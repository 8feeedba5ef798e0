package protocol_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/opst/gdsremote/internal/testutils/runner"
	"github.com/opst/gdsremote/internal/testutils/try"
	"github.com/opst/gdsremote/pkg/procedure"
	"github.com/opst/gdsremote/pkg/protocol"
)

func TestResolver_ProtocolVersions(t *testing.T) {
	t.Run("it returns versions in server order", func(t *testing.T) {
		r := runner.New(runner.Table(
			procedure.Record{"version": "v3"},
			procedure.Record{"version": "v1"},
			procedure.Record{"version": "v2"},
		))
		testee := protocol.NewResolver(r, nil)

		actual := try.To(testee.ProtocolVersions(context.Background())).OrFatal(t)

		expected := []protocol.ProtocolVersion{protocol.V3, protocol.V1, protocol.V2}
		if len(actual) != len(expected) {
			t.Fatalf("actual=%v, expected=%v", actual, expected)
		}
		for i := range expected {
			if actual[i] != expected[i] {
				t.Errorf("actual=%v, expected=%v", actual, expected)
			}
		}

		calls := r.Calls()
		if len(calls) != 1 {
			t.Fatalf("calls: %v", calls)
		}
		if calls[0].Endpoint != protocol.VersionEndpoint {
			t.Errorf("endpoint: %s", calls[0].Endpoint)
		}
		if len(calls[0].Yields) != 1 || calls[0].Yields[0] != "version" {
			t.Errorf("yields: %v", calls[0].Yields)
		}
	})

	t.Run("it falls back to v1 when the procedure is not found", func(t *testing.T) {
		r := runner.New(runner.Fail(
			fmt.Errorf("%w: There is no procedure with the name `%s`", procedure.ErrProcedureNotFound, protocol.VersionEndpoint),
		))
		testee := protocol.NewResolver(r, nil)

		actual := try.To(testee.ProtocolVersions(context.Background())).OrFatal(t)
		if len(actual) != 1 || actual[0] != protocol.V1 {
			t.Errorf("actual=%v", actual)
		}
	})

	t.Run("other errors propagate", func(t *testing.T) {
		expectedErr := errors.New("connection refused")
		testee := protocol.NewResolver(runner.New(runner.Fail(expectedErr)), nil)

		if _, err := testee.ProtocolVersions(context.Background()); !errors.Is(err, expectedErr) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("unknown versions are rejected", func(t *testing.T) {
		testee := protocol.NewResolver(
			runner.New(runner.Table(procedure.Record{"version": "v9"})), nil,
		)
		if _, err := testee.ProtocolVersions(context.Background()); !errors.Is(err, protocol.ErrUnsupportedProtocol) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
