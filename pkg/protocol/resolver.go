package protocol

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/opst/gdsremote/pkg/logger"
	"github.com/opst/gdsremote/pkg/procedure"
)

// VersionEndpoint is the procedure answering protocol versions the server speaks.
const VersionEndpoint = "gds.session.dbms.protocol.version"

// Resolver asks the server which protocol versions it speaks.
type Resolver struct {
	runner procedure.Runner
	logger *log.Logger
}

func NewResolver(runner procedure.Runner, l *log.Logger) *Resolver {
	return &Resolver{runner: runner, logger: logger.OrNull(l)}
}

// ProtocolVersions returns versions the server speaks, in the order the server answered.
//
// Servers which do not have the version procedure speak V1 only.
// In that case, it returns [V1] without error.
//
// # Returns
//
// - []ProtocolVersion
//
// - error: errors from the runner other than procedure.ErrProcedureNotFound,
// or ErrUnsupportedProtocol when the server answers an unknown version.
func (r *Resolver) ProtocolVersions(ctx context.Context) ([]ProtocolVersion, error) {
	table, err := r.runner.CallProcedure(ctx, VersionEndpoint, nil, []string{"version"})
	if err != nil {
		if errors.Is(err, procedure.ErrProcedureNotFound) {
			r.logger.Printf("%s is not found. assuming protocol %s", VersionEndpoint, V1)
			return []ProtocolVersion{V1}, nil
		}
		return nil, err
	}

	versions := make([]ProtocolVersion, 0, table.Len())
	for _, rec := range table.Rows {
		tag, ok := rec.String("version")
		if !ok {
			return nil, fmt.Errorf("%w: version is not a string: %v", ErrUnsupportedProtocol, rec["version"])
		}
		v, err := Parse(tag)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, nil
}
