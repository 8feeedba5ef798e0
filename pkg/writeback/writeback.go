// Package writeback writes graph data computed on the session back to the database,
// speaking each protocol version's dialect of "gds.arrow.write".
package writeback

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/opst/gdsremote/pkg/logger"
	"github.com/opst/gdsremote/pkg/procedure"
	"github.com/opst/gdsremote/pkg/protocol"
	"github.com/opst/gdsremote/pkg/tracing"
	"github.com/opst/gdsremote/pkg/utils/retry"
	"go.opentelemetry.io/otel/attribute"
)

// Endpoint is the base name of the write-back procedure.
const Endpoint = "gds.arrow.write"

// StatusCompleted is the status of a finished V3 write-back.
const StatusCompleted = "COMPLETED"

// Protocol is a dialect of the write-back procedure.
type Protocol interface {
	// Version returns the protocol version this dialect speaks.
	Version() protocol.ProtocolVersion

	// Parameters builds arguments of the write-back procedure.
	//
	// # Args
	//
	// - graphName: name of the graph on the session
	//
	// - jobId: id of the write-back job
	//
	// - jobConfig: job configuration. "concurrency" is passed in V2 and later.
	//
	// - transportConfig: how to reach the database's Arrow endpoint
	//
	// - database: target database name. Used by V1 only.
	Parameters(graphName, jobId string, jobConfig, transportConfig map[string]any, database string) *procedure.CallParameters

	// Run calls the write-back procedure with params.
	Run(ctx context.Context, runner procedure.Runner, params *procedure.CallParameters, yields []string) (procedure.ResultTable, error)
}

// V3 polling schedule: 200ms, 400ms, ... and never longer than 2s.
const (
	pollStart     = 200 * time.Millisecond
	pollIncrement = 200 * time.Millisecond
	pollMax       = 2 * time.Second
)

var protocols = [...]Protocol{
	protocol.V1: protocolV1{},
	protocol.V2: protocolV2{},
	protocol.V3: protocolV3{schedule: retry.Incrementing(pollStart, pollIncrement, pollMax)},
}

// protocols must have exactly one entry per version (plus the unused zero index).
var _ = [1]struct{}{}[len(protocols)-1-int(protocol.V3)]

// For returns the write-back Protocol of version v.
//
// It returns protocol.ErrUnsupportedProtocol for unknown versions.
func For(v protocol.ProtocolVersion) (Protocol, error) {
	if !v.Valid() || len(protocols) <= int(v) || protocols[v] == nil {
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnsupportedProtocol, v)
	}
	return protocols[v], nil
}

type protocolV1 struct{}

func (protocolV1) Version() protocol.ProtocolVersion {
	return protocol.V1
}

func (protocolV1) Parameters(graphName, jobId string, _, transportConfig map[string]any, database string) *procedure.CallParameters {
	return procedure.NewCallParameters(
		procedure.P("graphName", graphName),
		procedure.P("databaseName", database),
		procedure.P("jobId", jobId),
		procedure.P("transportConfiguration", transportConfig),
	)
}

func (p protocolV1) Run(ctx context.Context, runner procedure.Runner, params *procedure.CallParameters, yields []string) (procedure.ResultTable, error) {
	return runner.CallProcedure(ctx, p.Version().VersionedProcedureName(Endpoint), params, yields)
}

type protocolV2 struct{}

func (protocolV2) Version() protocol.ProtocolVersion {
	return protocol.V2
}

func (protocolV2) Parameters(graphName, jobId string, jobConfig, transportConfig map[string]any, _ string) *procedure.CallParameters {
	return versionedParameters(graphName, jobId, jobConfig, transportConfig)
}

func (p protocolV2) Run(ctx context.Context, runner procedure.Runner, params *procedure.CallParameters, yields []string) (procedure.ResultTable, error) {
	return runner.CallProcedure(ctx, p.Version().VersionedProcedureName(Endpoint), params, yields)
}

type protocolV3 struct {
	schedule retry.Schedule
}

func (protocolV3) Version() protocol.ProtocolVersion {
	return protocol.V3
}

func (protocolV3) Parameters(graphName, jobId string, jobConfig, transportConfig map[string]any, _ string) *procedure.CallParameters {
	return versionedParameters(graphName, jobId, jobConfig, transportConfig)
}

// Run calls the procedure repeatedly until it reports COMPLETED.
//
// Each call must yield exactly one record with "status".
// Otherwise, it gives up polling and returns an error.
func (p protocolV3) Run(ctx context.Context, runner procedure.Runner, params *procedure.CallParameters, yields []string) (procedure.ResultTable, error) {
	endpoint := p.Version().VersionedProcedureName(Endpoint)
	return retry.Until(ctx, p.schedule.Backoff(), func() (procedure.ResultTable, error) {
		table, err := runner.CallProcedure(ctx, endpoint, params, yields)
		if err != nil {
			return table, err
		}
		rec, err := table.Single()
		if err != nil {
			return table, fmt.Errorf("%s: unexpected response: %w", endpoint, err)
		}
		status, ok := rec.String("status")
		if !ok {
			return table, fmt.Errorf("%s: unexpected response: no status in %v", endpoint, rec)
		}
		if status != StatusCompleted {
			return table, retry.ErrRetry
		}
		return table, nil
	})
}

func versionedParameters(graphName, jobId string, jobConfig, transportConfig map[string]any) *procedure.CallParameters {
	configuration := map[string]any{}
	if c, ok := jobConfig["concurrency"]; ok {
		configuration["concurrency"] = c
	}
	return procedure.NewCallParameters(
		procedure.P("graphName", graphName),
		procedure.P("jobId", jobId),
		procedure.P("transportConfiguration", transportConfig),
		procedure.P("configuration", configuration),
	)
}

// Request is a write-back request.
type Request struct {
	GraphName string

	// JobId of the write-back. Generated when empty.
	JobId string

	JobConfig       map[string]any
	TransportConfig map[string]any
	Database        string
	Yields          []string
}

// WriteBack builds parameters for the protocol version v and runs them.
//
// # Returns
//
// - string: job id of the write-back
//
// - procedure.ResultTable: result of the (last) call
//
// - error
func WriteBack(ctx context.Context, runner procedure.Runner, v protocol.ProtocolVersion, req Request, l *log.Logger) (_ string, _ procedure.ResultTable, err error) {
	l = logger.OrNull(l)

	ctx, span := tracing.Start(
		ctx, "writeback.run",
		attribute.String("protocol", v.String()),
		attribute.String("graph", req.GraphName),
	)
	defer func() { tracing.End(span, err) }()

	p, err := For(v)
	if err != nil {
		return "", procedure.ResultTable{}, err
	}

	jobId := req.JobId
	if jobId == "" {
		jobId = uuid.NewString()
	}
	span.SetAttributes(attribute.String("job_id", jobId))
	params := p.Parameters(req.GraphName, jobId, req.JobConfig, req.TransportConfig, req.Database)

	l.Printf("writing back graph %s (job id: %s) with protocol %s", req.GraphName, jobId, v)
	table, err := p.Run(ctx, runner, params, req.Yields)
	if err != nil {
		return jobId, table, fmt.Errorf("write back %s (job id: %s): %w", req.GraphName, jobId, err)
	}
	l.Printf("wrote back graph %s (job id: %s)", req.GraphName, jobId)
	return jobId, table, nil
}
