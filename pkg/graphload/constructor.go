package graphload

import (
	"context"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/opst/gdsremote/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// abortTimeout bounds ABORT sent after the caller's context is done.
const abortTimeout = 30 * time.Second

// Constructor constructs a graph from node and relationship tables in one go.
type Constructor struct {
	ch        Channel
	graphName string
	database  string
	options   []Option
}

func NewConstructor(ch Channel, graphName, database string, options ...Option) *Constructor {
	return &Constructor{ch: ch, graphName: graphName, database: database, options: options}
}

// Run constructs the graph.
//
// When any step fails, Run sends ABORT and returns *ConstructionAbortedError wrapping the failure.
// A failure of ABORT itself is logged and recorded in the error, but never replaces the failure.
func (c *Constructor) Run(ctx context.Context, nodes, relationships []arrow.Record) (err error) {
	ctx, span := tracing.Start(
		ctx, "graphload.construct",
		attribute.String("graph", c.graphName),
		attribute.Int("node_tables", len(nodes)),
		attribute.Int("relationship_tables", len(relationships)),
	)
	defer func() { tracing.End(span, err) }()

	s := NewSession(c.ch, c.graphName, c.database, c.options...)
	if err := construct(ctx, s, nodes, relationships); err != nil {
		aborted := &ConstructionAbortedError{Graph: c.graphName, Err: err}

		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
		defer cancel()
		if aerr := s.Abort(actx); aerr != nil {
			s.logger.Printf("failed to abort construction of graph %s: %s", c.graphName, aerr)
			aborted.AbortErr = aerr
		}
		return aborted
	}
	return nil
}

func construct(ctx context.Context, s *Session, nodes, relationships []arrow.Record) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	for _, n := range nodes {
		if err := s.PutNodes(ctx, n); err != nil {
			return err
		}
	}
	if err := s.NodesDone(ctx); err != nil {
		return err
	}
	for _, r := range relationships {
		if err := s.PutRelationships(ctx, r); err != nil {
			return err
		}
	}
	return s.Done(ctx)
}

// Construct is a shorthand of NewConstructor(...).Run(...).
func Construct(ctx context.Context, ch Channel, graphName, database string, nodes, relationships []arrow.Record, options ...Option) error {
	return NewConstructor(ch, graphName, database, options...).Run(ctx, nodes, relationships)
}
