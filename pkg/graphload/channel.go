// Package graphload constructs a graph on the remote session by streaming node and
// relationship tables over Arrow Flight.
//
// A construction is a handshake:
//
//	CREATE_GRAPH -> node tables... -> NODE_LOAD_DONE -> relationship tables... -> RELATIONSHIP_LOAD_DONE
//
// and ABORT when something goes wrong on the way.
package graphload

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
)

// Actions of the construction handshake.
const (
	ActionCreateGraph          = "CREATE_GRAPH"
	ActionNodeLoadDone         = "NODE_LOAD_DONE"
	ActionRelationshipLoadDone = "RELATIONSHIP_LOAD_DONE"
	ActionAbort                = "ABORT"
)

// Entity types in upload descriptors.
const (
	EntityNode         = "node"
	EntityRelationship = "relationship"
)

// StreamWriter writes record batches into an upload stream.
type StreamWriter interface {
	Write(arrow.Record) error

	// Close finishes the stream. It should be called even if Write fails.
	Close() error
}

// Channel is the bulk transport towards the session.
type Channel interface {
	// DoAction sends an action and returns its single reply body.
	DoAction(ctx context.Context, actionType string, body []byte) ([]byte, error)

	// PutStream opens an upload stream described by descriptor, for records having schema.
	PutStream(ctx context.Context, descriptor []byte, schema *arrow.Schema) (StreamWriter, error)
}

// RecordReader reads record batches from a download stream.
//
// Records returned by Record are valid until the next call of Next.
type RecordReader interface {
	Schema() *arrow.Schema
	Next() bool
	Record() arrow.Record
	Err() error
	Release()
}

// Getter downloads a stream identified by ticket.
type Getter interface {
	GetStream(ctx context.Context, ticket []byte) (RecordReader, error)
}
