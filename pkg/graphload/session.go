package graphload

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/opst/gdsremote/pkg/logger"
)

type phase int

const (
	phaseCreated phase = iota
	phaseNodes
	phaseRelationships
	phaseDone
	phaseAborted
)

func (p phase) String() string {
	switch p {
	case phaseCreated:
		return "created"
	case phaseNodes:
		return "loading nodes"
	case phaseRelationships:
		return "loading relationships"
	case phaseDone:
		return "done"
	case phaseAborted:
		return "aborted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Session is a graph construction in progress.
//
// Methods should be called in the order
//
//	Start -> PutNodes* -> NodesDone -> PutRelationships* -> Done
//
// or Abort at any point after Start. Calls out of this order fail with ErrPhase.
//
// Session is not safe for concurrent use.
type Session struct {
	ch        Channel
	graphName string
	database  string
	conf      *config
	logger    *log.Logger

	phase   phase
	started bool
}

// NewSession creates a construction session of graphName in database.
func NewSession(ch Channel, graphName, database string, options ...Option) *Session {
	conf := &config{chunkSize: DefaultChunkSize}
	for _, opt := range options {
		conf = opt(conf)
	}
	return &Session{
		ch:        ch,
		graphName: graphName,
		database:  database,
		conf:      conf,
		logger:    logger.OrNull(conf.logger),
		phase:     phaseCreated,
	}
}

func (s *Session) GraphName() string {
	return s.graphName
}

func (s *Session) expect(method string, p phase) error {
	if s.phase != p {
		return fmt.Errorf("%w: %s is called in phase %q (expected: %q)", ErrPhase, method, s.phase, p)
	}
	return nil
}

// Start sends CREATE_GRAPH.
func (s *Session) Start(ctx context.Context) error {
	if err := s.expect("Start", phaseCreated); err != nil {
		return err
	}
	if s.started {
		return fmt.Errorf("%w: Start is called twice", ErrPhase)
	}
	s.started = true

	if err := s.sendAction(ctx, ActionCreateGraph, createGraph{Name: s.graphName, DatabaseName: s.database}); err != nil {
		return err
	}
	s.phase = phaseNodes
	return nil
}

// PutNodes uploads a node table.
func (s *Session) PutNodes(ctx context.Context, table arrow.Record) error {
	if err := s.expect("PutNodes", phaseNodes); err != nil {
		return err
	}
	return s.putTable(ctx, EntityNode, table)
}

// NodesDone sends NODE_LOAD_DONE. No more node tables can be put after this.
func (s *Session) NodesDone(ctx context.Context) error {
	if err := s.expect("NodesDone", phaseNodes); err != nil {
		return err
	}
	if err := s.sendAction(ctx, ActionNodeLoadDone, graphRef{Name: s.graphName}); err != nil {
		return err
	}
	s.phase = phaseRelationships
	return nil
}

// PutRelationships uploads a relationship table.
func (s *Session) PutRelationships(ctx context.Context, table arrow.Record) error {
	if err := s.expect("PutRelationships", phaseRelationships); err != nil {
		return err
	}
	return s.putTable(ctx, EntityRelationship, table)
}

// Done sends RELATIONSHIP_LOAD_DONE and finishes the construction.
func (s *Session) Done(ctx context.Context) error {
	if err := s.expect("Done", phaseRelationships); err != nil {
		return err
	}
	if err := s.sendAction(ctx, ActionRelationshipLoadDone, graphRef{Name: s.graphName}); err != nil {
		return err
	}
	s.phase = phaseDone
	return nil
}

// Abort sends ABORT.
//
// It can be called once after Start is called (even if Start failed), and before Done succeeds.
func (s *Session) Abort(ctx context.Context) error {
	if !s.started || s.phase == phaseDone || s.phase == phaseAborted {
		return fmt.Errorf("%w: Abort is called in phase %q", ErrPhase, s.phase)
	}
	s.phase = phaseAborted
	return s.sendAction(ctx, ActionAbort, graphRef{Name: s.graphName})
}

type createGraph struct {
	Name         string `json:"name"`
	DatabaseName string `json:"database_name"`
}

type graphRef struct {
	Name string `json:"name"`
}

type uploadDescriptor struct {
	Name       string `json:"name"`
	EntityType string `json:"entity_type"`
}

func (s *Session) sendAction(ctx context.Context, actionType string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	reply, err := s.ch.DoAction(ctx, actionType, payload)
	if err != nil {
		return fmt.Errorf("%s for graph %s: %w", actionType, s.graphName, err)
	}

	var decoded any
	if err := json.Unmarshal(reply, &decoded); err != nil {
		return fmt.Errorf("%w: %s for graph %s: reply is not JSON: %w", ErrActionRejected, actionType, s.graphName, err)
	}
	if m, ok := decoded.(map[string]any); ok {
		if e, ok := m["error"]; ok && e != nil && e != "" {
			return fmt.Errorf("%w: %s for graph %s: %v", ErrActionRejected, actionType, s.graphName, e)
		}
	}
	s.logger.Printf("%s for graph %s: %s", actionType, s.graphName, reply)
	return nil
}

// putTable streams table in chunks. The stream is closed even if writing fails.
func (s *Session) putTable(ctx context.Context, entityType string, table arrow.Record) error {
	desc, err := json.Marshal(uploadDescriptor{Name: s.graphName, EntityType: entityType})
	if err != nil {
		return err
	}
	w, err := s.ch.PutStream(ctx, desc, table.Schema())
	if err != nil {
		return fmt.Errorf("uploading %s table of graph %s: %w", entityType, s.graphName, err)
	}

	rows := table.NumRows()
	for offset := int64(0); offset < rows; offset += s.conf.chunkSize {
		end := min(offset+s.conf.chunkSize, rows)
		chunk := table.NewSlice(offset, end)
		err := w.Write(chunk)
		chunk.Release()
		if err != nil {
			if cerr := w.Close(); cerr != nil {
				s.logger.Printf("closing %s stream of graph %s: %s", entityType, s.graphName, cerr)
			}
			return fmt.Errorf("uploading %s table of graph %s (rows %d-%d): %w", entityType, s.graphName, offset, end, err)
		}
		if s.conf.progress != nil {
			s.conf.progress(entityType, end-offset)
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("uploading %s table of graph %s: %w", entityType, s.graphName, err)
	}
	return nil
}
