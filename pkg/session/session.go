// Package session opens a graph analytics session: it negotiates the protocol
// version and wires procedure calls, graph construction, write-back and jobs together.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/opst/gdsremote/pkg/configs"
	"github.com/opst/gdsremote/pkg/conn/flight"
	"github.com/opst/gdsremote/pkg/conn/neo4j"
	"github.com/opst/gdsremote/pkg/graphload"
	"github.com/opst/gdsremote/pkg/jobs"
	"github.com/opst/gdsremote/pkg/kge"
	"github.com/opst/gdsremote/pkg/logger"
	"github.com/opst/gdsremote/pkg/procedure"
	"github.com/opst/gdsremote/pkg/progress"
	"github.com/opst/gdsremote/pkg/protocol"
	"github.com/opst/gdsremote/pkg/writeback"
)

// DefaultDatabase is the database used when nothing is configured.
const DefaultDatabase = "neo4j"

// ErrNoChannel is returned when an operation needs Arrow Flight but the session has none.
var ErrNoChannel = errors.New("session: arrow flight is not connected")

// ErrNoCluster is returned when an operation needs the compute cluster but the session has none.
var ErrNoCluster = errors.New("session: compute cluster is not configured")

// Components are the connections a Session works with.
//
// Runner is required. Others are optional; operations needing a missing one fail.
type Components struct {
	Runner procedure.Runner

	// Channel for graph construction. If it also implements graphload.Getter,
	// properties can be streamed with it.
	Channel graphload.Channel

	Orchestrator *jobs.Orchestrator
	KGE          kge.Config

	// Database name. Empty means DefaultDatabase.
	Database string

	// ChunkSize of uploads. 0 means the default.
	ChunkSize int
}

// Session is a started session.
type Session struct {
	comps     Components
	versions  []protocol.ProtocolVersion
	version   protocol.ProtocolVersion
	writeback writeback.Protocol
	kge       *kge.Runner
	logger    *log.Logger
	closers   []func(context.Context) error
}

// Start resolves protocol versions the session speaks and selects the latest one.
func Start(ctx context.Context, comps Components, l *log.Logger) (*Session, error) {
	l = logger.OrNull(l)
	if comps.Runner == nil {
		return nil, errors.New("session: procedure runner is required")
	}
	if comps.Database == "" {
		comps.Database = DefaultDatabase
	}

	versions, err := protocol.NewResolver(comps.Runner, l).ProtocolVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: cannot resolve protocol versions: %w", err)
	}
	latest, err := protocol.Latest(versions)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	wb, err := writeback.For(latest)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	l.Printf("session speaks protocol %s (server supports %v)", latest, versions)

	s := &Session{
		comps:     comps,
		versions:  versions,
		version:   latest,
		writeback: wb,
		logger:    l,
	}
	if comps.Orchestrator != nil {
		s.kge = kge.NewRunner(comps.Orchestrator, comps.KGE, l)
	}
	return s, nil
}

// Open connects to everything the profile describes and starts a session.
func Open(ctx context.Context, prof *configs.Profile, l *log.Logger) (*Session, error) {
	l = logger.OrNull(l)
	if err := prof.Verify(); err != nil {
		return nil, err
	}

	var closers []func(context.Context) error
	fail := func(err error) (*Session, error) {
		for i := len(closers) - 1; 0 <= i; i-- {
			if cerr := closers[i](ctx); cerr != nil {
				l.Printf("cannot close: %v", cerr)
			}
		}
		return nil, err
	}

	drv, err := neo4j.Open(ctx, neo4j.Config{
		URI:      prof.Bolt.URI,
		Username: prof.Bolt.Username,
		Password: prof.Bolt.Password,
		Database: prof.Bolt.Database,
	})
	if err != nil {
		return fail(err)
	}
	closers = append(closers, drv.Close)

	fc, err := flight.Dial(ctx, flight.Config{
		Address:                   prof.Arrow.Address,
		TLS:                       prof.Arrow.TLS,
		DisableServerVerification: prof.Arrow.DisableServerVerification,
		RootCerts:                 prof.Arrow.RootCerts,
		Username:                  prof.Bolt.Username,
		Password:                  prof.Bolt.Password,
	}, l)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func(context.Context) error { return fc.Close() })

	jc, err := jobs.NewClient(jobs.WebURI(prof.ComputeCluster), jobs.WithClientLogger(l))
	if err != nil {
		return fail(err)
	}
	orchOpts := []jobs.OrchestratorOption{jobs.WithLogger(l)}
	if prof.PollInterval > 0 {
		orchOpts = append(orchOpts, jobs.WithPollInterval(prof.PollInterval))
	}

	s, err := Start(ctx, Components{
		Runner:       neo4j.NewRunner(drv, l),
		Channel:      fc,
		Orchestrator: jobs.NewOrchestrator(jc, orchOpts...),
		KGE: kge.Config{
			ComputeClusterHost:  prof.ComputeCluster,
			ArrowURI:            prof.Arrow.Address,
			EncryptedDBPassword: prof.EncryptedDBPassword,
		},
		Database:  drv.Database(),
		ChunkSize: prof.ChunkSize,
	}, l)
	if err != nil {
		return fail(err)
	}
	s.closers = closers
	return s, nil
}

// Version is the protocol version this session speaks.
func (s *Session) Version() protocol.ProtocolVersion {
	return s.version
}

// ProtocolVersions are versions the server announced, in its order.
func (s *Session) ProtocolVersions() []protocol.ProtocolVersion {
	return append([]protocol.ProtocolVersion{}, s.versions...)
}

// WriteBackProtocol is the write-back dialect of the negotiated version.
func (s *Session) WriteBackProtocol() writeback.Protocol {
	return s.writeback
}

// Database is the database name this session works on.
func (s *Session) Database() string {
	return s.comps.Database
}

// GDS returns a call builder rooted at "gds".
func (s *Session) GDS() procedure.CallBuilder {
	return procedure.NewCallBuilder(s.comps.Runner, "gds")
}

// GDSWithProgress is GDS which draws progress of calls having "config" to out.
func (s *Session) GDSWithProgress(out io.Writer, options ...progress.Option) procedure.CallBuilder {
	opts := append([]progress.Option{progress.WithLogger(s.logger)}, options...)
	return procedure.NewCallBuilder(progress.New(s.comps.Runner, out, opts...), "gds")
}

// KGE returns the KGE runner, or ErrNoCluster.
func (s *Session) KGE() (*kge.Runner, error) {
	if s.kge == nil {
		return nil, ErrNoCluster
	}
	return s.kge, nil
}

func (s *Session) loadOptions(options []graphload.Option) []graphload.Option {
	opts := []graphload.Option{graphload.WithLogger(s.logger)}
	if s.comps.ChunkSize > 0 {
		opts = append(opts, graphload.WithChunkSize(s.comps.ChunkSize))
	}
	return append(opts, options...)
}

// Construct uploads nodes and relationships as a new graph.
func (s *Session) Construct(ctx context.Context, graphName string, nodes, relationships []arrow.Record, options ...graphload.Option) error {
	if s.comps.Channel == nil {
		return ErrNoChannel
	}
	return graphload.Construct(ctx, s.comps.Channel, graphName, s.comps.Database, nodes, relationships, s.loadOptions(options)...)
}

// NewGraphSession returns a phased graph construction over the session's channel.
//
// Nothing is sent until its Start is called.
func (s *Session) NewGraphSession(graphName string, options ...graphload.Option) (*graphload.Session, error) {
	if s.comps.Channel == nil {
		return nil, ErrNoChannel
	}
	return graphload.NewSession(s.comps.Channel, graphName, s.comps.Database, s.loadOptions(options)...), nil
}

func (s *Session) getter() (graphload.Getter, error) {
	g, ok := s.comps.Channel.(graphload.Getter)
	if !ok {
		return nil, ErrNoChannel
	}
	return g, nil
}

// StreamNodeProperty reads a node property of the graph.
func (s *Session) StreamNodeProperty(ctx context.Context, graphName, property string) ([]arrow.Record, error) {
	g, err := s.getter()
	if err != nil {
		return nil, err
	}
	return graphload.StreamProperty(ctx, g, graphload.NodePropertyTicket(s.comps.Database, graphName, property))
}

// StreamRelationshipProperty reads a relationship property of the graph.
func (s *Session) StreamRelationshipProperty(ctx context.Context, graphName, property string) ([]arrow.Record, error) {
	g, err := s.getter()
	if err != nil {
		return nil, err
	}
	return graphload.StreamProperty(ctx, g, graphload.RelationshipPropertyTicket(s.comps.Database, graphName, property))
}

// WriteBack writes the graph back with the negotiated protocol.
//
// Empty req.Database is filled with the session's database.
func (s *Session) WriteBack(ctx context.Context, req writeback.Request) (string, procedure.ResultTable, error) {
	if req.Database == "" {
		req.Database = s.comps.Database
	}
	return writeback.WriteBack(ctx, s.comps.Runner, s.version, req, s.logger)
}

// Close releases connections opened by Open.
func (s *Session) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; 0 <= i; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
