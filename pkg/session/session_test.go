package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/opst/gdsremote/internal/testutils/runner"
	"github.com/opst/gdsremote/internal/testutils/try"
	"github.com/opst/gdsremote/pkg/graphload"
	"github.com/opst/gdsremote/pkg/procedure"
	"github.com/opst/gdsremote/pkg/protocol"
	"github.com/opst/gdsremote/pkg/session"
	"github.com/opst/gdsremote/pkg/writeback"
)

func versions(tags ...string) runner.Response {
	rows := []procedure.Record{}
	for _, t := range tags {
		rows = append(rows, procedure.Record{"version": t})
	}
	return runner.Table(rows...)
}

var notFound = runner.Fail(fmt.Errorf("%w: gds.session.dbms.protocol.version", procedure.ErrProcedureNotFound))

func TestStart(t *testing.T) {
	type when struct {
		resolved runner.Response
	}
	type then struct {
		version  protocol.ProtocolVersion
		versions []protocol.ProtocolVersion
	}
	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			r := runner.New(when.resolved)
			testee := try.To(session.Start(
				context.Background(), session.Components{Runner: r}, nil,
			)).OrFatal(t)

			if testee.Version() != then.version {
				t.Errorf("version: actual = %s, expected = %s", testee.Version(), then.version)
			}
			if testee.WriteBackProtocol().Version() != then.version {
				t.Errorf("write-back protocol: actual = %s", testee.WriteBackProtocol().Version())
			}
			actual := testee.ProtocolVersions()
			if len(actual) != len(then.versions) {
				t.Fatalf("versions: actual = %v, expected = %v", actual, then.versions)
			}
			for i := range actual {
				if actual[i] != then.versions[i] {
					t.Errorf("versions: actual = %v, expected = %v", actual, then.versions)
				}
			}
			if testee.Database() != session.DefaultDatabase {
				t.Errorf("database: actual = %s", testee.Database())
			}
		}
	}

	t.Run("the latest of announced versions is selected", theory(
		when{resolved: versions("v2", "v3", "v1")},
		then{
			version:  protocol.V3,
			versions: []protocol.ProtocolVersion{protocol.V2, protocol.V3, protocol.V1},
		},
	))
	t.Run("an old server speaks v1", theory(
		when{resolved: notFound},
		then{version: protocol.V1, versions: []protocol.ProtocolVersion{protocol.V1}},
	))

	t.Run("resolution errors fail the start", func(t *testing.T) {
		expected := errors.New("connection reset")
		_, err := session.Start(
			context.Background(),
			session.Components{Runner: runner.New(runner.Fail(expected))},
			nil,
		)
		if !errors.Is(err, expected) {
			t.Errorf("actual error = %v", err)
		}
	})

	t.Run("no versions fail the start", func(t *testing.T) {
		_, err := session.Start(
			context.Background(),
			session.Components{Runner: runner.New(versions())},
			nil,
		)
		if !errors.Is(err, protocol.ErrUnsupportedProtocol) {
			t.Errorf("actual error = %v", err)
		}
	})
}

func TestSession_WriteBack(t *testing.T) {
	t.Run("v1 session calls the unversioned procedure with its database", func(t *testing.T) {
		r := runner.New(notFound, runner.Table(procedure.Record{"writeMillis": int64(3)}))
		testee := try.To(session.Start(
			context.Background(), session.Components{Runner: r, Database: "movies"}, nil,
		)).OrFatal(t)

		jobId, _, err := testee.WriteBack(context.Background(), writeback.Request{GraphName: "g"})
		if err != nil {
			t.Fatal(err)
		}

		calls := r.Calls()
		if len(calls) != 2 {
			t.Fatalf("calls: %+v", calls)
		}
		wb := calls[1]
		if wb.Endpoint != "gds.arrow.write" {
			t.Errorf("endpoint: %s", wb.Endpoint)
		}
		if db, _ := wb.Params.Get("databaseName"); db != "movies" {
			t.Errorf("databaseName: %v", db)
		}
		if id, _ := wb.Params.Get("jobId"); id != jobId || jobId == "" {
			t.Errorf("jobId: param = %v, returned = %s", id, jobId)
		}
	})

	t.Run("v2 session calls the v2 procedure", func(t *testing.T) {
		r := runner.New(versions("v1", "v2"), runner.Table())
		testee := try.To(session.Start(
			context.Background(), session.Components{Runner: r}, nil,
		)).OrFatal(t)

		if _, _, err := testee.WriteBack(context.Background(), writeback.Request{
			GraphName: "g", JobId: "job-1",
		}); err != nil {
			t.Fatal(err)
		}

		calls := r.Calls()
		if calls[len(calls)-1].Endpoint != "gds.arrow.write.v2" {
			t.Errorf("endpoint: %s", calls[len(calls)-1].Endpoint)
		}
		if calls[len(calls)-1].Params.Has("databaseName") {
			t.Errorf("v2 should not send databaseName: %s", calls[len(calls)-1].Params)
		}
	})
}

func TestSession_GDS(t *testing.T) {
	r := runner.New(notFound, runner.Table())
	testee := try.To(session.Start(
		context.Background(), session.Components{Runner: r}, nil,
	)).OrFatal(t)

	if _, err := testee.GDS().Sub("graph.drop").Call(
		context.Background(), procedure.NewCallParameters(procedure.P("graph_name", "g")),
	); err != nil {
		t.Fatal(err)
	}

	calls := r.Calls()
	if calls[len(calls)-1].Endpoint != "gds.graph.drop" {
		t.Errorf("endpoint: %s", calls[len(calls)-1].Endpoint)
	}
}

func TestSession_GDSWithProgress(t *testing.T) {
	r := runner.New(notFound, runner.Table())
	testee := try.To(session.Start(
		context.Background(), session.Components{Runner: r}, nil,
	)).OrFatal(t)

	conf := map[string]any{}
	if _, err := testee.GDSWithProgress(new(strings.Builder)).Sub("wcc.write").Call(
		context.Background(), procedure.NewCallParameters(
			procedure.P("graph_name", "g"), procedure.P("config", conf),
		),
	); err != nil {
		t.Fatal(err)
	}

	if id, _ := conf["jobId"].(string); id == "" {
		t.Errorf("job id is not set: %v", conf)
	}
	found := false
	for _, c := range r.Calls() {
		if c.Endpoint == "gds.wcc.write" {
			found = true
		}
	}
	if !found {
		t.Errorf("calls: %v", r.Queries())
	}
}

type recordingChannel struct {
	actions []string
	bodies  []map[string]any
	rows    int64
}

func (c *recordingChannel) DoAction(_ context.Context, actionType string, body []byte) ([]byte, error) {
	c.actions = append(c.actions, actionType)
	b := map[string]any{}
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, err
	}
	c.bodies = append(c.bodies, b)
	return []byte(`{}`), nil
}

func (c *recordingChannel) PutStream(context.Context, []byte, *arrow.Schema) (graphload.StreamWriter, error) {
	return c, nil
}

func (c *recordingChannel) Write(rec arrow.Record) error {
	c.rows += rec.NumRows()
	return nil
}

func (c *recordingChannel) Close() error { return nil }

func ids(n int) arrow.Record {
	b := array.NewRecordBuilder(memory.DefaultAllocator, arrow.NewSchema(
		[]arrow.Field{{Name: "nodeId", Type: arrow.PrimitiveTypes.Int64}}, nil,
	))
	defer b.Release()
	for i := 0; i < n; i++ {
		b.Field(0).(*array.Int64Builder).Append(int64(i))
	}
	return b.NewRecord()
}

func TestSession_Construct(t *testing.T) {
	t.Run("without channel, it is ErrNoChannel", func(t *testing.T) {
		testee := try.To(session.Start(
			context.Background(), session.Components{Runner: runner.New(notFound)}, nil,
		)).OrFatal(t)

		if err := testee.Construct(context.Background(), "g", nil, nil); !errors.Is(err, session.ErrNoChannel) {
			t.Errorf("actual error = %v", err)
		}
		if _, err := testee.StreamNodeProperty(context.Background(), "g", "score"); !errors.Is(err, session.ErrNoChannel) {
			t.Errorf("actual error = %v", err)
		}
		if _, err := testee.KGE(); !errors.Is(err, session.ErrNoCluster) {
			t.Errorf("actual error = %v", err)
		}
	})

	t.Run("it constructs on the session database with the session chunk size", func(t *testing.T) {
		ch := &recordingChannel{}
		testee := try.To(session.Start(
			context.Background(),
			session.Components{Runner: runner.New(notFound), Channel: ch, Database: "movies", ChunkSize: 2},
			nil,
		)).OrFatal(t)

		chunks := 0
		nodes := ids(5)
		defer nodes.Release()
		if err := testee.Construct(
			context.Background(), "g", []arrow.Record{nodes}, nil,
			graphload.WithProgress(func(string, int64) { chunks++ }),
		); err != nil {
			t.Fatal(err)
		}

		expected := []string{
			graphload.ActionCreateGraph, graphload.ActionNodeLoadDone, graphload.ActionRelationshipLoadDone,
		}
		if fmt.Sprint(ch.actions) != fmt.Sprint(expected) {
			t.Errorf("actions: actual = %v, expected = %v", ch.actions, expected)
		}
		if db := ch.bodies[0]["database_name"]; db != "movies" {
			t.Errorf("database_name: %v", db)
		}
		if ch.rows != 5 {
			t.Errorf("rows: %d", ch.rows)
		}
		if chunks != 3 {
			t.Errorf("chunks: %d", chunks)
		}
	})
}
