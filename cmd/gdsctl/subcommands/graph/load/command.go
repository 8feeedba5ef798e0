package load

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/opst/gdsremote/cmd/gdsctl/subcommands/common"
	"github.com/opst/gdsremote/pkg/graphload"
	"github.com/opst/gdsremote/pkg/session"
	"github.com/opst/gdsremote/pkg/utils/args"
	"github.com/youta-t/flarc"

	pb "github.com/cheggaaa/pb/v3"
)

type Flag struct {
	Nodes         *args.Names                `flag:"nodes" alias:"n" metavar:"path/to/nodes.csv" help:"CSV file of nodes. Repeatable."`
	Relationships *args.Names                `flag:"relationships" alias:"r" metavar:"path/to/relationships.csv" help:"CSV file of relationships. Repeatable."`
	ChunkSize     *args.Adapter[args.Number] `flag:"chunk-size" metavar:"rows" help:"rows per upload chunk. Defaults to the profile's, or 10000."`
}

const ARG_GRAPH = "GRAPH_NAME"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Construct a graph on the session from CSV files.",
		Flag{
			Nodes:         &args.Names{},
			Relationships: &args.Names{},
			ChunkSize:     args.Int(),
		},
		flarc.Args{
			{
				Name: ARG_GRAPH, Required: true,
				Help: "name of the graph to be constructed.",
			},
		},
		common.NewTask(Task),
		flarc.WithDescription(`
Construct a graph on the session from CSV files.

CSV files should have a header line. Column types are inferred from their values.
Each file is uploaded as one table, split into chunks of --chunk-size rows.
Node files should have a "nodeId" column, and relationship files should have
"sourceNodeId" and "targetNodeId" columns.

When something goes wrong on the way, the construction is aborted.
`),
	)
}

func Task(
	ctx context.Context,
	l *log.Logger,
	sess *session.Session,
	cl flarc.Commandline[Flag],
	_ []any,
) error {
	graphName := cl.Args()[ARG_GRAPH][0]
	flags := cl.Flags()

	if flags.Nodes == nil || len(*flags.Nodes) == 0 {
		return fmt.Errorf("%w: at least one --nodes is required", flarc.ErrUsage)
	}
	chunkSize := flags.ChunkSize.ValueOr(0).Int()
	if chunkSize < 0 {
		return fmt.Errorf("%w: --chunk-size should be positive", flarc.ErrUsage)
	}

	nodes, err := readFiles(*flags.Nodes)
	if err != nil {
		return err
	}
	defer release(nodes)

	var relationships []arrow.Record
	if flags.Relationships != nil {
		relationships, err = readFiles(*flags.Relationships)
		if err != nil {
			return err
		}
		defer release(relationships)
	}

	nodeRows, relRows := rows(nodes), rows(relationships)
	bar := pb.New64(nodeRows + relRows)
	bar.SetWriter(cl.Stderr())
	if err := bar.Err(); err != nil {
		return err
	}

	l.Printf("constructing graph %s: %d nodes, %d relationships", graphName, nodeRows, relRows)
	bar.Start()
	err = sess.Construct(
		ctx, graphName, nodes, relationships,
		graphload.WithChunkSize(chunkSize),
		graphload.WithProgress(func(_ string, n int64) { bar.Add64(n) }),
	)
	bar.Finish()
	if err != nil {
		return err
	}

	l.Printf("[OK] graph %s is constructed", graphName)
	return nil
}

// ErrNoRows is returned for a CSV file which has a header only.
var ErrNoRows = errors.New("csv has no rows")

// ReadCSV reads CSV with header into one record.
//
// Chunking is left to the upload; the file is read in slices of readChunk rows
// and concatenated.
func ReadCSV(r io.Reader) (arrow.Record, error) {
	rdr := csv.NewInferringReader(r, csv.WithHeader(true), csv.WithChunk(readChunk))
	defer rdr.Release()

	parts := []arrow.Record{}
	defer func() { release(parts) }()
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		parts = append(parts, rec)
	}
	if err := rdr.Err(); err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, ErrNoRows
	}
	return concat(parts)
}

const readChunk = graphload.DefaultChunkSize

func concat(parts []arrow.Record) (arrow.Record, error) {
	if len(parts) == 1 {
		parts[0].Retain()
		return parts[0], nil
	}

	schema := parts[0].Schema()
	cols := make([]arrow.Array, 0, schema.NumFields())
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	for i := range schema.NumFields() {
		chunks := make([]arrow.Array, 0, len(parts))
		for _, p := range parts {
			chunks = append(chunks, p.Column(i))
		}
		col, err := array.Concatenate(chunks, memory.DefaultAllocator)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	return array.NewRecord(schema, cols, rows(parts)), nil
}

func readFiles(paths []string) ([]arrow.Record, error) {
	recs := []arrow.Record{}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			release(recs)
			return nil, err
		}
		r, err := ReadCSV(f)
		f.Close()
		if err != nil {
			release(recs)
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		recs = append(recs, r)
	}
	return recs, nil
}

func rows(recs []arrow.Record) int64 {
	n := int64(0)
	for _, r := range recs {
		n += r.NumRows()
	}
	return n
}

func release(recs []arrow.Record) {
	for _, r := range recs {
		r.Release()
	}
}
