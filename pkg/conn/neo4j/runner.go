package neo4j

import (
	"context"
	"errors"
	"fmt"
	"log"

	neo4jdrv "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/opst/gdsremote/pkg/logger"
	"github.com/opst/gdsremote/pkg/procedure"
)

// CodeProcedureNotFound is the status code the server replies for unknown procedures.
const CodeProcedureNotFound = "Neo.ClientError.Procedure.ProcedureNotFound"

// Runner is procedure.Runner over Bolt.
type Runner struct {
	exec   Executor
	logger *log.Logger
}

var _ procedure.Runner = &Runner{}

func NewRunner(exec Executor, l *log.Logger) *Runner {
	return &Runner{exec: exec, logger: logger.OrNull(l)}
}

func (r *Runner) CallProcedure(ctx context.Context, endpoint string, params *procedure.CallParameters, yields []string) (procedure.ResultTable, error) {
	query := procedure.Query(endpoint, params, yields)
	r.logger.Printf("running: %s", query)

	res, err := r.exec.ExecuteQuery(ctx, query, params.ToMap())
	if err != nil {
		return procedure.ResultTable{}, classify(endpoint, err)
	}

	table := procedure.ResultTable{
		Columns: res.Keys,
		Rows:    make([]procedure.Record, 0, len(res.Records)),
	}
	for _, rec := range res.Records {
		table.Rows = append(table.Rows, procedure.Record(rec.AsMap()))
	}
	return table, nil
}

func classify(endpoint string, err error) error {
	var nerr *neo4jdrv.Neo4jError
	if errors.As(err, &nerr) && nerr.Code == CodeProcedureNotFound {
		return fmt.Errorf("%w: %s: %w", procedure.ErrProcedureNotFound, endpoint, err)
	}
	return fmt.Errorf("neo4j: calling %s: %w", endpoint, err)
}
