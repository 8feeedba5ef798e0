// Package procedure describes remote procedure calls: their parameters, their results
// and the Runner which executes them.
package procedure

import (
	"context"
	"errors"
	"strings"
)

// ErrProcedureNotFound is wrapped by Runners when the server does not know the procedure.
var ErrProcedureNotFound = errors.New("procedure not found")

// Runner executes a remote procedure.
type Runner interface {
	// CallProcedure calls the procedure endpoint with params.
	//
	// # Args
	//
	// - context.Context
	//
	// - endpoint: fully qualified procedure name, like "gds.arrow.write.v2".
	//
	// - params: arguments. nil means no arguments.
	//
	// - yields: columns to be yielded. nil or empty means all columns.
	//
	// # Returns
	//
	// - ResultTable: yielded records.
	//
	// - error: If the procedure does not exist, the error wraps ErrProcedureNotFound.
	CallProcedure(ctx context.Context, endpoint string, params *CallParameters, yields []string) (ResultTable, error)
}

// Query renders a procedure call as a Cypher statement.
//
//	Query("gds.graph.drop", NewCallParameters(P("graph_name", "g")), []string{"graphName"})
//	// => "CALL gds.graph.drop($graph_name) YIELD graphName"
func Query(endpoint string, params *CallParameters, yields []string) string {
	sb := new(strings.Builder)
	sb.WriteString("CALL ")
	sb.WriteString(endpoint)
	sb.WriteString("(")
	sb.WriteString(params.PlaceholderString())
	sb.WriteString(")")
	if 0 < len(yields) {
		sb.WriteString(" YIELD ")
		sb.WriteString(strings.Join(yields, ", "))
	}
	return sb.String()
}
