// Package runner provides a scripted procedure.Runner for tests.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opst/gdsremote/pkg/procedure"
)

// Call is a procedure call recorded by Scripted.
type Call struct {
	Endpoint string
	Params   *procedure.CallParameters
	Yields   []string
	At       time.Time
}

// Response is a scripted reply.
type Response struct {
	Table procedure.ResultTable
	Err   error
}

// Scripted replies with Responses in order and records every call.
//
// When responses run out, the last one is repeated.
// With no responses at all, it replies an empty table.
type Scripted struct {
	mu        sync.Mutex
	responses []Response
	calls     []Call
}

func New(responses ...Response) *Scripted {
	return &Scripted{responses: responses}
}

// Table makes a Response from rows. Columns are taken from the first row.
func Table(rows ...procedure.Record) Response {
	cols := []string{}
	if 0 < len(rows) {
		for k := range rows[0] {
			cols = append(cols, k)
		}
	}
	return Response{Table: procedure.ResultTable{Columns: cols, Rows: rows}}
}

func Fail(err error) Response {
	return Response{Err: err}
}

func (s *Scripted) CallProcedure(ctx context.Context, endpoint string, params *procedure.CallParameters, yields []string) (procedure.ResultTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Endpoint: endpoint, Params: params, Yields: yields, At: time.Now()})
	if err := ctx.Err(); err != nil {
		return procedure.ResultTable{}, err
	}

	if len(s.responses) == 0 {
		return procedure.ResultTable{}, nil
	}
	nth := len(s.calls) - 1
	if len(s.responses) <= nth {
		nth = len(s.responses) - 1
	}
	r := s.responses[nth]
	return r.Table, r.Err
}

// Calls returns recorded calls.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]Call, len(s.calls))
	copy(ret, s.calls)
	return ret
}

// Queries renders recorded calls as Cypher.
func (s *Scripted) Queries() []string {
	ret := []string{}
	for _, c := range s.Calls() {
		ret = append(ret, procedure.Query(c.Endpoint, c.Params, c.Yields))
	}
	return ret
}

func (s *Scripted) String() string {
	return fmt.Sprintf("Scripted{calls: %d, responses: %d}", len(s.Calls()), len(s.responses))
}
