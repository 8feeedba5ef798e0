package procedure

import (
	"context"
	"strings"
)

// CallBuilder builds a dotted procedure name step by step and calls it.
//
//	gds := NewCallBuilder(runner, "gds")
//	gds.Sub("graph", "drop").Call(ctx, NewCallParameters(P("graph_name", "g")))
//	// calls "gds.graph.drop"
//
// CallBuilder is a value; Sub returns a new builder and never changes the receiver.
type CallBuilder struct {
	runner Runner
	path   []string
}

// NewCallBuilder returns a builder rooted at namespace.
func NewCallBuilder(runner Runner, namespace string) CallBuilder {
	return CallBuilder{runner: runner}.Sub(namespace)
}

// Sub appends names to the path.
//
// Each name may be dotted ("graph.project").
func (b CallBuilder) Sub(names ...string) CallBuilder {
	path := make([]string, len(b.path), len(b.path)+len(names))
	copy(path, b.path)
	for _, n := range names {
		for _, seg := range strings.Split(n, ".") {
			if seg == "" {
				continue
			}
			path = append(path, seg)
		}
	}
	return CallBuilder{runner: b.runner, path: path}
}

// Name returns the accumulated procedure name.
func (b CallBuilder) Name() string {
	return strings.Join(b.path, ".")
}

// Call calls the procedure which has the accumulated name.
func (b CallBuilder) Call(ctx context.Context, params *CallParameters, yields ...string) (ResultTable, error) {
	return b.runner.CallProcedure(ctx, b.Name(), params, yields)
}
