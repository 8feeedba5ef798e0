package procedure

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"
)

// ErrNoConfig is returned when job id is requested from parameters without "config".
var ErrNoConfig = errors.New("config is not set")

// Param is a named argument of a procedure call.
type Param struct {
	Name  string
	Value any
}

// P makes a Param.
func P(name string, value any) Param {
	return Param{Name: name, Value: value}
}

// CallParameters is an ordered set of arguments for a procedure call.
//
// Parameters keep the order they were first set in.
// The order is the order of placeholders in the procedure call.
type CallParameters struct {
	keys   []string
	values map[string]any
}

// NewCallParameters creates CallParameters with params in the given order.
//
// When a name appears twice, the later value wins but the first position is kept.
func NewCallParameters(params ...Param) *CallParameters {
	p := &CallParameters{
		keys:   []string{},
		values: map[string]any{},
	}
	for _, param := range params {
		p.Set(param.Name, param.Value)
	}
	return p
}

// Set sets a parameter. New names are appended at the end.
func (p *CallParameters) Set(name string, value any) {
	if _, ok := p.values[name]; !ok {
		p.keys = append(p.keys, name)
	}
	p.values[name] = value
}

func (p *CallParameters) Get(name string) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.values[name]
	return v, ok
}

// Has reports whether the parameter named name exists.
func (p *CallParameters) Has(name string) bool {
	_, ok := p.Get(name)
	return ok
}

// Keys returns names of parameters in order.
func (p *CallParameters) Keys() []string {
	if p == nil {
		return nil
	}
	ret := make([]string, len(p.keys))
	copy(ret, p.keys)
	return ret
}

func (p *CallParameters) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// All iterates parameters in order.
func (p *CallParameters) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if p == nil {
			return
		}
		for _, k := range p.keys {
			if !yield(k, p.values[k]) {
				return
			}
		}
	}
}

// ToMap returns a copy of parameters as a plain map.
func (p *CallParameters) ToMap() map[string]any {
	ret := map[string]any{}
	for k, v := range p.All() {
		ret[k] = v
	}
	return ret
}

// PlaceholderString renders parameters as query placeholders, like "$graphName, $jobId".
func (p *CallParameters) PlaceholderString() string {
	placeholders := make([]string, 0, p.Len())
	for k := range p.All() {
		placeholders = append(placeholders, "$"+k)
	}
	return strings.Join(placeholders, ", ")
}

func (p *CallParameters) String() string {
	items := make([]string, 0, p.Len())
	for k, v := range p.All() {
		items = append(items, fmt.Sprintf("%s=%v", k, v))
	}
	return "CallParameters{" + strings.Join(items, ", ") + "}"
}

var jobIdKeys = []string{"jobId", "job_id"}

func (p *CallParameters) config() (map[string]any, bool) {
	c, ok := p.Get("config")
	if !ok {
		return nil, false
	}
	m, ok := c.(map[string]any)
	return m, ok
}

// JobId returns the job id in the "config" parameter ("jobId" or "job_id").
//
// The second return value is false if it is not set or empty.
func (p *CallParameters) JobId() (string, bool) {
	conf, ok := p.config()
	if !ok {
		return "", false
	}
	for _, k := range jobIdKeys {
		if id, ok := conf[k].(string); ok && id != "" {
			return id, true
		}
	}
	return "", false
}

// EnsureJobId returns the job id in the "config" parameter,
// generating a new one when it is not set.
//
// # Returns
//
// - string: job id
//
// - error: ErrNoConfig when there is no "config" parameter.
func (p *CallParameters) EnsureJobId() (string, error) {
	conf, ok := p.config()
	if !ok {
		return "", ErrNoConfig
	}
	if id, ok := p.JobId(); ok {
		return id, nil
	}

	key := jobIdKeys[0]
	for _, k := range jobIdKeys {
		if _, ok := conf[k]; ok {
			key = k
			break
		}
	}
	id := uuid.NewString()
	conf[key] = id
	return id, nil
}
