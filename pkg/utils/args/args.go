// Package args provides flag.Value types for command line flags.
package args

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Adapter makes a flag.Value from a parser.
type Adapter[T interface{ String() string }] struct {
	value  T
	parser func(string) (T, error)
	isSet  bool
}

func (i *Adapter[T]) String() string {
	if i.isSet {
		return i.value.String()
	}
	return ""
}

func (i *Adapter[T]) Set(s string) error {
	v, err := i.parser(s)
	if err != nil {
		return err
	}
	i.isSet = true
	i.value = v
	return nil
}

func (i Adapter[T]) Value() T {
	return i.value
}

func (i Adapter[T]) IsSet() bool {
	return i.isSet
}

// ValueOr returns the value if set, otherwise def.
func (i *Adapter[T]) ValueOr(def T) T {
	if i == nil || !i.isSet {
		return def
	}
	return i.value
}

func Parser[T interface{ String() string }](parser func(string) (T, error)) *Adapter[T] {
	return &Adapter[T]{parser: parser}
}

// Number is an integer flag value.
type Number int64

func (n Number) String() string {
	return strconv.FormatInt(int64(n), 10)
}

func (n Number) Int() int {
	return int(n)
}

// ParseNumber parses a decimal integer.
func ParseNumber(s string) (Number, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("the value should be an integer: %s", s)
	}
	return Number(v), nil
}

// Int is a flag of Number.
func Int() *Adapter[Number] {
	return Parser(ParseNumber)
}

// Duration is a flag of time.Duration, like "1s" or "500ms".
func Duration() *Adapter[time.Duration] {
	return Parser(time.ParseDuration)
}

// Numbers is a repeatable flag of integers.
//
// Each occurrence may hold comma separated values: "--id 1,2 --id 3" means [1 2 3].
type Numbers []int64

func (ns *Numbers) String() string {
	if ns == nil {
		return ""
	}
	s := make([]string, 0, len(*ns))
	for _, n := range *ns {
		s = append(s, strconv.FormatInt(n, 10))
	}
	return strings.Join(s, ",")
}

func (ns *Numbers) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		n, err := ParseNumber(s)
		if err != nil {
			return err
		}
		*ns = append(*ns, int64(n))
	}
	return nil
}

// Names is a repeatable flag of strings. Each occurrence may hold comma separated values.
type Names []string

func (ns *Names) String() string {
	if ns == nil {
		return ""
	}
	return strings.Join(*ns, ",")
}

func (ns *Names) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			return fmt.Errorf("empty name in %q", v)
		}
		*ns = append(*ns, s)
	}
	return nil
}

// KeyValue is an element of Params.
type KeyValue struct {
	Key   string
	Value any
}

// Params is a repeatable flag of "name=value" pairs, kept in the given order.
//
// Values are read as JSON, like `config={"concurrency": 4}`.
// A value which is not JSON is taken as a string.
// Integral numbers are int64 and others are float64.
type Params []KeyValue

func (ps *Params) String() string {
	if ps == nil {
		return ""
	}
	s := make([]string, 0, len(*ps))
	for _, kv := range *ps {
		v, err := json.Marshal(kv.Value)
		if err != nil {
			v = []byte(fmt.Sprint(kv.Value))
		}
		s = append(s, kv.Key+"="+string(v))
	}
	return strings.Join(s, " ")
}

func (ps *Params) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("parameter should be NAME=VALUE: %q", v)
	}
	*ps = append(*ps, KeyValue{Key: key, Value: parseValue(value)})
	return nil
}

func parseValue(s string) any {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return s
	}
	return numbers(v)
}

func numbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = numbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = numbers(e)
		}
		return x
	default:
		return v
	}
}
