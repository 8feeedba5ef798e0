// Package try shortens (value, error) handling in tests.
//
//	client := try.To(jobs.NewClient(baseURL)).OrFatal(t)
package try

// Fataler is something having Fatal, like *testing.T or *log.Logger.
type Fataler interface {
	Fatal(...any)
}

// Either wraps a pair of (T, error).
type Either[T any] interface {
	// Get returns the wrapped pair as is.
	Get() (T, error)

	// OrFatal returns the value, or calls ftl.Fatal(err) when the pair has error.
	//
	// If ftl has "Helper()" method (like *testing.T), it is called before `Fatal`.
	OrFatal(ftl Fataler) T
}

func To[T any](value T, err error) Either[T] {
	return either[T]{value: value, err: err}
}

type either[T any] struct {
	value T
	err   error
}

func (e either[T]) Get() (T, error) {
	return e.value, e.err
}

func (e either[T]) OrFatal(ftl Fataler) T {
	if e.err == nil {
		return e.value
	}
	if hlp, ok := ftl.(interface{ Helper() }); ok {
		hlp.Helper()
	}
	ftl.Fatal(e.err)
	return *new(T)
}
