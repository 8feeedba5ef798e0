package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Null returns a logger which discards everything.
//
// Components fall back to this when no logger is injected.
func Null() *log.Logger {
	return log.New(io.Discard, "", log.LstdFlags)
}

// Default returns the standard logger of the log package.
func Default() *log.Logger {
	return log.Default()
}

// Prefixed returns a logger writing to w, with the prefix "[name] ".
//
// If w is nil, os.Stderr is used.
func Prefixed(w io.Writer, name string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.New(w, fmt.Sprintf("[%s] ", name), log.LstdFlags)
}

// OrNull returns l, or Null() when l is nil.
func OrNull(l *log.Logger) *log.Logger {
	if l == nil {
		return Null()
	}
	return l
}
