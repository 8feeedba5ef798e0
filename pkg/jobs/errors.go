package jobs

import (
	"fmt"
	"strings"
)

// Verbose is an error which can explain itself in detail.
type Verbose interface {
	Verbose() string
}

// TransportError is a failure of talking with the compute cluster.
//
// It is also returned for non-2xx responses, with StatusCode and the server message.
type TransportError struct {
	// Summary of what failed, like "cannot start job".
	Summary string

	// StatusCode of the response. 0 when no response is received.
	StatusCode int

	// ServerMessage is the response body (or its "message" part).
	ServerMessage string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *TransportError) Range() StatusCodeRange {
	return StatusCodeRangeOf(e.StatusCode)
}

func (e *TransportError) Error() string {
	msg := e.Summary
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status code = %d: %s)", msg, e.StatusCode, e.Range())
	}
	if e.ServerMessage != "" {
		msg = msg + "\n" + e.ServerMessage
	}
	if e.Cause != nil && e.StatusCode == 0 {
		msg = msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

func (e *TransportError) Verbose() string {
	message := []string{e.Error()}
	switch base := e.Cause.(type) {
	case nil:
	case Verbose:
		message = append(message, "caused by: ", base.Verbose())
	default:
		message = append(message, "caused by: ", base.Error())
	}
	return strings.Join(message, "\n")
}

// JobValidationFailure means the cluster rejected the job's configuration (HTTP 400).
type JobValidationFailure struct {
	JobId  string
	Errors []string
}

func (e *JobValidationFailure) Error() string {
	return failureMessage(e.JobId, e.Errors)
}

// JobExecutionFailure means the job failed while running.
type JobExecutionFailure struct {
	JobId      string
	StatusCode int
	Errors     []string
}

func (e *JobExecutionFailure) Error() string {
	return failureMessage(e.JobId, e.Errors)
}

func failureMessage(jobId string, errs []string) string {
	return fmt.Sprintf("job %s failed with errors:\n%s", jobId, strings.Join(errs, "\n"))
}
