package jobs

import (
	"fmt"
	"net/http"
)

type StatusCodeRange int

const (
	StatusUnknown StatusCodeRange = iota
	Status1xx
	Status2xx
	Status3xx
	Status4xx
	Status5xx
)

func (sc StatusCodeRange) String() string {
	switch sc {
	case Status1xx:
		return "informational response"
	case Status2xx:
		return "success"
	case Status3xx:
		return "redirect"
	case Status4xx:
		return "client error"
	case Status5xx:
		return "server error"
	default:
		return fmt.Sprintf("unknown (%d)", sc)
	}
}

func StatusCodeRangeOf(code int) StatusCodeRange {
	switch {
	case code < 100:
		return StatusUnknown
	case code < 200:
		return Status1xx
	case code < 300:
		return Status2xx
	case code < 400:
		return Status3xx
	case code < 500:
		return Status4xx
	case code < 600:
		return Status5xx
	default:
		return StatusUnknown
	}
}

func statusCodeRangeOfResponse(resp *http.Response) StatusCodeRange {
	return StatusCodeRangeOf(resp.StatusCode)
}
