package jobs

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// MessageFor is a summary of error for each status code range.
type MessageFor map[StatusCodeRange]string

func (m MessageFor) summary(scr StatusCodeRange) string {
	if message, ok := m[scr]; ok {
		return message
	}
	return scr.String()
}

// unmarshalJsonResponse decodes a json response into v.
//
// returns *TransportError if...
//   - the status code is not 2xx
//   - the body cannot be read, or is not shaped of v
func unmarshalJsonResponse[T any](resp *http.Response, v *T, messageFor MessageFor) error {
	scr := statusCodeRangeOfResponse(resp)
	if scr == Status2xx {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return &TransportError{
				Summary:    fmt.Sprintf("unexpected response: %s", err),
				StatusCode: resp.StatusCode,
				Cause:      err,
			}
		}
		return nil
	}
	return errorResponse(resp, messageFor)
}

// unmarshalStreamResponse returns the body of 2xx response as is.
//
// The caller should close it.
func unmarshalStreamResponse(resp *http.Response, messageFor MessageFor) (io.ReadCloser, error) {
	if statusCodeRangeOfResponse(resp) == Status2xx {
		return resp.Body, nil
	}
	return nil, errorResponse(resp, messageFor)
}

func errorResponse(resp *http.Response, messageFor MessageFor) *TransportError {
	scr := statusCodeRangeOfResponse(resp)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{
			Summary:       messageFor.summary(scr),
			StatusCode:    resp.StatusCode,
			ServerMessage: fmt.Sprintf("cannot read server message: %s", err),
			Cause:         err,
		}
	}
	return &TransportError{
		Summary:       messageFor.summary(scr),
		StatusCode:    resp.StatusCode,
		ServerMessage: parseErrorMessage(body),
	}
}

func parseErrorMessage(body []byte) string {
	msg := struct {
		Message *string `json:"message"`
	}{}
	if err := json.Unmarshal(body, &msg); err == nil && msg.Message != nil {
		return *msg.Message
	}
	return string(body)
}
