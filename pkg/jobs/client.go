// Package jobs submits jobs to the compute cluster, waits for them and fetches their results.
package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/opst/gdsremote/pkg/logger"
	"github.com/opst/gdsremote/pkg/procedure"
)

// Ports of the compute cluster.
const (
	WebPort    = "5005"
	MLflowPort = "8080"
)

// WebURI is the API root of the compute cluster on host.
func WebURI(host string) string {
	return "http://" + net.JoinHostPort(host, WebPort)
}

// MLflowURI is the MLflow tracking server of the compute cluster on host.
func MLflowURI(host string) string {
	return "http://" + net.JoinHostPort(host, MLflowPort)
}

// Client talks with the job API of the compute cluster.
type Client interface {
	// Start submits a job.
	//
	// # Returns
	//
	// - string: job id
	//
	// - error: *TransportError for failures of HTTP or for non-2xx responses.
	Start(ctx context.Context, desc JobDescriptor) (string, error)

	// Status gets the status of the job.
	//
	// Responses carrying a status report are returned as StatusReport regardless of
	// their status code. StatusReport.StatusCode has the code.
	Status(ctx context.Context, jobId string) (StatusReport, error)

	// FetchResult downloads the result of the job.
	//
	// The result is a json-lines document, each line is a record.
	FetchResult(ctx context.Context, userName, modelName, jobId string) (procedure.ResultTable, error)
}

type client struct {
	httpclient *http.Client
	api        string
	tempDir    string
	logger     *log.Logger
}

type ClientOption func(*client) *client

// WithHTTPClient sets the http.Client to send requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *client) *client {
		c.httpclient = hc
		return c
	}
}

// WithTempDir sets the directory where results are downloaded into.
// The default is os.TempDir().
func WithTempDir(dir string) ClientOption {
	return func(c *client) *client {
		c.tempDir = dir
		return c
	}
}

func WithClientLogger(l *log.Logger) ClientOption {
	return func(c *client) *client {
		c.logger = l
		return c
	}
}

// NewClient creates a Client for the API rooted at apiRoot, like "http://10.0.0.1:5005".
func NewClient(apiRoot string, options ...ClientOption) (Client, error) {
	u, err := url.Parse(apiRoot)
	if err != nil {
		return nil, fmt.Errorf("jobs: api root is not url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("jobs: api root should be http or https: %s", apiRoot)
	}

	c := &client{
		httpclient: new(http.Client),
		api:        strings.TrimSuffix(apiRoot, "/"),
	}
	for _, opt := range options {
		c = opt(c)
	}
	c.logger = logger.OrNull(c.logger)
	return c, nil
}

// build URL with path
func (c *client) apipath(path ...string) string {
	segs := []string{c.api}
	for _, p := range path {
		segs = append(segs, strings.Trim(p, "/"))
	}
	return strings.Join(segs, "/")
}

func (c *client) Start(ctx context.Context, desc JobDescriptor) (string, error) {
	body, err := json.Marshal(desc)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.apipath("api", "machine-learning", "start"), bytes.NewReader(body),
	)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return "", &TransportError{Summary: "cannot start job", Cause: err}
	}
	defer resp.Body.Close()

	started := startResponse{}
	if err := unmarshalJsonResponse(
		resp, &started,
		MessageFor{
			Status4xx: fmt.Sprintf("job %s is rejected", desc.Task),
			Status5xx: fmt.Sprintf("server error on starting job %s", desc.Task),
		},
	); err != nil {
		return "", err
	}
	if started.JobId == "" {
		return "", &TransportError{Summary: "unexpected response: no job_id", StatusCode: resp.StatusCode}
	}
	c.logger.Printf("Job with ID '%s' started", started.JobId)
	return started.JobId, nil
}

func (c *client) Status(ctx context.Context, jobId string) (StatusReport, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.apipath("api", "machine-learning", "status", url.PathEscape(jobId)), nil,
	)
	if err != nil {
		return StatusReport{}, err
	}
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return StatusReport{}, &TransportError{Summary: fmt.Sprintf("cannot get status of job %s", jobId), Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return StatusReport{}, &TransportError{
			Summary: fmt.Sprintf("cannot get status of job %s", jobId), StatusCode: resp.StatusCode, Cause: err,
		}
	}

	report := StatusReport{}
	if err := json.Unmarshal(body, &report); err == nil && report.JobStatus != "" {
		report.StatusCode = resp.StatusCode
		return report, nil
	}

	scr := StatusCodeRangeOf(resp.StatusCode)
	if scr == Status2xx {
		return StatusReport{}, &TransportError{
			Summary:       fmt.Sprintf("unexpected response for status of job %s", jobId),
			StatusCode:    resp.StatusCode,
			ServerMessage: string(body),
		}
	}
	return StatusReport{}, &TransportError{
		Summary: MessageFor{
			Status4xx: fmt.Sprintf("job %s is not found", jobId),
			Status5xx: fmt.Sprintf("server error on getting status of job %s", jobId),
		}.summary(scr),
		StatusCode:    resp.StatusCode,
		ServerMessage: parseErrorMessage(body),
	}
}

func (c *client) FetchResult(ctx context.Context, userName, modelName, jobId string) (procedure.ResultTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apipath("internal", "fetch-result"), nil)
	if err != nil {
		return procedure.ResultTable{}, err
	}
	q := req.URL.Query()
	q.Set("user_name", userName)
	q.Set("modelname", modelName)
	q.Set("job_id", jobId)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return procedure.ResultTable{}, &TransportError{
			Summary: fmt.Sprintf("cannot fetch result of job %s", jobId), Cause: err,
		}
	}
	defer resp.Body.Close()

	body, err := unmarshalStreamResponse(resp, MessageFor{
		Status4xx: fmt.Sprintf("result of job %s is not found", jobId),
		Status5xx: fmt.Sprintf("server error on fetching result of job %s", jobId),
	})
	if err != nil {
		return procedure.ResultTable{}, err
	}

	return c.spool(jobId, body)
}

// spool writes the result into a temporary file and reads it back as json lines.
// The file is removed whether reading succeeds or not.
func (c *client) spool(jobId string, body io.Reader) (procedure.ResultTable, error) {
	f, err := os.CreateTemp(c.tempDir, fmt.Sprintf("res_%s_*.json", sanitize(jobId)))
	if err != nil {
		return procedure.ResultTable{}, err
	}
	defer func() {
		f.Close()
		if err := os.Remove(f.Name()); err != nil {
			c.logger.Printf("cannot remove %s: %s", f.Name(), err)
		}
	}()

	if _, err := io.Copy(f, body); err != nil {
		return procedure.ResultTable{}, &TransportError{
			Summary: fmt.Sprintf("cannot download result of job %s", jobId), Cause: err,
		}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return procedure.ResultTable{}, err
	}

	table, err := ReadJSONLines(f)
	if err != nil {
		return procedure.ResultTable{}, fmt.Errorf("result of job %s: %w", jobId, err)
	}
	return table, nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator || r == '*' {
			return '_'
		}
		return r
	}, s)
}
