// Package cluster is a fake compute cluster serving the job API for tests.
package cluster

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

// Status is a scripted reply for a status poll.
type Status struct {
	Code      int
	JobStatus string
	Errors    []string

	// Raw, if not empty, is replied as the body instead of a status report.
	Raw string
}

// Poll is a recorded status poll.
type Poll struct {
	JobId string
	At    time.Time
}

// Cluster is a fake compute cluster.
//
// Started jobs get ids "job-1", "job-2", ... and are polled through Statuses in order.
// When Statuses run out, the last one is repeated.
type Cluster struct {
	URL string

	mu sync.Mutex

	StartCode    int
	StartMessage string
	Statuses     []Status

	ResultCode int
	Result     string

	Started []map[string]any
	Polls   []Poll
	Fetches []map[string]string
}

// Start serves a fake cluster until the test ends.
func Start(t *testing.T) *Cluster {
	t.Helper()
	c := &Cluster{StartCode: http.StatusOK, ResultCode: http.StatusOK}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.POST("/api/machine-learning/start", c.start)
	e.GET("/api/machine-learning/status/:jobId", c.status)
	e.GET("/internal/fetch-result", c.fetch)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	c.URL = srv.URL
	return c
}

func (c *Cluster) start(ctx echo.Context) error {
	body := map[string]any{}
	if err := json.NewDecoder(ctx.Request().Body).Decode(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]any{"message": err.Error()})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Started = append(c.Started, body)

	if c.StartCode != http.StatusOK {
		return ctx.JSON(c.StartCode, map[string]any{"message": c.StartMessage})
	}
	return ctx.JSON(http.StatusOK, map[string]any{"job_id": fmt.Sprintf("job-%d", len(c.Started))})
}

func (c *Cluster) status(ctx echo.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Polls = append(c.Polls, Poll{JobId: ctx.Param("jobId"), At: time.Now()})
	if len(c.Statuses) == 0 {
		return ctx.JSON(http.StatusOK, map[string]any{"job_status": "exited"})
	}
	nth := len(c.Polls) - 1
	if len(c.Statuses) <= nth {
		nth = len(c.Statuses) - 1
	}
	s := c.Statuses[nth]
	code := s.Code
	if code == 0 {
		code = http.StatusOK
	}
	if s.Raw != "" {
		return ctx.String(code, s.Raw)
	}
	body := map[string]any{"job_status": s.JobStatus}
	if s.Errors != nil {
		body["errors"] = s.Errors
	}
	return ctx.JSON(code, body)
}

func (c *Cluster) fetch(ctx echo.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Fetches = append(c.Fetches, map[string]string{
		"user_name": ctx.QueryParam("user_name"),
		"modelname": ctx.QueryParam("modelname"),
		"job_id":    ctx.QueryParam("job_id"),
	})
	return ctx.String(c.ResultCode, c.Result)
}

// Snapshot returns recorded requests.
func (c *Cluster) Snapshot() (started []map[string]any, polls []Poll, fetches []map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]any{}, c.Started...),
		append([]Poll{}, c.Polls...),
		append([]map[string]string{}, c.Fetches...)
}

// Script replaces the scripted statuses.
func (c *Cluster) Script(statuses ...Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statuses = statuses
}
