package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/molvista/molvista/internal/core/domain"
)

// Client talks JSON over HTTP to the pipeline backend. One base URL selects
// the backend origin; there is no per-call configuration.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) ListJobs(ctx context.Context) ([]domain.Job, error) {
	var jobs []domain.Job
	if err := c.get(ctx, "list jobs", "/api/v1/jobs", &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *Client) FetchResults(ctx context.Context, id domain.JobID) (*domain.ResultSet, error) {
	var rs domain.ResultSet
	path := fmt.Sprintf("/api/v1/jobs/%s/results", url.PathEscape(string(id)))
	if err := c.get(ctx, "fetch results", path, &rs); err != nil {
		return nil, err
	}
	if rs.JobID == "" {
		rs.JobID = id
	}
	return &rs, nil
}

func (c *Client) StartPipeline(ctx context.Context, cfg domain.PipelineConfig) (*domain.Job, error) {
	var job domain.Job
	if err := c.post(ctx, "start pipeline", "/api/v1/design/start-pipeline", cfg, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) CancelJob(ctx context.Context, id domain.JobID) error {
	path := fmt.Sprintf("/api/v1/jobs/%s/cancel", url.PathEscape(string(id)))
	return c.post(ctx, "cancel job", path, nil, nil)
}

func (c *Client) StartAnalysis(ctx context.Context, simulationID string, analysisType string) ([]domain.JobID, error) {
	path := fmt.Sprintf("/api/v1/simulations/%s/analyze?analysis_type=%s",
		url.PathEscape(simulationID), url.QueryEscape(analysisType))

	var resp struct {
		JobIDs []domain.JobID `json:"job_ids"`
	}
	if err := c.post(ctx, "start analysis", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.JobIDs, nil
}

func (c *Client) JobStatus(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	var job domain.Job
	path := fmt.Sprintf("/api/v1/jobs/%s/status", url.PathEscape(string(id)))
	if err := c.get(ctx, "job status", path, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) SimulationResults(ctx context.Context, simulationID string) (*domain.ResultSet, error) {
	var rs domain.ResultSet
	path := fmt.Sprintf("/api/v1/simulations/%s/results", url.PathEscape(simulationID))
	if err := c.get(ctx, "simulation results", path, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &domain.NetworkError{Op: op, Err: err}
	}
	return c.do(op, req, out)
}

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &domain.NetworkError{Op: op, Err: err}
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return &domain.NetworkError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Keep a slice of the body for diagnostics; backends put the reason there.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.ServerError{Op: op, Status: resp.StatusCode, Body: string(snippet)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
