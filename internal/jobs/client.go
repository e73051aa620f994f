// Package jobs talks to the job-execution system's REST API. The portal only
// reads jobs and asks for them to be stopped; their lifecycle lives elsewhere.
package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/kiranshivaraju/clusterportal/pkg/models"
)

// Sentinel errors for job system failures.
var (
	ErrJobsUnreachable = errors.New("job system unreachable")
	ErrJobsQueryError  = errors.New("job system query error")
	ErrJobsTimeout     = errors.New("job system timeout")
	ErrJobNotFound     = errors.New("job not found")

	// ErrJobsForbidden means the job system rejected the forwarded credentials.
	// API-key callers carry no token, so a job system that enforces auth
	// answers them with this.
	ErrJobsForbidden = errors.New("job system denied access")
)

// Client is the interface for reading jobs from the job system.
type Client interface {
	ListJobs(ctx context.Context, username string) ([]models.Job, error)
	GetJob(ctx context.Context, username, jobName string) (*models.Job, error)
	GetJobConfig(ctx context.Context, username, jobName string) (models.JobConfig, error)
	StopJob(ctx context.Context, username, jobName string) error
	Ready(ctx context.Context) error
}

type tokenKey struct{}

// WithToken attaches the caller's bearer token so it is forwarded to the job system.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey{}).(string)
	return t
}

// HTTPClient implements Client using the job system's v2 REST API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new job system HTTP client.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) ListJobs(ctx context.Context, username string) ([]models.Job, error) {
	params := url.Values{}
	if username != "" {
		params.Set("username", username)
	}
	u := fmt.Sprintf("%s/api/v2/jobs?%s", c.baseURL, params.Encode())

	var list []models.Job
	if err := c.getJSON(ctx, u, &list); err != nil {
		return nil, err
	}
	if list == nil {
		return []models.Job{}, nil
	}
	return list, nil
}

func (c *HTTPClient) GetJob(ctx context.Context, username, jobName string) (*models.Job, error) {
	var job models.Job
	if err := c.getJSON(ctx, c.jobURL(username, jobName, ""), &job); err != nil {
		return nil, err
	}
	if job.Name == "" {
		job.Name = jobName
	}
	return &job, nil
}

// GetJobConfig returns nil without error when the job system has no config
// for the job.
func (c *HTTPClient) GetJobConfig(ctx context.Context, username, jobName string) (models.JobConfig, error) {
	var cfg models.JobConfig
	err := c.getJSON(ctx, c.jobURL(username, jobName, "/config"), &cfg)
	if errors.Is(err, ErrJobNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *HTTPClient) StopJob(ctx context.Context, username, jobName string) error {
	body, err := json.Marshal(map[string]string{"value": models.ExecutionTypeStop})
	if err != nil {
		return fmt.Errorf("encoding stop request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.jobURL(username, jobName, "/executionType"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setHeaders(ctx, httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	return statusError(resp.StatusCode)
}

func (c *HTTPClient) Ready(ctx context.Context) error {
	u := fmt.Sprintf("%s/api/v2/info", c.baseURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJobsUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: job system not ready (status %d)", ErrJobsUnreachable, resp.StatusCode)
	}

	return nil
}

// jobURL addresses a job by its framework name, "<user>~<job>".
func (c *HTTPClient) jobURL(username, jobName, suffix string) string {
	return fmt.Sprintf("%s/api/v2/jobs/%s%s", c.baseURL, url.PathEscape(username+"~"+jobName), suffix)
}

func (c *HTTPClient) getJSON(ctx context.Context, u string, v any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(ctx, httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding job system response: %w", err)
	}
	return nil
}

func (c *HTTPClient) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if token := tokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrJobNotFound
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrJobsForbidden, code)
	default:
		return fmt.Errorf("%w: status %d", ErrJobsQueryError, code)
	}
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrJobsTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrJobsTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrJobsUnreachable, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
