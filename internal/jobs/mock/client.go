package mock

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/clusterportal/internal/jobs"
	"github.com/kiranshivaraju/clusterportal/pkg/models"
)

// MockClient satisfies jobs.Client for testing. Each Func overrides the
// default in-memory behavior.
type MockClient struct {
	ListJobsFunc     func(ctx context.Context, username string) ([]models.Job, error)
	GetJobFunc       func(ctx context.Context, username, jobName string) (*models.Job, error)
	GetJobConfigFunc func(ctx context.Context, username, jobName string) (models.JobConfig, error)
	StopJobFunc      func(ctx context.Context, username, jobName string) error
	ReadyFunc        func(ctx context.Context) error

	mu      sync.Mutex
	jobs    []models.Job
	configs map[string]models.JobConfig
	calls   map[string]int
}

func jobKey(username, jobName string) string {
	return username + "~" + jobName
}

func (m *MockClient) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[op]++
}

// Calls returns how many times op was invoked.
func (m *MockClient) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *MockClient) ListJobs(ctx context.Context, username string) ([]models.Job, error) {
	m.record("ListJobs")
	if m.ListJobsFunc != nil {
		return m.ListJobsFunc(ctx, username)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Job{}
	for _, j := range m.jobs {
		if username == "" || j.Owner() == username {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *MockClient) GetJob(ctx context.Context, username, jobName string) (*models.Job, error) {
	m.record("GetJob")
	if m.GetJobFunc != nil {
		return m.GetJobFunc(ctx, username, jobName)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.Owner() == username && j.Name == jobName {
			job := j
			return &job, nil
		}
	}
	return nil, jobs.ErrJobNotFound
}

func (m *MockClient) GetJobConfig(ctx context.Context, username, jobName string) (models.JobConfig, error) {
	m.record("GetJobConfig")
	if m.GetJobConfigFunc != nil {
		return m.GetJobConfigFunc(ctx, username, jobName)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configs[jobKey(username, jobName)], nil
}

// StopJob marks the in-memory job's execution type as STOP.
func (m *MockClient) StopJob(ctx context.Context, username, jobName string) error {
	m.record("StopJob")
	if m.StopJobFunc != nil {
		return m.StopJobFunc(ctx, username, jobName)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, j := range m.jobs {
		if j.Owner() == username && j.Name == jobName {
			m.jobs[i].ExecutionType = models.ExecutionTypeStop
			if m.jobs[i].JobStatus != nil {
				m.jobs[i].JobStatus.ExecutionType = models.ExecutionTypeStop
			}
			return nil
		}
	}
	return jobs.ErrJobNotFound
}

func (m *MockClient) Ready(ctx context.Context) error {
	m.record("Ready")
	if m.ReadyFunc != nil {
		return m.ReadyFunc(ctx)
	}
	return nil
}

// SetConfig stores the config returned for a job.
func (m *MockClient) SetConfig(username, jobName string, config models.JobConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.configs == nil {
		m.configs = map[string]models.JobConfig{}
	}
	m.configs[jobKey(username, jobName)] = config
}

// NewMockClient returns a MockClient serving the given jobs from memory.
func NewMockClient(list ...models.Job) *MockClient {
	return &MockClient{
		jobs:    append([]models.Job(nil), list...),
		configs: map[string]models.JobConfig{},
	}
}

// NewFailingClient returns a MockClient whose every call returns err.
func NewFailingClient(err error) *MockClient {
	return &MockClient{
		ListJobsFunc: func(_ context.Context, _ string) ([]models.Job, error) {
			return nil, err
		},
		GetJobFunc: func(_ context.Context, _, _ string) (*models.Job, error) {
			return nil, err
		},
		GetJobConfigFunc: func(_ context.Context, _, _ string) (models.JobConfig, error) {
			return nil, err
		},
		StopJobFunc: func(_ context.Context, _, _ string) error {
			return err
		},
		ReadyFunc: func(_ context.Context) error {
			return err
		},
	}
}

// NewTimeoutClient returns a MockClient whose calls block until the context
// is cancelled.
func NewTimeoutClient() *MockClient {
	return &MockClient{
		ListJobsFunc: func(ctx context.Context, _ string) ([]models.Job, error) {
			<-ctx.Done()
			return nil, jobs.ErrJobsTimeout
		},
		GetJobFunc: func(ctx context.Context, _, _ string) (*models.Job, error) {
			<-ctx.Done()
			return nil, jobs.ErrJobsTimeout
		},
		GetJobConfigFunc: func(ctx context.Context, _, _ string) (models.JobConfig, error) {
			<-ctx.Done()
			return nil, jobs.ErrJobsTimeout
		},
		StopJobFunc: func(ctx context.Context, _, _ string) error {
			<-ctx.Done()
			return jobs.ErrJobsTimeout
		},
		ReadyFunc: func(ctx context.Context) error {
			<-ctx.Done()
			return jobs.ErrJobsTimeout
		},
	}
}

// Compile-time check that MockClient implements jobs.Client.
var _ jobs.Client = (*MockClient)(nil)
