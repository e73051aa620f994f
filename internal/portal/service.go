package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/clusterportal/internal/cache"
	"github.com/kiranshivaraju/clusterportal/internal/jobs"
	"github.com/kiranshivaraju/clusterportal/pkg/jobstate"
	"github.com/kiranshivaraju/clusterportal/pkg/models"
)

var (
	// ErrNotStoppable is returned when a stop is requested for a job that is
	// neither waiting nor running.
	ErrNotStoppable = errors.New("job is not stoppable")
	// ErrNoConfig is returned when the job system holds no config for a job.
	ErrNoConfig = errors.New("job config not found")
)

// JobDetail is a job as fetched from the job system together with its
// derived summary view.
type JobDetail struct {
	Job     models.Job
	Config  models.JobConfig
	Summary JobSummary
}

// Service builds portal views from the job system.
type Service struct {
	jobs     jobs.Client
	cache    cache.Cache
	links    LinkBuilder
	cacheTTL time.Duration
	now      func() time.Time
}

// NewService creates a new Service. A zero cacheTTL disables job-list caching.
func NewService(client jobs.Client, c cache.Cache, links LinkBuilder, cacheTTL time.Duration) *Service {
	return &Service{
		jobs:     client,
		cache:    c,
		links:    links,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Links returns the link builder the service renders with.
func (s *Service) Links() LinkBuilder {
	return s.links
}

// StatusPanel aggregates the job list of username.
func (s *Service) StatusPanel(ctx context.Context, username string) (StatusPanel, error) {
	list, err := s.listJobs(ctx, username)
	if err != nil {
		return StatusPanel{}, err
	}
	return AggregateStatus(list, username, s.links), nil
}

// listJobs reads through the job-list cache. Cache failures are logged and
// fall back to the job system.
func (s *Service) listJobs(ctx context.Context, username string) ([]models.Job, error) {
	key := cache.JobListKey(username)

	if s.cacheTTL > 0 {
		data, found, err := s.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("job list cache read failed", "error", err, "username", username)
		}
		if found {
			var list []models.Job
			if err := json.Unmarshal(data, &list); err == nil {
				return list, nil
			}
			slog.Warn("discarding corrupt job list cache entry", "username", username)
		}
	}

	list, err := s.jobs.ListJobs(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}

	if s.cacheTTL > 0 {
		if data, err := json.Marshal(list); err == nil {
			if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
				slog.Warn("job list cache write failed", "error", err, "username", username)
			}
		}
	}
	return list, nil
}

// Detail fetches a job and its config and builds the summary view. A config
// that cannot be fetched is treated as absent.
func (s *Service) Detail(ctx context.Context, username, jobName string) (*JobDetail, error) {
	var (
		job    *models.Job
		config models.JobConfig
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		j, err := s.jobs.GetJob(gctx, username, jobName)
		if err != nil {
			return fmt.Errorf("fetching job: %w", err)
		}
		job = j
		return nil
	})
	g.Go(func() error {
		c, err := s.jobs.GetJobConfig(gctx, username, jobName)
		if err != nil {
			slog.Warn("job config unavailable", "error", err, "username", username, "job", jobName)
			return nil
		}
		config = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &JobDetail{
		Job:     *job,
		Config:  config,
		Summary: BuildSummary(*job, config, s.links, s.now()),
	}, nil
}

// Config returns the submitted config of a job.
func (s *Service) Config(ctx context.Context, username, jobName string) (models.JobConfig, error) {
	config, err := s.jobs.GetJobConfig(ctx, username, jobName)
	if err != nil {
		return nil, fmt.Errorf("fetching job config: %w", err)
	}
	if config == nil {
		return nil, ErrNoConfig
	}
	return config, nil
}

// Stop asks the job system to stop a job. Only waiting and running jobs can
// be stopped. The owner's cached job list is dropped on success.
func (s *Service) Stop(ctx context.Context, username, jobName string) error {
	job, err := s.jobs.GetJob(ctx, username, jobName)
	if err != nil {
		return fmt.Errorf("fetching job: %w", err)
	}
	if !Stoppable(jobstate.Classify(*job)) {
		return ErrNotStoppable
	}
	if err := s.jobs.StopJob(ctx, username, jobName); err != nil {
		return fmt.Errorf("stopping job: %w", err)
	}

	if err := s.cache.Delete(ctx, cache.JobListKey(username)); err != nil {
		slog.Warn("job list cache invalidation failed", "error", err, "username", username)
	}
	slog.Info("job stop requested", "username", username, "job", jobName)
	return nil
}
