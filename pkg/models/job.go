package models

import "time"

// ExecutionTypeStop marks a job the user asked to stop.
const ExecutionTypeStop = "STOP"

// Job is a job record as served by the job-execution system. List endpoints
// fill the top-level fields; the detail endpoint fills JobStatus. Every field
// may be absent, so callers read through the accessor methods below.
type Job struct {
	Name           string     `json:"name"`
	Username       string     `json:"username,omitempty"`
	State          string     `json:"state,omitempty"`
	ExecutionType  string     `json:"executionType,omitempty"`
	VirtualCluster string     `json:"virtualCluster,omitempty"`
	Retries        *int       `json:"retries,omitempty"`
	CreatedTime    *int64     `json:"createdTime,omitempty"`
	CompletedTime  *int64     `json:"completedTime,omitempty"`
	JobStatus      *JobStatus `json:"jobStatus,omitempty"`
}

// JobStatus is the detailed status block of a single job. Times are epoch
// milliseconds.
type JobStatus struct {
	Username           string        `json:"username,omitempty"`
	State              string        `json:"state,omitempty"`
	ExecutionType      string        `json:"executionType,omitempty"`
	VirtualCluster     string        `json:"virtualCluster,omitempty"`
	CreatedTime        *int64        `json:"createdTime,omitempty"`
	LaunchedTime       *int64        `json:"launchedTime,omitempty"`
	CompletedTime      *int64        `json:"completedTime,omitempty"`
	Retries            *int          `json:"retries,omitempty"`
	RetryDetails       *RetryDetails `json:"retryDetails,omitempty"`
	AppExitCode        *int          `json:"appExitCode,omitempty"`
	AppExitDiagnostics string        `json:"appExitDiagnostics,omitempty"`
	AppTrackingURL     string        `json:"appTrackingUrl,omitempty"`
}

// RetryDetails splits the retry count by cause.
type RetryDetails struct {
	User     *int `json:"user,omitempty"`
	Platform *int `json:"platform,omitempty"`
	Resource *int `json:"resource,omitempty"`
}

// JobConfig is the submitted job document. The portal treats it as opaque.
type JobConfig map[string]any

func (j Job) status() JobStatus {
	if j.JobStatus == nil {
		return JobStatus{}
	}
	return *j.JobStatus
}

// RawState returns the job system's state string, preferring the detail block.
func (j Job) RawState() string {
	if s := j.status().State; s != "" {
		return s
	}
	return j.State
}

func (j Job) RawExecutionType() string {
	if s := j.status().ExecutionType; s != "" {
		return s
	}
	return j.ExecutionType
}

func (j Job) Owner() string {
	if s := j.status().Username; s != "" {
		return s
	}
	return j.Username
}

func (j Job) Cluster() string {
	if s := j.status().VirtualCluster; s != "" {
		return s
	}
	return j.VirtualCluster
}

func (j Job) RetryCount() (int, bool) {
	if r := j.status().Retries; r != nil {
		return *r, true
	}
	if j.Retries != nil {
		return *j.Retries, true
	}
	return 0, false
}

func (j Job) ResourceRetries() (int, bool) {
	d := j.status().RetryDetails
	if d == nil || d.Resource == nil {
		return 0, false
	}
	return *d.Resource, true
}

func (j Job) ExitCode() (int, bool) {
	if c := j.status().AppExitCode; c != nil {
		return *c, true
	}
	return 0, false
}

func (j Job) Diagnostics() string {
	return j.status().AppExitDiagnostics
}

func (j Job) TrackingURL() string {
	return j.status().AppTrackingURL
}

func (j Job) CreatedAt() (time.Time, bool) {
	if t, ok := fromMillis(j.status().CreatedTime); ok {
		return t, true
	}
	return fromMillis(j.CreatedTime)
}

func (j Job) CompletedAt() (time.Time, bool) {
	if t, ok := fromMillis(j.status().CompletedTime); ok {
		return t, true
	}
	return fromMillis(j.CompletedTime)
}

func fromMillis(ms *int64) (time.Time, bool) {
	if ms == nil || *ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(*ms).UTC(), true
}
