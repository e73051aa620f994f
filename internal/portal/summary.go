package portal

import (
	"fmt"
	"time"

	"github.com/kiranshivaraju/clusterportal/pkg/jobstate"
	"github.com/kiranshivaraju/clusterportal/pkg/models"
)

// Badge is the visual treatment of a job state.
type Badge struct {
	MessageBarType string `json:"message_bar_type"`
	Color          string `json:"color"`
	Rotated        bool   `json:"rotated"`
}

var badges = map[jobstate.State]Badge{
	jobstate.Waiting:   {MessageBarType: "warning", Color: "#F9B61A"},
	jobstate.Running:   {MessageBarType: "success", Color: "#579AE6"},
	jobstate.Stopping:  {MessageBarType: "severeWarning", Color: "#579AE6"},
	jobstate.Succeeded: {MessageBarType: "success", Color: "#54D373"},
	jobstate.Failed:    {MessageBarType: "remove", Color: "#E06260", Rotated: true},
	jobstate.Stopped:   {MessageBarType: "blocked", Color: "#B1B5B8"},
}

// BadgeFor returns the badge of a state.
func BadgeFor(s jobstate.State) Badge {
	return badges[s]
}

// Action is an affordance on the summary view. URL is set for actions that
// navigate rather than call back into the portal.
type Action struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url,omitempty"`
}

type Actions struct {
	Clone                  Action `json:"clone"`
	Stop                   Action `json:"stop"`
	ViewJobConfig          Action `json:"view_job_config"`
	ViewApplicationSummary Action `json:"view_application_summary"`
	Retries                Action `json:"retries"`
}

// JobSummary is the detail view of one job.
type JobSummary struct {
	Name           string         `json:"name"`
	Username       string         `json:"username"`
	State          jobstate.State `json:"state"`
	Badge          Badge          `json:"badge"`
	StartTime      *time.Time     `json:"start_time,omitempty"`
	VirtualCluster string         `json:"virtual_cluster"`
	Duration       string         `json:"duration"`
	Retries        *int           `json:"retries,omitempty"`
	Hint           *Hint          `json:"hint,omitempty"`
	TrackingURL    string         `json:"tracking_url,omitempty"`
	MetricsURL     string         `json:"metrics_url,omitempty"`
	Actions        Actions        `json:"actions"`
}

// BuildSummary derives the detail view of job. config may be nil when the
// job system has no config for the job. now is used for the duration of
// jobs that have not completed.
func BuildSummary(job models.Job, config models.JobConfig, links LinkBuilder, now time.Time) JobSummary {
	state := jobstate.Classify(job)
	owner := job.Owner()

	s := JobSummary{
		Name:           job.Name,
		Username:       owner,
		State:          state,
		Badge:          BadgeFor(state),
		VirtualCluster: job.Cluster(),
		Duration:       DurationString(job, now),
		Hint:           DeriveHint(job),
		TrackingURL:    job.TrackingURL(),
		MetricsURL:     links.Metrics(owner, job.Name),
	}
	if t, ok := job.CreatedAt(); ok {
		s.StartTime = &t
	}

	if IsClonable(config) {
		s.Actions.Clone = Action{Enabled: true, URL: links.Clone(owner, job.Name)}
	}
	s.Actions.Stop.Enabled = Stoppable(state)
	s.Actions.ViewJobConfig.Enabled = config != nil
	s.Actions.ViewApplicationSummary.Enabled = job.Diagnostics() != ""
	if retries, ok := job.RetryCount(); ok {
		s.Retries = &retries
		s.Actions.Retries = Action{Enabled: true, URL: links.Attempts(owner, job.Name, retries)}
	}

	return s
}

// Stoppable reports whether a job in state s accepts a stop request.
func Stoppable(s jobstate.State) bool {
	return s == jobstate.Waiting || s == jobstate.Running
}

// IsClonable reports whether a job config can be resubmitted as a new job.
func IsClonable(config models.JobConfig) bool {
	if config == nil {
		return false
	}
	if _, ok := config["protocolVersion"]; ok {
		return true
	}
	_, ok := config["taskRoles"]
	return ok
}

// DurationString renders how long a job has run, from creation until
// completion or now. Jobs without a creation time yield "N/A".
func DurationString(job models.Job, now time.Time) string {
	start, ok := job.CreatedAt()
	if !ok {
		return "N/A"
	}
	end, ok := job.CompletedAt()
	if !ok {
		end = now
	}

	d := end.Sub(start)
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
