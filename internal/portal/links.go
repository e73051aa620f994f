package portal

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/kiranshivaraju/clusterportal/pkg/jobstate"
)

// LinkBuilder constructs deep links into the web portal and the metrics
// dashboard. All methods are pure. Zero value produces relative portal
// links and no metrics links.
type LinkBuilder struct {
	WebportalBaseURL string
	GrafanaURL       string
}

// JobList links to the job list filtered by state and user.
func (b LinkBuilder) JobList(state jobstate.State, username string) string {
	q := url.Values{}
	q.Set("status", state.String())
	q.Set("user", username)
	return b.portal("/job-list.html", q)
}

// Attempts links to the retry history of a job.
func (b LinkBuilder) Attempts(username, jobName string, retries int) string {
	q := url.Values{}
	q.Set("username", username)
	q.Set("jobName", jobName)
	q.Set("retryCount", strconv.Itoa(retries))
	return b.portal("/job-retry.html", q)
}

// Clone links to the submit page prefilled from an existing job.
func (b LinkBuilder) Clone(username, jobName string) string {
	q := url.Values{}
	q.Set("op", "resubmit")
	q.Set("type", "job")
	q.Set("user", username)
	q.Set("jobname", jobName)
	return b.portal("/submit.html", q)
}

// Metrics links to the job-level dashboard. Empty when no dashboard is configured.
func (b LinkBuilder) Metrics(username, jobName string) string {
	if b.GrafanaURL == "" {
		return ""
	}
	q := url.Values{}
	q.Set("var-job", username+"~"+jobName)
	return strings.TrimRight(b.GrafanaURL, "/") + "/dashboard/db/joblevelmetrics?" + q.Encode()
}

func (b LinkBuilder) portal(path string, q url.Values) string {
	return strings.TrimRight(b.WebportalBaseURL, "/") + path + "?" + q.Encode()
}
