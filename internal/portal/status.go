package portal

import (
	"github.com/samber/lo"

	"github.com/kiranshivaraju/clusterportal/pkg/jobstate"
	"github.com/kiranshivaraju/clusterportal/pkg/models"
)

// StatusRow is one line of the job status panel.
type StatusRow struct {
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Count     int    `json:"count"`
	Link      string `json:"link"`
	Separated bool   `json:"separated"`
}

// StatusPanel is the per-user job status overview.
type StatusPanel struct {
	Username string      `json:"username"`
	Total    int         `json:"total"`
	Rows     []StatusRow `json:"rows"`
}

type bucket struct {
	state   jobstate.State
	icon    string
	members []jobstate.State
}

// Running also counts jobs that are being stopped.
var buckets = []bucket{
	{jobstate.Waiting, "Clock", []jobstate.State{jobstate.Waiting}},
	{jobstate.Running, "Running", []jobstate.State{jobstate.Running, jobstate.Stopping}},
	{jobstate.Stopped, "ErrorBadge", []jobstate.State{jobstate.Stopped}},
	{jobstate.Failed, "Blocked", []jobstate.State{jobstate.Failed}},
	{jobstate.Succeeded, "Completed", []jobstate.State{jobstate.Succeeded}},
}

// AggregateStatus counts jobs per display bucket. A nil or empty list yields
// zero counts.
func AggregateStatus(jobs []models.Job, username string, links LinkBuilder) StatusPanel {
	states := lo.Map(jobs, func(j models.Job, _ int) jobstate.State {
		return jobstate.Classify(j)
	})

	rows := make([]StatusRow, len(buckets))
	for i, b := range buckets {
		count := lo.CountBy(states, func(s jobstate.State) bool {
			return lo.Contains(b.members, s)
		})
		rows[i] = StatusRow{
			Name:      b.state.String(),
			Icon:      b.icon,
			Count:     count,
			Link:      links.JobList(b.state, username),
			Separated: i < len(buckets)-1,
		}
	}

	return StatusPanel{
		Username: username,
		Total:    len(states),
		Rows:     rows,
	}
}
