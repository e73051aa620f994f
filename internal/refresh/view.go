// Package refresh holds the UI state of a job summary view: which detail
// panel is open and how often the view reloads itself.
package refresh

import (
	"encoding/json"
	"slices"
	"time"
)

// DefaultInterval is the auto refresh interval of a new view.
const DefaultInterval = 10 * time.Second

// Intervals are the selectable auto refresh intervals. Zero disables auto refresh.
var Intervals = []time.Duration{0, 10 * time.Second, 30 * time.Second, 60 * time.Second}

// ValidInterval reports whether d is one of Intervals.
func ValidInterval(d time.Duration) bool {
	return slices.Contains(Intervals, d)
}

type ContentType string

const (
	ContentText ContentType = "text"
	ContentJSON ContentType = "json"
)

// Modal is a detail panel shown over the summary.
type Modal struct {
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	ContentType ContentType `json:"content_type"`
}

// ViewState is the UI state of one summary view. A nil Modal means no panel
// is open.
type ViewState struct {
	Modal    *Modal
	Interval time.Duration
}

// NewViewState returns the state of a freshly opened view.
func NewViewState() ViewState {
	return ViewState{Interval: DefaultInterval}
}

// MarshalJSON renders the interval in milliseconds.
func (v ViewState) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Modal    *Modal `json:"modal"`
		Interval int64  `json:"interval"`
	}{v.Modal, v.Interval.Milliseconds()})
}

// Action is a user interaction with the view.
type Action interface {
	isAction()
}

// OpenApplicationSummary shows the job's exit diagnostics.
type OpenApplicationSummary struct {
	Diagnostics string
}

// OpenJobConfig shows the job's submitted config as indented JSON.
type OpenJobConfig struct {
	Config any
}

// Dismiss closes the open panel.
type Dismiss struct{}

// SetInterval selects a new auto refresh interval.
type SetInterval struct {
	Interval time.Duration
}

func (OpenApplicationSummary) isAction() {}
func (OpenJobConfig) isAction()          {}
func (Dismiss) isAction()                {}
func (SetInterval) isAction()            {}

// Reduce returns the state after applying a. Intervals outside Intervals and
// configs that cannot be rendered leave the state unchanged.
func Reduce(s ViewState, a Action) ViewState {
	switch a := a.(type) {
	case OpenApplicationSummary:
		s.Modal = &Modal{
			Title:       "Application Summary",
			Content:     a.Diagnostics,
			ContentType: ContentText,
		}
	case OpenJobConfig:
		content, err := json.MarshalIndent(a.Config, "", "  ")
		if err != nil {
			return s
		}
		s.Modal = &Modal{
			Title:       "Job Config",
			Content:     string(content),
			ContentType: ContentJSON,
		}
	case Dismiss:
		s.Modal = nil
	case SetInterval:
		if ValidInterval(a.Interval) {
			s.Interval = a.Interval
		}
	}
	return s
}
