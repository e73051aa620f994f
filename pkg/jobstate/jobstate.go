// Package jobstate maps raw job records onto the six states shown to users.
package jobstate

import (
	"fmt"
	"strings"

	"github.com/kiranshivaraju/clusterportal/pkg/models"
)

// State is the humanized job state. The zero value is Waiting.
type State int

const (
	Waiting State = iota
	Running
	Stopping
	Stopped
	Failed
	Succeeded
)

// All lists every state in display order.
var All = []State{Waiting, Running, Stopping, Stopped, Failed, Succeeded}

var names = [...]string{
	Waiting:   "Waiting",
	Running:   "Running",
	Stopping:  "Stopping",
	Stopped:   "Stopped",
	Failed:    "Failed",
	Succeeded: "Succeeded",
}

func (s State) String() string {
	if s < Waiting || s > Succeeded {
		return "Unknown"
	}
	return names[s]
}

// MarshalText lets State serialize as its name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts any name Parse accepts.
func (s *State) UnmarshalText(text []byte) error {
	st, ok := Parse(string(text))
	if !ok {
		return fmt.Errorf("unknown job state %q", text)
	}
	*s = st
	return nil
}

// Parse returns the state with the given name, case-insensitively.
func Parse(name string) (State, bool) {
	for _, s := range All {
		if strings.EqualFold(names[s], name) {
			return s, true
		}
	}
	return Waiting, false
}

// Classify returns the humanized state of a job. It is total: states the
// job system reports that the portal does not know are treated as Waiting.
func Classify(job models.Job) State {
	stopRequested := strings.EqualFold(job.RawExecutionType(), models.ExecutionTypeStop)

	switch strings.ToUpper(job.RawState()) {
	case "WAITING":
		if stopRequested {
			return Stopping
		}
		return Waiting
	case "RUNNING":
		if stopRequested {
			return Stopping
		}
		return Running
	case "STOPPING":
		return Stopping
	case "STOPPED":
		return Stopped
	case "FAILED":
		return Failed
	case "SUCCEEDED":
		return Succeeded
	default:
		return Waiting
	}
}
