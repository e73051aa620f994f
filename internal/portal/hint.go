package portal

import (
	"regexp"
	"strconv"

	"github.com/kiranshivaraju/clusterportal/pkg/jobstate"
	"github.com/kiranshivaraju/clusterportal/pkg/models"
)

// UserErrorExitCode is the launcher's exit code for failures in user code.
const UserErrorExitCode = 177

// ResourceConflictThreshold is the number of resource retries after which a
// waiting job is reported as starved.
const ResourceConflictThreshold = 3

// HintKind identifies the diagnosis attached to a job.
type HintKind string

const (
	HintUserError         HintKind = "user_error"
	HintSystemError       HintKind = "system_error"
	HintResourceConflicts HintKind = "resource_conflicts"
)

// Hint is a short diagnosis shown next to a failed or starved job.
// ResolutionAction names the view that helps the user act on the hint.
type Hint struct {
	Kind             HintKind `json:"kind"`
	Severity         string   `json:"severity"`
	ErrorType        string   `json:"error_type"`
	ContainerID      string   `json:"container_id,omitempty"`
	ExitCode         int      `json:"exit_code,omitempty"`
	ConflictCount    int      `json:"conflict_count,omitempty"`
	Resolution       string   `json:"resolution"`
	ResolutionAction string   `json:"resolution_action,omitempty"`
}

var (
	userExitCodePattern = regexp.MustCompile(`<Raw>\[ExitCode\]: (\d+)`)
	containerIDPattern  = regexp.MustCompile(`(?m)^\s*"containerId"\s*:\s*"(.*?)",?\s*$`)
)

// DeriveHint returns the diagnosis for a job, or nil when there is nothing
// to report. Missing fields never cause an error.
func DeriveHint(job models.Job) *Hint {
	switch jobstate.Classify(job) {
	case jobstate.Failed:
		if code, ok := job.ExitCode(); ok && code == UserErrorExitCode {
			return userErrorHint(job.Diagnostics())
		}
		return &Hint{
			Kind:             HintSystemError,
			Severity:         "error",
			ErrorType:        "System Error",
			Resolution:       "Please send the application summary to your administrator for further investigation.",
			ResolutionAction: "open_application_summary",
		}
	case jobstate.Waiting:
		retries, ok := job.ResourceRetries()
		if !ok || retries < ResourceConflictThreshold {
			return nil
		}
		return &Hint{
			Kind:             HintResourceConflicts,
			Severity:         "warning",
			ErrorType:        "Resource Conflicts",
			ConflictCount:    retries,
			Resolution:       "Please adjust the resource requirement in your job config, or wait till other jobs release more resources back to the system.",
			ResolutionAction: "open_job_config",
		}
	default:
		return nil
	}
}

func userErrorHint(diag string) *Hint {
	h := &Hint{
		Kind:       HintUserError,
		Severity:   "error",
		ErrorType:  "User Error",
		Resolution: "Please check container's Stdout and Stderr for more information.",
	}
	if m := userExitCodePattern.FindStringSubmatch(diag); m != nil {
		// An unparsable code is left out, as is zero.
		if code, err := strconv.Atoi(m[1]); err == nil {
			h.ExitCode = code
		}
	}
	if m := containerIDPattern.FindStringSubmatch(diag); m != nil {
		h.ContainerID = m[1]
	}
	return h
}
