package generators

import (
	"time"

	"github.com/danmuck/genctl/internal/history"
)

type StepStatus string

const (
	StatusOK      StepStatus = history.StatusOK
	StatusFailed  StepStatus = history.StatusFailed
	StatusSkipped StepStatus = history.StatusSkipped
)

type StepReport struct {
	ID          string        `json:"id"`
	Status      StepStatus    `json:"status"`
	ExitCode    int32         `json:"exit_code"`
	Duration    time.Duration `json:"duration_ns"`
	Dir         string        `json:"dir"`
	CommandLine string        `json:"command"`
	InputDigest string        `json:"input_digest,omitempty"`
	Error       string        `json:"error,omitempty"`
	Err         error         `json:"-"`
}

// Report is the outcome of one Launcher.Run.
type Report struct {
	RunID    string       `json:"run_id"`
	Project  string       `json:"project"`
	Policy   Policy       `json:"policy"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Steps    []StepReport `json:"steps"`
}

func (r Report) Failed() bool {
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			return true
		}
	}
	return false
}

func (r Report) Step(id string) (StepReport, bool) {
	for _, s := range r.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return StepReport{}, false
}
