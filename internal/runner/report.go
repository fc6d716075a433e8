package runner

import (
	"time"

	"github.com/GriffinCanCode/shotdiff/internal/visual"
)

// Status is the run-level classification of one target.
type Status string

const (
	StatusPassed Status = "passed" // visual verdict true
	StatusFailed Status = "failed" // visual verdict false
	StatusError  Status = "error"  // hard error, no verdict
)

// Item is one target's entry in a report.
type Item struct {
	visual.Result `yaml:",inline"`
	Status        Status `json:"status" yaml:"status"`
	URL           string `json:"url,omitempty" yaml:"url,omitempty"`
	Captured      bool   `json:"captured" yaml:"captured"`
	DurationMS    int64  `json:"duration_ms" yaml:"duration_ms"`
}

// Summary counts items per status.
type Summary struct {
	Total  int `json:"total" yaml:"total"`
	Passed int `json:"passed" yaml:"passed"`
	Failed int `json:"failed" yaml:"failed"`
	Errors int `json:"errors" yaml:"errors"`
}

// Report is the outcome of one batch run.
type Report struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Suite      string    `json:"suite" yaml:"suite"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	UpdateMode bool      `json:"update_mode" yaml:"update_mode"`
	Results    []Item    `json:"results" yaml:"results"`
	Summary    Summary   `json:"summary" yaml:"summary"`
}

// OK reports whether every item passed.
func (r *Report) OK() bool {
	return r.Summary.Failed == 0 && r.Summary.Errors == 0
}

// HasErrors reports whether any item hit a hard error.
func (r *Report) HasErrors() bool {
	return r.Summary.Errors > 0
}

// Failing returns items that did not pass, in report order.
func (r *Report) Failing() []Item {
	var out []Item
	for _, it := range r.Results {
		if it.Status != StatusPassed {
			out = append(out, it)
		}
	}
	return out
}

func (r *Report) summarize() {
	s := Summary{Total: len(r.Results)}
	for _, it := range r.Results {
		switch it.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		default:
			s.Errors++
		}
	}
	r.Summary = s
}

// Event announces one finished item while a run is in progress.
type Event struct {
	RunID string `json:"run_id"`
	Item  Item   `json:"item"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}
