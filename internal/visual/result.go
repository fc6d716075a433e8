package visual

// Outcome names the branch a comparison ended in.
type Outcome string

const (
	OutcomeMatch           Outcome = "match"
	OutcomeMismatch        Outcome = "mismatch"
	OutcomeMissingBaseline Outcome = "missing_baseline"
	OutcomeBaselineCreated Outcome = "baseline_created"
	OutcomeBaselineUpdated Outcome = "baseline_updated"
	OutcomeDecodeError     Outcome = "decode_error"
)

// Passed reports whether the outcome is a passing verdict.
func (o Outcome) Passed() bool {
	switch o {
	case OutcomeMatch, OutcomeBaselineCreated, OutcomeBaselineUpdated:
		return true
	default:
		return false
	}
}

// Result describes one comparison. Distance is -1 when no distance was computed.
type Result struct {
	ID           string  `json:"id" yaml:"id"`
	Outcome      Outcome `json:"outcome" yaml:"outcome"`
	Distance     int     `json:"distance" yaml:"distance"`
	Threshold    int     `json:"threshold" yaml:"threshold"`
	BaselinePath string  `json:"baseline_path" yaml:"baseline_path"`
	ActualPath   string  `json:"actual_path" yaml:"actual_path"`
	Error        string  `json:"error,omitempty" yaml:"error,omitempty"`

	// Err holds the soft error absorbed into a failing verdict, if any.
	Err error `json:"-" yaml:"-"`
}

// Passed reports the boolean verdict.
func (r Result) Passed() bool { return r.Outcome.Passed() }

func (r *Result) absorb(outcome Outcome, err error) {
	r.Outcome = outcome
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
}
