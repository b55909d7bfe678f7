package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Step    int    `json:"step"`
	Op      string `json:"op"`
	Target  string `json:"target"`
	Outcome string `json:"outcome"`
}

// Outcomes recorded in the trace.
const (
	OutcomeOK = "ok"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step behaved as expected and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace lists the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(step int, op, target, outcome string) {
	r.Trace = append(r.Trace, TraceEvent{Step: step, Op: op, Target: target, Outcome: outcome})
}
