package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/isaac/internal/ir"
)

// TraceSnapshot captures the trace of a scenario execution.
// It is rendered as canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts s for ir.MarshalCanonical, which only handles
// maps, slices and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		trace[i] = map[string]any{
			"step":    event.Step,
			"op":      event.Op,
			"target":  event.Target,
			"outcome": event.Outcome,
		}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
	}
}

// MarshalTrace renders the trace of result as canonical JSON.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: scenarioName, Trace: result.Trace}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
