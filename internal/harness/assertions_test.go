package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runFailing runs a scenario whose steps succeed and returns its
// assertion failures.
func runFailing(t *testing.T, assertions ...Assertion) []string {
	t.Helper()
	scenario := &Scenario{
		Name:        "assertions",
		Description: "Assertion failures",
		Chronicles:  []ChronicleDef{{Name: "aspirin", UUID: "11111111-1111-1111-1111-111111111111"}},
		Steps: []Step{
			{Op: OpVersion, Chronicle: "aspirin", Label: "s1", Time: int64Ptr(1000), Path: "master"},
			{Op: OpVersion, Chronicle: "aspirin", Label: "s2", Time: int64Ptr(2000), Path: "master"},
			{Op: OpSerialize, Chronicle: "aspirin", Mode: "internal", Label: "int"},
			{Op: OpSerialize, Chronicle: "aspirin", Mode: "external", Label: "ext"},
		},
		Assertions: assertions,
	}
	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Trace, len(scenario.Steps))
	return result.Errors
}

func TestAssertLatest_Mismatch(t *testing.T) {
	errs := runFailing(t, Assertion{
		Type:       AssertLatest,
		Chronicle:  "aspirin",
		Coordinate: &CoordinateDef{Path: "master"},
		Versions:   []string{"s1"},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "assertion[0] latest: version set mismatch")
	assert.Contains(t, errs[0], "expected [s1], got [s2]")
}

func TestAssertLatest_Match(t *testing.T) {
	errs := runFailing(t, Assertion{
		Type:       AssertLatest,
		Chronicle:  "aspirin",
		Coordinate: &CoordinateDef{Path: "master", Time: int64Ptr(1000)},
		Versions:   []string{"s1"},
	})
	assert.Empty(t, errs)
}

func TestAssertLatest_UnknownPath(t *testing.T) {
	errs := runFailing(t, Assertion{
		Type:       AssertLatest,
		Chronicle:  "aspirin",
		Coordinate: &CoordinateDef{Path: "nowhere"},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown path "nowhere"`)
}

func TestAssertLatestActive_Mismatch(t *testing.T) {
	active := false
	errs := runFailing(t, Assertion{
		Type:       AssertLatestActive,
		Chronicle:  "aspirin",
		Coordinate: &CoordinateDef{Path: "master"},
		Active:     &active,
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "expected false, got true")
}

func TestAssertRelative(t *testing.T) {
	errs := runFailing(t,
		Assertion{Type: AssertRelative, A: "s1", B: "s2", Coordinate: &CoordinateDef{Path: "master"}, Position: "before"},
		Assertion{Type: AssertRelative, A: "s2", B: "s2", Coordinate: &CoordinateDef{Path: "master"}, Position: "EQUAL"},
		Assertion{Type: AssertRelative, A: "s2", B: "s1", Coordinate: &CoordinateDef{Path: "master"}, Position: "BEFORE"},
	)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "assertion[2] relative: position of s2 to s1")
	assert.Contains(t, errs[0], "expected BEFORE, got AFTER")
}

func TestAssertRelative_UnknownLabel(t *testing.T) {
	errs := runFailing(t, Assertion{
		Type: AssertRelative, A: "s1", B: "s9", Coordinate: &CoordinateDef{Path: "master"}, Position: "BEFORE",
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown version "s1" or "s9"`)
}

func TestAssertVersions_FromBlobs(t *testing.T) {
	errs := runFailing(t,
		Assertion{Type: AssertVersions, Blob: "int", Versions: []string{"s2", "s1"}},
		Assertion{Type: AssertVersions, Blob: "ext", Versions: []string{"s1", "s2"}},
		Assertion{Type: AssertVersions, Blob: "int", Versions: []string{"s1"}},
	)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "assertion[2] versions")
	assert.Contains(t, errs[0], "got [s1 s2]")
}

func TestAssertVersions_UnknownBlob(t *testing.T) {
	errs := runFailing(t, Assertion{Type: AssertVersions, Blob: "missing"})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown blob "missing"`)
}

func TestAssertUUIDs(t *testing.T) {
	errs := runFailing(t,
		Assertion{Type: AssertUUIDs, Chronicle: "aspirin", UUIDs: []string{"11111111-1111-1111-1111-111111111111"}},
		Assertion{Type: AssertUUIDs, Chronicle: "aspirin", UUIDs: []string{"22222222-2222-2222-2222-222222222222"}},
	)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "assertion[1] uuids: uuid set mismatch")
}

func TestAssertSameBytes(t *testing.T) {
	errs := runFailing(t,
		Assertion{Type: AssertSameBytes, Blobs: []string{"int", "int"}},
		Assertion{Type: AssertSameBytes, Blobs: []string{"int", "ext"}},
	)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "int and ext differ")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Index: 3, Type: AssertLatest, Message: "boom"}
	assert.Equal(t, "assertion[3] latest: boom", err.Error())

	err = &AssertionError{Index: 1, Type: AssertLatestActive, Message: "mismatch", Expected: true, Actual: false}
	assert.Equal(t, "assertion[1] latest_active: mismatch (expected true, got false)", err.Error())
}
