package harness

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/isaac/internal/chronicle"
	"github.com/roach88/isaac/internal/ir"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Index    int
	Type     string
	Message  string
	Expected any
	Actual   any
}

func (e *AssertionError) Error() string {
	if e.Expected == nil && e.Actual == nil {
		return fmt.Sprintf("assertion[%d] %s: %s", e.Index, e.Type, e.Message)
	}
	return fmt.Sprintf("assertion[%d] %s: %s (expected %v, got %v)",
		e.Index, e.Type, e.Message, e.Expected, e.Actual)
}

// EvaluateAssertions evaluates every assertion and returns the failures.
func (h *Harness) EvaluateAssertions(assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := h.evaluate(i, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func (h *Harness) evaluate(index int, a Assertion) error {
	fail := func(msg string, expected, actual any) error {
		return &AssertionError{Index: index, Type: a.Type, Message: msg, Expected: expected, Actual: actual}
	}

	switch a.Type {
	case AssertLatest:
		c, coord, err := h.subject(a)
		if err != nil {
			return fail(err.Error(), nil, nil)
		}
		latest, err := c.LatestVersion(coord)
		if err != nil {
			return fail(err.Error(), nil, nil)
		}
		seqs := make([]int32, len(latest))
		for i, v := range latest {
			seqs[i] = v.StampSequence()
		}
		return h.compareVersions(a.Versions, seqs, fail)

	case AssertLatestActive:
		c, coord, err := h.subject(a)
		if err != nil {
			return fail(err.Error(), nil, nil)
		}
		active, err := c.IsLatestActive(coord)
		if err != nil {
			return fail(err.Error(), nil, nil)
		}
		if active != *a.Active {
			return fail("latest active mismatch", *a.Active, active)
		}
		return nil

	case AssertRelative:
		va, okA := h.versions[a.A]
		vb, okB := h.versions[a.B]
		if !okA || !okB {
			return fail(fmt.Sprintf("unknown version %q or %q", a.A, a.B), nil, nil)
		}
		coord, err := h.coordinate(a.Coordinate)
		if err != nil {
			return fail(err.Error(), nil, nil)
		}
		pos, err := h.rt.Env().Calculator.Relative(va.StampSequence(), vb.StampSequence(), coord)
		if err != nil {
			return fail(err.Error(), nil, nil)
		}
		if want := strings.ToUpper(a.Position); pos.String() != want {
			return fail(fmt.Sprintf("position of %s to %s", a.A, a.B), want, pos.String())
		}
		return nil

	case AssertVersions:
		c, err := h.versionsSubject(a)
		if err != nil {
			return fail(err.Error(), nil, nil)
		}
		var live []int32
		for _, seq := range c.VersionStampSequences() {
			if !h.rt.Stamps().IsCanceled(seq) {
				live = append(live, seq)
			}
		}
		return h.compareVersions(a.Versions, live, fail)

	case AssertUUIDs:
		c, err := h.chronicle(a.Chronicle)
		if err != nil {
			return fail(err.Error(), nil, nil)
		}
		want := make([]string, len(a.UUIDs))
		for i, s := range a.UUIDs {
			id, err := uuid.Parse(s)
			if err != nil {
				return fail(err.Error(), nil, nil)
			}
			want[i] = id.String()
		}
		got := make([]string, 0, len(want))
		for _, id := range c.UUIDs() {
			got = append(got, id.String())
		}
		slices.Sort(want)
		slices.Sort(got)
		if !slices.Equal(want, got) {
			return fail("uuid set mismatch", want, got)
		}
		return nil

	case AssertSameBytes:
		x, err := h.blob(a.Blobs[0])
		if err != nil {
			return fail(err.Error(), nil, nil)
		}
		y, err := h.blob(a.Blobs[1])
		if err != nil {
			return fail(err.Error(), nil, nil)
		}
		if !bytes.Equal(x, y) {
			return fail(fmt.Sprintf("%s and %s differ", a.Blobs[0], a.Blobs[1]), len(x), len(y))
		}
		return nil

	default:
		return fail("unknown assertion type", nil, nil)
	}
}

// subject returns the chronicle and coordinate of a latest assertion.
func (h *Harness) subject(a Assertion) (*chronicle.Chronicle, ir.StampCoordinate, error) {
	c, err := h.chronicle(a.Chronicle)
	if err != nil {
		return nil, ir.StampCoordinate{}, err
	}
	coord, err := h.coordinate(a.Coordinate)
	if err != nil {
		return nil, ir.StampCoordinate{}, err
	}
	return c, coord, nil
}

// versionsSubject returns the chronicle of a versions assertion, reading
// it from the blob when one is named.
func (h *Harness) versionsSubject(a Assertion) (*chronicle.Chronicle, error) {
	if a.Chronicle != "" {
		return h.chronicle(a.Chronicle)
	}
	data, err := h.blob(a.Blob)
	if err != nil {
		return nil, err
	}
	return chronicle.Read(h.rt.Env(), data)
}

func (h *Harness) coordinate(def *CoordinateDef) (ir.StampCoordinate, error) {
	time := ir.TimeMax
	if def.Time != nil {
		time = *def.Time
	}
	precedence := ir.PrecedencePath
	if def.Precedence != "" {
		var err error
		if precedence, err = ir.ParsePrecedence(def.Precedence); err != nil {
			return ir.StampCoordinate{}, err
		}
	}
	allowed := make([]ir.Status, 0, len(def.Statuses))
	for _, name := range def.Statuses {
		s, err := ir.ParseStatus(name)
		if err != nil {
			return ir.StampCoordinate{}, err
		}
		allowed = append(allowed, s)
	}
	return h.rt.Coordinate(def.Path, time, precedence, allowed...)
}

// compareVersions compares expected version labels with actual stamp
// sequences as sets, reporting the actual side as labels.
func (h *Harness) compareVersions(labels []string, actual []int32, fail func(string, any, any) error) error {
	want := make([]int32, 0, len(labels))
	for _, label := range labels {
		v, ok := h.versions[label]
		if !ok {
			return fail(fmt.Sprintf("unknown version %q", label), nil, nil)
		}
		want = append(want, v.StampSequence())
	}
	got := slices.Clone(actual)
	slices.Sort(want)
	slices.Sort(got)
	want = slices.Compact(want)
	got = slices.Compact(got)
	if slices.Equal(want, got) {
		return nil
	}

	expected := slices.Clone(labels)
	slices.Sort(expected)
	return fail("version set mismatch", expected, h.labels(got))
}

// labels names stamp sequences by the first version label bound to each.
func (h *Harness) labels(seqs []int32) []string {
	names := make([]string, 0, len(seqs))
	for _, seq := range seqs {
		name := fmt.Sprintf("seq:%d", seq)
		var matches []string
		for label, v := range h.versions {
			if v.StampSequence() == seq {
				matches = append(matches, label)
			}
		}
		if len(matches) > 0 {
			slices.Sort(matches)
			name = matches[0]
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
