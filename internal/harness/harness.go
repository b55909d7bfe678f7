package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/roach88/isaac/internal/chronicle"
	"github.com/roach88/isaac/internal/config"
	"github.com/roach88/isaac/internal/ir"
	"github.com/roach88/isaac/internal/isaac"
	"github.com/roach88/isaac/internal/merge"
)

// defaultAssemblage names the assemblage of chronicles that declare none.
const defaultAssemblage = "concepts"

// Harness executes one scenario against its own runtime.
type Harness struct {
	rt     *isaac.Runtime
	cfg    *config.Config
	ctx    context.Context
	logger *slog.Logger

	chronicles map[string]*chronicle.Chronicle
	versions   map[string]*chronicle.Version
	blobs      map[string][]byte
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh runtime with an in-memory store.
//
// Execution flow:
// 1. Build a runtime with the default config plus the scenario's paths
// 2. Create the declared chronicles
// 3. Execute steps in order, stopping at the first unexpected failure
// 4. Evaluate assertions
//
// The returned error reports a scenario that could not be set up; step
// and assertion failures are recorded in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with the runtime logging to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	cfg := config.Default()
	cfg.Paths = append(cfg.Paths, scenario.Paths...)

	rt, err := isaac.New(cfg, isaac.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}
	defer rt.Close()

	h := &Harness{
		rt:         rt,
		cfg:        cfg,
		ctx:        context.Background(),
		logger:     logger,
		chronicles: make(map[string]*chronicle.Chronicle),
		versions:   make(map[string]*chronicle.Version),
		blobs:      make(map[string][]byte),
	}
	if err := h.declare(scenario.Chronicles); err != nil {
		return nil, fmt.Errorf("failed to create chronicles: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if !h.runStep(i, step, result) {
			return result, nil
		}
	}

	for _, msg := range h.EvaluateAssertions(scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// runStep executes a step and records it. It reports whether execution
// should continue.
func (h *Harness) runStep(index int, step Step, result *Result) bool {
	target := step.Label
	if target == "" {
		target = step.Chronicle
	}

	err := h.execute(step)
	switch {
	case err == nil && step.ExpectError == "":
		result.AddTrace(index, step.Op, target, OutcomeOK)
		return true
	case err == nil:
		result.AddTrace(index, step.Op, target, OutcomeOK)
		result.AddError(fmt.Sprintf("steps[%d] %s: expected %s, got success", index, step.Op, step.ExpectError))
		return true
	}

	code := errorCode(err)
	result.AddTrace(index, step.Op, target, code)
	if code == step.ExpectError {
		h.logger.Debug("step failed as expected", "step", index, "op", step.Op, "code", code)
		return true
	}
	result.AddError(fmt.Sprintf("steps[%d] %s: %v", index, step.Op, err))
	return false
}

// errorCode returns the ir error code of err, or ERROR for other errors.
func errorCode(err error) string {
	var e *ir.Error
	if errors.As(err, &e) {
		return string(e.Code)
	}
	return "ERROR"
}

// declare creates the scenario's chronicles in declaration order.
func (h *Harness) declare(defs []ChronicleDef) error {
	for _, def := range defs {
		vt := ir.VersionTypeConcept
		if def.Type != "" {
			var err error
			if vt, err = ir.ParseVersionType(def.Type); err != nil {
				return err
			}
		}

		primordial := config.NameUUID(def.Name)
		if def.UUID != "" {
			primordial = uuid.MustParse(def.UUID)
		}
		aliases := make([]uuid.UUID, len(def.Aliases))
		for i, a := range def.Aliases {
			aliases[i] = uuid.MustParse(a)
		}

		assemblageName := def.Assemblage
		if assemblageName == "" {
			assemblageName = defaultAssemblage
		}
		assemblage, err := h.conceptNid(assemblageName)
		if err != nil {
			return err
		}

		var c *chronicle.Chronicle
		if vt.ObjectType() == ir.ObjectTypeConcept {
			c, err = h.rt.NewConcept(assemblage, primordial, aliases...)
		} else {
			component, lookupErr := h.chronicle(def.Component)
			if lookupErr != nil {
				return fmt.Errorf("chronicle %q: %w", def.Name, lookupErr)
			}
			c, err = h.rt.NewSemantic(vt, assemblage, component.Nid(), primordial, aliases...)
		}
		if err != nil {
			return fmt.Errorf("chronicle %q: %w", def.Name, err)
		}
		h.chronicles[def.Name] = c
	}
	return nil
}

// execute runs one step.
func (h *Harness) execute(step Step) error {
	switch step.Op {
	case OpVersion:
		return h.addVersion(step)
	case OpCommit:
		c, err := h.chronicle(step.Chronicle)
		if err != nil {
			return err
		}
		_, err = c.CommitPending(*step.Time)
		return err
	case OpCancel:
		v, ok := h.versions[step.Label]
		if !ok {
			return fmt.Errorf("unknown version %q", step.Label)
		}
		return v.Cancel()
	case OpAddUUID:
		c, err := h.chronicle(step.Chronicle)
		if err != nil {
			return err
		}
		id := uuid.MustParse(step.UUID)
		if err := h.rt.Identifiers().AddUUIDForNid(id, c.Nid()); err != nil {
			return err
		}
		c.AddUUID(id)
		return nil
	case OpSerialize:
		return h.serialize(step)
	case OpRead:
		data, err := h.blob(step.Blob)
		if err != nil {
			return err
		}
		c, err := chronicle.Read(h.rt.Env(), data)
		if err != nil {
			return err
		}
		h.chronicles[step.Label] = c
		return nil
	case OpMerge:
		return h.merge(step)
	case OpWrite:
		c, err := h.chronicle(step.Chronicle)
		if err != nil {
			return err
		}
		return h.rt.Write(h.ctx, c)
	case OpLoad:
		c, err := h.chronicle(step.Chronicle)
		if err != nil {
			return err
		}
		loaded, found, err := h.rt.Load(h.ctx, c.Nid())
		if err != nil {
			return err
		}
		if !found {
			return ir.Errorf(ir.ErrCodeUnknownIdentifier, "chronicle %q is not stored", step.Chronicle).WithNid(c.Nid())
		}
		h.chronicles[step.Label] = loaded
		return nil
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func (h *Harness) addVersion(step Step) error {
	if _, exists := h.versions[step.Label]; exists {
		return fmt.Errorf("version label %q is already used", step.Label)
	}
	c, err := h.chronicle(step.Chronicle)
	if err != nil {
		return err
	}
	st, err := h.stamp(step)
	if err != nil {
		return err
	}
	p, err := h.payload(c.VersionType(), step.Value)
	if err != nil {
		return err
	}
	v, err := c.NewVersion(st, p)
	if err != nil {
		return err
	}
	h.versions[step.Label] = v
	return nil
}

// stamp builds the stamp of a version step over the runtime defaults.
func (h *Harness) stamp(step Step) (ir.Stamp, error) {
	status := ir.StatusActive
	if step.Status != "" {
		var err error
		if status, err = ir.ParseStatus(step.Status); err != nil {
			return ir.Stamp{}, err
		}
	}
	time := ir.TimeMax
	if step.Time != nil {
		time = *step.Time
	}

	st := h.rt.Stamp(status, time)
	if step.Path != "" {
		path, ok := h.rt.PathNid(step.Path)
		if !ok {
			return ir.Stamp{}, ir.Errorf(ir.ErrCodeUnknownIdentifier, "unknown path %q", step.Path)
		}
		st.Path = path
	}
	var err error
	if step.Author != "" {
		if st.Author, err = h.conceptNid(step.Author); err != nil {
			return ir.Stamp{}, err
		}
	}
	if step.Module != "" {
		if st.Module, err = h.conceptNid(step.Module); err != nil {
			return ir.Stamp{}, err
		}
	}
	return st, nil
}

// payload builds the payload of a version step from its value.
func (h *Harness) payload(vt ir.VersionType, value string) (chronicle.Payload, error) {
	switch vt {
	case ir.VersionTypeConcept:
		return chronicle.ConceptPayload{}, nil
	case ir.VersionTypeMember:
		return chronicle.MemberPayload{}, nil
	case ir.VersionTypeComponentNid:
		c, err := h.chronicle(value)
		if err != nil {
			return nil, err
		}
		return chronicle.ComponentNidPayload{Component: c.Nid()}, nil
	case ir.VersionTypeString:
		return chronicle.StringPayload{Value: value}, nil
	case ir.VersionTypeLong:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("LONG value: %w", err)
		}
		return chronicle.LongPayload{Value: n}, nil
	case ir.VersionTypeDescription:
		var (
			p   = chronicle.DescriptionPayload{Text: value}
			err error
		)
		if p.CaseSignificance, err = h.conceptNid("case-insensitive"); err != nil {
			return nil, err
		}
		if p.Language, err = h.conceptNid("english"); err != nil {
			return nil, err
		}
		if p.DescriptionType, err = h.conceptNid("regular-name"); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported version type %s", vt)
	}
}

func (h *Harness) serialize(step Step) error {
	c, err := h.chronicle(step.Chronicle)
	if err != nil {
		return err
	}
	var data []byte
	if step.Mode == "external" {
		data, err = c.SerializeExternal()
	} else {
		data, err = c.SerializeInternal()
	}
	if err != nil {
		return err
	}
	h.blobs[step.Label] = data
	return nil
}

func (h *Harness) merge(step Step) error {
	a, err := h.blob(step.Inputs[0])
	if err != nil {
		return err
	}
	b, err := h.blob(step.Inputs[1])
	if err != nil {
		return err
	}
	merged, err := merge.Chronicles(a, b, merge.Options{
		Canceled: h.rt.Stamps().IsCanceled,
		Metrics:  h.rt.Metrics(),
	})
	if err != nil {
		return err
	}
	h.blobs[step.Label] = merged
	return nil
}

func (h *Harness) chronicle(name string) (*chronicle.Chronicle, error) {
	c, ok := h.chronicles[name]
	if !ok {
		return nil, fmt.Errorf("unknown chronicle %q", name)
	}
	return c, nil
}

func (h *Harness) blob(name string) ([]byte, error) {
	data, ok := h.blobs[name]
	if !ok {
		return nil, fmt.Errorf("unknown blob %q", name)
	}
	return data, nil
}

// conceptNid returns the nid of a concept known by name only.
func (h *Harness) conceptNid(name string) (ir.Nid, error) {
	return h.rt.Identifiers().AssignNid(config.NameUUID(name))
}
