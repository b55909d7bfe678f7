package harness

import (
	"bytes"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/roach88/isaac/internal/config"
	"github.com/roach88/isaac/internal/ir"
)

// Scenario defines a chronicle scenario: the chronicles it works on, the
// steps that build and exchange their versions, and the assertions on the
// outcome.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Paths are added to the path graph after the configured paths.
	Paths []config.PathConfig `yaml:"paths,omitempty"`

	// Chronicles declares the chronicles steps refer to by name.
	Chronicles []ChronicleDef `yaml:"chronicles"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// ChronicleDef declares one chronicle.
type ChronicleDef struct {
	// Name is the label steps use.
	Name string `yaml:"name"`

	// UUID is the primordial UUID. Empty means a name-based UUID.
	UUID string `yaml:"uuid,omitempty"`

	// Aliases are additional UUIDs known at creation.
	Aliases []string `yaml:"aliases,omitempty"`

	// Type is the version type name. Empty means CONCEPT.
	Type string `yaml:"type,omitempty"`

	// Assemblage names the assemblage concept. Empty means "concepts".
	Assemblage string `yaml:"assemblage,omitempty"`

	// Component names the chronicle a semantic refers to.
	Component string `yaml:"component,omitempty"`
}

// Step is one scenario operation. Which fields apply depends on Op.
type Step struct {
	Op        string `yaml:"op"`
	Chronicle string `yaml:"chronicle,omitempty"`

	// Label names what the step produces: a version, a blob or a chronicle.
	Label string `yaml:"label,omitempty"`

	// Stamp fields of a version step. A nil Time leaves it uncommitted;
	// empty names fall back to the configured defaults.
	Status string `yaml:"status,omitempty"`
	Time   *int64 `yaml:"time,omitempty"`
	Path   string `yaml:"path,omitempty"`
	Author string `yaml:"author,omitempty"`
	Module string `yaml:"module,omitempty"`

	// Value is the payload of STRING, LONG and DESCRIPTION versions, or
	// the referenced chronicle of COMPONENT_NID versions.
	Value string `yaml:"value,omitempty"`

	// Mode is internal or external, for serialize.
	Mode string `yaml:"mode,omitempty"`

	// Blob is the input of read.
	Blob string `yaml:"blob,omitempty"`

	// Inputs are the two blobs of merge.
	Inputs []string `yaml:"inputs,omitempty"`

	// UUID is the alias of add_uuid.
	UUID string `yaml:"uuid,omitempty"`

	// ExpectError is the error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step operations.
const (
	OpVersion   = "version"
	OpCommit    = "commit"
	OpCancel    = "cancel"
	OpAddUUID   = "add_uuid"
	OpSerialize = "serialize"
	OpRead      = "read"
	OpMerge     = "merge"
	OpWrite     = "write"
	OpLoad      = "load"
)

// CoordinateDef is a stamp coordinate by name.
type CoordinateDef struct {
	// Path is the viewing path name.
	Path string `yaml:"path"`

	// Time is the horizon. nil means everything, including uncommitted.
	Time *int64 `yaml:"time,omitempty"`

	// Precedence is PATH (default) or TIME.
	Precedence string `yaml:"precedence,omitempty"`

	// Statuses restricts visible statuses. Empty allows all but CANCELED.
	Statuses []string `yaml:"statuses,omitempty"`
}

// Assertion validates the state after the last step.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Chronicle is the subject of latest, latest_active, versions, uuids.
	Chronicle string `yaml:"chronicle,omitempty"`

	// Blob is the subject of versions, instead of a chronicle.
	Blob string `yaml:"blob,omitempty"`

	// Blobs are the two blobs of same_bytes.
	Blobs []string `yaml:"blobs,omitempty"`

	// Coordinate is used by latest, latest_active and relative.
	Coordinate *CoordinateDef `yaml:"coordinate,omitempty"`

	// Versions are the expected version labels (order-independent).
	Versions []string `yaml:"versions,omitempty"`

	// A and B are the version labels of relative.
	A string `yaml:"a,omitempty"`
	B string `yaml:"b,omitempty"`

	// Position is the expected relative position of A to B.
	Position string `yaml:"position,omitempty"`

	// UUIDs are the expected chronicle UUIDs (order-independent).
	UUIDs []string `yaml:"uuids,omitempty"`

	// Active is the expected latest_active outcome.
	Active *bool `yaml:"active,omitempty"`
}

// Assertion type constants.
const (
	AssertLatest       = "latest"
	AssertLatestActive = "latest_active"
	AssertRelative     = "relative"
	AssertVersions     = "versions"
	AssertUUIDs        = "uuids"
	AssertSameBytes    = "same_bytes"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that names
// refer to declared chronicles. Labels produced by steps are checked when
// the scenario runs.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Chronicles) == 0 {
		return fmt.Errorf("chronicles list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	declared := make(map[string]bool, len(s.Chronicles))
	for i, c := range s.Chronicles {
		if c.Name == "" {
			return fmt.Errorf("chronicles[%d]: name is required", i)
		}
		if declared[c.Name] {
			return fmt.Errorf("chronicles[%d]: duplicate name %q", i, c.Name)
		}
		declared[c.Name] = true

		if c.UUID != "" {
			if _, err := uuid.Parse(c.UUID); err != nil {
				return fmt.Errorf("chronicles[%d].uuid: %w", i, err)
			}
		}
		for j, alias := range c.Aliases {
			if _, err := uuid.Parse(alias); err != nil {
				return fmt.Errorf("chronicles[%d].aliases[%d]: %w", i, j, err)
			}
		}
		vt := ir.VersionTypeConcept
		if c.Type != "" {
			var err error
			if vt, err = ir.ParseVersionType(c.Type); err != nil {
				return fmt.Errorf("chronicles[%d].type: %w", i, err)
			}
		}
		if vt.ObjectType() == ir.ObjectTypeSemantic && c.Component == "" {
			return fmt.Errorf("chronicles[%d]: component is required for %s", i, vt)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateStep checks the fields a step's operation needs.
func validateStep(index int, step *Step) error {
	needChronicle := func() error {
		if step.Chronicle == "" {
			return fmt.Errorf("steps[%d]: chronicle is required for %s", index, step.Op)
		}
		return nil
	}
	needLabel := func() error {
		if step.Label == "" {
			return fmt.Errorf("steps[%d]: label is required for %s", index, step.Op)
		}
		return nil
	}

	switch step.Op {
	case OpVersion:
		if err := needChronicle(); err != nil {
			return err
		}
		if err := needLabel(); err != nil {
			return err
		}
		if step.Status != "" {
			if _, err := ir.ParseStatus(step.Status); err != nil {
				return fmt.Errorf("steps[%d].status: %w", index, err)
			}
		}
	case OpCommit:
		if err := needChronicle(); err != nil {
			return err
		}
		if step.Time == nil {
			return fmt.Errorf("steps[%d]: time is required for commit", index)
		}
	case OpCancel:
		return needLabel()
	case OpAddUUID:
		if err := needChronicle(); err != nil {
			return err
		}
		if _, err := uuid.Parse(step.UUID); err != nil {
			return fmt.Errorf("steps[%d].uuid: %w", index, err)
		}
	case OpSerialize:
		if err := needChronicle(); err != nil {
			return err
		}
		if err := needLabel(); err != nil {
			return err
		}
		if step.Mode != "internal" && step.Mode != "external" {
			return fmt.Errorf("steps[%d]: mode must be internal or external, got %q", index, step.Mode)
		}
	case OpRead:
		if step.Blob == "" {
			return fmt.Errorf("steps[%d]: blob is required for read", index)
		}
		return needLabel()
	case OpMerge:
		if len(step.Inputs) != 2 {
			return fmt.Errorf("steps[%d]: merge needs exactly two inputs", index)
		}
		if step.ExpectError == "" {
			return needLabel()
		}
	case OpWrite:
		return needChronicle()
	case OpLoad:
		if err := needChronicle(); err != nil {
			return err
		}
		return needLabel()
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertLatest, AssertLatestActive:
		if a.Chronicle == "" {
			return fmt.Errorf("assertions[%d]: chronicle is required for %s", index, a.Type)
		}
		if a.Coordinate == nil {
			return fmt.Errorf("assertions[%d]: coordinate is required for %s", index, a.Type)
		}
		if a.Type == AssertLatestActive && a.Active == nil {
			return fmt.Errorf("assertions[%d]: active is required for latest_active", index)
		}
	case AssertRelative:
		if a.A == "" || a.B == "" {
			return fmt.Errorf("assertions[%d]: a and b are required for relative", index)
		}
		if a.Coordinate == nil {
			return fmt.Errorf("assertions[%d]: coordinate is required for relative", index)
		}
		if a.Position == "" {
			return fmt.Errorf("assertions[%d]: position is required for relative", index)
		}
	case AssertVersions:
		if (a.Chronicle == "") == (a.Blob == "") {
			return fmt.Errorf("assertions[%d]: exactly one of chronicle and blob is required for versions", index)
		}
	case AssertUUIDs:
		if a.Chronicle == "" {
			return fmt.Errorf("assertions[%d]: chronicle is required for uuids", index)
		}
	case AssertSameBytes:
		if len(a.Blobs) != 2 {
			return fmt.Errorf("assertions[%d]: same_bytes needs exactly two blobs", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
