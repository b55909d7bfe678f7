package ir

import (
	"fmt"
	"math"
)

// Nid is a dense native identifier, 1:1 with a chronicle's identity.
type Nid int32

// Stamp time sentinels.
const (
	// TimeMax marks an uncommitted (pending) stamp.
	TimeMax int64 = math.MaxInt64

	// TimeMin marks a canceled stamp.
	TimeMin int64 = math.MinInt64
)

// CanceledStampSequence is the reserved stamp sequence of a canceled version.
const CanceledStampSequence int32 = -1

// Status is the lifecycle status recorded in a STAMP.
type Status byte

const (
	StatusActive     Status = 0
	StatusInactive   Status = 1
	StatusPrimordial Status = 2
	StatusCanceled   Status = 3
)

// String returns the upper-case name of the status.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusInactive:
		return "INACTIVE"
	case StatusPrimordial:
		return "PRIMORDIAL"
	case StatusCanceled:
		return "CANCELED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(s))
	}
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	return s <= StatusCanceled
}

// ParseStatus parses a status name as produced by Status.String.
func ParseStatus(name string) (Status, error) {
	switch name {
	case "ACTIVE", "active":
		return StatusActive, nil
	case "INACTIVE", "inactive":
		return StatusInactive, nil
	case "PRIMORDIAL", "primordial":
		return StatusPrimordial, nil
	case "CANCELED", "canceled":
		return StatusCanceled, nil
	default:
		return 0, fmt.Errorf("unknown status %q", name)
	}
}

// Stamp is the (status, time, author, module, path) provenance tuple of a
// version.
type Stamp struct {
	Status Status `json:"status"`
	Time   int64  `json:"time"`
	Author Nid    `json:"author"`
	Module Nid    `json:"module"`
	Path   Nid    `json:"path"`
}

// IsUncommitted reports whether the stamp is pending.
func (s Stamp) IsUncommitted() bool {
	return s.Time == TimeMax
}

// IsCanceled reports whether the stamp has been retracted.
func (s Stamp) IsCanceled() bool {
	return s.Time == TimeMin || s.Status == StatusCanceled
}

// CanceledStamp is the stamp every canceled sequence resolves to.
var CanceledStamp = Stamp{Status: StatusCanceled, Time: TimeMin}

// String renders the stamp for diagnostics.
func (s Stamp) String() string {
	return fmt.Sprintf("%s t:%s a:%d m:%d p:%d", s.Status, FormatTime(s.Time), s.Author, s.Module, s.Path)
}

// FormatTime renders a stamp time, naming the sentinels.
func FormatTime(t int64) string {
	switch t {
	case TimeMax:
		return "UNCOMMITTED"
	case TimeMin:
		return "CANCELED"
	default:
		return fmt.Sprintf("%d", t)
	}
}
