package ir

import "fmt"

// Precedence decides how stamps on unrelated branches are ordered.
type Precedence byte

const (
	// PrecedencePath lets the viewing path win over unrelated branches.
	PrecedencePath Precedence = iota
	// PrecedenceTime orders purely by chronology; unrelated branches are
	// unreachable from each other.
	PrecedenceTime
)

// String returns the upper-case name of the precedence.
func (p Precedence) String() string {
	switch p {
	case PrecedencePath:
		return "PATH"
	case PrecedenceTime:
		return "TIME"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(p))
	}
}

// ParsePrecedence parses "PATH" or "TIME" (case-insensitive forms accepted).
func ParsePrecedence(name string) (Precedence, error) {
	switch name {
	case "PATH", "path":
		return PrecedencePath, nil
	case "TIME", "time":
		return PrecedenceTime, nil
	default:
		return 0, fmt.Errorf("unknown precedence %q", name)
	}
}

// RelativePosition is the outcome of comparing two stamps under a
// coordinate.
type RelativePosition byte

const (
	Before RelativePosition = iota
	Equal
	After
	Unreachable
	Contradiction
)

// String returns the upper-case name of the position.
func (r RelativePosition) String() string {
	switch r {
	case Before:
		return "BEFORE"
	case Equal:
		return "EQUAL"
	case After:
		return "AFTER"
	case Unreachable:
		return "UNREACHABLE"
	case Contradiction:
		return "CONTRADICTION"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(r))
	}
}

// Invert returns the position seen from the other stamp.
func (r RelativePosition) Invert() RelativePosition {
	switch r {
	case Before:
		return After
	case After:
		return Before
	default:
		return r
	}
}

// StampCoordinate holds the caller-supplied view parameters used to decide
// version visibility. It is never stored.
type StampCoordinate struct {
	// Path is the viewing path.
	Path Nid

	// Time is the horizon; stamps later than Time are invisible. Use
	// TimeMax to include uncommitted work.
	Time int64

	// AllowedStatus restricts visible statuses. Empty allows every status
	// except CANCELED.
	AllowedStatus []Status

	// Precedence orders stamps on unrelated branches.
	Precedence Precedence
}

// NewStampCoordinate returns a coordinate that sees everything on path,
// including uncommitted work, with path precedence.
func NewStampCoordinate(path Nid) StampCoordinate {
	return StampCoordinate{Path: path, Time: TimeMax, Precedence: PrecedencePath}
}

// Allows reports whether status passes the coordinate's status filter.
func (c StampCoordinate) Allows(status Status) bool {
	if status == StatusCanceled {
		return false
	}
	if len(c.AllowedStatus) == 0 {
		return true
	}
	for _, s := range c.AllowedStatus {
		if s == status {
			return true
		}
	}
	return false
}
