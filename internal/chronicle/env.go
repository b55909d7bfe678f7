package chronicle

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/isaac/internal/identifier"
	"github.com/roach88/isaac/internal/ir"
	"github.com/roach88/isaac/internal/metrics"
	"github.com/roach88/isaac/internal/position"
	"github.com/roach88/isaac/internal/stamp"
)

// Identifiers maps UUIDs to nids and back.
type Identifiers interface {
	AssignNid(uuids ...uuid.UUID) (ir.Nid, error)
	PrimordialUUID(nid ir.Nid) (uuid.UUID, error)
}

var _ Identifiers = (*identifier.Service)(nil)

// Env bundles the services chronicles resolve against. One Env is shared
// by every chronicle of a runtime.
type Env struct {
	Stamps      *stamp.Registry
	Paths       *stamp.Paths
	Identifiers Identifiers
	Calculator  *position.Calculator
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// NewEnv creates an Env and its position calculator. logger and m may be
// nil.
func NewEnv(stamps *stamp.Registry, paths *stamp.Paths, ids Identifiers, logger *slog.Logger, m *metrics.Metrics) *Env {
	if logger == nil {
		logger = slog.Default()
	}
	return &Env{
		Stamps:      stamps,
		Paths:       paths,
		Identifiers: ids,
		Calculator:  position.NewCalculator(stamps, paths),
		Logger:      logger,
		Metrics:     m,
	}
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}
