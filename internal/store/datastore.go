package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/isaac/internal/ir"
	"github.com/roach88/isaac/internal/metrics"
)

// Chronicle is the part of a chronicle the store writes.
type Chronicle interface {
	Nid() ir.Nid
	ObjectType() ir.ObjectType
	AssemblageNid() ir.Nid
	ReferencedComponentNid() ir.Nid
	WriteSequence() int32
	SetWriteSequence(seq int32)
	SerializeInternal() ([]byte, error)
	MergeStampData(writeSequence int32, other []byte) ([]byte, error)
}

// DataStore persists chronicle bytes by nid.
type DataStore interface {
	// PutChronicleData writes c under the optimistic write discipline.
	// On success c carries the new write sequence.
	PutChronicleData(ctx context.Context, c Chronicle) error

	// GetChronicleVersionData returns the stored bytes of nid. found is
	// false when nothing is stored.
	GetChronicleVersionData(ctx context.Context, nid ir.Nid) (data []byte, found bool, err error)

	// GetAssemblageConceptNids returns every assemblage nid in use, sorted.
	GetAssemblageConceptNids(ctx context.Context) ([]ir.Nid, error)

	// GetSemanticNidsForComponent returns the semantics whose referenced
	// component is nid, sorted.
	GetSemanticNidsForComponent(ctx context.Context, nid ir.Nid) ([]ir.Nid, error)

	// WriteSequence returns the stored write sequence of nid, or 0.
	WriteSequence(ctx context.Context, nid ir.Nid) (int32, error)

	Close() error
}

// row is one stored chronicle.
type row struct {
	nid                 ir.Nid
	objectType          ir.ObjectType
	assemblage          ir.Nid
	referencedComponent ir.Nid
	writeSequence       int32
	data                []byte
}

// casBackend is the primitive each backend provides to putChronicle.
type casBackend interface {
	// load returns the stored write sequence and bytes of nid.
	load(ctx context.Context, nid ir.Nid) (seq int32, data []byte, found bool, err error)

	// compareAndPut stores r if the stored write sequence of r.nid is
	// expected (0 meaning absent). It reports whether r was stored.
	compareAndPut(ctx context.Context, r row, expected int32) (bool, error)
}

// maxPutAttempts bounds the merge-and-retry loop. Each retry follows a
// concurrent write to the same nid.
const maxPutAttempts = 64

// putChronicle runs the optimistic write discipline against b.
func putChronicle(ctx context.Context, b casBackend, c Chronicle, m *metrics.Metrics, logger *slog.Logger) error {
	data, err := c.SerializeInternal()
	if err != nil {
		return fmt.Errorf("put chronicle %d: %w", c.Nid(), err)
	}

	mode := metrics.WriteDirect
	for attempt := 0; attempt < maxPutAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("put chronicle %d: %w", c.Nid(), err)
		}

		stored, storedData, found, err := b.load(ctx, c.Nid())
		if err != nil {
			return fmt.Errorf("put chronicle %d: %w", c.Nid(), err)
		}
		if found && stored != c.WriteSequence() {
			logger.Debug("write sequence moved, merging",
				"nid", c.Nid(), "expected", c.WriteSequence(), "stored", stored)
			if data, err = c.MergeStampData(stored, storedData); err != nil {
				return fmt.Errorf("put chronicle %d: %w", c.Nid(), err)
			}
			mode = metrics.WriteMerged
		}
		if !found {
			stored = 0
		}

		r := row{
			nid:                 c.Nid(),
			objectType:          c.ObjectType(),
			assemblage:          c.AssemblageNid(),
			referencedComponent: c.ReferencedComponentNid(),
			writeSequence:       stored + 1,
			data:                data,
		}
		ok, err := b.compareAndPut(ctx, r, stored)
		if err != nil {
			return fmt.Errorf("put chronicle %d: %w", c.Nid(), err)
		}
		if ok {
			c.SetWriteSequence(r.writeSequence)
			m.StoreWrite(mode)
			return nil
		}
	}
	return fmt.Errorf("put chronicle %d: write sequence still moving after %d attempts", c.Nid(), maxPutAttempts)
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

var errClosed = errors.New("store is closed")
