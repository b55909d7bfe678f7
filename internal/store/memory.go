package store

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/isaac/internal/ir"
	"github.com/roach88/isaac/internal/metrics"
)

// Memory is an in-process DataStore.
//
// Thread-safety: all methods are safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	rows    map[ir.Nid]row
	closed  bool
	metrics *metrics.Metrics
	logger  *slog.Logger
}

var _ DataStore = (*Memory)(nil)

// NewMemory creates an empty in-memory store. m and logger may be nil.
func NewMemory(m *metrics.Metrics, logger *slog.Logger) *Memory {
	return &Memory{rows: make(map[ir.Nid]row), metrics: m, logger: loggerOrDefault(logger)}
}

func (s *Memory) PutChronicleData(ctx context.Context, c Chronicle) error {
	return putChronicle(ctx, s, c, s.metrics, s.logger)
}

func (s *Memory) GetChronicleVersionData(_ context.Context, nid ir.Nid) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, errClosed
	}
	r, ok := s.rows[nid]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(r.data), true, nil
}

func (s *Memory) GetAssemblageConceptNids(_ context.Context) ([]ir.Nid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	seen := make(map[ir.Nid]bool)
	nids := []ir.Nid{}
	for _, r := range s.rows {
		if !seen[r.assemblage] {
			seen[r.assemblage] = true
			nids = append(nids, r.assemblage)
		}
	}
	slices.Sort(nids)
	return nids, nil
}

func (s *Memory) GetSemanticNidsForComponent(_ context.Context, nid ir.Nid) ([]ir.Nid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	nids := []ir.Nid{}
	for _, r := range s.rows {
		if r.objectType == ir.ObjectTypeSemantic && r.referencedComponent == nid {
			nids = append(nids, r.nid)
		}
	}
	slices.Sort(nids)
	return nids, nil
}

func (s *Memory) WriteSequence(_ context.Context, nid ir.Nid) (int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, errClosed
	}
	return s.rows[nid].writeSequence, nil
}

// Close releases the stored data. Further calls fail.
func (s *Memory) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.rows = nil
	return nil
}

func (s *Memory) load(_ context.Context, nid ir.Nid) (int32, []byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, nil, false, errClosed
	}
	r, ok := s.rows[nid]
	return r.writeSequence, r.data, ok, nil
}

func (s *Memory) compareAndPut(_ context.Context, r row, expected int32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, errClosed
	}
	if s.rows[r.nid].writeSequence != expected {
		return false, nil
	}
	r.data = slices.Clone(r.data)
	s.rows[r.nid] = r
	return true, nil
}
