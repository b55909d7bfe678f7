// Package identifier maps portable UUIDs to dense native identifiers.
//
// Every chronicle has one primordial UUID and zero or more alias UUIDs, all
// bound to a single nid. Nids are allocated upward from math.MinInt32+1,
// are stable for the life of the service and are never reused.
package identifier

import (
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/isaac/internal/ir"
)

// FirstNid is the first nid handed out by a fresh service.
const FirstNid ir.Nid = math.MinInt32 + 1

// Service is the in-memory identifier service.
//
// Thread-safety: all methods are safe for concurrent use.
type Service struct {
	mu     sync.RWMutex
	byUUID map[uuid.UUID]ir.Nid
	byNid  map[ir.Nid][]uuid.UUID // primordial first
	next   ir.Nid
}

// New creates an empty identifier service.
func New() *Service {
	return &Service{
		byUUID: make(map[uuid.UUID]ir.Nid),
		byNid:  make(map[ir.Nid][]uuid.UUID),
		next:   FirstNid,
	}
}

// AssignNid returns the nid bound to uuids, allocating one if none of them
// is known. The first UUID becomes the primordial UUID of a new nid; any
// unknown UUIDs are added as aliases of an existing nid.
//
// UUIDs already bound to two different nids are an IDENTIFIER_CONFLICT.
func (s *Service) AssignNid(uuids ...uuid.UUID) (ir.Nid, error) {
	if len(uuids) == 0 {
		return 0, ir.Errorf(ir.ErrCodeUnknownIdentifier, "assign nid: no UUIDs given")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nid, found, err := s.lookupLocked(uuids)
	if err != nil {
		return 0, err
	}
	if !found {
		if s.next == math.MaxInt32 {
			return 0, ir.Errorf(ir.ErrCodeUnknownIdentifier, "assign nid: nid space exhausted")
		}
		nid = s.next
		s.next++
	}
	for _, id := range uuids {
		s.bindLocked(id, nid)
	}
	return nid, nil
}

// NidForUUIDs returns the nid bound to any of the UUIDs.
// Returns UNKNOWN_IDENTIFIER when none is bound.
func (s *Service) NidForUUIDs(uuids ...uuid.UUID) (ir.Nid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nid, found, err := s.lookupLocked(uuids)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ir.Errorf(ir.ErrCodeUnknownIdentifier, "no nid for UUIDs %v", uuids)
	}
	return nid, nil
}

// AddUUIDForNid binds an alias UUID to an existing nid.
func (s *Service) AddUUIDForNid(id uuid.UUID, nid ir.Nid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byNid[nid]; !ok {
		return ir.Errorf(ir.ErrCodeUnknownIdentifier, "add UUID: unknown nid").WithNid(nid)
	}
	if existing, ok := s.byUUID[id]; ok && existing != nid {
		return ir.Errorf(ir.ErrCodeIdentifierConflict,
			"UUID %s already bound to nid %d", id, existing).WithNid(nid)
	}
	s.bindLocked(id, nid)
	return nil
}

// HasUUID reports whether any of the UUIDs is bound.
func (s *Service) HasUUID(uuids ...uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range uuids {
		if _, ok := s.byUUID[id]; ok {
			return true
		}
	}
	return false
}

// UUIDsForNid returns every UUID bound to nid, primordial first.
func (s *Service) UUIDsForNid(nid ir.Nid) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.byNid[nid]
	if !ok {
		return nil, ir.Errorf(ir.ErrCodeUnknownIdentifier, "no UUIDs for nid").WithNid(nid)
	}
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	return out, nil
}

// PrimordialUUID returns the first UUID bound to nid.
func (s *Service) PrimordialUUID(nid ir.Nid) (uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, ok := s.byNid[nid]
	if !ok || len(ids) == 0 {
		return uuid.Nil, ir.Errorf(ir.ErrCodeUnknownIdentifier, "no primordial UUID for nid").WithNid(nid)
	}
	return ids[0], nil
}

// Len returns the number of allocated nids.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byNid)
}

// lookupLocked finds the single nid bound to any of uuids.
func (s *Service) lookupLocked(uuids []uuid.UUID) (ir.Nid, bool, error) {
	var (
		nid   ir.Nid
		found bool
	)
	for _, id := range uuids {
		bound, ok := s.byUUID[id]
		if !ok {
			continue
		}
		if found && bound != nid {
			return 0, false, ir.Errorf(ir.ErrCodeIdentifierConflict,
				"UUIDs %v bound to nids %d and %d", uuids, nid, bound)
		}
		nid, found = bound, true
	}
	return nid, found, nil
}

func (s *Service) bindLocked(id uuid.UUID, nid ir.Nid) {
	if _, ok := s.byUUID[id]; ok {
		return
	}
	s.byUUID[id] = nid
	s.byNid[nid] = append(s.byNid[nid], id)
}
