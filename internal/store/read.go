package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/isaac/internal/ir"
)

// GetChronicleVersionData returns the stored bytes of nid.
// The content digest is verified; a mismatch is CORRUPT_RECORD.
func (s *Store) GetChronicleVersionData(ctx context.Context, nid ir.Nid) ([]byte, bool, error) {
	_, data, found, err := s.load(ctx, nid)
	return data, found, err
}

// GetAssemblageConceptNids returns every assemblage nid in use.
// Results are ordered by nid.
func (s *Store) GetAssemblageConceptNids(ctx context.Context) ([]ir.Nid, error) {
	return s.queryNids(ctx, `
		SELECT DISTINCT assemblage_nid FROM chronicles ORDER BY assemblage_nid ASC
	`)
}

// GetSemanticNidsForComponent returns the semantics referencing nid.
// Results are ordered by nid.
func (s *Store) GetSemanticNidsForComponent(ctx context.Context, nid ir.Nid) ([]ir.Nid, error) {
	return s.queryNids(ctx, `
		SELECT nid FROM chronicles
		WHERE referenced_component_nid = ? AND object_type = ?
		ORDER BY nid ASC
	`, int64(nid), int(ir.ObjectTypeSemantic))
}

// WriteSequence returns the stored write sequence of nid, or 0 when the
// nid has no row.
func (s *Store) WriteSequence(ctx context.Context, nid ir.Nid) (int32, error) {
	var seq int32
	err := s.db.QueryRowContext(ctx, `
		SELECT write_sequence FROM chronicles WHERE nid = ?
	`, int64(nid)).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query write sequence of %d: %w", nid, err)
	}
	return seq, nil
}

// queryNids runs a single-column nid query.
// Returns an empty slice (not nil) when no rows match.
func (s *Store) queryNids(ctx context.Context, query string, args ...any) ([]ir.Nid, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nids: %w", err)
	}
	defer rows.Close()

	nids := []ir.Nid{}
	for rows.Next() {
		var nid int64
		if err := rows.Scan(&nid); err != nil {
			return nil, fmt.Errorf("scan nid: %w", err)
		}
		nids = append(nids, ir.Nid(nid))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nids: %w", err)
	}
	return nids, nil
}
