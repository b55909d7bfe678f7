package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/isaac/internal/ir"
)

// PutChronicleData writes c under the optimistic write discipline.
func (s *Store) PutChronicleData(ctx context.Context, c Chronicle) error {
	return putChronicle(ctx, s, c, s.metrics, s.logger)
}

// compareAndPut is a single conditional upsert: a new nid is inserted, an
// existing row is updated only while its write sequence is still expected.
func (s *Store) compareAndPut(ctx context.Context, r row, expected int32) (bool, error) {
	digest := ir.ChronicleDigest(r.data)

	var component sql.NullInt64
	if r.objectType == ir.ObjectTypeSemantic {
		component = sql.NullInt64{Int64: int64(r.referencedComponent), Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO chronicles
		(nid, object_type, assemblage_nid, referenced_component_nid, write_sequence, data, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(nid) DO UPDATE SET
			write_sequence = excluded.write_sequence,
			data = excluded.data,
			digest = excluded.digest
		WHERE chronicles.write_sequence = ?
	`,
		int64(r.nid),
		int(r.objectType),
		int64(r.assemblage),
		component,
		r.writeSequence,
		r.data,
		digest[:],
		expected,
	)
	if err != nil {
		return false, fmt.Errorf("upsert chronicle: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert chronicle: rows affected: %w", err)
	}
	// Zero rows means the WHERE clause rejected the update.
	return n == 1, nil
}

// load returns the stored write sequence and verified bytes of nid.
func (s *Store) load(ctx context.Context, nid ir.Nid) (int32, []byte, bool, error) {
	var (
		seq    int32
		data   []byte
		digest []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT write_sequence, data, digest FROM chronicles WHERE nid = ?
	`, int64(nid)).Scan(&seq, &data, &digest)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, fmt.Errorf("query chronicle %d: %w", nid, err)
	}

	if want := ir.ChronicleDigest(data); string(want[:]) != string(digest) {
		return 0, nil, false, ir.Errorf(ir.ErrCodeCorruptRecord,
			"stored digest does not match data (want %s)", want.Short()).WithNid(nid)
	}
	return seq, data, true, nil
}
