package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/lib/pq"
)

// SnapshotStore is a database.SnapshotStore over the identity_* tables.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a snapshot store on an already migrated pool.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Location describes the backing tables.
func (s *SnapshotStore) Location() string {
	return "postgres:identity_embeddings"
}

// Load reads the snapshot. Identities come back ordered by position, and each
// identity's embeddings by seq.
func (s *SnapshotStore) Load(ctx context.Context) (*database.Snapshot, error) {
	var (
		version, dim int
		savedAt      time.Time
	)
	err := s.pool.db.QueryRowContext(ctx,
		`SELECT format_version, dimension, saved_at FROM identity_store_meta WHERE id = 1`,
	).Scan(&version, &dim, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot metadata: %w", err)
	}
	if version != database.CurrentFormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", database.ErrSnapshotCorrupt, version)
	}

	rows, err := s.pool.db.QueryContext(ctx,
		`SELECT position, seq, label, embedding FROM identity_embeddings ORDER BY position, seq`)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	snap := &database.Snapshot{Version: version, Dimension: dim, SavedAt: savedAt}
	for rows.Next() {
		var (
			position, seq int
			label         string
			emb           pq.Float64Array
		)
		if err := rows.Scan(&position, &seq, &label, &emb); err != nil {
			return nil, fmt.Errorf("scanning embedding row: %w", err)
		}

		last := len(snap.Identities) - 1
		switch {
		case position == last+1:
			snap.Identities = append(snap.Identities, database.IdentityRecord{Label: label})
		case last >= 0 && position == last && snap.Identities[last].Label == label:
		default:
			return nil, fmt.Errorf("%w: row for %q out of order (position %d)",
				database.ErrSnapshotCorrupt, label, position)
		}
		cur := &snap.Identities[len(snap.Identities)-1]
		cur.Embeddings = append(cur.Embeddings, []float64(emb))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Save replaces the stored snapshot in one transaction.
func (s *SnapshotStore) Save(ctx context.Context, snap *database.Snapshot) error {
	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM identity_embeddings`); err != nil {
		return fmt.Errorf("clearing embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO identity_store_meta (id, format_version, dimension, saved_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			format_version = EXCLUDED.format_version,
			dimension = EXCLUDED.dimension,
			saved_at = EXCLUDED.saved_at
	`, database.CurrentFormatVersion, snap.Dimension, savedAt); err != nil {
		return fmt.Errorf("writing snapshot metadata: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO identity_embeddings (position, seq, label, embedding) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for pos, id := range snap.Identities {
		for seq, emb := range id.Embeddings {
			if _, err := stmt.ExecContext(ctx, pos, seq, id.Label, pq.Float64Array(emb)); err != nil {
				return fmt.Errorf("inserting embedding %d of %q: %w", seq, id.Label, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}
