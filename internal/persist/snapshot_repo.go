package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/blengine/engine/internal/snapshot"
)

// SnapshotRow is the stored form of a snapshot.
type SnapshotRow struct {
	Name        string
	Format      int
	Checksum    string
	EntityCount int
	Payload     []byte
	SavedAt     time.Time
}

// SnapshotInfo is one entry of a snapshot's save history.
type SnapshotInfo struct {
	Name        string
	Checksum    string
	EntityCount int
	SavedAt     time.Time
}

// SnapshotRepo stores registry snapshots, one current row per name plus an
// append-only history.
type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Save replaces the snapshot stored under name and records the save in the
// history, in a single transaction.
func (r *SnapshotRepo) Save(ctx context.Context, name string, s *snapshot.Snapshot) error {
	row, err := newSnapshotRow(name, s)
	if err != nil {
		return err
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO snapshots (name, format, checksum, entity_count, payload, saved_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (name) DO UPDATE SET
		     format = EXCLUDED.format,
		     checksum = EXCLUDED.checksum,
		     entity_count = EXCLUDED.entity_count,
		     payload = EXCLUDED.payload,
		     saved_at = EXCLUDED.saved_at`,
		row.Name, row.Format, row.Checksum, row.EntityCount, row.Payload)
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", name, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO snapshot_history (name, checksum, entity_count) VALUES ($1, $2, $3)`,
		row.Name, row.Checksum, row.EntityCount)
	if err != nil {
		return fmt.Errorf("record snapshot %q: %w", name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.db.log.Debug("snapshot stored", zap.String("name", name), zap.Int("bytes", len(row.Payload)))
	return nil
}

// Load returns the snapshot stored under name, or nil if there is none.
func (r *SnapshotRepo) Load(ctx context.Context, name string) (*snapshot.Snapshot, error) {
	var row SnapshotRow
	err := r.db.Pool.QueryRow(ctx,
		`SELECT name, format, checksum, entity_count, payload, saved_at
		 FROM snapshots WHERE name = $1`, name,
	).Scan(&row.Name, &row.Format, &row.Checksum, &row.EntityCount, &row.Payload, &row.SavedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.decode()
}

// History lists the most recent saves of name, newest first.
func (r *SnapshotRepo) History(ctx context.Context, name string, limit int) ([]SnapshotInfo, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT name, checksum, entity_count, saved_at
		 FROM snapshot_history WHERE name = $1
		 ORDER BY saved_at DESC, id DESC LIMIT $2`, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		if err := rows.Scan(&info.Name, &info.Checksum, &info.EntityCount, &info.SavedAt); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes the snapshot stored under name. Its history is kept.
func (r *SnapshotRepo) Delete(ctx context.Context, name string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM snapshots WHERE name = $1`, name)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func newSnapshotRow(name string, s *snapshot.Snapshot) (SnapshotRow, error) {
	if name == "" {
		return SnapshotRow{}, errors.New("snapshot name is empty")
	}
	payload, err := snapshot.Encode(s)
	if err != nil {
		return SnapshotRow{}, fmt.Errorf("encode snapshot %q: %w", name, err)
	}
	return SnapshotRow{
		Name:        name,
		Format:      s.Version,
		Checksum:    s.Checksum,
		EntityCount: len(s.Entities),
		Payload:     payload,
	}, nil
}

func (row SnapshotRow) decode() (*snapshot.Snapshot, error) {
	s, err := snapshot.Decode(row.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %q: %w", row.Name, err)
	}
	if s.Checksum != row.Checksum {
		return nil, fmt.Errorf("snapshot %q: %w", row.Name, snapshot.ErrChecksum)
	}
	return s, nil
}
