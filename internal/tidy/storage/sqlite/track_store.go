package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/tidy.report/internal/tidy"
	"github.com/banshee-data/tidy.report/internal/tidy/tracks"
)

// TrackStore persists tracker snapshots. Each Save replaces the stored
// state inside one transaction, so a concurrent Load sees either the old
// or the new snapshot.
type TrackStore struct {
	db *sql.DB
}

var _ tracks.Store = (*TrackStore)(nil)

// NewTrackStore creates a TrackStore backed by the given database.
func NewTrackStore(db *sql.DB) *TrackStore {
	return &TrackStore{db: db}
}

// Load reads the full snapshot. An empty database yields an empty snapshot.
func (s *TrackStore) Load(ctx context.Context) (*tracks.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin load tracks tx: %w", err)
	}
	defer tx.Rollback()

	snap := tracks.NewSnapshot()

	err = tx.QueryRowContext(ctx, `SELECT next_id FROM tracker_state WHERE id = 1`).Scan(&snap.NextID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query tracker state: %w", err)
	}

	if err := loadTracks(ctx, tx, snap); err != nil {
		return nil, err
	}
	if err := loadObservations(ctx, tx, snap); err != nil {
		return nil, err
	}

	for id, tr := range snap.Tracks {
		if len(tr.History) == 0 {
			return nil, fmt.Errorf("track %d has no observations", id)
		}
	}
	return snap, nil
}

func loadTracks(ctx context.Context, tx *sql.Tx, snap *tracks.Snapshot) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT track_id, label, first_seen_unix_nanos, last_seen_unix_nanos
		FROM tracks`)
	if err != nil {
		return fmt.Errorf("query tracks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tr          tracks.Track
			first, last int64
		)
		if err := rows.Scan(&tr.ID, &tr.Label, &first, &last); err != nil {
			return fmt.Errorf("scan track: %w", err)
		}
		tr.FirstSeen = fromNanos(first)
		tr.LastSeen = fromNanos(last)
		snap.Tracks[tr.ID] = &tr
	}
	return rows.Err()
}

func loadObservations(ctx context.Context, tx *sql.Tx, snap *tracks.Snapshot) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT track_id, x1, y1, x2, y2, zone, observed_unix_nanos, image_id
		FROM track_observations
		ORDER BY track_id, seq`)
	if err != nil {
		return fmt.Errorf("query track observations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			trackID  int64
			obs      tracks.Observation
			zone     string
			observed int64
		)
		if err := rows.Scan(&trackID, &obs.BBox.X1, &obs.BBox.Y1, &obs.BBox.X2, &obs.BBox.Y2,
			&zone, &observed, &obs.ImageID); err != nil {
			return fmt.Errorf("scan track observation: %w", err)
		}
		obs.Zone = tidy.Zone(zone)
		obs.Timestamp = fromNanos(observed)

		tr, ok := snap.Tracks[trackID]
		if !ok {
			return fmt.Errorf("observation references unknown track %d", trackID)
		}
		tr.History = append(tr.History, obs)
	}
	return rows.Err()
}

// Save replaces the stored snapshot with snap.
func (s *TrackStore) Save(ctx context.Context, snap *tracks.Snapshot) error {
	return retryOnBusy(ctx, func() error {
		return s.save(ctx, snap)
	})
}

func (s *TrackStore) save(ctx context.Context, snap *tracks.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save tracks tx: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM track_observations`,
		`DELETE FROM tracks`,
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clear tracks: %w", err)
		}
	}

	insertTrack, err := tx.PrepareContext(ctx, `
		INSERT INTO tracks (track_id, label, first_seen_unix_nanos, last_seen_unix_nanos)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert track: %w", err)
	}
	defer insertTrack.Close()

	insertObs, err := tx.PrepareContext(ctx, `
		INSERT INTO track_observations (track_id, seq, x1, y1, x2, y2, zone, observed_unix_nanos, image_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert observation: %w", err)
	}
	defer insertObs.Close()

	for id, tr := range snap.Tracks {
		if _, err := insertTrack.ExecContext(ctx, id, tr.Label,
			tr.FirstSeen.UnixNano(), tr.LastSeen.UnixNano()); err != nil {
			return fmt.Errorf("insert track %d: %w", id, err)
		}
		for seq, obs := range tr.History {
			b := obs.BBox
			if _, err := insertObs.ExecContext(ctx, id, seq, b.X1, b.Y1, b.X2, b.Y2,
				string(obs.Zone), obs.Timestamp.UnixNano(), obs.ImageID); err != nil {
				return fmt.Errorf("insert observation %d/%d: %w", id, seq, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tracker_state (id, next_id) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET next_id = excluded.next_id`, snap.NextID); err != nil {
		return fmt.Errorf("update tracker state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save tracks tx: %w", err)
	}
	return nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
