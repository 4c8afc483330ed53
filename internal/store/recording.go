package store

import (
	"database/sql"
	"errors"
	"time"
)

// Recording is a joint recording file registered by the recorder.
type Recording struct {
	ID         string     `json:"id"`
	Path       string     `json:"path"`
	Hand       string     `json:"hand"`
	Gesture    string     `json:"gesture"`
	FPS        int        `json:"fps"`
	Frames     int        `json:"frames"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RecordingRepository stores recording metadata.
type RecordingRepository struct {
	db *sql.DB
}

// Recordings returns the recording repository for this store.
func (s *Store) Recordings() *RecordingRepository {
	return &RecordingRepository{db: s.db}
}

// Create registers a new recording.
func (r *RecordingRepository) Create(rec *Recording) error {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO recordings (id, path, hand, gesture, fps, frames, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Path, rec.Hand, rec.Gesture, rec.FPS, rec.Frames, rec.StartedAt.UTC(),
	)
	return err
}

// Finish records the final frame count of a recording.
func (r *RecordingRepository) Finish(id string, frames int, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE recordings SET frames = ?, finished_at = ? WHERE id = ?`,
		frames, at.UTC(), id,
	)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

const recordingColumns = `id, path, hand, gesture, fps, frames, started_at, finished_at`

func scanRecording(row rowScanner) (*Recording, error) {
	rec := &Recording{}
	var finished sql.NullTime

	err := row.Scan(&rec.ID, &rec.Path, &rec.Hand, &rec.Gesture, &rec.FPS, &rec.Frames, &rec.StartedAt, &finished)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		rec.FinishedAt = &t
	}
	return rec, nil
}

// GetByID retrieves a recording by its ID.
func (r *RecordingRepository) GetByID(id string) (*Recording, error) {
	rec, err := scanRecording(r.db.QueryRow(
		`SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// List returns recordings, newest first. A gesture filter of "" matches
// every gesture.
func (r *RecordingRepository) List(gesture string) ([]*Recording, error) {
	rows, err := r.db.Query(
		`SELECT `+recordingColumns+` FROM recordings
		 WHERE ? = '' OR gesture = ?
		 ORDER BY started_at DESC`,
		gesture, gesture,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recordings []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return recordings, nil
}

// Delete removes a recording's metadata. The file itself is left alone.
func (r *RecordingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}
