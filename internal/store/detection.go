package store

import (
	"database/sql"
	"time"
)

// Detection is a logged gesture event.
type Detection struct {
	ID         string    `json:"id"`
	Gesture    string    `json:"gesture"`
	Detector   string    `json:"detector"`
	Class      int       `json:"class"`
	Score      float64   `json:"score"`
	DetectedAt time.Time `json:"detected_at"`
}

// DetectionRepository stores the detection log.
type DetectionRepository struct {
	db *sql.DB
}

// Detections returns the detection repository for this store.
func (s *Store) Detections() *DetectionRepository {
	return &DetectionRepository{db: s.db}
}

// Create appends a detection. ID and DetectedAt are filled in when empty.
func (r *DetectionRepository) Create(d *Detection) error {
	if d.ID == "" {
		d.ID = newID()
	}
	if d.DetectedAt.IsZero() {
		d.DetectedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO detections (id, gesture, detector, class, score, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Gesture, d.Detector, d.Class, d.Score, d.DetectedAt.UTC(),
	)
	return err
}

// List returns up to limit detections, newest first. A gesture filter of
// "" matches every gesture.
func (r *DetectionRepository) List(gesture string, limit int) ([]*Detection, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(
		`SELECT id, gesture, detector, class, score, detected_at
		 FROM detections
		 WHERE ? = '' OR gesture = ?
		 ORDER BY detected_at DESC
		 LIMIT ?`,
		gesture, gesture, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var detections []*Detection
	for rows.Next() {
		d := &Detection{}
		if err := rows.Scan(&d.ID, &d.Gesture, &d.Detector, &d.Class, &d.Score, &d.DetectedAt); err != nil {
			return nil, err
		}
		detections = append(detections, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return detections, nil
}

// Counts returns the number of detections per gesture.
func (r *DetectionRepository) Counts() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT gesture, COUNT(*) FROM detections GROUP BY gesture`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var gesture string
		var n int
		if err := rows.Scan(&gesture, &n); err != nil {
			return nil, err
		}
		counts[gesture] = n
	}

	return counts, rows.Err()
}

// DeleteBefore removes detections older than t and returns how many were
// removed.
func (r *DetectionRepository) DeleteBefore(t time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM detections WHERE detected_at < ?`, t.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
