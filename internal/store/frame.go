package store

import (
	"database/sql"
	"encoding/json"
)

// Frame is one sampled pose of an analysis. Data is the pose as JSON.
type Frame struct {
	Position   int             `json:"position"`
	FrameIndex int             `json:"frame_index"`
	Data       json.RawMessage `json:"data"`
}

// FrameRepository stores the sampled poses of analyses.
type FrameRepository struct {
	db *sql.DB
}

// Frames returns the frame repository for this store.
func (s *Store) Frames() *FrameRepository {
	return &FrameRepository{db: s.db}
}

// CreateBatch inserts frames for an analysis in a single transaction.
func (r *FrameRepository) CreateBatch(analysisID string, frames []Frame) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertFrames(tx, analysisID, frames); err != nil {
		return err
	}
	return tx.Commit()
}

// insertFrames writes frames inside tx. A frame without data is rejected by
// the schema.
func insertFrames(tx *sql.Tx, analysisID string, frames []Frame) error {
	stmt, err := tx.Prepare(`INSERT INTO analysis_frames (analysis_id, position, frame_index, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range frames {
		var data any
		if f.Data != nil {
			data = string(f.Data)
		}
		if _, err := stmt.Exec(analysisID, f.Position, f.FrameIndex, data); err != nil {
			return err
		}
	}
	return nil
}

// ListByAnalysis returns the frames of an analysis in sequence order.
func (r *FrameRepository) ListByAnalysis(analysisID string) ([]Frame, error) {
	rows, err := r.db.Query(
		`SELECT position, frame_index, data
		 FROM analysis_frames
		 WHERE analysis_id = ?
		 ORDER BY position`,
		analysisID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var f Frame
		var data string
		if err := rows.Scan(&f.Position, &f.FrameIndex, &data); err != nil {
			return nil, err
		}
		f.Data = json.RawMessage(data)
		frames = append(frames, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return frames, nil
}
