package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// AnalysisKind tells an offline video analysis from a live camera session.
type AnalysisKind string

const (
	// KindOffline is a video file sampled on the frame-rate schedule.
	KindOffline AnalysisKind = "offline"
	// KindLive is a camera session.
	KindLive AnalysisKind = "live"
)

// Analysis is one detection run.
type Analysis struct {
	ID         string          `json:"id"`
	Source     string          `json:"source"`
	Kind       AnalysisKind    `json:"kind"`
	FrameRate  float64         `json:"frame_rate"`
	DurationMs int64           `json:"duration_ms"`
	Scheduled  int             `json:"scheduled"`
	Sampled    int             `json:"sampled"`
	Degenerate int             `json:"degenerate"`
	Config     json.RawMessage `json:"config"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AnalysisRepository provides CRUD operations for analyses.
type AnalysisRepository struct {
	db *sql.DB
}

// Analyses returns the analysis repository for this store.
func (s *Store) Analyses() *AnalysisRepository {
	return &AnalysisRepository{db: s.db}
}

const analysisColumns = `id, source, kind, frame_rate, duration_ms, scheduled, sampled, degenerate, config, created_at`

// Create inserts a new analysis. The caller assigns the ID.
func (r *AnalysisRepository) Create(a *Analysis) error {
	return insertAnalysis(r.db, a)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertAnalysis(db execer, a *Analysis) error {
	a.CreatedAt = time.Now()

	config := a.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	_, err := db.Exec(
		`INSERT INTO analyses (`+analysisColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Source, string(a.Kind), a.FrameRate, a.DurationMs,
		a.Scheduled, a.Sampled, a.Degenerate, string(config), a.CreatedAt,
	)
	return err
}

// SaveAnalysis inserts an analysis with its events and frames in one
// transaction. Either all of them are stored or none.
func (s *Store) SaveAnalysis(a *Analysis, events []Event, frames []Frame) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertAnalysis(tx, a); err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	if err := insertEvents(tx, a.ID, 0, events); err != nil {
		return fmt.Errorf("insert events: %w", err)
	}
	if err := insertFrames(tx, a.ID, frames); err != nil {
		return fmt.Errorf("insert frames: %w", err)
	}
	return tx.Commit()
}

// GetByID retrieves an analysis by its ID.
func (r *AnalysisRepository) GetByID(id string) (*Analysis, error) {
	a, err := scanAnalysis(r.db.QueryRow(
		`SELECT `+analysisColumns+` FROM analyses WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// List retrieves all analyses, newest first.
func (r *AnalysisRepository) List() ([]*Analysis, error) {
	rows, err := r.db.Query(
		`SELECT ` + analysisColumns + ` FROM analyses ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return analyses, nil
}

// UpdateResult rewrites the derived columns after a re-run.
func (r *AnalysisRepository) UpdateResult(id string, degenerate int, config json.RawMessage) error {
	if config == nil {
		config = json.RawMessage("{}")
	}
	result, err := r.db.Exec(
		`UPDATE analyses SET degenerate = ?, config = ? WHERE id = ?`,
		degenerate, string(config), id,
	)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// Delete removes an analysis along with its events and frames.
func (r *AnalysisRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (*Analysis, error) {
	a := &Analysis{}
	var kind, config string

	err := row.Scan(&a.ID, &a.Source, &kind, &a.FrameRate, &a.DurationMs,
		&a.Scheduled, &a.Sampled, &a.Degenerate, &config, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	a.Kind = AnalysisKind(kind)
	a.Config = json.RawMessage(config)
	return a, nil
}
