package store

import (
	"database/sql"
)

// Event is a confirmed flip belonging to an analysis.
type Event struct {
	AnalysisID   string `json:"analysis_id"`
	Seq          int    `json:"seq"`
	LiftoffFrame int    `json:"liftoff_frame"`
	ApexFrame    *int   `json:"apex_frame"`
	LandingFrame int    `json:"landing_frame"`
}

// EventRepository stores flip events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// CreateBatch appends events to an analysis in a single transaction. Seq is
// assigned from the position in events, after any events already stored.
func (r *EventRepository) CreateBatch(analysisID string, events []Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(seq) + 1, 0) FROM flip_events WHERE analysis_id = ?`, analysisID,
	).Scan(&next); err != nil {
		return err
	}

	if err := insertEvents(tx, analysisID, next, events); err != nil {
		return err
	}
	return tx.Commit()
}

// Replace discards the stored events of an analysis and writes events instead.
func (r *EventRepository) Replace(analysisID string, events []Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM flip_events WHERE analysis_id = ?`, analysisID); err != nil {
		return err
	}
	if err := insertEvents(tx, analysisID, 0, events); err != nil {
		return err
	}
	return tx.Commit()
}

func insertEvents(tx *sql.Tx, analysisID string, firstSeq int, events []Event) error {
	stmt, err := tx.Prepare(
		`INSERT INTO flip_events (analysis_id, seq, liftoff_frame, apex_frame, landing_frame)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range events {
		e := &events[i]
		e.AnalysisID = analysisID
		e.Seq = firstSeq + i

		var apex sql.NullInt64
		if e.ApexFrame != nil {
			apex = sql.NullInt64{Int64: int64(*e.ApexFrame), Valid: true}
		}
		if _, err := stmt.Exec(analysisID, e.Seq, e.LiftoffFrame, apex, e.LandingFrame); err != nil {
			return err
		}
	}
	return nil
}

// ListByAnalysis returns the events of an analysis in confirmation order.
func (r *EventRepository) ListByAnalysis(analysisID string) ([]Event, error) {
	rows, err := r.db.Query(
		`SELECT analysis_id, seq, liftoff_frame, apex_frame, landing_frame
		 FROM flip_events
		 WHERE analysis_id = ?
		 ORDER BY seq`,
		analysisID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var apex sql.NullInt64
		if err := rows.Scan(&e.AnalysisID, &e.Seq, &e.LiftoffFrame, &apex, &e.LandingFrame); err != nil {
			return nil, err
		}
		if apex.Valid {
			v := int(apex.Int64)
			e.ApexFrame = &v
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
