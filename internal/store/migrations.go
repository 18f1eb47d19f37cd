package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per analyzed video or live session
		`CREATE TABLE IF NOT EXISTS analyses (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('offline', 'live')),
			frame_rate REAL NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			scheduled INTEGER NOT NULL DEFAULT 0,
			sampled INTEGER NOT NULL DEFAULT 0,
			degenerate INTEGER NOT NULL DEFAULT 0,
			config TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Confirmed flips. Frame numbers are original frame indices; apex is
		// NULL when no foot lift was seen before landing.
		`CREATE TABLE IF NOT EXISTS flip_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			liftoff_frame INTEGER NOT NULL,
			apex_frame INTEGER,
			landing_frame INTEGER NOT NULL,
			UNIQUE(analysis_id, seq)
		)`,

		// Sampled poses, kept so an analysis can be re-run with other thresholds
		`CREATE TABLE IF NOT EXISTS analysis_frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			frame_index INTEGER NOT NULL,
			data TEXT NOT NULL
		)`,

		// Hooks to run when a flip is confirmed
		`CREATE TABLE IF NOT EXISTS hook_bindings (
			id TEXT PRIMARY KEY,
			hook_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_flip_events_analysis_id ON flip_events(analysis_id)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_frames_analysis_id ON analysis_frames(analysis_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
