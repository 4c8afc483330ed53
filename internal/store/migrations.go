package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Detections table - one row per recognized gesture
		`CREATE TABLE IF NOT EXISTS detections (
			id TEXT PRIMARY KEY,
			gesture TEXT NOT NULL,
			detector TEXT NOT NULL,
			class INTEGER NOT NULL,
			score REAL NOT NULL,
			detected_at DATETIME NOT NULL
		)`,

		// Recordings table - joint recordings written by the recorder
		`CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL UNIQUE,
			hand TEXT NOT NULL CHECK(hand IN ('left', 'right')),
			gesture TEXT NOT NULL,
			fps INTEGER NOT NULL DEFAULT 0,
			frames INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			finished_at DATETIME
		)`,

		// Bindings table - plugin actions to run when a gesture is recognized
		`CREATE TABLE IF NOT EXISTS bindings (
			id TEXT PRIMARY KEY,
			gesture TEXT NOT NULL,
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - configuration overrides as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_detections_detected_at ON detections(detected_at)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_gesture ON detections(gesture)`,
		`CREATE INDEX IF NOT EXISTS idx_bindings_gesture ON bindings(gesture)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
