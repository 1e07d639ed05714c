package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Translations table - one row per stabilized recognition or displayed pose lookup
		`CREATE TABLE IF NOT EXISTS translations (
			id TEXT PRIMARY KEY,
			direction TEXT NOT NULL CHECK(direction IN ('textToSign', 'signToText')),
			variant TEXT NOT NULL CHECK(variant IN ('asl', 'isl')),
			source TEXT NOT NULL CHECK(source IN ('recognized', 'lookup')),
			text TEXT NOT NULL,
			artifact_size INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Deliveries table - plugin sink results for a translation
		`CREATE TABLE IF NOT EXISTS deliveries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			translation_id TEXT NOT NULL REFERENCES translations(id) ON DELETE CASCADE,
			plugin_name TEXT NOT NULL,
			success INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_translations_created_at ON translations(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_translation_id ON deliveries(translation_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
