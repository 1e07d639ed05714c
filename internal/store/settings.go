package store

import (
	"database/sql"
	"errors"

	"github.com/ayusman/signbridge/internal/sign"
)

// Setting keys.
const (
	KeyDirection = "direction"
	KeyVariant   = "variant"
)

// SettingsRepository stores key-value settings.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value stored for key, or ErrNotFound.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set stores value under key, replacing any existing value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// Mode returns the last saved direction and variant. Missing or unreadable values fall
// back to fallbackDir and fallbackVariant.
func (r *SettingsRepository) Mode(fallbackDir sign.Direction, fallbackVariant sign.Variant) (sign.Direction, sign.Variant, error) {
	dir, variant := fallbackDir, fallbackVariant

	raw, err := r.Get(KeyDirection)
	switch {
	case err == nil:
		if d, perr := sign.ParseDirection(raw); perr == nil {
			dir = d
		}
	case !errors.Is(err, ErrNotFound):
		return dir, variant, err
	}

	raw, err = r.Get(KeyVariant)
	switch {
	case err == nil:
		if v, perr := sign.ParseVariant(raw); perr == nil {
			variant = v
		}
	case !errors.Is(err, ErrNotFound):
		return dir, variant, err
	}

	return dir, variant, nil
}

// SaveMode stores the direction and variant in one transaction.
func (r *SettingsRepository) SaveMode(dir sign.Direction, variant sign.Variant) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	if _, err := stmt.Exec(KeyDirection, dir.String()); err != nil {
		return err
	}
	if _, err := stmt.Exec(KeyVariant, variant.String()); err != nil {
		return err
	}

	return tx.Commit()
}
