package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/signbridge/internal/sign"
)

// Source identifies how a translation was produced.
type Source string

const (
	// SourceRecognized is a stabilized camera recognition.
	SourceRecognized Source = "recognized"
	// SourceLookup is a pose artifact displayed for typed or dictated text.
	SourceLookup Source = "lookup"
)

// Entry is one translation history row.
type Entry struct {
	ID           string         `json:"id"`
	Direction    sign.Direction `json:"direction"`
	Variant      sign.Variant   `json:"variant"`
	Source       Source         `json:"source"`
	Text         string         `json:"text"`
	ArtifactSize int            `json:"artifactSize,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// HistoryRepository stores translation history.
type HistoryRepository struct {
	db *sql.DB
}

// History returns the history repository for this store.
func (s *Store) History() *HistoryRepository {
	return &HistoryRepository{db: s.db}
}

// Record inserts e, assigning an ID and timestamp when unset.
func (r *HistoryRepository) Record(e *Entry) error {
	// Assign ID and timestamp if not set
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO translations (id, direction, variant, source, text, artifact_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Direction.String(), e.Variant.String(), string(e.Source), e.Text, e.ArtifactSize, e.CreatedAt,
	)
	return err
}

// GetByID retrieves an entry by its ID.
func (r *HistoryRepository) GetByID(id string) (*Entry, error) {
	row := r.db.QueryRow(
		`SELECT id, direction, variant, source, text, artifact_size, created_at
		 FROM translations WHERE id = ?`,
		id,
	)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (r *HistoryRepository) Recent(limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, direction, variant, source, text, artifact_size, created_at
		 FROM translations ORDER BY rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Scan all rows
	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Count returns the number of stored entries.
func (r *HistoryRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM translations`).Scan(&n)
	return n, err
}

// Prune deletes all but the newest keep entries and returns how many were removed.
func (r *HistoryRepository) Prune(keep int) (int64, error) {
	// Deliveries of pruned entries cascade
	result, err := r.db.Exec(
		`DELETE FROM translations WHERE id NOT IN (
			SELECT id FROM translations ORDER BY rowid DESC LIMIT ?
		)`,
		keep,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Clear deletes every entry.
func (r *HistoryRepository) Clear() error {
	_, err := r.db.Exec(`DELETE FROM translations`)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	e := &Entry{}
	var direction, variant, source string

	if err := s.Scan(&e.ID, &direction, &variant, &source, &e.Text, &e.ArtifactSize, &e.CreatedAt); err != nil {
		return nil, err
	}

	d, err := sign.ParseDirection(direction)
	if err != nil {
		return nil, err
	}
	v, err := sign.ParseVariant(variant)
	if err != nil {
		return nil, err
	}
	e.Direction = d
	e.Variant = v
	e.Source = Source(source)
	return e, nil
}
