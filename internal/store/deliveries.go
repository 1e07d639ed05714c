package store

import (
	"database/sql"
	"time"
)

// Delivery is the result of handing a translation to a plugin sink.
type Delivery struct {
	ID            int64     `json:"id"`
	TranslationID string    `json:"translationId"`
	PluginName    string    `json:"pluginName"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// DeliveryRepository stores plugin delivery results.
type DeliveryRepository struct {
	db *sql.DB
}

// Deliveries returns the delivery repository for this store.
func (s *Store) Deliveries() *DeliveryRepository {
	return &DeliveryRepository{db: s.db}
}

// Record inserts d. The referenced translation must exist.
func (r *DeliveryRepository) Record(d *Delivery) error {
	d.CreatedAt = time.Now()

	success := 0
	if d.Success {
		success = 1
	}

	result, err := r.db.Exec(
		`INSERT INTO deliveries (translation_id, plugin_name, success, error, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		d.TranslationID, d.PluginName, success, d.Error, d.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = id
	return nil
}

// ForTranslation returns the deliveries of a translation, oldest first.
func (r *DeliveryRepository) ForTranslation(translationID string) ([]*Delivery, error) {
	rows, err := r.db.Query(
		`SELECT id, translation_id, plugin_name, success, error, created_at
		 FROM deliveries WHERE translation_id = ? ORDER BY id ASC`,
		translationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*Delivery
	for rows.Next() {
		d := &Delivery{}
		var success int
		if err := rows.Scan(&d.ID, &d.TranslationID, &d.PluginName, &success, &d.Error, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Success = success != 0
		deliveries = append(deliveries, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return deliveries, nil
}
