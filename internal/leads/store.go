// internal/leads/store.go
package leads

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/models"
)

// LeadRecord accumulates one contact's signals inside a rolling window.
// IsHot is true while the accumulated score is at or above the threshold.
type LeadRecord struct {
	ID         string     `json:"id"`
	ContactID  string     `json:"contactId"`
	Score      int        `json:"score"`
	Signals    []Signal   `json:"signals"`
	IsHot      bool       `json:"isHot"`
	DetectedAt time.Time  `json:"detectedAt"`
	Notified   bool       `json:"notified"`
	Handled    bool       `json:"handled"`
	HandledBy  string     `json:"handledBy,omitempty"`
	HandledAt  *time.Time `json:"handledAt,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// Store persists lead records and the contact score snapshot.
type Store interface {
	// FindActive returns the newest record detected after since, or nil.
	FindActive(ctx context.Context, contactID string, since time.Time) (*LeadRecord, error)
	Insert(ctx context.Context, rec *LeadRecord) error
	Update(ctx context.Context, rec *LeadRecord) error
	// ClaimNotification flips notified to true and reports whether this caller did it.
	ClaimNotification(ctx context.Context, id string) (bool, error)
	UpdateContactScore(ctx context.Context, contactID string, score int) error
	Contact(ctx context.Context, contactID string) (*models.Contact, error)
	ListHot(ctx context.Context, limit int) ([]LeadRecord, error)
	MarkHandled(ctx context.Context, id, handledBy, notes string) error
}

const leadColumns = `id, contact_jid, score, signals, is_hot, detected_at, notified, handled,
	COALESCE(handled_by, ''), handled_at, COALESCE(notes, '')`

// PostgresStore implements Store on the hot_leads and contacts tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (*LeadRecord, error) {
	var (
		rec       LeadRecord
		raw       []byte
		handledAt sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.ContactID, &rec.Score, &raw, &rec.IsHot, &rec.DetectedAt,
		&rec.Notified, &rec.Handled, &rec.HandledBy, &handledAt, &rec.Notes); err != nil {
		return nil, err
	}
	signals, err := decodeSignals(raw)
	if err != nil {
		return nil, fmt.Errorf("lead %s: %w", rec.ID, err)
	}
	rec.Signals = signals
	if handledAt.Valid {
		t := handledAt.Time
		rec.HandledAt = &t
	}
	return &rec, nil
}

// decodeSignals turns the stored JSON column into typed signals at the boundary.
func decodeSignals(raw []byte) ([]Signal, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var signals []Signal
	if err := json.Unmarshal(raw, &signals); err != nil {
		return nil, fmt.Errorf("decode signals: %w", err)
	}
	return signals, nil
}

func (s *PostgresStore) FindActive(ctx context.Context, contactID string, since time.Time) (*LeadRecord, error) {
	query := `SELECT ` + leadColumns + ` FROM hot_leads
		WHERE contact_jid = $1 AND detected_at > $2
		ORDER BY detected_at DESC LIMIT 1`
	rec, err := scanLead(s.db.QueryRowContext(ctx, query, contactID, since))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionError("find active lead", err)
	}
	return rec, nil
}

func (s *PostgresStore) Insert(ctx context.Context, rec *LeadRecord) error {
	signals, err := json.Marshal(rec.Signals)
	if err != nil {
		return fmt.Errorf("encode signals: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO hot_leads (id, contact_jid, score, signals, is_hot, detected_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.ContactID, rec.Score, string(signals), rec.IsHot, rec.DetectedAt)
	if err != nil {
		return apperrors.NewDatabaseInsertError("hot_leads", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, rec *LeadRecord) error {
	signals, err := json.Marshal(rec.Signals)
	if err != nil {
		return fmt.Errorf("encode signals: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE hot_leads SET score = $1, signals = $2, is_hot = $3, detected_at = $4 WHERE id = $5`,
		rec.Score, string(signals), rec.IsHot, rec.DetectedAt, rec.ID)
	if err != nil {
		return apperrors.NewQueryExecutionError("update lead", err)
	}
	return nil
}

func (s *PostgresStore) ClaimNotification(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE hot_leads SET notified = TRUE WHERE id = $1 AND notified = FALSE`, id)
	if err != nil {
		return false, apperrors.NewQueryExecutionError("claim lead notification", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewQueryExecutionError("claim lead notification", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) UpdateContactScore(ctx context.Context, contactID string, score int) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE contacts SET lead_score = $1 WHERE jid = $2`, score, contactID); err != nil {
		return apperrors.NewQueryExecutionError("update contact lead score", err)
	}
	return nil
}

func (s *PostgresStore) Contact(ctx context.Context, contactID string) (*models.Contact, error) {
	var c models.Contact
	err := s.db.QueryRowContext(ctx,
		`SELECT jid, COALESCE(name, ''), COALESCE(push_name, ''), COALESCE(phone, ''), lead_score FROM contacts WHERE jid = $1`,
		contactID).Scan(&c.JID, &c.Name, &c.PushName, &c.Phone, &c.LeadScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionError("load contact", err)
	}
	return &c, nil
}

func (s *PostgresStore) ListHot(ctx context.Context, limit int) ([]LeadRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM hot_leads WHERE is_hot = TRUE ORDER BY detected_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, apperrors.NewQueryExecutionError("list hot leads", err)
	}
	defer rows.Close()

	var out []LeadRecord
	for rows.Next() {
		rec, err := scanLead(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionError("scan hot lead", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkHandled(ctx context.Context, id, handledBy, notes string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE hot_leads SET handled = TRUE, handled_by = $1, handled_at = $2, notes = $3 WHERE id = $4`,
		strings.TrimSpace(handledBy), time.Now().UTC(), notes, id)
	if err != nil {
		return apperrors.NewQueryExecutionError("mark lead handled", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewResourceNotFoundError("lead", id)
	}
	return nil
}
