// internal/campaign/store.go
package campaign

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"whatsapp-sales-workers/internal/common/database"
	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/models"
)

// PendingMessage is a queued-but-unsent campaign message with recipient details for generation.
type PendingMessage struct {
	models.CampaignMessage
	CustomData map[string]interface{}
}

// Progress counts a campaign's messages by outcome.
type Progress struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}

type Store struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:    db,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// Create inserts a draft campaign and returns its id.
func (s *Store) Create(ctx context.Context, c *models.Campaign) (string, error) {
	if c.ID == "" {
		c.ID = s.newID()
	}
	settings := "{}"
	if len(c.Settings) > 0 {
		raw, err := json.Marshal(c.Settings)
		if err != nil {
			return "", err
		}
		settings = string(raw)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, name, type, status, template, ai_prompt, settings)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7)`,
		c.ID, c.Name, c.Type, models.CampaignStatusDraft, c.Template, c.AIPrompt, settings)
	if err != nil {
		return "", apperrors.NewDatabaseInsertError("campaigns", err)
	}
	return c.ID, nil
}

// Get returns nil when the campaign does not exist.
func (s *Store) Get(ctx context.Context, id string) (*models.Campaign, error) {
	var (
		c                      models.Campaign
		startedAt, completedAt sql.NullTime
		settings               []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, status, COALESCE(template, ''), COALESCE(ai_prompt, ''),
			contacts_count, sent_count, failed_count, created_at, started_at, completed_at, settings
		FROM campaigns WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Type, &c.Status, &c.Template, &c.AIPrompt,
			&c.ContactsCount, &c.SentCount, &c.FailedCount, &c.CreatedAt, &startedAt, &completedAt, &settings)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionError("get campaign", err)
	}
	if startedAt.Valid {
		c.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &c.Settings); err != nil {
			return nil, apperrors.NewQueryExecutionError("get campaign", err)
		}
	}
	return &c, nil
}

// AddRecipients inserts one pending, empty message per recipient and refreshes contacts_count.
func (s *Store) AddRecipients(ctx context.Context, campaignID string, recipients []models.Recipient) (int, error) {
	if len(recipients) == 0 {
		return 0, nil
	}
	ids := make([]string, len(recipients))
	jids := make([]string, len(recipients))
	phones := make([]string, len(recipients))
	names := make([]string, len(recipients))
	for i, r := range recipients {
		ids[i] = s.newID()
		jids[i] = r.JID
		phones[i] = r.Phone
		names[i] = r.Name
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO campaign_messages (id, campaign_id, contact_jid, phone, name, message, status)
			SELECT m.id, $1, m.jid, m.phone, NULLIF(m.name, ''), '', 'pending'
			FROM unnest($2::text[], $3::text[], $4::text[], $5::text[]) AS m(id, jid, phone, name)`,
			campaignID, pq.Array(ids), pq.Array(jids), pq.Array(phones), pq.Array(names)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE campaigns SET contacts_count = (SELECT COUNT(*) FROM campaign_messages WHERE campaign_id = $1)
			WHERE id = $1`, campaignID)
		return err
	})
	if err != nil {
		return 0, apperrors.NewDatabaseInsertError("campaign_messages", err)
	}
	return len(recipients), nil
}

// PendingMessages lists pending messages; withText restricts to those with generated text.
// Names fall back to the contact book.
func (s *Store) PendingMessages(ctx context.Context, campaignID string, withText bool) ([]PendingMessage, error) {
	query := `
		SELECT m.id, m.campaign_id, m.contact_jid, COALESCE(m.phone, ''),
			COALESCE(m.name, c.name, c.push_name, ''), m.message, m.status, c.custom_data
		FROM campaign_messages m
		LEFT JOIN contacts c ON c.jid = m.contact_jid
		WHERE m.campaign_id = $1 AND m.status = 'pending'`
	if withText {
		query += ` AND m.message <> ''`
	}
	query += ` ORDER BY m.id`

	rows, err := s.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionError("pending campaign messages", err)
	}
	defer rows.Close()

	var out []PendingMessage
	for rows.Next() {
		var (
			m      PendingMessage
			custom []byte
		)
		if err := rows.Scan(&m.ID, &m.CampaignID, &m.ContactJID, &m.Phone, &m.Name, &m.Message, &m.Status, &custom); err != nil {
			return nil, apperrors.NewQueryExecutionError("pending campaign messages", err)
		}
		if len(custom) > 0 {
			if err := json.Unmarshal(custom, &m.CustomData); err != nil {
				return nil, fmt.Errorf("decode custom data of %s: %w", m.ContactJID, err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionError("pending campaign messages", err)
	}
	return out, nil
}

func (s *Store) SetMessageText(ctx context.Context, messageID, text string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE campaign_messages SET message = $2 WHERE id = $1`, messageID, text); err != nil {
		return apperrors.NewQueryExecutionError("set campaign message", err)
	}
	return nil
}

// SetStatus also stamps started_at on running and completed_at on completed.
func (s *Store) SetStatus(ctx context.Context, id, status string) error {
	query := `UPDATE campaigns SET status = $2 WHERE id = $1`
	args := []interface{}{id, status}
	switch status {
	case models.CampaignStatusRunning:
		query = `UPDATE campaigns SET status = $2, started_at = $3 WHERE id = $1`
		args = append(args, s.now().UTC())
	case models.CampaignStatusCompleted:
		query = `UPDATE campaigns SET status = $2, completed_at = $3 WHERE id = $1`
		args = append(args, s.now().UTC())
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewQueryExecutionError("set campaign status", err)
	}
	return nil
}

// MarkSent records a delivery and returns the owning campaign id. ok is false when the
// message was unknown or already settled.
func (s *Store) MarkSent(ctx context.Context, messageID string) (campaignID string, ok bool, err error) {
	return s.settle(ctx, messageID, `
		UPDATE campaign_messages SET status = 'sent', sent_at = $2, error = NULL
		WHERE id = $1 AND status = 'pending' RETURNING campaign_id`,
		`UPDATE campaigns SET sent_count = sent_count + 1 WHERE id = $1`,
		messageID, s.now().UTC())
}

func (s *Store) MarkFailed(ctx context.Context, messageID, reason string) (campaignID string, ok bool, err error) {
	return s.settle(ctx, messageID, `
		UPDATE campaign_messages SET status = 'failed', error = $2
		WHERE id = $1 AND status = 'pending' RETURNING campaign_id`,
		`UPDATE campaigns SET failed_count = failed_count + 1 WHERE id = $1`,
		messageID, reason)
}

func (s *Store) settle(ctx context.Context, messageID, markQuery, counterQuery string, args ...interface{}) (string, bool, error) {
	var campaignID string
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, markQuery, args...).Scan(&campaignID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, counterQuery, campaignID)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.NewQueryExecutionError("settle campaign message", err)
	}
	return campaignID, true, nil
}

// Progress counts pending messages only when they carry text.
func (s *Store) Progress(ctx context.Context, campaignID string) (Progress, error) {
	var p Progress
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'pending' AND message <> '')
		FROM campaign_messages WHERE campaign_id = $1`, campaignID).
		Scan(&p.Total, &p.Sent, &p.Failed, &p.Pending)
	if err != nil {
		return p, apperrors.NewQueryExecutionError("campaign progress", err)
	}
	return p, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM campaign_messages WHERE campaign_id = $1`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return apperrors.NewQueryExecutionError("delete campaign", err)
	}
	return nil
}
