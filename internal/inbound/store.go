// internal/inbound/store.go
package inbound

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"whatsapp-sales-workers/internal/common/database"
	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/models"
	"whatsapp-sales-workers/internal/transport"
)

// ConversationStore persists contacts and the message log in Postgres.
type ConversationStore struct {
	db *sql.DB
}

func NewConversationStore(db *sql.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// TouchContact creates the contact or refreshes its push name and last activity.
func (s *ConversationStore) TouchContact(ctx context.Context, jid, phone, pushName string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (jid, name, push_name, phone, is_group, last_message_at)
		VALUES ($1, $2, $2, $3, $4, $5)
		ON CONFLICT (jid) DO UPDATE SET push_name = EXCLUDED.push_name, last_message_at = EXCLUDED.last_message_at`,
		jid, pushName, phone, transport.IsGroup(jid), at)
	if err != nil {
		return apperrors.NewDatabaseInsertError("contacts", err)
	}
	return nil
}

// UpsertContacts applies name changes; the saved name falls back to the push name, then the phone.
func (s *ConversationStore) UpsertContacts(ctx context.Context, updates []transport.ContactUpdate) error {
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, u := range updates {
			if u.JID == "" {
				continue
			}
			phone := transport.PhoneFromJID(u.JID)
			name := u.Name
			if name == "" {
				name = u.PushName
			}
			if name == "" {
				name = phone
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO contacts (jid, name, push_name, phone, is_group)
				VALUES ($1, $2, NULLIF($3, ''), $4, $5)
				ON CONFLICT (jid) DO UPDATE SET name = EXCLUDED.name,
					push_name = COALESCE(EXCLUDED.push_name, contacts.push_name)`,
				u.JID, name, u.PushName, phone, transport.IsGroup(u.JID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.NewDatabaseInsertError("contacts", err)
	}
	return nil
}

func (s *ConversationStore) SetProfilePic(ctx context.Context, jid, url string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE contacts SET profile_pic = $2 WHERE jid = $1`, jid, url); err != nil {
		return apperrors.NewQueryExecutionError("set profile picture", err)
	}
	return nil
}

// SaveMessage inserts the message and reports false when its id was already stored.
func (s *ConversationStore) SaveMessage(ctx context.Context, m models.Message) (bool, error) {
	status := m.Status
	if status == "" {
		status = "sent"
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, contact_jid, content, from_me, timestamp, is_read, status, ai_generated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		m.ID, m.ContactJID, m.Content, m.FromMe, m.Timestamp, m.IsRead, status, m.AIGenerated)
	if err != nil {
		return false, apperrors.NewDatabaseInsertError("messages", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewDatabaseInsertError("messages", err)
	}
	return n == 1, nil
}

// RecentMessages returns up to limit messages before now, oldest first, skipping excludeID.
func (s *ConversationStore) RecentMessages(ctx context.Context, jid string, limit int, excludeID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contact_jid, COALESCE(content, ''), from_me, timestamp, ai_generated
		FROM messages
		WHERE contact_jid = $1 AND id <> $2
		ORDER BY timestamp DESC
		LIMIT $3`, jid, excludeID, limit)
	if err != nil {
		return nil, apperrors.NewQueryExecutionError("recent messages", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ContactJID, &m.Content, &m.FromMe, &m.Timestamp, &m.AIGenerated); err != nil {
			return nil, apperrors.NewQueryExecutionError("recent messages", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionError("recent messages", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Contact returns nil when the JID is unknown.
func (s *ConversationStore) Contact(ctx context.Context, jid string) (*models.Contact, error) {
	var c models.Contact
	err := s.db.QueryRowContext(ctx, `
		SELECT jid, COALESCE(name, ''), COALESCE(push_name, ''), COALESCE(phone, ''), lead_score
		FROM contacts WHERE jid = $1`, jid).
		Scan(&c.JID, &c.Name, &c.PushName, &c.Phone, &c.LeadScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionError("load contact", err)
	}
	return &c, nil
}
