// internal/common/database/schema.go
package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements create the sales tables. Each statement is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS contacts (
		jid             TEXT PRIMARY KEY,
		name            TEXT,
		push_name       TEXT,
		phone           TEXT,
		profile_pic     TEXT,
		is_group        BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_message_at TIMESTAMPTZ,
		tags            JSONB NOT NULL DEFAULT '[]',
		notes           TEXT,
		lead_score      INTEGER NOT NULL DEFAULT 0,
		custom_data     JSONB NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id           TEXT PRIMARY KEY,
		contact_jid  TEXT NOT NULL REFERENCES contacts(jid),
		content      TEXT,
		media_path   TEXT,
		media_type   TEXT,
		from_me      BOOLEAN NOT NULL DEFAULT FALSE,
		timestamp    TIMESTAMPTZ NOT NULL,
		is_read      BOOLEAN NOT NULL DEFAULT FALSE,
		status       TEXT NOT NULL DEFAULT 'sent',
		ai_generated BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id                     TEXT PRIMARY KEY,
		name                   TEXT NOT NULL,
		category               TEXT,
		description            TEXT,
		features               JSONB NOT NULL DEFAULT '[]',
		images                 JSONB NOT NULL DEFAULT '[]',
		base_price             DOUBLE PRECISION NOT NULL,
		currency               TEXT NOT NULL DEFAULT 'EUR',
		price_unit             TEXT NOT NULL DEFAULT 'mois',
		min_negotiable         DOUBLE PRECISION,
		max_discount_percent   DOUBLE PRECISION NOT NULL DEFAULT 0,
		negotiation_conditions TEXT,
		target_audience        TEXT,
		objections_responses   JSONB NOT NULL DEFAULT '{}',
		sales_arguments        JSONB NOT NULL DEFAULT '[]',
		cta_primary            TEXT,
		cta_secondary          TEXT,
		is_active              BOOLEAN NOT NULL DEFAULT TRUE,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_goals (
		id                 TEXT PRIMARY KEY,
		name               TEXT NOT NULL,
		description        TEXT,
		priority           TEXT NOT NULL DEFAULT 'medium',
		tactics            JSONB NOT NULL DEFAULT '[]',
		success_indicators JSONB NOT NULL DEFAULT '[]',
		abort_conditions   JSONB NOT NULL DEFAULT '[]',
		escalation_rules   JSONB NOT NULL DEFAULT '{}',
		is_active          BOOLEAN NOT NULL DEFAULT TRUE,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS campaigns (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		type           TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'draft',
		template       TEXT,
		ai_prompt      TEXT,
		contacts_count INTEGER NOT NULL DEFAULT 0,
		sent_count     INTEGER NOT NULL DEFAULT 0,
		failed_count   INTEGER NOT NULL DEFAULT 0,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		started_at     TIMESTAMPTZ,
		completed_at   TIMESTAMPTZ,
		settings       JSONB NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS campaign_messages (
		id          TEXT PRIMARY KEY,
		campaign_id TEXT NOT NULL REFERENCES campaigns(id),
		contact_jid TEXT NOT NULL,
		phone       TEXT,
		name        TEXT,
		message     TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'pending',
		sent_at     TIMESTAMPTZ,
		error       TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS hot_leads (
		id          TEXT PRIMARY KEY,
		contact_jid TEXT NOT NULL REFERENCES contacts(jid),
		score       INTEGER NOT NULL,
		signals     JSONB NOT NULL DEFAULT '[]',
		is_hot      BOOLEAN NOT NULL DEFAULT FALSE,
		detected_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		notified    BOOLEAN NOT NULL DEFAULT FALSE,
		handled     BOOLEAN NOT NULL DEFAULT FALSE,
		handled_by  TEXT,
		handled_at  TIMESTAMPTZ,
		notes       TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS brain_documents (
		id         SERIAL PRIMARY KEY,
		filename   TEXT NOT NULL,
		filepath   TEXT NOT NULL,
		content    TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key        TEXT PRIMARY KEY,
		value      TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS negotiation_logs (
		id                   SERIAL PRIMARY KEY,
		contact_jid          TEXT NOT NULL,
		product_id           TEXT REFERENCES products(id),
		requested_price      DOUBLE PRECISION,
		final_price          DOUBLE PRECISION,
		accepted             BOOLEAN,
		conditions_applied   TEXT,
		conversation_excerpt TEXT,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS analytics_events (
		id         SERIAL PRIMARY KEY,
		event_type TEXT NOT NULL,
		event_data JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_contact ON messages(contact_jid)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_campaign_messages_campaign ON campaign_messages(campaign_id)`,
	`CREATE INDEX IF NOT EXISTS idx_hot_leads_contact_detected ON hot_leads(contact_jid, detected_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_hot_leads_score ON hot_leads(score)`,
	`CREATE INDEX IF NOT EXISTS idx_contacts_lead_score ON contacts(lead_score)`,
}

// DefaultSettings are seeded on migration without overwriting operator values.
var DefaultSettings = [][2]string{
	{"whatsapp_auto_connect", "false"},
	{"anti_ban_min_delay", "15000"},
	{"anti_ban_max_delay", "45000"},
	{"anti_ban_typing_enabled", "true"},
	{"hot_lead_threshold", "70"},
	{"telegram_bot_token", ""},
	{"telegram_chat_id", ""},
	{"co_pilot_enabled", "true"},
	{"auto_reply_enabled", "false"},
	{"theme", "dark"},
}

const seedSettingSQL = `INSERT INTO settings (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`

// Migrate creates the schema and seeds default settings in one transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	return WithTx(ctx, db, func(tx *sql.Tx) error {
		for i, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("schema statement %d: %w", i, err)
			}
		}
		for _, kv := range DefaultSettings {
			if _, err := tx.ExecContext(ctx, seedSettingSQL, kv[0], kv[1]); err != nil {
				return fmt.Errorf("seed setting %s: %w", kv[0], err)
			}
		}
		return nil
	})
}
