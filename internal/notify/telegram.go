// internal/notify/telegram.go
package notify

import (
	"context"
	"net/http"
	"strings"
	"time"

	commonhttp "whatsapp-sales-workers/internal/common/http"
	"whatsapp-sales-workers/internal/leads"
	"whatsapp-sales-workers/internal/settings"
)

const defaultTelegramURL = "https://api.telegram.org"

// SettingsReader reads runtime settings such as the bot credentials.
type SettingsReader interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// Telegram posts the Markdown alert through the Bot API. Credentials are read on every send.
type Telegram struct {
	settings SettingsReader
	baseURL  string
	http     *commonhttp.Client
}

func NewTelegram(s SettingsReader, baseURL string) *Telegram {
	if baseURL == "" {
		baseURL = defaultTelegramURL
	}
	return &Telegram{
		settings: s,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     commonhttp.NewClient(10*time.Second, 1),
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, lead leads.HotLead) error {
	token, ok, err := t.settings.Get(ctx, settings.KeyTelegramBotToken)
	if err != nil {
		return err
	}
	if !ok || token == "" {
		return ErrSkipped
	}
	chatID, ok, err := t.settings.Get(ctx, settings.KeyTelegramChatID)
	if err != nil {
		return err
	}
	if !ok || chatID == "" {
		return ErrSkipped
	}

	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       FormatAlert(lead),
		"parse_mode": "Markdown",
	}
	return t.http.DoJSON(ctx, http.MethodPost, t.baseURL+"/bot"+token+"/sendMessage", nil, payload, nil)
}
