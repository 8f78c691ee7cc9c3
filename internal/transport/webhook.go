// internal/transport/webhook.go
package transport

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"whatsapp-sales-workers/internal/common/logger"
)

// InboundMessage is a decoded message received on the session.
type InboundMessage struct {
	ID         string    `json:"id"`
	ContactJID string    `json:"jid"`
	Phone      string    `json:"phone"`
	PushName   string    `json:"pushName"`
	Content    string    `json:"content"`
	FromMe     bool      `json:"fromMe"`
	Timestamp  time.Time `json:"timestamp"`
}

// ContactUpdate is a contact name change pushed by the session.
type ContactUpdate struct {
	JID      string `json:"id"`
	Name     string `json:"name,omitempty"`
	PushName string `json:"notify,omitempty"`
}

// Sink receives inbound messages.
type Sink interface {
	HandleInbound(ctx context.Context, msg InboundMessage) error
}

// ContactSink is implemented by sinks that also track contact updates.
type ContactSink interface {
	UpsertContacts(ctx context.Context, updates []ContactUpdate) error
}

type webhookEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type wireMessage struct {
	Key struct {
		ID        string `json:"id"`
		RemoteJID string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
	} `json:"key"`
	PushName         string       `json:"pushName"`
	MessageTimestamp int64        `json:"messageTimestamp"`
	Message          *wireContent `json:"message"`
}

type captioned struct {
	Caption string `json:"caption"`
}

type wireContent struct {
	Conversation        string `json:"conversation"`
	ExtendedTextMessage *struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage"`
	ImageMessage    *captioned `json:"imageMessage"`
	VideoMessage    *captioned `json:"videoMessage"`
	DocumentMessage *captioned `json:"documentMessage"`
	LocationMessage *struct {
		Name string `json:"name"`
	} `json:"locationMessage"`
	ContactMessage *struct {
		DisplayName string `json:"displayName"`
	} `json:"contactMessage"`
	AudioMessage   *json.RawMessage `json:"audioMessage"`
	StickerMessage *json.RawMessage `json:"stickerMessage"`
}

// extractContent returns the text representation of a message, or "" for unsupported kinds.
func extractContent(m *wireContent) string {
	switch {
	case m == nil:
		return ""
	case m.Conversation != "":
		return m.Conversation
	case m.ExtendedTextMessage != nil && m.ExtendedTextMessage.Text != "":
		return m.ExtendedTextMessage.Text
	case m.ImageMessage != nil && m.ImageMessage.Caption != "":
		return "[Image] " + m.ImageMessage.Caption
	case m.VideoMessage != nil && m.VideoMessage.Caption != "":
		return "[Video] " + m.VideoMessage.Caption
	case m.DocumentMessage != nil && m.DocumentMessage.Caption != "":
		return "[Document] " + m.DocumentMessage.Caption
	case m.LocationMessage != nil:
		return "[Location] " + m.LocationMessage.Name
	case m.ContactMessage != nil:
		return "[Contact] " + m.ContactMessage.DisplayName
	case m.AudioMessage != nil:
		return "[Voice Message]"
	case m.StickerMessage != nil:
		return "[Sticker]"
	default:
		return ""
	}
}

// decodeMessage converts a gateway message; ok is false when it carries nothing we keep.
func decodeMessage(w wireMessage) (InboundMessage, bool) {
	content := extractContent(w.Message)
	if content == "" || w.Key.RemoteJID == "" {
		return InboundMessage{}, false
	}
	phone := PhoneFromJID(w.Key.RemoteJID)
	pushName := w.PushName
	if pushName == "" {
		pushName = phone
	}
	ts := time.Now().UTC()
	if w.MessageTimestamp > 0 {
		ts = time.Unix(w.MessageTimestamp, 0).UTC()
	}
	return InboundMessage{
		ID:         w.Key.ID,
		ContactJID: w.Key.RemoteJID,
		Phone:      phone,
		PushName:   pushName,
		Content:    content,
		FromMe:     w.Key.FromMe,
		Timestamp:  ts,
	}, true
}

// WebhookHandler decodes gateway callbacks: messages, connection updates and contact updates.
type WebhookHandler struct {
	secret  string
	sink    Sink
	session *GatewaySession
	timeout time.Duration
	log     logger.Logger
}

// NewWebhookHandler builds the handler. session may be nil when connection events are not tracked.
func NewWebhookHandler(secret string, sink Sink, session *GatewaySession, log logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		secret:  secret,
		sink:    sink,
		session: session,
		timeout: 60 * time.Second,
		log:     log.WithFields(map[string]interface{}{"component": "whatsapp-webhook"}),
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Webhook-Secret")), []byte(h.secret)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var evt webhookEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&evt); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	// Processing outlives the gateway's request if it disconnects early.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()

	switch evt.Event {
	case "messages.upsert", "message":
		h.handleMessages(ctx, evt.Data)
	case "connection.update", "connection":
		var st ConnectionState
		if err := json.Unmarshal(evt.Data, &st); err != nil {
			http.Error(w, "invalid connection update", http.StatusBadRequest)
			return
		}
		if h.session != nil {
			h.session.UpdateState(st)
		}
	case "contacts.update", "contacts":
		h.handleContacts(ctx, evt.Data)
	default:
		h.log.Debug("ignoring webhook event", map[string]interface{}{"event": evt.Event})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WebhookHandler) handleMessages(ctx context.Context, data json.RawMessage) {
	var batch []wireMessage
	if err := json.Unmarshal(data, &batch); err != nil {
		var single wireMessage
		if err := json.Unmarshal(data, &single); err != nil {
			h.log.Warn("undecodable message event", map[string]interface{}{"error": err.Error()})
			return
		}
		batch = []wireMessage{single}
	}

	for _, wm := range batch {
		msg, ok := decodeMessage(wm)
		if !ok {
			continue
		}
		if err := h.sink.HandleInbound(ctx, msg); err != nil {
			h.log.Error("inbound message handling failed", map[string]interface{}{
				"messageId": msg.ID,
				"jid":       msg.ContactJID,
				"error":     err.Error(),
			})
		}
	}
}

func (h *WebhookHandler) handleContacts(ctx context.Context, data json.RawMessage) {
	cs, ok := h.sink.(ContactSink)
	if !ok {
		return
	}
	var updates []ContactUpdate
	if err := json.Unmarshal(data, &updates); err != nil {
		h.log.Warn("undecodable contacts event", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := cs.UpsertContacts(ctx, updates); err != nil {
		h.log.Error("contact update failed", map[string]interface{}{"error": err.Error()})
	}
}
