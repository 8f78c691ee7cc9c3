// Package transport is the boundary to the WhatsApp session.
package transport

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "whatsapp-sales-workers/internal/common/errors"
)

type Presence string

const (
	Composing Presence = "composing"
	Paused    Presence = "paused"
)

type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

type Media struct {
	URL      string    `json:"url"`
	Kind     MediaKind `json:"type,omitempty"`
	MimeType string    `json:"mimetype,omitempty"`
	FileName string    `json:"fileName,omitempty"`
}

type Location struct {
	Latitude  float64 `json:"degreesLatitude"`
	Longitude float64 `json:"degreesLongitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

type ContactCard struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// VCard renders the card the way WhatsApp clients expect it.
func (c ContactCard) VCard() string {
	return "BEGIN:VCARD\nVERSION:3.0\nFN:" + c.Name +
		"\nTEL;type=CELL;type=VOICE;waid=" + c.Phone + ":" + c.Phone + "\nEND:VCARD"
}

// Payload is one outbound message. Text doubles as the caption when Media is set.
type Payload struct {
	Text     string       `json:"text,omitempty"`
	Media    *Media       `json:"media,omitempty"`
	Location *Location    `json:"location,omitempty"`
	Contact  *ContactCard `json:"contact,omitempty"`
}

// Text builds a plain text payload.
func Text(s string) Payload { return Payload{Text: s} }

// Length is the character count used to size the typing simulation.
func (p Payload) Length() int {
	return utf8.RuneCountInString(p.Text)
}

// Summary is the stored text representation of the payload.
func (p Payload) Summary() string {
	switch {
	case p.Location != nil:
		return "[Location] " + p.Location.Name
	case p.Contact != nil:
		return "[Contact] " + p.Contact.Name
	case p.Media != nil && p.Text == "":
		return "[Media]"
	default:
		return p.Text
	}
}

func (p Payload) Validate() error {
	if strings.TrimSpace(p.Text) == "" && p.Media == nil && p.Location == nil && p.Contact == nil {
		return apperrors.NewValidationError("payload", "message has no content")
	}
	if p.Media != nil && p.Media.URL == "" {
		return apperrors.NewValidationError("payload.media.url", "media url is required")
	}
	if p.Contact != nil && (p.Contact.Name == "" || p.Contact.Phone == "") {
		return apperrors.NewValidationError("payload.contact", "contact card needs a name and a phone")
	}
	return nil
}

type SendResult struct {
	MessageID string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// Transport sends messages over an authenticated WhatsApp session.
// Send and SetPresence fail with a NotConnectedError while the session is down.
type Transport interface {
	IsConnected() bool
	Send(ctx context.Context, target string, p Payload) (SendResult, error)
	SetPresence(ctx context.Context, target string, state Presence) error
}
