// internal/transport/transport_test.go
package transport

import (
	"testing"

	apperrors "whatsapp-sales-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
)

func TestFormatJID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"+33 6 12 34 56 78", "33612345678@s.whatsapp.net"},
		{"0033-612-345-678", "0033612345678@s.whatsapp.net"},
		{"33612345678@s.whatsapp.net", "33612345678@s.whatsapp.net"},
		{"120363025@g.us", "120363025@g.us"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatJID(tt.in), tt.in)
	}
}

func TestPhoneFromJID(t *testing.T) {
	assert.Equal(t, "33612345678", PhoneFromJID("33612345678@s.whatsapp.net"))
	assert.Equal(t, "33612345678", PhoneFromJID("33612345678"))
	assert.True(t, IsGroup("120363025@g.us"))
	assert.False(t, IsGroup("33612345678@s.whatsapp.net"))
}

func TestPayload_LengthAndSummary(t *testing.T) {
	assert.Equal(t, 6, Text("Salut!").Length())
	assert.Equal(t, 5, Text("éàçùô").Length())

	assert.Equal(t, "Bonjour", Text("Bonjour").Summary())
	assert.Equal(t, "[Location] Agence Lyon", Payload{Location: &Location{Name: "Agence Lyon"}}.Summary())
	assert.Equal(t, "[Contact] Julie", Payload{Contact: &ContactCard{Name: "Julie", Phone: "33600000000"}}.Summary())
	assert.Equal(t, "[Media]", Payload{Media: &Media{URL: "https://cdn/x.png"}}.Summary())
	assert.Equal(t, "Notre brochure", Payload{Text: "Notre brochure", Media: &Media{URL: "https://cdn/x.pdf"}}.Summary())
}

func TestPayload_Validate(t *testing.T) {
	assert.NoError(t, Text("ok").Validate())
	assert.NoError(t, Payload{Location: &Location{Latitude: 45.76, Longitude: 4.83}}.Validate())

	for _, p := range []Payload{
		Text("   "),
		{Media: &Media{}},
		{Contact: &ContactCard{Name: "Julie"}},
	} {
		err := p.Validate()
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
	}
}

func TestContactCard_VCard(t *testing.T) {
	card := ContactCard{Name: "Julie", Phone: "33600000000"}
	assert.Equal(t, "BEGIN:VCARD\nVERSION:3.0\nFN:Julie\nTEL;type=CELL;type=VOICE;waid=33600000000:33600000000\nEND:VCARD", card.VCard())
}
