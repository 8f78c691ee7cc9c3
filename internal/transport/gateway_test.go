// internal/transport/gateway_test.go
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu       sync.Mutex
	status   string
	sendCode int
	sent     []map[string]interface{}
	presence []map[string]string
	auth     []string
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.auth = append(g.auth, r.Header.Get("Authorization"))

	switch r.URL.Path {
	case "/status":
		_ = json.NewEncoder(w).Encode(map[string]string{"status": g.status})
	case "/messages":
		if g.sendCode != 0 {
			http.Error(w, "session closed", g.sendCode)
			return
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		g.sent = append(g.sent, body)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "3EB0ABC", "timestamp": "2026-05-01T10:00:00Z"})
	case "/presence":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		g.presence = append(g.presence, body)
		w.WriteHeader(http.StatusNoContent)
	case "/numbers/33612345678":
		_ = json.NewEncoder(w).Encode(NumberCheck{Exists: true, JID: "33612345678@s.whatsapp.net"})
	default:
		http.NotFound(w, r)
	}
}

func newTestSession(t *testing.T, g *fakeGateway) *GatewaySession {
	t.Helper()
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)
	s := NewGatewaySession(GatewayConfig{
		BaseURL:        srv.URL + "/",
		Token:          "secret",
		StatusInterval: time.Hour,
		RequestTimeout: 2 * time.Second,
	}, logger.NewTestLogger(t))
	t.Cleanup(s.Close)
	return s
}

func TestGatewaySession_OpenAndSendText(t *testing.T) {
	g := &fakeGateway{status: StatusConnected}
	s := newTestSession(t, g)

	var changes []ConnectionState
	s.OnStatus(func(st ConnectionState) { changes = append(changes, st) })

	require.NoError(t, s.Open(context.Background()))
	assert.True(t, s.IsConnected())
	require.Len(t, changes, 1)

	res, err := s.Send(context.Background(), "+33 6 12 34 56 78", Text("Bonjour"))
	require.NoError(t, err)
	assert.Equal(t, "3EB0ABC", res.MessageID)

	g.mu.Lock()
	defer g.mu.Unlock()
	require.Len(t, g.sent, 1)
	assert.Equal(t, "33612345678@s.whatsapp.net", g.sent[0]["to"])
	assert.Equal(t, "Bonjour", g.sent[0]["text"])
	assert.Equal(t, "Bearer secret", g.auth[0])
}

func TestGatewaySession_SendShapes(t *testing.T) {
	loc := buildSendRequest("j", Payload{Location: &Location{Latitude: 1, Longitude: 2, Name: "Agence"}})
	assert.NotNil(t, loc.Location)
	assert.Empty(t, loc.Text)

	card := buildSendRequest("j", Payload{Contact: &ContactCard{Name: "Julie", Phone: "336"}})
	require.NotNil(t, card.Contacts)
	assert.Equal(t, "Julie", card.Contacts.DisplayName)
	assert.Contains(t, card.Contacts.Contacts[0].VCard, "FN:Julie")

	media := buildSendRequest("j", Payload{Text: "Brochure", Media: &Media{URL: "https://cdn/b.pdf", Kind: MediaDocument}})
	assert.Equal(t, "Brochure", media.Caption)
	assert.Empty(t, media.Text)
}

func TestGatewaySession_NotConnected(t *testing.T) {
	g := &fakeGateway{status: StatusQRReady}
	s := newTestSession(t, g)
	require.NoError(t, s.Open(context.Background()))

	_, err := s.Send(context.Background(), "33612345678", Text("x"))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotConnected))

	err = s.SetPresence(context.Background(), "33612345678", Composing)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotConnected))

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Empty(t, g.sent)
}

func TestGatewaySession_UnavailableMarksDisconnected(t *testing.T) {
	g := &fakeGateway{status: StatusConnected, sendCode: http.StatusServiceUnavailable}
	s := newTestSession(t, g)
	require.NoError(t, s.Open(context.Background()))

	_, err := s.Send(context.Background(), "33612345678", Text("x"))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotConnected))
	assert.False(t, s.IsConnected())
}

func TestGatewaySession_BadRequestIsExternalError(t *testing.T) {
	g := &fakeGateway{status: StatusConnected, sendCode: http.StatusBadRequest}
	s := newTestSession(t, g)
	require.NoError(t, s.Open(context.Background()))

	_, err := s.Send(context.Background(), "33612345678", Text("x"))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeExternalService))
	assert.True(t, s.IsConnected())
}

func TestGatewaySession_PresenceAndCheckNumber(t *testing.T) {
	g := &fakeGateway{status: StatusConnected}
	s := newTestSession(t, g)
	require.NoError(t, s.Open(context.Background()))

	require.NoError(t, s.SetPresence(context.Background(), "33612345678", Composing))
	check, err := s.CheckNumber(context.Background(), "+33612345678")
	require.NoError(t, err)
	assert.True(t, check.Exists)

	pic, err := s.ProfilePicture(context.Background(), "33612345678")
	require.NoError(t, err)
	assert.Empty(t, pic)

	g.mu.Lock()
	defer g.mu.Unlock()
	require.Len(t, g.presence, 1)
	assert.Equal(t, map[string]string{"to": "33612345678@s.whatsapp.net", "state": "composing"}, g.presence[0])
}

func TestGatewaySession_UnreachableGateway(t *testing.T) {
	s := NewGatewaySession(GatewayConfig{BaseURL: "http://127.0.0.1:1", RequestTimeout: 200 * time.Millisecond}, logger.NewNoOpLogger())
	defer s.Close()

	err := s.Open(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeExternalService))
	assert.False(t, s.IsConnected())
}

func TestGatewaySession_CloseWithoutOpen(t *testing.T) {
	s := NewGatewaySession(GatewayConfig{BaseURL: "http://localhost"}, logger.NewNoOpLogger())
	s.Close()
	s.Close()
}
