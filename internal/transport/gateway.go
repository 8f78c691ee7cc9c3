// internal/transport/gateway.go
package transport

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "whatsapp-sales-workers/internal/common/errors"
	commonhttp "whatsapp-sales-workers/internal/common/http"
	"whatsapp-sales-workers/internal/common/logger"
)

// Connection statuses reported by the gateway.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusQRReady      = "qr_ready"
)

type ConnectionState struct {
	Status      string `json:"status"`
	QRCode      string `json:"qrCode,omitempty"`
	IsConnected bool   `json:"isConnected"`
}

type GatewayConfig struct {
	BaseURL        string
	Token          string
	StatusInterval time.Duration
	RequestTimeout time.Duration
}

// GatewaySession talks to the HTTP gateway that owns the WhatsApp socket.
// It polls /status to track connectivity; webhook connection events update it too.
type GatewaySession struct {
	cfg  GatewayConfig
	api  *commonhttp.Client
	send *commonhttp.Client
	log  logger.Logger

	mu       sync.RWMutex
	state    ConnectionState
	onStatus func(ConnectionState)

	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

func NewGatewaySession(cfg GatewayConfig, log logger.Logger) *GatewaySession {
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = 10 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GatewaySession{
		cfg: cfg,
		api: commonhttp.NewClient(cfg.RequestTimeout, 2),
		// a retried POST could deliver the same message twice
		send:  commonhttp.NewClient(cfg.RequestTimeout, 0),
		log:   log.WithFields(map[string]interface{}{"component": "whatsapp-gateway"}),
		state: ConnectionState{Status: StatusDisconnected},
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// OnStatus registers a callback invoked whenever the connection status changes.
func (s *GatewaySession) OnStatus(fn func(ConnectionState)) {
	s.mu.Lock()
	s.onStatus = fn
	s.mu.Unlock()
}

// Open reads the current status and starts the status poller.
// The poller keeps running when the first check fails.
func (s *GatewaySession) Open(ctx context.Context) error {
	err := s.Refresh(ctx)
	s.startOnce.Do(func() { go s.poll() })
	return err
}

// Close stops the status poller.
func (s *GatewaySession) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.startOnce.Do(func() { close(s.done) })
	})
	<-s.done
}

func (s *GatewaySession) poll() {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
			if err := s.Refresh(ctx); err != nil {
				s.log.Warn("gateway status check failed", map[string]interface{}{"error": err.Error()})
			}
			cancel()
		}
	}
}

// Refresh fetches /status. An unreachable gateway counts as disconnected.
func (s *GatewaySession) Refresh(ctx context.Context) error {
	var st ConnectionState
	if err := s.api.DoJSON(ctx, http.MethodGet, s.cfg.BaseURL+"/status", s.headers(), nil, &st); err != nil {
		s.UpdateState(ConnectionState{Status: StatusDisconnected})
		return apperrors.NewExternalServiceError("whatsapp-gateway", err)
	}
	s.UpdateState(st)
	return nil
}

// UpdateState records a new connection state and notifies the listener on change.
func (s *GatewaySession) UpdateState(st ConnectionState) {
	if st.Status == "" {
		st.Status = StatusDisconnected
	}
	st.IsConnected = st.Status == StatusConnected
	if st.IsConnected {
		st.QRCode = ""
	}

	s.mu.Lock()
	changed := s.state != st
	s.state = st
	listener := s.onStatus
	s.mu.Unlock()

	if !changed {
		return
	}
	s.log.Info("whatsapp connection status", map[string]interface{}{"status": st.Status})
	if listener != nil {
		listener(st)
	}
}

func (s *GatewaySession) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *GatewaySession) IsConnected() bool {
	return s.State().IsConnected
}

type sendRequest struct {
	To       string     `json:"to"`
	Text     string     `json:"text,omitempty"`
	Caption  string     `json:"caption,omitempty"`
	Media    *Media     `json:"media,omitempty"`
	Location *Location  `json:"location,omitempty"`
	Contacts *vcardList `json:"contacts,omitempty"`
}

type vcardList struct {
	DisplayName string `json:"displayName"`
	Contacts    []struct {
		VCard string `json:"vcard"`
	} `json:"contacts"`
}

func buildSendRequest(to string, p Payload) sendRequest {
	req := sendRequest{To: to}
	switch {
	case p.Location != nil:
		req.Location = p.Location
	case p.Contact != nil:
		list := &vcardList{DisplayName: p.Contact.Name}
		list.Contacts = append(list.Contacts, struct {
			VCard string `json:"vcard"`
		}{VCard: p.Contact.VCard()})
		req.Contacts = list
	case p.Media != nil:
		req.Media = p.Media
		req.Caption = p.Text
	default:
		req.Text = p.Text
	}
	return req
}

func (s *GatewaySession) Send(ctx context.Context, target string, p Payload) (SendResult, error) {
	if !s.IsConnected() {
		return SendResult{}, apperrors.NewNotConnectedError("send to " + target)
	}
	if err := p.Validate(); err != nil {
		return SendResult{}, err
	}

	var res SendResult
	err := s.send.DoJSON(ctx, http.MethodPost, s.cfg.BaseURL+"/messages", s.headers(),
		buildSendRequest(FormatJID(target), p), &res)
	if err != nil {
		return SendResult{}, s.mapError("send", err)
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now().UTC()
	}
	return res, nil
}

func (s *GatewaySession) SetPresence(ctx context.Context, target string, state Presence) error {
	if !s.IsConnected() {
		return apperrors.NewNotConnectedError("presence for " + target)
	}
	body := map[string]string{"to": FormatJID(target), "state": string(state)}
	if err := s.api.DoJSON(ctx, http.MethodPost, s.cfg.BaseURL+"/presence", s.headers(), body, nil); err != nil {
		return s.mapError("presence", err)
	}
	return nil
}

type NumberCheck struct {
	Exists bool   `json:"exists"`
	JID    string `json:"jid,omitempty"`
}

// CheckNumber asks the gateway whether a phone number has a WhatsApp account.
func (s *GatewaySession) CheckNumber(ctx context.Context, phone string) (NumberCheck, error) {
	if !s.IsConnected() {
		return NumberCheck{}, apperrors.NewNotConnectedError("check number")
	}
	var res NumberCheck
	u := s.cfg.BaseURL + "/numbers/" + url.PathEscape(PhoneFromJID(FormatJID(phone)))
	if err := s.api.DoJSON(ctx, http.MethodGet, u, s.headers(), nil, &res); err != nil {
		return NumberCheck{}, s.mapError("check number", err)
	}
	return res, nil
}

// ProfilePicture returns the contact's picture URL, or "" when hidden or unavailable.
func (s *GatewaySession) ProfilePicture(ctx context.Context, jid string) (string, error) {
	if !s.IsConnected() {
		return "", nil
	}
	var res struct {
		URL string `json:"url"`
	}
	u := s.cfg.BaseURL + "/contacts/" + url.PathEscape(FormatJID(jid)) + "/picture"
	if err := s.api.DoJSON(ctx, http.MethodGet, u, s.headers(), nil, &res); err != nil {
		var statusErr *commonhttp.StatusError
		if stderrors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return "", nil
		}
		return "", s.mapError("profile picture", err)
	}
	return res.URL, nil
}

func (s *GatewaySession) mapError(op string, err error) error {
	var statusErr *commonhttp.StatusError
	if stderrors.As(err, &statusErr) && statusErr.StatusCode == http.StatusServiceUnavailable {
		s.UpdateState(ConnectionState{Status: StatusDisconnected})
		return apperrors.NewNotConnectedError(op + ": " + statusErr.Body)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError("whatsapp "+op, err)
	}
	return apperrors.NewExternalServiceError("whatsapp-gateway", err)
}

func (s *GatewaySession) headers() map[string]string {
	if s.cfg.Token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + s.cfg.Token}
}
