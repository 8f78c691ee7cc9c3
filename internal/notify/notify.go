// Package notify fans hot-lead alerts out to Telegram, SMS, email, the CRM and the process engine.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/common/logger"
	"whatsapp-sales-workers/internal/common/metrics"
	"whatsapp-sales-workers/internal/leads"
)

// ErrSkipped is returned by a channel that is not configured.
var ErrSkipped = errors.New("channel not configured")

// Channel delivers one alert.
type Channel interface {
	Name() string
	Send(ctx context.Context, lead leads.HotLead) error
}

// Multi sends to every channel concurrently, each bounded by Timeout.
type Multi struct {
	channels []Channel
	timeout  time.Duration
	logger   logger.Logger
}

func NewMulti(timeout time.Duration, log logger.Logger, channels ...Channel) *Multi {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Multi{
		channels: channels,
		timeout:  timeout,
		logger:   log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

// NotifyHotLead returns a NotifierError naming every channel that failed. Skipped channels are not failures.
func (m *Multi) NotifyHotLead(ctx context.Context, lead leads.HotLead) error {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		errs   error
		failed []string
	)
	for _, ch := range m.channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()

			err := ch.Send(sendCtx, lead)
			switch {
			case err == nil:
				metrics.Notifications.WithLabelValues(ch.Name(), "sent").Inc()
			case errors.Is(err, ErrSkipped):
				metrics.Notifications.WithLabelValues(ch.Name(), "skipped").Inc()
				m.logger.Debug("notification skipped", map[string]interface{}{"channel": ch.Name()})
			default:
				metrics.Notifications.WithLabelValues(ch.Name(), "failed").Inc()
				m.logger.Warn("notification failed", map[string]interface{}{
					"channel": ch.Name(),
					"leadId":  lead.LeadID,
					"error":   err,
				})
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
				failed = append(failed, ch.Name())
				mu.Unlock()
			}
		}(ch)
	}
	wg.Wait()

	if errs != nil {
		return apperrors.NewNotifierError(strings.Join(failed, ","), errs)
	}
	return nil
}

// FormatAlert renders the Markdown alert body.
func FormatAlert(lead leads.HotLead) string {
	name := lead.Contact.Name
	if name == "" {
		name = lead.Contact.PushName
	}
	if name == "" {
		name = "Inconnu"
	}
	phone := lead.Contact.Phone
	if phone == "" {
		phone = "N/A"
	}

	var signals []string
	for _, s := range lead.Signals {
		if s.Weight > 0 {
			signals = append(signals, "• "+strings.ReplaceAll(string(s.Type), "_", " ")+" ✅")
		}
	}

	var b strings.Builder
	b.WriteString("🔥 *HOT LEAD DÉTECTÉ*\n\n")
	fmt.Fprintf(&b, "*Contact:* %s\n", name)
	fmt.Fprintf(&b, "*Téléphone:* %s\n", phone)
	fmt.Fprintf(&b, "*Score:* %d/100\n\n", lead.Score)
	b.WriteString("*Signaux détectés:*\n")
	b.WriteString(strings.Join(signals, "\n"))
	b.WriteString("\n\n*Dernier message:*\n")
	fmt.Fprintf(&b, "\"%s\"\n\n", Truncate(lead.LastMessage, 200))
	b.WriteString("👉 " + lead.Recommendation)
	return b.String()
}

// Truncate cuts s to n runes, appending "..." when shortened.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// plainSummary is the short text used by SMS and email subjects.
func plainSummary(lead leads.HotLead) string {
	name := lead.Contact.DisplayName()
	if name == "" {
		name = lead.Contact.JID
	}
	return fmt.Sprintf("Hot lead %s (%d/100): %s", name, lead.Score, lead.Recommendation)
}
