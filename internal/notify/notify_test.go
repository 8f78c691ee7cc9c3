// internal/notify/notify_test.go
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "whatsapp-sales-workers/internal/common/errors"
	"whatsapp-sales-workers/internal/common/logger"
	"whatsapp-sales-workers/internal/common/metrics"
	"whatsapp-sales-workers/internal/common/zoho"
	"whatsapp-sales-workers/internal/leads"
	"whatsapp-sales-workers/internal/models"
	"whatsapp-sales-workers/internal/settings"
)

type channelFunc struct {
	name string
	fn   func(ctx context.Context, lead leads.HotLead) error
}

func (c channelFunc) Name() string { return c.name }
func (c channelFunc) Send(ctx context.Context, lead leads.HotLead) error {
	return c.fn(ctx, lead)
}

func hotLead() leads.HotLead {
	return leads.HotLead{
		LeadID:  "lead-1",
		Contact: models.Contact{JID: "33612345678@s.whatsapp.net", Name: "Julie", Phone: "33612345678"},
		Score:   90,
		Signals: []leads.Signal{
			{Type: leads.PricingQuestion, Weight: 30},
			{Type: leads.DemoRequest, Weight: 40},
			{Type: leads.NegativeIntent, Weight: -30},
		},
		LastMessage:    "Quel est le prix ? On peut se voir demain ?",
		Recommendation: "APPELER MAINTENANT - Intention d'achat très élevée",
	}
}

func TestFormatAlert(t *testing.T) {
	body := FormatAlert(hotLead())

	assert.True(t, strings.HasPrefix(body, "🔥 *HOT LEAD DÉTECTÉ*\n\n*Contact:* Julie\n"))
	assert.Contains(t, body, "*Téléphone:* 33612345678\n")
	assert.Contains(t, body, "*Score:* 90/100\n")
	assert.Contains(t, body, "• pricing question ✅\n• demo request ✅\n")
	assert.NotContains(t, body, "negative intent")
	assert.Contains(t, body, "\"Quel est le prix ? On peut se voir demain ?\"")
	assert.True(t, strings.HasSuffix(body, "👉 APPELER MAINTENANT - Intention d'achat très élevée"))
}

func TestFormatAlert_UnknownContact(t *testing.T) {
	lead := hotLead()
	lead.Contact = models.Contact{JID: "x@s.whatsapp.net"}
	lead.LastMessage = strings.Repeat("a", 250)

	body := FormatAlert(lead)
	assert.Contains(t, body, "*Contact:* Inconnu\n")
	assert.Contains(t, body, "*Téléphone:* N/A\n")
	assert.Contains(t, body, "\""+strings.Repeat("a", 200)+"...\"")
}

func TestMulti_AggregatesFailures(t *testing.T) {
	before := testutil.ToFloat64(metrics.Notifications.WithLabelValues("broken", "failed"))

	var delivered []string
	ok := channelFunc{name: "ok", fn: func(context.Context, leads.HotLead) error {
		delivered = append(delivered, "ok")
		return nil
	}}
	skipped := channelFunc{name: "off", fn: func(context.Context, leads.HotLead) error { return ErrSkipped }}
	broken := channelFunc{name: "broken", fn: func(context.Context, leads.HotLead) error { return errors.New("502") }}

	err := NewMulti(time.Second, logger.NewNoOpLogger(), ok, skipped, broken).NotifyHotLead(context.Background(), hotLead())

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotifier))
	assert.Contains(t, err.Error(), "broken: 502")
	assert.Equal(t, []string{"ok"}, delivered)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Notifications.WithLabelValues("broken", "failed")))
}

func TestMulti_SkippedIsNotFailure(t *testing.T) {
	skipped := channelFunc{name: "off", fn: func(context.Context, leads.HotLead) error { return ErrSkipped }}
	assert.NoError(t, NewMulti(time.Second, logger.NewNoOpLogger(), skipped).NotifyHotLead(context.Background(), hotLead()))
}

func TestMulti_TimeoutBoundsSlowChannel(t *testing.T) {
	slow := channelFunc{name: "slow", fn: func(ctx context.Context, _ leads.HotLead) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	start := time.Now()
	err := NewMulti(20*time.Millisecond, logger.NewNoOpLogger(), slow).NotifyHotLead(context.Background(), hotLead())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

type fakeSettings map[string]string

func (f fakeSettings) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := f[key]
	return v, ok, nil
}

func TestTelegram_Send(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(fakeSettings{
		settings.KeyTelegramBotToken: "TOKEN",
		settings.KeyTelegramChatID:   "-10042",
	}, srv.URL)

	require.NoError(t, tg.Send(context.Background(), hotLead()))
	assert.Equal(t, "-10042", got["chat_id"])
	assert.Equal(t, "Markdown", got["parse_mode"])
	assert.Equal(t, FormatAlert(hotLead()), got["text"])
}

func TestTelegram_SkippedWithoutCredentials(t *testing.T) {
	tg := NewTelegram(fakeSettings{settings.KeyTelegramBotToken: "TOKEN"}, "http://unused")
	assert.ErrorIs(t, tg.Send(context.Background(), hotLead()), ErrSkipped)

	tg = NewTelegram(fakeSettings{}, "http://unused")
	assert.ErrorIs(t, tg.Send(context.Background(), hotLead()), ErrSkipped)
}

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sns.PublishOutput{}, f.err
}

func TestSMS_PublishesToEveryPhone(t *testing.T) {
	client := &fakeSNS{}
	require.NoError(t, NewSMS(client, []string{"+33600000001", "+33600000002"}).Send(context.Background(), hotLead()))

	require.Len(t, client.inputs, 2)
	assert.Equal(t, "+33600000002", *client.inputs[1].PhoneNumber)
	assert.Contains(t, *client.inputs[0].Message, "Julie (90/100)")
	assert.LessOrEqual(t, len([]rune(*client.inputs[0].Message)), 163)
}

func TestSMS_SkippedWithoutPhones(t *testing.T) {
	assert.ErrorIs(t, NewSMS(&fakeSNS{}, nil).Send(context.Background(), hotLead()), ErrSkipped)
}

type fakeSES struct {
	input *ses.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	return &ses.SendEmailOutput{}, nil
}

func TestEmail_Send(t *testing.T) {
	client := &fakeSES{}
	require.NoError(t, NewEmail(client, "alerts@example.com", []string{"sales@example.com"}).Send(context.Background(), hotLead()))

	require.NotNil(t, client.input)
	assert.Equal(t, "alerts@example.com", *client.input.Source)
	assert.Equal(t, []string{"sales@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, FormatAlert(hotLead()), *client.input.Message.Body.Text.Data)
}

type upsertFunc func(ctx context.Context, lead *zoho.Lead) (string, error)

func (f upsertFunc) UpsertLead(ctx context.Context, lead *zoho.Lead) (string, error) {
	return f(ctx, lead)
}

func TestCRM_Send(t *testing.T) {
	var got *zoho.Lead
	crm := NewCRM(upsertFunc(func(_ context.Context, lead *zoho.Lead) (string, error) {
		got = lead
		return "zoho-1", nil
	}))

	require.NoError(t, crm.Send(context.Background(), hotLead()))
	assert.Equal(t, "Julie", got.LastName)
	assert.Equal(t, "33612345678", got.Phone)
	assert.Equal(t, "WhatsApp", got.Source)
	assert.Equal(t, "Hot", got.Rating)
	assert.Contains(t, got.Description, "Score 90/100")
}

type publishFunc func(ctx context.Context, name, key string, vars interface{}) error

func (f publishFunc) PublishMessage(ctx context.Context, name, key string, vars interface{}) error {
	return f(ctx, name, key, vars)
}

func TestProcess_Send(t *testing.T) {
	var name, key string
	var vars map[string]interface{}
	p := NewProcess(publishFunc(func(_ context.Context, n, k string, v interface{}) error {
		name, key = n, k
		vars = v.(map[string]interface{})
		return nil
	}))

	require.NoError(t, p.Send(context.Background(), hotLead()))
	assert.Equal(t, MessageName, name)
	assert.Equal(t, "33612345678@s.whatsapp.net", key)
	assert.Equal(t, 90, vars["score"])
	assert.Equal(t, []string{"pricing_question", "demo_request", "negative_intent"}, vars["signals"])
}
