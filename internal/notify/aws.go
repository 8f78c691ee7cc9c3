// internal/notify/aws.go
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/multierr"

	commonaws "whatsapp-sales-workers/internal/common/aws"
	"whatsapp-sales-workers/internal/leads"
)

// SMS publishes a one-line alert to each phone number through SNS.
type SMS struct {
	client commonaws.SNSAPI
	phones []string
}

func NewSMS(client commonaws.SNSAPI, phones []string) *SMS {
	return &SMS{client: client, phones: phones}
}

func (s *SMS) Name() string { return "sns" }

func (s *SMS) Send(ctx context.Context, lead leads.HotLead) error {
	if s.client == nil || len(s.phones) == 0 {
		return ErrSkipped
	}
	msg := Truncate(plainSummary(lead), 160)
	var errs error
	for _, phone := range s.phones {
		_, err := s.client.Publish(ctx, &sns.PublishInput{
			PhoneNumber: aws.String(phone),
			Message:     aws.String(msg),
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sms %s: %w", phone, err))
		}
	}
	return errs
}

// Email sends the full alert through SES.
type Email struct {
	client commonaws.SESAPI
	from   string
	to     []string
}

func NewEmail(client commonaws.SESAPI, from string, to []string) *Email {
	return &Email{client: client, from: from, to: to}
}

func (e *Email) Name() string { return "ses" }

func (e *Email) Send(ctx context.Context, lead leads.HotLead) error {
	if e.client == nil || e.from == "" || len(e.to) == 0 {
		return ErrSkipped
	}
	_, err := e.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(e.from),
		Destination: &sestypes.Destination{ToAddresses: e.to},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(plainSummary(lead)), Charset: aws.String("UTF-8")},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(FormatAlert(lead)), Charset: aws.String("UTF-8")},
			},
		},
	})
	return err
}
