// Package mailer wraps outbound email behind a small Sender interface so
// handlers and background jobs never talk to the provider directly. Delivery
// failures on the verification path are logged and swallowed; the code stays
// valid whether or not the email arrived.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Message is a single outbound email.
type Message struct {
	ToName    string
	ToEmail   string
	Subject   string
	PlainText string
	HTMLBody  string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridSender delivers mail through SendGrid.
type SendGridSender struct {
	apiKey    string
	fromName  string
	fromEmail string
}

// NewSendGridSender creates a sender with a fixed from identity.
func NewSendGridSender(apiKey, fromName, fromEmail string) *SendGridSender {
	return &SendGridSender{apiKey: apiKey, fromName: fromName, fromEmail: fromEmail}
}

// Send implements Sender.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if s.apiKey == "" {
		return errors.New("sendgrid api key not set")
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.ToEmail)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.PlainText, msg.HTMLBody)

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}

// SendInBackground fires the message from a goroutine and only logs the
// outcome. Used for side-effect emails that must never fail the request.
func SendInBackground(sender Sender, msg Message) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				zap.S().Errorw("panic sending email", "email", msg.ToEmail, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := sender.Send(ctx, msg); err != nil {
			zap.S().Errorw("failed to send email", "email", msg.ToEmail, "subject", msg.Subject, "error", err)
			return
		}
		zap.S().Infow("email sent", "email", msg.ToEmail, "subject", msg.Subject)
	}()
}

// RecipientResult records the per-recipient outcome of a bulk send.
type RecipientResult struct {
	Email string `json:"email"`
	Sent  bool   `json:"sent"`
	Error string `json:"error,omitempty"`
}

// BulkSummary is the overall result of a bulk send.
type BulkSummary struct {
	Total   int               `json:"total"`
	Sent    int               `json:"sent"`
	Failed  int               `json:"failed"`
	Results []RecipientResult `json:"results"`
}

// BulkDispatcher sends a batch of messages sequentially with a fixed delay
// between sends so provider rate limits are respected. A failed recipient is
// recorded and the batch moves on.
type BulkDispatcher struct {
	sender Sender
	delay  time.Duration
	sleep  func(time.Duration)
}

// NewBulkDispatcher creates a dispatcher with the given inter-message delay.
func NewBulkDispatcher(sender Sender, delay time.Duration) *BulkDispatcher {
	return &BulkDispatcher{sender: sender, delay: delay, sleep: time.Sleep}
}

// Send delivers all messages and returns the summary. Context cancellation
// stops the batch early; messages not attempted are counted as failed.
func (d *BulkDispatcher) Send(ctx context.Context, msgs []Message) BulkSummary {
	summary := BulkSummary{Total: len(msgs), Results: make([]RecipientResult, 0, len(msgs))}

	for i, msg := range msgs {
		if i > 0 {
			d.sleep(d.delay)
		}
		if err := ctx.Err(); err != nil {
			summary.Failed++
			summary.Results = append(summary.Results, RecipientResult{Email: msg.ToEmail, Error: err.Error()})
			continue
		}

		if err := d.sender.Send(ctx, msg); err != nil {
			zap.S().Warnw("bulk send recipient failed", "email", msg.ToEmail, "error", err)
			summary.Failed++
			summary.Results = append(summary.Results, RecipientResult{Email: msg.ToEmail, Error: err.Error()})
			continue
		}

		summary.Sent++
		summary.Results = append(summary.Results, RecipientResult{Email: msg.ToEmail, Sent: true})
	}
	return summary
}
