package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lumenisp/netbill/app/models"
)

// Delivery channels.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
)

// Message is one outbound notification.
type Message struct {
	Recipient string
	Subject   string
	Body      string
}

// BulkResult reports the outcome for one message of a bulk send.
type BulkResult struct {
	Recipient string
	Err       error
}

// Sender delivers subscriber notifications over a channel.
type Sender interface {
	Send(ctx context.Context, channel, recipient, subject, message string) error
	SendBulk(ctx context.Context, channel string, messages []Message) []BulkResult
}

// MultiSender routes by channel to a WhatsApp gateway and an SMTP mailer.
// Bulk WhatsApp sends go out in batches with a fixed delay between batches so
// the gateway does not rate-limit or flag the sender number.
type MultiSender struct {
	whatsapp   *WhatsAppClient
	mailer     *Mailer
	batchSize  int
	batchDelay time.Duration
}

// NewMultiSender builds the default sender from current settings.
func NewMultiSender(settings *models.AppSettings) *MultiSender {
	return &MultiSender{
		whatsapp:   NewWhatsAppClientFromEnv(),
		mailer:     NewMailerFromEnv(),
		batchSize:  settings.GetNotificationBatchSize(),
		batchDelay: settings.GetNotificationBatchDelay(),
	}
}

// Send delivers a single message on the given channel.
func (s *MultiSender) Send(ctx context.Context, channel, recipient, subject, message string) error {
	switch channel {
	case ChannelWhatsApp:
		return s.whatsapp.SendMessage(ctx, recipient, message)
	case ChannelEmail:
		return s.mailer.Send(recipient, subject, message)
	default:
		return fmt.Errorf("unknown notification channel: %s", channel)
	}
}

// SendBulk delivers messages in batches. Individual failures are collected
// per recipient; one bad number never aborts the rest of the run.
func (s *MultiSender) SendBulk(ctx context.Context, channel string, messages []Message) []BulkResult {
	results := make([]BulkResult, 0, len(messages))
	batchSize := s.batchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	for start := 0; start < len(messages); start += batchSize {
		if start > 0 && channel == ChannelWhatsApp && s.batchDelay > 0 {
			log.Infof("[Notification] Batch pause %v before next %d messages", s.batchDelay, batchSize)
			select {
			case <-time.After(s.batchDelay):
			case <-ctx.Done():
				for _, m := range messages[start:] {
					results = append(results, BulkResult{Recipient: m.Recipient, Err: ctx.Err()})
				}
				return results
			}
		}

		end := start + batchSize
		if end > len(messages) {
			end = len(messages)
		}
		for _, m := range messages[start:end] {
			err := s.Send(ctx, channel, m.Recipient, m.Subject, m.Body)
			if err != nil {
				log.Warnf("[Notification] Send to %s via %s failed: %v", m.Recipient, channel, err)
			}
			results = append(results, BulkResult{Recipient: m.Recipient, Err: err})
		}
	}
	return results
}
