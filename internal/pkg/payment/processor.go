package payment

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/app/repository"
	"github.com/lumenisp/netbill/internal/pkg/notification"
	"github.com/lumenisp/netbill/internal/pkg/paymentgateway"
)

// errAlreadySettled signals that another webhook marked the invoice paid
// between the pre-check and the settlement transaction.
var errAlreadySettled = errors.New("invoice already settled")

// Enqueuer hands follow-up work to the job queue. Restoration and
// notifications run asynchronously so the webhook can be acknowledged fast.
type Enqueuer interface {
	EnqueueRestore(serviceID uint) error
	EnqueueNotification(channel, recipient, subject, body string) error
}

// Result is the processing outcome the webhook controller translates into an
// HTTP response.
type Result struct {
	Status  int
	Message string
}

// Processor applies inbound payment gateway webhooks: audit, verify, dedup,
// then atomically settle the invoice and extend the service period.
type Processor struct {
	db       *gorm.DB
	payments repository.PaymentRepository
	events   repository.WebhookEventRepository
	enqueuer Enqueuer
	settings *models.AppSettings
	now      func() time.Time
}

// NewProcessor creates a webhook processor. The enqueuer is optional; without
// it restoration and notifications are skipped (and logged).
func NewProcessor(
	db *gorm.DB,
	payments repository.PaymentRepository,
	events repository.WebhookEventRepository,
	enqueuer Enqueuer,
	settings *models.AppSettings,
) *Processor {
	return &Processor{
		db:       db,
		payments: payments,
		events:   events,
		enqueuer: enqueuer,
		settings: settings,
		now:      time.Now,
	}
}

// Process runs the webhook pipeline for one notification. Every request
// leaves an audit row, including rejected ones. Redelivered notifications of
// an already-applied transaction are acknowledged without any mutation.
func (p *Processor) Process(adapter paymentgateway.Adapter, req paymentgateway.WebhookRequest, sourceIP string) Result {
	event := &models.PaymentWebhookEvent{
		Gateway:     adapter.Name(),
		SourceIP:    sourceIP,
		PayloadJSON: string(req.Body),
	}
	if err := p.events.Create(event); err != nil {
		// processing continues; losing the audit row is not worth dropping a
		// real payment over
		log.Errorf("[Payment] Webhook audit insert failed: %v", err)
	}

	if !adapter.VerifySignature(req) {
		return p.finish(event, Result{Status: fiber.StatusForbidden, Message: "invalid signature"}, nil)
	}
	event.SignatureValid = true

	payload, err := adapter.ParseWebhook(req.Body)
	if err != nil {
		return p.finish(event, Result{Status: fiber.StatusBadRequest, Message: "invalid payload"}, err)
	}
	event.TransactionID = payload.TransactionID

	exists, err := p.payments.ExistsByGatewayAndTransactionID(adapter.Name(), payload.TransactionID)
	if err != nil {
		return p.finish(event, Result{Status: fiber.StatusInternalServerError, Message: "dedup check failed"}, err)
	}
	if exists {
		log.Infof("[Payment] Duplicate webhook for %s/%s acknowledged", adapter.Name(), payload.TransactionID)
		return p.finish(event, Result{Status: fiber.StatusOK, Message: "already processed"}, nil)
	}

	if payload.Status != paymentgateway.StatusSuccess {
		log.Infof("[Payment] Non-success status %q for %s/%s acknowledged", payload.Status, adapter.Name(), payload.TransactionID)
		return p.finish(event, Result{Status: fiber.StatusOK, Message: "acknowledged"}, nil)
	}

	invoice, err := p.resolveInvoice(payload)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return p.finish(event, Result{Status: fiber.StatusNotFound, Message: "invoice not found"}, err)
		}
		return p.finish(event, Result{Status: fiber.StatusInternalServerError, Message: "invoice lookup failed"}, err)
	}

	if invoice.IsPaid() {
		log.Warnf("[Payment] Invoice %s already paid, webhook %s/%s acknowledged without changes",
			invoice.Number, adapter.Name(), payload.TransactionID)
		return p.finish(event, Result{Status: fiber.StatusOK, Message: "invoice already paid"}, nil)
	}

	wasIsolated, err := p.applyPayment(adapter.Name(), payload, invoice)
	if err != nil {
		if errors.Is(err, errAlreadySettled) {
			log.Warnf("[Payment] Invoice %s settled concurrently, webhook %s/%s acknowledged without changes",
				invoice.Number, adapter.Name(), payload.TransactionID)
			return p.finish(event, Result{Status: fiber.StatusOK, Message: "invoice already paid"}, nil)
		}
		return p.finish(event, Result{Status: fiber.StatusInternalServerError, Message: "payment application failed"}, err)
	}

	p.afterApply(invoice, wasIsolated)

	log.Infof("[Payment] Invoice %s settled by %s/%s", invoice.Number, adapter.Name(), payload.TransactionID)
	return p.finish(event, Result{Status: fiber.StatusOK, Message: "payment applied"}, nil)
}

// resolveInvoice tries the payload's invoice references in fixed order:
// external_id, then invoice_id, then order_id. All three carry the invoice
// primary key when this system created the transaction.
func (p *Processor) resolveInvoice(payload *paymentgateway.NormalizedPayload) (*models.Invoice, error) {
	for _, ref := range []string{payload.ExternalID, payload.InvoiceID, payload.OrderID} {
		if ref == "" {
			continue
		}
		id, err := strconv.ParseUint(ref, 10, 32)
		if err != nil {
			continue
		}

		var invoice models.Invoice
		err = p.db.Preload("Service").Preload("Service.Customer").First(&invoice, uint(id)).Error
		if err == nil {
			return &invoice, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// applyPayment settles the invoice in one transaction: payment row, invoice
// paid, service expiry extended from max(current expiry, today). Reports
// whether the service was isolated before the payment (the caller enqueues
// the restoration).
func (p *Processor) applyPayment(gateway string, payload *paymentgateway.NormalizedPayload, invoice *models.Invoice) (bool, error) {
	now := p.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	cycleDays := p.settings.GetBillingCycleDays()
	wasIsolated := false

	err := p.db.Transaction(func(tx *gorm.DB) error {
		amount := payload.Amount
		if amount == 0 {
			amount = invoice.Amount
		}
		if err := tx.Create(&models.Payment{
			InvoiceID:     invoice.ID,
			Gateway:       gateway,
			TransactionID: payload.TransactionID,
			Amount:        amount,
			Status:        models.PaymentStatusSuccess,
			Metadata:      payload.Raw,
		}).Error; err != nil {
			return fmt.Errorf("payment insert failed: %w", err)
		}

		// The paid pre-check ran outside this transaction, so the status
		// guard settles the race between two gateways paying the same
		// invoice: only the first UPDATE matches, the loser rolls back.
		res := tx.Model(&models.Invoice{}).
			Where("id = ? AND status = ?", invoice.ID, models.InvoiceStatusUnpaid).
			Updates(map[string]interface{}{
				"status":  models.InvoiceStatusPaid,
				"paid_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("invoice update failed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errAlreadySettled
		}
		invoice.Status = models.InvoiceStatusPaid
		invoice.PaidAt = &now

		var service models.Service
		if err := tx.First(&service, invoice.ServiceID).Error; err != nil {
			return fmt.Errorf("service load failed: %w", err)
		}
		wasIsolated = service.IsIsolated()

		// anchor the new period at whichever is later: current expiry (early
		// payment keeps remaining days) or today (late payment does not
		// backdate the period)
		anchor := service.ExpiryDate
		if anchor.Before(today) {
			anchor = today
		}
		newExpiry := anchor.AddDate(0, 0, cycleDays)

		if err := tx.Model(&models.Service{}).Where("id = ?", service.ID).
			Update("expiry_date", newExpiry).Error; err != nil {
			return fmt.Errorf("expiry extension failed: %w", err)
		}
		return nil
	})
	return wasIsolated, err
}

// afterApply enqueues the side effects that must not block or fail the
// webhook acknowledgement.
func (p *Processor) afterApply(invoice *models.Invoice, wasIsolated bool) {
	if p.enqueuer == nil {
		log.Warnf("[Payment] No enqueuer configured, skipping follow-up for invoice %s", invoice.Number)
		return
	}

	if wasIsolated {
		if err := p.enqueuer.EnqueueRestore(invoice.ServiceID); err != nil {
			log.Errorf("[Payment] Restore enqueue for service %d failed: %v", invoice.ServiceID, err)
		}
	}

	if invoice.Service != nil && invoice.Service.Customer != nil && invoice.Service.Customer.Phone != "" {
		msg := notification.PaymentConfirmedMessage(invoice.Service.Customer, invoice)
		if err := p.enqueuer.EnqueueNotification(notification.ChannelWhatsApp, msg.Recipient, msg.Subject, msg.Body); err != nil {
			log.Warnf("[Payment] Confirmation enqueue for invoice %s failed: %v", invoice.Number, err)
		}
	}
}

// finish stamps the audit row with the outcome and returns the result.
func (p *Processor) finish(event *models.PaymentWebhookEvent, result Result, cause error) Result {
	now := p.now()
	event.ProcessedAt = &now
	if cause != nil {
		event.ProcessingError = cause.Error()
	} else if result.Status != fiber.StatusOK {
		event.ProcessingError = result.Message
	}

	if event.ID != 0 {
		if err := p.events.Update(event); err != nil {
			log.Errorf("[Payment] Webhook audit update failed: %v", err)
		}
	}
	return result
}
