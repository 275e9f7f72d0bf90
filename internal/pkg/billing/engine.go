package billing

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/app/repository"
	"github.com/lumenisp/netbill/internal/pkg/notification"
	"github.com/lumenisp/netbill/internal/pkg/paymentgateway"
)

// NotificationEnqueuer hands outbound messages to the job queue so billing
// runs are never blocked on gateway latency.
type NotificationEnqueuer interface {
	EnqueueNotification(channel, recipient, subject, body string) error
}

// Engine generates invoices for services whose paid period has run out. A
// billing run only creates invoices; service status and expiry are never
// touched here. Isolation and expiry extension belong to their own engines.
type Engine struct {
	services repository.ServiceRepository
	invoices repository.InvoiceRepository
	gateway  paymentgateway.Adapter
	enqueuer NotificationEnqueuer
	settings *models.AppSettings
	now      func() time.Time
}

// NewEngine creates a billing engine. The gateway adapter and enqueuer are
// optional; without them invoices are still created, just without payment
// links or notifications.
func NewEngine(
	services repository.ServiceRepository,
	invoices repository.InvoiceRepository,
	gateway paymentgateway.Adapter,
	enqueuer NotificationEnqueuer,
	settings *models.AppSettings,
) *Engine {
	return &Engine{
		services: services,
		invoices: invoices,
		gateway:  gateway,
		enqueuer: enqueuer,
		settings: settings,
		now:      time.Now,
	}
}

// GenerateInvoicesForDueServices creates one invoice per due service. A
// failure on one service is logged and skipped so a single bad record can
// never stall the whole billing run.
func (e *Engine) GenerateInvoicesForDueServices() ([]models.Invoice, error) {
	today := truncateToDay(e.now())
	cycleDays := e.settings.GetBillingCycleDays()
	skipIfUnpaid := e.settings.GetBillingSkipIfUnpaid()

	services, err := e.services.GetDueForBilling(today)
	if err != nil {
		return nil, fmt.Errorf("billing scan failed: %w", err)
	}

	log.Infof("[Billing] Run started: %d due services", len(services))

	var created []models.Invoice
	for i := range services {
		service := &services[i]

		if skipIfUnpaid {
			hasUnpaid, err := e.invoices.HasUnpaidForService(service.ID)
			if err != nil {
				log.Errorf("[Billing] Unpaid check for service %d failed: %v", service.ID, err)
				continue
			}
			if hasUnpaid {
				log.Infof("[Billing] Service %d skipped: unpaid invoice already open", service.ID)
				continue
			}
		}

		invoice, err := e.generateForService(service, today, cycleDays)
		if err != nil {
			log.Errorf("[Billing] Invoice for service %d failed: %v", service.ID, err)
			continue
		}
		created = append(created, *invoice)
	}

	log.Infof("[Billing] Run finished: %d invoices created", len(created))
	return created, nil
}

func (e *Engine) generateForService(service *models.Service, today time.Time, cycleDays int) (*models.Invoice, error) {
	if service.Package == nil {
		return nil, fmt.Errorf("service %d has no package loaded", service.ID)
	}

	invoice := &models.Invoice{
		Number:      models.NewInvoiceNumber(today),
		ServiceID:   service.ID,
		Amount:      service.Package.Price,
		Status:      models.InvoiceStatusUnpaid,
		InvoiceDate: today,
		DueDate:     today.AddDate(0, 0, cycleDays),
	}
	if err := e.invoices.Create(invoice); err != nil {
		return nil, err
	}

	// Payment link and notification are best effort. The invoice exists
	// either way; the subscriber can still pay through other means.
	paymentLink := e.attachPaymentLink(invoice, service.Customer)
	e.notifyInvoiceCreated(service.Customer, invoice, paymentLink)

	return invoice, nil
}

func (e *Engine) attachPaymentLink(invoice *models.Invoice, customer *models.Customer) string {
	if e.gateway == nil {
		return ""
	}

	link, err := e.gateway.CreatePaymentLink(invoice, customer)
	if err != nil {
		log.Warnf("[Billing] Payment link for invoice %s failed: %v", invoice.Number, err)
		return ""
	}

	invoice.PaymentLink = link
	if err := e.invoices.Update(invoice); err != nil {
		log.Warnf("[Billing] Storing payment link for invoice %s failed: %v", invoice.Number, err)
	}
	return link
}

func (e *Engine) notifyInvoiceCreated(customer *models.Customer, invoice *models.Invoice, paymentLink string) {
	if e.enqueuer == nil || customer == nil || customer.Phone == "" {
		return
	}

	msg := notification.InvoiceCreatedMessage(customer, invoice, paymentLink)
	if err := e.enqueuer.EnqueueNotification(notification.ChannelWhatsApp, msg.Recipient, msg.Subject, msg.Body); err != nil {
		log.Warnf("[Billing] Notification enqueue for invoice %s failed: %v", invoice.Number, err)
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
