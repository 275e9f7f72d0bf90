package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/app/repository"
	"github.com/lumenisp/netbill/internal/pkg/paymentgateway"
)

// stubAdapter is a controllable gateway adapter.
type stubAdapter struct {
	name     string
	sigValid bool
	payload  *paymentgateway.NormalizedPayload
	parseErr error
}

func (a *stubAdapter) Name() string {
	if a.name != "" {
		return a.name
	}
	return "stub"
}
func (a *stubAdapter) VerifySignature(req paymentgateway.WebhookRequest) bool { return a.sigValid }
func (a *stubAdapter) ParseWebhook(body []byte) (*paymentgateway.NormalizedPayload, error) {
	if a.parseErr != nil {
		return nil, a.parseErr
	}
	return a.payload, nil
}
func (a *stubAdapter) CreatePaymentLink(invoice *models.Invoice, customer *models.Customer) (string, error) {
	return "", errors.New("not implemented")
}
func (a *stubAdapter) GetStatus(ctx context.Context, transactionID string) (string, error) {
	return "", errors.New("not implemented")
}

type recordingEnqueuer struct {
	restores      []uint
	notifications []string
}

func (e *recordingEnqueuer) EnqueueRestore(serviceID uint) error {
	e.restores = append(e.restores, serviceID)
	return nil
}

func (e *recordingEnqueuer) EnqueueNotification(channel, recipient, subject, body string) error {
	e.notifications = append(e.notifications, recipient)
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Customer{},
		&models.Package{},
		&models.Router{},
		&models.Service{},
		&models.Invoice{},
		&models.Payment{},
		&models.PaymentWebhookEvent{},
	))
	return db
}

func seedInvoice(t *testing.T, db *gorm.DB, tag, serviceStatus string, expiry time.Time) *models.Invoice {
	t.Helper()

	customer := &models.Customer{Name: "Customer " + tag, Phone: "0812" + tag}
	require.NoError(t, db.Create(customer).Error)
	pkg := &models.Package{Name: "Pkg " + tag, Price: 150000}
	require.NoError(t, db.Create(pkg).Error)
	router := &models.Router{Name: "Router " + tag, Host: "10.0.0.1", Username: "api", PasswordEnc: "enc"}
	require.NoError(t, db.Create(router).Error)

	service := &models.Service{
		CustomerID: customer.ID, PackageID: pkg.ID, RouterID: router.ID,
		Username: "u_" + tag, PasswordEnc: "enc",
		Status: serviceStatus, ExpiryDate: expiry,
	}
	require.NoError(t, db.Create(service).Error)

	invoice := &models.Invoice{
		Number:      models.NewInvoiceNumber(expiry),
		ServiceID:   service.ID,
		Amount:      150000,
		Status:      models.InvoiceStatusUnpaid,
		InvoiceDate: expiry,
		DueDate:     expiry.AddDate(0, 0, 30),
	}
	require.NoError(t, db.Create(invoice).Error)
	return invoice
}

func newTestProcessor(db *gorm.DB, enq Enqueuer) *Processor {
	repos := repository.NewRepositories(db)
	settings := &models.AppSettings{BillingCycleDays: 30}
	p := NewProcessor(db, repos.Payment, repos.WebhookEvent, enq, settings)
	p.now = func() time.Time { return time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC) }
	return p
}

func successPayload(invoiceID uint, txID string) *paymentgateway.NormalizedPayload {
	return &paymentgateway.NormalizedPayload{
		TransactionID: txID,
		Status:        paymentgateway.StatusSuccess,
		Amount:        150000,
		ExternalID:    jsonNumber(invoiceID),
		Raw:           `{"test":true}`,
	}
}

func jsonNumber(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func webhookReq() paymentgateway.WebhookRequest {
	return paymentgateway.WebhookRequest{Body: []byte(`{"test":true}`)}
}

func TestProcessAppliesPayment(t *testing.T) {
	db := setupTestDB(t)
	enq := &recordingEnqueuer{}
	processor := newTestProcessor(db, enq)
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	// expiry two days ahead: early payment keeps the remaining days
	invoice := seedInvoice(t, db, "ap1", models.ServiceStatusActive, today.AddDate(0, 0, 2))
	adapter := &stubAdapter{sigValid: true, payload: successPayload(invoice.ID, "tx-ap1")}

	result := processor.Process(adapter, webhookReq(), "203.0.113.9")
	assert.Equal(t, 200, result.Status)
	assert.Equal(t, "payment applied", result.Message)

	var paidInvoice models.Invoice
	require.NoError(t, db.First(&paidInvoice, invoice.ID).Error)
	assert.Equal(t, models.InvoiceStatusPaid, paidInvoice.Status)
	require.NotNil(t, paidInvoice.PaidAt)

	var payment models.Payment
	require.NoError(t, db.Where("transaction_id = ?", "tx-ap1").First(&payment).Error)
	assert.Equal(t, invoice.ID, payment.InvoiceID)
	assert.Equal(t, "stub", payment.Gateway)

	// expiry anchored at the old expiry, not today
	var service models.Service
	require.NoError(t, db.First(&service, invoice.ServiceID).Error)
	assert.Equal(t, "2026-10-01", service.ExpiryDate.Format("2006-01-02"))

	// active service needs no restoration, confirmation goes out
	assert.Empty(t, enq.restores)
	assert.Len(t, enq.notifications, 1)

	// audit row recorded the success
	var event models.PaymentWebhookEvent
	require.NoError(t, db.First(&event).Error)
	assert.True(t, event.SignatureValid)
	assert.Equal(t, "tx-ap1", event.TransactionID)
	require.NotNil(t, event.ProcessedAt)
	assert.Empty(t, event.ProcessingError)
}

func TestProcessLatePaymentAnchorsAtToday(t *testing.T) {
	db := setupTestDB(t)
	processor := newTestProcessor(db, &recordingEnqueuer{})
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	// expired twenty days ago: the new period starts today, not back then
	invoice := seedInvoice(t, db, "lp1", models.ServiceStatusIsolated, today.AddDate(0, 0, -20))
	adapter := &stubAdapter{sigValid: true, payload: successPayload(invoice.ID, "tx-lp1")}

	result := processor.Process(adapter, webhookReq(), "")
	assert.Equal(t, 200, result.Status)

	var service models.Service
	require.NoError(t, db.First(&service, invoice.ServiceID).Error)
	assert.Equal(t, "2026-09-29", service.ExpiryDate.Format("2006-01-02"))
}

func TestProcessEnqueuesRestoreForIsolatedService(t *testing.T) {
	db := setupTestDB(t)
	enq := &recordingEnqueuer{}
	processor := newTestProcessor(db, enq)
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	invoice := seedInvoice(t, db, "rs1", models.ServiceStatusIsolated, today.AddDate(0, 0, -10))
	adapter := &stubAdapter{sigValid: true, payload: successPayload(invoice.ID, "tx-rs1")}

	result := processor.Process(adapter, webhookReq(), "")
	assert.Equal(t, 200, result.Status)
	assert.Equal(t, []uint{invoice.ServiceID}, enq.restores)
}

func TestProcessRejectsInvalidSignature(t *testing.T) {
	db := setupTestDB(t)
	processor := newTestProcessor(db, nil)

	adapter := &stubAdapter{sigValid: false}
	result := processor.Process(adapter, webhookReq(), "198.51.100.7")
	assert.Equal(t, 403, result.Status)

	// audit row exists even for the rejected request
	var event models.PaymentWebhookEvent
	require.NoError(t, db.First(&event).Error)
	assert.False(t, event.SignatureValid)
	assert.Equal(t, "198.51.100.7", event.SourceIP)

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestProcessRejectsUnparseablePayload(t *testing.T) {
	db := setupTestDB(t)
	processor := newTestProcessor(db, nil)

	adapter := &stubAdapter{sigValid: true, parseErr: errors.New("bad json")}
	result := processor.Process(adapter, webhookReq(), "")
	assert.Equal(t, 400, result.Status)
}

func TestProcessDuplicateWebhookIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	enq := &recordingEnqueuer{}
	processor := newTestProcessor(db, enq)
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	invoice := seedInvoice(t, db, "dup1", models.ServiceStatusActive, today)
	adapter := &stubAdapter{sigValid: true, payload: successPayload(invoice.ID, "tx-dup1")}

	first := processor.Process(adapter, webhookReq(), "")
	require.Equal(t, 200, first.Status)

	var expiryAfterFirst models.Service
	require.NoError(t, db.First(&expiryAfterFirst, invoice.ServiceID).Error)

	second := processor.Process(adapter, webhookReq(), "")
	assert.Equal(t, 200, second.Status)
	assert.Equal(t, "already processed", second.Message)

	// no second payment, no second extension, no second notification
	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var service models.Service
	require.NoError(t, db.First(&service, invoice.ServiceID).Error)
	assert.Equal(t, expiryAfterFirst.ExpiryDate.Format("2006-01-02"), service.ExpiryDate.Format("2006-01-02"))
	assert.Len(t, enq.notifications, 1)
}

func TestProcessNonSuccessStatusAcknowledged(t *testing.T) {
	db := setupTestDB(t)
	processor := newTestProcessor(db, nil)
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	invoice := seedInvoice(t, db, "ns1", models.ServiceStatusActive, today)
	payload := successPayload(invoice.ID, "tx-ns1")
	payload.Status = paymentgateway.StatusPending
	adapter := &stubAdapter{sigValid: true, payload: payload}

	result := processor.Process(adapter, webhookReq(), "")
	assert.Equal(t, 200, result.Status)

	var after models.Invoice
	require.NoError(t, db.First(&after, invoice.ID).Error)
	assert.Equal(t, models.InvoiceStatusUnpaid, after.Status)
}

func TestProcessUnresolvableInvoice(t *testing.T) {
	db := setupTestDB(t)
	processor := newTestProcessor(db, nil)

	adapter := &stubAdapter{sigValid: true, payload: &paymentgateway.NormalizedPayload{
		TransactionID: "tx-nf1",
		Status:        paymentgateway.StatusSuccess,
		ExternalID:    "999999",
		OrderID:       "not-a-number",
	}}

	result := processor.Process(adapter, webhookReq(), "")
	assert.Equal(t, 404, result.Status)
}

func TestApplyPaymentRefusesConcurrentlySettledInvoice(t *testing.T) {
	db := setupTestDB(t)
	processor := newTestProcessor(db, &recordingEnqueuer{})
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	invoice := seedInvoice(t, db, "cc1", models.ServiceStatusActive, today.AddDate(0, 0, 2))

	first := processor.Process(&stubAdapter{sigValid: true, payload: successPayload(invoice.ID, "tx-cc1")}, webhookReq(), "")
	require.Equal(t, 200, first.Status)

	var afterFirst models.Service
	require.NoError(t, db.First(&afterFirst, invoice.ServiceID).Error)

	// second gateway raced past the paid pre-check holding a stale unpaid copy
	stale := *invoice
	stale.Status = models.InvoiceStatusUnpaid
	_, err := processor.applyPayment("stub2", successPayload(invoice.ID, "tx-cc2"), &stale)
	require.ErrorIs(t, err, errAlreadySettled)

	// the losing transaction rolled back: one payment, one extension
	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var service models.Service
	require.NoError(t, db.First(&service, invoice.ServiceID).Error)
	assert.Equal(t, afterFirst.ExpiryDate.Format("2006-01-02"), service.ExpiryDate.Format("2006-01-02"))
}

func TestProcessInvoiceResolutionFallback(t *testing.T) {
	db := setupTestDB(t)
	processor := newTestProcessor(db, &recordingEnqueuer{})
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	invoice := seedInvoice(t, db, "fb1", models.ServiceStatusActive, today)

	// only order_id carries the reference (midtrans style)
	adapter := &stubAdapter{sigValid: true, payload: &paymentgateway.NormalizedPayload{
		TransactionID: "tx-fb1",
		Status:        paymentgateway.StatusSuccess,
		Amount:        150000,
		OrderID:       jsonNumber(invoice.ID),
	}}

	result := processor.Process(adapter, webhookReq(), "")
	assert.Equal(t, 200, result.Status)
	assert.Equal(t, "payment applied", result.Message)
}
