package billing

import (
	"context"
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
	))
	return db
}

func seedService(t *testing.T, db *gorm.DB, username string, price int64, expiry time.Time) *models.Service {
	t.Helper()

	customer := &models.Customer{Name: "Customer " + username, Phone: "0812" + username}
	require.NoError(t, db.Create(customer).Error)
	pkg := &models.Package{Name: "Pkg " + username, Price: price}
	require.NoError(t, db.Create(pkg).Error)
	router := &models.Router{Name: "Router " + username, Host: "10.0.0.1", Username: "api", PasswordEnc: "enc"}
	require.NoError(t, db.Create(router).Error)

	service := &models.Service{
		CustomerID:  customer.ID,
		PackageID:   pkg.ID,
		RouterID:    router.ID,
		Username:    username,
		PasswordEnc: "enc",
		Status:      models.ServiceStatusActive,
		ExpiryDate:  expiry,
	}
	require.NoError(t, db.Create(service).Error)
	return service
}

// testGateway implements paymentgateway.Adapter for billing runs.
type testGateway struct {
	link string
	err  error
}

func (g *testGateway) Name() string { return "test" }
func (g *testGateway) VerifySignature(req paymentgateway.WebhookRequest) bool {
	return true
}
func (g *testGateway) ParseWebhook(body []byte) (*paymentgateway.NormalizedPayload, error) {
	return nil, errors.New("not implemented")
}
func (g *testGateway) CreatePaymentLink(invoice *models.Invoice, customer *models.Customer) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.link, nil
}
func (g *testGateway) GetStatus(ctx context.Context, transactionID string) (string, error) {
	return "", errors.New("not implemented")
}

type fakeEnqueuer struct {
	sent []string
	err  error
}

func (f *fakeEnqueuer) EnqueueNotification(channel, recipient, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, recipient)
	return nil
}

func newTestEngine(db *gorm.DB, gw *testGateway, enq *fakeEnqueuer) *Engine {
	repos := repository.NewRepositories(db)
	settings := &models.AppSettings{
		BillingCycleDays:    30,
		BillingSkipIfUnpaid: true,
	}

	var adapter paymentgateway.Adapter
	if gw != nil {
		adapter = gw
	}
	var enqueuer NotificationEnqueuer
	if enq != nil {
		enqueuer = enq
	}

	e := NewEngine(repos.Service, repos.Invoice, adapter, enqueuer, settings)
	e.now = func() time.Time { return time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC) }
	return e
}

func TestGenerateInvoicesForDueServices(t *testing.T) {
	db := setupTestDB(t)
	enq := &fakeEnqueuer{}
	engine := newTestEngine(db, &testGateway{link: "https://pay.example/x"}, enq)
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	due := seedService(t, db, "due", 150000, today.AddDate(0, 0, -1))
	seedService(t, db, "future", 200000, today.AddDate(0, 0, 15))

	created, err := engine.GenerateInvoicesForDueServices()
	require.NoError(t, err)
	require.Len(t, created, 1)

	invoice := created[0]
	assert.Equal(t, due.ID, invoice.ServiceID)
	assert.Equal(t, int64(150000), invoice.Amount)
	assert.Equal(t, models.InvoiceStatusUnpaid, invoice.Status)
	assert.Equal(t, "2026-08-30", invoice.InvoiceDate.Format("2006-01-02"))
	assert.Equal(t, "2026-09-29", invoice.DueDate.Format("2006-01-02"))
	assert.Equal(t, "https://pay.example/x", invoice.PaymentLink)

	// notification was enqueued for the due customer
	require.Len(t, enq.sent, 1)

	// the billing run never touches the service row
	var after models.Service
	require.NoError(t, db.First(&after, due.ID).Error)
	assert.Equal(t, models.ServiceStatusActive, after.Status)
	assert.Equal(t, due.ExpiryDate.Format("2006-01-02"), after.ExpiryDate.Format("2006-01-02"))
}

func TestGenerateInvoicesSkipsServiceWithUnpaidInvoice(t *testing.T) {
	db := setupTestDB(t)
	engine := newTestEngine(db, nil, nil)
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	service := seedService(t, db, "unpaid", 150000, today.AddDate(0, 0, -1))
	require.NoError(t, db.Create(&models.Invoice{
		Number: models.NewInvoiceNumber(today), ServiceID: service.ID, Amount: 150000,
		Status: models.InvoiceStatusUnpaid, InvoiceDate: today.AddDate(0, -1, 0), DueDate: today.AddDate(0, 0, -5),
	}).Error)

	created, err := engine.GenerateInvoicesForDueServices()
	require.NoError(t, err)
	assert.Empty(t, created)

	var count int64
	require.NoError(t, db.Model(&models.Invoice{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGenerateInvoicesDuplicatesWhenGuardDisabled(t *testing.T) {
	db := setupTestDB(t)
	engine := newTestEngine(db, nil, nil)
	engine.settings.BillingSkipIfUnpaid = false
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	service := seedService(t, db, "dup", 150000, today.AddDate(0, 0, -1))
	require.NoError(t, db.Create(&models.Invoice{
		Number: models.NewInvoiceNumber(today), ServiceID: service.ID, Amount: 150000,
		Status: models.InvoiceStatusUnpaid, InvoiceDate: today.AddDate(0, -1, 0), DueDate: today.AddDate(0, 0, -5),
	}).Error)

	created, err := engine.GenerateInvoicesForDueServices()
	require.NoError(t, err)
	assert.Len(t, created, 1)
}

func TestGenerateInvoicesSurvivesGatewayFailure(t *testing.T) {
	db := setupTestDB(t)
	engine := newTestEngine(db, &testGateway{err: errors.New("gateway down")}, nil)
	today := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	seedService(t, db, "gwfail", 150000, today.AddDate(0, 0, -1))

	created, err := engine.GenerateInvoicesForDueServices()
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Empty(t, created[0].PaymentLink)
}
