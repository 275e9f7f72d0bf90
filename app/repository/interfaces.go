package repository

import (
	"time"

	"github.com/lumenisp/netbill/app/models"
	"gorm.io/gorm"
)

// CustomerRepository defines the interface for subscriber account operations
type CustomerRepository interface {
	Create(customer *models.Customer) error
	GetByID(id uint) (*models.Customer, error)
	GetByPhone(phone string) (*models.Customer, error)
	Update(customer *models.Customer) error
	Delete(id uint) error
	List(offset, limit int) ([]models.Customer, error)
	Count() (int64, error)
	Search(query string) ([]models.Customer, error)
}

// PackageRepository defines the interface for internet plan operations
type PackageRepository interface {
	Create(pkg *models.Package) error
	GetByID(id uint) (*models.Package, error)
	GetAll() ([]models.Package, error)
	GetActive() ([]models.Package, error)
	Update(pkg *models.Package) error
	Delete(id uint) error
}

// RouterRepository defines the interface for Mikrotik device records
type RouterRepository interface {
	Create(router *models.Router) error
	GetByID(id uint) (*models.Router, error)
	GetAll() ([]models.Router, error)
	Update(router *models.Router) error
	Delete(id uint) error
	UpdateStatus(id uint, status string, seenAt *time.Time) error
}

// ServiceRepository defines the interface for PPPoE service operations
type ServiceRepository interface {
	Create(service *models.Service) error
	GetByID(id uint) (*models.Service, error)
	GetByUsername(username string) (*models.Service, error)
	// GetDueForBilling returns active services whose expiry date has passed.
	GetDueForBilling(today time.Time) ([]models.Service, error)
	Update(service *models.Service) error
	// UpdateStatusIf applies updates only while the service still has the
	// expected status; returns the number of affected rows.
	UpdateStatusIf(id uint, expectedStatus string, updates map[string]interface{}) (int64, error)
	UsernameExists(username string) (bool, error)
	List(offset, limit int) ([]models.Service, error)
	CountByStatus(status string) (int64, error)
}

// InvoiceRepository defines the interface for invoice operations
type InvoiceRepository interface {
	Create(invoice *models.Invoice) error
	GetByID(id uint) (*models.Invoice, error)
	GetByNumber(number string) (*models.Invoice, error)
	HasUnpaidForService(serviceID uint) (bool, error)
	// GetOldestOverduePerService returns, for every active non-isolated
	// service, its single oldest unpaid invoice with a due date before the
	// cutoff. Services are preloaded.
	GetOldestOverduePerService(cutoff time.Time) ([]models.Invoice, error)
	Update(invoice *models.Invoice) error
	ListByService(serviceID uint) ([]models.Invoice, error)
	List(offset, limit int) ([]models.Invoice, error)
	CountByStatus(status string) (int64, error)
	SumPaidBetween(from, to time.Time) (int64, error)
}

// PaymentRepository defines the interface for applied payment records
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByGatewayAndTransactionID(gateway, transactionID string) (*models.Payment, error)
	ExistsByGatewayAndTransactionID(gateway, transactionID string) (bool, error)
	ListByInvoice(invoiceID uint) ([]models.Payment, error)
}

// WebhookEventRepository defines the interface for the webhook audit log
type WebhookEventRepository interface {
	Create(event *models.PaymentWebhookEvent) error
	Update(event *models.PaymentWebhookEvent) error
	ListRecent(limit int) ([]models.PaymentWebhookEvent, error)
}

// InstallationRepository defines the interface for installation workflow records
type InstallationRepository interface {
	Create(installation *models.Installation) error
	GetByID(id uint) (*models.Installation, error)
	GetByStatus(status string) ([]models.Installation, error)
	Update(installation *models.Installation) error
	List(offset, limit int) ([]models.Installation, error)
}

// SettingRepository defines the interface for application settings
type SettingRepository interface {
	Get() (*models.AppSettings, error)
	Save(settings *models.AppSettings) error
	GetValue(key string) (string, error)
	SetValue(key, value string) error
}

// QueueRepository defines the interface for Redis queue inspection
type QueueRepository interface {
	GetAllKeys() ([]string, error)
	GetValue(key string) (string, error)
	GetTTL(key string) (time.Duration, error)
	DeleteKey(key string) (int64, error)
	GetListLength(key string) (int64, error)
	FindKeysByPatterns(patterns []string) ([]string, error)
	DeleteKeys(keys []string) (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Customer     CustomerRepository
	Package      PackageRepository
	Router       RouterRepository
	Service      ServiceRepository
	Invoice      InvoiceRepository
	Payment      PaymentRepository
	WebhookEvent WebhookEventRepository
	Installation InstallationRepository
	Setting      SettingRepository
	Queue        QueueRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Customer:     NewCustomerRepository(db),
		Package:      NewPackageRepository(db),
		Router:       NewRouterRepository(db),
		Service:      NewServiceRepository(db),
		Invoice:      NewInvoiceRepository(db),
		Payment:      NewPaymentRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
		Installation: NewInstallationRepository(db),
		Setting:      NewSettingRepository(db),
		Queue:        NewQueueRepository(),
	}
}
