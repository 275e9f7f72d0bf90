package provisioning

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/app/repository"
	"github.com/lumenisp/netbill/internal/pkg/security"
)

type fakeRouterClient struct {
	created      map[string]string // username -> profile
	deleted      []string
	createErr    error
	deleteErr    error
	lastPassword string
}

func newFakeRouterClient() *fakeRouterClient {
	return &fakeRouterClient{created: make(map[string]string)}
}

func (f *fakeRouterClient) CreatePPPoEUser(ctx context.Context, router *models.Router, username, password, profile string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created[username] = profile
	f.lastPassword = password
	return "*B7", nil
}

func (f *fakeRouterClient) UpdateUserProfile(ctx context.Context, router *models.Router, userID, profile string) error {
	return nil
}

func (f *fakeRouterClient) DeleteUser(ctx context.Context, router *models.Router, userID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, userID)
	return nil
}

func (f *fakeRouterClient) DisconnectActiveSession(ctx context.Context, router *models.Router, username string) error {
	return nil
}

func (f *fakeRouterClient) TestConnection(ctx context.Context, router *models.Router) error {
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	t.Setenv("APP_KEY", "provisioning-test-key")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Customer{},
		&models.Package{},
		&models.Router{},
		&models.Service{},
	))
	return db
}

func seedCustomerPackageRouter(t *testing.T, db *gorm.DB, tag string) (uint, uint, uint) {
	t.Helper()

	customer := &models.Customer{Name: "Customer " + tag, Phone: "0812" + tag}
	require.NoError(t, db.Create(customer).Error)
	pkg := &models.Package{Name: "Home 10M " + tag, Price: 150000}
	require.NoError(t, db.Create(pkg).Error)
	router := &models.Router{Name: "Router " + tag, Host: "10.0.0.1", Username: "api", PasswordEnc: "enc"}
	require.NoError(t, db.Create(router).Error)
	return customer.ID, pkg.ID, router.ID
}

func newTestEngine(db *gorm.DB, router *fakeRouterClient) *Engine {
	repos := repository.NewRepositories(db)
	settings := &models.AppSettings{
		BillingCycleDays: 30,
		ProfilePrefix:    "pkg_",
	}
	e := NewEngine(db, repos.Service, router, settings)
	e.now = func() time.Time { return time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC) }
	return e
}

func TestGenerateCredentials(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	creds, err := GenerateCredentials(now, func(string) (bool, error) { return false, nil })
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^pppoe_20260830_[A-Z2-9]{6}$`), creds.Username)
	assert.Len(t, creds.Password, 12)
	assert.True(t, strings.ContainsAny(creds.Password, passwordUpperChars), "password needs an uppercase char")
	assert.True(t, strings.ContainsAny(creds.Password, passwordLowerChars), "password needs a lowercase char")
	assert.True(t, strings.ContainsAny(creds.Password, passwordDigitChars), "password needs a digit")
	assert.True(t, strings.ContainsAny(creds.Password, passwordSymbolChars), "password needs a symbol")
}

func TestGenerateCredentialsCollisionRetry(t *testing.T) {
	now := time.Now()
	calls := 0
	creds, err := GenerateCredentials(now, func(string) (bool, error) {
		calls++
		return calls <= 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.NotEmpty(t, creds.Username)
}

func TestGenerateCredentialsCollisionCap(t *testing.T) {
	now := time.Now()
	_, err := GenerateCredentials(now, func(string) (bool, error) { return true, nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10 attempts")
}

func TestCreateService(t *testing.T) {
	db := setupTestDB(t)
	engine := newTestEngine(db, newFakeRouterClient())
	customerID, packageID, routerID := seedCustomerPackageRouter(t, db, "cs1")

	service, creds, err := engine.CreateService(customerID, packageID, routerID)
	require.NoError(t, err)
	require.NotNil(t, creds)

	assert.Equal(t, models.ServiceStatusPending, service.Status)
	assert.Equal(t, "2026-09-29", service.ExpiryDate.Format("2006-01-02"))
	assert.Nil(t, service.MikrotikUserID)

	// the stored password is encrypted but recoverable
	assert.NotEqual(t, creds.Password, service.PasswordEnc)
	plain, err := security.DecryptString(service.PasswordEnc)
	require.NoError(t, err)
	assert.Equal(t, creds.Password, plain)
}

func TestProvisionService(t *testing.T) {
	db := setupTestDB(t)
	routerClient := newFakeRouterClient()
	engine := newTestEngine(db, routerClient)
	customerID, packageID, routerID := seedCustomerPackageRouter(t, db, "ps1")

	service, creds, ok, err := engine.ProvisionService(context.Background(), customerID, packageID, routerID)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, models.ServiceStatusActive, service.Status)
	require.NotNil(t, service.MikrotikUserID)
	assert.Equal(t, "*B7", *service.MikrotikUserID)
	require.NotNil(t, service.ActivatedAt)

	// the router got the plaintext password and the package profile
	assert.Equal(t, creds.Password, routerClient.lastPassword)
	assert.Equal(t, "pkg_Home_10M_ps1", routerClient.created[service.Username])
}

func TestProvisionServiceRouterFailureKeepsRecord(t *testing.T) {
	db := setupTestDB(t)
	routerClient := newFakeRouterClient()
	routerClient.createErr = errors.New("router unreachable")
	engine := newTestEngine(db, routerClient)
	customerID, packageID, routerID := seedCustomerPackageRouter(t, db, "pf1")

	service, _, ok, err := engine.ProvisionService(context.Background(), customerID, packageID, routerID)
	require.NoError(t, err)
	assert.False(t, ok)

	var after models.Service
	require.NoError(t, db.First(&after, service.ID).Error)
	assert.Equal(t, models.ServiceStatusProvisioningFailed, after.Status)
	assert.Nil(t, after.MikrotikUserID)
}

func TestRetryProvisioning(t *testing.T) {
	db := setupTestDB(t)
	routerClient := newFakeRouterClient()
	routerClient.createErr = errors.New("router unreachable")
	engine := newTestEngine(db, routerClient)
	customerID, packageID, routerID := seedCustomerPackageRouter(t, db, "rp1")

	service, _, ok, err := engine.ProvisionService(context.Background(), customerID, packageID, routerID)
	require.NoError(t, err)
	require.False(t, ok)

	// router comes back, the retry succeeds with the same credentials
	routerClient.createErr = nil
	loaded, err := engine.services.GetByID(service.ID)
	require.NoError(t, err)

	assert.True(t, engine.RetryProvisioning(context.Background(), loaded))
	assert.Equal(t, models.ServiceStatusActive, loaded.Status)
	assert.Equal(t, service.Username, loaded.Username)
}

func TestRetryProvisioningRejectsActiveService(t *testing.T) {
	db := setupTestDB(t)
	engine := newTestEngine(db, newFakeRouterClient())
	customerID, packageID, routerID := seedCustomerPackageRouter(t, db, "rr1")

	service, _, ok, err := engine.ProvisionService(context.Background(), customerID, packageID, routerID)
	require.NoError(t, err)
	require.True(t, ok)

	assert.False(t, engine.RetryProvisioning(context.Background(), service))
}

func TestTerminateService(t *testing.T) {
	db := setupTestDB(t)
	routerClient := newFakeRouterClient()
	engine := newTestEngine(db, routerClient)
	customerID, packageID, routerID := seedCustomerPackageRouter(t, db, "tm1")

	service, _, ok, err := engine.ProvisionService(context.Background(), customerID, packageID, routerID)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, engine.TerminateService(context.Background(), service))
	assert.Contains(t, routerClient.deleted, "*B7")

	var after models.Service
	require.NoError(t, db.First(&after, service.ID).Error)
	assert.Equal(t, models.ServiceStatusTerminated, after.Status)
	assert.Nil(t, after.MikrotikUserID)
}

func TestTerminateServiceSurvivesRouterFailure(t *testing.T) {
	db := setupTestDB(t)
	routerClient := newFakeRouterClient()
	engine := newTestEngine(db, routerClient)
	customerID, packageID, routerID := seedCustomerPackageRouter(t, db, "tf1")

	service, _, ok, err := engine.ProvisionService(context.Background(), customerID, packageID, routerID)
	require.NoError(t, err)
	require.True(t, ok)

	routerClient.deleteErr = errors.New("router unreachable")
	require.NoError(t, engine.TerminateService(context.Background(), service))

	var after models.Service
	require.NoError(t, db.First(&after, service.ID).Error)
	assert.Equal(t, models.ServiceStatusTerminated, after.Status)
}
