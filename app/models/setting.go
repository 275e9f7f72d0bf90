package models

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Setting represents a system setting
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:255;not null;uniqueIndex" json:"key" validate:"required,min=1,max=255"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null" json:"type" validate:"required"` // string, boolean, integer
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppSettings is the in-memory view of the operational knobs the billing and
// isolation engines read on every run. Loaded from the settings table at boot
// and kept behind a RW mutex so background workers can read it concurrently.
type AppSettings struct {
	GracePeriodDays        int    `json:"grace_period_days" validate:"gte=0,lte=60"`
	BillingCycleDays       int    `json:"billing_cycle_days" validate:"gte=1,lte=365"`
	BillingSkipIfUnpaid    bool   `json:"billing_skip_if_unpaid"`
	IsolationProfile       string `json:"isolation_profile" validate:"required"`
	ProfilePrefix          string `json:"profile_prefix"`
	RouterConnectAttempts  int    `json:"router_connect_attempts" validate:"gte=1,lte=10"`
	RouterConnectTimeoutMS int    `json:"router_connect_timeout_ms" validate:"gte=100"`
	RouterPoolSize         int    `json:"router_pool_size" validate:"gte=1,lte=32"`
	RouterIdleTimeoutSec   int    `json:"router_idle_timeout_sec" validate:"gte=1"`
	NotificationBatchSize  int    `json:"notification_batch_size" validate:"gte=1,lte=500"`
	NotificationBatchDelay int    `json:"notification_batch_delay_sec" validate:"gte=0"`
	JobQueueWorkerCount    int    `json:"job_queue_worker_count" validate:"gte=1,lte=64"`
	mu                     sync.RWMutex
}

// Global settings instance
var (
	appSettings *AppSettings
	settingsMu  sync.RWMutex
)

func defaultAppSettings() *AppSettings {
	return &AppSettings{
		GracePeriodDays:        3,
		BillingCycleDays:       30,
		BillingSkipIfUnpaid:    true,
		IsolationProfile:       "ISOLATED",
		ProfilePrefix:          "pkg_",
		RouterConnectAttempts:  3,
		RouterConnectTimeoutMS: 5000,
		RouterPoolSize:         3,
		RouterIdleTimeoutSec:   300,
		NotificationBatchSize:  50,
		NotificationBatchDelay: 60,
		JobQueueWorkerCount:    5,
	}
}

// GetAppSettings returns the current application settings
func GetAppSettings() *AppSettings {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	if appSettings == nil {
		return defaultAppSettings()
	}
	return appSettings
}

// LoadSettings loads settings from database into memory
func LoadSettings(db *gorm.DB) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	appSettings = defaultAppSettings()

	var settings []Setting
	if err := db.Find(&settings).Error; err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	for _, setting := range settings {
		switch setting.Key {
		case "grace_period_days":
			appSettings.GracePeriodDays = atoiOr(setting.Value, appSettings.GracePeriodDays)
		case "billing_cycle_days":
			appSettings.BillingCycleDays = atoiOr(setting.Value, appSettings.BillingCycleDays)
		case "billing_skip_if_unpaid":
			appSettings.BillingSkipIfUnpaid = setting.Value == "true"
		case "isolation_profile":
			appSettings.IsolationProfile = setting.Value
		case "profile_prefix":
			appSettings.ProfilePrefix = setting.Value
		case "router_connect_attempts":
			appSettings.RouterConnectAttempts = atoiOr(setting.Value, appSettings.RouterConnectAttempts)
		case "router_connect_timeout_ms":
			appSettings.RouterConnectTimeoutMS = atoiOr(setting.Value, appSettings.RouterConnectTimeoutMS)
		case "router_pool_size":
			appSettings.RouterPoolSize = atoiOr(setting.Value, appSettings.RouterPoolSize)
		case "router_idle_timeout_sec":
			appSettings.RouterIdleTimeoutSec = atoiOr(setting.Value, appSettings.RouterIdleTimeoutSec)
		case "notification_batch_size":
			appSettings.NotificationBatchSize = atoiOr(setting.Value, appSettings.NotificationBatchSize)
		case "notification_batch_delay_sec":
			appSettings.NotificationBatchDelay = atoiOr(setting.Value, appSettings.NotificationBatchDelay)
		case "job_queue_worker_count":
			appSettings.JobQueueWorkerCount = atoiOr(setting.Value, appSettings.JobQueueWorkerCount)
		}
	}

	return nil
}

// SaveSettings saves current settings to database
func SaveSettings(db *gorm.DB, settings *AppSettings) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	if err := settings.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	settingsMap := map[string]interface{}{
		"grace_period_days":            settings.GracePeriodDays,
		"billing_cycle_days":           settings.BillingCycleDays,
		"billing_skip_if_unpaid":       settings.BillingSkipIfUnpaid,
		"isolation_profile":            settings.IsolationProfile,
		"profile_prefix":               settings.ProfilePrefix,
		"router_connect_attempts":      settings.RouterConnectAttempts,
		"router_connect_timeout_ms":    settings.RouterConnectTimeoutMS,
		"router_pool_size":             settings.RouterPoolSize,
		"router_idle_timeout_sec":      settings.RouterIdleTimeoutSec,
		"notification_batch_size":      settings.NotificationBatchSize,
		"notification_batch_delay_sec": settings.NotificationBatchDelay,
		"job_queue_worker_count":       settings.JobQueueWorkerCount,
	}

	for key, value := range settingsMap {
		var setting Setting
		result := db.Where("setting_key = ?", key).First(&setting)

		if result.Error != nil {
			if result.Error == gorm.ErrRecordNotFound {
				setting = Setting{
					Key:   key,
					Value: fmt.Sprintf("%v", value),
					Type:  getSettingType(key),
				}
				if err := db.Create(&setting).Error; err != nil {
					return fmt.Errorf("failed to create setting %s: %w", key, err)
				}
			} else {
				return fmt.Errorf("failed to query setting %s: %w", key, result.Error)
			}
		} else {
			setting.Value = fmt.Sprintf("%v", value)
			if err := db.Save(&setting).Error; err != nil {
				return fmt.Errorf("failed to update setting %s: %w", key, err)
			}
		}
	}

	appSettings = settings
	return nil
}

// getSettingType returns the type of a setting based on its key
func getSettingType(key string) string {
	switch key {
	case "isolation_profile", "profile_prefix":
		return "string"
	case "billing_skip_if_unpaid":
		return "boolean"
	default:
		return "integer"
	}
}

// Validate validates the settings
func (s *AppSettings) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

func atoiOr(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// GetGracePeriodDays returns the overdue grace period in days
func (s *AppSettings) GetGracePeriodDays() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.GracePeriodDays
}

// GetBillingCycleDays returns the billing cycle length in days
func (s *AppSettings) GetBillingCycleDays() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.BillingCycleDays
}

// GetBillingSkipIfUnpaid reports whether billing skips services that already
// carry an open unpaid invoice
func (s *AppSettings) GetBillingSkipIfUnpaid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.BillingSkipIfUnpaid
}

// GetIsolationProfile returns the PPPoE profile used for isolated services
func (s *AppSettings) GetIsolationProfile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.IsolationProfile
}

// GetProfilePrefix returns the prefix for package-derived profile names
func (s *AppSettings) GetProfilePrefix() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ProfilePrefix
}

// GetRouterConnectAttempts returns the inner retry count for router dials
func (s *AppSettings) GetRouterConnectAttempts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.RouterConnectAttempts
}

// GetRouterConnectTimeout returns the router connect timeout
func (s *AppSettings) GetRouterConnectTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.RouterConnectTimeoutMS) * time.Millisecond
}

// GetRouterPoolSize returns the per-router connection pool size
func (s *AppSettings) GetRouterPoolSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.RouterPoolSize
}

// GetRouterIdleTimeout returns how long pooled connections may sit idle
func (s *AppSettings) GetRouterIdleTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.RouterIdleTimeoutSec) * time.Second
}

// GetNotificationBatchSize returns the bulk notification batch size
func (s *AppSettings) GetNotificationBatchSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NotificationBatchSize
}

// GetNotificationBatchDelay returns the spacing between bulk batches
func (s *AppSettings) GetNotificationBatchDelay() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.NotificationBatchDelay) * time.Second
}

// GetJobQueueWorkerCount returns the configured job queue worker count
func (s *AppSettings) GetJobQueueWorkerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.JobQueueWorkerCount
}
