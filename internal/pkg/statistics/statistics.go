package statistics

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/internal/pkg/cache"
	"github.com/lumenisp/netbill/internal/pkg/database"
)

const (
	CacheKeyActiveServices   = "statistics:services:active"
	CacheKeyIsolatedServices = "statistics:services:isolated"
	CacheKeyUnpaidInvoices   = "statistics:invoices:unpaid"
	CacheKeyRevenueDaily     = "statistics:revenue:daily:%s" // Format with date YYYY-MM-DD
	CounterKeyInvoicesDaily  = "statistics:counter:invoices:%s"
	CounterKeyIsolationDaily = "statistics:counter:isolations:%s"
	CounterKeyPaymentsDaily  = "statistics:counter:payments:%s"
	CacheExpiration          = 30 * time.Minute
	CounterExpiration        = 48 * time.Hour
)

// DashboardData holds the operational numbers for the admin dashboard.
type DashboardData struct {
	ActiveServices    int
	IsolatedServices  int
	UnpaidInvoices    int
	TodayRevenue      int64
	InvoicesGenerated int
	IsolationsQueued  int
	PaymentsReceived  int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached dashboard numbers are stale.
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cached dashboard numbers when stale.
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next read to refresh from the database.
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache recounts services, unpaid invoices and today's revenue
// from the database and stores the values in Redis.
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var activeServices int64
	if err := db.Model(&models.Service{}).Where("status = ?", models.ServiceStatusActive).Count(&activeServices).Error; err != nil {
		log.Printf("Error counting active services: %v", err)
		return err
	}

	var isolatedServices int64
	if err := db.Model(&models.Service{}).Where("status = ?", models.ServiceStatusIsolated).Count(&isolatedServices).Error; err != nil {
		log.Printf("Error counting isolated services: %v", err)
		return err
	}

	var unpaidInvoices int64
	if err := db.Model(&models.Invoice{}).Where("status = ?", models.InvoiceStatusUnpaid).Count(&unpaidInvoices).Error; err != nil {
		log.Printf("Error counting unpaid invoices: %v", err)
		return err
	}

	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	var todayRevenue int64
	if err := db.Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).
		Scan(&todayRevenue).Error; err != nil {
		log.Printf("Error summing today's revenue: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyActiveServices, strconv.FormatInt(activeServices, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyIsolatedServices, strconv.FormatInt(isolatedServices, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyUnpaidInvoices, strconv.FormatInt(unpaidInvoices, 10), CacheExpiration); err != nil {
		return err
	}
	revenueKey := fmt.Sprintf(CacheKeyRevenueDaily, today)
	if err := cache.Set(revenueKey, strconv.FormatInt(todayRevenue, 10), CacheExpiration); err != nil {
		return err
	}

	return nil
}

// RecordInvoicesGenerated bumps today's invoice counter after a billing run.
func RecordInvoicesGenerated(count int) {
	incrementDailyCounter(CounterKeyInvoicesDaily, count)
}

// RecordIsolationsEnqueued bumps today's isolation counter after an overdue scan.
func RecordIsolationsEnqueued(count int) {
	incrementDailyCounter(CounterKeyIsolationDaily, count)
}

// RecordPaymentReceived bumps today's payment counter after a webhook applies.
func RecordPaymentReceived() {
	incrementDailyCounter(CounterKeyPaymentsDaily, 1)
}

func incrementDailyCounter(keyFormat string, count int) {
	if count <= 0 {
		return
	}

	client := cache.GetClient()
	if client == nil {
		return
	}

	ctx := context.Background()
	key := fmt.Sprintf(keyFormat, time.Now().Format("2006-01-02"))
	if err := client.IncrBy(ctx, key, int64(count)).Err(); err != nil {
		log.Printf("Error incrementing counter %s: %v", key, err)
		return
	}
	client.Expire(ctx, key, CounterExpiration)
}

func getDailyCounter(keyFormat string) int {
	client := cache.GetClient()
	if client == nil {
		return 0
	}

	key := fmt.Sprintf(keyFormat, time.Now().Format("2006-01-02"))
	val, err := client.Get(context.Background(), key).Result()
	if err != nil {
		return 0
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return count
}

func getCachedCount(key string, recount func() (int64, error)) int {
	val, err := cache.Get(key)
	if err != nil {
		count, dbErr := recount()
		if dbErr != nil {
			log.Printf("Error recounting %s: %v", key, dbErr)
			return 0
		}

		if err := cache.Set(key, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching %s: %v", key, err)
		}
		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return int(count)
}

// GetActiveServices returns the active service count from cache or database.
func GetActiveServices() int {
	return getCachedCount(CacheKeyActiveServices, func() (int64, error) {
		var count int64
		err := database.GetDB().Model(&models.Service{}).Where("status = ?", models.ServiceStatusActive).Count(&count).Error
		return count, err
	})
}

// GetIsolatedServices returns the isolated service count from cache or database.
func GetIsolatedServices() int {
	return getCachedCount(CacheKeyIsolatedServices, func() (int64, error) {
		var count int64
		err := database.GetDB().Model(&models.Service{}).Where("status = ?", models.ServiceStatusIsolated).Count(&count).Error
		return count, err
	})
}

// GetUnpaidInvoices returns the unpaid invoice count from cache or database.
func GetUnpaidInvoices() int {
	return getCachedCount(CacheKeyUnpaidInvoices, func() (int64, error) {
		var count int64
		err := database.GetDB().Model(&models.Invoice{}).Where("status = ?", models.InvoiceStatusUnpaid).Count(&count).Error
		return count, err
	})
}

// GetTodayRevenue returns today's payment total in rupiah from cache or database.
func GetTodayRevenue() int64 {
	today := time.Now().Format("2006-01-02")
	revenueKey := fmt.Sprintf(CacheKeyRevenueDaily, today)

	val, err := cache.Get(revenueKey)
	if err != nil {
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)

		var total int64
		if err := database.GetDB().Model(&models.Payment{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).
			Scan(&total).Error; err != nil {
			log.Printf("Error summing today's revenue: %v", err)
			return 0
		}

		if err := cache.Set(revenueKey, strconv.FormatInt(total, 10), CacheExpiration); err != nil {
			log.Printf("Error caching today's revenue: %v", err)
		}
		return total
	}

	total, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return total
}

// GetDashboardData returns all dashboard numbers, refreshing the cache if stale.
func GetDashboardData() DashboardData {
	UpdateCacheIfNeeded()

	return DashboardData{
		ActiveServices:    GetActiveServices(),
		IsolatedServices:  GetIsolatedServices(),
		UnpaidInvoices:    GetUnpaidInvoices(),
		TodayRevenue:      GetTodayRevenue(),
		InvoicesGenerated: getDailyCounter(CounterKeyInvoicesDaily),
		IsolationsQueued:  getDailyCounter(CounterKeyIsolationDaily),
		PaymentsReceived:  getDailyCounter(CounterKeyPaymentsDaily),
	}
}
