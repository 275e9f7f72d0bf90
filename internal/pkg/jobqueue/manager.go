package jobqueue

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/internal/pkg/billing"
	"github.com/lumenisp/netbill/internal/pkg/env"
	"github.com/lumenisp/netbill/internal/pkg/statistics"
)

// Manager owns the job queue and the daily billing and isolation schedules.
// The schedule ticker fires every 30 seconds and compares against the
// configured wall-clock run times; each task runs at most once per day.
type Manager struct {
	queue          *Queue
	billing        *billing.Engine
	scheduleTicker *time.Ticker
	stopCh         chan struct{}
	wg             sync.WaitGroup
	mu             sync.Mutex
	running        bool

	lastBillingDay   string
	lastIsolationDay string
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// InitManager wires the global manager with its engines. Must be called once
// at boot before GetManager.
func InitManager(deps *Dependencies, billingEngine *billing.Engine) *Manager {
	managerOnce.Do(func() {
		workerCount := 5
		if settings := models.GetAppSettings(); settings != nil {
			workerCount = settings.GetJobQueueWorkerCount()
		}

		globalManager = &Manager{
			queue:   NewQueue(workerCount, deps),
			billing: billingEngine,
			stopCh:  make(chan struct{}),
		}
	})
	return globalManager
}

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	if globalManager == nil {
		panic("JobQueue manager not initialized. Call InitManager first.")
	}
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and the daily scheduler
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and daily scheduler")

	m.queue.Start()

	m.scheduleTicker = time.NewTicker(30 * time.Second)
	m.wg.Add(1)
	go m.scheduleWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and scheduler...")

	if m.scheduleTicker != nil {
		m.scheduleTicker.Stop()
	}

	// The channel stays closed until Start replaces it; nilling it here would
	// race with the schedule worker's next select and hang the Wait below.
	close(m.stopCh)
	m.running = false

	m.wg.Wait()
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// scheduleWorker fires the daily billing run and overdue scan at their
// configured clock times (BILLING_RUN_AT, ISOLATION_RUN_AT, "HH:MM").
func (m *Manager) scheduleWorker() {
	defer m.wg.Done()

	billingAt := parseClockTime(env.GetEnv("BILLING_RUN_AT", "01:00"))
	isolationAt := parseClockTime(env.GetEnv("ISOLATION_RUN_AT", "02:00"))
	log.Infof("[JobQueue Manager] Daily schedule: billing at %02d:%02d, isolation at %02d:%02d",
		billingAt/60, billingAt%60, isolationAt/60, isolationAt%60)

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Schedule worker stopping")
			return
		case now := <-m.scheduleTicker.C:
			day := now.Format("2006-01-02")
			minuteOfDay := now.Hour()*60 + now.Minute()

			if minuteOfDay >= billingAt && m.lastBillingDay != day {
				m.lastBillingDay = day
				m.RunBillingOnce()
			}
			if minuteOfDay >= isolationAt && m.lastIsolationDay != day {
				m.lastIsolationDay = day
				m.RunIsolationScanOnce()
			}
		}
	}
}

// RunBillingOnce runs one invoice generation pass (scheduler and admin use).
func (m *Manager) RunBillingOnce() {
	log.Info("[JobQueue Manager] Daily billing run starting")
	invoices, err := m.billing.GenerateInvoicesForDueServices()
	if err != nil {
		log.Errorf("[JobQueue Manager] Billing run failed: %v", err)
		return
	}
	statistics.RecordInvoicesGenerated(len(invoices))
}

// RunIsolationScanOnce scans for overdue services and enqueues one isolation
// job per service (scheduler and admin use).
func (m *Manager) RunIsolationScanOnce() {
	log.Info("[JobQueue Manager] Overdue isolation scan starting")
	overdue, err := m.queue.deps.Isolation.CheckOverdueServices()
	if err != nil {
		log.Errorf("[JobQueue Manager] Overdue scan failed: %v", err)
		return
	}

	for _, invoice := range overdue {
		payload := IsolationJobPayload{
			ServiceID:     invoice.ServiceID,
			InvoiceID:     invoice.ID,
			InvoiceNumber: invoice.Number,
		}
		if _, err := m.queue.EnqueueJob(JobTypeIsolateService, payload.ToMap()); err != nil {
			log.Errorf("[JobQueue Manager] Isolation enqueue for service %d failed: %v", invoice.ServiceID, err)
		}
	}
	statistics.RecordIsolationsEnqueued(len(overdue))
}

// EnqueueRestore queues a restoration for a service whose invoice was paid.
func (m *Manager) EnqueueRestore(serviceID uint) error {
	payload := RestorationJobPayload{ServiceID: serviceID}
	_, err := m.queue.EnqueueJob(JobTypeRestoreService, payload.ToMap())
	return err
}

// EnqueueNotification queues one outbound subscriber message.
func (m *Manager) EnqueueNotification(channel, recipient, subject, body string) error {
	payload := NotificationJobPayload{
		Channel:   channel,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	}
	_, err := m.queue.EnqueueJob(JobTypeSendNotification, payload.ToMap())
	return err
}

// EnqueueProvisionRetry queues a router push retry for a failed service.
func (m *Manager) EnqueueProvisionRetry(serviceID uint) error {
	payload := ProvisionJobPayload{ServiceID: serviceID}
	_, err := m.queue.EnqueueJob(JobTypeProvisionService, payload.ToMap())
	return err
}

// parseClockTime converts "HH:MM" to minutes since midnight. Invalid input
// falls back to 01:00.
func parseClockTime(value string) int {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 60
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 60
	}
	return hour*60 + minute
}
