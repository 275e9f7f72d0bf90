package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lumenisp/netbill/app/repository"
	"github.com/lumenisp/netbill/internal/pkg/jobqueue"
	"github.com/lumenisp/netbill/internal/pkg/statistics"
)

// HandleAdminDashboard returns the operational counters for the admin
// dashboard.
func HandleAdminDashboard(c *fiber.Ctx) error {
	data := statistics.GetDashboardData()

	return c.JSON(fiber.Map{
		"services": fiber.Map{
			"active":   data.ActiveServices,
			"isolated": data.IsolatedServices,
		},
		"invoices": fiber.Map{
			"unpaid":          data.UnpaidInvoices,
			"generated_today": data.InvoicesGenerated,
		},
		"payments": fiber.Map{
			"received_today": data.PaymentsReceived,
			"revenue_today":  data.TodayRevenue,
		},
		"isolations_queued_today": data.IsolationsQueued,
	})
}

// HandleAdminQueueStats returns job queue counters and list sizes.
func HandleAdminQueueStats(c *fiber.Ctx) error {
	queue := jobqueue.GetManager().GetQueue()

	stats, err := queue.GetJobStats(c.Context())
	if err != nil {
		return internalError(c, "Failed to load queue stats")
	}

	pending, err := queue.GetQueueSize(c.Context())
	if err != nil {
		return internalError(c, "Failed to load queue size")
	}

	processing, err := queue.GetProcessingSize(c.Context())
	if err != nil {
		return internalError(c, "Failed to load processing size")
	}

	return c.JSON(fiber.Map{
		"stats":      stats,
		"pending":    pending,
		"processing": processing,
	})
}

// HandleAdminWebhookEvents returns the most recent webhook audit rows.
func HandleAdminWebhookEvents(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	events, err := repository.GetGlobalFactory().GetWebhookEventRepository().ListRecent(limit)
	if err != nil {
		return internalError(c, "Failed to load webhook events")
	}

	return c.JSON(fiber.Map{"events": events, "total": len(events)})
}

// HandleAdminQueueKeys lists the job-related Redis keys with their TTLs, for
// operational debugging.
func HandleAdminQueueKeys(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetQueueRepository()

	keys, err := repo.FindKeysByPatterns([]string{
		jobqueue.JobKeyPrefix + "*",
		jobqueue.JobQueueKey,
		jobqueue.JobProcessingKey,
		jobqueue.JobStatsKey,
	})
	if err != nil {
		return internalError(c, "Failed to scan queue keys")
	}

	entries := make([]fiber.Map, 0, len(keys))
	for _, key := range keys {
		entry := fiber.Map{"key": key}
		if ttl, err := repo.GetTTL(key); err == nil {
			entry["ttl_seconds"] = int64(ttl.Seconds())
		}
		entries = append(entries, entry)
	}

	return c.JSON(fiber.Map{"keys": entries, "total": len(entries)})
}

// HandleAdminQueueClear removes stored job records and resets the counters.
// The pending and processing lists are untouched so in-flight work survives.
func HandleAdminQueueClear(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetQueueRepository()

	keys, err := repo.FindKeysByPatterns([]string{jobqueue.JobKeyPrefix + "*"})
	if err != nil {
		return internalError(c, "Failed to scan queue keys")
	}
	keys = append(keys, jobqueue.JobStatsKey)

	deleted, err := repo.DeleteKeys(keys)
	if err != nil {
		return internalError(c, "Failed to delete queue keys")
	}

	return c.JSON(fiber.Map{"success": true, "deleted": deleted})
}

// HandleAdminSettingsGet returns the operational settings.
func HandleAdminSettingsGet(c *fiber.Ctx) error {
	settings, err := repository.GetGlobalFactory().GetSettingRepository().Get()
	if err != nil {
		return internalError(c, "Failed to load settings")
	}
	return c.JSON(settings)
}

// HandleAdminSettingsUpdate validates and persists the operational settings.
func HandleAdminSettingsUpdate(c *fiber.Ctx) error {
	settings, err := repository.GetGlobalFactory().GetSettingRepository().Get()
	if err != nil {
		return internalError(c, "Failed to load settings")
	}

	if err := c.BodyParser(settings); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := repository.GetGlobalFactory().GetSettingRepository().Save(settings); err != nil {
		return badRequest(c, err.Error())
	}

	return c.JSON(settings)
}

// HandleAdminRunBilling triggers an invoice generation pass outside the
// daily schedule.
func HandleAdminRunBilling(c *fiber.Ctx) error {
	go jobqueue.GetManager().RunBillingOnce()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true, "message": "Billing run started"})
}

// HandleAdminRunIsolationScan triggers an overdue scan outside the daily
// schedule.
func HandleAdminRunIsolationScan(c *fiber.Ctx) error {
	go jobqueue.GetManager().RunIsolationScanOnce()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true, "message": "Overdue scan started"})
}
