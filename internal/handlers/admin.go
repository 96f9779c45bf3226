package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"staywatch/internal/cleanup"
	"staywatch/internal/clock"
	"staywatch/internal/ratelimit"
	"staywatch/internal/scheduler"
	"staywatch/internal/store"
)

// AdminHandler exposes the operational surface: governor and identity-pool
// state, task queue depth, crawl logs, and manual sweep triggers.
type AdminHandler struct {
	store      store.Store
	scheduler  *scheduler.Scheduler
	dispatcher *scheduler.Dispatcher
	governor   *ratelimit.Governor
	identities *ratelimit.IdentityPool
	cleaner    *cleanup.Service
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(st store.Store, sched *scheduler.Scheduler, disp *scheduler.Dispatcher, gov *ratelimit.Governor, pool *ratelimit.IdentityPool) *AdminHandler {
	return &AdminHandler{
		store:      st,
		scheduler:  sched,
		dispatcher: disp,
		governor:   gov,
		identities: pool,
		cleaner:    cleanup.NewService(st, clock.Real()),
	}
}

// GetStats returns system statistics
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats := make(map[string]interface{})

	taskCounts, err := h.store.TaskCounts()
	if err != nil {
		log.Printf("Admin: Failed to count tasks: %v", err)
	} else {
		stats["tasks"] = taskCounts
	}
	if h.dispatcher != nil {
		stats["queue_depth"] = h.dispatcher.QueueDepth()
	}
	if h.governor != nil {
		stats["governor"] = h.governor.Stats()
	}
	if h.identities != nil {
		stats["identities"] = h.identities.Stats()
	}

	if logs, err := h.store.RecentCrawlLogs(10); err == nil {
		stats["recent_crawls"] = logs
	}

	c.JSON(http.StatusOK, stats)
}

// GetCrawlLogs returns recent crawl run records
func (h *AdminHandler) GetCrawlLogs(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "50")
	limit, _ := strconv.Atoi(limitStr)

	logs, err := h.store.RecentCrawlLogs(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"count": len(logs),
	})
}

// TriggerSweep manually starts a sweep. The kind path param selects
// search, calendar or detail.
func (h *AdminHandler) TriggerSweep(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not available"})
		return
	}

	kind := c.Param("kind")
	var run func() error
	switch kind {
	case "search":
		run = h.scheduler.RunSearchSweep
	case "calendar":
		run = h.scheduler.RunCalendarSweep
	case "detail":
		run = h.scheduler.RunDetailRefresh
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown sweep kind: " + kind})
		return
	}

	log.Printf("Admin: Manual %s sweep requested", kind)
	go func() {
		if err := run(); err != nil {
			log.Printf("Admin: Manual %s sweep failed: %v", kind, err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"message": kind + " sweep started",
		"status":  "running",
	})
}

// TriggerAnalysis manually runs the reconcile+aggregate pipeline
func (h *AdminHandler) TriggerAnalysis(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not available"})
		return
	}

	log.Println("Admin: Manual analysis requested")
	go h.scheduler.RunAnalysis()

	c.JSON(http.StatusAccepted, gin.H{
		"message": "analysis started",
		"status":  "running",
	})
}

// RunCleanup prunes settled tasks and old crawl logs
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	var req struct {
		TaskRetentionDays     int  `json:"task_retention_days"`
		CrawlLogRetentionDays int  `json:"crawl_log_retention_days"`
		DryRun                bool `json:"dry_run"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := cleanup.DefaultConfig()
	if req.TaskRetentionDays > 0 {
		cfg.TaskRetentionDays = req.TaskRetentionDays
	}
	if req.CrawlLogRetentionDays > 0 {
		cfg.CrawlLogRetentionDays = req.CrawlLogRetentionDays
	}
	cfg.DryRun = req.DryRun

	result, err := h.cleaner.Run(cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// HealthCheck reports liveness
func (h *AdminHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
