package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tichlabs/tichpay_backend/config"
	"github.com/tichlabs/tichpay_backend/models"
)

const statsCacheTTL = 30 * time.Second

const (
	dashboardCacheKey = "stats:dashboard"
	analyticsCacheKey = "stats:analytics"
)

// dashboardHandler serves the dashboard projection, short-cached in Redis.
// The cache is invalidated on every mutating request, so the TTL only bounds
// staleness across processes.
func (app *application) dashboardHandler(c *gin.Context) {
	var cached models.DashboardStats
	if hit, err := config.GetRedisObject(dashboardCacheKey, &cached); err == nil && hit {
		c.JSON(http.StatusOK, cached)
		return
	}

	stats, err := models.GetDashboardStats(app.db, c.Request.Context(), app.currentUserId(c))
	if err != nil {
		app.respondError(c, err)
		return
	}
	_ = config.SetRedisObject(dashboardCacheKey, stats, statsCacheTTL)
	c.JSON(http.StatusOK, stats)
}

func (app *application) analyticsHandler(c *gin.Context) {
	var cached models.Analytics
	if hit, err := config.GetRedisObject(analyticsCacheKey, &cached); err == nil && hit {
		c.JSON(http.StatusOK, cached)
		return
	}

	analytics, err := models.GetAnalytics(app.db, c.Request.Context(), app.currentUserId(c), time.Now())
	if err != nil {
		app.respondError(c, err)
		return
	}
	_ = config.SetRedisObject(analyticsCacheKey, analytics, statsCacheTTL)
	c.JSON(http.StatusOK, analytics)
}

func (app *application) invalidateStatsCache(c *gin.Context) {
	_ = config.RemoveRedisKey(dashboardCacheKey, analyticsCacheKey)
}

func (app *application) listTransactionsHandler(c *gin.Context) {
	var from, to time.Time
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		to = t
	}
	rows, err := models.ListTransactions(app.db, c.Request.Context(), app.currentUserId(c), from, to)
	if err != nil {
		app.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": rows})
}
