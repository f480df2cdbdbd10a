package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tichlabs/tichpay_backend/config"
	"github.com/tichlabs/tichpay_backend/models"
	"github.com/tichlabs/tichpay_backend/services"
	"github.com/tichlabs/tichpay_backend/utils"
	"github.com/tichlabs/tichpay_backend/workflow"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

const defaultPort = "8080"

var tracer = otel.Tracer("tichpay-backend")

// application bundles the long-lived dependencies every handler needs. The
// store handle is opened once at startup and injected, never re-opened.
type application struct {
	logger      *logrus.Logger
	db          *gorm.DB
	provider    services.PaymentProvider
	mailer      services.Mailer
	renderer    services.DocumentRenderer
	defaultUser *models.User
	ready       atomic.Bool
}

type RateLimiter struct {
	limit  int64
	window time.Duration
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()
	app := &application{logger: logger}

	registerBindingRules()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the platform considers the revision
	// healthy. Until the database is ready, app endpoints return 503.
	r := gin.New()

	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), cid)
		// Single-tenant deployment: every request acts as the default user.
		if app.defaultUser != nil {
			ctx = utils.SetUserIdInContext(ctx, app.defaultUser.ID.String())
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if !app.ready.Load() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service starting"})
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS
	// (comma-separated). In development, allow all.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "stripe-signature")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional rate limiting.
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	app.registerRoutes(r)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	// Start listening immediately (startup probes are TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	db := config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	app.db = db

	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	// AutoMigrate runs DDL that can block tables; allow deferring it to a
	// separate job.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Panic(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	user, err := models.EnsureDefaultUser(db, sigCtx)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "seed"}).Panic(err.Error())
	}
	app.defaultUser = user

	if key := config.StripeSecretKey(); key != "" {
		app.provider = services.NewStripeProvider(key, config.StripeWebhookSecret())
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set; payment provider calls disabled")
	}
	if key := config.ResendAPIKey(); key != "" {
		app.mailer = services.NewResendMailer(key, config.FromEmail(), config.SupportEmail())
	} else {
		logger.Warn("RESEND_API_KEY not set; invoice emails disabled")
	}
	app.renderer = services.NewWkhtmltopdfRenderer()

	// Background workers.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	go workflow.NewOutboxDispatcher(db, logger).Run(workerCtx)
	go app.runOverdueSweeper(workerCtx)

	// Keep connection behavior predictable under concurrent counter updates.
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<minInt(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	app.ready.Store(true)
	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work mid-drain.
	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func (app *application) registerRoutes(r *gin.Engine) {
	api := r.Group("/api")

	payments := api.Group("/payments")
	payments.POST("/create-link", app.createPaymentLinkHandler)
	payments.GET("/links", app.listPaymentLinksHandler)
	payments.GET("/links/:id", app.getPaymentLinkHandler)
	payments.POST("/links/:id/archive", app.archivePaymentLinkHandler)
	payments.GET("/links/:id/visit", app.visitPaymentLinkHandler)
	payments.POST("/create-checkout", app.createCheckoutHandler)
	payments.POST("/webhook", app.webhookHandler)
	payments.GET("/:paymentIntentId", app.getPaymentStatusHandler)

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	invoices := api.Group("/invoices")
	invoices.GET("", app.listInvoicesHandler)
	invoices.POST("", app.createInvoiceHandler)
	// Path the original frontend calls.
	invoices.POST("/create", app.createInvoiceHandler)
	invoices.GET("/:id", app.getInvoiceHandler)
	invoices.POST("/:id/send", app.sendInvoiceHandler)
	invoices.PATCH("/:id/status", app.updateInvoiceStatusHandler)

	stats := api.Group("/stats")
	stats.GET("/dashboard", app.dashboardHandler)
	stats.GET("/analytics", app.analyticsHandler)

	api.GET("/transactions", app.listTransactionsHandler)

	pdf := api.Group("/pdf")
	pdf.GET("/invoice/:id", app.invoicePDFHandler)
	pdf.GET("/tax-report/:year/:quarter", app.taxReportPDFHandler)

	reports := api.Group("/reports/tax")
	reports.GET("", app.listTaxReportsHandler)
	reports.POST("/generate", app.generateTaxReportHandler)
	reports.POST("/:year/:quarter/finalize", app.finalizeTaxReportHandler)
	reports.GET("/:year/:quarter/export", app.exportTaxReportHandler)
}

// customErrorLogger logs only requests that accumulated errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func NewRateLimiter(limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
	}
}

// RateLimitMiddleware enforces a fixed-window per-IP request budget in Redis.
// The client is resolved per request because Redis connects after the server
// starts listening; until then (and with no Redis configured) requests pass.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	client := config.GetRedisDB()
	if client == nil {
		c.Next()
		return
	}
	key := "rate:" + c.ClientIP()

	exists, err := client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if exists == 0 {
		if err := client.Set(c.Request.Context(), key, 1, rl.window).Err(); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}
	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// registerBindingRules installs request-level validation tags on gin's
// validator engine. "currency" accepts an empty value (defaulted later) or a
// three-letter alphabetic code.
func registerBindingRules() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		code := strings.TrimSpace(fl.Field().String())
		if code == "" {
			return true
		}
		if len(code) != 3 {
			return false
		}
		for _, r := range code {
			if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
				return false
			}
		}
		return true
	})
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
