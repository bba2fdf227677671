package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	"github.com/cyclepact/core/internal/adapters/events"
	httpHandlers "github.com/cyclepact/core/internal/adapters/http"
	"github.com/cyclepact/core/internal/adapters/repository"
	"github.com/cyclepact/core/internal/application/services"
	"github.com/cyclepact/core/internal/infrastructure/config"
	"github.com/cyclepact/core/internal/infrastructure/database"
	"github.com/cyclepact/core/internal/infrastructure/logger"
	"github.com/cyclepact/core/internal/infrastructure/metrics"
)

// Server represents the HTTP server
type Server struct {
	echo    *echo.Echo
	config  *config.Config
	logger  *logger.Logger
	db      *database.DB
	metrics *metrics.Metrics
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New creates a new server instance
func New(cfg *config.Config, db *database.DB, appLogger *logger.Logger) (*Server, error) {
	e := echo.New()

	// Set custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true

	// Custom error handler
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	m := metrics.New()

	// Initialize repositories
	actionRepo := repository.NewActionRepository(db.DB)
	instanceRepo := repository.NewTaskInstanceRepository(db.DB)
	adminTaskRepo := repository.NewAdminTaskRepository(db.DB)
	submissionRepo := repository.NewSubmissionRepository(db.DB)
	enrollmentRepo := repository.NewEnrollmentRepository(db.DB)
	attendanceRepo := repository.NewAttendanceRepository(db.DB)

	publisher := events.NewLogPublisher(appLogger)

	// Initialize services
	scheduleService := services.NewScheduleService(actionRepo, instanceRepo, enrollmentRepo, attendanceRepo, m, appLogger)
	agendaService := services.NewAgendaService(instanceRepo, submissionRepo, publisher, m, appLogger, cfg.Engine)
	adminTaskService := services.NewAdminTaskService(adminTaskRepo, submissionRepo, enrollmentRepo, appLogger)
	attendanceService := services.NewAttendanceService(attendanceRepo, enrollmentRepo, publisher, m, appLogger)
	enrollmentService := services.NewEnrollmentService(enrollmentRepo, attendanceRepo, appLogger, cfg.Engine)

	// Initialize handlers
	taskHandler := httpHandlers.NewTaskHandler(scheduleService, appLogger)
	agendaHandler := httpHandlers.NewAgendaHandler(agendaService, appLogger)
	adminTaskHandler := httpHandlers.NewAdminTaskHandler(adminTaskService, appLogger)
	attendanceHandler := httpHandlers.NewAttendanceHandler(attendanceService, appLogger)
	enrollmentHandler := httpHandlers.NewEnrollmentHandler(enrollmentService, appLogger)

	server := &Server{
		echo:    e,
		config:  cfg,
		logger:  appLogger,
		db:      db,
		metrics: m,
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup routes
	server.setupRoutes(taskHandler, agendaHandler, adminTaskHandler, attendanceHandler, enrollmentHandler)

	// Setup metrics
	if cfg.Metrics.Enabled {
		server.setupMetrics()
	}

	return server, nil
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Logger middleware
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", values.Method,
				"uri", values.URI,
				"status", values.Status,
				"latency_ms", float64(values.Latency.Nanoseconds()) / 1000000,
				"remote_ip", values.RemoteIP,
				"user_agent", values.UserAgent,
			}

			if values.Error != nil {
				fields = append(fields, "error", values.Error.Error())
				s.logger.Errorw("HTTP request failed", fields...)
			} else {
				s.logger.Infow("HTTP request", fields...)
			}

			return nil
		},
	}))

	// CORS middleware
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: strings.Split(s.config.Security.CORSAllowedOrigins, ","),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.PATCH, echo.POST, echo.DELETE},
	}))

	// Rate limiting middleware
	s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{Rate: rate.Limit(s.config.Security.RateLimitRequests), Burst: s.config.Security.RateLimitRequests, ExpiresIn: s.config.Security.RateLimitWindow},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			id := ctx.RealIP()
			return id, nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return context.JSON(http.StatusForbidden, map[string]string{"message": "rate limit exceeded"})
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return context.JSON(http.StatusTooManyRequests, map[string]string{"message": "rate limit exceeded"})
		},
	}))

	// Security headers
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
	}))

	// Request ID middleware
	s.echo.Use(middleware.RequestID())

	// Timeout middleware
	s.echo.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: 30 * time.Second,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(taskHandler *httpHandlers.TaskHandler, agendaHandler *httpHandlers.AgendaHandler, adminTaskHandler *httpHandlers.AdminTaskHandler, attendanceHandler *httpHandlers.AttendanceHandler, enrollmentHandler *httpHandlers.EnrollmentHandler) {
	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	// Swagger documentation
	s.echo.GET("/docs/*", echoSwagger.WrapHandler)

	// API v1 routes
	v1 := s.echo.Group("/api/v1", s.authMiddleware())

	// Agenda
	v1.GET("/agenda", agendaHandler.GetAgenda)

	// Recurring actions and task instances
	v1.POST("/actions", taskHandler.RegisterAction)
	taskGroup := v1.Group("/tasks")
	taskGroup.GET("", taskHandler.ListTasks)
	taskGroup.POST("/:id/complete", taskHandler.CompleteTask)
	taskGroup.POST("/:id/postpone", taskHandler.PostponeTask)
	taskGroup.POST("/:id/evidence", taskHandler.SubmitEvidence)
	taskGroup.POST("/:id/evidence/review", taskHandler.ReviewEvidence, s.requireRole("mentor", "admin"))

	// Admin tasks and submissions
	v1.POST("/admin-tasks", adminTaskHandler.Create, s.requireRole("mentor", "admin"))
	submissionGroup := v1.Group("/submissions")
	submissionGroup.POST("/:id/submit", adminTaskHandler.SubmitWork)
	submissionGroup.POST("/:id/review", adminTaskHandler.Review, s.requireRole("mentor", "admin"))
	submissionGroup.POST("/:id/reopen", adminTaskHandler.Reopen, s.requireRole("mentor", "admin"))

	// Enrollments
	enrollmentGroup := v1.Group("/enrollments")
	enrollmentGroup.POST("", enrollmentHandler.Start)
	enrollmentGroup.GET("/active", enrollmentHandler.GetActive)
	enrollmentGroup.POST("/withdraw", enrollmentHandler.Withdraw)
	enrollmentGroup.POST("/complete", enrollmentHandler.Complete, s.requireRole("mentor", "admin"))

	// Attendance
	attendanceGroup := v1.Group("/attendance")
	attendanceGroup.GET("", attendanceHandler.GetState)
	attendanceGroup.POST("/miss", attendanceHandler.RecordMiss, s.requireRole("mentor", "admin", "system"))

	// Manual sweep trigger
	v1.POST("/admin/sweep", agendaHandler.TriggerSweep, s.requireRole("admin"))
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics() {
	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	s.metrics.Registry.MustRegister(requestsTotal, requestDuration)

	// Custom metrics middleware
	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start)
			status := c.Response().Status

			requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(duration.Seconds())

			return err
		}
	})

	// Metrics endpoint
	metricsHandler := promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	status := "ok"
	checks := make(map[string]interface{})

	// Database health check
	if err := s.db.HealthCheck(); err != nil {
		status = "error"
		checks["database"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	} else {
		checks["database"] = map[string]interface{}{
			"status": "ok",
			"stats":  s.db.GetConnectionInfo(),
		}
	}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
			"go":  "1.21",
		},
	}

	if status == "ok" {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	if err := s.db.Ping(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "database_not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address)
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.echo.Shutdown(ctx)
}

// customErrorHandler handles HTTP errors
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  interface{}
		)

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			msg = he.Message
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		} else if e, ok := err.(*validator.ValidationErrors); ok {
			code = http.StatusBadRequest
			msg = map[string]string{"message": "validation failed", "details": e.Error()}
		} else {
			msg = map[string]string{"message": http.StatusText(code)}
		}

		if code == http.StatusInternalServerError {
			logger.Errorw("Internal server error", "error", err, "path", c.Request().URL.Path)
		}

		if !c.Response().Committed {
			if c.Request().Method == echo.HEAD {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, msg)
			}
			if err != nil {
				logger.Errorw("Error sending response", "error", err)
			}
		}
	}
}
