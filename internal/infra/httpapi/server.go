// internal/infra/httpapi/server.go
package httpapi

import (
	"context"
	"net/http"
	"time"

	"water_billing_service/internal/app"
	"water_billing_service/internal/domain/licence"
	"water_billing_service/internal/domain/notification"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LicenceImporter applies imported licence end dates.
type LicenceImporter interface {
	ImportLicence(ctx context.Context, licenceID string, imported licence.ImportedEndDates) error
}

// NoticeSender runs a returns notice "check and send".
type NoticeSender interface {
	Send(ctx context.Context, req app.NoticeRequest) (*notification.Event, app.BatchTotals, error)
}

// StatusReconciler runs the notification status check.
type StatusReconciler interface {
	Reconcile(ctx context.Context) (app.ReconcileSummary, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server is the service's HTTP surface: import hook, notices, jobs and
// operational endpoints.
type Server struct {
	router     *gin.Engine
	importer   LicenceImporter
	notices    NoticeSender
	reconciler StatusReconciler
	db         Pinger
	logger     *logrus.Entry
}

// NewServer wires the routes. metricsHandler may be nil.
func NewServer(
	importer LicenceImporter,
	notices NoticeSender,
	reconciler StatusReconciler,
	db Pinger,
	metricsHandler http.Handler,
	logger *logrus.Entry,
) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		router:     router,
		importer:   importer,
		notices:    notices,
		reconciler: reconciler,
		db:         db,
		logger:     logger,
	}

	router.GET("/health", s.handleHealth)
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	router.POST("/licences/:id/import", s.handleImportLicence)
	router.POST("/notices", s.handleSendNotice)

	jobs := router.Group("/jobs")
	{
		jobs.POST("/notification-status", s.handleNotificationStatus)
	}

	return s
}

// Handler exposes the router, e.g. for an http.Server or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestLogger(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("HTTP request")
	}
}
