package scheduler

import (
	"context"
	"fmt"
	"time"

	"water_billing_service/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Reconciler is the job the scheduler runs.
type Reconciler interface {
	Reconcile(ctx context.Context) (app.ReconcileSummary, error)
}

type StatusCheckScheduler struct {
	cronEngine     *cron.Cron
	reconciler     Reconciler
	logger         *logrus.Entry
	cronSpecStatus string
	jobTimeout     time.Duration
}

func NewStatusCheckScheduler(
	reconciler Reconciler,
	logger *logrus.Entry,
	cronSpecStatus string, // e.g., "*/15 * * * *" (every 15 minutes)
	jobTimeout time.Duration,
) *StatusCheckScheduler {
	return &StatusCheckScheduler{
		cronEngine:     cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		reconciler:     reconciler,
		logger:         logger,
		cronSpecStatus: cronSpecStatus,
		jobTimeout:     jobTimeout,
	}
}

// Start registers the jobs and starts the cron engine.
func (s *StatusCheckScheduler) Start() error {
	s.logger.Info("Starting notification status scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecStatus, s.runStatusCheck)
	if err != nil {
		return fmt.Errorf("could not add notification status cron job: %w", err)
	}

	s.cronEngine.Start()
	s.logger.WithField("spec", s.cronSpecStatus).Info("Notification status scheduler started.")
	return nil
}

func (s *StatusCheckScheduler) runStatusCheck() {
	s.logger.Info("Cron job triggered for notification status reconciliation.")
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	summary, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Error during notification status reconciliation")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"events":  summary.Events,
		"updated": summary.Updated,
	}).Info("Notification status reconciliation completed")
}

func (s *StatusCheckScheduler) Stop() {
	s.logger.Info("Stopping notification status scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Notification status scheduler gracefully stopped.")
}
