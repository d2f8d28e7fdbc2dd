// internal/app/notification_status_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"water_billing_service/internal/domain/notification"
	"water_billing_service/internal/domain/notify"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ReconcileSummary counts what a reconciliation run did.
type ReconcileSummary struct {
	Events  int
	Checked int
	Updated int
	Skipped int
}

func (s *ReconcileSummary) add(o ReconcileSummary) {
	s.Events += o.Events
	s.Checked += o.Checked
	s.Updated += o.Updated
	s.Skipped += o.Skipped
}

// NotificationStatusService brings stored notification statuses up to date
// with the provider.
type NotificationStatusService struct {
	notifyClient notify.Client
	notifRepo    notification.Repository
	recorder     Recorder
	logger       *logrus.Entry
	batchSize    int
	batchDelay   time.Duration
	lookback     time.Duration

	pause func(time.Duration)
	now   func() time.Time
}

func NewNotificationStatusService(
	nc notify.Client,
	nr notification.Repository,
	recorder Recorder,
	logger *logrus.Entry,
	batchSize int,
	batchDelay time.Duration,
	lookback time.Duration,
) *NotificationStatusService {
	if batchSize < 1 {
		batchSize = 1
	}
	return &NotificationStatusService{
		notifyClient: nc,
		notifRepo:    nr,
		recorder:     recorder,
		logger:       logger,
		batchSize:    batchSize,
		batchDelay:   batchDelay,
		lookback:     lookback,
		pause:        time.Sleep,
		now:          time.Now,
	}
}

// Reconcile checks every notification still sending in events created
// within the lookback window.
func (s *NotificationStatusService) Reconcile(ctx context.Context) (ReconcileSummary, error) {
	var summary ReconcileSummary

	events, err := s.notifRepo.ListOpenEvents(ctx, s.now().Add(-s.lookback))
	if err != nil {
		err = fmt.Errorf("failed to list open events: %w", err)
		s.recorder.ReconciliationRun(err)
		return summary, err
	}

	for _, e := range events {
		eventSummary, err := s.ReconcileEvent(ctx, e.ID)
		summary.add(eventSummary)
		if err != nil {
			s.recorder.ReconciliationRun(err)
			return summary, err
		}
	}

	s.recorder.ReconciliationRun(nil)
	s.logger.WithFields(logrus.Fields{
		"events":  summary.Events,
		"checked": summary.Checked,
		"updated": summary.Updated,
		"skipped": summary.Skipped,
	}).Info("Notification status reconciliation finished")
	return summary, nil
}

type statusCheck struct {
	n       *notification.Notification
	changed bool
	from    notification.Status
}

// ReconcileEvent checks one event's sending notifications in the same
// batched pattern as dispatch, then refreshes the event's counts.
func (s *NotificationStatusService) ReconcileEvent(ctx context.Context, eventID string) (ReconcileSummary, error) {
	summary := ReconcileSummary{Events: 1}
	log := s.logger.WithField("event_id", eventID)

	pending, err := s.notifRepo.ListSendingNotifications(ctx, eventID)
	if err != nil {
		return summary, fmt.Errorf("failed to list sending notifications for event %s: %w", eventID, err)
	}

	for start := 0; start < len(pending); start += s.batchSize {
		end := start + s.batchSize
		if end > len(pending) {
			end = len(pending)
		}

		checks := s.checkChunk(ctx, pending[start:end], log)
		for _, c := range checks {
			summary.Checked++
			if !c.changed {
				summary.Skipped++
				continue
			}
			if err := s.notifRepo.UpdateNotificationStatus(ctx, c.n); err != nil {
				return summary, fmt.Errorf("failed to update notification %s: %w", c.n.ID, err)
			}
			summary.Updated++
			if c.n.Status != c.from {
				s.recorder.StatusTransition(string(c.n.MessageType), string(c.n.Status))
			}
		}

		if end < len(pending) {
			s.pause(s.batchDelay)
		}
	}

	if err := refreshEventCounts(ctx, s.notifRepo, eventID); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *NotificationStatusService) checkChunk(ctx context.Context, chunk []*notification.Notification, log *logrus.Entry) []statusCheck {
	checks := make([]statusCheck, len(chunk))

	var g errgroup.Group
	for i, n := range chunk {
		i, n := i, n
		g.Go(func() error {
			checks[i] = s.check(ctx, n, log)
			return nil
		})
	}
	// Every send settles into its own slot and returns nil.
	g.Wait()

	return checks
}

// check asks the provider for n's status. Provider errors and statuses the
// map does not know leave n untouched for the next run.
func (s *NotificationStatusService) check(ctx context.Context, n *notification.Notification, log *logrus.Entry) statusCheck {
	c := statusCheck{n: n, from: n.Status}

	resp, err := s.notifyClient.GetStatus(ctx, n.NotifyID.String)
	if err != nil {
		log.WithError(err).WithField("notification_id", n.ID).Warn("Status check failed; will retry next run")
		return c
	}

	status, ok := notification.MapStatus(n.MessageType, resp.Status)
	if !ok {
		log.WithFields(logrus.Fields{
			"notification_id": n.ID,
			"provider_status": resp.Status,
		}).Warn("Unknown provider status; notification left unchanged")
		return c
	}

	if status == n.Status && n.NotifyStatus.Valid && n.NotifyStatus.String == resp.Status {
		return c
	}
	n.Status = status
	n.NotifyStatus.String = resp.Status
	n.NotifyStatus.Valid = true
	c.changed = true
	return c
}
