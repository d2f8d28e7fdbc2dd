// internal/app/batch_notifications.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"water_billing_service/internal/domain/notification"
	"water_billing_service/internal/domain/notify"
	"water_billing_service/internal/infra/config"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// providerAcceptedStatus is the raw status Notify gives a message it has
// just accepted.
const providerAcceptedStatus = "created"

// DispatchContext is what every message of one notice has in common.
type DispatchContext struct {
	EventID       string
	ReferenceCode string
	Journey       notification.Journey
	// Personalisation shared by all messages, e.g. the returns period.
	Personalisation map[string]string
}

// SendResult is the settled outcome of one send. Exactly one of Sent and
// Failed is set.
type SendResult struct {
	Notification *notification.Notification
	Sent         *notify.SendResponse
	Failed       error
}

// BatchTotals counts accepted and rejected sends across a dispatch.
type BatchTotals struct {
	Sent  int `json:"sent"`
	Error int `json:"error"`
}

// DispatcherOptions configures throttling.
type DispatcherOptions struct {
	BatchSize  int
	BatchDelay time.Duration
	Templates  map[string]string
}

// NotificationDispatcher sends a notice to its recipients in rate-limited
// batches and records every attempt.
type NotificationDispatcher struct {
	notifyClient notify.Client
	notifRepo    notification.Repository
	recorder     Recorder
	logger       *logrus.Entry
	opts         DispatcherOptions

	pause func(time.Duration)
	newID func() string
}

func NewNotificationDispatcher(
	nc notify.Client,
	nr notification.Repository,
	recorder Recorder,
	logger *logrus.Entry,
	opts DispatcherOptions,
) *NotificationDispatcher {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	return &NotificationDispatcher{
		notifyClient: nc,
		notifRepo:    nr,
		recorder:     recorder,
		logger:       logger,
		opts:         opts,
		pause:        time.Sleep,
		newID:        uuid.NewString,
	}
}

// SendBatches sends one message per recipient. Chunks run one after the
// other with a fixed pause between them; sends inside a chunk run
// concurrently and are all awaited. Provider rejections are recorded as
// error notifications. Only storage failures are returned.
func (d *NotificationDispatcher) SendBatches(ctx context.Context, recipients []*notification.Recipient, dc DispatchContext) (BatchTotals, error) {
	var totals BatchTotals
	log := d.logger.WithFields(logrus.Fields{
		"event_id":       dc.EventID,
		"reference_code": dc.ReferenceCode,
		"recipients":     len(recipients),
		"batch_size":     d.opts.BatchSize,
	})
	log.Info("Dispatching notifications")

	for start := 0; start < len(recipients); start += d.opts.BatchSize {
		end := start + d.opts.BatchSize
		if end > len(recipients) {
			end = len(recipients)
		}

		results := d.sendChunk(ctx, recipients[start:end], dc)

		rows := make([]*notification.Notification, 0, len(results))
		for _, r := range results {
			rows = append(rows, r.Notification)
			if r.Failed != nil {
				totals.Error++
			} else {
				totals.Sent++
			}
			d.recorder.NotificationSent(string(r.Notification.MessageType), string(r.Notification.Status))
		}

		if err := d.notifRepo.BulkCreateNotifications(ctx, rows); err != nil {
			return totals, fmt.Errorf("failed to record notifications for event %s: %w", dc.EventID, err)
		}
		d.recorder.BatchDispatched()
		log.WithFields(logrus.Fields{"from": start, "to": end}).Debug("Batch recorded")

		if end < len(recipients) {
			d.pause(d.opts.BatchDelay)
		}
	}

	if err := refreshEventCounts(ctx, d.notifRepo, dc.EventID); err != nil {
		return totals, err
	}

	log.WithFields(logrus.Fields{"sent": totals.Sent, "error": totals.Error}).Info("Dispatch finished")
	return totals, nil
}

func (d *NotificationDispatcher) sendChunk(ctx context.Context, chunk []*notification.Recipient, dc DispatchContext) []SendResult {
	results := make([]SendResult, len(chunk))

	var g errgroup.Group
	for i, r := range chunk {
		i, r := i, r
		g.Go(func() error {
			results[i] = d.send(ctx, r, dc)
			return nil
		})
	}
	// Every send settles into its own slot and returns nil.
	g.Wait()

	return results
}

func (d *NotificationDispatcher) send(ctx context.Context, r *notification.Recipient, dc DispatchContext) SendResult {
	messageType := r.Contact.MessageType()
	n := &notification.Notification{
		ID:              d.newID(),
		EventID:         dc.EventID,
		MessageType:     messageType,
		MessageRef:      messageRef(dc.Journey, r.ContactType, messageType),
		LicenceRefs:     r.LicenceRefs,
		Personalisation: make(map[string]string, len(dc.Personalisation)+7),
	}
	for k, v := range dc.Personalisation {
		n.Personalisation[k] = v
	}

	templateID, ok := d.opts.Templates[config.TemplateKey(string(dc.Journey), string(messageType), string(r.ContactType))]
	if !ok {
		return failed(n, fmt.Errorf("no template configured for %s", n.MessageRef))
	}
	n.TemplateID = templateID

	var (
		resp *notify.SendResponse
		err  error
	)
	switch c := r.Contact.(type) {
	case notification.EmailContact:
		n.Recipient = sql.NullString{String: c.Address, Valid: true}
		resp, err = d.notifyClient.SendEmail(ctx, notify.EmailRequest{
			TemplateID:      templateID,
			EmailAddress:    c.Address,
			Personalisation: n.Personalisation,
			Reference:       dc.ReferenceCode,
		})
	case notification.PostalContact:
		for i, line := range c.LetterAddressLines() {
			n.Personalisation[fmt.Sprintf("address_line_%d", i+1)] = line
		}
		n.Personalisation["name"] = c.Name
		resp, err = d.notifyClient.SendLetter(ctx, notify.LetterRequest{
			TemplateID:      templateID,
			Personalisation: n.Personalisation,
			Reference:       dc.ReferenceCode,
		})
	default:
		err = fmt.Errorf("unsupported contact %T", r.Contact)
	}

	if err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"event_id":     dc.EventID,
			"message_type": messageType,
			"message_ref":  n.MessageRef,
		}).Warn("Notification send failed")
		return failed(n, err)
	}
	if resp.Status != http.StatusCreated {
		return failed(n, fmt.Errorf("unexpected provider status %d", resp.Status))
	}
	if resp.ID == "" {
		return failed(n, errors.New("provider accepted the message without an id"))
	}

	n.Status, _ = notification.MapStatus(messageType, providerAcceptedStatus)
	n.NotifyID = sql.NullString{String: resp.ID, Valid: true}
	n.NotifyStatus = sql.NullString{String: providerAcceptedStatus, Valid: true}
	return SendResult{Notification: n, Sent: resp}
}

func failed(n *notification.Notification, err error) SendResult {
	n.Status = notification.StatusError
	n.NotifyError = sql.NullString{String: providerMessage(err), Valid: true}
	return SendResult{Notification: n, Failed: err}
}

// providerMessage prefers the provider's own wording over the wrapped error.
func providerMessage(err error) string {
	var notifyErr *notify.Error
	if errors.As(err, &notifyErr) && notifyErr.Message != "" {
		return notifyErr.Message
	}
	return err.Error()
}

// messageRef names a message by purpose, e.g.
// returns_invitation_primary_user_email.
func messageRef(journey notification.Journey, contactType notification.ContactType, messageType notification.MessageType) string {
	return fmt.Sprintf("returns_%s_%s_%s",
		strings.TrimSuffix(string(journey), "s"),
		strings.ReplaceAll(string(contactType), " ", "_"),
		messageType,
	)
}

func refreshEventCounts(ctx context.Context, repo notification.Repository, eventID string) error {
	counts, err := repo.CountStatusesByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to count notification statuses for event %s: %w", eventID, err)
	}
	if err := repo.UpdateEventCounts(ctx, eventID, counts); err != nil {
		return fmt.Errorf("failed to update counts for event %s: %w", eventID, err)
	}
	return nil
}
