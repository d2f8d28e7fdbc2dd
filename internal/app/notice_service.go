// internal/app/notice_service.go
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"water_billing_service/internal/domain/notification"
	"water_billing_service/internal/infra/alerting"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const noticeDateFormat = "2 January 2006"

// NoticeRequest is a "check and send" submission for a returns notice.
type NoticeRequest struct {
	Journey         string    `json:"journey" validate:"required,oneof=invitations reminders"`
	Issuer          string    `json:"issuer" validate:"required,email"`
	PeriodStartDate time.Time `json:"periodStartDate" validate:"required"`
	PeriodEndDate   time.Time `json:"periodEndDate" validate:"required,gtfield=PeriodStartDate"`
	DueDate         time.Time `json:"dueDate" validate:"required"`
}

// NoticeService sends a returns invitation or reminder to every contact of
// the licences with returns due.
type NoticeService struct {
	recipientRepo notification.RecipientRepository
	notifRepo     notification.Repository
	dispatcher    *NotificationDispatcher
	notifier      alerting.Notifier
	logger        *logrus.Entry
}

func NewNoticeService(
	rr notification.RecipientRepository,
	nr notification.Repository,
	dispatcher *NotificationDispatcher,
	notifier alerting.Notifier,
	logger *logrus.Entry,
) *NoticeService {
	return &NoticeService{
		recipientRepo: rr,
		notifRepo:     nr,
		dispatcher:    dispatcher,
		notifier:      notifier,
		logger:        logger,
	}
}

// Send validates the request, records the event and dispatches it. A
// *ValidationError is returned for a bad request.
func (s *NoticeService) Send(ctx context.Context, req NoticeRequest) (*notification.Event, BatchTotals, error) {
	if err := validateStruct(req); err != nil {
		return nil, BatchTotals{}, err
	}
	journey := notification.Journey(req.Journey)

	recipients, err := s.recipientRepo.ListDueReturnsRecipients(ctx, req.DueDate)
	if err != nil {
		return nil, BatchTotals{}, fmt.Errorf("failed to fetch notice recipients: %w", err)
	}

	event := &notification.Event{
		ID:             uuid.NewString(),
		ReferenceCode:  referenceCode(journey),
		Type:           "notification",
		Subtype:        journey.Subtype(),
		Issuer:         req.Issuer,
		Status:         notification.EventStatusPending,
		RecipientCount: len(recipients),
	}
	if err := s.notifRepo.CreateEvent(ctx, event); err != nil {
		return nil, BatchTotals{}, fmt.Errorf("failed to create notice event: %w", err)
	}

	dc := DispatchContext{
		EventID:       event.ID,
		ReferenceCode: event.ReferenceCode,
		Journey:       journey,
		Personalisation: map[string]string{
			"periodStartDate": req.PeriodStartDate.Format(noticeDateFormat),
			"periodEndDate":   req.PeriodEndDate.Format(noticeDateFormat),
			"returnDueDate":   req.DueDate.Format(noticeDateFormat),
		},
	}
	totals, err := s.dispatcher.SendBatches(ctx, recipients, dc)
	if err != nil {
		s.notifier.Alert("Returns notice dispatch failed", logrus.Fields{
			"event_id":       event.ID,
			"reference_code": event.ReferenceCode,
		}, err)
		return event, totals, err
	}

	s.notifier.Notify("Returns notice dispatched", logrus.Fields{
		"event_id":       event.ID,
		"reference_code": event.ReferenceCode,
		"recipients":     len(recipients),
		"sent":           totals.Sent,
		"error":          totals.Error,
	})
	return event, totals, nil
}

// referenceCode is the journey prefix followed by six characters.
func referenceCode(journey notification.Journey) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return journey.ReferencePrefix() + suffix
}
