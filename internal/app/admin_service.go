package app

import (
	"context"
	"fmt"

	"water_billing_service/internal/domain/licence"
	"water_billing_service/internal/domain/notification"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")

// LicenceFlagsReport is a licence's supplementary billing state.
type LicenceFlagsReport struct {
	Licence *licence.Licence
	Years   []*licence.SupplementaryYear
}

// AdminService backs the operator commands of the ops bot.
type AdminService struct {
	licenceRepo     licence.Repository
	notifRepo       notification.Repository
	statusService   *NotificationStatusService
	adminTelegramID int64
}

func NewAdminService(lr licence.Repository, nr notification.Repository, ss *NotificationStatusService, adminID int64) *AdminService {
	return &AdminService{
		licenceRepo:     lr,
		notifRepo:       nr,
		statusService:   ss,
		adminTelegramID: adminID,
	}
}

func (s *AdminService) authorize(performingAdminID int64) error {
	if performingAdminID != s.adminTelegramID {
		return ErrAdminNotAuthorized
	}
	return nil
}

// Reconcile runs a status reconciliation on demand.
func (s *AdminService) Reconcile(ctx context.Context, performingAdminID int64) (ReconcileSummary, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return ReconcileSummary{}, err
	}
	return s.statusService.Reconcile(ctx)
}

// LicenceFlags reports the stored billing flags and supplementary years of
// a licence.
func (s *AdminService) LicenceFlags(ctx context.Context, performingAdminID int64, licenceID string) (*LicenceFlagsReport, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}

	l, err := s.licenceRepo.GetByID(ctx, licenceID)
	if err != nil {
		return nil, err
	}
	years, err := s.licenceRepo.ListSupplementaryYears(ctx, licenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list supplementary years: %w", err)
	}
	return &LicenceFlagsReport{Licence: l, Years: years}, nil
}

// EventSummary returns a notice event with its current counts.
func (s *AdminService) EventSummary(ctx context.Context, performingAdminID int64, eventID string) (*notification.Event, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	return s.notifRepo.GetEventByID(ctx, eventID)
}

// RefreshEvent reconciles one event and returns it with updated counts.
func (s *AdminService) RefreshEvent(ctx context.Context, performingAdminID int64, eventID string) (*notification.Event, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	if _, err := s.notifRepo.GetEventByID(ctx, eventID); err != nil {
		return nil, err
	}
	if _, err := s.statusService.ReconcileEvent(ctx, eventID); err != nil {
		return nil, fmt.Errorf("failed to refresh event statuses: %w", err)
	}
	return s.notifRepo.GetEventByID(ctx, eventID)
}
