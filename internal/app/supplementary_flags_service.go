// internal/app/supplementary_flags_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"water_billing_service/internal/domain/billing"
	"water_billing_service/internal/domain/licence"
	"water_billing_service/internal/infra/alerting"

	"github.com/sirupsen/logrus"
)

// Flags is the outcome of one flag determination.
type Flags struct {
	// Changed is false when no end date moved inside a billable window;
	// nothing was written in that case.
	Changed            bool
	EarliestChange     time.Time
	PreSroc            licence.PresrocFlag
	Sroc               bool
	TwoPartTariffYears []int
}

// SupplementaryFlagsService decides whether an imported licence change
// puts the licence back into supplementary billing.
type SupplementaryFlagsService struct {
	licenceRepo licence.Repository
	notifier    alerting.Notifier
	recorder    Recorder
	logger      *logrus.Entry
	now         func() time.Time
}

func NewSupplementaryFlagsService(
	lr licence.Repository,
	notifier alerting.Notifier,
	recorder Recorder,
	logger *logrus.Entry,
) *SupplementaryFlagsService {
	return &SupplementaryFlagsService{
		licenceRepo: lr,
		notifier:    notifier,
		recorder:    recorder,
		logger:      logger,
		now:         time.Now,
	}
}

// DetermineFlags compares the imported end dates with the stored ones and,
// when a change falls before the end of the current financial year,
// recalculates and persists the licence's supplementary billing flags.
func (s *SupplementaryFlagsService) DetermineFlags(ctx context.Context, imported licence.ImportedEndDates, licenceID string) (*Flags, error) {
	log := s.logger.WithField("licence_id", licenceID)

	existing, err := s.licenceRepo.FetchExistingDetails(ctx, licenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch existing licence details: %w", err)
	}

	now := s.now()
	yearEnd := billing.CurrentFinancialYear(now).EndDate

	candidates := changedEndDates(imported, existing, yearEnd)
	if len(candidates) == 0 {
		log.Debug("No end date changes in a billable period; flags left as they are")
		s.recorder.LicenceFlagged("unchanged")
		return &Flags{}, nil
	}

	earliest := candidates[0]
	for _, d := range candidates[1:] {
		if d.Before(earliest) {
			earliest = d
		}
	}

	flags := &Flags{
		Changed:            true,
		EarliestChange:     earliest,
		PreSroc:            presrocFlag(existing, earliest),
		Sroc:               existing.HasSrocChargeVersions,
		TwoPartTariffYears: []int{},
	}

	if existing.HasTwoPartTariffChargeVersions {
		start := earliest
		if start.Before(billing.SrocStartDate) {
			start = billing.SrocStartDate
		}
		flags.TwoPartTariffYears = billing.BillingYearsBetween(start, &yearEnd, now)
	}

	if err := s.licenceRepo.PersistFlags(ctx, licenceID, flags.PreSroc, flags.Sroc, flags.TwoPartTariffYears); err != nil {
		return nil, fmt.Errorf("failed to persist supplementary flags: %w", err)
	}

	log.WithFields(logrus.Fields{
		"earliest_change":       earliest.Format("2006-01-02"),
		"include_presroc":       bool(flags.PreSroc),
		"include_sroc":          flags.Sroc,
		"two_part_tariff_years": flags.TwoPartTariffYears,
	}).Info("Supplementary billing flags updated")
	s.recorder.LicenceFlagged("flagged")

	return flags, nil
}

// ProcessImportedLicence runs DetermineFlags for the import pipeline. A
// failure is alerted and returned; the caller must leave the stored end
// dates alone so that re-running the import recomputes the flags.
func (s *SupplementaryFlagsService) ProcessImportedLicence(ctx context.Context, imported licence.ImportedEndDates, licenceID string) error {
	if _, err := s.DetermineFlags(ctx, imported, licenceID); err != nil {
		s.recorder.LicenceFlagged("failed")
		s.notifier.Alert("Supplementary billing flag determination failed", logrus.Fields{"licence_id": licenceID}, err)
		return err
	}
	return nil
}

// changedEndDates returns, for each end date that differs between the
// import and the stored licence, the imported date (or the stored one when
// the import cleared it). Dates on or after yearEnd are dropped.
func changedEndDates(imported licence.ImportedEndDates, existing *licence.ExistingDetails, yearEnd time.Time) []time.Time {
	pairs := [][2]*time.Time{
		{imported.ExpiredDate, existing.ExpiredDate},
		{imported.LapsedDate, existing.LapsedDate},
		{imported.RevokedDate, existing.RevokedDate},
	}

	candidates := make([]time.Time, 0, len(pairs))
	for _, p := range pairs {
		incoming, stored := p[0], p[1]
		if billing.SameDate(incoming, stored) {
			continue
		}
		changed := incoming
		if changed == nil {
			changed = stored
		}
		d := billing.DateOnly(*changed)
		if d.Before(yearEnd) {
			candidates = append(candidates, d)
		}
	}
	return candidates
}

// presrocFlag drops the flag for licences with nothing left to bill under
// the old scheme, keeps an existing flag, and otherwise sets it when the
// change reaches back before SROC.
func presrocFlag(existing *licence.ExistingDetails, earliest time.Time) licence.PresrocFlag {
	switch {
	case !existing.HasPresrocChargeVersions:
		return licence.PresrocNotIncluded
	case existing.FlaggedForPresroc:
		return licence.PresrocIncluded
	default:
		return licence.PresrocFlag(earliest.Before(billing.SrocStartDate))
	}
}
