// internal/app/licence_import_service.go
package app

import (
	"context"
	"fmt"

	"water_billing_service/internal/domain/licence"

	"github.com/sirupsen/logrus"
)

// ImportSummary counts the outcome of a batch import.
type ImportSummary struct {
	Imported int
	Failed   int
}

// LicenceImportService applies imported licence end dates. Flags are
// determined against the stored dates before they are overwritten, so
// importing the same dates twice changes nothing the second time. When the
// flags cannot be determined the dates are not written, and the next import
// of the licence tries again.
type LicenceImportService struct {
	flags       *SupplementaryFlagsService
	licenceRepo licence.Repository
	logger      *logrus.Entry
}

func NewLicenceImportService(flags *SupplementaryFlagsService, lr licence.Repository, logger *logrus.Entry) *LicenceImportService {
	return &LicenceImportService{flags: flags, licenceRepo: lr, logger: logger}
}

func (s *LicenceImportService) ImportLicence(ctx context.Context, licenceID string, imported licence.ImportedEndDates) error {
	if err := s.flags.ProcessImportedLicence(ctx, imported, licenceID); err != nil {
		return fmt.Errorf("failed to determine supplementary flags for licence %s: %w", licenceID, err)
	}

	if err := s.licenceRepo.UpdateEndDates(ctx, licenceID, imported); err != nil {
		return fmt.Errorf("failed to update end dates for licence %s: %w", licenceID, err)
	}
	return nil
}

// ImportLicences imports each licence in turn. A failing licence is logged
// and skipped.
func (s *LicenceImportService) ImportLicences(ctx context.Context, licences []licence.ImportedLicence) ImportSummary {
	var summary ImportSummary
	for _, l := range licences {
		if err := s.ImportLicence(ctx, l.LicenceID, l.EndDates); err != nil {
			s.logger.WithError(err).WithField("licence_id", l.LicenceID).Error("Licence import failed")
			summary.Failed++
			continue
		}
		summary.Imported++
	}

	s.logger.WithFields(logrus.Fields{
		"imported": summary.Imported,
		"failed":   summary.Failed,
	}).Info("Licence import batch finished")
	return summary
}
