package licence

import "context"

// Repository defines the licence reads and writes needed for supplementary billing.
type Repository interface {
	GetByID(ctx context.Context, licenceID string) (*Licence, error)
	FetchExistingDetails(ctx context.Context, licenceID string) (*ExistingDetails, error)
	// PersistFlags writes both billing flags and appends any two-part tariff
	// years not already waiting for a bill run.
	PersistFlags(ctx context.Context, licenceID string, preSroc PresrocFlag, sroc bool, twoPartTariffYears []int) error
	UpdateEndDates(ctx context.Context, licenceID string, dates ImportedEndDates) error
	ListSupplementaryYears(ctx context.Context, licenceID string) ([]*SupplementaryYear, error)
}
