// internal/domain/licence/licence.go
package licence

import "time"

// PresrocFlag is the pre-SROC supplementary billing inclusion state.
// It is stored as the legacy strings "yes"/"no".
type PresrocFlag bool

const (
	PresrocIncluded    PresrocFlag = true
	PresrocNotIncluded PresrocFlag = false
)

// Licence is the subset of a water abstraction licence this service reads
// and writes.
type Licence struct {
	ID                      string
	LicenceRef              string
	ExpiredDate             *time.Time
	LapsedDate              *time.Time
	RevokedDate             *time.Time
	IncludeInPresrocBilling PresrocFlag
	IncludeInSrocBilling    bool
	UpdatedAt               time.Time
}

// ImportedEndDates are the end dates received from the licence import.
type ImportedEndDates struct {
	ExpiredDate *time.Time
	LapsedDate  *time.Time
	RevokedDate *time.Time
}

// ImportedLicence pairs a licence with the end dates received for it.
type ImportedLicence struct {
	LicenceID string
	EndDates  ImportedEndDates
}

// ExistingDetails is the stored state used to decide supplementary flags.
// The Has* fields are derived from current charge versions on every read.
type ExistingDetails struct {
	ExpiredDate *time.Time
	LapsedDate  *time.Time
	RevokedDate *time.Time

	FlaggedForPresroc bool
	FlaggedForSroc    bool

	HasPresrocChargeVersions       bool
	HasSrocChargeVersions          bool
	HasTwoPartTariffChargeVersions bool
}

// SupplementaryYear marks a licence for reconsideration in a financial year.
type SupplementaryYear struct {
	ID               string
	LicenceID        string
	FinancialYearEnd int
	TwoPartTariff    bool
	BillRunID        *string
	CreatedAt        time.Time
}
