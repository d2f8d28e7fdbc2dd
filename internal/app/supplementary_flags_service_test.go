package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"water_billing_service/internal/domain/licence"
	"water_billing_service/internal/infra/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 15 June 2024: the current financial year ends 31 March 2025.
var flagsNow = time.Date(2024, time.June, 15, 10, 30, 0, 0, time.UTC)

func newFlagsService(repo *fakeLicenceRepo) (*SupplementaryFlagsService, *fakeNotifier, *fakeRecorder) {
	notifier := &fakeNotifier{}
	recorder := newFakeRecorder()
	s := NewSupplementaryFlagsService(repo, notifier, recorder, logger.Discard())
	s.now = func() time.Time { return flagsNow }
	return s, notifier, recorder
}

func TestDetermineFlags_NoChangedDatesWritesNothing(t *testing.T) {
	repo := newFakeLicenceRepo()
	repo.details["lic-1"] = &licence.ExistingDetails{
		RevokedDate:              date(2023, time.May, 1),
		HasPresrocChargeVersions: true,
		HasSrocChargeVersions:    true,
	}
	s, _, recorder := newFlagsService(repo)

	revokedLaterSameDay := time.Date(2023, time.May, 1, 17, 0, 0, 0, time.UTC)
	flags, err := s.DetermineFlags(context.Background(), licence.ImportedEndDates{RevokedDate: &revokedLaterSameDay}, "lic-1")

	require.NoError(t, err)
	assert.False(t, flags.Changed)
	assert.Empty(t, repo.persists)
	assert.Equal(t, 1, recorder.flagged["unchanged"])
}

func TestDetermineFlags_ChangeAfterCurrentYearIsIgnored(t *testing.T) {
	repo := newFakeLicenceRepo()
	repo.details["lic-1"] = &licence.ExistingDetails{HasSrocChargeVersions: true}
	s, _, _ := newFlagsService(repo)

	flags, err := s.DetermineFlags(context.Background(), licence.ImportedEndDates{ExpiredDate: date(2025, time.March, 31)}, "lic-1")

	require.NoError(t, err)
	assert.False(t, flags.Changed)
	assert.Empty(t, repo.persists)
}

func TestDetermineFlags_PreSrocChangeFlagsBothSchemes(t *testing.T) {
	repo := newFakeLicenceRepo()
	repo.details["lic-1"] = &licence.ExistingDetails{
		HasPresrocChargeVersions:       true,
		HasSrocChargeVersions:          true,
		HasTwoPartTariffChargeVersions: true,
	}
	s, _, _ := newFlagsService(repo)

	flags, err := s.DetermineFlags(context.Background(), licence.ImportedEndDates{
		RevokedDate: date(2021, time.June, 1),
		LapsedDate:  date(2023, time.January, 10),
	}, "lic-1")

	require.NoError(t, err)
	assert.True(t, flags.Changed)
	assert.Equal(t, *date(2021, time.June, 1), flags.EarliestChange)
	require.Len(t, repo.persists, 1)
	assert.Equal(t, persistCall{
		licenceID: "lic-1",
		preSroc:   licence.PresrocIncluded,
		sroc:      true,
		years:     []int{2023, 2024, 2025},
	}, repo.persists[0])
}

func TestDetermineFlags_SrocOnlyChange(t *testing.T) {
	repo := newFakeLicenceRepo()
	repo.details["lic-1"] = &licence.ExistingDetails{
		ExpiredDate:                    date(2023, time.May, 1),
		HasPresrocChargeVersions:       true,
		HasSrocChargeVersions:          true,
		HasTwoPartTariffChargeVersions: true,
	}
	s, _, _ := newFlagsService(repo)

	// The import clears the expiry; the stored date is the change.
	_, err := s.DetermineFlags(context.Background(), licence.ImportedEndDates{}, "lic-1")

	require.NoError(t, err)
	require.Len(t, repo.persists, 1)
	assert.Equal(t, licence.PresrocNotIncluded, repo.persists[0].preSroc)
	assert.True(t, repo.persists[0].sroc)
	assert.Equal(t, []int{2024, 2025}, repo.persists[0].years)
}

func TestDetermineFlags_NoPresrocChargeVersionsClearsStaleFlag(t *testing.T) {
	repo := newFakeLicenceRepo()
	repo.details["lic-1"] = &licence.ExistingDetails{
		FlaggedForPresroc:        true,
		FlaggedForSroc:           true,
		HasPresrocChargeVersions: false,
		HasSrocChargeVersions:    false,
	}
	s, _, _ := newFlagsService(repo)

	_, err := s.DetermineFlags(context.Background(), licence.ImportedEndDates{RevokedDate: date(2020, time.January, 1)}, "lic-1")

	require.NoError(t, err)
	require.Len(t, repo.persists, 1)
	assert.Equal(t, licence.PresrocNotIncluded, repo.persists[0].preSroc)
	assert.False(t, repo.persists[0].sroc)
	assert.Empty(t, repo.persists[0].years)
}

func TestDetermineFlags_KeepsExistingPresrocFlag(t *testing.T) {
	repo := newFakeLicenceRepo()
	repo.details["lic-1"] = &licence.ExistingDetails{
		FlaggedForPresroc:        true,
		HasPresrocChargeVersions: true,
	}
	s, _, _ := newFlagsService(repo)

	_, err := s.DetermineFlags(context.Background(), licence.ImportedEndDates{LapsedDate: date(2024, time.May, 1)}, "lic-1")

	require.NoError(t, err)
	require.Len(t, repo.persists, 1)
	assert.Equal(t, licence.PresrocIncluded, repo.persists[0].preSroc)
}

func TestDetermineFlags_FetchErrorPropagates(t *testing.T) {
	repo := newFakeLicenceRepo()
	s, _, _ := newFlagsService(repo)

	_, err := s.DetermineFlags(context.Background(), licence.ImportedEndDates{}, "missing")

	assert.ErrorIs(t, err, errNotFound)
	assert.Empty(t, repo.persists)
}

func TestProcessImportedLicence_AlertsAndReturnsErrors(t *testing.T) {
	repo := newFakeLicenceRepo()
	repo.err = errors.New("connection reset")
	s, notifier, recorder := newFlagsService(repo)

	err := s.ProcessImportedLicence(context.Background(), licence.ImportedEndDates{}, "lic-1")

	assert.ErrorIs(t, err, repo.err)
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, "lic-1", notifier.alerts[0].fields["licence_id"])
	assert.ErrorIs(t, notifier.alerts[0].err, repo.err)
	assert.Equal(t, 1, recorder.flagged["failed"])
}

func TestImportLicence_SecondIdenticalImportIsNoOp(t *testing.T) {
	repo := newFakeLicenceRepo()
	repo.details["lic-1"] = &licence.ExistingDetails{
		HasPresrocChargeVersions: true,
		HasSrocChargeVersions:    true,
	}
	flags, _, _ := newFlagsService(repo)
	importer := NewLicenceImportService(flags, repo, logger.Discard())

	imported := licence.ImportedEndDates{RevokedDate: date(2022, time.February, 1)}
	require.NoError(t, importer.ImportLicence(context.Background(), "lic-1", imported))
	require.NoError(t, importer.ImportLicence(context.Background(), "lic-1", imported))

	require.Len(t, repo.persists, 1)
	assert.Equal(t, licence.PresrocIncluded, repo.persists[0].preSroc)
}

func TestImportLicence_FailedFlagsLeaveDatesForRetry(t *testing.T) {
	repo := newFakeLicenceRepo()
	repo.details["lic-1"] = &licence.ExistingDetails{
		HasPresrocChargeVersions:       true,
		HasSrocChargeVersions:          true,
		HasTwoPartTariffChargeVersions: true,
	}
	repo.persistErr = errors.New("deadlock detected")
	flags, notifier, _ := newFlagsService(repo)
	importer := NewLicenceImportService(flags, repo, logger.Discard())

	imported := licence.ImportedEndDates{RevokedDate: date(2022, time.February, 1)}

	err := importer.ImportLicence(context.Background(), "lic-1", imported)
	require.Error(t, err)
	assert.ErrorIs(t, err, repo.persistErr)
	assert.Nil(t, repo.details["lic-1"].RevokedDate)
	assert.Len(t, notifier.alerts, 1)
	assert.Empty(t, repo.persists)

	require.NoError(t, importer.ImportLicence(context.Background(), "lic-1", imported))
	require.Len(t, repo.persists, 1)
	assert.Equal(t, licence.PresrocIncluded, repo.persists[0].preSroc)
	assert.True(t, repo.persists[0].sroc)
	assert.NotEmpty(t, repo.persists[0].years)
	require.NotNil(t, repo.details["lic-1"].RevokedDate)
}

func TestImportLicences_CountsFlagFailures(t *testing.T) {
	repo := newFakeLicenceRepo()
	repo.details["lic-1"] = &licence.ExistingDetails{HasSrocChargeVersions: true}
	repo.persistErr = errors.New("deadlock detected")
	flags, _, _ := newFlagsService(repo)
	importer := NewLicenceImportService(flags, repo, logger.Discard())

	summary := importer.ImportLicences(context.Background(), []licence.ImportedLicence{
		{LicenceID: "lic-1", EndDates: licence.ImportedEndDates{LapsedDate: date(2023, time.July, 1)}},
	})

	assert.Equal(t, ImportSummary{Failed: 1}, summary)
	assert.Nil(t, repo.details["lic-1"].LapsedDate)
}

func TestImportLicences_ContinuesPastFailures(t *testing.T) {
	repo := newFakeLicenceRepo()
	repo.details["lic-1"] = &licence.ExistingDetails{HasSrocChargeVersions: true}
	repo.details["lic-3"] = &licence.ExistingDetails{HasSrocChargeVersions: true}
	flags, notifier, _ := newFlagsService(repo)
	importer := NewLicenceImportService(flags, repo, logger.Discard())

	summary := importer.ImportLicences(context.Background(), []licence.ImportedLicence{
		{LicenceID: "lic-1", EndDates: licence.ImportedEndDates{LapsedDate: date(2023, time.July, 1)}},
		{LicenceID: "lic-2", EndDates: licence.ImportedEndDates{LapsedDate: date(2023, time.July, 1)}},
		{LicenceID: "lic-3", EndDates: licence.ImportedEndDates{LapsedDate: date(2023, time.July, 1)}},
	})

	assert.Equal(t, ImportSummary{Imported: 2, Failed: 1}, summary)
	assert.Len(t, repo.persists, 2)
	assert.Len(t, notifier.alerts, 1)
}
