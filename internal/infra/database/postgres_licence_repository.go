// internal/infra/database/postgres_licence_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"water_billing_service/internal/domain/billing"
	"water_billing_service/internal/domain/licence"

	"github.com/lib/pq"
)

// ErrLicenceNotFound is returned when no licence matches the given id.
var ErrLicenceNotFound = errors.New("licence not found")

// Legacy string values of licences.include_in_presroc_billing.
const (
	presrocYes = "yes"
	presrocNo  = "no"
)

type PostgresLicenceRepository struct {
	db *sql.DB
}

func NewPostgresLicenceRepository(db *sql.DB) *PostgresLicenceRepository {
	return &PostgresLicenceRepository{db: db}
}

func presrocToColumn(flag licence.PresrocFlag) string {
	if flag {
		return presrocYes
	}
	return presrocNo
}

func (r *PostgresLicenceRepository) GetByID(ctx context.Context, licenceID string) (*licence.Licence, error) {
	query := `SELECT id, licence_ref, expired_date, lapsed_date, revoked_date,
                      include_in_presroc_billing, include_in_sroc_billing, updated_at
               FROM licences WHERE id = $1`
	var (
		l                        licence.Licence
		expired, lapsed, revoked sql.NullTime
		includeInPresrocBilling  string
	)
	err := r.db.QueryRowContext(ctx, query, licenceID).Scan(
		&l.ID, &l.LicenceRef, &expired, &lapsed, &revoked,
		&includeInPresrocBilling, &l.IncludeInSrocBilling, &l.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLicenceNotFound
		}
		return nil, fmt.Errorf("error getting licence by ID: %w", err)
	}
	l.ExpiredDate = nullTimePtr(expired)
	l.LapsedDate = nullTimePtr(lapsed)
	l.RevokedDate = nullTimePtr(revoked)
	l.IncludeInPresrocBilling = licence.PresrocFlag(includeInPresrocBilling == presrocYes)
	return &l, nil
}

// FetchExistingDetails reads the stored end dates and flags, and derives
// charge version presence either side of the SROC start date.
func (r *PostgresLicenceRepository) FetchExistingDetails(ctx context.Context, licenceID string) (*licence.ExistingDetails, error) {
	query := `SELECT
                 l.expired_date,
                 l.lapsed_date,
                 l.revoked_date,
                 (l.include_in_presroc_billing = 'yes') AS flagged_for_presroc,
                 l.include_in_sroc_billing AS flagged_for_sroc,
                 EXISTS (
                   SELECT 1 FROM charge_versions cv
                   WHERE cv.licence_id = l.id AND cv.start_date < $2
                 ) AS pre_sroc_charge_versions,
                 EXISTS (
                   SELECT 1 FROM charge_versions cv
                   WHERE cv.licence_id = l.id AND cv.start_date >= $2
                 ) AS sroc_charge_versions,
                 EXISTS (
                   SELECT 1 FROM charge_versions cv
                   INNER JOIN charge_references cr ON cr.charge_version_id = cv.id
                   WHERE cv.licence_id = l.id
                     AND cv.start_date >= $2
                     AND cr.adjustments->>'s127' = 'true'
                 ) AS two_part_tariff_charge_versions
               FROM licences l
               WHERE l.id = $1`

	var (
		d                        licence.ExistingDetails
		expired, lapsed, revoked sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, licenceID, billing.SrocStartDate).Scan(
		&expired, &lapsed, &revoked,
		&d.FlaggedForPresroc, &d.FlaggedForSroc,
		&d.HasPresrocChargeVersions, &d.HasSrocChargeVersions, &d.HasTwoPartTariffChargeVersions,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLicenceNotFound
		}
		return nil, fmt.Errorf("error fetching existing licence details: %w", err)
	}
	d.ExpiredDate = nullTimePtr(expired)
	d.LapsedDate = nullTimePtr(lapsed)
	d.RevokedDate = nullTimePtr(revoked)
	return &d, nil
}

// PersistFlags updates the licence and then inserts the two-part tariff
// years. The two writes are not wrapped in a transaction; both are derived
// from current data so re-running the import repairs a partial write.
func (r *PostgresLicenceRepository) PersistFlags(ctx context.Context, licenceID string, preSroc licence.PresrocFlag, sroc bool, twoPartTariffYears []int) error {
	query := `UPDATE licences
               SET include_in_presroc_billing = $1, include_in_sroc_billing = $2, updated_at = NOW()
               WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, presrocToColumn(preSroc), sroc, licenceID)
	if err != nil {
		return fmt.Errorf("error updating licence supplementary flags: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrLicenceNotFound
	}

	if len(twoPartTariffYears) == 0 {
		return nil
	}

	years := make([]int64, len(twoPartTariffYears))
	for i, y := range twoPartTariffYears {
		years[i] = int64(y)
	}

	insert := `INSERT INTO licence_supplementary_years (licence_id, financial_year_end, two_part_tariff)
                SELECT $1::uuid, y.year, TRUE
                FROM unnest($2::int[]) AS y(year)
                WHERE NOT EXISTS (
                  SELECT 1 FROM licence_supplementary_years lsy
                  WHERE lsy.licence_id = $1::uuid
                    AND lsy.financial_year_end = y.year
                    AND lsy.two_part_tariff = TRUE
                    AND lsy.bill_run_id IS NULL
                )`
	if _, err := r.db.ExecContext(ctx, insert, licenceID, pq.Array(years)); err != nil {
		return fmt.Errorf("error inserting licence supplementary years: %w", err)
	}
	return nil
}

func (r *PostgresLicenceRepository) UpdateEndDates(ctx context.Context, licenceID string, dates licence.ImportedEndDates) error {
	query := `UPDATE licences
               SET expired_date = $1, lapsed_date = $2, revoked_date = $3, updated_at = NOW()
               WHERE id = $4`
	res, err := r.db.ExecContext(ctx, query,
		nullTimeArg(dates.ExpiredDate), nullTimeArg(dates.LapsedDate), nullTimeArg(dates.RevokedDate), licenceID)
	if err != nil {
		return fmt.Errorf("error updating licence end dates: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrLicenceNotFound
	}
	return nil
}

func (r *PostgresLicenceRepository) ListSupplementaryYears(ctx context.Context, licenceID string) ([]*licence.SupplementaryYear, error) {
	query := `SELECT id, licence_id, financial_year_end, two_part_tariff, bill_run_id, created_at
               FROM licence_supplementary_years
               WHERE licence_id = $1
               ORDER BY financial_year_end, created_at`
	rows, err := r.db.QueryContext(ctx, query, licenceID)
	if err != nil {
		return nil, fmt.Errorf("error querying licence supplementary years: %w", err)
	}
	defer rows.Close()

	years := make([]*licence.SupplementaryYear, 0)
	for rows.Next() {
		var (
			y         licence.SupplementaryYear
			billRunID sql.NullString
		)
		if err := rows.Scan(&y.ID, &y.LicenceID, &y.FinancialYearEnd, &y.TwoPartTariff, &billRunID, &y.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning licence supplementary year: %w", err)
		}
		y.BillRunID = nullStringPtr(billRunID)
		years = append(years, &y)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating licence supplementary years: %w", err)
	}
	return years, nil
}
