// internal/domain/billing/financial_year.go
package billing

import "time"

// LastPresrocYear is the final financial year (ending 31 March 2022) billed
// under the pre-SROC scheme.
const LastPresrocYear = 2022

// SrocStartDate is the first day charges were calculated under SROC.
var SrocStartDate = time.Date(2022, time.April, 1, 0, 0, 0, 0, time.UTC)

// FinancialYear is a 1 April to 31 March window.
type FinancialYear struct {
	StartDate time.Time
	EndDate   time.Time
}

// FinancialYearEnd returns the calendar year in which the financial year
// containing d ends.
func FinancialYearEnd(d time.Time) int {
	if d.Month() < time.April {
		return d.Year()
	}
	return d.Year() + 1
}

// CurrentFinancialYear returns the financial year containing referenceDate.
func CurrentFinancialYear(referenceDate time.Time) FinancialYear {
	endYear := FinancialYearEnd(referenceDate)
	return FinancialYear{
		StartDate: time.Date(endYear-1, time.April, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(endYear, time.March, 31, 0, 0, 0, 0, time.UTC),
	}
}

// BillingYearsBetween lists, in ascending order, the financial-year ends
// after LastPresrocYear whose windows overlap [startDate, endDate]. A nil
// endDate means now.
func BillingYearsBetween(startDate time.Time, endDate *time.Time, now time.Time) []int {
	end := now
	if endDate != nil {
		end = *endDate
	}

	years := make([]int, 0)
	if DateOnly(startDate).After(DateOnly(end)) {
		return years
	}

	for year := FinancialYearEnd(startDate); year <= FinancialYearEnd(end); year++ {
		if year <= LastPresrocYear {
			continue
		}
		years = append(years, year)
	}
	return years
}

// DateOnly drops the time of day, keeping the calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether two optional dates hold the same calendar day.
// Two nils are equal; nil and a date are not.
func SameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return DateOnly(*a).Equal(DateOnly(*b))
}
