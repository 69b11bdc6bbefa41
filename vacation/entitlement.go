/*
entitlement.go - Paid-leave days earned per calendar year

PURPOSE:
  Turns a hire date into the number of vacation days earned for a year, using
  statutory seniority brackets. The cutoff is December 31 of the year unless an
  explicit as-of date is given.

RULES:
  First partial year (hired in the cutoff's year):
    daysWorked   = inclusive days from hire date to cutoff
    monthsWorked = daysWorked / 30.44
    monthsWorked < 6  → round(daysWorked / 20, 2)
    otherwise         → 14

  Later years, by completed years of seniority (days / 365.25, floored):
    ≤ 5  → 14
    ≤ 10 → 21
    ≤ 20 → 28
    > 20 → 35

  Missing hire date, or hire date after the cutoff → 0.

ROUNDING:
  The proportional rule rounds half away from zero to two decimals. Nothing
  else in the engine rounds day counts.

EXAMPLE:
  hire := vacation.NewDate(2021, time.January, 1)
  vacation.Entitlement(hire, 2027) // 21
*/
package vacation

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	avgDaysPerMonth   = decimal.RequireFromString("30.44")
	avgDaysPerYear    = decimal.RequireFromString("365.25")
	daysPerEarnedDay  = decimal.NewFromInt(20)
	firstYearMinMonth = decimal.NewFromInt(6)
	firstYearFlat     = decimal.NewFromInt(14)
)

// bracket maps a seniority ceiling (inclusive) to days.
type bracket struct {
	maxYears int64
	days     int64
}

var seniorityBrackets = []bracket{
	{maxYears: 5, days: 14},
	{maxYears: 10, days: 21},
	{maxYears: 20, days: 28},
}

const maxBracketDays = 35

// Entitlement returns the days earned for asOfYear, with the cutoff on
// December 31 of that year.
func Entitlement(hireDate time.Time, asOfYear int) decimal.Decimal {
	return EntitlementAsOf(hireDate, YearEnd(asOfYear))
}

// EntitlementAsOf is Entitlement with an explicit cutoff date.
func EntitlementAsOf(hireDate, asOf time.Time) decimal.Decimal {
	if hireDate.IsZero() || asOf.IsZero() {
		return decimal.Zero
	}
	hire := DateOf(hireDate)
	cutoff := DateOf(asOf)
	if hire.After(cutoff) {
		return decimal.Zero
	}

	if hire.Year() == cutoff.Year() {
		return firstYearDays(InclusiveDayCount(hire, cutoff))
	}

	years := SeniorityYears(hire, cutoff)
	if years < 0 {
		return decimal.Zero
	}
	for _, b := range seniorityBrackets {
		if years <= b.maxYears {
			return decimal.NewFromInt(b.days)
		}
	}
	return decimal.NewFromInt(maxBracketDays)
}

// SeniorityYears returns completed years between hire and cutoff using the
// 365.25-day average year.
func SeniorityYears(hire, cutoff time.Time) int64 {
	days := decimal.NewFromInt(int64(DaysBetween(hire, cutoff)))
	return days.Div(avgDaysPerYear).Floor().IntPart()
}

func firstYearDays(daysWorked int) decimal.Decimal {
	worked := decimal.NewFromInt(int64(daysWorked))
	months := worked.Div(avgDaysPerMonth)
	if months.LessThan(firstYearMinMonth) {
		return worked.Div(daysPerEarnedDay).Round(2)
	}
	return firstYearFlat
}
