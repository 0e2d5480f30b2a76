package services

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"finboard/internal/models"
)

var oneHundred = decimal.NewFromInt(100)

// ComputePeriod resolves the concrete [periodStart, periodEnd] window a budget
// is accountable for relative to the reference instant now. The recurrence is
// always anchored to now (the day, week, month, quarter, or year containing
// it); both bounds are then clamped into the budget's own validity range so a
// budget never tracks spending before it started or after it expired. A
// budget whose start date falls mid-period therefore reports a narrower
// window in its first period and the full calendar period afterwards.
//
// Bounds are inclusive: periodStart is at 00:00:00 and periodEnd at the last
// nanosecond of its day.
func ComputePeriod(period models.BudgetPeriod, startDate time.Time, endDate *time.Time, now time.Time) (time.Time, time.Time) {
	var periodStart, periodEnd time.Time

	switch period {
	case models.BudgetPeriodDaily:
		periodStart = startOfDay(now)
		periodEnd = endOfDay(now)
	case models.BudgetPeriodWeekly:
		// Weeks start on Sunday.
		weekStart := now.AddDate(0, 0, -int(now.Weekday()))
		periodStart = startOfDay(weekStart)
		periodEnd = endOfDay(weekStart.AddDate(0, 0, 6))
	case models.BudgetPeriodMonthly:
		periodStart = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		periodEnd = endOfDay(periodStart.AddDate(0, 1, -1))
	case models.BudgetPeriodQuarterly:
		// Quarters are anchored at January, April, July, October.
		quarterMonth := time.Month((int(now.Month())-1)/3*3 + 1)
		periodStart = time.Date(now.Year(), quarterMonth, 1, 0, 0, 0, 0, now.Location())
		periodEnd = endOfDay(periodStart.AddDate(0, 3, -1))
	case models.BudgetPeriodYearly:
		periodStart = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		periodEnd = endOfDay(time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, now.Location()))
	default:
		// No recurrence: the budget's own declared range, open-ended one
		// year into the future when no end date is set.
		periodStart = startOfDay(startDate)
		if endDate != nil {
			periodEnd = endOfDay(*endDate)
		} else {
			periodEnd = endOfDay(now.AddDate(1, 0, 0))
		}
	}

	// Clamp into [startDate, endDate]. When now lies wholly outside the
	// budget's validity the window collapses onto the nearer boundary.
	lower := startOfDay(startDate)
	if periodStart.Before(lower) {
		periodStart = lower
	}
	if endDate != nil {
		upper := endOfDay(*endDate)
		if periodStart.After(upper) {
			periodStart = startOfDay(*endDate)
		}
		if periodEnd.After(upper) {
			periodEnd = upper
		}
	}
	if periodEnd.Before(periodStart) {
		periodEnd = endOfDay(periodStart)
	}

	return periodStart, periodEnd
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
}

// categoryScope is the closed set of category ids a budget's spend counts
// against, or the uncategorized-only sentinel for budgets with no category.
type categoryScope struct {
	uncategorized bool
	ids           []string
}

// resolveCategoryScope expands a budget's category assignment to the category
// itself plus its direct children, looked up in the childrenOf index. The
// category tree has a fixed maximum depth of two, so one level is all there is.
func resolveCategoryScope(budget *models.Budget, childrenOf map[string][]string) categoryScope {
	if budget.CategoryID == nil {
		return categoryScope{uncategorized: true}
	}
	ids := append([]string{*budget.CategoryID}, childrenOf[*budget.CategoryID]...)
	return categoryScope{ids: ids}
}

// composeProgress derives the progress view from a budget and its aggregated
// spend. PercentUsed is clamped to [0,100] for display; IsOverBudget compares
// the raw spend against the limit, so a clamped 100% can still be over budget.
func composeProgress(budget models.Budget, spent decimal.Decimal) BudgetWithProgress {
	progress := BudgetWithProgress{
		Budget:    budget,
		Spent:     spent,
		Remaining: budget.Amount.Sub(spent),
	}
	if progress.Remaining.IsNegative() {
		progress.Remaining = decimal.Zero
	}

	if budget.Amount.IsPositive() {
		raw := spent.Div(budget.Amount).Mul(oneHundred).InexactFloat64()
		progress.PercentUsed = math.Min(100, raw)
		progress.IsOverBudget = spent.GreaterThan(budget.Amount)
	}

	threshold := budget.AlertThreshold
	if threshold <= 0 {
		threshold = models.DefaultAlertThreshold
	}
	progress.IsNearThreshold = progress.PercentUsed >= float64(threshold)

	return progress
}
