package core

import "github.com/shopspring/decimal"

// Totals holds the derived report fields.
type Totals struct {
	Funds      float64
	Attendance float64
	SmallGroup float64
}

var (
	fundsComponents      = []Metric{Donations, SalesFromBooks, FoodDonation}
	attendanceComponents = []Metric{LargeGroupChurch, Children, ChildrenWorkers}
	smallGroupComponents = []Metric{Teens, MensLifeIssues, MensAddiction, WomensAddiction, WomensLifeIssues, NewBeginnings}
)

// ComputeTotals sums the derived fields from scratch. Missing metrics count as zero.
// values must already carry the resolved salesFromBooks (see ResolveBookSales).
func ComputeTotals(values map[Metric]float64) Totals {
	return Totals{
		Funds:      sum(values, fundsComponents),
		Attendance: sum(values, attendanceComponents),
		SmallGroup: sum(values, smallGroupComponents),
	}
}

func sum(values map[Metric]float64, fields []Metric) float64 {
	total := decimal.Zero
	for _, f := range fields {
		total = total.Add(decimal.NewFromFloat(values[f]))
	}
	return total.InexactFloat64()
}

// ResolveBookSales reconciles the canonical salesFromBooks with its legacy bookSales alias.
// canonical feeds totalFunds and prefers salesFromBooks; legacy is stored as bookSales and
// prefers the legacy input. Absent inputs fall back to each other, then zero.
func ResolveBookSales(salesFromBooks, bookSales *float64) (canonical, legacy float64) {
	switch {
	case salesFromBooks != nil:
		canonical = *salesFromBooks
	case bookSales != nil:
		canonical = *bookSales
	}
	switch {
	case bookSales != nil:
		legacy = *bookSales
	case salesFromBooks != nil:
		legacy = *salesFromBooks
	}
	return canonical, legacy
}
