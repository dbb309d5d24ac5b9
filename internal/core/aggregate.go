package core

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// StatFields lists the numeric report fields included in rollups, in dashboard order.
var StatFields = []string{
	string(LargeGroupChurch), string(Children), string(ChildrenWorkers), FieldTotalAttendance,
	string(Donations), FieldBookSales, string(SalesFromBooks), string(FoodDonation), FieldTotalFunds,
	string(MealsServed), string(BlueChips),
	string(Teens), string(MensLifeIssues), string(MensAddiction), string(WomensAddiction),
	string(WomensLifeIssues), string(NewBeginnings), FieldTotalSmallGroup,
	string(Baptisms), string(StepStudyGraduates),
}

type (
	// Highlight is the highest single-day value of a field.
	Highlight struct {
		Value float64 `json:"value"`
		Date  Date    `json:"date"`
	}

	Summary struct {
		Count    int                  `json:"count"`
		Totals   map[string]float64   `json:"totals"`
		Averages map[string]float64   `json:"averages"`
		Highest  map[string]Highlight `json:"highest"`
	}

	// Trend compares a yearly average with the all-time average.
	Trend string

	YearSummary struct {
		Year     int                `json:"year"`
		Count    int                `json:"count"`
		Averages map[string]float64 `json:"averages"`
		Trend    map[string]Trend   `json:"trend"`
	}

	// Stats is the dashboard view over every finalized report.
	Stats struct {
		Year            int                  `json:"year"`
		YearToDate      Summary              `json:"yearToDate"`
		Years           []int                `json:"years"`
		YearOverYear    []YearSummary        `json:"yearOverYear"`
		OverallAverages map[string]float64   `json:"overallAverages"`
		Highest         map[string]Highlight `json:"highest"`
	}
)

const (
	TrendAbove Trend = "above"
	TrendBelow Trend = "below"
	TrendEqual Trend = "equal"
)

// ByYear groups reports by calendar year.
func ByYear(r Report) string {
	return strconv.Itoa(r.Date.Year())
}

// Aggregate groups reports with groupBy and summarizes each group. Highest values keep the first
// report seen on ties, so callers control tie-breaking through the input order.
func Aggregate(reports []Report, groupBy func(Report) string) map[string]Summary {
	groups := make(map[string][]Report)
	for _, r := range reports {
		k := groupBy(r)
		groups[k] = append(groups[k], r)
	}
	out := make(map[string]Summary, len(groups))
	for k, rs := range groups {
		out[k] = summarize(rs)
	}
	return out
}

func summarize(reports []Report) Summary {
	s := Summary{
		Count:    len(reports),
		Totals:   make(map[string]float64, len(StatFields)),
		Averages: make(map[string]float64, len(StatFields)),
		Highest:  make(map[string]Highlight, len(StatFields)),
	}
	if len(reports) == 0 {
		return s
	}
	count := decimal.NewFromInt(int64(len(reports)))
	for _, field := range StatFields {
		total := decimal.Zero
		var best *Highlight
		for _, r := range reports {
			v, _ := r.Number(field)
			total = total.Add(decimal.NewFromFloat(v))
			if best == nil || v > best.Value {
				best = &Highlight{Value: v, Date: r.Date}
			}
		}
		s.Totals[field] = total.InexactFloat64()
		s.Averages[field] = total.Div(count).Round(1).InexactFloat64()
		s.Highest[field] = *best
	}
	return s
}

// BuildStats computes the dashboard rollups: year-to-date for year, year-over-year averages with
// trends against the all-time average, and all-time highest values. Reports are ordered newest
// first before summarizing.
func BuildStats(reports []Report, year int) Stats {
	sorted := make([]Report, len(reports))
	copy(sorted, reports)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.After(sorted[j].Date.Time)
	})

	overall := summarize(sorted)
	byYear := Aggregate(sorted, ByYear)

	stats := Stats{
		Year:            year,
		YearToDate:      summarize(nil),
		OverallAverages: overall.Averages,
		Highest:         overall.Highest,
	}
	if ytd, ok := byYear[strconv.Itoa(year)]; ok {
		stats.YearToDate = ytd
	}

	for k := range byYear {
		y, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		stats.Years = append(stats.Years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(stats.Years)))

	for _, y := range stats.Years {
		s := byYear[strconv.Itoa(y)]
		ys := YearSummary{Year: y, Count: s.Count, Averages: s.Averages, Trend: make(map[string]Trend, len(s.Averages))}
		for field, avg := range s.Averages {
			ys.Trend[field] = compare(avg, overall.Averages[field])
		}
		stats.YearOverYear = append(stats.YearOverYear, ys)
	}
	return stats
}

func compare(v, ref float64) Trend {
	switch {
	case v > ref:
		return TrendAbove
	case v < ref:
		return TrendBelow
	default:
		return TrendEqual
	}
}
