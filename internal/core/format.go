package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormatMilitaryDate renders a date as DDMONYY (e.g. 19FEB25). The date is pinned to noon UTC
// so that the calendar day never shifts with the server timezone.
func FormatMilitaryDate(d Date) string {
	if d.IsZero() {
		return "[Missing Date]"
	}
	noon := time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, time.UTC)
	return strings.ToUpper(noon.Format("02Jan06"))
}

// FormatValue renders a field value for display: dollars with cents for currency fields,
// one decimal place otherwise.
func FormatValue(field string, v float64) string {
	d := decimal.NewFromFloat(v)
	if IsCurrency(field) {
		return "$" + d.StringFixed(2)
	}
	return d.StringFixed(1)
}
