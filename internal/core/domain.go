package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical text form of a calendar date.
const DateLayout = "2006-01-02"

// DefaultSubmitter is stored when a report arrives without a submitter name.
const DefaultSubmitter = "admin"

type (
	// Date is a calendar date. The time part is always midnight UTC.
	Date struct {
		time.Time
	}

	StagingEntry struct {
		ID           string    `json:"id"`
		Date         Date      `json:"date"`
		FieldName    Metric    `json:"fieldName"`
		Value        float64   `json:"value"`
		Comment      string    `json:"comment"`
		SectionGroup string    `json:"sectionGroup"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	// Report is the finalized record of every tracked metric for one date.
	Report struct {
		ID              string
		Date            Date
		Values          map[Metric]float64
		BookSales       float64
		Comment         string
		SubmittedBy     string
		Approved        bool
		TotalFunds      float64
		TotalAttendance float64
		TotalSmallGroup float64
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}
)

var ErrInvalidDate = errors.New("invalid date")

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or an ISO-8601 timestamp. Timestamps keep their UTC calendar day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value returns the stored value of a tracked metric, zero when absent.
func (r Report) Value(m Metric) float64 {
	if r.Values == nil {
		return 0
	}
	return r.Values[m]
}

// Number returns any numeric report field by its wire name.
func (r Report) Number(field string) (float64, bool) {
	switch field {
	case FieldBookSales:
		return r.BookSales, true
	case FieldTotalFunds:
		return r.TotalFunds, true
	case FieldTotalAttendance:
		return r.TotalAttendance, true
	case FieldTotalSmallGroup:
		return r.TotalSmallGroup, true
	}
	if m, ok := ParseMetric(field); ok {
		return r.Value(m), true
	}
	return 0, false
}

// Totals returns the stored derived fields.
func (r Report) Totals() Totals {
	return Totals{Funds: r.TotalFunds, Attendance: r.TotalAttendance, SmallGroup: r.TotalSmallGroup}
}

// ApplyTotals overwrites the derived fields.
func (r *Report) ApplyTotals(t Totals) {
	r.TotalFunds = t.Funds
	r.TotalAttendance = t.Attendance
	r.TotalSmallGroup = t.SmallGroup
}

// MarshalJSON flattens metric values next to the report metadata.
func (r Report) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(Metrics)+12)
	for _, m := range Metrics {
		out[string(m)] = r.Value(m)
	}
	out["id"] = r.ID
	out["date"] = r.Date.String()
	out[FieldBookSales] = r.BookSales
	out["comment"] = r.Comment
	out["submittedBy"] = r.SubmittedBy
	out["approved"] = r.Approved
	out[FieldTotalFunds] = r.TotalFunds
	out[FieldTotalAttendance] = r.TotalAttendance
	out[FieldTotalSmallGroup] = r.TotalSmallGroup
	out["createdAt"] = r.CreatedAt
	out["updatedAt"] = r.UpdatedAt
	return json.Marshal(out)
}
