package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"

	"crnumbers/internal/core"
)

const noComment = "[No comment provided]"

type line struct {
	Label string
	Value string
}

type emailData struct {
	Date    string
	Lines   []line
	Comment string
}

var reportTemplate = template.Must(template.New("report").Parse(`<h2>CR Report Submitted: {{.Date}}</h2>
<ul>
{{- range .Lines}}
  <li><strong>{{.Label}}:</strong> {{.Value}}</li>
{{- end}}
</ul>
<p><strong>Comment:</strong> {{.Comment}}</p>
`))

// Subject returns the e-mail subject for a finalized report.
func Subject(r core.Report) string {
	return "Final CR Report: " + core.FormatMilitaryDate(r.Date)
}

// RenderReport builds the subject and HTML body for a finalized report. Free text is escaped.
func RenderReport(r core.Report) (subject, body string, err error) {
	count := func(label string, m core.Metric) line {
		return line{Label: label, Value: decimal.NewFromFloat(r.Value(m)).String()}
	}
	money := func(label string, v float64) line {
		return line{Label: label, Value: core.FormatValue(core.FieldTotalFunds, v)}
	}
	total := func(label string, v float64) line {
		return line{Label: label, Value: decimal.NewFromFloat(v).String()}
	}

	data := emailData{
		Date: core.FormatMilitaryDate(r.Date),
		Lines: []line{
			count("Large Group", core.LargeGroupChurch),
			count("Children", core.Children),
			count("Workers", core.ChildrenWorkers),
			total("Total Attendance", r.TotalAttendance),
			count("Blue Chips", core.BlueChips),
			money("Donations", r.Value(core.Donations)),
			money("Sales from Books", r.Value(core.SalesFromBooks)),
			money("Food Donation", r.Value(core.FoodDonation)),
			money("Total Funds", r.TotalFunds),
			count("Meals Served", core.MealsServed),
			count("Teens", core.Teens),
			count("Men's Life Issues", core.MensLifeIssues),
			count("Men's Addiction", core.MensAddiction),
			count("Women's Addiction", core.WomensAddiction),
			count("Women's Life Issues", core.WomensLifeIssues),
			count("New Beginnings", core.NewBeginnings),
			total("Total Small Group", r.TotalSmallGroup),
			count("Baptisms", core.Baptisms),
			count("Step Study Graduates", core.StepStudyGraduates),
		},
		Comment: r.Comment,
	}
	if data.Comment == "" {
		data.Comment = noComment
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render report email: %w", err)
	}
	return Subject(r), buf.String(), nil
}
