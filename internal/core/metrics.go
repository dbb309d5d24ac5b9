package core

// Metric is one of the tracked numeric fields recorded for an event date.
type Metric string

const (
	LargeGroupChurch   Metric = "largeGroupChurch"
	Children           Metric = "children"
	ChildrenWorkers    Metric = "childrenWorkers"
	Donations          Metric = "donations"
	SalesFromBooks     Metric = "salesFromBooks"
	FoodDonation       Metric = "foodDonation"
	Teens              Metric = "teens"
	MensLifeIssues     Metric = "mensLifeIssues"
	MensAddiction      Metric = "mensAddiction"
	WomensAddiction    Metric = "womensAddiction"
	WomensLifeIssues   Metric = "womensLifeIssues"
	NewBeginnings      Metric = "newBeginnings"
	Baptisms           Metric = "baptisms"
	BlueChips          Metric = "blueChips"
	MealsServed        Metric = "mealsServed"
	StepStudyGraduates Metric = "stepStudyGraduates"
)

// Report-only field names that are not staging metrics.
const (
	FieldBookSales       = "bookSales" // legacy alias of salesFromBooks
	FieldTotalFunds      = "totalFunds"
	FieldTotalAttendance = "totalAttendance"
	FieldTotalSmallGroup = "totalSmallGroup"
)

// Metrics lists every tracked metric in form order.
var Metrics = []Metric{
	LargeGroupChurch, Children, ChildrenWorkers,
	Donations, SalesFromBooks, FoodDonation,
	Teens, MensLifeIssues, MensAddiction, WomensAddiction, WomensLifeIssues, NewBeginnings,
	Baptisms, BlueChips, MealsServed, StepStudyGraduates,
}

// FieldGroup is a form section: the label volunteers pick and the metrics it covers.
type FieldGroup struct {
	Name   string   `json:"name"`
	Fields []Metric `json:"fields"`
}

var FieldGroups = []FieldGroup{
	{Name: "Large Gp/Children/Workers", Fields: []Metric{LargeGroupChurch, Children, ChildrenWorkers}},
	{Name: "Donations, Sales from Books, Food Donation", Fields: []Metric{Donations, SalesFromBooks, FoodDonation}},
	{Name: "Teens", Fields: []Metric{Teens}},
	{Name: "Men's Life Issues", Fields: []Metric{MensLifeIssues}},
	{Name: "Men's Addiction", Fields: []Metric{MensAddiction}},
	{Name: "Women's Addiction", Fields: []Metric{WomensAddiction}},
	{Name: "Women's Life Issues", Fields: []Metric{WomensLifeIssues}},
	{Name: "New Beginnings", Fields: []Metric{NewBeginnings}},
	{Name: "Baptisms", Fields: []Metric{Baptisms}},
	{Name: "Blue Chips", Fields: []Metric{BlueChips}},
	{Name: "Meals Served", Fields: []Metric{MealsServed}},
	{Name: "Step Study Graduates", Fields: []Metric{StepStudyGraduates}},
}

var metricLabels = map[Metric]string{
	LargeGroupChurch:   "Large Group Church",
	Children:           "Children",
	ChildrenWorkers:    "Children Workers",
	Donations:          "Donations",
	SalesFromBooks:     "Sales From Books",
	FoodDonation:       "Food Donation",
	Teens:              "Teens",
	MensLifeIssues:     "Men's Life Issues",
	MensAddiction:      "Men's Addiction",
	WomensAddiction:    "Women's Addiction",
	WomensLifeIssues:   "Women's Life Issues",
	NewBeginnings:      "New Beginnings",
	Baptisms:           "Baptisms",
	BlueChips:          "Blue Chips",
	MealsServed:        "Meals Served",
	StepStudyGraduates: "Step Study Graduates",
}

// ParseMetric returns the metric named s, reporting whether it is tracked.
func ParseMetric(s string) (Metric, bool) {
	m := Metric(s)
	return m, m.Valid()
}

// Valid reports whether m belongs to the tracked set.
func (m Metric) Valid() bool {
	_, ok := metricLabels[m]
	return ok
}

// Label returns the human readable name used in forms and e-mails.
func (m Metric) Label() string {
	if l, ok := metricLabels[m]; ok {
		return l
	}
	return string(m)
}

// IsCurrency reports whether values of the field are dollar amounts.
func IsCurrency(field string) bool {
	switch field {
	case string(Donations), string(SalesFromBooks), string(FoodDonation), FieldBookSales, FieldTotalFunds:
		return true
	}
	return false
}

// GroupOf returns the section label a metric belongs to.
func GroupOf(m Metric) string {
	for _, g := range FieldGroups {
		for _, f := range g.Fields {
			if f == m {
				return g.Name
			}
		}
	}
	return ""
}
