// Package validation checks request payloads before any store mutation.
//
// Payloads are decoded into a raw JSON object, copied through an allow-list of known keys into
// typed inputs (unknown keys are dropped), then checked with validator struct tags.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"crnumbers/internal/core"
)

// Bounds shared with the struct tags below.
const (
	MaxValue          = 99999
	MaxCommentLen     = 500
	MaxSubmittedByLen = 100
	MaxGroupLen       = 200
)

// Kind classifies a validation problem.
type Kind string

const (
	KindMissing          Kind = "Missing"
	KindInvalidDate      Kind = "InvalidDate"
	KindInvalidFieldKind Kind = "InvalidFieldKind"
	KindInvalidRange     Kind = "InvalidRange"
	KindInvalidLength    Kind = "InvalidLength"
	KindInvalidType      Kind = "InvalidType"
)

type Problem struct {
	Field   string `json:"field"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Error lists every problem found in a payload.
type Error struct {
	Problems []Problem
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Message
	}
	return strings.Join(msgs, "; ")
}

// AsError extracts a validation error from err.
func AsError(err error) (*Error, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

type StagingRequest struct {
	Entry   core.StagingEntry
	Replace bool
}

// Validator is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("caldate", func(fl validator.FieldLevel) bool {
		_, err := core.ParseDate(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("metric", func(fl validator.FieldLevel) bool {
		_, ok := core.ParseMetric(fl.Field().String())
		return ok
	})
	return &Validator{v: v}
}

type stagingInput struct {
	Date         string   `json:"date" validate:"required,caldate"`
	FieldName    string   `json:"fieldName" validate:"required,metric"`
	Value        *float64 `json:"value" validate:"required,gte=0,lte=99999"`
	Comment      string   `json:"comment" validate:"max=500"`
	SectionGroup string   `json:"sectionGroup" validate:"max=200"`
}

// ParseStaging validates a single staging entry payload. "type" and "group" are accepted as
// aliases of "fieldName" and "sectionGroup".
func (v *Validator) ParseStaging(body []byte) (StagingRequest, error) {
	raw, err := decodeObject(body)
	if err != nil {
		return StagingRequest{}, err
	}
	c := newCollector()

	in := stagingInput{
		Date:         c.str(raw, "date"),
		FieldName:    c.metric(raw, "fieldName", "type"),
		Value:        c.num(raw, "value"),
		Comment:      c.str(raw, "comment"),
		SectionGroup: c.str(raw, "sectionGroup", "group"),
	}
	replace := c.boolean(raw, "replace")
	c.validate(v.v, in)
	if err := c.err(); err != nil {
		return StagingRequest{}, err
	}

	date, _ := core.ParseDate(in.Date)
	return StagingRequest{
		Entry: core.StagingEntry{
			Date:         date,
			FieldName:    core.Metric(in.FieldName),
			Value:        *in.Value,
			Comment:      strings.TrimSpace(in.Comment),
			SectionGroup: strings.TrimSpace(in.SectionGroup),
		},
		Replace: replace,
	}, nil
}

type sectionInput struct {
	Date         string             `json:"date" validate:"required,caldate"`
	SectionGroup string             `json:"sectionGroup" validate:"max=200"`
	Comment      string             `json:"comment" validate:"max=500"`
	Values       map[string]float64 `json:"values" validate:"required,min=1,dive,keys,metric,endkeys,gte=0,lte=99999"`
}

// ParseSection validates a whole-section payload: {date, sectionGroup, comment, values, replace}.
func (v *Validator) ParseSection(body []byte) (core.SectionSubmission, error) {
	raw, err := decodeObject(body)
	if err != nil {
		return core.SectionSubmission{}, err
	}
	c := newCollector()

	in := sectionInput{
		Date:         c.str(raw, "date"),
		SectionGroup: c.str(raw, "sectionGroup", "group"),
		Comment:      c.str(raw, "comment"),
		Values:       c.numMap(raw, "values"),
	}
	replace := c.boolean(raw, "replace")
	c.validate(v.v, in)
	if err := c.err(); err != nil {
		return core.SectionSubmission{}, err
	}

	date, _ := core.ParseDate(in.Date)
	values := make(map[core.Metric]float64, len(in.Values))
	for k, val := range in.Values {
		values[core.Metric(k)] = val
	}
	return core.SectionSubmission{
		Date:         date,
		SectionGroup: strings.TrimSpace(in.SectionGroup),
		Comment:      strings.TrimSpace(in.Comment),
		Values:       values,
		Replace:      replace,
	}, nil
}

type finalizeInput struct {
	Date               string   `json:"date" validate:"required,caldate"`
	LargeGroupChurch   *float64 `json:"largeGroupChurch" validate:"omitempty,gte=0,lte=99999"`
	Children           *float64 `json:"children" validate:"omitempty,gte=0,lte=99999"`
	ChildrenWorkers    *float64 `json:"childrenWorkers" validate:"omitempty,gte=0,lte=99999"`
	Donations          *float64 `json:"donations" validate:"omitempty,gte=0,lte=99999"`
	SalesFromBooks     *float64 `json:"salesFromBooks" validate:"omitempty,gte=0,lte=99999"`
	BookSales          *float64 `json:"bookSales" validate:"omitempty,gte=0,lte=99999"`
	FoodDonation       *float64 `json:"foodDonation" validate:"omitempty,gte=0,lte=99999"`
	Teens              *float64 `json:"teens" validate:"omitempty,gte=0,lte=99999"`
	MensLifeIssues     *float64 `json:"mensLifeIssues" validate:"omitempty,gte=0,lte=99999"`
	MensAddiction      *float64 `json:"mensAddiction" validate:"omitempty,gte=0,lte=99999"`
	WomensAddiction    *float64 `json:"womensAddiction" validate:"omitempty,gte=0,lte=99999"`
	WomensLifeIssues   *float64 `json:"womensLifeIssues" validate:"omitempty,gte=0,lte=99999"`
	NewBeginnings      *float64 `json:"newBeginnings" validate:"omitempty,gte=0,lte=99999"`
	Baptisms           *float64 `json:"baptisms" validate:"omitempty,gte=0,lte=99999"`
	BlueChips          *float64 `json:"blueChips" validate:"omitempty,gte=0,lte=99999"`
	MealsServed        *float64 `json:"mealsServed" validate:"omitempty,gte=0,lte=99999"`
	StepStudyGraduates *float64 `json:"stepStudyGraduates" validate:"omitempty,gte=0,lte=99999"`
	Comment            string   `json:"comment" validate:"max=500"`
	SubmittedBy        string   `json:"submittedBy" validate:"max=100"`
}

func (in *finalizeInput) metrics() map[core.Metric]**float64 {
	return map[core.Metric]**float64{
		core.LargeGroupChurch:   &in.LargeGroupChurch,
		core.Children:           &in.Children,
		core.ChildrenWorkers:    &in.ChildrenWorkers,
		core.Donations:          &in.Donations,
		core.SalesFromBooks:     &in.SalesFromBooks,
		core.FoodDonation:       &in.FoodDonation,
		core.Teens:              &in.Teens,
		core.MensLifeIssues:     &in.MensLifeIssues,
		core.MensAddiction:      &in.MensAddiction,
		core.WomensAddiction:    &in.WomensAddiction,
		core.WomensLifeIssues:   &in.WomensLifeIssues,
		core.NewBeginnings:      &in.NewBeginnings,
		core.Baptisms:           &in.Baptisms,
		core.BlueChips:          &in.BlueChips,
		core.MealsServed:        &in.MealsServed,
		core.StepStudyGraduates: &in.StepStudyGraduates,
	}
}

// ParseFinalize validates a finalize payload. Derived totals and the approval flag are not on the
// allow-list and are dropped.
func (v *Validator) ParseFinalize(body []byte) (core.FinalizeRequest, error) {
	raw, err := decodeObject(body)
	if err != nil {
		return core.FinalizeRequest{}, err
	}
	c := newCollector()

	in := finalizeInput{
		Date:        c.str(raw, "date"),
		BookSales:   c.num(raw, core.FieldBookSales),
		Comment:     c.str(raw, "comment"),
		SubmittedBy: c.str(raw, "submittedBy"),
	}
	fields := in.metrics()
	for m, dst := range fields {
		*dst = c.num(raw, string(m))
	}
	c.validate(v.v, in)
	if err := c.err(); err != nil {
		return core.FinalizeRequest{}, err
	}

	date, _ := core.ParseDate(in.Date)
	req := core.FinalizeRequest{
		Date:        date,
		Values:      make(map[core.Metric]float64),
		BookSales:   in.BookSales,
		Comment:     strings.TrimSpace(in.Comment),
		SubmittedBy: strings.TrimSpace(in.SubmittedBy),
	}
	for m, p := range fields {
		if *p != nil {
			req.Values[m] = **p
		}
	}
	return req, nil
}

func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return nil, &Error{Problems: []Problem{{
			Field:   "body",
			Kind:    KindInvalidType,
			Message: "Request body must be a JSON object",
		}}}
	}
	return raw, nil
}

// ValidateDate checks a date path parameter.
func ValidateDate(s string) (core.Date, error) {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, &Error{Problems: []Problem{{
			Field:   "date",
			Kind:    KindInvalidDate,
			Message: "Invalid date format (use YYYY-MM-DD)",
		}}}
	}
	return d, nil
}

func rangeMessage(label string) string {
	return fmt.Sprintf("%s must be between 0 and %d", label, MaxValue)
}
