package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crnumbers/internal/core"
)

func hasKind(ve *Error, kind Kind) bool {
	for _, p := range ve.Problems {
		if p.Kind == kind {
			return true
		}
	}
	return false
}

func TestParseStaging(t *testing.T) {
	v := New()

	req, err := v.ParseStaging([]byte(`{"date":"2025-02-19","fieldName":"largeGroupChurch","value":50,"comment":" ok ","sectionGroup":"Large Gp/Children/Workers"}`))
	require.NoError(t, err)
	assert.Equal(t, core.NewDate(2025, 2, 19), req.Entry.Date)
	assert.Equal(t, core.LargeGroupChurch, req.Entry.FieldName)
	assert.Equal(t, 50.0, req.Entry.Value)
	assert.Equal(t, "ok", req.Entry.Comment)
	assert.False(t, req.Replace)
}

func TestParseStagingAliasesAndNumericStrings(t *testing.T) {
	v := New()

	req, err := v.ParseStaging([]byte(`{"date":"2025-02-19T00:00:00.000Z","type":"donations","value":"12.5","group":"Donations","replace":"true"}`))
	require.NoError(t, err)
	assert.Equal(t, core.Donations, req.Entry.FieldName)
	assert.Equal(t, 12.5, req.Entry.Value)
	assert.Equal(t, "Donations", req.Entry.SectionGroup)
	assert.True(t, req.Replace)
}

func TestParseStagingProblems(t *testing.T) {
	v := New()
	longComment := strings.Repeat("x", MaxCommentLen+1)

	tests := []struct {
		name string
		body string
		kind Kind
		msg  string
	}{
		{"negative value", `{"date":"2025-02-19","fieldName":"largeGroupChurch","value":-10}`, KindInvalidRange, "Value must be between 0 and 99999"},
		{"too large", `{"date":"2025-02-19","fieldName":"largeGroupChurch","value":100000}`, KindInvalidRange, "Value must be between 0 and 99999"},
		{"non numeric", `{"date":"2025-02-19","fieldName":"largeGroupChurch","value":"lots"}`, KindInvalidRange, "Value must be a number"},
		{"not finite", `{"date":"2025-02-19","fieldName":"largeGroupChurch","value":"Inf"}`, KindInvalidRange, "Value must be a finite number"},
		{"missing value", `{"date":"2025-02-19","fieldName":"largeGroupChurch"}`, KindMissing, "Value is required"},
		{"unknown field", `{"date":"2025-02-19","fieldName":"approved","value":1}`, KindInvalidFieldKind, "Invalid field type"},
		{"legacy alias is not a staging field", `{"date":"2025-02-19","fieldName":"bookSales","value":1}`, KindInvalidFieldKind, "Invalid field type"},
		{"numeric field name", `{"date":"2025-02-19","fieldName":5,"value":1}`, KindInvalidFieldKind, "Invalid field type"},
		{"object field name", `{"date":"2025-02-19","type":{"x":1},"value":1}`, KindInvalidFieldKind, "Invalid field type"},
		{"bad date", `{"date":"19/02/2025","fieldName":"teens","value":1}`, KindInvalidDate, "Invalid date format"},
		{"missing date", `{"fieldName":"teens","value":1}`, KindMissing, "Date is required"},
		{"long comment", `{"date":"2025-02-19","fieldName":"teens","value":1,"comment":"` + longComment + `"}`, KindInvalidLength, "Comment must be 500 characters or less"},
		{"bad replace", `{"date":"2025-02-19","fieldName":"teens","value":1,"replace":"maybe"}`, KindInvalidType, "Replace must be true or false"},
		{"not an object", `[1,2]`, KindInvalidType, "Request body must be a JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ParseStaging([]byte(tt.body))
			ve, ok := AsError(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.True(t, hasKind(ve, tt.kind), "problems: %+v", ve.Problems)
			assert.Contains(t, ve.Error(), tt.msg)
		})
	}
}

func TestParseStagingJoinsMessages(t *testing.T) {
	_, err := New().ParseStaging([]byte(`{"date":"nope","fieldName":"nope","value":-1}`))
	ve, ok := AsError(err)
	require.True(t, ok)
	assert.Len(t, ve.Problems, 3)
	assert.Equal(t, 2, strings.Count(ve.Error(), "; "))
}

func TestParseSection(t *testing.T) {
	v := New()

	sub, err := v.ParseSection([]byte(`{"date":"2025-02-19","sectionGroup":"Large Gp/Children/Workers","values":{"largeGroupChurch":40,"children":"10","childrenWorkers":null},"replace":true}`))
	require.NoError(t, err)
	assert.Equal(t, map[core.Metric]float64{core.LargeGroupChurch: 40, core.Children: 10}, sub.Values)
	assert.True(t, sub.Replace)
	assert.Len(t, sub.Entries(), 2)
}

func TestParseSectionProblems(t *testing.T) {
	v := New()

	_, err := v.ParseSection([]byte(`{"date":"2025-02-19","values":{"nope":1,"teens":-1}}`))
	ve, ok := AsError(err)
	require.True(t, ok)
	assert.True(t, hasKind(ve, KindInvalidFieldKind))
	assert.True(t, hasKind(ve, KindInvalidRange))
	assert.Contains(t, ve.Error(), "Invalid field type: nope")
	assert.Contains(t, ve.Error(), "teens must be between 0 and 99999")

	_, err = v.ParseSection([]byte(`{"date":"2025-02-19","values":{}}`))
	ve, ok = AsError(err)
	require.True(t, ok)
	assert.True(t, hasKind(ve, KindMissing))
}

func TestParseFinalizeDropsUnknownFields(t *testing.T) {
	v := New()

	req, err := v.ParseFinalize([]byte(`{
		"date": "2025-02-19",
		"donations": 100, "salesFromBooks": 50, "foodDonation": 25,
		"largeGroupChurch": 40, "children": 10, "childrenWorkers": 5,
		"approved": true, "totalFunds": 1, "hacker": "x",
		"submittedBy": "Pat"
	}`))
	require.NoError(t, err)
	assert.Equal(t, core.NewDate(2025, 2, 19), req.Date)
	assert.Len(t, req.Values, 6)
	assert.Equal(t, 50.0, req.Values[core.SalesFromBooks])
	assert.Nil(t, req.BookSales)
	assert.Equal(t, "Pat", req.SubmittedBy)
}

func TestParseFinalizeLegacyBookSales(t *testing.T) {
	req, err := New().ParseFinalize([]byte(`{"date":"2025-02-19","bookSales":"30"}`))
	require.NoError(t, err)
	require.NotNil(t, req.BookSales)
	assert.Equal(t, 30.0, *req.BookSales)
	_, present := req.Values[core.SalesFromBooks]
	assert.False(t, present)
}

func TestParseFinalizeProblems(t *testing.T) {
	v := New()

	_, err := v.ParseFinalize([]byte(`{"date":"2025-02-19","donations":-5,"teens":"many","submittedBy":"` + strings.Repeat("a", 101) + `"}`))
	ve, ok := AsError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Error(), "donations must be between 0 and 99999")
	assert.Contains(t, ve.Error(), "teens must be a number")
	assert.Contains(t, ve.Error(), "submittedBy must be 100 characters or less")

	_, err = v.ParseFinalize([]byte(`{"donations":5}`))
	ve, ok = AsError(err)
	require.True(t, ok)
	assert.True(t, hasKind(ve, KindMissing))
}

func TestValidateDate(t *testing.T) {
	d, err := ValidateDate("2025-02-19")
	require.NoError(t, err)
	assert.Equal(t, "2025-02-19", d.String())

	_, err = ValidateDate("yesterday")
	ve, ok := AsError(err)
	require.True(t, ok)
	assert.True(t, hasKind(ve, KindInvalidDate))
}
