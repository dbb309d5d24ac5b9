package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var labels = map[string]string{
	"date":         "Date",
	"fieldName":    "Field name",
	"value":        "Value",
	"values":       "Values",
	"comment":      "Comment",
	"sectionGroup": "Group",
	"submittedBy":  "submittedBy",
	"replace":      "Replace",
}

func labelFor(field string) string {
	if l, ok := labels[field]; ok {
		return l
	}
	return field
}

// collector accumulates problems from the allow-list copy and the struct checks.
type collector struct {
	problems []Problem
	failed   map[string]bool
}

func newCollector() *collector {
	return &collector{failed: make(map[string]bool)}
}

func (c *collector) add(field string, kind Kind, msg string) {
	c.failed[field] = true
	c.problems = append(c.problems, Problem{Field: field, Kind: kind, Message: msg})
}

func (c *collector) err() error {
	if len(c.problems) == 0 {
		return nil
	}
	return &Error{Problems: c.problems}
}

func lookup(raw map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// str reads a string field. The first key is canonical, the rest are aliases.
func (c *collector) str(raw map[string]json.RawMessage, keys ...string) string {
	return c.text(raw, KindInvalidType, labelFor(keys[0])+" must be a string", keys...)
}

// metric reads a field name. A non-string is reported like an unknown field.
func (c *collector) metric(raw map[string]json.RawMessage, keys ...string) string {
	return c.text(raw, KindInvalidFieldKind, "Invalid field type", keys...)
}

func (c *collector) text(raw map[string]json.RawMessage, kind Kind, problem string, keys ...string) string {
	msg, ok := lookup(raw, keys...)
	if !ok {
		return ""
	}
	var x any
	if err := json.Unmarshal(msg, &x); err != nil {
		c.add(keys[0], kind, problem)
		return ""
	}
	switch t := x.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	c.add(keys[0], kind, problem)
	return ""
}

// num reads a number given either as a JSON number or a numeric string. Null and "" mean absent.
func (c *collector) num(raw map[string]json.RawMessage, key string) *float64 {
	msg, ok := raw[key]
	if !ok {
		return nil
	}
	f, present, err := parseNumber(msg)
	if err != nil {
		c.add(key, KindInvalidRange, fmt.Sprintf("%s %v", labelFor(key), err))
		return nil
	}
	if !present {
		return nil
	}
	return &f
}

func (c *collector) numMap(raw map[string]json.RawMessage, key string) map[string]float64 {
	msg, ok := raw[key]
	if !ok {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(msg, &obj); err != nil {
		c.add(key, KindInvalidType, labelFor(key)+" must be an object of field values")
		return nil
	}
	out := make(map[string]float64, len(obj))
	for k, v := range obj {
		f, present, err := parseNumber(v)
		if err != nil {
			c.add(key+"["+k+"]", KindInvalidRange, fmt.Sprintf("%s %v", k, err))
			continue
		}
		if present {
			out[k] = f
		}
	}
	return out
}

func (c *collector) boolean(raw map[string]json.RawMessage, key string) bool {
	msg, ok := raw[key]
	if !ok {
		return false
	}
	var x any
	_ = json.Unmarshal(msg, &x)
	switch t := x.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
	}
	c.add(key, KindInvalidType, labelFor(key)+" must be true or false")
	return false
}

var (
	errNotNumber = errors.New("must be a number")
	errNotFinite = errors.New("must be a finite number")
)

func parseNumber(msg json.RawMessage) (float64, bool, error) {
	var x any
	if err := json.Unmarshal(msg, &x); err != nil {
		return 0, false, errNotNumber
	}
	var f float64
	switch t := x.(type) {
	case nil:
		return 0, false, nil
	case float64:
		f = t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, errNotNumber
		}
		f = parsed
	default:
		return 0, false, errNotNumber
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, errNotFinite
	}
	return f, true, nil
}

// validate runs the struct tags, skipping fields that already failed the allow-list copy.
func (c *collector) validate(v *validator.Validate, s any) {
	err := v.Struct(s)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		c.add("body", KindInvalidType, "Request body is invalid")
		return
	}
	for _, fe := range fieldErrs {
		name := fe.Field()
		base, key := name, ""
		if i := strings.Index(name, "["); i >= 0 {
			base, key = name[:i], strings.Trim(name[i:], "[]")
		}
		if c.failed[name] || (key == "" && c.failed[base]) {
			continue
		}
		label := labelFor(base)
		switch fe.Tag() {
		case "required", "min":
			c.add(name, KindMissing, label+" is required")
		case "caldate":
			c.add(name, KindInvalidDate, "Invalid date format")
		case "metric":
			if key != "" {
				c.add(name, KindInvalidFieldKind, "Invalid field type: "+key)
			} else {
				c.add(name, KindInvalidFieldKind, "Invalid field type")
			}
		case "gte", "lte":
			if key != "" {
				label = key
			}
			c.add(name, KindInvalidRange, rangeMessage(label))
		case "max":
			c.add(name, KindInvalidLength, fmt.Sprintf("%s must be %s characters or less", label, fe.Param()))
		default:
			c.add(name, KindInvalidType, label+" is invalid")
		}
	}
}
