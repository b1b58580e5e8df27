package encompass

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	MatchGreaterThan = "greaterThan"
	MatchLessThan    = "lessThan"
	MatchExact       = "exact"

	OperatorAnd = "And"
	OperatorOr  = "Or"
)

// Filter is either a single condition on one canonical field or a group
// of terms joined by an operator. Groups nest.
type Filter struct {
	CanonicalName string   `json:"canonicalName,omitempty"`
	Value         any      `json:"value,omitempty"`
	MatchType     string   `json:"matchType,omitempty" validate:"omitempty,oneof=greaterThan lessThan exact"`
	Precision     string   `json:"precision,omitempty" validate:"omitempty,oneof=exact day month year"`
	Operator      string   `json:"operator,omitempty" validate:"omitempty,oneof=And Or and or"`
	Terms         []Filter `json:"terms,omitempty" validate:"omitempty,dive"`
}

// LoanQuery is the body of a loan pipeline request. Raw, when set, holds
// the caller's JSON and is what gets sent, so keys Filter does not model
// (sortOrder, the caller's operator casing) reach the API unchanged.
type LoanQuery struct {
	Filter *Filter         `json:"filter" validate:"required"`
	Fields []string        `json:"fields" validate:"required,min=1,dive,required"`
	Raw    json.RawMessage `json:"-"`
}

func (f *Filter) IsGroup() bool {
	return len(f.Terms) > 0
}

var queryValidator = newQueryValidator()

func newQueryValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(filterStructLevel, Filter{})
	return v
}

func filterStructLevel(sl validator.StructLevel) {
	f := sl.Current().Interface().(Filter)
	if f.IsGroup() {
		if f.Operator == "" {
			sl.ReportError(f.Operator, "Operator", "operator", "required_with_terms", "")
		}
		if f.CanonicalName != "" {
			sl.ReportError(f.CanonicalName, "CanonicalName", "canonicalName", "excluded_with_terms", "")
		}
		return
	}
	if f.CanonicalName == "" {
		sl.ReportError(f.CanonicalName, "CanonicalName", "canonicalName", "required", "")
	}
	if f.MatchType == "" {
		sl.ReportError(f.MatchType, "MatchType", "matchType", "required", "")
	}
	switch v := f.Value.(type) {
	case string, json.Number, float64, int, int64:
	case nil:
		sl.ReportError(f.Value, "Value", "value", "required", "")
	default:
		sl.ReportError(v, "Value", "value", "string_or_number", "")
	}
}

// Validate checks q and fills in the default response fields when none are
// given.
func (q *LoanQuery) Validate() error {
	if len(q.Fields) == 0 {
		q.Fields = DefaultFields()
	}
	if err := queryValidator.Struct(q); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidQuery, describe(err))
	}
	return nil
}

// ParseLoanQuery decodes a loan query written as JSON. A bare filter object
// without the "filter" wrapper is accepted too.
func ParseLoanQuery(raw string) (*LoanQuery, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}

	var q LoanQuery
	if err := decodeJSON(raw, &q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	wrapped := q.Filter != nil
	if !wrapped {
		var f Filter
		if err := decodeJSON(raw, &f); err == nil && (f.CanonicalName != "" || f.IsGroup()) {
			q.Filter = &f
		}
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	payload, err := rawPayload(raw, wrapped, q.Fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	q.Raw = payload
	return &q, nil
}

// rawPayload keeps the caller's JSON as written, wrapping a bare filter and
// adding the response fields when none were given.
func rawPayload(raw string, wrapped bool, fields []string) (json.RawMessage, error) {
	obj := make(map[string]json.RawMessage)
	if wrapped {
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, err
		}
	} else {
		obj["filter"] = json.RawMessage(raw)
	}

	var given []string
	if f, ok := obj["fields"]; ok {
		_ = json.Unmarshal(f, &given)
	}
	if len(given) == 0 {
		b, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		obj["fields"] = b
	}
	return json.Marshal(obj)
}

// ParseLoanQueryJSON is ParseLoanQuery for a query that arrives either as a
// JSON object or as a JSON string holding one.
func ParseLoanQueryJSON(raw json.RawMessage) (*LoanQuery, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseLoanQuery(s)
	}
	return ParseLoanQuery(string(raw))
}

func decodeJSON(raw string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	return dec.Decode(v)
}

func describe(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, fmt.Sprintf("%s failed on '%s' tag", e.Namespace(), e.Tag()))
	}
	return strings.Join(parts, "; ")
}
