package encompass

import (
	"encoding/json"
	"fmt"
	"maps"
)

var friendlyToCanonical = map[string]string{
	"ID":            "Fields.GUID",
	"Loan Number":   "Fields.364",
	"Loan Amount":   "Fields.1109",
	"Borrower Name": "Loan.BorrowerName",
	"Loan Status":   "Fields.1393",
	"Loan Type":     "Fields.1172",
	"Occupancy":     "Fields.1811",
	"Credit Score":  "Fields.2853",
}

var defaultFields = []string{
	"Fields.GUID",
	"Fields.364",
	"Loan.BorrowerName",
	"Fields.1109",
	"Fields.1393",
	"Fields.LOANLASTMODIFIED",
	"Fields.1172",
	"Fields.1811",
	"Fields.2853",
	"Fields.1041",
}

// FieldMap returns user-facing field names keyed to their canonical names.
func FieldMap() map[string]string {
	return maps.Clone(friendlyToCanonical)
}

// DefaultFields lists the canonical fields requested when a query names none.
func DefaultFields() []string {
	return append([]string(nil), defaultFields...)
}

func CanonicalName(friendly string) (string, bool) {
	c, ok := friendlyToCanonical[friendly]
	return c, ok
}

// RenameFields rewrites every object key in a loan pipeline response that
// is a known canonical name to its user-facing name.
func RenameFields(raw json.RawMessage) (json.RawMessage, error) {
	reverse := make(map[string]string, len(friendlyToCanonical))
	for friendly, canonical := range friendlyToCanonical {
		reverse[canonical] = friendly
	}

	var doc any
	if err := decodeJSON(string(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode loan response: %w", err)
	}
	out, err := json.Marshal(renameKeys(doc, reverse))
	if err != nil {
		return nil, fmt.Errorf("encode loan response: %w", err)
	}
	return out, nil
}

func renameKeys(v any, names map[string]string) any {
	switch t := v.(type) {
	case map[string]any:
		renamed := make(map[string]any, len(t))
		for k, val := range t {
			if friendly, ok := names[k]; ok {
				k = friendly
			}
			renamed[k] = renameKeys(val, names)
		}
		return renamed
	case []any:
		for i := range t {
			t[i] = renameKeys(t[i], names)
		}
		return t
	default:
		return v
	}
}
