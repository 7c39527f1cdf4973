package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	fieldName    = "name"
	fieldPrice   = "price"
	fieldInStock = "inStock"
)

// Fields is a decoded request body with each value left raw, so type checks can
// tell a missing key from a null or a value of the wrong JSON type.
type Fields map[string]json.RawMessage

// Patch fields are checked in this order; the first violation wins.
var mutableFields = []string{fieldName, fieldPrice, fieldInStock}

type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

// ValidateCreate returns every violation of a create candidate, in check order:
// name, price, then inStock when supplied.
func ValidateCreate(f Fields) []string {
	violations := []string{}

	for _, field := range []string{fieldName, fieldPrice} {
		raw, ok := f[field]
		if !ok || jsonKind(raw) == kindNull {
			violations = append(violations, field+" is required")
			continue
		}
		if v := ValidateUpdateField(field, raw); v != "" {
			violations = append(violations, v)
		}
	}

	if raw, ok := f[fieldInStock]; ok {
		if v := ValidateUpdateField(fieldInStock, raw); v != "" {
			violations = append(violations, v)
		}
	}

	return violations
}

// ValidateUpdateField checks one supplied value. It returns "" when the value is
// acceptable or the field is not a mutable product field.
func ValidateUpdateField(field string, raw json.RawMessage) string {
	switch field {
	case fieldName:
		if jsonKind(raw) != kindString {
			return "name must be a string"
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "name must be a string"
		}
		if strings.TrimSpace(s) == "" {
			return "name must not be empty"
		}
	case fieldPrice:
		if jsonKind(raw) != kindNumber {
			return "price must be a number"
		}
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return "price must be a number"
		}
		if n < 0 {
			return "price must be greater than or equal to 0"
		}
	case fieldInStock:
		if jsonKind(raw) != kindBool {
			return "inStock must be a boolean"
		}
	}
	return ""
}

// ParseCreate validates a create body and builds the candidate: name trimmed,
// inStock defaulted to true. The id is left for the store to assign.
func ParseCreate(f Fields) (Product, []string) {
	if violations := ValidateCreate(f); len(violations) > 0 {
		return Product{}, violations
	}

	p := Product{InStock: true}
	p.Name = decodeName(f[fieldName])
	_ = json.Unmarshal(f[fieldPrice], &p.Price)
	if raw, ok := f[fieldInStock]; ok {
		_ = json.Unmarshal(raw, &p.InStock)
	}
	return p, nil
}

// ParsePatch builds a patch from the supplied mutable fields, stopping at the
// first violation. Keys other than name, price and inStock are ignored.
func ParsePatch(f Fields) (Patch, string) {
	var patch Patch
	for _, field := range mutableFields {
		raw, ok := f[field]
		if !ok {
			continue
		}
		if v := ValidateUpdateField(field, raw); v != "" {
			return Patch{}, v
		}

		switch field {
		case fieldName:
			name := decodeName(raw)
			patch.Name = &name
		case fieldPrice:
			var price float64
			_ = json.Unmarshal(raw, &price)
			patch.Price = &price
		case fieldInStock:
			var inStock bool
			_ = json.Unmarshal(raw, &inStock)
			patch.InStock = &inStock
		}
	}
	return patch, ""
}

// CheckCollection reports stored records that break the collection invariants.
func CheckCollection(products []Product) []string {
	var problems []string
	seen := make(map[int]int, len(products))

	for i, p := range products {
		if p.ID <= 0 {
			problems = append(problems, fmt.Sprintf("record %d: id %d is not positive", i, p.ID))
		}
		if first, dup := seen[p.ID]; dup {
			problems = append(problems, fmt.Sprintf("record %d: id %d duplicates record %d", i, p.ID, first))
		} else {
			seen[p.ID] = i
		}
		if strings.TrimSpace(p.Name) == "" {
			problems = append(problems, fmt.Sprintf("record %d: name is empty", i))
		}
		if p.Price < 0 {
			problems = append(problems, fmt.Sprintf("record %d: price %v is negative", i, p.Price))
		}
	}
	return problems
}

func decodeName(raw json.RawMessage) string {
	var s string
	_ = json.Unmarshal(raw, &s)
	return strings.TrimSpace(s)
}

type kind int

const (
	kindInvalid kind = iota
	kindNull
	kindString
	kindNumber
	kindBool
	kindObject
	kindArray
)

func jsonKind(raw json.RawMessage) kind {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return kindInvalid
	}
	switch c := raw[0]; {
	case c == 'n':
		return kindNull
	case c == '"':
		return kindString
	case c == 't' || c == 'f':
		return kindBool
	case c == '{':
		return kindObject
	case c == '[':
		return kindArray
	case c == '-' || (c >= '0' && c <= '9'):
		return kindNumber
	}
	return kindInvalid
}
