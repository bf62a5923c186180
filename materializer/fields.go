package materializer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/order-lifecycle-streams/lifecycle"
)

// FieldKind tells how an entry field is stored inside a document.
type FieldKind int

const (
	// Text fields are stored as JSON strings.
	Text FieldKind = iota

	// Numeric fields are stored as JSON numbers so range queries work on them.
	Numeric

	// Identity fields name the entity and must not be empty. They are stored as JSON strings.
	Identity
)

func (k FieldKind) String() string {
	switch k {
	case Text:
		return "text"
	case Numeric:
		return "numeric"
	case Identity:
		return "identity"
	default:
		return "kind_" + strconv.Itoa(int(k))
	}
}

var (
	// ErrInvalidNumericField is returned when a numeric field does not parse as a number.
	ErrInvalidNumericField = errors.New("numeric field is not a number")

	// ErrEmptyIdentityField is returned when an identity field is empty.
	ErrEmptyIdentityField = errors.New("identity field is empty")
)

// FieldValue is one coerced field. Only the member matching Kind is meaningful.
type FieldValue struct {
	Kind   FieldKind
	Text   string
	Number float64
}

func (v FieldValue) value() any {
	if v.Kind == Numeric {
		return v.Number
	}

	return v.Text
}

// Schema maps field names to kinds. Lookups ignore case; unknown fields are Text.
type Schema struct {
	kinds map[string]FieldKind
}

// DefaultSchema stores order_cost as a number and customer_id as identity.
func DefaultSchema() Schema {
	return NewSchema(map[string]FieldKind{
		lifecycle.FieldOrderCost:  Numeric,
		lifecycle.FieldCustomerID: Identity,
	})
}

// NewSchema builds a Schema from explicit kinds.
func NewSchema(kinds map[string]FieldKind) Schema {
	s := Schema{kinds: make(map[string]FieldKind, len(kinds))}
	for name, kind := range kinds {
		s.kinds[strings.ToLower(name)] = kind
	}

	return s
}

// KindOf returns the kind of the named field.
func (s Schema) KindOf(name string) FieldKind {
	if kind, ok := s.kinds[strings.ToLower(name)]; ok {
		return kind
	}

	return Text
}

// Coerce converts one raw field according to its kind.
func (s Schema) Coerce(name, raw string) (FieldValue, error) {
	switch kind := s.KindOf(name); kind {
	case Numeric:
		number, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return FieldValue{}, errors.Join(ErrInvalidNumericField, fmt.Errorf("field %q value %q: %w", name, raw, err))
		}

		return FieldValue{Kind: kind, Number: number}, nil
	case Identity:
		if raw == "" {
			return FieldValue{}, errors.Join(ErrEmptyIdentityField, fmt.Errorf("field %q", name))
		}

		return FieldValue{Kind: kind, Text: raw}, nil
	default:
		return FieldValue{Kind: kind, Text: raw}, nil
	}
}

// project coerces all fields into a JSON object. Keys are rendered in sorted order.
func (s Schema) project(fields map[string]string, extra map[string]string) ([]byte, error) {
	object := make(map[string]any, len(fields)+len(extra))

	for name, raw := range fields {
		value, err := s.Coerce(name, raw)
		if err != nil {
			return nil, err
		}

		object[name] = value.value()
	}

	for name, raw := range extra {
		object[name] = raw
	}

	return json.Marshal(object)
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary
