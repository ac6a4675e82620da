package forms

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"field_inventory_backend/internal/imports/ingest"
	"field_inventory_backend/internal/schema/domain"
	"field_inventory_backend/platform/textnorm"
)

// Field is one schema-driven form control. The set of implementations is
// closed: TextField, NumberField, BooleanField, DateField, SelectField and
// MultiSelectField.
type Field interface {
	Definition() domain.AttributeDefinition
	// Value is the typed value: string, int64/float64 or "" for numbers,
	// *bool for booleans, []string for multiselect.
	Value() any
	IsEmpty() bool
	// Render describes the control for the client.
	Render(readOnly bool) Control
	// Validate returns an error message, or "" when the value is acceptable.
	Validate() string
	set(raw any) error
}

// Control is the client-side description of a field.
type Control struct {
	Field    string   `json:"field"`
	Key      string   `json:"key"`
	Kind     string   `json:"kind"`
	Widget   string   `json:"widget"`
	Required bool     `json:"required"`
	ReadOnly bool     `json:"readOnly"`
	Value    any      `json:"value"`
	Options  []string `json:"options,omitempty"`
}

func newField(def domain.AttributeDefinition) Field {
	switch def.Kind {
	case domain.KindNumber:
		return &NumberField{def: def}
	case domain.KindDecimal:
		return &NumberField{def: def, decimal: true}
	case domain.KindBoolean:
		return &BooleanField{def: def}
	case domain.KindDate:
		return &DateField{def: def}
	case domain.KindSelect:
		return &SelectField{def: def}
	case domain.KindMultiSelect:
		return &MultiSelectField{def: def, values: []string{}}
	default:
		return &TextField{def: def}
	}
}

func control(def domain.AttributeDefinition, widget string, readOnly bool, value any) Control {
	return Control{
		Field:    def.Field,
		Key:      def.AttributeKey(),
		Kind:     string(def.Kind),
		Widget:   widget,
		Required: def.Required,
		ReadOnly: readOnly,
		Value:    value,
		Options:  def.Options,
	}
}

func requiredMessage(def domain.AttributeDefinition) string {
	return def.Field + " is required"
}

func asString(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case *string:
		if v == nil {
			return "", nil
		}
		return *v, nil
	case fmt.Stringer:
		return v.String(), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrInvalidValue, raw)
	}
}

// =============================================================================
// Text
// =============================================================================

// TextField passes raw text through.
type TextField struct {
	def   domain.AttributeDefinition
	value string
}

func (f *TextField) Definition() domain.AttributeDefinition { return f.def }
func (f *TextField) Value() any                             { return f.value }
func (f *TextField) IsEmpty() bool                          { return strings.TrimSpace(f.value) == "" }

func (f *TextField) Render(readOnly bool) Control {
	return control(f.def, "text", readOnly, f.value)
}

func (f *TextField) Validate() string {
	if f.def.Required && f.IsEmpty() {
		return requiredMessage(f.def)
	}
	return ""
}

func (f *TextField) set(raw any) error {
	s, err := asString(raw)
	if err != nil {
		return err
	}
	f.value = s
	return nil
}

// =============================================================================
// Number and decimal
// =============================================================================

// NumberField holds a whole number, or a float when decimal. An empty input is
// kept as the "" sentinel so that unset and zero stay distinct.
type NumberField struct {
	def     domain.AttributeDefinition
	decimal bool
	raw     string
	number  any
	invalid bool
}

func (f *NumberField) Definition() domain.AttributeDefinition { return f.def }
func (f *NumberField) IsEmpty() bool                          { return strings.TrimSpace(f.raw) == "" }

func (f *NumberField) Value() any {
	if f.IsEmpty() {
		return ""
	}
	if f.invalid {
		return f.raw
	}
	return f.number
}

func (f *NumberField) Render(readOnly bool) Control {
	return control(f.def, "number", readOnly, f.Value())
}

func (f *NumberField) Validate() string {
	if f.IsEmpty() {
		if f.def.Required {
			return requiredMessage(f.def)
		}
		return ""
	}
	if f.invalid {
		if f.decimal {
			return f.def.Field + " must be a number"
		}
		return f.def.Field + " must be a whole number"
	}
	return ""
}

func (f *NumberField) set(raw any) error {
	switch v := raw.(type) {
	case int:
		raw = int64(v)
	case float64:
		if !f.decimal && v == math.Trunc(v) {
			raw = int64(v)
		}
	}

	switch v := raw.(type) {
	case int64:
		f.raw, f.number, f.invalid = strconv.FormatInt(v, 10), v, false
		if f.decimal {
			f.number = float64(v)
		}
		return nil
	case float64:
		f.raw, f.number = strconv.FormatFloat(v, 'f', -1, 64), v
		f.invalid = !f.decimal || math.IsNaN(v) || math.IsInf(v, 0)
		return nil
	}

	s, err := asString(raw)
	if err != nil {
		return err
	}
	f.raw = strings.TrimSpace(s)
	f.number, f.invalid = nil, false
	if f.raw == "" {
		return nil
	}
	if f.decimal {
		n, err := ingest.ParseDecimal(f.raw)
		if err != nil {
			f.invalid = true
			return nil
		}
		f.number = n
		return nil
	}
	n, err := strconv.ParseInt(f.raw, 10, 64)
	if err != nil {
		f.invalid = true
		return nil
	}
	f.number = n
	return nil
}

// =============================================================================
// Boolean
// =============================================================================

// BooleanField is a ternary yes/no/unset value.
type BooleanField struct {
	def     domain.AttributeDefinition
	value   *bool
	invalid string
}

func (f *BooleanField) Definition() domain.AttributeDefinition { return f.def }
func (f *BooleanField) Value() any                             { return f.value }
func (f *BooleanField) IsEmpty() bool                          { return f.value == nil }

func (f *BooleanField) Render(readOnly bool) Control {
	c := control(f.def, "toggle", readOnly, f.value)
	c.Options = []string{"SI", "NO"}
	return c
}

func (f *BooleanField) Validate() string {
	if f.invalid != "" {
		return fmt.Sprintf("%s: %q is not a yes/no value", f.def.Field, f.invalid)
	}
	if f.def.Required && f.value == nil {
		return requiredMessage(f.def)
	}
	return ""
}

func (f *BooleanField) set(raw any) error {
	f.invalid = ""
	switch v := raw.(type) {
	case bool:
		f.value = &v
		return nil
	case *bool:
		if v == nil {
			f.value = nil
			return nil
		}
		b := *v
		f.value = &b
		return nil
	}
	s, err := asString(raw)
	if err != nil {
		return err
	}
	if ingest.IsNull(s) {
		f.value = nil
		return nil
	}
	b, ok := ingest.ParseBoolean(textnorm.Fold(s))
	if !ok {
		f.value = nil
		f.invalid = s
		return nil
	}
	f.value = &b
	return nil
}

// =============================================================================
// Date
// =============================================================================

// DateField holds an ISO-8601 calendar date with no time zone.
type DateField struct {
	def   domain.AttributeDefinition
	value string
}

func (f *DateField) Definition() domain.AttributeDefinition { return f.def }
func (f *DateField) Value() any                             { return f.value }
func (f *DateField) IsEmpty() bool                          { return strings.TrimSpace(f.value) == "" }

func (f *DateField) Render(readOnly bool) Control {
	return control(f.def, "date", readOnly, f.value)
}

func (f *DateField) Validate() string {
	if f.IsEmpty() {
		if f.def.Required {
			return requiredMessage(f.def)
		}
		return ""
	}
	if _, err := time.Parse(time.DateOnly, f.value); err != nil {
		return f.def.Field + " must be a date (YYYY-MM-DD)"
	}
	return ""
}

func (f *DateField) set(raw any) error {
	if t, ok := raw.(time.Time); ok {
		f.value = t.Format(time.DateOnly)
		return nil
	}
	s, err := asString(raw)
	if err != nil {
		return err
	}
	f.value = strings.TrimSpace(s)
	return nil
}

// =============================================================================
// Select
// =============================================================================

// SelectField holds one of the definition's options, or "".
type SelectField struct {
	def     domain.AttributeDefinition
	value   string
	invalid string
}

func (f *SelectField) Definition() domain.AttributeDefinition { return f.def }
func (f *SelectField) Value() any                             { return f.value }
func (f *SelectField) IsEmpty() bool                          { return f.value == "" && f.invalid == "" }

func (f *SelectField) Render(readOnly bool) Control {
	return control(f.def, "select", readOnly, f.value)
}

func (f *SelectField) Validate() string {
	if f.invalid != "" {
		return fmt.Sprintf("%s: %q is not one of the options", f.def.Field, f.invalid)
	}
	if f.def.Required && f.value == "" {
		return requiredMessage(f.def)
	}
	return ""
}

func (f *SelectField) set(raw any) error {
	s, err := asString(raw)
	if err != nil {
		return err
	}
	f.value, f.invalid = "", ""
	if ingest.IsNull(s) {
		return nil
	}
	if opt, ok := f.def.MatchOption(s); ok {
		f.value = opt
		return nil
	}
	f.invalid = strings.TrimSpace(s)
	return nil
}

// =============================================================================
// Multiselect
// =============================================================================

// MultiSelectField holds a set of options. It is never nil.
type MultiSelectField struct {
	def     domain.AttributeDefinition
	values  []string
	invalid []string
}

func (f *MultiSelectField) Definition() domain.AttributeDefinition { return f.def }
func (f *MultiSelectField) IsEmpty() bool                          { return len(f.values) == 0 && len(f.invalid) == 0 }

func (f *MultiSelectField) Value() any {
	out := make([]string, len(f.values))
	copy(out, f.values)
	return out
}

func (f *MultiSelectField) Render(readOnly bool) Control {
	return control(f.def, "checklist", readOnly, f.Value())
}

func (f *MultiSelectField) Validate() string {
	if len(f.invalid) > 0 {
		return fmt.Sprintf("%s: %s not among the options", f.def.Field, strings.Join(f.invalid, ", "))
	}
	if f.def.Required && len(f.values) == 0 {
		return requiredMessage(f.def)
	}
	return ""
}

func (f *MultiSelectField) set(raw any) error {
	var items []string
	switch v := raw.(type) {
	case []string:
		items = v
	case []any:
		for _, item := range v {
			s, err := asString(item)
			if err != nil {
				return err
			}
			items = append(items, s)
		}
	default:
		s, err := asString(raw)
		if err != nil {
			return err
		}
		if !ingest.IsNull(s) {
			items = strings.Split(s, ingest.MultiValueSeparator)
		}
	}

	f.values, f.invalid = []string{}, nil
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		opt, ok := f.def.MatchOption(item)
		if !ok {
			f.invalid = append(f.invalid, item)
			continue
		}
		if _, dup := seen[opt]; dup {
			continue
		}
		seen[opt] = struct{}{}
		f.values = append(f.values, opt)
	}
	return nil
}

// Compile-time checks that every variant implements Field.
var (
	_ Field = (*TextField)(nil)
	_ Field = (*NumberField)(nil)
	_ Field = (*BooleanField)(nil)
	_ Field = (*DateField)(nil)
	_ Field = (*SelectField)(nil)
	_ Field = (*MultiSelectField)(nil)
)
