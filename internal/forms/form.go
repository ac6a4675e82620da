// Package forms renders a feature type's attribute schema as an editable form
// and turns the edited values into a save payload.
package forms

import (
	"errors"
	"fmt"

	"field_inventory_backend/internal/schema/domain"
	"field_inventory_backend/platform/textnorm"
)

var (
	// ErrUnknownField is returned by Change for a field the schema does not define.
	ErrUnknownField = errors.New("unknown field")
	// ErrInvalidValue is returned by Change for a value of an unsupported type.
	ErrInvalidValue = errors.New("invalid value")
)

// Mode controls whether a form accepts changes.
type Mode int

const (
	ReadOnly Mode = iota
	Editable
)

func (m Mode) String() string {
	if m == Editable {
		return "edit"
	}
	return "read"
}

// Form is the rendered state of one feature's attributes.
type Form struct {
	mode   Mode
	fields []Field
	index  map[string]int
	// seedErrs holds initial values set could not accept, by field name.
	seedErrs map[string]string
}

// Render builds a form for schema, seeded from initial. Keys of initial are
// matched to fields ignoring case and accents, so both stored attribute keys
// ("MATERIAL") and field names ("material") work. Values that cannot be
// interpreted are kept and reported by Validate.
func Render(schema domain.Schema, initial map[string]any, mode Mode) *Form {
	f := &Form{
		mode:   mode,
		fields: make([]Field, 0, len(schema.Fields)),
		index:  make(map[string]int, len(schema.Fields)),
	}
	for _, def := range schema.Fields {
		f.index[textnorm.Key(def.Field)] = len(f.fields)
		f.fields = append(f.fields, newField(def))
	}

	for key, raw := range initial {
		i, ok := f.index[textnorm.Key(key)]
		if !ok {
			continue
		}
		if err := f.fields[i].set(raw); err != nil {
			def := f.fields[i].Definition()
			if f.seedErrs == nil {
				f.seedErrs = make(map[string]string)
			}
			f.seedErrs[def.Field] = fmt.Sprintf("%s: value of type %T is not supported", def.Field, raw)
		}
	}
	return f
}

// Mode returns the current mode.
func (f *Form) Mode() Mode { return f.mode }

// SetMode switches between read-only and editable.
func (f *Form) SetMode(mode Mode) { f.mode = mode }

// Fields returns the fields in schema order.
func (f *Form) Fields() []Field {
	out := make([]Field, len(f.fields))
	copy(out, f.fields)
	return out
}

// Field returns the named field.
func (f *Form) Field(name string) (Field, bool) {
	i, ok := f.index[textnorm.Key(name)]
	if !ok {
		return nil, false
	}
	return f.fields[i], true
}

// Change sets a field from raw input. It does nothing in read-only mode.
func (f *Form) Change(name string, raw any) error {
	if f.mode == ReadOnly {
		return nil
	}
	field, ok := f.Field(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if err := field.set(raw); err != nil {
		return err
	}
	delete(f.seedErrs, field.Definition().Field)
	return nil
}

// Controls describes every field for the client.
func (f *Form) Controls() []Control {
	out := make([]Control, 0, len(f.fields))
	readOnly := f.mode == ReadOnly
	for _, field := range f.fields {
		out = append(out, field.Render(readOnly))
	}
	return out
}

// Validate returns error messages keyed by field name. Required fields are
// checked uniformly, including the technical id.
func (f *Form) Validate() map[string]string {
	errs := make(map[string]string)
	for _, field := range f.fields {
		name := field.Definition().Field
		if msg, ok := f.seedErrs[name]; ok {
			errs[name] = msg
			continue
		}
		if msg := field.Validate(); msg != "" {
			errs[name] = msg
		}
	}
	return errs
}

// Values returns the typed value of every field keyed by field name.
func (f *Form) Values() map[string]any {
	out := make(map[string]any, len(f.fields))
	for _, field := range f.fields {
		out[field.Definition().Field] = field.Value()
	}
	return out
}

// Payload returns the values to persist, keyed by the uppercased field name.
// Empty values become nil; multiselect values stay a (possibly empty) list.
func (f *Form) Payload() map[string]any {
	out := make(map[string]any, len(f.fields))
	for _, field := range f.fields {
		key := field.Definition().AttributeKey()
		switch v := field.(type) {
		case *MultiSelectField:
			out[key] = v.Value()
		case *BooleanField:
			if v.value == nil {
				out[key] = nil
			} else {
				out[key] = *v.value
			}
		default:
			if field.IsEmpty() {
				out[key] = nil
			} else {
				out[key] = field.Value()
			}
		}
	}
	return out
}
