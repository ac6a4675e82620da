// Package domain holds the attribute schema types shared by the import
// pipeline, the attribute form engine and the placement session.
package domain

import (
	"fmt"
	"slices"
	"strings"

	"field_inventory_backend/platform/textnorm"

	"github.com/google/uuid"
)

// Kind is the data type of an attribute.
type Kind string

const (
	KindText        Kind = "text"
	KindNumber      Kind = "number"
	KindDecimal     Kind = "decimal"
	KindBoolean     Kind = "boolean"
	KindDate        Kind = "date"
	KindSelect      Kind = "select"
	KindMultiSelect Kind = "multiselect"
)

// TechnicalIDField is the folded name of the system-generated identifier column.
const TechnicalIDField = "id_tecnico"

var kindAliases = map[string]Kind{
	"text":         KindText,
	"string":       KindText,
	"texto":        KindText,
	"number":       KindNumber,
	"numeric":      KindNumber,
	"integer":      KindNumber,
	"int":          KindNumber,
	"numero":       KindNumber,
	"decimal":      KindDecimal,
	"float":        KindDecimal,
	"double":       KindDecimal,
	"boolean":      KindBoolean,
	"bool":         KindBoolean,
	"date":         KindDate,
	"fecha":        KindDate,
	"select":       KindSelect,
	"enum":         KindSelect,
	"dropdown":     KindSelect,
	"multiselect":  KindMultiSelect,
	"multi_select": KindMultiSelect,
	"multi-select": KindMultiSelect,
}

// ParseKind maps a persisted kind name to a Kind. Unknown names resolve to KindText.
func ParseKind(s string) Kind {
	if k, ok := kindAliases[textnorm.Key(s)]; ok {
		return k
	}
	return KindText
}

// HasOptions reports whether attributes of this kind carry an option list.
func (k Kind) HasOptions() bool {
	return k == KindSelect || k == KindMultiSelect
}

// AttributeDefinition describes one organization-defined attribute of a feature type.
type AttributeDefinition struct {
	Field    string   `json:"field" yaml:"field"`
	Kind     Kind     `json:"kind" yaml:"kind"`
	Required bool     `json:"required" yaml:"required"`
	Options  []string `json:"options,omitempty" yaml:"options"`
	Order    int      `json:"order" yaml:"order"`
}

// IsTechnicalID reports whether field names the system-generated technical identifier.
func IsTechnicalID(field string) bool {
	return textnorm.Key(field) == TechnicalIDField
}

// Schema is the ordered attribute list of one feature type.
type Schema struct {
	FeatureTypeID uuid.UUID             `json:"featureTypeId"`
	Fields        []AttributeDefinition `json:"fields"`
}

// NewSchema canonicalizes raw definitions: kinds are parsed, options are kept only
// for select kinds, names are deduplicated case-insensitively (lowest order wins)
// and the result is sorted by order, then by folded field name.
func NewSchema(featureTypeID uuid.UUID, defs []AttributeDefinition) Schema {
	fields := make([]AttributeDefinition, 0, len(defs))
	for _, def := range defs {
		name := strings.TrimSpace(def.Field)
		if name == "" {
			continue
		}
		kind := ParseKind(string(def.Kind))
		var options []string
		if kind.HasOptions() {
			options = cleanOptions(def.Options)
		}
		fields = append(fields, AttributeDefinition{
			Field:    name,
			Kind:     kind,
			Required: def.Required,
			Options:  options,
			Order:    def.Order,
		})
	}

	slices.SortStableFunc(fields, func(a, b AttributeDefinition) int {
		if a.Order != b.Order {
			return a.Order - b.Order
		}
		return strings.Compare(textnorm.Key(a.Field), textnorm.Key(b.Field))
	})

	seen := make(map[string]struct{}, len(fields))
	unique := fields[:0]
	for _, f := range fields {
		key := textnorm.Key(f.Field)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, f)
	}

	return Schema{FeatureTypeID: featureTypeID, Fields: unique}
}

func cleanOptions(options []string) []string {
	out := make([]string, 0, len(options))
	seen := make(map[string]struct{}, len(options))
	for _, opt := range options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		key := textnorm.Fold(opt)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, opt)
	}
	return out
}

// IsEmpty reports whether the schema defines no attributes.
func (s Schema) IsEmpty() bool {
	return len(s.Fields) == 0
}

// Lookup finds a field by name, ignoring case, surrounding space and diacritics.
func (s Schema) Lookup(name string) (AttributeDefinition, bool) {
	key := textnorm.Key(name)
	for _, f := range s.Fields {
		if textnorm.Key(f.Field) == key {
			return f, true
		}
	}
	return AttributeDefinition{}, false
}

// MatchOption returns the canonical option equal to value after folding.
func (d AttributeDefinition) MatchOption(value string) (string, bool) {
	folded := textnorm.Fold(value)
	for _, opt := range d.Options {
		if textnorm.Fold(opt) == folded {
			return opt, true
		}
	}
	return "", false
}

// AttributeKey is the key used for this field in stored attribute maps.
func (d AttributeDefinition) AttributeKey() string {
	return strings.ToUpper(strings.TrimSpace(d.Field))
}

// FeatureType is a category of field asset, such as a pole or a manhole.
type FeatureType struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Code string    `json:"code"`
}

// FormatTechnicalID renders the human-readable identifier of a feature from its
// type code and counter value, e.g. POS-000042.
func FormatTechnicalID(code string, seq int64) string {
	return fmt.Sprintf("%s-%06d", code, seq)
}
