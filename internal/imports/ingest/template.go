package ingest

import (
	"bytes"
	"encoding/csv"
	"strings"

	"field_inventory_backend/internal/schema/domain"
	"field_inventory_backend/platform/validator"
)

const sentinelLongitude = "-74.082345"

// extraColumnsNote tells uploaders that the header is closed.
const extraColumnsNote = "columns not in this header are rejected"

// TemplateColumns returns the header row for schema: latitude, longitude, estado,
// then every schema field in order except reserved names and the technical identifier.
func TemplateColumns(schema domain.Schema) []string {
	cols := []string{columnLatitude, columnLongitude, columnEstado}
	for _, f := range schema.Fields {
		if domain.IsTechnicalID(f.Field) || IsReserved(f.Field) {
			continue
		}
		cols = append(cols, f.Field)
	}
	return cols
}

// Template renders a CSV with the header row and an instruction row. The
// instruction row carries SentinelLatitude so Validate drops it. Its estado
// cell lists the accepted statuses and warns that extra columns are rejected.
func Template(schema domain.Schema) ([]byte, error) {
	cols := TemplateColumns(schema)

	estadoHint := "one of: " + strings.Join(validator.FeatureStatuses, " | ") + "; " + extraColumnsNote
	hints := []string{SentinelLatitude, sentinelLongitude, estadoHint}
	for _, name := range cols[3:] {
		def, _ := schema.Lookup(name)
		hints = append(hints, hint(def))
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(cols); err != nil {
		return nil, err
	}
	if err := w.Write(hints); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func hint(def domain.AttributeDefinition) string {
	var h string
	switch def.Kind {
	case domain.KindNumber:
		h = "whole number"
	case domain.KindDecimal:
		h = "decimal number"
	case domain.KindBoolean:
		h = "SI | NO"
	case domain.KindDate:
		h = "YYYY-MM-DD"
	case domain.KindSelect:
		h = "one of: " + strings.Join(def.Options, " | ")
	case domain.KindMultiSelect:
		h = "any of (separate with ;): " + strings.Join(def.Options, " | ")
	default:
		h = "text"
	}
	if def.Required {
		h += " (required)"
	}
	return h
}
