package ingest

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"field_inventory_backend/internal/schema/domain"
	"field_inventory_backend/platform/validator"
)

// MultiValueSeparator splits multiselect cells.
const MultiValueSeparator = ";"

var booleanTokens = map[string]bool{
	"TRUE": true, "VERDADERO": true, "SI": true, "S": true, "YES": true, "1": true,
	"FALSE": false, "FALSO": false, "NO": false, "N": false, "0": false,
}

// ParseBoolean interprets a folded boolean token.
func ParseBoolean(value string) (bool, bool) {
	b, ok := booleanTokens[strings.ToUpper(strings.TrimSpace(value))]
	return b, ok
}

// Revalidate checks normalized rows against schema before they are written.
// It rejects anything it cannot interpret, so a batch that passes here can be
// stored without further coercion. Errors are ordered by row, then by field.
func Revalidate(rows []ImportRow, schema domain.Schema) []ValidationError {
	var errs []ValidationError
	for _, row := range rows {
		for _, msg := range revalidateRow(row, schema) {
			errs = append(errs, ValidationError{Line: row.Line, Kind: ErrorRow, Message: msg})
		}
	}
	return errs
}

func revalidateRow(row ImportRow, schema domain.Schema) []string {
	var problems []string

	if math.IsNaN(row.Latitude) || row.Latitude < -90 || row.Latitude > 90 {
		problems = append(problems, fmt.Sprintf("latitude %v out of range [-90, 90]", row.Latitude))
	}
	if math.IsNaN(row.Longitude) || row.Longitude < -180 || row.Longitude > 180 {
		problems = append(problems, fmt.Sprintf("longitude %v out of range [-180, 180]", row.Longitude))
	}
	if !validator.IsFeatureStatus(row.Estado) {
		problems = append(problems, fmt.Sprintf("unknown estado %q", row.Estado))
	}

	keys := make([]string, 0, len(row.Attributes))
	for key := range row.Attributes {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if IsReserved(key) {
			problems = append(problems, fmt.Sprintf("%s is reserved and cannot be an attribute", key))
			continue
		}
		if _, ok := schema.Lookup(key); !ok {
			problems = append(problems, fmt.Sprintf("unknown attribute %s", key))
		}
	}

	for _, def := range schema.Fields {
		if IsReserved(def.Field) || domain.IsTechnicalID(def.Field) {
			continue
		}
		value := lookupAttribute(row.Attributes, def)
		if value == nil {
			if def.Required {
				problems = append(problems, fmt.Sprintf("%s is required", def.Field))
			}
			continue
		}
		if msg := checkValue(def, *value); msg != "" {
			problems = append(problems, msg)
		}
	}

	return problems
}

func lookupAttribute(attrs map[string]*string, def domain.AttributeDefinition) *string {
	if v, ok := attrs[def.AttributeKey()]; ok {
		return v
	}
	probe := domain.Schema{Fields: []domain.AttributeDefinition{def}}
	for key, v := range attrs {
		if _, ok := probe.Lookup(key); ok {
			return v
		}
	}
	return nil
}

func checkValue(def domain.AttributeDefinition, value string) string {
	switch def.Kind {
	case domain.KindNumber:
		if _, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err != nil {
			return fmt.Sprintf("%s: %q is not a whole number", def.Field, value)
		}
	case domain.KindDecimal:
		if _, err := ParseDecimal(value); err != nil {
			return fmt.Sprintf("%s: %q is not a number", def.Field, value)
		}
	case domain.KindBoolean:
		if _, ok := ParseBoolean(value); !ok {
			return fmt.Sprintf("%s: %q is not a yes/no value", def.Field, value)
		}
	case domain.KindDate:
		if _, err := time.Parse(time.DateOnly, strings.TrimSpace(value)); err != nil {
			return fmt.Sprintf("%s: %q is not a date (YYYY-MM-DD)", def.Field, value)
		}
	case domain.KindSelect:
		if _, ok := def.MatchOption(value); !ok {
			return fmt.Sprintf("%s: %q is not one of the allowed options", def.Field, value)
		}
	case domain.KindMultiSelect:
		for _, part := range strings.Split(value, MultiValueSeparator) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, ok := def.MatchOption(part); !ok {
				return fmt.Sprintf("%s: %q is not one of the allowed options", def.Field, part)
			}
		}
	}
	return ""
}

// ParseDecimal parses a float accepting a comma as the decimal separator.
func ParseDecimal(value string) (float64, error) {
	v := strings.TrimSpace(value)
	if strings.Count(v, ",") == 1 && !strings.Contains(v, ".") {
		v = strings.Replace(v, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not finite", value)
	}
	return f, nil
}
