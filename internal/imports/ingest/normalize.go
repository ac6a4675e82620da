package ingest

import (
	"fmt"
	"strings"

	"field_inventory_backend/internal/schema/domain"
	"field_inventory_backend/platform/textnorm"
)

// Normalize converts a validated row into an ImportRow. Reserved columns become
// sibling fields; every other column becomes an attribute keyed by its uppercased
// name whose value is null or the folded (trimmed, accent-free, uppercase) cell.
// The schema is used only to spell keys after the defined field name when the
// header differs from it in accents.
func Normalize(row RawRow, schema domain.Schema) (ImportRow, error) {
	rawLat, _ := row.Get(columnLatitude)
	rawLon, _ := row.Get(columnLongitude)
	lat, err := parseCoordinate(rawLat)
	if err != nil {
		return ImportRow{}, fmt.Errorf("line %d: latitude: %w", row.Line, err)
	}
	lon, err := parseCoordinate(rawLon)
	if err != nil {
		return ImportRow{}, fmt.Errorf("line %d: longitude: %w", row.Line, err)
	}

	out := ImportRow{
		Line:       row.Line,
		Latitude:   lat,
		Longitude:  lon,
		Estado:     DefaultEstado,
		Attributes: make(map[string]*string, len(row.Cells)),
	}

	if estado, ok := row.Get(columnEstado); ok && !IsNull(estado) {
		out.Estado = textnorm.Fold(estado)
	}

	for column, cell := range row.Cells {
		if IsReserved(column) {
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(column))
		if def, ok := schema.Lookup(column); ok {
			key = def.AttributeKey()
		}
		if IsReserved(key) {
			continue
		}
		out.Attributes[key] = NormalizeValue(cell)
	}

	return out, nil
}

// NormalizeAll normalizes every row of a valid result.
func NormalizeAll(rows []RawRow, schema domain.Schema) ([]ImportRow, error) {
	out := make([]ImportRow, 0, len(rows))
	for _, row := range rows {
		n, err := Normalize(row, schema)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// IsNull reports whether a cell counts as not provided.
func IsNull(cell string) bool {
	trimmed := strings.TrimSpace(cell)
	return trimmed == "" || strings.EqualFold(trimmed, "null")
}

// NormalizeValue returns nil for null cells and the folded text otherwise.
func NormalizeValue(cell string) *string {
	if IsNull(cell) {
		return nil
	}
	v := textnorm.Fold(cell)
	return &v
}
