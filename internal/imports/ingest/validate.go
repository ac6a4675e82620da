package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"

	"field_inventory_backend/internal/schema/domain"
	"field_inventory_backend/platform/textnorm"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Validate parses contents as a comma-delimited file with a header row and checks
// it against schema. Missing or duplicated columns stop validation with a single
// structural error. Rows with unusable coordinates are reported individually and
// scanning continues; any error leaves Rows empty.
func Validate(contents []byte, schema domain.Schema) Result {
	records, err := readRecords(contents)
	if err != nil {
		return structural(0, fmt.Sprintf("could not parse file: %v", err))
	}

	var headers []string
	if len(records) > 0 {
		headers = trimAll(records[0])
	}

	if missing := missingColumns(headers, schema); len(missing) > 0 {
		res := structural(1, "missing required columns: "+strings.Join(missing, ", "))
		res.Headers = headers
		return res
	}
	if dups := duplicateColumns(headers); len(dups) > 0 {
		res := structural(1, "duplicate columns: "+strings.Join(dups, ", "))
		res.Headers = headers
		return res
	}

	result := Result{Headers: headers, Errors: []ValidationError{}, Rows: []RawRow{}}
	index := 0
	for _, record := range records[1:] {
		row := RawRow{Cells: make(map[string]string, len(headers))}
		for i, header := range headers {
			if header == "" {
				continue
			}
			if i < len(record) {
				row.Cells[header] = record[i]
			} else {
				row.Cells[header] = ""
			}
		}
		if isTemplateArtifact(row) {
			continue
		}

		row.Line = index + firstDataLine
		index++

		if msg := checkCoordinates(row); msg != "" {
			result.Errors = append(result.Errors, ValidationError{Line: row.Line, Kind: ErrorRow, Message: msg})
			continue
		}
		result.Rows = append(result.Rows, row)
	}

	if len(result.Errors) > 0 {
		result.Rows = []RawRow{}
	}
	return result
}

// RequiredColumns returns the columns a file must carry for schema, in template order.
// The technical identifier is never required because it is always generated.
func RequiredColumns(schema domain.Schema) []string {
	required := []string{columnLatitude, columnLongitude}
	seen := map[string]struct{}{columnLatitude: {}, columnLongitude: {}}
	for _, f := range schema.Fields {
		if domain.IsTechnicalID(f.Field) {
			continue
		}
		key := textnorm.Key(f.Field)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		required = append(required, f.Field)
	}
	return required
}

func readRecords(contents []byte) ([][]string, error) {
	contents = bytes.TrimPrefix(contents, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(contents))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}

func structural(line int, message string) Result {
	return Result{
		Errors: []ValidationError{{Line: line, Kind: ErrorStructural, Message: message}},
		Rows:   []RawRow{},
	}
}

func missingColumns(headers []string, schema domain.Schema) []string {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[textnorm.Key(h)] = struct{}{}
	}

	var missing []string
	for _, name := range RequiredColumns(schema) {
		if _, ok := present[textnorm.Key(name)]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func duplicateColumns(headers []string) []string {
	seen := make(map[string]int, len(headers))
	var dups []string
	for _, h := range headers {
		if h == "" {
			continue
		}
		key := textnorm.Key(h)
		seen[key]++
		if seen[key] == 2 {
			dups = append(dups, h)
		}
	}
	return dups
}

func isTemplateArtifact(row RawRow) bool {
	if lat, _ := row.Get(columnLatitude); strings.TrimSpace(lat) == SentinelLatitude {
		return true
	}
	for _, v := range row.Cells {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func checkCoordinates(row RawRow) string {
	rawLat, _ := row.Get(columnLatitude)
	rawLon, _ := row.Get(columnLongitude)

	lat, latErr := parseCoordinate(rawLat)
	lon, lonErr := parseCoordinate(rawLon)
	if latErr != nil || lonErr != nil {
		return fmt.Sprintf("invalid coordinates: latitude %q, longitude %q", strings.TrimSpace(rawLat), strings.TrimSpace(rawLon))
	}
	if lat < -90 || lat > 90 {
		return fmt.Sprintf("latitude %v out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Sprintf("longitude %v out of range [-180, 180]", lon)
	}
	return ""
}

func parseCoordinate(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("coordinate %q is not finite", raw)
	}
	return v, nil
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
