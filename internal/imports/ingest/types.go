// Package ingest validates and normalizes spreadsheet imports of field assets
// against a feature type's attribute schema. Everything here is pure and
// deterministic except Gate.Submit, which hands the batch to a BatchWriter.
package ingest

import (
	"strings"

	"field_inventory_backend/platform/textnorm"
)

const (
	// SentinelLatitude marks the template's instruction row.
	SentinelLatitude = "4.612345"
	// DefaultEstado is assigned to rows without a status.
	DefaultEstado = "PENDIENTE"

	columnLatitude  = "latitude"
	columnLongitude = "longitude"
	columnEstado    = "estado"

	// first data row: header on line 1, instruction row on line 2
	firstDataLine = 3
)

// reservedColumns are never stored as attributes. Membership is tested on the
// uppercased column name.
var reservedColumns = map[string]struct{}{
	"LATITUDE":   {},
	"LONGITUDE":  {},
	"ESTADO":     {},
	"ID_TECNICO": {},
	"ID_TÉCNICO": {},
}

// IsReserved reports whether a column or attribute key is a reserved sibling field.
func IsReserved(column string) bool {
	_, ok := reservedColumns[strings.ToUpper(strings.TrimSpace(column))]
	return ok
}

// ErrorKind separates whole-file problems from per-row problems.
type ErrorKind string

const (
	ErrorStructural ErrorKind = "structural"
	ErrorRow        ErrorKind = "row"
)

// ValidationError is one problem found in an uploaded file. Line is 1-based;
// structural errors that concern no particular row use line 0 or 1.
type ValidationError struct {
	Line    int       `json:"line"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// RawRow is one data row keyed by the header text as it appeared in the file.
type RawRow struct {
	Line  int               `json:"line"`
	Cells map[string]string `json:"cells"`
}

// Get returns the cell under header name, matched ignoring case and accents.
func (r RawRow) Get(name string) (string, bool) {
	if v, ok := r.Cells[name]; ok {
		return v, true
	}
	key := textnorm.Key(name)
	for header, v := range r.Cells {
		if textnorm.Key(header) == key {
			return v, true
		}
	}
	return "", false
}

// Result is the outcome of validating one file. Rows is empty whenever Errors is not.
type Result struct {
	Headers []string          `json:"headers"`
	Errors  []ValidationError `json:"errors"`
	Rows    []RawRow          `json:"rows"`
}

// Valid reports whether the file produced no errors.
func (r Result) Valid() bool {
	return len(r.Errors) == 0
}

// ImportRow is a normalized row ready for a batch write. A nil attribute value is null.
type ImportRow struct {
	Line       int                `json:"line"`
	Latitude   float64            `json:"latitude"`
	Longitude  float64            `json:"longitude"`
	Estado     string             `json:"estado"`
	Attributes map[string]*string `json:"attributes"`
}
