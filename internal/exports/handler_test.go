package exports

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"field_inventory_backend/internal/schema/domain"
	"field_inventory_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeSchemas struct {
	typeID uuid.UUID
}

func (f fakeSchemas) Resolve(_ context.Context, id uuid.UUID) (domain.Schema, error) {
	return domain.NewSchema(id, []domain.AttributeDefinition{
		{Field: "material", Kind: domain.KindSelect, Options: []string{"Concreto", "Madera"}, Order: 1},
		{Field: "energizado", Kind: domain.KindBoolean, Order: 2},
		{Field: "usos", Kind: domain.KindMultiSelect, Options: []string{"Red", "Alumbrado"}, Order: 3},
		{Field: "altura", Kind: domain.KindDecimal, Order: 4},
	}), nil
}

func (f fakeSchemas) FeatureType(_ context.Context, id uuid.UUID) (domain.FeatureType, error) {
	if id != f.typeID {
		return domain.FeatureType{}, apperr.NotFound("feature type not found")
	}
	return domain.FeatureType{ID: id, Name: "Poste", Code: "POS"}, nil
}

type fakeLister struct {
	rows []FeatureRow
	got  Filter
}

func (f *fakeLister) ListFeatures(_ context.Context, filter Filter) ([]FeatureRow, error) {
	f.got = filter
	return f.rows, nil
}

func serveExport(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/projects/:projectId/feature-types/:typeId/export.csv", h.ExportFeaturesCSV)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestExportWritesTemplateLayout(t *testing.T) {
	typeID := uuid.New()
	lister := &fakeLister{rows: []FeatureRow{
		{
			TechnicalID: "POS-000001",
			Latitude:    4.6,
			Longitude:   -74.08,
			Estado:      "ACTIVO",
			Attributes: map[string]any{
				"MATERIAL":   "Madera",
				"ENERGIZADO": true,
				"USOS":       []any{"Red", "Alumbrado"},
				"ALTURA":     7.5,
			},
		},
		{TechnicalID: "POS-000002", Latitude: 1, Longitude: 2, Estado: "PENDIENTE", Attributes: map[string]any{"MATERIAL": nil}},
	}}
	h := NewHandler(lister, fakeSchemas{typeID: typeID})

	projectID := uuid.New()
	w := serveExport(t, h, "/projects/"+projectID.String()+"/feature-types/"+typeID.String()+"/export.csv?estado=activo&limit=10")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "pos-features.csv") {
		t.Fatalf("unexpected disposition %q", w.Header().Get("Content-Disposition"))
	}
	if lister.got.Estado != "ACTIVO" || lister.got.Limit != 10 || lister.got.ProjectID != projectID {
		t.Fatalf("unexpected filter %+v", lister.got)
	}

	records, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	want := [][]string{
		{"id_tecnico", "latitude", "longitude", "estado", "material", "energizado", "usos", "altura"},
		{"POS-000001", "4.6", "-74.08", "ACTIVO", "Madera", "SI", "Red;Alumbrado", "7.5"},
		{"POS-000002", "1", "2", "PENDIENTE", "", "", "", ""},
	}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for i := range want {
		if strings.Join(records[i], ",") != strings.Join(want[i], ",") {
			t.Fatalf("record %d: expected %v, got %v", i, want[i], records[i])
		}
	}
}

func TestExportRejectsUnknownEstado(t *testing.T) {
	typeID := uuid.New()
	h := NewHandler(&fakeLister{}, fakeSchemas{typeID: typeID})
	w := serveExport(t, h, "/projects/"+uuid.NewString()+"/feature-types/"+typeID.String()+"/export.csv?estado=roto")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestExportUnknownTypeIsNotFound(t *testing.T) {
	h := NewHandler(&fakeLister{}, fakeSchemas{typeID: uuid.New()})
	w := serveExport(t, h, "/projects/"+uuid.NewString()+"/feature-types/"+uuid.NewString()+"/export.csv")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCellValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"CONCRETO", "CONCRETO"},
		{false, "NO"},
		{float64(12), "12"},
		{[]string{"A", "B"}, "A;B"},
	}
	for _, tc := range cases {
		if got := cellValue(tc.in); got != tc.want {
			t.Fatalf("cellValue(%v): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}
