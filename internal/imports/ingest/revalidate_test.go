package ingest

import (
	"strings"
	"testing"

	"field_inventory_backend/internal/schema/domain"

	"github.com/google/uuid"
)

func strp(s string) *string { return &s }

func inspectionSchema() domain.Schema {
	return domain.NewSchema(uuid.Nil, []domain.AttributeDefinition{
		{Field: "material", Kind: domain.KindSelect, Required: true, Options: []string{"Concreto", "Madera"}, Order: 1},
		{Field: "altura", Kind: domain.KindNumber, Order: 2},
		{Field: "diametro", Kind: domain.KindDecimal, Order: 3},
		{Field: "iluminado", Kind: domain.KindBoolean, Order: 4},
		{Field: "instalacion", Kind: domain.KindDate, Order: 5},
		{Field: "usos", Kind: domain.KindMultiSelect, Options: []string{"Energía", "Telecom"}, Order: 6},
		{Field: "id_tecnico", Kind: domain.KindText, Required: true, Order: 7},
	})
}

func TestRevalidateAcceptsCleanRow(t *testing.T) {
	row := ImportRow{
		Line: 3, Latitude: 4.7, Longitude: -74.1, Estado: "PENDIENTE",
		Attributes: map[string]*string{
			"MATERIAL":    strp("CONCRETO"),
			"ALTURA":      strp("12"),
			"DIAMETRO":    strp("0,35"),
			"ILUMINADO":   strp("SI"),
			"INSTALACION": strp("2023-04-01"),
			"USOS":        strp("ENERGIA; TELECOM"),
		},
	}

	if errs := Revalidate([]ImportRow{row}, inspectionSchema()); len(errs) != 0 {
		t.Fatalf("expected clean row, got %+v", errs)
	}
}

func TestRevalidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		row  ImportRow
		want string
	}{
		{"missing required", ImportRow{Estado: "PENDIENTE", Attributes: map[string]*string{"MATERIAL": nil}}, "material is required"},
		{"unknown attribute", ImportRow{Estado: "PENDIENTE", Attributes: map[string]*string{"MATERIAL": strp("MADERA"), "COLOR": strp("ROJO")}}, "unknown attribute COLOR"},
		{"reserved key", ImportRow{Estado: "PENDIENTE", Attributes: map[string]*string{"MATERIAL": strp("MADERA"), "ESTADO": strp("X")}}, "reserved"},
		{"bad number", ImportRow{Estado: "PENDIENTE", Attributes: map[string]*string{"MATERIAL": strp("MADERA"), "ALTURA": strp("12.5")}}, "whole number"},
		{"bad boolean", ImportRow{Estado: "PENDIENTE", Attributes: map[string]*string{"MATERIAL": strp("MADERA"), "ILUMINADO": strp("QUIZAS")}}, "yes/no"},
		{"bad date", ImportRow{Estado: "PENDIENTE", Attributes: map[string]*string{"MATERIAL": strp("MADERA"), "INSTALACION": strp("01/04/2023")}}, "YYYY-MM-DD"},
		{"bad option", ImportRow{Estado: "PENDIENTE", Attributes: map[string]*string{"MATERIAL": strp("PLASTICO")}}, "allowed options"},
		{"bad multi option", ImportRow{Estado: "PENDIENTE", Attributes: map[string]*string{"MATERIAL": strp("MADERA"), "USOS": strp("ENERGIA;AGUA")}}, "AGUA"},
		{"bad estado", ImportRow{Estado: "PERDIDO", Attributes: map[string]*string{"MATERIAL": strp("MADERA")}}, "estado"},
		{"out of range", ImportRow{Latitude: 91, Estado: "PENDIENTE", Attributes: map[string]*string{"MATERIAL": strp("MADERA")}}, "latitude"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := Revalidate([]ImportRow{tc.row}, inspectionSchema())
			if len(errs) == 0 {
				t.Fatal("expected an error")
			}
			found := false
			for _, e := range errs {
				if strings.Contains(e.Message, tc.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected an error containing %q, got %+v", tc.want, errs)
			}
		})
	}
}

func TestRevalidateIgnoresTechnicalIDRequirement(t *testing.T) {
	row := ImportRow{Estado: "PENDIENTE", Attributes: map[string]*string{"MATERIAL": strp("MADERA")}}
	for _, e := range Revalidate([]ImportRow{row}, inspectionSchema()) {
		if strings.Contains(e.Message, "id_tecnico") {
			t.Fatalf("technical id must not be required on import: %+v", e)
		}
	}
}

func TestParseDecimal(t *testing.T) {
	cases := map[string]float64{"1.5": 1.5, "1,5": 1.5, " 3 ": 3, "-0,25": -0.25}
	for in, want := range cases {
		got, err := ParseDecimal(in)
		if err != nil || got != want {
			t.Errorf("ParseDecimal(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"1,000.5", "abc", "NaN", ""} {
		if _, err := ParseDecimal(bad); err == nil {
			t.Errorf("expected ParseDecimal(%q) to fail", bad)
		}
	}
}
