package validator

import "testing"

type statusInput struct {
	Estado string `validate:"omitempty,estado"`
	Kind   string `validate:"required,fieldkind"`
}

func TestEstadoTag(t *testing.T) {
	v := New()

	cases := []struct {
		name   string
		estado string
		ok     bool
	}{
		{"empty allowed", "", true},
		{"canonical", "PENDIENTE", true},
		{"folded", " activo ", true},
		{"accented", "En_Reparación", true},
		{"unknown", "PERDIDO", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Struct(statusInput{Estado: tc.estado, Kind: "text"})
			if tc.ok && err != nil {
				t.Fatalf("expected %q to pass, got %v", tc.estado, err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected %q to fail", tc.estado)
			}
		})
	}
}

func TestFieldKindTag(t *testing.T) {
	v := New()
	if err := v.Struct(statusInput{Kind: "MultiSelect"}); err != nil {
		t.Fatalf("expected multiselect to pass, got %v", err)
	}
	if err := v.Struct(statusInput{Kind: "geometry"}); err == nil {
		t.Fatal("expected unknown kind to fail")
	}
}
