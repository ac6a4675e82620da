package textnorm

import "testing"

func TestFold(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Poste Concreto", "POSTE CONCRETO"},
		{"POSTE CONCRETO", "POSTE CONCRETO"},
		{"Poste Concretó", "POSTE CONCRETO"},
		{"  señal  ", "SENAL"},
		{"Ñandú", "NANDU"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := Fold(tc.in); got != tc.want {
			t.Errorf("Fold(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestKey(t *testing.T) {
	if got := Key(" ID_TÉCNICO "); got != "id_tecnico" {
		t.Fatalf("expected id_tecnico, got %q", got)
	}
}

func TestEqualFold(t *testing.T) {
	if !EqualFold("Poste Concretó", "poste concreto") {
		t.Fatal("expected folded values to be equal")
	}
	if EqualFold("poste", "postes") {
		t.Fatal("expected different values to differ")
	}
}
