package domain

import "testing"

func TestParseReference(t *testing.T) {
	tests := []struct {
		raw   string
		kind  ReferenceKind
		value string
	}{
		{"000123", RefByID, "000123"},
		{"  000123\t", RefByID, "000123"},
		{"12345", RefByName, "12345"},
		{"1234567", RefByName, "1234567"},
		{"12a456", RefByName, "12a456"},
		{"１２３４５６", RefByName, "１２３４５６"},
		{"Tomate", RefByName, "Tomate"},
		{"  Sal ", RefByName, "Sal"},
		{"", RefByName, ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseReference(tt.raw)
			if got.Kind != tt.kind || got.Value != tt.value {
				t.Fatalf("ParseReference(%q) = %+v, want %s:%s", tt.raw, got, tt.kind, tt.value)
			}
		})
	}
}

func TestParseReferencesKeepsOrder(t *testing.T) {
	refs := ParseReferences([]string{"Harina", "000001", "000001"})
	want := []string{"name:Harina", "id:000001", "id:000001"}
	if len(refs) != len(want) {
		t.Fatalf("got %d refs", len(refs))
	}
	for i, ref := range refs {
		if ref.String() != want[i] {
			t.Fatalf("refs[%d] = %s, want %s", i, ref, want[i])
		}
	}
	if !refs[1].IsID() || refs[0].IsID() {
		t.Fatal("IsID disagrees with Kind")
	}
}

func TestNewRecipeIngredient(t *testing.T) {
	line := NewRecipeIngredient(" 000042 ", 2.5, " taza ")
	if !line.Ref.IsID() || line.Ref.Value != "000042" || line.Unit != "taza" || line.Quantity != 2.5 {
		t.Fatalf("unexpected recipe line: %+v", line)
	}
}
