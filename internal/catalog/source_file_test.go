package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func loadTestdata(t *testing.T, name string) *Store {
	t.Helper()
	logger, _ := captureLogger()
	store, err := Load(context.Background(), NewFileSource(filepath.Join("testdata", name)), WithLogger(logger))
	if err != nil {
		t.Fatalf("Load(%s): %v", name, err)
	}
	return store
}

func TestFileSourceJSONWithLegacyRecords(t *testing.T) {
	store := loadTestdata(t, "catalog.json")
	if store.Len() != 4 {
		t.Fatalf("expected 4 valid records, got %d", store.Len())
	}
	if store.SourceName() != "file:testdata/catalog.json" {
		t.Fatalf("unexpected source name %q", store.SourceName())
	}

	tests := []struct {
		id       string
		name     string
		category string
		units    []string
	}{
		{"000001", "Tomate", "Verduras", []string{"g", "unidad"}},
		{"000002", "Leche", "Lácteos", []string{"ml", "l"}},
		{"000003", "Harina", "Cereales", []string{"g", "kg"}},
		{"000004", "Sal", "Especias", []string{"pizca"}},
	}
	for _, tt := range tests {
		got, err := store.GetByID(context.Background(), tt.id)
		if err != nil {
			t.Fatalf("GetByID(%s): %v", tt.id, err)
		}
		if got.DisplayName("es") != tt.name || got.Category != tt.category || !reflect.DeepEqual(got.AllowedUnits, tt.units) {
			t.Fatalf("record %s = %+v", tt.id, got)
		}
	}
}

func TestFileSourceYAML(t *testing.T) {
	store := loadTestdata(t, "catalog.yaml")
	if store.Len() != 2 {
		t.Fatalf("expected 2 valid records, got %d", store.Len())
	}
	got, err := store.GetByID(context.Background(), "000002")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Names["es"] != "Leche" || !reflect.DeepEqual(got.AllowedUnits, []string{"ml", "l"}) {
		t.Fatalf("legacy yaml record decoded as %+v", got)
	}
	tomato, _ := store.GetByID(context.Background(), "000001")
	if tomato.Names["en"] != "Tomato" {
		t.Fatalf("names map lost in yaml decoding: %+v", tomato)
	}
}

func TestFileSourceRejectsMalformedCatalogs(t *testing.T) {
	for _, name := range []string{"object.json", "truncated.json", "mapping.yaml"} {
		t.Run(name, func(t *testing.T) {
			_, err := NewFileSource(filepath.Join("testdata", name)).Load(context.Background())
			if !errors.Is(err, ErrMalformedCatalog) {
				t.Fatalf("expected ErrMalformedCatalog, got %v", err)
			}
		})
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := NewFileSource(filepath.Join("testdata", "nope.json")).Load(context.Background())
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestDecodeJSONKeepsIndexesAligned(t *testing.T) {
	records, err := DecodeJSON([]byte(`[1, {"id":"000001","names":{"es":"A"},"category":"B","allowedUnits":["g"]}, null]`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 raw records, got %d", len(records))
	}
	if records[0].DecodeErr == nil || records[2].DecodeErr == nil {
		t.Fatal("non-object entries must carry a decode error")
	}
	if records[1].DecodeErr != nil || records[1].Index != 1 || records[1].Ingredient.ID != "000001" {
		t.Fatalf("unexpected record: %+v", records[1])
	}
}
