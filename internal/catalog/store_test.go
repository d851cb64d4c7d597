package catalog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"recipebook/ingredientservice/internal/domain"
)

type failingSource struct{ err error }

func (f failingSource) Name() string { return "failing" }

func (f failingSource) Load(context.Context) ([]RawRecord, error) { return nil, f.err }

type rawSource []RawRecord

func (r rawSource) Name() string { return "raw" }

func (r rawSource) Load(context.Context) ([]RawRecord, error) { return r, nil }

func ingredient(id, es, category string, units ...string) domain.Ingredient {
	if len(units) == 0 {
		units = []string{"g"}
	}
	return domain.Ingredient{
		ID:           id,
		Names:        map[string]string{"es": es},
		Category:     category,
		AllowedUnits: units,
	}
}

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoadDropsInvalidRecords(t *testing.T) {
	logger, logs := captureLogger()
	records := []domain.Ingredient{
		ingredient("000001", "Tomate", "Verduras"),
		ingredient("12345", "Corto", "Verduras"),
		ingredient("00000a", "Letra", "Verduras"),
		{ID: "000002", Category: "Verduras", AllowedUnits: []string{"g"}},
		{ID: "000003", Names: map[string]string{"es": "Sin categoría"}, AllowedUnits: []string{"g"}},
		{ID: "000004", Names: map[string]string{"es": "Sin unidades"}, Category: "Varios"},
		ingredient("000005", "Leche", "Lácteos"),
	}

	store, err := Load(context.Background(), SliceSource(records), WithLogger(logger))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 valid records, got %d", store.Len())
	}
	if got := strings.Count(logs.String(), "catalog record dropped"); got != 5 {
		t.Fatalf("expected 5 drop warnings, got %d:\n%s", got, logs.String())
	}
	if !strings.Contains(logs.String(), "index=3") {
		t.Fatalf("drop warning should name the record index:\n%s", logs.String())
	}
	if got := strings.Count(logs.String(), "catalog loaded"); got != 1 {
		t.Fatalf("expected one load summary, got %d:\n%s", got, logs.String())
	}
	if !strings.Contains(logs.String(), "records=2 dropped=5") {
		t.Fatalf("load summary should carry record and drop counts:\n%s", logs.String())
	}
}

func TestLoadKeepsFirstOfDuplicateIDs(t *testing.T) {
	logger, logs := captureLogger()
	store, err := Load(context.Background(), SliceSource{
		ingredient("000001", "Tomate", "Verduras"),
		ingredient("000001", "Tomate duplicado", "Verduras"),
	}, WithLogger(logger))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := store.GetByID(context.Background(), "000001")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Names["es"] != "Tomate" {
		t.Fatalf("expected the first record to win, got %q", got.Names["es"])
	}
	if !strings.Contains(logs.String(), "duplicate id") {
		t.Fatalf("expected duplicate warning:\n%s", logs.String())
	}
}

func TestLoadNormalizesRecords(t *testing.T) {
	store, err := NewStore([]domain.Ingredient{{
		ID:           " 000001 ",
		Names:        map[string]string{" ES ": " Tomate "},
		Category:     " Verduras ",
		AllowedUnits: []string{"g", " g", "", "unidad"},
	}})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	got, err := store.GetByID(context.Background(), "000001")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Names["es"] != "Tomate" || got.Category != "Verduras" {
		t.Fatalf("record not trimmed: %+v", got)
	}
	if strings.Join(got.AllowedUnits, ",") != "g,unidad" {
		t.Fatalf("units not deduplicated in order: %v", got.AllowedUnits)
	}
}

func TestLoadEmptyCatalogIsFatal(t *testing.T) {
	logger, _ := captureLogger()
	_, err := Load(context.Background(), SliceSource{ingredient("bad", "x", "y")}, WithLogger(logger))
	if !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog, got %v", err)
	}
	_, err = Load(context.Background(), SliceSource{}, WithLogger(logger))
	if !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("expected ErrEmptyCatalog for an empty source, got %v", err)
	}
}

func TestLoadSourceFailureIsReturned(t *testing.T) {
	sourceErr := errors.New("disk on fire")
	_, err := Load(context.Background(), failingSource{err: sourceErr})
	if !errors.Is(err, sourceErr) {
		t.Fatalf("expected source error, got %v", err)
	}
	if _, err := Load(context.Background(), nil); !errors.Is(err, domain.ErrCatalogNotLoaded) {
		t.Fatalf("expected ErrCatalogNotLoaded for nil source, got %v", err)
	}
}

func TestLoadSkipsUndecodableRecords(t *testing.T) {
	logger, logs := captureLogger()
	store, err := Load(context.Background(), rawSource{
		{Index: 0, DecodeErr: errors.New("record is not an object")},
		{Index: 1, Ingredient: ingredient("000001", "Tomate", "Verduras")},
	}, WithLogger(logger))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", store.Len())
	}
	if !strings.Contains(logs.String(), "record is not an object") {
		t.Fatalf("expected decode reason in log:\n%s", logs.String())
	}
}

func TestStoreRecordsCannotBeMutatedByCallers(t *testing.T) {
	source := SliceSource{ingredient("000001", "Tomate", "Verduras", "g")}
	store, err := NewStore(source)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	source[0].Names["es"] = "changed after load"

	got, _ := store.GetByID(context.Background(), "000001")
	got.AllowedUnits[0] = "kg"
	again, _ := store.GetByID(context.Background(), "000001")
	if again.Names["es"] != "Tomate" || again.AllowedUnits[0] != "g" {
		t.Fatalf("catalog record was mutated: %+v", again)
	}
}

func TestNilStoreReportsNotLoaded(t *testing.T) {
	var store *Store
	if _, err := store.GetByID(context.Background(), "000001"); !errors.Is(err, domain.ErrCatalogNotLoaded) {
		t.Fatalf("GetByID: expected ErrCatalogNotLoaded, got %v", err)
	}
	if _, err := store.Search(context.Background(), domain.SearchQuery{}); !errors.Is(err, domain.ErrCatalogNotLoaded) {
		t.Fatalf("Search: expected ErrCatalogNotLoaded, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("nil store has no records")
	}
}
