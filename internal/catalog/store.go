package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"recipebook/ingredientservice/internal/domain"
	"recipebook/ingredientservice/internal/metrics"
)

var ErrEmptyCatalog = errors.New("catalog has no valid ingredient records")

// RawRecord is one catalog entry as produced by a Source, before validation.
// DecodeErr is set when the entry could not be decoded at all.
type RawRecord struct {
	Index      int
	Ingredient domain.Ingredient
	DecodeErr  error
}

// Source reads the complete catalog. A returned error means the source as a
// whole is unreadable or is not a sequence of records.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]RawRecord, error)
}

// Repository is the read-only query surface over the catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (domain.Ingredient, error)
	GetMany(ctx context.Context, ids []string) (domain.BatchResult, error)
	ByCategory(ctx context.Context, category string) ([]domain.Ingredient, error)
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.Ingredient, error)
	Categories(ctx context.Context) ([]string, error)
	Len() int
}

var _ Repository = (*Store)(nil)

type indexedRecord struct {
	ingredient     domain.Ingredient
	foldedNames    map[string]string
	fallbackLangs  []string
	foldedCategory string
}

// Store is an immutable in-memory index over the catalog. It is built once by
// Load and never mutated, so concurrent queries need no locking.
type Store struct {
	source     string
	records    []indexedRecord
	byID       map[string]int
	categories []string
}

type loadOptions struct {
	logger *slog.Logger
}

type LoadOption func(*loadOptions)

func WithLogger(logger *slog.Logger) LoadOption {
	return func(o *loadOptions) {
		o.logger = logger
	}
}

// Load reads every record from source and indexes the valid ones in source
// order. Invalid and duplicate records are dropped with a warning; a source
// failure or a catalog with no valid records is returned as an error.
func Load(ctx context.Context, source Source, opts ...LoadOption) (*Store, error) {
	options := loadOptions{logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if source == nil {
		return nil, fmt.Errorf("load catalog: %w", domain.ErrCatalogNotLoaded)
	}

	raw, err := source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog from %s: %w", source.Name(), err)
	}

	store := &Store{
		source:  source.Name(),
		records: make([]indexedRecord, 0, len(raw)),
		byID:    make(map[string]int, len(raw)),
	}
	seenCategories := make(map[string]struct{})
	fold := cases.Fold()
	dropped := 0

	for _, item := range raw {
		if item.DecodeErr != nil {
			dropped++
			options.logger.Warn("catalog record dropped",
				slog.String("source", source.Name()),
				slog.Int("index", item.Index),
				slog.String("reason", item.DecodeErr.Error()),
			)
			continue
		}
		record := item.Ingredient.Normalize()
		if err := record.Validate(); err != nil {
			dropped++
			options.logger.Warn("catalog record dropped",
				slog.String("source", source.Name()),
				slog.Int("index", item.Index),
				slog.String("id", record.ID),
				slog.String("reason", err.Error()),
			)
			continue
		}
		if _, exists := store.byID[record.ID]; exists {
			dropped++
			options.logger.Warn("catalog record dropped",
				slog.String("source", source.Name()),
				slog.Int("index", item.Index),
				slog.String("id", record.ID),
				slog.String("reason", "duplicate id"),
			)
			continue
		}

		indexed := indexedRecord{
			ingredient:     record,
			foldedNames:    make(map[string]string, len(record.Names)),
			fallbackLangs:  record.FallbackLangs(),
			foldedCategory: fold.String(record.Category),
		}
		for lang, name := range record.Names {
			indexed.foldedNames[lang] = fold.String(name)
		}
		store.byID[record.ID] = len(store.records)
		store.records = append(store.records, indexed)

		if _, ok := seenCategories[indexed.foldedCategory]; !ok {
			seenCategories[indexed.foldedCategory] = struct{}{}
			store.categories = append(store.categories, record.Category)
		}
	}

	metrics.CatalogDroppedTotal.Add(float64(dropped))
	if len(store.records) == 0 {
		return nil, fmt.Errorf("load catalog from %s: %w (%d dropped)", source.Name(), ErrEmptyCatalog, dropped)
	}
	metrics.CatalogRecords.Set(float64(len(store.records)))

	options.logger.Info("catalog loaded",
		slog.String("source", source.Name()),
		slog.Int("records", len(store.records)),
		slog.Int("dropped", dropped),
		slog.Int("categories", len(store.categories)),
	)
	return store, nil
}

// NewStore indexes records directly. It applies the same validation as Load
// and is mainly useful for tests and embedded catalogs.
func NewStore(records []domain.Ingredient, opts ...LoadOption) (*Store, error) {
	return Load(context.Background(), SliceSource(records), opts...)
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

func (s *Store) SourceName() string {
	if s == nil {
		return ""
	}
	return s.source
}

// SliceSource serves records held in memory.
type SliceSource []domain.Ingredient

func (s SliceSource) Name() string {
	return "memory"
}

func (s SliceSource) Load(_ context.Context) ([]RawRecord, error) {
	out := make([]RawRecord, 0, len(s))
	for index, item := range s {
		out = append(out, RawRecord{Index: index, Ingredient: item.Clone()})
	}
	return out, nil
}

func normalizeSourceName(kind, detail string) string {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		return kind
	}
	return kind + ":" + detail
}
