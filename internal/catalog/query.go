package catalog

import (
	"context"
	"strings"

	"golang.org/x/text/cases"

	"recipebook/ingredientservice/internal/domain"
)

// GetByID returns the record with exactly this identifier.
func (s *Store) GetByID(_ context.Context, id string) (domain.Ingredient, error) {
	if s == nil {
		return domain.Ingredient{}, domain.ErrCatalogNotLoaded
	}
	index, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return domain.Ingredient{}, domain.ErrNotFound
	}
	return s.records[index].ingredient.Clone(), nil
}

// GetMany looks up every distinct identifier in ids. Found records keep the
// order of first appearance in ids; unknown identifiers are listed in Missing.
func (s *Store) GetMany(_ context.Context, ids []string) (domain.BatchResult, error) {
	if s == nil {
		return domain.BatchResult{}, domain.ErrCatalogNotLoaded
	}
	result := domain.BatchResult{
		Ingredients: make([]domain.Ingredient, 0, len(ids)),
		Missing:     []string{},
	}
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		index, ok := s.byID[id]
		if !ok {
			result.Missing = append(result.Missing, id)
			continue
		}
		result.Ingredients = append(result.Ingredients, s.records[index].ingredient.Clone())
	}
	return result, nil
}

// ByCategory returns every record whose category equals category under
// Unicode case folding. A blank category yields an empty result.
func (s *Store) ByCategory(_ context.Context, category string) ([]domain.Ingredient, error) {
	if s == nil {
		return nil, domain.ErrCatalogNotLoaded
	}
	out := []domain.Ingredient{}
	category = strings.TrimSpace(category)
	if category == "" {
		return out, nil
	}
	folded := cases.Fold().String(category)
	for _, record := range s.records {
		if record.foldedCategory == folded {
			out = append(out, record.ingredient.Clone())
		}
	}
	return out, nil
}

// Search filters the catalog by case-insensitive substring match against the
// name in query.Lang, or against any available name when a record has no
// entry for that language. Catalog order is preserved and the result is
// truncated to the normalized limit. An empty query matches every record.
func (s *Store) Search(_ context.Context, query domain.SearchQuery) ([]domain.Ingredient, error) {
	if s == nil {
		return nil, domain.ErrCatalogNotLoaded
	}
	query = query.Normalize()
	needle := cases.Fold().String(query.Query)

	out := make([]domain.Ingredient, 0, min(query.Limit, len(s.records)))
	for _, record := range s.records {
		if len(out) >= query.Limit {
			break
		}
		if needle != "" && !record.matches(needle, query.Lang) {
			continue
		}
		out = append(out, record.ingredient.Clone())
	}
	return out, nil
}

func (r indexedRecord) matches(needle, lang string) bool {
	if name, ok := r.foldedNames[lang]; ok {
		return strings.Contains(name, needle)
	}
	for _, fallback := range r.fallbackLangs {
		if strings.Contains(r.foldedNames[fallback], needle) {
			return true
		}
	}
	return false
}

// Categories lists distinct categories in first-seen catalog order.
func (s *Store) Categories(_ context.Context) ([]string, error) {
	if s == nil {
		return nil, domain.ErrCatalogNotLoaded
	}
	return append([]string(nil), s.categories...), nil
}
