package domain

import "strings"

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
	MaxQueryLength     = 200
)

type SearchQuery struct {
	Query string
	Lang  string
	Limit int
}

// Normalize trims the query, defaults the language and clamps the limit into
// [1, MaxSearchLimit], using DefaultSearchLimit for non-positive values.
func (q SearchQuery) Normalize() SearchQuery {
	q.Query = strings.TrimSpace(q.Query)
	q.Lang = strings.ToLower(strings.TrimSpace(q.Lang))
	if q.Lang == "" {
		q.Lang = DefaultLang
	}
	q.Limit = ClampLimit(q.Limit)
	return q
}

func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		return MaxSearchLimit
	}
	return limit
}

// Suggestion is the typeahead projection of an ingredient.
type Suggestion struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

func (i Ingredient) Suggestion(lang string) Suggestion {
	return Suggestion{
		ID:       i.ID,
		Name:     i.DisplayName(lang),
		Category: i.Category,
	}
}

// BatchResult is the answer to a lookup of many identifiers at once.
type BatchResult struct {
	Ingredients []Ingredient `json:"ingredients"`
	Missing     []string     `json:"missing"`
}
