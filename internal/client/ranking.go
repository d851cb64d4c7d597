package client

import (
	"sort"
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/cases"

	"recipebook/ingredientservice/internal/domain"
)

const DefaultSuggestionLimit = 5

const (
	tierExact = iota
	tierPrefix
	tierWordPrefix
	tierSubstring
	tierOther
)

type rankedSuggestion struct {
	suggestion domain.Suggestion
	tier       int
	distance   int
}

// RankSuggestions orders candidates for a typeahead list: exact name match,
// name prefix, word prefix, substring, then anything else the service
// returned (for example a match on another language). Ties are broken by edit
// distance to the query and then by the service order. At most limit
// suggestions are returned and each id appears once.
func RankSuggestions(query string, candidates []domain.Ingredient, lang string, limit int) []domain.Suggestion {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(query))

	ranked := make([]rankedSuggestion, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if _, dup := seen[candidate.ID]; dup {
			continue
		}
		seen[candidate.ID] = struct{}{}

		suggestion := candidate.Suggestion(lang)
		name := fold.String(suggestion.Name)
		ranked = append(ranked, rankedSuggestion{
			suggestion: suggestion,
			tier:       matchTier(needle, name),
			distance:   edlib.LevenshteinDistance(needle, name),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].tier != ranked[j].tier {
			return ranked[i].tier < ranked[j].tier
		}
		return ranked[i].distance < ranked[j].distance
	})

	out := make([]domain.Suggestion, 0, min(limit, len(ranked)))
	for _, item := range ranked {
		if len(out) == limit {
			break
		}
		out = append(out, item.suggestion)
	}
	return out
}

func matchTier(needle, name string) int {
	switch {
	case needle == "":
		return tierOther
	case name == needle:
		return tierExact
	case strings.HasPrefix(name, needle):
		return tierPrefix
	}
	for _, word := range strings.FieldsFunc(name, isWordSeparator) {
		if strings.HasPrefix(word, needle) {
			return tierWordPrefix
		}
	}
	if strings.Contains(name, needle) {
		return tierSubstring
	}
	return tierOther
}

func isWordSeparator(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r)
}
