package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	LangSpanish = "es"
	LangEnglish = "en"
	DefaultLang = LangSpanish
)

type Ingredient struct {
	ID           string            `json:"id" yaml:"id" bson:"id"`
	Names        map[string]string `json:"names" yaml:"names" bson:"names"`
	Category     string            `json:"category" yaml:"category" bson:"category"`
	AllowedUnits []string          `json:"allowedUnits" yaml:"allowedUnits" bson:"allowedUnits"`
}

// Validate checks the catalog record invariants. It does not modify the record;
// use Normalize first to trim values and drop duplicate units.
func (i Ingredient) Validate() error {
	if !IsIngredientID(i.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidID, i.ID)
	}
	hasName := false
	for lang, name := range i.Names {
		if strings.TrimSpace(lang) != "" && strings.TrimSpace(name) != "" {
			hasName = true
			break
		}
	}
	if !hasName {
		return fmt.Errorf("%w: ingredient %s has no names", ErrInvalidRecord, i.ID)
	}
	if strings.TrimSpace(i.Category) == "" {
		return fmt.Errorf("%w: ingredient %s has no category", ErrInvalidRecord, i.ID)
	}
	if len(i.AllowedUnits) == 0 {
		return fmt.Errorf("%w: ingredient %s has no allowed units", ErrInvalidRecord, i.ID)
	}
	return nil
}

// Normalize trims identifiers and names, lowercases language codes and removes
// empty or duplicate units while keeping their order.
func (i Ingredient) Normalize() Ingredient {
	out := Ingredient{
		ID:       strings.TrimSpace(i.ID),
		Category: strings.TrimSpace(i.Category),
	}
	if len(i.Names) > 0 {
		out.Names = make(map[string]string, len(i.Names))
		for lang, name := range i.Names {
			lang = strings.ToLower(strings.TrimSpace(lang))
			name = strings.TrimSpace(name)
			if lang == "" || name == "" {
				continue
			}
			out.Names[lang] = name
		}
	}
	seen := make(map[string]struct{}, len(i.AllowedUnits))
	for _, unit := range i.AllowedUnits {
		unit = strings.TrimSpace(unit)
		if unit == "" {
			continue
		}
		if _, ok := seen[unit]; ok {
			continue
		}
		seen[unit] = struct{}{}
		out.AllowedUnits = append(out.AllowedUnits, unit)
	}
	return out
}

// Name returns the display name for lang and whether the record has an entry
// for exactly that language.
func (i Ingredient) Name(lang string) (string, bool) {
	name, ok := i.Names[strings.ToLower(strings.TrimSpace(lang))]
	return name, ok && name != ""
}

// DisplayName falls back from lang to Spanish, English, the first remaining
// language in alphabetical order and finally the identifier.
func (i Ingredient) DisplayName(lang string) string {
	if name, ok := i.Name(lang); ok {
		return name
	}
	for _, candidate := range i.FallbackLangs() {
		if name := i.Names[candidate]; name != "" {
			return name
		}
	}
	return i.ID
}

// FallbackLangs lists the record's languages in fallback preference order.
func (i Ingredient) FallbackLangs() []string {
	langs := make([]string, 0, len(i.Names))
	for _, preferred := range []string{LangSpanish, LangEnglish} {
		if i.Names[preferred] != "" {
			langs = append(langs, preferred)
		}
	}
	rest := make([]string, 0, len(i.Names))
	for lang, name := range i.Names {
		if lang == LangSpanish || lang == LangEnglish || name == "" {
			continue
		}
		rest = append(rest, lang)
	}
	sort.Strings(rest)
	return append(langs, rest...)
}

func (i Ingredient) Clone() Ingredient {
	cloned := Ingredient{
		ID:       i.ID,
		Category: i.Category,
	}
	if i.Names != nil {
		cloned.Names = make(map[string]string, len(i.Names))
		for lang, name := range i.Names {
			cloned.Names[lang] = name
		}
	}
	if i.AllowedUnits != nil {
		cloned.AllowedUnits = append([]string(nil), i.AllowedUnits...)
	}
	return cloned
}

func (i Ingredient) AllowsUnit(unit string) bool {
	unit = strings.TrimSpace(unit)
	for _, allowed := range i.AllowedUnits {
		if strings.EqualFold(allowed, unit) {
			return true
		}
	}
	return false
}

// legacyIngredient covers the record shapes found in older catalog files:
// Spanish field names, a single name, and measures given either as plain
// strings or as {"name": "..."} objects.
type legacyIngredient struct {
	ID              string            `json:"id"`
	Names           map[string]string `json:"names"`
	Name            string            `json:"name"`
	Category        string            `json:"category"`
	Categoria       string            `json:"categoria"`
	AllowedUnits    []string          `json:"allowedUnits"`
	AllowedMeasures []measure         `json:"allowedMeasures"`
	StandardUnit    string            `json:"standardUnit"`
}

type measure string

func (m *measure) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*m = measure(plain)
		return nil
	}
	var object struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &object); err != nil {
		return fmt.Errorf("allowed measure must be a string or an object with a name: %w", err)
	}
	*m = measure(object.Name)
	return nil
}

func (i *Ingredient) UnmarshalJSON(data []byte) error {
	var raw legacyIngredient
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = raw.toIngredient()
	return nil
}

func (raw legacyIngredient) toIngredient() Ingredient {
	out := Ingredient{
		ID:       raw.ID,
		Names:    raw.Names,
		Category: raw.Category,
	}
	if out.Category == "" {
		out.Category = raw.Categoria
	}
	if len(out.Names) == 0 && strings.TrimSpace(raw.Name) != "" {
		out.Names = map[string]string{DefaultLang: raw.Name}
	}
	out.AllowedUnits = append(out.AllowedUnits, raw.AllowedUnits...)
	if len(out.AllowedUnits) == 0 {
		for _, m := range raw.AllowedMeasures {
			out.AllowedUnits = append(out.AllowedUnits, string(m))
		}
	}
	if len(out.AllowedUnits) == 0 && strings.TrimSpace(raw.StandardUnit) != "" {
		out.AllowedUnits = []string{raw.StandardUnit}
	}
	return out
}
