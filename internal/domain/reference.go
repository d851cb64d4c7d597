package domain

import "strings"

const IngredientIDLength = 6

type ReferenceKind int

const (
	RefByName ReferenceKind = iota
	RefByID
)

func (k ReferenceKind) String() string {
	if k == RefByID {
		return "id"
	}
	return "name"
}

// Reference points a recipe line at an ingredient. It is classified once by
// ParseReference; consumers switch on Kind instead of re-inspecting the text.
type Reference struct {
	Kind  ReferenceKind `json:"kind"`
	Value string        `json:"value"`
}

func ByID(id string) Reference {
	return Reference{Kind: RefByID, Value: id}
}

func ByName(text string) Reference {
	return Reference{Kind: RefByName, Value: text}
}

// ParseReference classifies raw as an identifier reference when it is exactly
// six ASCII digits after trimming, and as a legacy name reference otherwise.
func ParseReference(raw string) Reference {
	value := strings.TrimSpace(raw)
	if IsIngredientID(value) {
		return ByID(value)
	}
	return ByName(value)
}

func ParseReferences(raw []string) []Reference {
	refs := make([]Reference, 0, len(raw))
	for _, item := range raw {
		refs = append(refs, ParseReference(item))
	}
	return refs
}

func (r Reference) IsID() bool {
	return r.Kind == RefByID
}

func (r Reference) String() string {
	return r.Kind.String() + ":" + r.Value
}

// IsIngredientID reports whether value matches ^\d{6}$ using ASCII digits only.
func IsIngredientID(value string) bool {
	if len(value) != IngredientIDLength {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}

// RecipeIngredient is one line of a recipe's ingredient list.
type RecipeIngredient struct {
	Ref      Reference
	Quantity float64
	Unit     string
}

func NewRecipeIngredient(raw string, quantity float64, unit string) RecipeIngredient {
	return RecipeIngredient{
		Ref:      ParseReference(raw),
		Quantity: quantity,
		Unit:     strings.TrimSpace(unit),
	}
}
