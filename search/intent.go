package search

import (
	"fmt"
	"strings"

	"github.com/poiesic/schedex/core"
)

// Intent classifies what a query names.
type Intent string

const (
	IntentExactItemNumber Intent = "exact_item_number"
	IntentItemNumberText  Intent = "item_number_text"
	IntentTextSearch      Intent = "text_search"
)

// ParseIntent validates an intent hint. An empty string is a valid "no hint".
func ParseIntent(s string) (Intent, error) {
	switch i := Intent(strings.ToLower(strings.TrimSpace(s))); i {
	case "", IntentExactItemNumber, IntentItemNumberText, IntentTextSearch:
		return i, nil
	}
	return "", fmt.Errorf("%w: unknown intent %q", ErrInvalidRequest, s)
}

// Classification is the outcome of ClassifyIntent.
type Classification struct {
	Intent Intent
	Number core.ItemNumber // zero unless the intent names an item
	Text   string          // descriptive text following the number, or the whole query
}

// ClassifyIntent decides whether query names an item number, an item number
// followed by text, or is free text. A non-empty hint overrides the
// classification when the query supports it; a number intent without a
// parseable number falls back to text search.
func ClassifyIntent(query string, hint Intent) Classification {
	query = strings.TrimSpace(query)
	head, rest, _ := strings.Cut(query, " ")
	rest = strings.TrimSpace(rest)

	number, err := core.ParseItemNumber(head)
	if err != nil {
		return Classification{Intent: IntentTextSearch, Text: query}
	}

	c := Classification{Intent: IntentExactItemNumber, Number: number}
	if rest != "" {
		c.Intent = IntentItemNumberText
		c.Text = rest
	}

	switch hint {
	case IntentTextSearch:
		return Classification{Intent: IntentTextSearch, Text: query}
	case IntentExactItemNumber, IntentItemNumberText:
		c.Intent = hint
	}
	return c
}
