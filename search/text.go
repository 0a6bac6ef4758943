package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/schedex/core"
)

// Field weights for lexical matches. An item number hit outranks all of them.
const (
	weightShortDescription = 3.0
	weightDescription      = 2.0
	weightCategory         = 1.0

	maxTextScore    = 0.99
	minPrefixLength = 4
)

// Stop words ignored when matching query terms
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "or": true, "other": true, "than": true,
	"s": true,
}

// word is a cleaned token and its byte range in the original text.
type word struct {
	text       string
	start, end int
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// joinsDigits reports whether the separator at text[i] sits between two
// digits, as in "1.5" or "1,250".
func joinsDigits(text string, i int) bool {
	if text[i] != '.' && text[i] != ',' || i == 0 || i+1 >= len(text) {
		return false
	}
	prev, _ := utf8.DecodeLastRuneInString(text[:i])
	next, _ := utf8.DecodeRuneInString(text[i+1:])
	return unicode.IsDigit(prev) && unicode.IsDigit(next)
}

// words splits text into lowercased runs of letters and digits, so
// "knee-replacement" and "hip/knee" yield one word per part. Byte offsets
// are kept for highlighting.
func words(text string) []word {
	var out []word
	start := -1
	for i, r := range text {
		switch {
		case isWordRune(r):
			if start < 0 {
				start = i
			}
		case start >= 0 && joinsDigits(text, i):
		case start >= 0:
			out = append(out, word{text: strings.ToLower(text[start:i]), start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, word{text: strings.ToLower(text[start:]), start: start, end: len(text)})
	}
	return out
}

// tokenizeAndFilter splits text into lowercased words without punctuation or stop words
func tokenizeAndFilter(text string) []string {
	ws := words(text)
	filtered := make([]string, 0, len(ws))
	for _, w := range ws {
		if !stopWords[w.text] {
			filtered = append(filtered, w.text)
		}
	}
	return filtered
}

// Span is a highlighted byte range [Start, End) of an item description.
type Span struct {
	Start int
	End   int
}

// TextScore is the lexical relevance of one item.
type TextScore struct {
	Score       float64 // in [0, 1]; 1 only for an item number hit
	Coverage    float64 // fraction of query terms found
	NumberMatch bool
	Spans       []Span
}

// TextRanker scores items lexically against a query. It is deterministic
// and performs no I/O.
type TextRanker struct {
	terms   []string
	numbers map[core.ItemNumber]struct{}
}

// NewTextRanker prepares query for scoring. Query terms are deduplicated.
func NewTextRanker(query string) *TextRanker {
	r := &TextRanker{numbers: make(map[core.ItemNumber]struct{})}
	seen := make(map[string]bool)
	for _, term := range tokenizeAndFilter(query) {
		if seen[term] {
			continue
		}
		seen[term] = true
		r.terms = append(r.terms, term)
		if n, err := core.ParseItemNumber(term); err == nil {
			r.numbers[n] = struct{}{}
		}
	}
	return r
}

// Empty reports whether the query had no usable terms.
func (r *TextRanker) Empty() bool {
	return len(r.terms) == 0
}

// Score rates item against the query. A zero Score means no match.
func (r *TextRanker) Score(item *core.CatalogItem) TextScore {
	if len(r.terms) == 0 {
		return TextScore{}
	}

	descWords := words(item.Description)
	if _, ok := r.numbers[item.Number]; ok {
		return TextScore{
			Score:       1,
			Coverage:    1,
			NumberMatch: true,
			Spans:       r.spans(descWords),
		}
	}

	fields := []field{
		newField(weightShortDescription, tokenizeAndFilter(item.ShortDescription)),
		newField(weightDescription, wordTexts(descWords)),
		newField(weightCategory, tokenizeAndFilter(item.Category)),
	}

	var total float64
	matched := 0
	for _, term := range r.terms {
		best := 0.0
		for _, f := range fields {
			credit := 0.0
			if c := f.counts[term]; c > 0 {
				credit = f.weight * saturate(c)
			} else if c := prefixCount(f.tokens, term); c > 0 {
				credit = 0.5 * f.weight * saturate(c)
			}
			best = max(best, credit)
		}
		if best > 0 {
			matched++
			total += best
		}
	}
	if matched == 0 {
		return TextScore{}
	}

	score := total / (float64(len(r.terms)) * weightShortDescription)
	return TextScore{
		Score:    min(score, maxTextScore),
		Coverage: float64(matched) / float64(len(r.terms)),
		Spans:    r.spans(descWords),
	}
}

type field struct {
	weight float64
	tokens []string
	counts map[string]int
}

func newField(weight float64, tokens []string) field {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return field{weight: weight, tokens: tokens, counts: counts}
}

// saturate maps an occurrence count to a term frequency factor in (0, 1].
func saturate(count int) float64 {
	return min(1, 0.7+0.1*float64(count-1))
}

func wordTexts(ws []word) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		if !stopWords[w.text] {
			out = append(out, w.text)
		}
	}
	return out
}

func prefixCount(tokens []string, term string) int {
	if len(term) < minPrefixLength {
		return 0
	}
	n := 0
	for _, t := range tokens {
		if strings.HasPrefix(t, term) {
			n++
		}
	}
	return n
}

func (r *TextRanker) matches(token string) bool {
	for _, term := range r.terms {
		if token == term || (len(term) >= minPrefixLength && strings.HasPrefix(token, term)) {
			return true
		}
	}
	return false
}

func (r *TextRanker) spans(descWords []word) []Span {
	var spans []Span
	for _, w := range descWords {
		if r.matches(w.text) {
			spans = append(spans, Span{Start: w.start, End: w.end})
		}
	}
	return spans
}

// Highlight wraps each span of text in <mark> tags. Spans must be sorted and
// non-overlapping, as TextRanker produces them.
func Highlight(text string, spans []Span) string {
	if len(spans) == 0 {
		return ""
	}
	var b strings.Builder
	last := 0
	for _, s := range spans {
		if s.Start < last || s.End > len(text) {
			continue
		}
		b.WriteString(text[last:s.Start])
		b.WriteString("<mark>")
		b.WriteString(text[s.Start:s.End])
		b.WriteString("</mark>")
		last = s.End
	}
	b.WriteString(text[last:])
	return b.String()
}
