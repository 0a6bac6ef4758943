package search

import (
	"cmp"
	"slices"

	"github.com/poiesic/schedex/core"
)

// ResolveMode returns the mode that actually runs. Semantic and hybrid
// requests fall back to text when semantic ranking is unavailable.
func ResolveMode(requested Mode, semanticAvailable bool) Mode {
	if requested == ModeText || !semanticAvailable {
		return ModeText
	}
	return requested
}

// Weights are the hybrid blending constants.
type Weights struct {
	Text                float64
	Semantic            float64
	SingleSourcePenalty float64
}

// candidate is an item with its component and blended scores.
type candidate struct {
	item       *core.CatalogItem
	text       TextScore
	semantic   float64
	inText     bool
	inSemantic bool
	score      float64
}

// Blend computes the final score of every candidate for mode. In hybrid
// mode an item found by both rankers scores the weighted sum of both; an
// item found by one scores that ranker's weighted score times the single
// source penalty. Candidates with no score in mode are dropped.
func Blend(mode Mode, w Weights, candidates []*candidate) []*candidate {
	out := candidates[:0]
	for _, c := range candidates {
		switch mode {
		case ModeText:
			if !c.inText {
				continue
			}
			c.score = c.text.Score
		case ModeSemantic:
			if !c.inSemantic {
				continue
			}
			c.score = c.semantic
		default:
			c.score = BlendScores(w, c.text.Score, c.inText, c.semantic, c.inSemantic)
		}
		out = append(out, c)
	}
	return out
}

// BlendScores combines one item's text and semantic scores.
func BlendScores(w Weights, text float64, inText bool, semantic float64, inSemantic bool) float64 {
	switch {
	case inText && inSemantic:
		return w.Text*text + w.Semantic*semantic
	case inText:
		return w.Text * text * w.SingleSourcePenalty
	case inSemantic:
		return w.Semantic * semantic * w.SingleSourcePenalty
	}
	return 0
}

// sortCandidates orders candidates by key. Every key falls back to
// ascending item number so ordering is deterministic.
func sortCandidates(candidates []*candidate, key SortKey) {
	slices.SortStableFunc(candidates, func(a, b *candidate) int {
		var c int
		switch key {
		case SortRelevance:
			c = cmp.Compare(b.score, a.score)
		case SortFeeAsc:
			c = cmp.Compare(a.item.Fees.Schedule, b.item.Fees.Schedule)
		case SortFeeDesc:
			c = cmp.Compare(b.item.Fees.Schedule, a.item.Fees.Schedule)
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.item.Number, b.item.Number)
	})
}

// paginate returns the page at offset of at most limit entries.
func paginate[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return nil
	}
	return all[offset:min(offset+limit, len(all))]
}

func (c *candidate) result(mode Mode) *Result {
	r := &Result{
		Item:          c.item.Projection(),
		Score:         c.score,
		TextScore:     c.text.Score,
		SemanticScore: c.semantic,
		Mode:          mode,
		MatchType:     MatchPartial,
		Highlight:     Highlight(c.item.Description, c.text.Spans),
	}
	switch {
	case c.text.NumberMatch:
		r.MatchType = MatchExact
	case c.inText && c.text.Coverage == 1:
		r.MatchType = MatchText
	}
	return r
}
