package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/poiesic/schedex/core"
)

func TestResolveMode(t *testing.T) {
	tests := []struct {
		requested Mode
		available bool
		want      Mode
	}{
		{ModeText, true, ModeText},
		{ModeSemantic, true, ModeSemantic},
		{ModeHybrid, true, ModeHybrid},
		{ModeText, false, ModeText},
		{ModeSemantic, false, ModeText},
		{ModeHybrid, false, ModeText},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveMode(tt.requested, tt.available), "%s available=%v", tt.requested, tt.available)
	}
}

func TestBlendScores_ConsensusBoost(t *testing.T) {
	w := Weights{Text: 0.4, Semantic: 0.6, SingleSourcePenalty: 0.8}

	for _, raw := range []float64{0.1, 0.5, 0.9, 1} {
		both := BlendScores(w, raw, true, raw, true)
		textOnly := BlendScores(w, raw, true, 0, false)
		semanticOnly := BlendScores(w, 0, false, raw, true)

		assert.GreaterOrEqual(t, both, w.Text*raw)
		assert.GreaterOrEqual(t, both, w.Semantic*raw)
		assert.Greater(t, both, textOnly)
		assert.Greater(t, both, semanticOnly)
	}

	// Consensus beats a single source even when the other side is weak
	assert.Greater(t, BlendScores(w, 0.01, true, 0.7, true), BlendScores(w, 0, false, 0.7, true))
	assert.Zero(t, BlendScores(w, 0, false, 0, false))
}

func TestBlend_ModeSelectsSources(t *testing.T) {
	w := Weights{Text: 0.4, Semantic: 0.6, SingleSourcePenalty: 0.8}
	build := func() []*candidate {
		return []*candidate{
			{item: &core.CatalogItem{Number: 1}, text: TextScore{Score: 0.5}, inText: true},
			{item: &core.CatalogItem{Number: 2}, semantic: 0.9, inSemantic: true},
			{item: &core.CatalogItem{Number: 3}, text: TextScore{Score: 0.5}, inText: true, semantic: 0.9, inSemantic: true},
		}
	}
	nums := func(cs []*candidate) []core.ItemNumber {
		var out []core.ItemNumber
		for _, c := range cs {
			out = append(out, c.item.Number)
		}
		return out
	}

	assert.Equal(t, []core.ItemNumber{1, 3}, nums(Blend(ModeText, w, build())))
	assert.Equal(t, []core.ItemNumber{2, 3}, nums(Blend(ModeSemantic, w, build())))

	hybrid := Blend(ModeHybrid, w, build())
	assert.Len(t, hybrid, 3)
	assert.InDelta(t, 0.4*0.5+0.6*0.9, hybrid[2].score, 1e-9)
}

func TestSortCandidates(t *testing.T) {
	build := func() []*candidate {
		return []*candidate{
			{item: &core.CatalogItem{Number: 30, Fees: core.Fees{Schedule: 10}}, score: 0.5},
			{item: &core.CatalogItem{Number: 10, Fees: core.Fees{Schedule: 20}}, score: 0.5},
			{item: &core.CatalogItem{Number: 20, Fees: core.Fees{Schedule: 10}}, score: 0.9},
		}
	}

	tests := []struct {
		key  SortKey
		want []core.ItemNumber
	}{
		{SortRelevance, []core.ItemNumber{20, 10, 30}},
		{SortFeeAsc, []core.ItemNumber{20, 30, 10}},
		{SortFeeDesc, []core.ItemNumber{10, 20, 30}},
		{SortItemNumber, []core.ItemNumber{10, 20, 30}},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			cs := build()
			sortCandidates(cs, tt.key)
			var got []core.ItemNumber
			for _, c := range cs {
				got = append(got, c.item.Number)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSection(t *testing.T) {
	ranked := func() []*Result {
		return []*Result{
			{Item: &core.CatalogItem{Number: 23}, Score: 0.7, MatchType: MatchText},
			{Item: &core.CatalogItem{Number: 10990}, Score: 0.6, MatchType: MatchPartial},
			{Item: &core.CatalogItem{Number: 36}, Score: 0.5, MatchType: MatchText},
		}
	}

	t.Run("number intent pulls the named item", func(t *testing.T) {
		exact, related := Section(ranked(), Classification{Intent: IntentExactItemNumber, Number: 10990}, 0.85, 0, 10)
		assert.Equal(t, []core.ItemNumber{10990}, numbers(exact))
		assert.Equal(t, MatchExact, exact[0].MatchType)
		assert.Equal(t, []core.ItemNumber{23, 36}, numbers(related))
	})

	t.Run("unknown number leaves exact empty", func(t *testing.T) {
		exact, related := Section(ranked(), Classification{Intent: IntentItemNumberText, Number: 5}, 0.85, 0, 10)
		assert.Empty(t, exact)
		assert.Len(t, related, 3)
	})

	t.Run("text intent below threshold", func(t *testing.T) {
		exact, related := Section(ranked(), Classification{Intent: IntentTextSearch}, 0.85, 0, 10)
		assert.Empty(t, exact)
		assert.Len(t, related, 3)
	})

	t.Run("text intent above threshold", func(t *testing.T) {
		exact, related := Section(ranked(), Classification{Intent: IntentTextSearch}, 0.65, 0, 10)
		assert.Equal(t, []core.ItemNumber{23}, numbers(exact))
		assert.Equal(t, []core.ItemNumber{10990, 36}, numbers(related))
	})

	t.Run("exact match uses pagination budget", func(t *testing.T) {
		exact, related := Section(ranked(), Classification{Intent: IntentExactItemNumber, Number: 23}, 0.85, 0, 2)
		assert.Len(t, exact, 1)
		assert.Equal(t, []core.ItemNumber{10990}, numbers(related))
	})

	t.Run("later pages skip the exact slot", func(t *testing.T) {
		exact, related := Section(ranked(), Classification{Intent: IntentExactItemNumber, Number: 23}, 0.85, 1, 10)
		assert.Empty(t, exact)
		assert.Equal(t, []core.ItemNumber{10990, 36}, numbers(related))
	})
}

func TestSection_PagesCoverEveryItem(t *testing.T) {
	ranked := func() []*Result {
		rs := make([]*Result, 5)
		for i := range rs {
			rs[i] = &Result{Item: &core.CatalogItem{Number: core.ItemNumber(i + 1)}, Score: 0.9 - float64(i)/10}
		}
		return rs
	}

	tests := []struct {
		name  string
		class Classification
		limit int
	}{
		{"exact first", Classification{Intent: IntentExactItemNumber, Number: 1}, 2},
		{"exact in the middle", Classification{Intent: IntentExactItemNumber, Number: 3}, 2},
		{"exact last", Classification{Intent: IntentItemNumberText, Number: 5}, 3},
		{"single slot pages", Classification{Intent: IntentExactItemNumber, Number: 2}, 1},
		{"no exact match", Classification{Intent: IntentTextSearch}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := map[core.ItemNumber]int{}
			for offset := 0; offset < 5; offset += tt.limit {
				exact, related := Section(ranked(), tt.class, 0.95, offset, tt.limit)
				assert.LessOrEqual(t, len(exact)+len(related), tt.limit)
				for _, r := range append(exact, related...) {
					seen[r.Item.Number]++
				}
			}
			for n := core.ItemNumber(1); n <= 5; n++ {
				assert.Equal(t, 1, seen[n], "item %d", n)
			}
		})
	}
}
