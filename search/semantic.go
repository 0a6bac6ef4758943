// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package search

import (
	"context"
	"fmt"

	"github.com/poiesic/schedex/ai"
	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/reembed"
	"github.com/poiesic/schedex/storage"
)

// SemanticRanker scores items by cosine similarity between the query
// embedding and stored item embeddings.
type SemanticRanker struct {
	embedder      ai.Embedder
	index         storage.VectorIndex
	topK          int
	minSimilarity float64
}

// NewSemanticRanker returns nil when embedder is nil, meaning semantic
// ranking is unavailable.
func NewSemanticRanker(embedder ai.Embedder, index storage.VectorIndex, topK int, minSimilarity float64) *SemanticRanker {
	if embedder == nil || index == nil {
		return nil
	}
	return &SemanticRanker{
		embedder:      embedder,
		index:         index,
		topK:          topK,
		minSimilarity: minSimilarity,
	}
}

// Rank returns normalized similarities in [0, 1] keyed by item number.
// Items without an embedding never appear. Every failure is reported as
// ErrSemanticUnavailable.
func (r *SemanticRanker) Rank(ctx context.Context, query string) (map[core.ItemNumber]float64, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", ErrSemanticUnavailable)
	}

	vector, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", ErrSemanticUnavailable, err)
	}
	if err := reembed.CheckVector(vector, 0); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSemanticUnavailable, err)
	}
	vector = reembed.NormalizeVector(vector)

	matches, err := r.index.FindSimilar(ctx, vector, float32(2*r.minSimilarity-1), r.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: vector index: %w", ErrSemanticUnavailable, err)
	}

	scores := make(map[core.ItemNumber]float64, len(matches))
	for _, m := range matches {
		scores[m.Number] = normalizeSimilarity(m.Score)
	}
	return scores, nil
}

// normalizeSimilarity maps cosine similarity from [-1, 1] to [0, 1].
func normalizeSimilarity(s float32) float64 {
	v := (float64(s) + 1) / 2
	return min(max(v, 0), 1)
}
