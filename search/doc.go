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


// Package search implements hybrid lexical and semantic search over the
// fee-schedule catalog.
//
// A query is classified (ClassifyIntent), then ranked by a TextRanker over
// every stored item and, when an embedding provider is configured, by a
// SemanticRanker against the vector index. Both run concurrently; the
// semantic side has a fixed time budget. If it fails or times out the
// search silently runs in text mode and reports that as its effective mode.
//
// Hybrid scores blend both rankers with configurable weights. Items found by
// only one ranker are scaled down by a single-source penalty so consensus
// matches rank above them. Filters apply as a hard AND, and relevance ties
// break by ascending item number.
//
// SmartSearch additionally splits results into an exact section (the item
// a number query names, or a high-confidence text hit) and related matches.
//
// Basic usage:
//
//	searcher, err := search.NewSearcher(catalog, embedder)
//	if err != nil {
//	    return err
//	}
//
//	resp, err := searcher.Search(ctx, &search.Request{Query: "skin lesion excision"})
//	for _, r := range resp.Results {
//	    fmt.Printf("%d (%.2f): %s\n", r.Item.Number, r.Score, r.Item.Description)
//	}
package search
