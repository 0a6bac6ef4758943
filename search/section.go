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

// maxExactMatches caps the exact section.
const maxExactMatches = 1

// Section splits a ranked, filtered list into exact and related matches.
// For number intents the item with the classified number is exact; for
// text intent the highest scoring item is exact when its score reaches threshold.
// Pages tile the list formed by the exact match followed by the related
// items, so only the page at offset 0 carries the exact match and every
// later page starts one related item earlier than its offset.
func Section(ranked []*Result, c Classification, threshold float64, offset, limit int) (exact, related []*Result) {
	exactIdx := -1
	switch c.Intent {
	case IntentExactItemNumber, IntentItemNumberText:
		for i, r := range ranked {
			if r.Item.Number == c.Number {
				exactIdx = i
				r.MatchType = MatchExact
				break
			}
		}
	default:
		best := -1
		for i, r := range ranked {
			if best < 0 || r.Score > ranked[best].Score {
				best = i
			}
		}
		if best >= 0 && ranked[best].Score >= threshold {
			exactIdx = best
		}
	}

	if exactIdx < 0 {
		return nil, paginate(ranked, offset, limit)
	}

	rest := make([]*Result, 0, len(ranked)-1)
	rest = append(rest, ranked[:exactIdx]...)
	rest = append(rest, ranked[exactIdx+1:]...)

	if offset > 0 {
		return nil, paginate(rest, offset-maxExactMatches, limit)
	}
	if limit <= 0 {
		return nil, nil
	}
	exact = []*Result{ranked[exactIdx]}
	return exact, paginate(rest, 0, limit-maxExactMatches)
}
