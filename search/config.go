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
	"fmt"
	"time"
)

// Config holds the tunable ranking constants.
type Config struct {
	TextWeight          float64
	SemanticWeight      float64
	SingleSourcePenalty float64       // applied to hybrid candidates found by only one ranker
	ExactThreshold      float64       // minimum score to promote a text hit to the exact section
	SemanticTimeout     time.Duration // budget for embedding the query and searching the index
	TopK                int           // semantic candidates considered per query
	MinSimilarity       float64       // normalized similarity floor for semantic candidates
}

func DefaultConfig() Config {
	return Config{
		TextWeight:          0.4,
		SemanticWeight:      0.6,
		SingleSourcePenalty: 0.8,
		ExactThreshold:      0.85,
		SemanticTimeout:     1500 * time.Millisecond,
		TopK:                200,
		MinSimilarity:       0.6,
	}
}

func (c Config) Validate() error {
	if c.TextWeight < 0 || c.SemanticWeight < 0 || c.TextWeight+c.SemanticWeight == 0 {
		return fmt.Errorf("weights must be non-negative and not both zero, got %.2f/%.2f", c.TextWeight, c.SemanticWeight)
	}
	if c.SingleSourcePenalty <= 0 || c.SingleSourcePenalty > 1 {
		return fmt.Errorf("single source penalty must be in (0, 1], got %.2f", c.SingleSourcePenalty)
	}
	if c.ExactThreshold < 0 || c.ExactThreshold > 1 {
		return fmt.Errorf("exact threshold must be in [0, 1], got %.2f", c.ExactThreshold)
	}
	if c.SemanticTimeout <= 0 {
		return fmt.Errorf("semantic timeout must be positive, got %s", c.SemanticTimeout)
	}
	if c.TopK < 1 {
		return fmt.Errorf("top-k must be positive, got %d", c.TopK)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("min similarity must be in [0, 1], got %.2f", c.MinSimilarity)
	}
	return nil
}
