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


// Package ai provides abstractions for the embedding provider used by the
// catalog's semantic search and ingestion pipeline.
//
// The provider may be absent or unavailable at any time. Callers treat an
// Embedder error as "semantic ranking unavailable" and fall back to text.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible embeddings through langchaingo
//   - ai/mock: deterministic test doubles
//
// Public constructors in ai/openai return interface types. The mock package
// returns concrete types so tests can inject behavior and read call counts.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithEmbeddingModel("text-embedding-3-small"))
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "skin lesion excision")
package ai
