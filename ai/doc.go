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

// Package ai provides the embedding abstraction used by minutes.
//
// The index and the query engine depend only on the Embedder interface, so
// the concrete model behind it can be swapped without touching either.
//
// # Implementation Packages
//
//   - ai/openai: production embedder for OpenAI-compatible APIs (Ollama, vLLM, ...)
//   - ai/cached: decorator that serves repeated texts from a content-addressed cache
//   - ai/mock: test doubles with call counting
//   - ai/insights: staged recovery of summary JSON from free-form model output
//
// # Failure Semantics
//
// Every embedder returns an error wrapping ErrEmbedding when it cannot produce
// a vector, including for blank input. Indexing and search fail (or skip the
// affected subquery) instead of storing or searching a zero vector.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithEmbeddingModel("all-minilm"), ai.WithDimension(384))
//	embedder, err := openai.NewEmbedder(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vec, err := embedder.EmbedText(ctx, "quarterly budget review")
package ai
