// Copyright 2025 Somno Labs
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


// Package ai provides the embedding abstraction used throughout Oneiro.
//
// The pipeline, theme matcher and fragment retriever depend on the Embedder
// interface rather than a concrete client, so the embedding backend can be
// swapped without touching business logic.
//
// Two implementation sub-packages are included:
//
//   - ai/openai: production implementation for OpenAI-compatible APIs
//   - ai/mock: deterministic test doubles for unit testing without
//     external services
//
// Public constructors (openai.NewEmbedder) return the ai.Embedder interface
// to enforce abstraction. Test constructors (mock.NewMockEmbedder) return
// the concrete type so tests can inject behavior and assert call counts.
package ai
