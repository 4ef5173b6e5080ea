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


// Package retrieval finds interpretation fragments relevant to a dream.
//
// The Retriever tries three strategies in order and answers with the first
// that yields anything:
//   - Theme association: precomputed fragment-theme links for the dream's
//     matched themes
//   - Semantic: vector similarity between the query and fragment embeddings
//   - Lexical: plain keyword search over fragment text
//
// A tier that errors is logged and skipped, never surfaced to the caller;
// an empty result with MethodNone is the worst possible outcome. The
// Result records which tier answered so callers can tell a strong match
// from a last-resort one.
package retrieval
