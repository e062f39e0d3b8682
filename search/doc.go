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

// Package search provides hybrid semantic and keyword search over a corpus.
//
// The Searcher runs a multi-stage pipeline for every query:
//   - Decomposition of the query into subqueries on " and " and commas
//   - Nearest-neighbour search per subquery, oversampled to survive filtering
//   - Literal keyword containment filtering of each candidate's text
//   - First-hit-wins merge keyed by owning entity, with a snippet per hit
//
// Results are ordered by the position at which each entity was first found
// and truncated to the requested count. A SearchMonitor can observe every
// stage.
package search
