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

// Package storage defines the persistence contracts for the search corpus.
//
// A corpus is two parallel structures that share an ordinal space: a
// VectorIndex holding one embedding per document and a DocumentStore holding
// the document text and metadata. Ordinal i in one always refers to ordinal i
// in the other.
//
// Implementations live in subpackages:
//
//   - flat: exact L2 vector index persisted as a binary file
//   - jsonstore: document store persisted as a JSON array
//   - corpus: the paired index and store with locking and atomic append
//   - badger: BadgerDB-backed embedding cache
//
// This package also holds the shared sentinel errors and the mus-go codecs
// used for the binary formats.
//
// # Thread Safety
//
// VectorIndex and DocumentStore implementations are not safe for concurrent
// mutation on their own. corpus.Corpus serialises writers and lets readers
// run in parallel.
package storage
