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

package storage

import "errors"

var (
	// ErrDimensionMismatch indicates a vector whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrIndexLoad indicates the persisted vector index could not be read.
	ErrIndexLoad = errors.New("failed to load vector index")

	// ErrMetadataLoad indicates the persisted document store could not be read.
	ErrMetadataLoad = errors.New("failed to load document metadata")

	// ErrOutOfRange indicates an ordinal outside the document store.
	ErrOutOfRange = errors.New("ordinal out of range")

	// ErrCorrupted indicates the vector index and document store disagree on size.
	ErrCorrupted = errors.New("vector index and document store are out of sync")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData indicates that data was truncated during reading.
	ErrTruncatedData = errors.New("truncated data")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")
)
