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

package core

import (
	"fmt"
	"strings"
)

// ValidateDocument validates a DocumentRecord before it is indexed.
//
// Validation rules:
//   - Text must not be blank
//   - Metadata.OwningEntityID must not be blank
//   - Metadata.DisplayName must not be blank
//
// NOT validated:
//   - ID (assigned by the ingestion pipeline when empty)
//   - Metadata.Extra
//
// Records loaded from disk are not validated; query-time filtering skips
// records that have no owner.
func ValidateDocument(record *DocumentRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidDocument)
	}

	if strings.TrimSpace(record.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyText)
	}

	if err := ValidateMetadata(record.Metadata); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return nil
}

// ValidateMetadata checks the required metadata fields.
func ValidateMetadata(meta Metadata) error {
	if strings.TrimSpace(meta.OwningEntityID) == "" {
		return ErrMissingOwner
	}
	if strings.TrimSpace(meta.DisplayName) == "" {
		return ErrMissingDisplayName
	}
	return nil
}
