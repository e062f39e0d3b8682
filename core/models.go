package core

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// EmbeddingVector is a dense embedding. Every vector stored in one index has the same length.
type EmbeddingVector = []float32

// Ordinal is the zero-based position of an entry in the parallel vector index and document store.
type Ordinal int

// Reserved metadata keys.
const (
	MetaOwningEntityID = "meeting_id"
	MetaDisplayName    = "filename"
)

// Metadata describes the owner of an indexed document.
// OwningEntityID and DisplayName are required at indexing time; Extra carries
// any other fields and is flattened next to them when serialized.
//
// Numbers read from JSON are kept as json.Number so they are written back
// unchanged, including an owning entity id that was stored as a number.
type Metadata struct {
	OwningEntityID string
	DisplayName    string
	Extra          map[string]any

	numericOwner bool
}

// MarshalJSON writes the metadata as a single flat object.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+2)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.OwningEntityID != "" {
		if m.numericOwner && isNumber(m.OwningEntityID) {
			out[MetaOwningEntityID] = json.Number(m.OwningEntityID)
		} else {
			out[MetaOwningEntityID] = m.OwningEntityID
		}
	}
	if m.DisplayName != "" {
		out[MetaDisplayName] = m.DisplayName
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a flat object. The owning entity id may be stored as a
// JSON string or number.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*m = Metadata{}
	for k, v := range raw {
		switch k {
		case MetaOwningEntityID:
			id, numeric, err := ownerString(v)
			if err != nil {
				return err
			}
			m.OwningEntityID = id
			m.numericOwner = numeric
		case MetaDisplayName:
			name, ok := v.(string)
			if !ok && v != nil {
				return fmt.Errorf("%s must be a string, got %T", MetaDisplayName, v)
			}
			m.DisplayName = name
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]any)
			}
			m.Extra[k] = v
		}
	}
	return nil
}

func ownerString(v any) (id string, numeric bool, err error) {
	switch t := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return t, false, nil
	case json.Number:
		return t.String(), true, nil
	default:
		return "", false, fmt.Errorf("%s must be a string or number, got %T", MetaOwningEntityID, v)
	}
}

// isNumber reports whether s is a JSON number literal.
func isNumber(s string) bool {
	if s == "" || strings.TrimSpace(s) != s {
		return false
	}
	if c := s[0]; c != '-' && (c < '0' || c > '9') {
		return false
	}
	return json.Valid([]byte(s))
}

// DocumentRecord is one indexed document. It is immutable once appended.
type DocumentRecord struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// QueryResult is a single ranked search hit, one per owning entity.
// Lower Rank is better.
type QueryResult struct {
	OwningEntityID string `json:"id"`
	DisplayName    string `json:"filename"`
	Snippet        string `json:"snippet"`
	Rank           int    `json:"rank"`
}

// Subquery is one lower-cased fragment of a decomposed user query.
type Subquery string

// Neighbor is a nearest-neighbor hit from the vector index.
type Neighbor struct {
	Ordinal  Ordinal
	Distance float32
}
