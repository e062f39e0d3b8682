package core

import (
	"encoding/json"
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "plain text", content: "test content"},
		{name: "empty string", content: ""},
		{name: "model prefixed", content: "all-minilm\x00we discussed the budget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("content1")
	id2 := IDFromContent("content2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestMetadata_MarshalJSON(t *testing.T) {
	meta := Metadata{
		OwningEntityID: "42",
		DisplayName:    "standup.wav",
		Extra:          map[string]any{"duration": 12.5},
	}

	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if flat["meeting_id"] != "42" {
		t.Errorf("meeting_id = %v, want 42", flat["meeting_id"])
	}
	if flat["filename"] != "standup.wav" {
		t.Errorf("filename = %v, want standup.wav", flat["filename"])
	}
	if flat["duration"] != 12.5 {
		t.Errorf("duration = %v, want 12.5", flat["duration"])
	}
}

func TestMetadata_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantOwner string
		wantName  string
		wantExtra int
		wantErr   bool
	}{
		{
			name:      "numeric meeting id",
			input:     `{"meeting_id": 7, "filename": "a.wav"}`,
			wantOwner: "7",
			wantName:  "a.wav",
		},
		{
			name:      "string meeting id with extra fields",
			input:     `{"meeting_id": "abc", "filename": "b.wav", "lang": "en"}`,
			wantOwner: "abc",
			wantName:  "b.wav",
			wantExtra: 1,
		},
		{
			name:     "missing owner is tolerated",
			input:    `{"filename": "c.wav"}`,
			wantName: "c.wav",
		},
		{
			name:    "owner of wrong type",
			input:   `{"meeting_id": [1]}`,
			wantErr: true,
		},
		{
			name:    "display name of wrong type",
			input:   `{"meeting_id": 1, "filename": 3}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var meta Metadata
			err := json.Unmarshal([]byte(tt.input), &meta)
			if tt.wantErr {
				if err == nil {
					t.Error("Unmarshal() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if meta.OwningEntityID != tt.wantOwner {
				t.Errorf("OwningEntityID = %q, want %q", meta.OwningEntityID, tt.wantOwner)
			}
			if meta.DisplayName != tt.wantName {
				t.Errorf("DisplayName = %q, want %q", meta.DisplayName, tt.wantName)
			}
			if len(meta.Extra) != tt.wantExtra {
				t.Errorf("len(Extra) = %d, want %d", len(meta.Extra), tt.wantExtra)
			}
		})
	}
}

func TestMetadata_NumericOwnerRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"large integer owner", `{"meeting_id":9007199254740993,"filename":"a.wav"}`, `{"filename":"a.wav","meeting_id":9007199254740993}`},
		{"string owner stays string", `{"meeting_id":"7","filename":"a.wav"}`, `{"filename":"a.wav","meeting_id":"7"}`},
		{"numeric extra", `{"meeting_id":1,"filename":"a.wav","size":12345678901234567}`, `{"filename":"a.wav","meeting_id":1,"size":12345678901234567}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var meta Metadata
			if err := json.Unmarshal([]byte(tt.input), &meta); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			data, err := json.Marshal(meta)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Marshal() = %s, want %s", data, tt.want)
			}
		})
	}

	t.Run("edited owner falls back to string", func(t *testing.T) {
		var meta Metadata
		if err := json.Unmarshal([]byte(`{"meeting_id":7,"filename":"a.wav"}`), &meta); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		meta.OwningEntityID = "weekly-7"
		data, err := json.Marshal(meta)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		if string(data) != `{"filename":"a.wav","meeting_id":"weekly-7"}` {
			t.Errorf("Marshal() = %s", data)
		}
	})
}

func TestDocumentRecord_JSONShape(t *testing.T) {
	rec := DocumentRecord{
		ID:   "1",
		Text: "hello",
		Metadata: Metadata{
			OwningEntityID: "1",
			DisplayName:    "hello.wav",
		},
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"id":"1","text":"hello","metadata":{"filename":"hello.wav","meeting_id":"1"}}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}
