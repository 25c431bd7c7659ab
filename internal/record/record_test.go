package record

import (
	"encoding/json"
	"testing"
	"time"
)

func TestChunkRecordRoundTrip(t *testing.T) {
	c := ChunkRecord{
		ID:        "abc123",
		Content:   "hello world",
		Embedding: make([]float32, D),
		Metadata:  map[string]any{"source_file": "a.md", "chunk_index": float64(0)},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	c.Embedding[0] = 0.5

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got ChunkRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.ID != c.ID || got.Content != c.Content {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(c.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, c.CreatedAt)
	}
	if len(got.Embedding) != D || got.Embedding[0] != 0.5 {
		t.Errorf("embedding mismatch: %v", got.Embedding)
	}
}

func TestChunkRecordPreservesUnknownFields(t *testing.T) {
	raw := `{"Id":"x","Content":"c","Embedding":[],"Metadata":{},"CreatedAt":"2026-01-01T00:00:00Z","Extra":"keepme"}`

	var c ChunkRecord
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	out, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal back: %v", err)
	}
	if back["Extra"] != "keepme" {
		t.Errorf("expected unknown field Extra to survive, got %v", back["Extra"])
	}
}

func TestValidateRejectsWrongDimension(t *testing.T) {
	c := ChunkRecord{Embedding: make([]float32, 10)}
	if err := c.Validate(); err == nil {
		t.Error("expected validation error for wrong embedding length")
	}
}

func TestValidateAllowsEmptyEmbedding(t *testing.T) {
	c := ChunkRecord{}
	if err := c.Validate(); err != nil {
		t.Errorf("empty embedding should be valid transiently: %v", err)
	}
}

func TestLooksLikeRecord(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"  ", false},
		{"{}", true},
		{`{"a":1}`, true},
		{"not json", false},
		{"{truncated", false},
	}
	for _, tc := range cases {
		if got := LooksLikeRecord([]byte(tc.in)); got != tc.want {
			t.Errorf("LooksLikeRecord(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
