// Package record defines the on-disk chunk record, the persisted unit a
// store writes one file per. A ChunkRecord round-trips through JSON
// preserving any fields it doesn't recognize, so a future format addition
// (or a record written by a newer/older version of vecstore) survives a
// read-modify-write cycle untouched.
package record

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChunkRecord is one persisted chunk: the contents of an <id>.json file.
type ChunkRecord struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]any
	CreatedAt time.Time

	// extra carries any JSON fields this version of vecstore doesn't know
	// about, so they survive a load -> mutate -> save round trip.
	extra map[string]json.RawMessage
}

// D is the fixed embedding dimension vecstore operates at.
const D = 768

// Validate checks the chunk-record invariant: a nonempty embedding must
// have exactly D components.
func (c *ChunkRecord) Validate() error {
	if len(c.Embedding) != 0 && len(c.Embedding) != D {
		return fmt.Errorf("embedding has %d dims, want %d", len(c.Embedding), D)
	}
	return nil
}

// wireFields lists the JSON keys this struct understands; everything else
// round-trips via extra.
var wireFields = map[string]bool{
	"Id": true, "Content": true, "Embedding": true,
	"Metadata": true, "CreatedAt": true,
}

// MarshalJSON emits the chunk record as indented-friendly JSON (callers
// that want indentation wrap this with json.MarshalIndent), merging back
// any unrecognized fields captured at unmarshal time.
func (c ChunkRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(c.extra)+5)
	for k, v := range c.extra {
		out[k] = v
	}

	fields := map[string]any{
		"Id":        c.ID,
		"Content":   c.Content,
		"Embedding": c.Embedding,
		"Metadata":  c.Metadata,
		"CreatedAt": c.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		out[k] = raw
	}

	return json.Marshal(out)
}

// UnmarshalJSON parses a chunk record, stashing any field it doesn't
// recognize in extra for later re-emission.
func (c *ChunkRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["Id"]; ok {
		if err := json.Unmarshal(v, &c.ID); err != nil {
			return fmt.Errorf("field Id: %w", err)
		}
	}
	if v, ok := raw["Content"]; ok {
		if err := json.Unmarshal(v, &c.Content); err != nil {
			return fmt.Errorf("field Content: %w", err)
		}
	}
	if v, ok := raw["Embedding"]; ok {
		if err := json.Unmarshal(v, &c.Embedding); err != nil {
			return fmt.Errorf("field Embedding: %w", err)
		}
	}
	if v, ok := raw["Metadata"]; ok {
		if err := json.Unmarshal(v, &c.Metadata); err != nil {
			return fmt.Errorf("field Metadata: %w", err)
		}
	}
	if v, ok := raw["CreatedAt"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("field CreatedAt: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("field CreatedAt: %w", err)
		}
		c.CreatedAt = t
	}

	c.extra = make(map[string]json.RawMessage)
	for k, v := range raw {
		if !wireFields[k] {
			c.extra[k] = v
		}
	}
	return nil
}

// LooksLikeRecord does a cheap structural sniff used by the rebuild scan,
// skipping files that are empty or don't look like a JSON object before
// paying for a full parse.
func LooksLikeRecord(data []byte) bool {
	trimmed := trimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{' && trimmed[len(trimmed)-1] == '}'
}

func trimSpace(b []byte) []byte {
	start := 0
	for start < len(b) && isSpace(b[start]) {
		start++
	}
	end := len(b)
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
