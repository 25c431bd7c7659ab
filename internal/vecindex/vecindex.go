// Package vecindex implements the in-memory vector index: a
// concurrent id -> (embedding, file path) map with binary persistence and a
// rebuild-from-chunk-files fallback. The binary framing helpers below use a
// length-prefixed read/write accumulator; the index does a flat scan rather
// than an approximate nearest-neighbor structure (internal/simkernel.TopK
// does the scoring).
package vecindex

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/screenager/vecstore/internal/fsx"
	"github.com/screenager/vecstore/internal/record"
	"github.com/screenager/vecstore/internal/verr"
)

// binVersion is the only version vecindex currently understands; any other
// value read from disk triggers a rebuild.
const binVersion = uint32(1)

// Entry is one in-memory index record.
type Entry struct {
	ID        string
	Embedding []float32
	FilePath  string
}

// Index is the concurrent vector index for a single store directory.
type Index struct {
	mu      sync.RWMutex
	entries map[string]Entry
	logger  *slog.Logger
}

// New returns an empty index.
func New(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{entries: make(map[string]Entry), logger: logger}
}

// Add upserts id. It never fails for well-formed inputs.
func (idx *Index) Add(id string, embedding []float32, filePath string) {
	cp := make([]float32, len(embedding))
	copy(cp, embedding)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[id] = Entry{ID: id, Embedding: cp, FilePath: filePath}
}

// Remove deletes id, reporting whether it was present.
func (idx *Index) Remove(id string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.entries[id]; !ok {
		return false
	}
	delete(idx.entries, id)
	return true
}

// Get returns a copy of the entry for id, or ok=false if absent.
func (idx *Index) Get(id string) (Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.entries[id]
	return e, ok
}

// All returns a snapshot of every entry. The snapshot is safe to range over
// without holding the index lock, so a long-running search never blocks a
// concurrent writer.
func (idx *Index) All() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		out = append(out, e)
	}
	return out
}

// Count returns the number of entries.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Clear removes every entry.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = make(map[string]Entry)
}

// Hydrate reads and parses the chunk record the entry for id points at.
func (idx *Index) Hydrate(id string) (*record.ChunkRecord, error) {
	idx.mu.RLock()
	e, ok := idx.entries[id]
	idx.mu.RUnlock()
	if !ok {
		return nil, verr.New("vecindex.Hydrate", verr.NotFound, "no index entry for id %q", id)
	}

	data, err := os.ReadFile(e.FilePath)
	if err != nil {
		return nil, verr.Wrap("vecindex.Hydrate", verr.NotFound, err, "reading %s", e.FilePath)
	}
	var rec record.ChunkRecord
	if err := rec.UnmarshalJSON(data); err != nil {
		return nil, verr.Wrap("vecindex.Hydrate", verr.CorruptRecord, err, "parsing %s", e.FilePath)
	}
	return &rec, nil
}

// Persist atomically writes the binary index file.
func (idx *Index) Persist(path string) error {
	idx.mu.RLock()
	entries := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		entries = append(entries, e)
	}
	idx.mu.RUnlock()

	return fsx.WriteDurable(path, 0o644, func(f *os.File) error {
		w := &binWriter{w: f}
		w.u32(binVersion)
		w.u32(uint32(len(entries)))
		for _, e := range entries {
			w.str(e.ID)
			w.str(e.FilePath)
			w.u32(uint32(len(e.Embedding)))
			for _, v := range e.Embedding {
				w.f32(v)
			}
		}
		return w.err
	})
}

// LoadOrRebuild restores the index from path's binary file. If that file is
// missing, short, or carries an unsupported version, it falls back to
// RebuildFromDir(storeDir) and persists a fresh binary index, recovering
// from a corrupt index silently via rebuild.
func (idx *Index) LoadOrRebuild(path, storeDir string) (loaded, skipped int, err error) {
	if loadErr := idx.loadBinary(path); loadErr == nil {
		return idx.Count(), 0, nil
	} else {
		idx.logger.Warn("vector index unreadable, rebuilding from chunk files", "path", path, "cause", loadErr)
	}

	idx.Clear()
	loaded, skipped = idx.RebuildFromDir(storeDir)
	if err := idx.Persist(path); err != nil {
		return loaded, skipped, fmt.Errorf("persist rebuilt index: %w", err)
	}
	return loaded, skipped, nil
}

func (idx *Index) loadBinary(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := &binReader{r: f}
	version := r.u32()
	if r.err != nil {
		return fmt.Errorf("read version: %w", r.err)
	}
	if version != binVersion {
		return fmt.Errorf("unsupported index version %d", version)
	}
	count := r.u32()
	if r.err != nil {
		return fmt.Errorf("read entry count: %w", r.err)
	}

	entries := make(map[string]Entry, count)
	for i := uint32(0); i < count; i++ {
		id := r.str()
		filePath := r.str()
		n := r.u32()
		if r.err != nil {
			return fmt.Errorf("read entry %d header: %w", i, r.err)
		}
		vec := make([]float32, n)
		for j := range vec {
			vec[j] = r.f32()
		}
		if r.err != nil {
			return fmt.Errorf("read entry %d embedding: %w", i, r.err)
		}
		entries[id] = Entry{ID: id, Embedding: vec, FilePath: filePath}
	}

	idx.mu.Lock()
	idx.entries = entries
	idx.mu.Unlock()
	return nil
}

// RebuildFromDir scans <storeDir>/*.json and <storeDir>/documents/*.json,
// loading every well-formed chunk record with a full-dimension embedding.
// It returns the number loaded and the number skipped (empty, malformed,
// or missing/short embedding).
func (idx *Index) RebuildFromDir(storeDir string) (loaded, skipped int) {
	idx.mu.Lock()
	idx.entries = make(map[string]Entry)
	idx.mu.Unlock()

	candidates := append(
		globJSON(filepath.Join(storeDir, "*.json")),
		globJSON(filepath.Join(storeDir, "documents", "*.json"))...,
	)

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			idx.logger.Warn("rebuild: unreadable chunk file, skipping", "path", path, "cause", err)
			skipped++
			continue
		}
		if !record.LooksLikeRecord(data) {
			idx.logger.Warn("rebuild: malformed chunk file, skipping", "path", path)
			skipped++
			continue
		}
		var rec record.ChunkRecord
		if err := rec.UnmarshalJSON(data); err != nil {
			idx.logger.Warn("rebuild: unparseable chunk file, skipping", "path", path, "cause", err)
			skipped++
			continue
		}
		if len(rec.Embedding) != record.D {
			skipped++
			continue
		}
		id := rec.ID
		if id == "" {
			id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		idx.Add(id, rec.Embedding, path)
		loaded++
	}

	idx.logger.Info("index rebuilt from chunk files", "loaded", loaded, "skipped", skipped)
	return loaded, skipped
}

func globJSON(pattern string) []string {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}
	return matches
}

// --- binary framing: length-prefixed accumulator, one sticky error ---

type binWriter struct {
	w   io.Writer
	err error
}

func (bw *binWriter) u32(v uint32) {
	if bw.err != nil {
		return
	}
	bw.err = binary.Write(bw.w, binary.LittleEndian, v)
}

func (bw *binWriter) f32(v float32) {
	if bw.err != nil {
		return
	}
	bw.err = binary.Write(bw.w, binary.LittleEndian, v)
}

func (bw *binWriter) str(s string) {
	if bw.err != nil {
		return
	}
	bw.u32(uint32(len(s)))
	if bw.err != nil {
		return
	}
	_, bw.err = io.WriteString(bw.w, s)
}

type binReader struct {
	r   io.Reader
	err error
}

func (br *binReader) u32() uint32 {
	var v uint32
	if br.err != nil {
		return 0
	}
	br.err = binary.Read(br.r, binary.LittleEndian, &v)
	return v
}

func (br *binReader) f32() float32 {
	var v float32
	if br.err != nil {
		return 0
	}
	br.err = binary.Read(br.r, binary.LittleEndian, &v)
	return v
}

func (br *binReader) str() string {
	if br.err != nil {
		return ""
	}
	n := br.u32()
	if br.err != nil {
		return ""
	}
	buf := make([]byte, n)
	_, err := io.ReadFull(br.r, buf)
	if err != nil {
		br.err = err
		return ""
	}
	return string(buf)
}
