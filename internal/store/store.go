// Package store implements the top-level orchestrator: it owns a store
// directory's vector index, chunk records, embedder façade, and extractor
// dispatch, and is the one package that wires every other module together.
// Its lifecycle (Open/Close/Flush-on-mutation) generalizes a one-format,
// path-keyed index into a format-agnostic extractor/boundary/chunk
// pipeline writing to an on-disk layout keyed by record ids rather than
// file paths.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/screenager/vecstore/internal/boundary"
	"github.com/screenager/vecstore/internal/chunk"
	"github.com/screenager/vecstore/internal/embed"
	"github.com/screenager/vecstore/internal/embedcache"
	"github.com/screenager/vecstore/internal/extract"
	"github.com/screenager/vecstore/internal/fsx"
	"github.com/screenager/vecstore/internal/record"
	"github.com/screenager/vecstore/internal/vecindex"
	"github.com/screenager/vecstore/internal/verr"
)

const indexFileName = "vector_index.bin"

// Store is a single vector store directory: its index, its chunk records
// on disk, and the embedding pipeline used to populate both. A Store
// assumes a single writer; concurrent readers are safe.
type Store struct {
	mu       sync.Mutex // serializes mutating ops single-writer model
	dir      string
	index    *vecindex.Index
	embedder *embed.Facade
	logger   *slog.Logger
}

// Options configures document ingestion defaults. A zero Options uses
// chunk.DefaultOptions().
type Options struct {
	Chunk chunk.Options
}

func defaultOptions() Options {
	return Options{Chunk: chunk.DefaultOptions()}
}

// docKindFromExtractResult bridges extract's registry to boundary.Detect,
// defaulting to plain text when an extractor left DocKind unset.
func docKindFromExtractResult(res extract.Result) boundary.DocKind {
	if res.DocKind != "" {
		return res.DocKind
	}
	return boundary.DocText
}

// isStoreDir reports whether dir looks like a valid store:
// it contains vector_index.bin, or at least one *.json chunk record at the
// root or under documents/.
func isStoreDir(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, indexFileName)); err == nil {
		return true
	}
	if hasJSON(dir) || hasJSON(filepath.Join(dir, "documents")) {
		return true
	}
	return false
}

func hasJSON(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			return true
		}
	}
	return false
}

// Create initializes a new store at path. path must be absent, or present
// but containing neither vector_index.bin nor any *.json record; otherwise
// AlreadyExists.
func Create(path string, embedder *embed.Facade, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return nil, verr.New("store.Create", verr.AlreadyExists, "%s exists and is not a directory", path)
		}
		if isStoreDir(path) {
			return nil, verr.New("store.Create", verr.AlreadyExists, "%s already contains a store", path)
		}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, verr.Wrap("store.Create", verr.InvalidInput, err, "create directory %s", path)
	}

	idx := vecindex.New(logger)
	s := &Store{dir: path, index: idx, embedder: embedder, logger: logger}
	if err := s.persistIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open loads an existing store at path. path must exist (NotFound
// otherwise); if after load-or-rebuild the index is empty and no chunk
// files are present, the directory is not a store (NotAStore).
func Open(path string, embedder *embed.Facade, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, verr.Wrap("store.Open", verr.NotFound, err, "store directory %s", path)
	}
	if !info.IsDir() {
		return nil, verr.New("store.Open", verr.NotFound, "%s is not a directory", path)
	}

	idx := vecindex.New(logger)
	indexPath := filepath.Join(path, indexFileName)
	if _, _, err := idx.LoadOrRebuild(indexPath, path); err != nil {
		return nil, verr.Wrap("store.Open", verr.CorruptIndex, err, "load or rebuild index at %s", path)
	}

	if idx.Count() == 0 && !hasJSON(path) && !hasJSON(filepath.Join(path, "documents")) {
		return nil, verr.New("store.Open", verr.NotAStore, "%s contains no index or chunk records", path)
	}

	return &Store{dir: path, index: idx, embedder: embedder, logger: logger}, nil
}

// CreateOrOpen opens path if it already holds a valid store, else creates
// a new one there.
func CreateOrOpen(path string, embedder *embed.Facade, logger *slog.Logger) (*Store, error) {
	if isStoreDir(path) {
		return Open(path, embedder, logger)
	}
	return Create(path, embedder, logger)
}

// Delete removes the store directory at path, refusing non-store
// directories. It reports whether anything was removed.
func Delete(path string) (bool, error) {
	if !isStoreDir(path) {
		return false, nil
	}
	if err := os.RemoveAll(path); err != nil {
		return false, verr.Wrap("store.Delete", verr.InvalidInput, err, "remove %s", path)
	}
	return true, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// Close releases the store's embedder resources. The index itself has no
// open handles to release; it is dropped with the Store value.
func (s *Store) Close() error {
	if s.embedder != nil {
		s.embedder.Close()
	}
	return nil
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// persistIndex writes the binary index file, serialized under s.mu by
// every caller.
func (s *Store) persistIndex() error {
	if err := s.index.Persist(filepath.Join(s.dir, indexFileName)); err != nil {
		return verr.Wrap("store.persistIndex", verr.InvalidInput, err, "persist index for %s", s.dir)
	}
	return nil
}

// Add assigns an id if rec.ID is empty, writes the chunk record to disk,
// registers it in the index, and persists the index.
func (s *Store) Add(rec record.ChunkRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", verr.Wrap("store.Add", verr.InvalidInput, err, "validate chunk record")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", verr.Wrap("store.Add", verr.InvalidInput, err, "marshal chunk record %s", rec.ID)
	}

	path := s.recordPath(rec.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fsx.WriteFileDurable(path, data, 0o644); err != nil {
		return "", verr.Wrap("store.Add", verr.InvalidInput, err, "write chunk record %s", rec.ID)
	}
	s.index.Add(rec.ID, rec.Embedding, path)
	if err := s.persistIndex(); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Get hydrates the chunk record for id, falling back to a direct read of
// <dir>/<id>.json if the index has no entry.
func (s *Store) Get(id string) (*record.ChunkRecord, error) {
	if rec, err := s.index.Hydrate(id); err == nil {
		return rec, nil
	}

	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		return nil, verr.Wrap("store.Get", verr.NotFound, err, "chunk record %s", id)
	}
	var rec record.ChunkRecord
	if err := rec.UnmarshalJSON(data); err != nil {
		return nil, verr.Wrap("store.Get", verr.CorruptRecord, err, "parse chunk record %s", id)
	}
	return &rec, nil
}

// Delete removes id's chunk file, drops it from the index, and persists
// the index before returning, a synchronous await rather than a
// fire-and-forget write, so later ops on this Store observe the final
// state immediately.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existed := s.index.Remove(id)
	if err := os.Remove(s.recordPath(id)); err != nil && !os.IsNotExist(err) {
		return existed, verr.Wrap("store.Delete", verr.InvalidInput, err, "remove chunk record %s", id)
	}
	if !existed {
		return false, nil
	}
	if err := s.persistIndex(); err != nil {
		return true, err
	}
	return true, nil
}

// AllIDs enumerates every id currently registered in the index.
func (s *Store) AllIDs() []string {
	entries := s.index.All()
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)
	return ids
}

// AddText embeds content, builds a chunk record carrying metadata, and
// adds it to the store.
func (s *Store) AddText(ctx context.Context, content string, metadata map[string]any) (string, error) {
	if s.embedder == nil {
		return "", verr.New("store.AddText", verr.ModelUnavailable, "store has no embedder configured")
	}
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return "", err
	}
	rec := record.ChunkRecord{Content: content, Embedding: vec, Metadata: metadata}
	return s.Add(rec)
}

// AddDocumentProgress reports incremental progress while ingesting a
// document or directory.
type AddDocumentProgress func(done, total int, path string, err error)

// AddDocument extracts, chunks, embeds, and adds every chunk of the file
// at filePath, returning the ids added in chunk order.
func (s *Store) AddDocument(ctx context.Context, filePath string, opts Options) ([]string, error) {
	if opts.Chunk == (chunk.Options{}) {
		opts = defaultOptions()
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, verr.Wrap("store.AddDocument", verr.NotFound, err, "read %s", filePath)
	}

	res, err := extract.Extract(filePath, data)
	if err != nil {
		return nil, err
	}

	docKind := docKindFromExtractResult(res)
	chunks := chunk.Assemble(res.Text, docKind, opts.Chunk)
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	var vecs [][]float32
	if s.embedder != nil {
		vecs, err = s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
	}

	title := filepath.Base(filePath)
	if t, ok := res.Metadata["title"].(string); ok && t != "" {
		title = t
	}

	ids := make([]string, 0, len(chunks))
	for i, c := range chunks {
		meta := map[string]any{}
		for k, v := range res.Metadata {
			meta[k] = v
		}
		if headers, ok := res.Metadata["header_context"].([]map[string]any); ok {
			meta["header_context"] = extract.NearestHeader(headers, c.StartPosition)
		}
		meta["source_file"] = filePath
		meta["source_title"] = title
		meta["source_mtime"] = sourceMtime(filePath)
		meta["chunk_index"] = c.ChunkIndex
		meta["total_chunks"] = len(chunks)

		rec := record.ChunkRecord{Content: c.Content, Metadata: meta}
		if vecs != nil {
			rec.Embedding = vecs[i]
		}
		id, err := s.Add(rec)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// AddDocuments recursively walks dir, ingesting every file extract
// recognizes. A failure on one file is logged and does not abort the
// batch; directory ingestion processes files one at a time rather than
// fanning out, so a slow embedder never runs more than one inference call
// concurrently against this Store.
func (s *Store) AddDocuments(ctx context.Context, dir string, opts Options, progress AddDocumentProgress) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if extract.IsSupported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, verr.Wrap("store.AddDocuments", verr.NotFound, err, "walk %s", dir)
	}

	var allIDs []string
	for i, path := range paths {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return allIDs, verr.Wrap("store.AddDocuments", verr.Cancelled, ctxErr, "ingesting %s", dir)
		}

		staleIDs, cachedMtime := s.findBySourceFile(path)
		if len(staleIDs) > 0 && cachedMtime == sourceMtime(path) {
			allIDs = append(allIDs, staleIDs...)
			if progress != nil {
				progress(i+1, len(paths), path, nil)
			}
			continue
		}
		for _, id := range staleIDs {
			if _, err := s.Delete(id); err != nil {
				s.logger.Warn("AddDocuments: failed to drop stale chunk", "id", id, "path", path, "cause", err)
			}
		}

		ids, err := s.AddDocument(ctx, path, opts)
		if err != nil {
			s.logger.Warn("AddDocuments: skipping file", "path", path, "cause", err)
			if progress != nil {
				progress(i+1, len(paths), path, err)
			}
			continue
		}
		allIDs = append(allIDs, ids...)
		if progress != nil {
			progress(i+1, len(paths), path, nil)
		}
	}
	return allIDs, nil
}

// sourceMtime returns path's modification time as Unix seconds, or 0 if it
// cannot be statted. Used to tag chunk records so a later AddDocuments pass
// can tell an unchanged file from one that needs re-ingesting.
func sourceMtime(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.ModTime().Unix()
}

// findBySourceFile returns every chunk id tagged with source_file == path
// and the source_mtime they were ingested under (0 if mixed or absent).
// A full index scan, acceptable at the scale a directory-backed store
// targets; nothing here is an index for large corpora.
func (s *Store) findBySourceFile(path string) (ids []string, mtime int64) {
	first := true
	for _, id := range s.AllIDs() {
		rec, err := s.Get(id)
		if err != nil {
			continue
		}
		sf, _ := rec.Metadata["source_file"].(string)
		if sf != path {
			continue
		}
		ids = append(ids, id)
		m, _ := rec.Metadata["source_mtime"].(float64)
		if first {
			mtime = int64(m)
			first = false
		} else if int64(m) != mtime {
			mtime = 0
		}
	}
	return ids, mtime
}

// DefaultCacheDir returns the per-user embedding cache directory,
// ~/.vectorstore/cache/embeddings.
func DefaultCacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".vectorstore", "cache", "embeddings"), nil
}

// NewEmbedderFacade wires an embed.Facade from a model manager and cache,
// the construction the CLI and tests use to build the embedder a Store is
// opened with.
func NewEmbedderFacade(modelsDir, modelID, modelURL, tokenURL, ortLibPath string, numThreads, cacheItems int, logger *slog.Logger) (*embed.Facade, error) {
	if modelID == "" {
		modelID = embed.DefaultModelID
	}
	if modelURL == "" {
		modelURL = embed.DefaultModelURL
	}
	if tokenURL == "" {
		tokenURL = embed.DefaultTokenizerURL
	}
	manager := embed.NewModelManager(modelsDir, modelID, modelURL, tokenURL)

	cacheDir, err := DefaultCacheDir()
	if err != nil {
		return nil, err
	}
	cache, err := embedcache.New(cacheDir, cacheItems, logger)
	if err != nil {
		return nil, fmt.Errorf("build embedding cache: %w", err)
	}

	return embed.NewFacade(manager, cache, ortLibPath, numThreads, logger), nil
}
