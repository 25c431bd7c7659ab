package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/screenager/vecstore/internal/verr"
)

func TestSmokeIngestAndSearch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "s")
	s, err := Create(dir, newTestFacade(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ctx := context.Background()
	if _, err := s.AddText(ctx, "User authentication and login functionality", map[string]any{"category": "auth"}); err != nil {
		t.Fatalf("AddText: %v", err)
	}
	if _, err := s.AddText(ctx, "Database connection and data management", map[string]any{"category": "database"}); err != nil {
		t.Fatalf("AddText: %v", err)
	}
	if _, err := s.AddText(ctx, "API endpoint security and validation", map[string]any{"category": "security"}); err != nil {
		t.Fatalf("AddText: %v", err)
	}

	results, err := s.SearchText(ctx, "login and security", 2)
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not sorted by descending score: %v", results)
	}
	if results[0].Score <= 0.5 {
		t.Errorf("top result score = %f, want > 0.5", results[0].Score)
	}
}

func TestPersistenceAcrossOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "s")
	ctx := context.Background()

	s, err := Create(dir, newTestFacade(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	var ids []string
	for _, text := range []string{"alpha one", "beta two", "gamma three"} {
		id, err := s.AddText(ctx, text, nil)
		if err != nil {
			t.Fatalf("AddText: %v", err)
		}
		ids = append(ids, id)
	}
	s.Close()

	reopened, err := Open(dir, newTestFacade(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got := reopened.AllIDs()
	if len(got) != 3 {
		t.Fatalf("AllIDs len = %d, want 3", len(got))
	}
	for _, id := range ids {
		found := false
		for _, g := range got {
			if g == id {
				found = true
			}
		}
		if !found {
			t.Errorf("expected id %s in AllIDs", id)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, indexFileName)); err != nil {
		t.Errorf("expected %s on disk: %v", indexFileName, err)
	}
}

func TestCorruptIndexRecovery(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "s")
	ctx := context.Background()

	s, err := Create(dir, newTestFacade(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.AddText(ctx, "Test document one", nil); err != nil {
		t.Fatalf("AddText: %v", err)
	}
	if _, err := s.AddText(ctx, "Test document two", nil); err != nil {
		t.Fatalf("AddText: %v", err)
	}
	s.Close()

	indexPath := filepath.Join(dir, indexFileName)
	if err := os.WriteFile(indexPath, []byte("corrupted data"), 0o644); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(dir, newTestFacade(), nil)
	if err != nil {
		t.Fatalf("Open after corruption: %v", err)
	}
	results, err := reopened.SearchText(ctx, "Test", 10)
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}

	rebuilt, err := os.ReadFile(indexPath)
	if err != nil {
		t.Fatalf("read rebuilt index: %v", err)
	}
	if string(rebuilt) == "corrupted data" {
		t.Error("expected vector_index.bin to be rewritten after rebuild")
	}
}

func TestPartialRecordToleranceDuringRebuild(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "s")
	ctx := context.Background()

	s, err := Create(dir, newTestFacade(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.AddText(ctx, "First document", nil); err != nil {
		t.Fatalf("AddText: %v", err)
	}
	if _, err := s.AddText(ctx, "Second document", nil); err != nil {
		t.Fatalf("AddText: %v", err)
	}
	s.Close()

	// Simulate a crash mid-write: a truncated chunk record under documents/.
	docsDir := filepath.Join(dir, "documents")
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	partial := filepath.Join(docsDir, "partial.json")
	if err := os.WriteFile(partial, []byte(`{"id":"partial","content":"...","metadata":{`), 0o644); err != nil {
		t.Fatal(err)
	}

	// Force a rebuild by corrupting the persisted binary index.
	if err := os.WriteFile(filepath.Join(dir, indexFileName), []byte("bad"), 0o644); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(dir, newTestFacade(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ids := reopened.AllIDs()
	if len(ids) != 2 {
		t.Fatalf("AllIDs len = %d, want 2: %v", len(ids), ids)
	}
	for _, id := range ids {
		if id == "partial" {
			t.Error("expected partial record to be excluded from AllIDs")
		}
	}
}

func TestLifecycleGates(t *testing.T) {
	base := t.TempDir()
	populated := filepath.Join(base, "t")

	s, err := Create(populated, newTestFacade(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.AddText(context.Background(), "seed content", nil); err != nil {
		t.Fatalf("AddText: %v", err)
	}
	s.Close()

	if _, err := Create(populated, newTestFacade(), nil); !verr.Is(err, verr.AlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}

	nonexistent := filepath.Join(base, "nonexistent")
	if _, err := Open(nonexistent, newTestFacade(), nil); !verr.Is(err, verr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}

	deleted, err := Delete(nonexistent)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted {
		t.Error("expected Delete on nonexistent store to return false")
	}
}

func TestAddDeleteIdempotence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "s")
	s, err := Create(dir, newTestFacade(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	id, err := s.AddText(context.Background(), "original content", map[string]any{"v": 1})
	if err != nil {
		t.Fatalf("AddText: %v", err)
	}

	rec, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	rec.Content = "updated content"
	if _, err := s.Add(*rec); err != nil {
		t.Fatalf("Add (overwrite): %v", err)
	}

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if got.Content != "updated content" {
		t.Errorf("Content = %q, want %q", got.Content, "updated content")
	}

	first, err := s.Delete(id)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !first {
		t.Error("expected first Delete to return true")
	}
	second, err := s.Delete(id)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if second {
		t.Error("expected second Delete to return false")
	}
}

func TestAddDocumentChunksAndTagsMetadata(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "s")
	s, err := Create(dir, newTestFacade(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	docPath := filepath.Join(t.TempDir(), "notes.txt")
	content := "This is the first sentence. This is the second sentence. This is the third sentence."
	if err := os.WriteFile(docPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	ids, err := s.AddDocument(context.Background(), docPath, Options{})
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if len(ids) == 0 {
		t.Fatal("expected at least one chunk")
	}

	rec, err := s.Get(ids[0])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Metadata["source_file"] != docPath {
		t.Errorf("source_file = %v, want %v", rec.Metadata["source_file"], docPath)
	}
	// Metadata round-trips through JSON, so numeric fields decode as
	// float64 rather than the int they were written as.
	if got, _ := rec.Metadata["chunk_index"].(float64); got != 0 {
		t.Errorf("chunk_index = %v, want 0", rec.Metadata["chunk_index"])
	}
	if got, _ := rec.Metadata["total_chunks"].(float64); int(got) != len(ids) {
		t.Errorf("total_chunks = %v, want %d", rec.Metadata["total_chunks"], len(ids))
	}
}

func TestAddDocumentsSkipsUnchangedFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "s")
	s, err := Create(dir, newTestFacade(), nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	srcDir := t.TempDir()
	docPath := filepath.Join(srcDir, "notes.txt")
	if err := os.WriteFile(docPath, []byte("first pass content"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	first, err := s.AddDocuments(ctx, srcDir, Options{}, nil)
	if err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	if len(first) == 0 {
		t.Fatal("expected at least one chunk on first pass")
	}

	second, err := s.AddDocuments(ctx, srcDir, Options{}, nil)
	if err != nil {
		t.Fatalf("AddDocuments (unchanged): %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("len(second) = %d, want %d (unchanged file should return the same chunk ids)", len(second), len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk id changed across unchanged re-ingest: %v vs %v", first[i], second[i])
		}
	}

	// Touch the file with new content and a later mtime, forcing re-ingestion.
	future := time.Now().Add(time.Minute)
	if err := os.WriteFile(docPath, []byte("second pass content, now longer than before"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(docPath, future, future); err != nil {
		t.Fatal(err)
	}

	third, err := s.AddDocuments(ctx, srcDir, Options{}, nil)
	if err != nil {
		t.Fatalf("AddDocuments (changed): %v", err)
	}
	for _, oldID := range first {
		if _, err := s.Get(oldID); err == nil {
			t.Errorf("expected stale chunk %s to be removed after content change", oldID)
		}
	}
	rec, err := s.Get(third[0])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Content == "first pass content" {
		t.Error("expected re-ingested chunk to reflect updated content")
	}
}
