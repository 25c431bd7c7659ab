package embed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/screenager/vecstore/internal/fsx"
	"github.com/screenager/vecstore/internal/verr"
)

const (
	// DefaultModelID names the model family this façade targets; it
	// determines the cache subdirectory under ~/.vectorstore/models/.
	DefaultModelID = "bge-base-en-v1.5"

	// DefaultModelURL is the well-known ONNX artifact location.
	DefaultModelURL = "https://huggingface.co/BAAI/bge-base-en-v1.5/resolve/main/onnx/model.onnx"
	// DefaultTokenizerURL is fetched alongside the model the first time.
	DefaultTokenizerURL = "https://huggingface.co/BAAI/bge-base-en-v1.5/resolve/main/tokenizer.json"

	// ModelDownloadTimeout bounds a single download attempt.
	ModelDownloadTimeout = 30 * time.Minute
)

// ProgressFunc reports model-download progress
// (bytes_downloaded, total_bytes, pct) callback signature.
type ProgressFunc func(downloaded, total int64, pct float64)

// ModelManager provisions the ONNX model + tokenizer pair into a per-user
// cache directory, downloading on first use, fetching the two-file
// artifact set (model + tokenizer) Embedder.New requires and writing both
// through internal/fsx's shared durable-replace helper.
type ModelManager struct {
	modelID   string
	modelsDir string
	modelURL  string
	tokenURL  string
	mu        sync.Mutex
}

// NewModelManager creates a manager rooted at modelsDir (typically
// ~/.vectorstore/models).
func NewModelManager(modelsDir, modelID, modelURL, tokenURL string) *ModelManager {
	if modelID == "" {
		modelID = DefaultModelID
	}
	if modelURL == "" {
		modelURL = DefaultModelURL
	}
	if tokenURL == "" {
		tokenURL = DefaultTokenizerURL
	}
	return &ModelManager{modelID: modelID, modelsDir: modelsDir, modelURL: modelURL, tokenURL: tokenURL}
}

// Dir returns the model's own cache subdirectory.
func (m *ModelManager) Dir() string {
	return filepath.Join(m.modelsDir, m.modelID)
}

// ModelExists reports whether both artifacts are already cached.
func (m *ModelManager) ModelExists() bool {
	dir := m.Dir()
	return fileNonEmpty(filepath.Join(dir, ModelFile)) && fileNonEmpty(filepath.Join(dir, TokenizerFile))
}

func fileNonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// EnsureModel returns the model directory, downloading missing artifacts
// under a cross-process lock so concurrent vstore processes never race on
// the same download.
func (m *ModelManager) EnsureModel(ctx context.Context, progress ProgressFunc) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := m.Dir()
	if m.ModelExists() {
		return dir, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", verr.Wrap("embed.EnsureModel", verr.ModelUnavailable, err, "create model directory %s", dir)
	}

	lock := NewFileLock(dir)
	if err := lock.Lock(); err != nil {
		return "", verr.Wrap("embed.EnsureModel", verr.ModelUnavailable, err, "acquire download lock")
	}
	defer lock.Unlock()

	// Re-check: another process may have finished the download while we
	// waited for the lock.
	if m.ModelExists() {
		return dir, nil
	}

	if !fileNonEmpty(filepath.Join(dir, ModelFile)) {
		if err := downloadArtifact(ctx, m.modelURL, filepath.Join(dir, ModelFile), progress); err != nil {
			return "", verr.Wrap("embed.EnsureModel", verr.ModelUnavailable, err, "download model artifact")
		}
	}
	if !fileNonEmpty(filepath.Join(dir, TokenizerFile)) {
		if err := downloadArtifact(ctx, m.tokenURL, filepath.Join(dir, TokenizerFile), nil); err != nil {
			return "", verr.Wrap("embed.EnsureModel", verr.ModelUnavailable, err, "download tokenizer artifact")
		}
	}
	return dir, nil
}

// downloadArtifact streams url to destPath using the durable replace
// pattern: a partially written file can never be mistaken for a complete
// one on a subsequent run.
func downloadArtifact(ctx context.Context, url, destPath string, progress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "vecstore/1.0")

	client := &http.Client{Timeout: ModelDownloadTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}
	total := resp.ContentLength

	return fsx.WriteDurable(destPath, 0o644, func(f *os.File) error {
		var downloaded int64
		buf := make([]byte, 32*1024)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			n, readErr := resp.Body.Read(buf)
			if n > 0 {
				if _, werr := f.Write(buf[:n]); werr != nil {
					return fmt.Errorf("write: %w", werr)
				}
				downloaded += int64(n)
				if progress != nil {
					pct := 0.0
					if total > 0 {
						pct = float64(downloaded) / float64(total) * 100
					}
					progress(downloaded, total, pct)
				}
			}
			if readErr == io.EOF {
				return nil
			}
			if readErr != nil {
				return fmt.Errorf("read: %w", readErr)
			}
		}
	})
}

// DefaultModelsDir returns ~/.vectorstore/models, the per-user model cache
// root.
func DefaultModelsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".vectorstore", "models")
}
