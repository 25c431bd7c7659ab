package embed

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/screenager/vecstore/internal/embedcache"
	"github.com/screenager/vecstore/internal/verr"
)

// CoreEmbedder is the minimal surface Facade needs from the ONNX evaluator.
// It is exported so callers outside this package (store's tests, in
// particular) can substitute a fake via NewFacadeWithCore without loading a
// real model.
type CoreEmbedder interface {
	Embed(texts []string) ([][]float32, error)
}

type coreEmbedder = CoreEmbedder

// Facade is the embedder façade: it owns model acquisition,
// wraps the two-tier embedding cache around inference, and serializes
// concurrent first-use loads through a singleflight.Group so N goroutines
// racing to embed before the model is loaded trigger exactly one load.
type Facade struct {
	mu      sync.Mutex
	core    coreEmbedder
	manager *ModelManager
	cache   *embedcache.Cache
	logger  *slog.Logger

	ortLibPath string
	numThreads int

	loadGroup singleflight.Group
}

// NewFacade builds a façade that lazily loads its model via manager on
// first Embed/EmbedBatch call.
func NewFacade(manager *ModelManager, cache *embedcache.Cache, ortLibPath string, numThreads int, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{manager: manager, cache: cache, ortLibPath: ortLibPath, numThreads: numThreads, logger: logger}
}

// newFacadeWithCore builds a façade around an already-loaded core embedder,
// bypassing model acquisition entirely. Used by tests and by callers that
// manage model lifetime themselves.
func newFacadeWithCore(core coreEmbedder, cache *embedcache.Cache, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{core: core, cache: cache, logger: logger}
}

// NewFacadeWithCore is the exported form of newFacadeWithCore, for packages
// that need a Facade backed by a stand-in CoreEmbedder (store's tests run
// without a real ONNX model present).
func NewFacadeWithCore(core CoreEmbedder, cache *embedcache.Cache, logger *slog.Logger) *Facade {
	return newFacadeWithCore(core, cache, logger)
}

func (f *Facade) ensureLoaded(ctx context.Context) error {
	f.mu.Lock()
	if f.core != nil {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	_, err, _ := f.loadGroup.Do("load", func() (any, error) {
		f.mu.Lock()
		if f.core != nil {
			f.mu.Unlock()
			return nil, nil
		}
		f.mu.Unlock()

		dir, err := f.manager.EnsureModel(ctx, nil)
		if err != nil {
			return nil, err
		}
		core, err := New(dir, f.ortLibPath, f.numThreads)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.core = core
		f.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return verr.Wrap("embed.Facade.ensureLoaded", verr.ModelUnavailable, err, "load embedding model")
	}
	return nil
}

// Embed returns text's embedding, consulting the cache first and
// populating it on miss.
func (f *Facade) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, verr.New("embed.Facade.Embed", verr.InvalidInput, "text is empty")
	}
	if f.cache != nil {
		if v, ok := f.cache.Get(text); ok {
			return v, nil
		}
	}
	if err := f.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	vecs, err := f.core.Embed([]string{text})
	if err != nil {
		return nil, verr.Wrap("embed.Facade.Embed", verr.EmbeddingFailed, err, "embed text")
	}
	if len(vecs) == 0 {
		return nil, verr.New("embed.Facade.Embed", verr.EmbeddingFailed, "embedder returned no vectors")
	}
	if f.cache != nil {
		f.cache.Set(text, vecs[0])
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts, partitioning into cached and uncached inputs,
// loading the model at most once, and returning a result slice aligned
// positionally with texts.
func (f *Facade) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, verr.New("embed.Facade.EmbedBatch", verr.InvalidInput, "text at index %d is empty", i)
		}
		if f.cache != nil {
			if v, ok := f.cache.Get(t); ok {
				result[i] = v
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return result, nil
	}

	if err := f.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	vecs, err := f.core.Embed(missTexts)
	if err != nil {
		return nil, verr.Wrap("embed.Facade.EmbedBatch", verr.EmbeddingFailed, err, "embed batch of %d texts", len(missTexts))
	}
	if len(vecs) != len(missTexts) {
		return nil, verr.New("embed.Facade.EmbedBatch", verr.EmbeddingFailed, "embedder returned %d vectors for %d inputs", len(vecs), len(missTexts))
	}

	for j, idx := range missIdx {
		result[idx] = vecs[j]
		if f.cache != nil {
			f.cache.Set(missTexts[j], vecs[j])
		}
	}
	return result, nil
}

// Close releases the underlying model resources, if loaded.
func (f *Facade) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.core.(*Embedder); ok && c != nil {
		c.Close()
	}
	f.core = nil
}
