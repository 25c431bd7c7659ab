package store

import (
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/screenager/vecstore/internal/embed"
	"github.com/screenager/vecstore/internal/record"
)

// fakeCore is a deterministic stand-in for the ONNX embedder: it builds a
// hashed bag-of-words vector so that texts sharing vocabulary score higher
// under cosine similarity, without requiring a real model on disk.
type fakeCore struct{}

var wordRe = regexp.MustCompile(`[a-zA-Z]+`)

func (fakeCore) Embed(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, record.D)
		for _, w := range wordRe.FindAllString(strings.ToLower(t), -1) {
			h := fnv.New32a()
			h.Write([]byte(w))
			v[int(h.Sum32())%record.D] += 1
		}
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range v {
				v[j] = float32(float64(v[j]) / norm)
			}
		}
		out[i] = v
	}
	return out, nil
}

func newTestFacade() *embed.Facade {
	return embed.NewFacadeWithCore(fakeCore{}, nil, nil)
}
