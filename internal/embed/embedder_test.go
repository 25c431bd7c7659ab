package embed

import "testing"

// TestEmbedSemanticSimilarity verifies that loaded model embeddings produce
// mathematically meaningful similarities using CLS pooling. It is skipped
// unless a real model has been provisioned under ../../models.
func TestEmbedSemanticSimilarity(t *testing.T) {
	e, err := New("../../models", "../../lib/onnxruntime.so", 0)
	if err != nil {
		t.Skipf("skipping: model not found at ../../models: %v", err)
	}
	defer e.Close()

	vecs, err := e.Embed([]string{
		"a cute baby feline playing with yarn",
		"a tiny kitten swatting at a string",
	})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs[0]) != EmbeddingDim {
		t.Fatalf("embedding dim = %d, want %d", len(vecs[0]), EmbeddingDim)
	}

	simKitten := dotProduct(vecs[0], vecs[1])
	if simKitten < 0.70 {
		t.Errorf("expected high similarity for synonyms, got %f", simKitten)
	}

	vecsUnrelated, err := e.Embed([]string{
		"a cute baby feline playing with yarn",
		"instructions for adjusting the carburetor on a 1998 honda civic",
	})
	if err != nil {
		t.Fatalf("embed unrelated: %v", err)
	}
	simCar := dotProduct(vecsUnrelated[0], vecsUnrelated[1])
	if simCar > 0.5 {
		t.Errorf("expected low similarity for unrelated text, got %f", simCar)
	}
}

func dotProduct(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
