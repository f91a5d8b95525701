package search

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"google.golang.org/genai"
)

// Embedder turns text into a fixed-size vector. Both the fast (local) and
// quality (remote) tiers implement this same interface, so the query
// pipeline never needs to know which one it's talking to.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// hashEmbedderDim is small enough to keep the fast tier cheap; it only
// needs to rank candidates well enough to feed the refine phase, not to
// stand on its own as a quality embedding.
const hashEmbedderDim = 64

// HashEmbedder is a deterministic, dependency-free embedder: each output
// dimension is a bucketed FNV-1a hash of the token stream. It never calls
// out to a network, so every TwoTierAvailability state can be exercised in
// tests without external services.
type HashEmbedder struct{}

// NewHashEmbedder builds the default fast-tier embedder.
func NewHashEmbedder() *HashEmbedder { return &HashEmbedder{} }

func (h *HashEmbedder) Dim() int { return hashEmbedderDim }

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, hashEmbedderDim)
	tok := []byte{}
	flush := func() {
		if len(tok) == 0 {
			return
		}
		hasher := fnv.New32a()
		hasher.Write(tok)
		bucket := hasher.Sum32() % hashEmbedderDim
		vec[bucket]++
		tok = tok[:0]
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			tok = append(tok, c)
		} else {
			flush()
		}
	}
	flush()
	normalize(vec)
	return vec, nil
}

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
}

// CosineSimilarity assumes both vectors are already normalized (as
// HashEmbedder and GenAIEmbedder both produce) and is just a dot product.
func CosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float32
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	return dot
}

// GenAIEmbedder is the optional quality-tier embedder, backed by Google's
// Gemini embedding API. Construction fails closed (ErrQualityUnavailable)
// when no API key is configured, so the two-tier pipeline degrades to
// FastOnly rather than erroring the whole search.
type GenAIEmbedder struct {
	client *genai.Client
	model  string
	dim    int
}

// ErrQualityUnavailable signals that the quality tier is not configured;
// callers should treat the search as FastOnly rather than failing it.
var ErrQualityUnavailable = fmt.Errorf("search: quality embedder not configured")

// NewGenAIEmbedder builds the quality-tier embedder. apiKey must be
// non-empty; model defaults to "gemini-embedding-001".
func NewGenAIEmbedder(ctx context.Context, apiKey, model string) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, ErrQualityUnavailable
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("search: creating genai client: %w", err)
	}
	return &GenAIEmbedder{client: client, model: model, dim: 3072}, nil
}

func (g *GenAIEmbedder) Dim() int { return g.dim }

func (g *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	dim := int32(g.dim)
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	result, err := g.client.Models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("search: genai embed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("search: genai returned no embeddings")
	}
	vec := result.Embeddings[0].Values
	normalize(vec)
	return vec, nil
}
