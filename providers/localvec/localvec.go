// Package localvec implements a local, in-process, zero-network provider.
// It stands in for the "local ML engine" case spec'd alongside a remote
// HTTP provider: no weights are downloaded, no network calls are made, and
// the embedding/reranking math is a deterministic feature-hashing scheme so
// the same text always produces the same vector, on any machine, forever.
package localvec

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/inferray/modelrt/api"
	"github.com/inferray/modelrt/modelrterrs"
	"github.com/inferray/modelrt/provider"
)

// ProviderID is the provider identifier models in this package register
// under, e.g. in a catalog's "provider_id" field.
const ProviderID = "local/vec"

const defaultDimensions = 256

// Provider is a local, in-process embedding/reranking backend. It has no
// external dependencies and never performs network I/O.
type Provider struct {
	provider.NopWarmup
}

// New returns a ready-to-register Provider.
func New() *Provider {
	return &Provider{}
}

func (p *Provider) ProviderID() string { return ProviderID }

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{SupportedTasks: []api.ModelTask{api.TaskEmbed, api.TaskRerank}}
}

func (p *Provider) Health(context.Context) provider.Health {
	return provider.Health{Status: provider.HealthHealthy}
}

func (p *Provider) Load(_ context.Context, spec api.ModelAliasSpec) (provider.Handle, error) {
	dims := uint32(defaultDimensions)
	if opts, ok := spec.Options.(map[string]interface{}); ok {
		if v, ok := opts["dimensions"]; ok {
			if f, ok := v.(float64); ok && f > 0 {
				dims = uint32(f)
			}
		}
	}

	switch spec.Task {
	case api.TaskEmbed:
		return provider.NewEmbeddingHandle(&embeddingModel{modelID: spec.ModelID, dimensions: dims}), nil
	case api.TaskRerank:
		return provider.NewRerankerHandle(&rerankerModel{dimensions: dims}), nil
	default:
		return provider.Handle{}, modelrterrs.Newf(modelrterrs.KindCapabilityMismatch, "local/vec provider does not support task %q", spec.Task)
	}
}

// embeddingModel hashes each input text into a fixed-width, L2-normalized
// vector via feature hashing over whitespace-separated tokens. Identical
// text always yields an identical vector.
type embeddingModel struct {
	modelID    string
	dimensions uint32

	mu         sync.Mutex
	warmed     bool
	warmCalled int
}

func (m *embeddingModel) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = hashEmbed(text, m.dimensions)
	}
	return out, nil
}

func (m *embeddingModel) Dimensions() uint32 { return m.dimensions }
func (m *embeddingModel) ModelID() string    { return m.modelID }

func (m *embeddingModel) Warmup(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warmed = true
	m.warmCalled++
	return nil
}

// rerankerModel scores documents by cosine similarity between the query's
// hashed embedding and each document's hashed embedding.
type rerankerModel struct {
	provider.NopModelWarmup
	dimensions uint32
}

func (m *rerankerModel) Rerank(_ context.Context, query string, docs []string) ([]provider.ScoredDoc, error) {
	queryVec := hashEmbed(query, m.dimensions)

	scored := make([]provider.ScoredDoc, len(docs))
	for i, doc := range docs {
		docVec := hashEmbed(doc, m.dimensions)
		text := doc
		scored[i] = provider.ScoredDoc{Index: i, Score: cosineSimilarity(queryVec, docVec), Text: &text}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored, nil
}

// hashEmbed feature-hashes the whitespace-separated tokens of text into a
// dims-wide vector, then L2-normalizes it.
func hashEmbed(text string, dims uint32) []float32 {
	vec := make([]float32, dims)
	if dims == 0 {
		return vec
	}

	for _, token := range strings.Fields(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		bucket := h.Sum32() % dims

		signHash := fnv.New32a()
		_, _ = signHash.Write([]byte("sign:" + token))
		sign := float32(1)
		if signHash.Sum32()%2 == 0 {
			sign = -1
		}
		vec[bucket] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}

func cosineSimilarity(a, b []float32) float32 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot)
}
