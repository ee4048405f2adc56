package modelrt

import (
	"context"

	"github.com/inferray/modelrt/internal/instrument"
	"github.com/inferray/modelrt/provider"
)

// instrumentedEmbedding wraps a provider.EmbeddingModel with the timeout /
// retry / metrics envelope from internal/instrument.
type instrumentedEmbedding struct {
	inner  provider.EmbeddingModel
	labels instrument.Labels
	cfg    instrument.Config
}

func (w *instrumentedEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return instrument.Call(ctx, w.labels, w.cfg, func(ctx context.Context) ([][]float32, error) {
		return w.inner.Embed(ctx, texts)
	})
}

func (w *instrumentedEmbedding) Dimensions() uint32 { return w.inner.Dimensions() }
func (w *instrumentedEmbedding) ModelID() string    { return w.inner.ModelID() }

// instrumentedReranker wraps a provider.RerankerModel with the same
// envelope.
type instrumentedReranker struct {
	inner  provider.RerankerModel
	labels instrument.Labels
	cfg    instrument.Config
}

func (w *instrumentedReranker) Rerank(ctx context.Context, query string, docs []string) ([]provider.ScoredDoc, error) {
	return instrument.Call(ctx, w.labels, w.cfg, func(ctx context.Context) ([]provider.ScoredDoc, error) {
		return w.inner.Rerank(ctx, query, docs)
	})
}

// instrumentedGenerator wraps a provider.GeneratorModel with the same
// envelope.
type instrumentedGenerator struct {
	inner  provider.GeneratorModel
	labels instrument.Labels
	cfg    instrument.Config
}

func (w *instrumentedGenerator) Generate(ctx context.Context, messages []string, opts provider.GenerationOptions) (provider.GenerationResult, error) {
	return instrument.Call(ctx, w.labels, w.cfg, func(ctx context.Context) (provider.GenerationResult, error) {
		return w.inner.Generate(ctx, messages, opts)
	})
}
