// Package provider defines the contract a pluggable model backend must
// satisfy, plus the task interfaces (EmbeddingModel, RerankerModel,
// GeneratorModel) those backends hand back to the registry.
package provider

import (
	"context"

	"github.com/inferray/modelrt/api"
)

// Capabilities advertises the set of tasks a Provider can handle.
type Capabilities struct {
	SupportedTasks []api.ModelTask
}

// Supports reports whether task is in the capability set.
func (c Capabilities) Supports(task api.ModelTask) bool {
	for _, t := range c.SupportedTasks {
		if t == task {
			return true
		}
	}
	return false
}

// HealthStatus is the closed set of health states a Provider can report.
type HealthStatus int

const (
	HealthHealthy HealthStatus = iota
	HealthDegraded
	HealthUnhealthy
)

// Health is the health status a provider reports, with an optional detail
// message for Degraded/Unhealthy.
type Health struct {
	Status HealthStatus
	Detail string
}

// Provider is a pluggable backend that knows how to load models for one or
// more api.ModelTask kinds. Providers are registered with a runtime builder
// and identified by ProviderID (e.g. "local/vec", "remote/openai").
type Provider interface {
	// ProviderID uniquely identifies this provider.
	ProviderID() string
	// Capabilities reports the tasks this provider supports.
	Capabilities() Capabilities
	// Load loads (or connects to) a model described by spec and returns a
	// Handle. ctx carries the per-load timeout.
	Load(ctx context.Context, spec api.ModelAliasSpec) (Handle, error)
	// Health reports the current health of this provider.
	Health(ctx context.Context) Health
	// Warmup is an optional one-time provider-wide initialization hook,
	// invoked during runtime startup. The default behavior (when a
	// provider embeds NopWarmup) is a no-op.
	Warmup(ctx context.Context) error
}

// NopWarmup can be embedded by providers with no provider-wide startup
// work, satisfying the Warmup method of Provider.
type NopWarmup struct{}

// Warmup is a no-op.
func (NopWarmup) Warmup(context.Context) error { return nil }

// HandleKind discriminates which task interface a Handle carries.
type HandleKind int

const (
	HandleEmbedding HandleKind = iota
	HandleReranker
	HandleGenerator
)

// Handle is a reference-counted, tagged-variant handle to a loaded model
// instance. Exactly one of the Embedding/Reranker/Generator accessors
// returns non-nil, matching Kind. This replaces a runtime-reflection
// downcast (Go has no exact equivalent of a dyn Any cast) with an explicit
// tag checked once at resolution time.
type Handle struct {
	Kind      HandleKind
	embedding EmbeddingModel
	reranker  RerankerModel
	generator GeneratorModel
}

// NewEmbeddingHandle wraps m as a Handle tagged HandleEmbedding.
func NewEmbeddingHandle(m EmbeddingModel) Handle {
	return Handle{Kind: HandleEmbedding, embedding: m}
}

// NewRerankerHandle wraps m as a Handle tagged HandleReranker.
func NewRerankerHandle(m RerankerModel) Handle {
	return Handle{Kind: HandleReranker, reranker: m}
}

// NewGeneratorHandle wraps m as a Handle tagged HandleGenerator.
func NewGeneratorHandle(m GeneratorModel) Handle {
	return Handle{Kind: HandleGenerator, generator: m}
}

// AsEmbedding returns the wrapped EmbeddingModel and true if Kind is
// HandleEmbedding.
func (h Handle) AsEmbedding() (EmbeddingModel, bool) {
	if h.Kind != HandleEmbedding || h.embedding == nil {
		return nil, false
	}
	return h.embedding, true
}

// AsReranker returns the wrapped RerankerModel and true if Kind is
// HandleReranker.
func (h Handle) AsReranker() (RerankerModel, bool) {
	if h.Kind != HandleReranker || h.reranker == nil {
		return nil, false
	}
	return h.reranker, true
}

// AsGenerator returns the wrapped GeneratorModel and true if Kind is
// HandleGenerator.
func (h Handle) AsGenerator() (GeneratorModel, bool) {
	if h.Kind != HandleGenerator || h.generator == nil {
		return nil, false
	}
	return h.generator, true
}

// NopModelWarmup can be embedded by task model implementations with no
// first-access warmup work, satisfying the Warmup method each task
// interface requires.
type NopModelWarmup struct{}

// Warmup is a no-op.
func (NopModelWarmup) Warmup(context.Context) error { return nil }

// EmbeddingModel produces dense vector embeddings from text.
type EmbeddingModel interface {
	// Embed embeds a batch of input texts, returning one vector per input.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions is the dimensionality of vectors this model produces.
	Dimensions() uint32
	// ModelID is the underlying model identifier.
	ModelID() string
	// Warmup is an optional hook run once after load, before the model is
	// cached and handed to callers (e.g. loading weights into memory).
	Warmup(ctx context.Context) error
}

// ScoredDoc is a single scored document returned by a RerankerModel.
type ScoredDoc struct {
	// Index is the zero-based index into the original docs slice.
	Index int
	// Score is the relevance score (higher is more relevant).
	Score float32
	// Text is the document text, if the provider echoes it back.
	Text *string
}

// RerankerModel re-scores documents against a query for relevance ranking.
type RerankerModel interface {
	// Rerank scores docs against query, typically returning results sorted
	// by descending score.
	Rerank(ctx context.Context, query string, docs []string) ([]ScoredDoc, error)
	// Warmup is an optional hook run once after load. See EmbeddingModel.
	Warmup(ctx context.Context) error
}

// GenerationOptions carries sampling and length parameters for text
// generation. Zero values mean "use the provider's default".
type GenerationOptions struct {
	MaxTokens   *int
	Temperature *float32
	TopP        *float32
}

// TokenUsage is the token accounting for a single generation call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GenerationResult is the output of a text generation call.
type GenerationResult struct {
	Text  string
	Usage *TokenUsage
}

// GeneratorModel generates text from a conversational message history.
// Messages alternate user/assistant turns starting with a user turn.
type GeneratorModel interface {
	Generate(ctx context.Context, messages []string, opts GenerationOptions) (GenerationResult, error)
	// Warmup is an optional hook run once after load. See EmbeddingModel.
	Warmup(ctx context.Context) error
}
