// Package modelrttest provides fake, in-memory provider and model
// implementations for tests: configurable failure counts, load delays, and
// warmup call counters, so runtime/registry/instrumentation behavior can be
// exercised without a real backend.
package modelrttest

import (
	"context"
	"sync"
	"time"

	"github.com/inferray/modelrt/api"
	"github.com/inferray/modelrt/modelrterrs"
	"github.com/inferray/modelrt/provider"
)

// EmbeddingModel is a configurable fake EmbeddingModel.
type EmbeddingModel struct {
	Dims    uint32
	Model   string
	EmbedDelay time.Duration

	mu         sync.Mutex
	failCount  int
	callCount  int
	warmCount  int
	failAlways bool
}

// NewEmbeddingModel returns a fake model that always succeeds, producing
// deterministic 0.1-valued vectors of width dims.
func NewEmbeddingModel(dims uint32, modelID string) *EmbeddingModel {
	return &EmbeddingModel{Dims: dims, Model: modelID}
}

// WithFailCount makes the next n Embed calls fail with a retryable
// RateLimited error, then succeed thereafter.
func (m *EmbeddingModel) WithFailCount(n int) *EmbeddingModel {
	m.failCount = n
	return m
}

// WithFailure makes every Embed call fail with a non-retryable error.
func (m *EmbeddingModel) WithFailure(fail bool) *EmbeddingModel {
	m.failAlways = fail
	return m
}

// WithDelay adds a fixed delay before every Embed call returns.
func (m *EmbeddingModel) WithDelay(d time.Duration) *EmbeddingModel {
	m.EmbedDelay = d
	return m
}

func (m *EmbeddingModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.EmbedDelay > 0 {
		select {
		case <-time.After(m.EmbedDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.failAlways {
		return nil, modelrterrs.New(modelrterrs.KindInference, "mock embedding failure")
	}

	m.mu.Lock()
	if m.failCount > 0 {
		m.failCount--
		m.mu.Unlock()
		return nil, modelrterrs.New(modelrterrs.KindRateLimited, "mock rate limit")
	}
	m.mu.Unlock()

	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, m.Dims)
		for j := range vec {
			vec[j] = 0.1
		}
		out[i] = vec
	}
	return out, nil
}

func (m *EmbeddingModel) Dimensions() uint32 { return m.Dims }
func (m *EmbeddingModel) ModelID() string    { return m.Model }

func (m *EmbeddingModel) Warmup(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warmCount++
	return nil
}

// CallCount reports how many times Embed was invoked.
func (m *EmbeddingModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// WarmupCount reports how many times Warmup was invoked.
func (m *EmbeddingModel) WarmupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warmCount
}

// RerankerModel is a configurable fake RerankerModel.
type RerankerModel struct {
	provider.NopModelWarmup
	FailOnRerank bool

	mu        sync.Mutex
	callCount int
}

// NewRerankerModel returns a fake reranker that always succeeds.
func NewRerankerModel() *RerankerModel { return &RerankerModel{} }

func (m *RerankerModel) Rerank(_ context.Context, _ string, docs []string) ([]provider.ScoredDoc, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.FailOnRerank {
		return nil, modelrterrs.New(modelrterrs.KindInference, "mock reranker failure")
	}

	out := make([]provider.ScoredDoc, len(docs))
	for i, doc := range docs {
		text := doc
		out[i] = provider.ScoredDoc{Index: i, Score: 1.0 / float32(i+1), Text: &text}
	}
	return out, nil
}

func (m *RerankerModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// GeneratorModel is a configurable fake GeneratorModel.
type GeneratorModel struct {
	provider.NopModelWarmup
	ResponseText   string
	FailOnGenerate bool

	mu        sync.Mutex
	callCount int
}

// NewGeneratorModel returns a fake generator that always echoes responseText.
func NewGeneratorModel(responseText string) *GeneratorModel {
	return &GeneratorModel{ResponseText: responseText}
}

func (m *GeneratorModel) Generate(_ context.Context, messages []string, _ provider.GenerationOptions) (provider.GenerationResult, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.FailOnGenerate {
		return provider.GenerationResult{}, modelrterrs.New(modelrterrs.KindInference, "mock generator failure")
	}

	promptWords := 0
	for _, msg := range messages {
		promptWords += len(splitWords(msg))
	}
	completionWords := len(splitWords(m.ResponseText))

	return provider.GenerationResult{
		Text: m.ResponseText,
		Usage: &provider.TokenUsage{
			PromptTokens:     promptWords,
			CompletionTokens: completionWords,
			TotalTokens:      promptWords + completionWords,
		},
	}, nil
}

func (m *GeneratorModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func splitWords(s string) []string {
	var words []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\t' || r == '\n' {
			if start >= 0 {
				words = append(words, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, s[start:])
	}
	return words
}

// Provider is a configurable fake provider.Provider.
type Provider struct {
	provider.NopWarmup

	id             string
	supportedTasks []api.ModelTask
	health         provider.Health

	mu              sync.Mutex
	loadCount       int
	loadDelay       time.Duration
	failOnLoad      bool
	modelFailCnt    int
	modelAlwaysFail bool
	modelDelay      time.Duration
	warmupTracker   func()
}

// NewProvider returns a Provider identified by id, supporting the given
// tasks, healthy by default.
func NewProvider(id string, supportedTasks ...api.ModelTask) *Provider {
	return &Provider{id: id, supportedTasks: supportedTasks, health: provider.Health{Status: provider.HealthHealthy}}
}

// EmbedOnly returns a Provider supporting only Embed, under "mock/embed".
func EmbedOnly() *Provider { return NewProvider("mock/embed", api.TaskEmbed) }

// GenerateOnly returns a Provider supporting only Generate, under
// "mock/generate".
func GenerateOnly() *Provider { return NewProvider("mock/generate", api.TaskGenerate) }

// RerankOnly returns a Provider supporting only Rerank, under "mock/rerank".
func RerankOnly() *Provider { return NewProvider("mock/rerank", api.TaskRerank) }

// Failing returns a Provider whose every Load call fails.
func Failing() *Provider {
	p := NewProvider("mock/failing", api.TaskEmbed)
	p.failOnLoad = true
	return p
}

// WithLoadDelay makes Load sleep for d before doing anything else.
func (p *Provider) WithLoadDelay(d time.Duration) *Provider {
	p.loadDelay = d
	return p
}

// WithModelFailCount makes the loaded embedding model fail its first n
// Embed calls with a retryable error.
func (p *Provider) WithModelFailCount(n int) *Provider {
	p.modelFailCnt = n
	return p
}

// WithModelAlwaysFail makes the loaded embedding model fail every Embed call
// with a non-retryable error.
func (p *Provider) WithModelAlwaysFail(fail bool) *Provider {
	p.modelAlwaysFail = fail
	return p
}

// WithModelDelay adds a fixed delay to every Embed call on the loaded
// embedding model.
func (p *Provider) WithModelDelay(d time.Duration) *Provider {
	p.modelDelay = d
	return p
}

// WithHealth overrides the health status this provider reports.
func (p *Provider) WithHealth(h provider.Health) *Provider {
	p.health = h
	return p
}

// WithWarmupTracker registers a callback invoked once per loaded model's
// Warmup call.
func (p *Provider) WithWarmupTracker(fn func()) *Provider {
	p.warmupTracker = fn
	return p
}

func (p *Provider) ProviderID() string { return p.id }

func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{SupportedTasks: p.supportedTasks}
}

func (p *Provider) Health(context.Context) provider.Health { return p.health }

func (p *Provider) LoadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadCount
}

func (p *Provider) Load(ctx context.Context, spec api.ModelAliasSpec) (provider.Handle, error) {
	p.mu.Lock()
	p.loadCount++
	p.mu.Unlock()

	if p.loadDelay > 0 {
		select {
		case <-time.After(p.loadDelay):
		case <-ctx.Done():
			return provider.Handle{}, ctx.Err()
		}
	}

	if p.failOnLoad {
		return provider.Handle{}, modelrterrs.New(modelrterrs.KindLoad, "mock load failure")
	}

	supported := false
	for _, t := range p.supportedTasks {
		if t == spec.Task {
			supported = true
			break
		}
	}
	if !supported {
		return provider.Handle{}, modelrterrs.Newf(modelrterrs.KindCapabilityMismatch, "mock provider does not support task %q", spec.Task)
	}

	switch spec.Task {
	case api.TaskEmbed:
		m := NewEmbeddingModel(384, spec.ModelID)
		if p.modelDelay > 0 {
			m.WithDelay(p.modelDelay)
		}
		if p.modelFailCnt > 0 {
			m.WithFailCount(p.modelFailCnt)
		}
		if p.modelAlwaysFail {
			m.WithFailure(true)
		}
		if p.warmupTracker != nil {
			inner := m
			return provider.NewEmbeddingHandle(&trackedEmbeddingModel{EmbeddingModel: inner, onWarmup: p.warmupTracker}), nil
		}
		return provider.NewEmbeddingHandle(m), nil
	case api.TaskRerank:
		return provider.NewRerankerHandle(NewRerankerModel()), nil
	case api.TaskGenerate:
		return provider.NewGeneratorHandle(NewGeneratorModel("mock response")), nil
	default:
		return provider.Handle{}, modelrterrs.Newf(modelrterrs.KindCapabilityMismatch, "unknown task %q", spec.Task)
	}
}

// trackedEmbeddingModel decorates an *EmbeddingModel's Warmup with an extra
// callback, used to assert warmup ran without reaching into the fake's
// private state.
type trackedEmbeddingModel struct {
	*EmbeddingModel
	onWarmup func()
}

func (m *trackedEmbeddingModel) Warmup(ctx context.Context) error {
	if err := m.EmbeddingModel.Warmup(ctx); err != nil {
		return err
	}
	m.onWarmup()
	return nil
}

// MakeSpec builds a minimal, valid ModelAliasSpec for tests: Lazy warmup,
// not required, empty options.
func MakeSpec(alias string, task api.ModelTask, providerID, modelID string) api.ModelAliasSpec {
	return api.ModelAliasSpec{
		Alias:      alias,
		Task:       task,
		ProviderID: providerID,
		ModelID:    modelID,
		Warmup:     api.WarmupLazy,
		Options:    map[string]interface{}{},
	}
}
