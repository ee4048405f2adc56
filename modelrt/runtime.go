// Package modelrt is the unified client runtime: a caller declares named
// aliases mapped to concrete provider+model pairs, the runtime resolves
// each alias lazily, loads the model on first use, caches it for reuse,
// and wraps every inference call with timeout, retry, and metrics
// instrumentation.
package modelrt

import (
	"context"
	"sync"
	"time"

	"github.com/inferray/modelrt/api"
	"github.com/inferray/modelrt/internal/instrument"
	"github.com/inferray/modelrt/internal/loadlog"
	"github.com/inferray/modelrt/internal/obslog"
	"github.com/inferray/modelrt/internal/obsmetrics"
	"github.com/inferray/modelrt/internal/optionschema"
	"github.com/inferray/modelrt/internal/registry"
	"github.com/inferray/modelrt/modelrterrs"
	"github.com/inferray/modelrt/provider"
)

// Runtime owns a set of registered providers and a catalog of model
// aliases. Obtain one via NewBuilder(). Once built, use Embedding,
// Reranker, or Generator to obtain typed, instrumented model handles.
type Runtime struct {
	providers map[string]provider.Provider
	registry  *registry.Registry
	schemas   *optionschema.Registry
	loadLog   loadlog.Writer

	catalogMu sync.RWMutex
	catalog   map[string]api.ModelAliasSpec
}

// Register adds a new alias to the catalog at runtime (after Build).
// Rejects unknown providers, invalid specs, invalid options, and aliases
// that already exist.
func (r *Runtime) Register(spec api.ModelAliasSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if _, ok := r.providers[spec.ProviderID]; !ok {
		return modelrterrs.Newf(modelrterrs.KindProviderNotFound, "unknown provider %q for alias %q", spec.ProviderID, spec.Alias)
	}
	if err := r.schemas.Validate(spec.ProviderID, spec.Task, spec.Options); err != nil {
		return err
	}

	r.catalogMu.Lock()
	defer r.catalogMu.Unlock()
	if _, exists := r.catalog[spec.Alias]; exists {
		return modelrterrs.Newf(modelrterrs.KindConfig, "alias %q already exists", spec.Alias)
	}
	r.catalog[spec.Alias] = spec
	return nil
}

// ContainsAlias reports whether alias exists in the catalog.
func (r *Runtime) ContainsAlias(alias string) bool {
	r.catalogMu.RLock()
	defer r.catalogMu.RUnlock()
	_, ok := r.catalog[alias]
	return ok
}

func (r *Runtime) lookupSpec(alias string) (api.ModelAliasSpec, error) {
	r.catalogMu.RLock()
	defer r.catalogMu.RUnlock()
	spec, ok := r.catalog[alias]
	if !ok {
		return api.ModelAliasSpec{}, modelrterrs.Newf(modelrterrs.KindConfig, "alias %q not found", alias)
	}
	return spec, nil
}

func (r *Runtime) snapshotCatalog() []api.ModelAliasSpec {
	r.catalogMu.RLock()
	defer r.catalogMu.RUnlock()
	specs := make([]api.ModelAliasSpec, 0, len(r.catalog))
	for _, spec := range r.catalog {
		specs = append(specs, spec)
	}
	return specs
}

// PrefetchAll pre-loads and caches every model in the catalog. Already
// loaded models are skipped. Fails fast on the first error.
func (r *Runtime) PrefetchAll(ctx context.Context) error {
	for _, spec := range r.snapshotCatalog() {
		obslog.FromContext(ctx).Info("prefetching model", "alias", spec.Alias)
		if _, err := r.resolveAndLoad(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

// Prefetch pre-loads and caches the named aliases, failing fast on the
// first alias that is unknown or fails to load.
func (r *Runtime) Prefetch(ctx context.Context, aliases []string) error {
	for _, alias := range aliases {
		spec, err := r.lookupSpec(alias)
		if err != nil {
			return err
		}
		obslog.FromContext(ctx).Info("prefetching model", "alias", alias)
		if _, err := r.resolveAndLoad(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

// Embedding resolves, loads if necessary, and returns an instrumented
// EmbeddingModel for alias.
func (r *Runtime) Embedding(ctx context.Context, alias string) (provider.EmbeddingModel, error) {
	spec, err := r.lookupSpec(alias)
	if err != nil {
		return nil, err
	}
	handle, err := r.resolveAndLoad(ctx, spec)
	if err != nil {
		return nil, err
	}
	model, ok := handle.AsEmbedding()
	if !ok {
		return nil, modelrterrs.Newf(modelrterrs.KindCapabilityMismatch, "model for alias %q does not implement EmbeddingModel", alias)
	}
	return &instrumentedEmbedding{inner: model, labels: labelsFor(alias, "embed", spec), cfg: cfgFor(spec)}, nil
}

// Reranker resolves, loads if necessary, and returns an instrumented
// RerankerModel for alias.
func (r *Runtime) Reranker(ctx context.Context, alias string) (provider.RerankerModel, error) {
	spec, err := r.lookupSpec(alias)
	if err != nil {
		return nil, err
	}
	handle, err := r.resolveAndLoad(ctx, spec)
	if err != nil {
		return nil, err
	}
	model, ok := handle.AsReranker()
	if !ok {
		return nil, modelrterrs.Newf(modelrterrs.KindCapabilityMismatch, "model for alias %q does not implement RerankerModel", alias)
	}
	return &instrumentedReranker{inner: model, labels: labelsFor(alias, "rerank", spec), cfg: cfgFor(spec)}, nil
}

// Generator resolves, loads if necessary, and returns an instrumented
// GeneratorModel for alias.
func (r *Runtime) Generator(ctx context.Context, alias string) (provider.GeneratorModel, error) {
	spec, err := r.lookupSpec(alias)
	if err != nil {
		return nil, err
	}
	handle, err := r.resolveAndLoad(ctx, spec)
	if err != nil {
		return nil, err
	}
	model, ok := handle.AsGenerator()
	if !ok {
		return nil, modelrterrs.Newf(modelrterrs.KindCapabilityMismatch, "model for alias %q does not implement GeneratorModel", alias)
	}
	return &instrumentedGenerator{inner: model, labels: labelsFor(alias, "generate", spec), cfg: cfgFor(spec)}, nil
}

// InFlightLoads reports how many keys are currently mid-load. Exposed
// read-only for observability and tests.
func (r *Runtime) InFlightLoads() int {
	return r.registry.InFlightLoads()
}

func labelsFor(alias, task string, spec api.ModelAliasSpec) instrument.Labels {
	return instrument.Labels{Alias: alias, Task: task, Provider: spec.ProviderID}
}

func cfgFor(spec api.ModelAliasSpec) instrument.Config {
	cfg := instrument.Config{Retry: spec.Retry}
	if spec.Timeout != nil {
		d := time.Duration(*spec.Timeout) * time.Second
		cfg.Timeout = &d
	}
	return cfg
}

// resolveAndLoad implements the fast-path/slow-path/double-check load
// coordination protocol: a cache hit returns immediately; otherwise the
// caller serializes behind a per-key loader lock, re-checks the cache
// after acquiring it (in case a concurrent loader finished first), then
// loads under a timeout, warms up the result, caches it, and always
// releases the loader-lock table entry — on success, failure, or timeout
// alike — so the table never grows unbounded.
func (r *Runtime) resolveAndLoad(ctx context.Context, spec api.ModelAliasSpec) (provider.Handle, error) {
	key := api.NewModelRuntimeKey(spec)

	if handle, ok := r.registry.Lookup(key); ok {
		return handle, nil
	}

	lock := r.registry.AcquireLoaderLock(key)
	lock.Lock()
	defer lock.Unlock()

	if handle, ok := r.registry.Lookup(key); ok {
		r.registry.ReleaseLoaderLock(key)
		return handle, nil
	}

	loadTimeout := time.Duration(spec.LoadTimeoutOrDefault()) * time.Second
	handle, err := r.loadUnderTimeout(ctx, spec, key, loadTimeout)

	r.registry.ReleaseLoaderLock(key)
	return handle, err
}

func (r *Runtime) loadUnderTimeout(ctx context.Context, spec api.ModelAliasSpec, key api.ModelRuntimeKey, loadTimeout time.Duration) (provider.Handle, error) {
	type outcome struct {
		handle provider.Handle
		err    error
	}
	done := make(chan outcome, 1)
	loadCtx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	go func() {
		handle, err := r.doLoad(loadCtx, spec, key)
		done <- outcome{handle, err}
	}()

	select {
	case o := <-done:
		return o.handle, o.err
	case <-loadCtx.Done():
		obslog.FromContext(ctx).Error("model load timed out",
			"alias", spec.Alias, "provider", spec.ProviderID, "timeout_secs", loadTimeout.Seconds())
		r.recordLoad(ctx, key, spec, "error", loadTimeout, "load timed out")
		return provider.Handle{}, modelrterrs.New(modelrterrs.KindTimeout, "model load timed out")
	}
}

func (r *Runtime) doLoad(ctx context.Context, spec api.ModelAliasSpec, key api.ModelRuntimeKey) (provider.Handle, error) {
	p, ok := r.providers[spec.ProviderID]
	if !ok {
		return provider.Handle{}, modelrterrs.Newf(modelrterrs.KindProviderNotFound, "provider %q not found", spec.ProviderID)
	}

	obslog.FromContext(ctx).Info("loading model instance", "alias", spec.Alias, "provider", spec.ProviderID)
	start := time.Now()
	handle, err := p.Load(ctx, spec)
	duration := time.Since(start)
	obsmetrics.LoadDuration.WithLabelValues(spec.ProviderID, spec.ModelID).Observe(duration.Seconds())

	if err != nil {
		obsmetrics.LoadTotal.WithLabelValues(spec.ProviderID, spec.ModelID, "error").Inc()
		obslog.FromContext(ctx).Error("model load failed", "alias", spec.Alias, "error", err)
		r.recordLoad(ctx, key, spec, "error", duration, err.Error())
		return provider.Handle{}, err
	}
	obsmetrics.LoadTotal.WithLabelValues(spec.ProviderID, spec.ModelID, "success").Inc()

	if err := warmupHandle(ctx, handle); err != nil {
		r.recordLoad(ctx, key, spec, "error", duration, err.Error())
		return provider.Handle{}, err
	}

	r.registry.Store(key, handle)
	obslog.FromContext(ctx).Info("model instance loaded", "alias", spec.Alias, "provider", spec.ProviderID, "duration_ms", duration.Milliseconds())
	r.recordLoad(ctx, key, spec, "success", duration, "")
	return handle, nil
}

func warmupHandle(ctx context.Context, handle provider.Handle) error {
	switch handle.Kind {
	case provider.HandleEmbedding:
		if m, ok := handle.AsEmbedding(); ok {
			return m.Warmup(ctx)
		}
	case provider.HandleReranker:
		if m, ok := handle.AsReranker(); ok {
			return m.Warmup(ctx)
		}
	case provider.HandleGenerator:
		if m, ok := handle.AsGenerator(); ok {
			return m.Warmup(ctx)
		}
	}
	return nil
}

func (r *Runtime) recordLoad(ctx context.Context, key api.ModelRuntimeKey, spec api.ModelAliasSpec, status string, duration time.Duration, errMsg string) {
	if r.loadLog == nil {
		return
	}
	if err := r.loadLog.Write(ctx, loadlog.Entry{
		RuntimeKey:   key.String(),
		ProviderID:   spec.ProviderID,
		ModelID:      spec.ModelID,
		Status:       status,
		DurationMS:   duration.Milliseconds(),
		ErrorMessage: errMsg,
	}); err != nil {
		obslog.FromContext(ctx).Warn("failed to write load-log entry", "error", err)
	}
}
