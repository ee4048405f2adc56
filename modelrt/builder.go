package modelrt

import (
	"context"
	"fmt"

	"github.com/inferray/modelrt/api"
	"github.com/inferray/modelrt/internal/loadlog"
	"github.com/inferray/modelrt/internal/obslog"
	"github.com/inferray/modelrt/internal/optionschema"
	"github.com/inferray/modelrt/internal/registry"
	"github.com/inferray/modelrt/modelrterrs"
	"github.com/inferray/modelrt/provider"
)

// Builder configures and constructs a Runtime.
type Builder struct {
	providers    map[string]provider.Provider
	catalog      []api.ModelAliasSpec
	warmupPolicy api.WarmupPolicy
	schemas      *optionschema.Registry
	loadLog      loadlog.Writer
}

// NewBuilder returns an empty Builder with the default (Lazy) warmup
// policy and the built-in option schemas registered.
func NewBuilder() *Builder {
	schemas := optionschema.NewRegistry()
	optionschema.RegisterDefaults(schemas)
	return &Builder{
		providers: make(map[string]provider.Provider),
		schemas:   schemas,
		loadLog:   loadlog.NoopWriter{},
	}
}

// RegisterProvider registers p, keyed by its ProviderID. Registering a
// second provider under the same ID replaces the first.
func (b *Builder) RegisterProvider(p provider.Provider) *Builder {
	b.providers[p.ProviderID()] = p
	return b
}

// Catalog sets the model catalog from a pre-built slice of specs,
// replacing any previously set catalog.
func (b *Builder) Catalog(catalog []api.ModelAliasSpec) *Builder {
	b.catalog = catalog
	return b
}

// CatalogFromString parses and sets the catalog from a JSON or YAML
// document.
func (b *Builder) CatalogFromString(data, format string) error {
	catalog, err := api.CatalogFromString(data, format)
	if err != nil {
		return err
	}
	b.catalog = catalog
	return nil
}

// CatalogFromFile parses and sets the catalog from a JSON or YAML file.
func (b *Builder) CatalogFromFile(path string) error {
	catalog, err := api.CatalogFromFile(path)
	if err != nil {
		return err
	}
	b.catalog = catalog
	return nil
}

// WarmupPolicy sets the global, provider-level warmup policy applied
// during Build. Per-alias WarmupPolicy in the catalog is independent of
// this setting.
func (b *Builder) WarmupPolicy(policy api.WarmupPolicy) *Builder {
	b.warmupPolicy = policy
	return b
}

// WithOptionSchemas replaces the default option-schema registry, letting
// callers register schemas for their own provider IDs in addition to (or
// instead of) the built-in ones.
func (b *Builder) WithOptionSchemas(schemas *optionschema.Registry) *Builder {
	b.schemas = schemas
	return b
}

// WithLoadLog attaches an audit sink that records one row per
// resolve-and-load terminal outcome.
func (b *Builder) WithLoadLog(w loadlog.Writer) *Builder {
	b.loadLog = w
	return b
}

// Build validates the catalog, constructs the Runtime, and executes the
// warmup policy matrix: Eager warmups run synchronously before Build
// returns (a failed required warmup aborts construction; a failed
// optional warmup is logged and startup continues); Background warmups
// are spawned as detached goroutines and never awaited; Lazy is a no-op,
// deferring to first access.
func (b *Builder) Build(ctx context.Context) (*Runtime, error) {
	catalogMap := make(map[string]api.ModelAliasSpec, len(b.catalog))
	for _, spec := range b.catalog {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		if _, ok := b.providers[spec.ProviderID]; !ok {
			return nil, modelrterrs.Newf(modelrterrs.KindProviderNotFound, "unknown provider %q for alias %q", spec.ProviderID, spec.Alias)
		}
		if err := b.schemas.Validate(spec.ProviderID, spec.Task, spec.Options); err != nil {
			return nil, err
		}
		if _, exists := catalogMap[spec.Alias]; exists {
			return nil, modelrterrs.Newf(modelrterrs.KindConfig, "duplicate alias %q in catalog", spec.Alias)
		}
		catalogMap[spec.Alias] = spec
	}

	rt := &Runtime{
		providers: b.providers,
		registry:  registry.New(),
		schemas:   b.schemas,
		loadLog:   b.loadLog,
		catalog:   catalogMap,
	}

	if err := b.runProviderWarmup(ctx, rt); err != nil {
		return nil, err
	}
	if err := b.runModelWarmup(ctx, rt); err != nil {
		return nil, err
	}
	return rt, nil
}

func (b *Builder) runProviderWarmup(ctx context.Context, rt *Runtime) error {
	switch b.warmupPolicy.Normalized() {
	case api.WarmupEager:
		for id, p := range rt.providers {
			obslog.FromContext(ctx).Info("eagerly warming up provider", "provider", id)
			if err := p.Warmup(ctx); err != nil {
				return modelrterrs.Wrap(modelrterrs.KindLoad, fmt.Sprintf("failed to warm up provider %s", id), err)
			}
		}
	case api.WarmupBackground:
		for id, p := range rt.providers {
			obslog.FromContext(ctx).Info("scheduling background provider warmup", "provider", id)
			go func(id string, p provider.Provider) {
				if err := p.Warmup(context.Background()); err != nil {
					obslog.Logger.Error("background provider warmup failed", "provider", id, "error", err)
				}
			}(id, p)
		}
	default: // WarmupLazy
		obslog.FromContext(ctx).Debug("lazy provider warmup (no-op)")
	}
	return nil
}

func (b *Builder) runModelWarmup(ctx context.Context, rt *Runtime) error {
	for _, spec := range rt.snapshotCatalog() {
		switch spec.Warmup.Normalized() {
		case api.WarmupEager:
			obslog.FromContext(ctx).Info("eagerly warming up model", "alias", spec.Alias)
			if _, err := rt.resolveAndLoad(ctx, spec); err != nil {
				if spec.Required {
					return err
				}
				obslog.FromContext(ctx).Error("optional eager model warmup failed; continuing startup",
					"alias", spec.Alias, "provider", spec.ProviderID, "error", err)
			}
		case api.WarmupBackground:
			obslog.FromContext(ctx).Info("scheduling background model warmup", "alias", spec.Alias)
			spec := spec
			go func() {
				if _, err := rt.resolveAndLoad(context.Background(), spec); err != nil {
					obslog.Logger.Error("background warmup failed", "alias", spec.Alias, "error", err)
				}
			}()
		default: // WarmupLazy
			obslog.FromContext(ctx).Debug("lazy warmup (no-op)", "alias", spec.Alias)
		}
	}
	return nil
}
