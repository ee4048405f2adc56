// Package api defines the catalog data model: model tasks, warmup policy,
// retry configuration, and the declarative alias spec that maps a
// human-readable name to a concrete provider + model pair.
//
// A catalog is a []ModelAliasSpec, built programmatically or parsed from
// JSON/YAML with CatalogFromString / CatalogFromFile.
package api

import (
	"fmt"
)

// ModelTask identifies the kind of inference task a model performs.
type ModelTask string

// ModelTask constants. Enumerations serialize as lowercase snake_case.
const (
	TaskEmbed    ModelTask = "embed"
	TaskRerank   ModelTask = "rerank"
	TaskGenerate ModelTask = "generate"
)

// Valid reports whether t is one of the recognized task constants.
func (t ModelTask) Valid() bool {
	switch t {
	case TaskEmbed, TaskRerank, TaskGenerate:
		return true
	default:
		return false
	}
}

// WarmupPolicy controls when a model or provider is initialized during
// runtime startup.
type WarmupPolicy string

// WarmupPolicy constants. WarmupLazy is the default when unset.
const (
	// WarmupEager loads immediately during Builder.Build; startup blocks
	// until the load completes (or fails).
	WarmupEager WarmupPolicy = "eager"
	// WarmupLazy defers loading until the first inference request.
	WarmupLazy WarmupPolicy = "lazy"
	// WarmupBackground spawns loading in a detached goroutine at startup.
	WarmupBackground WarmupPolicy = "background"
)

// Valid reports whether p is one of the recognized warmup constants, or empty
// (which is normalized to WarmupLazy by the caller).
func (p WarmupPolicy) Valid() bool {
	switch p {
	case "", WarmupEager, WarmupLazy, WarmupBackground:
		return true
	default:
		return false
	}
}

// Normalized returns p, or WarmupLazy if p is the empty string.
func (p WarmupPolicy) Normalized() WarmupPolicy {
	if p == "" {
		return WarmupLazy
	}
	return p
}

// RetryConfig configures exponential-backoff retries for transient
// inference failures.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the initial
	// call. Must be >= 1.
	MaxAttempts uint32 `json:"max_attempts" yaml:"max_attempts"`
	// InitialBackoffMS is the base delay in milliseconds; doubled on each
	// subsequent attempt.
	InitialBackoffMS uint64 `json:"initial_backoff_ms" yaml:"initial_backoff_ms"`
}

// Backoff computes the backoff duration in milliseconds for the given
// 1-based attempt number, using initial_backoff_ms * 2^(attempt-1) with
// saturating arithmetic (no overflow panic on large attempt counts).
func (r RetryConfig) Backoff(attempt uint32) uint64 {
	if attempt == 0 {
		attempt = 1
	}
	shift := attempt - 1
	if shift >= 63 {
		// Saturate rather than overflow a 64-bit shift.
		if r.InitialBackoffMS == 0 {
			return 0
		}
		return ^uint64(0)
	}
	factor := uint64(1) << shift
	ms := r.InitialBackoffMS * factor
	// Detect multiplication overflow (wrapped around to a smaller value).
	if r.InitialBackoffMS != 0 && ms/r.InitialBackoffMS != factor {
		return ^uint64(0)
	}
	return ms
}

// ModelAliasSpec is the declarative catalog entry mapping a human-readable
// alias to a concrete provider + model pair.
type ModelAliasSpec struct {
	// Alias is the human-readable name used to request this model
	// (e.g. "embed/default"). Must contain a '/'.
	Alias string `json:"alias" yaml:"alias"`
	// Task is the inference task this alias targets.
	Task ModelTask `json:"task" yaml:"task"`
	// ProviderID identifies the provider that will load this model
	// (e.g. "local/vec", "remote/openai").
	ProviderID string `json:"provider_id" yaml:"provider_id"`
	// ModelID is the model identifier understood by the provider.
	ModelID string `json:"model_id" yaml:"model_id"`
	// Revision is an optional upstream version tag (branch, tag, commit).
	Revision *string `json:"revision,omitempty" yaml:"revision,omitempty"`
	// Warmup controls when this alias is initialized. Defaults to WarmupLazy.
	Warmup WarmupPolicy `json:"warmup,omitempty" yaml:"warmup,omitempty"`
	// Required, if true, makes an eager warmup failure abort runtime
	// construction.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`
	// Timeout is the optional per-inference timeout in seconds. Zero is
	// rejected at validation (use nil/omit for "no timeout").
	Timeout *uint64 `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// LoadTimeout is the optional model-load timeout in seconds. Defaults to
	// DefaultLoadTimeoutSeconds when unset.
	LoadTimeout *uint64 `json:"load_timeout,omitempty" yaml:"load_timeout,omitempty"`
	// Retry configures exponential-backoff retry for transient errors.
	Retry *RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
	// Options carries arbitrary provider-specific configuration: an object,
	// null, or any other JSON shape.
	Options interface{} `json:"options,omitempty" yaml:"options,omitempty"`
}

// DefaultLoadTimeoutSeconds is applied when LoadTimeout is unset.
const DefaultLoadTimeoutSeconds = 600

// LoadTimeoutOrDefault returns the configured load timeout, or
// DefaultLoadTimeoutSeconds if unset.
func (s ModelAliasSpec) LoadTimeoutOrDefault() uint64 {
	if s.LoadTimeout == nil {
		return DefaultLoadTimeoutSeconds
	}
	return *s.LoadTimeout
}

// Validate checks the invariants from the catalog data model: alias
// non-empty and containing '/', and non-zero timeout / load_timeout when
// set.
func (s ModelAliasSpec) Validate() error {
	if s.Alias == "" {
		return fmt.Errorf("config: alias cannot be empty")
	}
	if !containsSlash(s.Alias) {
		return fmt.Errorf("config: alias %q must be in 'category/name' format", s.Alias)
	}
	if s.Timeout != nil && *s.Timeout == 0 {
		return fmt.Errorf("config: inference timeout must be greater than 0")
	}
	if s.LoadTimeout != nil && *s.LoadTimeout == 0 {
		return fmt.Errorf("config: load timeout must be greater than 0")
	}
	if !s.Task.Valid() {
		return fmt.Errorf("config: unknown task %q for alias %q", s.Task, s.Alias)
	}
	if !s.Warmup.Valid() {
		return fmt.Errorf("config: unknown warmup policy %q for alias %q", s.Warmup, s.Alias)
	}
	return nil
}

func containsSlash(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return true
		}
	}
	return false
}
