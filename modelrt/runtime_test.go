package modelrt

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/inferray/modelrt/api"
	"github.com/inferray/modelrt/internal/modelrttest"
)

func buildEmbedRuntime(t *testing.T, p *modelrttest.Provider, spec api.ModelAliasSpec) *Runtime {
	t.Helper()
	rt, err := NewBuilder().
		RegisterProvider(p).
		Catalog([]api.ModelAliasSpec{spec}).
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return rt
}

func TestEmbeddingResolvesAndCaches(t *testing.T) {
	p := modelrttest.EmbedOnly()
	spec := modelrttest.MakeSpec("embed/test", api.TaskEmbed, p.ProviderID(), "test-model")
	rt := buildEmbedRuntime(t, p, spec)

	model, err := rt.Embedding(context.Background(), "embed/test")
	if err != nil {
		t.Fatalf("Embedding: %v", err)
	}
	vecs, err := model.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != 384 {
		t.Fatalf("unexpected embedding shape: %v", vecs)
	}

	// Second resolve must hit the cache, not call Load again.
	if _, err := rt.Embedding(context.Background(), "embed/test"); err != nil {
		t.Fatalf("Embedding (2nd): %v", err)
	}
	if p.LoadCount() != 1 {
		t.Fatalf("expected exactly 1 Load call, got %d", p.LoadCount())
	}
}

func TestEmbeddingUnknownAlias(t *testing.T) {
	p := modelrttest.EmbedOnly()
	spec := modelrttest.MakeSpec("embed/test", api.TaskEmbed, p.ProviderID(), "test-model")
	rt := buildEmbedRuntime(t, p, spec)

	if _, err := rt.Embedding(context.Background(), "embed/nope"); err == nil {
		t.Fatal("expected error for unknown alias")
	}
}

func TestCapabilityMismatchOnWrongAccessor(t *testing.T) {
	p := modelrttest.EmbedOnly()
	spec := modelrttest.MakeSpec("embed/test", api.TaskEmbed, p.ProviderID(), "test-model")
	rt := buildEmbedRuntime(t, p, spec)

	if _, err := rt.Reranker(context.Background(), "embed/test"); err == nil {
		t.Fatal("expected capability mismatch error requesting a Reranker for an Embed-task alias")
	}
}

func TestConcurrentResolveLoadsExactlyOnce(t *testing.T) {
	p := modelrttest.EmbedOnly().WithLoadDelay(50 * time.Millisecond)
	spec := modelrttest.MakeSpec("embed/test", api.TaskEmbed, p.ProviderID(), "test-model")
	rt := buildEmbedRuntime(t, p, spec)

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := rt.Embedding(context.Background(), "embed/test"); err != nil {
				t.Errorf("Embedding: %v", err)
			}
		}()
	}
	wg.Wait()

	if p.LoadCount() != 1 {
		t.Fatalf("expected exactly 1 Load call across %d concurrent resolves, got %d", n, p.LoadCount())
	}
	if rt.InFlightLoads() != 0 {
		t.Fatalf("expected 0 in-flight loads after all resolves complete, got %d", rt.InFlightLoads())
	}
}

func TestLoaderLockCleanedUpAfterSuccessfulLoad(t *testing.T) {
	p := modelrttest.EmbedOnly()
	spec := modelrttest.MakeSpec("embed/test", api.TaskEmbed, p.ProviderID(), "test-model")
	rt := buildEmbedRuntime(t, p, spec)

	if _, err := rt.Embedding(context.Background(), "embed/test"); err != nil {
		t.Fatalf("Embedding: %v", err)
	}
	if rt.InFlightLoads() != 0 {
		t.Fatalf("expected loader lock table empty after success, got %d entries", rt.InFlightLoads())
	}
}

func TestLoaderLockCleanedUpAfterFailedLoad(t *testing.T) {
	p := modelrttest.Failing()
	spec := modelrttest.MakeSpec("embed/fail", api.TaskEmbed, p.ProviderID(), "test-model")

	rt, err := NewBuilder().
		RegisterProvider(p).
		Catalog([]api.ModelAliasSpec{spec}).
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := rt.Embedding(context.Background(), "embed/fail"); err == nil {
		t.Fatal("expected load failure")
	}
	if rt.InFlightLoads() != 0 {
		t.Fatalf("expected loader lock table empty after failure, got %d entries", rt.InFlightLoads())
	}
}

func TestLoaderLockCleanedUpAfterLoadTimeout(t *testing.T) {
	slowLoadSeconds := uint64(1)
	p := modelrttest.EmbedOnly().WithLoadDelay(2 * time.Second)
	spec := modelrttest.MakeSpec("embed/slow", api.TaskEmbed, p.ProviderID(), "test-model")
	spec.LoadTimeout = &slowLoadSeconds

	rt, err := NewBuilder().
		RegisterProvider(p).
		Catalog([]api.ModelAliasSpec{spec}).
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := rt.Embedding(context.Background(), "embed/slow"); err == nil {
		t.Fatal("expected load-timeout error")
	}
	if rt.InFlightLoads() != 0 {
		t.Fatalf("expected loader lock table empty after timeout, got %d entries", rt.InFlightLoads())
	}
}

func TestWarmupRunsOnceBeforeModelIsCached(t *testing.T) {
	var warmups int32
	p := modelrttest.EmbedOnly().WithWarmupTracker(func() { atomic.AddInt32(&warmups, 1) })
	spec := modelrttest.MakeSpec("embed/test", api.TaskEmbed, p.ProviderID(), "test-model")
	rt := buildEmbedRuntime(t, p, spec)

	if _, err := rt.Embedding(context.Background(), "embed/test"); err != nil {
		t.Fatalf("Embedding: %v", err)
	}
	if _, err := rt.Embedding(context.Background(), "embed/test"); err != nil {
		t.Fatalf("Embedding: %v", err)
	}
	if got := atomic.LoadInt32(&warmups); got != 1 {
		t.Fatalf("expected warmup exactly once, got %d", got)
	}
}

func TestRetryRecoversFromRetryableFailure(t *testing.T) {
	p := modelrttest.EmbedOnly().WithModelFailCount(2)
	spec := modelrttest.MakeSpec("embed/test", api.TaskEmbed, p.ProviderID(), "test-model")
	spec.Retry = &api.RetryConfig{MaxAttempts: 3, InitialBackoffMS: 1}
	rt := buildEmbedRuntime(t, p, spec)

	model, err := rt.Embedding(context.Background(), "embed/test")
	if err != nil {
		t.Fatalf("Embedding: %v", err)
	}
	if _, err := model.Embed(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("expected the 3rd attempt to succeed, got error: %v", err)
	}
}

func TestNonRetryableFailureIsNeverRetried(t *testing.T) {
	p := modelrttest.EmbedOnly().WithModelAlwaysFail(true)
	spec := modelrttest.MakeSpec("embed/always-fail", api.TaskEmbed, p.ProviderID(), "test-model")
	spec.Retry = &api.RetryConfig{MaxAttempts: 5, InitialBackoffMS: 1000}
	rt := buildEmbedRuntime(t, p, spec)

	model, err := rt.Embedding(context.Background(), "embed/always-fail")
	if err != nil {
		t.Fatalf("Embedding: %v", err)
	}
	start := time.Now()
	if _, err := model.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected a non-retryable inference error")
	}
	// A single retry would first sleep the 1s initial backoff.
	if elapsed := time.Since(start); elapsed >= time.Second {
		t.Fatalf("expected no retry of a non-retryable error, call took %v", elapsed)
	}
}
