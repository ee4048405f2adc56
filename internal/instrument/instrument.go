// Package instrument implements the generic instrumented-call apparatus
// shared by every task wrapper (embedding, reranker, generator): a timeout
// applied to each attempt, exponential-backoff retry across attempts for
// retryable errors only, and metrics emitted exactly once per call
// regardless of how many attempts it took.
package instrument

import (
	"context"
	"time"

	"github.com/inferray/modelrt/api"
	"github.com/inferray/modelrt/internal/obsmetrics"
	"github.com/inferray/modelrt/internal/obslog"
	"github.com/inferray/modelrt/modelrterrs"
)

// Labels identifies the alias/task/provider label set attached to metrics
// for a single instrumented component.
type Labels struct {
	Alias    string
	Task     string
	Provider string
}

// Config bundles the per-alias timeout and retry policy applied to every
// call through this wrapper. A nil Timeout means "no timeout"; a nil Retry
// means "never retry" (a single attempt).
type Config struct {
	Timeout *time.Duration
	Retry   *api.RetryConfig
}

// Call runs fn through the configured timeout/retry/metrics envelope.
// fn is invoked once per attempt; each attempt individually respects
// cfg.Timeout (via a derived context), and attempts continue until fn
// succeeds, a non-retryable error is returned, or the retry budget is
// exhausted. Metrics (duration histogram + total counter) are recorded
// exactly once, after the loop concludes, labelled by labels and a final
// "success"/"error" status.
func Call[T any](ctx context.Context, labels Labels, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	maxAttempts := uint32(1)
	if cfg.Retry != nil && cfg.Retry.MaxAttempts > 0 {
		maxAttempts = cfg.Retry.MaxAttempts
	}

	var attempt uint32
	var result T
	var err error
retryLoop:
	for {
		attempt++
		result, err = callOnce(ctx, cfg.Timeout, fn)
		if err == nil {
			break
		}
		if !modelrterrs.IsRetryable(err) || attempt >= maxAttempts {
			break
		}
		backoff := time.Duration(cfg.Retry.Backoff(attempt)) * time.Millisecond
		obslog.FromContext(ctx).Warn("retrying inference call",
			"alias", labels.Alias,
			"task", labels.Task,
			"provider", labels.Provider,
			"attempt", attempt,
			"backoff_ms", backoff.Milliseconds(),
			"error", err,
		)
		select {
		case <-ctx.Done():
			err = modelrterrs.Wrap(modelrterrs.KindTimeout, "context cancelled during retry backoff", ctx.Err())
			var zero T
			result = zero
			break retryLoop
		case <-time.After(backoff):
		}
	}

	duration := time.Since(start)
	status := "success"
	if err != nil {
		status = "error"
	}
	obsmetrics.InferenceDuration.WithLabelValues(labels.Alias, labels.Task, labels.Provider).Observe(duration.Seconds())
	obsmetrics.InferenceTotal.WithLabelValues(labels.Alias, labels.Task, labels.Provider, status).Inc()
	return result, err
}

func callOnce[T any](ctx context.Context, timeout *time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout == nil {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, e := fn(callCtx)
		done <- outcome{v, e}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-callCtx.Done():
		var zero T
		return zero, modelrterrs.New(modelrterrs.KindTimeout, "inference call timed out")
	}
}
