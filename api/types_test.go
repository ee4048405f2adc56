package api

import "testing"

func TestModelTaskValid(t *testing.T) {
	valid := []ModelTask{TaskEmbed, TaskRerank, TaskGenerate}
	for _, task := range valid {
		if !task.Valid() {
			t.Errorf("expected %q to be valid", task)
		}
	}
	if ModelTask("summarize").Valid() {
		t.Error("expected unknown task to be invalid")
	}
}

func TestWarmupPolicyNormalized(t *testing.T) {
	if got := WarmupPolicy("").Normalized(); got != WarmupLazy {
		t.Errorf("expected empty policy to normalize to lazy, got %q", got)
	}
	if got := WarmupEager.Normalized(); got != WarmupEager {
		t.Errorf("expected eager to normalize to itself, got %q", got)
	}
}

func TestRetryConfigBackoffDoublesPerAttempt(t *testing.T) {
	r := RetryConfig{MaxAttempts: 5, InitialBackoffMS: 100}
	cases := map[uint32]uint64{1: 100, 2: 200, 3: 400, 4: 800}
	for attempt, want := range cases {
		if got := r.Backoff(attempt); got != want {
			t.Errorf("Backoff(%d) = %d, want %d", attempt, got, want)
		}
	}
}

func TestRetryConfigBackoffSaturatesRatherThanOverflows(t *testing.T) {
	r := RetryConfig{MaxAttempts: 100, InitialBackoffMS: 1000}
	if got := r.Backoff(100); got != ^uint64(0) {
		t.Errorf("expected saturated backoff for a huge attempt count, got %d", got)
	}
}

func TestModelAliasSpecValidateRejectsMissingSlash(t *testing.T) {
	spec := ModelAliasSpec{Alias: "embed-default", Task: TaskEmbed, ProviderID: "local/vec", ModelID: "m"}
	if err := spec.Validate(); err == nil {
		t.Fatal("expected validation error for alias without '/'")
	}
}

func TestModelAliasSpecValidateRejectsZeroTimeout(t *testing.T) {
	zero := uint64(0)
	spec := ModelAliasSpec{Alias: "embed/default", Task: TaskEmbed, ProviderID: "local/vec", ModelID: "m", Timeout: &zero}
	if err := spec.Validate(); err == nil {
		t.Fatal("expected validation error for zero timeout")
	}
}

func TestModelAliasSpecValidateRejectsUnknownTask(t *testing.T) {
	spec := ModelAliasSpec{Alias: "embed/default", Task: "unknown", ProviderID: "local/vec", ModelID: "m"}
	if err := spec.Validate(); err == nil {
		t.Fatal("expected validation error for unknown task")
	}
}

func TestModelAliasSpecValidateAcceptsMinimalValidSpec(t *testing.T) {
	spec := ModelAliasSpec{Alias: "embed/default", Task: TaskEmbed, ProviderID: "local/vec", ModelID: "m"}
	if err := spec.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestLoadTimeoutOrDefault(t *testing.T) {
	spec := ModelAliasSpec{}
	if got := spec.LoadTimeoutOrDefault(); got != DefaultLoadTimeoutSeconds {
		t.Errorf("expected default load timeout, got %d", got)
	}
	custom := uint64(30)
	spec.LoadTimeout = &custom
	if got := spec.LoadTimeoutOrDefault(); got != 30 {
		t.Errorf("expected custom load timeout 30, got %d", got)
	}
}
