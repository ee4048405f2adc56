package remotehttp

import (
	"context"
	"os"
	"testing"

	"github.com/inferray/modelrt/api"
)

func TestBedrockLoadRejectsUnsupportedTask(t *testing.T) {
	p := NewBedrock()
	spec := api.ModelAliasSpec{Task: api.TaskGenerate, ProviderID: BedrockProviderID, ModelID: "amazon.titan-embed-text-v1"}
	if _, err := p.Load(context.Background(), spec); err == nil {
		t.Fatal("expected capability mismatch error for Generate task")
	}
}

func TestBedrockCapabilities(t *testing.T) {
	p := NewBedrock()
	caps := p.Capabilities()
	if !caps.Supports(api.TaskEmbed) {
		t.Fatal("expected support for Embed")
	}
	if caps.Supports(api.TaskGenerate) || caps.Supports(api.TaskRerank) {
		t.Fatal("expected no support for Generate or Rerank")
	}
}

func TestOpenAILoadRejectsUnsupportedTask(t *testing.T) {
	p := NewOpenAI()
	spec := api.ModelAliasSpec{Task: api.TaskEmbed, ProviderID: OpenAIProviderID, ModelID: "gpt-4o"}
	if _, err := p.Load(context.Background(), spec); err == nil {
		t.Fatal("expected capability mismatch error for Embed task")
	}
}

func TestOpenAILoadFailsWithoutAPIKey(t *testing.T) {
	os.Unsetenv("OPENAI_API_KEY")
	p := NewOpenAI()
	spec := api.ModelAliasSpec{Task: api.TaskGenerate, ProviderID: OpenAIProviderID, ModelID: "gpt-4o"}
	if _, err := p.Load(context.Background(), spec); err == nil {
		t.Fatal("expected error when OPENAI_API_KEY is unset")
	}
}

func TestOpenAILoadUsesCustomAPIKeyEnvVar(t *testing.T) {
	t.Setenv("MY_CUSTOM_OPENAI_KEY", "sk-test-123")
	p := NewOpenAI()
	spec := api.ModelAliasSpec{
		Task: api.TaskGenerate, ProviderID: OpenAIProviderID, ModelID: "gpt-4o",
		Options: map[string]interface{}{"api_key_env": "MY_CUSTOM_OPENAI_KEY"},
	}
	handle, err := p.Load(context.Background(), spec)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := handle.AsGenerator(); !ok {
		t.Fatal("expected generator handle")
	}
}

func TestOpenAICapabilities(t *testing.T) {
	p := NewOpenAI()
	caps := p.Capabilities()
	if !caps.Supports(api.TaskGenerate) {
		t.Fatal("expected support for Generate")
	}
	if caps.Supports(api.TaskEmbed) {
		t.Fatal("expected no support for Embed")
	}
}
