package remotehttp

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/inferray/modelrt/api"
	"github.com/inferray/modelrt/internal/circuitbreaker"
	"github.com/inferray/modelrt/internal/remotecommon"
	"github.com/inferray/modelrt/modelrterrs"
	"github.com/inferray/modelrt/provider"
)

// OpenAIProviderID is the provider identifier for the chat-completion
// backend.
const OpenAIProviderID = "remote/openai"

const defaultOpenAIAPIKeyEnv = "OPENAI_API_KEY"

// OpenAIProvider generates text via the OpenAI chat-completions API.
type OpenAIProvider struct {
	provider.NopWarmup
	base *remotecommon.Base
}

// NewOpenAI returns a ready-to-register OpenAIProvider.
func NewOpenAI() *OpenAIProvider {
	return &OpenAIProvider{base: remotecommon.NewBase()}
}

func (p *OpenAIProvider) ProviderID() string { return OpenAIProviderID }

func (p *OpenAIProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{SupportedTasks: []api.ModelTask{api.TaskGenerate}}
}

func (p *OpenAIProvider) Health(context.Context) provider.Health {
	return provider.Health{Status: provider.HealthHealthy}
}

func (p *OpenAIProvider) Load(_ context.Context, spec api.ModelAliasSpec) (provider.Handle, error) {
	if spec.Task != api.TaskGenerate {
		return provider.Handle{}, modelrterrs.Newf(modelrterrs.KindCapabilityMismatch, "remote/openai provider does not support task %q", spec.Task)
	}

	opts, _ := spec.Options.(map[string]interface{})
	apiKey, err := remotecommon.ResolveAPIKey(opts, "api_key_env", defaultOpenAIAPIKeyEnv)
	if err != nil {
		return provider.Handle{}, err
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if org, ok := opts["organization"].(string); ok && org != "" {
		clientOpts = append(clientOpts, option.WithOrganization(org))
	}

	key := api.NewModelRuntimeKey(spec)
	model := &openAIGeneratorModel{
		client:  openai.NewClient(clientOpts...),
		cb:      p.base.CircuitBreakerFor(key),
		modelID: spec.ModelID,
	}
	return provider.NewGeneratorHandle(model), nil
}

// openAIGeneratorModel wraps the openai-go chat-completions client. Roles
// are assigned by position, following the GeneratorModel contract:
// even-indexed messages become user turns and odd-indexed messages become
// assistant turns.
type openAIGeneratorModel struct {
	provider.NopModelWarmup
	client  openai.Client
	cb      *circuitbreaker.CircuitBreaker
	modelID string
}

func (m *openAIGeneratorModel) Generate(ctx context.Context, messages []string, opts provider.GenerationOptions) (provider.GenerationResult, error) {
	params := openai.ChatCompletionNewParams{
		Model:    m.modelID,
		Messages: buildMessages(messages),
	}
	if opts.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*opts.MaxTokens))
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(float64(*opts.Temperature))
	}
	if opts.TopP != nil {
		params.TopP = openai.Float(float64(*opts.TopP))
	}

	var result provider.GenerationResult
	err := m.cb.Call(func() error {
		completion, err := m.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return mapOpenAIError(err)
		}
		text := ""
		if len(completion.Choices) > 0 {
			text = completion.Choices[0].Message.Content
		}
		result = provider.GenerationResult{
			Text: text,
			Usage: &provider.TokenUsage{
				PromptTokens:     int(completion.Usage.PromptTokens),
				CompletionTokens: int(completion.Usage.CompletionTokens),
				TotalTokens:      int(completion.Usage.TotalTokens),
			},
		}
		return nil
	})
	if err != nil {
		return provider.GenerationResult{}, err
	}
	return result, nil
}

func buildMessages(messages []string) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for i, m := range messages {
		if i%2 == 1 {
			out = append(out, openai.AssistantMessage(m))
			continue
		}
		out = append(out, openai.UserMessage(m))
	}
	return out
}

// mapOpenAIError maps an openai-go API error onto the shared remote-provider
// error taxonomy via its carried HTTP status code, falling back to a plain
// wrap for non-API (transport-level) errors.
func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if asOpenAIError(err, &apiErr) {
		return remotecommon.CheckHTTPStatus("openai", apiErr.StatusCode)
	}
	return modelrterrs.Wrap(modelrterrs.KindUnavailable, "openai request failed", err)
}

func asOpenAIError(err error, target **openai.Error) bool {
	for err != nil {
		if oe, ok := err.(*openai.Error); ok {
			*target = oe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
