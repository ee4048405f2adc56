// Package remotehttp is the remote, over-the-network provider: two
// backends sharing internal/remotecommon's status mapping, credential
// resolution, and per-key circuit breaker table.
package remotehttp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/inferray/modelrt/api"
	"github.com/inferray/modelrt/internal/circuitbreaker"
	"github.com/inferray/modelrt/internal/remotecommon"
	"github.com/inferray/modelrt/modelrterrs"
	"github.com/inferray/modelrt/provider"
)

// BedrockProviderID is the provider identifier for the Titan-Embeddings
// backend.
const BedrockProviderID = "remote/bedrock"

// defaultBedrockRegion is used when neither the "region" option nor the
// AWS SDK's default config resolves a region.
const defaultBedrockRegion = "us-east-1"

// BedrockProvider embeds Amazon Titan Embeddings via the Bedrock runtime's
// InvokeModel API.
type BedrockProvider struct {
	provider.NopWarmup
	base *remotecommon.Base
}

// NewBedrock returns a ready-to-register BedrockProvider.
func NewBedrock() *BedrockProvider {
	return &BedrockProvider{base: remotecommon.NewBase()}
}

func (p *BedrockProvider) ProviderID() string { return BedrockProviderID }

func (p *BedrockProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{SupportedTasks: []api.ModelTask{api.TaskEmbed}}
}

func (p *BedrockProvider) Health(context.Context) provider.Health {
	return provider.Health{Status: provider.HealthHealthy}
}

func (p *BedrockProvider) Load(ctx context.Context, spec api.ModelAliasSpec) (provider.Handle, error) {
	if spec.Task != api.TaskEmbed {
		return provider.Handle{}, modelrterrs.Newf(modelrterrs.KindCapabilityMismatch, "remote/bedrock provider does not support task %q", spec.Task)
	}

	opts, _ := spec.Options.(map[string]interface{})
	var configOpts []func(*config.LoadOptions) error
	if v, ok := opts["region"]; ok {
		if s, ok := v.(string); ok && s != "" {
			configOpts = append(configOpts, config.WithRegion(s))
		}
	}
	if accessKeyID, secretAccessKey, ok := resolveStaticCredentials(opts); ok {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return provider.Handle{}, modelrterrs.Wrap(modelrterrs.KindConfig, "failed to load AWS config", err)
	}
	if cfg.Region == "" {
		cfg.Region = defaultBedrockRegion
	}

	key := api.NewModelRuntimeKey(spec)
	model := &titanEmbeddingModel{
		client:  bedrockruntime.NewFromConfig(cfg),
		cb:      p.base.CircuitBreakerFor(key),
		modelID: spec.ModelID,
	}
	if v, ok := opts["embedding_dimensions"]; ok {
		if f, ok := v.(float64); ok && f > 0 {
			model.dimensions = uint32(f)
		}
	}
	return provider.NewEmbeddingHandle(model), nil
}

type titanEmbeddingRequest struct {
	InputText string `json:"inputText"`
}

type titanEmbeddingResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// titanEmbeddingModel calls InvokeModel once per input text — Titan
// Embeddings has no native batch endpoint.
type titanEmbeddingModel struct {
	provider.NopModelWarmup
	client     *bedrockruntime.Client
	cb         *circuitbreaker.CircuitBreaker
	modelID    string
	dimensions uint32
}

func (m *titanEmbeddingModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		var vec []float32
		err := m.cb.Call(func() error {
			body, err := json.Marshal(titanEmbeddingRequest{InputText: text})
			if err != nil {
				return fmt.Errorf("marshal titan request: %w", err)
			}
			output, err := m.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
				ModelId:     aws.String(m.modelID),
				ContentType: aws.String("application/json"),
				Body:        body,
			})
			if err != nil {
				return mapBedrockError(err)
			}
			var resp titanEmbeddingResponse
			if err := json.Unmarshal(output.Body, &resp); err != nil {
				return fmt.Errorf("unmarshal titan response: %w", err)
			}
			vec = resp.Embedding
			return nil
		})
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (m *titanEmbeddingModel) Dimensions() uint32 {
	if m.dimensions > 0 {
		return m.dimensions
	}
	return 1536
}

func (m *titanEmbeddingModel) ModelID() string { return m.modelID }

// mapBedrockError maps an AWS SDK error carrying an HTTP response status
// onto the shared remote-provider error taxonomy, falling back to a plain
// wrap when no HTTP status is available (e.g. a transport-level failure).
func mapBedrockError(err error) error {
	var respErr *smithyhttp.ResponseError
	if ok := asResponseError(err, &respErr); ok {
		return remotecommon.CheckHTTPStatus("bedrock", respErr.Response.StatusCode)
	}
	return modelrterrs.Wrap(modelrterrs.KindUnavailable, "bedrock invoke failed", err)
}

// resolveStaticCredentials looks for explicit AWS credentials via
// options-named (or default) environment variables. Both must resolve for
// static credentials to be used; otherwise the SDK's default credential
// chain (shared config, instance profile, env vars it checks itself, etc.)
// is left in charge.
func resolveStaticCredentials(opts map[string]interface{}) (accessKeyID, secretAccessKey string, ok bool) {
	accessKeyIDEnv := "access_key_id_env"
	secretAccessKeyEnv := "secret_access_key_env"

	id, idErr := remotecommon.ResolveAPIKey(opts, accessKeyIDEnv, "AWS_ACCESS_KEY_ID")
	if idErr != nil {
		return "", "", false
	}
	secret, secretErr := remotecommon.ResolveAPIKey(opts, secretAccessKeyEnv, "AWS_SECRET_ACCESS_KEY")
	if secretErr != nil {
		return "", "", false
	}
	return id, secret, true
}

func asResponseError(err error, target **smithyhttp.ResponseError) bool {
	for err != nil {
		if re, ok := err.(*smithyhttp.ResponseError); ok {
			*target = re
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
