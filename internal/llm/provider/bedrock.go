package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const defaultBedrockModel = "anthropic.claude-3-haiku-20240307-v1:0"

func init() {
	RegisterFactory("bedrock", func(config map[string]any) (Provider, error) {
		region := ""
		if r, ok := config["region"].(string); ok {
			region = r
		}
		return NewBedrockProvider(region)
	})
}

// BedrockConverseAPI is the slice of the Bedrock runtime client the provider
// needs. Tests substitute their own implementation.
type BedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockProvider implements Provider on the Bedrock Converse API.
type BedrockProvider struct {
	client BedrockConverseAPI
}

// NewBedrockProvider creates a Bedrock provider using the default AWS
// credential chain.
func NewBedrockProvider(region string) (*BedrockProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &BedrockProvider{client: bedrockruntime.NewFromConfig(cfg)}, nil
}

// NewBedrockProviderWithClient creates a Bedrock provider with a custom
// client (useful for testing).
func NewBedrockProviderWithClient(client BedrockConverseAPI) *BedrockProvider {
	return &BedrockProvider{client: client}
}

// Name returns the provider name.
func (p *BedrockProvider) Name() string {
	return "bedrock"
}

// CreateCompletion creates a completion via Converse.
func (p *BedrockProvider) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = defaultBedrockModel
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(model),
		InferenceConfig: &types.InferenceConfiguration{},
	}
	input.InferenceConfig.Temperature = aws.Float32(float32(req.Temperature))
	if req.MaxTokens > 0 {
		input.InferenceConfig.MaxTokens = aws.Int32(int32(req.MaxTokens))
	}

	for _, m := range req.Messages {
		if m.Role == "system" {
			input.System = append(input.System, &types.SystemContentBlockMemberText{Value: m.Content})
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		input.Messages = append(input.Messages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}

	out, err := p.client.Converse(ctx, input)
	if err != nil {
		return nil, NewProviderError("bedrock", ErrorCodeServerError, err.Error(), err)
	}

	return p.parseOutput(out)
}

func (p *BedrockProvider) parseOutput(out *bedrockruntime.ConverseOutput) (*CompletionResponse, error) {
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, NewProviderError("bedrock", ErrorCodeUnknown, "unexpected output type", nil)
	}

	var content string
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			content += text.Value
		}
	}

	var usage Usage
	if out.Usage != nil {
		usage.PromptTokens = int(aws.ToInt32(out.Usage.InputTokens))
		usage.CompletionTokens = int(aws.ToInt32(out.Usage.OutputTokens))
		usage.TotalTokens = int(aws.ToInt32(out.Usage.TotalTokens))
	}

	return &CompletionResponse{
		Content:      content,
		FinishReason: string(out.StopReason),
		Usage:        usage,
	}, nil
}
