package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOpenAIClient struct {
	resp openai.ChatCompletionResponse
	err  error
	got  openai.ChatCompletionRequest
}

func (s *stubOpenAIClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.got = req
	return s.resp, s.err
}

func TestOpenAIProvider_CreateCompletion(t *testing.T) {
	stub := &stubOpenAIClient{
		resp: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Content: `{"query":"{ patients }"}`},
				FinishReason: openai.FinishReasonStop,
			}},
			Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		},
	}
	p := NewOpenAIProviderWithClient(stub)

	resp, err := p.CreateCompletion(context.Background(), CompletionRequest{
		Messages:    []Message{{Role: "user", Content: "hi"}},
		Temperature: 0,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"query":"{ patients }"}`, resp.Content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, defaultOpenAIModel, stub.got.Model)
}

func TestOpenAIProvider_APIError(t *testing.T) {
	stub := &stubOpenAIClient{
		err: &openai.APIError{HTTPStatusCode: 429, Message: "slow down"},
	}
	p := NewOpenAIProviderWithClient(stub)

	_, err := p.CreateCompletion(context.Background(), CompletionRequest{})
	require.Error(t, err)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrorCodeRateLimit, pe.Code)
	assert.True(t, pe.IsRetryable)
	assert.Equal(t, 429, pe.StatusCode)
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	p := NewOpenAIProviderWithClient(&stubOpenAIClient{})
	_, err := p.CreateCompletion(context.Background(), CompletionRequest{})
	assert.Error(t, err)
}

type stubConverse struct {
	out *bedrockruntime.ConverseOutput
	err error
}

func (s *stubConverse) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	return s.out, s.err
}

func TestBedrockProvider_CreateCompletion(t *testing.T) {
	stub := &stubConverse{
		out: &bedrockruntime.ConverseOutput{
			Output: &types.ConverseOutputMemberMessage{
				Value: types.Message{
					Role:    types.ConversationRoleAssistant,
					Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "hello"}},
				},
			},
			StopReason: types.StopReasonEndTurn,
			Usage:      &types.TokenUsage{InputTokens: aws.Int32(3), OutputTokens: aws.Int32(2), TotalTokens: aws.Int32(5)},
		},
	}
	p := NewBedrockProviderWithClient(stub)

	resp, err := p.CreateCompletion(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestBedrockProvider_Error(t *testing.T) {
	p := NewBedrockProviderWithClient(&stubConverse{err: errors.New("throttled")})
	_, err := p.CreateCompletion(context.Background(), CompletionRequest{})

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "bedrock", pe.Provider)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Has("x"))

	p := NewOpenAIProviderWithClient(&stubOpenAIClient{})
	r.Register("x", p)
	assert.True(t, r.Has("x"))

	got, err := r.Get("x")
	require.NoError(t, err)
	assert.Equal(t, "openai", got.Name())

	_, err = r.Get("missing")
	assert.Error(t, err)

	r.RegisterFactory("stub", func(config map[string]any) (Provider, error) {
		return p, nil
	})
	built, err := r.Create("stub", nil)
	require.NoError(t, err)
	assert.Equal(t, p, built)

	_, err = r.Create("nope", nil)
	assert.Error(t, err)
}
