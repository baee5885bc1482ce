package workers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
	ollama "github.com/ollama/ollama/api"
)

// Provider sends one prompt to a language model and returns its text reply.
type Provider interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	// Model is the Claude model to use. Empty selects Claude Sonnet 4.
	Model string
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// UseBedrock sends requests through AWS Bedrock instead of the direct API.
	UseBedrock bool
	AWSRegion  string
	AWSProfile string
	// MaxTokens caps the reply length. Zero means 8192.
	MaxTokens int64
}

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	tracker   *TokenTracker
}

// NewAnthropicProvider creates a provider from cfg.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	var opts []option.RequestOption

	if cfg.UseBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(context.Background(), loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	if cfg.UseBedrock {
		model = BedrockModel(model)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	return &AnthropicProvider{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		tracker:   &TokenTracker{},
	}, nil
}

// BedrockModel converts a standard Anthropic model name to its Bedrock
// cross-region inference profile. Unknown names are returned unchanged.
func BedrockModel(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219:  "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}
	if m, ok := bedrockModels[model]; ok {
		return anthropic.Model(m)
	}
	return model
}

// Model returns the configured model name.
func (p *AnthropicProvider) Model() string {
	return string(p.model)
}

// Tracker returns the token usage of this provider.
func (p *AnthropicProvider) Tracker() *TokenTracker {
	return p.tracker
}

func (p *AnthropicProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("API call failed: %w", err)
	}
	p.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}
	return text.String(), nil
}

// OllamaProvider calls a local Ollama server.
type OllamaProvider struct {
	client *ollama.Client
	model  string
}

// NewOllamaProvider creates a provider using OLLAMA_HOST or the default
// local address.
func NewOllamaProvider(model string) (*OllamaProvider, error) {
	client, err := ollama.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("could not create ollama client: %w", err)
	}
	return &OllamaProvider{client: client, model: strings.TrimPrefix(model, "ollama:")}, nil
}

func (p *OllamaProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	stream := false
	req := &ollama.ChatRequest{
		Model: p.model,
		Messages: []ollama.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Stream: &stream,
	}

	var text strings.Builder
	err := p.client.Chat(ctx, req, func(res ollama.ChatResponse) error {
		text.WriteString(res.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	return text.String(), nil
}

// TokenTracker tracks token usage across API calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// Add records token usage from an API call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of API calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}
