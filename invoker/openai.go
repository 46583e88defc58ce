package invoker

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"

	"github.com/switchboard-dev/switchboard/collab"
)

// AgentProfile holds the per-agent model configuration the OpenAI invoker
// dispatches on.
type AgentProfile struct {
	// Model is the chat model used for this agent.
	Model string `yaml:"model"`

	// SystemPrompt frames the agent's role, sent as the system message.
	SystemPrompt string `yaml:"prompt"`
}

// OpenAIConfig configures the OpenAI-backed invoker.
type OpenAIConfig struct {
	// APIKey overrides the OPENAI_API_KEY environment variable.
	APIKey string

	// BaseURL points at an OpenAI-compatible endpoint (optional).
	BaseURL string

	// DefaultModel is used for agents without a profile.
	DefaultModel string

	// Agents maps agent name to its model profile.
	Agents map[string]AgentProfile
}

// OpenAI invokes agents as chat completions against an OpenAI-compatible
// API, one completion per invocation.
type OpenAI struct {
	client       *openai.Client
	defaultModel string
	agents       map[string]AgentProfile
}

// NewOpenAI creates the invoker, reading the API key from the environment
// when the config leaves it empty.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("invoker: API key not found, set OPENAI_API_KEY")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = openai.GPT4oMini
	}

	return &OpenAI{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: defaultModel,
		agents:       cfg.Agents,
	}, nil
}

// Invoke runs one chat completion for the named agent.
func (o *OpenAI) Invoke(ctx context.Context, agentName, prompt string) (string, error) {
	profile := o.agents[agentName]
	model := profile.Model
	if model == "" {
		model = o.defaultModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if profile.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: profile.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion for %s: %w", agentName, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion for %s: empty response", agentName)
	}
	return resp.Choices[0].Message.Content, nil
}

// Invoker adapts the client to the collab invoker type.
func (o *OpenAI) Invoker() collab.AgentInvoker {
	return o.Invoke
}
