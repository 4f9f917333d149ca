package ai

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	log "github.com/sirupsen/logrus"
)

// Message roles understood by the completion API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single prompt entry sent to the completion API.
type Message struct {
	Role    string
	Content string
}

type LLMClient struct {
	client *openai.Client
	model  string
}

func NewLLMClient(url, model string) *LLMClient {
	options := []option.RequestOption{option.WithBaseURL(url)}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Info("OPENAI_API_KEY environment variable is not set, will try unauthenticated access")
	} else {
		options = append(options, option.WithAPIKey(apiKey))
	}

	client := openai.NewClient(options...)
	return &LLMClient{client: &client, model: model}
}

// Chat issues a single deterministic completion, used for classification and
// planning. Temperature is pinned to zero and the response is capped so a
// runaway decision payload cannot eat the context window.
func (llm *LLMClient) Chat(ctx context.Context, instructions, data string) (string, error) {
	resp, err := llm.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instructions),
			openai.UserMessage(data),
		},
		Model:       llm.model,
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(400),
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("client didn't return any content choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// ChatStream streams a completion for the given ordered messages, invoking
// onDelta for every non-empty content chunk as it arrives. A non-nil error
// from onDelta stops the stream and is returned as-is.
func (llm *LLMClient) ChatStream(ctx context.Context, messages []Message, onDelta func(delta string) error) error {
	params := openai.ChatCompletionNewParams{
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		Model:    llm.model,
	}
	for _, m := range messages {
		switch m.Role {
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	stream := llm.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := onDelta(delta); err != nil {
			return err
		}
	}

	return stream.Err()
}
