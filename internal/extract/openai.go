package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hpungsan/trail/internal/activity"
	"github.com/hpungsan/trail/internal/rules"
)

// OpenAIConfig configures the OpenAI-compatible adapter.
type OpenAIConfig struct {
	BaseURL   string // empty = api.openai.com
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// OpenAI implements Extractor, Interpreter, and Summarizer against any
// OpenAI-compatible chat completions endpoint with vision support.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

var (
	_ Extractor   = (*OpenAI)(nil)
	_ Interpreter = (*OpenAI)(nil)
	_ Summarizer  = (*OpenAI)(nil)
)

// NewOpenAI builds the adapter.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	httpClient := &http.Client{}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}
	config.HTTPClient = httpClient

	return &OpenAI{
		client:    openai.NewClientWithConfig(config),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Extract sends the screenshot with the rules and recent context and parses
// the JSON reply.
func (o *OpenAI) Extract(ctx context.Context, req Request) (*AnalysisResult, error) {
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	mime := req.MIMEType
	if mime == "" {
		mime = "image/png"
	}

	var text strings.Builder
	if req.Rules != "" {
		text.WriteString("Follow these rules:\n" + req.Rules + "\n")
	}
	if req.Context != "" {
		text.WriteString("Recent activity, oldest first:\n" + req.Context + "\n")
	}
	text.WriteString("Analyze this screenshot and reply with the JSON object.")

	dataURI := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.Image)
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: extractSystemPrompt},
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: text.String()},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURI,
					Detail: openai.ImageURLDetailAuto,
				}},
			},
		},
	}

	var result AnalysisResult
	if err := o.completeJSON(ctx, messages, &result); err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.Activity) == "" {
		return nil, fmt.Errorf("reply has no activity")
	}
	return &result, nil
}

// Interpret asks the model to turn feedback into a rule edit.
func (o *OpenAI) Interpret(ctx context.Context, current rules.RuleSet, feedback string) (*Interpretation, error) {
	currentJSON, err := json.Marshal(current.Clone())
	if err != nil {
		return nil, err
	}
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: interpretSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: "Current rules:\n" + string(currentJSON) + "\n\nFeedback:\n" + feedback},
	}

	var in Interpretation
	if err := o.completeJSON(ctx, messages, &in); err != nil {
		return nil, err
	}
	in.Updated = in.Updated.Clone()
	return &in, nil
}

// Summarize produces a markdown rollup.
func (o *OpenAI) Summarize(ctx context.Context, kind RollupKind, previous string, entries []activity.Entry) (string, error) {
	system := summarySystemPrompt
	if kind == RollupProfile {
		system = profileSystemPrompt
	}
	user := "New entries:\n" + activity.RenderContext(entries)
	if previous != "" {
		user = "Previous version:\n" + previous + "\n\n" + user
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAI) completeJSON(ctx context.Context, messages []openai.ChatCompletionMessage, out any) error {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages:  messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("chat completion returned no choices")
	}
	content := stripCodeFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("parse reply: %w", err)
	}
	return nil
}

// stripCodeFence removes a ```json ... ``` wrapper some servers add even in
// JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
