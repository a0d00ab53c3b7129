package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/application/port"
	"github.com/hadlocna/operations/internal/domain/entity"
)

// Config holds OpenAI client settings
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	ImageDetail string
	Timeout     time.Duration
}

// DocumentModel implements port.DocumentModel with the chat completions API
// and a strict JSON schema response format
type DocumentModel struct {
	client *openai.Client
	config Config
	logger *zap.Logger
}

// NewDocumentModel creates a new OpenAI document model
func NewDocumentModel(cfg Config, logger *zap.Logger) *DocumentModel {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return newDocumentModel(openai.NewClientWithConfig(clientCfg), cfg, logger)
}

func newDocumentModel(client *openai.Client, cfg Config, logger *zap.Logger) *DocumentModel {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4o
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &DocumentModel{
		client: client,
		config: cfg,
		logger: logger,
	}
}

// Infer sends the rendered pages with the prompt and returns the model's JSON answer
func (m *DocumentModel) Infer(ctx context.Context, req port.InferenceRequest) (json.RawMessage, error) {
	if len(req.Pages) == 0 {
		return nil, errors.New("inference request has no pages")
	}

	m.logger.Debug("Submitting document to model",
		zap.String("filename", req.Filename),
		zap.String("model", m.config.Model),
		zap.Int("pages", len(req.Pages)))

	resp, err := m.client.CreateChatCompletion(ctx, m.buildRequest(req))
	if err != nil {
		m.logger.Error("OpenAI API call failed",
			zap.String("filename", req.Filename),
			zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", entity.ErrMalformedOutput)
	}

	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, fmt.Errorf("%w: model refused: %s", entity.ErrMalformedOutput, choice.Message.Refusal)
	}
	if choice.FinishReason == openai.FinishReasonLength {
		return nil, fmt.Errorf("%w: response truncated at %d tokens", entity.ErrMalformedOutput, m.config.MaxTokens)
	}

	content := strings.TrimSpace(choice.Message.Content)
	if !json.Valid([]byte(content)) {
		m.logger.Error("Model returned invalid JSON",
			zap.String("filename", req.Filename),
			zap.String("content", content))
		return nil, fmt.Errorf("%w: response is not valid JSON", entity.ErrMalformedOutput)
	}

	m.logger.Info("Model inference completed",
		zap.String("filename", req.Filename),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	return json.RawMessage(content), nil
}

func (m *DocumentModel) buildRequest(req port.InferenceRequest) openai.ChatCompletionRequest {
	parts := make([]openai.ChatMessagePart, 0, len(req.Pages)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: req.Prompt,
	})

	mime := req.PageMime
	if mime == "" {
		mime = "image/jpeg"
	}
	detail := openai.ImageURLDetail(m.config.ImageDetail)
	if detail == "" {
		detail = openai.ImageURLDetailHigh
	}
	for _, page := range req.Pages {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL(mime, page),
				Detail: detail,
			},
		})
	}

	return openai.ChatCompletionRequest{
		Model:       m.config.Model,
		MaxTokens:   m.config.MaxTokens,
		Temperature: m.config.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.System,
			},
			{
				Role:         openai.ChatMessageRoleUser,
				MultiContent: parts,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: req.Schema,
				Strict: true,
			},
		},
	}
}

func dataURL(mime string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}
