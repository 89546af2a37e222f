package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"resty.dev/v3"

	"github.com/at-ishikawa/tango/internal/inference"
	"github.com/at-ishikawa/tango/internal/logger"
)

const DefaultBaseURL = "https://api.openai.com/v1"

type Client struct {
	httpClient       *resty.Client
	model            string
	maxRetryAttempts uint
	logger           *logger.Logger
}

func NewClient(apiKey, model string, retryAttempts uint, log *logger.Logger) *Client {
	return newClient(DefaultBaseURL, apiKey, model, retryAttempts, log)
}

func newClient(baseURL, apiKey, model string, retryAttempts uint, log *logger.Logger) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("Authorization", "Bearer "+apiKey)
	client.SetHeader("Content-Type", "application/json")

	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		httpClient:       client,
		model:            model,
		maxRetryAttempts: retryAttempts,
		logger:           log,
	}
}

func (client Client) Close() error {
	return client.httpClient.Close()
}

// GetModel returns the model name configured for this client
func (client Client) GetModel() string {
	return client.model
}

type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float32         `json:"temperature,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Index        int           `json:"index"`
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type ChoiceMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Retry on JSON parsing errors as they might be due to incomplete responses
	errStr := err.Error()
	if strings.Contains(errStr, "json.Unmarshal") || strings.Contains(errStr, "unexpected end of JSON input") {
		return true
	}

	// Retry on network-related errors
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "i/o timeout") {
		return true
	}

	// Retry on 5xx errors (server errors)
	if strings.Contains(errStr, "response error 5") {
		return true
	}

	// Retry on rate limiting (429)
	if strings.Contains(errStr, "response error 429") {
		return true
	}

	return false
}

// GenerateWordDetails implements the inference.Client interface
func (client *Client) GenerateWordDetails(
	ctx context.Context,
	params inference.GenerateWordDetailsRequest,
) (inference.GenerateWordDetailsResponse, error) {
	var result inference.GenerateWordDetailsResponse
	if err := retry.Do(
		func() error {
			response, err := client.generateWordDetails(ctx, params)
			if err != nil {
				if !isRetryableError(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			result = response
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(client.maxRetryAttempts+1),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			client.logger.Warn("retrying openai request", "attempt", n+1, "text", params.Text, "error", err)
		}),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			return retry.BackOffDelay(n, err, config)
		}),
	); err != nil {
		return inference.GenerateWordDetailsResponse{}, err
	}
	return result, nil
}

const systemPrompt = `You are a dictionary assistant for a vocabulary flashcard app.

The user gives you a JSON object with a word or expression in "text". Some of "reading", "meaning" and "example" may already be filled in.

Return ONLY a JSON object:
{
  "reading": "<pronunciation or reading, e.g. IPA for English or kana for Japanese>",
  "meaning": "<short learner-friendly definition>",
  "example": "<one natural sentence using the expression>",
  "metadata": {"part_of_speech": "...", "synonyms": ["..."]}
}

RULES
- Keep any value the user already filled in exactly as given.
- If "meaning_language" is set, write the meaning in that language.
- Keep the meaning under 15 words.
- Do NOT include any text outside the JSON.`

func (client *Client) getRequestBody(args inference.GenerateWordDetailsRequest) (ChatCompletionRequest, error) {
	userContent := bytes.NewBuffer(nil)
	if err := json.NewEncoder(userContent).Encode(args); err != nil {
		return ChatCompletionRequest{}, fmt.Errorf("failed to marshal word: %w", err)
	}

	return ChatCompletionRequest{
		Model:          client.model,
		Temperature:    0.3,
		ResponseFormat: &ResponseFormat{Type: "json_object"},
		Messages: []Message{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: userContent.String()},
		},
	}, nil
}

func (client *Client) generateWordDetails(
	ctx context.Context,
	args inference.GenerateWordDetailsRequest,
) (inference.GenerateWordDetailsResponse, error) {
	if strings.TrimSpace(args.Text) == "" {
		return inference.GenerateWordDetailsResponse{}, fmt.Errorf("text is required")
	}

	requestBody, err := client.getRequestBody(args)
	if err != nil {
		return inference.GenerateWordDetailsResponse{}, fmt.Errorf("getRequestBody > %w", err)
	}

	response, err := client.httpClient.R().
		SetContext(ctx).
		SetBody(requestBody).
		SetResult(&ChatCompletionResponse{}).
		Post("/chat/completions")
	if err != nil {
		return inference.GenerateWordDetailsResponse{}, fmt.Errorf("httpClient.Post > %w", err)
	}
	if response.IsError() {
		return inference.GenerateWordDetailsResponse{}, fmt.Errorf("response error %d: %s", response.StatusCode(), response.String())
	}

	responseBody := response.Result().(*ChatCompletionResponse)
	if responseBody == nil || len(responseBody.Choices) == 0 {
		return inference.GenerateWordDetailsResponse{}, fmt.Errorf("empty response body or choices: %s", response.String())
	}

	content := responseBody.Choices[0].Message.Content
	if content == "" {
		return inference.GenerateWordDetailsResponse{}, fmt.Errorf("empty response content: %s", response.String())
	}
	client.logger.Debug("openai response content",
		"text", args.Text,
		"model", responseBody.Model,
		"usage", responseBody.Usage,
	)

	var decoded inference.GenerateWordDetailsResponse
	if err := json.NewDecoder(strings.NewReader(content)).Decode(&decoded); err != nil {
		client.logger.Error("failed to parse openai response as JSON", "text", args.Text, "error", err)
		return inference.GenerateWordDetailsResponse{}, fmt.Errorf("json.Unmarshal(%s) > %w", content, err)
	}

	if args.Reading != "" {
		decoded.Reading = args.Reading
	}
	if args.Meaning != "" {
		decoded.Meaning = args.Meaning
	}
	if args.Example != "" {
		decoded.Example = args.Example
	}
	return decoded, nil
}
