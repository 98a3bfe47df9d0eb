// Package gemini provides an LLM service adapter using the Gemini
// generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultEndpoint = "https://generativelanguage.googleapis.com"
	DefaultModel    = "gemini-3.1-pro"
	DefaultTimeout  = 5 * time.Minute

	apiVersion   = "v1beta"
	providerName = "gemini"
	jsonMimeType = "application/json"
)

// Config holds configuration for the Gemini LLM service.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// Endpoint overrides the API base URL. Used by tests.
	Endpoint string

	// Model is the model to use. A "gemini/" prefix is stripped.
	Model string

	// Timeout bounds a single request.
	Timeout time.Duration
}

// LLMService provides LLM operations using Gemini.
type LLMService struct {
	client   *http.Client
	endpoint string
	apiKey   string
	model    string
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	Temperature      float64  `json:"temperature,omitempty"`
	StopSequences    []string `json:"stopSequences,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

// generateContentRequest is the models/{model}:generateContent request body.
type generateContentRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      *content `json:"content"`
		FinishReason string   `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// NewLLMService creates a new Gemini LLM service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key is required", domain.ErrLLMUnavailable)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &LLMService{
		client:   &http.Client{Timeout: cfg.Timeout},
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		model:    domain.BareModelName(cfg.Model),
	}, nil
}

// Generate produces text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	req := generateContentRequest{
		Contents: []content{userContent(prompt)},
		GenerationConfig: &generationConfig{
			MaxOutputTokens: opts.MaxTokens,
			Temperature:     opts.Temperature,
			StopSequences:   opts.StopWords,
		},
	}
	return s.generate(ctx, req)
}

// Chat conducts a multi-turn conversation. System messages become the
// system instruction and assistant turns use the "model" role.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	req := generateContentRequest{
		GenerationConfig: &generationConfig{
			MaxOutputTokens: opts.MaxTokens,
			Temperature:     opts.Temperature,
		},
	}
	if opts.JSON {
		req.GenerationConfig.ResponseMimeType = jsonMimeType
	}

	var system []string
	for _, msg := range messages {
		switch msg.Role {
		case driven.RoleSystem:
			system = append(system, msg.Content)
		case driven.RoleAssistant:
			req.Contents = append(req.Contents, content{Role: "model", Parts: []part{{Text: msg.Content}}})
		default:
			req.Contents = append(req.Contents, userContent(msg.Content))
		}
	}
	if len(system) > 0 {
		req.SystemInstruction = &content{Parts: []part{{Text: strings.Join(system, "\n\n")}}}
	}

	return s.generate(ctx, req)
}

func userContent(text string) content {
	return content{Role: "user", Parts: []part{{Text: text}}}
}

func (s *LLMService) modelURL(suffix string) string {
	return fmt.Sprintf("%s/%s/models/%s%s?key=%s",
		s.endpoint, apiVersion, url.PathEscape(s.model), suffix, url.QueryEscape(s.apiKey))
}

func (s *LLMService) generate(ctx context.Context, reqBody generateContentRequest) (string, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.modelURL(":generateContent"), bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := s.do(ctx, req)
	if err != nil {
		return "", err
	}

	var resp generateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", domain.NewProviderError(providerName, http.StatusOK, fmt.Errorf("decode response: %w", err))
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: gemini blocked prompt: %s", domain.ErrMalformedResponse, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: gemini returned no candidates", domain.ErrMalformedResponse)
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: gemini returned empty content (finish reason %s)",
			domain.ErrMalformedResponse, resp.Candidates[0].FinishReason)
	}
	return b.String(), nil
}

// do sends the request and returns the body of a 2xx response. Error
// bodies use the Google API error envelope.
func (s *LLMService) do(ctx context.Context, req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.NewProviderError(providerName, 0, fmt.Errorf("send request: %w", sanitize(err)))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewProviderError(providerName, resp.StatusCode, fmt.Errorf("read response: %w", err))
	}
	if err := googleapi.CheckResponseWithBody(resp, body); err != nil {
		return nil, mapError(resp.StatusCode, err)
	}
	return body, nil
}

// mapError converts a googleapi error into a ProviderError classified by
// the HTTP status. The envelope's own code field is not trusted.
func mapError(status int, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = gerr.Body
		}
		return domain.StatusError(providerName, status, msg)
	}
	return domain.NewProviderError(providerName, status, err)
}

// sanitize drops the request URL from transport errors so the API key
// never reaches logs.
func sanitize(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the API key and model by fetching the model's metadata.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.modelURL(""), http.NoBody)
	if err != nil {
		return fmt.Errorf("gemini: failed to create ping request: %w", err)
	}
	_, err = s.do(ctx, req)
	return err
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
