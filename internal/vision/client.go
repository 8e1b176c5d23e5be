// Package vision reads financial documents from images through an
// OpenAI-compatible multimodal chat completions API.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultMaxTokens = 4096

// ErrMissingAPIKey is returned when the client is used without credentials.
var ErrMissingAPIKey = errors.New("vision api key is missing")

const extractionPrompt = `Extraia as transações financeiras desta imagem.
Responda somente com JSON no formato:
{"success": bool, "data": {"tipo_documento": string, "dados_extraidos": {"transacoes": [{"data": "DD/MM/AAAA", "descricao": string, "valor": number, "tipo": "receita"|"despesa", "categoria_sugerida": string}]}}, "confianca": number entre 0 e 1, "observacoes": [string]}`

// Config configures a Client.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	MaxTokens int
	// RequestsPerMinute paces outgoing calls; zero disables pacing.
	RequestsPerMinute int
}

// Client calls the chat completions endpoint with an image attachment.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClient creates a vision client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		logger:     logger,
	}
}

// ReadDocument sends the image and decodes the structured reply. A reply
// with success=false is returned as a Document, not as an error.
func (c *Client) ReadDocument(ctx context.Context, image []byte, mimeType string) (*Document, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("vision rate limiter: %w", err)
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: extractionPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
		Temperature:    0.1,
		MaxTokens:      c.maxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/chat/completions"
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+c.apiKey)
	request.Header.Set("Content-Type", "application/json")

	start := time.Now()
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("vision request failed: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("vision call finished",
		slog.Int("status", response.StatusCode),
		slog.Int("image_bytes", len(image)),
		slog.Duration("elapsed", time.Since(start)),
	)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		var apiErr chatResponse
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != nil {
			return nil, fmt.Errorf("vision api error: %s", apiErr.Error.Message)
		}
		return nil, fmt.Errorf("vision api error: %s", strings.TrimSpace(string(body)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode vision response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("vision response missing choices")
	}

	var doc Document
	if err := json.Unmarshal([]byte(stripCodeFence(parsed.Choices[0].Message.Content)), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document payload: %w", err)
	}
	return &doc, nil
}

// stripCodeFence removes a ```json fence some models wrap replies in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
