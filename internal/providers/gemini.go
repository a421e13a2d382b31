package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GeminiProvider calls the Gemini generateContent REST API. Replies are
// short chat messages, so thinking is disabled and output is bounded.
type GeminiProvider struct {
	apiKey          string
	apiBase         string
	model           string
	maxOutputTokens int
	client          *http.Client
	retryConfig     RetryConfig
}

func NewGeminiProvider(apiKey, apiBase, model string, maxOutputTokens int) *GeminiProvider {
	if apiBase == "" {
		apiBase = "https://generativelanguage.googleapis.com/v1beta"
	}
	apiBase = strings.TrimRight(apiBase, "/")
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if maxOutputTokens <= 0 {
		maxOutputTokens = 300
	}

	return &GeminiProvider{
		apiKey:          apiKey,
		apiBase:         apiBase,
		model:           model,
		maxOutputTokens: maxOutputTokens,
		client:          &http.Client{Timeout: 60 * time.Second},
		retryConfig:     DefaultRetryConfig(),
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int                   `json:"maxOutputTokens,omitempty"`
	ThinkingConfig  *geminiThinkingConfig `json:"thinkingConfig,omitempty"`
}

type geminiThinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// Generate sends a single-turn prompt and returns the completion text. A
// failed generation is reported straight back: the caller has its own
// fallback, so the API is never retried for chat replies.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	req := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: &geminiGenerationConfig{
			MaxOutputTokens: p.maxOutputTokens,
			ThinkingConfig:  &geminiThinkingConfig{ThinkingBudget: 0},
		},
	}
	return p.complete(ctx, req)
}

// Transcribe sends audio inline and asks the model for a literal
// transcription in the speaker's language. Unlike Generate there is no
// fallback for a lost transcription, so transient errors are retried.
func (p *GeminiProvider) Transcribe(ctx context.Context, mimeType string, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("gemini: transcribe: empty audio")
	}
	req := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{
				{Text: "Transcribí este audio literalmente, en el idioma original. Respondé solo con la transcripción."},
				{InlineData: &geminiInlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(audio),
				}},
			}},
		},
		GenerationConfig: &geminiGenerationConfig{
			ThinkingConfig: &geminiThinkingConfig{ThinkingBudget: 0},
		},
	}
	return RetryDo(ctx, p.retryConfig, func() (string, error) {
		return p.complete(ctx, req)
	})
}

// CountTokens asks the API for the exact token count of a text. Callers fall
// back to a heuristic when this fails; it is never worth retrying.
func (p *GeminiProvider) CountTokens(ctx context.Context, text string) (int, error) {
	req := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: text}}},
		},
	}
	respBody, err := p.doRequest(ctx, "countTokens", req)
	if err != nil {
		return 0, err
	}
	defer respBody.Close()

	var resp struct {
		TotalTokens int `json:"totalTokens"`
	}
	if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
		return 0, fmt.Errorf("gemini: decode count response: %w", err)
	}
	return resp.TotalTokens, nil
}

// complete performs one generateContent call and decodes the first
// candidate. It never retries on its own.
func (p *GeminiProvider) complete(ctx context.Context, req geminiRequest) (string, error) {
	respBody, err := p.doRequest(ctx, "generateContent", req)
	if err != nil {
		return "", err
	}
	defer respBody.Close()

	var resp geminiResponse
	if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
		return "", fmt.Errorf("gemini: decode response: %w", err)
	}

	var text strings.Builder
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			text.WriteString(part.Text)
		}
		break
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", ErrEmptyCompletion
	}
	return out, nil
}

func (p *GeminiProvider) doRequest(ctx context.Context, method string, body geminiRequest) (io.ReadCloser, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:%s", p.apiBase, p.model, method)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &HTTPError{
			Status:     resp.StatusCode,
			Body:       fmt.Sprintf("gemini: %s", string(respBody)),
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return resp.Body, nil
}
