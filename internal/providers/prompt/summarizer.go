package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"adreel/internal/providers/genai"
)

// GeminiSummarizer condenses prompts through the shared Gemini client.
type GeminiSummarizer struct {
	client *genai.Client
}

func NewGeminiSummarizer(client *genai.Client) *GeminiSummarizer {
	return &GeminiSummarizer{client: client}
}

func (s *GeminiSummarizer) Summarize(ctx context.Context, text string, maxChars int) (string, error) {
	if s.client == nil {
		return "", errors.New("gemini summarizer not configured")
	}
	out, err := s.client.Complete(ctx, buildSummarizeInstruction(text, maxChars), 0.2)
	if err != nil {
		return "", err
	}
	return stripMarkup(out), nil
}

type OpenAISummarizerOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAISummarizer is the second link in the summarization chain, used when
// Gemini is unavailable or over quota.
type OpenAISummarizer struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

const openAIDefaultTimeout = 15 * time.Second

func NewOpenAISummarizer(opts OpenAISummarizerOptions) (*OpenAISummarizer, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	return &OpenAISummarizer{
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   model,
		baseURL: baseURL,
		client:  client,
	}, nil
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, text string, maxChars int) (string, error) {
	payload := openAIChatRequest{
		Model:       s.model,
		Temperature: 0.2,
		Messages: []openAIMessage{
			{Role: "system", Content: "You condense video generation prompts without losing visual or timing detail."},
			{Role: "user", Content: buildSummarizeInstruction(text, maxChars)},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("openai status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	for _, choice := range out.Choices {
		if strings.TrimSpace(choice.Message.Content) != "" {
			return stripMarkup(choice.Message.Content), nil
		}
	}
	return "", errors.New("openai returned no content")
}

// ChainSummarizer tries each summarizer in order and returns the first
// success, mirroring the provider fallback chain used elsewhere.
type ChainSummarizer []Summarizer

func (c ChainSummarizer) Summarize(ctx context.Context, text string, maxChars int) (string, error) {
	var lastErr error
	for _, s := range c {
		if s == nil {
			continue
		}
		out, err := s.Summarize(ctx, text, maxChars)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no summarizer configured")
	}
	return "", lastErr
}

func buildSummarizeInstruction(text string, maxChars int) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Rewrite the following video generation prompt to strictly fewer than %d characters. ", maxChars)
	sb.WriteString("Preserve every visual and timing detail, remove structural formatting, and respond with the rewritten prompt only.\n\n")
	sb.WriteString(text)
	return sb.String()
}

var (
	_ Summarizer = (*GeminiSummarizer)(nil)
	_ Summarizer = (*OpenAISummarizer)(nil)
	_ Summarizer = (ChainSummarizer)(nil)
)
