// HoshiBot - Discord music & companion chat bot
// License: MIT
//
// Copyright (c) 2026 HoshiBot contributors

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dotsetgreg/hoshibot/pkg/config"
	"github.com/sethvargo/go-retry"
)

const (
	defaultGeminiAPIBase = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-1.5-flash"

	requestTimeout = 120 * time.Second
	retryBackoff   = 2 * time.Second
	maxRetries     = 2
)

type GeminiProvider struct {
	apiKey     string
	apiBase    string
	model      string
	httpClient *http.Client
}

func NewGeminiProvider(apiKey, apiBase, model, proxy string) *GeminiProvider {
	client := &http.Client{Timeout: requestTimeout}

	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err == nil {
			client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	if apiBase == "" {
		apiBase = defaultGeminiAPIBase
	}
	if model == "" {
		model = defaultGeminiModel
	}

	return &GeminiProvider{
		apiKey:     apiKey,
		apiBase:    strings.TrimRight(apiBase, "/"),
		model:      model,
		httpClient: client,
	}
}

func (p *GeminiProvider) ModelName() string {
	return p.model
}

func (p *GeminiProvider) Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error) {
	if p.apiBase == "" {
		return "", fmt.Errorf("gemini API base not configured")
	}

	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     opts.Temperature,
			"topP":            opts.TopP,
			"maxOutputTokens": opts.MaxOutputTokens,
		},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", p.apiBase, p.model)

	var text string
	backoff := retry.WithMaxRetries(maxRetries, retry.NewConstant(retryBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		result, callErr := p.call(ctx, endpoint, jsonData)
		if callErr != nil {
			return callErr
		}
		text = result
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (p *GeminiProvider) call(ctx context.Context, endpoint string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create gemini request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", retry.RetryableError(fmt.Errorf("send gemini request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read gemini response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := fmt.Errorf("gemini API request failed: status=%d body=%s", resp.StatusCode, truncateBody(respBody))
		// Rate-limit and server-side failures are worth one more attempt.
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return "", retry.RetryableError(apiErr)
		}
		return "", apiErr
	}

	return parseGenerateResponse(respBody)
}

func parseGenerateResponse(body []byte) (string, error) {
	var apiResponse struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
	}

	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return "", fmt.Errorf("unmarshal gemini response: %w", err)
	}

	if len(apiResponse.Candidates) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for _, part := range apiResponse.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}

func truncateBody(body []byte) string {
	const limit = 500
	s := string(body)
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func CreateProvider(cfg *config.Config) (CompletionProvider, error) {
	apiKey := strings.TrimSpace(cfg.Providers.Gemini.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required (set providers.gemini.api_key or HOSHIBOT_PROVIDERS_GEMINI_API_KEY)")
	}

	return NewGeminiProvider(
		apiKey,
		strings.TrimSpace(cfg.Providers.Gemini.APIBase),
		strings.TrimSpace(cfg.Providers.Gemini.Model),
		strings.TrimSpace(cfg.Providers.Gemini.Proxy),
	), nil
}
