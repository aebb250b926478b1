package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/liuyipei/pdf-tokens/llm"
)

// ProviderName is the routing id for this adapter.
const ProviderName = "openai"

const (
	defaultBaseURL = "https://api.openai.com"
	defaultTimeout = 120 * time.Second
)

// Config holds the adapter's connection settings. A custom BaseURL points
// the adapter at any Chat-Completions-compatible endpoint (local Ollama,
// vLLM, proxies), which is why there is no separate adapter for those.
type Config struct {
	APIKey       string
	BaseURL      string
	Organization string
	Timeout      time.Duration
}

// Adapter implements llm.Adapter for the Chat Completions API.
type Adapter struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger
}

// New creates an Adapter. Empty fields fall back to the OPENAI_API_KEY,
// OPENAI_BASE_URL and OPENAI_ORG_ID environment variables.
func New(cfg Config, logger zerolog.Logger) *Adapter {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Organization == "" {
		cfg.Organization = os.Getenv("OPENAI_ORG_ID")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Name implements llm.Adapter.
func (a *Adapter) Name() string { return ProviderName }

// IsConfigured implements llm.Adapter.
func (a *Adapter) IsConfigured() bool { return a.cfg.APIKey != "" }

func (a *Adapter) endpoint(path string) string {
	return strings.TrimRight(a.cfg.BaseURL, "/") + path
}

func (a *Adapter) buildHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	if a.cfg.Organization != "" {
		req.Header.Set("OpenAI-Organization", a.cfg.Organization)
	}
}

func (a *Adapter) post(ctx context.Context, body *wireRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrTransform, Message: "encoding request", Provider: ProviderName, Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint("/v1/chat/completions"), bytes.NewReader(payload))
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrAPI, Message: "building request", Provider: ProviderName, Err: err}
	}
	a.buildHeaders(httpReq)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrAPI, Message: "request failed", Provider: ProviderName, Err: err}
	}
	return resp, nil
}

// Send implements llm.Adapter.
func (a *Adapter) Send(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if !a.IsConfigured() {
		return nil, llm.NewNotConfiguredError(ProviderName)
	}
	wireReq, err := a.transformRequest(req, false)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := a.post(ctx, wireReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, readAPIError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrAPI, Message: "reading response body", Provider: ProviderName, Err: err}
	}
	var wr wireResponse
	if err := json.Unmarshal(raw, &wr); err != nil {
		return nil, &llm.Error{Code: llm.ErrAPI, Message: "decoding response body", Provider: ProviderName, Raw: raw, Err: err}
	}

	a.logger.Debug().
		Str("provider", ProviderName).
		Str("model", wr.Model).
		Msg("Completion received")

	return a.transformResponse(&wr, raw, req, newTiming(start))
}

// SendStream implements llm.Adapter.
func (a *Adapter) SendStream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	if !a.IsConfigured() {
		return nil, llm.NewNotConfiguredError(ProviderName)
	}
	wireReq, err := a.transformRequest(req, true)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := a.post(ctx, wireReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	if resp.Body == nil {
		return nil, llm.NewStreamError(ProviderName, "response has no body", nil)
	}
	return newStream(resp.Body, req, start, a.logger), nil
}

// HealthCheck probes provider reachability with an authenticated models
// listing. Used by the health monitor, never by the request path.
func (a *Adapter) HealthCheck(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint("/v1/models"), nil)
	if err != nil {
		return 0, err
	}
	a.buildHeaders(httpReq)

	resp, err := a.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return latency, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return latency, fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	return latency, nil
}

func readAPIError(resp *http.Response) *llm.Error {
	raw, _ := io.ReadAll(resp.Body)
	message := extractErrMsg(raw)
	return llm.NewAPIError(ProviderName, resp.StatusCode, message, raw)
}

func extractErrMsg(raw []byte) string {
	var we wireError
	if err := json.Unmarshal(raw, &we); err == nil && we.Error.Message != "" {
		return fmt.Sprintf("%s (type: %s)", we.Error.Message, we.Error.Type)
	}
	if len(raw) > 0 {
		return string(raw)
	}
	return "provider returned an error with no body"
}
