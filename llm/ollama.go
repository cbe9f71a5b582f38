package llm

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

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/aiclone/internal/metrics"
	"github.com/BaSui01/aiclone/internal/tlsutil"
)

const providerOllama = "ollama"

// OllamaConfig 配置 Ollama 客户端.
type OllamaConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model" yaml:"model"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// RateLimit 为每秒请求数，<= 0 表示不限流
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`
	Burst     int     `json:"burst" yaml:"burst"`
}

// DefaultOllamaConfig 返回本机默认配置.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		BaseURL: "http://localhost:11434",
		Model:   "llama3.2:3b",
		Timeout: 30 * time.Second,
		Burst:   1,
	}
}

// OllamaClient 是 Ollama HTTP API 客户端.
type OllamaClient struct {
	client    *http.Client
	baseURL   string
	model     string
	limiter   *rate.Limiter
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewOllamaClient 创建客户端，collector 可为 nil.
func NewOllamaClient(cfg OllamaConfig, collector *metrics.Collector, logger *zap.Logger) *OllamaClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultOllamaConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &OllamaClient{
		client:    tlsutil.HTTPClient(cfg.Timeout),
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     cfg.Model,
		limiter:   limiter,
		collector: collector,
		logger:    logger.With(zap.String("component", "ollama"), zap.String("model", cfg.Model)),
	}
}

// Model 返回生成模型名.
func (c *OllamaClient) Model() string { return c.model }

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options GenerateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate 调用 /api/generate（非流式）.
func (c *OllamaClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	start := time.Now()
	body, err := c.doRequest(ctx, http.MethodPost, "/api/generate", generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: opts,
	})
	c.collector.RecordLLMRequest(providerOllama, c.model, err, time.Since(start))
	if err != nil {
		c.logger.Warn("generate failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return "", err
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode generate response: %w", err)
	}
	c.logger.Debug("generate completed", zap.Duration("elapsed", time.Since(start)), zap.Int("chars", len(resp.Response)))
	return resp.Response, nil
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed 调用 /api/embeddings，model 为空时使用生成模型.
func (c *OllamaClient) Embed(ctx context.Context, model, text string) ([]float64, error) {
	if model == "" {
		model = c.model
	}
	start := time.Now()
	body, err := c.doRequest(ctx, http.MethodPost, "/api/embeddings", embeddingRequest{Model: model, Prompt: text})
	c.collector.RecordLLMRequest(providerOllama, model, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Embedding, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels 调用 /api/tags 返回已安装模型.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}
	var resp tagsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode tags response: %w", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// HealthCheck 确认服务可达且生成模型已安装.
func (c *OllamaClient) HealthCheck(ctx context.Context) error {
	models, err := c.ListModels(ctx)
	if err != nil {
		return err
	}
	for _, name := range models {
		if name == c.model {
			return nil
		}
	}
	return &Error{
		Code:     ErrModelNotFound,
		Message:  fmt.Sprintf("model %s not installed (available: %s)", c.model, strings.Join(models, ", ")),
		Provider: providerOllama,
	}
}

// doRequest 执行 HTTP 请求, 并进行常见错误处理.
func (c *OllamaClient) doRequest(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{
			Code:      ErrRateLimited,
			Message:   err.Error(),
			Retryable: true,
			Provider:  providerOllama,
			Cause:     err,
		}
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		code := ErrProviderUnavailable
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			code = ErrUpstreamTimeout
		}
		return nil, &Error{
			Code:       code,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   providerOllama,
			Cause:      err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, mapHTTPError(resp.StatusCode, strings.TrimSpace(string(respBody)), providerOllama)
	}
	return respBody, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

var _ Generator = (*OllamaClient)(nil)
