package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/hci-study-backend/internal/observability"
	"github.com/yungbote/hci-study-backend/internal/platform/envutil"
	"github.com/yungbote/hci-study-backend/internal/platform/httpx"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
)

// TextRequest is one system+user exchange. System may be empty, in which
// case only the user message is sent. A nil Temperature leaves the model default.
// A model that rejects the temperature is retried without it unless
// KeepTemperature is set, in which case the rejection is returned.
type TextRequest struct {
	Model           string
	System          string
	User            string
	Temperature     *float64
	KeepTemperature bool
}

type ImageRequest struct {
	Model   string
	Prompt  string
	Size    string
	Quality string
}

type ImageGeneration struct {
	Bytes         []byte
	MimeType      string
	RevisedPrompt string
}

type Client interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
	GenerateImage(ctx context.Context, req ImageRequest) (ImageGeneration, error)
}

type Config struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	ChatFallback bool
}

var ErrMissingAPIKey = errors.New("missing OPENAI_API_KEY")

// ConfigFromEnv reads OPENAI_* variables. The API key is required.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		APIKey:       envutil.String("OPENAI_API_KEY", ""),
		BaseURL:      envutil.String("OPENAI_BASE_URL", "https://api.openai.com"),
		Timeout:      envutil.Seconds("OPENAI_TIMEOUT_SECONDS", 180*time.Second),
		MaxRetries:   envutil.Int("OPENAI_MAX_RETRIES", 2),
		ChatFallback: envutil.Bool("OPENAI_CHAT_FALLBACK", true),
	}
	if cfg.APIKey == "" {
		return cfg, ErrMissingAPIKey
	}
	return cfg, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
	tracer     trace.Tracer
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	return NewClientWithHTTPClient(log, cfg, &http.Client{Timeout: cfg.Timeout})
}

func NewClientWithHTTPClient(log *logger.Logger, cfg Config, httpClient *http.Client) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if httpClient == nil {
		return nil, fmt.Errorf("http client required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &client{
		log:        log.With("service", "OpenAIClient"),
		cfg:        cfg,
		httpClient: httpClient,
		tracer:     otel.Tracer("github.com/yungbote/hci-study-backend/internal/platform/openai"),
	}, nil
}

// HTTPError is a non-2xx answer from the API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// do posts body and decodes the JSON answer into out, retrying transient
// failures with jittered exponential backoff.
func (c *client) do(ctx context.Context, path, model string, body any, out any) error {
	ctx, span := c.tracer.Start(ctx, "openai "+path, trace.WithAttributes(
		attribute.String("llm.model", model),
		attribute.String("http.route", path),
	))
	defer span.End()

	backoff := time.Second
	start := time.Now()
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, raw, err := c.doOnce(ctx, http.MethodPost, path, body)
		if err == nil {
			in, outTok := usageFromRaw(raw)
			observability.Current().ObserveLLMRequest(model, path, statusOf(resp, nil), time.Since(start), in, outTok)
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w", uErr)
			}
			return nil
		}
		if !httpx.IsRetryableError(err) || attempt >= c.cfg.MaxRetries {
			observability.Current().ObserveLLMRequest(model, path, statusOf(resp, err), time.Since(start), 0, 0)
			span.RecordError(err)
			span.SetStatus(codes.Error, "openai request failed")
			return err
		}
		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return err
		}
		backoff *= 2
	}
}

// -------------------- Responses API --------------------

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model       string         `json:"model"`
	Input       []inputMessage `json:"input"`
	Temperature *float64       `json:"temperature,omitempty"`
}

type responsesResponse struct {
	OutputText string `json:"output_text,omitempty"`
	Output     []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func extractOutputText(resp responsesResponse) string {
	if s := strings.TrimSpace(resp.OutputText); s != "" {
		return s
	}
	var parts []string
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" && c.Text != "" {
				parts = append(parts, c.Text)
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func messages(req TextRequest) []inputMessage {
	msgs := make([]inputMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		msgs = append(msgs, inputMessage{Role: "system", Content: req.System})
	}
	return append(msgs, inputMessage{Role: "user", Content: req.User})
}

func (c *client) GenerateText(ctx context.Context, req TextRequest) (string, error) {
	if strings.TrimSpace(req.Model) == "" {
		return "", errors.New("model required")
	}
	text, err := c.responses(ctx, req)
	if err == nil {
		return text, nil
	}
	if !c.cfg.ChatFallback || !shouldFallBackToChat(err) || (req.KeepTemperature && isUnsupportedTemperature(err)) {
		return "", err
	}
	c.log.Warn("Responses API unusable, falling back to chat completions", "model", req.Model, "error", err.Error())
	return c.chatCompletions(ctx, req)
}

func (c *client) responses(ctx context.Context, req TextRequest) (string, error) {
	body := responsesRequest{Model: req.Model, Input: messages(req), Temperature: req.Temperature}
	var resp responsesResponse
	err := c.do(ctx, "/v1/responses", req.Model, &body, &resp)
	if err != nil && body.Temperature != nil && !req.KeepTemperature && isUnsupportedTemperature(err) {
		body.Temperature = nil
		err = c.do(ctx, "/v1/responses", req.Model, &body, &resp)
	}
	if err != nil {
		return "", err
	}
	if resp.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", resp.Refusal)
	}
	text := extractOutputText(resp)
	if text == "" {
		return "", errEmptyOutput
	}
	return text, nil
}

var errEmptyOutput = errors.New("no output_text found in response")

// Endpoint-level rejections and empty payloads are worth one chat attempt;
// auth failures, rate limits, and transport errors are not.
func shouldFallBackToChat(err error) bool {
	if errors.Is(err, errEmptyOutput) {
		return true
	}
	var he *HTTPError
	if !errors.As(err, &he) {
		return false
	}
	switch he.StatusCode {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusUnprocessableEntity:
		return true
	default:
		return false
	}
}

func isUnsupportedTemperature(err error) bool {
	var he *HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(he.Body)
	if !strings.Contains(msg, "temperature") {
		return false
	}
	for _, needle := range []string{"unsupported", "not supported", "does not support", "unknown parameter", "only the default"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// -------------------- Chat Completions --------------------

type chatRequest struct {
	Model       string         `json:"model"`
	Messages    []inputMessage `json:"messages"`
	Temperature *float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *client) chatCompletions(ctx context.Context, req TextRequest) (string, error) {
	body := chatRequest{Model: req.Model, Messages: messages(req), Temperature: req.Temperature}
	var resp chatResponse
	if err := c.do(ctx, "/v1/chat/completions", req.Model, &body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.New("chat completion returned no content")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// -------------------- Images API --------------------

type imagesGenerationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imagesGenerationResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

func (c *client) GenerateImage(ctx context.Context, req ImageRequest) (ImageGeneration, error) {
	var out ImageGeneration
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return out, errors.New("image prompt required")
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		return out, errors.New("image model required")
	}
	body := imagesGenerationRequest{
		Model:   model,
		Prompt:  prompt,
		N:       1,
		Size:    strings.TrimSpace(req.Size),
		Quality: strings.TrimSpace(req.Quality),
	}
	// gpt-image-* always answers with b64_json and rejects the parameter.
	if !strings.HasPrefix(strings.ToLower(model), "gpt-image-") {
		body.ResponseFormat = "b64_json"
	}

	var resp imagesGenerationResponse
	if err := c.do(ctx, "/v1/images/generations", model, &body, &resp); err != nil {
		return out, err
	}
	if len(resp.Data) == 0 {
		return out, errors.New("no image returned")
	}
	item := resp.Data[0]
	out.RevisedPrompt = strings.TrimSpace(item.RevisedPrompt)
	if b64 := strings.TrimSpace(item.B64JSON); b64 != "" {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return out, fmt.Errorf("decode image base64: %w", err)
		}
		if len(raw) == 0 {
			return out, errors.New("decoded image is empty")
		}
		out.Bytes = raw
		out.MimeType = http.DetectContentType(raw)
		return out, nil
	}
	if u := strings.TrimSpace(item.URL); u != "" {
		b, ct, err := c.downloadBytes(ctx, u)
		if err != nil {
			return out, fmt.Errorf("download generated image: %w", err)
		}
		out.Bytes = b
		out.MimeType = strings.TrimSpace(strings.Split(ct, ";")[0])
		if out.MimeType == "" {
			out.MimeType = http.DetectContentType(b)
		}
		return out, nil
	}
	return out, errors.New("image response missing b64_json and url")
}

func (c *client) downloadBytes(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	// Signed blob URLs break when an unrelated Authorization header is attached.
	if sameHost(c.cfg.BaseURL, rawURL) {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, "", readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, resp.Header.Get("Content-Type"), nil
}

func sameHost(baseURL, rawURL string) bool {
	b, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(b.Host, u.Host)
}

func usageFromRaw(raw []byte) (int, int) {
	var probe struct {
		Usage struct {
			InputTokens      int `json:"input_tokens"`
			OutputTokens     int `json:"output_tokens"`
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0, 0
	}
	in := probe.Usage.InputTokens
	if in == 0 {
		in = probe.Usage.PromptTokens
	}
	out := probe.Usage.OutputTokens
	if out == 0 {
		out = probe.Usage.CompletionTokens
	}
	return in, out
}

func statusOf(resp *http.Response, err error) string {
	var he *HTTPError
	if errors.As(err, &he) {
		return fmt.Sprintf("%d", he.StatusCode)
	}
	if resp != nil {
		return fmt.Sprintf("%d", resp.StatusCode)
	}
	if err != nil {
		return "error"
	}
	return "0"
}
