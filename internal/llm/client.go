package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/receiptdu/receiptdu/internal/common"
)

// Config for the chat-completion client (Ollama-compatible /api/chat).
type Config struct {
	BaseURL     string        // default http://localhost:11434
	Model       string        // required; absence is a fatal startup condition
	Temperature float64       // deterministic extraction wants 0
	Timeout     time.Duration // http client timeout, default 60s
}

// Client implements FieldExtractor against a chat endpoint. One blocking
// request per receipt, fixed timeout, no retry, no backoff.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Options  map[string]any `json:"options"`
	Stream   bool           `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// ExtractFields sends the grounded extraction request and returns the
// validated extraction plus the raw reply content. Connection failures and
// timeouts surface as SERVICE_UNREACHABLE; structural problems in the reply
// as MALFORMED_RESPONSE / SCHEMA_VIOLATION. All are fatal for the receipt.
func (c *Client) ExtractFields(ctx context.Context, req Request) (*Extraction, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	if c.cfg.Model == "" {
		return nil, nil, common.NewAppError(common.CodeConfig, "model identifier is not configured", nil)
	}

	user, err := json.Marshal(BuildUserPayload(req))
	if err != nil {
		return nil, nil, fmt.Errorf("encode user payload: %w", err)
	}

	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: BuildSystemPrompt()},
			{Role: "user", Content: string(user)},
		},
		Options: map[string]any{"temperature": c.cfg.Temperature},
		Stream:  false,
	}

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"lines", len(req.Lines),
		"payload_bytes", len(user),
	)

	raw, err := c.post(ctx, strings.TrimRight(c.cfg.BaseURL, "/")+"/api/chat", body)
	if err != nil {
		c.logger.Error("llm.extract.unreachable",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, nil, common.NewAppError(common.CodeServiceUnreachable,
			"model service is not reachable at "+c.cfg.BaseURL, err)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw))
		return nil, raw, common.NewAppError(common.CodeMalformedResponse, "decode chat response", err)
	}
	content := strings.TrimSpace(cr.Message.Content)

	ex, err := ParseExtraction(content)
	if err != nil {
		c.logger.Error("llm.extract.invalid",
			"req_id", rid, "error", err, "content_bytes", len(content),
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, []byte(content), err
	}
	ex.NormalizeEvidence(req.Lines)

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"merchant", ex.Extracted["merchant"],
		"date", ex.Extracted["date"],
		"total", ex.Extracted["total"],
		"currency", ex.Extracted["currency"],
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return ex, []byte(content), nil
}

func (c *Client) post(ctx context.Context, url string, body any) ([]byte, error) {
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(b io.ReadCloser) {
		if cerr := b.Close(); cerr != nil {
			c.logger.Warn("llm.http.response_body_close_error", "error", cerr)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("non-2xx status: %d: %s", resp.StatusCode, truncate(string(raw), 512))
	}
	return raw, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
