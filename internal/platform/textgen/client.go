// Package textgen implements adapters.TextGenClient against an OpenAI-style
// Responses API: bearer-auth JSON request/response, temperature handling,
// and the shared httpx retry loop, narrowed to the three calls this
// pipeline's ideation/scripting/metadata stages need.
package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shortforge/contentpipe/internal/platform/httpx"
	"github.com/shortforge/contentpipe/internal/platform/logger"
)

// Client generates short-form video titles, scripts, and publish metadata
// from a text model behind an OpenAI-compatible Responses API.
type Client struct {
	log         *logger.Logger
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
	maxRetries  int
}

// Config is populated by internal/config from the CONTENTPIPE_TEXTGEN_*
// environment contract.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	TimeoutSec  int
	MaxRetries  int
}

func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing CONTENTPIPE_TEXTGEN_API_KEY")
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 60
	}
	return &Client{
		log:         log.With("client", "TextGenClient"),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		maxRetries:  cfg.MaxRetries,
	}, nil
}

type responsesRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Input       []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"input"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func extractText(resp responsesResponse) string {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type == "message" && item.Role == "assistant" {
			for _, c := range item.Content {
				if c.Type == "output_text" && c.Text != "" {
					out.WriteString(c.Text)
				}
			}
		}
	}
	return out.String()
}

func (c *Client) generate(ctx context.Context, system, user string) (string, error) {
	req := responsesRequest{Model: c.model, Temperature: c.temperature}
	req.Input = append(req.Input,
		struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{Role: "system", Content: system},
		struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{Role: "user", Content: user},
	)
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	raw, err := httpx.Retry(ctx, c.log, "textgen", c.maxRetries, func(cctx context.Context) (*http.Response, []byte, error) {
		return c.doOnce(cctx, payload)
	})
	if err != nil {
		return "", err
	}
	var resp responsesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("textgen: decode response: %w; raw=%s", err, string(raw))
	}
	if resp.Refusal != "" {
		return "", fmt.Errorf("textgen: model refused: %s", resp.Refusal)
	}
	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", fmt.Errorf("textgen: empty output_text")
	}
	return text, nil
}

// GenerateTitle produces a short, attention-grabbing title candidate for a
// newly ideated concept.
func (c *Client) GenerateTitle(ctx context.Context, conceptText string) (string, error) {
	return c.generate(ctx,
		"You invent concise, specific short-form video titles. Reply with only the title, no quotes, no commentary.",
		conceptText,
	)
}

// GenerateScript produces the ~160-word narration script for a concept.
func (c *Client) GenerateScript(ctx context.Context, conceptText string) (string, error) {
	return c.generate(ctx,
		"You write tight, engaging ~160-word narration scripts for short-form video, spoken in second person, no stage directions or headings.",
		conceptText,
	)
}

// GenerateMetadata produces publish-time title, description, and tags from
// the finalized script.
func (c *Client) GenerateMetadata(ctx context.Context, script string) (title, description string, tags []string, err error) {
	raw, genErr := c.generate(ctx,
		"You write publish metadata for a short-form video from its narration script. Reply with strict JSON only: "+
			`{"title": string, "description": string, "tags": [string, ...]}. No markdown fences, no commentary.`,
		script,
	)
	if genErr != nil {
		return "", "", nil, genErr
	}
	var doc struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	}
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	if uErr := json.Unmarshal([]byte(strings.TrimSpace(clean)), &doc); uErr != nil {
		return "", "", nil, fmt.Errorf("textgen: parse metadata json: %w; raw=%s", uErr, raw)
	}
	return doc.Title, doc.Description, doc.Tags, nil
}

func (c *Client) doOnce(ctx context.Context, payload []byte) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/responses", bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
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
		return resp, raw, &httpx.StatusError{Service: "textgen", Code: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}
