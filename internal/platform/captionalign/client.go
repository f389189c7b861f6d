// Package captionalign implements adapters.CaptionAligner against a
// generic forced-alignment REST API: given a script and its narration
// audio, recover word-level start/end timings. Uses the shared httpx retry
// loop and error type like the pipeline's other platform HTTP clients.
package captionalign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/shortforge/contentpipe/internal/adapters"
	"github.com/shortforge/contentpipe/internal/platform/httpx"
	"github.com/shortforge/contentpipe/internal/platform/logger"
)

type Client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

// Config is populated by internal/config from the
// CONTENTPIPE_CAPTIONALIGN_* environment contract.
type Config struct {
	APIKey     string
	BaseURL    string
	TimeoutSec int
	MaxRetries int
}

func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 120
	}
	return &Client{
		log:        log.With("client", "CaptionAligner"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		maxRetries: cfg.MaxRetries,
	}, nil
}

type alignResponse struct {
	Words []struct {
		Word     string  `json:"word"`
		StartSec float64 `json:"start_sec"`
		EndSec   float64 `json:"end_sec"`
	} `json:"words"`
}

// Align implements adapters.CaptionAligner.
func (c *Client) Align(ctx context.Context, script string, audio []byte) ([]adapters.WordTiming, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("transcript", script); err != nil {
		return nil, err
	}
	audioPart, err := mw.CreateFormFile("audio", "narration.audio")
	if err != nil {
		return nil, err
	}
	if _, err := audioPart.Write(audio); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	raw, err := httpx.Retry(ctx, c.log, "captionalign", c.maxRetries, func(cctx context.Context) (*http.Response, []byte, error) {
		return c.doOnce(cctx, mw.FormDataContentType(), body.Bytes())
	})
	if err != nil {
		return nil, err
	}
	var resp alignResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("captionalign: decode response: %w; raw=%s", err, string(raw))
	}
	out := make([]adapters.WordTiming, 0, len(resp.Words))
	for _, w := range resp.Words {
		out = append(out, adapters.WordTiming{Word: w.Word, StartSec: w.StartSec, EndSec: w.EndSec})
	}
	return out, nil
}

func (c *Client) doOnce(ctx context.Context, contentType string, body []byte) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcriptions", bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
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
		return resp, raw, &httpx.StatusError{Service: "captionalign", Code: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}
