// Package tts implements adapters.TTSClient against a generic
// speech-synthesis REST API, using the shared httpx retry loop and error
// type like the pipeline's other platform HTTP clients. It never returns
// word timings: that is left to internal/platform/captionalign, since most
// synthesis providers don't return per-word alignment and the pipeline's
// NarrationAdapter discards any it does receive.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
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
	voiceID    string
	httpClient *http.Client
	maxRetries int
}

// Config is populated by internal/config from the CONTENTPIPE_TTS_*
// environment contract.
type Config struct {
	APIKey     string
	BaseURL    string
	VoiceID    string
	TimeoutSec int
	MaxRetries int
}

func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing CONTENTPIPE_TTS_API_KEY")
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		return nil, fmt.Errorf("missing CONTENTPIPE_TTS_VOICE_ID")
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 120
	}
	return &Client{
		log:        log.With("client", "TTSClient"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		voiceID:    cfg.VoiceID,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		maxRetries: cfg.MaxRetries,
	}, nil
}

type synthesizeRequest struct {
	Text string `json:"text"`
}

// Synthesize sends the script to the configured voice and returns the raw
// audio bytes and file extension; timings is always nil.
func (c *Client) Synthesize(ctx context.Context, script string) ([]byte, string, []adapters.WordTiming, error) {
	payload, err := json.Marshal(synthesizeRequest{Text: script})
	if err != nil {
		return nil, "", nil, err
	}
	audio, err := httpx.Retry(ctx, c.log, "tts", c.maxRetries, func(cctx context.Context) (*http.Response, []byte, error) {
		return c.doOnce(cctx, payload)
	})
	if err != nil {
		return nil, "", nil, err
	}
	return audio, ".mp3", nil, nil
}

func (c *Client) doOnce(ctx context.Context, payload []byte) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/text-to-speech/"+c.voiceID, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

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
		return resp, nil, &httpx.StatusError{Service: "tts", Code: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}
