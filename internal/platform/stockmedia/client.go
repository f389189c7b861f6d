// Package stockmedia implements adapters.StockSearchClient and
// adapters.Downloader against a generic stock-footage search API, using
// the shared httpx retry loop and error type like the pipeline's other
// platform HTTP clients. The search call carries the `search` operation
// class budget and the download call the `download` class's longer budget;
// this client itself has no notion of operation classes, that lives in the
// Resilient Call Layer above it.
package stockmedia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shortforge/contentpipe/internal/adapters"
	"github.com/shortforge/contentpipe/internal/platform/httpx"
	"github.com/shortforge/contentpipe/internal/platform/logger"
)

// Client searches for and downloads portrait-orientation stock footage.
type Client struct {
	log          *logger.Logger
	baseURL      string
	apiKey       string
	searchHTTP   *http.Client
	downloadHTTP *http.Client
	maxRetries   int
}

// Config is populated by internal/config from the CONTENTPIPE_STOCK_*
// environment contract.
type Config struct {
	APIKey             string
	BaseURL            string
	SearchTimeoutSec   int
	DownloadTimeoutSec int
	MaxRetries         int
}

func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing CONTENTPIPE_STOCK_API_KEY")
	}
	if cfg.SearchTimeoutSec <= 0 {
		cfg.SearchTimeoutSec = 45
	}
	if cfg.DownloadTimeoutSec <= 0 {
		cfg.DownloadTimeoutSec = 300
	}
	return &Client{
		log:          log.With("client", "StockSearchClient"),
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		searchHTTP:   &http.Client{Timeout: time.Duration(cfg.SearchTimeoutSec) * time.Second},
		downloadHTTP: &http.Client{Timeout: time.Duration(cfg.DownloadTimeoutSec) * time.Second},
		maxRetries:   cfg.MaxRetries,
	}, nil
}

type searchResponse struct {
	Videos []struct {
		Duration   float64 `json:"duration"`
		VideoFiles []struct {
			Link   string `json:"link"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		} `json:"video_files"`
	} `json:"videos"`
}

// Search implements adapters.StockSearchClient.
func (c *Client) Search(ctx context.Context, keyword string, limit int) ([]adapters.ClipCandidate, error) {
	if limit <= 0 {
		limit = 3
	}
	q := url.Values{}
	q.Set("query", keyword)
	q.Set("orientation", "portrait")
	q.Set("per_page", strconv.Itoa(limit*3))

	raw, err := httpx.Retry(ctx, c.log, "stockmedia", c.maxRetries, func(cctx context.Context) (*http.Response, []byte, error) {
		return c.doOnce(cctx, "/videos/search?"+q.Encode())
	})
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("stockmedia: decode response: %w; raw=%s", err, string(raw))
	}
	out := make([]adapters.ClipCandidate, 0, len(resp.Videos))
	for _, v := range resp.Videos {
		for _, f := range v.VideoFiles {
			out = append(out, adapters.ClipCandidate{
				URL: f.Link, Width: f.Width, Height: f.Height,
				DurationS: v.Duration, Orientation: orientationOf(f.Width, f.Height),
			})
			break // one file per video candidate is enough
		}
	}
	return out, nil
}

func orientationOf(w, h int) string {
	switch {
	case h > w:
		return "portrait"
	case w > h:
		return "landscape"
	default:
		return "square"
	}
}

// Download implements adapters.Downloader: a single-shot GET, chunked
// transfer being the provider's concern over HTTP range requests this
// client does not issue.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.downloadHTTP.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, "", &httpx.StatusError{Service: "stockmedia", Code: resp.StatusCode, Body: string(body)}
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return content, extFromURL(rawURL), nil
}

func extFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".mp4"
	}
	idx := strings.LastIndex(u.Path, ".")
	if idx == -1 {
		return ".mp4"
	}
	return u.Path[idx:]
}

func (c *Client) doOnce(ctx context.Context, path string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", c.apiKey)
	resp, err := c.searchHTTP.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpx.StatusError{Service: "stockmedia", Code: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}
