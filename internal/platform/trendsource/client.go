// Package trendsource implements adapters.TrendSource against a
// Reddit-like categorized listing API: list recent items from a category
// with an upvote/score filter. This collaborator is optional by design — a
// 403 (common for unauthenticated or rate-limited access to this class of
// API) classifies as an auth error, which TrendIngestAdapter already
// treats as "zero candidates this tick" rather than a stage failure.
package trendsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shortforge/contentpipe/internal/adapters"
	"github.com/shortforge/contentpipe/internal/platform/httpx"
	"github.com/shortforge/contentpipe/internal/platform/logger"
)

type Client struct {
	log        *logger.Logger
	baseURL    string
	category   string
	userAgent  string
	httpClient *http.Client
}

// Config is populated by internal/config from the CONTENTPIPE_TREND_*
// environment contract. An empty Category means the collaborator is
// absent; app wiring then builds no adapters.TrendIngestAdapter at all
// rather than fail startup.
type Config struct {
	BaseURL    string
	Category   string
	UserAgent  string
	TimeoutSec int
}

func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.Category == "" {
		return nil, fmt.Errorf("missing CONTENTPIPE_TREND_CATEGORY")
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 10
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "contentpipe-trend-ingest/1.0"
	}
	return &Client{
		log:        log.With("client", "TrendSource"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		category:   cfg.Category,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
	}, nil
}

type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title string `json:"title"`
				Ups   int    `json:"ups"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// ListTrends implements adapters.TrendSource.
func (c *Client) ListTrends(ctx context.Context, minScore int) ([]adapters.TrendCandidate, error) {
	q := url.Values{}
	q.Set("limit", "50")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/r/"+c.category+"/top?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpx.StatusError{Service: "trendsource", Code: resp.StatusCode, Body: string(raw)}
	}
	var doc listing
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("trendsource: decode listing: %w", err)
	}
	out := make([]adapters.TrendCandidate, 0, len(doc.Data.Children))
	for _, ch := range doc.Data.Children {
		if ch.Data.Ups < minScore {
			continue
		}
		out = append(out, adapters.TrendCandidate{Title: ch.Data.Title, Score: ch.Data.Ups})
	}
	return out, nil
}
