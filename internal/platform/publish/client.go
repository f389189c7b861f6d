// Package publish implements adapters.Publisher: authenticated upload to a
// YouTube-Shorts-like publication target. The video goes out in a single
// POST to the provider's resumable-upload endpoint; it is not split into
// chunks. A short-lived service-account JWT is signed locally from the
// provider credential and sent directly as the bearer token (there is no
// token exchange), rather than a long-lived static API key.
package publish

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shortforge/contentpipe/internal/platform/httpx"
	"github.com/shortforge/contentpipe/internal/platform/logger"
)

// Client uploads a finished video with its publish metadata and returns
// the resulting public URL.
type Client struct {
	log        *logger.Logger
	baseURL    string
	clientID   string
	signingKey *rsa.PrivateKey
	httpClient *http.Client
	maxRetries int

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// Config is populated by internal/config from the CONTENTPIPE_PUBLISH_*
// environment contract. PrivateKeyPEM is the provider credential
// (CONTENTPIPE_PUBLISH_API_KEY): an RSA private key in PEM form.
type Config struct {
	BaseURL       string
	ClientID      string
	PrivateKeyPEM string
	TimeoutSec    int
	MaxRetries    int
}

func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("missing CONTENTPIPE_PUBLISH_CLIENT_ID")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse CONTENTPIPE_PUBLISH_API_KEY: %w", err)
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 300
	}
	return &Client{
		log:        log.With("client", "Publisher"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		clientID:   cfg.ClientID,
		signingKey: key,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		maxRetries: cfg.MaxRetries,
	}, nil
}

// token returns a cached access token, minting a fresh one when the prior
// one is within a minute of expiring.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Until(c.expiresAt) > time.Minute {
		return c.accessToken, nil
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    c.clientID,
		Subject:   c.clientID,
		Audience:  jwt.ClaimStrings{c.baseURL},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign service-account jwt: %w", err)
	}
	c.accessToken = signed
	c.expiresAt = now.Add(time.Hour)
	return c.accessToken, nil
}

type uploadRequest struct {
	Snippet struct {
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
		CategoryID  string   `json:"categoryId"`
	} `json:"snippet"`
	Status struct {
		Privacy                 string `json:"privacyStatus"`
		SelfDeclaredMadeForKids bool   `json:"selfDeclaredMadeForKids"`
	} `json:"status"`
}

type uploadResponse struct {
	ID string `json:"id"`
}

// Upload implements adapters.Publisher: a single resumable-session POST
// carrying the video bytes, with idempotencyKey forwarded as a header the
// provider can use to dedupe a retried upload.
func (c *Client) Upload(ctx context.Context, videoPath, title, description string, tags []string, madeForKids bool, categoryID int, idempotencyKey string) (string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return "", err
	}
	video, err := os.ReadFile(videoPath)
	if err != nil {
		return "", fmt.Errorf("read video for upload: %w", err)
	}

	var meta uploadRequest
	meta.Snippet.Title = title
	meta.Snippet.Description = description
	meta.Snippet.Tags = tags
	meta.Snippet.CategoryID = strconv.Itoa(categoryID)
	meta.Status.Privacy = "public"
	meta.Status.SelfDeclaredMadeForKids = madeForKids
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}

	raw, err := httpx.Retry(ctx, c.log, "publish", c.maxRetries, func(cctx context.Context) (*http.Response, []byte, error) {
		return c.doUpload(cctx, token, idempotencyKey, metaJSON, video)
	})
	if err != nil {
		return "", err
	}
	var resp uploadResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("publish: decode upload response: %w; raw=%s", err, string(raw))
	}
	if resp.ID == "" {
		return "", fmt.Errorf("publish: upload returned no id")
	}
	return fmt.Sprintf("https://example/%s", resp.ID), nil
}

func (c *Client) doUpload(ctx context.Context, token, idempotencyKey string, metaJSON, video []byte) (*http.Response, []byte, error) {
	var body bytes.Buffer
	body.Write(metaJSON)
	body.WriteByte('\n')
	body.Write(video)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/videos?uploadType=resumable", &body)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Idempotency-Key", idempotencyKey)

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
		return resp, raw, &httpx.StatusError{Service: "publish", Code: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}
