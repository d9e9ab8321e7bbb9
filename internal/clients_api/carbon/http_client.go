package carbon

// Package carbon contains the client for the Carbon CDP REST API.
// This file is the transport layer: it sends GET requests, enforces the
// response size cap and logs request/response pairs with a request id.

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"demex-health-bot/internal/infra/log"

	"go.uber.org/zap"
)

const (
	// MainnetAPI is the base URL of the production Carbon API.
	MainnetAPI = "https://api.carbon.network"
	// TestnetAPI is the base URL of the test Carbon API.
	TestnetAPI = "https://test-api.carbon.network"
)

// Client holds everything needed to talk to the Carbon API.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	maxResponseSize int64
}

// NewClient creates a client for the given network ("mainnet" or "testnet").
// timeoutSec bounds every request; values <= 0 fall back to 30 seconds.
func NewClient(network string, timeoutSec int) *Client {
	baseURL := MainnetAPI
	if network == "testnet" {
		baseURL = TestnetAPI
	}
	return newClient(baseURL, timeoutSec)
}

// NewClientWithBaseURL creates a client against an explicit base URL.
func NewClientWithBaseURL(baseURL string, timeoutSec int) *Client {
	return newClient(baseURL, timeoutSec)
}

func newClient(baseURL string, timeoutSec int) *Client {
	if timeoutSec <= 0 {
		timeoutSec = 30
	}
	return &Client{
		baseURL:         baseURL,
		maxResponseSize: 1 * 1024 * 1024, // 1MB, the health factor payload is tiny
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
			Transport: &http.Transport{
				DisableKeepAlives: false,
				MaxIdleConns:      10,
				IdleConnTimeout:   90 * time.Second,
			},
		},
	}
}

// BaseURL returns the base URL the client was constructed with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doGET issues a single GET against baseURL+endpoint. No retries and no
// circuit breaking here: one failed fetch is one "unavailable" outcome and
// the next periodic cycle simply tries again.
func (c *Client) doGET(ctx context.Context, endpoint string) ([]byte, error) {
	requestID := log.GenerateRequestID()
	startTime := time.Now()

	if ctx.Err() != nil {
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	log.LogRequest(requestID, http.MethodGet, endpoint, zap.String("url", req.URL.String()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		duration := time.Since(startTime).Milliseconds()
		log.LogResponse(requestID, 0, duration, zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	limitedReader := io.LimitReader(resp.Body, c.maxResponseSize)

	respBody, err := io.ReadAll(limitedReader)
	if err != nil {
		duration := time.Since(startTime).Milliseconds()
		log.LogResponse(requestID, resp.StatusCode, duration, zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	duration := time.Since(startTime).Milliseconds()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.LogResponse(requestID, resp.StatusCode, duration, zap.String("endpoint", endpoint), zap.String("error", "API error response received"))
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	log.LogResponse(requestID, resp.StatusCode, duration, zap.String("endpoint", endpoint), zap.String("status", "success"))

	return respBody, nil
}
