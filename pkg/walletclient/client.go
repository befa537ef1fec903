package walletclient

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client is a platform wallet API client.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// New creates a new wallet API client.
func New(config *Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// NewWithHTTPClient creates a wallet API client with a custom HTTP
// client, mainly for tests.
func NewWithHTTPClient(config *Config, httpClient *http.Client) *Client {
	return &Client{
		config:     config,
		httpClient: httpClient,
	}
}

// computeHMAC computes the HMAC-SHA256 signature for the request body.
func (c *Client) computeHMAC(body []byte) string {
	h := hmac.New(sha256.New, []byte(c.config.APISecret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// doRequest performs a signed POST, retrying transport failures. Each
// attempt gets a fresh request so the body is readable again.
func (c *Client) doRequest(ctx context.Context, endpoint string, reqBody interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.config.BaseURL + endpoint
	signature := c.computeHMAC(bodyBytes)

	retryCount := c.config.RetryCount
	if retryCount == 0 {
		retryCount = 1
	}

	var resp *http.Response
	var lastErr error
	for i := 0; i < retryCount; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.config.APIKey)
		req.Header.Set("x-api-hmac", signature)

		resp, err = c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		break
	}

	if resp == nil {
		return fmt.Errorf("request failed after %d retries: %w", retryCount, lastErr)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

// Debit deducts money from the user's wallet balance.
func (c *Client) Debit(ctx context.Context, req *DebitRequest) (*DebitResult, error) {
	req.SiteCode = c.config.SiteCode

	var resp Response[DebitResult]
	if err := c.doRequest(ctx, "/debit", req, &resp); err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, resp.Error
	}

	return resp.Result, nil
}

// Credit adds money to the user's wallet balance.
func (c *Client) Credit(ctx context.Context, req *CreditRequest) (*CreditResult, error) {
	req.SiteCode = c.config.SiteCode

	var resp Response[CreditResult]
	if err := c.doRequest(ctx, "/credit", req, &resp); err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, resp.Error
	}

	return resp.Result, nil
}

// Balance retrieves the user's current wallet balance.
func (c *Client) Balance(ctx context.Context, userID string) (*BalanceResult, error) {
	req := &BalanceRequest{
		SiteCode: c.config.SiteCode,
		UserID:   userID,
	}

	var resp Response[BalanceResult]
	if err := c.doRequest(ctx, "/balance", req, &resp); err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, resp.Error
	}

	return resp.Result, nil
}

// Cancel voids a failed debit or credit transaction.
func (c *Client) Cancel(ctx context.Context, req *CancelRequest) (*CancelResult, error) {
	req.SiteCode = c.config.SiteCode

	var resp Response[CancelResult]
	if err := c.doRequest(ctx, "/cancel", req, &resp); err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, resp.Error
	}

	return resp.Result, nil
}
