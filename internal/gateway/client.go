// Package gateway is the outbound HTTPS surface to the bank's
// payment-processing API. It carries opaque sealed tokens and never retries:
// replaying a sealed request must originate as a fresh request upstream.
package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/novandria/bankgateway/internal"
)

const (
	prePaymentPath = "/api/1.0/Payment/prePaymentUi"

	contentTypeJOSE = "application/jose; charset=utf-8"
	acceptJOSE      = "application/jose"
	apiKeyHeader    = "CompanyApiKey"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

func NewClient(cfg internal.GatewayConfig, logger *slog.Logger) *Client {
	timeout := cfg.GetSubmitTimeout()
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
		logger:  logger,
	}
}

// Submit posts a sealed token and returns the sealed response token. All
// network and HTTP failures come back as TRANSPORT_ERROR with enough detail
// for the caller to decide on fallback behavior.
func (c *Client) Submit(ctx context.Context, sealedToken string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := c.baseURL + prePaymentPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(sealedToken))
	if err != nil {
		return "", internal.NewTransportError("failed to create gateway request", 0, err)
	}

	req.Header.Set("Accept", acceptJOSE)
	req.Header.Set("Content-Type", contentTypeJOSE)
	req.Header.Set(apiKeyHeader, c.apiKey)

	c.logger.Info("submitting payment request to gateway",
		"url", url,
		"token_length", len(sealedToken))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("gateway request failed", "error", err, "url", url)
		return "", internal.NewTransportError("gateway request failed", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", internal.NewTransportError("failed to read gateway response", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("gateway returned non-OK status",
			"status", resp.StatusCode,
			"url", url)
		return "", internal.NewTransportError(
			fmt.Sprintf("gateway returned status %d", resp.StatusCode),
			resp.StatusCode, nil)
	}

	c.logger.Info("gateway response received",
		"status", resp.StatusCode,
		"body_length", len(body))

	return strings.TrimSpace(string(body)), nil
}
