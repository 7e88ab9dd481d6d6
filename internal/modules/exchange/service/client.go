package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"signal_bot/internal/apperrors"
	"signal_bot/internal/modules/config"
	"signal_bot/pkg/logger"

	"github.com/jpillora/backoff"
)

// Client is the Bitget v2 REST client. Every call signs the request, retries
// transient failures under the configured backoff budget and maps venue
// business codes onto the shared error taxonomy.
type Client struct {
	http       *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
	passphrase string
	testnet    bool

	maxRetries int
	backoffMin time.Duration
	backoffMax time.Duration
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		http:       &http.Client{Timeout: 10 * time.Second},
		baseURL:    cfg.Exchange.RestURL,
		apiKey:     cfg.Exchange.APIKey,
		apiSecret:  cfg.Exchange.APISecret,
		passphrase: cfg.Exchange.Passphrase,
		testnet:    cfg.Exchange.Testnet,
		maxRetries: cfg.ExchangeMaxRetries,
		backoffMin: cfg.ExchangeBackoffMin,
		backoffMax: cfg.ExchangeBackoffMax,
	}
}

func (c *Client) sign(ts, method, requestPath, body string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(ts + method + requestPath + body))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// generateRequest builds a signed request. requestPath must include the
// query string: the venue signs over it.
func (c *Client) generateRequest(ctx context.Context, method, requestPath string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, reader)
	if err != nil {
		return nil, err
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req.Header.Set("ACCESS-KEY", c.apiKey)
	req.Header.Set("ACCESS-SIGN", c.sign(ts, method, requestPath, string(body)))
	req.Header.Set("ACCESS-TIMESTAMP", ts)
	req.Header.Set("ACCESS-PASSPHRASE", c.passphrase)
	req.Header.Set("Content-Type", "application/json")
	if c.testnet {
		req.Header.Set("paptrading", "1")
	}
	return req, nil
}

// doWithRetry runs one signed call, retrying network errors, 429 and 5xx.
// A 2xx with a non-zero business code is a rejection, never retried.
func (c *Client) doWithRetry(ctx context.Context, op, method, requestPath string, body []byte) ([]byte, error) {
	b := &backoff.Backoff{
		Min:    c.backoffMin,
		Max:    c.backoffMax,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			d := b.Duration()
			logger.Info("%s: retry %d/%d in %s", op, attempt, c.maxRetries, d)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d):
			}
		}

		req, err := c.generateRequest(ctx, method, requestPath, body)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5 {
			lastErr = fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
			continue
		}
		if resp.StatusCode/100 != 2 {
			return nil, &apperrors.ExchangeRejectedError{
				Reason: fmt.Sprintf("http %d: %s", resp.StatusCode, string(data)),
			}
		}
		return data, nil
	}

	return nil, &apperrors.ExchangeTransientError{Op: op, Err: lastErr}
}
