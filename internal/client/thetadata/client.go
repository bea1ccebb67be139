package thetadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"optionscan/internal/marketdata"
)

// ThetaData terminal status for "request understood, nothing to return".
const statusNoData = 472

type Client struct {
	host       string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker

	maxRetryElapsed time.Duration
}

type Options struct {
	APIKey          string
	RequestsPerSec  float64
	MaxRetryElapsed time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host string, opts Options) *Client {
	if host == "" {
		host = "http://127.0.0.1:25510"
	}
	host = strings.TrimRight(host, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	rps := opts.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	maxRetry := opts.MaxRetryElapsed
	if maxRetry <= 0 {
		maxRetry = 30 * time.Second
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := opts.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "thetadata",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Final answers (no-data, 4xx) must not trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || !isRetryable(err)
		},
	})

	return &Client{
		host:            host,
		apiKey:          opts.APIKey,
		httpClient:      httpClient,
		limiter:         rate.NewLimiter(rate.Limit(rps), 1),
		breaker:         breaker,
		maxRetryElapsed: maxRetry,
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body []byte
	operation := func() error {
		res, err := c.breaker.Execute(func() (any, error) {
			return c.doOnce(ctx, path, query)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(&marketdata.TransientError{Op: path, Err: err})
			}
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		body = res.([]byte)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxRetryElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		if isRetryable(err) {
			return nil, &marketdata.TransientError{Op: path, Err: err}
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) doOnce(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == statusNoData || resp.StatusCode == http.StatusNotFound {
		return nil, marketdata.ErrNoData
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// isRetryable marks failures worth another attempt: transport errors and
// 5xx/429 responses. ErrNoData and other 4xx are final.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, marketdata.ErrNoData) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *marketdata.TransientError
	if errors.As(err, &te) {
		return true
	}
	// Anything else at this point is a transport-level failure.
	return true
}

func (c *Client) OptionChain(ctx context.Context, symbol string) ([]marketdata.OptionSnapshot, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	query := url.Values{}
	query.Set("root", symbol)
	body, err := c.doRequest(ctx, "/v2/bulk_snapshot/option/quote", query)
	if err != nil {
		return nil, err
	}
	return parseChain(symbol, body)
}

func (c *Client) OptionQuote(ctx context.Context, contract marketdata.OptionContract) (*marketdata.OptionSnapshot, error) {
	query, err := contractQuery(contract)
	if err != nil {
		return nil, err
	}
	body, err := c.doRequest(ctx, "/v2/snapshot/option/quote", query)
	if err != nil {
		return nil, err
	}
	snaps, err := parseChain(contract.Symbol, body)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, marketdata.ErrNoData
	}
	snap := snaps[0]
	snap.Contract = contract
	return &snap, nil
}

func (c *Client) HistoricalBars(ctx context.Context, contract marketdata.OptionContract, start, end time.Time, granularity time.Duration) ([]marketdata.Bar, error) {
	query, err := contractQuery(contract)
	if err != nil {
		return nil, err
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("start must be before end")
	}
	if granularity <= 0 {
		granularity = 30 * time.Minute
	}
	query.Set("start_date", start.UTC().Format("20060102"))
	query.Set("end_date", end.UTC().Format("20060102"))
	query.Set("ivl", fmt.Sprintf("%d", granularity.Milliseconds()))
	body, err := c.doRequest(ctx, "/v2/hist/option/ohlc", query)
	if err != nil {
		return nil, err
	}
	bars, err := parseBars(body)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, marketdata.ErrNoData
	}
	return bars, nil
}

func contractQuery(contract marketdata.OptionContract) (url.Values, error) {
	symbol := strings.ToUpper(strings.TrimSpace(contract.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if contract.Expiration.IsZero() {
		return nil, fmt.Errorf("expiration is required")
	}
	right, err := formatRight(contract.OptionType)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("root", symbol)
	query.Set("exp", contract.Expiration.UTC().Format("20060102"))
	query.Set("strike", formatStrike(contract.Strike))
	query.Set("right", right)
	return query, nil
}
