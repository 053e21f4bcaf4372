// Package eodhd provides a client for the EODHD API
package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/interfaces"
	"github.com/bobmcallan/tickercal/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
	DefaultExchange  = "US"
	DefaultLookahead = 365 * 24 * time.Hour
)

// Compile-time interface check
var _ interfaces.MarketDataClient = (*Client)(nil)

// Client implements the MarketDataClient interface
type Client struct {
	baseURL    string
	apiKey     string
	exchange   string
	lookahead  time.Duration
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithExchange sets the suffix appended to tickers given without one
func WithExchange(exchange string) ClientOption {
	return func(c *Client) {
		c.exchange = strings.ToUpper(exchange)
	}
}

// WithLookahead sets how far ahead the earnings calendar is queried
func WithLookahead(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.lookahead = d
		}
	}
}

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		apiKey:    apiKey,
		exchange:  DefaultExchange,
		lookahead: DefaultLookahead,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Unwrap lets callers test API failures with errors.Is(err, common.ErrProviderUnavailable).
func (e *APIError) Unwrap() error {
	return common.ErrProviderUnavailable
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// symbol maps a bare ticker to the provider's CODE.EXCHANGE form.
func (c *Client) symbol(ticker string) string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if strings.Contains(ticker, ".") || c.exchange == "" {
		return ticker
	}
	return ticker + "." + c.exchange
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", common.ErrProviderDataUnrecognized, err)
	}

	return nil
}

// GetEOD retrieves end-of-day price data
func (c *Client) GetEOD(ctx context.Context, ticker string, opts ...interfaces.EODOption) (*models.EODResponse, error) {
	params := &interfaces.EODParams{
		Period: "d",
		Order:  "a",
	}

	for _, opt := range opts {
		opt(params)
	}

	urlParams := url.Values{}
	urlParams.Set("period", params.Period)
	urlParams.Set("order", params.Order)

	if !params.From.IsZero() {
		urlParams.Set("from", params.From.Format(models.DateLayout))
	}
	if !params.To.IsZero() {
		urlParams.Set("to", params.To.Format(models.DateLayout))
	}

	path := fmt.Sprintf("/eod/%s", c.symbol(ticker))

	var bars []eodBarResponse
	if err := c.get(ctx, path, urlParams, &bars); err != nil {
		return nil, err
	}

	result := &models.EODResponse{
		Data: make([]models.EODBar, 0, len(bars)),
	}

	for _, bar := range bars {
		date, err := time.Parse(models.DateLayout, bar.Date)
		if err != nil {
			continue
		}
		result.Data = append(result.Data, models.EODBar{
			Date:     date,
			Open:     float64(bar.Open),
			High:     float64(bar.High),
			Low:      float64(bar.Low),
			Close:    float64(bar.Close),
			AdjClose: float64(bar.AdjustedClose),
			Volume:   bar.Volume,
		})
	}

	return result, nil
}

// eodBarResponse represents the API response for EOD data
type eodBarResponse struct {
	Date          string      `json:"date"`
	Open          flexFloat64 `json:"open"`
	High          flexFloat64 `json:"high"`
	Low           flexFloat64 `json:"low"`
	Close         flexFloat64 `json:"close"`
	AdjustedClose flexFloat64 `json:"adjusted_close"`
	Volume        int64       `json:"volume"`
}

// GetIntraday retrieves intraday candles between from and to
func (c *Client) GetIntraday(ctx context.Context, ticker, interval string, from, to time.Time) ([]models.IntradayBar, error) {
	switch interval {
	case "1m", "5m", "1h":
	default:
		return nil, fmt.Errorf("unsupported intraday interval %q", interval)
	}

	urlParams := url.Values{}
	urlParams.Set("interval", interval)
	if !from.IsZero() {
		urlParams.Set("from", strconv.FormatInt(from.Unix(), 10))
	}
	if !to.IsZero() {
		urlParams.Set("to", strconv.FormatInt(to.Unix(), 10))
	}

	path := fmt.Sprintf("/intraday/%s", c.symbol(ticker))

	var bars []intradayBarResponse
	if err := c.get(ctx, path, urlParams, &bars); err != nil {
		return nil, err
	}

	result := make([]models.IntradayBar, 0, len(bars))
	for _, bar := range bars {
		if bar.Timestamp == 0 {
			continue
		}
		result = append(result, models.IntradayBar{
			Time:   time.Unix(bar.Timestamp, 0).UTC(),
			Open:   float64(bar.Open),
			High:   float64(bar.High),
			Low:    float64(bar.Low),
			Close:  float64(bar.Close),
			Volume: int64(bar.Volume),
		})
	}
	return result, nil
}

type intradayBarResponse struct {
	Timestamp int64       `json:"timestamp"`
	Open      flexFloat64 `json:"open"`
	High      flexFloat64 `json:"high"`
	Low       flexFloat64 `json:"low"`
	Close     flexFloat64 `json:"close"`
	Volume    flexFloat64 `json:"volume"`
}

// GetEarningsCalendar retrieves upcoming earnings report dates for a ticker.
// Unknown tickers (404 or no rows) return models.EmptyCalendar.
func (c *Client) GetEarningsCalendar(ctx context.Context, ticker string) (models.ProviderCalendar, error) {
	from := c.now().UTC()
	to := from.Add(c.lookahead)

	urlParams := url.Values{}
	urlParams.Set("symbols", c.symbol(ticker))
	urlParams.Set("from", from.Format(models.DateLayout))
	urlParams.Set("to", to.Format(models.DateLayout))

	var raw json.RawMessage
	if err := c.get(ctx, "/calendar/earnings", urlParams, &raw); err != nil {
		if IsNotFound(err) {
			return models.EmptyCalendar{}, nil
		}
		return nil, err
	}

	cal, err := parseEarningsCalendar(raw)
	if err != nil {
		return nil, fmt.Errorf("earnings calendar for %s: %w", ticker, err)
	}
	return cal, nil
}
