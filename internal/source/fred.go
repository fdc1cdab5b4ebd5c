package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const fredBaseURL = "https://api.stlouisfed.org/fred"

// fredDateLayout is the date format the FRED API emits for observations.
const fredDateLayout = "2006-01-02"

// FREDAdapter fetches series observations from the St. Louis Fed FRED API.
// An internal limiter smooths requests below the published per-minute budget
// so bursts from concurrent workers do not trip the provider's throttling.
type FREDAdapter struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// FREDOption customizes a FREDAdapter.
type FREDOption func(*FREDAdapter)

// WithFREDBaseURL overrides the API endpoint, used by tests.
func WithFREDBaseURL(u string) FREDOption {
	return func(a *FREDAdapter) { a.baseURL = u }
}

// WithFREDHTTPClient overrides the HTTP client.
func WithFREDHTTPClient(c *http.Client) FREDOption {
	return func(a *FREDAdapter) { a.client = c }
}

// NewFREDAdapter constructs the adapter. requestsPerMinute bounds the smoothed
// request rate.
func NewFREDAdapter(apiKey string, requestsPerMinute int, logger *zap.Logger, opts ...FREDOption) *FREDAdapter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	a := &FREDAdapter{
		baseURL: fredBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type fredObservation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

type fredObservationsResponse struct {
	Count        int               `json:"count"`
	Observations []fredObservation `json:"observations"`
}

// Fetch retrieves the most recent observations for seriesID.
func (a *FREDAdapter) Fetch(ctx context.Context, seriesID string) (Outcome, error) {
	if a.apiKey == "" {
		return Outcome{}, NewError(KindAuthentication, "fred api key is not configured")
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return Outcome{}, NewError(KindTimeout, "rate wait interrupted: %v", err)
	}

	q := url.Values{}
	q.Set("series_id", seriesID)
	q.Set("api_key", a.apiKey)
	q.Set("file_type", "json")
	q.Set("sort_order", "desc")
	q.Set("limit", "100")
	endpoint := fmt.Sprintf("%s/series/observations?%s", a.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Outcome{}, NewError(KindUnknown, "build request: %v", err)
	}

	started := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Outcome{}, NewError(KindTimeout, "fred request timed out for %s", seriesID)
		}
		return Outcome{}, NewError(KindNetwork, "fred request failed: %v", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode, "fred", seriesID); err != nil {
		io.Copy(io.Discard, resp.Body)
		return Outcome{}, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Outcome{}, NewError(KindNetwork, "read fred response: %v", err)
	}

	var parsed fredObservationsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Outcome{}, NewError(KindDataFormat, "decode fred response for %s: %v", seriesID, err)
	}

	out := Outcome{
		RecordsFetched: len(parsed.Observations),
		DataSizeBytes:  len(body),
		ResponseTime:   time.Since(started),
	}
	for _, obs := range parsed.Observations {
		// FRED reports missing values as ".", skip them when dating the data.
		if obs.Value == "." {
			continue
		}
		d, err := time.Parse(fredDateLayout, obs.Date)
		if err != nil {
			continue
		}
		if out.LatestDataDate == nil || d.After(*out.LatestDataDate) {
			latest := d
			out.LatestDataDate = &latest
		}
	}

	a.logger.Debug("fred fetch complete",
		zap.String("series_id", seriesID),
		zap.Int("records", out.RecordsFetched),
		zap.Duration("response_time", out.ResponseTime),
	)
	return out, nil
}

// classifyStatus maps an HTTP status to a FetchError, or nil for 2xx.
func classifyStatus(status int, provider, seriesID string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(KindAuthentication, "%s rejected credentials for %s (status %d)", provider, seriesID, status)
	case status == http.StatusNotFound:
		return NewError(KindNotFound, "%s has no series %s", provider, seriesID)
	case status == http.StatusTooManyRequests:
		return NewError(KindRateLimit, "%s throttled request for %s", provider, seriesID)
	case status >= 500:
		return NewError(KindServerError, "%s returned status %d for %s", provider, status, seriesID)
	default:
		return NewError(KindUnknown, "%s returned unexpected status %d for %s", provider, status, seriesID)
	}
}
