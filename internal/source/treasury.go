package source

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

const treasuryRatesURL = "https://home.treasury.gov/resource-center/data-chart-center/interest-rates/TextView"

// treasuryDateLayout matches the date column of the Treasury rates table.
const treasuryDateLayout = "01/02/2006"

// TreasuryAdapter scrapes daily yield-curve tables from the Treasury site.
// Treasury publishes no JSON API for the text view, so the adapter walks the
// HTML table with a collector instead.
type TreasuryAdapter struct {
	baseURL   string
	collector *colly.Collector
	logger    *zap.Logger
}

// TreasuryOption customizes a TreasuryAdapter.
type TreasuryOption func(*TreasuryAdapter)

// WithTreasuryBaseURL overrides the scrape target, used by tests.
func WithTreasuryBaseURL(u string) TreasuryOption {
	return func(a *TreasuryAdapter) { a.baseURL = u }
}

// NewTreasuryAdapter constructs the adapter. timeout bounds each page fetch.
func NewTreasuryAdapter(userAgent string, timeout time.Duration, logger *zap.Logger, opts ...TreasuryOption) *TreasuryAdapter {
	c := colly.NewCollector(colly.UserAgent(userAgent))
	c.AllowURLRevisit = true
	c.SetRequestTimeout(timeout)

	a := &TreasuryAdapter{
		baseURL:   treasuryRatesURL,
		collector: c,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fetch scrapes the rates table and reports row count and newest date.
func (a *TreasuryAdapter) Fetch(ctx context.Context, seriesID string) (Outcome, error) {
	collector := a.collector.Clone()

	var (
		mu        sync.Mutex
		rows      int
		bodyBytes int
		latest    *time.Time
		fetchErr  error
	)

	collector.OnResponse(func(r *colly.Response) {
		mu.Lock()
		bodyBytes = len(r.Body)
		mu.Unlock()
	})

	collector.OnHTML("table.usa-table tbody tr", func(e *colly.HTMLElement) {
		mu.Lock()
		defer mu.Unlock()
		rows++
		raw := strings.TrimSpace(e.ChildText("td:first-child"))
		if raw == "" {
			return
		}
		d, err := time.Parse(treasuryDateLayout, raw)
		if err != nil {
			return
		}
		if latest == nil || d.After(*latest) {
			latest = &d
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		defer mu.Unlock()
		if r != nil && r.StatusCode != 0 {
			fetchErr = classifyStatus(r.StatusCode, "treasury", seriesID)
			return
		}
		if ctx.Err() == context.DeadlineExceeded {
			fetchErr = NewError(KindTimeout, "treasury fetch timed out for %s", seriesID)
			return
		}
		fetchErr = NewError(KindNetwork, "treasury fetch failed: %v", err)
	})

	started := time.Now()
	visitErr := collector.Visit(a.baseURL)
	collector.Wait()

	if err := ctx.Err(); err != nil {
		return Outcome{}, NewError(KindTimeout, "treasury fetch interrupted for %s", seriesID)
	}

	mu.Lock()
	defer mu.Unlock()
	// OnError classified the failure; prefer that over Visit's raw error.
	if fetchErr != nil {
		return Outcome{}, fetchErr
	}
	if visitErr != nil {
		return Outcome{}, NewError(KindNetwork, "treasury visit failed: %v", visitErr)
	}
	if rows == 0 {
		return Outcome{}, NewError(KindDataFormat, "treasury page for %s had no rate rows", seriesID)
	}

	out := Outcome{
		RecordsFetched: rows,
		LatestDataDate: latest,
		DataSizeBytes:  bodyBytes,
		ResponseTime:   time.Since(started),
	}
	a.logger.Debug("treasury fetch complete",
		zap.String("series_id", seriesID),
		zap.Int("rows", rows),
		zap.Duration("response_time", out.ResponseTime),
	)
	return out, nil
}
