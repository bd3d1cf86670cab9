package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"stockradar/internal/domain"
)

const (
	defaultEarningsBuffer = 5
	earningsMaxAge        = 24 * time.Hour
	scrapeTimeout         = 15 * time.Second

	scrapeUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// EarningsCollector scrapes upcoming earnings report dates and answers the
// earnings-window safety check. A ticker is unsafe from one day after its
// report back through bufferDays before it; unknown tickers are safe.
type EarningsCollector struct {
	store      domain.EarningsStore
	httpClient *http.Client
	baseURL    string
	bufferDays int
	logger     *slog.Logger
}

// NewEarningsCollector creates a collector. baseURL is the earnings
// calendar page; the ticker is appended as the symbol query parameter. A
// non-positive bufferDays uses the default of 5.
func NewEarningsCollector(store domain.EarningsStore, baseURL string, bufferDays int, logger *slog.Logger) *EarningsCollector {
	if bufferDays <= 0 {
		bufferDays = defaultEarningsBuffer
	}
	return &EarningsCollector{
		store:      store,
		httpClient: &http.Client{Timeout: scrapeTimeout},
		baseURL:    baseURL,
		bufferDays: bufferDays,
		logger:     logger.With(slog.String("component", "earnings")),
	}
}

// Safe reports whether trading the ticker is clear of its earnings window.
// Stored dates are used while fresh; otherwise the calendar is re-scraped.
// A ticker whose date cannot be determined does not block trading.
func (c *EarningsCollector) Safe(ctx context.Context, ticker string, asOf time.Time) (bool, error) {
	e, err := c.store.Get(ctx, ticker)
	have := err == nil
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("earnings: get %s: %w", ticker, err)
	}

	if !have || time.Since(e.FetchedAt) >= earningsMaxAge {
		fetched, ferr := c.Refresh(ctx, ticker)
		if ferr == nil {
			e = fetched
			have = true
		} else if !have {
			c.logger.DebugContext(ctx, "earnings date unknown, treating as safe",
				slog.String("ticker", ticker),
				slog.String("error", ferr.Error()),
			)
			return true, nil
		}
	}

	if e.ReportDate.IsZero() {
		return true, nil
	}
	days := e.DaysUntil(asOf)
	return days > c.bufferDays || days < -1, nil
}

// Refresh scrapes the calendar page for the ticker's next report date and
// stores it.
func (c *EarningsCollector) Refresh(ctx context.Context, ticker string) (domain.EarningsDate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"?symbol="+url.QueryEscape(ticker), nil)
	if err != nil {
		return domain.EarningsDate{}, fmt.Errorf("earnings: request %s: %w", ticker, err)
	}
	req.Header.Set("User-Agent", scrapeUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.EarningsDate{}, fmt.Errorf("earnings: fetch %s: %w", ticker, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.EarningsDate{}, fmt.Errorf("earnings: fetch %s: status %d", ticker, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return domain.EarningsDate{}, fmt.Errorf("earnings: parse %s: %w", ticker, err)
	}

	report, ok := nextReportDate(doc, time.Now().UTC())
	if !ok {
		return domain.EarningsDate{}, fmt.Errorf("earnings: no upcoming report date for %s", ticker)
	}

	e := domain.EarningsDate{
		Ticker:     ticker,
		ReportDate: report,
		FetchedAt:  time.Now().UTC(),
	}
	if err := c.store.Upsert(ctx, e); err != nil {
		return domain.EarningsDate{}, fmt.Errorf("earnings: store %s: %w", ticker, err)
	}

	c.logger.InfoContext(ctx, "earnings date refreshed",
		slog.String("ticker", ticker),
		slog.String("report_date", report.Format(time.DateOnly)),
	)
	return e, nil
}

// RefreshAll scrapes every ticker in turn. Failures are logged and skipped
// so one bad page does not starve the rest.
func (c *EarningsCollector) RefreshAll(ctx context.Context, tickers []string) error {
	for _, ticker := range tickers {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := c.Refresh(ctx, ticker); err != nil {
			c.logger.WarnContext(ctx, "earnings refresh failed",
				slog.String("ticker", ticker),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// nextReportDate pulls every date the calendar page carries and returns the
// earliest one from yesterday on. Pages mark dates either with
// time[datetime] attributes or as text in the earnings date cell.
func nextReportDate(doc *goquery.Document, now time.Time) (time.Time, bool) {
	var dates []time.Time

	doc.Find("time[datetime]").Each(func(_ int, s *goquery.Selection) {
		raw, ok := s.Attr("datetime")
		if !ok {
			return
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			dates = append(dates, domain.TradingDate(t))
			return
		}
		if t, err := time.Parse(time.DateOnly, raw); err == nil {
			dates = append(dates, t)
		}
	})

	doc.Find("td[aria-label='Earnings Date']").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		for _, layout := range []string{"Jan 2, 2006", "Jan 02, 2006", time.DateOnly} {
			if t, err := time.Parse(layout, text); err == nil {
				dates = append(dates, t)
				return
			}
		}
	})

	cutoff := domain.TradingDate(now).AddDate(0, 0, -1)
	var best time.Time
	for _, d := range dates {
		if d.Before(cutoff) {
			continue
		}
		if best.IsZero() || d.Before(best) {
			best = d
		}
	}
	return best, !best.IsZero()
}
