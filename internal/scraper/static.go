package scraper

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/movierank/internal/metrics"
)

// StaticConfig controls the colly source.
type StaticConfig struct {
	UserAgent string
	Timeout   time.Duration
	Selectors Selectors
}

// StaticSource reads ranking items from the server-rendered list without a
// browser. Modal-only fields (actors, full summary) may be missing.
type StaticSource struct {
	cfg           StaticConfig
	baseCollector *colly.Collector
}

// NewStaticSource builds a StaticSource.
func NewStaticSource(cfg StaticConfig) *StaticSource {
	cfg.Selectors = cfg.Selectors.withDefaults()
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &StaticSource{cfg: cfg, baseCollector: c}
}

// Items implements Source.
func (s *StaticSource) Items(ctx context.Context, pageURL string, limit int) ([]Item, error) {
	var (
		items    []Item
		fetchErr error
	)
	collector := s.baseCollector.Clone()
	collector.AllowURLRevisit = true
	if s.cfg.UserAgent != "" {
		collector.UserAgent = s.cfg.UserAgent
	}
	collector.SetRequestTimeout(s.cfg.Timeout)

	collector.OnHTML(s.cfg.Selectors.Item, func(e *colly.HTMLElement) {
		if len(items) >= limit {
			return
		}
		rank := len(items) + 1
		movie, err := extractMovie(e.DOM, s.cfg.Selectors)
		if err != nil {
			err = fmt.Errorf("item %d: %w", rank, err)
		}
		items = append(items, Item{Rank: rank, Movie: movie, Err: err})
	})
	collector.OnResponse(func(r *colly.Response) {
		metrics.ObserveFetch(pageURL, strconv.Itoa(r.StatusCode))
	})
	collector.OnError(func(_ *colly.Response, err error) {
		metrics.ObserveFetch(pageURL, "error")
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(pageURL)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("colly visit failed: %w", err)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("colly response failed: %w", fetchErr)
		}
		return items, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
