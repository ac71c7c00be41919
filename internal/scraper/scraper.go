// Package scraper collects per-country movie rankings from IMDb search pages and
// turns them into ranking records ready for import.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/movierank/internal/metrics"
	"github.com/JakeFAU/movierank/internal/ranking"
)

// Source modes.
const (
	ModeHeadless = "headless"
	ModeStatic   = "static"
)

// DefaultBaseURL is the country search page; %s is replaced by the country code.
const DefaultBaseURL = "https://www.imdb.com/search/title/?countries=%s"

// Item is one ranked entry read from a country page. Err is set when the entry
// could not be read; the other fields are then unreliable.
type Item struct {
	Rank  int
	Movie ranking.MovieInput
	Err   error
}

// Source reads up to limit ranked items from a country page. A returned error
// means the page itself could not be loaded.
type Source interface {
	Items(ctx context.Context, pageURL string, limit int) ([]Item, error)
}

// Waiter delays page loads. *ratelimit.Limiter implements it.
type Waiter interface {
	Wait(ctx context.Context, pageURL string) error
}

// Config controls a Scraper. Limiter may be nil.
type Config struct {
	BaseURL        string
	TopN           int
	SnapshotPrefix string
	Limiter        Waiter
}

// Scraper drives a Source across countries.
type Scraper struct {
	source Source
	blobs  ranking.BlobStore
	clock  ranking.Clock
	cfg    Config
	logger *zap.Logger
}

// New constructs a Scraper. blobs may be nil when snapshots are not saved.
func New(source Source, blobs ranking.BlobStore, clock ranking.Clock, cfg Config, logger *zap.Logger) *Scraper {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{source: source, blobs: blobs, clock: clock, cfg: cfg, logger: logger}
}

// CountryURL returns the search page for a country code.
func (s *Scraper) CountryURL(code string) string {
	return fmt.Sprintf(s.cfg.BaseURL, code)
}

// ScrapeCountry returns the readable ranked records for one country. Items that
// fail are logged and skipped.
func (s *Scraper) ScrapeCountry(ctx context.Context, country Country) ([]ranking.Record, error) {
	logger := s.logger.With(zap.String("country", country.Name), zap.String("country_code", country.Code))
	pageURL := s.CountryURL(country.Code)
	if s.cfg.Limiter != nil {
		if err := s.cfg.Limiter.Wait(ctx, pageURL); err != nil {
			return nil, fmt.Errorf("scrape %s: %w", country.Code, err)
		}
	}
	items, err := s.source.Items(ctx, pageURL, s.cfg.TopN)
	if err != nil {
		metrics.ObserveScrape(country.Code, "page_error")
		return nil, fmt.Errorf("scrape %s: %w", country.Code, err)
	}
	records := make([]ranking.Record, 0, len(items))
	for _, item := range items {
		if item.Err != nil {
			metrics.ObserveScrape(country.Code, "error")
			logger.Warn("Skipping item", zap.Int("rank", item.Rank), zap.Error(item.Err))
			continue
		}
		metrics.ObserveScrape(country.Code, "ok")
		rank := item.Rank
		records = append(records, ranking.Record{
			Country:     country.Name,
			CountryCode: country.Code,
			Movie:       item.Movie,
			Rank:        &rank,
		})
	}
	logger.Info("Scraped country", zap.Int("items", len(items)), zap.Int("records", len(records)))
	return records, nil
}

// Scrape scrapes every country in order. A country whose page fails is logged
// and skipped; only context cancellation aborts the run.
func (s *Scraper) Scrape(ctx context.Context, countries []Country) (ranking.Batch, error) {
	batch := ranking.Batch{Movies: []ranking.Record{}}
	for _, country := range countries {
		if err := ctx.Err(); err != nil {
			return batch, fmt.Errorf("scrape canceled: %w", err)
		}
		records, err := s.ScrapeCountry(ctx, country)
		if err != nil {
			if ctx.Err() != nil {
				return batch, fmt.Errorf("scrape canceled: %w", ctx.Err())
			}
			s.logger.Error("Country scrape failed", zap.String("country_code", country.Code), zap.Error(err))
			continue
		}
		batch.Movies = append(batch.Movies, records...)
	}
	return batch, nil
}

// SnapshotPath returns where today's snapshot is written.
func (s *Scraper) SnapshotPath() string {
	name := fmt.Sprintf("movies_data_%s.json", s.clock.Now().Format("20060102"))
	prefix := strings.Trim(s.cfg.SnapshotPrefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// SaveSnapshot writes batch as indented JSON to the blob store and returns its URI.
func (s *Scraper) SaveSnapshot(ctx context.Context, batch ranking.Batch) (string, error) {
	if s.blobs == nil {
		return "", fmt.Errorf("no blob store configured")
	}
	data, err := json.MarshalIndent(batch, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	uri, err := s.blobs.PutObject(ctx, s.SnapshotPath(), "application/json", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	metrics.ObserveArtifact("snapshot")
	s.logger.Info("Snapshot saved", zap.String("uri", uri), zap.Int("records", len(batch.Movies)))
	return uri, nil
}
