// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/movierank/internal/clock/system"
	"github.com/JakeFAU/movierank/internal/config"
	"github.com/JakeFAU/movierank/internal/id/uuid"
	"github.com/JakeFAU/movierank/internal/importer"
	"github.com/JakeFAU/movierank/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/movierank/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/movierank/internal/publisher/pubsub"
	"github.com/JakeFAU/movierank/internal/ranking"
	"github.com/JakeFAU/movierank/internal/report"
	"github.com/JakeFAU/movierank/internal/scraper"
	"github.com/JakeFAU/movierank/internal/storage/gcs"
	"github.com/JakeFAU/movierank/internal/storage/local"
	"github.com/JakeFAU/movierank/internal/storage/memory"
	"github.com/JakeFAU/movierank/internal/storage/postgres"
	"github.com/JakeFAU/movierank/internal/telemetry"
)

// ErrCrawlInProgress is returned when a crawl is requested while another one runs.
var ErrCrawlInProgress = errors.New("crawl already in progress")

// CrawlResult summarizes one scrape-and-import run.
type CrawlResult struct {
	Countries   int            `json:"countries"`
	Records     int            `json:"records"`
	SnapshotURI string         `json:"snapshot_uri,omitempty"`
	Import      ranking.Report `json:"import"`
}

// App holds all the shared, long-lived services for the application.
// It is initialized once at startup and passed to the commands and the HTTP server.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	store    ranking.Store
	blobs    ranking.BlobStore
	importer *importer.Importer
	reports  *report.Generator
	scraper  *scraper.Scraper
	closers  []func() error

	crawlMu sync.Mutex
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the loaded configuration.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetStore exposes the ranking store.
func (a *App) GetStore() ranking.Store {
	return a.store
}

// GetBlobs exposes the blob store used for snapshots and reports.
func (a *App) GetBlobs() ranking.BlobStore {
	return a.blobs
}

// GetImporter returns the batch importer.
func (a *App) GetImporter() *importer.Importer {
	return a.importer
}

// GetReports returns the report generator.
func (a *App) GetReports() *report.Generator {
	return a.reports
}

// NewApp creates and initializes the application services from cfg. Postgres is
// used when db.dsn is set, GCS when storage.gcs_bucket is set and Pub/Sub when
// pubsub.topic_name is set; otherwise local or in-memory fallbacks are used.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	logger.Info("Initializing application services...")

	tp, err := telemetry.InitTracerProvider(ctx, "movierank")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.closers = append(a.closers, func() error {
		return tp.Shutdown(context.Background())
	})

	if err := a.initStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initBlobs(ctx); err != nil {
		a.Close()
		return nil, err
	}
	publisher, err := a.initPublisher(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	clock := system.New()
	a.importer = importer.New(
		a.store,
		publisher,
		clock,
		uuid.New(),
		importer.Config{TopN: cfg.Importer.TopN, Topic: cfg.PubSub.TopicName},
		logger.Named("importer"),
	)
	a.reports = report.New(a.store, a.blobs, report.Config{
		TopK:      cfg.Report.TopK,
		PieTopK:   cfg.Report.PieTopK,
		MaxWords:  cfg.Report.MaxWords,
		Limit:     cfg.Report.Limit,
		Stopwords: cfg.Report.Stopwords,
		Prefix:    cfg.Storage.ReportPrefix,
	}, logger.Named("report"))
	a.scraper = scraper.New(a.newSource(), a.blobs, clock, scraper.Config{
		BaseURL:        cfg.Scraper.BaseURL,
		TopN:           cfg.Scraper.TopN,
		SnapshotPrefix: cfg.Storage.SnapshotPrefix,
		Limiter: ratelimit.New(ratelimit.Config{
			RequestsPerSecond: cfg.Scraper.RequestsPerSecond,
			Burst:             cfg.Scraper.Burst,
		}),
	}, logger.Named("scraper"))

	logger.Info("Application services initialized successfully.")
	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Info("Using in-memory ranking store. Rankings are lost on exit.")
		a.store = memory.NewRankingStore()
		return nil
	}
	a.logger.Info("Connecting to PostgreSQL...")
	store, err := postgres.NewRankingStore(ctx, postgres.Config{
		DSN:             a.cfg.DB.DSN,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.MaxConnLifetime(),
		Tables:          Tables(a.cfg.DB.Tables),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

func (a *App) initBlobs(ctx context.Context) error {
	switch {
	case a.cfg.Storage.GCSBucket != "":
		a.logger.Info("Using GCS blob store", zap.String("bucket", a.cfg.Storage.GCSBucket))
		blobs, err := gcs.Dial(ctx, gcs.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.blobs = blobs
		a.closers = append(a.closers, blobs.Close)
	case a.cfg.Storage.LocalDir != "":
		a.logger.Info("Using local blob store", zap.String("dir", a.cfg.Storage.LocalDir))
		blobs, err := local.New(local.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.blobs = blobs
	default:
		a.logger.Info("Using in-memory blob store. Snapshots and reports are discarded on exit.")
		a.blobs = memory.NewBlobStore()
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) (ranking.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" {
		return memorypublisher.New(), nil
	}
	a.logger.Info("Connecting to GCP Pub/Sub", zap.String("topic", a.cfg.PubSub.TopicName))
	publisher, err := pubsubpublisher.Dial(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize publisher: %w", err)
	}
	a.closers = append(a.closers, publisher.Close)
	return publisher, nil
}

func (a *App) newSource() scraper.Source {
	sc := a.cfg.Scraper
	if sc.Mode == scraper.ModeStatic {
		return scraper.NewStaticSource(scraper.StaticConfig{
			UserAgent: sc.UserAgent,
			Timeout:   a.cfg.NavTimeout(),
			Selectors: sc.Selectors,
		})
	}
	src := scraper.NewHeadlessSource(scraper.HeadlessConfig{
		UserAgent:         sc.UserAgent,
		NavigationTimeout: a.cfg.NavTimeout(),
		ClickPause:        a.cfg.ClickPause(),
		Selectors:         sc.Selectors,
	})
	a.closers = append(a.closers, func() error {
		src.Close()
		return nil
	})
	return src
}

// Tables converts configured table names to the Postgres store's form.
func Tables(t config.TablesConfig) postgres.Tables {
	return postgres.Tables{
		Countries:   t.Countries,
		Genres:      t.Genres,
		Actors:      t.Actors,
		Movies:      t.Movies,
		MovieGenres: t.MovieGenres,
		MovieActors: t.MovieActors,
		Rankings:    t.Rankings,
	}
}

// Countries returns the configured countries to scrape, optionally narrowed to codes.
func (a *App) Countries(codes []string) ([]scraper.Country, error) {
	countries, err := scraper.LoadCountries(a.cfg.Scraper.CountryCodesFile)
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		codes = a.cfg.Scraper.Countries
	}
	return scraper.FilterCountries(countries, codes), nil
}

// Crawl scrapes the configured countries (or codes, when given), saves the
// snapshot and imports it. Only one crawl runs at a time.
func (a *App) Crawl(ctx context.Context, codes []string) (CrawlResult, error) {
	if !a.crawlMu.TryLock() {
		return CrawlResult{}, ErrCrawlInProgress
	}
	defer a.crawlMu.Unlock()

	countries, err := a.Countries(codes)
	if err != nil {
		return CrawlResult{}, err
	}
	if len(countries) == 0 {
		return CrawlResult{}, fmt.Errorf("no countries selected")
	}
	batch, err := a.scraper.Scrape(ctx, countries)
	if err != nil {
		return CrawlResult{}, err
	}
	result := CrawlResult{Countries: len(countries), Records: len(batch.Movies)}
	if len(batch.Movies) == 0 {
		a.logger.Warn("Crawl produced no records")
		return result, nil
	}

	if uri, err := a.scraper.SaveSnapshot(ctx, batch); err != nil {
		a.logger.Warn("Snapshot not saved", zap.Error(err))
	} else {
		result.SnapshotURI = uri
	}

	result.Import, err = a.importer.Import(ctx, batch.Movies)
	if err != nil {
		return result, err
	}
	return result, nil
}

// Migrate applies the Postgres schema. It is a no-op for the in-memory store.
func (a *App) Migrate(ctx context.Context) error {
	store, ok := a.store.(*postgres.RankingStore)
	if !ok {
		a.logger.Info("In-memory store needs no migration")
		return nil
	}
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.logger.Info("Schema applied")
	return nil
}

// Close gracefully shuts down all services in the App container.
func (a *App) Close() {
	a.logger.Info("Shutting down application services...")
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	// Sync can fail on stdout/stderr; nothing useful can be done about it here.
	_ = a.logger.Sync()
}
