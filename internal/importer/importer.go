// Package importer implements the batch ranking importer: it resolves genres,
// actors and countries, upserts movies by title, reconciles join rows, and writes
// rankings, all inside one all-or-nothing transaction.
package importer

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/movierank/internal/clock/system"
	"github.com/JakeFAU/movierank/internal/metrics"
	"github.com/JakeFAU/movierank/internal/ranking"
)

var tracer = otel.Tracer("github.com/JakeFAU/movierank/internal/importer")

// DefaultTopN is how many ranks MoviesByCountry returns when Config.TopN is unset.
const DefaultTopN = 5

// Config controls importer behavior.
type Config struct {
	// TopN bounds MoviesByCountry results.
	TopN int
	// Topic receives an ImportEvent after each committed batch. Empty disables it.
	Topic string
}

// ImportEvent is published after a batch commits.
type ImportEvent struct {
	RunID              string    `json:"run_id"`
	Records            int       `json:"records"`
	Created            int       `json:"created"`
	DuplicateUnchanged int       `json:"duplicate_unchanged"`
	DuplicateUpdated   int       `json:"duplicate_updated"`
	CompletedAt        time.Time `json:"completed_at"`
}

// Importer coordinates batch imports and per-country queries over a ranking.Store.
type Importer struct {
	store     ranking.Store
	publisher ranking.Publisher
	clock     ranking.Clock
	idGen     ranking.IDGenerator
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Importer. publisher may be nil; a nil clock uses system time.
func New(
	store ranking.Store,
	publisher ranking.Publisher,
	clock ranking.Clock,
	idGen ranking.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Importer {
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.New()
	}
	return &Importer{
		store:     store,
		publisher: publisher,
		clock:     clock,
		idGen:     idGen,
		cfg:       cfg,
		logger:    logger,
	}
}

// Import writes records in one transaction. On any failure the transaction is
// rolled back, the returned Report is empty, and the error is an *ranking.ImportError.
func (im *Importer) Import(ctx context.Context, records []ranking.Record) (ranking.Report, error) {
	ctx, span := tracer.Start(ctx, "importer.Import")
	defer span.End()
	span.SetAttributes(attribute.Int("movierank.records", len(records)))

	start := time.Now()
	runID, err := im.idGen.NewID()
	if err != nil {
		return ranking.Report{}, ranking.StorageFailure(ranking.NoIndex, fmt.Errorf("generate run id: %w", err))
	}
	logger := im.logger.With(zap.String("run_id", runID), zap.Int("records", len(records)))

	report, err := im.importBatch(ctx, records, logger)
	if err != nil {
		metrics.ObserveImport("failed", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "import rolled back")
		logger.Error("Import rolled back", zap.Error(err))
		return ranking.Report{}, err
	}
	metrics.ObserveImport("committed", time.Since(start))
	metrics.ObserveMovieOutcome(string(ranking.OutcomeCreated), len(report.Created))
	metrics.ObserveMovieOutcome(string(ranking.OutcomeDuplicateUnchanged), len(report.DuplicateUnchanged))
	metrics.ObserveMovieOutcome(string(ranking.OutcomeDuplicateUpdated), len(report.DuplicateUpdated))
	logger.Info("Import committed",
		zap.Int("created", len(report.Created)),
		zap.Int("duplicate_unchanged", len(report.DuplicateUnchanged)),
		zap.Int("duplicate_updated", len(report.DuplicateUpdated)),
		zap.Duration("elapsed", time.Since(start)),
	)
	im.notify(ctx, runID, len(records), report, logger)
	return report, nil
}

func (im *Importer) importBatch(ctx context.Context, records []ranking.Record, logger *zap.Logger) (ranking.Report, error) {
	normalized, err := ranking.NormalizeAll(records)
	if err != nil {
		return ranking.Report{}, err
	}

	tx, err := im.store.Begin(ctx)
	if err != nil {
		return ranking.Report{}, ranking.StorageFailure(ranking.NoIndex, fmt.Errorf("begin transaction: %w", err))
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			logger.Warn("Rollback failed", zap.Error(rbErr))
		}
	}()

	var (
		report     = ranking.NewReport()
		names      = newResolver(tx)
		relations  = newReconciler(tx)
		countryIDs = map[string]int64{}
	)
	for i, rec := range normalized {
		if err := ctx.Err(); err != nil {
			return ranking.Report{}, ranking.StorageFailure(i, fmt.Errorf("import canceled: %w", err))
		}
		genreIDs, err := names.resolve(ctx, ranking.KindGenre, rec.Genres)
		if err != nil {
			return ranking.Report{}, ranking.StorageFailure(i, err)
		}
		actorIDs, err := names.resolve(ctx, ranking.KindActor, rec.Actors)
		if err != nil {
			return ranking.Report{}, ranking.StorageFailure(i, err)
		}
		ref, outcome, err := upsertMovie(ctx, tx, rec.Movie)
		if err != nil {
			return ranking.Report{}, ranking.StorageFailure(i, err)
		}
		report.Add(ref, outcome)

		if err := relations.link(ctx, ranking.KindGenre, ref.ID, genreIDs); err != nil {
			return ranking.Report{}, ranking.StorageFailure(i, err)
		}
		if err := relations.link(ctx, ranking.KindActor, ref.ID, actorIDs); err != nil {
			return ranking.Report{}, ranking.StorageFailure(i, err)
		}

		countryID, ok := countryIDs[rec.Country]
		if !ok {
			countryID, err = tx.ResolveCountry(ctx, rec.Country, rec.CountryCode)
			if err != nil {
				return ranking.Report{}, ranking.StorageFailure(i, fmt.Errorf("resolve country %q: %w", rec.Country, err))
			}
			countryIDs[rec.Country] = countryID
		}
		if err := relations.rank(ctx, countryID, ref.ID, rec.Rank); err != nil {
			return ranking.Report{}, ranking.StorageFailure(i, err)
		}
	}

	written, err := relations.flush(ctx)
	if err != nil {
		return ranking.Report{}, ranking.StorageFailure(ranking.NoIndex, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return ranking.Report{}, ranking.StorageFailure(ranking.NoIndex, fmt.Errorf("commit: %w", err))
	}
	committed = true
	logger.Debug("Batch rows written",
		zap.Int("genre_links", written.genreLinks),
		zap.Int("actor_links", written.actorLinks),
		zap.Int("rankings", written.rankings),
	)
	return report, nil
}

func (im *Importer) notify(ctx context.Context, runID string, records int, report ranking.Report, logger *zap.Logger) {
	if im.publisher == nil || im.cfg.Topic == "" {
		return
	}
	event := ImportEvent{
		RunID:              runID,
		Records:            records,
		Created:            len(report.Created),
		DuplicateUnchanged: len(report.DuplicateUnchanged),
		DuplicateUpdated:   len(report.DuplicateUpdated),
		CompletedAt:        im.clock.Now(),
	}
	msgID, err := im.publisher.Publish(ctx, im.cfg.Topic, event)
	if err != nil {
		logger.Warn("Import notification failed", zap.Error(err))
		return
	}
	logger.Debug("Import notification published", zap.String("message_id", msgID))
}
