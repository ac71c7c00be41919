// Package postgres provides the Postgres-backed ranking store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/movierank/internal/ranking"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// importLockKey serializes imports through pg_advisory_xact_lock.
const importLockKey int64 = 0x6d6f7669

// Tables names the ranking tables. Empty fields fall back to the defaults.
type Tables struct {
	Countries   string
	Genres      string
	Actors      string
	Movies      string
	MovieGenres string
	MovieActors string
	Rankings    string
}

// DefaultTables returns the table names created by Migrate when none are configured.
func DefaultTables() Tables {
	return Tables{
		Countries:   "countries",
		Genres:      "genres",
		Actors:      "actors",
		Movies:      "movies",
		MovieGenres: "movie_genres",
		MovieActors: "movie_actors",
		Rankings:    "rankings",
	}
}

func (t Tables) withDefaults() Tables {
	def := DefaultTables()
	fill := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	fill(&t.Countries, def.Countries)
	fill(&t.Genres, def.Genres)
	fill(&t.Actors, def.Actors)
	fill(&t.Movies, def.Movies)
	fill(&t.MovieGenres, def.MovieGenres)
	fill(&t.MovieActors, def.MovieActors)
	fill(&t.Rankings, def.Rankings)
	return t
}

// Validate rejects names that are not plain SQL identifiers.
func (t Tables) Validate() error {
	for _, name := range []string{t.Countries, t.Genres, t.Actors, t.Movies, t.MovieGenres, t.MovieActors, t.Rankings} {
		if !validTableName.MatchString(name) {
			return fmt.Errorf("invalid table name %q", name)
		}
	}
	return nil
}

// Config controls the Postgres connection pool and table names.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	Tables          Tables
}

// pool is the subset of *pgxpool.Pool the store needs; pgxmock satisfies it in tests.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// querier is implemented by both the pool and an open transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RankingStore implements ranking.Store on Postgres.
type RankingStore struct {
	pool   pool
	tables Tables
	q      queries
}

var _ ranking.Store = (*RankingStore)(nil)

// NewRankingStore connects a pool using cfg.
func NewRankingStore(ctx context.Context, cfg Config) (*RankingStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	tables := cfg.Tables.withDefaults()
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RankingStore{pool: p, tables: tables, q: buildQueries(tables)}, nil
}

// NewRankingStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRankingStoreWithPool(p pool, tables Tables) (*RankingStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	tables = tables.withDefaults()
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	return &RankingStore{pool: p, tables: tables, q: buildQueries(tables)}, nil
}

// Close releases the underlying pool resources.
func (s *RankingStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks connectivity.
func (s *RankingStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Begin opens a transaction and takes the import advisory lock.
func (s *RankingStore) Begin(ctx context.Context) (ranking.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.Exec(ctx, s.q.advisoryLock, importLockKey); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("acquire import lock: %w", err)
	}
	return &rankingTx{tx: tx, q: &s.q}, nil
}

// MoviesByCountry returns the lowest ranks for a country matched case-insensitively.
func (s *RankingStore) MoviesByCountry(ctx context.Context, country string, limit int) ([]ranking.CountryMovie, error) {
	var countryID int64
	if err := s.pool.QueryRow(ctx, s.q.countryByName, country).Scan(&countryID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ranking.ErrCountryNotFound
		}
		return nil, fmt.Errorf("lookup country: %w", err)
	}

	rows, err := s.pool.Query(ctx, s.q.countryMovies, countryID, limit)
	if err != nil {
		return nil, fmt.Errorf("query rankings: %w", err)
	}
	var (
		movies []ranking.CountryMovie
		ids    []int64
	)
	for rows.Next() {
		var (
			m     ranking.CountryMovie
			score string
		)
		if err := rows.Scan(&m.Rank, &m.MovieID, &m.Title, &m.ReleaseYear, &score, &m.Summary, &m.Image); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		if m.Score, err = ranking.ParseScore(score); err != nil {
			rows.Close()
			return nil, fmt.Errorf("movie %d: %w", m.MovieID, err)
		}
		movies = append(movies, m)
		ids = append(ids, m.MovieID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rankings: %w", err)
	}
	if len(movies) == 0 {
		return nil, ranking.ErrNoRankings
	}

	genres, err := s.linkedNames(ctx, s.pool, ranking.KindGenre, ids)
	if err != nil {
		return nil, err
	}
	actors, err := s.linkedNames(ctx, s.pool, ranking.KindActor, ids)
	if err != nil {
		return nil, err
	}
	for i := range movies {
		movies[i].Genres = genres[movies[i].MovieID]
		movies[i].Actors = actors[movies[i].MovieID]
	}
	return movies, nil
}

// Movie returns one movie with its genres and actors.
func (s *RankingStore) Movie(ctx context.Context, id int64) (ranking.MovieDetail, error) {
	var (
		m     ranking.MovieDetail
		score string
	)
	err := s.pool.QueryRow(ctx, s.q.movieByID, id).
		Scan(&m.ID, &m.Title, &m.ReleaseYear, &score, &m.Summary, &m.ImageURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ranking.MovieDetail{}, ranking.ErrMovieNotFound
		}
		return ranking.MovieDetail{}, fmt.Errorf("lookup movie: %w", err)
	}
	if m.Score, err = ranking.ParseScore(score); err != nil {
		return ranking.MovieDetail{}, fmt.Errorf("movie %d: %w", id, err)
	}
	genres, err := s.linkedNames(ctx, s.pool, ranking.KindGenre, []int64{id})
	if err != nil {
		return ranking.MovieDetail{}, err
	}
	actors, err := s.linkedNames(ctx, s.pool, ranking.KindActor, []int64{id})
	if err != nil {
		return ranking.MovieDetail{}, err
	}
	m.Genres = genres[id]
	m.Actors = actors[id]
	return m, nil
}

func (s *RankingStore) linkedNames(ctx context.Context, q querier, kind ranking.EntityKind, movieIDs []int64) (map[int64][]string, error) {
	sql, ok := s.q.linkedNames[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	rows, err := q.Query(ctx, sql, movieIDs)
	if err != nil {
		return nil, fmt.Errorf("query %s names: %w", kind, err)
	}
	defer rows.Close()
	out := make(map[int64][]string, len(movieIDs))
	for rows.Next() {
		var (
			movieID int64
			name    string
		)
		if err := rows.Scan(&movieID, &name); err != nil {
			return nil, fmt.Errorf("scan %s name: %w", kind, err)
		}
		out[movieID] = append(out[movieID], name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s names: %w", kind, err)
	}
	return out, nil
}

// classify marks integrity violations (SQLSTATE class 23) as ranking.ErrConstraintViolation.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return fmt.Errorf("%s: %w: %w", op, ranking.ErrConstraintViolation, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
