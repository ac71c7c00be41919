package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/movierank/internal/importer"
	"github.com/JakeFAU/movierank/internal/ranking"
)

type staticID struct{}

func (staticID) NewID() (string, error) { return "run-1", nil }

func strPtr(s string) *string { return &s }

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *RankingStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewRankingStoreWithPool(mock, Tables{})
	require.NoError(t, err)
	return mock, store
}

func TestNewRankingStoreWithPoolValidatesTables(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRankingStoreWithPool(mock, Tables{Movies: "movies; DROP TABLE x"})
	require.ErrorContains(t, err, "invalid table name")

	_, err = NewRankingStoreWithPool(nil, Tables{})
	require.Error(t, err)
}

func TestNewRankingStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewRankingStore(context.Background(), Config{})
	require.ErrorContains(t, err, "db.dsn is required")
}

func TestSchemaUsesConfiguredTables(t *testing.T) {
	t.Parallel()

	ddl, err := Schema(Tables{Movies: "films", Rankings: "charts"})
	require.NoError(t, err)
	require.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS films (")
	require.Contains(t, ddl, "REFERENCES films (id)")
	require.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS charts (")
	require.Contains(t, ddl, "UNIQUE (country_id, movie_id)")
	require.Contains(t, ddl, "NUMERIC(3,1)")
	require.NotContains(t, ddl, "{{")
}

func TestMigrateAppliesSchema(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS countries").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportSingleRecordThroughPostgres(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(importLockKey).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	mock.ExpectExec("INSERT INTO genres").
		WithArgs([]string{"Drama"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT id, name FROM genres").
		WithArgs([]string{"Drama"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(int64(3), "Drama"))
	mock.ExpectExec("INSERT INTO actors").
		WithArgs([]string{"Song Kang-ho"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT id, name FROM actors").
		WithArgs([]string{"Song Kang-ho"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "Song Kang-ho"))

	mock.ExpectQuery("FROM movies WHERE title").
		WithArgs("Parasite").
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "release_year", "score", "summary", "image_url"}))
	mock.ExpectQuery("INSERT INTO movies").
		WithArgs("Parasite", "2019", "8.5", (*string)(nil), (*string)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(10)))

	mock.ExpectQuery("SELECT genre_id FROM movie_genres").
		WithArgs(int64(10)).
		WillReturnRows(pgxmock.NewRows([]string{"genre_id"}))
	mock.ExpectQuery("SELECT actor_id FROM movie_actors").
		WithArgs(int64(10)).
		WillReturnRows(pgxmock.NewRows([]string{"actor_id"}))

	mock.ExpectQuery("INSERT INTO countries").
		WithArgs("KR", "").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(1), int64(10)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	mock.ExpectExec("INSERT INTO movie_genres").
		WithArgs([]int64{10}, []int64{3}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO movie_actors").
		WithArgs([]int64{10}, []int64{7}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO rankings").
		WithArgs([]int64{1}, []int64{10}, []int32{1}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	rank := 1
	im := importer.New(store, nil, nil, staticID{}, importer.Config{}, zap.NewNop())
	report, err := im.Import(ctx, []ranking.Record{{
		Country: "KR",
		Movie: ranking.MovieInput{
			Title:       "Parasite",
			ReleaseYear: "2019",
			Score:       "8.5",
			Genres:      []string{"Drama"},
			Actors:      []string{"Song Kang-ho"},
		},
		Rank: &rank,
	}})
	require.NoError(t, err)
	require.Equal(t, []ranking.MovieRef{{ID: 10, Title: "Parasite"}}, report.Created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMovieWritesOnlyChangedColumns(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(importLockKey).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`UPDATE movies SET score = \$1::numeric, summary = \$2 WHERE id = \$3`).
		WithArgs("8.0", strPtr("new"), int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectRollback()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	err = tx.UpdateMovie(ctx, 42, ranking.MoviePatch{
		Columns: []ranking.MovieColumn{ranking.ColumnScore, ranking.ColumnSummary},
		Values:  ranking.MovieFields{Title: "X", Score: 80, Summary: strPtr("new")},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMovieByTitleReadsStoredRow(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(importLockKey).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("FROM movies WHERE title").
		WithArgs("Oldboy").
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "release_year", "score", "summary", "image_url"}).
			AddRow(int64(5), "Oldboy", "2003", "8.4", strPtr("Revenge"), (*string)(nil)))
	mock.ExpectRollback()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	movie, found, err := tx.MovieByTitle(ctx, "Oldboy")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(5), movie.ID)
	require.Equal(t, ranking.Score(84), movie.Score)
	require.Equal(t, "Revenge", *movie.Summary)
	require.Nil(t, movie.ImageURL)
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMovieClassifiesUniqueViolation(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(importLockKey).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("INSERT INTO movies").
		WithArgs("Dup", "", "0.0", (*string)(nil), (*string)(nil)).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.InsertMovie(ctx, ranking.MovieFields{Title: "Dup"})
	require.ErrorIs(t, err, ranking.ErrConstraintViolation)
	require.Equal(t, ranking.KindConstraintViolation, ranking.StorageFailure(0, err).Kind)
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginFailureIsStorageUnavailable(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	im := importer.New(store, nil, nil, staticID{}, importer.Config{}, zap.NewNop())
	rank := 1
	_, err := im.Import(context.Background(), []ranking.Record{{Country: "KR", Movie: ranking.MovieInput{Title: "X"}, Rank: &rank}})
	require.ErrorIs(t, err, ranking.ErrStorageUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMoviesByCountry(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery("FROM countries WHERE lower").
		WithArgs("kr").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("FROM rankings r").
		WithArgs(int64(1), 5).
		WillReturnRows(pgxmock.NewRows([]string{"rank", "id", "title", "release_year", "score", "summary", "image_url"}).
			AddRow(1, int64(10), "Parasite", "2019", "8.5", (*string)(nil), strPtr("https://img/p.jpg")).
			AddRow(2, int64(11), "Oldboy", "2003", "0.0", (*string)(nil), (*string)(nil)))
	mock.ExpectQuery("FROM movie_genres j").
		WithArgs([]int64{10, 11}).
		WillReturnRows(pgxmock.NewRows([]string{"movie_id", "name"}).
			AddRow(int64(10), "Drama").AddRow(int64(11), "Mystery").AddRow(int64(10), "Thriller"))
	mock.ExpectQuery("FROM movie_actors j").
		WithArgs([]int64{10, 11}).
		WillReturnRows(pgxmock.NewRows([]string{"movie_id", "name"}).AddRow(int64(11), "Choi Min-sik"))

	movies, err := store.MoviesByCountry(ctx, "kr", 5)
	require.NoError(t, err)
	require.Len(t, movies, 2)
	require.Equal(t, "Parasite", movies[0].Title)
	require.Equal(t, ranking.Score(85), movies[0].Score)
	require.Equal(t, []string{"Drama", "Thriller"}, movies[0].Genres)
	require.Equal(t, []string{"Choi Min-sik"}, movies[1].Actors)
	require.Equal(t, []string{"Mystery"}, movies[1].Genres)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMoviesByCountryErrors(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery("FROM countries WHERE lower").
		WithArgs("Atlantis").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	_, err := store.MoviesByCountry(ctx, "Atlantis", 5)
	require.ErrorIs(t, err, ranking.ErrCountryNotFound)

	mock.ExpectQuery("FROM countries WHERE lower").
		WithArgs("US").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(2)))
	mock.ExpectQuery("FROM rankings r").
		WithArgs(int64(2), 5).
		WillReturnRows(pgxmock.NewRows([]string{"rank", "id", "title", "release_year", "score", "summary", "image_url"}))
	_, err = store.MoviesByCountry(ctx, "US", 5)
	require.ErrorIs(t, err, ranking.ErrNoRankings)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueriesQualifyConfiguredTables(t *testing.T) {
	t.Parallel()

	q := buildQueries(Tables{Genres: "g", MovieGenres: "mg"}.withDefaults())
	require.True(t, strings.Contains(q.insertLinks[ranking.KindGenre], "INSERT INTO mg (movie_id, genre_id)"))
	require.True(t, strings.Contains(q.linkedNames[ranking.KindGenre], "JOIN g e ON e.id = j.genre_id"))
	require.Contains(t, q.upsertCountry, "COALESCE(countries.code, EXCLUDED.code)")
}
