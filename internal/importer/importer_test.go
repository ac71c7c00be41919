package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	memorypublisher "github.com/JakeFAU/movierank/internal/publisher/memory"
	"github.com/JakeFAU/movierank/internal/ranking"
	"github.com/JakeFAU/movierank/internal/storage/memory"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type fakeIDGen struct{ n int }

func (g *fakeIDGen) NewID() (string, error) {
	g.n++
	return fmt.Sprintf("run-%d", g.n), nil
}

// spyStore counts Tx calls and can fail a named operation.
type spyStore struct {
	*memory.RankingStore
	failOn string
	calls  map[string]int
}

func newSpyStore() *spyStore {
	return &spyStore{RankingStore: memory.NewRankingStore(), calls: map[string]int{}}
}

func (s *spyStore) Begin(ctx context.Context) (ranking.Tx, error) {
	tx, err := s.RankingStore.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &spyTx{Tx: tx, store: s}, nil
}

type spyTx struct {
	ranking.Tx
	store *spyStore
}

func (t *spyTx) hit(op string) error {
	t.store.calls[op]++
	if t.store.failOn == op {
		return fmt.Errorf("%s: injected failure", op)
	}
	return nil
}

func (t *spyTx) ResolveNames(ctx context.Context, kind ranking.EntityKind, names []string) (map[string]int64, error) {
	if err := t.hit("ResolveNames"); err != nil {
		return nil, err
	}
	return t.Tx.ResolveNames(ctx, kind, names)
}

func (t *spyTx) InsertLinks(ctx context.Context, kind ranking.EntityKind, links []ranking.Link) error {
	if err := t.hit("InsertLinks"); err != nil {
		return err
	}
	return t.Tx.InsertLinks(ctx, kind, links)
}

func (t *spyTx) InsertRankings(ctx context.Context, rows []ranking.RankingRow) error {
	if err := t.hit("InsertRankings"); err != nil {
		return err
	}
	return t.Tx.InsertRankings(ctx, rows)
}

func newTestImporter(store ranking.Store) *Importer {
	return New(store, nil, fakeClock{now: time.Unix(1700000000, 0).UTC()}, &fakeIDGen{}, Config{}, zap.NewNop())
}

func rank(v int) *int { return &v }

func record(country, title string, r int, score string, genres, actors []string) ranking.Record {
	return ranking.Record{
		Country: country,
		Movie: ranking.MovieInput{
			Title:       title,
			ReleaseYear: "2024",
			Score:       ranking.RawScore(score),
			Genres:      genres,
			Actors:      actors,
		},
		Rank: rank(r),
	}
}

func TestImportTwiceKeepsJoinRowsStable(t *testing.T) {
	t.Parallel()

	store := memory.NewRankingStore()
	im := newTestImporter(store)
	batch := []ranking.Record{
		record("KR", "Parasite", 1, "8.5", []string{"Drama", "Thriller"}, []string{"Song Kang-ho"}),
		record("KR", "Oldboy", 2, "8.4", []string{"Drama", "Mystery"}, []string{"Choi Min-sik"}),
	}

	first, err := im.Import(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, first.Created, 2)
	before := store.Counts()
	require.Equal(t, 4, before.MovieGenres)
	require.Equal(t, 2, before.MovieActors)
	require.Equal(t, 3, before.Genres)

	second, err := im.Import(context.Background(), batch)
	require.NoError(t, err)
	require.Empty(t, second.Created)
	require.Len(t, second.DuplicateUnchanged, 2)
	require.Equal(t, before, store.Counts())
}

func TestImportUpdatesChangedScore(t *testing.T) {
	t.Parallel()

	store := memory.NewRankingStore()
	im := newTestImporter(store)

	first, err := im.Import(context.Background(), []ranking.Record{record("KR", "X", 1, "7.0", nil, nil)})
	require.NoError(t, err)
	require.Len(t, first.Created, 1)

	second, err := im.Import(context.Background(), []ranking.Record{record("KR", "X", 1, "8.0", nil, nil)})
	require.NoError(t, err)
	require.Empty(t, second.Created)
	require.Len(t, second.DuplicateUpdated, 1)
	require.Equal(t, first.Created[0].ID, second.DuplicateUpdated[0].ID)

	require.Equal(t, 1, store.Counts().Movies)
	movie, err := im.Movie(context.Background(), first.Created[0].ID)
	require.NoError(t, err)
	require.Equal(t, ranking.Score(80), movie.Score)
}

func TestImportNormalizesNullScores(t *testing.T) {
	t.Parallel()

	doc := `{"movies":[
		{"country":"US","movie":{"title":"A"},"rank":1},
		{"country":"US","movie":{"title":"B","score":null},"rank":2},
		{"country":"US","movie":{"title":"C","score":"null"},"rank":3},
		{"country":"US","movie":{"title":"D","score":""},"rank":4}
	]}`
	batch, err := ranking.DecodeBatch(strings.NewReader(doc))
	require.NoError(t, err)

	im := newTestImporter(memory.NewRankingStore())
	report, err := im.Import(context.Background(), batch.Movies)
	require.NoError(t, err)
	require.Len(t, report.Created, 4)

	movies, err := im.MoviesByCountry(context.Background(), "US")
	require.NoError(t, err)
	require.Len(t, movies, 4)
	for _, m := range movies {
		require.Equal(t, ranking.Score(0), m.Score, m.Title)
	}
}

func TestImportNeverOverwritesRank(t *testing.T) {
	t.Parallel()

	im := newTestImporter(memory.NewRankingStore())
	_, err := im.Import(context.Background(), []ranking.Record{record("KR", "X", 1, "7.0", nil, nil)})
	require.NoError(t, err)
	_, err = im.Import(context.Background(), []ranking.Record{record("KR", "X", 2, "7.0", nil, nil)})
	require.NoError(t, err)

	movies, err := im.MoviesByCountry(context.Background(), "KR")
	require.NoError(t, err)
	require.Len(t, movies, 1)
	require.Equal(t, 1, movies[0].Rank)
}

func TestImportIsAllOrNothingOnMalformedRecord(t *testing.T) {
	t.Parallel()

	store := newSpyStore()
	im := newTestImporter(store)
	batch := make([]ranking.Record, 0, 6)
	for i := 1; i <= 5; i++ {
		batch = append(batch, record("BR", fmt.Sprintf("Movie %d", i), i, "7.1", []string{"Drama"}, []string{"Actor"}))
	}
	batch = append(batch, record("BR", "Broken", 6, "not-a-number", nil, nil))

	report, err := im.Import(context.Background(), batch)
	require.ErrorIs(t, err, ranking.ErrMalformedRecord)
	var ie *ranking.ImportError
	require.ErrorAs(t, err, &ie)
	require.Equal(t, 5, ie.Index)
	require.Zero(t, report.Total())
	require.Equal(t, memory.Counts{}, store.Counts())
}

func TestImportRollsBackOnStorageFailure(t *testing.T) {
	t.Parallel()

	store := newSpyStore()
	store.failOn = "InsertRankings"
	im := newTestImporter(store)
	batch := []ranking.Record{
		record("BR", "A", 1, "7.0", []string{"Drama"}, []string{"Actor"}),
		record("BR", "B", 2, "6.0", []string{"Comedy"}, nil),
	}

	report, err := im.Import(context.Background(), batch)
	require.ErrorIs(t, err, ranking.ErrStorageUnavailable)
	require.Zero(t, report.Total())
	require.Equal(t, memory.Counts{}, store.Counts())
	require.Equal(t, 1, store.calls["InsertRankings"])

	// The store is usable again after the rollback.
	store.failOn = ""
	_, err = im.Import(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, 2, store.Counts().Rankings)
}

func TestImportTopFiveAscending(t *testing.T) {
	t.Parallel()

	im := newTestImporter(memory.NewRankingStore())
	var batch []ranking.Record
	for _, r := range []int{7, 3, 1, 6, 2, 5, 4} {
		batch = append(batch, record("Brazil", fmt.Sprintf("Filme %d", r), r, "6.5", nil, nil))
	}
	_, err := im.Import(context.Background(), batch)
	require.NoError(t, err)

	movies, err := im.MoviesByCountry(context.Background(), "Brazil")
	require.NoError(t, err)
	require.Len(t, movies, 5)
	for i, m := range movies {
		require.Equal(t, i+1, m.Rank)
		require.Equal(t, fmt.Sprintf("Filme %d", i+1), m.Title)
	}
}

func TestMoviesByCountryIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	im := newTestImporter(memory.NewRankingStore())
	_, err := im.Import(context.Background(), []ranking.Record{record("KR", "X", 1, "7.0", []string{"Drama"}, nil)})
	require.NoError(t, err)

	upper, err := im.MoviesByCountry(context.Background(), "KR")
	require.NoError(t, err)
	lower, err := im.MoviesByCountry(context.Background(), "kr")
	require.NoError(t, err)
	require.Equal(t, upper, lower)
	require.Equal(t, []string{"Drama"}, lower[0].Genres)

	_, err = im.MoviesByCountry(context.Background(), "Atlantis")
	require.ErrorIs(t, err, ranking.ErrCountryNotFound)
}

func TestImportDeduplicatesPairsWithinBatch(t *testing.T) {
	t.Parallel()

	store := newSpyStore()
	im := newTestImporter(store)
	batch := []ranking.Record{
		record("KR", "Shared", 1, "7.0", []string{"Drama"}, []string{"Lee"}),
		record("US", "Shared", 4, "7.0", []string{"Drama", "Drama"}, []string{"Lee"}),
		record("KR", "Shared", 9, "7.0", []string{"Drama"}, nil),
	}

	report, err := im.Import(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	require.Len(t, report.DuplicateUnchanged, 2)

	counts := store.Counts()
	require.Equal(t, 1, counts.MovieGenres)
	require.Equal(t, 1, counts.MovieActors)
	require.Equal(t, 2, counts.Rankings)
	// Genre and actor names are each resolved once for the whole batch.
	require.Equal(t, 2, store.calls["ResolveNames"])

	movies, err := im.MoviesByCountry(context.Background(), "kr")
	require.NoError(t, err)
	require.Len(t, movies, 1)
	require.Equal(t, 1, movies[0].Rank)
}

func TestImportPublishesEvent(t *testing.T) {
	t.Parallel()

	pub := memorypublisher.New()
	now := time.Unix(1700000000, 0).UTC()
	im := New(memory.NewRankingStore(), pub, fakeClock{now: now}, &fakeIDGen{}, Config{Topic: "imports"}, zap.NewNop())

	_, err := im.Import(context.Background(), []ranking.Record{record("KR", "X", 1, "7.0", nil, nil)})
	require.NoError(t, err)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "imports", msgs[0].Topic)
	event, ok := msgs[0].Payload.(ImportEvent)
	require.True(t, ok)
	require.Equal(t, "run-1", event.RunID)
	require.Equal(t, 1, event.Created)
	require.Equal(t, now, event.CompletedAt)
}

func TestImportReportsBeginFailure(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	im := newTestImporter(memory.NewRankingStore())
	_, err := im.Import(ctx, []ranking.Record{record("KR", "X", 1, "7.0", nil, nil)})
	require.ErrorIs(t, err, ranking.ErrStorageUnavailable)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestImportSucceedsWhenNotificationFails(t *testing.T) {
	t.Parallel()

	pub := memorypublisher.New()
	pub.FailWith(errors.New("broker down"))
	store := memory.NewRankingStore()
	im := New(store, pub, fakeClock{}, &fakeIDGen{}, Config{Topic: "imports"}, zap.NewNop())

	report, err := im.Import(context.Background(), []ranking.Record{record("KR", "X", 1, "7.0", nil, nil)})
	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	require.Equal(t, 1, store.Counts().Rankings)
	require.Empty(t, pub.Messages())
}

func TestImportReportEncodesEmptyListsAsArrays(t *testing.T) {
	t.Parallel()

	im := newTestImporter(memory.NewRankingStore())
	report, err := im.Import(context.Background(), []ranking.Record{record("KR", "Oldboy", 1, "8.4", nil, nil)})
	require.NoError(t, err)

	body, err := json.Marshal(report)
	require.NoError(t, err)
	var lists map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &lists))
	require.JSONEq(t, `[]`, string(lists["duplicate_unchanged"]))
	require.JSONEq(t, `[]`, string(lists["duplicate_updated"]))
	require.Contains(t, string(lists["created"]), `"title":"Oldboy"`)
}
