package report

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/movierank/internal/ranking"
	"github.com/JakeFAU/movierank/internal/storage/memory"
)

type stubSource struct {
	movies     []ranking.CountryMovie
	err        error
	gotLimit   int
	gotCountry string
}

func (s *stubSource) MoviesByCountry(_ context.Context, country string, limit int) ([]ranking.CountryMovie, error) {
	s.gotCountry, s.gotLimit = country, limit
	return s.movies, s.err
}

func strPtr(s string) *string { return &s }

func sampleMovies() []ranking.CountryMovie {
	return []ranking.CountryMovie{
		{Rank: 1, Title: "Central Station", ReleaseYear: "1998", Score: 80, Image: strPtr("https://img.test/central.jpg"),
			Summary: strPtr("An emotional journey of a former school teacher."), Genres: []string{"Drama"}},
		{Rank: 2, Title: "City of God", ReleaseYear: "2002", Score: 86,
			Summary: strPtr("In the slums of Rio, two kids' paths diverge."), Genres: []string{"Crime", "Drama"}},
		{Rank: 6, Title: "Elite Squad", ReleaseYear: "2007", Score: 80,
			Summary: strPtr("The story of a Rio slums police squad, in 1997."), Genres: []string{"Action", "Crime", "Drama"}},
	}
}

func TestStarCounts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rating            float64
		full, half, empty int
	}{
		{0, 0, 0, 5},
		{7.5, 3, 1, 1},
		{7.9, 3, 1, 1},
		{8.0, 4, 0, 1},
		{9.0, 4, 1, 0},
		{10, 5, 0, 0},
		{99.9, 5, 0, 0},
	}
	for _, tt := range tests {
		full, half, empty := StarCounts(tt.rating)
		require.Equal(t, []int{tt.full, tt.half, tt.empty}, []int{full, half, empty}, "rating %v", tt.rating)
	}
}

func TestStarsSVG(t *testing.T) {
	t.Parallel()

	svg := string(StarsSVG(7.5))
	require.Equal(t, 4, strings.Count(svg, "fill:gold;"))
	require.Equal(t, 1, strings.Count(svg, "fill:lightgray;"))
	require.Equal(t, 1, strings.Count(svg, halfStarPath))
}

func TestGenreCounts(t *testing.T) {
	t.Parallel()

	got := GenreCounts(sampleMovies(), 2)
	require.Equal(t, []Count{{Label: "Drama", N: 3}, {Label: "Crime", N: 2}}, got)
	require.Len(t, GenreCounts(sampleMovies(), 8), 3)
}

func TestWordFrequencies(t *testing.T) {
	t.Parallel()

	got := WordFrequencies(sampleMovies(), StopwordSet(DefaultStopwords), 3)
	require.Equal(t, []Count{{Label: "slums", N: 2}, {Label: "rio", N: 2}, {Label: "emotional", N: 1}}, got)

	all := WordFrequencies(sampleMovies(), StopwordSet(DefaultStopwords), 100)
	for _, c := range all {
		require.NotEqual(t, "the", c.Label)
		require.NotEqual(t, "story", c.Label)
		require.NotEqual(t, "1997", c.Label)
		require.NotContains(t, c.Label, "'")
	}
}

func TestAverageScore(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 8.2, AverageScore(sampleMovies()), 1e-9)
	require.Zero(t, AverageScore(nil))
}

func TestBuildFiltersCardsByRank(t *testing.T) {
	t.Parallel()

	src := &stubSource{movies: sampleMovies()}
	g := New(src, nil, Config{TopK: 5}, nil)

	page, err := g.Build(context.Background(), " Brazil ")
	require.NoError(t, err)
	require.Equal(t, "Brazil", src.gotCountry)
	require.Equal(t, 100, src.gotLimit)
	require.Len(t, page.Cards, 2)
	require.Equal(t, "https://img.test/central.jpg", page.Cards[0].Image)
	require.Empty(t, page.Cards[1].Image)
	require.Contains(t, page.GenreChart, "Drama")
	require.Contains(t, page.WordChart, "slums")
}

func TestBuildPropagatesLookupErrors(t *testing.T) {
	t.Parallel()

	g := New(&stubSource{err: ranking.ErrCountryNotFound}, nil, Config{}, nil)
	_, err := g.Build(context.Background(), "Atlantis")
	require.ErrorIs(t, err, ranking.ErrCountryNotFound)

	g = New(&stubSource{}, nil, Config{}, nil)
	_, err = g.Build(context.Background(), "Brazil")
	require.ErrorIs(t, err, ranking.ErrNoRankings)

	_, err = g.Build(context.Background(), "  ")
	require.ErrorIs(t, err, ranking.ErrCountryNotFound)
}

func TestRenderEscapesContent(t *testing.T) {
	t.Parallel()

	movies := sampleMovies()
	movies[0].Title = "<script>alert(1)</script>"
	g := New(&stubSource{movies: movies}, nil, Config{}, nil)

	html, err := g.Render(context.Background(), "Brazil")
	require.NoError(t, err)
	out := string(html)
	require.Contains(t, out, `class="movie-card"`)
	require.Contains(t, out, "&lt;script&gt;alert(1)&lt;/script&gt;")
	require.NotContains(t, out, "<script>alert(1)</script>")
	require.Contains(t, out, "8.2 / 10")
	require.Contains(t, out, "<iframe")
}

func TestSaveWritesCombinedHTML(t *testing.T) {
	t.Parallel()

	blobs := memory.NewBlobStore()
	g := New(&stubSource{movies: sampleMovies()}, blobs, Config{Prefix: "html/"}, nil)

	uri, err := g.Save(context.Background(), "Brazil")
	require.NoError(t, err)
	require.Equal(t, "memory://html/Brazil/combined.html", uri)

	obj, ok := blobs.Get("html/Brazil/combined.html")
	require.True(t, ok)
	require.Equal(t, "text/html; charset=utf-8", obj.ContentType)
	require.Contains(t, string(obj.Data), "City of God")
}

func TestSaveFailures(t *testing.T) {
	t.Parallel()

	_, err := New(&stubSource{movies: sampleMovies()}, nil, Config{}, nil).Save(context.Background(), "Brazil")
	require.Error(t, err)

	boom := errors.New("boom")
	_, err = New(&stubSource{err: boom}, memory.NewBlobStore(), Config{}, nil).Save(context.Background(), "Brazil")
	require.ErrorIs(t, err, boom)
}
