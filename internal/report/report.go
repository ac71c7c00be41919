// Package report renders the per-country HTML report: top ranked movie cards
// with star ratings, a genre pie chart, a summary word cloud, and the average rating.
package report

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/movierank/internal/metrics"
	"github.com/JakeFAU/movierank/internal/ranking"
)

//go:embed page.html.tmpl
var pageHTML string

var pageTemplate = template.Must(template.New("page").Parse(pageHTML))

// MovieSource lists a country's ranked movies in ascending rank order.
type MovieSource interface {
	MoviesByCountry(ctx context.Context, country string, limit int) ([]ranking.CountryMovie, error)
}

// Config controls report contents.
type Config struct {
	// TopK bounds the movie cards to ranks 1..TopK.
	TopK int
	// PieTopK bounds the genres shown in the pie chart.
	PieTopK int
	// MaxWords bounds the word cloud.
	MaxWords int
	// Limit bounds how many ranked movies feed the charts and the average.
	Limit int
	// Stopwords replaces DefaultStopwords when non-empty.
	Stopwords []string
	// Prefix is the blob path prefix for saved reports.
	Prefix string
}

// Card is one movie card.
type Card struct {
	Rank  int
	Title string
	Year  string
	Image string
	Stars template.HTML
}

// Page is the data behind one rendered report.
type Page struct {
	Country      string
	Cards        []Card
	Genres       []Count
	Words        []Count
	Average      float64
	AverageStars template.HTML
	GenreChart   string
	WordChart    string
}

// Generator builds and saves reports.
type Generator struct {
	source    MovieSource
	blobs     ranking.BlobStore
	cfg       Config
	stopwords map[string]struct{}
	logger    *zap.Logger
}

// New constructs a Generator. blobs may be nil when reports are only served.
func New(source MovieSource, blobs ranking.BlobStore, cfg Config, logger *zap.Logger) *Generator {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.PieTopK <= 0 {
		cfg.PieTopK = 8
	}
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = 100
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	words := cfg.Stopwords
	if len(words) == 0 {
		words = DefaultStopwords
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		source:    source,
		blobs:     blobs,
		cfg:       cfg,
		stopwords: StopwordSet(words),
		logger:    logger,
	}
}

// Build assembles the report data for a country. Lookup errors from the source
// (ranking.ErrCountryNotFound, ranking.ErrNoRankings) are wrapped.
func (g *Generator) Build(ctx context.Context, country string) (Page, error) {
	country = strings.TrimSpace(country)
	if country == "" {
		return Page{}, ranking.ErrCountryNotFound
	}
	movies, err := g.source.MoviesByCountry(ctx, country, g.cfg.Limit)
	if err != nil {
		return Page{}, fmt.Errorf("report for %q: %w", country, err)
	}
	if len(movies) == 0 {
		return Page{}, fmt.Errorf("report for %q: %w", country, ranking.ErrNoRankings)
	}

	page := Page{
		Country: country,
		Genres:  GenreCounts(movies, g.cfg.PieTopK),
		Words:   WordFrequencies(movies, g.stopwords, g.cfg.MaxWords),
		Average: AverageScore(movies),
	}
	page.AverageStars = StarsSVG(page.Average)
	for _, m := range movies {
		if m.Rank < 1 || m.Rank > g.cfg.TopK {
			continue
		}
		card := Card{
			Rank:  m.Rank,
			Title: m.Title,
			Year:  m.ReleaseYear,
			Stars: StarsSVG(float64(m.Score) / 10),
		}
		if m.Image != nil {
			card.Image = *m.Image
		}
		page.Cards = append(page.Cards, card)
	}
	if page.GenreChart, err = genrePie(country, page.Genres); err != nil {
		return Page{}, err
	}
	if page.WordChart, err = wordCloud(country, page.Words); err != nil {
		return Page{}, err
	}
	return page, nil
}

// Render builds and renders the report for a country as HTML.
func (g *Generator) Render(ctx context.Context, country string) ([]byte, error) {
	page, err := g.Build(ctx, country)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// Path returns where a country's report is saved.
func (g *Generator) Path(country string) string {
	return path.Join(strings.Trim(g.cfg.Prefix, "/"), strings.TrimSpace(country), "combined.html")
}

// Save renders the report for a country and writes it to the blob store.
func (g *Generator) Save(ctx context.Context, country string) (string, error) {
	if g.blobs == nil {
		return "", fmt.Errorf("no blob store configured")
	}
	html, err := g.Render(ctx, country)
	if err != nil {
		return "", err
	}
	uri, err := g.blobs.PutObject(ctx, g.Path(country), "text/html; charset=utf-8", bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	metrics.ObserveArtifact("report")
	g.logger.Info("Report saved", zap.String("country", country), zap.String("uri", uri))
	return uri, nil
}
