package scraper

import (
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/movierank/internal/ranking"
)

// Selectors are the CSS selectors used to locate ranking items and read the
// movie fields out of an item or its info modal.
type Selectors struct {
	Item        string `mapstructure:"item"`
	InfoButton  string `mapstructure:"info_button"`
	Modal       string `mapstructure:"modal"`
	CloseButton string `mapstructure:"close_button"`
	Title       string `mapstructure:"title"`
	Year        string `mapstructure:"year"`
	Score       string `mapstructure:"score"`
	Summary     string `mapstructure:"summary"`
	Image       string `mapstructure:"image"`
	Genres      string `mapstructure:"genres"`
	Actors      string `mapstructure:"actors"`
}

// DefaultSelectors matches the IMDb advanced title search page.
func DefaultSelectors() Selectors {
	return Selectors{
		Item:        "li.ipc-metadata-list-summary-item",
		InfoButton:  "button.dli-info-icon",
		Modal:       "div.ipc-promptable-base__panel",
		CloseButton: "button.ipc-promptable-base__close",
		Title:       "h3.ipc-title__text",
		Year:        "ul[data-testid='btp_ml'] li, span.dli-title-metadata-item",
		Score:       "span.ipc-rating-star--rating",
		Summary:     "div[data-testid='btp_p'], div.ipc-html-content-inner-div",
		Image:       "img.ipc-image",
		Genres:      "ul[data-testid='btp_gl'] li",
		Actors:      "div[data-testid='btp_cl'] ul li",
	}
}

func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	fill := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	fill(&s.Item, d.Item)
	fill(&s.InfoButton, d.InfoButton)
	fill(&s.Modal, d.Modal)
	fill(&s.CloseButton, d.CloseButton)
	fill(&s.Title, d.Title)
	fill(&s.Year, d.Year)
	fill(&s.Score, d.Score)
	fill(&s.Summary, d.Summary)
	fill(&s.Image, d.Image)
	fill(&s.Genres, d.Genres)
	fill(&s.Actors, d.Actors)
	return s
}

var (
	errMissingTitle = errors.New("movie title not found")
	rankPrefix      = regexp.MustCompile(`^\d+\.\s*`)
)

// ParseModal extracts one movie from the outer HTML of an info modal. When the
// HTML does not contain the modal root the whole fragment is used.
func ParseModal(html string, s Selectors) (ranking.MovieInput, error) {
	s = s.withDefaults()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ranking.MovieInput{}, err
	}
	root := doc.Find(s.Modal).First()
	if root.Length() == 0 {
		root = doc.Selection
	}
	return extractMovie(root, s)
}

// extractMovie reads the movie fields below sel. Only the title is required.
func extractMovie(sel *goquery.Selection, s Selectors) (ranking.MovieInput, error) {
	title := rankPrefix.ReplaceAllString(text(sel.Find(s.Title).First()), "")
	if title == "" {
		return ranking.MovieInput{}, errMissingTitle
	}
	movie := ranking.MovieInput{
		Title:       title,
		ReleaseYear: text(sel.Find(s.Year).First()),
		Score:       ranking.RawScore(text(sel.Find(s.Score).First())),
		Summary:     optional(text(sel.Find(s.Summary).First())),
		Genres:      texts(sel.Find(s.Genres)),
		Actors:      texts(sel.Find(s.Actors)),
	}
	if src, ok := sel.Find(s.Image).First().Attr("src"); ok {
		movie.ImageURL = optional(strings.TrimSpace(src))
	}
	return movie, nil
}

func text(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}

func texts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, item *goquery.Selection) {
		if v := text(item); v != "" {
			out = append(out, v)
		}
	})
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
