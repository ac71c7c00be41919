// Package ranking defines the movie-ranking domain types shared by the scraper,
// the importer, the storage backends, and the HTTP API.
package ranking

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// EntityKind names a shared, name-keyed entity linked to movies.
type EntityKind string

// Entity kinds resolved by name during an import.
const (
	KindGenre EntityKind = "genre"
	KindActor EntityKind = "actor"
)

// Outcome classifies what an import did to a movie row.
type Outcome string

// Movie outcomes reported per record.
const (
	OutcomeCreated            Outcome = "created"
	OutcomeDuplicateUnchanged Outcome = "duplicate_unchanged"
	OutcomeDuplicateUpdated   Outcome = "duplicate_updated"
)

// Batch is the wire shape produced by the scraper and accepted by the bulk endpoint.
type Batch struct {
	Movies []Record `json:"movies"`
}

// Record is one country+movie+rank tuple with embedded movie metadata.
type Record struct {
	Country     string     `json:"country"`
	CountryCode string     `json:"country_code,omitempty"`
	Movie       MovieInput `json:"movie"`
	Rank        *int       `json:"rank"`
}

// MovieInput is the raw movie payload of a Record.
type MovieInput struct {
	Title       string   `json:"title"`
	ReleaseYear string   `json:"release_year"`
	Score       RawScore `json:"score"`
	Summary     *string  `json:"summary"`
	ImageURL    *string  `json:"image_url"`
	Genres      []string `json:"genres"`
	Actors      []string `json:"actors"`
}

// MovieFields holds the persisted, mutable columns of a movie.
type MovieFields struct {
	Title       string
	ReleaseYear string
	Score       Score
	Summary     *string
	ImageURL    *string
}

// StoredMovie is a movie row as read back from a store.
type StoredMovie struct {
	ID int64
	MovieFields
}

// MovieColumn names an updatable movie column.
type MovieColumn string

// Updatable movie columns, in the order they are compared.
const (
	ColumnReleaseYear MovieColumn = "release_year"
	ColumnScore       MovieColumn = "score"
	ColumnSummary     MovieColumn = "summary"
	ColumnImageURL    MovieColumn = "image_url"
)

// MoviePatch is a field-level update: only Columns are written, taking values from Values.
type MoviePatch struct {
	Columns []MovieColumn
	Values  MovieFields
}

// MovieRef identifies a movie in an import report.
type MovieRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// Report partitions the movies touched by one import.
type Report struct {
	Created            []MovieRef `json:"created"`
	DuplicateUnchanged []MovieRef `json:"duplicate_unchanged"`
	DuplicateUpdated   []MovieRef `json:"duplicate_updated"`
}

// NewReport returns a report whose lists encode as [] rather than null.
func NewReport() Report {
	return Report{
		Created:            []MovieRef{},
		DuplicateUnchanged: []MovieRef{},
		DuplicateUpdated:   []MovieRef{},
	}
}

// Add files ref under the list for outcome.
func (r *Report) Add(ref MovieRef, outcome Outcome) {
	switch outcome {
	case OutcomeCreated:
		r.Created = append(r.Created, ref)
	case OutcomeDuplicateUpdated:
		r.DuplicateUpdated = append(r.DuplicateUpdated, ref)
	default:
		r.DuplicateUnchanged = append(r.DuplicateUnchanged, ref)
	}
}

// Total returns the number of movies in the report.
func (r Report) Total() int {
	return len(r.Created) + len(r.DuplicateUnchanged) + len(r.DuplicateUpdated)
}

// Link is a movie↔entity join row.
type Link struct {
	MovieID  int64
	EntityID int64
}

// RankingRow is a country/movie/rank row.
type RankingRow struct {
	CountryID int64
	MovieID   int64
	Rank      int
}

// CountryMovie is one entry returned by the per-country query.
type CountryMovie struct {
	Rank        int      `json:"rank"`
	MovieID     int64    `json:"-"`
	Title       string   `json:"title"`
	ReleaseYear string   `json:"release_year"`
	Score       Score    `json:"score"`
	Summary     *string  `json:"summary"`
	Image       *string  `json:"image"`
	Genres      []string `json:"genres"`
	Actors      []string `json:"actors"`
}

// MovieDetail is a movie with its linked genre and actor names.
type MovieDetail struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	ReleaseYear string   `json:"release_year"`
	Score       Score    `json:"score"`
	Summary     *string  `json:"summary"`
	ImageURL    *string  `json:"image_url"`
	Genres      []string `json:"genres"`
	Actors      []string `json:"actors"`
}

// Country is a country row.
type Country struct {
	ID   int64
	Code string
	Name string
}

// DecodeBatch reads a `{"movies": [...]}` document.
func DecodeBatch(r io.Reader) (Batch, error) {
	var batch Batch
	dec := json.NewDecoder(r)
	if err := dec.Decode(&batch); err != nil {
		return Batch{}, fmt.Errorf("decode batch: %w", err)
	}
	return batch, nil
}

// Diff lists the columns whose incoming value differs from the stored one.
func Diff(stored, incoming MovieFields) []MovieColumn {
	var cols []MovieColumn
	if stored.ReleaseYear != incoming.ReleaseYear {
		cols = append(cols, ColumnReleaseYear)
	}
	if stored.Score != incoming.Score {
		cols = append(cols, ColumnScore)
	}
	if !equalText(stored.Summary, incoming.Summary) {
		cols = append(cols, ColumnSummary)
	}
	if !equalText(stored.ImageURL, incoming.ImageURL) {
		cols = append(cols, ColumnImageURL)
	}
	return cols
}

// Apply writes the patched columns of p onto m.
func (p MoviePatch) Apply(m *MovieFields) {
	for _, col := range p.Columns {
		switch col {
		case ColumnReleaseYear:
			m.ReleaseYear = p.Values.ReleaseYear
		case ColumnScore:
			m.Score = p.Values.Score
		case ColumnSummary:
			m.Summary = cloneText(p.Values.Summary)
		case ColumnImageURL:
			m.ImageURL = cloneText(p.Values.ImageURL)
		}
	}
}

// CleanNames trims names, drops blanks, and removes repeats while keeping order.
func CleanNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func equalText(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneText(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
