package ranking

import "strings"

// MaxRank is the largest rank a smallint column holds.
const MaxRank = 32767

// Normalized is a validated Record ready for the importer.
type Normalized struct {
	Country     string
	CountryCode string
	Movie       MovieFields
	Genres      []string
	Actors      []string
	Rank        int
}

// Normalize validates the record at index and converts it to its persisted form.
func (r Record) Normalize(index int) (Normalized, error) {
	country := strings.TrimSpace(r.Country)
	if country == "" {
		return Normalized{}, Malformed(index, "country is required")
	}
	title := strings.TrimSpace(r.Movie.Title)
	if title == "" {
		return Normalized{}, Malformed(index, "movie title is required")
	}
	if r.Rank == nil {
		return Normalized{}, Malformed(index, "rank is required")
	}
	if *r.Rank < 1 || *r.Rank > MaxRank {
		return Normalized{}, Malformed(index, "rank %d out of range", *r.Rank)
	}
	score, err := ParseScore(string(r.Movie.Score))
	if err != nil {
		return Normalized{}, Malformed(index, "%v", err)
	}
	return Normalized{
		Country:     country,
		CountryCode: strings.TrimSpace(r.CountryCode),
		Movie: MovieFields{
			Title:       title,
			ReleaseYear: strings.TrimSpace(r.Movie.ReleaseYear),
			Score:       score,
			Summary:     cloneText(r.Movie.Summary),
			ImageURL:    cloneText(r.Movie.ImageURL),
		},
		Genres: CleanNames(r.Movie.Genres),
		Actors: CleanNames(r.Movie.Actors),
		Rank:   *r.Rank,
	}, nil
}

// NormalizeAll validates every record, stopping at the first malformed one.
func NormalizeAll(records []Record) ([]Normalized, error) {
	out := make([]Normalized, 0, len(records))
	for i, rec := range records {
		n, err := rec.Normalize(i)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
