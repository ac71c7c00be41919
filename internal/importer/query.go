package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/JakeFAU/movierank/internal/ranking"
)

// MoviesByCountry returns the TopN lowest ranks for a country, ascending. The
// country name is matched case-insensitively. Unknown countries yield
// ranking.ErrCountryNotFound and countries without rankings ranking.ErrNoRankings.
func (im *Importer) MoviesByCountry(ctx context.Context, country string) ([]ranking.CountryMovie, error) {
	country = strings.TrimSpace(country)
	if country == "" {
		return nil, ranking.ErrCountryNotFound
	}
	movies, err := im.store.MoviesByCountry(ctx, country, im.cfg.TopN)
	if err != nil {
		return nil, fmt.Errorf("movies for %q: %w", country, err)
	}
	if len(movies) == 0 {
		return nil, fmt.Errorf("movies for %q: %w", country, ranking.ErrNoRankings)
	}
	return movies, nil
}

// Movie returns a single movie with its genres and actors.
func (im *Importer) Movie(ctx context.Context, id int64) (ranking.MovieDetail, error) {
	movie, err := im.store.Movie(ctx, id)
	if err != nil {
		return ranking.MovieDetail{}, fmt.Errorf("movie %d: %w", id, err)
	}
	return movie, nil
}

// Ready reports whether the backing store is reachable.
func (im *Importer) Ready(ctx context.Context) error {
	if err := im.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}
