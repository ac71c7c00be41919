package importer

import (
	"context"
	"fmt"

	"github.com/JakeFAU/movierank/internal/ranking"
)

// reconciler accumulates the join and ranking rows a batch still has to write.
// Existence is checked against the store once per movie (or pair) and then
// tracked locally, so two records introducing the same new pair queue it once.
type reconciler struct {
	tx ranking.Tx

	linked map[ranking.EntityKind]map[int64]map[int64]struct{}
	links  map[ranking.EntityKind][]ranking.Link

	ranked   map[ranking.RankingRow]struct{}
	rankings []ranking.RankingRow
}

func newReconciler(tx ranking.Tx) *reconciler {
	return &reconciler{
		tx: tx,
		linked: map[ranking.EntityKind]map[int64]map[int64]struct{}{
			ranking.KindGenre: {},
			ranking.KindActor: {},
		},
		links:  map[ranking.EntityKind][]ranking.Link{},
		ranked: map[ranking.RankingRow]struct{}{},
	}
}

// link queues the movie↔entity pairs not already present.
func (r *reconciler) link(ctx context.Context, kind ranking.EntityKind, movieID int64, entityIDs []int64) error {
	if len(entityIDs) == 0 {
		return nil
	}
	set, ok := r.linked[kind][movieID]
	if !ok {
		existing, err := r.tx.LinkedIDs(ctx, kind, movieID)
		if err != nil {
			return fmt.Errorf("load %s links for movie %d: %w", kind, movieID, err)
		}
		set = existing
		if set == nil {
			set = map[int64]struct{}{}
		}
		r.linked[kind][movieID] = set
	}
	for _, id := range entityIDs {
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		r.links[kind] = append(r.links[kind], ranking.Link{MovieID: movieID, EntityID: id})
	}
	return nil
}

// rank queues a ranking row unless the (country, movie) pair is already ranked.
// An existing rank is never overwritten.
func (r *reconciler) rank(ctx context.Context, countryID, movieID int64, rank int) error {
	key := ranking.RankingRow{CountryID: countryID, MovieID: movieID}
	if _, ok := r.ranked[key]; ok {
		return nil
	}
	r.ranked[key] = struct{}{}
	exists, err := r.tx.RankingExists(ctx, countryID, movieID)
	if err != nil {
		return fmt.Errorf("check ranking country=%d movie=%d: %w", countryID, movieID, err)
	}
	if exists {
		return nil
	}
	r.rankings = append(r.rankings, ranking.RankingRow{CountryID: countryID, MovieID: movieID, Rank: rank})
	return nil
}

// flush writes the queued rows in one bulk statement per table.
func (r *reconciler) flush(ctx context.Context) (pending, error) {
	counts := pending{
		genreLinks: len(r.links[ranking.KindGenre]),
		actorLinks: len(r.links[ranking.KindActor]),
		rankings:   len(r.rankings),
	}
	for _, kind := range []ranking.EntityKind{ranking.KindGenre, ranking.KindActor} {
		if len(r.links[kind]) == 0 {
			continue
		}
		if err := r.tx.InsertLinks(ctx, kind, r.links[kind]); err != nil {
			return counts, fmt.Errorf("insert %s links: %w", kind, err)
		}
	}
	if len(r.rankings) > 0 {
		if err := r.tx.InsertRankings(ctx, r.rankings); err != nil {
			return counts, fmt.Errorf("insert rankings: %w", err)
		}
	}
	return counts, nil
}

type pending struct {
	genreLinks int
	actorLinks int
	rankings   int
}
