package importer

import (
	"context"
	"fmt"

	"github.com/JakeFAU/movierank/internal/ranking"
)

// resolver maps genre/actor names to ids, asking the store once per distinct name per batch.
type resolver struct {
	tx    ranking.Tx
	cache map[ranking.EntityKind]map[string]int64
}

func newResolver(tx ranking.Tx) *resolver {
	return &resolver{
		tx: tx,
		cache: map[ranking.EntityKind]map[string]int64{
			ranking.KindGenre: {},
			ranking.KindActor: {},
		},
	}
}

// resolve returns ids for names in input order. Names must already be cleaned.
func (r *resolver) resolve(ctx context.Context, kind ranking.EntityKind, names []string) ([]int64, error) {
	if len(names) == 0 {
		return nil, nil
	}
	cache := r.cache[kind]
	var missing []string
	for _, name := range names {
		if _, ok := cache[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		ids, err := r.tx.ResolveNames(ctx, kind, missing)
		if err != nil {
			return nil, fmt.Errorf("resolve %s names: %w", kind, err)
		}
		for _, name := range missing {
			id, ok := ids[name]
			if !ok {
				return nil, fmt.Errorf("resolve %s %q: no id returned", kind, name)
			}
			cache[name] = id
		}
	}
	out := make([]int64, 0, len(names))
	for _, name := range names {
		out = append(out, cache[name])
	}
	return out, nil
}
