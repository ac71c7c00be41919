package importer

import (
	"context"
	"fmt"

	"github.com/JakeFAU/movierank/internal/ranking"
)

// upsertMovie resolves a movie by exact title, inserting it when absent and
// patching only the columns whose incoming value differs otherwise.
func upsertMovie(ctx context.Context, tx ranking.Tx, fields ranking.MovieFields) (ranking.MovieRef, ranking.Outcome, error) {
	stored, found, err := tx.MovieByTitle(ctx, fields.Title)
	if err != nil {
		return ranking.MovieRef{}, "", fmt.Errorf("lookup movie %q: %w", fields.Title, err)
	}
	if !found {
		id, err := tx.InsertMovie(ctx, fields)
		if err != nil {
			return ranking.MovieRef{}, "", fmt.Errorf("insert movie %q: %w", fields.Title, err)
		}
		return ranking.MovieRef{ID: id, Title: fields.Title}, ranking.OutcomeCreated, nil
	}

	ref := ranking.MovieRef{ID: stored.ID, Title: stored.Title}
	cols := ranking.Diff(stored.MovieFields, fields)
	if len(cols) == 0 {
		return ref, ranking.OutcomeDuplicateUnchanged, nil
	}
	if err := tx.UpdateMovie(ctx, stored.ID, ranking.MoviePatch{Columns: cols, Values: fields}); err != nil {
		return ranking.MovieRef{}, "", fmt.Errorf("update movie %q: %w", fields.Title, err)
	}
	return ref, ranking.OutcomeDuplicateUpdated, nil
}
