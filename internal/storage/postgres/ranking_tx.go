package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/movierank/internal/ranking"
)

type rankingTx struct {
	tx pgx.Tx
	q  *queries
}

var _ ranking.Tx = (*rankingTx)(nil)

func (t *rankingTx) ResolveNames(ctx context.Context, kind ranking.EntityKind, names []string) (map[string]int64, error) {
	insert, ok := t.q.insertNames[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	if _, err := t.tx.Exec(ctx, insert, names); err != nil {
		return nil, classify(fmt.Sprintf("insert %s names", kind), err)
	}
	rows, err := t.tx.Query(ctx, t.q.selectNames[kind], names)
	if err != nil {
		return nil, fmt.Errorf("select %s names: %w", kind, err)
	}
	defer rows.Close()
	out := make(map[string]int64, len(names))
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		out[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s names: %w", kind, err)
	}
	return out, nil
}

func (t *rankingTx) ResolveCountry(ctx context.Context, name, code string) (int64, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, t.q.upsertCountry, name, code).Scan(&id); err != nil {
		return 0, classify("upsert country", err)
	}
	return id, nil
}

func (t *rankingTx) MovieByTitle(ctx context.Context, title string) (ranking.StoredMovie, bool, error) {
	var (
		m     ranking.StoredMovie
		score string
	)
	err := t.tx.QueryRow(ctx, t.q.movieByTitle, title).
		Scan(&m.ID, &m.Title, &m.ReleaseYear, &score, &m.Summary, &m.ImageURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ranking.StoredMovie{}, false, nil
		}
		return ranking.StoredMovie{}, false, fmt.Errorf("select movie: %w", err)
	}
	if m.Score, err = ranking.ParseScore(score); err != nil {
		return ranking.StoredMovie{}, false, fmt.Errorf("stored score for %q: %w", title, err)
	}
	return m, true, nil
}

func (t *rankingTx) InsertMovie(ctx context.Context, fields ranking.MovieFields) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, t.q.insertMovie,
		fields.Title,
		fields.ReleaseYear,
		fields.Score.String(),
		fields.Summary,
		fields.ImageURL,
	).Scan(&id)
	if err != nil {
		return 0, classify("insert movie", err)
	}
	return id, nil
}

func (t *rankingTx) UpdateMovie(ctx context.Context, id int64, patch ranking.MoviePatch) error {
	if len(patch.Columns) == 0 {
		return nil
	}
	sets := make([]string, 0, len(patch.Columns))
	args := make([]any, 0, len(patch.Columns)+1)
	for _, col := range patch.Columns {
		var (
			value any
			cast  string
		)
		switch col {
		case ranking.ColumnReleaseYear:
			value = patch.Values.ReleaseYear
		case ranking.ColumnScore:
			value, cast = patch.Values.Score.String(), "::numeric"
		case ranking.ColumnSummary:
			value = patch.Values.Summary
		case ranking.ColumnImageURL:
			value = patch.Values.ImageURL
		default:
			return fmt.Errorf("unknown movie column %q", col)
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d%s", col, len(args), cast))
	}
	args = append(args, id)
	query := fmt.Sprintf(t.q.updateMovie, strings.Join(sets, ", "), len(args))
	if _, err := t.tx.Exec(ctx, query, args...); err != nil {
		return classify("update movie", err)
	}
	return nil
}

func (t *rankingTx) LinkedIDs(ctx context.Context, kind ranking.EntityKind, movieID int64) (map[int64]struct{}, error) {
	sql, ok := t.q.linkedIDs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	rows, err := t.tx.Query(ctx, sql, movieID)
	if err != nil {
		return nil, fmt.Errorf("select %s links: %w", kind, err)
	}
	defer rows.Close()
	out := map[int64]struct{}{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s link: %w", kind, err)
		}
		out[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s links: %w", kind, err)
	}
	return out, nil
}

func (t *rankingTx) RankingExists(ctx context.Context, countryID, movieID int64) (bool, error) {
	var exists bool
	if err := t.tx.QueryRow(ctx, t.q.rankingExists, countryID, movieID).Scan(&exists); err != nil {
		return false, fmt.Errorf("select ranking: %w", err)
	}
	return exists, nil
}

func (t *rankingTx) InsertLinks(ctx context.Context, kind ranking.EntityKind, links []ranking.Link) error {
	sql, ok := t.q.insertLinks[kind]
	if !ok {
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	movieIDs := make([]int64, len(links))
	entityIDs := make([]int64, len(links))
	for i, l := range links {
		movieIDs[i] = l.MovieID
		entityIDs[i] = l.EntityID
	}
	if _, err := t.tx.Exec(ctx, sql, movieIDs, entityIDs); err != nil {
		return classify(fmt.Sprintf("insert %s links", kind), err)
	}
	return nil
}

func (t *rankingTx) InsertRankings(ctx context.Context, rows []ranking.RankingRow) error {
	countryIDs := make([]int64, len(rows))
	movieIDs := make([]int64, len(rows))
	ranks := make([]int32, len(rows))
	for i, r := range rows {
		countryIDs[i] = r.CountryID
		movieIDs[i] = r.MovieID
		ranks[i] = int32(r.Rank)
	}
	if _, err := t.tx.Exec(ctx, t.q.insertRankings, countryIDs, movieIDs, ranks); err != nil {
		return classify("insert rankings", err)
	}
	return nil
}

func (t *rankingTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return classify("commit", err)
	}
	return nil
}

func (t *rankingTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
