package postgres

import (
	"fmt"

	"github.com/JakeFAU/movierank/internal/ranking"
)

type entityTables struct {
	entity string
	join   string
	column string
}

type queries struct {
	advisoryLock   string
	upsertCountry  string
	countryByName  string
	countryMovies  string
	movieByTitle   string
	movieByID      string
	insertMovie    string
	updateMovie    string
	rankingExists  string
	insertRankings string

	insertNames map[ranking.EntityKind]string
	selectNames map[ranking.EntityKind]string
	linkedIDs   map[ranking.EntityKind]string
	insertLinks map[ranking.EntityKind]string
	linkedNames map[ranking.EntityKind]string
}

func buildQueries(t Tables) queries {
	q := queries{
		advisoryLock: `SELECT pg_advisory_xact_lock($1)`,
		upsertCountry: fmt.Sprintf(`
INSERT INTO %[1]s (name, code) VALUES ($1, NULLIF($2, ''))
ON CONFLICT (name) DO UPDATE SET code = COALESCE(%[1]s.code, EXCLUDED.code)
RETURNING id`, t.Countries),
		countryByName: fmt.Sprintf(
			`SELECT id FROM %s WHERE lower(name) = lower($1) ORDER BY id LIMIT 1`, t.Countries),
		countryMovies: fmt.Sprintf(`
SELECT r.rank, m.id, m.title, m.release_year, m.score::text, m.summary, m.image_url
FROM %s r
JOIN %s m ON m.id = r.movie_id
WHERE r.country_id = $1
ORDER BY r.rank, m.id
LIMIT $2`, t.Rankings, t.Movies),
		movieByTitle: fmt.Sprintf(
			`SELECT id, title, release_year, score::text, summary, image_url FROM %s WHERE title = $1 FOR UPDATE`, t.Movies),
		movieByID: fmt.Sprintf(
			`SELECT id, title, release_year, score::text, summary, image_url FROM %s WHERE id = $1`, t.Movies),
		insertMovie: fmt.Sprintf(`
INSERT INTO %s (title, release_year, score, summary, image_url)
VALUES ($1, $2, $3::numeric, $4, $5)
RETURNING id`, t.Movies),
		updateMovie: fmt.Sprintf(`UPDATE %s SET %%s WHERE id = $%%d`, t.Movies),
		rankingExists: fmt.Sprintf(
			`SELECT EXISTS (SELECT 1 FROM %s WHERE country_id = $1 AND movie_id = $2)`, t.Rankings),
		insertRankings: fmt.Sprintf(`
INSERT INTO %s (country_id, movie_id, rank)
SELECT * FROM unnest($1::bigint[], $2::bigint[], $3::smallint[])
ON CONFLICT (country_id, movie_id) DO NOTHING`, t.Rankings),
		insertNames: map[ranking.EntityKind]string{},
		selectNames: map[ranking.EntityKind]string{},
		linkedIDs:   map[ranking.EntityKind]string{},
		insertLinks: map[ranking.EntityKind]string{},
		linkedNames: map[ranking.EntityKind]string{},
	}

	for kind, et := range map[ranking.EntityKind]entityTables{
		ranking.KindGenre: {entity: t.Genres, join: t.MovieGenres, column: "genre_id"},
		ranking.KindActor: {entity: t.Actors, join: t.MovieActors, column: "actor_id"},
	} {
		q.insertNames[kind] = fmt.Sprintf(
			`INSERT INTO %s (name) SELECT unnest($1::text[]) ON CONFLICT (name) DO NOTHING`, et.entity)
		q.selectNames[kind] = fmt.Sprintf(
			`SELECT id, name FROM %s WHERE name = ANY($1)`, et.entity)
		q.linkedIDs[kind] = fmt.Sprintf(
			`SELECT %s FROM %s WHERE movie_id = $1`, et.column, et.join)
		q.insertLinks[kind] = fmt.Sprintf(`
INSERT INTO %s (movie_id, %s)
SELECT * FROM unnest($1::bigint[], $2::bigint[])
ON CONFLICT DO NOTHING`, et.join, et.column)
		q.linkedNames[kind] = fmt.Sprintf(`
SELECT j.movie_id, e.name
FROM %s j
JOIN %s e ON e.id = j.%s
WHERE j.movie_id = ANY($1)
ORDER BY e.name`, et.join, et.entity, et.column)
	}
	return q
}
