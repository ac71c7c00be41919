package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JakeFAU/movierank/internal/ranking"
)

// RankingStore keeps the ranking tables in memory. A transaction works on a private
// copy of the tables that replaces the shared copy on commit; only one transaction
// runs at a time.
type RankingStore struct {
	writer sync.Mutex
	mu     sync.RWMutex
	tables *tables
}

// Counts reports table sizes, mainly for tests and debug endpoints.
type Counts struct {
	Countries   int
	Genres      int
	Actors      int
	Movies      int
	MovieGenres int
	MovieActors int
	Rankings    int
}

type linkKey struct {
	movieID  int64
	entityID int64
}

type rankKey struct {
	countryID int64
	movieID   int64
}

type tables struct {
	nextID    int64
	countries map[int64]ranking.Country
	names     map[ranking.EntityKind]map[string]int64
	movies    map[int64]ranking.MovieFields
	titles    map[string]int64
	links     map[ranking.EntityKind]map[linkKey]struct{}
	rankings  map[rankKey]int
}

// NewRankingStore creates an empty store.
func NewRankingStore() *RankingStore {
	return &RankingStore{tables: newTables()}
}

func newTables() *tables {
	return &tables{
		countries: map[int64]ranking.Country{},
		names: map[ranking.EntityKind]map[string]int64{
			ranking.KindGenre: {},
			ranking.KindActor: {},
		},
		movies: map[int64]ranking.MovieFields{},
		titles: map[string]int64{},
		links: map[ranking.EntityKind]map[linkKey]struct{}{
			ranking.KindGenre: {},
			ranking.KindActor: {},
		},
		rankings: map[rankKey]int{},
	}
}

func (t *tables) clone() *tables {
	cp := newTables()
	cp.nextID = t.nextID
	for k, v := range t.countries {
		cp.countries[k] = v
	}
	for kind, names := range t.names {
		for name, id := range names {
			cp.names[kind][name] = id
		}
	}
	for k, v := range t.movies {
		cp.movies[k] = v
	}
	for k, v := range t.titles {
		cp.titles[k] = v
	}
	for kind, links := range t.links {
		for k := range links {
			cp.links[kind][k] = struct{}{}
		}
	}
	for k, v := range t.rankings {
		cp.rankings[k] = v
	}
	return cp
}

func (t *tables) newID() int64 {
	t.nextID++
	return t.nextID
}

// Begin locks the store for writing and returns a transaction over a private copy.
func (s *RankingStore) Begin(ctx context.Context) (ranking.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	s.writer.Lock()
	s.mu.RLock()
	work := s.tables.clone()
	s.mu.RUnlock()
	return &rankingTx{store: s, t: work}, nil
}

// MoviesByCountry returns the lowest ranks for a case-insensitively matched country.
func (s *RankingStore) MoviesByCountry(_ context.Context, country string, limit int) ([]ranking.CountryMovie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	countryID, ok := s.tables.countryByFold(country)
	if !ok {
		return nil, ranking.ErrCountryNotFound
	}
	var out []ranking.CountryMovie
	for key, rank := range s.tables.rankings {
		if key.countryID != countryID {
			continue
		}
		m := s.tables.movies[key.movieID]
		out = append(out, ranking.CountryMovie{
			Rank:        rank,
			MovieID:     key.movieID,
			Title:       m.Title,
			ReleaseYear: m.ReleaseYear,
			Score:       m.Score,
			Summary:     m.Summary,
			Image:       m.ImageURL,
			Genres:      s.tables.linkedNames(ranking.KindGenre, key.movieID),
			Actors:      s.tables.linkedNames(ranking.KindActor, key.movieID),
		})
	}
	if len(out) == 0 {
		return nil, ranking.ErrNoRankings
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].MovieID < out[j].MovieID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Movie returns a movie with its linked names.
func (s *RankingStore) Movie(_ context.Context, id int64) (ranking.MovieDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.tables.movies[id]
	if !ok {
		return ranking.MovieDetail{}, ranking.ErrMovieNotFound
	}
	return ranking.MovieDetail{
		ID:          id,
		Title:       m.Title,
		ReleaseYear: m.ReleaseYear,
		Score:       m.Score,
		Summary:     m.Summary,
		ImageURL:    m.ImageURL,
		Genres:      s.tables.linkedNames(ranking.KindGenre, id),
		Actors:      s.tables.linkedNames(ranking.KindActor, id),
	}, nil
}

// Ping always succeeds.
func (s *RankingStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *RankingStore) Close() {}

// Counts returns the committed table sizes.
func (s *RankingStore) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Countries:   len(s.tables.countries),
		Genres:      len(s.tables.names[ranking.KindGenre]),
		Actors:      len(s.tables.names[ranking.KindActor]),
		Movies:      len(s.tables.movies),
		MovieGenres: len(s.tables.links[ranking.KindGenre]),
		MovieActors: len(s.tables.links[ranking.KindActor]),
		Rankings:    len(s.tables.rankings),
	}
}

func (t *tables) countryByFold(name string) (int64, bool) {
	var (
		found int64
		ok    bool
	)
	for id, c := range t.countries {
		if strings.EqualFold(c.Name, name) && (!ok || id < found) {
			found, ok = id, true
		}
	}
	return found, ok
}

func (t *tables) linkedNames(kind ranking.EntityKind, movieID int64) []string {
	byID := make(map[int64]string, len(t.names[kind]))
	for name, id := range t.names[kind] {
		byID[id] = name
	}
	var names []string
	for k := range t.links[kind] {
		if k.movieID == movieID {
			names = append(names, byID[k.entityID])
		}
	}
	sort.Strings(names)
	return names
}

var errTxDone = errors.New("transaction already finished")

type rankingTx struct {
	store *RankingStore
	t     *tables
	done  bool
}

func (tx *rankingTx) check(ctx context.Context) error {
	if tx.done {
		return errTxDone
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory tx: %w", err)
	}
	return nil
}

func (tx *rankingTx) ResolveNames(ctx context.Context, kind ranking.EntityKind, names []string) (map[string]int64, error) {
	if err := tx.check(ctx); err != nil {
		return nil, err
	}
	table, ok := tx.t.names[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	out := make(map[string]int64, len(names))
	for _, name := range names {
		id, ok := table[name]
		if !ok {
			id = tx.t.newID()
			table[name] = id
		}
		out[name] = id
	}
	return out, nil
}

func (tx *rankingTx) ResolveCountry(ctx context.Context, name, code string) (int64, error) {
	if err := tx.check(ctx); err != nil {
		return 0, err
	}
	for id, c := range tx.t.countries {
		if c.Name == name {
			if c.Code == "" && code != "" {
				c.Code = code
				tx.t.countries[id] = c
			}
			return id, nil
		}
	}
	id := tx.t.newID()
	tx.t.countries[id] = ranking.Country{ID: id, Code: code, Name: name}
	return id, nil
}

func (tx *rankingTx) MovieByTitle(ctx context.Context, title string) (ranking.StoredMovie, bool, error) {
	if err := tx.check(ctx); err != nil {
		return ranking.StoredMovie{}, false, err
	}
	id, ok := tx.t.titles[title]
	if !ok {
		return ranking.StoredMovie{}, false, nil
	}
	return ranking.StoredMovie{ID: id, MovieFields: tx.t.movies[id]}, true, nil
}

func (tx *rankingTx) InsertMovie(ctx context.Context, fields ranking.MovieFields) (int64, error) {
	if err := tx.check(ctx); err != nil {
		return 0, err
	}
	if _, exists := tx.t.titles[fields.Title]; exists {
		return 0, fmt.Errorf("insert movie %q: %w", fields.Title, ranking.ErrConstraintViolation)
	}
	id := tx.t.newID()
	tx.t.movies[id] = fields
	tx.t.titles[fields.Title] = id
	return id, nil
}

func (tx *rankingTx) UpdateMovie(ctx context.Context, id int64, patch ranking.MoviePatch) error {
	if err := tx.check(ctx); err != nil {
		return err
	}
	m, ok := tx.t.movies[id]
	if !ok {
		return ranking.ErrMovieNotFound
	}
	patch.Apply(&m)
	tx.t.movies[id] = m
	return nil
}

func (tx *rankingTx) LinkedIDs(ctx context.Context, kind ranking.EntityKind, movieID int64) (map[int64]struct{}, error) {
	if err := tx.check(ctx); err != nil {
		return nil, err
	}
	out := map[int64]struct{}{}
	for k := range tx.t.links[kind] {
		if k.movieID == movieID {
			out[k.entityID] = struct{}{}
		}
	}
	return out, nil
}

func (tx *rankingTx) RankingExists(ctx context.Context, countryID, movieID int64) (bool, error) {
	if err := tx.check(ctx); err != nil {
		return false, err
	}
	_, ok := tx.t.rankings[rankKey{countryID: countryID, movieID: movieID}]
	return ok, nil
}

func (tx *rankingTx) InsertLinks(ctx context.Context, kind ranking.EntityKind, links []ranking.Link) error {
	if err := tx.check(ctx); err != nil {
		return err
	}
	table, ok := tx.t.links[kind]
	if !ok {
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	for _, l := range links {
		if _, ok := tx.t.movies[l.MovieID]; !ok {
			return fmt.Errorf("link movie %d: %w", l.MovieID, ranking.ErrConstraintViolation)
		}
		table[linkKey{movieID: l.MovieID, entityID: l.EntityID}] = struct{}{}
	}
	return nil
}

func (tx *rankingTx) InsertRankings(ctx context.Context, rows []ranking.RankingRow) error {
	if err := tx.check(ctx); err != nil {
		return err
	}
	for _, r := range rows {
		key := rankKey{countryID: r.CountryID, movieID: r.MovieID}
		if _, exists := tx.t.rankings[key]; exists {
			continue
		}
		tx.t.rankings[key] = r.Rank
	}
	return nil
}

func (tx *rankingTx) Commit(ctx context.Context) error {
	if tx.done {
		return errTxDone
	}
	if err := ctx.Err(); err != nil {
		tx.finish()
		return fmt.Errorf("commit: %w", err)
	}
	tx.store.mu.Lock()
	tx.store.tables = tx.t
	tx.store.mu.Unlock()
	tx.finish()
	return nil
}

func (tx *rankingTx) Rollback(context.Context) error {
	if tx.done {
		return nil
	}
	tx.finish()
	return nil
}

func (tx *rankingTx) finish() {
	tx.done = true
	tx.t = nil
	tx.store.writer.Unlock()
}
