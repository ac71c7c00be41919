package ranking

import (
	"context"
	"io"
	"time"
)

// Store persists the normalized ranking tables.
type Store interface {
	// Begin opens the single write transaction used by one import. Implementations
	// serialize concurrent Begin calls.
	Begin(ctx context.Context) (Tx, error)
	// MoviesByCountry returns the lowest-ranked limit movies for a country matched
	// case-insensitively by name.
	MoviesByCountry(ctx context.Context, country string, limit int) ([]CountryMovie, error)
	// Movie returns one movie with its genres and actors.
	Movie(ctx context.Context, id int64) (MovieDetail, error)
	Ping(ctx context.Context) error
	Close()
}

// Tx is the write path used by the importer. All reads observe the transaction's
// own earlier writes.
type Tx interface {
	// ResolveNames returns ids for the given genre/actor names, inserting missing ones.
	ResolveNames(ctx context.Context, kind EntityKind, names []string) (map[string]int64, error)
	// ResolveCountry returns the id of the country with this exact name, creating it
	// (with code, when given) if absent.
	ResolveCountry(ctx context.Context, name, code string) (int64, error)
	MovieByTitle(ctx context.Context, title string) (StoredMovie, bool, error)
	InsertMovie(ctx context.Context, fields MovieFields) (int64, error)
	UpdateMovie(ctx context.Context, id int64, patch MoviePatch) error
	// LinkedIDs returns the entity ids already joined to movieID.
	LinkedIDs(ctx context.Context, kind EntityKind, movieID int64) (map[int64]struct{}, error)
	RankingExists(ctx context.Context, countryID, movieID int64) (bool, error)
	// InsertLinks bulk-inserts join rows, ignoring rows that already exist.
	InsertLinks(ctx context.Context, kind EntityKind, links []Link) error
	// InsertRankings bulk-inserts ranking rows, ignoring existing (country, movie) pairs.
	InsertRankings(ctx context.Context, rows []RankingRow) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// BlobStore writes artifacts (snapshots, reports) and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
