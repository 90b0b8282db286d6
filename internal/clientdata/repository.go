// Package clientdata provides persistent caching for market data provider responses.
// Entries are msgpack blobs with expiration timestamps for cache-first behavior, and
// expired entries remain readable as a stale fallback when the provider fails.
package clientdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Repository provides cache operations over the quote_cache table.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Store saves value under key with expiration = now + ttl, replacing any previous entry.
func (r *Repository) Store(ctx context.Context, kind Kind, key string, value interface{}, ttl time.Duration) error {
	if err := kind.validate(); err != nil {
		return err
	}

	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s entry: %w", kind, err)
	}

	now := r.now()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO quote_cache (cache_key, kind, data, expires_at, stored_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			kind = excluded.kind,
			data = excluded.data,
			expires_at = excluded.expires_at,
			stored_at = excluded.stored_at`,
		cacheKey(kind, key), string(kind), data, now.Add(ttl).Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store %s entry: %w", kind, err)
	}

	return nil
}

// GetIfFresh decodes the entry into out only if it has not expired.
// Returns false, nil when the key is missing or stale.
func (r *Repository) GetIfFresh(ctx context.Context, kind Kind, key string, out interface{}) (bool, error) {
	return r.get(ctx, kind, key, out, true)
}

// Get decodes the entry into out regardless of expiration.
// Use it as a fallback when the provider fails: stale data is better than no data.
func (r *Repository) Get(ctx context.Context, kind Kind, key string, out interface{}) (bool, error) {
	return r.get(ctx, kind, key, out, false)
}

func (r *Repository) get(ctx context.Context, kind Kind, key string, out interface{}, freshOnly bool) (bool, error) {
	if err := kind.validate(); err != nil {
		return false, err
	}

	query := "SELECT data FROM quote_cache WHERE cache_key = ?"
	args := []interface{}{cacheKey(kind, key)}
	if freshOnly {
		query += " AND expires_at > ?"
		args = append(args, r.now().Unix())
	}

	var data []byte
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s entry: %w", kind, err)
	}

	if err := msgpack.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to decode %s entry: %w", kind, err)
	}

	return true, nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(ctx context.Context, kind Kind, key string) error {
	if err := kind.validate(); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, "DELETE FROM quote_cache WHERE cache_key = ?", cacheKey(kind, key)); err != nil {
		return fmt.Errorf("failed to delete %s entry: %w", kind, err)
	}

	return nil
}

// DeleteExpired removes entries that expired more than grace ago, keeping recently
// expired entries available as stale fallback. Returns deleted counts per kind.
func (r *Repository) DeleteExpired(ctx context.Context, grace time.Duration) (map[Kind]int64, error) {
	cutoff := r.now().Add(-grace).Unix()
	results := make(map[Kind]int64, len(AllKinds))

	for _, kind := range AllKinds {
		res, err := r.db.ExecContext(ctx,
			"DELETE FROM quote_cache WHERE kind = ? AND expires_at < ?", string(kind), cutoff)
		if err != nil {
			return results, fmt.Errorf("failed to delete expired %s entries: %w", kind, err)
		}

		deleted, err := res.RowsAffected()
		if err != nil {
			return results, fmt.Errorf("failed to get rows affected for %s: %w", kind, err)
		}
		results[kind] = deleted
	}

	return results, nil
}

func cacheKey(kind Kind, key string) string {
	return string(kind) + ":" + key
}
