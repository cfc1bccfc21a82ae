package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenRepo keeps a deny-list of revoked access token ids in Redis. Each
// entry expires together with the token it revokes, so the list never
// outgrows the set of still-valid tokens.
type TokenRepo struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewTokenRepo(rdb *redis.Client, prefix string) *TokenRepo {
	if prefix == "" {
		prefix = "revoked"
	}
	return &TokenRepo{rdb: rdb, prefix: prefix, now: time.Now}
}

func (r *TokenRepo) key(tokenID string) string { return r.prefix + ":" + tokenID }

// Revoke marks tokenID as revoked until exp. Tokens that already expired
// are ignored.
func (r *TokenRepo) Revoke(ctx context.Context, tokenID string, exp time.Time) error {
	ttl := exp.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.rdb.Set(ctx, r.key(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID is on the deny-list.
func (r *TokenRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}
