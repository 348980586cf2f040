package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revocationKeyPrefix = "taskhub:revoked:"

// RevocationList records logged-out token IDs in Redis until their natural
// expiry. A nil *RevocationList is valid and degrades to stateless JWTs:
// Revoke becomes a no-op and IsRevoked always reports false.
type RevocationList struct {
	rdb *redis.Client
}

// NewRevocationList connects to Redis at the given URL.
func NewRevocationList(redisURL string) (*RevocationList, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return &RevocationList{rdb: redis.NewClient(opts)}, nil
}

// Revoke marks the token ID as revoked for the remainder of its lifetime.
func (r *RevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if r == nil || r.rdb == nil || jti == "" {
		return nil
	}
	if ttl <= 0 {
		// Token already expired, nothing to record.
		return nil
	}
	return r.rdb.Set(ctx, revocationKeyPrefix+jti, "1", ttl).Err()
}

// IsRevoked reports whether the token ID has been revoked.
func (r *RevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if r == nil || r.rdb == nil || jti == "" {
		return false, nil
	}
	n, err := r.rdb.Exists(ctx, revocationKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation list: %w", err)
	}
	return n > 0, nil
}

// Close releases the Redis connection.
func (r *RevocationList) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}
