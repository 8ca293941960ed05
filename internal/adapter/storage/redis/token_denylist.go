package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// TokenDenylist stores revoked bearer tokens until their natural expiry.
// Keys are SHA-256 digests, so the denylist never holds usable credentials.
type TokenDenylist struct {
	client *goredis.Client
	prefix string
}

// NewTokenDenylist creates a new Redis-backed token denylist.
func NewTokenDenylist(client *goredis.Client) *TokenDenylist {
	return &TokenDenylist{
		client: client,
		prefix: "denylist:",
	}
}

func (d *TokenDenylist) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return d.prefix + hex.EncodeToString(sum[:])
}

// Revoke marks a token as revoked for ttl, after which the token has
// expired on its own anyway. A non-positive ttl stores nothing.
func (d *TokenDenylist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, d.key(token), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis denylist set: %w", err)
	}
	return nil
}

// IsRevoked reports whether a token has been revoked.
func (d *TokenDenylist) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("redis denylist exists: %w", err)
	}
	return n > 0, nil
}
