package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// revokedKeyPrefix は失効済みトークンIDを格納するRedisキーの接頭辞。
const revokedKeyPrefix = "panchsetu:revoked:"

// Denylist はログアウト済みトークンの失効リスト。
// トークン自体はステートレスなため、有効期限までの間だけIDを保持すれば十分である。
type Denylist interface {
	// Revoke はトークンIDを until まで失効扱いにする。
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	// IsRevoked はトークンIDが失効済みかどうかを返す。
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// NopDenylist は何も記録しない失効リスト。
// この場合ログアウトはクライアント側のCookie削除のみとなり、発行済みトークンは期限まで有効なまま残る。
type NopDenylist struct{}

// Revoke は何もしない。
func (NopDenylist) Revoke(context.Context, string, time.Time) error { return nil }

// IsRevoked は常にfalseを返す。
func (NopDenylist) IsRevoked(context.Context, string) (bool, error) { return false, nil }

// RedisDenylist はRedisのTTL付きキーで失効リストを保持する。
type RedisDenylist struct {
	rc  *redis.Client
	now func() time.Time
}

// NewRedisDenylist はRedisDenylistを生成する。
func NewRedisDenylist(rc *redis.Client) *RedisDenylist {
	return &RedisDenylist{rc: rc, now: time.Now}
}

// NewRedisClient は接続URLからRedisクライアントを生成する。
// 例: "redis://:password@localhost:6379/0"
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Revoke はトークンIDを残り有効期間のTTLで記録する。期限切れのトークンは記録しない。
func (d *RedisDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return nil
	}
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	if err := d.rc.Set(ctx, revokedKeyPrefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked はトークンIDが失効リストに存在するかを返す。
func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	n, err := d.rc.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

// compile-time interface checks
var (
	_ Denylist = NopDenylist{}
	_ Denylist = (*RedisDenylist)(nil)
)
