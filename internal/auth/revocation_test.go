package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestDenylist(t *testing.T) (*RedisDenylist, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	d := NewRedisDenylist(rc)
	d.now = func() time.Time { return testEpoch }
	return d, mr
}

func TestRedisDenylist_RevokeThenIsRevoked(t *testing.T) {
	d, mr := newTestDenylist(t)
	ctx := context.Background()

	if err := d.Revoke(ctx, "jti-1", testEpoch.Add(time.Hour)); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	revoked, err := d.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsRevoked() error = %v", err)
	}
	if !revoked {
		t.Error("IsRevoked() = false, want true")
	}

	if ttl := mr.TTL(revokedKeyPrefix + "jti-1"); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h (remaining token lifetime)", ttl)
	}

	other, err := d.IsRevoked(ctx, "jti-2")
	if err != nil {
		t.Fatalf("IsRevoked() error = %v", err)
	}
	if other {
		t.Error("unrelated token reported as revoked")
	}
}

func TestRedisDenylist_EntryExpiresWithToken(t *testing.T) {
	d, mr := newTestDenylist(t)
	ctx := context.Background()

	if err := d.Revoke(ctx, "jti-1", testEpoch.Add(time.Minute)); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	mr.FastForward(time.Minute + time.Second)

	revoked, err := d.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsRevoked() error = %v", err)
	}
	if revoked {
		t.Error("entry should expire together with the token")
	}
}

func TestRedisDenylist_ExpiredOrEmpty_NotStored(t *testing.T) {
	d, mr := newTestDenylist(t)
	ctx := context.Background()

	if err := d.Revoke(ctx, "jti-old", testEpoch.Add(-time.Second)); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if err := d.Revoke(ctx, "", testEpoch.Add(time.Hour)); err != nil {
		t.Fatalf("Revoke(empty) error = %v", err)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("keys = %v, want none", keys)
	}
}

func TestRedisDenylist_BackendDown_ReturnsError(t *testing.T) {
	d, mr := newTestDenylist(t)
	mr.Close()

	if _, err := d.IsRevoked(context.Background(), "jti-1"); err == nil {
		t.Fatal("expected error when redis is unavailable")
	}
	if err := d.Revoke(context.Background(), "jti-1", testEpoch.Add(time.Hour)); err == nil {
		t.Fatal("expected error when redis is unavailable")
	}
}

func TestNewRedisClient_InvalidURL_ReturnsError(t *testing.T) {
	if _, err := NewRedisClient("http://not-redis"); err == nil {
		t.Fatal("expected error for non-redis URL")
	}
	rc, err := NewRedisClient("redis://localhost:6379/0")
	if err != nil {
		t.Fatalf("NewRedisClient() error = %v", err)
	}
	rc.Close()
}

func TestNopDenylist_NeverRevokes(t *testing.T) {
	var d Denylist = NopDenylist{}
	ctx := context.Background()

	if err := d.Revoke(ctx, "jti-1", testEpoch.Add(time.Hour)); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	revoked, err := d.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Errorf("IsRevoked() = %v, %v; want false, nil", revoked, err)
	}
}
