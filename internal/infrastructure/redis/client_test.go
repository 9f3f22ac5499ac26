package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestNewClientSuccess(t *testing.T) {
	s := miniredis.RunT(t)

	ctx := context.Background()
	client, err := NewClient(ctx, fmt.Sprintf("redis://%s", s.Addr()))
	if err != nil {
		t.Fatalf("expected client, got error: %v", err)
	}
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestNewClientWithConfigAppliesOptions(t *testing.T) {
	s := miniredis.RunT(t)

	client, err := NewClientWithConfig(context.Background(), ClientConfig{
		URL:         fmt.Sprintf("redis://%s/2", s.Addr()),
		PoolSize:    3,
		DialTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("expected client, got error: %v", err)
	}
	defer client.Close()

	opts := client.Options()
	if opts.PoolSize != 3 || opts.DialTimeout != time.Second || opts.DB != 2 {
		t.Fatalf("options not applied: pool=%d dial=%v db=%d", opts.PoolSize, opts.DialTimeout, opts.DB)
	}
}

func TestNewClientInvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), "://bad-url")
	if err == nil {
		t.Fatalf("expected error for invalid URL")
	}
}

func TestNewClientPingFailure(t *testing.T) {
	s := miniredis.RunT(t)
	url := fmt.Sprintf("redis://%s", s.Addr())
	s.Close()

	_, err := NewClient(context.Background(), url)
	if err == nil {
		t.Fatalf("expected ping error when server is down")
	}
}
