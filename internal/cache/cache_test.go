package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/abdifahadi/wamedia-bot/internal/types"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		t.Fatalf("Failed to connect to test Redis: %v", err)
	}

	return redisClient, func() {
		redisClient.Close()
		mr.Close()
	}
}

func TestInfoCacheRoundTrip(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	c := NewInfoCache(redisClient)
	ctx := context.Background()
	url := "https://youtu.be/dQw4w9WgXcQ"

	// Miss before set
	got, err := c.Get(ctx, url)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != nil {
		t.Fatal("Expected miss before set")
	}

	info := &types.MediaInfo{
		Title:    "Some Video",
		Duration: 212,
		Uploader: "Someone",
		Platform: types.PlatformYouTube,
		Renditions: []types.Rendition{
			{Label: "720p", EstimatedSize: 40 << 20, Container: "mp4", FormatRef: "720p", Kind: types.RequestVideo},
		},
	}
	if err := c.Set(ctx, url, info); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got, err = c.Get(ctx, url)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got == nil || got.Title != "Some Video" || len(got.Renditions) != 1 {
		t.Fatalf("Round trip mismatch: %+v", got)
	}

	c.Invalidate(ctx, url)
	got, _ = c.Get(ctx, url)
	if got != nil {
		t.Fatal("Expected miss after invalidate")
	}
}

func TestInfoCacheKeysAreURLScoped(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	c := NewInfoCache(redisClient)
	ctx := context.Background()

	c.Set(ctx, "https://youtu.be/aaa", &types.MediaInfo{Title: "A"})
	c.Set(ctx, "https://youtu.be/bbb", &types.MediaInfo{Title: "B"})

	a, _ := c.Get(ctx, "https://youtu.be/aaa")
	b, _ := c.Get(ctx, "https://youtu.be/bbb")
	if a == nil || b == nil || a.Title == b.Title {
		t.Fatalf("URL scoping broken: %+v %+v", a, b)
	}
}
