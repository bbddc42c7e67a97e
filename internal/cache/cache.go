package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/abdifahadi/wamedia-bot/internal/types"
)

// InfoCache keeps enumeration metadata per URL so a user picking a quality
// from the menu does not trigger a second extractor probe.
type InfoCache struct {
	redis *redis.Client
}

func NewInfoCache(redisClient *redis.Client) *InfoCache {
	return &InfoCache{redis: redisClient}
}

// Cache key patterns
const (
	mediaInfoKey = "media:info:%s" // media:info:<urlHash>
)

// Cache durations
const (
	// Rendition lists go stale as platforms rotate signed stream URLs.
	MediaInfoDuration = time.Hour
)

// urlHash derives a fixed-width key from an arbitrary URL.
func urlHash(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached info for a URL, or nil on a miss.
func (c *InfoCache) Get(ctx context.Context, rawURL string) (*types.MediaInfo, error) {
	cached, err := c.redis.Get(ctx, fmt.Sprintf(mediaInfoKey, urlHash(rawURL))).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("info cache get: %w", err)
	}

	var info types.MediaInfo
	if err := json.Unmarshal([]byte(cached), &info); err != nil {
		// A corrupt entry is a miss; it will be overwritten shortly.
		return nil, nil
	}
	return &info, nil
}

// Set caches the enumeration result for a URL.
func (c *InfoCache) Set(ctx context.Context, rawURL string, info *types.MediaInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("info cache encode: %w", err)
	}
	if err := c.redis.Set(ctx, fmt.Sprintf(mediaInfoKey, urlHash(rawURL)), data, MediaInfoDuration).Err(); err != nil {
		return fmt.Errorf("info cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached info for a URL.
func (c *InfoCache) Invalidate(ctx context.Context, rawURL string) {
	c.redis.Del(ctx, fmt.Sprintf(mediaInfoKey, urlHash(rawURL)))
}
