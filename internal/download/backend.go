package download

import (
	"context"
	"errors"

	"github.com/abdifahadi/wamedia-bot/internal/types"
)

// Classified backend failures. Backends wrap these sentinels so the
// orchestrator can branch on error class instead of parsing tool output.
var (
	// ErrAuthRequired means the platform demands session cookies the bot
	// does not possess or whose session has expired. Terminal, no retry.
	ErrAuthRequired = errors.New("authentication required")
	// ErrNotFound covers deleted, private and never-existing content.
	// Terminal, no retry.
	ErrNotFound = errors.New("content not found")
	// ErrNetwork is the transient class that permits one fallback-backend
	// attempt.
	ErrNetwork = errors.New("network error")
)

// Backend is an extraction backend: something able to enumerate the
// downloadable renditions of a URL and fetch one of them to disk.
//
// Fetch writes into destDir using baseName as the filename stem (the
// backend appends whatever extension the stream dictates) and returns the
// final path. A fetch cut short by ctx must not leave partial files for
// the caller; the orchestrator additionally removes destDir on failure.
type Backend interface {
	Name() string
	Enumerate(ctx context.Context, rawURL string, hint types.PlatformMatch) (*types.MediaInfo, error)
	Fetch(ctx context.Context, rawURL string, r types.Rendition, destDir, baseName string) (string, error)
}
