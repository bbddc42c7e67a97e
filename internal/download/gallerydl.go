package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/abdifahadi/wamedia-bot/internal/types"
)

// GalleryDLBackend is the secondary extraction strategy. gallery-dl covers
// the image and post oriented platforms (Instagram carousels, Pinterest,
// Twitter images) that yt-dlp occasionally refuses, which makes it the
// fallback for transient primary failures.
type GalleryDLBackend struct {
	binary           string
	instagramCookies string
	logger           *slog.Logger
}

func NewGalleryDLBackend(binary, instagramCookies string, logger *slog.Logger) *GalleryDLBackend {
	if binary == "" {
		binary = "gallery-dl"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GalleryDLBackend{binary: binary, instagramCookies: instagramCookies, logger: logger}
}

func (b *GalleryDLBackend) Name() string { return "gallery-dl" }

// Enumerate lists direct media URLs with -g. gallery-dl reports no sizes,
// so every rendition carries an unknown estimate and the post-download
// check is the only size gate.
func (b *GalleryDLBackend) Enumerate(ctx context.Context, rawURL string, hint types.PlatformMatch) (*types.MediaInfo, error) {
	args := b.withAuth([]string{"-g"})
	args = append(args, rawURL)

	cmd := exec.CommandContext(ctx, b.binary, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, classifyToolError(err, stderr.String())
	}

	lines := nonEmptyLines(string(out))
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no media at url", ErrNotFound)
	}

	kind := types.RequestImage
	if hint.Kind == types.KindVideo || hint.Kind == types.KindReel {
		kind = types.RequestVideo
	}

	renditions := make([]types.Rendition, 0, len(lines))
	for i, direct := range lines {
		renditions = append(renditions, types.Rendition{
			Label:     "original",
			Container: strings.TrimPrefix(filepath.Ext(direct), "."),
			FormatRef: fmt.Sprintf("%d", i),
			Kind:      kind,
		})
	}

	return &types.MediaInfo{
		Title:      titleCase(string(hint.Platform)) + " content",
		Renditions: renditions,
	}, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (b *GalleryDLBackend) Fetch(ctx context.Context, rawURL string, r types.Rendition, destDir, baseName string) (string, error) {
	args := b.withAuth([]string{
		"-D", destDir,
		"-f", baseName + ".{extension}",
		"--range", rangeFor(r.FormatRef),
	})
	args = append(args, rawURL)

	cmd := exec.CommandContext(ctx, b.binary, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", classifyToolError(err, stderr.String())
	}

	return findProduced(destDir, baseName)
}

func (b *GalleryDLBackend) withAuth(args []string) []string {
	if b.instagramCookies != "" {
		if _, err := os.Stat(b.instagramCookies); err == nil {
			args = append(args, "--cookies", b.instagramCookies)
		} else {
			b.logger.Warn("cookie file missing, continuing unauthenticated",
				"path", b.instagramCookies)
		}
	}
	return args
}

// rangeFor turns the zero-based rendition index into gallery-dl's
// one-based --range value.
func rangeFor(ref string) string {
	idx := 0
	fmt.Sscanf(ref, "%d", &idx)
	return fmt.Sprintf("%d", idx+1)
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
