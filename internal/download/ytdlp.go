package download

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/abdifahadi/wamedia-bot/internal/types"
)

// Format selectors per quality label, tuned so each tier lands in its
// height band and prefers a single mp4 when one exists.
var formatSelectors = map[string]string{
	"1080p": "best[height<=1080][height>720][ext=mp4]/best[height<=1080][height>720]/bestvideo[height<=1080][height>720]+bestaudio/best[height<=1080]",
	"720p":  "best[height<=720][height>480][ext=mp4]/best[height<=720][height>480]/bestvideo[height<=720][height>480]+bestaudio/best[height<=720]",
	"480p":  "best[height<=480][height>360][ext=mp4]/best[height<=480][height>360]/bestvideo[height<=480][height>360]+bestaudio/best[height<=480]",
	"360p":  "best[height<=360][height>240][ext=mp4]/best[height<=360][height>240]/bestvideo[height<=360][height>240]+bestaudio/best[height<=360]",
	"240p":  "best[height<=240][height>144][ext=mp4]/best[height<=240][height>144]/bestvideo[height<=240][height>144]+bestaudio/best[height<=240]",
	"144p":  "worst[height<=144][ext=mp4]/worst[height<=144]/bestvideo[height<=144]+bestaudio/worst",
}

const audioSelector = "bestaudio[ext=m4a]/bestaudio/best"

var userAgents = map[types.Platform]string{
	types.PlatformInstagram: "Mozilla/5.0 (iPhone; CPU iPhone OS 14_7_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.2 Mobile/15E148 Safari/604.1",
	types.PlatformFacebook:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/119.0",
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// YtdlpBackend is the primary extraction backend: it shells out to the
// yt-dlp binary, which owns all platform-specific extraction logic.
type YtdlpBackend struct {
	binary           string
	youtubeCookies   string
	instagramCookies string
	audioBitrate     string
	logger           *slog.Logger
}

type YtdlpOptions struct {
	Binary           string
	YouTubeCookies   string
	InstagramCookies string
	AudioBitrate     string
	Logger           *slog.Logger
}

func NewYtdlpBackend(opts YtdlpOptions) *YtdlpBackend {
	if opts.Binary == "" {
		opts.Binary = "yt-dlp"
	}
	if opts.AudioBitrate == "" {
		opts.AudioBitrate = "320"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &YtdlpBackend{
		binary:           opts.Binary,
		youtubeCookies:   opts.YouTubeCookies,
		instagramCookies: opts.InstagramCookies,
		audioBitrate:     opts.AudioBitrate,
		logger:           opts.Logger,
	}
}

func (b *YtdlpBackend) Name() string { return "yt-dlp" }

// probeResult is the slice of yt-dlp's -J output the backend cares about.
type probeResult struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Uploader string  `json:"uploader"`
	Formats  []struct {
		FormatID       string  `json:"format_id"`
		Ext            string  `json:"ext"`
		Height         int     `json:"height"`
		VCodec         string  `json:"vcodec"`
		ACodec         string  `json:"acodec"`
		Filesize       int64   `json:"filesize"`
		FilesizeApprox float64 `json:"filesize_approx"`
	} `json:"formats"`
}

func (b *YtdlpBackend) Enumerate(ctx context.Context, rawURL string, hint types.PlatformMatch) (*types.MediaInfo, error) {
	args := []string{"-J", "--no-playlist", "--no-warnings"}
	args = b.appendAuthArgs(args, hint.Platform)
	args = append(args, rawURL)

	out, stderr, err := b.run(ctx, args)
	if err != nil {
		return nil, classifyToolError(err, stderr)
	}

	var probe probeResult
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("%w: parsing yt-dlp output: %v", ErrNetwork, err)
	}

	info := &types.MediaInfo{
		Title:    probe.Title,
		Duration: int64(probe.Duration),
		Uploader: probe.Uploader,
	}
	if info.Title == "" {
		info.Title = "Downloaded Media"
	}
	info.Renditions = buildRenditions(probe)
	return info, nil
}

// buildRenditions collapses yt-dlp's raw format list into one rendition
// per quality label (smallest known size wins within a label) plus a
// single audio rendition when any audio stream exists.
func buildRenditions(probe probeResult) []types.Rendition {
	byLabel := make(map[string]types.Rendition)
	var bestAudio int64
	var hasAudio bool

	for _, f := range probe.Formats {
		size := f.Filesize
		if size == 0 {
			size = int64(f.FilesizeApprox)
		}

		if f.VCodec != "" && f.VCodec != "none" && f.Height > 0 {
			label := fmt.Sprintf("%dp", normalizeHeight(f.Height))
			selector, ok := formatSelectors[label]
			if !ok {
				selector = f.FormatID
			}
			r := types.Rendition{
				Label:         label,
				EstimatedSize: size,
				Container:     f.Ext,
				FormatRef:     selector,
				Kind:          types.RequestVideo,
			}
			prev, seen := byLabel[label]
			if !seen || betterEstimate(r.EstimatedSize, prev.EstimatedSize) {
				byLabel[label] = r
			}
			continue
		}

		if f.ACodec != "" && f.ACodec != "none" {
			hasAudio = true
			if size > 0 && (bestAudio == 0 || size < bestAudio) {
				bestAudio = size
			}
		}
	}

	renditions := make([]types.Rendition, 0, len(byLabel)+1)
	for _, r := range byLabel {
		renditions = append(renditions, r)
	}
	sort.Slice(renditions, func(i, j int) bool {
		return QualityRank(renditions[i].Label) > QualityRank(renditions[j].Label)
	})

	if hasAudio {
		renditions = append(renditions, types.Rendition{
			Label:     "audio",
			Container: "mp3",
			FormatRef: audioSelector,
			Kind:      types.RequestAudio,
			// mp3 re-encode size differs from the source stream; leave the
			// estimate unknown and let the post-download check decide.
		})
	}
	return renditions
}

// normalizeHeight snaps odd heights onto the standard ladder so 1072p
// phone uploads still land in the 1080p tier.
func normalizeHeight(h int) int {
	ladder := []int{1080, 720, 480, 360, 240, 144}
	for _, step := range ladder {
		if h >= step-step/10 {
			return step
		}
	}
	return 144
}

func betterEstimate(candidate, current int64) bool {
	if candidate == 0 {
		return false
	}
	return current == 0 || candidate < current
}

func (b *YtdlpBackend) Fetch(ctx context.Context, rawURL string, r types.Rendition, destDir, baseName string) (string, error) {
	outTpl := filepath.Join(destDir, baseName+".%(ext)s")

	var args []string
	if r.Kind == types.RequestAudio {
		args = []string{
			"-f", audioSelector,
			"-x", "--audio-format", "mp3",
			"--audio-quality", b.audioBitrate + "K",
		}
	} else {
		args = []string{"-f", r.FormatRef, "--merge-output-format", "mp4"}
	}
	args = append(args,
		"--no-playlist", "-q", "--no-warnings", "--no-progress",
		"--retries", "2", "--socket-timeout", "20",
		"-o", outTpl,
	)
	args = b.appendAuthArgs(args, platformFromURL(rawURL))
	args = append(args, rawURL)

	if _, stderr, err := b.run(ctx, args); err != nil {
		return "", classifyToolError(err, stderr)
	}

	return findProduced(destDir, baseName)
}

// appendAuthArgs adds cookie files and user agents when configured.
// Missing cookie files degrade to unauthenticated access.
func (b *YtdlpBackend) appendAuthArgs(args []string, platform types.Platform) []string {
	cookieFile := ""
	switch platform {
	case types.PlatformYouTube:
		cookieFile = b.youtubeCookies
	case types.PlatformInstagram, types.PlatformThreads:
		cookieFile = b.instagramCookies
	}
	if cookieFile != "" {
		if _, err := os.Stat(cookieFile); err == nil {
			args = append(args, "--cookies", cookieFile)
		} else {
			b.logger.Warn("cookie file missing, continuing unauthenticated",
				"platform", string(platform), "path", cookieFile)
		}
	}

	ua := defaultUserAgent
	if agent, ok := userAgents[platform]; ok {
		ua = agent
	}
	return append(args, "--user-agent", ua)
}

func (b *YtdlpBackend) run(ctx context.Context, args []string) ([]byte, string, error) {
	cmd := exec.CommandContext(ctx, b.binary, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, stderr.String(), err
	}
	return out, "", nil
}

// findProduced locates the single file the tool wrote under destDir.
func findProduced(destDir, baseName string) (string, error) {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", fmt.Errorf("%w: reading download dir: %v", ErrNetwork, err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), baseName) {
			return filepath.Join(destDir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("%w: tool reported success but produced no file", ErrNetwork)
}

// classifyToolError maps tool failures onto the backend error taxonomy by
// inspecting stderr. Context expiry stays a context error so the
// orchestrator can tell a timeout from a tool failure.
func classifyToolError(err error, stderr string) error {
	if err == context.DeadlineExceeded || err == context.Canceled {
		return err
	}
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "login required") ||
		strings.Contains(msg, "cookies") ||
		strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "rate-limit reached") ||
		strings.Contains(msg, "requested content is not available"):
		return fmt.Errorf("%w: %s", ErrAuthRequired, firstLine(stderr))
	case strings.Contains(msg, "404") ||
		strings.Contains(msg, "not found") ||
		strings.Contains(msg, "video unavailable") ||
		strings.Contains(msg, "has been removed") ||
		strings.Contains(msg, "private"):
		return fmt.Errorf("%w: %s", ErrNotFound, firstLine(stderr))
	default:
		return fmt.Errorf("%w: %v: %s", ErrNetwork, err, firstLine(stderr))
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func platformFromURL(rawURL string) types.Platform {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, "youtube") || strings.Contains(lower, "youtu.be") || strings.HasPrefix(lower, "ytsearch"):
		return types.PlatformYouTube
	case strings.Contains(lower, "instagram") || strings.Contains(lower, "instagr.am"):
		return types.PlatformInstagram
	case strings.Contains(lower, "threads.net"):
		return types.PlatformThreads
	default:
		return types.PlatformGeneric
	}
}
