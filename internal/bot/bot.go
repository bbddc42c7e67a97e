package bot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/abdifahadi/wamedia-bot/internal/cache"
	"github.com/abdifahadi/wamedia-bot/internal/download"
	"github.com/abdifahadi/wamedia-bot/internal/platform"
	"github.com/abdifahadi/wamedia-bot/internal/ratelimit"
	"github.com/abdifahadi/wamedia-bot/internal/store"
	"github.com/abdifahadi/wamedia-bot/internal/types"
)

// Gateway sends outbound messages. Satisfied by wa.Client.
type Gateway interface {
	SendText(ctx context.Context, to, body string) error
	SendMedia(ctx context.Context, to, path, caption string) error
}

// QRGenerator produces a QR image file for a payload.
type QRGenerator interface {
	Generate(data string) (string, error)
}

// Downloader enumerates and downloads media. Satisfied by
// download.Orchestrator.
type Downloader interface {
	Enumerate(ctx context.Context, rawURL string, match types.PlatformMatch) (*types.MediaInfo, types.OutcomeStatus)
	Download(ctx context.Context, req types.MediaRequest, match types.PlatformMatch) *types.DownloadOutcome
}

// Service routes inbound messages to the download, QR and reply flows.
type Service struct {
	gateway    Gateway
	qr         QRGenerator
	downloader Downloader
	sessions   *store.SessionStore
	infoCache  *cache.InfoCache
	limiter    *ratelimit.TokenBucket
	qrLimiter  *ratelimit.TokenBucket
	logger     *slog.Logger
}

type Options struct {
	Gateway         Gateway
	QR              QRGenerator
	Downloader      Downloader
	Sessions        *store.SessionStore
	InfoCache       *cache.InfoCache
	DownloadLimiter *ratelimit.TokenBucket
	QRLimiter       *ratelimit.TokenBucket
	Logger          *slog.Logger
}

func NewService(opts Options) *Service {
	return &Service{
		gateway:    opts.Gateway,
		qr:         opts.QR,
		downloader: opts.Downloader,
		sessions:   opts.Sessions,
		infoCache:  opts.InfoCache,
		limiter:    opts.DownloadLimiter,
		qrLimiter:  opts.QRLimiter,
		logger:     opts.Logger,
	}
}

// HandleMessage processes one inbound text message. Errors are logged and
// turned into user-facing replies; the caller never needs to retry.
func (s *Service) HandleMessage(ctx context.Context, from, name, text string) {
	if err := s.sessions.SaveUser(ctx, from, name); err != nil {
		s.logger.Warn("saving user profile", slog.String("user", from), slog.String("error", err.Error()))
	}

	state, err := s.sessions.Get(ctx, from)
	if err != nil {
		s.logger.Warn("loading session", slog.String("user", from), slog.String("error", err.Error()))
	}

	switch state.Mode {
	case types.ModeAwaitingQRText:
		s.handleQRText(ctx, from, text)
		return
	case types.ModeAwaitingQuality:
		if s.handleQualityReply(ctx, from, name, text, state) {
			return
		}
	}

	s.handleCommand(ctx, from, name, text)
}

func (s *Service) handleCommand(ctx context.Context, from, name, text string) {
	cmd := strings.ToLower(strings.TrimSpace(text))

	switch cmd {
	case "start", "/start", "hello", "hi", "menu":
		s.send(ctx, from, welcomeMessage(name))
	case "help", "/help":
		s.send(ctx, from, helpMessage)
	case "download", "/download":
		s.send(ctx, from, downloadMessage)
	case "qr", "/qr", "qr code":
		s.send(ctx, from, qrMessage)
		s.setMode(ctx, from, types.SessionState{UserID: from, Mode: types.ModeAwaitingQRText})
	case "about", "/about":
		s.send(ctx, from, aboutMessage)
	case "subscribe", "/subscribe":
		s.send(ctx, from, subscribeMessage)
	default:
		if isURL(cmd) || strings.HasPrefix(cmd, "ytsearch") {
			s.handleURL(ctx, from, strings.TrimSpace(text))
			return
		}
		s.send(ctx, from, fallbackMessage(name, text))
	}
}

func (s *Service) handleURL(ctx context.Context, from, rawURL string) {
	match := platform.Classify(rawURL)

	if match.Platform == types.PlatformGeneric {
		s.send(ctx, from, unsupportedMessage)
		return
	}
	if match.Platform == types.PlatformSpotify {
		s.send(ctx, from, spotifyMessage)
		return
	}

	allowed, err := s.limiter.Allow(ctx, from, ratelimit.ActionDownload)
	if err != nil {
		s.logger.Warn("rate limit check", slog.String("error", err.Error()))
		allowed = true
	}
	if !allowed {
		s.send(ctx, from, rateLimitMessage)
		return
	}

	if match.Platform == types.PlatformYouTube {
		s.showQualityMenu(ctx, from, rawURL, match)
		return
	}

	req := types.MediaRequest{
		SourceURL:     rawURL,
		RequesterID:   from,
		RequestedKind: types.RequestAuto,
	}
	s.runDownload(ctx, from, req, match)
}

// showQualityMenu enumerates the URL (cache-first) and asks the user to
// pick a quality before downloading.
func (s *Service) showQualityMenu(ctx context.Context, from, rawURL string, match types.PlatformMatch) {
	s.send(ctx, from, processingMessage(rawURL))

	info, err := s.infoCache.Get(ctx, rawURL)
	if err != nil {
		s.logger.Warn("media info cache read", slog.String("error", err.Error()))
	}
	if info == nil {
		var status types.OutcomeStatus
		info, status = s.downloader.Enumerate(ctx, rawURL, match)
		if info == nil {
			s.send(ctx, from, enumerateFailureMessage(status))
			return
		}
		if err := s.infoCache.Set(ctx, rawURL, info); err != nil {
			s.logger.Warn("media info cache write", slog.String("error", err.Error()))
		}
	}

	s.send(ctx, from, qualityMenuMessage(info))

	s.setMode(ctx, from, types.SessionState{
		UserID: from,
		Mode:   types.ModeAwaitingQuality,
		PendingRequest: &types.MediaRequest{
			SourceURL:     rawURL,
			RequesterID:   from,
			RequestedKind: types.RequestAuto,
		},
	})
}

// handleQualityReply consumes a message while a quality menu is pending.
// It reports whether the message was fully handled; unrecognized input
// falls through to normal command handling with the menu still open.
func (s *Service) handleQualityReply(ctx context.Context, from, name, text string, state types.SessionState) bool {
	choice := strings.ToLower(strings.TrimSpace(text))

	switch choice {
	case "back", "menu", "cancel":
		s.clearMode(ctx, from)
		s.send(ctx, from, welcomeMessage(name))
		return true
	}

	sel, ok := qualityChoices[choice]
	if !ok || state.PendingRequest == nil {
		return false
	}

	req := *state.PendingRequest
	req.RequestedKind = sel.kind
	req.Quality = sel.label
	s.clearMode(ctx, from)

	match := platform.Classify(req.SourceURL)
	s.runDownload(ctx, from, req, match)
	return true
}

type qualitySelection struct {
	label string
	kind  types.RequestedKind
}

var qualityChoices = map[string]qualitySelection{
	"1080p": {label: "1080p", kind: types.RequestVideo},
	"720p":  {label: "720p", kind: types.RequestVideo},
	"480p":  {label: "480p", kind: types.RequestVideo},
	"360p":  {label: "360p", kind: types.RequestVideo},
	"mp3":   {label: "", kind: types.RequestAudio},
	"audio": {label: "", kind: types.RequestAudio},
}

// runDownload executes the download and delivers the result. The local
// file is removed after delivery regardless of send success.
func (s *Service) runDownload(ctx context.Context, from string, req types.MediaRequest, match types.PlatformMatch) {
	s.send(ctx, from, downloadingMessage(req))

	out := s.downloader.Download(ctx, req, match)

	if out.Status != types.StatusSuccess {
		if out.Status == types.StatusNotFound {
			// Cached metadata for removed content is stale.
			s.infoCache.Invalidate(ctx, req.SourceURL)
		}
		s.logger.Info("download did not complete",
			slog.String("user", from),
			slog.String("status", string(out.Status)),
		)
		s.send(ctx, from, failureMessage(out))
		return
	}

	caption := mediaCaption(out, match)
	if err := s.gateway.SendMedia(ctx, from, out.LocalPath, caption); err != nil {
		s.logger.Error("sending media", slog.String("user", from), slog.String("error", err.Error()))
		s.send(ctx, from, "❌ Failed to send media file. Please try again.")
	}
	if err := os.Remove(out.LocalPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("removing delivered file", slog.String("path", out.LocalPath), slog.String("error", err.Error()))
	}
}

func (s *Service) handleQRText(ctx context.Context, from, text string) {
	defer s.clearMode(ctx, from)

	allowed, err := s.qrLimiter.Allow(ctx, from, ratelimit.ActionQR)
	if err != nil {
		s.logger.Warn("rate limit check", slog.String("error", err.Error()))
		allowed = true
	}
	if !allowed {
		s.send(ctx, from, rateLimitMessage)
		return
	}

	path, err := s.qr.Generate(text)
	if err != nil {
		s.logger.Error("qr generation", slog.String("error", err.Error()))
		s.send(ctx, from, qrFailureMessage)
		return
	}
	defer os.Remove(path)

	if err := s.gateway.SendMedia(ctx, from, path, qrCaption(text)); err != nil {
		s.logger.Error("sending qr", slog.String("user", from), slog.String("error", err.Error()))
		s.send(ctx, from, "❌ Failed to send QR code. Please try again.")
	}
}

func (s *Service) send(ctx context.Context, to, body string) {
	if err := s.gateway.SendText(ctx, to, body); err != nil {
		s.logger.Error("sending reply", slog.String("user", to), slog.String("error", err.Error()))
	}
}

func (s *Service) setMode(ctx context.Context, userID string, state types.SessionState) {
	if err := s.sessions.Set(ctx, state); err != nil {
		s.logger.Warn("saving session", slog.String("user", userID), slog.String("error", err.Error()))
	}
}

func (s *Service) clearMode(ctx context.Context, userID string) {
	if err := s.sessions.Clear(ctx, userID); err != nil {
		s.logger.Warn("clearing session", slog.String("user", userID), slog.String("error", err.Error()))
	}
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// qualityMenuMessage lists the available video labels plus the audio
// option, best first.
func qualityMenuMessage(info *types.MediaInfo) string {
	labels := make([]string, 0, len(info.Renditions))
	seen := make(map[string]bool)
	for _, r := range info.Renditions {
		if r.Kind != types.RequestVideo || seen[r.Label] {
			continue
		}
		seen[r.Label] = true
		labels = append(labels, r.Label)
	}
	sort.Slice(labels, func(i, j int) bool {
		return download.QualityRank(labels[i]) > download.QualityRank(labels[j])
	})

	var b strings.Builder
	fmt.Fprintf(&b, "✨ *%s*\n\n", info.Title)
	fmt.Fprintf(&b, "📅 %s%s\n", info.Uploader, durationSuffix(info.Duration))
	fmt.Fprintf(&b, "🔗 %s\n\n", titleCase(string(info.Platform)))
	b.WriteString("🎥 *Choose Quality:*\n\n🎬 *Video Options:*\n")
	for _, l := range labels {
		fmt.Fprintf(&b, "• %s\n", l)
	}
	b.WriteString("\n🎵 *Audio Only:*\n• MP3 320kbps\n\n")
	b.WriteString("Reply with one of: ")
	b.WriteString(strings.Join(append(labels, "mp3"), ", "))
	return b.String()
}

func durationSuffix(seconds int64) string {
	if seconds <= 0 {
		return ""
	}
	return fmt.Sprintf(" • %d:%02d", seconds/60, seconds%60)
}

func mediaCaption(out *types.DownloadOutcome, match types.PlatformMatch) string {
	title := out.Title
	if title == "" {
		title = "Downloaded Media"
	}
	mediaType := "Media"
	if out.ChosenRendition != nil {
		switch out.ChosenRendition.Kind {
		case types.RequestAudio:
			mediaType = "Audio (MP3)"
		case types.RequestImage:
			mediaType = "Image"
		default:
			mediaType = out.ChosenRendition.Label + " Video"
		}
	}
	return fmt.Sprintf("✨ *%s*\n\n📱 %s\n🔗 From: %s\n\n🚀 Downloaded by @abdifahadi bot",
		title, mediaType, titleCase(string(match.Platform)))
}

func qrCaption(text string) string {
	preview := text
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return fmt.Sprintf("📲 QR Code for: %s\n\n✨ Generated by @abdifahadi", preview)
}

func downloadingMessage(req types.MediaRequest) string {
	what := "your media"
	switch {
	case req.RequestedKind == types.RequestAudio:
		what = "Audio (MP3)"
	case req.Quality != "":
		what = req.Quality + " Video"
	}
	return fmt.Sprintf("🔄 *Downloading %s...*\n\n🚀 Please wait while I prepare your media.", what)
}

func processingMessage(rawURL string) string {
	return fmt.Sprintf("🔄 *Processing your link...*\n\nURL: %s\n\n🚀 Fetching media details, please wait...", rawURL)
}

func failureMessage(out *types.DownloadOutcome) string {
	switch out.Status {
	case types.StatusTooLarge:
		return "❌ *File Too Large*\n\nEvery available version of this media is over the WhatsApp size limit.\n\nTry the audio version with *mp3*, or a different link."
	case types.StatusAuthRequired:
		return "❌ *Login Required*\n\nThis content needs an account to access, so I can't download it.\n\nPlease try a public link."
	case types.StatusTimeout:
		return "❌ *Download Timed Out*\n\nThe download took too long even at a lower quality.\n\nPlease try again later or pick a smaller quality."
	case types.StatusNotFound:
		return "❌ *Content Not Found*\n\nThe media may have been removed or the link is wrong.\n\nPlease check the link and try again."
	default:
		return fmt.Sprintf("❌ *Download Failed*\n\nError: %s\n\nPlease try again or try a different link.", out.Message)
	}
}

func enumerateFailureMessage(status types.OutcomeStatus) string {
	return failureMessage(&types.DownloadOutcome{Status: status, Message: "could not read media details"})
}

func titleCase(s string) string {
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
