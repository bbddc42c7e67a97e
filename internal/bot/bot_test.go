package bot

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/abdifahadi/wamedia-bot/internal/cache"
	"github.com/abdifahadi/wamedia-bot/internal/ratelimit"
	"github.com/abdifahadi/wamedia-bot/internal/store"
	"github.com/abdifahadi/wamedia-bot/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentMedia struct {
	to      string
	path    string
	caption string
}

type fakeGateway struct {
	texts []string
	media []sentMedia
}

func (f *fakeGateway) SendText(_ context.Context, _, body string) error {
	f.texts = append(f.texts, body)
	return nil
}

func (f *fakeGateway) SendMedia(_ context.Context, to, path, caption string) error {
	f.media = append(f.media, sentMedia{to: to, path: path, caption: caption})
	return nil
}

func (f *fakeGateway) lastText(t *testing.T) string {
	t.Helper()
	if len(f.texts) == 0 {
		t.Fatal("no text messages were sent")
	}
	return f.texts[len(f.texts)-1]
}

type fakeQR struct {
	dir   string
	calls int
	fail  bool
}

func (f *fakeQR) Generate(data string) (string, error) {
	f.calls++
	if f.fail {
		return "", os.ErrInvalid
	}
	path := filepath.Join(f.dir, "qr.png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeDownloader struct {
	info      *types.MediaInfo
	outcome   *types.DownloadOutcome
	dir       string
	requests  []types.MediaRequest
	enumCalls int
}

func (f *fakeDownloader) Enumerate(_ context.Context, _ string, _ types.PlatformMatch) (*types.MediaInfo, types.OutcomeStatus) {
	f.enumCalls++
	if f.info == nil {
		return nil, types.StatusBackendError
	}
	return f.info, types.StatusSuccess
}

func (f *fakeDownloader) Download(_ context.Context, req types.MediaRequest, _ types.PlatformMatch) *types.DownloadOutcome {
	f.requests = append(f.requests, req)
	if f.outcome.Status == types.StatusSuccess && f.outcome.LocalPath == "" {
		path := filepath.Join(f.dir, "media.mp4")
		if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
			panic(err)
		}
		out := *f.outcome
		out.LocalPath = path
		return &out
	}
	return f.outcome
}

type testEnv struct {
	svc        *Service
	gateway    *fakeGateway
	qr         *fakeQR
	downloader *fakeDownloader
	sessions   *store.SessionStore
	infoCache  *cache.InfoCache
}

func setupService(t *testing.T) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	gw := &fakeGateway{}
	qr := &fakeQR{dir: t.TempDir()}
	dl := &fakeDownloader{
		dir: t.TempDir(),
		info: &types.MediaInfo{
			Title:    "Test Video",
			Duration: 125,
			Uploader: "Creator",
			Platform: types.PlatformYouTube,
			Renditions: []types.Rendition{
				{Label: "1080p", Kind: types.RequestVideo},
				{Label: "720p", Kind: types.RequestVideo},
				{Label: "mp3", Kind: types.RequestAudio},
			},
		},
		outcome: &types.DownloadOutcome{
			Status: types.StatusSuccess,
			Title:  "Test Video",
			ChosenRendition: &types.Rendition{
				Label: "720p",
				Kind:  types.RequestVideo,
			},
		},
	}
	sessions := store.NewSessionStore(client)
	infoCache := cache.NewInfoCache(client)

	svc := NewService(Options{
		Gateway:         gw,
		QR:              qr,
		Downloader:      dl,
		Sessions:        sessions,
		InfoCache:       infoCache,
		DownloadLimiter: ratelimit.NewTokenBucket(client, 5, 5),
		QRLimiter:       ratelimit.NewTokenBucket(client, 10, 10),
		Logger:          discardLogger(),
	})

	return &testEnv{svc: svc, gateway: gw, qr: qr, downloader: dl, sessions: sessions, infoCache: infoCache}
}

func TestStartCommandGreetsByName(t *testing.T) {
	env := setupService(t)

	env.svc.HandleMessage(context.Background(), "15550001111", "Rahim", "start")

	got := env.gateway.lastText(t)
	if !strings.Contains(got, "Hello Rahim") {
		t.Errorf("welcome message missing name, got: %s", got)
	}
}

func TestCommandAliases(t *testing.T) {
	env := setupService(t)

	for _, cmd := range []string{"/start", "HELLO", "hi", "menu"} {
		env.gateway.texts = nil
		env.svc.HandleMessage(context.Background(), "15550001111", "User", cmd)
		if !strings.Contains(env.gateway.lastText(t), "Welcome to Abdi WhatsApp Bot") {
			t.Errorf("command %q did not produce the welcome message", cmd)
		}
	}
}

func TestQRFlow(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	user := "15550002222"

	env.svc.HandleMessage(ctx, user, "User", "qr")

	state, err := env.sessions.Get(ctx, user)
	if err != nil {
		t.Fatalf("loading session: %v", err)
	}
	if state.Mode != types.ModeAwaitingQRText {
		t.Fatalf("expected mode %s after qr command, got %s", types.ModeAwaitingQRText, state.Mode)
	}

	env.svc.HandleMessage(ctx, user, "User", "https://example.com/payload")

	if env.qr.calls != 1 {
		t.Errorf("expected 1 QR generation, got %d", env.qr.calls)
	}
	if len(env.gateway.media) != 1 {
		t.Fatalf("expected 1 media send, got %d", len(env.gateway.media))
	}
	if !strings.Contains(env.gateway.media[0].caption, "QR Code for") {
		t.Errorf("unexpected QR caption: %s", env.gateway.media[0].caption)
	}

	state, _ = env.sessions.Get(ctx, user)
	if state.Mode != types.ModeIdle {
		t.Errorf("session not cleared after QR delivery, mode=%s", state.Mode)
	}
}

func TestUnsupportedURL(t *testing.T) {
	env := setupService(t)

	env.svc.HandleMessage(context.Background(), "15550003333", "User", "https://vimeo.com/12345")

	if !strings.Contains(env.gateway.lastText(t), "Unsupported Platform") {
		t.Errorf("expected unsupported platform reply, got: %s", env.gateway.lastText(t))
	}
	if len(env.downloader.requests) != 0 {
		t.Errorf("download should not run for unsupported URLs")
	}
}

func TestSpotifyDegradesToExplanation(t *testing.T) {
	env := setupService(t)

	env.svc.HandleMessage(context.Background(), "15550004444", "User", "https://open.spotify.com/track/abc123")

	if !strings.Contains(env.gateway.lastText(t), "ytsearch") {
		t.Errorf("expected spotify guidance reply, got: %s", env.gateway.lastText(t))
	}
	if len(env.downloader.requests) != 0 {
		t.Errorf("download should not run for spotify URLs")
	}
}

func TestDirectDownloadFlow(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	env.svc.HandleMessage(ctx, "15550005555", "User", "https://vt.tiktok.com/ZSUKPdCtm/")

	if len(env.downloader.requests) != 1 {
		t.Fatalf("expected 1 download request, got %d", len(env.downloader.requests))
	}
	req := env.downloader.requests[0]
	if req.RequestedKind != types.RequestAuto {
		t.Errorf("expected auto kind for direct download, got %s", req.RequestedKind)
	}

	if len(env.gateway.media) != 1 {
		t.Fatalf("expected 1 media send, got %d", len(env.gateway.media))
	}
	caption := env.gateway.media[0].caption
	if !strings.Contains(caption, "Test Video") || !strings.Contains(caption, "Tiktok") {
		t.Errorf("unexpected caption: %s", caption)
	}

	if _, err := os.Stat(env.gateway.media[0].path); !os.IsNotExist(err) {
		t.Errorf("delivered file was not cleaned up: %s", env.gateway.media[0].path)
	}
}

func TestYouTubeQualityMenuFlow(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	user := "15550006666"
	url := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

	env.svc.HandleMessage(ctx, user, "User", url)

	menu := env.gateway.lastText(t)
	if !strings.Contains(menu, "Choose Quality") || !strings.Contains(menu, "1080p") {
		t.Fatalf("expected quality menu, got: %s", menu)
	}
	if len(env.downloader.requests) != 0 {
		t.Fatalf("download must wait for a quality choice")
	}

	state, err := env.sessions.Get(ctx, user)
	if err != nil {
		t.Fatalf("loading session: %v", err)
	}
	if state.Mode != types.ModeAwaitingQuality {
		t.Fatalf("expected mode %s, got %s", types.ModeAwaitingQuality, state.Mode)
	}
	if state.PendingRequest == nil || state.PendingRequest.SourceURL != url {
		t.Fatalf("pending request not stored")
	}

	env.svc.HandleMessage(ctx, user, "User", "720p")

	if len(env.downloader.requests) != 1 {
		t.Fatalf("expected 1 download after quality choice, got %d", len(env.downloader.requests))
	}
	req := env.downloader.requests[0]
	if req.Quality != "720p" || req.RequestedKind != types.RequestVideo {
		t.Errorf("expected pinned 720p video, got quality=%q kind=%s", req.Quality, req.RequestedKind)
	}

	state, _ = env.sessions.Get(ctx, user)
	if state.Mode != types.ModeIdle {
		t.Errorf("session not cleared after download, mode=%s", state.Mode)
	}
}

func TestQualityMenuAudioChoice(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	user := "15550007777"

	env.svc.HandleMessage(ctx, user, "User", "https://youtu.be/dQw4w9WgXcQ")
	env.svc.HandleMessage(ctx, user, "User", "mp3")

	if len(env.downloader.requests) != 1 {
		t.Fatalf("expected 1 download, got %d", len(env.downloader.requests))
	}
	if env.downloader.requests[0].RequestedKind != types.RequestAudio {
		t.Errorf("expected audio request, got %s", env.downloader.requests[0].RequestedKind)
	}
}

func TestQualityMenuCancel(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	user := "15550008888"

	env.svc.HandleMessage(ctx, user, "User", "https://youtu.be/dQw4w9WgXcQ")
	env.svc.HandleMessage(ctx, user, "User", "cancel")

	if !strings.Contains(env.gateway.lastText(t), "Welcome to Abdi WhatsApp Bot") {
		t.Errorf("cancel should return to the main menu")
	}
	state, _ := env.sessions.Get(ctx, user)
	if state.Mode != types.ModeIdle {
		t.Errorf("session not cleared on cancel, mode=%s", state.Mode)
	}
	if len(env.downloader.requests) != 0 {
		t.Errorf("download must not run after cancel")
	}
}

func TestEnumerationUsesCache(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	url := "https://youtu.be/dQw4w9WgXcQ"

	env.svc.HandleMessage(ctx, "15550009999", "User", url)
	env.svc.HandleMessage(ctx, "15550009999", "User", "cancel")
	env.svc.HandleMessage(ctx, "15550009999", "User", url)

	if env.downloader.enumCalls != 1 {
		t.Errorf("expected 1 extractor enumeration (second served from cache), got %d", env.downloader.enumCalls)
	}
}

func TestDownloadFailureReplies(t *testing.T) {
	cases := []struct {
		status types.OutcomeStatus
		want   string
	}{
		{types.StatusTooLarge, "File Too Large"},
		{types.StatusAuthRequired, "Login Required"},
		{types.StatusTimeout, "Timed Out"},
		{types.StatusNotFound, "Content Not Found"},
		{types.StatusBackendError, "Download Failed"},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			env := setupService(t)
			env.downloader.outcome = &types.DownloadOutcome{Status: tc.status, Message: "extractor failed"}

			env.svc.HandleMessage(context.Background(), "15550001010", "User", "https://vt.tiktok.com/ZSUKPdCtm/")

			if !strings.Contains(env.gateway.lastText(t), tc.want) {
				t.Errorf("status %s: expected reply containing %q, got: %s", tc.status, tc.want, env.gateway.lastText(t))
			}
			if len(env.gateway.media) != 0 {
				t.Errorf("status %s: no media should be sent on failure", tc.status)
			}
		})
	}
}

func TestNotFoundDropsCachedInfo(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	user := "15550001111"
	url := "https://youtu.be/dQw4w9WgXcQ"

	env.svc.HandleMessage(ctx, user, "User", url)
	if info, _ := env.infoCache.Get(ctx, url); info == nil {
		t.Fatal("enumeration result should be cached after the quality menu")
	}

	env.downloader.outcome = &types.DownloadOutcome{Status: types.StatusNotFound}
	env.svc.HandleMessage(ctx, user, "User", "720p")

	if info, _ := env.infoCache.Get(ctx, url); info != nil {
		t.Error("cached info must be dropped when the content turns out to be gone")
	}
}

func TestDownloadRateLimit(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	user := "15550001212"

	for i := 0; i < 5; i++ {
		env.svc.HandleMessage(ctx, user, "User", "https://vt.tiktok.com/ZSUKPdCtm/")
	}
	env.gateway.texts = nil
	env.svc.HandleMessage(ctx, user, "User", "https://vt.tiktok.com/ZSUKPdCtm/")

	if !strings.Contains(env.gateway.lastText(t), "Slow Down") {
		t.Errorf("expected rate limit reply, got: %s", env.gateway.lastText(t))
	}
	if len(env.downloader.requests) != 5 {
		t.Errorf("expected 5 downloads before limiting, got %d", len(env.downloader.requests))
	}
}

func TestFallbackReply(t *testing.T) {
	env := setupService(t)

	env.svc.HandleMessage(context.Background(), "15550001313", "Karim", "what is this")

	got := env.gateway.lastText(t)
	if !strings.Contains(got, "Hello Karim") || !strings.Contains(got, "what is this") {
		t.Errorf("unexpected fallback reply: %s", got)
	}
}
