package platform

import (
	"testing"

	"github.com/abdifahadi/wamedia-bot/internal/types"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		url  string
		want types.PlatformMatch
	}{
		{"https://www.instagram.com/reel/CxYZ123/", types.PlatformMatch{Platform: types.PlatformInstagram, Kind: types.KindReel}},
		{"https://instagram.com/reels/CxYZ123/", types.PlatformMatch{Platform: types.PlatformInstagram, Kind: types.KindReel}},
		{"https://www.instagram.com/p/CxYZ123/?img_index=2", types.PlatformMatch{Platform: types.PlatformInstagram, Kind: types.KindCarousel}},
		{"https://www.instagram.com/somebody/", types.PlatformMatch{Platform: types.PlatformInstagram, Kind: types.KindPost}},
		{"https://www.threads.net/@somebody/post/Cx12", types.PlatformMatch{Platform: types.PlatformThreads, Kind: types.KindPost}},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", types.PlatformMatch{Platform: types.PlatformYouTube, Kind: types.KindVideo}},
		{"https://youtu.be/dQw4w9WgXcQ", types.PlatformMatch{Platform: types.PlatformYouTube, Kind: types.KindVideo}},
		{"https://music.youtube.com/watch?v=abc", types.PlatformMatch{Platform: types.PlatformYouTube, Kind: types.KindVideo}},
		{"ytsearch1:some song artist", types.PlatformMatch{Platform: types.PlatformYouTube, Kind: types.KindVideo}},
		{"https://vt.tiktok.com/ZSUKPdCtm", types.PlatformMatch{Platform: types.PlatformTikTok, Kind: types.KindVideo}},
		{"https://vm.tiktok.com/ZMabc/", types.PlatformMatch{Platform: types.PlatformTikTok, Kind: types.KindVideo}},
		{"https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", types.PlatformMatch{Platform: types.PlatformSpotify, Kind: types.KindTrack}},
		{"https://open.spotify.com/artist/1dfeR4HaWDbWqFHLkxsg1d", types.PlatformMatch{Platform: types.PlatformSpotify, Kind: types.KindUnknown}},
		{"https://x.com/user/status/1234", types.PlatformMatch{Platform: types.PlatformTwitter, Kind: types.KindPost}},
		{"https://fb.watch/abc123/", types.PlatformMatch{Platform: types.PlatformFacebook, Kind: types.KindVideo}},
		{"https://pin.it/abc", types.PlatformMatch{Platform: types.PlatformPinterest, Kind: types.KindImage}},
		{"https://example.com/video.mp4", types.PlatformMatch{Platform: types.PlatformGeneric, Kind: types.KindUnknown}},
		{"not a url at all", types.PlatformMatch{Platform: types.PlatformGeneric, Kind: types.KindUnknown}},
		{"", types.PlatformMatch{Platform: types.PlatformGeneric, Kind: types.KindUnknown}},
	}

	for _, tc := range cases {
		got := Classify(tc.url)
		if got != tc.want {
			t.Fatalf("Classify(%q) = %+v, want %+v", tc.url, got, tc.want)
		}
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	url := "https://www.instagram.com/reel/CxYZ123/"
	first := Classify(url)
	second := Classify(url)
	if first != second {
		t.Fatalf("expected identical matches, got %+v then %+v", first, second)
	}
}

func TestReelNeverFallsBackToGenericPost(t *testing.T) {
	// Path-specific rules sit above the host catch-all; a reordering bug
	// would surface here.
	got := Classify("https://instagram.com/reel/XYZ/")
	if got.Kind != types.KindReel {
		t.Fatalf("expected reel, got %v", got.Kind)
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported("https://youtu.be/abc") {
		t.Fatal("expected youtube URL to be supported")
	}
	if IsSupported("https://example.org/thing") {
		t.Fatal("expected unknown host to be unsupported")
	}
}
