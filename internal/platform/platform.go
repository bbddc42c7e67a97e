package platform

import (
	"net/url"
	"strings"

	"github.com/abdifahadi/wamedia-bot/internal/types"
)

// rule matches a lowercased host plus an optional path fragment. Rules are
// evaluated in order and the first match wins, so specific path rules
// (instagram reels) must stay above their catch-all host rule.
type rule struct {
	hosts    []string
	pathPart string
	match    types.PlatformMatch
}

var rules = []rule{
	{hosts: []string{"instagram.com", "instagr.am"}, pathPart: "/reel", match: types.PlatformMatch{Platform: types.PlatformInstagram, Kind: types.KindReel}},
	{hosts: []string{"instagram.com", "instagr.am"}, pathPart: "/stories/", match: types.PlatformMatch{Platform: types.PlatformInstagram, Kind: types.KindReel}},
	{hosts: []string{"instagram.com", "instagr.am"}, pathPart: "/p/", match: types.PlatformMatch{Platform: types.PlatformInstagram, Kind: types.KindCarousel}},
	{hosts: []string{"instagram.com", "instagr.am"}, match: types.PlatformMatch{Platform: types.PlatformInstagram, Kind: types.KindPost}},
	{hosts: []string{"threads.net"}, match: types.PlatformMatch{Platform: types.PlatformThreads, Kind: types.KindPost}},
	{hosts: []string{"youtube.com", "youtu.be", "music.youtube.com"}, match: types.PlatformMatch{Platform: types.PlatformYouTube, Kind: types.KindVideo}},
	{hosts: []string{"tiktok.com", "vm.tiktok.com", "vt.tiktok.com"}, match: types.PlatformMatch{Platform: types.PlatformTikTok, Kind: types.KindVideo}},
	{hosts: []string{"spotify.com", "open.spotify.com"}, pathPart: "/track/", match: types.PlatformMatch{Platform: types.PlatformSpotify, Kind: types.KindTrack}},
	{hosts: []string{"spotify.com", "open.spotify.com"}, match: types.PlatformMatch{Platform: types.PlatformSpotify, Kind: types.KindUnknown}},
	{hosts: []string{"twitter.com", "x.com", "t.co"}, match: types.PlatformMatch{Platform: types.PlatformTwitter, Kind: types.KindPost}},
	{hosts: []string{"facebook.com", "fb.watch", "fb.me"}, match: types.PlatformMatch{Platform: types.PlatformFacebook, Kind: types.KindVideo}},
	{hosts: []string{"pinterest.com", "pin.it"}, match: types.PlatformMatch{Platform: types.PlatformPinterest, Kind: types.KindImage}},
}

// Classify maps a raw URL to its platform and content kind. It is total:
// anything unparseable or unrecognized comes back as (generic, unknown).
func Classify(rawURL string) types.PlatformMatch {
	trimmed := strings.TrimSpace(rawURL)

	// yt-dlp search queries (used for track lookups) go to YouTube.
	if strings.HasPrefix(strings.ToLower(trimmed), "ytsearch") {
		return types.PlatformMatch{Platform: types.PlatformYouTube, Kind: types.KindVideo}
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return types.PlatformMatch{Platform: types.PlatformGeneric, Kind: types.KindUnknown}
	}

	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.EscapedPath())

	for _, r := range rules {
		if !matchesHost(host, r.hosts) {
			continue
		}
		if r.pathPart != "" && !strings.Contains(path, r.pathPart) {
			continue
		}
		return r.match
	}

	return types.PlatformMatch{Platform: types.PlatformGeneric, Kind: types.KindUnknown}
}

// IsSupported reports whether the URL belongs to a known platform.
func IsSupported(rawURL string) bool {
	return Classify(rawURL).Platform != types.PlatformGeneric
}

func matchesHost(host string, candidates []string) bool {
	for _, c := range candidates {
		if host == c || strings.HasSuffix(host, "."+c) {
			return true
		}
	}
	return false
}
