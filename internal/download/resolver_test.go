package download

import (
	"testing"

	"github.com/abdifahadi/wamedia-bot/internal/config"
	"github.com/abdifahadi/wamedia-bot/internal/types"
)

func testPolicy() SizePolicy {
	return NewSizePolicy(config.Downloads{
		HardCeilingMB:  95,
		AudioCeilingMB: 50,
		ImageCeilingMB: 50,
		QualityTiers:   config.DefaultQualityTiers(),
	})
}

func video(label string, sizeMB int64) types.Rendition {
	return types.Rendition{
		Label:         label,
		EstimatedSize: sizeMB * mb,
		Container:     "mp4",
		FormatRef:     label,
		Kind:          types.RequestVideo,
	}
}

func TestResolveAllOversizedReturnsEmpty(t *testing.T) {
	available := []types.Rendition{
		video("1080p", 200), // ceiling 90
		video("720p", 120),  // ceiling 70
		video("480p", 60),   // ceiling 50
	}

	got := Resolve(available, types.RequestVideo, testPolicy())
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d renditions", len(got))
	}
}

func TestResolveBestWithinPolicyFirst(t *testing.T) {
	available := []types.Rendition{
		video("480p", 20),
		video("1080p", 200), // over ceiling, dropped
		video("720p", 40),
	}

	got := Resolve(available, types.RequestVideo, testPolicy())
	if len(got) != 2 {
		t.Fatalf("expected 2 renditions, got %d", len(got))
	}
	if got[0].Label != "720p" {
		t.Fatalf("expected 720p first, got %s", got[0].Label)
	}
}

func TestResolveUnknownSizeRetainedAndRankedLast(t *testing.T) {
	unknown := types.Rendition{Label: "720p", Container: "webm", FormatRef: "a", Kind: types.RequestVideo}
	available := []types.Rendition{unknown, video("720p", 40)}

	got := Resolve(available, types.RequestVideo, testPolicy())
	if len(got) != 2 {
		t.Fatalf("expected both renditions kept, got %d", len(got))
	}
	if got[0].EstimatedSize == 0 {
		t.Fatal("known-size rendition should rank before unknown-size one at the same label")
	}
}

func TestResolveTieBreakSmallerSizeFirst(t *testing.T) {
	available := []types.Rendition{video("720p", 60), video("720p", 30)}

	got := Resolve(available, types.RequestVideo, testPolicy())
	if got[0].EstimatedSize != 30*mb {
		t.Fatalf("expected the smaller 720p first, got %d bytes", got[0].EstimatedSize)
	}
}

func TestResolveKindFiltering(t *testing.T) {
	audio := types.Rendition{Label: "audio", FormatRef: "a", Kind: types.RequestAudio, EstimatedSize: 5 * mb}
	available := []types.Rendition{video("720p", 40), audio}

	onlyAudio := Resolve(available, types.RequestAudio, testPolicy())
	if len(onlyAudio) != 1 || onlyAudio[0].Kind != types.RequestAudio {
		t.Fatalf("audio request resolved to %+v", onlyAudio)
	}

	auto := Resolve(available, types.RequestAuto, testPolicy())
	if len(auto) != 2 {
		t.Fatalf("auto request should keep everything, got %d", len(auto))
	}
	if auto[0].Kind != types.RequestVideo {
		t.Fatal("video tiers must outrank audio under auto")
	}
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	available := []types.Rendition{video("480p", 20), video("1080p", 40)}
	Resolve(available, types.RequestVideo, testPolicy())

	if available[0].Label != "480p" || available[1].Label != "1080p" {
		t.Fatal("input slice order changed")
	}
}

func TestQualityRankOrdering(t *testing.T) {
	if QualityRank("1080p") <= QualityRank("720p") {
		t.Fatal("1080p must outrank 720p")
	}
	if QualityRank("144p") <= QualityRank("audio") {
		t.Fatal("any video tier must outrank audio")
	}
	if QualityRank("audio") <= QualityRank("original") {
		t.Fatal("audio must outrank image originals")
	}
}

func TestValidatePolicy(t *testing.T) {
	base := config.Downloads{
		HardCeilingMB:  95,
		AudioCeilingMB: 50,
		ImageCeilingMB: 50,
	}

	cases := []struct {
		name    string
		tiers   []config.QualityTier
		wantErr bool
	}{
		{"default ladder", config.DefaultQualityTiers(), false},
		{"empty table", nil, false},
		{"equal ceilings", []config.QualityTier{{Label: "720p", MaxMB: 50}, {Label: "480p", MaxMB: 50}}, false},
		{"inverted ladder", []config.QualityTier{{Label: "1080p", MaxMB: 10}, {Label: "144p", MaxMB: 90}}, true},
		{"one misordered pair", []config.QualityTier{{Label: "1080p", MaxMB: 90}, {Label: "720p", MaxMB: 30}, {Label: "480p", MaxMB: 50}}, true},
		{"unknown label", []config.QualityTier{{Label: "best", MaxMB: 50}}, true},
		{"zero ceiling", []config.QualityTier{{Label: "720p", MaxMB: 0}}, true},
		{"tier over transfer limit", []config.QualityTier{{Label: "1080p", MaxMB: 200}}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			cfg.QualityTiers = tc.tiers
			err := ValidatePolicy(cfg)
			if tc.wantErr && err == nil {
				t.Error("expected a validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
