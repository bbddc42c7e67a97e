package download

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/abdifahadi/wamedia-bot/internal/config"
	"github.com/abdifahadi/wamedia-bot/internal/types"
)

const mb = int64(1024 * 1024)

// SizePolicy maps quality labels to their maximum permitted byte size and
// carries the global transfer ceilings. It is built once at startup and
// read-only afterwards.
type SizePolicy struct {
	ceilings     map[string]int64
	hardCeiling  int64
	audioCeiling int64
	imageCeiling int64
}

func NewSizePolicy(cfg config.Downloads) SizePolicy {
	p := SizePolicy{
		ceilings:     make(map[string]int64, len(cfg.QualityTiers)),
		hardCeiling:  cfg.HardCeilingMB * mb,
		audioCeiling: cfg.AudioCeilingMB * mb,
		imageCeiling: cfg.ImageCeilingMB * mb,
	}
	for _, tier := range cfg.QualityTiers {
		p.ceilings[tier.Label] = tier.MaxMB * mb
	}
	return p
}

// ValidatePolicy rejects a tier table that breaks the size ladder:
// ceilings must not grow as quality drops, every label must carry a
// known rank, and no tier may exceed the post-download hard ceiling. A
// misordered table would make quality degradation raise the permitted
// size instead of lowering it.
func ValidatePolicy(cfg config.Downloads) error {
	for _, tier := range cfg.QualityTiers {
		if QualityRank(tier.Label) == 0 {
			return fmt.Errorf("quality tier %q: unknown label", tier.Label)
		}
		if tier.MaxMB <= 0 {
			return fmt.Errorf("quality tier %q: ceiling must be positive, got %dMB", tier.Label, tier.MaxMB)
		}
		if tier.MaxMB > cfg.HardCeilingMB {
			return fmt.Errorf("quality tier %q: ceiling %dMB exceeds the %dMB transfer limit", tier.Label, tier.MaxMB, cfg.HardCeilingMB)
		}
	}

	tiers := append([]config.QualityTier(nil), cfg.QualityTiers...)
	sort.Slice(tiers, func(i, j int) bool {
		return QualityRank(tiers[i].Label) > QualityRank(tiers[j].Label)
	})
	for i := 1; i < len(tiers); i++ {
		if tiers[i].MaxMB > tiers[i-1].MaxMB {
			return fmt.Errorf("quality tier %q (%dMB) has a larger ceiling than higher tier %q (%dMB)",
				tiers[i].Label, tiers[i].MaxMB, tiers[i-1].Label, tiers[i-1].MaxMB)
		}
	}
	return nil
}

// CeilingFor returns the byte ceiling for one rendition. Video labels use
// their tier ceiling when configured; everything else falls back to the
// kind's global ceiling.
func (p SizePolicy) CeilingFor(r types.Rendition) int64 {
	if c, ok := p.ceilings[r.Label]; ok {
		return c
	}
	return p.HardCeiling(r.Kind)
}

// HardCeiling is the authoritative post-download limit per content kind.
func (p SizePolicy) HardCeiling(kind types.RequestedKind) int64 {
	switch kind {
	case types.RequestAudio:
		return p.audioCeiling
	case types.RequestImage:
		return p.imageCeiling
	default:
		return p.hardCeiling
	}
}

// QualityRank orders labels best-first. Video labels rank by pixel height;
// audio and image renditions sit below every video tier so an explicit
// video request is never satisfied by an audio stream.
func QualityRank(label string) int {
	trimmed := strings.TrimSuffix(strings.ToLower(label), "p")
	if h, err := strconv.Atoi(trimmed); err == nil && h > 0 {
		return h
	}
	switch strings.ToLower(label) {
	case "audio", "mp3":
		return 2
	case "image", "original":
		return 1
	}
	return 0
}
