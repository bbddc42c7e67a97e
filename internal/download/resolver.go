package download

import (
	"sort"

	"github.com/abdifahadi/wamedia-bot/internal/types"
)

// Resolve filters the renditions an extraction backend reported down to
// those permitted by policy and orders them best-first for the
// orchestrator. It is a pure function: no I/O, and the input slice is not
// mutated.
//
// Rules:
//   - renditions whose kind cannot satisfy the request are dropped
//   - a known estimated size above the label's ceiling drops the rendition
//   - unknown sizes are kept optimistically (the post-download size check
//     is authoritative) but rank after known sizes within the same label
//   - equal quality ranks tie-break on smaller estimated size
//
// An empty result is a valid outcome and maps to too_large upstream.
func Resolve(available []types.Rendition, requested types.RequestedKind, policy SizePolicy) []types.Rendition {
	out := make([]types.Rendition, 0, len(available))

	for _, r := range available {
		if !kindSatisfies(r.Kind, requested) {
			continue
		}
		if r.EstimatedSize > 0 && r.EstimatedSize > policy.CeilingFor(r) {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := QualityRank(out[i].Label), QualityRank(out[j].Label)
		if ri != rj {
			return ri > rj
		}
		si, sj := out[i].EstimatedSize, out[j].EstimatedSize
		if (si > 0) != (sj > 0) {
			return si > 0
		}
		return si < sj
	})

	return out
}

func kindSatisfies(have types.RequestedKind, want types.RequestedKind) bool {
	if want == types.RequestAuto {
		return true
	}
	return have == want
}
