package analysis

import (
	"math"
	"sort"
)

// Summary is the per-file reduction of a turn sequence. Counts are always
// present; the five gap statistics are nil when the selected gap set is
// empty (zero or one turn).
type Summary struct {
	File             string   `json:"file"`
	Turns            int      `json:"turns"`
	SpeakerChanges   int      `json:"speaker_changes"`
	AvgGapMs         *float64 `json:"avg_gap_ms,omitempty"`
	MedianGapMs      *float64 `json:"median_gap_ms,omitempty"`
	P95GapMs         *float64 `json:"p95_gap_ms,omitempty"`
	OverlapRate      *float64 `json:"overlap_rate,omitempty"`
	AvgPositiveGapMs *float64 `json:"avg_positive_gap_ms,omitempty"`
}

// Summarize reduces one file's turns to a Summary.
//
// The statistics are computed over the gaps of speaker-change turns. When no
// speaker change carries a gap (single speaker throughout, or a single turn),
// the filter falls back to every defined gap — the denominator silently
// changes meaning, but downstream consumers depend on this behavior.
func Summarize(file string, turns []Turn) Summary {
	s := Summary{File: file, Turns: len(turns)}

	var changeGaps, allGaps []int64
	for _, t := range turns {
		if t.SpeakerChange {
			s.SpeakerChanges++
		}
		if t.GapToNextMs == nil {
			continue
		}
		allGaps = append(allGaps, *t.GapToNextMs)
		if t.SpeakerChange {
			changeGaps = append(changeGaps, *t.GapToNextMs)
		}
	}

	gaps := changeGaps
	if len(gaps) == 0 {
		gaps = allGaps
	}
	if len(gaps) == 0 {
		return s
	}

	n := len(gaps)

	var sum int64
	var negatives int
	var positiveSum int64
	var positives int
	for _, g := range gaps {
		sum += g
		if g < 0 {
			negatives++
		}
		if g > 0 {
			positiveSum += g
			positives++
		}
	}

	sortedGaps := make([]int64, n)
	copy(sortedGaps, gaps)
	sort.Slice(sortedGaps, func(i, j int) bool { return sortedGaps[i] < sortedGaps[j] })

	avg := round2(float64(sum) / float64(n))
	med := round2(median(sortedGaps))
	// Nearest-rank p95: index min(floor(n*0.95), n-1) of the ascending sort.
	// Under-counts the true 95th percentile for small n; kept as-is for
	// output compatibility.
	p95Idx := int(float64(n) * 0.95)
	if p95Idx > n-1 {
		p95Idx = n - 1
	}
	p95 := round2(float64(sortedGaps[p95Idx]))
	overlap := round2(float64(negatives) / float64(n) * 100)

	s.AvgGapMs = &avg
	s.MedianGapMs = &med
	s.P95GapMs = &p95
	s.OverlapRate = &overlap

	if positives > 0 {
		avgPos := round2(float64(positiveSum) / float64(positives))
		s.AvgPositiveGapMs = &avgPos
	}

	return s
}

// median of a non-empty ascending-sorted slice: the middle value, or the
// mean of the two middle values for even length.
func median(sorted []int64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return (float64(sorted[n/2-1]) + float64(sorted[n/2])) / 2
}

// round2 rounds to 2 decimal places, halves away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
