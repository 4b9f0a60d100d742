// Package analysis derives conversational-latency metrics from diarized
// transcripts: per-turn gaps, speaker changes, and per-file summary
// statistics. Everything here is a pure transformation over in-memory
// slices; callers own all inputs and outputs.
package analysis

import "sort"

// Utterance is one contiguous speech segment attributed to a single speaker
// by diarization. Speakers are not unique within a file, and multiple
// utterances may share timestamps.
type Utterance struct {
	Speaker string `json:"speaker"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// SortUtterances returns a copy of utts ordered ascending by start time.
// The sort is stable: utterances with equal start times keep their input
// order, so re-running on already-sorted input yields identical output.
func SortUtterances(utts []Utterance) []Utterance {
	sorted := make([]Utterance, len(utts))
	copy(sorted, utts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartMs < sorted[j].StartMs
	})
	return sorted
}
