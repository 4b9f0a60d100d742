package analysis

// Turn is one row of the per-file turn table: an utterance plus lookahead
// facts about its successor. The next_* fields and the gap are nil for the
// last turn of a file.
type Turn struct {
	File          string  `json:"file"`
	TurnIndex     int     `json:"turn_index"`
	Speaker       string  `json:"speaker"`
	StartMs       int64   `json:"start_ms"`
	EndMs         int64   `json:"end_ms"`
	DurationMs    int64   `json:"duration_ms"`
	Text          string  `json:"text"`
	NextSpeaker   *string `json:"next_speaker,omitempty"`
	NextStartMs   *int64  `json:"next_start_ms,omitempty"`
	GapToNextMs   *int64  `json:"gap_to_next_ms,omitempty"`
	SpeakerChange bool    `json:"speaker_change"`
}

// BuildTurns walks a start-time-sorted utterance sequence pairwise and
// produces one Turn per utterance, same length and order. turn_index is
// 1-based by sorted position. gap_to_next_ms = next start − current end and
// may be zero or negative; overlap is a signal, not an error, so no clamping
// is applied. The last turn always has speaker_change false — a terminal
// policy, not a computed value.
func BuildTurns(file string, sorted []Utterance) []Turn {
	turns := make([]Turn, 0, len(sorted))

	for i, u := range sorted {
		t := Turn{
			File:       file,
			TurnIndex:  i + 1,
			Speaker:    u.Speaker,
			StartMs:    u.StartMs,
			EndMs:      u.EndMs,
			DurationMs: u.EndMs - u.StartMs,
			Text:       u.Text,
		}

		if i < len(sorted)-1 {
			next := sorted[i+1]
			nextSpeaker := next.Speaker
			nextStart := next.StartMs
			gap := nextStart - u.EndMs
			t.NextSpeaker = &nextSpeaker
			t.NextStartMs = &nextStart
			t.GapToNextMs = &gap
			t.SpeakerChange = u.Speaker != next.Speaker
		}

		turns = append(turns, t)
	}

	return turns
}

// Analyze runs the full per-file pipeline: normalize, transform, aggregate.
// An empty utterance list yields zero turns and a counts-only summary.
func Analyze(file string, utts []Utterance) ([]Turn, Summary) {
	turns := BuildTurns(file, SortUtterances(utts))
	return turns, Summarize(file, turns)
}
