package analysis

import "testing"

// mkTurns builds a turn sequence from (speaker, start, end) triples.
func mkTurns(t *testing.T, file string, utts []Utterance) []Turn {
	t.Helper()
	return BuildTurns(file, SortUtterances(utts))
}

func TestSummarize_WorkedExample(t *testing.T) {
	// [(A,0,1000),(B,900,1800),(A,1800,2500)]: gaps -100 and 0, both speaker
	// changes. avg = -50, overlap_rate = 50 (1 of 2 negative).
	turns := mkTurns(t, "call.mp3", []Utterance{
		{Speaker: "A", StartMs: 0, EndMs: 1000},
		{Speaker: "B", StartMs: 900, EndMs: 1800},
		{Speaker: "A", StartMs: 1800, EndMs: 2500},
	})

	s := Summarize("call.mp3", turns)

	if s.Turns != 3 {
		t.Errorf("Turns = %d, want 3", s.Turns)
	}
	if s.SpeakerChanges != 2 {
		t.Errorf("SpeakerChanges = %d, want 2", s.SpeakerChanges)
	}
	if s.AvgGapMs == nil || *s.AvgGapMs != -50.0 {
		t.Errorf("AvgGapMs = %v, want -50.0", fmtStat(s.AvgGapMs))
	}
	if s.MedianGapMs == nil || *s.MedianGapMs != -50.0 {
		t.Errorf("MedianGapMs = %v, want -50.0", fmtStat(s.MedianGapMs))
	}
	if s.OverlapRate == nil || *s.OverlapRate != 50.0 {
		t.Errorf("OverlapRate = %v, want 50.0", fmtStat(s.OverlapRate))
	}
	// Only gap 0 is non-negative and none are strictly positive.
	if s.AvgPositiveGapMs != nil {
		t.Errorf("AvgPositiveGapMs = %v, want absent", *s.AvgPositiveGapMs)
	}
}

func TestSummarize_SingleTurn(t *testing.T) {
	turns := mkTurns(t, "solo.wav", []Utterance{{Speaker: "A", StartMs: 0, EndMs: 500}})

	s := Summarize("solo.wav", turns)

	if s.Turns != 1 {
		t.Errorf("Turns = %d, want 1", s.Turns)
	}
	if s.SpeakerChanges != 0 {
		t.Errorf("SpeakerChanges = %d, want 0", s.SpeakerChanges)
	}
	for name, stat := range map[string]*float64{
		"AvgGapMs": s.AvgGapMs, "MedianGapMs": s.MedianGapMs, "P95GapMs": s.P95GapMs,
		"OverlapRate": s.OverlapRate, "AvgPositiveGapMs": s.AvgPositiveGapMs,
	} {
		if stat != nil {
			t.Errorf("%s = %v, want absent", name, *stat)
		}
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize("empty.wav", nil)
	if s.Turns != 0 || s.SpeakerChanges != 0 {
		t.Errorf("counts = (%d, %d), want (0, 0)", s.Turns, s.SpeakerChanges)
	}
	if s.AvgGapMs != nil {
		t.Errorf("AvgGapMs = %v, want absent", *s.AvgGapMs)
	}
}

func TestSummarize_FallbackToAllGaps(t *testing.T) {
	// Three same-speaker utterances with gaps 50 and 100: the speaker-change
	// filter yields nothing, so stats fall back to every defined gap.
	turns := mkTurns(t, "mono.wav", []Utterance{
		{Speaker: "A", StartMs: 0, EndMs: 100},
		{Speaker: "A", StartMs: 150, EndMs: 300},
		{Speaker: "A", StartMs: 400, EndMs: 600},
	})

	s := Summarize("mono.wav", turns)

	if s.SpeakerChanges != 0 {
		t.Errorf("SpeakerChanges = %d, want 0", s.SpeakerChanges)
	}
	if s.AvgGapMs == nil || *s.AvgGapMs != 75.0 {
		t.Errorf("AvgGapMs = %v, want 75.0", fmtStat(s.AvgGapMs))
	}
	if s.OverlapRate == nil || *s.OverlapRate != 0.0 {
		t.Errorf("OverlapRate = %v, want 0.0", fmtStat(s.OverlapRate))
	}
	if s.AvgPositiveGapMs == nil || *s.AvgPositiveGapMs != 75.0 {
		t.Errorf("AvgPositiveGapMs = %v, want 75.0", fmtStat(s.AvgPositiveGapMs))
	}
}

func TestSummarize_P95NearestRank(t *testing.T) {
	// n=5: floor(5*0.95)=4 → the max of the sorted gaps.
	turns := mkTurns(t, "f.wav", []Utterance{
		{Speaker: "A", StartMs: 0, EndMs: 100},
		{Speaker: "B", StartMs: 110, EndMs: 200}, // gap 10
		{Speaker: "A", StartMs: 250, EndMs: 300}, // gap 50
		{Speaker: "B", StartMs: 320, EndMs: 400}, // gap 20
		{Speaker: "A", StartMs: 500, EndMs: 600}, // gap 100
		{Speaker: "B", StartMs: 640, EndMs: 700}, // gap 40
	})

	s := Summarize("f.wav", turns)

	if s.P95GapMs == nil || *s.P95GapMs != 100.0 {
		t.Errorf("P95GapMs = %v, want 100.0 (max for n=5)", fmtStat(s.P95GapMs))
	}
}

func TestSummarize_MedianEvenCount(t *testing.T) {
	// Gaps 10, 20, 30, 40: median is the mean of the middle two.
	turns := mkTurns(t, "f.wav", []Utterance{
		{Speaker: "A", StartMs: 0, EndMs: 100},
		{Speaker: "B", StartMs: 110, EndMs: 200},
		{Speaker: "A", StartMs: 220, EndMs: 300},
		{Speaker: "B", StartMs: 330, EndMs: 400},
		{Speaker: "A", StartMs: 440, EndMs: 500},
	})

	s := Summarize("f.wav", turns)

	if s.MedianGapMs == nil || *s.MedianGapMs != 25.0 {
		t.Errorf("MedianGapMs = %v, want 25.0", fmtStat(s.MedianGapMs))
	}
}

func TestSummarize_OverlapRateBounds(t *testing.T) {
	cases := []struct {
		name string
		utts []Utterance
		want float64
	}{
		{
			name: "all_overlapping",
			utts: []Utterance{
				{Speaker: "A", StartMs: 0, EndMs: 1000},
				{Speaker: "B", StartMs: 500, EndMs: 1500},
				{Speaker: "A", StartMs: 1200, EndMs: 2000},
			},
			want: 100.0,
		},
		{
			name: "none_overlapping",
			utts: []Utterance{
				{Speaker: "A", StartMs: 0, EndMs: 100},
				{Speaker: "B", StartMs: 200, EndMs: 300},
				{Speaker: "A", StartMs: 400, EndMs: 500},
			},
			want: 0.0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Summarize("f.wav", mkTurns(t, "f.wav", tc.utts))
			if s.OverlapRate == nil {
				t.Fatal("OverlapRate absent")
			}
			if *s.OverlapRate != tc.want {
				t.Errorf("OverlapRate = %v, want %v", *s.OverlapRate, tc.want)
			}
			if *s.OverlapRate < 0 || *s.OverlapRate > 100 {
				t.Errorf("OverlapRate = %v outside [0, 100]", *s.OverlapRate)
			}
		})
	}
}

func TestSummarize_Rounding(t *testing.T) {
	// Gaps 10 and 25: mean 17.5 stays 17.5; three gaps 10,10,11 mean
	// 10.333... rounds to 10.33.
	turns := mkTurns(t, "f.wav", []Utterance{
		{Speaker: "A", StartMs: 0, EndMs: 100},
		{Speaker: "B", StartMs: 110, EndMs: 200},
		{Speaker: "A", StartMs: 210, EndMs: 300},
		{Speaker: "B", StartMs: 311, EndMs: 400},
	})

	s := Summarize("f.wav", turns)

	if s.AvgGapMs == nil || *s.AvgGapMs != 10.33 {
		t.Errorf("AvgGapMs = %v, want 10.33", fmtStat(s.AvgGapMs))
	}
}

func fmtStat(p *float64) any {
	if p == nil {
		return "<nil>"
	}
	return *p
}
