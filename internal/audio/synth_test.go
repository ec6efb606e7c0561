package audio

import "testing"

func TestSynthesizeClampsAndSizes(t *testing.T) {
	out := Synthesize([]Partial{{Freq: 10, Amp: 0.9}, {Freq: 10, Amp: 0.9}}, 1000, 0.25)
	if len(out) != 250 {
		t.Fatalf("len = %d, want 250", len(out))
	}
	peak := float32(0)
	for _, s := range out {
		if s > peak {
			peak = s
		}
		if s > 1 || s < -1 {
			t.Fatalf("sample %v out of range", s)
		}
	}
	if peak != 1 {
		t.Fatalf("peak = %v, want the summed partials to clamp at 1", peak)
	}
}

func TestPlanSpeechRhythm(t *testing.T) {
	segs := PlanSpeech("Go on")
	if len(segs) != 6 {
		t.Fatalf("got %d segments, want 6", len(segs))
	}

	// 'g' is a weak consonant tick, 'o' a full vowel, then a word gap.
	if segs[0].Level != 0.3 || segs[0].Duration != 0.05 {
		t.Fatalf("consonant segment = %+v", segs[0])
	}
	if segs[1].F1 != 500 || segs[1].F2 != 900 || segs[1].Level != 0.8 {
		t.Fatalf("vowel segment = %+v", segs[1])
	}
	if segs[2].Level != 0 {
		t.Fatalf("word gap segment = %+v", segs[2])
	}

	if segs := PlanSpeech("a1!"); len(segs) != 2 {
		t.Fatalf("digits and punctuation should be skipped, got %d segments", len(segs))
	}
	if segs := PlanSpeech("   "); len(segs) != 0 {
		t.Fatalf("blank text planned %d segments", len(segs))
	}
}

func TestSynthesizeSpeechEnvelope(t *testing.T) {
	segs := []VowelSegment{
		{F1: 440, F2: 880, Duration: 0.1, Level: 0.8},
		{F1: 100, F2: 300, Duration: 0.05, Level: 0},
	}
	out := SynthesizeSpeech(segs, 2000)
	if len(out) != 300 {
		t.Fatalf("len = %d, want 300", len(out))
	}

	// Attack ramps from silence.
	if out[0] != 0 {
		t.Fatalf("attack start = %v, want 0", out[0])
	}
	var energy float64
	for _, s := range out[:200] {
		energy += float64(s) * float64(s)
	}
	if energy == 0 {
		t.Fatal("voiced segment rendered silence")
	}
	for i, s := range out[200:] {
		if s != 0 {
			t.Fatalf("gap sample %d = %v, want 0", i, s)
		}
	}
}
