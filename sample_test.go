package stepseq_test

import (
	"errors"
	"math"
	"testing"

	"github.com/vsariola/stepseq"
)

func TestNewSample(t *testing.T) {
	s, err := stepseq.NewSample("kick", 2, 22050, []float32{0.1, -0.5, 0.25, 0.3})
	if err != nil {
		t.Fatalf("NewSample failed: %v", err)
	}
	if s.Frames != 2 {
		t.Errorf("expected 2 frames, got %d", s.Frames)
	}
	if s.Peak != 0.5 {
		t.Errorf("expected peak 0.5, got %v", s.Peak)
	}
	if s.Refs() != 1 {
		t.Errorf("a new sample should have one reference, got %d", s.Refs())
	}
	if d := s.Duration(); math.Abs(d-2.0/22050) > 1e-12 {
		t.Errorf("unexpected duration %v", d)
	}
}

func TestNewSampleRejectsBadInput(t *testing.T) {
	cases := []struct {
		name      string
		channels  int
		framerate int
		data      []float32
	}{
		{"no channels", 0, 44100, nil},
		{"no framerate", 1, 0, nil},
		{"ragged", 2, 44100, []float32{1, 2, 3}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := stepseq.NewSample(c.name, c.channels, c.framerate, c.data)
			if !errors.Is(err, stepseq.ErrInvalidSample) {
				t.Errorf("expected ErrInvalidSample, got %v", err)
			}
		})
	}
}

func TestSampleReferenceCounting(t *testing.T) {
	s, _ := stepseq.NewSample("snare", 1, 44100, []float32{1, 0, -1})
	s.Retain()
	s.Retain()
	if s.Release() || s.Release() {
		t.Fatal("sample reported last release too early")
	}
	if s.Data == nil {
		t.Fatal("sample data dropped while still referenced")
	}
	if !s.Release() {
		t.Fatal("last release not reported")
	}
	if s.Data != nil {
		t.Error("sample data should be dropped after the last release")
	}
}

func TestDecibelConversions(t *testing.T) {
	for _, db := range []float64{-70, -24.5, -6, 0, 3, 20} {
		if got := stepseq.GainToDB(stepseq.DBToGain(db)); math.Abs(got-db) > 1e-9 {
			t.Errorf("round trip of %v dB gave %v", db, got)
		}
	}
	if got := stepseq.ClampDB(-200); got != stepseq.DBMin {
		t.Errorf("ClampDB(-200) = %v", got)
	}
	if got := stepseq.ClampDB(90); got != stepseq.DBMax {
		t.Errorf("ClampDB(90) = %v", got)
	}
	if got := stepseq.ClampGain(0); got != stepseq.GainMin {
		t.Errorf("ClampGain(0) = %v", got)
	}
	if got := stepseq.ClampGain(1e9); got != stepseq.GainMax {
		t.Errorf("ClampGain(1e9) = %v", got)
	}
}
