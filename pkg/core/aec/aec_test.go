package aec

import (
	"math"
	"testing"
)

func sine(n int, freq, rate, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return out
}

func TestProcess_NoReferencePassthrough(t *testing.T) {
	c := New(DefaultConfig())
	mic := sine(480, 440, 24000, 0.5)

	out := c.Process(mic, nil)
	if len(out) != len(mic) {
		t.Fatalf("len=%d, want %d", len(out), len(mic))
	}
	for i := range mic {
		if out[i] != mic[i] {
			t.Fatalf("sample %d changed: got %v, want %v", i, out[i], mic[i])
		}
	}
}

func TestProcess_EmptyMicIsNoop(t *testing.T) {
	c := New(DefaultConfig())
	out := c.Process(nil, sine(480, 440, 24000, 0.5))
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %d samples", len(out))
	}
}

func TestProcess_OutputAlwaysInRange(t *testing.T) {
	c := New(DefaultConfig())
	mic := make([]float64, 960)
	ref := make([]float64, 960)
	for i := range mic {
		// Deliberately out-of-range and hostile inputs.
		mic[i] = 3.5 * math.Sin(float64(i))
		ref[i] = -2.0 * math.Cos(float64(i)*0.3)
	}

	for iter := 0; iter < 20; iter++ {
		out := c.Process(mic, ref)
		for i, v := range out {
			if v < -1 || v > 1 || math.IsNaN(v) {
				t.Fatalf("iter %d sample %d out of range: %v", iter, i, v)
			}
		}
	}
}

func TestProcess_ReducesEcho(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDelaySamples = 256
	cfg.DelayStep = 4
	c := New(cfg)

	const n = 2048
	const delay = 120
	ref := sine(n, 330, 24000, 0.6)

	// Mic contains only the delayed, attenuated reference: pure echo.
	mic := make([]float64, n)
	for i := delay; i < n; i++ {
		mic[i] = 0.5 * ref[i-delay]
	}

	// Let the gain controller settle over a few frames.
	var out []float64
	for iter := 0; iter < 10; iter++ {
		out = c.Process(mic, ref)
	}

	if got, in := RMS(out), RMS(mic); got >= in {
		t.Fatalf("residual RMS %v not below input RMS %v", got, in)
	}
}

func TestGainStaysBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GainStep = 50 // force huge proportional updates
	c := New(cfg)

	loud := sine(480, 200, 24000, 1.0)
	quiet := make([]float64, 480)

	for i := 0; i < 50; i++ {
		c.Process(loud, loud)
		c.Process(quiet, loud)
		if g := c.Gain(); g < 0 || g > 1 {
			t.Fatalf("gain escaped [0,1]: %v", g)
		}
	}
}

func TestPCM16RoundTrip(t *testing.T) {
	pcm := []byte{0x00, 0x00, 0xff, 0x7f, 0x00, 0x80, 0x34, 0x12}
	samples := SamplesFromPCM16(pcm)
	if len(samples) != 4 {
		t.Fatalf("len=%d, want 4", len(samples))
	}
	if samples[0] != 0 {
		t.Fatalf("samples[0]=%v, want 0", samples[0])
	}
	if samples[1] < 0.999 || samples[1] > 1 {
		t.Fatalf("samples[1]=%v, want ~1", samples[1])
	}
	if samples[2] != -1 {
		t.Fatalf("samples[2]=%v, want -1", samples[2])
	}

	back := PCM16FromSamples(samples)
	for i := 0; i < 4; i++ {
		orig := int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
		got := int16(back[2*i]) | int16(back[2*i+1])<<8
		if diff := int32(orig) - int32(got); diff > 1 || diff < -1 {
			t.Fatalf("sample %d: got %d, want %d (±1)", i, got, orig)
		}
	}
}
