// Package aec implements reference-based echo cancellation for the
// microphone channel. The system-audio signal is used as the echo
// reference: the canceller estimates the dominant propagation delay,
// builds a weighted echo estimate around it, and subtracts the estimate
// from the microphone signal before it reaches speech recognition.
package aec

import (
	"math"
	"sync"
)

// Config holds the tuning parameters for the canceller.
type Config struct {
	// MaxDelaySamples bounds the cross-correlation delay search.
	// Default: 2400 (100ms at 24kHz).
	MaxDelaySamples int

	// DelayStep is the grid step for the coarse delay search. A full
	// exhaustive search is too slow for per-frame operation; the step
	// trades accuracy for latency. Default: 8.
	DelayStep int

	// NeighborhoodRadius is the number of offsets on each side of the
	// estimated delay included in the echo estimate. Default: 4.
	NeighborhoodRadius int

	// NeighborhoodDecay is the exponential weight decay per offset step
	// away from the estimated delay. Default: 0.6.
	NeighborhoodDecay float64

	// NoiseFloor is the absolute amplitude below which residual samples
	// are attenuated to zero. Default: 0.008.
	NoiseFloor float64

	// SimilarityThreshold is the maximum absolute difference between a
	// residual sample and the time-aligned reference for the sample to be
	// treated as residual leakage and suppressed. Default: 0.02.
	SimilarityThreshold float64

	// SimilarityAttenuation is the factor applied to suppressed samples.
	// Default: 0.1.
	SimilarityAttenuation float64

	// TargetRMS is the residual RMS floor the gain controller drives
	// toward. Default: 0.02.
	TargetRMS float64

	// GainStep is the proportional-controller coefficient for gain
	// adaptation. Default: 0.05.
	GainStep float64

	// RefClip is the saturation bound applied to the reference signal
	// before estimation. Default: 0.891 (-1 dBFS).
	RefClip float64
}

// DefaultConfig returns a Config with defaults tuned for 24kHz PCM16 mono.
func DefaultConfig() Config {
	return Config{
		MaxDelaySamples:       2400,
		DelayStep:             8,
		NeighborhoodRadius:    4,
		NeighborhoodDecay:     0.6,
		NoiseFloor:            0.008,
		SimilarityThreshold:   0.02,
		SimilarityAttenuation: 0.1,
		TargetRMS:             0.02,
		GainStep:              0.05,
		RefClip:               0.891,
	}
}

// Canceller removes system-audio bleed from microphone audio. It is safe
// for use from a single goroutine per instance; the adaptive gain carries
// over between frames.
type Canceller struct {
	cfg Config

	mu   sync.Mutex
	gain float64
}

// New creates a Canceller with the given config. Zero-valued config fields
// are replaced with defaults.
func New(cfg Config) *Canceller {
	def := DefaultConfig()
	if cfg.MaxDelaySamples <= 0 {
		cfg.MaxDelaySamples = def.MaxDelaySamples
	}
	if cfg.DelayStep <= 0 {
		cfg.DelayStep = def.DelayStep
	}
	if cfg.NeighborhoodRadius <= 0 {
		cfg.NeighborhoodRadius = def.NeighborhoodRadius
	}
	if cfg.NeighborhoodDecay <= 0 {
		cfg.NeighborhoodDecay = def.NeighborhoodDecay
	}
	if cfg.NoiseFloor <= 0 {
		cfg.NoiseFloor = def.NoiseFloor
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = def.SimilarityThreshold
	}
	if cfg.SimilarityAttenuation <= 0 {
		cfg.SimilarityAttenuation = def.SimilarityAttenuation
	}
	if cfg.TargetRMS <= 0 {
		cfg.TargetRMS = def.TargetRMS
	}
	if cfg.GainStep <= 0 {
		cfg.GainStep = def.GainStep
	}
	if cfg.RefClip <= 0 {
		cfg.RefClip = def.RefClip
	}
	return &Canceller{cfg: cfg, gain: 0.8}
}

// Gain returns the current adaptive echo-scaling gain.
func (c *Canceller) Gain() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gain
}

// Process subtracts the estimated echo of ref from mic and returns the
// cleaned signal, always the same length as mic. Samples are normalized
// floats in [-1, 1]. If mic is empty or no reference is available the mic
// signal is returned unchanged.
func (c *Canceller) Process(mic, ref []float64) []float64 {
	if len(mic) == 0 || len(ref) == 0 {
		return mic
	}

	c.mu.Lock()
	gain := c.gain
	c.mu.Unlock()

	shaped := shapeReference(ref, c.cfg.RefClip)
	delay := c.estimateDelay(mic, shaped)

	out := make([]float64, len(mic))
	for i := range mic {
		est := c.echoEstimate(shaped, i, delay) * gain
		v := mic[i] - est

		// Noise-floor gate: very small residuals are treated as silence.
		if math.Abs(v) < c.cfg.NoiseFloor {
			v = 0
		}

		// Similarity suppressor: a residual that still tracks the aligned
		// reference is leakage, not speech.
		aligned := sampleAt(shaped, i-delay)
		if aligned != 0 && math.Abs(v-aligned*gain) < c.cfg.SimilarityThreshold {
			v *= c.cfg.SimilarityAttenuation
		}

		out[i] = clamp(v, -1, 1)
	}

	c.adaptGain(out)
	return out
}

// estimateDelay runs a coarse grid search over candidate delays and returns
// the delay with the highest normalized cross-correlation.
func (c *Canceller) estimateDelay(mic, ref []float64) int {
	maxDelay := c.cfg.MaxDelaySamples
	if maxDelay >= len(ref) {
		maxDelay = len(ref) - 1
	}
	bestDelay := 0
	bestScore := math.Inf(-1)
	for d := 0; d <= maxDelay; d += c.cfg.DelayStep {
		var score float64
		n := 0
		for i := d; i < len(mic) && i-d < len(ref); i++ {
			score += mic[i] * ref[i-d]
			n++
		}
		if n == 0 {
			continue
		}
		score /= float64(n)
		if score > bestScore {
			bestScore = score
			bestDelay = d
		}
	}
	return bestDelay
}

// echoEstimate sums scaled reference samples at the estimated delay and a
// symmetric neighborhood of offsets with exponentially decaying weights.
func (c *Canceller) echoEstimate(ref []float64, i, delay int) float64 {
	var est, wsum float64
	for off := -c.cfg.NeighborhoodRadius; off <= c.cfg.NeighborhoodRadius; off++ {
		w := math.Pow(c.cfg.NeighborhoodDecay, math.Abs(float64(off)))
		est += w * sampleAt(ref, i-delay+off)
		wsum += w
	}
	if wsum == 0 {
		return 0
	}
	return est / wsum
}

// adaptGain nudges the echo-scaling gain toward the residual RMS target.
// The gain is clamped to [0, 1] on every update so it can never diverge.
func (c *Canceller) adaptGain(residual []float64) {
	rms := RMS(residual)
	delta := (rms - c.cfg.TargetRMS) * c.cfg.GainStep / c.cfg.TargetRMS

	c.mu.Lock()
	c.gain = clamp(c.gain+delta, 0, 1)
	c.mu.Unlock()
}

// shapeReference soft-clips and saturates the reference signal to bound its
// dynamic range before delay estimation.
func shapeReference(ref []float64, clip float64) []float64 {
	out := make([]float64, len(ref))
	for i, v := range ref {
		// tanh soft-clip keeps small samples near-linear while compressing
		// loud passages.
		out[i] = clamp(math.Tanh(v), -clip, clip)
	}
	return out
}

// RMS computes the root-mean-square level of the signal.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func sampleAt(s []float64, i int) float64 {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
