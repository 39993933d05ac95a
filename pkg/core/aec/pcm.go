package aec

import "math"

// SamplesFromPCM16 converts 16-bit signed little-endian PCM bytes to
// normalized float samples in [-1, 1]. A trailing odd byte is ignored.
func SamplesFromPCM16(pcm []byte) []float64 {
	n := len(pcm) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		sample := int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
		out[i] = float64(sample) / 32768.0
	}
	return out
}

// PCM16FromSamples converts normalized float samples back to 16-bit signed
// little-endian PCM bytes. Samples are clamped to [-1, 1] before conversion.
func PCM16FromSamples(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		v = clamp(v, -1, 1)
		s := int16(math.Round(v * 32767.0))
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// PeakAmplitude returns the maximum absolute amplitude in the signal.
func PeakAmplitude(samples []float64) float64 {
	var peak float64
	for _, v := range samples {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}
