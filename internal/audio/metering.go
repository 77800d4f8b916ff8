// Package audio provides PCM level metering, software gain, peak sampling and
// platform audio capture.
package audio

import (
	"encoding/binary"
	"math"
)

const (
	// MinDB is the minimum dB level (silence).
	MinDB = -60.0
	// FullScale is the largest peak amplitude reported for 16-bit audio.
	FullScale = 32767
	// ClipThreshold is slightly below max to catch near-clips.
	ClipThreshold int16 = 32760
)

// Peaks holds per-channel results of processing one PCM buffer.
type Peaks struct {
	Left, Right         int
	ClipLeft, ClipRight int
}

// GainFactor converts a gain in half-decibel steps to a linear factor.
func GainFactor(halfDB int) float64 {
	return math.Pow(10, float64(halfDB)/40)
}

// ApplyGain scales S16LE stereo PCM in place and returns the resulting peaks.
// Samples saturate at the 16-bit limits. A factor of exactly 1 leaves the
// buffer untouched.
func ApplyGain(buf []byte, factorL, factorR float64) Peaks {
	var p Peaks
	for i := 0; i+3 < len(buf); i += 4 {
		l := int16(binary.LittleEndian.Uint16(buf[i:]))
		r := int16(binary.LittleEndian.Uint16(buf[i+2:]))
		if factorL != 1 {
			l = saturate(float64(l) * factorL)
			binary.LittleEndian.PutUint16(buf[i:], uint16(l))
		}
		if factorR != 1 {
			r = saturate(float64(r) * factorR)
			binary.LittleEndian.PutUint16(buf[i+2:], uint16(r))
		}

		if a := abs16(l); a > p.Left {
			p.Left = a
		}
		if a := abs16(r); a > p.Right {
			p.Right = a
		}
		if l >= ClipThreshold || l <= -ClipThreshold {
			p.ClipLeft++
		}
		if r >= ClipThreshold || r <= -ClipThreshold {
			p.ClipRight++
		}
	}
	return p
}

func saturate(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// abs16 returns |s| capped at FullScale so -32768 reports as full scale.
func abs16(s int16) int {
	if s < 0 {
		return min(-int(s), FullScale)
	}
	return int(s)
}

// AmplitudeToDB converts a peak amplitude to dBFS, floored at MinDB.
func AmplitudeToDB(amp int) float64 {
	if amp <= 0 {
		return MinDB
	}
	return max(20*math.Log10(float64(amp)/FullScale), MinDB)
}

// DBToAmplitude converts dBFS to a peak amplitude in [0, FullScale].
func DBToAmplitude(db float64) int {
	if db >= 0 {
		return FullScale
	}
	return int(math.Round(FullScale * math.Pow(10, db/20)))
}
