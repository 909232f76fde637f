package audio

import (
	"math"
	"sync"
)

const (
	// Gain changes ramp linearly over this window to avoid audible clicks
	gainRampMs = 50

	// Normalization gain bounds: about -20 dB to +12 dB of correction
	minNormGain = 0.1
	maxNormGain = 4.0

	// Loudness reference the catalog's gain hints are measured against
	referenceLUFS = -14.0

	// Limiter tuning: fast brick-wall behavior, not a musical compressor
	limiterRatio      = 20.0
	limiterAttackSec  = 0.001
	limiterReleaseSec = 0.1
)

// DBToLinear converts a decibel value to a linear gain factor
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts a linear gain factor to decibels
func LinearToDB(linear float64) float64 {
	if linear <= 0 {
		return -96.0
	}
	return 20 * math.Log10(linear)
}

// LimiterParams is the full parameter set of the limiter stage
type LimiterParams struct {
	ThresholdDB float64
	KneeDB      float64
	Ratio       float64
	AttackSec   float64
	ReleaseSec  float64
}

// Chain is the fixed processing graph applied to decoded PCM:
// source -> normalization gain -> limiter -> output gain -> output.
// The limiter is never removed from the graph; disabling it sets inert
// pass-through parameters instead, to avoid rewiring.
type Chain struct {
	mu sync.Mutex

	initialized bool
	sampleRate  int
	channels    int

	// Normalization gain stage with linear ramping
	normCurrent     float64
	normTarget      float64
	rampStep        float64 // per-frame increment while ramping
	rampFramesLeft  int
	targetOffsetDB  float64 // shift applied to hints for non-reference targets

	// Limiter stage
	limiter     LimiterParams
	envelope    float64 // smoothed peak follower, linear
	attackCoef  float64
	releaseCoef float64

	// Output gain stage: stable unity scaling; volume lives at the
	// media-element level, not in the graph
	outputGain float64
}

// NewChain creates an uninitialized chain. Node setup is deferred until
// EnsureInitialized so construction is free of audio-device concerns.
func NewChain() *Chain {
	return &Chain{
		normCurrent: 1.0,
		normTarget:  1.0,
		limiter:     passthroughLimiterParams(),
		outputGain:  1.0,
	}
}

// EnsureInitialized sets up the graph for the given format exactly once.
// Subsequent calls are no-ops.
func (c *Chain) EnsureInitialized(sampleRate, channels int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return
	}
	c.initialized = true
	c.sampleRate = sampleRate
	c.channels = channels
	c.recomputeLimiterCoefsLocked()
}

// Initialized reports whether the graph has been set up
func (c *Chain) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// SetTrackGain retunes the normalization stage for a track. When enabled and
// the track carries a loudness hint (dB), the hint is shifted for the
// configured loudness target, converted to linear gain, clamped to
// [0.1, 4.0] and ramped in; otherwise the stage ramps back to unity.
func (c *Chain) SetTrackGain(hintDB *float64, normalizationEnabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := 1.0
	if normalizationEnabled && hintDB != nil {
		target = DBToLinear(*hintDB + c.targetOffsetDB)
		if target < minNormGain {
			target = minNormGain
		}
		if target > maxNormGain {
			target = maxNormGain
		}
	}
	c.rampToLocked(target)
}

// SetTargetLoudness sets the playback loudness target in LUFS (-14, -16 or
// -23). Gain hints are measured against the -14 reference; other targets
// shift every hint by the difference. Zero means unset and keeps the
// reference.
func (c *Chain) SetTargetLoudness(lufs float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if lufs == 0 {
		lufs = referenceLUFS
	}
	c.targetOffsetDB = lufs - referenceLUFS
}

// NormalizationGain returns the normalization stage's target linear gain
func (c *Chain) NormalizationGain() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.normTarget
}

// SetLimiter retunes the limiter stage. Enabled, it acts as a near
// brick-wall limiter at the given ceiling; disabled, it becomes an inert
// pass-through (threshold 0 dB, wide knee, ratio 1).
func (c *Chain) SetLimiter(enabled bool, ceilingDB float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enabled {
		c.limiter = LimiterParams{
			ThresholdDB: ceilingDB,
			KneeDB:      0,
			Ratio:       limiterRatio,
			AttackSec:   limiterAttackSec,
			ReleaseSec:  limiterReleaseSec,
		}
	} else {
		c.limiter = passthroughLimiterParams()
	}
	c.recomputeLimiterCoefsLocked()
}

// Limiter returns the limiter stage's current parameter set
func (c *Chain) Limiter() LimiterParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limiter
}

func passthroughLimiterParams() LimiterParams {
	return LimiterParams{
		ThresholdDB: 0,
		KneeDB:      30,
		Ratio:       1,
		AttackSec:   limiterAttackSec,
		ReleaseSec:  limiterReleaseSec,
	}
}

// rampToLocked starts a linear ramp from the current gain to target over
// the ramp window. Never jumps, even for small changes.
func (c *Chain) rampToLocked(target float64) {
	c.normTarget = target

	rate := c.sampleRate
	if rate == 0 {
		// Graph not initialized yet; nothing audible, snap directly
		c.normCurrent = target
		return
	}

	frames := rate * gainRampMs / 1000
	if frames < 1 {
		frames = 1
	}
	c.rampFramesLeft = frames
	c.rampStep = (target - c.normCurrent) / float64(frames)
}

func (c *Chain) recomputeLimiterCoefsLocked() {
	rate := c.sampleRate
	if rate == 0 {
		return
	}
	c.attackCoef = math.Exp(-1 / (c.limiter.AttackSec * float64(rate)))
	c.releaseCoef = math.Exp(-1 / (c.limiter.ReleaseSec * float64(rate)))
}

// Process runs the chain over interleaved signed 16-bit little-endian PCM,
// in place. Called on the decode path before samples reach the output.
func (c *Chain) Process(buf []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return
	}

	channels := c.channels
	if channels < 1 {
		channels = 1
	}
	bytesPerFrame := channels * 2

	threshold := DBToLinear(c.limiter.ThresholdDB)
	limiting := c.limiter.Ratio > 1

	for frame := 0; frame+bytesPerFrame <= len(buf); frame += bytesPerFrame {
		// Advance the normalization ramp once per frame
		if c.rampFramesLeft > 0 {
			c.normCurrent += c.rampStep
			c.rampFramesLeft--
			if c.rampFramesLeft == 0 {
				c.normCurrent = c.normTarget
			}
		}

		// Peak across channels after normalization gain, for the envelope
		var peak float64
		for ch := 0; ch < channels; ch++ {
			i := frame + ch*2
			sample := float64(int16(uint16(buf[i])|uint16(buf[i+1])<<8)) / 32768.0
			sample *= c.normCurrent
			if a := math.Abs(sample); a > peak {
				peak = a
			}
		}

		// Envelope follower: fast attack, slow release
		if peak > c.envelope {
			c.envelope = c.attackCoef*c.envelope + (1-c.attackCoef)*peak
		} else {
			c.envelope = c.releaseCoef*c.envelope + (1-c.releaseCoef)*peak
		}

		// Gain reduction above threshold
		reduction := 1.0
		if limiting && c.envelope > threshold {
			overDB := LinearToDB(c.envelope) - c.limiter.ThresholdDB
			reductionDB := overDB * (1 - 1/c.limiter.Ratio)
			reduction = DBToLinear(-reductionDB)
		}

		gain := c.normCurrent * reduction * c.outputGain
		for ch := 0; ch < channels; ch++ {
			i := frame + ch*2
			sample := float64(int16(uint16(buf[i])|uint16(buf[i+1])<<8)) / 32768.0
			sample *= gain
			if sample > 1.0 {
				sample = 1.0
			}
			if sample < -1.0 {
				sample = -1.0
			}
			out := int16(sample * 32767.0)
			buf[i] = byte(uint16(out))
			buf[i+1] = byte(uint16(out) >> 8)
		}
	}
}
