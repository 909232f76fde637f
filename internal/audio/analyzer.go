package audio

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// FFT window size, power of 2. ~21 frames/sec at 44100Hz.
	fftSize = 2048
	// Frequency bands exposed to visualization consumers
	numBands = 64
	// Temporal smoothing factor between successive FFT frames
	smoothingFactor = 0.6
)

// AudioDataCallback is called when new audio analysis data is ready
type AudioDataCallback func(bands []uint8)

// Analyzer performs real-time FFT analysis on the post-chain PCM stream
// and exposes log-spaced frequency bands for visualization.
type Analyzer struct {
	mu sync.RWMutex

	fft    *fourier.FFT
	window []float64 // Hanning

	sampleBuffer []float64
	bufferIndex  int

	smoothedBands []float64

	sampleRate int
	channels   int

	callback AudioDataCallback
}

// NewAnalyzer creates a new audio analyzer
func NewAnalyzer(sampleRate, channels int) *Analyzer {
	window := make([]float64, fftSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}

	return &Analyzer{
		fft:           fourier.NewFFT(fftSize),
		window:        window,
		sampleBuffer:  make([]float64, fftSize),
		smoothedBands: make([]float64, numBands),
		sampleRate:    sampleRate,
		channels:      channels,
	}
}

// ProcessSamples consumes 16-bit PCM and updates the frequency bands.
// The callback, if set, fires outside the lock whenever a full window has
// been analyzed.
func (a *Analyzer) ProcessSamples(data []byte) {
	var notifyBands []uint8

	a.mu.Lock()

	frameBytes := 2 * a.channels
	for i := 0; i+frameBytes <= len(data); i += frameBytes {
		// Mix down to mono
		var sum float64
		for ch := 0; ch < a.channels; ch++ {
			offset := i + ch*2
			sample := int16(data[offset]) | int16(data[offset+1])<<8
			sum += float64(sample) / 32768.0
		}

		a.sampleBuffer[a.bufferIndex] = sum / float64(a.channels)
		a.bufferIndex = (a.bufferIndex + 1) % fftSize

		if a.bufferIndex == 0 {
			a.computeFFT()
			if a.callback != nil {
				notifyBands = a.bandsLocked()
			}
		}
	}

	callback := a.callback
	a.mu.Unlock()

	if notifyBands != nil && callback != nil {
		callback(notifyBands)
	}
}

func (a *Analyzer) computeFFT() {
	windowed := make([]float64, fftSize)
	for i := 0; i < fftSize; i++ {
		idx := (a.bufferIndex + i) % fftSize
		windowed[i] = a.sampleBuffer[idx] * a.window[i]
	}

	coeffs := a.fft.Coefficients(nil, windowed)

	// Map FFT bins onto log-spaced bands, 20Hz up to Nyquist
	minFreq := 20.0
	maxFreq := float64(a.sampleRate) / 2
	logMin := math.Log10(minFreq)
	logRange := math.Log10(maxFreq) - logMin
	freqPerBin := float64(a.sampleRate) / float64(fftSize)

	bands := make([]float64, numBands)
	counts := make([]int, numBands)

	for bin := 1; bin < fftSize/2; bin++ {
		freq := float64(bin) * freqPerBin
		if freq < minFreq {
			continue
		}

		band := int((math.Log10(freq) - logMin) / logRange * float64(numBands))
		if band < 0 {
			band = 0
		}
		if band >= numBands {
			band = numBands - 1
		}

		magnitude := math.Hypot(real(coeffs[bin]), imag(coeffs[bin]))

		// dB scaled to 0-255 over a -60dB..0dB range
		db := 20 * math.Log10(magnitude/float64(fftSize)+1e-10)
		level := (db + 60) / 60 * 255
		if level < 0 {
			level = 0
		}
		if level > 255 {
			level = 255
		}

		bands[band] += level
		counts[band]++
	}

	for i := range bands {
		if counts[i] > 0 {
			bands[i] /= float64(counts[i])
		}
	}

	for i := range a.smoothedBands {
		a.smoothedBands[i] = smoothingFactor*a.smoothedBands[i] + (1-smoothingFactor)*bands[i]
	}
}

func (a *Analyzer) bandsLocked() []uint8 {
	result := make([]uint8, numBands)
	for i, v := range a.smoothedBands {
		if v > 255 {
			result[i] = 255
		} else if v > 0 {
			result[i] = uint8(v)
		}
	}
	return result
}

// GetBands returns the current frequency bands (0-255 each)
func (a *Analyzer) GetBands() []uint8 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bandsLocked()
}

// SetCallback registers a callback for real-time band pushes
func (a *Analyzer) SetCallback(cb AudioDataCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callback = cb
}

// Reset clears the analyzer state
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.bufferIndex = 0
	for i := range a.sampleBuffer {
		a.sampleBuffer[i] = 0
	}
	for i := range a.smoothedBands {
		a.smoothedBands[i] = 0
	}
}
