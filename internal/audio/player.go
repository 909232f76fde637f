// Package audio handles audio decoding, the signal chain and playback output.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"
)

// PlaybackState represents the current state of the transport
type PlaybackState string

const (
	StateStopped PlaybackState = "stopped"
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
)

// Status represents the current playback status
type Status struct {
	State    PlaybackState `json:"state"`
	Source   string        `json:"source,omitempty"`
	Position int64         `json:"position"` // milliseconds
	Duration int64         `json:"duration"` // milliseconds, 0 for continuous streams
	Volume   float64       `json:"volume"`   // 0.0 - 1.0
}

// SourceCallback is called with the source that finished or became ready
type SourceCallback func(source string)

// Output is the interface for audio output backends
type Output interface {
	io.WriteCloser
	SampleRate() int
	Channels() int
}

// outputSink is the full output surface the transport drives. *OtoOutput
// implements it; tests substitute a silent sink.
type outputSink interface {
	Output
	Pause()
	Resume()
	Stop()
	SetVolume(volume float64)
	GetVolume() float64
	GetAudioBands() []uint8
	SetAudioCallback(cb AudioDataCallback)
}

// Decoder is the interface for audio decoders
type Decoder interface {
	Decode(ctx context.Context, source string, output Output) error
	DecodeFrom(ctx context.Context, source string, output Output, startMs int64) error
	Duration(source string) (time.Duration, error)
	Close() error
}

// Player is the media transport: it owns the single underlying source and
// plays exactly one thing at a time. The playback engine drives it and
// consumes its readiness and natural-end callbacks.
type Player struct {
	mu         sync.RWMutex
	playbackMu sync.Mutex // Serializes all play/stop operations - single source at a time

	state         PlaybackState
	currentSource string
	position      int64
	duration      int64 // 0 means continuous (radio stream)

	// Session tracking - a late completion from a superseded session must
	// never overwrite newer state
	sessionID   uint64
	sessionDone chan struct{} // Closed when current session ends

	cancelFunc    context.CancelFunc
	wasManualStop bool

	onTrackEnd SourceCallback
	onReady    SourceCallback

	output  outputSink
	decoder Decoder
}

// NewPlayer creates a new transport over the given signal chain
func NewPlayer(chain *Chain) (*Player, error) {
	output, err := NewOtoOutput(chain)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio output: %w", err)
	}

	decoder, err := NewFFmpegDecoder()
	if err != nil {
		output.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	return &Player{
		state:   StateStopped,
		output:  output,
		decoder: decoder,
	}, nil
}

// SetOnTrackEnd sets a callback for when a source finishes playing naturally
func (p *Player) SetOnTrackEnd(callback SourceCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTrackEnd = callback
}

// SetOnReady sets a callback for when a newly assigned source is ready.
// Deferred seeks wait for this.
func (p *Player) SetOnReady(callback SourceCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onReady = callback
}

// Play starts playback of the given source. knownDurationMs comes from the
// catalog record when available; pass 0 for continuous streams, in which
// case the decoder is asked (and streams without a duration stay unbounded).
func (p *Player) Play(ctx context.Context, source string, knownDurationMs int64) error {
	return p.PlayFrom(ctx, source, knownDurationMs, 0)
}

// PlayFrom starts playback of the given source from an offset
func (p *Player) PlayFrom(ctx context.Context, source string, knownDurationMs, startMs int64) error {
	// Serialize all play operations - only one can run at a time
	p.playbackMu.Lock()
	defer p.playbackMu.Unlock()

	p.mu.Lock()

	// Stop any current playback and WAIT for it to finish
	if p.state == StatePlaying || p.state == StatePaused {
		p.stopPlaybackLocked()
		oldDone := p.sessionDone
		p.mu.Unlock()

		// Wait for old playback goroutine to fully exit
		if oldDone != nil {
			<-oldDone
		}

		p.mu.Lock()
	}

	// Create new session
	p.sessionID++
	p.sessionDone = make(chan struct{})
	currentSession := p.sessionID
	doneChan := p.sessionDone

	p.currentSource = source
	p.position = startMs
	p.state = StatePlaying
	p.wasManualStop = false

	duration := knownDurationMs
	if duration == 0 {
		if d, err := p.decoder.Duration(source); err == nil {
			duration = d.Milliseconds()
		}
		// Probe failure means a continuous stream; leave duration at 0
	}
	p.duration = duration

	playbackCtx, cancel := context.WithCancel(context.Background())
	p.cancelFunc = cancel

	p.mu.Unlock()

	// Start decoding in background - goroutine closes doneChan when it exits
	go func() {
		defer close(doneChan)
		p.playbackLoop(playbackCtx, source, startMs, currentSession)
	}()

	return nil
}

func (p *Player) playbackLoop(ctx context.Context, source string, startMs int64, sessionID uint64) {
	log.Printf("[PLAYER] Starting playback (session %d): %s", sessionID, source)

	// Verify we're still the active session at start
	p.mu.RLock()
	if p.sessionID != sessionID {
		p.mu.RUnlock()
		log.Printf("[PLAYER] Session %d superseded, exiting immediately", sessionID)
		return
	}
	ready := p.onReady
	p.mu.RUnlock()

	// The source is assigned and decoding is about to begin; deferred seeks
	// may now be applied
	if ready != nil {
		ready(source)
	}

	// Track elapsed time accounting for pauses
	elapsedBeforePause := time.Duration(startMs) * time.Millisecond
	playStartTime := time.Now()

	// Position ticker while playing
	positionDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()

		wasPlaying := true

		for {
			select {
			case <-positionDone:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.mu.Lock()
				if p.sessionID != sessionID {
					p.mu.Unlock()
					return
				}
				if p.state == StatePlaying {
					if !wasPlaying {
						// Just resumed - reset start time
						playStartTime = time.Now()
						wasPlaying = true
					}
					p.position = (elapsedBeforePause + time.Since(playStartTime)).Milliseconds()
					if p.duration > 0 && p.position >= p.duration {
						p.position = p.duration
					}
				} else if p.state == StatePaused && wasPlaying {
					// Just paused - save elapsed time
					elapsedBeforePause += time.Since(playStartTime)
					wasPlaying = false
				}
				p.mu.Unlock()
			}
		}
	}()

	var err error
	if startMs > 0 {
		err = p.decoder.DecodeFrom(ctx, source, p.output, startMs)
	} else {
		err = p.decoder.Decode(ctx, source, p.output)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[PLAYER] Decode error: %v", err)
	}

	// Check if we're still the active session before waiting for playback
	p.mu.RLock()
	if p.sessionID != sessionID {
		p.mu.RUnlock()
		close(positionDone)
		log.Printf("[PLAYER] Session %d superseded after decode, exiting", sessionID)
		return
	}
	remainingMs := p.duration - p.position
	bounded := p.duration > 0
	p.mu.RUnlock()

	// Wait for the buffered audio to drain through the output
	if bounded && remainingMs > 0 && err == nil {
		select {
		case <-ctx.Done():
			log.Printf("[PLAYER] Playback cancelled")
		case <-time.After(time.Duration(remainingMs+500) * time.Millisecond):
			log.Printf("[PLAYER] Playback finished: %s", source)
		}
	}

	close(positionDone)

	p.mu.Lock()

	// Only update state if we're still the active session
	if p.sessionID == sessionID && p.currentSource == source {
		wasManual := p.wasManualStop
		callback := p.onTrackEnd

		p.state = StateStopped
		p.currentSource = ""
		p.position = 0
		p.duration = 0

		p.mu.Unlock()

		// If playback ended naturally (not manually stopped), tell the engine
		if !wasManual && callback != nil {
			callback(source)
		}
	} else {
		p.mu.Unlock()
	}
}

// Pause pauses playback (idempotent)
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePlaying {
		return nil
	}

	p.state = StatePaused
	p.output.Pause()
	log.Printf("[PLAYER] Paused at position %dms", p.position)

	return nil
}

// Resume resumes playback (idempotent)
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePaused {
		return nil
	}

	p.state = StatePlaying
	p.output.Resume()
	log.Printf("[PLAYER] Resumed at position %dms", p.position)

	return nil
}

// Stop stops playback
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateStopped {
		return nil
	}

	p.stopPlaybackLocked()
	return nil
}

func (p *Player) stopPlaybackLocked() {
	p.state = StateStopped
	p.wasManualStop = true

	// Cancel the context first to stop FFmpeg immediately
	if p.cancelFunc != nil {
		p.cancelFunc()
		p.cancelFunc = nil
	}

	// Brief pause to let FFmpeg process the cancellation
	time.Sleep(10 * time.Millisecond)

	// Now stop the audio output and clear the buffer
	p.output.Stop()

	log.Printf("[PLAYER] Stopped playback")

	p.currentSource = ""
	p.position = 0
	p.duration = 0
}

// Seek seeks to the specified position in milliseconds. Continuous streams
// cannot be seeked.
func (p *Player) Seek(positionMs int64) error {
	p.mu.Lock()

	if p.state == StateStopped {
		p.mu.Unlock()
		return errors.New("not playing")
	}
	if p.duration == 0 {
		p.mu.Unlock()
		return errors.New("source is not seekable")
	}

	// Clamp to valid range
	if positionMs < 0 {
		positionMs = 0
	}
	if positionMs > p.duration {
		positionMs = p.duration
	}

	source := p.currentSource
	duration := p.duration
	wasPlaying := p.state == StatePlaying

	log.Printf("[PLAYER] Seeking to %dms in %s", positionMs, source)

	// Stop current playback (marks as manual stop)
	p.stopPlaybackLocked()
	p.mu.Unlock()

	// Restart from the new position. A paused transport restarts the
	// session too, then pauses again, so it stays resumable at the new
	// offset instead of being left stopped.
	if err := p.PlayFrom(context.Background(), source, duration, positionMs); err != nil {
		return err
	}
	if !wasPlaying {
		return p.Pause()
	}
	return nil
}

// SetVolume sets the playback volume (0.0 - 1.0)
func (p *Player) SetVolume(volume float64) error {
	if volume < 0 || volume > 1 {
		return errors.New("volume must be between 0.0 and 1.0")
	}
	p.output.SetVolume(volume)
	return nil
}

// Position returns the current playback position in milliseconds
func (p *Player) Position() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.position
}

// Duration returns the duration of the current source (0 if continuous)
func (p *Player) Duration() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.duration
}

// Status returns the current playback status
func (p *Player) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return Status{
		State:    p.state,
		Source:   p.currentSource,
		Position: p.position,
		Duration: p.duration,
		Volume:   p.output.GetVolume(),
	}
}

// GetAudioBands returns current frequency bands for visualization
func (p *Player) GetAudioBands() []uint8 {
	return p.output.GetAudioBands()
}

// SetAudioCallback registers a callback for real-time audio data push
func (p *Player) SetAudioCallback(cb AudioDataCallback) {
	p.output.SetAudioCallback(cb)
}

// Close releases all resources
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateStopped {
		p.stopPlaybackLocked()
	}

	var errs []error

	if p.decoder != nil {
		if err := p.decoder.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if p.output != nil {
		if err := p.output.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}
