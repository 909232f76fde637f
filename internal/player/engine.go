package player

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/soundvault/playerd/internal/audio"
	"github.com/soundvault/playerd/internal/types"
)

// Seeking back past this threshold restarts the track instead of skipping
const restartThresholdMs = 3000

// How many tracks a radio queue is seeded/extended with
const (
	radioPlaylistSize = 40
	radioExtendCount  = 10
)

// Catalog is the track catalog collaborator
type Catalog interface {
	GetTrack(ctx context.Context, id int64) (*types.Track, error)
	ListTracks(ctx context.Context) ([]types.Track, error)
	StreamURL(id int64) string
	LogPlay(ctx context.Context, trackID, playDurationMs int64) error
}

// RadioClient is the remote recommendation collaborator
type RadioClient interface {
	GenerateRadioPlaylist(ctx context.Context, seedTrackID int64, limit int) (*types.RadioPlaylist, error)
	ExtendRadioPlaylist(ctx context.Context, playlistID string, seedTrackID int64, excludeIDs []int64, count int) ([]types.Track, error)
}

// StateStore is the remote persistence collaborator
type StateStore interface {
	GetPlayerState(ctx context.Context) (*types.PlayerSnapshot, error)
	PutPlayerState(ctx context.Context, snapshot *types.PlayerSnapshot) error
}

// Transport is the underlying media element. audio.Player implements it.
type Transport interface {
	Play(ctx context.Context, source string, knownDurationMs int64) error
	PlayFrom(ctx context.Context, source string, knownDurationMs, startMs int64) error
	Pause() error
	Resume() error
	Stop() error
	Seek(positionMs int64) error
	SetVolume(volume float64) error
	Position() int64
	Duration() int64
	SetOnTrackEnd(callback audio.SourceCallback)
	SetOnReady(callback audio.SourceCallback)
}

// SignalChain is the audio processing graph controller
type SignalChain interface {
	SetTrackGain(hintDB *float64, normalizationEnabled bool)
	SetLimiter(enabled bool, ceilingDB float64)
}

// LyricPrefetcher warms the lyric cache for upcoming tracks
type LyricPrefetcher interface {
	Prefetch(ctx context.Context, tracks []types.Track)
}

// State is an immutable snapshot of the engine, published to subscribers.
// Queue/index/current-track always correspond to one consistent transition.
type State struct {
	CurrentTrack   *types.Track
	CurrentStation *types.RadioStation
	Queue          []types.Track
	QueueIndex     int
	IsPlaying      bool
	IsLoading      bool
	Volume         float64
	Muted          bool
	ShuffleEnabled bool
	RepeatMode     types.RepeatMode
	RadioMode      bool
}

// StateCallback is called with a state snapshot after every transition
type StateCallback func(State)

// Options configures the engine
type Options struct {
	NormalizationEnabled bool
	LimiterEnabled       bool
	LimiterCeilingDB     float64
	SnapshotInterval     time.Duration
	LyricPrefetchCount   int
	DefaultVolume        float64
}

// Engine is the playback state machine: the single source of truth for the
// current track/station, queue, position and mode flags. All collaborators
// are injected so the engine is testable without network or audio device.
type Engine struct {
	mu sync.Mutex

	transport Transport
	catalog   Catalog
	radio     RadioClient
	store     StateStore
	chain     SignalChain
	lyrics    LyricPrefetcher
	generator *Generator

	queue          *Queue
	currentTrack   *types.Track
	currentStation *types.RadioStation
	isPlaying      bool
	isLoading      bool

	volume     float64
	muted      bool
	lastVolume float64

	shuffle bool
	repeat  types.RepeatMode

	radioMode       bool
	radioPlaylistID string

	normalization    bool
	limiterEnabled   bool
	limiterCeilingDB float64

	// pendingSeekMs is a seek requested before the source was ready; it is
	// applied exactly once on readiness, then cleared
	pendingSeekMs *int64

	// loadGen invalidates in-flight async loads when a newer one starts
	loadGen uint64

	snapshotInterval time.Duration
	prefetchCount    int

	subscribers []StateCallback
	extending   bool // an async queue extension is already in flight
}

// New creates a playback engine wired to its collaborators
func New(transport Transport, catalog Catalog, radio RadioClient, store StateStore, chain SignalChain, lyricCache LyricPrefetcher, opts Options) *Engine {
	e := &Engine{
		transport:        transport,
		catalog:          catalog,
		radio:            radio,
		store:            store,
		chain:            chain,
		lyrics:           lyricCache,
		generator:        NewGenerator(),
		queue:            NewQueue(),
		volume:           opts.DefaultVolume,
		lastVolume:       opts.DefaultVolume,
		normalization:    opts.NormalizationEnabled,
		limiterEnabled:   opts.LimiterEnabled,
		limiterCeilingDB: opts.LimiterCeilingDB,
		snapshotInterval: opts.SnapshotInterval,
		prefetchCount:    opts.LyricPrefetchCount,
	}
	if e.volume <= 0 {
		e.volume = 0.8
		e.lastVolume = 0.8
	}

	transport.SetOnTrackEnd(e.handleTrackEnd)
	transport.SetOnReady(e.handleReady)
	transport.SetVolume(e.volume)
	if chain != nil {
		chain.SetLimiter(e.limiterEnabled, e.limiterCeilingDB)
	}

	return e
}

// Subscribe registers a callback invoked with a snapshot after every state
// transition. Callbacks run outside the engine lock.
func (e *Engine) Subscribe(callback StateCallback) {
	e.mu.Lock()
	e.subscribers = append(e.subscribers, callback)
	e.mu.Unlock()
}

// State returns a snapshot of the current engine state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() State {
	return State{
		CurrentTrack:   e.currentTrack,
		CurrentStation: e.currentStation,
		Queue:          e.queue.Tracks(),
		QueueIndex:     e.queue.Index(),
		IsPlaying:      e.isPlaying,
		IsLoading:      e.isLoading,
		Volume:         e.volume,
		Muted:          e.muted,
		ShuffleEnabled: e.shuffle,
		RepeatMode:     e.repeat,
		RadioMode:      e.radioMode,
	}
}

// notify publishes the current state to subscribers, outside the lock
func (e *Engine) notify() {
	e.mu.Lock()
	state := e.snapshotLocked()
	subs := make([]StateCallback, len(e.subscribers))
	copy(subs, e.subscribers)
	e.mu.Unlock()

	for _, sub := range subs {
		sub(state)
	}
}

// PlayTrack starts playback of a track, optionally capturing a new queue.
// If queueTracks is nil the queue becomes just this track. Starting track
// playback cancels any radio/station state.
func (e *Engine) PlayTrack(ctx context.Context, track types.Track, queueTracks []types.Track, index int) error {
	e.mu.Lock()

	if queueTracks == nil {
		queueTracks = []types.Track{track}
		index = 0
	}
	e.queue.Set(queueTracks, index)
	if e.shuffle {
		// Re-shuffle the active order with the given track pinned first;
		// the shadow original order stays as supplied
		e.queue.Shuffle()
	}

	e.clearRadioLocked()
	e.currentStation = nil

	err := e.startCurrentLocked(ctx, track)
	e.mu.Unlock()

	e.notify()
	e.prefetchUpcoming(ctx)
	return err
}

// startCurrentLocked assigns and starts the given track. Called with the
// lock held; the transport call itself happens on a goroutine so intent
// handlers never block on ffprobe.
func (e *Engine) startCurrentLocked(ctx context.Context, track types.Track) error {
	t := track
	e.currentTrack = &t
	e.isLoading = true
	e.isPlaying = true
	e.pendingSeekMs = nil
	e.loadGen++

	if e.chain != nil {
		e.chain.SetTrackGain(t.LoudnessGainDB, e.normalization)
	}

	source := e.catalog.StreamURL(t.ID)
	duration := t.DurationMs
	gen := e.loadGen

	go func() {
		if err := e.transport.Play(ctx, source, duration); err != nil {
			log.Printf("[ENGINE] Failed to start playback of track %d: %v", t.ID, err)
			e.mu.Lock()
			if e.loadGen == gen {
				e.isLoading = false
				e.isPlaying = false
			}
			e.mu.Unlock()
			e.notify()
		}
	}()

	return nil
}

// Play resumes the current track or station. If the source was never
// assigned (state was rehydrated), it lazy-loads and arranges a deferred
// seek to the saved position.
func (e *Engine) Play(ctx context.Context) error {
	e.mu.Lock()

	if e.isPlaying {
		e.mu.Unlock()
		return nil
	}

	if e.currentStation != nil {
		station := *e.currentStation
		e.isPlaying = true
		e.isLoading = true
		e.loadGen++
		e.mu.Unlock()
		err := e.transport.Play(ctx, station.URL, 0)
		e.notify()
		return err
	}

	if e.currentTrack == nil {
		// Nothing current; fall back to the queue head if there is one
		track, ok := e.queue.Current()
		if !ok {
			e.mu.Unlock()
			return nil
		}
		err := e.startCurrentLocked(ctx, track)
		e.mu.Unlock()
		e.notify()
		return err
	}

	if e.isLoading || e.pendingSeekMs != nil || e.transport.Duration() == 0 {
		// Source not yet assigned: lazy-load, keeping any pending seek
		track := *e.currentTrack
		err := e.startCurrentLockedLazy(ctx, track)
		e.mu.Unlock()
		e.notify()
		return err
	}

	e.isPlaying = true
	e.mu.Unlock()

	err := e.transport.Resume()
	e.notify()
	return err
}

// startCurrentLockedLazy is startCurrentLocked but preserves the pending
// seek set up by LoadState
func (e *Engine) startCurrentLockedLazy(ctx context.Context, track types.Track) error {
	pending := e.pendingSeekMs
	err := e.startCurrentLocked(ctx, track)
	e.pendingSeekMs = pending
	return err
}

// Pause pauses playback without touching queue state
func (e *Engine) Pause() error {
	e.mu.Lock()
	e.isPlaying = false
	e.mu.Unlock()

	err := e.transport.Pause()
	e.notify()
	return err
}

// TogglePlay toggles between playing and paused
func (e *Engine) TogglePlay(ctx context.Context) error {
	e.mu.Lock()
	playing := e.isPlaying
	e.mu.Unlock()

	if playing {
		return e.Pause()
	}
	return e.Play(ctx)
}

// Next advances to the next queue entry. Past the end: repeat-all wraps,
// radio mode extends the queue asynchronously, otherwise playback stops.
func (e *Engine) Next(ctx context.Context) error {
	e.mu.Lock()

	if e.queue.Len() == 0 {
		e.mu.Unlock()
		return nil
	}

	next := e.queue.Index() + 1
	if next < e.queue.Len() {
		e.queue.SetIndex(next)
		track, _ := e.queue.Current()
		err := e.startCurrentLocked(ctx, track)
		e.mu.Unlock()
		e.notify()
		e.prefetchUpcoming(ctx)
		return err
	}

	// Past the end
	if e.repeat == types.RepeatAll {
		e.queue.SetIndex(0)
		track, _ := e.queue.Current()
		err := e.startCurrentLocked(ctx, track)
		e.mu.Unlock()
		e.notify()
		return err
	}

	if e.radioMode {
		// Defer advancing until the extension resolves
		e.mu.Unlock()
		e.extendAndAdvance(ctx)
		return nil
	}

	e.stopPlaybackLocked()
	e.mu.Unlock()
	e.notify()
	return nil
}

// Previous restarts the current track when more than 3 seconds in;
// otherwise it goes back one entry, wrapping to the last.
func (e *Engine) Previous(ctx context.Context) error {
	e.mu.Lock()

	if e.queue.Len() == 0 {
		e.mu.Unlock()
		return nil
	}

	if e.transport.Position() > restartThresholdMs {
		e.mu.Unlock()
		return e.Seek(0)
	}

	prev := e.queue.Index() - 1
	if prev < 0 {
		prev = e.queue.Len() - 1
	}
	e.queue.SetIndex(prev)
	track, _ := e.queue.Current()
	err := e.startCurrentLocked(ctx, track)
	e.mu.Unlock()

	e.notify()
	return err
}

// Seek seeks within the current source. If the source is not ready yet the
// seek is stored and applied exactly once on readiness.
func (e *Engine) Seek(positionMs int64) error {
	e.mu.Lock()
	if e.isLoading {
		ms := positionMs
		e.pendingSeekMs = &ms
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	return e.transport.Seek(positionMs)
}

// SetVolume sets the volume, clamped to [0,1]. Setting exactly 0 marks the
// player muted; unmuting restores the last non-zero volume.
func (e *Engine) SetVolume(volume float64) error {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}

	e.mu.Lock()
	e.volume = volume
	if volume == 0 {
		e.muted = true
	} else {
		e.muted = false
		e.lastVolume = volume
	}
	e.mu.Unlock()

	err := e.transport.SetVolume(volume)
	e.notify()
	return err
}

// ToggleMute mutes to 0 or restores the last non-zero volume
func (e *Engine) ToggleMute() error {
	e.mu.Lock()
	muted := e.muted
	last := e.lastVolume
	e.mu.Unlock()

	if muted {
		if last == 0 {
			last = 0.8
		}
		return e.SetVolume(last)
	}
	return e.SetVolume(0)
}

// ToggleShuffle reshuffles the queue (current track pinned first) or
// restores the shadow original order
func (e *Engine) ToggleShuffle() {
	e.mu.Lock()
	e.shuffle = !e.shuffle
	if e.shuffle {
		e.queue.Shuffle()
	} else {
		e.queue.Unshuffle()
	}
	e.mu.Unlock()
	e.notify()
}

// CycleRepeat rotates none -> all -> one -> none
func (e *Engine) CycleRepeat() {
	e.mu.Lock()
	e.repeat = e.repeat.Next()
	e.mu.Unlock()
	e.notify()
}

// SetRepeat sets the repeat mode directly
func (e *Engine) SetRepeat(mode types.RepeatMode) {
	e.mu.Lock()
	changed := e.repeat != mode
	e.repeat = mode
	e.mu.Unlock()
	if changed {
		e.notify()
	}
}

// Position returns the current playback position in milliseconds
func (e *Engine) Position() int64 {
	return e.transport.Position()
}

// RemoveFromQueue removes the entry at the given index
func (e *Engine) RemoveFromQueue(index int) bool {
	e.mu.Lock()
	ok := e.queue.Remove(index)
	e.mu.Unlock()
	if ok {
		e.notify()
	}
	return ok
}

// ReorderQueue moves a queue entry
func (e *Engine) ReorderQueue(from, to int) bool {
	e.mu.Lock()
	ok := e.queue.Move(from, to)
	e.mu.Unlock()
	if ok {
		e.notify()
	}
	return ok
}

// SetNormalization toggles loudness normalization and retunes the chain
// for the current track
func (e *Engine) SetNormalization(enabled bool) {
	e.mu.Lock()
	e.normalization = enabled
	var hint *float64
	if e.currentTrack != nil {
		hint = e.currentTrack.LoudnessGainDB
	}
	chain := e.chain
	e.mu.Unlock()

	if chain != nil {
		chain.SetTrackGain(hint, enabled)
	}
	e.notify()
}

// SetLimiter toggles the limiter stage
func (e *Engine) SetLimiter(enabled bool, ceilingDB float64) {
	e.mu.Lock()
	e.limiterEnabled = enabled
	e.limiterCeilingDB = ceilingDB
	chain := e.chain
	e.mu.Unlock()

	if chain != nil {
		chain.SetLimiter(enabled, ceilingDB)
	}
	e.notify()
}

// handleReady fires when the transport has assigned a source. A pending
// seek is applied exactly once, then cleared.
func (e *Engine) handleReady(source string) {
	e.mu.Lock()
	e.isLoading = false
	pending := e.pendingSeekMs
	e.pendingSeekMs = nil
	e.mu.Unlock()

	if pending != nil {
		if err := e.transport.Seek(*pending); err != nil {
			log.Printf("[ENGINE] Deferred seek failed: %v", err)
		}
	}
	e.notify()
}

// handleTrackEnd implements the track-end policy. Invoked by the transport
// when a source finishes naturally.
func (e *Engine) handleTrackEnd(source string) {
	ctx := context.Background()

	e.mu.Lock()

	if e.currentStation != nil {
		// A station stream dropping is an end of playback, not a transition
		e.isPlaying = false
		e.mu.Unlock()
		e.notify()
		return
	}

	finished := e.currentTrack
	e.mu.Unlock()

	// Best-effort play logging; failures are invisible
	if finished != nil {
		go func(id, duration int64) {
			if err := e.catalog.LogPlay(ctx, id, duration); err != nil {
				log.Printf("[ENGINE] Failed to log play for track %d: %v", id, err)
			}
		}(finished.ID, finished.DurationMs)
	}

	e.mu.Lock()

	if e.repeat == types.RepeatOne {
		track, ok := e.queue.Current()
		if !ok && e.currentTrack != nil {
			track = *e.currentTrack
			ok = true
		}
		if ok {
			err := e.startCurrentLocked(ctx, track)
			e.mu.Unlock()
			e.notify()
			if err != nil {
				log.Printf("[ENGINE] Failed to restart track: %v", err)
			}
			return
		}
		e.mu.Unlock()
		return
	}

	atEnd := e.queue.Len() > 0 && e.queue.Index() == e.queue.Len()-1
	if atEnd && e.repeat == types.RepeatNone && !e.radioMode {
		// Last entry just finished: try a smart-queue extension first
		e.mu.Unlock()
		e.extendAndAdvance(ctx)
		return
	}

	e.mu.Unlock()
	if err := e.Next(ctx); err != nil {
		log.Printf("[ENGINE] Failed to advance after track end: %v", err)
	}
}

// extendAndAdvance requests more tracks (remote radio extension or local
// heuristic), appends them and advances into the new material. If nothing
// comes back, playback stops.
func (e *Engine) extendAndAdvance(ctx context.Context) {
	e.mu.Lock()
	if e.extending {
		e.mu.Unlock()
		return
	}
	e.extending = true
	gen := e.loadGen
	seed := e.currentTrack
	if seed == nil {
		if track, ok := e.queue.Current(); ok {
			seed = &track
		}
	}
	playlistID := e.radioPlaylistID
	excludeIDs := e.queue.TrackIDs()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.extending = false
		e.mu.Unlock()
	}()

	if seed == nil {
		return
	}

	added := e.generateMore(ctx, *seed, playlistID, excludeIDs, radioExtendCount)

	e.mu.Lock()
	if e.loadGen != gen {
		// A newer intent superseded this extension; drop it
		e.mu.Unlock()
		return
	}

	if len(added) == 0 {
		e.stopPlaybackLocked()
		e.mu.Unlock()
		e.notify()
		return
	}

	next := e.queue.Len()
	e.queue.Append(added)
	e.queue.SetIndex(next)
	track, _ := e.queue.Current()
	err := e.startCurrentLocked(ctx, track)
	e.mu.Unlock()

	e.notify()
	e.prefetchUpcoming(ctx)
	if err != nil {
		log.Printf("[ENGINE] Failed to start extended queue entry: %v", err)
	}
}

// generateMore tries the remote extension endpoint, then falls back to the
// local heuristic generator. Never returns an error; a failed remote call
// just yields the local result (which may be empty).
func (e *Engine) generateMore(ctx context.Context, seed types.Track, playlistID string, excludeIDs []int64, count int) []types.Track {
	if playlistID != "" && e.radio != nil {
		tracks, err := e.radio.ExtendRadioPlaylist(ctx, playlistID, seed.ID, excludeIDs, count)
		if err == nil {
			return tracks
		}
		log.Printf("[RADIO] Remote extension failed, falling back to local: %v", err)
	}

	catalog, err := e.catalog.ListTracks(ctx)
	if err != nil {
		log.Printf("[RADIO] Catalog listing failed, cannot extend queue: %v", err)
		return nil
	}

	exclude := make(map[int64]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		exclude[id] = true
	}
	return e.generator.Build(seed, catalog, exclude)
}

// StartRadio builds a radio queue seeded by a track and starts playing it.
// Remote generation failures fall back silently to the local heuristic; in
// that case there is no backend playlist id and later extensions are local
// too.
func (e *Engine) StartRadio(ctx context.Context, seed types.Track) error {
	var queueTracks []types.Track
	playlistID := ""

	if e.radio != nil {
		if playlist, err := e.radio.GenerateRadioPlaylist(ctx, seed.ID, radioPlaylistSize); err == nil && len(playlist.Tracks) > 0 {
			queueTracks = playlist.Tracks
			playlistID = playlist.PlaylistID
		} else if err != nil {
			log.Printf("[RADIO] Remote generation failed, falling back to local: %v", err)
		}
	}

	if queueTracks == nil {
		generated := e.generateMore(ctx, seed, "", []int64{seed.ID}, radioPlaylistSize)
		queueTracks = append([]types.Track{seed}, generated...)
	}

	// The seed leads the queue
	if len(queueTracks) == 0 || queueTracks[0].ID != seed.ID {
		queueTracks = append([]types.Track{seed}, queueTracks...)
	}

	e.mu.Lock()
	e.queue.Set(queueTracks, 0)
	e.currentStation = nil
	e.radioMode = true
	e.radioPlaylistID = playlistID

	err := e.startCurrentLocked(ctx, seed)
	e.mu.Unlock()

	e.notify()
	e.prefetchUpcoming(ctx)
	return err
}

// StopRadio halts playback and clears radio mode and all radio-only state.
// Any in-flight extension result is discarded via the load generation.
func (e *Engine) StopRadio() error {
	e.mu.Lock()
	e.clearRadioLocked()
	e.stopPlaybackLocked()
	e.mu.Unlock()

	e.notify()
	return nil
}

func (e *Engine) clearRadioLocked() {
	e.radioMode = false
	e.radioPlaylistID = ""
}

// PlayStation starts a continuous radio station stream. Station mode is
// mutually exclusive with track playback.
func (e *Engine) PlayStation(ctx context.Context, station types.RadioStation) error {
	e.mu.Lock()
	e.clearRadioLocked()
	e.currentTrack = nil
	st := station
	e.currentStation = &st
	e.isPlaying = true
	e.isLoading = true
	e.pendingSeekMs = nil
	e.loadGen++
	gen := e.loadGen
	e.mu.Unlock()

	if e.chain != nil {
		// Stations carry no loudness hint; ramp back to unity
		e.chain.SetTrackGain(nil, false)
	}

	go func() {
		if err := e.transport.Play(ctx, station.URL, 0); err != nil {
			log.Printf("[ENGINE] Failed to start station %q: %v", station.Name, err)
			e.mu.Lock()
			if e.loadGen == gen {
				e.isPlaying = false
				e.isLoading = false
			}
			e.mu.Unlock()
			e.notify()
		}
	}()

	e.notify()
	return nil
}

// stopPlaybackLocked stops the transport and marks the engine stopped.
// Queue state is preserved.
func (e *Engine) stopPlaybackLocked() {
	e.isPlaying = false
	e.isLoading = false
	e.pendingSeekMs = nil
	e.loadGen++
	go e.transport.Stop()
}

// SaveState snapshots the engine to the remote persistence endpoint.
// Best-effort: failures are logged by the caller and playback continues.
func (e *Engine) SaveState(ctx context.Context) error {
	e.mu.Lock()
	snapshot := &types.PlayerSnapshot{
		PositionMs:     e.transport.Position(),
		Volume:         e.volume,
		ShuffleEnabled: e.shuffle,
		RepeatMode:     e.repeat.String(),
	}
	if e.currentTrack != nil {
		id := e.currentTrack.ID
		snapshot.CurrentTrackID = &id
	}
	e.mu.Unlock()

	return e.store.PutPlayerState(ctx, snapshot)
}

// LoadState rehydrates the engine from the remote snapshot. The saved track
// id is resolved back to a full record via the catalog, and the saved
// position becomes a pending seek applied when the source is ready. Does
// not start playback.
func (e *Engine) LoadState(ctx context.Context) error {
	snapshot, err := e.store.GetPlayerState(ctx)
	if err != nil {
		return err
	}

	var track *types.Track
	if snapshot.CurrentTrackID != nil {
		track, err = e.catalog.GetTrack(ctx, *snapshot.CurrentTrackID)
		if err != nil {
			log.Printf("[ENGINE] Saved track %d no longer resolvable: %v", *snapshot.CurrentTrackID, err)
			track = nil
		}
	}

	e.mu.Lock()
	e.volume = snapshot.Volume
	if e.volume > 0 {
		e.lastVolume = e.volume
	}
	e.muted = snapshot.Volume == 0
	e.shuffle = snapshot.ShuffleEnabled
	e.repeat = types.ParseRepeatMode(snapshot.RepeatMode)
	if track != nil {
		e.currentTrack = track
		e.queue.Set([]types.Track{*track}, 0)
		e.isLoading = true // source not assigned yet; Play() lazy-loads
		if snapshot.PositionMs > 0 {
			ms := snapshot.PositionMs
			e.pendingSeekMs = &ms
		}
	}
	e.mu.Unlock()

	e.transport.SetVolume(snapshot.Volume)
	e.notify()
	return nil
}

// Run owns the periodic snapshot task for the engine's lifetime: started on
// activation, stopped on teardown, with a final save on the way out.
func (e *Engine) Run(ctx context.Context) {
	if e.snapshotInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(e.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if err := e.SaveState(saveCtx); err != nil {
				log.Printf("[ENGINE] Final state save failed: %v", err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := e.SaveState(ctx); err != nil {
				log.Printf("[ENGINE] Periodic state save failed: %v", err)
			}
		}
	}
}

// prefetchUpcoming warms the lyric cache for the next few queue entries
func (e *Engine) prefetchUpcoming(ctx context.Context) {
	if e.lyrics == nil || e.prefetchCount <= 0 {
		return
	}

	e.mu.Lock()
	tracks := e.queue.Tracks()
	index := e.queue.Index()
	e.mu.Unlock()

	end := index + 1 + e.prefetchCount
	if end > len(tracks) {
		end = len(tracks)
	}
	if index+1 >= end {
		return
	}
	e.lyrics.Prefetch(ctx, tracks[index+1:end])
}
