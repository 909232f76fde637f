package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/soundvault/playerd/internal/audio"
	"github.com/soundvault/playerd/internal/types"
)

// fakeTransport records transport calls. Play signals playCh so tests can
// wait for the engine's async source starts.
type fakeTransport struct {
	mu         sync.Mutex
	playCh     chan string
	position   int64
	duration   int64
	volume     float64
	pauses     int
	resumes    int
	stops      int
	seeks      []int64
	onTrackEnd audio.SourceCallback
	onReady    audio.SourceCallback
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{playCh: make(chan string, 16)}
}

func (f *fakeTransport) Play(ctx context.Context, source string, knownDurationMs int64) error {
	return f.PlayFrom(ctx, source, knownDurationMs, 0)
}

func (f *fakeTransport) PlayFrom(ctx context.Context, source string, knownDurationMs, startMs int64) error {
	f.mu.Lock()
	f.duration = knownDurationMs
	f.position = startMs
	f.mu.Unlock()
	f.playCh <- source
	return nil
}

func (f *fakeTransport) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	return nil
}

func (f *fakeTransport) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
	return nil
}

func (f *fakeTransport) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeTransport) Seek(positionMs int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, positionMs)
	f.position = positionMs
	return nil
}

func (f *fakeTransport) SetVolume(volume float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = volume
	return nil
}

func (f *fakeTransport) Position() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeTransport) Duration() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *fakeTransport) SetOnTrackEnd(callback audio.SourceCallback) { f.onTrackEnd = callback }
func (f *fakeTransport) SetOnReady(callback audio.SourceCallback)   { f.onReady = callback }

func (f *fakeTransport) setPosition(ms int64) {
	f.mu.Lock()
	f.position = ms
	f.mu.Unlock()
}

func (f *fakeTransport) seekCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seeks)
}

func (f *fakeTransport) lastSeek() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seeks) == 0 {
		return -1
	}
	return f.seeks[len(f.seeks)-1]
}

func (f *fakeTransport) waitPlay(t *testing.T) string {
	t.Helper()
	select {
	case source := <-f.playCh:
		return source
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for transport.Play")
		return ""
	}
}

func (f *fakeTransport) expectNoPlay(t *testing.T) {
	t.Helper()
	select {
	case source := <-f.playCh:
		t.Fatalf("Unexpected transport.Play of %q", source)
	case <-time.After(100 * time.Millisecond):
	}
}

type fakeCatalog struct {
	mu     sync.Mutex
	tracks map[int64]types.Track
	list   []types.Track
	logCh  chan int64
}

func newFakeCatalog(tracks []types.Track) *fakeCatalog {
	byID := make(map[int64]types.Track)
	for _, track := range tracks {
		byID[track.ID] = track
	}
	return &fakeCatalog{tracks: byID, list: tracks, logCh: make(chan int64, 16)}
}

func (f *fakeCatalog) GetTrack(ctx context.Context, id int64) (*types.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	track, ok := f.tracks[id]
	if !ok {
		return nil, errors.New("track not found")
	}
	return &track, nil
}

func (f *fakeCatalog) ListTracks(ctx context.Context) ([]types.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list, nil
}

func (f *fakeCatalog) StreamURL(id int64) string {
	return fmt.Sprintf("http://server/stream/%d", id)
}

func (f *fakeCatalog) LogPlay(ctx context.Context, trackID, playDurationMs int64) error {
	f.logCh <- trackID
	return nil
}

type fakeRadio struct {
	playlist    *types.RadioPlaylist
	extension   []types.Track
	generateErr error
	extendErr   error
	generated   int
	extended    int

	// extendHook runs inside ExtendRadioPlaylist, simulating an intent
	// that lands while the extension request is in flight
	extendHook func()
}

func (f *fakeRadio) GenerateRadioPlaylist(ctx context.Context, seedTrackID int64, limit int) (*types.RadioPlaylist, error) {
	f.generated++
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return f.playlist, nil
}

func (f *fakeRadio) ExtendRadioPlaylist(ctx context.Context, playlistID string, seedTrackID int64, excludeIDs []int64, count int) ([]types.Track, error) {
	f.extended++
	if f.extendHook != nil {
		f.extendHook()
	}
	if f.extendErr != nil {
		return nil, f.extendErr
	}
	return f.extension, nil
}

type fakeStore struct {
	mu       sync.Mutex
	snapshot *types.PlayerSnapshot
	saved    []*types.PlayerSnapshot
}

func (f *fakeStore) GetPlayerState(ctx context.Context) (*types.PlayerSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshot == nil {
		return nil, errors.New("no saved state")
	}
	return f.snapshot, nil
}

func (f *fakeStore) PutPlayerState(ctx context.Context, snapshot *types.PlayerSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, snapshot)
	return nil
}

type fakeChain struct {
	mu        sync.Mutex
	gainCalls int
	lastHint  *float64
	lastNorm  bool
}

func (f *fakeChain) SetTrackGain(hintDB *float64, normalizationEnabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gainCalls++
	f.lastHint = hintDB
	f.lastNorm = normalizationEnabled
}

func (f *fakeChain) SetLimiter(enabled bool, ceilingDB float64) {}

type testRig struct {
	engine    *Engine
	transport *fakeTransport
	catalog   *fakeCatalog
	radio     *fakeRadio
	store     *fakeStore
	chain     *fakeChain
}

func newTestRig(catalogTracks []types.Track) *testRig {
	transport := newFakeTransport()
	cat := newFakeCatalog(catalogTracks)
	radio := &fakeRadio{}
	store := &fakeStore{}
	chain := &fakeChain{}

	engine := New(transport, cat, radio, store, chain, nil, Options{
		DefaultVolume: 0.8,
	})

	return &testRig{engine: engine, transport: transport, catalog: cat, radio: radio, store: store, chain: chain}
}

func rigTracks(n int) []types.Track {
	tracks := make([]types.Track, n)
	for i := range tracks {
		tracks[i] = types.Track{
			ID: int64(i + 1), Title: "Track", Artist: "Artist", DurationMs: 200000,
		}
	}
	return tracks
}

func TestPlayTrackStartsTransport(t *testing.T) {
	tracks := rigTracks(3)
	rig := newTestRig(tracks)
	ctx := context.Background()

	if err := rig.engine.PlayTrack(ctx, tracks[1], tracks, 1); err != nil {
		t.Fatalf("PlayTrack failed: %v", err)
	}

	source := rig.transport.waitPlay(t)
	if source != "http://server/stream/2" {
		t.Errorf("Expected stream URL for track 2, got %q", source)
	}

	state := rig.engine.State()
	if !state.IsPlaying {
		t.Error("Expected IsPlaying after PlayTrack")
	}
	if state.CurrentTrack == nil || state.CurrentTrack.ID != 2 {
		t.Error("Expected current track 2")
	}
	if state.QueueIndex != 1 {
		t.Errorf("Expected queue index 1, got %d", state.QueueIndex)
	}
}

func TestPlayTrackRetunesChain(t *testing.T) {
	tracks := rigTracks(1)
	gain := -3.5
	tracks[0].LoudnessGainDB = &gain
	rig := newTestRig(tracks)

	rig.engine.PlayTrack(context.Background(), tracks[0], nil, 0)
	rig.transport.waitPlay(t)

	rig.chain.mu.Lock()
	defer rig.chain.mu.Unlock()
	if rig.chain.lastHint == nil || *rig.chain.lastHint != gain {
		t.Error("Expected chain retuned with the track's loudness hint")
	}
}

func TestNextAdvances(t *testing.T) {
	tracks := rigTracks(3)
	rig := newTestRig(tracks)
	ctx := context.Background()

	rig.engine.PlayTrack(ctx, tracks[0], tracks, 0)
	rig.transport.waitPlay(t)

	rig.engine.Next(ctx)
	source := rig.transport.waitPlay(t)
	if source != "http://server/stream/2" {
		t.Errorf("Expected track 2 after Next, got %q", source)
	}
}

func TestNextPastEndStops(t *testing.T) {
	tracks := rigTracks(2)
	rig := newTestRig(tracks)
	ctx := context.Background()

	rig.engine.PlayTrack(ctx, tracks[1], tracks, 1)
	rig.transport.waitPlay(t)

	rig.engine.Next(ctx)
	rig.transport.expectNoPlay(t)

	if rig.engine.State().IsPlaying {
		t.Error("Expected playback stopped past the end of the queue")
	}
}

func TestNextPastEndRepeatAllWraps(t *testing.T) {
	tracks := rigTracks(2)
	rig := newTestRig(tracks)
	ctx := context.Background()

	rig.engine.PlayTrack(ctx, tracks[1], tracks, 1)
	rig.transport.waitPlay(t)

	rig.engine.SetRepeat(types.RepeatAll)
	rig.engine.Next(ctx)

	source := rig.transport.waitPlay(t)
	if source != "http://server/stream/1" {
		t.Errorf("Expected wrap to track 1, got %q", source)
	}
}

func TestPreviousRestartsWhenPastThreshold(t *testing.T) {
	tracks := rigTracks(3)
	rig := newTestRig(tracks)
	ctx := context.Background()

	rig.engine.PlayTrack(ctx, tracks[1], tracks, 1)
	source := rig.transport.waitPlay(t)
	rig.transport.onReady(source)

	rig.transport.setPosition(5000)
	rig.engine.Previous(ctx)

	if rig.transport.lastSeek() != 0 {
		t.Errorf("Expected seek to 0, got %d", rig.transport.lastSeek())
	}
	if rig.engine.State().QueueIndex != 1 {
		t.Error("Expected queue index unchanged on restart")
	}
}

func TestPreviousGoesBackWhenEarly(t *testing.T) {
	tracks := rigTracks(3)
	rig := newTestRig(tracks)
	ctx := context.Background()

	rig.engine.PlayTrack(ctx, tracks[1], tracks, 1)
	source := rig.transport.waitPlay(t)
	rig.transport.onReady(source)

	rig.transport.setPosition(1000)
	rig.engine.Previous(ctx)

	source = rig.transport.waitPlay(t)
	if source != "http://server/stream/1" {
		t.Errorf("Expected track 1, got %q", source)
	}
}

func TestPreviousWrapsAtFront(t *testing.T) {
	tracks := rigTracks(3)
	rig := newTestRig(tracks)
	ctx := context.Background()

	rig.engine.PlayTrack(ctx, tracks[0], tracks, 0)
	source := rig.transport.waitPlay(t)
	rig.transport.onReady(source)

	rig.transport.setPosition(1000)
	rig.engine.Previous(ctx)

	source = rig.transport.waitPlay(t)
	if source != "http://server/stream/3" {
		t.Errorf("Expected wrap to last track, got %q", source)
	}
}

func TestPendingSeekAppliedExactlyOnce(t *testing.T) {
	tracks := rigTracks(1)
	rig := newTestRig(tracks)
	ctx := context.Background()

	rig.engine.PlayTrack(ctx, tracks[0], nil, 0)
	source := rig.transport.waitPlay(t)

	// Source still loading: the seek must be deferred
	rig.engine.Seek(42000)
	if rig.transport.seekCount() != 0 {
		t.Fatal("Expected no transport seek while loading")
	}

	rig.transport.onReady(source)
	if rig.transport.seekCount() != 1 || rig.transport.lastSeek() != 42000 {
		t.Fatalf("Expected one deferred seek to 42000, got %v", rig.transport.seeks)
	}

	// A second readiness signal must not replay the seek
	rig.transport.onReady(source)
	if rig.transport.seekCount() != 1 {
		t.Errorf("Deferred seek applied more than once: %v", rig.transport.seeks)
	}
}

func TestVolumeZeroMutesAndUnmuteRestores(t *testing.T) {
	rig := newTestRig(rigTracks(1))

	rig.engine.SetVolume(0.5)
	rig.engine.SetVolume(0)

	state := rig.engine.State()
	if !state.Muted {
		t.Error("Expected muted at volume 0")
	}

	rig.engine.ToggleMute()
	state = rig.engine.State()
	if state.Muted {
		t.Error("Expected unmuted after ToggleMute")
	}
	if state.Volume != 0.5 {
		t.Errorf("Expected volume restored to 0.5, got %f", state.Volume)
	}
}

func TestSetVolumeClamps(t *testing.T) {
	rig := newTestRig(rigTracks(1))

	rig.engine.SetVolume(1.7)
	if v := rig.engine.State().Volume; v != 1 {
		t.Errorf("Expected volume clamped to 1, got %f", v)
	}

	rig.engine.SetVolume(-0.3)
	if v := rig.engine.State().Volume; v != 0 {
		t.Errorf("Expected volume clamped to 0, got %f", v)
	}
}

func TestCycleRepeatOrder(t *testing.T) {
	rig := newTestRig(rigTracks(1))

	expected := []types.RepeatMode{types.RepeatAll, types.RepeatOne, types.RepeatNone}
	for _, want := range expected {
		rig.engine.CycleRepeat()
		if got := rig.engine.State().RepeatMode; got != want {
			t.Errorf("Expected repeat %v, got %v", want, got)
		}
	}
}

func TestToggleShuffleRoundTrip(t *testing.T) {
	tracks := rigTracks(10)
	rig := newTestRig(tracks)
	ctx := context.Background()

	rig.engine.PlayTrack(ctx, tracks[4], tracks, 4)
	rig.transport.waitPlay(t)

	rig.engine.ToggleShuffle()
	state := rig.engine.State()
	if !state.ShuffleEnabled {
		t.Fatal("Expected shuffle enabled")
	}
	if state.CurrentTrack.ID != 5 {
		t.Error("Expected current track to survive shuffle")
	}
	if state.QueueIndex != 0 {
		t.Errorf("Expected current track pinned at 0, got index %d", state.QueueIndex)
	}

	rig.engine.ToggleShuffle()
	state = rig.engine.State()
	for i, track := range state.Queue {
		if track.ID != tracks[i].ID {
			t.Fatalf("Position %d: expected track %d after unshuffle, got %d", i, tracks[i].ID, track.ID)
		}
	}
	if state.QueueIndex != 4 {
		t.Errorf("Expected index restored to 4, got %d", state.QueueIndex)
	}
}

func TestTrackEndAdvancesAndLogsPlay(t *testing.T) {
	tracks := rigTracks(3)
	rig := newTestRig(tracks)
	ctx := context.Background()

	rig.engine.PlayTrack(ctx, tracks[0], tracks, 0)
	source := rig.transport.waitPlay(t)

	rig.transport.onTrackEnd(source)

	next := rig.transport.waitPlay(t)
	if next != "http://server/stream/2" {
		t.Errorf("Expected track 2 after natural end, got %q", next)
	}

	select {
	case id := <-rig.catalog.logCh:
		if id != 1 {
			t.Errorf("Expected play logged for track 1, got %d", id)
		}
	case <-time.After(2 * time.Second):
		t.Error("Timed out waiting for play log")
	}
}

func TestTrackEndRepeatOneRestarts(t *testing.T) {
	tracks := rigTracks(2)
	rig := newTestRig(tracks)
	ctx := context.Background()

	rig.engine.PlayTrack(ctx, tracks[0], tracks, 0)
	source := rig.transport.waitPlay(t)

	rig.engine.SetRepeat(types.RepeatOne)
	rig.transport.onTrackEnd(source)

	restarted := rig.transport.waitPlay(t)
	if restarted != source {
		t.Errorf("Expected same source restarted, got %q", restarted)
	}
	if rig.engine.State().QueueIndex != 0 {
		t.Error("Expected queue index unchanged under repeat-one")
	}
}

func TestTrackEndOnLastExtendsQueue(t *testing.T) {
	// Catalog has plenty of same-artist material for the local generator
	catalog := rigTracks(30)
	rig := newTestRig(catalog)
	ctx := context.Background()

	rig.engine.PlayTrack(ctx, catalog[0], []types.Track{catalog[0]}, 0)
	source := rig.transport.waitPlay(t)

	rig.transport.onTrackEnd(source)

	// The queue must have been extended and advanced into
	rig.transport.waitPlay(t)
	state := rig.engine.State()
	if len(state.Queue) <= 1 {
		t.Fatalf("Expected queue extended past 1 entry, got %d", len(state.Queue))
	}
	if state.QueueIndex != 1 {
		t.Errorf("Expected advance into extension, got index %d", state.QueueIndex)
	}
	if !state.IsPlaying {
		t.Error("Expected playback continuing into extension")
	}
}

func TestTrackEndOnLastStopsWhenNoCandidates(t *testing.T) {
	// Catalog contains only the playing track: nothing to extend with
	catalog := rigTracks(1)
	rig := newTestRig(catalog)
	ctx := context.Background()

	rig.engine.PlayTrack(ctx, catalog[0], nil, 0)
	source := rig.transport.waitPlay(t)

	rig.transport.onTrackEnd(source)
	rig.transport.expectNoPlay(t)

	if rig.engine.State().IsPlaying {
		t.Error("Expected playback stopped with no extension candidates")
	}
}

func TestStartRadioUsesRemotePlaylist(t *testing.T) {
	tracks := rigTracks(20)
	rig := newTestRig(tracks)
	rig.radio.playlist = &types.RadioPlaylist{
		PlaylistID: "pl-1",
		Tracks:     []types.Track{tracks[0], tracks[5], tracks[9]},
	}

	rig.engine.StartRadio(context.Background(), tracks[0])
	source := rig.transport.waitPlay(t)

	if source != "http://server/stream/1" {
		t.Errorf("Expected seed track playing first, got %q", source)
	}

	state := rig.engine.State()
	if !state.RadioMode {
		t.Error("Expected radio mode enabled")
	}
	if len(state.Queue) != 3 {
		t.Errorf("Expected remote playlist of 3, got %d", len(state.Queue))
	}
	if state.QueueIndex != 0 {
		t.Errorf("Expected playback from first entry, got index %d", state.QueueIndex)
	}
}

func TestStartRadioFallsBackToLocalGenerator(t *testing.T) {
	tracks := rigTracks(30)
	rig := newTestRig(tracks)
	rig.radio.generateErr = errors.New("server unreachable")

	rig.engine.StartRadio(context.Background(), tracks[0])
	source := rig.transport.waitPlay(t)

	if source != "http://server/stream/1" {
		t.Errorf("Expected seed track playing first, got %q", source)
	}

	state := rig.engine.State()
	if !state.RadioMode {
		t.Error("Expected radio mode enabled despite remote failure")
	}
	if len(state.Queue) < 2 {
		t.Errorf("Expected locally generated queue, got %d entries", len(state.Queue))
	}
	if state.Queue[0].ID != tracks[0].ID {
		t.Error("Expected seed leading the generated queue")
	}
}

func TestStopRadioClearsRadioState(t *testing.T) {
	tracks := rigTracks(20)
	rig := newTestRig(tracks)
	rig.radio.playlist = &types.RadioPlaylist{PlaylistID: "pl-1", Tracks: tracks[:5]}

	rig.engine.StartRadio(context.Background(), tracks[0])
	rig.transport.waitPlay(t)

	rig.engine.StopRadio()

	state := rig.engine.State()
	if state.RadioMode {
		t.Error("Expected radio mode cleared")
	}
	if state.IsPlaying {
		t.Error("Expected playback stopped")
	}
}

func TestPlayStationClearsTrackState(t *testing.T) {
	tracks := rigTracks(3)
	rig := newTestRig(tracks)
	ctx := context.Background()

	rig.engine.PlayTrack(ctx, tracks[0], tracks, 0)
	rig.transport.waitPlay(t)

	station := types.RadioStation{UUID: "st-1", Name: "FIP", URL: "http://stream.example/fip"}
	rig.engine.PlayStation(ctx, station)

	source := rig.transport.waitPlay(t)
	if source != station.URL {
		t.Errorf("Expected station URL, got %q", source)
	}

	state := rig.engine.State()
	if state.CurrentTrack != nil {
		t.Error("Expected current track cleared in station mode")
	}
	if state.CurrentStation == nil || state.CurrentStation.UUID != "st-1" {
		t.Error("Expected current station set")
	}
}

func TestSaveState(t *testing.T) {
	tracks := rigTracks(3)
	rig := newTestRig(tracks)
	ctx := context.Background()

	rig.engine.PlayTrack(ctx, tracks[1], tracks, 1)
	rig.transport.waitPlay(t)
	rig.transport.setPosition(61000)
	rig.engine.SetVolume(0.6)

	if err := rig.engine.SaveState(ctx); err != nil {
		t.Fatalf("SaveState failed: %v", err)
	}

	rig.store.mu.Lock()
	defer rig.store.mu.Unlock()
	if len(rig.store.saved) == 0 {
		t.Fatal("Expected a saved snapshot")
	}
	snapshot := rig.store.saved[len(rig.store.saved)-1]
	if snapshot.CurrentTrackID == nil || *snapshot.CurrentTrackID != 2 {
		t.Error("Expected track 2 in snapshot")
	}
	if snapshot.PositionMs != 61000 {
		t.Errorf("Expected position 61000, got %d", snapshot.PositionMs)
	}
	if snapshot.Volume != 0.6 {
		t.Errorf("Expected volume 0.6, got %f", snapshot.Volume)
	}
}

func TestLoadStateRehydratesWithoutPlaying(t *testing.T) {
	tracks := rigTracks(3)
	rig := newTestRig(tracks)
	ctx := context.Background()

	trackID := int64(2)
	rig.store.snapshot = &types.PlayerSnapshot{
		CurrentTrackID: &trackID,
		PositionMs:     30000,
		Volume:         0.7,
		ShuffleEnabled: true,
		RepeatMode:     "all",
	}

	if err := rig.engine.LoadState(ctx); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}

	state := rig.engine.State()
	if state.IsPlaying {
		t.Error("Expected no autoplay after LoadState")
	}
	if state.CurrentTrack == nil || state.CurrentTrack.ID != 2 {
		t.Error("Expected track 2 rehydrated")
	}
	if state.Volume != 0.7 || !state.ShuffleEnabled || state.RepeatMode != types.RepeatAll {
		t.Error("Expected preferences rehydrated")
	}
	rig.transport.expectNoPlay(t)

	// First Play lazy-loads the source and defers the saved position
	rig.engine.Play(ctx)
	source := rig.transport.waitPlay(t)
	rig.transport.onReady(source)

	if rig.transport.seekCount() != 1 || rig.transport.lastSeek() != 30000 {
		t.Errorf("Expected one deferred seek to 30000, got %v", rig.transport.seeks)
	}
}

func TestLoadStateMissingTrack(t *testing.T) {
	rig := newTestRig(rigTracks(1))
	trackID := int64(99)
	rig.store.snapshot = &types.PlayerSnapshot{
		CurrentTrackID: &trackID,
		Volume:         0.5,
	}

	if err := rig.engine.LoadState(context.Background()); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}

	state := rig.engine.State()
	if state.CurrentTrack != nil {
		t.Error("Expected no current track when the saved id is unresolvable")
	}
	if state.Volume != 0.5 {
		t.Error("Expected volume still rehydrated")
	}
}

func TestPauseAndTogglePlay(t *testing.T) {
	tracks := rigTracks(2)
	rig := newTestRig(tracks)
	ctx := context.Background()

	rig.engine.PlayTrack(ctx, tracks[0], tracks, 0)
	source := rig.transport.waitPlay(t)
	rig.transport.onReady(source)

	rig.engine.Pause()
	if rig.engine.State().IsPlaying {
		t.Error("Expected paused")
	}

	rig.engine.TogglePlay(ctx)
	if !rig.engine.State().IsPlaying {
		t.Error("Expected playing after toggle")
	}
	rig.transport.mu.Lock()
	resumes := rig.transport.resumes
	rig.transport.mu.Unlock()
	if resumes != 1 {
		t.Errorf("Expected one resume, got %d", resumes)
	}
}

func TestStaleExtensionDoesNotOverwriteNewerIntent(t *testing.T) {
	tracks := rigTracks(5)
	rig := newTestRig(tracks)
	ctx := context.Background()

	rig.radio.playlist = &types.RadioPlaylist{
		PlaylistID: "pl-1",
		Tracks:     []types.Track{tracks[0], tracks[1]},
	}
	rig.engine.StartRadio(ctx, tracks[0])
	rig.transport.waitPlay(t)

	// Move to the last radio entry so the next advance goes through an
	// extension request
	rig.engine.Next(ctx)
	rig.transport.waitPlay(t)

	rig.radio.extension = []types.Track{tracks[2], tracks[3]}
	rig.radio.extendHook = func() {
		// A direct play intent lands while the extension is in flight
		rig.engine.PlayTrack(ctx, tracks[4], nil, 0)
	}

	rig.engine.Next(ctx)

	source := rig.transport.waitPlay(t)
	if source != "http://server/stream/5" {
		t.Fatalf("Expected the direct intent's track playing, got %q", source)
	}
	// The superseded extension must not start anything
	rig.transport.expectNoPlay(t)

	state := rig.engine.State()
	if state.CurrentTrack == nil || state.CurrentTrack.ID != 5 {
		t.Error("Expected the direct intent's track current")
	}
	if len(state.Queue) != 1 || state.QueueIndex != 0 {
		t.Errorf("Expected the stale extension dropped, got queue %d index %d",
			len(state.Queue), state.QueueIndex)
	}
	if state.RadioMode {
		t.Error("Expected radio mode cleared by the direct intent")
	}
	if !state.IsPlaying {
		t.Error("Expected playback continuing on the newer track")
	}
}
