package media

import (
	"context"
	"log"
	"time"

	"github.com/soundvault/playerd/internal/player"
	"github.com/soundvault/playerd/internal/types"
)

// Bridge connects the playback engine to the OS media session: engine state
// transitions become session property updates, and session commands become
// engine intents.
type Bridge struct {
	engine  *player.Engine
	session Session

	// last pushed values, to avoid redundant property change signals
	lastTrackID int64
	lastStation string
	lastState   PlaybackState
	lastShuffle bool
	lastLoop    LoopStatus
	lastVolume  float64
}

// NewBridge wires the engine and session together
func NewBridge(engine *player.Engine, session Session) *Bridge {
	b := &Bridge{
		engine:     engine,
		session:    session,
		lastState:  StateStopped,
		lastLoop:   LoopNone,
		lastVolume: -1,
	}

	session.SetCommandHandler(CommandHandlerFunc(b.onCommand))
	engine.Subscribe(b.onState)
	return b
}

func (b *Bridge) onState(state player.State) {
	b.pushMetadata(state)

	playback := StateStopped
	if state.IsPlaying {
		playback = StatePlaying
	} else if state.CurrentTrack != nil || state.CurrentStation != nil {
		playback = StatePaused
	}
	if playback != b.lastState {
		b.lastState = playback
		position := time.Duration(b.engine.Position()) * time.Millisecond
		if err := b.session.UpdatePlaybackState(playback, position); err != nil {
			log.Printf("[MEDIA] Failed to update playback state: %v", err)
		}
	}

	if state.ShuffleEnabled != b.lastShuffle {
		b.lastShuffle = state.ShuffleEnabled
		b.session.UpdateShuffle(state.ShuffleEnabled)
	}

	loop := loopStatus(state.RepeatMode)
	if loop != b.lastLoop {
		b.lastLoop = loop
		b.session.UpdateLoopStatus(loop)
	}

	if state.Volume != b.lastVolume {
		b.lastVolume = state.Volume
		b.session.UpdateVolume(state.Volume)
	}
}

func (b *Bridge) pushMetadata(state player.State) {
	if state.CurrentStation != nil {
		if state.CurrentStation.Name == b.lastStation {
			return
		}
		b.lastStation = state.CurrentStation.Name
		b.lastTrackID = 0
		b.session.UpdateMetadata(Metadata{
			Title:  state.CurrentStation.Name,
			Artist: state.CurrentStation.Genre,
			ArtURL: state.CurrentStation.LogoURL,
		})
		return
	}

	if state.CurrentTrack == nil || state.CurrentTrack.ID == b.lastTrackID {
		return
	}
	track := state.CurrentTrack
	b.lastTrackID = track.ID
	b.lastStation = ""
	b.session.UpdateMetadata(Metadata{
		TrackID:  track.ID,
		Title:    track.Title,
		Artist:   track.Artist,
		Album:    track.Album,
		Duration: time.Duration(track.DurationMs) * time.Millisecond,
	})
}

func (b *Bridge) onCommand(cmd Command, data interface{}) error {
	ctx := context.Background()

	switch cmd {
	case CmdPlay:
		return b.engine.Play(ctx)
	case CmdPause, CmdStop:
		return b.engine.Pause()
	case CmdPlayPause:
		return b.engine.TogglePlay(ctx)
	case CmdNext:
		return b.engine.Next(ctx)
	case CmdPrevious:
		return b.engine.Previous(ctx)
	case CmdSeek:
		position, ok := data.(time.Duration)
		if !ok {
			return nil
		}
		return b.engine.Seek(position.Milliseconds())
	case CmdSetShuffle:
		enabled, ok := data.(bool)
		if ok && enabled != b.engine.State().ShuffleEnabled {
			b.engine.ToggleShuffle()
		}
		return nil
	case CmdSetLoopStatus:
		status, ok := data.(LoopStatus)
		if ok {
			b.engine.SetRepeat(repeatMode(status))
		}
		return nil
	case CmdSetVolume:
		volume, ok := data.(float64)
		if ok {
			return b.engine.SetVolume(volume)
		}
		return nil
	}
	return nil
}

func loopStatus(mode types.RepeatMode) LoopStatus {
	switch mode {
	case types.RepeatOne:
		return LoopTrack
	case types.RepeatAll:
		return LoopPlaylist
	default:
		return LoopNone
	}
}

func repeatMode(status LoopStatus) types.RepeatMode {
	switch status {
	case LoopTrack:
		return types.RepeatOne
	case LoopPlaylist:
		return types.RepeatAll
	default:
		return types.RepeatNone
	}
}
