// Package player implements the playback engine: queue, state machine and
// smart-queue generation.
package player

import (
	"math/rand"
	"time"

	"github.com/soundvault/playerd/internal/types"
)

// Queue is an ordered sequence of tracks plus a shadow original-order
// sequence kept solely to allow exact, lossless un-shuffling. A queue index
// points at the current track. Queue is not safe for concurrent use; the
// engine serializes access.
//
// Invariant: 0 <= index < len(tracks) whenever the queue is non-empty.
// Every mutating method re-establishes this before returning.
type Queue struct {
	tracks   []types.Track
	original []types.Track
	index    int
	rng      *rand.Rand
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Set replaces the queue, capturing the given order as both the active
// order and the immutable original order
func (q *Queue) Set(tracks []types.Track, index int) {
	q.tracks = make([]types.Track, len(tracks))
	copy(q.tracks, tracks)
	q.original = make([]types.Track, len(tracks))
	copy(q.original, tracks)
	q.index = index
	q.clampIndex()
}

// Len returns the number of queued tracks
func (q *Queue) Len() int {
	return len(q.tracks)
}

// Index returns the current queue index
func (q *Queue) Index() int {
	return q.index
}

// SetIndex moves the current index; returns false if out of range
func (q *Queue) SetIndex(index int) bool {
	if index < 0 || index >= len(q.tracks) {
		return false
	}
	q.index = index
	return true
}

// Current returns the track at the queue index
func (q *Queue) Current() (types.Track, bool) {
	if len(q.tracks) == 0 || q.index < 0 || q.index >= len(q.tracks) {
		return types.Track{}, false
	}
	return q.tracks[q.index], true
}

// Tracks returns a copy of the active order
func (q *Queue) Tracks() []types.Track {
	tracks := make([]types.Track, len(q.tracks))
	copy(tracks, q.tracks)
	return tracks
}

// TrackIDs returns the ids of all queued tracks
func (q *Queue) TrackIDs() []int64 {
	ids := make([]int64, len(q.tracks))
	for i, t := range q.tracks {
		ids[i] = t.ID
	}
	return ids
}

// Append adds tracks to the end of both the active order and the shadow
// original order (radio's ad-hoc queue grows both)
func (q *Queue) Append(tracks []types.Track) {
	q.tracks = append(q.tracks, tracks...)
	q.original = append(q.original, tracks...)
	q.clampIndex()
}

// Shuffle reshuffles the active order with the current track pinned at
// position 0. The shadow original order is untouched.
func (q *Queue) Shuffle() {
	if len(q.tracks) == 0 {
		return
	}

	current := q.tracks[q.index]

	rest := make([]types.Track, 0, len(q.tracks)-1)
	for i, t := range q.tracks {
		if i != q.index {
			rest = append(rest, t)
		}
	}

	// Fisher-Yates shuffle
	for i := len(rest) - 1; i > 0; i-- {
		j := q.rng.Intn(i + 1)
		rest[i], rest[j] = rest[j], rest[i]
	}

	q.tracks = append([]types.Track{current}, rest...)
	q.index = 0
}

// Unshuffle restores the shadow original order and repositions the index to
// wherever the current track lives in that order. If the current track is no
// longer present (removed while shuffled), the index falls back to 0.
func (q *Queue) Unshuffle() {
	current, hasCurrent := q.Current()

	q.tracks = make([]types.Track, len(q.original))
	copy(q.tracks, q.original)

	q.index = 0
	if hasCurrent {
		for i, t := range q.tracks {
			if t.ID == current.ID {
				q.index = i
				break
			}
		}
	}
	q.clampIndex()
}

// Remove removes the track at the given position in the active order, and
// from the shadow original order. Returns false if out of range.
func (q *Queue) Remove(index int) bool {
	if index < 0 || index >= len(q.tracks) {
		return false
	}

	removed := q.tracks[index]
	q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)

	for i, t := range q.original {
		if t.ID == removed.ID {
			q.original = append(q.original[:i], q.original[i+1:]...)
			break
		}
	}

	if index < q.index {
		q.index--
	}
	q.clampIndex()
	return true
}

// Move moves a track within the active order, keeping the index pointing at
// the same track. The shadow original order is untouched.
func (q *Queue) Move(from, to int) bool {
	if from < 0 || from >= len(q.tracks) || to < 0 || to >= len(q.tracks) {
		return false
	}
	if from == to {
		return true
	}

	track := q.tracks[from]
	q.tracks = append(q.tracks[:from], q.tracks[from+1:]...)
	q.tracks = append(q.tracks[:to], append([]types.Track{track}, q.tracks[to:]...)...)

	switch {
	case q.index == from:
		q.index = to
	case from < q.index && to >= q.index:
		q.index--
	case from > q.index && to <= q.index:
		q.index++
	}
	q.clampIndex()
	return true
}

// Clear empties the queue
func (q *Queue) Clear() {
	q.tracks = nil
	q.original = nil
	q.index = 0
}

// OriginalOrder returns a copy of the shadow original order
func (q *Queue) OriginalOrder() []types.Track {
	original := make([]types.Track, len(q.original))
	copy(original, q.original)
	return original
}

func (q *Queue) clampIndex() {
	if len(q.tracks) == 0 {
		q.index = 0
		return
	}
	if q.index < 0 {
		q.index = 0
	}
	if q.index >= len(q.tracks) {
		q.index = len(q.tracks) - 1
	}
}
