package player

import (
	"math/rand"
	"time"

	"github.com/samber/lo"

	"github.com/soundvault/playerd/internal/types"
)

const (
	// Per-tier caps for the local heuristic generator
	maxSameArtist = 8
	maxSameGenre  = 12
	maxSameAlbum  = 4

	// If the tiers produce fewer than this, top up with anything remaining
	minGenerated = 10
)

// Generator builds "tasteful next tracks" locally when the remote
// recommendation endpoint is unavailable. Given the same catalog, exclusion
// set and seed, the set of eligible candidates per tier is deterministic;
// only the shuffle order is random.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator with a time-seeded randomness source
func NewGenerator() *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Build produces a ranked candidate list from the catalog: same-artist
// tracks first, then same-genre, then same-album, each tier shuffled and
// capped, topped up with a random sample if too few were collected. The
// seed itself and everything in excludeIDs is never returned.
func (g *Generator) Build(seed types.Track, catalog []types.Track, excludeIDs map[int64]bool) []types.Track {
	eligible := lo.Filter(catalog, func(t types.Track, _ int) bool {
		return t.ID != seed.ID && !excludeIDs[t.ID]
	})

	selected := make(map[int64]bool)
	var result []types.Track

	take := func(pool []types.Track, max int) {
		g.shuffle(pool)
		for _, t := range pool {
			if max <= 0 {
				break
			}
			if selected[t.ID] {
				continue
			}
			result = append(result, t)
			selected[t.ID] = true
			max--
		}
	}

	if seed.Artist != "" {
		take(lo.Filter(eligible, func(t types.Track, _ int) bool {
			return t.Artist == seed.Artist
		}), maxSameArtist)
	}

	if seed.Genre != "" {
		take(lo.Filter(eligible, func(t types.Track, _ int) bool {
			return t.Genre == seed.Genre
		}), maxSameGenre)
	}

	if seed.Album != "" {
		take(lo.Filter(eligible, func(t types.Track, _ int) bool {
			return t.Album == seed.Album
		}), maxSameAlbum)
	}

	// Too few related tracks: top up with a shuffled sample of the rest
	if len(result) < minGenerated {
		take(lo.Filter(eligible, func(t types.Track, _ int) bool {
			return !selected[t.ID]
		}), minGenerated-len(result))
	}

	return result
}

func (g *Generator) shuffle(tracks []types.Track) {
	g.rng.Shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})
}
