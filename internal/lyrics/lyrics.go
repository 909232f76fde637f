// Package lyrics parses timestamped lyric documents and maps playback
// positions to the active line.
package lyrics

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Line is a single timestamped lyric line
type Line struct {
	Time float64 // seconds
	Text string
}

// Timestamps look like [mm:ss.xx]; some documents carry multiple
// timestamps per line.
var timestampRe = regexp.MustCompile(`\[(\d+):(\d+(?:\.\d+)?)\]`)

// Parse parses an LRC document into lines sorted by time ascending.
// Lines with empty text are dropped. Source documents are not guaranteed
// to be pre-sorted, so the result is always re-sorted.
func Parse(doc string) []Line {
	var lines []Line

	for _, raw := range strings.Split(doc, "\n") {
		matches := timestampRe.FindAllStringSubmatch(raw, -1)
		if len(matches) == 0 {
			continue
		}

		text := strings.TrimSpace(timestampRe.ReplaceAllString(raw, ""))
		if text == "" {
			continue
		}

		for _, m := range matches {
			minutes, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			seconds, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				continue
			}
			lines = append(lines, Line{
				Time: float64(minutes)*60 + seconds,
				Text: text,
			})
		}
	}

	sort.Slice(lines, func(i, j int) bool {
		return lines[i].Time < lines[j].Time
	})

	return lines
}

// ActiveLine returns the index of the last line whose time is <= position,
// or -1 if the position is before the first line or the document is empty.
func ActiveLine(lines []Line, position float64) int {
	// sort.Search finds the first line with time > position; the active
	// line is the one before it.
	i := sort.Search(len(lines), func(i int) bool {
		return lines[i].Time > position
	})
	return i - 1
}
