// Package quality maps requested video quality labels onto the renditions an
// anime actually ships with. All functions are pure and total: any
// combination of inputs yields a usable label.
package quality

import (
	"regexp"
	"strconv"
)

const (
	// Auto is the sentinel label meaning "let the player decide".
	Auto = "auto"

	// Fallback is returned when no rendition list is available at all.
	Fallback = "720p"
)

var heightRegex = regexp.MustCompile(`(\d+)`)

// Height extracts the numeric pixel height embedded in a quality label.
// Returns 0 if the label carries no parseable number.
func Height(label string) int {
	m := heightRegex.FindString(label)
	if m == "" {
		return 0
	}
	h, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return h
}

// Nearest returns the label in available whose height is closest to the
// desired label's height. Ties resolve to the earlier entry in list order.
// An empty list yields Fallback; an unparseable desired label yields the
// first available entry.
func Nearest(desired string, available []string) string {
	if len(available) == 0 {
		return Fallback
	}

	want := Height(desired)
	if want == 0 {
		return available[0]
	}

	best := available[0]
	bestDiff := -1
	for _, label := range available {
		h := Height(label)
		if h == 0 {
			continue
		}
		diff := h - want
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			bestDiff = diff
			best = label
		}
	}
	return best
}

// PickAuto chooses a concrete label for the Auto sentinel: 1080p when
// offered, then 720p, then whatever sits nearest to 720p.
func PickAuto(available []string) string {
	if len(available) == 0 {
		return Fallback
	}
	if contains(available, "1080p") {
		return "1080p"
	}
	if contains(available, "720p") {
		return "720p"
	}
	return Nearest("720p", available)
}

// Resolve turns a requested label into a concrete one. Auto delegates to
// PickAuto; a label already present in available is returned unchanged;
// anything else falls through Nearest.
func Resolve(requested string, available []string) string {
	if requested == Auto {
		return PickAuto(available)
	}
	if contains(available, requested) {
		return requested
	}
	return Nearest(requested, available)
}

func contains(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
