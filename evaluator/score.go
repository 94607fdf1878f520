// Package evaluator scores assistant responses, either with a single rubric
// call, with a multi-perspective panel, or with a deterministic fallback when
// no model is reachable.
package evaluator

import (
	"regexp"
	"strconv"
)

// Patterns tried in order when extracting a score from free-form evaluator
// prose. The first match wins.
var scorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)score\s*(?:of|is|:)?\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(\d+(?:\.\d+)?)\s*/\s*10`),
	regexp.MustCompile(`(?i)(?:score|rating|evaluation)[^.]*?(\d+(?:\.\d+)?)`),
}

// ExtractScore pulls a numeric score out of evaluator text. The boolean
// reports whether any pattern matched; when it did, the score is clamped to
// [0, 10].
func ExtractScore(text string) (float64, bool) {
	for _, pattern := range scorePatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		score, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		return clamp(score, 0, 10), true
	}
	return 0, false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
