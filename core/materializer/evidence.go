package materializer

import (
	"strings"
	"unicode/utf8"
)

// Evidence reaching evidenceFullLength runes and evidenceFullWords words gets
// the full length and word weights. A connective word adds
// evidenceConnectiveBonus.
const (
	evidenceFullLength      = 200
	evidenceFullWords       = 20
	evidenceLengthWeight    = 0.4
	evidenceWordWeight      = 0.4
	evidenceConnectiveBonus = 0.2
)

var connectives = map[string]bool{
	"because": true, "since": true, "therefore": true, "thus": true,
	"with": true, "by": true, "for": true,
	"at": true, "from": true, "of": true, "and": true,
	"which": true, "who": true, "that": true, "where": true,
	"after": true, "before": true, "while": true, "through": true,
}

// EvidenceQuality scores evidence text within [0,1]. Longer text, more words
// and connective words score higher.
func EvidenceQuality(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	words := strings.Fields(strings.ToLower(text))
	lengthScore := min(1, float64(utf8.RuneCountInString(text))/evidenceFullLength)
	wordScore := min(1, float64(len(words))/evidenceFullWords)

	score := lengthScore*evidenceLengthWeight + wordScore*evidenceWordWeight
	for _, w := range words {
		if connectives[strings.Trim(w, ".,;:!?\"'()")] {
			score += evidenceConnectiveBonus
			break
		}
	}

	return min(1, score)
}
