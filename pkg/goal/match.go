package goal

import (
	"strings"
	"unicode"
)

// Fuzzy-match tuning. The threshold is a provisional default with no
// evaluation data behind it.
const (
	// matchTokenWeight is the score added per overlapping token pair.
	matchTokenWeight = 0.1

	// matchScoreCap bounds the score of a single key result.
	matchScoreCap = 1.0

	// MatchThreshold is the minimum score for a confident match.
	MatchThreshold = 0.3
)

// MatchResult is the outcome of matching free text against key results.
type MatchResult struct {
	// Matched reports whether a key result scored at or above
	// MatchThreshold.
	Matched bool

	// KeyResult is the best-scoring key result (nil when Matched is false).
	KeyResult *KeyResult

	// Goal is the goal owning the matched key result.
	Goal *Goal

	// Score is the best score found.
	Score float64

	// Candidates lists all candidate key-result titles, for disambiguation
	// when no confident match exists.
	Candidates []string
}

// MatchKeyResult scores every key result across the given goals against the
// message and selects the globally highest-scoring one.
//
// Scoring: the message and each key result's title plus description are
// tokenized; every message token that contains, or is contained by, a
// candidate token adds 0.1, capped at 1.0 per key result. A best score below
// MatchThreshold yields an unmatched result carrying the candidate titles,
// and the caller must not mutate anything.
func MatchKeyResult(message string, goals []*Goal) *MatchResult {
	messageTokens := matchTokens(message)

	result := &MatchResult{}
	for _, g := range goals {
		for _, kr := range g.KeyResults {
			result.Candidates = append(result.Candidates, kr.Title)

			score := scoreKeyResult(messageTokens, kr)
			if score > result.Score {
				result.Score = score
				result.KeyResult = kr
				result.Goal = g
			}
		}
	}

	if result.Score >= MatchThreshold {
		result.Matched = true
	} else {
		result.KeyResult = nil
		result.Goal = nil
	}
	return result
}

func scoreKeyResult(messageTokens []string, kr *KeyResult) float64 {
	candidateTokens := matchTokens(kr.Title + " " + kr.Description)

	score := 0.0
	for _, mt := range messageTokens {
		for _, ct := range candidateTokens {
			if strings.Contains(mt, ct) || strings.Contains(ct, mt) {
				score += matchTokenWeight
				break
			}
		}
		if score >= matchScoreCap {
			return matchScoreCap
		}
	}
	return score
}

// matchTokens lower-cases the text and splits it on non-letter/digit runes.
// Chinese text additionally splits into single characters so that short
// phrases still overlap.
func matchTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var tokens []string
	for _, field := range fields {
		tokens = append(tokens, field)
		for _, r := range field {
			if unicode.Is(unicode.Han, r) {
				tokens = append(tokens, string(r))
			}
		}
	}
	return tokens
}
