// Package risk holds the questionnaire tables and the weighted scorer used by
// heart and stroke assessments. It has no I/O and no dependencies on the rest
// of the service.
package risk

import (
	"sort"
	"strings"
)

// Tier is the classification derived from a score.
type Tier string

const (
	TierLow      Tier = "Low"
	TierModerate Tier = "Moderate"
	TierHigh     Tier = "High"
)

const (
	MaxScore = 100

	moderateThreshold = 30
	highThreshold     = 60

	answerYes = "yes"
)

// Answers maps factor ID to the submitted value. Only "yes" carries weight.
type Answers map[string]string

// Result is a clamped score and its tier.
type Result struct {
	Score int  `json:"score"`
	Tier  Tier `json:"tier"`
}

// Score sums the weights of every factor answered "yes", clamps the total to
// [0, MaxScore] and classifies it. Keys that are not factors are ignored.
func Score(answers Answers, q Questionnaire) Result {
	total := 0
	for _, f := range q.factors {
		if answers[f.ID] == answerYes {
			total += f.Weight
		}
	}
	score := clamp(total)
	return Result{Score: score, Tier: Classify(score)}
}

// Classify maps a score to its tier.
func Classify(score int) Tier {
	switch {
	case score < moderateThreshold:
		return TierLow
	case score < highThreshold:
		return TierModerate
	default:
		return TierHigh
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// ParseAnswers normalizes raw form values (trimmed, lower-cased) and keeps only
// keys that belong to q. The dropped keys are returned sorted so callers can
// log them.
func ParseAnswers(raw map[string]string, q Questionnaire) (Answers, []string) {
	answers := make(Answers, len(raw))
	var ignored []string
	for key, value := range raw {
		if !q.Has(key) {
			ignored = append(ignored, key)
			continue
		}
		answers[key] = strings.ToLower(strings.TrimSpace(value))
	}
	sort.Strings(ignored)
	return answers, ignored
}

// Positive lists the factors answered "yes", in definition order.
func Positive(answers Answers, q Questionnaire) []Factor {
	var out []Factor
	for _, f := range q.factors {
		if answers[f.ID] == answerYes {
			out = append(out, f)
		}
	}
	return out
}
