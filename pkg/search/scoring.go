package search

import (
	"math"
	"strings"
	"time"
)

const (
	lexicalWeight    = 0.75
	recencyWeight    = 0.25
	exactMatchBonus  = 0.2
	recencyScaleDays = 14.0
	maxSnippetLength = 200
)

// LexicalScore is the fraction of tokens found in text, plus a bonus when
// the whole phrase appears, capped at 1. Matching is case-insensitive.
func LexicalScore(tokens []string, phrase, text string) float64 {
	lower := strings.ToLower(text)

	var score float64
	if len(tokens) > 0 {
		found := 0
		for _, token := range tokens {
			if strings.Contains(lower, token) {
				found++
			}
		}
		score = float64(found) / float64(len(tokens))
	}

	if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
		score += exactMatchBonus
	}
	return math.Min(score, 1)
}

// RecencyScore decays from 1 for brand new items, reaching 0.5 after two
// weeks. Items dated in the future score 1.
func RecencyScore(createdAt, now time.Time) float64 {
	ageDays := now.Sub(createdAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return clamp(1 / (1 + ageDays/recencyScaleDays))
}

// Score combines lexical and recency scores
func Score(lexical, recency float64) float64 {
	return lexicalWeight*lexical + recencyWeight*recency
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func snippet(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= maxSnippetLength {
		return content
	}
	return string(runes[:maxSnippetLength]) + "..."
}
