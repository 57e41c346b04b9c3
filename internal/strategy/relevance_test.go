package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestRelevanceScenarios(t *testing.T) {
	cases := []struct {
		query        string
		minScore     float64
		maxScore     float64
		fetchHistory bool
	}{
		// Follow-up phrasing plus a trailing vague pronoun saturates the score.
		{"tell me more about that", 0.8, 1.0, true},
		{"anything else", 0.9, 1.0, true},
		{"what about them", 0.5, 1.0, true},
		{"also check the second one", 0.7, 1.0, true},
		// Counting named elements is self-contained; negatives drive it to zero.
		{"how many buttons are on this page", 0.0, 0.0, false},
		{"show me the error message", 0.0, 0.0, false},
		{"list the files in this window", 0.0, 0.4, false},
		{"extract the table", 0.0, 0.0, false},
	}

	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			score := ScoreRelevance(tc.query)
			assert.GreaterOrEqual(t, score, tc.minScore)
			assert.LessOrEqual(t, score, tc.maxScore)

			d := Classify(tc.query)
			assert.Equal(t, tc.fetchHistory, d.FetchHistory)
		})
	}
}

func TestShortWhQuestionLeansOnHistory(t *testing.T) {
	assert.GreaterOrEqual(t, ScoreRelevance("why"), 0.6)
	assert.GreaterOrEqual(t, ScoreRelevance("where was it"), 0.6)
}

func TestVaguePronounDetection(t *testing.T) {
	assert.True(t, hasVaguePronoun(tokenize("what does that mean")))
	assert.True(t, hasVaguePronoun(tokenize("read it again")))
	assert.False(t, hasVaguePronoun(tokenize("this page is slow")))
	assert.False(t, hasVaguePronoun(tokenize("open that file")))
}

func TestEmptyQueryScoresZero(t *testing.T) {
	assert.Equal(t, 0.0, ScoreRelevance(""))
	assert.Equal(t, 0.0, ScoreRelevance("   "))
}

func TestRelevanceAlwaysClamped(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		words := rapid.SliceOfN(rapid.SampledFrom([]string{
			"this", "that", "it", "them", "tell", "me", "more", "about",
			"anything", "else", "also", "and", "what", "how", "many",
			"buttons", "are", "on", "page", "show", "click", "open",
			"find", "count", "list", "window", "file", "is", "does",
		}), 1, 12).Draw(t, "words")

		query := ""
		for i, w := range words {
			if i > 0 {
				query += " "
			}
			query += w
		}

		score := ScoreRelevance(query)
		if score < 0 || score > 1 {
			t.Fatalf("score %v out of range for %q", score, query)
		}
		if score != ScoreRelevance(query) {
			t.Fatalf("score not deterministic for %q", query)
		}
	})
}
