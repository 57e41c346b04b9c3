package strategy

import (
	"regexp"
	"strings"
)

// Relevance scoring is additive: every matching rule contributes its
// weight, then the sum is clamped to [0,1]. Positive rules detect
// queries that lean on prior conversation; negative rules detect
// self-contained screen queries.

var (
	followUpPattern = regexp.MustCompile(`(?i)\b(anything else|tell me more|more about|what about|go on)\b`)
	whVerbPattern   = regexp.MustCompile(`(?i)^(what|where|which|who|when|why|how)\b.*\b(is|are|does|do)\b`)
	entityNouns     = regexp.MustCompile(`(?i)\b(button|window|file|email|link|tab|menu|page|image|icon|field|heading|text)s?\b`)
	queryVerbs      = regexp.MustCompile(`(?i)\b(find|show|count|list)\b|\bhow many\b`)
)

var whWords = map[string]bool{
	"what": true, "where": true, "which": true, "who": true,
	"when": true, "why": true, "how": true,
}

var continuationWords = map[string]bool{
	"also": true, "additionally": true, "and": true, "plus": true,
}

var commandWords = map[string]bool{
	"show": true, "click": true, "open": true, "read": true, "extract": true,
}

// pronounFollowers are words after which this/that reads as a standalone
// reference rather than a determiner ("what does that mean" vs "this page").
var pronounFollowers = map[string]bool{
	"is": true, "was": true, "mean": true, "means": true,
	"do": true, "does": true, "did": true, "says": true, "said": true,
}

// ScoreRelevance estimates how much the query depends on prior
// conversation, in [0,1]. History is fetched only at or above
// historyThreshold.
func ScoreRelevance(query string) float64 {
	words := tokenize(query)
	if len(words) == 0 {
		return 0
	}

	score := 0.0

	if hasVaguePronoun(words) {
		score += 0.8
	}
	if followUpPattern.MatchString(query) {
		score += 0.9
	}
	if continuationWords[words[0]] {
		score += 0.7
	}
	if len(words) <= 3 && whWords[words[0]] {
		score += 0.6
	}
	if entityNouns.MatchString(query) && queryVerbs.MatchString(query) {
		score -= 0.5
	}
	if whVerbPattern.MatchString(query) {
		score -= 0.4
	}
	if commandWords[words[0]] {
		score -= 0.6
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// hasVaguePronoun reports a pronoun used as a reference to something said
// earlier. "it" and "them" always qualify; "this"/"that" qualify only at
// the end of the query or before a verb, since "this page" points at the
// screen, not at the conversation.
func hasVaguePronoun(words []string) bool {
	for i, w := range words {
		switch w {
		case "it", "them":
			return true
		case "this", "that", "these", "those":
			if i == len(words)-1 || pronounFollowers[words[i+1]] {
				return true
			}
		}
	}
	return false
}

// tokenize lowercases and splits the query into bare words.
func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.Trim(f, `.,!?;:'"()`)
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}
