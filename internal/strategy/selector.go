// Package strategy classifies natural-language queries into a context
// strategy. Classification is pure and rule-based: an ordered table of
// regex predicates decides between a cheap full-context summary and a
// targeted ranked element search, and an independent additive scorer
// decides whether conversation history is worth fetching.
package strategy

import (
	"regexp"
	"strings"

	"github.com/normanking/glance/internal/screen"
)

// Strategy names the context-assembly mode for a query.
type Strategy string

const (
	// StrategySimple dumps the cached structured summary at the model.
	StrategySimple Strategy = "simple"
	// StrategySemantic runs a ranked element search for precise targets.
	StrategySemantic Strategy = "semantic"
)

// Decision is the full classification result for one query.
type Decision struct {
	Strategy     Strategy
	Rule         string        // name of the rule that fired
	TargetRegion screen.Region // zero when the query names no region
	TargetEntity string        // first UI-element noun, "" when absent
	Relevance    float64       // conversation-context relevance in [0,1]
	FetchHistory bool          // Relevance >= historyThreshold
}

// historyThreshold is the relevance score at or above which conversation
// history is fetched. Below it the query is treated as self-contained and
// the history round trip is skipped.
const historyThreshold = 0.5

// strategyRule is one predicate→outcome pair. Rules are evaluated in
// order; the first match wins.
type strategyRule struct {
	name    string
	pattern *regexp.Regexp
	outcome Strategy
}

var strategyRules = []strategyRule{
	{
		name:    "interactive_target",
		pattern: regexp.MustCompile(`(?i)\b(click|find|locate|press|tap|select)\b.*\b(button|link|field|input|menu|tab|icon|checkbox|dropdown)s?\b`),
		outcome: StrategySemantic,
	},
	{
		name:    "spatial_term",
		pattern: regexp.MustCompile(`(?i)\b(upper|lower|top|bottom|left|right|corner|center|middle)\b`),
		outcome: StrategySemantic,
	},
	{
		name:    "leading_imperative",
		pattern: regexp.MustCompile(`(?i)^\s*(click|press|select|open|close)\b`),
		outcome: StrategySemantic,
	},
	{
		name:    "multi_step",
		pattern: regexp.MustCompile(`(?i)\b(then|after|next|first|finally)\b`),
		outcome: StrategySemantic,
	},
	{
		name:    "descriptive_request",
		pattern: regexp.MustCompile(`(?i)\b(what|describe|summarize|summarise|explain)\b`),
		outcome: StrategySimple,
	},
}

// entityPattern picks out the UI-element noun a query is asking about.
var entityPattern = regexp.MustCompile(`(?i)\b(button|link|field|input|menu|tab|icon|checkbox|dropdown|window|file|email|image|heading|text box)s?\b`)

// uiVocabulary matches element nouns so a "what is ..." question about a
// specific control is not mistaken for a broad descriptive request.
var uiVocabulary = regexp.MustCompile(`(?i)\b(button|link|field|input|menu|tab|icon|checkbox|dropdown)s?\b`)

// Classify resolves the strategy, target region/entity, and relevance
// score for a query. Same input always yields the same Decision.
func Classify(query string) Decision {
	query = strings.TrimSpace(query)

	d := Decision{
		Strategy:  StrategySimple,
		Rule:      "default",
		Relevance: ScoreRelevance(query),
	}
	d.FetchHistory = d.Relevance >= historyThreshold
	d.TargetRegion = screen.ParseRegion(query)
	if m := entityPattern.FindString(query); m != "" {
		d.TargetEntity = strings.ToLower(strings.TrimSuffix(m, "s"))
	}

	for _, rule := range strategyRules {
		if !rule.pattern.MatchString(query) {
			continue
		}
		// The descriptive rule applies only without element vocabulary.
		if rule.name == "descriptive_request" && uiVocabulary.MatchString(query) {
			continue
		}
		d.Strategy = rule.outcome
		d.Rule = rule.name
		return d
	}

	return d
}
