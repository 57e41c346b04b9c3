package pipeline

import (
	"regexp"
	"strings"
)

// IssueKind names a validation failure class.
type IssueKind string

const (
	// KindUnsupportedNegative flags "I can't see X" answers produced while
	// screen context was in fact available.
	KindUnsupportedNegative IssueKind = "unsupported_negative"
	// KindEmptyAnswer flags empty or too-short answers.
	KindEmptyAnswer IssueKind = "empty_answer"
	// KindGenericAnswer flags boilerplate non-answers.
	KindGenericAnswer IssueKind = "generic_answer"
	// KindNeedsWebSearch flags answers that admit missing knowledge an
	// external search could supply.
	KindNeedsWebSearch IssueKind = "needs_web_search"
)

// Severity grades a validation issue. Only high-severity issues drive a
// retry.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Issue is one validation finding on a generated answer.
type Issue struct {
	Kind     IssueKind
	Severity Severity
	Message  string
}

// RetryState bounds retries for one in-flight query. Once the cap is
// reached the best available answer is returned regardless of remaining
// issues.
type RetryState struct {
	count int
	max   int
}

// NewRetryState creates a retry counter with the given cap.
func NewRetryState(max int) *RetryState {
	if max < 0 {
		max = 0
	}
	return &RetryState{max: max}
}

// Allow consumes one retry if the budget permits.
func (r *RetryState) Allow() bool {
	if r.count >= r.max {
		return false
	}
	r.count++
	return true
}

// Count returns the number of retries consumed.
func (r *RetryState) Count() int {
	return r.count
}

var (
	negativePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bi (don'?t|do not) have (that|this|the|any|enough) (information|data|details|context)\b`),
		regexp.MustCompile(`(?i)\bi (can'?t|cannot|am unable to) (see|find|locate|access)\b`),
		regexp.MustCompile(`(?i)\bno information (about|on|regarding)\b`),
		regexp.MustCompile(`(?i)\bi (don'?t|do not) have access to\b`),
	}

	genericPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^as an ai\b`),
		regexp.MustCompile(`(?i)\bi'?m (just )?an? (ai|assistant|language model)\b`),
		regexp.MustCompile(`(?i)^(it depends|that depends)\b`),
		regexp.MustCompile(`(?i)\bwithout more (information|context|details),? i can'?t\b`),
	}

	// searchablePatterns detect an implicit request for external lookup.
	searchablePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(search|look) (the web|online|it up)\b`),
		regexp.MustCompile(`(?i)\bmy (knowledge|training) (is limited|cut ?-?off|only goes)\b`),
		regexp.MustCompile(`(?i)\b(current|latest|up.to.date) information\b`),
	}
)

// ValidatorConfig tunes answer validation.
type ValidatorConfig struct {
	// MinAnswerLength is the shortest answer not flagged as empty.
	MinAnswerLength int
}

// Validator inspects a generated answer for ungrounded or useless output.
type Validator struct {
	minLength int
}

// NewValidator creates an answer validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	minLength := cfg.MinAnswerLength
	if minLength <= 0 {
		minLength = 12
	}
	return &Validator{minLength: minLength}
}

// Validate checks an answer against the context it was generated from.
// hadScreenContext reports whether real screen elements were in the
// context; hadWebResults reports whether web-search-origin documents
// already were, which suppresses needs_web_search so the same search is
// never requested twice.
func (v *Validator) Validate(answer string, hadScreenContext, hadWebResults bool) []Issue {
	var issues []Issue

	trimmed := strings.TrimSpace(answer)
	if len(trimmed) < v.minLength {
		issues = append(issues, Issue{
			Kind:     KindEmptyAnswer,
			Severity: SeverityHigh,
			Message:  "answer is empty or too short to be useful",
		})
		return issues
	}

	negative := matchesAny(trimmed, negativePatterns)

	if negative && hadScreenContext {
		issues = append(issues, Issue{
			Kind:     KindUnsupportedNegative,
			Severity: SeverityHigh,
			Message:  "answer claims information is missing while screen context was available",
		})
	}

	if !hadWebResults && (negative || matchesAny(trimmed, searchablePatterns)) {
		issues = append(issues, Issue{
			Kind:     KindNeedsWebSearch,
			Severity: SeverityHigh,
			Message:  "answer admits missing knowledge an external search could supply",
		})
	}

	if matchesAny(trimmed, genericPatterns) {
		issues = append(issues, Issue{
			Kind:     KindGenericAnswer,
			Severity: SeverityMedium,
			Message:  "answer is boilerplate rather than grounded in the screen",
		})
	}

	return issues
}

// HasHighSeverity reports whether any issue warrants a retry.
func HasHighSeverity(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// NeedsWebSearch reports whether context must be augmented with web
// results before the retry.
func NeedsWebSearch(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Kind == KindNeedsWebSearch {
			return true
		}
	}
	return false
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
