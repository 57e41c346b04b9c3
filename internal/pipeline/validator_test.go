package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(issues []Issue) []IssueKind {
	out := make([]IssueKind, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.Kind)
	}
	return out
}

func TestEmptyAnswerFlagged(t *testing.T) {
	v := NewValidator(ValidatorConfig{MinAnswerLength: 12})

	for _, answer := range []string{"", "   ", "Yes.", "ok"} {
		issues := v.Validate(answer, true, false)
		require.Len(t, issues, 1, "answer %q", answer)
		assert.Equal(t, KindEmptyAnswer, issues[0].Kind)
		assert.Equal(t, SeverityHigh, issues[0].Severity)
	}
}

func TestUnsupportedNegativeWithScreenContext(t *testing.T) {
	v := NewValidator(ValidatorConfig{})

	issues := v.Validate("I don't have that information available right now.", true, false)
	assert.Contains(t, kinds(issues), KindUnsupportedNegative)
	assert.Contains(t, kinds(issues), KindNeedsWebSearch)
	assert.True(t, HasHighSeverity(issues))
}

func TestNegativeWithoutScreenContext(t *testing.T) {
	v := NewValidator(ValidatorConfig{})

	// No screen context, so the negative is supported; the external lookup
	// signal still fires.
	issues := v.Validate("I cannot see anything related to that on your screen.", false, false)
	assert.NotContains(t, kinds(issues), KindUnsupportedNegative)
	assert.Contains(t, kinds(issues), KindNeedsWebSearch)
}

func TestNeedsWebSearchSuppressedWhenResultsPresent(t *testing.T) {
	v := NewValidator(ValidatorConfig{})

	issues := v.Validate("I don't have that information available right now.", true, true)
	assert.NotContains(t, kinds(issues), KindNeedsWebSearch)
	// The ungrounded negative is still flagged.
	assert.Contains(t, kinds(issues), KindUnsupportedNegative)
}

func TestImplicitSearchSignal(t *testing.T) {
	v := NewValidator(ValidatorConfig{})

	issues := v.Validate("You should search the web for the latest release notes.", false, false)
	assert.Contains(t, kinds(issues), KindNeedsWebSearch)
}

func TestGenericAnswerIsMediumSeverity(t *testing.T) {
	v := NewValidator(ValidatorConfig{})

	issues := v.Validate("As an AI assistant I would recommend checking the documentation yourself.", true, false)
	require.Len(t, issues, 1)
	assert.Equal(t, KindGenericAnswer, issues[0].Kind)
	assert.Equal(t, SeverityMedium, issues[0].Severity)
	assert.False(t, HasHighSeverity(issues), "generic answers alone must not drive a retry")
}

func TestGroundedAnswerPasses(t *testing.T) {
	v := NewValidator(ValidatorConfig{})

	issues := v.Validate("The Submit order button is in the lower right corner of the checkout page.", true, false)
	assert.Empty(t, issues)
}

func TestRetryStateCap(t *testing.T) {
	r := NewRetryState(1)
	assert.True(t, r.Allow())
	assert.False(t, r.Allow())
	assert.False(t, r.Allow())
	assert.Equal(t, 1, r.Count())
}

func TestRetryStateZeroCap(t *testing.T) {
	r := NewRetryState(0)
	assert.False(t, r.Allow())
	assert.Equal(t, 0, r.Count())
}
