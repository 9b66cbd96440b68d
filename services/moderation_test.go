package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModerateText(t *testing.T) {
	blocked := []string{"casino", "Free Money"}

	assert.True(t, ModerateText("day 12 without smoking, feeling great", blocked).Passed)

	res := ModerateText("visit my CASINO now", blocked)
	assert.False(t, res.Passed)
	assert.NotEmpty(t, res.Reason)

	// Matching is case insensitive on both sides.
	assert.False(t, ModerateText("free money here", blocked).Passed)

	// Empty keyword list passes everything.
	assert.True(t, ModerateText("anything", nil).Passed)
	assert.True(t, ModerateText("anything", []string{" ", ""}).Passed)
}
