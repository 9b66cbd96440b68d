package services

import "strings"

// ModerationResult reports whether content passed the keyword filter.
type ModerationResult struct {
	Passed bool
	Reason string
}

// ModerateText runs a keyword based content check. This is a stand-in for a real
// moderation backend: text containing any blocked keyword is rejected, everything
// else passes.
func ModerateText(text string, blockedKeywords []string) ModerationResult {
	lower := strings.ToLower(text)
	for _, word := range blockedKeywords {
		w := strings.ToLower(strings.TrimSpace(word))
		if w == "" {
			continue
		}
		if strings.Contains(lower, w) {
			return ModerationResult{Passed: false, Reason: "content contains blocked keyword"}
		}
	}
	return ModerationResult{Passed: true}
}
