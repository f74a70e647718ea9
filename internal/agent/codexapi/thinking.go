package codexapi

import (
	"strings"

	"github.com/gurpartap/tape/internal/codex"
)

var (
	thinkingLevelsBaseline  = []string{"off", "minimal", "low", "medium", "high"}
	thinkingLevelsWithXHigh = []string{"off", "minimal", "low", "medium", "high", "xhigh"}
)

// supportsXHighThinking reports whether a model's extended thinking family
// applies: the last path segment, lowercased, contains "codex" and starts
// with gpt-5.2 or gpt-5.3.
func supportsXHighThinking(modelID string) bool {
	canonical := modelID
	if idx := strings.LastIndexByte(modelID, '/'); idx >= 0 {
		canonical = modelID[idx+1:]
	}
	canonical = strings.ToLower(canonical)

	return strings.Contains(canonical, "codex") &&
		(strings.HasPrefix(canonical, "gpt-5.2") || strings.HasPrefix(canonical, "gpt-5.3"))
}

func thinkingLevelsForModel(modelID string) []string {
	if supportsXHighThinking(modelID) {
		return thinkingLevelsWithXHigh
	}
	return thinkingLevelsBaseline
}

// normalizeThinkingIndex clamps an index into the model's family.
func normalizeThinkingIndex(modelID string, thinkingIndex int) int {
	levels := thinkingLevelsForModel(modelID)
	if thinkingIndex > len(levels)-1 {
		return len(levels) - 1
	}
	return thinkingIndex
}

// thinkingReasoningPayload maps a thinking level to the request reasoning
// payload; "off" sends none.
func thinkingReasoningPayload(thinkingLevel string) *codex.Reasoning {
	trimmed := strings.TrimSpace(thinkingLevel)
	if strings.EqualFold(trimmed, "off") {
		return nil
	}
	return &codex.Reasoning{Effort: strings.ToLower(trimmed), Summary: nil}
}
