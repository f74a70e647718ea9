// Package codexapi adapts the Codex transport to the shared RunProvider
// contract: it replays provider-neutral run history into list-shaped
// Responses input items, normalizes tool-call identifiers under strict
// collision rules with synthetic backfill of orphaned calls, drives a
// serial tool-execution roundtrip loop, and maps terminal stream statuses
// onto deterministic run events.
package codexapi

import "strings"

const (
	normalizedIDMaxLen     = 64
	normalizedIDFallback   = "call_0"
	normalizedItemFallback = "fc_0"
)

// normalizedToolCallID is the sanitized form of a raw call id that may
// carry "<call_segment>|<item_segment>".
type normalizedToolCallID struct {
	canonical       string
	transportCallID string
	responseItemID  string
}

// normalizeToolCallID sanitizes a raw call id. Each segment is trimmed,
// restricted to [A-Za-z0-9_-] with other bytes mapped to '_', stripped of
// trailing underscores, and truncated to 64 bytes. Empty segments fall
// back to call_0 / fc_0, and the item segment gains an fc_ prefix when it
// does not already start with fc.
func normalizeToolCallID(raw string) normalizedToolCallID {
	trimmed := strings.TrimSpace(raw)

	callRaw := trimmed
	itemRaw := ""
	hasItem := false
	if idx := strings.IndexByte(trimmed, '|'); idx >= 0 {
		callRaw = trimmed[:idx]
		itemRaw = trimmed[idx+1:]
		hasItem = true
	}

	callSegment := normalizeIDSegment(strings.TrimSpace(callRaw), normalizedIDFallback)

	var responseItemID string
	if hasItem {
		normalizedItem := normalizeIDSegment(strings.TrimSpace(itemRaw), normalizedItemFallback)
		if !strings.HasPrefix(normalizedItem, "fc") {
			normalizedItem = "fc_" + normalizedItem
		}
		responseItemID = normalizedItem
	}

	canonical := callSegment
	if responseItemID != "" {
		canonical = callSegment + "|" + responseItemID
	}

	return normalizedToolCallID{
		canonical:       canonical,
		transportCallID: callSegment,
		responseItemID:  responseItemID,
	}
}

func normalizeIDSegment(rawSegment, fallback string) string {
	var normalized strings.Builder
	for _, character := range rawSegment {
		mapped := character
		if !isIDRune(character) {
			mapped = '_'
		}
		normalized.WriteRune(mapped)
		if normalized.Len() >= normalizedIDMaxLen {
			break
		}
	}

	out := normalized.String()
	if len(out) > normalizedIDMaxLen {
		out = out[:normalizedIDMaxLen]
	}
	out = strings.TrimRight(out, "_")
	if out == "" {
		return fallback
	}
	return out
}

func isIDRune(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
}

// splitCanonicalToolCallID splits a canonical id back into its transport
// call id and optional response item id.
func splitCanonicalToolCallID(canonical string) (string, string) {
	idx := strings.IndexByte(canonical, '|')
	if idx < 0 {
		return canonical, ""
	}
	return canonical[:idx], canonical[idx+1:]
}
