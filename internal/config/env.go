// Package config loads runtime configuration: process environment toggles
// for the TUI and the yaml agent configuration file with env overrides.
package config

import (
	"os"
	"strings"
)

// EnvConfig carries the TUI environment toggles.
type EnvConfig struct {
	// HardwareCursor enables the hardware cursor (TAPE_HARDWARE_CURSOR).
	HardwareCursor bool

	// ClearOnShrink forces a full clear when the terminal shrinks
	// (TAPE_CLEAR_ON_SHRINK).
	ClearOnShrink bool

	// TUIWriteLog appends all terminal writes to the named file
	// (tape_tui_WRITE_LOG); empty disables the log.
	TUIWriteLog string

	// TUIDebug enables TUI debug diagnostics (tape_tui_DEBUG).
	TUIDebug bool

	// DebugRedraw traces redraw decisions (TAPE_DEBUG_REDRAW).
	DebugRedraw bool
}

// EnvFromOS reads the TUI toggles from the process environment.
func EnvFromOS() EnvConfig {
	return EnvFromLookup(os.LookupEnv)
}

// EnvFromLookup reads the TUI toggles through the given lookup function, so
// tests drive a fresh instance instead of mutating process globals.
func EnvFromLookup(lookup func(string) (string, bool)) EnvConfig {
	return EnvConfig{
		HardwareCursor: envFlag(lookup, "TAPE_HARDWARE_CURSOR"),
		ClearOnShrink:  envFlag(lookup, "TAPE_CLEAR_ON_SHRINK"),
		TUIWriteLog:    envStringOpt(lookup, "tape_tui_WRITE_LOG"),
		TUIDebug:       envFlag(lookup, "tape_tui_DEBUG"),
		DebugRedraw:    envFlag(lookup, "TAPE_DEBUG_REDRAW"),
	}
}

func envFlag(lookup func(string) (string, bool), key string) bool {
	value, ok := lookup(key)
	return ok && value == "1"
}

func envStringOpt(lookup func(string) (string, bool), key string) string {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return ""
	}
	return value
}
