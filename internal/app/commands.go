// Package app holds the coding agent's UI state machine: mode transitions,
// transcript, model-facing conversation, pending run memory, input
// history, and slash command dispatch.
package app

import "strings"

// SlashCommand is a parsed slash command.
type SlashCommand struct {
	Kind SlashCommandKind
	Raw  string
}

// SlashCommandKind enumerates the built-in commands.
type SlashCommandKind uint8

const (
	CommandHelp SlashCommandKind = iota
	CommandClear
	CommandCancel
	CommandQuit
	CommandUnknown
)

// ParseSlashCommand recognizes a leading-slash command, or reports ok=false
// for ordinary prompts.
func ParseSlashCommand(prompt string) (SlashCommand, bool) {
	if !strings.HasPrefix(prompt, "/") {
		return SlashCommand{}, false
	}
	name := prompt
	if idx := strings.IndexByte(prompt, ' '); idx >= 0 {
		name = prompt[:idx]
	}
	switch name {
	case "/help":
		return SlashCommand{Kind: CommandHelp, Raw: prompt}, true
	case "/clear":
		return SlashCommand{Kind: CommandClear, Raw: prompt}, true
	case "/cancel":
		return SlashCommand{Kind: CommandCancel, Raw: prompt}, true
	case "/quit", "/exit":
		return SlashCommand{Kind: CommandQuit, Raw: prompt}, true
	default:
		return SlashCommand{Kind: CommandUnknown, Raw: name}, true
	}
}
