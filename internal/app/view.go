package app

import (
	"github.com/gurpartap/tape/internal/textlayout"
	"github.com/gurpartap/tape/internal/widgets"
)

// ViewTheme styles the transcript rendering.
type ViewTheme struct {
	User      widgets.StyleFunc
	Assistant widgets.StyleFunc
	System    widgets.StyleFunc
	Tool      widgets.StyleFunc
	Spinner   widgets.StyleFunc
	Markdown  widgets.MarkdownTheme
}

// PlainViewTheme returns an unstyled theme.
func PlainViewTheme() ViewTheme {
	identity := func(s string) string { return s }
	return ViewTheme{
		User:      identity,
		Assistant: identity,
		System:    identity,
		Tool:      identity,
		Spinner:   identity,
	}
}

// TranscriptView renders the app transcript: user/system/tool lines as
// wrapped text, assistant lines as markdown once their stream settles.
type TranscriptView struct {
	app   *App
	theme ViewTheme
}

// NewTranscriptView builds a transcript view over the app state.
func NewTranscriptView(app *App, theme ViewTheme) *TranscriptView {
	return &TranscriptView{app: app, theme: theme}
}

// Render implements tui.Component.
func (v *TranscriptView) Render(width int) []string {
	var lines []string
	for _, message := range v.app.Transcript {
		switch message.Role {
		case RoleUser:
			lines = append(lines, textlayout.WrapTextWithANSI(v.theme.User("> "+message.Content), width)...)
		case RoleSystem:
			lines = append(lines, textlayout.WrapTextWithANSI(v.theme.System(message.Content), width)...)
		case RoleTool:
			lines = append(lines, textlayout.WrapTextWithANSI(v.theme.Tool("  "+message.Content), width)...)
		case RoleAssistant:
			content := message.Content
			if message.Streaming {
				lines = append(lines, textlayout.WrapTextWithANSI(v.theme.Assistant(content), width)...)
			} else {
				markdown := widgets.NewMarkdown(content, v.theme.Markdown)
				lines = append(lines, markdown.Render(width)...)
			}
		}
		lines = append(lines, "")
	}
	return lines
}

// StatusView renders one status line for the current mode and profile.
type StatusView struct {
	app     *App
	profile func() string
	theme   ViewTheme
}

// NewStatusView builds a status line view. profile supplies the right-hand
// provider/model summary.
func NewStatusView(app *App, theme ViewTheme, profile func() string) *StatusView {
	return &StatusView{app: app, theme: theme, profile: profile}
}

// Render implements tui.Component.
func (v *StatusView) Render(width int) []string {
	var status string
	switch v.app.Mode.Kind {
	case ModeIdle:
		status = "ready"
	case ModeRunning:
		status = "running"
	case ModeError:
		status = "error: " + v.app.Mode.Error
	case ModeExiting:
		status = "exiting"
	}
	if v.profile != nil {
		if p := v.profile(); p != "" {
			status += "  ·  " + p
		}
	}
	return []string{textlayout.TruncateToWidth(v.theme.System(status), width, "…", false)}
}
