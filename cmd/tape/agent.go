package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gurpartap/tape/internal/agent"
	"github.com/gurpartap/tape/internal/agent/codexapi"
	"github.com/gurpartap/tape/internal/app"
	"github.com/gurpartap/tape/internal/config"
	"github.com/gurpartap/tape/internal/observability"
	"github.com/gurpartap/tape/internal/sessions"
	"github.com/gurpartap/tape/internal/term"
	"github.com/gurpartap/tape/internal/termimg"
	"github.com/gurpartap/tape/internal/tools"
	"github.com/gurpartap/tape/internal/tui"
	"github.com/gurpartap/tape/internal/widgets"
	"github.com/gurpartap/tape/pkg/models"
)

type agentOptions struct {
	configPath string
	modelIDs   []string
	baseURL    string
	sessionID  string
	logFile    string
	logLevel   string
	timeout    time.Duration
}

// toolObserver forwards host-side tool execution into the UI event queue
// so timeline updates land on the runtime thread.
type toolObserver struct {
	post func(func(*app.App))
}

func (o *toolObserver) ToolCallStarted(runID models.RunID, callID, toolName string, arguments []byte) {
	args := append(json.RawMessage(nil), arguments...)
	o.post(func(a *app.App) { a.OnToolCallStarted(runID, callID, toolName, args) })
}

func (o *toolObserver) ToolCallFinished(runID models.RunID, toolName, callID string, isError bool, content []byte, contentText string) {
	body := append(json.RawMessage(nil), content...)
	o.post(func(a *app.App) { a.OnToolCallFinished(runID, toolName, callID, isError, body, contentText) })
}

// slashCompleter suggests the built-in slash commands while the input
// starts with "/".
type slashCompleter struct{}

var slashCommands = []widgets.SelectItem{
	{Value: "/help", Description: "Show available commands"},
	{Value: "/clear", Description: "Clear transcript and conversation"},
	{Value: "/cancel", Description: "Cancel the active run"},
	{Value: "/quit", Description: "Exit tape"},
}

func (slashCompleter) Suggestions(prefix string) []widgets.SelectItem {
	if !strings.HasPrefix(prefix, "/") || strings.ContainsRune(prefix, ' ') {
		return nil
	}
	var matches []widgets.SelectItem
	for _, command := range slashCommands {
		if strings.HasPrefix(command.Value, prefix) && command.Value != prefix {
			matches = append(matches, command)
		}
	}
	return matches
}

// editorShell wraps the editor so Ctrl-C follows the app's priorities
// (clear input, cancel run, quit) before normal editing applies.
type editorShell struct {
	*widgets.Editor
	ui   *app.App
	host app.HostOps
}

func (s *editorShell) HandleEvent(event tui.InputEvent) {
	if event.Type == tui.InputKey && event.KeyID == "ctrl+c" {
		if s.Editor.Text() != "" {
			s.Editor.SetText("")
			s.host.RequestRender()
			return
		}
		s.ui.OnControlC(s.host)
		return
	}
	s.Editor.HandleEvent(event)
}

// hostOps adapts the controller and runtime handle to the app's HostOps.
type hostOps struct {
	controller *agent.Controller
	handle     *tui.Handle
}

func (h *hostOps) StartRun(messages []models.RunMessage, instructions string) (models.RunID, error) {
	return h.controller.StartRun(messages, instructions)
}

func (h *hostOps) CancelRun(runID models.RunID) { h.controller.CancelRun(runID) }
func (h *hostOps) RequestRender()               { h.handle.RequestRender() }
func (h *hostOps) RequestStop()                 { h.handle.RequestStop() }

func runAgent(opts agentOptions) error {
	ctx := context.Background()

	configPath := opts.configPath
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if len(opts.modelIDs) > 0 {
		cfg.Provider.ModelIDs = opts.modelIDs
	}
	if opts.baseURL != "" {
		cfg.Provider.BaseURL = opts.baseURL
	}
	if opts.sessionID != "" {
		cfg.Provider.SessionID = opts.sessionID
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFile != "" {
		cfg.Logging.File = opts.logFile
	}
	if opts.timeout > 0 {
		cfg.Provider.Timeout = opts.timeout
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	env := config.EnvFromOS()
	if env.TUIDebug {
		cfg.Logging.Level = "debug"
	}

	logger := observability.NopLogger()
	if cfg.Logging.File != "" {
		logOut, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer logOut.Close()
		logger = observability.NewLogger(observability.LogConfig{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: logOut,
		})
	}

	workdir, err := os.Getwd()
	if err != nil {
		return err
	}

	sessionStore, err := sessions.CreateNew(workdir)
	if err != nil {
		return err
	}
	defer sessionStore.Close()
	logger.Info(ctx, "session started", "path", sessionStore.Path())

	provider, err := codexapi.New(codexapi.Config{
		AccessToken: cfg.Provider.AccessToken,
		AccountID:   cfg.Provider.AccountID,
		ModelIDs:    cfg.Provider.ModelIDs,
		BaseURL:     cfg.Provider.BaseURL,
		SessionID:   cfg.Provider.SessionID,
		Timeout:     cfg.Provider.Timeout,
	})
	if err != nil {
		return err
	}

	terminal := term.NewProcessTerminal(env)
	runtime := tui.NewWithEnv(terminal, env)
	handle := runtime.Handle()

	instructions := app.SystemInstructionsFrom(os.LookupEnv(app.SystemInstructionsEnvVar))
	ui := app.NewWithSystemInstructions(instructions)

	// Run events and tool timeline updates cross goroutines; they land in
	// this queue and are applied on the runtime thread.
	updates := make(chan func(*app.App), 256)
	post := func(fn func(*app.App)) {
		updates <- fn
		handle.RequestRender()
	}

	executor := tools.NewExecutor(workdir)
	controller := agent.NewController(provider, executor.Execute, func(event models.RunEvent) {
		post(func(a *app.App) { a.ApplyRunEvent(event) })
		logger.Debug(ctx, "run event", "type", string(event.Type), "run_id", fmt.Sprint(event.RunID))
	})
	controller.SetToolObserver(&toolObserver{post: post})
	controller.SetArgumentValidator(func(toolName string, arguments []byte) error {
		return codexapi.ValidateToolArguments(toolName, arguments)
	})

	host := &hostOps{controller: controller, handle: handle}

	theme := app.PlainViewTheme()
	imgState := termimg.NewState(os.LookupEnv)
	caps := imgState.Capabilities()
	logger.Info(ctx, "terminal capabilities",
		"images", string(caps.Images), "true_color", fmt.Sprint(caps.TrueColor))

	transcript := app.NewTranscriptView(ui, theme)
	status := app.NewStatusView(ui, theme, func() string {
		profile := provider.Profile()
		return profile.ModelID + " · thinking " + profile.ThinkingLevel
	})

	keys := widgets.DefaultKeyBindings()
	editor := widgets.NewEditor(widgets.EditorOptions{
		Placeholder: "Describe a change, or /help",
		PaddingX:    1,
		Border:      true,
	}, nil, keys)
	editor.SetAutocompleteProvider(slashCompleter{})
	editor.SetOnSubmit(func(text string) {
		editor.AddToHistory(text)
		ui.OnInputReplace(text)
		ui.OnSubmit(host)
		persistPrompt(sessionStore, text)
	})
	editor.SetOnChange(func(text string) { ui.OnInputReplace(text) })
	shell := &editorShell{Editor: editor, ui: ui, host: host}

	if err := runtime.Start(); err != nil {
		if err == term.ErrNotATerminal {
			return fmt.Errorf("tape needs an interactive terminal")
		}
		return err
	}
	// Drain before stopping so buffered key-release bytes never leak into
	// the parent shell; runtime.Stop writes cleanup bytes and restores the
	// terminal.
	defer func() {
		terminal.DrainInput(1000, 50)
		_ = runtime.Stop()
	}()

	transcriptID := runtime.RegisterComponent(transcript)
	statusID := runtime.RegisterComponent(status)
	editorID := runtime.RegisterComponent(shell)
	runtime.SetRoot([]tui.ComponentID{transcriptID, statusID, editorID})
	runtime.SetFocus(editorID)

	wake := make(chan struct{}, 1)
	handle.OnWake(func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	})

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		for {
			select {
			case fn := <-updates:
				fn(ui)
				continue
			default:
			}
			break
		}

		runtime.RunOnce()
		if runtime.ShouldStop() || ui.ShouldExit {
			return nil
		}

		select {
		case <-wake:
		case <-ticker.C:
		}
	}
}

func persistPrompt(store *sessions.Store, prompt string) {
	payload, err := json.Marshal(map[string]string{"kind": "prompt", "text": prompt})
	if err != nil {
		return
	}
	_ = store.Append(sessions.NewEntry(store.CurrentLeafID(), payload))
}
