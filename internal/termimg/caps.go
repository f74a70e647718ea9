// Package termimg detects terminal image capabilities and encodes Kitty and
// iTerm2 inline-image escape sequences, including cell-row math for sizing.
package termimg

import (
	"strings"
	"sync"
)

// Protocol identifies an inline image protocol.
type Protocol string

const (
	ProtocolKitty  Protocol = "kitty"
	ProtocolITerm2 Protocol = "iterm2"
)

// Capabilities reports what the attached terminal supports.
type Capabilities struct {
	// Images is the supported protocol, or "" when none.
	Images Protocol

	TrueColor  bool
	Hyperlinks bool
}

// CellDimensions is the pixel size of one terminal cell.
type CellDimensions struct {
	WidthPx  int
	HeightPx int
}

// ImageDimensions is the pixel size of a decoded image.
type ImageDimensions struct {
	WidthPx  int
	HeightPx int
}

var defaultCellDimensions = CellDimensions{WidthPx: 9, HeightPx: 18}

// State holds per-process image state: the cached capability detection,
// measured cell dimensions, and the image id counter. Construct one at
// startup and pass it in; tests build fresh instances instead of resetting
// globals.
type State struct {
	mu             sync.Mutex
	capabilities   *Capabilities
	cellDimensions CellDimensions
	lookup         func(string) (string, bool)
	idCounter      uint32
	idSeed         uint32
}

// NewState builds a state that reads capability environment variables
// through lookup.
func NewState(lookup func(string) (string, bool)) *State {
	return &State{
		cellDimensions: defaultCellDimensions,
		lookup:         lookup,
		idSeed:         newImageIDSeed(),
	}
}

// CellDimensions returns the current cell pixel size.
func (s *State) CellDimensions() CellDimensions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cellDimensions
}

// SetCellDimensions records the cell pixel size (from a CSI 16 t reply).
func (s *State) SetCellDimensions(dims CellDimensions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cellDimensions = dims
}

// Capabilities returns the cached detection, detecting on first use.
func (s *State) Capabilities() Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capabilities == nil {
		caps := detectCapabilities(s.lookup)
		s.capabilities = &caps
	}
	return *s.capabilities
}

// ResetCapabilitiesCache drops the cached detection.
func (s *State) ResetCapabilitiesCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capabilities = nil
}

func detectCapabilities(lookup func(string) (string, bool)) Capabilities {
	env := func(key string) string {
		value, _ := lookup(key)
		return value
	}
	has := func(key string) bool {
		_, ok := lookup(key)
		return ok
	}

	termProgram := strings.ToLower(env("TERM_PROGRAM"))
	termName := strings.ToLower(env("TERM"))
	colorTerm := strings.ToLower(env("COLORTERM"))

	switch {
	case has("KITTY_WINDOW_ID") || termProgram == "kitty":
		return Capabilities{Images: ProtocolKitty, TrueColor: true, Hyperlinks: true}
	case termProgram == "ghostty" || strings.Contains(termName, "ghostty") || has("GHOSTTY_RESOURCES_DIR"):
		return Capabilities{Images: ProtocolKitty, TrueColor: true, Hyperlinks: true}
	case has("WEZTERM_PANE") || termProgram == "wezterm":
		return Capabilities{Images: ProtocolKitty, TrueColor: true, Hyperlinks: true}
	case has("ITERM_SESSION_ID") || termProgram == "iterm.app":
		return Capabilities{Images: ProtocolITerm2, TrueColor: true, Hyperlinks: true}
	case termProgram == "vscode" || termProgram == "alacritty":
		return Capabilities{TrueColor: true, Hyperlinks: true}
	default:
		trueColor := colorTerm == "truecolor" || colorTerm == "24bit"
		return Capabilities{TrueColor: trueColor, Hyperlinks: true}
	}
}
