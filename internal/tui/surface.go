package tui

// SurfaceKind classifies a rendered layer.
type SurfaceKind uint8

const (
	// SurfaceInline is the root document flow. Exactly one inline surface
	// exists: the runtime root.
	SurfaceInline SurfaceKind = iota
	// SurfaceOverlay floats above the inline flow.
	SurfaceOverlay
	// SurfaceModal floats above everything and always captures input.
	SurfaceModal
)

// SurfaceInputPolicy controls whether a surface consumes routed input.
type SurfaceInputPolicy uint8

const (
	// SurfacePassthrough lets events continue to lower surfaces.
	SurfacePassthrough SurfaceInputPolicy = iota
	// SurfaceCapture consumes events at this surface.
	SurfaceCapture
)

// SurfaceAnchor positions a surface in the viewport.
type SurfaceAnchor struct {
	Row int
	Col int
}

// SurfaceOptions configure ShowSurface.
type SurfaceOptions struct {
	Kind        SurfaceKind
	InputPolicy SurfaceInputPolicy
	Anchor      *SurfaceAnchor
	MarginX     int
	MarginY     int

	// WidthCells / WidthPercent size the surface; zero values derive the
	// width from the viewport. Percent wins when both are set.
	WidthCells   int
	WidthPercent int

	Hidden bool
}

// DefaultSurfaceOptions returns the options used when ShowSurface receives
// nil: a capturing overlay anchored at the top of the viewport.
func DefaultSurfaceOptions() SurfaceOptions {
	return SurfaceOptions{Kind: SurfaceOverlay, InputPolicy: SurfaceCapture}
}

type surface struct {
	component ComponentID
	options   SurfaceOptions
	prevFocus ComponentID
	hadFocus  bool
}

// SurfaceHandle controls a shown surface.
type SurfaceHandle struct {
	runtime *TUI
	surface *surface
}

// Hide removes the surface and restores the focus saved when it was shown.
func (h *SurfaceHandle) Hide() {
	h.runtime.hideSurface(h.surface)
}

// SetHidden toggles visibility without removing the surface. A hidden
// surface neither renders nor receives input.
func (h *SurfaceHandle) SetHidden(hidden bool) {
	h.runtime.setSurfaceHidden(h.surface, hidden)
}

// Hidden reports the surface's visibility.
func (h *SurfaceHandle) Hidden() bool {
	return h.surface.options.Hidden
}
