package widgets

import (
	"sync/atomic"

	"github.com/gurpartap/tape/internal/tui"
)

// AbortSignal is an atomically readable abort flag shared with workers.
type AbortSignal struct {
	aborted *atomic.Bool
}

// Aborted reports whether the signal fired.
func (s AbortSignal) Aborted() bool { return s.aborted.Load() }

// CancellableLoader is a Loader plus an abort signal. The configured cancel
// key sets the signal atomically and fires a one-shot abort callback.
type CancellableLoader struct {
	loader  *Loader
	keys    *KeyBindings
	aborted atomic.Bool
	onAbort func()
}

// NewCancellableLoader builds and starts a cancellable loader.
func NewCancellableLoader(requestRender RenderRequester, keys *KeyBindings, spinnerColor, messageColor StyleFunc, message string) *CancellableLoader {
	if keys == nil {
		keys = DefaultKeyBindings()
	}
	return &CancellableLoader{
		loader: NewLoader(requestRender, spinnerColor, messageColor, message),
		keys:   keys,
	}
}

// SetOnAbort installs the abort callback.
func (c *CancellableLoader) SetOnAbort(onAbort func()) { c.onAbort = onAbort }

// Signal returns the shared abort signal.
func (c *CancellableLoader) Signal() AbortSignal { return AbortSignal{aborted: &c.aborted} }

// Aborted reports whether cancel fired.
func (c *CancellableLoader) Aborted() bool { return c.aborted.Load() }

// SetMessage forwards to the loader.
func (c *CancellableLoader) SetMessage(message string) { c.loader.SetMessage(message) }

// Start restarts the spinner worker.
func (c *CancellableLoader) Start() { c.loader.Start() }

// Stop halts the spinner worker.
func (c *CancellableLoader) Stop() { c.loader.Stop() }

// Render implements tui.Component.
func (c *CancellableLoader) Render(width int) []string { return c.loader.Render(width) }

// HandleEvent fires the abort signal on the cancel binding.
func (c *CancellableLoader) HandleEvent(event tui.InputEvent) {
	if !c.keys.Matches(event.Raw, ActionSelectCancel) {
		return
	}
	if !c.aborted.Swap(true) && c.onAbort != nil {
		c.onAbort()
	}
}

// Invalidate forwards to the loader.
func (c *CancellableLoader) Invalidate() { c.loader.Invalidate() }
