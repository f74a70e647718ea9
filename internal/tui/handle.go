package tui

import "sync"

// Handle is the thread-safe bridge into the runtime. Producer threads (the
// input reader, loaders, the agent controller) post through it; the runtime
// thread drains the queues in RunOnce.
type Handle struct {
	runtime *TUI
	mu      sync.Mutex
	wakers  []func()
}

// RequestRender marks the runtime dirty. Safe from any goroutine; posts to
// a full queue collapse into the already-pending request.
func (h *Handle) RequestRender() {
	select {
	case h.runtime.commands <- cmdRequestRender:
	default:
	}
	h.wake()
}

// RequestStop asks the runtime loop to exit.
func (h *Handle) RequestStop() {
	select {
	case h.runtime.commands <- cmdRequestStop:
	default:
	}
	h.wake()
}

// PostResize schedules resize dispatch plus a full repaint.
func (h *Handle) PostResize() {
	select {
	case h.runtime.commands <- cmdResize:
	default:
	}
	h.wake()
}

// PostInput enqueues one complete input sequence for dispatch.
func (h *Handle) PostInput(data string) {
	select {
	case h.runtime.inputs <- data:
	default:
		// Queue full: drop rather than block the reader thread. The
		// sequence boundary guarantees of the stdin buffer keep later
		// sequences intact.
	}
	h.wake()
}

// OnWake registers a callback invoked after every post, so a blocking main
// loop can be unparked.
func (h *Handle) OnWake(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wakers = append(h.wakers, fn)
}

func (h *Handle) wake() {
	h.mu.Lock()
	wakers := append([]func(){}, h.wakers...)
	h.mu.Unlock()
	for _, fn := range wakers {
		fn()
	}
}
