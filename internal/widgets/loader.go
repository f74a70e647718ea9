package widgets

import (
	"sync"
	"sync/atomic"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerIntervalMillis = 80

// RenderRequester asks the runtime for a render from a worker goroutine.
type RenderRequester func()

// sleeper is a wakeable sleep used by the loader worker so Stop unblocks a
// blocked sleep immediately instead of waiting for the tick.
type sleeper interface {
	Sleep(duration time.Duration)
	Wake()
}

type condSleeper struct {
	mu         sync.Mutex
	cond       *sync.Cond
	wakeTokens int
}

func newCondSleeper() *condSleeper {
	s := &condSleeper{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *condSleeper) Sleep(duration time.Duration) {
	deadline := time.Now().Add(duration)
	timer := time.AfterFunc(duration, func() {
		// Take the lock so the broadcast cannot slip between the deadline
		// check and the wait registration.
		s.mu.Lock()
		s.mu.Unlock() //nolint:staticcheck // empty critical section orders the broadcast
		s.cond.Broadcast()
	})
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.wakeTokens == 0 && time.Now().Before(deadline) {
		s.cond.Wait()
	}
	if s.wakeTokens > 0 {
		s.wakeTokens--
	}
}

func (s *condSleeper) Wake() {
	s.mu.Lock()
	s.wakeTokens++
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Loader is an animated spinner driven by a worker goroutine that sleeps
// between frames and requests renders.
type Loader struct {
	spinnerColor StyleFunc
	messageColor StyleFunc
	message      string
	text         *Text

	requestRender RenderRequester
	currentFrame  atomic.Uint64
	stopFlag      atomic.Bool
	sleep         sleeper

	mu   sync.Mutex
	done chan struct{}
}

// NewLoader builds and starts a loader. requestRender may be nil in tests.
func NewLoader(requestRender RenderRequester, spinnerColor, messageColor StyleFunc, message string) *Loader {
	return newLoaderWithSleeper(requestRender, newCondSleeper(), spinnerColor, messageColor, message)
}

func newLoaderWithSleeper(requestRender RenderRequester, sleep sleeper, spinnerColor, messageColor StyleFunc, message string) *Loader {
	if message == "" {
		message = "Loading..."
	}
	if spinnerColor == nil {
		spinnerColor = func(s string) string { return s }
	}
	if messageColor == nil {
		messageColor = func(s string) string { return s }
	}
	loader := &Loader{
		spinnerColor:  spinnerColor,
		messageColor:  messageColor,
		message:       message,
		text:          NewTextWithPadding("", 1, 0),
		requestRender: requestRender,
		sleep:         sleep,
	}
	loader.Start()
	return loader
}

// Start launches the worker. Starting a running loader is a no-op.
func (l *Loader) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return
	}

	l.stopFlag.Store(false)
	l.currentFrame.Store(0)
	l.updateText()
	l.render()

	done := make(chan struct{})
	l.done = done

	go func() {
		defer close(done)
		for {
			if l.stopFlag.Load() {
				return
			}
			l.sleep.Sleep(time.Duration(spinnerIntervalMillis) * time.Millisecond)
			if l.stopFlag.Load() {
				return
			}
			l.currentFrame.Add(1)
			l.render()
		}
	}()
}

// Stop wakes and joins the worker.
func (l *Loader) Stop() {
	l.mu.Lock()
	done := l.done
	l.done = nil
	l.mu.Unlock()

	if done == nil {
		return
	}
	l.stopFlag.Store(true)
	l.sleep.Wake()
	<-done
}

// SetMessage replaces the message text.
func (l *Loader) SetMessage(message string) {
	l.mu.Lock()
	l.message = message
	l.mu.Unlock()
	l.updateText()
	l.render()
}

func (l *Loader) updateText() {
	idx := int(l.currentFrame.Load()) % len(spinnerFrames)
	l.mu.Lock()
	message := l.message
	l.mu.Unlock()
	l.text.SetText(l.spinnerColor(spinnerFrames[idx]) + " " + l.messageColor(message))
}

func (l *Loader) render() {
	if l.requestRender != nil {
		l.requestRender()
	}
}

// Render implements tui.Component.
func (l *Loader) Render(width int) []string {
	l.updateText()
	lines := []string{""}
	return append(lines, l.text.Render(width)...)
}

// Invalidate drops cached text state.
func (l *Loader) Invalidate() { l.text.Invalidate() }
