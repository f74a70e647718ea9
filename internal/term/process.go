package term

import (
	"errors"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/muesli/cancelreader"
	"golang.org/x/sys/unix"
	xterm "golang.org/x/term"

	"github.com/gurpartap/tape/internal/config"
	"github.com/gurpartap/tape/internal/stdinbuf"
)

// readPollMillis bounds the reader loop's wait so stdin-buffer tail flushes
// wake promptly even when no bytes arrive.
const readPollMillis = 50

// ErrNotATerminal is returned by Start when stdin/stdout are not TTYs.
var ErrNotATerminal = errors.New("term: stdin and stdout must be terminals")

// ProcessTerminal drives the process's real controlling terminal: raw mode
// on Start, an input reader thread that reassembles sequences through a
// stdin buffer, and a SIGWINCH listener for resize callbacks.
type ProcessTerminal struct {
	mu        sync.Mutex
	prevState *xterm.State
	reader    cancelreader.CancelReader
	onInput   InputFunc
	onResize  ResizeFunc
	started   bool
	draining  atomic.Bool
	lastByte  atomic.Int64

	buffer   *stdinbuf.Buffer
	winchCh  chan os.Signal
	done     chan struct{}
	threads  sync.WaitGroup
	writeLog *os.File

	columns atomic.Int32
	rows    atomic.Int32
}

// NewProcessTerminal builds a process terminal honoring the TAPE_* env
// toggles (write log).
func NewProcessTerminal(env config.EnvConfig) *ProcessTerminal {
	t := &ProcessTerminal{
		buffer: stdinbuf.New(stdinbuf.DefaultTimeoutMillis),
	}
	if env.TUIWriteLog != "" {
		if f, err := os.OpenFile(env.TUIWriteLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			t.writeLog = f
		}
	}
	t.columns.Store(80)
	t.rows.Store(24)
	return t
}

// Start enters raw mode, spawns the reader and resize threads, and installs
// the callbacks.
func (t *ProcessTerminal) Start(onInput InputFunc, onResize ResizeFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return errors.New("term: already started")
	}

	stdinFd := int(os.Stdin.Fd())
	if !isatty.IsTerminal(os.Stdin.Fd()) || !isatty.IsTerminal(os.Stdout.Fd()) {
		return ErrNotATerminal
	}

	prevState, err := xterm.MakeRaw(stdinFd)
	if err != nil {
		return err
	}

	reader, err := cancelreader.NewReader(os.Stdin)
	if err != nil {
		_ = xterm.Restore(stdinFd, prevState)
		return err
	}

	t.prevState = prevState
	t.reader = reader
	t.onInput = onInput
	t.onResize = onResize
	t.done = make(chan struct{})
	t.winchCh = make(chan os.Signal, 1)
	t.started = true
	t.refreshSize()

	signal.Notify(t.winchCh, unix.SIGWINCH)

	t.threads.Add(2)
	go t.readLoop()
	go t.resizeLoop()

	return nil
}

// Stop cancels the reader, restores prior termios, and joins both threads.
// Callers should drain input first; Guard enforces the ordering.
func (t *ProcessTerminal) Stop() error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = false
	close(t.done)
	signal.Stop(t.winchCh)
	t.reader.Cancel()
	prevState := t.prevState
	t.prevState = nil
	t.mu.Unlock()

	t.threads.Wait()
	_ = t.reader.Close()

	var err error
	if prevState != nil {
		err = xterm.Restore(int(os.Stdin.Fd()), prevState)
	}
	if t.writeLog != nil {
		_ = t.writeLog.Close()
		t.writeLog = nil
	}
	return err
}

// DrainInput suppresses input delivery while continuing to consume bytes,
// returning after maxMillis or after idleMillis of silence.
func (t *ProcessTerminal) DrainInput(maxMillis, idleMillis int) {
	t.draining.Store(true)
	defer t.draining.Store(false)

	deadline := time.Now().Add(time.Duration(maxMillis) * time.Millisecond)
	t.lastByte.Store(time.Now().UnixNano())

	for {
		now := time.Now()
		if !now.Before(deadline) {
			return
		}
		last := time.Unix(0, t.lastByte.Load())
		if now.Sub(last) >= time.Duration(idleMillis)*time.Millisecond {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Write sends bytes to stdout; the output gate is the only caller.
func (t *ProcessTerminal) Write(data string) {
	_, _ = os.Stdout.WriteString(data)
	if t.writeLog != nil {
		_, _ = t.writeLog.WriteString(data)
	}
}

// Columns returns the current column count.
func (t *ProcessTerminal) Columns() int { return int(t.columns.Load()) }

// Rows returns the current row count.
func (t *ProcessTerminal) Rows() int { return int(t.rows.Load()) }

func (t *ProcessTerminal) refreshSize() {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 || ws.Row == 0 {
		return
	}
	t.columns.Store(int32(ws.Col))
	t.rows.Store(int32(ws.Row))
}

func (t *ProcessTerminal) readLoop() {
	defer t.threads.Done()

	buf := make([]byte, 4096)
	for {
		select {
		case <-t.done:
			return
		default:
		}

		// Emit any due tail flush before blocking again. The reader wait
		// is bounded by readPollMillis so tails never sit past their
		// deadline for long.
		now := time.Now()
		for _, event := range t.buffer.FlushDue(now) {
			t.dispatch(event)
		}

		n, err := t.reader.Read(buf)
		if err != nil {
			if errors.Is(err, cancelreader.ErrCanceled) {
				return
			}
			select {
			case <-t.done:
				return
			default:
				time.Sleep(time.Duration(readPollMillis) * time.Millisecond)
				continue
			}
		}
		if n == 0 {
			continue
		}

		t.lastByte.Store(time.Now().UnixNano())
		if t.draining.Load() {
			continue
		}

		for _, event := range t.buffer.Process(buf[:n]) {
			t.dispatch(event)
		}

		if pending := t.buffer.Pending(); pending != "" {
			waitMs := t.buffer.NextTimeoutMillis(time.Now(), readPollMillis)
			timer := time.NewTimer(time.Duration(waitMs) * time.Millisecond)
			select {
			case <-t.done:
				timer.Stop()
				return
			case <-timer.C:
				for _, event := range t.buffer.FlushDue(time.Now()) {
					t.dispatch(event)
				}
			}
		}
	}
}

func (t *ProcessTerminal) dispatch(event stdinbuf.Event) {
	if t.draining.Load() {
		return
	}
	onInput := t.onInput
	if onInput == nil {
		return
	}
	switch event.Kind {
	case stdinbuf.EventData:
		if event.Data != "" {
			onInput(event.Data)
		}
	case stdinbuf.EventPaste:
		onInput("\x1b[200~" + event.Data + "\x1b[201~")
	}
}

func (t *ProcessTerminal) resizeLoop() {
	defer t.threads.Done()
	for {
		select {
		case <-t.done:
			return
		case <-t.winchCh:
			t.refreshSize()
			if t.onResize != nil {
				t.onResize()
			}
		}
	}
}
