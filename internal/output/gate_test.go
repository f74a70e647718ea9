package output

import (
	"strings"
	"testing"
)

type recordingWriter struct {
	output strings.Builder
	writes []string
}

func (w *recordingWriter) Write(data string) {
	w.writes = append(w.writes, data)
	w.output.WriteString(data)
}

func TestFlushCoalescesWritesAndPreservesBytes(t *testing.T) {
	gate := NewGate()
	gate.Extend(
		Cmd{Kind: CmdHideCursor},
		Bytes("hello"),
		Bytes(" world"),
		MoveDown(2),
		ColumnAbs(4),
		Cmd{Kind: CmdBracketedPasteEnable},
		Cmd{Kind: CmdKittyQuery},
		Cmd{Kind: CmdQueryCellSize},
		Cmd{Kind: CmdBracketedPasteDisable},
		Cmd{Kind: CmdKittyEnable},
		Cmd{Kind: CmdKittyDisable},
		Cmd{Kind: CmdShowCursor},
	)

	w := &recordingWriter{}
	gate.Flush(w)

	want := "\x1b[?25lhello world\x1b[2B\x1b[4G\x1b[?2004h\x1b[?u\x1b[16t\x1b[?2004l\x1b[>7u\x1b[<u\x1b[?25h"
	if got := w.output.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if len(w.writes) != 1 {
		t.Errorf("write calls = %d, want 1", len(w.writes))
	}
}

func TestCursorCmdsEncodeToANSISequences(t *testing.T) {
	gate := NewGate()
	gate.Extend(MoveUp(2), MoveDown(3), ColumnAbs(4))

	w := &recordingWriter{}
	gate.Flush(w)

	if got := w.output.String(); got != "\x1b[2A\x1b[3B\x1b[4G" {
		t.Errorf("output = %q", got)
	}
}

func TestZeroMovesAreNoOps(t *testing.T) {
	gate := NewGate()
	gate.Extend(MoveUp(0), MoveDown(0), ColumnAbs(0))

	w := &recordingWriter{}
	gate.Flush(w)

	if got := w.output.String(); got != "" {
		t.Errorf("output = %q, want empty", got)
	}
	if len(w.writes) != 0 {
		t.Errorf("write calls = %d, want 0", len(w.writes))
	}
}

func TestClearCmdsEncodeToANSISequences(t *testing.T) {
	gate := NewGate()
	gate.Extend(Cmd{Kind: CmdClearLine}, Cmd{Kind: CmdClearFromCursor}, Cmd{Kind: CmdClearScreen})

	w := &recordingWriter{}
	gate.Flush(w)

	want := "\x1b[K\x1b[J\x1b[2J\x1b[H"
	if got := w.output.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if len(w.writes) != 1 {
		t.Errorf("write calls = %d, want single coalesced write", len(w.writes))
	}
}

func TestFlushIsNoopWhenEmpty(t *testing.T) {
	gate := NewGate()
	w := &recordingWriter{}
	gate.Flush(w)

	if w.output.Len() != 0 || len(w.writes) != 0 {
		t.Errorf("empty flush wrote %d bytes in %d writes", w.output.Len(), len(w.writes))
	}
}

func TestFlushStreamsLargePayloadsWithoutCoalescing(t *testing.T) {
	big := strings.Repeat("x", streamThresholdBytes+1)

	gate := NewGate()
	gate.Extend(Cmd{Kind: CmdHideCursor}, Bytes(big), Cmd{Kind: CmdShowCursor})

	w := &recordingWriter{}
	gate.Flush(w)

	want := "\x1b[?25l" + big + "\x1b[?25h"
	if got := w.output.String(); got != want {
		t.Errorf("streamed output diverged from coalesced encoding")
	}
	if len(w.writes) <= 1 {
		t.Errorf("write calls = %d, want streaming path with multiple writes", len(w.writes))
	}

	direct := false
	for _, write := range w.writes {
		if write == big {
			direct = true
		}
	}
	if !direct {
		t.Errorf("large payload was not written as its own write")
	}
}

func TestFlushStreamingPreservesOrderAcrossChunkBoundaries(t *testing.T) {
	movesForChunk := streamChunkBytes / len("\x1b[1A")
	gate := NewGate()
	for range movesForChunk {
		gate.Push(MoveUp(1))
	}
	extra := strings.Repeat("y", streamThresholdBytes)
	gate.Extend(Bytes("small"), Cmd{Kind: CmdHideCursor}, Bytes(extra), MoveDown(2), Cmd{Kind: CmdShowCursor})

	want := strings.Repeat("\x1b[1A", movesForChunk) + "small\x1b[?25l" + extra + "\x1b[2B\x1b[?25h"

	w := &recordingWriter{}
	gate.Flush(w)

	if got := w.output.String(); got != want {
		t.Errorf("streamed output reordered bytes")
	}
	if len(w.writes) <= 1 {
		t.Errorf("write calls = %d, want multiple", len(w.writes))
	}
}

func TestFlushAfterFlushIsEmpty(t *testing.T) {
	gate := NewGate()
	gate.Push(Bytes("once"))

	w := &recordingWriter{}
	gate.Flush(w)
	gate.Flush(w)

	if got := w.output.String(); got != "once" {
		t.Errorf("output = %q, want single payload", got)
	}
}

func TestSetTitleWritesOSCZero(t *testing.T) {
	w := &recordingWriter{}
	SetTitle(w, "tape - test")
	if got := w.output.String(); got != "\x1b]0;tape - test\x07" {
		t.Errorf("output = %q", got)
	}

	empty := &recordingWriter{}
	SetTitle(empty, "")
	if got := empty.output.String(); got != "\x1b]0;\x07" {
		t.Errorf("output = %q", got)
	}
}
