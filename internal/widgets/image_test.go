package widgets

import (
	"strings"
	"testing"

	"github.com/gurpartap/tape/internal/termimg"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

func TestImageRendersKittySequenceWithMoveUp(t *testing.T) {
	state := termimg.NewState(lookupFrom(map[string]string{
		"TERM_PROGRAM":    "kitty",
		"KITTY_WINDOW_ID": "1",
	}))
	state.SetCellDimensions(termimg.CellDimensions{WidthPx: 10, HeightPx: 10})

	dims := termimg.ImageDimensions{WidthPx: 100, HeightPx: 50}
	image := NewImage(state, "AAAA", "image/png", ImageTheme{}, ImageOptions{
		MaxWidthCells: 10,
		ImageID:       5,
	}, &dims)

	lines := image.Render(20)
	// 100x50 px at 10 cells of 10x10 px cells -> 5 px rows of height 10
	// scaled: rows = 5.
	if len(lines) != 5 {
		t.Fatalf("lines = %d, want rows", len(lines))
	}
	for i := 0; i < len(lines)-1; i++ {
		if lines[i] != "" {
			t.Errorf("line %d = %q, want blank", i, lines[i])
		}
	}
	last := lines[len(lines)-1]
	if !strings.HasPrefix(last, "\x1b[4A") {
		t.Errorf("sequence line = %q, want move-up rows-1 prefix", last)
	}
	if !strings.Contains(last, "\x1b_G") {
		t.Errorf("sequence line missing kitty payload: %q", last)
	}
	if image.ImageID() != 5 {
		t.Errorf("image id = %d", image.ImageID())
	}
}

func TestImageFallsBackWithoutCapabilities(t *testing.T) {
	state := termimg.NewState(lookupFrom(map[string]string{"TERM_PROGRAM": "vscode"}))
	dims := termimg.ImageDimensions{WidthPx: 200, HeightPx: 100}

	image := NewImage(state, "AAAA", "image/png", ImageTheme{
		FallbackColor: func(s string) string { return "<" + s + ">" },
	}, ImageOptions{Filename: "file.png"}, &dims)

	lines := image.Render(40)
	if len(lines) != 1 || lines[0] != "<[Image: file.png [image/png] 200x100]>" {
		t.Errorf("lines = %q", lines)
	}
}

func TestImageCachesByWidth(t *testing.T) {
	state := termimg.NewState(lookupFrom(map[string]string{"TERM_PROGRAM": "vscode"}))
	image := NewImage(state, "AAAA", "image/png", ImageTheme{}, ImageOptions{}, &termimg.ImageDimensions{WidthPx: 10, HeightPx: 10})

	first := image.Render(40)
	second := image.Render(40)
	if first[0] != second[0] {
		t.Errorf("cached render differs")
	}
}
