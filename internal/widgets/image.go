package widgets

import (
	"fmt"

	"github.com/gurpartap/tape/internal/termimg"
)

// ImageTheme styles the fallback line shown when the terminal has no image
// protocol.
type ImageTheme struct {
	FallbackColor StyleFunc
}

// ImageOptions configure an Image widget.
type ImageOptions struct {
	MaxWidthCells  int
	MaxHeightCells int
	Filename       string
	ImageID        uint32
}

// Image renders an inline image: rows-1 blank lines followed by one line
// carrying a cursor move-up and the protocol escape sequence, so the image
// paints over the blank rows. Cached by (base64, width).
type Image struct {
	state      *termimg.State
	base64Data string
	mimeType   string
	dimensions termimg.ImageDimensions
	theme      ImageTheme
	options    ImageOptions
	imageID    uint32

	cachedLines []string
	cachedWidth int
	cacheValid  bool
}

// NewImage builds an Image. When dims is nil the dimensions are decoded
// from the data, defaulting to 800x600 when undecodable.
func NewImage(state *termimg.State, base64Data, mimeType string, theme ImageTheme, options ImageOptions, dims *termimg.ImageDimensions) *Image {
	dimensions := termimg.ImageDimensions{WidthPx: 800, HeightPx: 600}
	if dims != nil {
		dimensions = *dims
	} else if decoded, ok := termimg.Dimensions(base64Data, mimeType); ok {
		dimensions = decoded
	}
	return &Image{
		state:      state,
		base64Data: base64Data,
		mimeType:   mimeType,
		dimensions: dimensions,
		theme:      theme,
		options:    options,
		imageID:    options.ImageID,
	}
}

// ImageID returns the configured image id; 0 when none was set.
func (i *Image) ImageID() uint32 { return i.imageID }

// Render implements tui.Component.
func (i *Image) Render(width int) []string {
	if i.cacheValid && i.cachedWidth == width {
		return i.cachedLines
	}

	maxWidthLimit := width - 2
	if maxWidthLimit < 1 {
		maxWidthLimit = 1
	}
	maxWidth := i.options.MaxWidthCells
	if maxWidth <= 0 {
		maxWidth = 60
	}
	if maxWidth > maxWidthLimit {
		maxWidth = maxWidthLimit
	}

	var lines []string
	result, ok := i.state.RenderImage(i.base64Data, i.dimensions, termimg.RenderOptions{
		MaxWidthCells:  maxWidth,
		MaxHeightCells: i.options.MaxHeightCells,
		ImageID:        i.imageID,
	})
	if ok {
		if result.ImageID != 0 {
			i.imageID = result.ImageID
		}
		if result.Rows > 0 {
			for range result.Rows - 1 {
				lines = append(lines, "")
			}
			moveUp := ""
			if result.Rows > 1 {
				moveUp = fmt.Sprintf("\x1b[%dA", result.Rows-1)
			}
			lines = append(lines, moveUp+result.Sequence)
		}
	} else {
		fallback := termimg.FallbackLine(i.mimeType, &i.dimensions, i.options.Filename)
		if i.theme.FallbackColor != nil {
			fallback = i.theme.FallbackColor(fallback)
		}
		lines = append(lines, fallback)
	}

	i.cachedLines = lines
	i.cachedWidth = width
	i.cacheValid = true
	return lines
}

// Invalidate drops the cached render.
func (i *Image) Invalidate() {
	i.cacheValid = false
	i.cachedLines = nil
}
