package termimg

import (
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"strings"
	"time"
)

const (
	kittyPrefix    = "\x1b_G"
	iterm2Prefix   = "\x1b]1337;File="
	kittyChunkSize = 4096
	kittyIDMax     = 0xfffffffe
)

// KittyEncodeOptions configure a Kitty transmit-and-display sequence.
// Zero values omit the corresponding parameter.
type KittyEncodeOptions struct {
	Columns int
	Rows    int
	ImageID uint32
}

// ITerm2EncodeOptions configure an iTerm2 inline file sequence.
type ITerm2EncodeOptions struct {
	Width               string
	Height              string
	Name                string
	PreserveAspectRatio *bool
	Inline              *bool
}

// EncodeKitty encodes base64 PNG data as a Kitty graphics sequence, split
// into 4096-byte chunks with m=1 continuations and an m=0 terminator.
func EncodeKitty(base64Data string, options KittyEncodeOptions) string {
	params := []string{"a=T", "f=100", "q=2"}
	if options.Columns > 0 {
		params = append(params, fmt.Sprintf("c=%d", options.Columns))
	}
	if options.Rows > 0 {
		params = append(params, fmt.Sprintf("r=%d", options.Rows))
	}
	if options.ImageID > 0 {
		params = append(params, fmt.Sprintf("i=%d", options.ImageID))
	}
	paramStr := strings.Join(params, ",")

	if len(base64Data) <= kittyChunkSize {
		return kittyPrefix + paramStr + ";" + base64Data + "\x1b\\"
	}

	var out strings.Builder
	offset := 0
	first := true
	for offset < len(base64Data) {
		end := offset + kittyChunkSize
		if end > len(base64Data) {
			end = len(base64Data)
		}
		chunk := base64Data[offset:end]
		last := end >= len(base64Data)

		switch {
		case first:
			out.WriteString(kittyPrefix + paramStr + ",m=1;" + chunk + "\x1b\\")
			first = false
		case last:
			out.WriteString(kittyPrefix + "m=0;" + chunk + "\x1b\\")
		default:
			out.WriteString(kittyPrefix + "m=1;" + chunk + "\x1b\\")
		}
		offset = end
	}
	return out.String()
}

// DeleteKittyImage encodes deletion of one image by id.
func DeleteKittyImage(imageID uint32) string {
	return fmt.Sprintf("%sa=d,d=I,i=%d\x1b\\", kittyPrefix, imageID)
}

// DeleteAllKittyImages encodes deletion of all visible placements.
func DeleteAllKittyImages() string {
	return kittyPrefix + "a=d,d=A\x1b\\"
}

// EncodeITerm2 encodes base64 data as an iTerm2 inline file sequence.
func EncodeITerm2(base64Data string, options ITerm2EncodeOptions) string {
	inline := 1
	if options.Inline != nil && !*options.Inline {
		inline = 0
	}
	params := []string{fmt.Sprintf("inline=%d", inline)}
	if options.Width != "" {
		params = append(params, "width="+options.Width)
	}
	if options.Height != "" {
		params = append(params, "height="+options.Height)
	}
	if options.Name != "" {
		params = append(params, "name="+base64.StdEncoding.EncodeToString([]byte(options.Name)))
	}
	if options.PreserveAspectRatio != nil && !*options.PreserveAspectRatio {
		params = append(params, "preserveAspectRatio=0")
	}
	return iterm2Prefix + strings.Join(params, ";") + ":" + base64Data + "\x07"
}

// IsImageLine reports whether a rendered line carries an inline image
// sequence anywhere in it.
func IsImageLine(line string) bool {
	return strings.Contains(line, kittyPrefix) || strings.Contains(line, iterm2Prefix)
}

// AllocateImageID returns a process-unique Kitty image id in
// [1, 0xfffffffe], mixed so ids from concurrent processes rarely collide.
func (s *State) AllocateImageID() uint32 {
	s.mu.Lock()
	counter := s.idCounter
	s.idCounter += 0x9e3779b9
	seed := s.idSeed
	s.mu.Unlock()

	value := seed + counter
	value ^= value << 13
	value ^= value >> 17
	value ^= value << 5
	return value%kittyIDMax + 1
}

func newImageIDSeed() uint32 {
	nanos := uint64(time.Now().UnixNano())
	pid := uint64(os.Getpid())
	mixed := nanos ^ (pid << 32) ^ (pid << 16) ^ pid
	return uint32(mixed)%kittyIDMax + 1
}

// CalculateImageRows returns how many terminal rows an image occupies when
// scaled to targetWidthCells, lower-bounded at 1.
func CalculateImageRows(image ImageDimensions, targetWidthCells int, cell CellDimensions) int {
	if cell.WidthPx == 0 || cell.HeightPx == 0 {
		cell = defaultCellDimensions
	}
	if image.WidthPx == 0 {
		return 1
	}
	targetWidthPx := float64(targetWidthCells) * float64(cell.WidthPx)
	scale := targetWidthPx / float64(image.WidthPx)
	scaledHeightPx := float64(image.HeightPx) * scale
	rows := int(math.Ceil(scaledHeightPx / float64(cell.HeightPx)))
	if rows < 1 {
		return 1
	}
	return rows
}

// FitImageWithinCells picks the widest width (in cells) not exceeding
// maxWidthCells whose resulting row count stays within maxHeightCells (when
// positive), shrinking width first.
func FitImageWithinCells(image ImageDimensions, cell CellDimensions, maxWidthCells, maxHeightCells int) (widthCells, rows int) {
	if maxWidthCells < 1 {
		maxWidthCells = 1
	}
	if image.WidthPx == 0 || image.HeightPx == 0 || cell.WidthPx == 0 || cell.HeightPx == 0 {
		return maxWidthCells, 1
	}

	widthCells = maxWidthCells

	if maxHeightCells > 0 {
		scaleW := float64(maxWidthCells) * float64(cell.WidthPx) / float64(image.WidthPx)
		scaleH := float64(maxHeightCells) * float64(cell.HeightPx) / float64(image.HeightPx)
		scale := math.Min(scaleW, scaleH)

		scaled := int(math.Floor(float64(image.WidthPx) * scale / float64(cell.WidthPx)))
		widthCells = scaled
		if widthCells < 1 {
			widthCells = 1
		}
		if widthCells > maxWidthCells {
			widthCells = maxWidthCells
		}

		rows = CalculateImageRows(image, widthCells, cell)
		for rows > maxHeightCells && widthCells > 1 {
			widthCells--
			rows = CalculateImageRows(image, widthCells, cell)
		}
		return widthCells, rows
	}

	return widthCells, CalculateImageRows(image, widthCells, cell)
}

// FallbackLine formats the placeholder line used when the terminal has no
// image protocol.
func FallbackLine(mimeType string, dims *ImageDimensions, filename string) string {
	var parts []string
	if filename != "" {
		parts = append(parts, filename)
	}
	parts = append(parts, "["+mimeType+"]")
	if dims != nil {
		parts = append(parts, fmt.Sprintf("%dx%d", dims.WidthPx, dims.HeightPx))
	}
	return "[Image: " + strings.Join(parts, " ") + "]"
}

// RenderOptions configure RenderImage.
type RenderOptions struct {
	MaxWidthCells       int
	MaxHeightCells      int
	PreserveAspectRatio *bool
	ImageID             uint32
}

// RenderResult is an encoded image sequence plus its cell row count.
type RenderResult struct {
	Sequence string
	Rows     int
	ImageID  uint32
}

// RenderImage encodes the image for the detected protocol, or returns
// ok=false when the terminal supports no image protocol.
func (s *State) RenderImage(base64Data string, image ImageDimensions, options RenderOptions) (RenderResult, bool) {
	caps := s.Capabilities()
	if caps.Images == "" {
		return RenderResult{}, false
	}

	maxWidth := options.MaxWidthCells
	if maxWidth <= 0 {
		maxWidth = 80
	}
	cell := s.CellDimensions()
	widthCells, rows := FitImageWithinCells(image, cell, maxWidth, options.MaxHeightCells)

	switch caps.Images {
	case ProtocolKitty:
		sequence := EncodeKitty(base64Data, KittyEncodeOptions{
			Columns: widthCells,
			Rows:    rows,
			ImageID: options.ImageID,
		})
		return RenderResult{Sequence: sequence, Rows: rows, ImageID: options.ImageID}, true
	default:
		preserve := true
		if options.PreserveAspectRatio != nil {
			preserve = *options.PreserveAspectRatio
		}
		preservePtr := &preserve
		sequence := EncodeITerm2(base64Data, ITerm2EncodeOptions{
			Width:               fmt.Sprintf("%d", widthCells),
			Height:              "auto",
			PreserveAspectRatio: preservePtr,
		})
		return RenderResult{Sequence: sequence, Rows: rows}, true
	}
}
