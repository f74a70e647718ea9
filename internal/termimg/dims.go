package termimg

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"image"
	"strings"

	// Registered for the DecodeConfig fallback used on files whose headers
	// the fast paths below cannot read.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

func decodeBase64(data string) ([]byte, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		default:
			return r
		}
	}, data)
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(cleaned)
		if err != nil {
			return nil, false
		}
	}
	return decoded, true
}

// PNGDimensions reads width/height from a base64 PNG header.
func PNGDimensions(base64Data string) (ImageDimensions, bool) {
	buf, ok := decodeBase64(base64Data)
	if !ok || len(buf) < 24 {
		return ImageDimensions{}, false
	}
	if buf[0] != 0x89 || buf[1] != 0x50 || buf[2] != 0x4e || buf[3] != 0x47 {
		return ImageDimensions{}, false
	}
	width := binary.BigEndian.Uint32(buf[16:20])
	height := binary.BigEndian.Uint32(buf[20:24])
	return ImageDimensions{WidthPx: int(width), HeightPx: int(height)}, true
}

// JPEGDimensions scans base64 JPEG markers for the SOF segment.
func JPEGDimensions(base64Data string) (ImageDimensions, bool) {
	buf, ok := decodeBase64(base64Data)
	if !ok || len(buf) < 2 || buf[0] != 0xff || buf[1] != 0xd8 {
		return ImageDimensions{}, false
	}

	offset := 2
	for offset < len(buf)-9 {
		if buf[offset] != 0xff {
			offset++
			continue
		}

		marker := buf[offset+1]
		if marker >= 0xc0 && marker <= 0xc2 {
			height := int(binary.BigEndian.Uint16(buf[offset+5 : offset+7]))
			width := int(binary.BigEndian.Uint16(buf[offset+7 : offset+9]))
			return ImageDimensions{WidthPx: width, HeightPx: height}, true
		}

		if offset+3 >= len(buf) {
			return ImageDimensions{}, false
		}
		length := int(binary.BigEndian.Uint16(buf[offset+2 : offset+4]))
		if length < 2 {
			return ImageDimensions{}, false
		}
		offset += 2 + length
	}

	return ImageDimensions{}, false
}

// GIFDimensions reads width/height from a base64 GIF header.
func GIFDimensions(base64Data string) (ImageDimensions, bool) {
	buf, ok := decodeBase64(base64Data)
	if !ok || len(buf) < 10 {
		return ImageDimensions{}, false
	}
	sig := string(buf[0:6])
	if sig != "GIF87a" && sig != "GIF89a" {
		return ImageDimensions{}, false
	}
	width := int(binary.LittleEndian.Uint16(buf[6:8]))
	height := int(binary.LittleEndian.Uint16(buf[8:10]))
	return ImageDimensions{WidthPx: width, HeightPx: height}, true
}

// WebPDimensions reads width/height from a base64 WebP header (VP8, VP8L,
// or VP8X chunk).
func WebPDimensions(base64Data string) (ImageDimensions, bool) {
	buf, ok := decodeBase64(base64Data)
	if !ok || len(buf) < 30 {
		return ImageDimensions{}, false
	}
	if string(buf[0:4]) != "RIFF" || string(buf[8:12]) != "WEBP" {
		return ImageDimensions{}, false
	}

	switch string(buf[12:16]) {
	case "VP8 ":
		width := binary.LittleEndian.Uint16(buf[26:28]) & 0x3fff
		height := binary.LittleEndian.Uint16(buf[28:30]) & 0x3fff
		return ImageDimensions{WidthPx: int(width), HeightPx: int(height)}, true
	case "VP8L":
		bits := binary.LittleEndian.Uint32(buf[21:25])
		width := int(bits&0x3fff) + 1
		height := int((bits>>14)&0x3fff) + 1
		return ImageDimensions{WidthPx: width, HeightPx: height}, true
	case "VP8X":
		width := int(uint32(buf[24])|uint32(buf[25])<<8|uint32(buf[26])<<16) + 1
		height := int(uint32(buf[27])|uint32(buf[28])<<8|uint32(buf[29])<<16) + 1
		return ImageDimensions{WidthPx: width, HeightPx: height}, true
	default:
		return ImageDimensions{}, false
	}
}

// Dimensions dispatches on mime type, falling back to a full
// image.DecodeConfig pass when the header fast path fails.
func Dimensions(base64Data, mimeType string) (ImageDimensions, bool) {
	var dims ImageDimensions
	var ok bool
	switch mimeType {
	case "image/png":
		dims, ok = PNGDimensions(base64Data)
	case "image/jpeg":
		dims, ok = JPEGDimensions(base64Data)
	case "image/gif":
		dims, ok = GIFDimensions(base64Data)
	case "image/webp":
		dims, ok = WebPDimensions(base64Data)
	}
	if ok {
		return dims, true
	}

	buf, decoded := decodeBase64(base64Data)
	if !decoded {
		return ImageDimensions{}, false
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(buf))
	if err != nil {
		return ImageDimensions{}, false
	}
	return ImageDimensions{WidthPx: cfg.Width, HeightPx: cfg.Height}, true
}
