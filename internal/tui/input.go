package tui

import (
	"strconv"
	"strings"
)

// InputEventType discriminates input events.
type InputEventType uint8

const (
	// InputText is printable text (one or more graphemes).
	InputText InputEventType = iota
	// InputKey is a decoded key with press/release semantics.
	InputKey
	// InputPaste is a bracketed paste payload.
	InputPaste
	// InputResize reports a new terminal size.
	InputResize
	// InputUnknownRaw is an unrecognized escape sequence, passed verbatim.
	InputUnknownRaw
)

// KeyEventType distinguishes press from release. Only Key events carry it.
type KeyEventType uint8

const (
	KeyPress KeyEventType = iota
	KeyRelease
)

// InputEvent is one decoded input delivered to components. Raw always
// carries the original byte sequence so widgets can match keybindings
// against it directly.
type InputEvent struct {
	Type    InputEventType
	Raw     string
	Text    string
	KeyID   string
	KeyType KeyEventType
	Columns int
	Rows    int
}

const (
	pasteStart = "\x1b[200~"
	pasteEnd   = "\x1b[201~"
)

var namedCSIKeys = map[string]string{
	"\x1b[A": "up",
	"\x1b[B": "down",
	"\x1b[C": "right",
	"\x1b[D": "left",
	"\x1b[H": "home",
	"\x1b[F": "end",
	"\x1b[Z": "shift+tab",
	"\x1bOA": "up",
	"\x1bOB": "down",
	"\x1bOC": "right",
	"\x1bOD": "left",
	"\x1bOH": "home",
	"\x1bOF": "end",
	"\x1b[3~": "delete",
	"\x1b[5~": "pageup",
	"\x1b[6~": "pagedown",
}

// ParseInputEvent decodes one complete sequence (as produced by the stdin
// buffer) into an input event.
func ParseInputEvent(data string) InputEvent {
	if strings.HasPrefix(data, pasteStart) && strings.HasSuffix(data, pasteEnd) {
		payload := data[len(pasteStart) : len(data)-len(pasteEnd)]
		return InputEvent{Type: InputPaste, Raw: data, Text: payload}
	}

	if !strings.HasPrefix(data, "\x1b") {
		switch data {
		case "\r", "\n":
			return InputEvent{Type: InputKey, Raw: data, KeyID: "enter", KeyType: KeyPress}
		case "\t":
			return InputEvent{Type: InputKey, Raw: data, KeyID: "tab", KeyType: KeyPress}
		case "\x7f", "\b":
			return InputEvent{Type: InputKey, Raw: data, KeyID: "backspace", KeyType: KeyPress}
		}
		if len(data) == 1 && data[0] < 0x20 {
			letter := string(rune(data[0] + 'a' - 1))
			return InputEvent{Type: InputKey, Raw: data, KeyID: "ctrl+" + letter, KeyType: KeyPress}
		}
		return InputEvent{Type: InputText, Raw: data, Text: data}
	}

	if data == "\x1b" {
		return InputEvent{Type: InputKey, Raw: data, KeyID: "escape", KeyType: KeyPress}
	}

	if keyID, ok := namedCSIKeys[data]; ok {
		return InputEvent{Type: InputKey, Raw: data, KeyID: keyID, KeyType: KeyPress}
	}

	if keyID, keyType, ok := parseKittyKey(data); ok {
		return InputEvent{Type: InputKey, Raw: data, KeyID: keyID, KeyType: keyType}
	}

	return InputEvent{Type: InputUnknownRaw, Raw: data}
}

// parseKittyKey decodes the kitty keyboard protocol's CSI u form:
// ESC [ code ; mods u for presses, ESC [ code ; mods : 3 u for releases.
func parseKittyKey(data string) (string, KeyEventType, bool) {
	if !strings.HasPrefix(data, "\x1b[") || !strings.HasSuffix(data, "u") {
		return "", KeyPress, false
	}
	body := data[2 : len(data)-1]
	if body == "" || body == "?" || body == ">7" || body == "<" {
		return "", KeyPress, false
	}

	keyType := KeyPress
	codePart := body
	if semi := strings.IndexByte(body, ';'); semi >= 0 {
		codePart = body[:semi]
		modPart := body[semi+1:]
		if colon := strings.IndexByte(modPart, ':'); colon >= 0 {
			if modPart[colon+1:] == "3" {
				keyType = KeyRelease
			}
		}
	}

	code, err := strconv.Atoi(codePart)
	if err != nil || code <= 0 {
		return "", KeyPress, false
	}

	var keyID string
	switch code {
	case 13:
		keyID = "enter"
	case 9:
		keyID = "tab"
	case 27:
		keyID = "escape"
	case 127:
		keyID = "backspace"
	default:
		keyID = string(rune(code))
	}
	return keyID, keyType, true
}
