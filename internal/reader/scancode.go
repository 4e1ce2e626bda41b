package reader

// Linux input event constants used by the card reader.
const (
	evKey    = 0x01
	keyEnter = 28
	keyDown  = 1
)

// scancodes maps key codes to what a keyboard-emulating reader types. Entries
// in keyNames are modifiers or editing keys and never part of a card id.
var scancodes = map[uint16]string{
	1: "ESC", 2: "1", 3: "2", 4: "3", 5: "4", 6: "5", 7: "6", 8: "7", 9: "8",
	10: "9", 11: "0", 12: "-", 13: "=", 14: "BKSP", 15: "TAB", 16: "Q", 17: "W", 18: "E", 19: "R",
	20: "T", 21: "Y", 22: "U", 23: "I", 24: "O", 25: "P", 26: "[", 27: "]", 28: "CRLF", 29: "LCTRL",
	30: "A", 31: "S", 32: "D", 33: "F", 34: "G", 35: "H", 36: "J", 37: "K", 38: "L", 39: ";",
	40: "\"", 41: "`", 42: "LSHFT", 43: "\\", 44: "Z", 45: "X", 46: "C", 47: "V", 48: "B", 49: "N",
	50: "M", 51: ",", 52: ".", 53: "/", 54: "RSHFT", 56: "LALT", 100: "RALT",
}

var keyNames = map[string]struct{}{
	"ESC": {}, "BKSP": {}, "TAB": {}, "CRLF": {}, "LCTRL": {},
	"LSHFT": {}, "RSHFT": {}, "LALT": {}, "RALT": {},
}

// keyChar returns the character for a key code, or false for unmapped and
// named keys.
func keyChar(code uint16) (string, bool) {
	char, ok := scancodes[code]
	if !ok {
		return "", false
	}
	if _, named := keyNames[char]; named {
		return "", false
	}
	return char, true
}
