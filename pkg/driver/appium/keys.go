package appium

import (
	"fmt"
	"strconv"
	"strings"
)

// Android KeyEvent codes used by scenarios.
const (
	KeyCodeHome       = 3
	KeyCodeBack       = 4
	KeyCodeVolumeUp   = 24
	KeyCodeVolumeDown = 25
	KeyCodePower      = 26
	KeyCodeTab        = 61
	KeyCodeSpace      = 62
	KeyCodeEnter      = 66
	KeyCodeBackspace  = 67
	KeyCodeMenu       = 82
	KeyCodeSearch     = 84
	KeyCodeDelete     = 112
)

var keyNames = map[string]int{
	"home":        KeyCodeHome,
	"back":        KeyCodeBack,
	"volume_up":   KeyCodeVolumeUp,
	"volume_down": KeyCodeVolumeDown,
	"power":       KeyCodePower,
	"tab":         KeyCodeTab,
	"space":       KeyCodeSpace,
	"enter":       KeyCodeEnter,
	"backspace":   KeyCodeBackspace,
	"menu":        KeyCodeMenu,
	"search":      KeyCodeSearch,
	"delete":      KeyCodeDelete,
}

// ParseKeyCode accepts a key name (case-insensitive, "volume up" and
// "volume_up" both work) or a numeric keycode.
func ParseKeyCode(key string) (int, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.ReplaceAll(k, " ", "_")
	if code, ok := keyNames[k]; ok {
		return code, nil
	}
	if code, err := strconv.Atoi(k); err == nil && code >= 0 {
		return code, nil
	}
	return 0, fmt.Errorf("unknown key: %s", key)
}
