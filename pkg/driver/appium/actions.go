package appium

import (
	"time"
)

// PointerKind is the W3C pointerType parameter.
type PointerKind string

const (
	PointerTouch PointerKind = "touch"
	PointerMouse PointerKind = "mouse"
	PointerPen   PointerKind = "pen"
)

// OriginViewport makes pointerMove coordinates absolute screen positions.
const OriginViewport = "viewport"

// DefaultMoveDuration matches the client-library default for pointer moves.
const DefaultMoveDuration = 250 * time.Millisecond

// Action is one tick of an input source, serialized verbatim.
type Action map[string]interface{}

// Sequence is one W3C input source with its list of actions.
type Sequence struct {
	Type       string                 `json:"type"` // pointer, key, none
	ID         string                 `json:"id"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Actions    []Action               `json:"actions"`
}

// NewPointerSequence starts a pointer input source.
func NewPointerSequence(id string, kind PointerKind) *Sequence {
	return &Sequence{
		Type:       "pointer",
		ID:         id,
		Parameters: map[string]interface{}{"pointerType": string(kind)},
		Actions:    []Action{},
	}
}

// NewKeySequence starts a key input source.
func NewKeySequence(id string) *Sequence {
	return &Sequence{Type: "key", ID: id, Actions: []Action{}}
}

// MoveTo moves the pointer to viewport coordinates over d.
func (s *Sequence) MoveTo(x, y int, d time.Duration) *Sequence {
	s.Actions = append(s.Actions, Action{
		"type":     "pointerMove",
		"duration": d.Milliseconds(),
		"x":        x,
		"y":        y,
		"origin":   OriginViewport,
	})
	return s
}

// Down presses the primary button (finger contact for touch).
func (s *Sequence) Down() *Sequence {
	s.Actions = append(s.Actions, Action{"type": "pointerDown", "button": 0})
	return s
}

// Up releases the primary button.
func (s *Sequence) Up() *Sequence {
	s.Actions = append(s.Actions, Action{"type": "pointerUp", "button": 0})
	return s
}

// Pause idles this source for d.
func (s *Sequence) Pause(d time.Duration) *Sequence {
	s.Actions = append(s.Actions, Action{"type": "pause", "duration": d.Milliseconds()})
	return s
}

// KeyDown presses a key.
func (s *Sequence) KeyDown(r rune) *Sequence {
	s.Actions = append(s.Actions, Action{"type": "keyDown", "value": string(r)})
	return s
}

// KeyUp releases a key.
func (s *Sequence) KeyUp(r rune) *Sequence {
	s.Actions = append(s.Actions, Action{"type": "keyUp", "value": string(r)})
	return s
}

// TypeText presses and releases every rune of text in order.
func (s *Sequence) TypeText(text string) *Sequence {
	for _, r := range text {
		s.KeyDown(r).KeyUp(r)
	}
	return s
}

// SwipeGesture is a single press-drag-release: move to start at the
// default move duration, press, move to end over d, release.
func SwipeGesture(startX, startY, endX, endY int, d time.Duration) *Sequence {
	return NewPointerSequence("finger1", PointerTouch).
		MoveTo(startX, startY, DefaultMoveDuration).
		Down().
		MoveTo(endX, endY, d).
		Up()
}

// TapGesture is a press and release at one point.
func TapGesture(x, y int) *Sequence {
	return NewPointerSequence("finger1", PointerTouch).
		MoveTo(x, y, 0).
		Down().
		Pause(50 * time.Millisecond).
		Up()
}
