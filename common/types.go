// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import "time"

// InputEventType identifies the kind of input event carried by an InputEvent.
type InputEventType string

const (
	// InputMouseMove reports a cursor position change in canvas pixel coordinates.
	InputMouseMove InputEventType = "mouse_move"

	// InputMouseDown reports a mouse button press.
	InputMouseDown InputEventType = "mouse_down"

	// InputMouseUp reports a mouse button release.
	InputMouseUp InputEventType = "mouse_up"

	// InputKeyDown reports a key press.
	InputKeyDown InputEventType = "key_down"

	// InputKeyUp reports a key release.
	InputKeyUp InputEventType = "key_up"

	// InputResize reports a client-requested canvas resize.
	InputResize InputEventType = "resize"
)

// InputEvent is one input message received from a streaming client. The JSON
// field names form the wire format of the stream server's input channel.
type InputEvent struct {
	// Type identifies the kind of event; the remaining fields are populated
	// depending on it.
	Type InputEventType `json:"type"`

	// X and Y carry the cursor position for mouse events and the requested
	// dimensions for resize events, in canvas pixels.
	X int `json:"x,omitempty"`
	Y int `json:"y,omitempty"`

	// Button is the mouse button index for mouse_down/mouse_up events
	// (0 = left, 1 = right, 2 = middle).
	Button int `json:"button,omitempty"`

	// KeyCode is the virtual key code for key_down/key_up events, matching
	// the Key* constants in this package.
	KeyCode uint32 `json:"key_code,omitempty"`
}

// Frame is one rendered canvas frame encoded for delivery to streaming
// clients.
type Frame struct {
	// Data is the encoded image payload.
	Data []byte

	// Width and Height are the frame dimensions in pixels.
	Width  int
	Height int

	// Index is the monotonically increasing frame number.
	Index int

	// RenderedAt records when the frame finished rendering, used by the
	// profiler to attribute encode latency.
	RenderedAt time.Time
}
