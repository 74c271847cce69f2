package window

import (
	"fmt"
	"runtime"
)

// Window provides platform windowing, an OpenGL context and input event
// handling. Wraps platform-specific window implementations with a common
// interface. A hidden window still owns a live GL context, which is how
// headless canvases render for streaming.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback for mouse scroll wheel events.
	//
	// Parameters:
	//   - callback: function receiving scroll delta (positive = up, negative = down)
	SetScrollCallback(callback func(delta float32))

	// SetKeyDownCallback sets the callback for key press events.
	//
	// Parameters:
	//   - callback: function receiving the virtual key code
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetKeyUpCallback sets the callback for key release events.
	//
	// Parameters:
	//   - callback: function receiving the virtual key code
	SetKeyUpCallback(callback func(keyCode uint32))

	// SetMouseDownCallback sets the callback for mouse button press.
	//
	// Parameters:
	//   - callback: function receiving the button index (0 = left, 1 = right,
	//     2 = middle) and the cursor x, y position
	SetMouseDownCallback(callback func(button int, x, y int32))

	// SetMouseUpCallback sets the callback for mouse button release.
	//
	// Parameters:
	//   - callback: function receiving the button index and cursor x, y position
	SetMouseUpCallback(callback func(button int, x, y int32))

	// SetMouseMoveCallback sets the callback for mouse movement.
	//
	// Parameters:
	//   - callback: function receiving mouse x, y position
	SetMouseMoveCallback(callback func(x, y int32))

	// MakeContextCurrent binds the window's OpenGL context to the calling
	// goroutine's OS thread. Must be called before any GL work, on the same
	// locked thread the window was created on.
	MakeContextCurrent()

	// SwapBuffers presents the back buffer. A no-op for hidden windows whose
	// output is read back rather than presented.
	SwapBuffers()

	// IsRunning returns true if the window is still active.
	//
	// Returns:
	//   - bool: true if window is running, false if closed
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if close operation fails
	Close() error

	// ProcessMessages runs the window message loop.
	// Blocks until the window is closed. Calls the update callback each iteration.
	ProcessMessages()

	// PollEvents processes pending window events without blocking, for callers
	// that drive their own frame loop instead of ProcessMessages.
	//
	// Returns:
	//   - bool: true if the window is still running after polling
	PollEvents() bool

	// Width returns the current framebuffer width in pixels.
	//
	// Returns:
	//   - int: width in pixels
	Width() int

	// Height returns the current framebuffer height in pixels.
	//
	// Returns:
	//   - int: height in pixels
	Height() int
}

// engineWindow is the implementation of the Window interface.
// Holds window configuration, GLFW state, and event callbacks.
type engineWindow struct {
	// title is the window title displayed in the title bar.
	title string

	// width is the current framebuffer width in pixels.
	width int

	// height is the current framebuffer height in pixels.
	height int

	// visible controls whether the window is shown. Hidden windows still own
	// a GL context and are used for off-screen streaming canvases.
	visible bool

	// glMajor and glMinor are the OpenGL core profile version requested for
	// the context.
	glMajor int
	glMinor int

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	// onUpdate is called each iteration of the message loop (if set).
	onUpdate func()

	// onResize is called when the framebuffer is resized.
	onResize func(width, height int)

	// onScroll is called for mouse wheel events.
	onScroll func(delta float32)

	// onKeyDown is called when a key is pressed.
	onKeyDown func(keyCode uint32)

	// onKeyUp is called when a key is released.
	onKeyUp func(keyCode uint32)

	// onMouseDown is called when a mouse button is pressed.
	onMouseDown func(button int, x, y int32)

	// onMouseUp is called when a mouse button is released.
	onMouseUp func(button int, x, y int32)

	// onMouseMove is called when the mouse moves within the window.
	onMouseMove func(x, y int32)
}

var _ Window = &engineWindow{}

// NewWindow creates a new Window with the specified options.
// Applies default values first, then each option in order.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the configured window with a live OpenGL context
func NewWindow(options ...WindowBuilderOption) Window {
	w := &engineWindow{
		title:   "SSV Canvas",
		width:   1280,
		height:  720,
		visible: true,
		glMajor: 4,
		glMinor: 2,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		panic(fmt.Sprintf("failed to create platform window: %v", err))
	}
	return w
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetKeyUpCallback(callback func(keyCode uint32)) {
	w.onKeyUp = callback
}

func (w *engineWindow) SetMouseDownCallback(callback func(button int, x, y int32)) {
	w.onMouseDown = callback
}

func (w *engineWindow) SetMouseUpCallback(callback func(button int, x, y int32)) {
	w.onMouseUp = callback
}

func (w *engineWindow) SetMouseMoveCallback(callback func(x, y int32)) {
	w.onMouseMove = callback
}

func (w *engineWindow) MakeContextCurrent() {
	platformMakeContextCurrent(w)
}

func (w *engineWindow) SwapBuffers() {
	platformSwapBuffers(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if succ := platformProcessMessages(w); !succ {
			break
		}

		if w.onUpdate != nil {
			w.onUpdate()
		}

		runtime.Gosched()
	}
}

func (w *engineWindow) PollEvents() bool {
	return platformProcessMessages(w)
}

func (w *engineWindow) Width() int {
	return w.width
}

func (w *engineWindow) Height() int {
	return w.height
}
