package window

// WindowBuilderOption is a functional option for configuring an engineWindow.
// Use the With* functions to create options.
type WindowBuilderOption func(w *engineWindow)

// WithTitle sets the window title displayed in the title bar.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(w *engineWindow) {
		w.title = title
	}
}

// WithWidth sets the initial window width.
//
// Parameters:
//   - width: initial width in pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithWidth(width int) WindowBuilderOption {
	return func(w *engineWindow) {
		w.width = width
	}
}

// WithHeight sets the initial window height.
//
// Parameters:
//   - height: initial height in pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithHeight(height int) WindowBuilderOption {
	return func(w *engineWindow) {
		w.height = height
	}
}

// WithVisible controls whether the window is shown on screen. A hidden window
// still provides a live OpenGL context, which is what streaming canvases use
// to render off-screen.
//
// Parameters:
//   - visible: false to create the window hidden
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithVisible(visible bool) WindowBuilderOption {
	return func(w *engineWindow) {
		w.visible = visible
	}
}

// WithGLVersion sets the OpenGL core profile version requested for the
// window's context. Defaults to 4.2, matching the GLSL version the shader
// pre-processor emits by default.
//
// Parameters:
//   - major: the major context version
//   - minor: the minor context version
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithGLVersion(major, minor int) WindowBuilderOption {
	return func(w *engineWindow) {
		w.glMajor = major
		w.glMinor = minor
	}
}
