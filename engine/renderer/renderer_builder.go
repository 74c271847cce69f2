package renderer

// RendererBuilderOption is a functional option used to configure a Renderer
// at construction time.
type RendererBuilderOption func(*renderer)

// WithSize sets the initial render target size in pixels.
//
// Parameters:
//   - width: the render target width in pixels
//   - height: the render target height in pixels
//
// Returns:
//   - RendererBuilderOption: the option to apply
func WithSize(width, height int) RendererBuilderOption {
	return func(r *renderer) {
		if width > 0 {
			r.width = width
		}
		if height > 0 {
			r.height = height
		}
	}
}

// WithClearColor sets the color the render target is cleared to before each
// frame. Components are in the 0..1 range.
//
// Parameters:
//   - red: the red component
//   - green: the green component
//   - blue: the blue component
//   - alpha: the alpha component
//
// Returns:
//   - RendererBuilderOption: the option to apply
func WithClearColor(red, green, blue, alpha float32) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = [4]float32{red, green, blue, alpha}
	}
}
