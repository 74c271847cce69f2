package canvas

import (
	"github.com/Carmen-Shannon/ssv-go/common"
	"github.com/Carmen-Shannon/ssv-go/engine/renderer"
	"github.com/Carmen-Shannon/ssv-go/engine/shader"
	"github.com/Carmen-Shannon/ssv-go/engine/stream"
)

// CanvasBuilderOption is a functional option used to configure a Canvas at
// construction time.
type CanvasBuilderOption func(*canvas)

// WithTitle sets the canvas title, used for the hidden context window.
//
// Parameters:
//   - title: the title string
//
// Returns:
//   - CanvasBuilderOption: the option to apply
func WithTitle(title string) CanvasBuilderOption {
	return func(c *canvas) {
		c.title = common.Coalesce(title, c.title)
	}
}

// WithSize sets the canvas resolution in pixels. Zero values keep the
// defaults.
//
// Parameters:
//   - width: the canvas width in pixels
//   - height: the canvas height in pixels
//
// Returns:
//   - CanvasBuilderOption: the option to apply
func WithSize(width, height int) CanvasBuilderOption {
	return func(c *canvas) {
		c.width = common.Coalesce(width, c.width)
		c.height = common.Coalesce(height, c.height)
	}
}

// WithTargetFPS sets the frame rate the render loop aims for.
//
// Parameters:
//   - fps: target frames per second (defaults to 60 if <= 0)
//
// Returns:
//   - CanvasBuilderOption: the option to apply
func WithTargetFPS(fps float64) CanvasBuilderOption {
	return func(c *canvas) {
		if fps > 0 {
			c.targetFPS = fps
		}
	}
}

// WithJPEGQuality sets the quality of the streamed JPEG frames, 1 to 100.
//
// Parameters:
//   - quality: the JPEG quality to encode frames at
//
// Returns:
//   - CanvasBuilderOption: the option to apply
func WithJPEGQuality(quality int) CanvasBuilderOption {
	return func(c *canvas) {
		if quality >= 1 && quality <= 100 {
			c.jpegQuality = quality
		}
	}
}

// WithEncodeWorkers sets the number of goroutines encoding frames. Defaults
// to half the CPU count.
//
// Parameters:
//   - workers: the encode worker count
//
// Returns:
//   - CanvasBuilderOption: the option to apply
func WithEncodeWorkers(workers int) CanvasBuilderOption {
	return func(c *canvas) {
		if workers > 0 {
			c.encodeWorkers = workers
		}
	}
}

// WithPreProcessor sets the shader preprocessor the canvas compiles with,
// allowing preconfigured registries, GL versions, or dynamic uniforms.
//
// Parameters:
//   - pp: the preprocessor to use
//
// Returns:
//   - CanvasBuilderOption: the option to apply
func WithPreProcessor(pp shader.PreProcessor) CanvasBuilderOption {
	return func(c *canvas) {
		if pp != nil {
			c.pp = pp
		}
	}
}

// WithStreamServer sets the stream server frames are broadcast through,
// allowing custom listen addresses or endpoint paths.
//
// Parameters:
//   - server: the stream server to use
//
// Returns:
//   - CanvasBuilderOption: the option to apply
func WithStreamServer(server stream.Server) CanvasBuilderOption {
	return func(c *canvas) {
		if server != nil {
			c.server = server
		}
	}
}

// WithRenderer sets the renderer the canvas draws with. When omitted an
// OpenGL renderer matching the canvas size is created during Run.
//
// Parameters:
//   - r: the renderer to use
//
// Returns:
//   - CanvasBuilderOption: the option to apply
func WithRenderer(r renderer.Renderer) CanvasBuilderOption {
	return func(c *canvas) {
		if r != nil {
			c.r = r
		}
	}
}
