package renderer

import "github.com/Carmen-Shannon/ssv-go/engine/shader"

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeOpenGL selects the OpenGL-based rendering backend. It is the
	// only backend; GLSL is what the shader pre-processor produces.
	BackendTypeOpenGL RendererBackendType = iota
)

// RendererBackend is the top-level backend interface for the Renderer.
// It embeds the concrete backend interface for the selected GPU API.
type RendererBackend interface {
	openGLRendererBackend
}

// openGLRendererBackend is the OpenGL-specific backend contract. All methods
// must be called on the OS thread that owns the GL context.
type openGLRendererBackend interface {
	// init loads the GL function pointers and creates the off-screen render
	// target at the given size.
	init(width, height int) error

	// resize recreates the off-screen render target at a new size.
	resize(width, height int)

	// compileProgram compiles and links one GLSL source per pipeline stage
	// into the active program, replacing any previous program.
	compileProgram(stages map[shader.Stage]string) error

	// setGeometry uploads interleaved float32 vertex data laid out according
	// to the given attribute schema, drawn with the given primitive topology.
	setGeometry(attrs []shader.VertexAttribute, data []float32, vertexCount int, primitive shader.InputPrimitive) error

	// applyUniforms writes pending uniform values into the active program.
	applyUniforms(uniforms map[string]uniformValue)

	// renderFrame draws the current geometry into the off-screen target and
	// reads the result back as tightly packed RGBA bytes, top row first.
	renderFrame() ([]byte, error)

	// destroy releases all GL objects owned by the backend.
	destroy()
}
