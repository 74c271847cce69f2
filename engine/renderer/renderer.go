package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/ssv-go/engine/shader"
)

// uniformValue is one pending uniform write, tagged by component count:
// 1 = float, 2 = vec2, 4 = vec4. integer distinguishes int/bool uniforms.
type uniformValue struct {
	components int
	integer    bool
	floats     [4]float32
	ints       [4]int32
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend

	width  int
	height int

	// current holds the preprocessed shader the renderer is drawing with,
	// nil until SetShader succeeds.
	current *shader.Result

	// uniforms collects pending uniform writes, flushed on the next frame.
	uniforms map[string]uniformValue

	clearColor [4]float32
}

// Renderer defines the interface for the rendering system.
//
// This is a high-level API designed to simplify rendering preprocessed SSV
// shaders into a streamed and idiomatic flow. The Renderer compiles the
// per-stage GLSL produced by the shader pre-processor, manages the off-screen
// render target, and reads frames back for encoding. The Renderer also
// implements a backend which allows for multiple backend API implementations
// to exist.
//
// All methods except the uniform setters must be called on the OS thread that
// owns the GL context.
type Renderer interface {
	// Init loads the graphics API and creates the off-screen render target.
	// Must be called once, after the window's context is made current.
	//
	// Returns:
	//   - error: an error if the graphics API could not be initialized
	Init() error

	// Resize recreates the render target at a new size.
	//
	// Parameters:
	//   - width: the new width of the render target in pixels
	//   - height: the new height of the render target in pixels
	Resize(width, height int)

	// SetShader compiles and links a preprocessed shader, replacing the
	// active program. Default full-screen geometry is generated from the
	// shader's reflected vertex attributes unless SetGeometry supplied
	// explicit vertex data.
	//
	// Parameters:
	//   - result: the preprocessed shader to render with
	//
	// Returns:
	//   - error: a compile or link error, including the driver's info log
	SetShader(result *shader.Result) error

	// SetGeometry uploads explicit interleaved vertex data for shaders whose
	// input is not a full-screen quad (e.g. point cloud templates).
	//
	// Parameters:
	//   - data: interleaved float32 vertex data matching the shader's
	//     reflected attribute layout
	//   - vertexCount: the number of vertices in data
	//
	// Returns:
	//   - error: an error if no shader is active or the data does not match
	//     the attribute layout
	SetGeometry(data []float32, vertexCount int) error

	// SetUniformFloat stages a float uniform write, applied on the next frame.
	//
	// Parameters:
	//   - name: the uniform name
	//   - value: the value to write
	SetUniformFloat(name string, value float32)

	// SetUniformInt stages an int (or bool) uniform write, applied on the
	// next frame.
	//
	// Parameters:
	//   - name: the uniform name
	//   - value: the value to write
	SetUniformInt(name string, value int32)

	// SetUniformVec4 stages a vec4 uniform write, applied on the next frame.
	//
	// Parameters:
	//   - name: the uniform name
	//   - x, y, z, w: the component values to write
	SetUniformVec4(name string, x, y, z, w float32)

	// RenderFrame draws one frame into the off-screen target and reads it
	// back as tightly packed RGBA bytes, top row first.
	//
	// Returns:
	//   - []byte: the frame pixels, 4 bytes per pixel, row-major
	//   - error: an error if no shader is active or the draw fails
	RenderFrame() ([]byte, error)

	// Shader returns the preprocessed shader the renderer is drawing with,
	// or nil before the first SetShader.
	//
	// Returns:
	//   - *shader.Result: the active shader
	Shader() *shader.Result

	// Width returns the render target width in pixels.
	//
	// Returns:
	//   - int: width in pixels
	Width() int

	// Height returns the render target height in pixels.
	//
	// Returns:
	//   - int: height in pixels
	Height() int

	// Close releases all graphics resources owned by the renderer.
	//
	// Returns:
	//   - error: always nil, kept for interface symmetry with other closers
	Close() error
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer for the given backend type and render
// target size. Init must be called before the first frame.
//
// Parameters:
//   - backendType: the backend implementation to use
//   - options: functional options to further configure the renderer
//
// Returns:
//   - Renderer: the configured renderer (not yet initialized)
func NewRenderer(backendType RendererBackendType, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:          &sync.Mutex{},
		backendType: backendType,
		width:       1280,
		height:      720,
		uniforms:    make(map[string]uniformValue),
		clearColor:  [4]float32{0, 0, 0, 1},
	}
	for _, opt := range options {
		opt(r)
	}
	switch backendType {
	case BackendTypeOpenGL:
		r.backend = newOpenGLRendererBackend(r.clearColor)
	}
	return r
}

func (r *renderer) Init() error {
	if r.backend == nil {
		return fmt.Errorf("renderer has no backend for backend type %d", r.backendType)
	}
	return r.backend.init(r.width, r.height)
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	r.width = width
	r.height = height
	r.mu.Unlock()
	r.backend.resize(width, height)
}

func (r *renderer) SetShader(result *shader.Result) error {
	if err := r.backend.compileProgram(result.Stages); err != nil {
		return fmt.Errorf("couldn't build shader program for template %q: %w", result.Template, err)
	}
	r.mu.Lock()
	r.current = result
	r.mu.Unlock()

	// Full-screen default geometry; point and line templates supply their
	// own vertex data through SetGeometry afterwards.
	data, count := defaultQuadVertices(result.Attributes)
	return r.backend.setGeometry(result.Attributes, data, count, result.InputPrimitive)
}

func (r *renderer) SetGeometry(data []float32, vertexCount int) error {
	r.mu.Lock()
	current := r.current
	r.mu.Unlock()
	if current == nil {
		return fmt.Errorf("no shader is active, call SetShader first")
	}
	return r.backend.setGeometry(current.Attributes, data, vertexCount, current.InputPrimitive)
}

func (r *renderer) SetUniformFloat(name string, value float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uniforms[name] = uniformValue{components: 1, floats: [4]float32{value}}
}

func (r *renderer) SetUniformInt(name string, value int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uniforms[name] = uniformValue{components: 1, integer: true, ints: [4]int32{value}}
}

func (r *renderer) SetUniformVec4(name string, x, y, z, w float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uniforms[name] = uniformValue{components: 4, floats: [4]float32{x, y, z, w}}
}

func (r *renderer) RenderFrame() ([]byte, error) {
	r.mu.Lock()
	if r.current == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("no shader is active, call SetShader first")
	}
	pending := r.uniforms
	r.uniforms = make(map[string]uniformValue, len(pending))
	r.mu.Unlock()

	r.backend.applyUniforms(pending)
	return r.backend.renderFrame()
}

func (r *renderer) Shader() *shader.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *renderer) Width() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width
}

func (r *renderer) Height() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.height
}

func (r *renderer) Close() error {
	r.backend.destroy()
	return nil
}

// attributeComponents returns the float component count of a GLSL attribute
// type, defaulting to 4 for unrecognized types.
func attributeComponents(glslType string) int {
	switch glslType {
	case "float":
		return 1
	case "vec2":
		return 2
	case "vec3":
		return 3
	default:
		return 4
	}
}

// defaultQuadVertices builds interleaved vertex data for a full-screen quad
// (two counter-clockwise triangles in clip space) laid out to match the
// shader's reflected attribute schema. The first two-component attribute
// receives the corner positions; four-component attributes receive opaque
// white; everything else is zeroed.
func defaultQuadVertices(attrs []shader.VertexAttribute) ([]float32, int) {
	corners := [6][2]float32{
		{-1, -1}, {1, -1}, {1, 1},
		{-1, -1}, {1, 1}, {-1, 1},
	}
	if len(attrs) == 0 {
		return nil, 0
	}

	positionIdx := -1
	stride := 0
	for i, a := range attrs {
		if positionIdx < 0 && attributeComponents(a.Type) == 2 {
			positionIdx = i
		}
		stride += attributeComponents(a.Type)
	}

	data := make([]float32, 0, stride*len(corners))
	for _, corner := range corners {
		for i, a := range attrs {
			n := attributeComponents(a.Type)
			switch {
			case i == positionIdx:
				data = append(data, corner[0], corner[1])
			case n == 4:
				data = append(data, 1, 1, 1, 1)
			default:
				for j := 0; j < n; j++ {
					data = append(data, 0)
				}
			}
		}
	}
	return data, len(corners)
}
