package renderer

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.2-core/gl"

	"github.com/Carmen-Shannon/ssv-go/engine/shader"
)

// openGLBackend renders into an off-screen framebuffer object and reads
// frames back over the bus. It assumes a 4.2 core context is current on the
// calling OS thread for every method.
type openGLBackend struct {
	clearColor [4]float32

	width  int
	height int

	framebuffer  uint32
	colorTexture uint32
	depthBuffer  uint32

	program          uint32
	vao              uint32
	vbo              uint32
	vertexCount      int32
	drawMode         uint32
	uniformLocations map[string]int32

	readback []byte
	flipped  []byte
}

var _ openGLRendererBackend = &openGLBackend{}

// stageShaderTypes maps pipeline stages to their GL shader object types.
// The compute stage is absent: GL compute shaders need a 4.3 context.
var stageShaderTypes = map[shader.Stage]uint32{
	shader.StageVertex:         gl.VERTEX_SHADER,
	shader.StageFragment:       gl.FRAGMENT_SHADER,
	shader.StageGeometry:       gl.GEOMETRY_SHADER,
	shader.StageTessControl:    gl.TESS_CONTROL_SHADER,
	shader.StageTessEvaluation: gl.TESS_EVALUATION_SHADER,
}

// primitiveDrawModes maps template input primitives to GL draw modes.
var primitiveDrawModes = map[shader.InputPrimitive]uint32{
	shader.PrimitiveTriangles:     gl.TRIANGLES,
	shader.PrimitivePoints:        gl.POINTS,
	shader.PrimitiveLines:         gl.LINES,
	shader.PrimitiveLineLoop:      gl.LINE_LOOP,
	shader.PrimitiveLineStrip:     gl.LINE_STRIP,
	shader.PrimitiveTriangleStrip: gl.TRIANGLE_STRIP,
	shader.PrimitiveTriangleFan:   gl.TRIANGLE_FAN,
}

func newOpenGLRendererBackend(clearColor [4]float32) *openGLBackend {
	return &openGLBackend{
		clearColor:       clearColor,
		uniformLocations: make(map[string]int32),
	}
}

func (b *openGLBackend) init(width, height int) error {
	if err := gl.Init(); err != nil {
		return fmt.Errorf("couldn't load OpenGL function pointers: %w", err)
	}
	b.createTarget(width, height)
	gl.Enable(gl.PROGRAM_POINT_SIZE)
	return nil
}

func (b *openGLBackend) resize(width, height int) {
	if width == b.width && height == b.height {
		return
	}
	b.destroyTarget()
	b.createTarget(width, height)
}

// createTarget builds the FBO, its RGBA8 color attachment and a depth
// renderbuffer at the given size, and sizes the readback buffers.
func (b *openGLBackend) createTarget(width, height int) {
	b.width = width
	b.height = height

	gl.GenTextures(1, &b.colorTexture)
	gl.BindTexture(gl.TEXTURE_2D, b.colorTexture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	gl.GenRenderbuffers(1, &b.depthBuffer)
	gl.BindRenderbuffer(gl.RENDERBUFFER, b.depthBuffer)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT24, int32(width), int32(height))
	gl.BindRenderbuffer(gl.RENDERBUFFER, 0)

	gl.GenFramebuffers(1, &b.framebuffer)
	gl.BindFramebuffer(gl.FRAMEBUFFER, b.framebuffer)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, b.colorTexture, 0)
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, b.depthBuffer)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	b.readback = make([]byte, width*height*4)
	b.flipped = make([]byte, width*height*4)
}

func (b *openGLBackend) destroyTarget() {
	if b.framebuffer != 0 {
		gl.DeleteFramebuffers(1, &b.framebuffer)
		b.framebuffer = 0
	}
	if b.colorTexture != 0 {
		gl.DeleteTextures(1, &b.colorTexture)
		b.colorTexture = 0
	}
	if b.depthBuffer != 0 {
		gl.DeleteRenderbuffers(1, &b.depthBuffer)
		b.depthBuffer = 0
	}
}

func (b *openGLBackend) compileProgram(stages map[shader.Stage]string) error {
	program := gl.CreateProgram()
	var compiled []uint32
	cleanup := func() {
		for _, s := range compiled {
			gl.DeleteShader(s)
		}
		gl.DeleteProgram(program)
	}

	for stage, source := range stages {
		shaderType, ok := stageShaderTypes[stage]
		if !ok {
			cleanup()
			return fmt.Errorf("the %s stage is not supported on an OpenGL 4.2 context", stage)
		}
		s, err := compileShaderStage(shaderType, source)
		if err != nil {
			cleanup()
			return fmt.Errorf("%s stage: %w", stage, err)
		}
		gl.AttachShader(program, s)
		compiled = append(compiled, s)
	}

	gl.LinkProgram(program)
	for _, s := range compiled {
		gl.DetachShader(program, s)
		gl.DeleteShader(s)
	}

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		infoLog := programInfoLog(program)
		gl.DeleteProgram(program)
		return fmt.Errorf("couldn't link shader program: %s", infoLog)
	}

	if b.program != 0 {
		gl.DeleteProgram(b.program)
	}
	b.program = program
	b.uniformLocations = make(map[string]int32)
	return nil
}

// compileShaderStage compiles one GLSL translation unit, surfacing the
// driver's info log on failure so template authors see real line numbers.
func compileShaderStage(shaderType uint32, source string) (uint32, error) {
	s := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(s, 1, csources, nil)
	free()
	gl.CompileShader(s)

	var status int32
	gl.GetShaderiv(s, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(s, gl.INFO_LOG_LENGTH, &logLength)
		infoLog := strings.Repeat("\x00", int(logLength)+1)
		gl.GetShaderInfoLog(s, logLength, nil, gl.Str(infoLog))
		gl.DeleteShader(s)
		return 0, fmt.Errorf("couldn't compile shader: %s", strings.TrimRight(infoLog, "\x00"))
	}
	return s, nil
}

func programInfoLog(program uint32) string {
	var logLength int32
	gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
	infoLog := strings.Repeat("\x00", int(logLength)+1)
	gl.GetProgramInfoLog(program, logLength, nil, gl.Str(infoLog))
	return strings.TrimRight(infoLog, "\x00")
}

func (b *openGLBackend) setGeometry(attrs []shader.VertexAttribute, data []float32, vertexCount int, primitive shader.InputPrimitive) error {
	mode, ok := primitiveDrawModes[primitive]
	if !ok {
		return fmt.Errorf("the %s input primitive is not supported by the OpenGL backend", primitive)
	}

	stride := 0
	for _, a := range attrs {
		stride += attributeComponents(a.Type)
	}
	if stride > 0 && len(data) != stride*vertexCount {
		return fmt.Errorf("vertex data has %d floats but %d vertices with a stride of %d floats need %d", len(data), vertexCount, stride, stride*vertexCount)
	}

	if b.vao == 0 {
		gl.GenVertexArrays(1, &b.vao)
		gl.GenBuffers(1, &b.vbo)
	}
	gl.BindVertexArray(b.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	if len(data) > 0 {
		gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), gl.DYNAMIC_DRAW)
	}

	offset := 0
	for _, a := range attrs {
		n := attributeComponents(a.Type)
		gl.EnableVertexAttribArray(uint32(a.Location))
		gl.VertexAttribPointerWithOffset(uint32(a.Location), int32(n), gl.FLOAT, false, int32(stride*4), uintptr(offset*4))
		offset += n
	}
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	b.vertexCount = int32(vertexCount)
	b.drawMode = mode
	return nil
}

func (b *openGLBackend) applyUniforms(uniforms map[string]uniformValue) {
	if b.program == 0 || len(uniforms) == 0 {
		return
	}
	gl.UseProgram(b.program)
	for name, value := range uniforms {
		loc, ok := b.uniformLocations[name]
		if !ok {
			loc = gl.GetUniformLocation(b.program, gl.Str(name+"\x00"))
			b.uniformLocations[name] = loc
		}
		if loc < 0 {
			continue
		}
		switch {
		case value.integer:
			gl.Uniform1i(loc, value.ints[0])
		case value.components == 4:
			gl.Uniform4f(loc, value.floats[0], value.floats[1], value.floats[2], value.floats[3])
		case value.components == 2:
			gl.Uniform2f(loc, value.floats[0], value.floats[1])
		default:
			gl.Uniform1f(loc, value.floats[0])
		}
	}
}

func (b *openGLBackend) renderFrame() ([]byte, error) {
	if b.program == 0 {
		return nil, fmt.Errorf("no shader program is linked")
	}

	gl.BindFramebuffer(gl.FRAMEBUFFER, b.framebuffer)
	gl.Viewport(0, 0, int32(b.width), int32(b.height))
	gl.ClearColor(b.clearColor[0], b.clearColor[1], b.clearColor[2], b.clearColor[3])
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	gl.UseProgram(b.program)
	gl.BindVertexArray(b.vao)
	if b.vertexCount > 0 {
		gl.DrawArrays(b.drawMode, 0, b.vertexCount)
	}
	gl.BindVertexArray(0)

	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(b.width), int32(b.height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(b.readback))
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)

	// GL frames are bottom-up, encoders want top-down.
	rowSize := b.width * 4
	for y := 0; y < b.height; y++ {
		src := b.readback[y*rowSize : (y+1)*rowSize]
		dst := b.flipped[(b.height-1-y)*rowSize : (b.height-y)*rowSize]
		copy(dst, src)
	}

	out := make([]byte, len(b.flipped))
	copy(out, b.flipped)
	return out, nil
}

func (b *openGLBackend) destroy() {
	if b.program != 0 {
		gl.DeleteProgram(b.program)
		b.program = 0
	}
	if b.vbo != 0 {
		gl.DeleteBuffers(1, &b.vbo)
		b.vbo = 0
	}
	if b.vao != 0 {
		gl.DeleteVertexArrays(1, &b.vao)
		b.vao = 0
	}
	b.destroyTarget()
}
