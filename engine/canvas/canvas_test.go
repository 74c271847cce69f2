package canvas

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/ssv-go/common"
	"github.com/Carmen-Shannon/ssv-go/engine/renderer"
	"github.com/Carmen-Shannon/ssv-go/engine/shader"
)

// fakeRenderer records uniform writes and resizes so canvas input handling
// can be tested without a GL context.
type fakeRenderer struct {
	floats  map[string]float32
	ints    map[string]int32
	vec4s   map[string][4]float32
	width   int
	height  int
	resized [][2]int
}

var _ renderer.Renderer = &fakeRenderer{}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		floats: make(map[string]float32),
		ints:   make(map[string]int32),
		vec4s:  make(map[string][4]float32),
		width:  320,
		height: 240,
	}
}

func (f *fakeRenderer) Init() error { return nil }
func (f *fakeRenderer) Resize(width, height int) {
	f.width, f.height = width, height
	f.resized = append(f.resized, [2]int{width, height})
}
func (f *fakeRenderer) SetShader(result *shader.Result) error        { return nil }
func (f *fakeRenderer) SetGeometry(data []float32, count int) error  { return nil }
func (f *fakeRenderer) SetUniformFloat(name string, value float32)   { f.floats[name] = value }
func (f *fakeRenderer) SetUniformInt(name string, value int32)       { f.ints[name] = value }
func (f *fakeRenderer) SetUniformVec4(name string, x, y, z, w float32) {
	f.vec4s[name] = [4]float32{x, y, z, w}
}
func (f *fakeRenderer) RenderFrame() ([]byte, error) { return make([]byte, f.width*f.height*4), nil }
func (f *fakeRenderer) Shader() *shader.Result       { return nil }
func (f *fakeRenderer) Width() int                   { return f.width }
func (f *fakeRenderer) Height() int                  { return f.height }
func (f *fakeRenderer) Close() error                 { return nil }

func TestBuilderOptions(t *testing.T) {
	fake := newFakeRenderer()
	c := NewCanvas(
		WithTitle("test"),
		WithSize(640, 360),
		WithTargetFPS(30),
		WithJPEGQuality(50),
		WithEncodeWorkers(2),
		WithRenderer(fake),
	).(*canvas)

	assert.Equal(t, "test", c.title)
	assert.Equal(t, 640, c.width)
	assert.Equal(t, 360, c.height)
	assert.Equal(t, 30.0, c.targetFPS)
	assert.Equal(t, 50, c.jpegQuality)
	assert.Equal(t, 2, c.encodeWorkers)
	assert.NotNil(t, c.pp)
	assert.NotNil(t, c.server)
}

func TestBuilderOptionsKeepDefaultsOnZeroValues(t *testing.T) {
	c := NewCanvas(
		WithTitle(""),
		WithSize(0, 0),
		WithTargetFPS(0),
		WithJPEGQuality(0),
		WithEncodeWorkers(0),
	).(*canvas)

	assert.Equal(t, "ssv", c.title)
	assert.Equal(t, 1280, c.width)
	assert.Equal(t, 720, c.height)
	assert.Equal(t, 60.0, c.targetFPS)
	assert.Equal(t, 80, c.jpegQuality)
	assert.GreaterOrEqual(t, c.encodeWorkers, 1)
}

func TestRunRequiresShaderSource(t *testing.T) {
	c := NewCanvas(WithRenderer(newFakeRenderer()))
	err := c.Run(context.Background())
	assert.ErrorContains(t, err, "no shader source set")
}

func TestRunRejectsBadShaderSource(t *testing.T) {
	c := NewCanvas(WithRenderer(newFakeRenderer()))
	c.SetShaderSource("void main() {}\n")
	err := c.Run(context.Background())
	assert.ErrorIs(t, err, shader.ErrMalformedDirective)
}

func TestUniformWritesReachInjectedRenderer(t *testing.T) {
	fake := newFakeRenderer()
	c := NewCanvas(WithRenderer(fake))

	c.SetUniformFloat("uGlow", 0.5)
	c.SetUniformInt("uMode", 2)
	c.SetUniformVec4("uTint", 1, 0, 0, 1)

	assert.Equal(t, float32(0.5), fake.floats["uGlow"])
	assert.Equal(t, int32(2), fake.ints["uMode"])
	assert.Equal(t, [4]float32{1, 0, 0, 1}, fake.vec4s["uTint"])
}

func TestUniformWritesStageUntilRendererExists(t *testing.T) {
	c := NewCanvas().(*canvas)

	c.SetUniformFloat("uGlow", 0.5)
	c.SetUniformVec4("uTint", 0, 1, 0, 1)
	require.Len(t, c.stagedUniforms, 2)

	fake := newFakeRenderer()
	c.mu.Lock()
	c.r = fake
	staged := c.stagedUniforms
	c.stagedUniforms = nil
	c.mu.Unlock()
	for _, write := range staged {
		write(fake)
	}

	assert.Equal(t, float32(0.5), fake.floats["uGlow"])
	assert.Equal(t, [4]float32{0, 1, 0, 1}, fake.vec4s["uTint"])
}

func TestApplyInputDrivesMouseUniforms(t *testing.T) {
	fake := newFakeRenderer()
	c := NewCanvas(WithRenderer(fake)).(*canvas)

	c.applyInput(common.InputEvent{Type: common.InputMouseMove, X: 100, Y: 50})
	assert.Equal(t, [4]float32{100, 50, 0, 0}, fake.vec4s["uMouse"])
	assert.Equal(t, int32(0), fake.ints["uMouseDown"])

	c.applyInput(common.InputEvent{Type: common.InputMouseDown, X: 100, Y: 50, Button: 0})
	assert.Equal(t, [4]float32{100, 50, 100, 50}, fake.vec4s["uMouse"])
	assert.Equal(t, int32(1), fake.ints["uMouseDown"])

	c.applyInput(common.InputEvent{Type: common.InputMouseMove, X: 120, Y: 60})
	assert.Equal(t, [4]float32{120, 60, 100, 50}, fake.vec4s["uMouse"])

	c.applyInput(common.InputEvent{Type: common.InputMouseUp, X: 120, Y: 60, Button: 0})
	assert.Equal(t, int32(0), fake.ints["uMouseDown"])
}

func TestApplyInputResizesRenderer(t *testing.T) {
	fake := newFakeRenderer()
	c := NewCanvas(WithRenderer(fake)).(*canvas)

	c.applyInput(common.InputEvent{Type: common.InputResize, X: 800, Y: 600})
	require.Len(t, fake.resized, 1)
	assert.Equal(t, [2]int{800, 600}, fake.resized[0])
	assert.Equal(t, 800, c.Width())
	assert.Equal(t, 600, c.Height())

	// Degenerate sizes are ignored.
	c.applyInput(common.InputEvent{Type: common.InputResize, X: 0, Y: 600})
	assert.Len(t, fake.resized, 1)
}

func TestApplyInputForwardsToCallback(t *testing.T) {
	fake := newFakeRenderer()
	c := NewCanvas(WithRenderer(fake)).(*canvas)

	var got []common.InputEvent
	c.SetInputCallback(func(event common.InputEvent) {
		got = append(got, event)
	})

	c.applyInput(common.InputEvent{Type: common.InputKeyDown, KeyCode: common.KeyW})
	c.applyInput(common.InputEvent{Type: common.InputKeyUp, KeyCode: common.KeyW})

	require.Len(t, got, 2)
	assert.Equal(t, common.InputKeyDown, got[0].Type)
	assert.Equal(t, uint32(common.KeyW), got[0].KeyCode)
	assert.Equal(t, common.InputKeyUp, got[1].Type)
}

func TestDynamicUniformsForwardToPreProcessor(t *testing.T) {
	c := NewCanvas(WithRenderer(newFakeRenderer()))

	c.AddDynamicUniform("uGlow", "float")
	result, err := c.PreProcessor().Process("#pragma SSV pixel mainPixel\nvec4 mainPixel(vec2 p) { return vec4(uGlow); }\n")
	require.NoError(t, err)
	assert.Contains(t, result.DynamicUniforms, shader.UniformDecl{Type: "float", Name: "uGlow"})

	c.RemoveDynamicUniform("uGlow")
	result, err = c.PreProcessor().Process("#pragma SSV pixel mainPixel\nvec4 mainPixel(vec2 p) { return vec4(1.0); }\n")
	require.NoError(t, err)
	assert.Empty(t, result.DynamicUniforms)
}
