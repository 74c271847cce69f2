package canvas

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/Carmen-Shannon/ssv-go/common"
	"github.com/Carmen-Shannon/ssv-go/engine/profiler"
	"github.com/Carmen-Shannon/ssv-go/engine/renderer"
	"github.com/Carmen-Shannon/ssv-go/engine/shader"
	"github.com/Carmen-Shannon/ssv-go/engine/stream"
	"github.com/Carmen-Shannon/ssv-go/engine/window"
)

// pendingShader is a shader swap queued for the render thread.
type pendingShader struct {
	source  string
	options []shader.ProcessOption
}

// canvas is the implementation of the Canvas interface.
// Coordinates the preprocessor, renderer, stream server, and encode workers.
type canvas struct {
	mu *sync.Mutex

	title       string
	width       int
	height      int
	targetFPS   float64
	jpegQuality int

	win    window.Window
	pp     shader.PreProcessor
	r      renderer.Renderer
	server stream.Server

	prof             *profiler.Profiler
	profilingEnabled bool

	// encodePool runs JPEG encodes off the render thread so readback and
	// compression overlap. Workers persist across frames.
	encodePool    worker.DynamicWorkerPool
	encodeWorkers int

	// encodeNanos/encodeCount accumulate encode latency from worker
	// goroutines, drained by the render thread each frame for the profiler.
	encodeNanos  atomic.Int64
	encodeCount  atomic.Int64
	encodesAlive atomic.Int64

	// inputEvents buffers client input between frames; the render thread
	// drains it so all GL work stays on one OS thread.
	inputEvents chan common.InputEvent
	shaderSwaps chan pendingShader

	inputCallback func(common.InputEvent)

	source        string
	sourceOptions []shader.ProcessOption

	// stagedUniforms holds uniform writes made before Run creates the
	// renderer; they are flushed once the first program is linked.
	stagedUniforms []func(renderer.Renderer)

	mouseX, mouseY int
	clickX, clickY int
	mouseDown      bool

	running bool
}

// Canvas ties a shader template pipeline to an off-screen renderer and a
// websocket frame stream. Calling Run preprocesses the configured shader
// source, compiles it, and renders frames at the configured rate, encoding
// each one as JPEG and broadcasting it to connected clients. Client input
// events drive the uMouse/uMouseDown uniforms automatically.
type Canvas interface {
	// SetShaderSource sets the GLSL source (with its #pragma SSV directive)
	// the canvas renders. Safe to call while running, the swap happens on
	// the next frame.
	//
	// Parameters:
	//   - source: the shader source to preprocess and render
	//   - options: per-invocation preprocess options (inline templates etc.)
	SetShaderSource(source string, options ...shader.ProcessOption)

	// Run opens the hidden rendering context, starts the stream server and
	// renders frames until the context is cancelled. Must be called from
	// the main goroutine because the platform layer pins the OS thread.
	//
	// Parameters:
	//   - ctx: cancel to stop rendering and shut everything down
	//
	// Returns:
	//   - error: a preprocess, compile, or stream error
	Run(ctx context.Context) error

	// SetUniformFloat stages a float uniform write for the next frame.
	//
	// Parameters:
	//   - name: the uniform name
	//   - value: the value to write
	SetUniformFloat(name string, value float32)

	// SetUniformInt stages an int uniform write for the next frame.
	//
	// Parameters:
	//   - name: the uniform name
	//   - value: the value to write
	SetUniformInt(name string, value int32)

	// SetUniformVec4 stages a vec4 uniform write for the next frame.
	//
	// Parameters:
	//   - name: the uniform name
	//   - x, y, z, w: the component values to write
	SetUniformVec4(name string, x, y, z, w float32)

	// AddDynamicUniform declares a uniform that is injected into every
	// subsequently compiled shader. Takes effect on the next shader swap.
	//
	// Parameters:
	//   - name: the uniform name
	//   - glslType: the GLSL type of the uniform (e.g. "float", "vec3")
	AddDynamicUniform(name, glslType string)

	// RemoveDynamicUniform removes a previously declared dynamic uniform.
	//
	// Parameters:
	//   - name: the uniform name to remove
	RemoveDynamicUniform(name string)

	// SetInputCallback registers a callback invoked on the render thread for
	// every client input event, after the canvas's own state updates.
	//
	// Parameters:
	//   - callback: the callback to invoke
	SetInputCallback(callback func(common.InputEvent))

	// PreProcessor returns the shader preprocessor the canvas compiles with.
	//
	// Returns:
	//   - shader.PreProcessor: the preprocessor instance
	PreProcessor() shader.PreProcessor

	// Server returns the stream server frames are broadcast through.
	//
	// Returns:
	//   - stream.Server: the stream server instance
	Server() stream.Server

	// EnableProfiler enables frame timing output to the log.
	EnableProfiler()

	// DisableProfiler disables frame timing output.
	DisableProfiler()

	// Width returns the canvas width in pixels.
	//
	// Returns:
	//   - int: width in pixels
	Width() int

	// Height returns the canvas height in pixels.
	//
	// Returns:
	//   - int: height in pixels
	Height() int
}

var _ Canvas = &canvas{}

// NewCanvas creates a Canvas with default settings: 1280x720, 60 FPS,
// JPEG quality 80, streaming on localhost:8577.
//
// Parameters:
//   - options: functional options to further configure the canvas
//
// Returns:
//   - Canvas: the newly created canvas
func NewCanvas(options ...CanvasBuilderOption) Canvas {
	c := &canvas{
		mu:            &sync.Mutex{},
		title:         "ssv",
		width:         1280,
		height:        720,
		targetFPS:     60,
		jpegQuality:   80,
		encodeWorkers: max(runtime.NumCPU()/2, 1),
		inputEvents:   make(chan common.InputEvent, 256),
		shaderSwaps:   make(chan pendingShader, 1),
		prof:          profiler.NewProfiler(),
	}

	for _, opt := range options {
		opt(c)
	}

	if c.pp == nil {
		c.pp = shader.NewPreProcessor()
	}
	if c.server == nil {
		c.server = stream.NewServer()
	}
	// Queue size of 256 gives plenty of headroom for bursty frame submission.
	c.encodePool = worker.NewDynamicWorkerPool(c.encodeWorkers, 256, 1*time.Second)

	return c
}

func (c *canvas) SetShaderSource(source string, options ...shader.ProcessOption) {
	c.mu.Lock()
	c.source = source
	c.sourceOptions = options
	running := c.running
	c.mu.Unlock()

	if running {
		// Replace any queued swap with the newest source.
		select {
		case <-c.shaderSwaps:
		default:
		}
		c.shaderSwaps <- pendingShader{source: source, options: options}
	}
}

func (c *canvas) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("canvas is already running")
	}
	source := c.source
	options := c.sourceOptions
	c.mu.Unlock()
	if source == "" {
		return fmt.Errorf("no shader source set, call SetShaderSource first")
	}

	result, err := c.pp.Process(source, options...)
	if err != nil {
		return err
	}

	c.win = window.NewWindow(
		window.WithTitle(c.title),
		window.WithWidth(c.width),
		window.WithHeight(c.height),
		window.WithVisible(false),
	)
	c.win.MakeContextCurrent()

	c.mu.Lock()
	if c.r == nil {
		c.r = renderer.NewRenderer(renderer.BackendTypeOpenGL, renderer.WithSize(c.width, c.height))
	}
	c.mu.Unlock()
	if err := c.r.Init(); err != nil {
		c.win.Close()
		return err
	}
	if err := c.r.SetShader(result); err != nil {
		c.r.Close()
		c.win.Close()
		return err
	}

	c.mu.Lock()
	staged := c.stagedUniforms
	c.stagedUniforms = nil
	c.mu.Unlock()
	for _, write := range staged {
		write(c.r)
	}

	c.server.SetInputHandler(func(event common.InputEvent) {
		select {
		case c.inputEvents <- event:
		default:
			// Input is stale the moment the next event arrives, dropping
			// under pressure is fine.
		}
	})

	runCtx, cancel := context.WithCancel(ctx)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- c.server.Run(runCtx)
	}()

	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	err = c.renderLoop(runCtx, serverErr)

	cancel()
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	c.r.Close()
	c.win.Close()
	if serveErr := <-serverErr; err == nil {
		err = serveErr
	}
	return err
}

// renderLoop is the frame pump. It runs on the goroutine that owns the GL
// context and is the only place renderer methods are called while running.
func (c *canvas) renderLoop(ctx context.Context, serverErr chan error) error {
	frameDuration := time.Duration(float64(time.Second) / c.targetFPS)
	startTime := time.Now()
	frameIndex := 0

	for {
		frameStart := time.Now()

		select {
		case <-ctx.Done():
			return nil
		case err := <-serverErr:
			// Refill so Run's final drain still completes.
			serverErr <- err
			if err != nil {
				return err
			}
			return nil
		case swap := <-c.shaderSwaps:
			if err := c.applyShaderSwap(swap); err != nil {
				log.Printf("[Canvas] shader swap rejected: %v", err)
			}
		default:
		}

		if !c.win.PollEvents() {
			return nil
		}
		c.drainInput()

		width, height := c.r.Width(), c.r.Height()
		elapsed := float32(frameStart.Sub(startTime).Seconds())
		c.r.SetUniformFloat("uTime", elapsed)
		c.r.SetUniformInt("uFrame", int32(frameIndex))
		c.r.SetUniformVec4("uResolution", float32(width), float32(height), 1/float32(width), 1/float32(height))

		renderStart := time.Now()
		pixels, err := c.r.RenderFrame()
		if err != nil {
			return err
		}
		renderElapsed := time.Since(renderStart)
		frame := common.Frame{
			Data:       pixels,
			Width:      width,
			Height:     height,
			Index:      frameIndex,
			RenderedAt: time.Now(),
		}
		c.submitEncode(frame)
		frameIndex++

		if c.profilingEnabled {
			c.prof.RecordRender(renderElapsed)
			if n := c.encodeCount.Swap(0); n > 0 {
				// Hand the profiler equal shares so both the count and the
				// total survive the atomic handoff.
				share := time.Duration(c.encodeNanos.Swap(0) / n)
				for i := int64(0); i < n; i++ {
					c.prof.RecordEncode(share)
				}
			}
			c.prof.Tick()
		}

		if remaining := frameDuration - time.Since(frameStart); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

// applyShaderSwap preprocesses and compiles a queued shader source on the
// render thread, keeping the previous program on failure.
func (c *canvas) applyShaderSwap(swap pendingShader) error {
	result, err := c.pp.Process(swap.source, swap.options...)
	if err != nil {
		return err
	}
	return c.r.SetShader(result)
}

// drainInput applies buffered client input to the canvas state and uniforms.
func (c *canvas) drainInput() {
	for {
		select {
		case event := <-c.inputEvents:
			c.applyInput(event)
		default:
			return
		}
	}
}

func (c *canvas) applyInput(event common.InputEvent) {
	switch event.Type {
	case common.InputMouseMove:
		c.mouseX, c.mouseY = event.X, event.Y
	case common.InputMouseDown:
		c.mouseDown = true
		c.clickX, c.clickY = event.X, event.Y
	case common.InputMouseUp:
		c.mouseDown = false
	case common.InputResize:
		if event.X > 0 && event.Y > 0 {
			c.r.Resize(event.X, event.Y)
		}
	}

	c.r.SetUniformVec4("uMouse", float32(c.mouseX), float32(c.mouseY), float32(c.clickX), float32(c.clickY))
	down := int32(0)
	if c.mouseDown {
		down = 1
	}
	c.r.SetUniformInt("uMouseDown", down)

	c.mu.Lock()
	callback := c.inputCallback
	c.mu.Unlock()
	if callback != nil {
		callback(event)
	}
}

// submitEncode hands a rendered frame to the encode pool. Frames are skipped
// when no client is connected or the pool is saturated.
func (c *canvas) submitEncode(frame common.Frame) {
	if c.server.ClientCount() == 0 {
		return
	}
	if c.encodesAlive.Load() >= int64(c.encodeWorkers*2) {
		return
	}

	c.encodesAlive.Add(1)
	quality := c.jpegQuality
	c.encodePool.SubmitTask(worker.Task{
		ID: frame.Index,
		Do: func() (any, error) {
			defer c.encodesAlive.Add(-1)

			start := time.Now()
			img := &image.RGBA{
				Pix:    frame.Data,
				Stride: frame.Width * 4,
				Rect:   image.Rect(0, 0, frame.Width, frame.Height),
			}
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
				log.Printf("[Canvas] couldn't encode frame %d: %v", frame.Index, err)
				return nil, err
			}
			c.encodeNanos.Add(time.Since(start).Nanoseconds())
			c.encodeCount.Add(1)

			frame.Data = buf.Bytes()
			c.server.BroadcastFrame(frame)
			return nil, nil
		},
	})
}

func (c *canvas) SetUniformFloat(name string, value float32) {
	c.stageUniform(func(r renderer.Renderer) { r.SetUniformFloat(name, value) })
}

func (c *canvas) SetUniformInt(name string, value int32) {
	c.stageUniform(func(r renderer.Renderer) { r.SetUniformInt(name, value) })
}

func (c *canvas) SetUniformVec4(name string, x, y, z, w float32) {
	c.stageUniform(func(r renderer.Renderer) { r.SetUniformVec4(name, x, y, z, w) })
}

// stageUniform applies a uniform write immediately when the renderer exists,
// otherwise queues it for the first frame.
func (c *canvas) stageUniform(write func(renderer.Renderer)) {
	c.mu.Lock()
	r := c.r
	if r == nil {
		c.stagedUniforms = append(c.stagedUniforms, write)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	write(r)
}

func (c *canvas) AddDynamicUniform(name, glslType string) {
	c.pp.AddDynamicUniform(name, glslType)
}

func (c *canvas) RemoveDynamicUniform(name string) {
	c.pp.RemoveDynamicUniform(name)
}

func (c *canvas) SetInputCallback(callback func(common.InputEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inputCallback = callback
}

func (c *canvas) PreProcessor() shader.PreProcessor {
	return c.pp
}

func (c *canvas) Server() stream.Server {
	return c.server
}

func (c *canvas) EnableProfiler() {
	c.profilingEnabled = true
}

func (c *canvas) DisableProfiler() {
	c.profilingEnabled = false
}

func (c *canvas) Width() int {
	c.mu.Lock()
	r := c.r
	c.mu.Unlock()
	if r != nil {
		return r.Width()
	}
	return c.width
}

func (c *canvas) Height() int {
	c.mu.Lock()
	r := c.r
	c.mu.Unlock()
	if r != nil {
		return r.Height()
	}
	return c.height
}
