package shader

import "fmt"

// Stage identifies one programmable stage of the GPU graphics pipeline. Each
// stage declared by a template is expanded into its own translation unit with
// exactly one SHADER_STAGE_* macro active.
type Stage int

const (
	// StageVertex is the vertex processing stage.
	StageVertex Stage = iota

	// StageFragment is the fragment (pixel) processing stage.
	StageFragment

	// StageGeometry is the geometry amplification stage.
	StageGeometry

	// StageTessControl is the tessellation control stage.
	StageTessControl

	// StageTessEvaluation is the tessellation evaluation stage.
	StageTessEvaluation

	// StageCompute is the compute stage.
	StageCompute
)

// stageKeywords maps the stage keywords accepted by the
// "#pragma SSVTemplate stage" directive to their Stage values.
var stageKeywords = map[string]Stage{
	"vertex":          StageVertex,
	"fragment":        StageFragment,
	"geometry":        StageGeometry,
	"tess_control":    StageTessControl,
	"tess_evaluation": StageTessEvaluation,
	"compute":         StageCompute,
}

// stageNames is the reverse of stageKeywords, indexed by Stage.
var stageNames = [...]string{
	StageVertex:         "vertex",
	StageFragment:       "fragment",
	StageGeometry:       "geometry",
	StageTessControl:    "tess_control",
	StageTessEvaluation: "tess_evaluation",
	StageCompute:        "compute",
}

// stageMacros is the preprocessor guard macro defined for each stage during
// expansion, indexed by Stage.
var stageMacros = [...]string{
	StageVertex:         "SHADER_STAGE_VERTEX",
	StageFragment:       "SHADER_STAGE_FRAGMENT",
	StageGeometry:       "SHADER_STAGE_GEOMETRY",
	StageTessControl:    "SHADER_STAGE_TESS_CONTROL",
	StageTessEvaluation: "SHADER_STAGE_TESS_EVALUATION",
	StageCompute:        "SHADER_STAGE_COMPUTE",
}

// String returns the stage keyword as used in template pragma directives.
//
// Returns:
//   - string: the stage keyword (e.g. "vertex", "tess_control")
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Macro returns the preprocessor guard macro name for this stage
// (e.g. SHADER_STAGE_VERTEX). Exactly one of these is defined per expansion
// pass, so templates can isolate per-stage code with #ifdef guards.
//
// Returns:
//   - string: the stage guard macro name
func (s Stage) Macro() string {
	if s < 0 || int(s) >= len(stageMacros) {
		return ""
	}
	return stageMacros[s]
}

// ParseStage converts a stage keyword from a template directive into a Stage.
//
// Parameters:
//   - keyword: the stage keyword to parse (e.g. "fragment")
//
// Returns:
//   - Stage: the parsed stage
//   - error: ErrUnknownStage if the keyword is not a supported stage
func ParseStage(keyword string) (Stage, error) {
	s, ok := stageKeywords[keyword]
	if !ok {
		return 0, fmt.Errorf("%q is not a supported shader stage: %w", keyword, ErrUnknownStage)
	}
	return s, nil
}

// InputPrimitive identifies the OpenGL primitive topology a template expects
// its vertex input to be assembled with. It is declared by the
// "#pragma SSVTemplate input_primitive" directive and consumed by the
// rendering backend to configure the draw call.
type InputPrimitive int

const (
	// PrimitiveTriangles is the default topology: independent triangles.
	PrimitiveTriangles InputPrimitive = iota

	// PrimitivePoints renders each vertex as an independent point.
	PrimitivePoints

	// PrimitiveLines renders independent line segments.
	PrimitiveLines

	// PrimitiveLineLoop renders a closed line strip.
	PrimitiveLineLoop

	// PrimitiveLineStrip renders a connected line strip.
	PrimitiveLineStrip

	// PrimitiveTriangleStrip renders a connected triangle strip.
	PrimitiveTriangleStrip

	// PrimitiveTriangleFan renders a triangle fan.
	PrimitiveTriangleFan
)

// primitiveKeywords maps input_primitive directive keywords to their
// InputPrimitive values.
var primitiveKeywords = map[string]InputPrimitive{
	"triangles":      PrimitiveTriangles,
	"points":         PrimitivePoints,
	"lines":          PrimitiveLines,
	"line_loop":      PrimitiveLineLoop,
	"line_strip":     PrimitiveLineStrip,
	"triangle_strip": PrimitiveTriangleStrip,
	"triangle_fan":   PrimitiveTriangleFan,
}

// primitiveNames is the reverse of primitiveKeywords, indexed by InputPrimitive.
var primitiveNames = [...]string{
	PrimitiveTriangles:     "triangles",
	PrimitivePoints:        "points",
	PrimitiveLines:         "lines",
	PrimitiveLineLoop:      "line_loop",
	PrimitiveLineStrip:     "line_strip",
	PrimitiveTriangleStrip: "triangle_strip",
	PrimitiveTriangleFan:   "triangle_fan",
}

// String returns the primitive keyword as used in template pragma directives.
//
// Returns:
//   - string: the primitive keyword (e.g. "triangles", "points")
func (p InputPrimitive) String() string {
	if p < 0 || int(p) >= len(primitiveNames) {
		return fmt.Sprintf("InputPrimitive(%d)", int(p))
	}
	return primitiveNames[p]
}

// ParseInputPrimitive converts an input_primitive keyword from a template
// directive into an InputPrimitive.
//
// Parameters:
//   - keyword: the primitive keyword to parse (e.g. "points")
//
// Returns:
//   - InputPrimitive: the parsed primitive topology
//   - error: ErrUnknownInputPrimitive if the keyword is not supported
func ParseInputPrimitive(keyword string) (InputPrimitive, error) {
	p, ok := primitiveKeywords[keyword]
	if !ok {
		return 0, fmt.Errorf("%q is not a supported input primitive: %w", keyword, ErrUnknownInputPrimitive)
	}
	return p, nil
}
