package shader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expandForTest runs one expansion pass of templateSrc plus a user body,
// defining the template's first declared stage guard and any extra defines.
func expandForTest(t *testing.T, templateSrc, preamble, body string, inline map[string]string, extra ...define) string {
	t.Helper()
	def, err := ParseTemplateDefinition(templateSrc, "inline")
	require.NoError(t, err)
	sp := newSourcePreprocessor(NewTemplateRegistry(), inline)
	sp.glVersion = "420"
	defines := append([]define{{name: def.Stages[0].Macro(), value: "1"}}, extra...)
	out, err := sp.expand(def, defines, preamble, body, 1)
	require.NoError(t, err)
	return out
}

// expandErrForTest is expandForTest for failure cases.
func expandErrForTest(t *testing.T, templateSrc, body string, inline map[string]string) error {
	t.Helper()
	def, err := ParseTemplateDefinition(templateSrc, "inline")
	require.NoError(t, err)
	sp := newSourcePreprocessor(NewTemplateRegistry(), inline)
	sp.glVersion = "420"
	_, err = sp.expand(def, []define{{name: def.Stages[0].Macro(), value: "1"}}, "", body, 1)
	require.Error(t, err)
	return err
}

const expansionTemplate = `#pragma SSVTemplate define tmpl
#pragma SSVTemplate stage fragment
_GL_VERSION
void setup() {}
#include "TEMPLATE_DATA"
void done() {}
`

func TestExpandVersionAndDefineBlock(t *testing.T) {
	out := expandForTest(t, expansionTemplate, "", "void body() {}", nil,
		define{name: "T_ENTRYPOINT", value: "frag"})
	lines := strings.Split(out, "\n")

	assert.Equal(t, "#version 420", lines[0], "the version directive must be the first line")
	assert.Equal(t, "#define SHADER_STAGE_FRAGMENT 1", lines[1])
	assert.Equal(t, "#define T_ENTRYPOINT frag", lines[2])
	assert.Contains(t, out, "void setup() {}")
	assert.Contains(t, out, "void body() {}")
	assert.Contains(t, out, "void done() {}")
	assert.True(t, strings.HasSuffix(out, "\n"), "output ends with a newline")
}

func TestExpandLineBookkeeping(t *testing.T) {
	out := expandForTest(t, expansionTemplate, "", "void body() {}", nil)
	lines := strings.Split(out, "\n")

	find := func(want string) int {
		for i, l := range lines {
			if l == want {
				return i
			}
		}
		t.Fatalf("output does not contain %q:\n%s", want, out)
		return -1
	}

	// Each transition back into a source is preceded by a #line directive
	// naming the source and the next physical line.
	assert.Equal(t, find("void setup() {}")-1, find(`#line 4 "tmpl"`))
	assert.Equal(t, find("void body() {}")-1, find(`#line 1 "TEMPLATE_DATA"`))
	assert.Equal(t, find("void done() {}")-1, find(`#line 6 "tmpl"`))
}

func TestExpandConsecutiveLinesEmitOneLineDirective(t *testing.T) {
	tmpl := "#pragma SSVTemplate define tmpl\n#pragma SSVTemplate stage fragment\n_GL_VERSION\nfloat a;\nfloat b;\nfloat c;\n"
	out := expandForTest(t, tmpl, "", "", nil)
	assert.Equal(t, 1, strings.Count(out, "#line"), "continuous runs need a single #line directive")
}

func TestExpandDefineBlockFallsBackWithoutVersionPoint(t *testing.T) {
	tmpl := "#pragma SSVTemplate define tmpl\n#pragma SSVTemplate stage fragment\nvoid main() {}\n"
	out := expandForTest(t, tmpl, "", "", nil, define{name: "T_X", value: "1"})
	lines := strings.Split(out, "\n")
	assert.Equal(t, "#define SHADER_STAGE_FRAGMENT 1", lines[0])
	assert.Equal(t, "#define T_X 1", lines[1])
}

func TestExpandPreamblePlacedAfterDefines(t *testing.T) {
	preamble := "#define GAIN 2.0\nfloat shared_helper() { return GAIN; }"
	out := expandForTest(t, expansionTemplate, preamble, "void body() {}", nil)

	defineIdx := strings.Index(out, "#define SHADER_STAGE_FRAGMENT")
	helperIdx := strings.Index(out, "float shared_helper()")
	setupIdx := strings.Index(out, "void setup()")
	require.GreaterOrEqual(t, defineIdx, 0)
	require.GreaterOrEqual(t, helperIdx, 0)
	require.GreaterOrEqual(t, setupIdx, 0)
	assert.Less(t, defineIdx, helperIdx, "preamble follows the define block")
	assert.Less(t, helperIdx, setupIdx, "preamble precedes the template body")
}

func TestExpandPreambleMacrosDriveTemplateConditionals(t *testing.T) {
	tmpl := `#pragma SSVTemplate define tmpl
#pragma SSVTemplate stage fragment
_GL_VERSION
#ifdef USE_HELPER
float helper_hook() { return 1.0; }
#endif
#include "TEMPLATE_DATA"
`
	out := expandForTest(t, tmpl, "#define USE_HELPER 1", "void body() {}", nil)
	assert.Contains(t, out, "float helper_hook()")

	out = expandForTest(t, tmpl, "", "void body() {}", nil)
	assert.NotContains(t, out, "float helper_hook()")
}

func TestExpandStageConditionals(t *testing.T) {
	tmpl := `#pragma SSVTemplate define tmpl
#pragma SSVTemplate stage fragment vertex
_GL_VERSION
#ifdef SHADER_STAGE_VERTEX
void vertex_only() {}
#endif
#ifdef SHADER_STAGE_FRAGMENT
void fragment_only() {}
#else
void not_fragment() {}
#endif
#ifndef SHADER_STAGE_COMPUTE
void never_compute() {}
#endif
`
	out := expandForTest(t, tmpl, "", "", nil)
	assert.NotContains(t, out, "vertex_only")
	assert.Contains(t, out, "fragment_only")
	assert.NotContains(t, out, "not_fragment")
	assert.Contains(t, out, "never_compute")
}

func TestExpandElifChain(t *testing.T) {
	tmpl := `#pragma SSVTemplate define tmpl
#pragma SSVTemplate stage fragment
_GL_VERSION
#if T_RENDER_MODE == solid
void shade_solid() {}
#elif T_RENDER_MODE == xray
void shade_xray() {}
#else
void shade_other() {}
#endif
`
	choices := []define{
		{name: "solid", value: "0"},
		{name: "xray", value: "1"},
		{name: "glow", value: "2"},
	}

	out := expandForTest(t, tmpl, "", "", nil,
		append([]define{{name: "T_RENDER_MODE", value: "xray"}}, choices...)...)
	assert.NotContains(t, out, "shade_solid")
	assert.Contains(t, out, "shade_xray")
	assert.NotContains(t, out, "shade_other")

	out = expandForTest(t, tmpl, "", "", nil,
		append([]define{{name: "T_RENDER_MODE", value: "glow"}}, choices...)...)
	assert.Contains(t, out, "shade_other")
}

func TestExpandNestedConditionals(t *testing.T) {
	tmpl := `#pragma SSVTemplate define tmpl
#pragma SSVTemplate stage fragment
_GL_VERSION
#ifdef MISSING
#ifdef SHADER_STAGE_FRAGMENT
void unreachable() {}
#endif
#else
void reachable() {}
#endif
`
	out := expandForTest(t, tmpl, "", "", nil)
	assert.NotContains(t, out, "unreachable")
	assert.Contains(t, out, "reachable")
}

func TestExpandConditionalErrors(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
	}{
		{
			name: "unterminated conditional",
			tmpl: "#pragma SSVTemplate define t\n#pragma SSVTemplate stage fragment\n#ifdef A\n",
		},
		{
			name: "endif without if",
			tmpl: "#pragma SSVTemplate define t\n#pragma SSVTemplate stage fragment\n#endif\n",
		},
		{
			name: "else without if",
			tmpl: "#pragma SSVTemplate define t\n#pragma SSVTemplate stage fragment\n#else\n",
		},
		{
			name: "elif after else",
			tmpl: "#pragma SSVTemplate define t\n#pragma SSVTemplate stage fragment\n#ifdef A\n#else\n#elif 1\n#endif\n",
		},
		{
			name: "duplicate else",
			tmpl: "#pragma SSVTemplate define t\n#pragma SSVTemplate stage fragment\n#ifdef A\n#else\n#else\n#endif\n",
		},
		{
			name: "ifdef without a name",
			tmpl: "#pragma SSVTemplate define t\n#pragma SSVTemplate stage fragment\n#ifdef\n#endif\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := expandErrForTest(t, tt.tmpl, "", nil)
			assert.ErrorIs(t, err, ErrMalformedDirective)
		})
	}
}

func TestExpandIncludes(t *testing.T) {
	tmpl := `#pragma SSVTemplate define tmpl
#pragma SSVTemplate stage fragment
_GL_VERSION
#include "helpers.glsl"
#include "TEMPLATE_DATA"
`
	inline := map[string]string{
		"helpers.glsl": "float helper() { return 1.0; }",
	}
	out := expandForTest(t, tmpl, "", "void body() {}", inline)
	assert.Contains(t, out, "float helper()")
	assert.Contains(t, out, `#line 1 "helpers.glsl"`)
	assert.NotContains(t, out, "#include")
}

func TestExpandIncludeAngleBrackets(t *testing.T) {
	tmpl := "#pragma SSVTemplate define tmpl\n#pragma SSVTemplate stage fragment\n_GL_VERSION\n#include <helpers.glsl>\n"
	inline := map[string]string{"helpers.glsl": "float helper() { return 1.0; }"}
	out := expandForTest(t, tmpl, "", "", inline)
	assert.Contains(t, out, "float helper()")
}

func TestExpandIncludeInInactiveBranchIsSkipped(t *testing.T) {
	tmpl := `#pragma SSVTemplate define tmpl
#pragma SSVTemplate stage fragment
_GL_VERSION
#ifdef MISSING
#include "does_not_exist.glsl"
#endif
void main() {}
`
	out := expandForTest(t, tmpl, "", "", nil)
	assert.Contains(t, out, "void main()")
}

func TestExpandIncludeNotFound(t *testing.T) {
	tmpl := "#pragma SSVTemplate define tmpl\n#pragma SSVTemplate stage fragment\n#include \"does_not_exist.glsl\"\n"
	err := expandErrForTest(t, tmpl, "", nil)
	assert.ErrorIs(t, err, ErrIncludeNotFound)
}

func TestExpandMalformedInclude(t *testing.T) {
	tmpl := "#pragma SSVTemplate define tmpl\n#pragma SSVTemplate stage fragment\n#include bare_filename.glsl\n"
	err := expandErrForTest(t, tmpl, "", nil)
	assert.ErrorIs(t, err, ErrMalformedDirective)
}

func TestExpandCircularInclude(t *testing.T) {
	tmpl := "#pragma SSVTemplate define tmpl\n#pragma SSVTemplate stage fragment\n#include \"a.glsl\"\n"
	inline := map[string]string{
		"a.glsl": `#include "b.glsl"`,
		"b.glsl": `#include "a.glsl"`,
	}
	err := expandErrForTest(t, tmpl, "", inline)
	assert.ErrorIs(t, err, ErrCircularInclude)
	assert.Contains(t, err.Error(), "a.glsl")
	assert.Contains(t, err.Error(), "b.glsl")
}

func TestExpandRepeatedNonCircularInclude(t *testing.T) {
	// Including the same file twice sequentially is fine; only cycles fail.
	tmpl := "#pragma SSVTemplate define tmpl\n#pragma SSVTemplate stage fragment\n_GL_VERSION\n#include \"a.glsl\"\n#include \"a.glsl\"\n"
	inline := map[string]string{"a.glsl": "float helper() { return 1.0; }"}
	out := expandForTest(t, tmpl, "", "", inline)
	assert.Equal(t, 2, strings.Count(out, "float helper()"))
}

func TestExpandPreventLine(t *testing.T) {
	tmpl := `#pragma SSVTemplate define tmpl
#pragma SSVTemplate stage fragment
#pragma PreventLine true
_GL_VERSION
#extension GL_ARB_shading_language_include : require
#pragma PreventLine false
void main() {}
`
	out := expandForTest(t, tmpl, "", "", nil)
	lines := strings.Split(out, "\n")
	assert.Equal(t, "#version 420", lines[0])

	extIdx := -1
	for i, l := range lines {
		if strings.HasPrefix(l, "#extension") {
			extIdx = i
		}
	}
	require.GreaterOrEqual(t, extIdx, 0)
	assert.NotContains(t, lines[extIdx-1], "#line", "bookkeeping is suppressed while PreventLine is active")
	assert.Contains(t, out, `#line 7 "tmpl"`, "bookkeeping resumes after PreventLine false")
}

func TestExpandPreventLineBadArgument(t *testing.T) {
	tmpl := "#pragma SSVTemplate define tmpl\n#pragma SSVTemplate stage fragment\n#pragma PreventLine maybe\n"
	err := expandErrForTest(t, tmpl, "", nil)
	assert.ErrorIs(t, err, ErrMalformedDirective)
}

func TestExpandDropsAllPragmas(t *testing.T) {
	out := expandForTest(t, expansionTemplate, "", "#pragma optimize(off)\nvoid body() {}", nil)
	assert.NotContains(t, out, "#pragma")
}

func TestExpandUserDefinesPassThrough(t *testing.T) {
	body := "#define LIMIT 10\n#if LIMIT > 5\nvoid big() {}\n#endif\n#undef LIMIT"
	out := expandForTest(t, expansionTemplate, "", body, nil)
	assert.Contains(t, out, "#define LIMIT 10", "user defines stay in the output")
	assert.Contains(t, out, "void big()")
	assert.Contains(t, out, "#undef LIMIT")
}

func TestExpandMacroValuesAreNotSubstituted(t *testing.T) {
	out := expandForTest(t, expansionTemplate, "", "vec4 c = T_ENTRYPOINT(p);", nil,
		define{name: "T_ENTRYPOINT", value: "frag"})
	assert.Contains(t, out, "#define T_ENTRYPOINT frag")
	assert.Contains(t, out, "vec4 c = T_ENTRYPOINT(p);", "call sites keep the macro name")
}

func TestExpandExpansionPoints(t *testing.T) {
	tmpl := `#pragma SSVTemplate define tmpl
#pragma SSVTemplate stage fragment
_GL_VERSION
_GL_ADDITIONAL_EXTENSIONS
_DYNAMIC_UNIFORMS
void main() {}
`
	def, err := ParseTemplateDefinition(tmpl, "inline")
	require.NoError(t, err)
	sp := newSourcePreprocessor(NewTemplateRegistry(), nil)
	sp.glVersion = "300 es"
	sp.extensions = []string{"GL_EXT_one", "GL_EXT_two"}
	sp.dynamicUniforms = []string{"uniform float uZoom;"}
	out, err := sp.expand(def, []define{{name: "SHADER_STAGE_FRAGMENT", value: "1"}}, "", "", 1)
	require.NoError(t, err)

	assert.Contains(t, out, "#version 300 es")
	assert.Contains(t, out, "#extension GL_EXT_one : require")
	assert.Contains(t, out, "#extension GL_EXT_two : require")
	assert.Contains(t, out, "uniform float uZoom;")
	assert.NotContains(t, out, "_GL_VERSION")
	assert.NotContains(t, out, "_GL_ADDITIONAL_EXTENSIONS")
	assert.NotContains(t, out, "_DYNAMIC_UNIFORMS")
}
