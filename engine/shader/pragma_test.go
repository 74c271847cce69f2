package shader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogicalLines(t *testing.T) {
	src := "float a;\n#pragma SSV pixel \\\n    --mode xray\nfloat b;"
	lines := logicalLines(src)
	require.Len(t, lines, 3)
	assert.Equal(t, sourceLine{text: "float a;", num: 1}, lines[0])
	assert.Equal(t, 2, lines[1].num)
	assert.Equal(t, []string{"#pragma", "SSV", "pixel", "--mode", "xray"}, strings.Fields(lines[1].text))
	assert.Equal(t, sourceLine{text: "float b;", num: 4}, lines[2])
}

func TestLogicalLinesIgnoresBackslashOnCodeLines(t *testing.T) {
	src := "float a = 1.0; \\\nfloat b;"
	lines := logicalLines(src)
	require.Len(t, lines, 2)
	assert.Equal(t, "float a = 1.0; \\", lines[0].text)
	assert.Equal(t, "float b;", lines[1].text)
}

func TestPragmaDirective(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantFamily string
		wantRest   string
		wantOK     bool
	}{
		{"invocation", "#pragma SSV pixel --mode xray", "SSV", "pixel --mode xray", true},
		{"definition", "  #  pragma SSVTemplate stage vertex", "SSVTemplate", "stage vertex", true},
		{"prevent line", "#pragma PreventLine true", "PreventLine", "true", true},
		{"other directive", "#include \"a.glsl\"", "", "", false},
		{"plain code", "float x = 1.0;", "", "", false},
		{"bare pragma", "#pragma", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			family, rest, ok := pragmaDirective(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantFamily, family)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
}

func TestStripLineComment(t *testing.T) {
	assert.Equal(t, "pixel --mode xray ", stripLineComment("pixel --mode xray // pick a mode"))
	assert.Equal(t, `--url "https://example.com"`, stripLineComment(`--url "https://example.com"`))
	assert.Equal(t, "no comment here", stripLineComment("no comment here"))
}

func TestParseInvocation(t *testing.T) {
	src := `// a shared helper
float gain = 2.0;
#pragma SSV pixel mainPixel --mode xray
vec4 mainPixel(vec2 p) {
    return vec4(gain, 0.0, 0.0, 1.0);
}`
	inv, err := parseInvocation(src)
	require.NoError(t, err)
	assert.Equal(t, "pixel", inv.template)
	assert.Equal(t, []string{"mainPixel", "--mode", "xray"}, inv.args)
	assert.Equal(t, 3, inv.line)
	assert.Equal(t, "// a shared helper\nfloat gain = 2.0;", inv.preamble)
	assert.Equal(t, 4, inv.bodyLine)
	assert.Contains(t, inv.body, "vec4 mainPixel(vec2 p)")
	assert.NotContains(t, inv.body, "#pragma SSV")
}

func TestParseInvocationContinuation(t *testing.T) {
	src := "#pragma SSV sdf \\\n    distanceField --render_mode xray\nfloat distanceField(vec3 p) { return sdSphere(p, 1.0); }"
	inv, err := parseInvocation(src)
	require.NoError(t, err)
	assert.Equal(t, "sdf", inv.template)
	assert.Equal(t, []string{"distanceField", "--render_mode", "xray"}, inv.args)
	assert.Equal(t, 1, inv.line)
	assert.Equal(t, 3, inv.bodyLine, "body starts after the continuation lines")
}

func TestParseInvocationStripsTrailingComment(t *testing.T) {
	inv, err := parseInvocation("#pragma SSV pixel // the default template\nvoid f() {}")
	require.NoError(t, err)
	assert.Equal(t, "pixel", inv.template)
	assert.Empty(t, inv.args)
}

func TestParseInvocationErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing directive", "void main() {}"},
		{"duplicate directive", "#pragma SSV pixel\n#pragma SSV sdf"},
		{"no template name", "#pragma SSV"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseInvocation(tt.src)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedDirective)
		})
	}
}
