package shader

import (
	"regexp"
	"strconv"
	"strings"
)

// glsl_parser.go extracts the reflection metadata the rendering backend needs
// from expanded stage sources: the vertex stage's input attribute layout and
// the uniforms declared across all stages. The scan is line-oriented over
// top-level declarations only; declarations inside function bodies or
// interface blocks are ignored.

// attributePattern matches a top-level vertex input declaration with an
// optional layout(location = N) qualifier.
var attributePattern = regexp.MustCompile(`^\s*(?:layout\s*\(\s*location\s*=\s*(\d+)\s*\)\s*)?in\s+([A-Za-z_]\w*)\s+([A-Za-z_]\w*)\s*;`)

// uniformPattern matches a top-level uniform declaration, with an optional
// array suffix on the name.
var uniformPattern = regexp.MustCompile(`^\s*uniform\s+([A-Za-z_]\w*)\s+([A-Za-z_]\w*)\s*(\[\s*\d*\s*\])?\s*;`)

// VertexAttribute describes one vertex input of an expanded vertex stage.
type VertexAttribute struct {
	// Name is the attribute variable name.
	Name string

	// Type is the GLSL type name (e.g. "vec2", "vec4").
	Type string

	// Location is the attribute's binding location: explicit when declared
	// with a layout qualifier, otherwise assigned sequentially in
	// declaration order.
	Location int
}

// UniformDecl describes one uniform declaration found in expanded stage
// sources, as a (type, name) pair.
type UniformDecl struct {
	// Type is the GLSL type name (e.g. "float", "vec4", "sampler2D").
	Type string

	// Name is the uniform variable name, without any array suffix.
	Name string
}

// parseVertexAttributes scans an expanded vertex stage source for its input
// attribute declarations.
func parseVertexAttributes(source string) []VertexAttribute {
	var attrs []VertexAttribute
	depth := 0
	nextLocation := 0
	for _, line := range strings.Split(source, "\n") {
		if depth == 0 {
			if m := attributePattern.FindStringSubmatch(line); m != nil {
				location := nextLocation
				if m[1] != "" {
					location, _ = strconv.Atoi(m[1])
				}
				attrs = append(attrs, VertexAttribute{Name: m[3], Type: m[2], Location: location})
				nextLocation = location + 1
			}
		}
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth < 0 {
			depth = 0
		}
	}
	return attrs
}

// parseUniforms scans expanded stage source for top-level uniform
// declarations, preserving declaration order and skipping duplicates.
func parseUniforms(source string, seen map[string]bool) []UniformDecl {
	var uniforms []UniformDecl
	depth := 0
	for _, line := range strings.Split(source, "\n") {
		if depth == 0 {
			if m := uniformPattern.FindStringSubmatch(line); m != nil && !seen[m[2]] {
				seen[m[2]] = true
				uniforms = append(uniforms, UniformDecl{Type: m[1], Name: m[2]})
			}
		}
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth < 0 {
			depth = 0
		}
	}
	return uniforms
}
