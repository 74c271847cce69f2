package shader

import "embed"

// builtinShaderDir is the embedded directory holding the built-in shader
// templates and the include library they share.
const builtinShaderDir = "assets"

//go:embed assets
var builtinShaders embed.FS
