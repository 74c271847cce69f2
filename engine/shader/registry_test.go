package shader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTemplateDir creates a temporary user template directory with the given
// files and returns its path.
func writeTemplateDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestRegistryResolvesBuiltin(t *testing.T) {
	reg := NewTemplateRegistry()
	def, err := reg.Resolve("pixel", nil)
	require.NoError(t, err)
	assert.Equal(t, "pixel", def.Name)
}

func TestRegistryResolveIsCaseInsensitive(t *testing.T) {
	reg := NewTemplateRegistry()
	def, err := reg.Resolve("PIXEL", nil)
	require.NoError(t, err)
	assert.Equal(t, "pixel", def.Name)
}

func TestRegistryResolveNotFound(t *testing.T) {
	reg := NewTemplateRegistry()
	_, err := reg.Resolve("does_not_exist", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.Contains(t, err.Error(), "template_does_not_exist.glsl")
}

func TestRegistryUserDirectoryShadowsBuiltin(t *testing.T) {
	dir := writeTemplateDir(t, map[string]string{
		"template_pixel.glsl": "#pragma SSVTemplate define pixel --description \"A user override.\"\n#pragma SSVTemplate stage fragment\n",
	})
	reg := NewTemplateRegistry(WithTemplateDirectory(dir))
	def, err := reg.Resolve("pixel", nil)
	require.NoError(t, err)
	assert.Equal(t, "A user override.", def.Description)
	assert.Equal(t, []Stage{StageFragment}, def.Stages)
}

func TestRegistryInlineShadowsEverything(t *testing.T) {
	inline := map[string]string{
		"anything.glsl": "#pragma SSVTemplate define pixel --description \"An inline override.\"\n#pragma SSVTemplate stage fragment\n",
	}
	reg := NewTemplateRegistry()
	def, err := reg.Resolve("pixel", inline)
	require.NoError(t, err)
	assert.Equal(t, "An inline override.", def.Description)
	assert.Equal(t, "inline:anything.glsl", def.Path)
}

func TestRegistryCachesDiskResolutions(t *testing.T) {
	dir := writeTemplateDir(t, map[string]string{
		"template_mine.glsl": minimalTemplateNamed("mine", "first"),
	})
	reg := NewTemplateRegistry(WithTemplateDirectory(dir))

	def, err := reg.Resolve("mine", nil)
	require.NoError(t, err)
	assert.Equal(t, "first", def.Description)

	// Rewrite the file; the cached definition is served until invalidation.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "template_mine.glsl"),
		[]byte(minimalTemplateNamed("mine", "second")), 0o644))

	def, err = reg.Resolve("mine", nil)
	require.NoError(t, err)
	assert.Equal(t, "first", def.Description)

	reg.Invalidate()
	def, err = reg.Resolve("mine", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", def.Description)
}

func TestRegistryInlineResolutionsAreNotCached(t *testing.T) {
	reg := NewTemplateRegistry()
	def, err := reg.Resolve("mine", map[string]string{"a": minimalTemplateNamed("mine", "first")})
	require.NoError(t, err)
	assert.Equal(t, "first", def.Description)

	def, err = reg.Resolve("mine", map[string]string{"a": minimalTemplateNamed("mine", "second")})
	require.NoError(t, err)
	assert.Equal(t, "second", def.Description)
}

func TestRegistryResolveInclude(t *testing.T) {
	dir := writeTemplateDir(t, map[string]string{
		"helpers.glsl": "float helper() { return 1.0; }\n",
	})
	reg := NewTemplateRegistry(WithTemplateDirectory(dir))

	t.Run("user directory include", func(t *testing.T) {
		src, path, err := reg.ResolveInclude("helpers.glsl", nil)
		require.NoError(t, err)
		assert.Contains(t, src, "float helper()")
		assert.Equal(t, filepath.Join(dir, "helpers.glsl"), path)
	})

	t.Run("builtin include", func(t *testing.T) {
		src, _, err := reg.ResolveInclude("sdf_utils.glsl", nil)
		require.NoError(t, err)
		assert.Contains(t, src, "sdSphere")
	})

	t.Run("inline include", func(t *testing.T) {
		src, path, err := reg.ResolveInclude("extra.glsl", map[string]string{"extra.glsl": "// extra\n"})
		require.NoError(t, err)
		assert.Equal(t, "// extra\n", src)
		assert.Equal(t, "inline:extra.glsl", path)
	})

	t.Run("not found", func(t *testing.T) {
		_, _, err := reg.ResolveInclude("nope.glsl", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrIncludeNotFound)
	})
}

func TestRegistryTemplatesEnumeration(t *testing.T) {
	dir := writeTemplateDir(t, map[string]string{
		"template_mine.glsl":   minimalTemplateNamed("mine", "a user template"),
		"template_broken.glsl": "not a template at all\n",
		"helpers.glsl":         "// an include, not a template\n",
	})
	reg := NewTemplateRegistry(WithTemplateDirectory(dir))
	defs, err := reg.Templates()
	require.NoError(t, err)

	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.Name)
	}
	assert.Contains(t, names, "mine")
	assert.Contains(t, names, "pixel", "built-ins are still listed")
	assert.NotContains(t, names, "broken", "unparsable templates are skipped")
}

// minimalTemplateNamed renders a tiny valid template with a marker description.
func minimalTemplateNamed(name, description string) string {
	return "#pragma SSVTemplate define " + name + " --description \"" + description + "\"\n" +
		"#pragma SSVTemplate stage fragment\nvoid main() {}\n"
}
