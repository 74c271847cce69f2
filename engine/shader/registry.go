package shader

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// registry.go implements the layered template resolution system. Templates
// and includes are searched through an ordered list of source providers:
// inline templates supplied with the preprocessing call, then a user template
// directory, then the built-in templates embedded in this package. The first
// provider that knows the name wins, which lets callers override any built-in
// template or include file.

// SourceProvider is one tier of the template/include search path. Providers
// are queried in priority order; ok reports whether this tier knows the name
// at all, while err reports a failure reading something the tier does own.
type SourceProvider interface {
	// ResolveTemplate looks up a template by its declared name.
	//
	// Parameters:
	//   - name: the template name, matched case-insensitively
	//
	// Returns:
	//   - string: the template source text
	//   - string: a diagnostic path identifying where the source came from
	//   - bool: true if this provider resolved the name
	//   - error: an error if the provider owns the name but failed to read it
	ResolveTemplate(name string) (string, string, bool, error)

	// ResolveInclude looks up an include file by filename.
	//
	// Parameters:
	//   - filename: the include filename as written in the #include directive
	//
	// Returns:
	//   - string: the file content
	//   - string: a diagnostic path identifying where the content came from
	//   - bool: true if this provider resolved the filename
	//   - error: an error if the provider owns the filename but failed to read it
	ResolveInclude(filename string) (string, string, bool, error)
}

// templateFilename returns the canonical on-disk filename for a template name.
func templateFilename(name string) string {
	return "template_" + strings.ToLower(name) + ".glsl"
}

// inlineProvider resolves templates and includes from an in-memory map
// supplied alongside a preprocessing call. Template lookup scans each source
// for its define directive; include lookup matches map keys as filenames.
type inlineProvider struct {
	sources map[string]string
}

func (p *inlineProvider) ResolveTemplate(name string) (string, string, bool, error) {
	for key, src := range p.sources {
		defName, ok := scanDefineName(src)
		if !ok {
			continue
		}
		if strings.EqualFold(defName, name) {
			return src, "inline:" + key, true, nil
		}
	}
	return "", "", false, nil
}

func (p *inlineProvider) ResolveInclude(filename string) (string, string, bool, error) {
	if src, ok := p.sources[filename]; ok {
		return src, "inline:" + filename, true, nil
	}
	return "", "", false, nil
}

// scanDefineName extracts the template name from the first
// "#pragma SSVTemplate define" directive of a source, without building a full
// definition. ok is false if the source declares no template.
func scanDefineName(src string) (string, bool) {
	for _, ln := range logicalLines(src) {
		family, rest, ok := pragmaDirective(ln.text)
		if !ok || family != pragmaFamilyTemplate {
			continue
		}
		subcommand, rest := splitDirectiveWord(rest)
		if subcommand != "define" {
			continue
		}
		name, _ := splitDirectiveWord(rest)
		if name != "" {
			return name, true
		}
	}
	return "", false
}

// directoryProvider resolves templates and includes from a user-supplied
// directory. Templates are matched by the filename pattern
// "template_<name>.<ext>"; includes are matched by plain filename.
type directoryProvider struct {
	dir string
}

func (p *directoryProvider) ResolveTemplate(name string) (string, string, bool, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return "", "", false, fmt.Errorf("template directory %q is not readable: %w", p.dir, err)
	}
	want := "template_" + strings.ToLower(name)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base := strings.ToLower(entry.Name())
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		if stem != want {
			continue
		}
		path := filepath.Join(p.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return "", "", false, fmt.Errorf("couldn't read shader template %q: %w", path, err)
		}
		return string(data), path, true, nil
	}
	return "", "", false, nil
}

func (p *directoryProvider) ResolveInclude(filename string) (string, string, bool, error) {
	path := filepath.Join(p.dir, filepath.Base(filename))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", false, nil
		}
		return "", "", false, fmt.Errorf("couldn't read include %q: %w", path, err)
	}
	return string(data), path, true, nil
}

// builtinProvider resolves templates and includes from the embedded built-in
// shader assets shipped with this package.
type builtinProvider struct{}

func (p *builtinProvider) ResolveTemplate(name string) (string, string, bool, error) {
	filename := templateFilename(name)
	data, err := builtinShaders.ReadFile(builtinShaderDir + "/" + filename)
	if err != nil {
		return "", "", false, nil
	}
	return string(data), filename, true, nil
}

func (p *builtinProvider) ResolveInclude(filename string) (string, string, bool, error) {
	data, err := builtinShaders.ReadFile(builtinShaderDir + "/" + filepath.Base(filename))
	if err != nil {
		return "", "", false, nil
	}
	return string(data), filename, true, nil
}

// templateRegistry is the implementation of the TemplateRegistry interface.
type templateRegistry struct {
	userDir string

	// cache holds resolved *TemplateDefinition values keyed by
	// "<tier>\x00<lowercase name>". Population is an atomic insert-if-absent:
	// the definition is built outside any lock and the first stored value
	// wins, so concurrent resolutions of unrelated templates never serialize
	// on each other.
	cache sync.Map

	watcher   *fsnotify.Watcher
	watchDone chan struct{}
}

// TemplateRegistry resolves named shader templates through the tiered search
// path (inline templates, user template directory, built-in templates) and
// caches parsed definitions for the lifetime of the registry. It is safe for
// concurrent use.
type TemplateRegistry interface {
	// Resolve finds, loads and parses the named template. Inline templates
	// take priority over the user directory, which takes priority over the
	// built-in templates. Resolutions from the disk and built-in tiers are
	// cached; inline resolutions are not, since their content is owned by the
	// caller and may differ between calls.
	//
	// Parameters:
	//   - name: the template name, matched case-insensitively
	//   - inline: optional inline template sources keyed by name, may be nil
	//
	// Returns:
	//   - *TemplateDefinition: the parsed template definition
	//   - error: an error wrapping ErrTemplateNotFound if no tier knows the
	//     name, or the parse/read error of the tier that did
	Resolve(name string, inline map[string]string) (*TemplateDefinition, error)

	// ResolveInclude finds the content of an include file through the same
	// tiered search path used for templates.
	//
	// Parameters:
	//   - filename: the include filename as written in the #include directive
	//   - inline: optional inline sources keyed by name, may be nil
	//
	// Returns:
	//   - string: the include content
	//   - string: a diagnostic path identifying where the content came from
	//   - error: an error wrapping ErrIncludeNotFound if no tier knows the name
	ResolveInclude(filename string, inline map[string]string) (string, string, error)

	// Templates enumerates every template visible to the registry: the user
	// template directory first, then the built-ins. Templates that fail to
	// parse are skipped with a log message rather than failing the whole
	// enumeration.
	//
	// Returns:
	//   - []*TemplateDefinition: the parsed definitions
	//   - error: an error if the user template directory is unreadable
	Templates() ([]*TemplateDefinition, error)

	// Invalidate drops every cached template definition. The next Resolve
	// reloads from disk.
	Invalidate()

	// WatchTemplates starts watching the user template directory (if one is
	// configured) and invalidates the cache whenever a file in it changes.
	//
	// Returns:
	//   - error: an error if the watcher could not be started
	WatchTemplates() error

	// Close stops the directory watcher if one is running.
	//
	// Returns:
	//   - error: an error if the watcher failed to close
	Close() error
}

var _ TemplateRegistry = &templateRegistry{}

// TemplateRegistryOption is a functional option applied to a template
// registry during construction via NewTemplateRegistry.
type TemplateRegistryOption func(*templateRegistry)

// WithTemplateDirectory configures a directory of user-authored templates and
// includes, searched after inline templates and before the built-ins.
//
// Parameters:
//   - dir: the directory path containing template_<name>.glsl files
//
// Returns:
//   - TemplateRegistryOption: a function that applies the directory option
func WithTemplateDirectory(dir string) TemplateRegistryOption {
	return func(r *templateRegistry) {
		r.userDir = dir
	}
}

// NewTemplateRegistry creates a TemplateRegistry backed by the built-in
// embedded templates, optionally layered under a user template directory.
//
// Parameters:
//   - options: functional options to further configure the registry
//
// Returns:
//   - TemplateRegistry: a ready-to-use registry
func NewTemplateRegistry(options ...TemplateRegistryOption) TemplateRegistry {
	r := &templateRegistry{}
	for _, option := range options {
		option(r)
	}
	return r
}

// providers assembles the search tiers for one resolution, priority first.
func (r *templateRegistry) providers(inline map[string]string) []SourceProvider {
	tiers := make([]SourceProvider, 0, 3)
	if len(inline) > 0 {
		tiers = append(tiers, &inlineProvider{sources: inline})
	}
	if r.userDir != "" {
		tiers = append(tiers, &directoryProvider{dir: r.userDir})
	}
	return append(tiers, &builtinProvider{})
}

func (r *templateRegistry) Resolve(name string, inline map[string]string) (*TemplateDefinition, error) {
	for _, tier := range r.providers(inline) {
		src, path, ok, err := tier.ResolveTemplate(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if _, isInline := tier.(*inlineProvider); isInline {
			return ParseTemplateDefinition(src, path)
		}

		key := r.cacheKey(tier, name)
		if cached, ok := r.cache.Load(key); ok {
			return cached.(*TemplateDefinition), nil
		}
		def, err := ParseTemplateDefinition(src, path)
		if err != nil {
			return nil, err
		}
		stored, _ := r.cache.LoadOrStore(key, def)
		return stored.(*TemplateDefinition), nil
	}
	return nil, fmt.Errorf("couldn't find a shader template called %q, it should be in a file called %q: %w",
		name, templateFilename(name), ErrTemplateNotFound)
}

func (r *templateRegistry) ResolveInclude(filename string, inline map[string]string) (string, string, error) {
	for _, tier := range r.providers(inline) {
		src, path, ok, err := tier.ResolveInclude(filename)
		if err != nil {
			return "", "", err
		}
		if ok {
			return src, path, nil
		}
	}
	return "", "", fmt.Errorf("couldn't find include file %q: %w", filename, ErrIncludeNotFound)
}

func (r *templateRegistry) Templates() ([]*TemplateDefinition, error) {
	var defs []*TemplateDefinition
	seen := make(map[string]bool)

	appendSource := func(src, path string) {
		def, err := ParseTemplateDefinition(src, path)
		if err != nil {
			log.Printf("[shader] skipping unparsable template %q: %v", path, err)
			return
		}
		lower := strings.ToLower(def.Name)
		if !seen[lower] {
			seen[lower] = true
			defs = append(defs, def)
		}
	}

	if r.userDir != "" {
		entries, err := os.ReadDir(r.userDir)
		if err != nil {
			return nil, fmt.Errorf("template directory %q is not readable: %w", r.userDir, err)
		}
		for _, entry := range entries {
			base := strings.ToLower(entry.Name())
			if entry.IsDir() || !strings.HasPrefix(base, "template_") {
				continue
			}
			path := filepath.Join(r.userDir, entry.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				log.Printf("[shader] skipping unreadable template %q: %v", path, err)
				continue
			}
			appendSource(string(data), path)
		}
	}

	builtins, err := builtinShaders.ReadDir(builtinShaderDir)
	if err != nil {
		return nil, fmt.Errorf("couldn't read built-in shader templates: %w", err)
	}
	for _, entry := range builtins {
		if !strings.HasPrefix(entry.Name(), "template_") {
			continue
		}
		data, err := builtinShaders.ReadFile(builtinShaderDir + "/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("couldn't read built-in shader template %q: %w", entry.Name(), err)
		}
		appendSource(string(data), entry.Name())
	}
	return defs, nil
}

func (r *templateRegistry) Invalidate() {
	r.cache.Range(func(key, _ any) bool {
		r.cache.Delete(key)
		return true
	})
}

func (r *templateRegistry) WatchTemplates() error {
	if r.userDir == "" || r.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("couldn't start template directory watcher: %w", err)
	}
	if err := watcher.Add(r.userDir); err != nil {
		watcher.Close()
		return fmt.Errorf("couldn't watch template directory %q: %w", r.userDir, err)
	}
	r.watcher = watcher
	r.watchDone = make(chan struct{})

	go func() {
		defer close(r.watchDone)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					r.Invalidate()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[shader] template directory watcher error: %v", err)
			}
		}
	}()
	return nil
}

func (r *templateRegistry) Close() error {
	if r.watcher == nil {
		return nil
	}
	err := r.watcher.Close()
	<-r.watchDone
	r.watcher = nil
	return err
}

// cacheKey derives the cache key for a (tier, name) pair. Directory
// resolutions are keyed by the directory path so the same name resolved
// against a different directory never reuses a stale definition.
func (r *templateRegistry) cacheKey(tier SourceProvider, name string) string {
	lower := strings.ToLower(name)
	if d, ok := tier.(*directoryProvider); ok {
		return "dir:" + d.dir + "\x00" + lower
	}
	return "builtin\x00" + lower
}
