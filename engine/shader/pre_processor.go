// pre_processor.go implements the SSV shader pre-processor. It takes raw user
// shader source containing a "#pragma SSV <template_name> [args...]"
// directive, resolves the named template through the tiered search path,
// binds the invocation arguments against the template's declared schema, and
// expands the template plus the user body into one complete GLSL translation
// unit per pipeline stage the template declares. The result carries the
// reflection metadata (input primitive, vertex attributes, uniforms) that the
// rendering backend uses to wire the draw call without manual string lookups.
package shader

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Result is the output of one preprocessing call: a complete GLSL source per
// declared stage plus the metadata the rendering backend needs.
type Result struct {
	// Template is the name of the template that was expanded.
	Template string

	// Stages maps each stage the template declares to its expanded source.
	Stages map[Stage]string

	// InputPrimitive is the vertex input topology declared by the template.
	InputPrimitive InputPrimitive

	// Attributes is the vertex input layout reflected from the expanded
	// vertex stage, empty if the template declares no vertex stage.
	Attributes []VertexAttribute

	// Uniforms lists every top-level uniform declared across the expanded
	// stages, in declaration order without duplicates.
	Uniforms []UniformDecl

	// DynamicUniforms echoes the dynamic uniforms registered on the
	// pre-processor at expansion time, in registration order.
	DynamicUniforms []UniformDecl
}

// processConfig collects per-call options for Process.
type processConfig struct {
	inline map[string]string
}

// ProcessOption is a functional option applied to a single preprocessing call.
type ProcessOption func(*processConfig)

// WithAdditionalTemplates supplies inline template sources for this call,
// keyed by name. Inline templates take priority over the user template
// directory and the built-ins.
//
// Parameters:
//   - templates: template sources keyed by template name
//
// Returns:
//   - ProcessOption: a function that applies the inline templates option
func WithAdditionalTemplates(templates map[string]string) ProcessOption {
	return func(c *processConfig) {
		if c.inline == nil {
			c.inline = make(map[string]string, len(templates))
		}
		for k, v := range templates {
			c.inline[k] = v
		}
	}
}

// WithAdditionalTemplate supplies one inline template source for this call.
//
// Parameters:
//   - name: the template name (also matched as an include filename)
//   - source: the template source text
//
// Returns:
//   - ProcessOption: a function that applies the inline template option
func WithAdditionalTemplate(name, source string) ProcessOption {
	return func(c *processConfig) {
		if c.inline == nil {
			c.inline = make(map[string]string, 1)
		}
		c.inline[name] = source
	}
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	mu *sync.RWMutex

	glVersion    string
	extensions   []string
	extraDefines []define

	registry TemplateRegistry

	// dynamicUniforms maps uniform names to their GLSL types; dynamicOrder
	// preserves registration order for deterministic output.
	dynamicUniforms map[string]string
	dynamicOrder    []string
}

// PreProcessor preprocesses SSV shader source code and shader templates into
// ready-to-compile GLSL for each pipeline stage the template declares.
//
// Preprocessing is synchronous and stateless across calls except for the
// template registry's definition cache and the registered dynamic uniforms;
// a PreProcessor is safe for concurrent use.
type PreProcessor interface {
	// Process preprocesses one SSV shader into per-stage GLSL. The source
	// must contain exactly one "#pragma SSV <template_name>" directive;
	// everything before the directive is shared preamble visible to every
	// stage, everything after it is the shader body injected at the
	// template's data sentinel.
	//
	// Parameters:
	//   - source: the raw user shader source text
	//   - opts: per-call options (e.g. inline templates)
	//
	// Returns:
	//   - *Result: the per-stage sources and reflection metadata
	//   - error: an error wrapping one of this package's sentinel errors,
	//     annotated with the template name and the stage being expanded when
	//     the failure occurred
	Process(source string, opts ...ProcessOption) (*Result, error)

	// AddDynamicUniform registers a uniform declaration to be injected at
	// the _DYNAMIC_UNIFORMS expansion point of every subsequent Process
	// call. Re-registering a name updates its type in place.
	//
	// Parameters:
	//   - name: the uniform name, which must be a valid GLSL identifier
	//   - glslType: the uniform's GLSL type (e.g. "sampler2D", "vec4")
	AddDynamicUniform(name, glslType string)

	// RemoveDynamicUniform removes a previously registered dynamic uniform.
	// Removing an unknown name is a no-op.
	//
	// Parameters:
	//   - name: the uniform name to remove
	RemoveDynamicUniform(name string)

	// Registry returns the template registry backing this pre-processor,
	// e.g. to start the template directory watcher or drop cached
	// definitions.
	//
	// Returns:
	//   - TemplateRegistry: the backing registry
	Registry() TemplateRegistry

	// Templates enumerates every template visible to the pre-processor.
	//
	// Returns:
	//   - []*TemplateDefinition: the parsed template definitions
	//   - error: an error if the template directory is unreadable
	Templates() ([]*TemplateDefinition, error)

	// TemplateUsage renders a usage string for one template from its
	// declared argument schema, in command-line help style.
	//
	// Parameters:
	//   - name: the template name to document
	//   - opts: per-call options (e.g. inline templates)
	//
	// Returns:
	//   - string: the generated usage text
	//   - error: an error wrapping ErrTemplateNotFound if the name resolves
	//     to no template
	TemplateUsage(name string, opts ...ProcessOption) (string, error)
}

var _ PreProcessor = &preProcessor{}

// PreProcessorOption is a functional option applied to a pre-processor during
// construction via NewPreProcessor.
type PreProcessorOption func(*preProcessor)

// WithGLVersion sets the GLSL version emitted at the _GL_VERSION expansion
// point. Defaults to "420".
//
// Parameters:
//   - version: the #version directive body (e.g. "420", "300 es")
//
// Returns:
//   - PreProcessorOption: a function that applies the version option
func WithGLVersion(version string) PreProcessorOption {
	return func(p *preProcessor) {
		p.glVersion = version
	}
}

// WithCompilerExtensions declares GLSL extensions required by every shader
// this pre-processor produces, emitted at the _GL_ADDITIONAL_EXTENSIONS
// expansion point.
//
// Parameters:
//   - extensions: extension names (e.g. "GL_EXT_control_flow_attributes")
//
// Returns:
//   - PreProcessorOption: a function that applies the extensions option
func WithCompilerExtensions(extensions ...string) PreProcessorOption {
	return func(p *preProcessor) {
		p.extensions = append(p.extensions, extensions...)
	}
}

// WithShaderDefine adds an extra preprocessor define emitted into every
// shader this pre-processor produces, after the template argument defines.
//
// Parameters:
//   - name: the macro name
//   - value: the macro value, emitted verbatim (may be empty)
//
// Returns:
//   - PreProcessorOption: a function that applies the define option
func WithShaderDefine(name, value string) PreProcessorOption {
	return func(p *preProcessor) {
		p.extraDefines = append(p.extraDefines, define{name: name, value: value})
	}
}

// WithRegistry replaces the backing template registry, e.g. to share one
// registry (and its cache) between several pre-processors.
//
// Parameters:
//   - registry: the registry to use
//
// Returns:
//   - PreProcessorOption: a function that applies the registry option
func WithRegistry(registry TemplateRegistry) PreProcessorOption {
	return func(p *preProcessor) {
		p.registry = registry
	}
}

// WithUserTemplateDirectory configures a directory of user-authored templates
// and includes on the backing registry. Ignored when WithRegistry is also
// given.
//
// Parameters:
//   - dir: the directory path containing template_<name>.glsl files
//
// Returns:
//   - PreProcessorOption: a function that applies the directory option
func WithUserTemplateDirectory(dir string) PreProcessorOption {
	return func(p *preProcessor) {
		if p.registry == nil {
			p.registry = NewTemplateRegistry(WithTemplateDirectory(dir))
		}
	}
}

// NewPreProcessor creates a PreProcessor backed by the built-in template
// registry, targeting GLSL version 420 unless configured otherwise.
//
// Parameters:
//   - options: functional options to further configure the pre-processor
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor
func NewPreProcessor(options ...PreProcessorOption) PreProcessor {
	p := &preProcessor{
		mu:              &sync.RWMutex{},
		glVersion:       "420",
		dynamicUniforms: make(map[string]string),
	}
	for _, option := range options {
		option(p)
	}
	if p.registry == nil {
		p.registry = NewTemplateRegistry()
	}
	return p
}

func (p *preProcessor) Process(source string, opts ...ProcessOption) (*Result, error) {
	var cfg processConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	inv, err := parseInvocation(source)
	if err != nil {
		return nil, err
	}
	def, err := p.registry.Resolve(inv.template, cfg.inline)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", inv.template, err)
	}
	bound, err := def.BindInvocation(inv.args, inv.line)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", def.Name, err)
	}
	defines := makeDefines(def, bound, p.extraDefines)

	p.mu.RLock()
	uniformDecls := make([]string, 0, len(p.dynamicOrder))
	echoed := make([]UniformDecl, 0, len(p.dynamicOrder))
	for _, name := range p.dynamicOrder {
		glslType := p.dynamicUniforms[name]
		uniformDecls = append(uniformDecls, fmt.Sprintf("uniform %s %s;", glslType, name))
		echoed = append(echoed, UniformDecl{Type: glslType, Name: name})
	}
	p.mu.RUnlock()

	result := &Result{
		Template:        def.Name,
		Stages:          make(map[Stage]string, len(def.Stages)),
		InputPrimitive:  def.InputPrimitive,
		DynamicUniforms: echoed,
	}
	seenUniforms := make(map[string]bool)
	for _, stage := range def.Stages {
		sp := newSourcePreprocessor(p.registry, cfg.inline)
		sp.glVersion = p.glVersion
		sp.extensions = p.extensions
		sp.dynamicUniforms = uniformDecls
		stageDefines := append([]define{{name: stage.Macro(), value: "1"}}, defines...)
		expanded, err := sp.expand(def, stageDefines, inv.preamble, inv.body, inv.bodyLine)
		if err != nil {
			return nil, fmt.Errorf("template %q, %s stage: %w", def.Name, stage, err)
		}
		result.Stages[stage] = expanded
		result.Uniforms = append(result.Uniforms, parseUniforms(expanded, seenUniforms)...)
		if stage == StageVertex {
			result.Attributes = parseVertexAttributes(expanded)
		}
	}
	return result, nil
}

// makeDefines converts bound template arguments into the synthesized define
// list: one T_* define per bound argument, named constants for every declared
// choice, and the SSV_SHADER marker. Following the original convention,
// values equal to "false" produce no define at all (so #ifdef works as a flag
// test) and "true" is emitted as 1.
func makeDefines(def *TemplateDefinition, bound []*boundArgument, extra []define) []define {
	defines := make([]define, 0, len(bound)+len(extra)+1)
	choiceConstants := make(map[string]bool)
	for _, b := range bound {
		value := b.Value()
		if strings.EqualFold(value, "false") {
			continue
		}
		if strings.EqualFold(value, "true") {
			value = "1"
		}
		defines = append(defines, define{name: b.spec.MacroName(), value: value})
		for i, choice := range b.spec.Choices {
			if choiceConstants[choice] || !isIdentifier(choice) {
				continue
			}
			choiceConstants[choice] = true
			defines = append(defines, define{name: choice, value: strconv.Itoa(i)})
		}
	}
	defines = append(defines, define{name: "SSV_SHADER", value: "1"})
	return append(defines, extra...)
}

// isIdentifier reports whether s is a valid macro identifier.
func isIdentifier(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > 0 && c >= '0' && c <= '9') {
			continue
		}
		return false
	}
	return len(s) > 0
}

func (p *preProcessor) AddDynamicUniform(name, glslType string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.dynamicUniforms[name]; !exists {
		p.dynamicOrder = append(p.dynamicOrder, name)
	}
	p.dynamicUniforms[name] = glslType
}

func (p *preProcessor) RemoveDynamicUniform(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.dynamicUniforms[name]; !exists {
		return
	}
	delete(p.dynamicUniforms, name)
	for i, n := range p.dynamicOrder {
		if n == name {
			p.dynamicOrder = append(p.dynamicOrder[:i], p.dynamicOrder[i+1:]...)
			break
		}
	}
}

func (p *preProcessor) Registry() TemplateRegistry {
	return p.registry
}

func (p *preProcessor) Templates() ([]*TemplateDefinition, error) {
	defs, err := p.registry.Templates()
	if err != nil {
		return nil, err
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

func (p *preProcessor) TemplateUsage(name string, opts ...ProcessOption) (string, error) {
	var cfg processConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	def, err := p.registry.Resolve(name, cfg.inline)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "usage: #pragma SSV %s", def.Name)
	for _, arg := range def.Arguments {
		if arg.Positional {
			fmt.Fprintf(&b, " <%s>", arg.Name)
		} else if arg.Action.takesValue() {
			fmt.Fprintf(&b, " [--%s VALUE]", arg.Name)
		} else {
			fmt.Fprintf(&b, " [--%s]", arg.Name)
		}
	}
	b.WriteString("\n")
	if def.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", def.Description)
	}
	if len(def.Arguments) > 0 {
		b.WriteString("\narguments:\n")
		for _, arg := range def.Arguments {
			label := arg.Name
			if !arg.Positional {
				label = "--" + arg.Name
				if arg.Short != "" {
					label += ", " + arg.Short
				}
			}
			fmt.Fprintf(&b, "  %-24s%s", label, arg.Description)
			var notes []string
			if len(arg.Choices) > 0 {
				notes = append(notes, "choices: "+strings.Join(arg.Choices, ", "))
			}
			if d := arg.impliedDefault(); d != nil {
				notes = append(notes, "default: "+*d)
			}
			if len(notes) > 0 {
				fmt.Fprintf(&b, " (%s)", strings.Join(notes, "; "))
			}
			b.WriteString("\n")
		}
	}
	if def.Author != "" {
		fmt.Fprintf(&b, "\nauthor: %s\n", def.Author)
	}
	return b.String(), nil
}
