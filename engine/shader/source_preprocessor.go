package shader

import (
	"fmt"
	"regexp"
	"strings"
)

// source_preprocessor.go expands a template plus a user shader body into one
// self-contained GLSL translation unit per stage. The expansion pass:
//
//   - substitutes the fixed expansion points _GL_VERSION,
//     _GL_ADDITIONAL_EXTENSIONS and _DYNAMIC_UNIFORMS
//   - emits the synthesized #define block (stage guard, T_* argument defines,
//     choice constants) directly after the version directive
//   - injects the user body at the #include "TEMPLATE_DATA" sentinel
//   - recursively expands all other #include directives against the tiered
//     template search path, detecting cycles per expansion call
//   - evaluates #if/#ifdef/#ifndef/#elif/#else/#endif conditionals against
//     the known macro table, so stage-guarded code for other stages is
//     stripped from the output
//   - maintains #line bookkeeping so compiler diagnostics map back to the
//     original template, include and user-authored lines, with the
//     "#pragma PreventLine true|false" toggle suppressing bookkeeping around
//     code that must stay the first token of the file
//
// Macro references in the copied text itself are NOT expanded: the emitted
// #define block travels with the output and the GPU compiler performs the
// actual substitution. This keeps argument values free to be arbitrary GLSL
// expressions and keeps the output readable.

// userSourceName is the #line source label used for user-authored code, and
// the sentinel filename whose #include injects the user body.
const userSourceName = "TEMPLATE_DATA"

// Expansion point macros substituted with synthesized blocks when they appear
// alone on a line.
const (
	expansionPointVersion    = "_GL_VERSION"
	expansionPointExtensions = "_GL_ADDITIONAL_EXTENSIONS"
	expansionPointUniforms   = "_DYNAMIC_UNIFORMS"
)

// includePattern matches the filename of an #include directive body.
var includePattern = regexp.MustCompile(`^(?:"([^"]+)"|<([^>]+)>)$`)

// define is one synthesized preprocessor define emitted into the output.
type define struct {
	name  string
	value string
}

// macroDef records one macro known to the conditional evaluator.
type macroDef struct {
	value    string
	funcLike bool
}

// condFrame is one level of the conditional-compilation stack.
type condFrame struct {
	// active reports whether the current branch emits output (the enclosing
	// frames must all be active too; that is folded in at push time).
	active bool

	// taken reports whether any branch of this conditional has been active,
	// so later #elif/#else branches are skipped.
	taken bool

	// parent is the activity of the enclosing frame at push time.
	parent bool

	// inElse is set once #else is seen, to reject #elif after #else.
	inElse bool
}

// sourcePreprocessor performs one expansion pass. It is created fresh for
// every (template, stage) pair and never shared, so expansion state is
// trivially call-local.
type sourcePreprocessor struct {
	registry TemplateRegistry
	inline   map[string]string

	glVersion       string
	extensions      []string
	dynamicUniforms []string

	defines []define
	macros  map[string]macroDef

	userPreamble string
	userBody     string
	userBodyLine int

	out          []string
	conds        []condFrame
	includeChain []string

	// suppressLine counts nested "#pragma PreventLine true" toggles; #line
	// bookkeeping is suppressed while it is positive.
	suppressLine int

	// lastSource/lastLine track emission continuity for lazy #line output.
	// An empty lastSource forces a resync before the next content line.
	lastSource string
	lastLine   int

	emittedDefines bool
	preambleOut    []string
}

// newSourcePreprocessor creates an expansion pass over the given resolution
// context.
func newSourcePreprocessor(registry TemplateRegistry, inline map[string]string) *sourcePreprocessor {
	return &sourcePreprocessor{
		registry: registry,
		inline:   inline,
		macros:   make(map[string]macroDef),
	}
}

// expand produces the complete GLSL source for one stage.
//
// Parameters:
//   - def: the resolved template definition
//   - defines: the synthesized defines (stage guard first, then bound
//     arguments and choice constants) in emission order
//   - preamble: user source preceding the invocation pragma, shared by all stages
//   - body: user source following the invocation pragma
//   - bodyLine: the 1-based line the body starts on in the user source
//
// Returns:
//   - string: the expanded stage source
//   - error: an error wrapping the relevant sentinel on any expansion failure
func (p *sourcePreprocessor) expand(def *TemplateDefinition, defines []define, preamble, body string, bodyLine int) (string, error) {
	p.defines = defines
	p.userPreamble = preamble
	p.userBody = body
	p.userBodyLine = bodyLine
	for _, d := range defines {
		p.macros[d.name] = macroDef{value: d.value}
	}

	// The preamble is processed into its own buffer up front so user macro
	// definitions are known for the whole pass; the buffer is spliced into
	// the output at the version expansion point.
	if strings.TrimSpace(preamble) != "" {
		mainOut := p.out
		p.out = nil
		p.resync()
		if err := p.processSource(userSourceName, preamble, 1); err != nil {
			return "", err
		}
		p.preambleOut = p.out
		p.out = mainOut
		p.resync()
	}

	if err := p.processSource(def.Name, def.Source, 1); err != nil {
		return "", err
	}
	if len(p.conds) > 0 {
		return "", fmt.Errorf("template %q: unterminated conditional directive: %w", def.Name, ErrMalformedDirective)
	}
	if !p.emittedDefines {
		// The template never referenced _GL_VERSION; fall back to emitting
		// the define block and preamble ahead of everything else.
		prelude := append(p.defineBlock(), p.preambleOut...)
		p.out = append(prelude, p.out...)
	}
	return strings.Join(p.out, "\n") + "\n", nil
}

// active reports whether the current conditional branch emits output.
func (p *sourcePreprocessor) active() bool {
	return len(p.conds) == 0 || p.conds[len(p.conds)-1].active
}

// resync invalidates line continuity so the next content line is preceded by
// a fresh #line directive.
func (p *sourcePreprocessor) resync() {
	p.lastSource = ""
	p.lastLine = 0
}

// emit appends one content line originating from source at the given 1-based
// line number, inserting a #line directive when continuity breaks.
func (p *sourcePreprocessor) emit(line, source string, num int) {
	if p.suppressLine == 0 && len(p.out) > 0 && (source != p.lastSource || num != p.lastLine+1) {
		p.out = append(p.out, fmt.Sprintf("#line %d \"%s\"", num, source))
	}
	p.out = append(p.out, line)
	p.lastSource = source
	p.lastLine = num
}

// emitSynthesized appends a line that has no origin in any source file, such
// as the version directive or the define block.
func (p *sourcePreprocessor) emitSynthesized(line string) {
	p.out = append(p.out, line)
	p.resync()
}

// defineBlock renders the synthesized defines as #define lines.
func (p *sourcePreprocessor) defineBlock() []string {
	block := make([]string, 0, len(p.defines))
	for _, d := range p.defines {
		if d.value == "" {
			block = append(block, "#define "+d.name)
		} else {
			block = append(block, "#define "+d.name+" "+d.value)
		}
	}
	return block
}

// processSource walks one source file's logical lines, handling directives
// and emitting content lines of active branches.
func (p *sourcePreprocessor) processSource(name, src string, startLine int) error {
	for _, ln := range logicalLines(src) {
		num := ln.num + startLine - 1
		if body, ok := directiveBody(ln.text); ok {
			if err := p.processDirective(name, ln.text, body, num); err != nil {
				return err
			}
			continue
		}
		if !p.active() {
			continue
		}
		trimmed := strings.TrimSpace(ln.text)
		switch trimmed {
		case expansionPointVersion:
			p.emitSynthesized("#version " + p.glVersion)
			for _, line := range p.defineBlock() {
				p.emitSynthesized(line)
			}
			p.out = append(p.out, p.preambleOut...)
			p.resync()
			p.emittedDefines = true
		case expansionPointExtensions:
			for _, ext := range p.extensions {
				p.emitSynthesized("#extension " + ext + " : require")
			}
		case expansionPointUniforms:
			for _, u := range p.dynamicUniforms {
				p.emitSynthesized(u)
			}
		case "":
			// Blank lines are only kept while continuity holds; stray blanks
			// around dropped directives would otherwise force pointless #line
			// churn (or precede the version directive).
			if p.suppressLine > 0 || (name == p.lastSource && num == p.lastLine+1) {
				p.emit(ln.text, name, num)
			}
		default:
			p.emit(ln.text, name, num)
		}
	}
	return nil
}

// processDirective handles one preprocessor directive line.
func (p *sourcePreprocessor) processDirective(name, raw, body string, num int) error {
	keyword, rest := splitDirectiveWord(body)
	switch keyword {
	case "pragma":
		return p.processPragma(rest, num)

	case "include":
		if !p.active() {
			return nil
		}
		return p.processInclude(rest, num)

	case "ifdef", "ifndef":
		target, _ := splitDirectiveWord(stripLineComment(rest))
		if target == "" {
			return fmt.Errorf("line %d: #%s requires a macro name: %w", num, keyword, ErrMalformedDirective)
		}
		_, defined := p.macros[target]
		p.pushCond(defined == (keyword == "ifdef"))

	case "if":
		parentActive := p.active()
		branch := false
		if parentActive {
			v, err := p.evalCondition(stripLineComment(rest), num)
			if err != nil {
				return err
			}
			branch = v
		}
		p.pushCond(branch)

	case "elif":
		if len(p.conds) == 0 {
			return fmt.Errorf("line %d: #elif without matching #if: %w", num, ErrMalformedDirective)
		}
		frame := &p.conds[len(p.conds)-1]
		if frame.inElse {
			return fmt.Errorf("line %d: #elif after #else: %w", num, ErrMalformedDirective)
		}
		frame.active = false
		if frame.parent && !frame.taken {
			v, err := p.evalCondition(stripLineComment(rest), num)
			if err != nil {
				return err
			}
			if v {
				frame.active = true
				frame.taken = true
			}
		}

	case "else":
		if len(p.conds) == 0 {
			return fmt.Errorf("line %d: #else without matching #if: %w", num, ErrMalformedDirective)
		}
		frame := &p.conds[len(p.conds)-1]
		if frame.inElse {
			return fmt.Errorf("line %d: duplicate #else: %w", num, ErrMalformedDirective)
		}
		frame.inElse = true
		frame.active = frame.parent && !frame.taken
		frame.taken = true

	case "endif":
		if len(p.conds) == 0 {
			return fmt.Errorf("line %d: #endif without matching #if: %w", num, ErrMalformedDirective)
		}
		p.conds = p.conds[:len(p.conds)-1]

	case "define":
		if !p.active() {
			return nil
		}
		p.recordDefine(rest)
		p.emit(raw, name, num)

	case "undef":
		if !p.active() {
			return nil
		}
		target, _ := splitDirectiveWord(stripLineComment(rest))
		delete(p.macros, target)
		p.emit(raw, name, num)

	default:
		// #version, #extension, user #line directives and anything else pass
		// through untouched.
		if p.active() {
			p.emit(raw, name, num)
		}
	}
	return nil
}

// pushCond pushes a new conditional frame whose branch activity is folded
// with the enclosing frame's.
func (p *sourcePreprocessor) pushCond(branch bool) {
	parent := p.active()
	p.conds = append(p.conds, condFrame{
		active: parent && branch,
		taken:  branch,
		parent: parent,
	})
}

// processPragma handles #pragma directives. The PreventLine toggle adjusts
// line bookkeeping; every pragma line is removed from the output.
func (p *sourcePreprocessor) processPragma(rest string, num int) error {
	if !p.active() {
		return nil
	}
	family, familyRest := splitDirectiveWord(stripLineComment(rest))
	if family != pragmaFamilyPreventLine {
		return nil
	}
	arg, _ := splitDirectiveWord(familyRest)
	switch arg {
	case "true":
		p.suppressLine++
	case "false":
		if p.suppressLine > 0 {
			p.suppressLine--
		}
		if p.suppressLine == 0 {
			// Re-enabling defers the next #line to the next content line.
			p.resync()
		}
	default:
		return fmt.Errorf("line %d: #pragma PreventLine expects 'true' or 'false', got %q: %w", num, arg, ErrMalformedDirective)
	}
	return nil
}

// processInclude resolves and recursively expands one #include directive.
// The sentinel filename TEMPLATE_DATA injects the user shader body instead.
func (p *sourcePreprocessor) processInclude(rest string, num int) error {
	spec := strings.TrimSpace(stripLineComment(rest))
	m := includePattern.FindStringSubmatch(spec)
	if m == nil {
		return fmt.Errorf("line %d: malformed #include directive %q: %w", num, spec, ErrMalformedDirective)
	}
	filename := m[1]
	if filename == "" {
		filename = m[2]
	}

	if filename == userSourceName {
		err := p.processSource(userSourceName, p.userBody, p.userBodyLine)
		p.resync()
		return err
	}

	content, path, err := p.resolveInclude(filename)
	if err != nil {
		return fmt.Errorf("line %d: %w", num, err)
	}
	for _, inProgress := range p.includeChain {
		if inProgress == path {
			return fmt.Errorf("line %d: %q is included by one of its own includes (%s): %w",
				num, filename, strings.Join(p.includeChain, " -> "), ErrCircularInclude)
		}
	}
	p.includeChain = append(p.includeChain, path)
	err = p.processSource(filename, content, 1)
	p.includeChain = p.includeChain[:len(p.includeChain)-1]
	p.resync()
	return err
}

// resolveInclude looks an include up through the tiered search path.
func (p *sourcePreprocessor) resolveInclude(filename string) (string, string, error) {
	return p.registry.ResolveInclude(filename, p.inline)
}

// recordDefine registers a #define directive's macro with the conditional
// evaluator. Function-like macros are recorded for defined-ness only.
func (p *sourcePreprocessor) recordDefine(rest string) {
	rest = stripLineComment(rest)
	trimmed := strings.TrimLeft(rest, " \t")
	end := 0
	for end < len(trimmed) && (isIdentByte(trimmed[end]) || (end > 0 && trimmed[end] >= '0' && trimmed[end] <= '9')) {
		end++
	}
	if end == 0 {
		return
	}
	macroName := trimmed[:end]
	remainder := trimmed[end:]
	if strings.HasPrefix(remainder, "(") {
		p.macros[macroName] = macroDef{funcLike: true}
		return
	}
	p.macros[macroName] = macroDef{value: strings.TrimSpace(remainder)}
}

// isIdentByte reports whether c can appear in a macro identifier.
func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
