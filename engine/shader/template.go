package shader

import (
	"fmt"
	"strings"
)

// template.go builds TemplateDefinition values by scanning a template's
// source for "#pragma SSVTemplate" directives. All other lines are ignored at
// this point; the full source is retained on the definition for the later
// substitution pass.

// TemplateDefinition is the parsed identity of one named shader template: its
// metadata, declared pipeline stages, input topology and argument schema,
// plus the raw source it was scanned from.
type TemplateDefinition struct {
	// Name is the template's unique name as declared by the define directive.
	Name string

	// Author is the optional template author from the define directive.
	Author string

	// Description is the optional template description from the define
	// directive.
	Description string

	// Stages lists the pipeline stages the template compiles for, in
	// declaration order without duplicates.
	Stages []Stage

	// InputPrimitive is the vertex input topology declared by the
	// input_primitive directive. Defaults to PrimitiveTriangles.
	InputPrimitive InputPrimitive

	// Arguments is the template's declared parameter schema in declaration
	// order. Argument names are unique.
	Arguments []*ArgumentSpec

	// Source is the template's raw source text, used by the source
	// preprocessor for substitution.
	Source string

	// Path identifies where the template was loaded from, for diagnostics:
	// a file path, a built-in asset name, or an inline template name.
	Path string
}

// HasStage reports whether the template declares the given stage.
//
// Parameters:
//   - stage: the stage to look for
//
// Returns:
//   - bool: true if the stage is declared by the template
func (t *TemplateDefinition) HasStage(stage Stage) bool {
	for _, s := range t.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// BindInvocation binds invocation tokens against the template's argument
// schema, producing the resolved argument values in declaration order.
//
// Parameters:
//   - args: the tokenized invocation arguments
//   - line: the 1-based source line of the invocation directive
//
// Returns:
//   - []*boundArgument: the bound argument map in schema order
//   - error: an error wrapping the relevant sentinel on any binding failure
func (t *TemplateDefinition) BindInvocation(args []string, line int) ([]*boundArgument, error) {
	return bindArguments(t.Arguments, args, line)
}

// ParseTemplateDefinition scans template source for SSVTemplate directives
// and folds them into a TemplateDefinition. The scan is line-oriented and
// tolerant: anything that is not an SSVTemplate pragma is skipped.
//
// Parameters:
//   - source: the template source text
//   - path: where the source was loaded from, recorded for diagnostics
//
// Returns:
//   - *TemplateDefinition: the parsed definition
//   - error: an error wrapping the relevant sentinel if any directive is
//     invalid, the template declares no name, or it declares no stages
func ParseTemplateDefinition(source, path string) (*TemplateDefinition, error) {
	def := &TemplateDefinition{
		InputPrimitive: PrimitiveTriangles,
		Source:         source,
		Path:           path,
	}
	seenStages := make(map[Stage]bool)
	seenArgs := make(map[string]bool)

	for _, ln := range logicalLines(source) {
		family, rest, ok := pragmaDirective(ln.text)
		if !ok || family != pragmaFamilyTemplate {
			continue
		}
		subcommand, rest := splitDirectiveWord(rest)
		tokens, err := tokenizeDirectiveArgs(stripLineComment(rest), ln.num)
		if err != nil {
			return nil, err
		}

		switch subcommand {
		case "define":
			bound, err := bindArguments(defineGrammar, tokens, ln.num)
			if err != nil {
				return nil, err
			}
			name := findBound(bound, "name").Value()
			if !templateNamePattern.MatchString(name) {
				return nil, fmt.Errorf("line %d: template name %q may only contain letters, digits, underscores and hyphens: %w",
					ln.num, name, ErrInvalidTemplateName)
			}
			def.Name = name
			if b := findBound(bound, "author"); b != nil {
				def.Author = b.Value()
			}
			if b := findBound(bound, "description"); b != nil {
				def.Description = b.Value()
			}

		case "stage":
			bound, err := bindArguments(stageGrammar, tokens, ln.num)
			if err != nil {
				return nil, err
			}
			for _, keyword := range findBound(bound, "shader_stage").values {
				stage, err := ParseStage(keyword)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", ln.num, err)
				}
				if !seenStages[stage] {
					seenStages[stage] = true
					def.Stages = append(def.Stages, stage)
				}
			}

		case "arg":
			bound, err := bindArguments(argGrammar, tokens, ln.num)
			if err != nil {
				return nil, err
			}
			spec, err := buildArgumentSpec(bound, ln.num)
			if err != nil {
				return nil, err
			}
			if seenArgs[spec.Name] {
				return nil, fmt.Errorf("line %d: template declares argument %q more than once: %w",
					ln.num, spec.Name, ErrMalformedDirective)
			}
			seenArgs[spec.Name] = true
			def.Arguments = append(def.Arguments, spec)

		case "input_primitive":
			bound, err := bindArguments(inputPrimitiveGrammar, tokens, ln.num)
			if err != nil {
				return nil, err
			}
			prim, err := ParseInputPrimitive(findBound(bound, "kind").Value())
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", ln.num, err)
			}
			def.InputPrimitive = prim

		default:
			return nil, fmt.Errorf("line %d: unrecognized SSVTemplate subcommand %q: %w",
				ln.num, subcommand, ErrMalformedDirective)
		}
	}

	if def.Name == "" {
		return nil, fmt.Errorf("template %q contains no '#pragma SSVTemplate define' directive: %w", path, ErrMalformedDirective)
	}
	if len(def.Stages) == 0 {
		return nil, fmt.Errorf("template %q declares no shader stages: %w", def.Name, ErrMalformedDirective)
	}
	shortAliases(def.Arguments)
	return def, nil
}

// buildArgumentSpec converts one bound "SSVTemplate arg" directive into an
// ArgumentSpec, applying the leading-underscore convention and validating the
// action/default/choices combination.
func buildArgumentSpec(bound []*boundArgument, line int) (*ArgumentSpec, error) {
	name := findBound(bound, "name").Value()
	nonPositional := findBound(bound, "non_positional").Value() == "true"
	if prefixed := strings.HasPrefix(name, "_"); prefixed {
		// A leading underscore is sugar for --non_positional; the generated
		// macro name strips it.
		name = name[1:]
		nonPositional = true
	}
	if name == "" {
		return nil, fmt.Errorf("line %d: template argument has an empty name: %w", line, ErrMalformedDirective)
	}

	action, err := parseAction(findBound(bound, "action").Value(), line)
	if err != nil {
		return nil, err
	}

	spec := &ArgumentSpec{
		Name:       name,
		Positional: !nonPositional,
		Action:     action,
	}
	if b := findBound(bound, "default"); b != nil {
		if action == ActionStoreTrue || action == ActionStoreFalse {
			// Boolean actions already imply their default; an explicit one is
			// either redundant or contradictory, so it is rejected outright.
			return nil, fmt.Errorf("line %d: argument %q: --default cannot be combined with action %s: %w",
				line, name, action, ErrInvalidDefault)
		}
		v := b.Value()
		spec.Default = &v
	}
	if b := findBound(bound, "choices"); b != nil {
		spec.Choices = b.values
	}
	if b := findBound(bound, "const"); b != nil {
		spec.Const = b.Value()
	}
	if b := findBound(bound, "description"); b != nil {
		spec.Description = b.Value()
	}

	if spec.Default != nil && len(spec.Choices) > 0 {
		if err := spec.validateChoice(*spec.Default, line); err != nil {
			return nil, fmt.Errorf("line %d: argument %q: default %q is not one of the declared choices: %w",
				line, name, *spec.Default, ErrInvalidDefault)
		}
	}
	return spec, nil
}

// parseAction converts an --action keyword into an ArgAction. The grammar's
// choices list already constrains the keyword, so this only translates it.
func parseAction(keyword string, line int) (ArgAction, error) {
	action, ok := argActionKeywords[keyword]
	if !ok {
		return 0, fmt.Errorf("line %d: unknown argument action %q: %w", line, keyword, ErrMalformedDirective)
	}
	return action, nil
}
