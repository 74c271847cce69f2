package shader

import (
	"fmt"
	"regexp"
	"strings"
)

// pragma.go recognizes the two directive families that make up the template
// wire format:
//
//	#pragma SSV <template_name> [args...]          (template invocation)
//	#pragma SSVTemplate <subcommand> [args...]     (template definition)
//
// plus the PreventLine toggle consumed by the source preprocessor. Directive
// lines support trailing-backslash continuation onto the next physical line.
// The SSVTemplate subcommand grammars are declared here as ArgumentSpec
// schemas and interpreted by the generic binder in args.go.

const (
	pragmaFamilyInvoke      = "SSV"
	pragmaFamilyTemplate    = "SSVTemplate"
	pragmaFamilyPreventLine = "PreventLine"
)

// templateNamePattern restricts template names to safe filename characters.
var templateNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// sourceLine is one logical source line: directive lines ending in a
// backslash are merged with their continuation lines, everything else is a
// single physical line. num is the 1-based physical line the logical line
// starts on.
type sourceLine struct {
	text string
	num  int
}

// logicalLines splits source text into logical lines. Only directive lines
// (first non-blank character '#') participate in backslash continuation;
// regular GLSL lines pass through untouched so user code is never rewritten.
func logicalLines(src string) []sourceLine {
	physical := strings.Split(src, "\n")
	lines := make([]sourceLine, 0, len(physical))
	for i := 0; i < len(physical); i++ {
		text := physical[i]
		num := i + 1
		if strings.HasPrefix(strings.TrimSpace(text), "#") {
			for strings.HasSuffix(strings.TrimRight(text, " \t\r"), "\\") && i+1 < len(physical) {
				text = strings.TrimRight(text, " \t\r")
				text = text[:len(text)-1] + " " + physical[i+1]
				i++
			}
		}
		lines = append(lines, sourceLine{text: text, num: num})
	}
	return lines
}

// pragmaDirective recognizes a "#pragma <family> ..." logical line.
//
// Parameters:
//   - text: the logical line text
//
// Returns:
//   - string: the pragma family keyword (e.g. "SSV", "SSVTemplate")
//   - string: the raw argument text after the family keyword
//   - bool: true if the line is a #pragma directive
func pragmaDirective(text string) (string, string, bool) {
	rest, ok := directiveBody(text)
	if !ok {
		return "", "", false
	}
	keyword, rest := splitDirectiveWord(rest)
	if keyword != "pragma" {
		return "", "", false
	}
	family, rest := splitDirectiveWord(rest)
	if family == "" {
		return "", "", false
	}
	return family, rest, true
}

// directiveBody strips the leading '#' of a directive line, tolerating
// whitespace on either side of it. ok is false for non-directive lines.
func directiveBody(text string) (string, bool) {
	trimmed := strings.TrimLeft(text, " \t")
	if !strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	return strings.TrimLeft(trimmed[1:], " \t"), true
}

// splitDirectiveWord splits the first whitespace-delimited word off a
// directive body, returning the word and the remaining text.
func splitDirectiveWord(text string) (string, string) {
	text = strings.TrimLeft(text, " \t")
	end := strings.IndexAny(text, " \t")
	if end < 0 {
		return text, ""
	}
	return text[:end], strings.TrimLeft(text[end:], " \t")
}

// stripLineComment removes a trailing // comment from directive argument
// text, respecting double quotes so quoted values may contain slashes.
func stripLineComment(text string) string {
	inQuote := false
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '"':
			if i == 0 || text[i-1] != '\\' {
				inQuote = !inQuote
			}
		case '/':
			if !inQuote && i+1 < len(text) && text[i+1] == '/' {
				return text[:i]
			}
		}
	}
	return text
}

// stringPtr returns a pointer to s, for ArgumentSpec defaults.
func stringPtr(s string) *string {
	return &s
}

// Grammars for the SSVTemplate subcommands, interpreted by bindArguments.
// These mirror the original template directive set: "define" names the
// template, "stage" lists pipeline stages, "arg" declares one template
// parameter and "input_primitive" declares the vertex input topology.
var (
	defineGrammar = []*ArgumentSpec{
		{Name: "name", Positional: true, Description: "The name of the shader template. The template's filename should be in the form 'template_<name>.glsl'."},
		{Name: "author", Short: "-a", Variadic: true, Description: "The shader template's author."},
		{Name: "description", Short: "-d", Variadic: true, Description: "A brief description of the shader template and what it does."},
	}

	stageGrammar = []*ArgumentSpec{
		{Name: "shader_stage", Positional: true, Variadic: true, Description: "One or more pipeline stages to compile this template for."},
	}

	argGrammar = []*ArgumentSpec{
		{Name: "name", Positional: true, Description: "The name of the argument to be passed in to the shader; prefixing the name with an underscore implies the --non_positional flag."},
		{Name: "non_positional", Short: "-n", Action: ActionStoreTrue, Description: "Treat this as a non-positional argument; its name is automatically prefixed with '--'."},
		{Name: "action", Short: "-a", Default: stringPtr("store"), Choices: []string{"store", "store_const", "store_true", "store_false"}, Description: "What to do when this argument is encountered."},
		{Name: "default", Variadic: true, Description: "The default value for this argument if it isn't specified."},
		{Name: "choices", Short: "-c", Variadic: true, Description: "Limits the valid values of this argument to those specified here."},
		{Name: "const", Description: "When using the store_const action, specifies what value to store."},
		{Name: "description", Short: "-d", Variadic: true, Description: "A brief description of the argument and the value it expects."},
	}

	inputPrimitiveGrammar = []*ArgumentSpec{
		{Name: "kind", Positional: true, Description: "The OpenGL primitive topology the template's vertex input is assembled with."},
	}
)

// findBound returns the bound argument with the given name, or nil.
func findBound(bound []*boundArgument, name string) *boundArgument {
	for _, b := range bound {
		if b.spec.Name == name {
			return b
		}
	}
	return nil
}

// invocation is one parsed "#pragma SSV <template> [args...]" directive along
// with the surrounding user source split at the directive: the preamble is
// shared by every stage, the body is injected at the template's data sentinel.
type invocation struct {
	// template is the requested template name.
	template string

	// args are the tokenized invocation arguments, to be bound against the
	// resolved template's argument schema.
	args []string

	// line is the 1-based physical line of the pragma directive.
	line int

	// preamble is the user source preceding the directive.
	preamble string

	// body is the user source following the directive.
	body string

	// bodyLine is the 1-based physical line the body starts on.
	bodyLine int
}

// parseInvocation scans raw user shader source for the single top-level
// "#pragma SSV" directive and splits the source around it.
//
// Parameters:
//   - src: the raw user shader source text
//
// Returns:
//   - *invocation: the parsed invocation and source split
//   - error: an error wrapping ErrMalformedDirective if the directive is
//     missing, duplicated, or has no template name
func parseInvocation(src string) (*invocation, error) {
	var inv *invocation
	lines := logicalLines(src)
	for i, ln := range lines {
		family, rest, ok := pragmaDirective(ln.text)
		if !ok || family != pragmaFamilyInvoke {
			continue
		}
		if inv != nil {
			return nil, fmt.Errorf("line %d: shader contains multiple template invocation directives, only one is allowed: %w",
				ln.num, ErrMalformedDirective)
		}
		tokens, err := tokenizeDirectiveArgs(stripLineComment(rest), ln.num)
		if err != nil {
			return nil, err
		}
		if len(tokens) == 0 {
			return nil, fmt.Errorf("line %d: template invocation directive names no template: %w", ln.num, ErrMalformedDirective)
		}
		var preamble, body []string
		for _, p := range lines[:i] {
			preamble = append(preamble, p.text)
		}
		bodyLine := ln.num + 1
		if i+1 < len(lines) {
			bodyLine = lines[i+1].num
		}
		for _, b := range lines[i+1:] {
			body = append(body, b.text)
		}
		inv = &invocation{
			template: tokens[0],
			args:     tokens[1:],
			line:     ln.num,
			preamble: strings.Join(preamble, "\n"),
			body:     strings.Join(body, "\n"),
			bodyLine: bodyLine,
		}
	}
	if inv == nil {
		return nil, fmt.Errorf("shader does not use a shader template, add '#pragma SSV <template_name>' to the shader: %w",
			ErrMalformedDirective)
	}
	return inv, nil
}
