package shader

import (
	"fmt"
	"strings"
)

// args.go implements the declarative argument schema shared by the two pragma
// families. Both the fixed "#pragma SSVTemplate <subcommand>" grammars and the
// per-template invocation grammars are expressed as lists of ArgumentSpec
// values and bound by the same generic binder, so positional/optional
// matching, defaults, choices and action semantics live in one place.
// The conventions mirror command-line argument parsing: positionals are
// consumed in declared order, "--name" (or a short "-n" alias) binds an
// optional argument, and boolean-flag actions consume no value token.

// ArgAction describes what binding does when an argument is encountered.
type ArgAction int

const (
	// ActionStore binds the next value token (the default action).
	ActionStore ArgAction = iota

	// ActionStoreConst binds the argument's declared const value and consumes
	// no value token.
	ActionStoreConst

	// ActionStoreTrue binds "true" and consumes no value token. The implied
	// default is "false".
	ActionStoreTrue

	// ActionStoreFalse binds "false" and consumes no value token. The implied
	// default is "true".
	ActionStoreFalse
)

// argActionKeywords maps the --action keywords of the
// "#pragma SSVTemplate arg" directive to their ArgAction values.
var argActionKeywords = map[string]ArgAction{
	"store":       ActionStore,
	"store_const": ActionStoreConst,
	"store_true":  ActionStoreTrue,
	"store_false": ActionStoreFalse,
}

// takesValue reports whether the action consumes a value token at bind time.
func (a ArgAction) takesValue() bool {
	return a == ActionStore
}

// String returns the action keyword as used in template pragma directives.
func (a ArgAction) String() string {
	for k, v := range argActionKeywords {
		if v == a {
			return k
		}
	}
	return fmt.Sprintf("ArgAction(%d)", int(a))
}

// ArgumentSpec declares one parameter of an argument grammar: either a
// parameter of a template (declared by "#pragma SSVTemplate arg") or a
// parameter of one of the fixed SSVTemplate subcommand grammars.
type ArgumentSpec struct {
	// Name is the argument name with any leading underscore stripped.
	// For non-positional arguments the binder matches it as "--name".
	Name string

	// Short is an optional single-dash alias (e.g. "-e"). Auto-generated for
	// template arguments, fixed for the built-in subcommand grammars.
	Short string

	// Positional marks the argument as bound by position rather than by name.
	Positional bool

	// Action selects the binding behavior when the argument is encountered.
	Action ArgAction

	// Default is the value bound when the argument is not supplied. Nil means
	// no default: unsupplied positionals fail, unsupplied optionals are
	// omitted from the bound result.
	Default *string

	// Choices, when non-empty, restricts accepted values to this ordered set.
	// Each choice is also emitted as a compiler-visible named constant during
	// expansion so templates can compare the bound value against it.
	Choices []string

	// Const is the value bound by the store_const action.
	Const string

	// Variadic makes the argument consume every remaining value token instead
	// of exactly one. Only used by the built-in subcommand grammars (e.g.
	// "stage" accepts several stage keywords, "--choices" accepts a list).
	Variadic bool

	// Description documents the argument in generated template usage text.
	Description string
}

// MacroName returns the compiler define name generated for this argument:
// the name uppercased with a "T_" prefix (e.g. "camera_mode" → "T_CAMERA_MODE").
//
// Returns:
//   - string: the generated macro name
func (a *ArgumentSpec) MacroName() string {
	return "T_" + strings.ToUpper(a.Name)
}

// impliedDefault returns the value bound when the argument is unsupplied,
// or nil when the argument has no default at all.
func (a *ArgumentSpec) impliedDefault() *string {
	if a.Default != nil {
		return a.Default
	}
	switch a.Action {
	case ActionStoreTrue:
		v := "false"
		return &v
	case ActionStoreFalse:
		v := "true"
		return &v
	}
	return nil
}

// validateChoice checks one value against the declared choices.
func (a *ArgumentSpec) validateChoice(value string, line int) error {
	if len(a.Choices) == 0 {
		return nil
	}
	for _, c := range a.Choices {
		if c == value {
			return nil
		}
	}
	return fmt.Errorf("line %d: argument %q: value %q is not one of {%s}: %w",
		line, a.Name, value, strings.Join(a.Choices, ", "), ErrInvalidChoice)
}

// boundArgument is one resolved argument after binding: the spec it bound to,
// the value tokens it received (or its default), and whether the value was
// supplied explicitly.
type boundArgument struct {
	spec     *ArgumentSpec
	values   []string
	supplied bool
}

// Value returns the bound value as a single literal, joining variadic value
// tokens with a space.
func (b *boundArgument) Value() string {
	return strings.Join(b.values, " ")
}

// bindArguments resolves a token list against an argument schema, applying
// positional matching, optional lookup, actions, defaults and choice
// validation. The result preserves the schema's declared order so downstream
// define emission is deterministic. Optional arguments with no default that
// were not supplied are omitted from the result.
//
// Parameters:
//   - specs: the argument schema in declared order
//   - tokens: the invocation tokens to bind
//   - line: the 1-based source line of the directive, for error reporting
//
// Returns:
//   - []*boundArgument: the bound arguments in schema order
//   - error: an error wrapping the relevant sentinel on any binding failure
func bindArguments(specs []*ArgumentSpec, tokens []string, line int) ([]*boundArgument, error) {
	byFlag := make(map[string]*ArgumentSpec)
	var positionals []*ArgumentSpec
	for _, s := range specs {
		if s.Positional {
			positionals = append(positionals, s)
			continue
		}
		byFlag["--"+s.Name] = s
		if s.Short != "" {
			byFlag[s.Short] = s
		}
	}

	supplied := make(map[string][]string)
	nextPositional := 0

	bindValue := func(s *ArgumentSpec, inline string, hasInline bool, i int) (int, error) {
		switch s.Action {
		case ActionStoreConst, ActionStoreTrue, ActionStoreFalse:
			if hasInline {
				return i, fmt.Errorf("line %d: argument %q does not accept a value: %w", line, s.Name, ErrUnexpectedValue)
			}
			switch s.Action {
			case ActionStoreConst:
				supplied[s.Name] = []string{s.Const}
			case ActionStoreTrue:
				supplied[s.Name] = []string{"true"}
			case ActionStoreFalse:
				supplied[s.Name] = []string{"false"}
			}
			return i, nil
		}
		if hasInline {
			supplied[s.Name] = []string{inline}
			return i, nil
		}
		if s.Variadic {
			var vals []string
			for i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "--") {
				i++
				vals = append(vals, tokens[i])
			}
			if len(vals) == 0 {
				return i, fmt.Errorf("line %d: argument %q expects at least one value: %w", line, s.Name, ErrMissingArgument)
			}
			supplied[s.Name] = vals
			return i, nil
		}
		if i+1 >= len(tokens) {
			return i, fmt.Errorf("line %d: argument %q expects a value: %w", line, s.Name, ErrMissingArgument)
		}
		i++
		supplied[s.Name] = []string{tokens[i]}
		return i, nil
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if strings.HasPrefix(tok, "--") && len(tok) > 2 {
			name, inline, hasInline := strings.Cut(tok, "=")
			s, ok := byFlag[name]
			if !ok {
				return nil, fmt.Errorf("line %d: unrecognized argument %q: %w", line, name, ErrUnknownArgument)
			}
			var err error
			if i, err = bindValue(s, inline, hasInline, i); err != nil {
				return nil, err
			}
			continue
		}
		if s, ok := byFlag[tok]; ok && strings.HasPrefix(tok, "-") {
			var err error
			if i, err = bindValue(s, "", false, i); err != nil {
				return nil, err
			}
			continue
		}
		// Positional value.
		if nextPositional >= len(positionals) {
			return nil, fmt.Errorf("line %d: unexpected positional value %q: %w", line, tok, ErrUnexpectedValue)
		}
		s := positionals[nextPositional]
		nextPositional++
		if s.Variadic {
			vals := []string{tok}
			for i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") {
				i++
				vals = append(vals, tokens[i])
			}
			supplied[s.Name] = vals
		} else {
			supplied[s.Name] = []string{tok}
		}
	}

	var bound []*boundArgument
	for _, s := range specs {
		vals, ok := supplied[s.Name]
		if ok {
			for _, v := range vals {
				if err := s.validateChoice(v, line); err != nil {
					return nil, err
				}
			}
			bound = append(bound, &boundArgument{spec: s, values: vals, supplied: true})
			continue
		}
		if def := s.impliedDefault(); def != nil {
			bound = append(bound, &boundArgument{spec: s, values: []string{*def}})
			continue
		}
		if s.Positional {
			return nil, fmt.Errorf("line %d: required argument %q was not supplied: %w", line, s.Name, ErrMissingArgument)
		}
		// Unsupplied optional with no default: omitted.
	}
	return bound, nil
}

// shortAliases assigns single-dash short aliases to a template's
// non-positional argument specs, first-come first-served on the first letter
// of the name, matching the original template grammar's behavior. Specs whose
// first letter is already taken get no alias.
func shortAliases(specs []*ArgumentSpec) {
	taken := make(map[string]bool)
	for _, s := range specs {
		if s.Positional || s.Name == "" {
			continue
		}
		short := "-" + s.Name[:1]
		if taken[short] {
			continue
		}
		taken[short] = true
		s.Short = short
	}
}
