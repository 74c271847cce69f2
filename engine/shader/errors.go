package shader

import "errors"

// Sentinel errors returned by the shader preprocessing pipeline. Every error
// produced by this package wraps exactly one of these, so callers can classify
// failures with errors.Is without parsing messages. Errors raised while a
// specific template or pipeline stage was being processed are additionally
// wrapped with that context by the PreProcessor.
var (
	// ErrMalformedDirective indicates a syntax error in a #pragma directive,
	// such as an unterminated string literal or an unbalanced conditional.
	ErrMalformedDirective = errors.New("malformed directive")

	// ErrInvalidTemplateName indicates a template define whose name contains
	// characters outside [A-Za-z0-9_-].
	ErrInvalidTemplateName = errors.New("invalid template name")

	// ErrUnknownStage indicates a stage keyword that is not one of the
	// supported pipeline stages.
	ErrUnknownStage = errors.New("unknown shader stage")

	// ErrUnknownInputPrimitive indicates an input_primitive keyword that is
	// not a supported OpenGL primitive topology.
	ErrUnknownInputPrimitive = errors.New("unknown input primitive")

	// ErrUnexpectedValue indicates a value supplied to an argument whose
	// action does not accept one (store_true, store_false, store_const), or a
	// stray positional token with no argument left to bind it to.
	ErrUnexpectedValue = errors.New("unexpected argument value")

	// ErrInvalidDefault indicates a declared default that violates the
	// argument's own schema, e.g. a default outside the declared choices or
	// an explicit default on a boolean-action argument.
	ErrInvalidDefault = errors.New("invalid default value")

	// ErrUnknownArgument indicates a --name token that matches no declared
	// argument of the template.
	ErrUnknownArgument = errors.New("unknown argument")

	// ErrMissingArgument indicates a required positional argument that
	// received no value and declares no default.
	ErrMissingArgument = errors.New("missing required argument")

	// ErrInvalidChoice indicates a supplied value outside the argument's
	// declared choices.
	ErrInvalidChoice = errors.New("invalid choice")

	// ErrTemplateNotFound indicates that a template name matched none of the
	// resolution tiers (inline templates, user template directory, built-in
	// templates).
	ErrTemplateNotFound = errors.New("template not found")

	// ErrIncludeNotFound indicates an #include file that matched none of the
	// resolution tiers.
	ErrIncludeNotFound = errors.New("include not found")

	// ErrCircularInclude indicates a file that transitively includes itself.
	ErrCircularInclude = errors.New("circular include")
)
