package shader

import (
	"fmt"
	"strings"
)

// tokenizer.go splits the argument text of a single #pragma directive into
// discrete tokens. Tokenization honors double-quoted segments (so argument
// values can contain whitespace, e.g. GLSL expressions) and the escape
// sequences \", \n, \t and \\ inside quotes. A quoted segment adjacent to
// unquoted characters is fused into a single token, matching command-line
// shell behavior.
//
// Tokenization is a pure function of its input: re-tokenizing the same text
// always yields the same tokens and has no side effects.

// tokenizeDirectiveArgs splits raw directive argument text into tokens.
// The line parameter is the 1-based source line of the directive and is only
// used for error reporting.
//
// Parameters:
//   - raw: everything after the directive keyword on the logical pragma line
//   - line: the 1-based source line number of the directive
//
// Returns:
//   - []string: the parsed tokens in order, quotes stripped and escapes resolved
//   - error: an error wrapping ErrMalformedDirective on an unterminated quote
func tokenizeDirectiveArgs(raw string, line int) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inToken := false

	flush := func() {
		if inToken {
			tokens = append(tokens, current.String())
			current.Reset()
			inToken = false
		}
	}

	for i := 0; i < len(raw); i++ {
		switch c := raw[i]; c {
		case '"':
			inToken = true
			closed := false
			for i++; i < len(raw); i++ {
				ch := raw[i]
				if ch == '"' {
					closed = true
					break
				}
				if ch != '\\' {
					current.WriteByte(ch)
					continue
				}
				if i+1 >= len(raw) {
					// Trailing backslash, keep it literally.
					current.WriteByte('\\')
					continue
				}
				i++
				switch next := raw[i]; next {
				case '"':
					current.WriteByte('"')
				case 'n':
					current.WriteByte('\n')
				case 't':
					current.WriteByte('\t')
				case '\\':
					current.WriteByte('\\')
				default:
					// Unrecognized escape sequences are kept as-is.
					current.WriteByte('\\')
					current.WriteByte(next)
				}
			}
			if !closed {
				return nil, fmt.Errorf("line %d: unterminated string in directive arguments: %w", line, ErrMalformedDirective)
			}
		case ' ', '\t', '\r', '\n':
			flush()
		default:
			inToken = true
			current.WriteByte(c)
		}
	}
	flush()
	return tokens, nil
}
