package shader

import (
	"fmt"
	"strconv"
	"strings"
)

// cond_eval.go evaluates #if/#elif controlling expressions against the known
// macro table, following standard preprocessor semantics: defined(X) probes
// the table, object-like macros expand recursively until an integer value is
// reached, and identifiers that expand to nothing (or are simply unknown)
// evaluate to zero. Arithmetic follows C integer semantics.

// evalDepthLimit bounds recursive macro expansion inside conditional
// expressions so self-referential macros terminate.
const evalDepthLimit = 64

// evalCondition evaluates a conditional directive's controlling expression.
//
// Parameters:
//   - expr: the expression text after the directive keyword
//   - line: the 1-based source line, for error reporting
//
// Returns:
//   - bool: true if the expression evaluates nonzero
//   - error: an error wrapping ErrMalformedDirective if the expression does
//     not parse
func (p *sourcePreprocessor) evalCondition(expr string, line int) (bool, error) {
	ev := &condEvaluator{macros: p.macros}
	v, err := ev.evaluate(expr, 0)
	if err != nil {
		return false, fmt.Errorf("line %d: invalid conditional expression %q: %w", line, strings.TrimSpace(expr), ErrMalformedDirective)
	}
	return v != 0, nil
}

// condEvaluator is a small precedence-climbing parser over one expression.
type condEvaluator struct {
	macros map[string]macroDef
	src    string
	pos    int
	depth  int
}

// evaluate parses and evaluates a complete expression.
func (e *condEvaluator) evaluate(src string, depth int) (int64, error) {
	if depth > evalDepthLimit {
		return 0, fmt.Errorf("macro expansion too deep")
	}
	sub := &condEvaluator{macros: e.macros, src: src, depth: depth}
	v, err := sub.parseBinary(0)
	if err != nil {
		return 0, err
	}
	sub.skipSpace()
	if sub.pos < len(sub.src) {
		return 0, fmt.Errorf("trailing tokens at %q", sub.src[sub.pos:])
	}
	return v, nil
}

// binaryOps maps operators to their precedence, low to high. All operators
// are left-associative.
var binaryOps = []struct {
	op   string
	prec int
}{
	{"||", 1},
	{"&&", 2},
	{"|", 3},
	{"^", 4},
	{"&", 5},
	{"==", 6}, {"!=", 6},
	{"<=", 7}, {">=", 7}, {"<", 7}, {">", 7},
	{"<<", 8}, {">>", 8},
	{"+", 9}, {"-", 9},
	{"*", 10}, {"/", 10}, {"%", 10},
}

func (e *condEvaluator) skipSpace() {
	for e.pos < len(e.src) && (e.src[e.pos] == ' ' || e.src[e.pos] == '\t') {
		e.pos++
	}
}

// peekOp returns the longest operator at the cursor with precedence >= min.
func (e *condEvaluator) peekOp(min int) (string, int, bool) {
	e.skipSpace()
	rest := e.src[e.pos:]
	best := ""
	prec := 0
	for _, cand := range binaryOps {
		if cand.prec < min || !strings.HasPrefix(rest, cand.op) {
			continue
		}
		// Prefer the longer operator so "<=" beats "<" and "||" beats "|".
		if len(cand.op) > len(best) {
			best = cand.op
			prec = cand.prec
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, prec, true
}

func (e *condEvaluator) parseBinary(min int) (int64, error) {
	lhs, err := e.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		op, prec, ok := e.peekOp(min)
		if !ok {
			return lhs, nil
		}
		e.pos += len(op)
		rhs, err := e.parseBinary(prec + 1)
		if err != nil {
			return 0, err
		}
		lhs, err = applyBinary(op, lhs, rhs)
		if err != nil {
			return 0, err
		}
	}
}

func applyBinary(op string, lhs, rhs int64) (int64, error) {
	boolVal := func(b bool) int64 {
		if b {
			return 1
		}
		return 0
	}
	switch op {
	case "||":
		return boolVal(lhs != 0 || rhs != 0), nil
	case "&&":
		return boolVal(lhs != 0 && rhs != 0), nil
	case "|":
		return lhs | rhs, nil
	case "^":
		return lhs ^ rhs, nil
	case "&":
		return lhs & rhs, nil
	case "==":
		return boolVal(lhs == rhs), nil
	case "!=":
		return boolVal(lhs != rhs), nil
	case "<":
		return boolVal(lhs < rhs), nil
	case ">":
		return boolVal(lhs > rhs), nil
	case "<=":
		return boolVal(lhs <= rhs), nil
	case ">=":
		return boolVal(lhs >= rhs), nil
	case "<<":
		return lhs << (uint64(rhs) & 63), nil
	case ">>":
		return lhs >> (uint64(rhs) & 63), nil
	case "+":
		return lhs + rhs, nil
	case "-":
		return lhs - rhs, nil
	case "*":
		return lhs * rhs, nil
	case "/":
		if rhs == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return lhs / rhs, nil
	case "%":
		if rhs == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return lhs % rhs, nil
	}
	return 0, fmt.Errorf("unknown operator %q", op)
}

func (e *condEvaluator) parseUnary() (int64, error) {
	e.skipSpace()
	if e.pos >= len(e.src) {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	switch c := e.src[e.pos]; c {
	case '!':
		e.pos++
		v, err := e.parseUnary()
		if err != nil {
			return 0, err
		}
		if v == 0 {
			return 1, nil
		}
		return 0, nil
	case '-':
		e.pos++
		v, err := e.parseUnary()
		return -v, err
	case '+':
		e.pos++
		return e.parseUnary()
	case '~':
		e.pos++
		v, err := e.parseUnary()
		return ^v, err
	case '(':
		e.pos++
		v, err := e.parseBinary(0)
		if err != nil {
			return 0, err
		}
		e.skipSpace()
		if e.pos >= len(e.src) || e.src[e.pos] != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		e.pos++
		return v, nil
	}
	if ident := e.readIdent(); ident != "" {
		if ident == "defined" {
			return e.parseDefined()
		}
		return e.expandIdent(ident)
	}
	return e.parseNumber()
}

// parseDefined handles "defined X" and "defined(X)".
func (e *condEvaluator) parseDefined() (int64, error) {
	e.skipSpace()
	paren := false
	if e.pos < len(e.src) && e.src[e.pos] == '(' {
		paren = true
		e.pos++
		e.skipSpace()
	}
	ident := e.readIdent()
	if ident == "" {
		return 0, fmt.Errorf("defined requires a macro name")
	}
	if paren {
		e.skipSpace()
		if e.pos >= len(e.src) || e.src[e.pos] != ')' {
			return 0, fmt.Errorf("missing closing parenthesis after defined(%s", ident)
		}
		e.pos++
	}
	if _, ok := e.macros[ident]; ok {
		return 1, nil
	}
	return 0, nil
}

// expandIdent resolves an identifier through the macro table. Unknown and
// function-like macros evaluate to zero; object-like macros are evaluated
// recursively so chains like T_RENDER_MODE -> xray -> 1 resolve to integers.
func (e *condEvaluator) expandIdent(ident string) (int64, error) {
	m, ok := e.macros[ident]
	if !ok || m.funcLike {
		return 0, nil
	}
	if strings.TrimSpace(m.value) == "" {
		return 0, nil
	}
	return e.evaluate(m.value, e.depth+1)
}

// readIdent consumes an identifier at the cursor, or returns "".
func (e *condEvaluator) readIdent() string {
	start := e.pos
	for e.pos < len(e.src) {
		c := e.src[e.pos]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (e.pos > start && c >= '0' && c <= '9') {
			e.pos++
			continue
		}
		break
	}
	return e.src[start:e.pos]
}

// parseNumber consumes an integer literal, accepting decimal, octal and hex
// forms with optional u/U/l/L suffixes.
func (e *condEvaluator) parseNumber() (int64, error) {
	start := e.pos
	for e.pos < len(e.src) {
		c := e.src[e.pos]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') || c == 'x' || c == 'X' {
			e.pos++
			continue
		}
		break
	}
	if e.pos == start {
		return 0, fmt.Errorf("unexpected character %q", e.src[e.pos])
	}
	for e.pos < len(e.src) && strings.ContainsRune("uUlL", rune(e.src[e.pos])) {
		e.pos++
	}
	lit := strings.TrimRight(e.src[start:e.pos], "uUlL")
	v, err := strconv.ParseInt(lit, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer literal %q", lit)
	}
	return v, nil
}
