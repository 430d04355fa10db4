package pattern

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Condition is a compiled step expression.
//
// The zero Condition, and the one compiled from an empty expression,
// matches every event.
type Condition struct {
	src  string
	root node
}

// Compile parses expr. Literal regular expressions on the right of
// "matches" are compiled here so mistakes surface before any event arrives.
func Compile(expr string) (*Condition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &Condition{}, nil
	}
	root, err := parse(expr)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, err)
	}
	return &Condition{src: expr, root: root}, nil
}

// MustCompile is Compile that panics on error.
func MustCompile(expr string) *Condition {
	c, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the source expression.
func (c *Condition) String() string {
	if c == nil {
		return ""
	}
	return c.src
}

// Eval reports whether vars satisfy the condition.
func (c *Condition) Eval(vars map[string]any) bool {
	if c == nil || c.root == nil {
		return true
	}
	return c.root.eval(vars)
}

type node interface {
	eval(vars map[string]any) bool
}

type orNode struct{ left, right node }

func (n orNode) eval(vars map[string]any) bool { return n.left.eval(vars) || n.right.eval(vars) }

type andNode struct{ left, right node }

func (n andNode) eval(vars map[string]any) bool { return n.left.eval(vars) && n.right.eval(vars) }

type notNode struct{ inner node }

func (n notNode) eval(vars map[string]any) bool { return !n.inner.eval(vars) }

type truthNode struct{ value operand }

func (n truthNode) eval(vars map[string]any) bool { return isTruthy(n.value.resolve(vars)) }

type compareNode struct {
	left, right operand
	op          func(l, r any) bool
}

func (n compareNode) eval(vars map[string]any) bool {
	return n.op(n.left.resolve(vars), n.right.resolve(vars))
}

// operand is a literal or a field reference. Identifiers that are not
// present in vars resolve to their own name, so `key == a` compares with "a".
type operand struct {
	literal any
	name    string
}

func (o operand) resolve(vars map[string]any) any {
	if o.name == "" {
		return o.literal
	}
	if v, ok := vars[o.name]; ok {
		return v
	}
	return o.name
}

// Comparison operators in the order they are tried. Two-character
// operators come first so ">=" is not read as ">".
var comparisons = []struct {
	token string
	fn    func(l, r any) bool
}{
	{" contains ", func(l, r any) bool { return strings.Contains(toString(l), toString(r)) }},
	{"==", func(l, r any) bool { return toString(l) == toString(r) }},
	{"!=", func(l, r any) bool { return toString(l) != toString(r) }},
	{">=", func(l, r any) bool { return toFloat64(l) >= toFloat64(r) }},
	{"<=", func(l, r any) bool { return toFloat64(l) <= toFloat64(r) }},
	{">", func(l, r any) bool { return toFloat64(l) > toFloat64(r) }},
	{"<", func(l, r any) bool { return toFloat64(l) < toFloat64(r) }},
}

func parse(expr string) (node, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty operand")
	}
	if unterminated(expr) {
		return nil, fmt.Errorf("unterminated string literal")
	}

	if l, r, ok := splitOutsideQuotes(expr, " or "); ok {
		return binary(l, r, func(a, b node) node { return orNode{a, b} })
	}
	if l, r, ok := splitOutsideQuotes(expr, " and "); ok {
		return binary(l, r, func(a, b node) node { return andNode{a, b} })
	}
	if rest, ok := strings.CutPrefix(expr, "not "); ok {
		inner, err := parse(rest)
		if err != nil {
			return nil, err
		}
		return notNode{inner}, nil
	}
	if rest, ok := strings.CutPrefix(expr, "!"); ok && !strings.HasPrefix(rest, "=") {
		inner, err := parse(rest)
		if err != nil {
			return nil, err
		}
		return notNode{inner}, nil
	}

	if l, r, ok := splitOutsideQuotes(expr, " matches "); ok {
		return parseMatches(l, r)
	}
	for _, c := range comparisons {
		if l, r, ok := splitOutsideQuotes(expr, c.token); ok {
			left, right := strings.TrimSpace(l), strings.TrimSpace(r)
			if left == "" || right == "" {
				return nil, fmt.Errorf("operator %q needs two operands", strings.TrimSpace(c.token))
			}
			return compareNode{left: parseOperand(left), right: parseOperand(right), op: c.fn}, nil
		}
	}
	return truthNode{parseOperand(expr)}, nil
}

func binary(l, r string, mk func(a, b node) node) (node, error) {
	left, err := parse(l)
	if err != nil {
		return nil, err
	}
	right, err := parse(r)
	if err != nil {
		return nil, err
	}
	return mk(left, right), nil
}

func parseMatches(l, r string) (node, error) {
	left, right := strings.TrimSpace(l), strings.TrimSpace(r)
	if left == "" || right == "" {
		return nil, fmt.Errorf(`operator "matches" needs two operands`)
	}
	rhs := parseOperand(right)
	if rhs.name == "" {
		re, err := regexp.Compile(toString(rhs.literal))
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		return compareNode{left: parseOperand(left), right: rhs, op: func(l, _ any) bool {
			return re.MatchString(toString(l))
		}}, nil
	}
	return compareNode{left: parseOperand(left), right: rhs, op: func(l, r any) bool {
		matched, err := regexp.MatchString(toString(r), toString(l))
		return err == nil && matched
	}}, nil
}

// splitOutsideQuotes splits s at the first sep that is not inside a quoted
// string literal.
func splitOutsideQuotes(s, sep string) (string, string, bool) {
	var quote byte
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case strings.HasPrefix(s[i:], sep):
			return s[:i], s[i+len(sep):], true
		}
	}
	return "", "", false
}

func unterminated(s string) bool {
	var quote byte
	for i := 0; i < len(s); i++ {
		switch {
		case quote != 0 && s[i] == quote:
			quote = 0
		case quote == 0 && (s[i] == '\'' || s[i] == '"'):
			quote = s[i]
		}
	}
	return quote != 0
}

func parseOperand(s string) operand {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '\'' && s[len(s)-1] == '\'' || s[0] == '"' && s[len(s)-1] == '"') {
		return operand{literal: s[1 : len(s)-1]}
	}
	switch strings.ToLower(s) {
	case "true":
		return operand{literal: true}
	case "false":
		return operand{literal: false}
	case "null", "nil":
		return operand{literal: nil}
	}
	var num json.Number
	if err := json.Unmarshal([]byte(s), &num); err == nil {
		if i, err := num.Int64(); err == nil {
			return operand{literal: i}
		}
		if f, err := num.Float64(); err == nil {
			return operand{literal: f}
		}
	}
	return operand{name: s}
}

func toString(v any) string {
	if v == nil {
		return "<nil>"
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toFloat64(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case int32:
		return float64(val)
	case json.Number:
		f, _ := val.Float64()
		return f
	case string:
		var f float64
		_, _ = fmt.Sscanf(val, "%f", &f)
		return f
	default:
		return 0
	}
}

func isTruthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	default:
		return true
	}
}
