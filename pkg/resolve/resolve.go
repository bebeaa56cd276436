// Package resolve implements fixed-point ${...} template substitution over an
// execution scope. Expressions are rewritten pass after pass until the text
// stops changing; built-in functions (@rand, @date, @autocamel, @tee) and the
// ${>name} capture suffix can bind new values into the scope as a side effect
// of resolution.
package resolve

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/textloom/loom/pkg/scope"
)

// DefaultMaxPasses bounds the fixed-point loop. Self-referential variable
// chains keep producing new text forever; past this cap resolution fails
// with a *LoopError instead of spinning.
const DefaultMaxPasses = 16

// LoopError is returned when the fixed-point loop exceeds its pass budget.
type LoopError struct {
	Text   string
	Passes int
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("template did not reach a fixed point after %d passes: %q", e.Passes, e.Text)
}

// Resolver rewrites ${...} expressions against a scope.
type Resolver struct {
	Log       *zap.Logger
	MaxPasses int

	// Now is injectable for deterministic @date tests.
	Now func() time.Time
}

// New creates a resolver with defaults. A nil logger disables diagnostics.
func New(log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		Log:       log,
		MaxPasses: DefaultMaxPasses,
		Now:       nowFunc,
	}
}

// Resolve rewrites all ${...} occurrences in text against sc until the result
// stops changing. A reference to a name absent from the scope is logged once
// and left in place; it does not keep the loop alive. Built-ins and captures
// may bind values into sc.
func (r *Resolver) Resolve(text string, sc *scope.Scope) (string, error) {
	if !strings.Contains(text, "${") {
		return text, nil // fast path for literals
	}

	run := &resolution{r: r, sc: sc, missing: make(map[string]bool)}

	maxPasses := r.MaxPasses
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}

	for pass := 0; pass < maxPasses; pass++ {
		out, err := run.pass(text)
		if err != nil {
			return "", err
		}
		if out == text {
			return out, nil
		}
		text = out
	}
	return "", &LoopError{Text: text, Passes: maxPasses}
}

// resolution is the per-call state: diagnostics are deduplicated across
// passes so one Resolve call reports each missing name exactly once.
type resolution struct {
	r       *Resolver
	sc      *scope.Scope
	missing map[string]bool
}

// pass performs one left-to-right rewrite of all resolvable expressions.
func (run *resolution) pass(text string) (string, error) {
	var out strings.Builder
	i := 0
	for {
		start := strings.Index(text[i:], "${")
		if start < 0 {
			out.WriteString(text[i:])
			return out.String(), nil
		}
		start += i
		out.WriteString(text[i:start])

		end, ok := matchBrace(text, start)
		if !ok {
			// Unterminated expression: emit the rest verbatim.
			out.WriteString(text[start:])
			return out.String(), nil
		}
		body := text[start+2 : end]

		// An expression containing a nested ${...} is not ready yet: rewrite
		// its body and let the next pass evaluate the outer expression. If the
		// body cannot change (only unresolvable references remain), the outer
		// token is carried through unchanged and the loop terminates.
		if strings.Contains(body, "${") {
			inner, err := run.pass(body)
			if err != nil {
				return "", err
			}
			out.WriteString("${" + inner + "}")
			i = end + 1
			continue
		}

		value, resolved, err := run.eval(body)
		if err != nil {
			return "", err
		}
		if !resolved {
			out.WriteString(text[start : end+1])
			i = end + 1
			continue
		}

		i = end + 1

		// Trailing capture suffix: ${expr}${>name} additionally binds name to
		// the emitted value for later expressions in this resolution.
		if name, rest, ok := captureSuffix(text[i:]); ok {
			run.sc.Set(name, value)
			i += rest
		}

		out.WriteString(value)
	}
}

// eval evaluates a single brace-free expression body.
// resolved=false means the token is left in place (missing scope name).
func (run *resolution) eval(body string) (value string, resolved bool, err error) {
	if strings.HasPrefix(body, "@") {
		return run.evalBuiltin(body)
	}
	if strings.HasPrefix(body, ">") {
		// A capture token only has meaning as a suffix of another expression.
		run.diagnose("dangling capture token", body)
		return "", false, nil
	}
	v, ok := run.sc.Get(body)
	if !ok {
		run.diagnose("unresolved variable reference", body)
		return "", false, nil
	}
	return v, true, nil
}

func (run *resolution) evalBuiltin(body string) (string, bool, error) {
	parts := strings.Split(body, "|")
	switch parts[0] {
	case "@rand":
		if len(parts) < 2 {
			return "", false, fmt.Errorf("@rand: missing length argument in ${%s}", body)
		}
		charset := ""
		if len(parts) > 2 {
			charset = parts[2]
		}
		v, err := randomString(parts[1], charset)
		if err != nil {
			return "", false, fmt.Errorf("@rand: %w", err)
		}
		return v, true, nil

	case "@date":
		if len(parts) < 2 {
			return "", false, fmt.Errorf("@date: missing format argument in ${%s}", body)
		}
		rel := ""
		if len(parts) > 2 {
			rel = parts[2]
		}
		v, err := formatDate(parts[1], rel, run.r.Now())
		if err != nil {
			return "", false, fmt.Errorf("@date: %w", err)
		}
		return v, true, nil

	case "@autocamel":
		if len(parts) < 2 {
			return "", false, fmt.Errorf("@autocamel: missing name argument in ${%s}", body)
		}
		v, ok := run.sc.Get(parts[1])
		if !ok {
			run.diagnose("unresolved variable reference", parts[1])
			return "", false, nil
		}
		return autoCamel(v), true, nil

	case "@tee":
		return strings.Join(parts[1:], "|"), true, nil

	default:
		return "", false, fmt.Errorf("unknown template builtin %q in ${%s}", parts[0], body)
	}
}

func (run *resolution) diagnose(msg, name string) {
	if run.missing[name] {
		return
	}
	run.missing[name] = true
	run.r.Log.Warn(msg, zap.String("name", name))
}

// matchBrace returns the index of the "}" closing the "${" at start,
// accounting for nested ${...} expressions.
func matchBrace(text string, start int) (int, bool) {
	depth := 1
	for i := start + 2; i < len(text); i++ {
		if strings.HasPrefix(text[i:], "${") {
			depth++
			i++
			continue
		}
		if text[i] == '}' {
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// References returns the scope names a template reads, in first-appearance
// order without duplicates. Builtin invocations and capture targets are not
// references; nested expressions are descended into.
func References(text string) []string {
	var names []string
	seen := make(map[string]bool)
	var scan func(s string)
	scan = func(s string) {
		for i := 0; i < len(s); {
			open := strings.Index(s[i:], "${")
			if open < 0 {
				return
			}
			open += i
			end, ok := matchBrace(s, open)
			if !ok {
				return
			}
			body := s[open+2 : end]
			switch {
			case strings.HasPrefix(body, "@"), strings.HasPrefix(body, ">"):
				scan(body)
			case strings.Contains(body, "${"):
				scan(body)
			default:
				if !seen[body] {
					seen[body] = true
					names = append(names, body)
				}
			}
			i = end + 1
		}
	}
	scan(text)
	return names
}

// captureSuffix parses a leading ${>name} token, returning the capture name
// and the number of bytes consumed.
func captureSuffix(text string) (name string, consumed int, ok bool) {
	if !strings.HasPrefix(text, "${>") {
		return "", 0, false
	}
	end := strings.IndexByte(text, '}')
	if end < 0 {
		return "", 0, false
	}
	name = text[3:end]
	if name == "" || strings.Contains(name, "${") {
		return "", 0, false
	}
	return name, end + 1, true
}
