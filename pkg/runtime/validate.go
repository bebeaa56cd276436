package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/textloom/loom/pkg/schema"
	"github.com/textloom/loom/pkg/scope"
)

// validateAttempt judges one generation attempt against the step's
// constraints: explicit required/pattern checks first, then a structural
// recheck of the built constraint (which covers option-list membership),
// then the declared validators. The returned reason describes the first
// failure; a non-nil error is fatal to the run.
func (x *execution) validateAttempt(ctx context.Context, step *schema.Step, sc *scope.Scope) (bool, string, error) {
	generated := step.Generated()

	for _, v := range generated {
		value := sc.Value(v.Name)
		if v.Required && value == "" {
			return false, fmt.Sprintf("required variable %q is empty", v.Name), nil
		}
		if v.Pattern != "" && value != "" {
			matched, err := regexp.MatchString(v.Pattern, value)
			if err != nil {
				return false, "", fmt.Errorf("variable %q pattern: %w", v.Name, err)
			}
			if !matched {
				return false, fmt.Sprintf("variable %q value %q does not match %q", v.Name, value, v.Pattern), nil
			}
		}
	}

	if reason, err := x.recheckConstraint(step, generated, sc); err != nil {
		return false, "", err
	} else if reason != "" {
		return false, reason, nil
	}

	for _, v := range orderValidators(step.Validators) {
		verdict, err := x.judge(ctx, &v, sc)
		if err != nil {
			return false, "", err
		}
		if verdict != v.Expectation() {
			return false, fmt.Sprintf("validator %q answered %q, expected %q", v.Text, verdict, v.Expectation()), nil
		}
	}
	return true, "", nil
}

// recheckConstraint validates the attempt's values against the same schema
// sent to the backend. The backend honors option lists on a best-effort
// basis only, so membership is re-verified here. Returns a non-empty
// reason on rejection.
func (x *execution) recheckConstraint(step *schema.Step, generated []schema.Variable, sc *scope.Scope) (string, error) {
	if len(generated) == 0 {
		return "", nil
	}
	data, err := json.Marshal(schema.BuildOutputConstraint(step.Vars))
	if err != nil {
		return "", fmt.Errorf("marshal constraint: %w", err)
	}
	doc, err := sjsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return "", fmt.Errorf("unmarshal constraint: %w", err)
	}
	c := sjsonschema.NewCompiler()
	if err := c.AddResource("constraint.json", doc); err != nil {
		return "", fmt.Errorf("add constraint resource: %w", err)
	}
	sch, err := c.Compile("constraint.json")
	if err != nil {
		return "", fmt.Errorf("compile constraint: %w", err)
	}

	candidate := make(map[string]any, len(generated))
	for _, v := range generated {
		if value, ok := sc.Get(v.Name); ok {
			candidate[v.Name] = value
		}
	}
	if err := sch.Validate(candidate); err != nil {
		return fmt.Sprintf("result violates output constraint: %v", err), nil
	}
	return "", nil
}

// orderValidators puts pattern validators before AI-judged ones, keeping
// declaration order within each group. Pattern checks are cheap; they
// should fail an attempt before any judgment generation is paid for.
func orderValidators(validators []schema.Validator) []schema.Validator {
	out := make([]schema.Validator, len(validators))
	copy(out, validators)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IsPattern() && !out[j].IsPattern()
	})
	return out
}

// judge evaluates a single validator against the candidate scope and
// returns its yes/no verdict.
func (x *execution) judge(ctx context.Context, v *schema.Validator, sc *scope.Scope) (string, error) {
	text, err := x.res.Resolve(v.Text, sc)
	if err != nil {
		return "", fmt.Errorf("validator text: %w", err)
	}

	if v.IsPattern() {
		matched, err := regexp.MatchString(v.Pattern, text)
		if err != nil {
			return "", fmt.Errorf("validator pattern: %w", err)
		}
		if matched {
			return "yes", nil
		}
		return "no", nil
	}

	// AI-judged: a synthetic single-purpose step re-enters the interpreter
	// with the candidate scope. The step has no validators of its own, so
	// the recursion bottoms out after one level.
	synth := schema.Step{
		ID:     "judge",
		Prompt: text,
		Vars: []schema.Variable{
			{Name: "answer", Kind: schema.VarGenerated, Required: true, Options: []string{"yes", "no"}},
			{Name: "explanation", Kind: schema.VarGenerated},
		},
	}
	result, err := x.runStep(ctx, &synth, sc.Clone())
	if err != nil {
		return "", fmt.Errorf("judge step: %w", err)
	}
	verdictScope, ok := result.(*scope.Scope)
	if !ok {
		return "", fmt.Errorf("judge step returned %T, expected a scope", result)
	}
	verdict := strings.ToLower(strings.TrimSpace(verdictScope.Value("answer")))
	x.log.Debug("validator judged",
		zap.String("verdict", verdict),
		zap.String("explanation", verdictScope.Value("explanation")))
	return verdict, nil
}
