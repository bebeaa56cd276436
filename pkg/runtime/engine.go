package runtime

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/expr-lang/expr"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"

	"github.com/textloom/loom/pkg/providers"
	"github.com/textloom/loom/pkg/resolve"
	"github.com/textloom/loom/pkg/schema"
	"github.com/textloom/loom/pkg/scope"
	"github.com/textloom/loom/pkg/transform"
)

// Engine runs workflow documents. One Engine may serve many runs; all
// per-run state (scope, download cache, attempt counters) lives in an
// execution created by Run.
type Engine struct {
	cfg Config
	log *zap.Logger
}

// New creates an engine from the given configuration.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Engine{cfg: cfg, log: cfg.Logger}
}

// execution is the state of one workflow run.
type execution struct {
	eng     *Engine
	log     *zap.Logger
	res     *resolve.Resolver
	cache   *downloadCache
	runID   string
	backend string
	gens    int
}

// Run validates the document, executes the root step and returns its
// projected value. Validation warnings are logged; errors abort the run
// before any step executes.
func (e *Engine) Run(ctx context.Context, wf *schema.Workflow) (*RunResult, error) {
	errs := schema.ValidateWorkflow(wf)
	for _, ve := range errs {
		if ve.Severity == "warning" {
			e.log.Warn("workflow validation", zap.String("path", ve.Path), zap.String("message", ve.Message))
		}
	}
	if schema.HasErrors(errs) {
		return nil, fmt.Errorf("workflow %q is invalid: %v", wf.Meta.Name, errs[0])
	}

	res := resolve.New(e.log)
	if e.cfg.Now != nil {
		res.Now = e.cfg.Now
	}

	x := &execution{
		eng:     e,
		log:     e.log.With(zap.String("workflow", wf.Meta.Name)),
		res:     res,
		cache:   newDownloadCache(),
		runID:   newRunID(),
		backend: wf.Meta.Backend,
	}
	if e.cfg.Backend != "" {
		x.backend = e.cfg.Backend
	}

	sc := scope.New()
	for _, name := range sortedKeys(wf.Meta.Vars) {
		sc.Set(name, wf.Meta.Vars[name])
	}
	for _, name := range sortedKeys(e.cfg.Vars) {
		sc.Set(name, e.cfg.Vars[name])
	}

	started := time.Now()
	x.log.Info("run started", zap.String("run_id", x.runID))

	value, err := x.runStep(ctx, &wf.Root, sc)
	if err != nil {
		x.log.Error("run failed", zap.String("run_id", x.runID), zap.Error(err))
		return nil, err
	}

	result := &RunResult{
		RunID:       x.runID,
		Workflow:    wf.Meta.Name,
		StartedAt:   started,
		EndedAt:     time.Now(),
		Generations: x.gens,
		Value:       value,
	}
	x.trace(&TraceEvent{Type: "run_done", RunID: x.runID, Value: value})
	x.log.Info("run finished",
		zap.String("run_id", x.runID),
		zap.Int("generations", x.gens),
		zap.Duration("elapsed", result.EndedAt.Sub(started)))
	return result, nil
}

// runStep interprets one step: local merge, download resolve, the
// generate-validate loop, child recursion, return projection. It returns
// the step's projected value, or the final scope when no projection is
// declared. A skipped step returns its input scope unchanged.
func (x *execution) runStep(ctx context.Context, step *schema.Step, sc *scope.Scope) (any, error) {
	log := x.log
	if step.ID != "" {
		log = log.With(zap.String("step", step.ID))
	}

	if step.When != "" {
		ok, err := x.evalGuard(step.When, sc)
		if err != nil {
			return nil, fmt.Errorf("step %q guard: %w", step.ID, err)
		}
		if !ok {
			log.Info("step skipped", zap.String("when", step.When))
			return sc, nil
		}
	}
	x.trace(&TraceEvent{Type: "step_start", RunID: x.runID, StepID: step.ID})

	sc = sc.Clone()

	if err := x.mergeLocals(step, sc); err != nil {
		return nil, err
	}
	if err := x.resolveDownloads(ctx, step, sc); err != nil {
		return nil, err
	}
	if step.Prompt != "" {
		if err := x.generateLoop(ctx, step, sc, log); err != nil {
			return nil, err
		}
	}

	for i := range step.Steps {
		child := &step.Steps[i]
		value, err := x.runStep(ctx, child, sc)
		if err != nil {
			return nil, err
		}
		if leaf, ok := value.(string); ok && child.Return != nil {
			sc = leafScope(child.Return.Value, leaf)
		} else {
			sc = valueToScope(value)
		}
	}

	if step.Return != nil {
		value, err := x.project(step.Return, sc)
		if err != nil {
			return nil, err
		}
		x.trace(&TraceEvent{Type: "step_done", RunID: x.runID, StepID: step.ID, Value: value})
		return value, nil
	}
	x.trace(&TraceEvent{Type: "step_done", RunID: x.runID, StepID: step.ID})
	return sc, nil
}

// mergeLocals binds local declarations over the inherited scope, raw first
// so that declarations may reference each other, then resolves each value
// against the merged map.
func (x *execution) mergeLocals(step *schema.Step, sc *scope.Scope) error {
	for i := range step.Vars {
		v := &step.Vars[i]
		if v.Kind == schema.VarLocal {
			sc.Set(v.Name, v.Value)
		}
	}
	for i := range step.Vars {
		v := &step.Vars[i]
		if v.Kind != schema.VarLocal {
			continue
		}
		resolved, err := x.res.Resolve(v.Value, sc)
		if err != nil {
			return fmt.Errorf("variable %q: %w", v.Name, err)
		}
		sc.Set(v.Name, resolved)
	}
	return nil
}

// resolveDownloads fetches each downloaded declaration in order, caching by
// resolved locator for the lifetime of the run. Fetch failures bind the
// sentinel placeholder instead of failing the step.
func (x *execution) resolveDownloads(ctx context.Context, step *schema.Step, sc *scope.Scope) error {
	for i := range step.Vars {
		v := &step.Vars[i]
		if v.Kind != schema.VarDownloaded {
			continue
		}
		locator, err := x.res.Resolve(v.Source, sc)
		if err != nil {
			return fmt.Errorf("variable %q source: %w", v.Name, err)
		}
		raw := x.cache.fetch(ctx, x.eng.cfg.Retriever, locator, x.log)
		text, err := providers.Postprocess(raw, v.Postprocess, v.MaxLength)
		if err != nil {
			return fmt.Errorf("variable %q: %w", v.Name, err)
		}
		sc.Set(v.Name, text)
	}
	return nil
}

// generateLoop runs the bounded generate-validate loop. Each attempt's
// values overwrite the previous attempt's in the scope; exhausting the
// budget aborts the whole run.
func (x *execution) generateLoop(ctx context.Context, step *schema.Step, sc *scope.Scope, log *zap.Logger) error {
	constraint := schema.BuildOutputConstraint(step.Vars)
	generated := step.Generated()
	maxAttempts := x.eng.cfg.MaxAttempts

	var reason string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		prompt, err := x.res.Resolve(step.Prompt, sc)
		if err != nil {
			return fmt.Errorf("step %q prompt: %w", step.ID, err)
		}
		prompt, err = transform.Apply(prompt)
		if err != nil {
			return fmt.Errorf("step %q prompt: %w", step.ID, err)
		}

		x.gens++
		result, err := x.eng.cfg.Generator.Generate(ctx, x.backendFor(step), prompt, constraint)
		if err != nil {
			return err
		}
		for _, v := range generated {
			if value, ok := result[v.Name]; ok {
				sc.Set(v.Name, value)
			}
		}

		ok, why, err := x.validateAttempt(ctx, step, sc)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		reason = why
		log.Warn("attempt rejected",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.String("reason", why))
		x.trace(&TraceEvent{Type: "attempt_failed", RunID: x.runID, StepID: step.ID, Attempt: attempt, Reason: why})
	}
	return &RetryExhaustedError{StepID: step.ID, Attempts: maxAttempts, Reason: reason}
}

func (x *execution) backendFor(step *schema.Step) string {
	if step.Backend != "" {
		return step.Backend
	}
	return x.backend
}

// evalGuard evaluates a step's when expression against the current scope.
func (x *execution) evalGuard(guard string, sc *scope.Scope) (bool, error) {
	env := sc.Env()
	prog, err := expr.Compile(guard, expr.Env(env), expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return false, err
	}
	out, err := expr.Run(prog, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("guard did not evaluate to a boolean")
	}
	return b, nil
}

// leafScope threads a leaf projection to the next sibling: the names the
// projection template read are rebound to the projected value, so a sibling
// consuming the same variable sees the narrowed form. A template that reads
// nothing binds result.
func leafScope(template, value string) *scope.Scope {
	names := resolve.References(template)
	if len(names) == 0 {
		return scope.FromPairs("result", value)
	}
	sc := scope.New()
	for _, name := range names {
		sc.Set(name, value)
	}
	return sc
}

// valueToScope turns a child step's result into the scope its next sibling
// starts from. A leaf string becomes {result: value}; a structured
// projection becomes a scope of its stringified fields.
func valueToScope(value any) *scope.Scope {
	switch v := value.(type) {
	case *scope.Scope:
		return v
	case string:
		return scope.FromPairs("result", v)
	case *orderedmap.OrderedMap[string, any]:
		sc := scope.New()
		for pair := v.Oldest(); pair != nil; pair = pair.Next() {
			sc.Set(pair.Key, flattenValue(pair.Value))
		}
		return sc
	default:
		return scope.FromPairs("result", fmt.Sprintf("%v", value))
	}
}

func flattenValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case *orderedmap.OrderedMap[string, any]:
		data, err := t.MarshalJSON()
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func (x *execution) trace(event *TraceEvent) {
	if x.eng.cfg.Trace == nil {
		return
	}
	if err := x.eng.cfg.Trace.Write(event); err != nil {
		x.log.Warn("trace write failed", zap.Error(err))
	}
}

func newRunID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return time.Now().UTC().Format("20060102T150405Z")
	}
	return time.Now().UTC().Format("20060102T150405Z") + "-" + hex.EncodeToString(b)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
