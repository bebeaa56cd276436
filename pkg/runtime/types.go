// Package runtime interprets a loaded workflow document: it walks the step
// tree, threads the execution scope through local merges, downloads,
// generation attempts and child recursion, and computes the return
// projection that becomes the run's result.
package runtime

import (
	"time"

	"go.uber.org/zap"

	"github.com/textloom/loom/pkg/providers"
)

// DefaultMaxAttempts bounds the generate-validate loop per step:
// one initial attempt plus five retries.
const DefaultMaxAttempts = 6

// Config carries everything a run needs from the hosting process.
type Config struct {
	Generator providers.Generator
	Retriever providers.Retriever
	Logger    *zap.Logger
	Trace     *TraceWriter

	// Backend overrides the document's default backend selector.
	Backend string
	// Vars are operator-supplied bindings merged over the document's
	// meta.vars before the root step runs.
	Vars map[string]string
	// MaxAttempts overrides DefaultMaxAttempts; values below 1 mean default.
	MaxAttempts int
	// Now is the clock used by date builtins; nil means time.Now.
	Now func() time.Time
}

// RunResult is the externally observable outcome of a workflow execution.
type RunResult struct {
	RunID       string    `json:"run_id"`
	Workflow    string    `json:"workflow"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	Generations int       `json:"generations"`
	// Value is the root step's projected value: a string for a leaf
	// projection, an ordered map for a structured one, or the full final
	// scope when the root declares no projection.
	Value any `json:"value"`
}

// TraceEvent is one JSONL record in the run trace.
type TraceEvent struct {
	Type      string    `json:"type"` // step_start, attempt_failed, step_done, run_done
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	StepID    string    `json:"step_id,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Value     any       `json:"value,omitempty"`
}
