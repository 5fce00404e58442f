// Package batch drives multi-package installation runs. Artifacts are
// queued in submission order and processed one at a time; each attempt
// is verified, installed and recorded before the next one starts.
package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ebarretto/sideload/internal/backends"
	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
	"github.com/ebarretto/sideload/internal/verify"
)

// State identifies where a batch run currently stands
type State string

const (
	// StateIdle means no run has started yet
	StateIdle State = "idle"
	// StateRunning means items are being processed
	StateRunning State = "running"
	// StateCompleted means the whole queue was attempted
	StateCompleted State = "completed"
	// StateCancelledByUser means the cancellation flag stopped the run
	// between two items
	StateCancelledByUser State = "cancelled"
	// StateAbortedOnFailure means a failure was not waved through and
	// the remaining items were never attempted
	StateAbortedOnFailure State = "aborted"
)

// Installer performs a single installation. *backends.Registry
// satisfies it.
type Installer interface {
	Install(ctx context.Context, artifact core.PackageArtifact, opts core.InstallOptions) core.InstallOutcome
}

// Verifier checks a single artifact before installation.
// *verify.Verifier satisfies it.
type Verifier interface {
	VerifyPackage(ctx context.Context, artifact core.PackageArtifact, req core.VerificationRequest) (core.VerificationResult, error)
}

// Recorder persists one attempt record per processed item. core.Ledger
// satisfies it.
type Recorder interface {
	Append(ctx context.Context, entry core.HistoryEntry) error
}

// ContinueFunc decides whether the run should keep going after a
// failed item. It receives the artifact that failed and its outcome.
// Returning false aborts the run.
type ContinueFunc func(artifact core.PackageArtifact, outcome core.InstallOutcome) bool

// RunOptions tunes a single batch run
type RunOptions struct {
	// Verify enables the pre-install verification step. Manual
	// checksums are never forwarded here: comparing one expected
	// digest against many files would be meaningless.
	Verify bool

	// VerifySignature additionally requires a signature check for
	// every item
	VerifySignature bool

	// InstallTimeout overrides the configured per-item timeout when
	// positive
	InstallTimeout time.Duration

	// Progress receives batch and per-item notifications
	Progress core.ProgressSink

	// OnContinue is consulted when an item fails and more items
	// remain. A nil func aborts on the first failure.
	OnContinue ContinueFunc
}

// ItemResult captures one attempted item
type ItemResult struct {
	Artifact core.PackageArtifact
	Outcome  core.InstallOutcome
}

// RunResult summarizes a finished batch run
type RunResult struct {
	State     State
	Results   []ItemResult
	Attempted int
	Succeeded int
	Failed    int
}

// Orchestrator owns the queue and the batch state machine. A single
// orchestrator can execute successive runs; each run drains the queue.
type Orchestrator struct {
	cfg       *config.Config
	log       *zerolog.Logger
	verifier  Verifier
	installer Installer
	ledger    Recorder
	queue     *Queue

	mu        sync.Mutex
	state     State
	cancelled atomic.Bool
}

// New creates an orchestrator with the default verifier and backend
// registry. The ledger records every attempt.
func New(cfg *config.Config, log *zerolog.Logger, ledger Recorder) *Orchestrator {
	return NewWithDeps(cfg, log, verify.New(cfg, log), backends.NewRegistry(cfg, log), ledger)
}

// NewWithDeps creates an orchestrator with explicit collaborators.
// Used in tests.
func NewWithDeps(cfg *config.Config, log *zerolog.Logger, verifier Verifier, installer Installer, ledger Recorder) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		log:       log,
		verifier:  verifier,
		installer: installer,
		ledger:    ledger,
		queue:     NewQueue(),
		state:     StateIdle,
	}
}

// Queue exposes the pending-item queue for Add and RemoveAt calls
func (o *Orchestrator) Queue() *Queue {
	return o.queue
}

// State reports the current state. After a run it holds the terminal
// state until the next Run call.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Cancel requests a cooperative stop. The flag is polled between
// items, never during one: the item in flight always finishes and is
// recorded.
func (o *Orchestrator) Cancel() {
	o.cancelled.Store(true)
}

// Run processes the queued artifacts in FIFO order. Every attempted
// item is appended to the ledger, success or not. When an item fails
// and others remain, OnContinue decides between carrying on and
// aborting; aborted runs leave the remaining items unattempted and
// unrecorded. The queue is cleared and counters reset whichever
// terminal state is reached.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (RunResult, error) {
	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()
		return RunResult{}, core.NewError(core.KindBatchActive, "a batch run is already in progress")
	}
	o.state = StateRunning
	o.mu.Unlock()

	items := o.queue.Items()
	total := len(items)
	result := RunResult{State: StateRunning}
	progress := opts.Progress
	if progress == nil {
		progress = core.NopProgress{}
	}

	o.log.Info().Int("items", total).Msg("starting batch run")

	for i, artifact := range items {
		if o.cancelled.Load() {
			result.State = StateCancelledByUser
			o.log.Warn().Int("attempted", result.Attempted).Int("remaining", total-i).Msg("batch cancelled")
			break
		}

		progress.BatchProgress(i+1, total)

		outcome := o.processItem(ctx, artifact, opts)
		o.record(ctx, artifact, outcome)

		result.Results = append(result.Results, ItemResult{Artifact: artifact, Outcome: outcome})
		result.Attempted++
		if outcome.Success {
			result.Succeeded++
		} else {
			result.Failed++
			if i < total-1 && !o.shouldContinue(opts, artifact, outcome) {
				result.State = StateAbortedOnFailure
				o.log.Warn().Str("package", artifact.Name()).Int("remaining", total-i-1).Msg("batch aborted after failure")
				break
			}
		}
	}

	if result.State == StateRunning {
		result.State = StateCompleted
	}
	o.finish(result.State)

	o.log.Info().
		Str("state", string(result.State)).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Msg("batch run finished")
	return result, nil
}

func (o *Orchestrator) processItem(ctx context.Context, artifact core.PackageArtifact, opts RunOptions) core.InstallOutcome {
	if opts.Verify {
		req := core.VerificationRequest{
			VerifyIntegrity: true,
			VerifySignature: opts.VerifySignature,
		}
		if _, err := o.verifier.VerifyPackage(ctx, artifact, req); err != nil {
			o.log.Error().Err(err).Str("package", artifact.Name()).Msg("verification failed, skipping install")
			return core.InstallOutcome{
				Success: false,
				Message: err.Error(),
				Kind:    core.KindOf(err),
			}
		}
	}

	return o.installer.Install(ctx, artifact, core.InstallOptions{
		Timeout:  opts.InstallTimeout,
		Progress: opts.Progress,
	})
}

func (o *Orchestrator) shouldContinue(opts RunOptions, artifact core.PackageArtifact, outcome core.InstallOutcome) bool {
	if opts.OnContinue == nil {
		return false
	}
	return opts.OnContinue(artifact, outcome)
}

// record appends one attempt to the ledger. A ledger error is logged
// but never interrupts the run.
func (o *Orchestrator) record(ctx context.Context, artifact core.PackageArtifact, outcome core.InstallOutcome) {
	entry := core.HistoryEntry{
		Timestamp: time.Now(),
		Path:      artifact.Path,
		Name:      artifact.Name(),
		Format:    artifact.Format,
		Success:   outcome.Success,
		Message:   outcome.Message,
	}
	if err := o.ledger.Append(ctx, entry); err != nil {
		o.log.Warn().Err(err).Str("package", artifact.Name()).Msg("failed to record attempt in history")
	}
}

func (o *Orchestrator) finish(state State) {
	o.queue.Clear()
	o.cancelled.Store(false)
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}
