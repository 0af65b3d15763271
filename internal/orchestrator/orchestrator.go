// Package orchestrator drains a list of independent work units through a
// bounded worker pool with checkpointed, resumable progress. Dispatch is
// gated purely by checkpoint contents, so re-running against the same
// checkpoint store is the resume mechanism; there is no separate resume path.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"shuttle/internal/checkpoint"
	"shuttle/internal/document"
	"shuttle/internal/logging"
)

// Result is what one unit's processing yields.
type Result struct {
	Outputs map[string]string
	Final   string
	Note    string
}

// ProcessFunc handles one unit. It may fan out to several external services
// internally; it must be safe to call from multiple workers at once.
type ProcessFunc func(ctx context.Context, unit document.WorkUnit) (Result, error)

// ProgressFunc observes completion counts as units finish.
type ProgressFunc func(completed, total int)

// Options tunes the pool.
type Options struct {
	// Workers bounds concurrent units in flight.
	Workers int
	// Attempts bounds how often a unit's processing is tried before the
	// sentinel output is recorded.
	Attempts int
	// BackoffBase seeds the exponential delay between attempts.
	BackoffBase time.Duration
	// OnProgress, when set, is called after every completed unit.
	OnProgress ProgressFunc
	// Sleep overrides backoff sleeping in tests.
	Sleep func(time.Duration)
}

const (
	defaultWorkers  = 5
	defaultAttempts = 3
	defaultBackoff  = 2 * time.Second
)

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.Attempts <= 0 {
		o.Attempts = defaultAttempts
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = defaultBackoff
	}
	return o
}

// Orchestrator runs units against a checkpoint store.
type Orchestrator struct {
	store  *checkpoint.Store
	opts   Options
	logger *slog.Logger

	mu sync.Mutex // guards cp mutation and persistence together
}

// New builds an orchestrator bound to one checkpoint store.
func New(store *checkpoint.Store, opts Options, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:  store,
		opts:   opts.withDefaults(),
		logger: logging.NewComponentLogger(logger, "orchestrator"),
	}
}

// Run processes every unit not already done in the persisted checkpoint and
// returns the final checkpoint state. Unit-level failures degrade to sentinel
// outputs; only checkpoint persistence failures and cancellation abort the
// run. On cancellation, dispatch stops and in-flight units finish their active
// call: a successful result is still checkpointed, while a unit whose call did
// not succeed stays pending so the next run retries it. ctx.Err is returned
// alongside the checkpoint.
func (o *Orchestrator) Run(ctx context.Context, units []document.WorkUnit, process ProcessFunc) (*checkpoint.Checkpoint, error) {
	cp, err := o.store.Load()
	if err != nil {
		return nil, err
	}

	pending := make([]document.WorkUnit, 0, len(units))
	for _, unit := range units {
		if !cp.Done(unit.ID) {
			pending = append(pending, unit)
		}
	}
	total := len(units)
	if skipped := total - len(pending); skipped > 0 {
		o.logger.Info("resuming from checkpoint",
			logging.Int("completed", skipped),
			logging.Int("total", total),
			logging.String("path", o.store.Path()),
		)
	}
	if len(pending) == 0 {
		return cp, nil
	}

	workers := o.opts.Workers
	if workers > len(pending) {
		workers = len(pending)
	}

	queue := make(chan document.WorkUnit)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var fatalOnce sync.Once
	var fatalErr error
	abort := func(err error) {
		fatalOnce.Do(func() {
			fatalErr = err
			cancel()
		})
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for unit := range queue {
				result, record := o.processWithRetry(runCtx, unit, process)
				if !record {
					continue
				}
				if err := o.commit(cp, unit, result, total); err != nil {
					o.logger.Error("checkpoint write failed; aborting run",
						logging.Error(err),
						logging.Int(logging.FieldUnitID, unit.ID),
					)
					abort(err)
					return
				}
			}
		}()
	}

dispatch:
	for _, unit := range pending {
		select {
		case <-runCtx.Done():
			break dispatch
		case queue <- unit:
		}
	}
	close(queue)
	wg.Wait()

	if fatalErr != nil {
		return cp, fatalErr
	}
	if err := ctx.Err(); err != nil {
		return cp, err
	}
	return cp, nil
}

// processWithRetry applies the attempt budget with exponential backoff. When
// the budget is exhausted the unit degrades to a sentinel result that echoes
// the original text, so one stubborn unit never aborts the run. The active
// call runs under a context shielded from run cancellation, so a dispatched
// unit always finishes its call; cancellation instead stops further attempts,
// and the second return reports false so an interrupted unit is not recorded
// and stays pending for the next run.
func (o *Orchestrator) processWithRetry(ctx context.Context, unit document.WorkUnit, process ProcessFunc) (Result, bool) {
	callCtx := context.WithoutCancel(ctx)
	var lastErr error
	for attempt := 1; attempt <= o.opts.Attempts; attempt++ {
		result, err := process(callCtx, unit)
		if err == nil && strings.TrimSpace(result.Final) != "" {
			return result, true
		}
		if err == nil {
			err = fmt.Errorf("empty output")
		}
		lastErr = err
		o.logger.Warn("unit attempt failed",
			logging.Error(err),
			logging.Int(logging.FieldUnitID, unit.ID),
			logging.Int("attempt", attempt),
			logging.Int("attempts", o.opts.Attempts),
		)
		if ctx.Err() != nil {
			return Result{}, false
		}
		if attempt < o.opts.Attempts {
			o.sleep(ctx, o.backoff(attempt))
		}
	}
	return sentinelResult(unit, o.opts.Attempts, lastErr), true
}

func sentinelResult(unit document.WorkUnit, attempts int, cause error) Result {
	note := fmt.Sprintf("failed after %d attempts", attempts)
	if cause != nil {
		note = fmt.Sprintf("%s: %v", note, cause)
	}
	return Result{
		Final: fmt.Sprintf("[untranslated: %s]\n%s", note, unit.Original),
		Note:  note,
	}
}

// commit writes the unit's result into the shared checkpoint under the single
// mutex and persists the whole snapshot synchronously. The critical section
// never spans a network call.
func (o *Orchestrator) commit(cp *checkpoint.Checkpoint, unit document.WorkUnit, result Result, total int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp.SetResult(unit.ID, checkpoint.Entry{
		Page:     unit.Page,
		Original: unit.Original,
		Outputs:  result.Outputs,
		Note:     result.Note,
		Final:    result.Final,
	})
	if err := o.store.Save(cp); err != nil {
		return err
	}
	completed := cp.CompletedCount()
	o.logger.Info("unit complete",
		logging.Int(logging.FieldUnitID, unit.ID),
		logging.Int(logging.FieldPage, unit.Page),
		logging.Int("completed", completed),
		logging.Int("total", total),
	)
	if o.opts.OnProgress != nil {
		o.opts.OnProgress(completed, total)
	}
	return nil
}

func (o *Orchestrator) backoff(attempt int) time.Duration {
	delay := o.opts.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

func (o *Orchestrator) sleep(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	if o.opts.Sleep != nil {
		o.opts.Sleep(delay)
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
