package initializer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StepError reports the operation that aborted a run and why.
type StepError struct {
	Op    Op    // The failing operation
	Err   error // Cause, wrapping a topology taxonomy error
	Index int   // Position of Op in the plan
}

// Step returns the name of the failing step.
func (e *StepError) Step() string {
	return e.Op.Step()
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed (%s): %v", e.Op.Step(), e.Op, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Result describes a finished run.
type Result struct {
	RunID     string
	Completed []Op
	Duration  time.Duration
}

// Runner applies a plan against a coordinator one operation at a time.
type Runner struct {
	admin  Admin
	logger *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used for per-step logging.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a runner issuing operations through admin.
func NewRunner(admin Admin, opts ...Option) *Runner {
	r := &Runner{
		admin:  admin,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes ops in order. Each operation must finish before the next one
// starts, since later steps depend on the cluster-visible effects of earlier
// ones. The first failure aborts the run and is returned as a *StepError;
// nothing is retried and completed steps are not rolled back. The returned
// Result is non-nil in both cases and lists the steps that completed.
func (r *Runner) Run(ctx context.Context, ops []Op) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	logger := r.logger.With(zap.String("run_id", res.RunID))
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	logger.Info("applying topology", zap.Int("steps", len(ops)))

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			logger.Warn("run canceled", zap.Int("index", i), zap.String("step", op.Step()), zap.Error(err))
			return res, &StepError{Index: i, Op: op, Err: err}
		}

		stepStart := time.Now()
		err := op.Apply(ctx, r.admin)
		if err != nil {
			logger.Error("step failed",
				zap.Int("index", i),
				zap.String("step", op.Step()),
				zap.Stringer("op", op),
				zap.Error(err))
			return res, &StepError{Index: i, Op: op, Err: err}
		}

		logger.Debug("step applied",
			zap.Int("index", i),
			zap.String("step", op.Step()),
			zap.Stringer("op", op),
			zap.Duration("took", time.Since(stepStart)))
		res.Completed = append(res.Completed, op)
	}

	logger.Info("topology applied", zap.Int("steps", len(res.Completed)), zap.Duration("took", time.Since(start)))
	return res, nil
}
