package reconciler

import (
	"context"

	"github.com/rs/zerolog"
)

// undoStep reverses one catalog side effect.
type undoStep struct {
	desc string
	fn   func(context.Context) error
}

// undoStack records compensating actions as side effects happen and runs
// them newest first when a later step fails.
type undoStack struct {
	steps  []undoStep
	logger *zerolog.Logger
}

func newUndoStack(logger *zerolog.Logger) *undoStack {
	return &undoStack{logger: logger}
}

func (u *undoStack) push(desc string, fn func(context.Context) error) {
	u.steps = append(u.steps, undoStep{desc: desc, fn: fn})
}

// commit forgets the recorded steps once the side effects are final.
func (u *undoStack) commit() {
	u.steps = nil
}

// unwind runs every step in reverse order on a context that survives the
// caller's cancellation. Failed steps are logged and skipped; it returns
// the number of steps that failed.
func (u *undoStack) unwind(ctx context.Context) int {
	ctx = context.WithoutCancel(ctx)
	failed := 0
	for i := len(u.steps) - 1; i >= 0; i-- {
		step := u.steps[i]
		if err := step.fn(ctx); err != nil {
			failed++
			u.logger.Error().Err(err).Str("undo", step.desc).Msg("Compensating action failed")
			continue
		}
		u.logger.Debug().Str("undo", step.desc).Msg("Compensating action applied")
	}
	u.steps = nil
	return failed
}

func (u *undoStack) size() int {
	return len(u.steps)
}
