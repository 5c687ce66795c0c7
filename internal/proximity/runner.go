package proximity

import (
	"context"

	"go.uber.org/zap"
)

// Runner keeps discovery going for the life of the process. When a cycle
// fails, Run returns and the radio stays scanning; the runner then waits
// for Restart before running again.
type Runner struct {
	coord    *Coordinator
	ids      IdentitySource
	headings HeadingSource
	log      *zap.Logger
	restart  chan struct{}
}

// NewRunner wires a runner to the coordinator and its collaborators.
func NewRunner(coord *Coordinator, ids IdentitySource, headings HeadingSource, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		coord:    coord,
		ids:      ids,
		headings: headings,
		log:      log,
		restart:  make(chan struct{}),
	}
}

// Serve runs discovery until ctx ends, then stops the radio.
func (r *Runner) Serve(ctx context.Context) error {
	for {
		err := r.coord.Run(ctx, r.ids, r.headings)
		if ctx.Err() != nil {
			return nil
		}
		r.log.Error("discovery stopped, waiting for restart", zap.Error(err))
		select {
		case <-ctx.Done():
			return r.coord.Stop()
		case <-r.restart:
			r.log.Info("restarting discovery")
		}
	}
}

// Restart resumes a runner that is waiting after a failure. It returns
// ErrNotStopped while discovery is still running.
func (r *Runner) Restart() error {
	select {
	case r.restart <- struct{}{}:
		return nil
	default:
		return ErrNotStopped
	}
}
