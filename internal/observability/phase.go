package observability

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/depsync/internal/logfields"
)

// Phase times one stage of a run and logs its outcome when ended.
type Phase struct {
	ctx   context.Context
	name  string
	start time.Time
}

// StartPhase tags ctx with the stage name and starts the clock.
func StartPhase(ctx context.Context, name string) (context.Context, *Phase) {
	ctx = WithStage(ctx, name)
	DebugContext(ctx, "Phase started")
	return ctx, &Phase{ctx: ctx, name: name, start: time.Now()}
}

// End logs the elapsed time, at error level when err is non-nil.
func (p *Phase) End(err error, attrs ...slog.Attr) time.Duration {
	d := time.Since(p.start)
	attrs = append(attrs, logfields.Duration(d))
	if err != nil {
		ErrorContext(p.ctx, "Phase failed", append(attrs, logfields.Error(err))...)
		return d
	}
	DebugContext(p.ctx, "Phase finished", attrs...)
	return d
}
