package report

import (
	"context"
	"log/slog"

	"github.com/movie-api/moviecheck/internal/verify"
)

// Group fans verification events out to several reporters, in order
type Group struct {
	reporters []verify.Reporter
}

// NewGroup creates a group. Nil reporters are skipped.
func NewGroup(reporters ...verify.Reporter) *Group {
	g := &Group{}
	for _, r := range reporters {
		if r != nil {
			g.reporters = append(g.reporters, r)
		}
	}
	return g
}

func (g *Group) StepStarted(step verify.Step) {
	for _, r := range g.reporters {
		r.StepStarted(step)
	}
}

func (g *Group) StepFinished(res *verify.Result) {
	for _, r := range g.reporters {
		r.StepFinished(res)
	}
}

// ShipReporter ships every finished step through a Shipper. Shipping failures
// are logged and never fail the run.
type ShipReporter struct {
	ctx     context.Context
	shipper Shipper
}

// NewShipReporter creates a reporter shipping with ctx
func NewShipReporter(ctx context.Context, shipper Shipper) *ShipReporter {
	return &ShipReporter{ctx: ctx, shipper: shipper}
}

func (s *ShipReporter) StepStarted(verify.Step) {}

func (s *ShipReporter) StepFinished(res *verify.Result) {
	if err := s.shipper.Ship(s.ctx, res); err != nil {
		slog.Debug("step result not shipped", "step", res.Step, "error", err)
	}
}
