package provisioning

import (
	"fmt"
	"time"

	"github.com/cost-onprem/installer/internal/outcome"
)

// Pipeline runs phases strictly in order.
type Pipeline struct {
	Phases  []Phase
	Metrics *RunMetrics
}

// NewPipeline creates a pipeline of phases.
func NewPipeline(phases ...Phase) *Pipeline {
	return &Pipeline{Phases: phases}
}

// Run executes the phases. A soft failure is recorded and the next phase
// runs; any other failure stops the run and is returned as an
// *outcome.Failure naming the phase.
func (p *Pipeline) Run(ctx *Context) error {
	start := time.Now()
	ctx.Observer.Printf("Starting %s with %d phases", ctx.State.ReleaseName, len(p.Phases))

	for i, phase := range p.Phases {
		name := phase.Name()
		ctx.phase = name

		if err := ctx.Err(); err != nil {
			p.Metrics.Finish(false)
			return stageFailure(name, fmt.Errorf("interrupted before %s: %w", name, err))
		}

		phaseStart := time.Now()
		LogPhaseStart(ctx.Observer.WithFields(map[string]string{"step": fmt.Sprintf("%d/%d", i+1, len(p.Phases))}), name)

		err := phase.Provision(ctx)
		elapsed := time.Since(phaseStart)

		switch {
		case err == nil:
			p.Metrics.ObserveStage(name, ResultSuccess, elapsed)
			LogPhaseComplete(ctx.Observer, name, elapsed)
		case outcome.IsSoft(err):
			p.Metrics.ObserveStage(name, ResultSoft, elapsed)
			ctx.Warn(err)
			LogPhaseComplete(ctx.Observer, name, elapsed)
		default:
			p.Metrics.ObserveStage(name, ResultFatal, elapsed)
			p.Metrics.Finish(false)
			failure := stageFailure(name, err)
			LogPhaseFailed(ctx.Observer, name, failure)
			return failure
		}
	}

	p.Metrics.Finish(true)
	ctx.Observer.Printf("Completed in %v with %d warning(s)", time.Since(start).Round(time.Millisecond), len(ctx.State.Warnings))
	return nil
}

// stageFailure returns err as a fatal Failure tagged with the phase,
// keeping the strategy, missing fact and remediation of an inner Failure.
func stageFailure(phase string, err error) *outcome.Failure {
	if f, ok := outcome.AsFailure(err); ok {
		out := *f
		out.Severity = outcome.SeverityFatal
		if out.Stage == "" {
			out.Stage = phase
		}
		return &out
	}
	return &outcome.Failure{Severity: outcome.SeverityFatal, Stage: phase, Err: err}
}
