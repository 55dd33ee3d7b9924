package provisioning

import (
	"context"
	"io"
	"time"

	"github.com/cost-onprem/installer/internal/config"
	"github.com/cost-onprem/installer/internal/outcome"
)

// Context wraps the run's settings, state and observer for every phase.
type Context struct {
	context.Context
	Settings *config.Settings
	Values   config.ValuesDocument
	State    *ResolvedConfiguration
	Observer Observer
	Timeouts *config.Timeouts

	// DryRun renders instead of applying; Out receives the manifests.
	DryRun bool
	Out    io.Writer

	phase string
}

// NewContext creates the context of one run.
func NewContext(ctx context.Context, settings *config.Settings, values config.ValuesDocument, observer Observer) *Context {
	timeouts := settings.Timeouts
	if timeouts == nil {
		timeouts = config.LoadTimeouts()
	}
	return &Context{
		Context:  ctx,
		Settings: settings,
		Values:   values,
		State:    NewResolvedConfiguration(settings.Namespace, settings.ReleaseName),
		Observer: observer,
		Timeouts: timeouts,
		Out:      io.Discard,
	}
}

// Warn records a soft failure of the current phase.
func (c *Context) Warn(err error) {
	if err == nil {
		return
	}
	c.State.Warnings = append(c.State.Warnings, Warning{Phase: c.phase, Err: err, At: time.Now()})
	LogPhaseWarning(c.Observer, c.phase, err)
}

// handle records soft failures and returns everything else.
func (c *Context) handle(err error) error {
	if outcome.IsSoft(err) {
		c.Warn(err)
		return nil
	}
	return err
}
