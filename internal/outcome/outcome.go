// Package outcome classifies component failures into the installer's
// failure taxonomy.
//
// Components return plain errors or a [*Failure]. Only the orchestrator
// decides whether a failure halts the run: soft failures are logged and the
// run advances, everything else aborts. A plain error with no [*Failure] in
// its chain is treated as fatal.
package outcome

import (
	"errors"
	"fmt"
	"strings"
)

// Severity describes how a failure affects the run.
type Severity int

const (
	// SeverityFatal aborts the run with a non-zero exit.
	SeverityFatal Severity = iota
	// SeveritySoft degrades a feature but lets the run continue.
	SeveritySoft
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case SeveritySoft:
		return "soft"
	default:
		return "fatal"
	}
}

// Failure carries the diagnostic context printed for a failed step: which
// strategy was attempted, which fact or object was missing and how to fix it.
type Failure struct {
	Severity    Severity
	Stage       string
	Strategy    string
	Missing     string
	Remediation string
	Err         error
}

// Error implements error.
func (f *Failure) Error() string {
	var parts []string
	if f.Stage != "" {
		parts = append(parts, f.Stage)
	}
	if f.Strategy != "" {
		parts = append(parts, "strategy="+f.Strategy)
	}
	msg := strings.Join(parts, " ")
	if msg != "" {
		msg += ": "
	}
	if f.Err != nil {
		msg += f.Err.Error()
	} else {
		msg += "failed"
	}
	if f.Missing != "" {
		msg += fmt.Sprintf(" (missing: %s)", f.Missing)
	}
	return msg
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Option customises a Failure.
type Option func(*Failure)

// WithStrategy records the resolution strategy that was attempted.
func WithStrategy(strategy string) Option {
	return func(f *Failure) { f.Strategy = strategy }
}

// WithMissing records the fact or object that could not be found.
func WithMissing(missing string) Option {
	return func(f *Failure) { f.Missing = missing }
}

// WithRemediation records a command or action that fixes the failure.
func WithRemediation(remediation string) Option {
	return func(f *Failure) { f.Remediation = remediation }
}

// WithStage records the stage that produced the failure.
func WithStage(stage string) Option {
	return func(f *Failure) { f.Stage = stage }
}

// Fatal wraps err as a fatal failure.
func Fatal(err error, opts ...Option) error {
	return newFailure(SeverityFatal, err, opts...)
}

// Soft wraps err as a soft (warn-and-continue) failure.
func Soft(err error, opts ...Option) error {
	return newFailure(SeveritySoft, err, opts...)
}

func newFailure(sev Severity, err error, opts ...Option) error {
	if err == nil {
		return nil
	}
	f := &Failure{Severity: sev, Err: err}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SeverityOf returns the severity of err. Errors that carry no Failure are fatal.
func SeverityOf(err error) Severity {
	var f *Failure
	if errors.As(err, &f) {
		return f.Severity
	}
	return SeverityFatal
}

// IsSoft reports whether err is a soft failure.
func IsSoft(err error) bool {
	return err != nil && SeverityOf(err) == SeveritySoft
}

// AsFailure extracts the outermost Failure from err, if any.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
