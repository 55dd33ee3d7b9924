package provisioning

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Logger is the minimal printf-style logging interface.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Observer defines the interface for structured observability during a run.
type Observer interface {
	Logger

	// Event emits a structured event.
	Event(event Event)

	// WithFields returns a new Observer with additional context fields.
	WithFields(fields map[string]string) Observer
}

// Event represents a structured run event.
type Event struct {
	Type      EventType
	Phase     string
	Message   string
	Resource  string
	Timestamp time.Time
	Fields    map[string]string
}

// EventType represents the type of run event.
type EventType string

const (
	EventPhaseStarted   EventType = "phase.started"
	EventPhaseCompleted EventType = "phase.completed"
	EventPhaseFailed    EventType = "phase.failed"
	// EventPhaseWarning is a soft failure; the run continues.
	EventPhaseWarning EventType = "phase.warning"

	EventResourceCreated EventType = "resource.created"
	EventResourceExists  EventType = "resource.exists"
	EventResourceSkipped EventType = "resource.skipped"
	EventResourceDeleted EventType = "resource.deleted"

	// EventPreflightWarning reports an undetected fact.
	EventPreflightWarning EventType = "preflight.warning"
)

// LogrObserver implements Observer on top of a logr.Logger.
type LogrObserver struct {
	log           logr.Logger
	contextFields map[string]string
}

// NewLogrObserver creates an observer that writes through log.
func NewLogrObserver(log logr.Logger) *LogrObserver {
	return &LogrObserver{
		log:           log,
		contextFields: make(map[string]string),
	}
}

// NewLogger returns a console logger writing to w. verbose enables debug
// output.
func NewLogger(w io.Writer, verbose bool) logr.Logger {
	return zap.New(zap.WriteTo(w), zap.ConsoleEncoder(), zap.UseDevMode(verbose))
}

// Printf implements Logger.
func (o *LogrObserver) Printf(format string, v ...interface{}) {
	o.log.Info(fmt.Sprintf(format, v...), o.keysAndValues(nil)...)
}

// Event implements Observer.
func (o *LogrObserver) Event(event Event) {
	kv := []interface{}{"event", string(event.Type)}
	if event.Phase != "" {
		kv = append(kv, "phase", event.Phase)
	}
	if event.Resource != "" {
		kv = append(kv, "resource", event.Resource)
	}
	kv = append(kv, o.keysAndValues(event.Fields)...)

	if event.Type == EventPhaseFailed {
		o.log.Error(nil, event.Message, kv...)
		return
	}
	o.log.Info(event.Message, kv...)
}

// WithFields implements Observer.
func (o *LogrObserver) WithFields(fields map[string]string) Observer {
	newFields := make(map[string]string, len(o.contextFields)+len(fields))
	for k, v := range o.contextFields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return &LogrObserver{log: o.log, contextFields: newFields}
}

// keysAndValues merges the context fields with extra, sorted by key.
func (o *LogrObserver) keysAndValues(extra map[string]string) []interface{} {
	merged := make(map[string]string, len(o.contextFields)+len(extra))
	for k, v := range o.contextFields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		kv = append(kv, k, merged[k])
	}
	return kv
}

// LogPhaseStart logs a phase start event.
func LogPhaseStart(observer Observer, phase string) {
	observer.Event(Event{Type: EventPhaseStarted, Phase: phase, Message: "starting"})
}

// LogPhaseComplete logs a phase completion event.
func LogPhaseComplete(observer Observer, phase string, duration time.Duration) {
	observer.Event(Event{
		Type:    EventPhaseCompleted,
		Phase:   phase,
		Message: fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
	})
}

// LogPhaseWarning logs a soft failure.
func LogPhaseWarning(observer Observer, phase string, err error) {
	observer.Event(Event{Type: EventPhaseWarning, Phase: phase, Message: err.Error()})
}

// LogPhaseFailed logs a phase failure event.
func LogPhaseFailed(observer Observer, phase string, err error) {
	observer.Event(Event{Type: EventPhaseFailed, Phase: phase, Message: fmt.Sprintf("failed: %v", err)})
}

// LogResource logs the provisioning result of one object.
func LogResource(observer Observer, phase string, typ EventType, resourceType, name, detail string) {
	fields := map[string]string{"type": resourceType}
	if detail != "" {
		fields["detail"] = detail
	}
	observer.Event(Event{
		Type:     typ,
		Phase:    phase,
		Resource: name,
		Message:  fmt.Sprintf("%s %s", resourceType, resourceVerb(typ)),
		Fields:   fields,
	})
}

func resourceVerb(typ EventType) string {
	switch typ {
	case EventResourceCreated:
		return "created"
	case EventResourceExists:
		return "already exists"
	case EventResourceDeleted:
		return "deleted"
	default:
		return "skipped"
	}
}
