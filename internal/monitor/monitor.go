// Package monitor drives the periodic capture-analyze-reconcile cycle and
// owns the live roster state between cycles.
package monitor

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/classwatch/classwatch-go/internal/capture"
	"github.com/classwatch/classwatch-go/internal/conf"
	"github.com/classwatch/classwatch-go/internal/errors"
	"github.com/classwatch/classwatch-go/internal/logging"
	"github.com/classwatch/classwatch-go/internal/model"
	"github.com/classwatch/classwatch-go/internal/observability"
	"github.com/classwatch/classwatch-go/internal/reconcile"
	"github.com/classwatch/classwatch-go/internal/recognizer"
)

// State is the scheduler lifecycle state. There are exactly two states.
type State string

const (
	StateIdle State = "idle"
	StateLive State = "live"
)

// Sentinel errors for blocked lifecycle transitions.
var (
	// ErrEmptyRoster means Start was called with no enrolled students.
	// This is a blocked transition rather than a system failure.
	ErrEmptyRoster = stderrors.New("cannot start monitoring with an empty roster")

	// ErrAlreadyLive means Start was called while already live.
	ErrAlreadyLive = stderrors.New("monitoring already running")

	// ErrCycleInFlight means a manual cycle was requested while one is running.
	ErrCycleInFlight = stderrors.New("analysis cycle already in flight")
)

// EventType classifies entries in the bounded event log.
type EventType string

const (
	EventMatch EventType = "match"
	EventInfo  EventType = "info"
	EventError EventType = "error"
)

// maxEvents bounds the in-memory event log, newest first.
const maxEvents = 15

// Event is one entry in the monitor's event log.
type Event struct {
	Message string    `json:"message"`
	Time    string    `json:"time"`
	Type    EventType `json:"type"`
}

// CycleError is the single current-error slot. A failed cycle overwrites it;
// a successful cycle clears it.
type CycleError struct {
	Message     string    `json:"message"`
	Category    string    `json:"category"`
	Recoverable bool      `json:"recoverable"`
	NeedsReauth bool      `json:"needsReauth"`
	Time        time.Time `json:"time"`
}

// Monitor owns the roster and runs analysis cycles while live.
//
// The roster is replaced wholesale after each successful cycle; failed cycles
// never touch it. At most one cycle is in flight at any time, enforced by a
// guard flag rather than by the tick cadence.
type Monitor struct {
	settings *conf.Settings
	source   capture.Source
	provider recognizer.Provider
	metrics  *observability.Metrics

	mu       sync.RWMutex
	state    State
	students []model.Student
	faces    []model.Detection
	lastErr  *CycleError
	events   []Event
	stopChan chan struct{}

	inFlight atomic.Bool

	logger      *slog.Logger
	loggerClose func() error
}

// New creates an idle monitor. The metrics instance may be nil.
func New(settings *conf.Settings, source capture.Source, provider recognizer.Provider, metrics *observability.Metrics) *Monitor {
	m := &Monitor{
		settings: settings,
		source:   source,
		provider: provider,
		metrics:  metrics,
		state:    StateIdle,
	}
	m.initLogger()
	return m
}

func (m *Monitor) initLogger() {
	logCfg := m.settings.Monitor.Log
	if logCfg.Enabled && logCfg.Path != "" {
		logger, closer, err := logging.NewFileLogger(logCfg.Path, "monitor", slog.LevelDebug)
		if err == nil {
			m.logger = logger
			m.loggerClose = closer
			return
		}
		logging.Error("Failed to initialize monitor file logger", "error", err)
	}
	if l := logging.ForService("monitor"); l != nil {
		m.logger = l
		return
	}
	m.logger = slog.New(slog.NewJSONHandler(io.Discard, nil)).With("service", "monitor")
}

// Close releases the monitor's log file, stopping monitoring first if needed.
func (m *Monitor) Close() error {
	m.Stop()
	if m.loggerClose != nil {
		return m.loggerClose()
	}
	return nil
}

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Analyzing reports whether an analysis cycle is currently in flight.
func (m *Monitor) Analyzing() bool {
	return m.inFlight.Load()
}

// Students returns a deep copy of the current roster.
func (m *Monitor) Students() []model.Student {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return model.CloneRoster(m.students)
}

// Student returns a copy of one student by id.
func (m *Monitor) Student(id string) (model.Student, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.students {
		if m.students[i].ID == id {
			return m.students[i].Clone(), true
		}
	}
	return model.Student{}, false
}

// AddStudent enrolls a student into the roster.
func (m *Monitor) AddStudent(s model.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students = append(m.students, s)
	m.updateRosterGauges()
}

// RemoveStudent removes a student by id. Returns false if not found.
func (m *Monitor) RemoveStudent(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.students {
		if m.students[i].ID == id {
			m.students = append(m.students[:i], m.students[i+1:]...)
			m.updateRosterGauges()
			return true
		}
	}
	return false
}

// SetRoster replaces the entire roster. Intended for tests and bulk import.
func (m *Monitor) SetRoster(students []model.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students = model.CloneRoster(students)
	m.updateRosterGauges()
}

// Faces returns the latest cycle's detections that carry a bounding box,
// for the live overlay.
func (m *Monitor) Faces() []model.Detection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Detection, len(m.faces))
	copy(out, m.faces)
	return out
}

// LastError returns a copy of the current error slot, or nil after a
// successful cycle.
func (m *Monitor) LastError() *CycleError {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastErr == nil {
		return nil
	}
	e := *m.lastErr
	return &e
}

// ClearError clears the current error slot, e.g. after re-authentication.
func (m *Monitor) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = nil
}

// Events returns the bounded event log, newest first.
func (m *Monitor) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Start transitions Idle -> Live and begins periodic analysis cycles.
// Starting with an empty roster is blocked. A missing recognition credential
// is refused before the first cycle is ever scheduled.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()

	if m.state == StateLive {
		m.mu.Unlock()
		return errors.New(ErrAlreadyLive).
			Component("monitor").
			Category(errors.CategoryState).
			Build()
	}
	if len(m.students) == 0 {
		m.mu.Unlock()
		return errors.New(ErrEmptyRoster).
			Component("monitor").
			Category(errors.CategoryState).
			Build()
	}
	if m.settings.Recognizer.Provider == "gemini" && m.settings.Recognizer.Gemini.APIKey == "" {
		m.mu.Unlock()
		return errors.New(recognizer.ErrNoCredential).
			Component("monitor").
			Category(errors.CategoryConfiguration).
			Build()
	}

	m.state = StateLive
	m.stopChan = make(chan struct{})
	stopChan := m.stopChan
	rosterSize := len(m.students)
	m.mu.Unlock()

	interval := time.Duration(m.settings.Monitor.Interval) * time.Second
	m.logger.Info("Starting live monitoring",
		"interval_seconds", m.settings.Monitor.Interval,
		"students", rosterSize,
	)
	m.addEvent(EventInfo, fmt.Sprintf("Live monitoring started: %d students enrolled.", rosterSize))

	go m.loop(ctx, interval, stopChan)
	return nil
}

// Stop transitions Live -> Idle and cancels the periodic trigger. An
// in-flight cycle is not aborted; its result is dropped when it completes.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state != StateLive {
		m.mu.Unlock()
		return
	}
	m.state = StateIdle
	close(m.stopChan)
	m.stopChan = nil
	m.faces = nil
	m.mu.Unlock()

	m.logger.Info("Stopped live monitoring")
	m.addEvent(EventInfo, "Live monitoring stopped.")
}

// loop runs the periodic trigger until stopped. Ticks that arrive while a
// cycle is in flight are skipped, never queued.
func (m *Monitor) loop(ctx context.Context, interval time.Duration, stopChan <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.RunCycle(ctx); err != nil && stderrors.Is(err, ErrCycleInFlight) {
				m.logger.Debug("Tick skipped, cycle still in flight")
				if m.metrics != nil {
					m.metrics.RecordCycle("skipped")
				}
			}
		case <-stopChan:
			return
		case <-ctx.Done():
			m.Stop()
			return
		}
	}
}

// RunCycle performs one capture-analyze-reconcile-aggregate round. It is
// also the manual retry entry point while live. Errors from the cycle are
// recorded in the error slot; the returned error reflects scheduling
// conditions and the cycle failure cause for callers that want it.
func (m *Monitor) RunCycle(ctx context.Context) error {
	if !m.inFlight.CompareAndSwap(false, true) {
		return errors.New(ErrCycleInFlight).
			Component("monitor").
			Category(errors.CategoryState).
			Build()
	}
	defer m.inFlight.Store(false)

	start := time.Now()

	m.mu.RLock()
	snapshot := model.CloneRoster(m.students)
	m.mu.RUnlock()

	if len(snapshot) == 0 {
		return nil
	}

	frame, err := m.source.Capture(ctx)
	if err != nil {
		m.recordFailure(err)
		return err
	}

	detections, err := m.provider.Analyze(ctx, m.settings, frame, snapshot)
	if err != nil {
		m.recordFailure(err)
		return err
	}

	now := time.Now()
	updated := reconcile.Reconcile(snapshot, detections, now)

	m.applyCycleResult(updated, detections)

	if m.metrics != nil {
		m.metrics.RecordCycle("success")
		m.metrics.RecordCycleDuration(time.Since(start).Seconds())
		m.metrics.RecordDetections(len(detections))
	}

	m.logger.Info("Analysis cycle completed",
		"detections", len(detections),
		"students", len(updated),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	m.addEvent(EventMatch, fmt.Sprintf("Analysis completed: %d faces detected.", len(detections)))
	return nil
}

// applyCycleResult merges the reconciled roster back in and clears the error
// slot. If the monitor left Live while the cycle was in flight, the result
// is dropped. Students enrolled after the snapshot was taken are kept as-is,
// so a concurrent roster change never corrupts state.
func (m *Monitor) applyCycleResult(updated []model.Student, detections []model.Detection) {
	byID := make(map[string]model.Student, len(updated))
	for i := range updated {
		byID[updated[i].ID] = updated[i]
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateLive {
		m.logger.Debug("Dropping cycle result, monitoring no longer live")
		return
	}

	for i := range m.students {
		if u, ok := byID[m.students[i].ID]; ok {
			m.students[i] = u
		}
	}

	m.faces = m.faces[:0]
	for i := range detections {
		if detections[i].Box != nil {
			m.faces = append(m.faces, detections[i])
		}
	}

	m.lastErr = nil
	m.updateRosterGauges()
}

// recordFailure classifies a cycle error, fills the error slot, and
// auto-stops the session on fatal credential errors. The roster from the
// previous successful cycle is retained unchanged.
func (m *Monitor) recordFailure(err error) {
	cycleErr := classify(err)

	m.mu.Lock()
	m.lastErr = &cycleErr
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordCycle("error")
		m.metrics.RecordCycleError(cycleErr.Category)
	}

	m.logger.Error("Analysis cycle failed",
		"category", cycleErr.Category,
		"recoverable", cycleErr.Recoverable,
		"error", err,
	)
	m.addEvent(EventError, cycleErr.Message)

	if !cycleErr.Recoverable {
		m.Stop()
	}
}

// classify maps a cycle error to the user-facing error slot entry.
func classify(err error) CycleError {
	ce := CycleError{
		Message:     "Analysis cycle failed. Please retry.",
		Category:    string(errors.CategoryGeneric),
		Recoverable: true,
		Time:        time.Now(),
	}

	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		ce.Category = ee.GetCategory()
	}

	switch {
	case recognizer.IsAuthError(err) || stderrors.Is(err, recognizer.ErrNoCredential):
		ce.Message = "Recognition service credential is invalid or unauthorized."
		ce.Recoverable = false
		ce.NeedsReauth = true
	case stderrors.Is(err, recognizer.ErrMalformedResponse):
		ce.Message = "Recognition service returned an unusable response. Please retry."
	case stderrors.Is(err, capture.ErrPermissionDenied):
		ce.Message = "Camera access denied."
	case errors.IsCategory(err, errors.CategoryImageCapture):
		ce.Message = "Could not capture a frame from the camera."
	case errors.IsCategory(err, errors.CategoryNetwork):
		ce.Message = "Recognition service unreachable. Please retry."
	}

	return ce
}

// addEvent prepends an entry to the bounded event log.
func (m *Monitor) addEvent(eventType EventType, message string) {
	entry := Event{
		Message: message,
		Time:    time.Now().Format("15:04:05"),
		Type:    eventType,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append([]Event{entry}, m.events...)
	if len(m.events) > maxEvents {
		m.events = m.events[:maxEvents]
	}
}

// updateRosterGauges refreshes roster metrics. Caller must hold m.mu.
func (m *Monitor) updateRosterGauges() {
	if m.metrics == nil {
		return
	}
	present := 0
	for i := range m.students {
		if m.students[i].CurrentStatus != model.ToneNotPresent {
			present++
		}
	}
	m.metrics.UpdateRosterGauges(len(m.students), present)
}
