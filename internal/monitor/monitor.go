// Package monitor owns the chamber's shared runtime state: the latest reading
// written by ingest, and the activity state, session and sampling clock
// advanced by the evaluator tick.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sweeney/chamber-logger/internal/archive"
	"github.com/sweeney/chamber-logger/internal/logic"
	"github.com/sweeney/chamber-logger/internal/metrics"
	"github.com/sweeney/chamber-logger/internal/storage"
)

// Keeper is the keep-alive loop: running while OFF, stopped while ON.
type Keeper interface {
	Start() bool
	Stop() bool
}

// Archiver exports a closed session.
type Archiver interface {
	Archive(ctx context.Context, sess logic.Session) (string, error)
}

// Config holds the timing parameters.
type Config struct {
	LogInterval      time.Duration
	TimeoutOff       time.Duration
	StartupThreshold time.Duration
	SessionLookback  time.Duration
	Location         *time.Location // display timezone; nil means UTC
	Markers          bool           // also write a marker on ON
}

// Monitor is safe for concurrent use. Ingest may run on the transport's
// goroutine while Tick runs on the evaluator's.
type Monitor struct {
	cfg      Config
	store    storage.Store
	archiver Archiver
	keeper   Keeper
	logger   zerolog.Logger

	// ingest cells
	mu       sync.Mutex
	latest   *logic.Reading
	lastSeen time.Time
	newData  bool

	// evaluator state
	evalMu      sync.Mutex
	detector    *logic.Detector
	throttle    *logic.Throttle
	lastArchive string
}

// New creates a Monitor in the OFF state. Call Reconcile before the first Tick.
func New(cfg Config, store storage.Store, archiver Archiver, keeper Keeper, logger zerolog.Logger) *Monitor {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Monitor{
		cfg:      cfg,
		store:    store,
		archiver: archiver,
		keeper:   keeper,
		logger:   logger.With().Str("component", "monitor").Logger(),
		detector: logic.NewDetector(cfg.TimeoutOff),
		throttle: logic.NewThrottle(cfg.LogInterval),
	}
}

// Ingest replaces the latest reading and records its arrival at now.
func (m *Monitor) Ingest(r logic.Reading, now time.Time) {
	now = m.at(now)
	m.mu.Lock()
	m.latest = &r
	m.lastSeen = now
	m.newData = true
	m.mu.Unlock()
}

// at truncates now to the microsecond, the finest resolution every store
// keeps, and moves it to the display zone.
func (m *Monitor) at(now time.Time) time.Time {
	return now.Truncate(time.Microsecond).In(m.cfg.Location)
}

// take reads the ingest cells and clears the new-data flag in one step.
func (m *Monitor) take() (*logic.Reading, time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest, lastSeen, newData := m.latest, m.lastSeen, m.newData
	m.newData = false
	return latest, lastSeen, newData
}

// Reconcile restores the state from the most recent durable record and sets
// the keep-alive accordingly. A stale ON record means the previous process
// died mid-session; that session is archived and closed with an OFF marker.
func (m *Monitor) Reconcile(ctx context.Context, now time.Time) logic.Startup {
	m.evalMu.Lock()
	defer m.evalMu.Unlock()

	now = m.at(now)

	var latest *logic.Mark
	rec, err := m.store.Latest(ctx)
	switch {
	case err == nil:
		mark := rec.Mark()
		latest = &mark
	case errors.Is(err, storage.ErrNotFound):
	default:
		metrics.StoreErrors.WithLabelValues("latest").Inc()
		m.logger.Error().Err(err).Msg("read latest record failed, assuming OFF")
	}

	st := logic.Reconcile(now, latest, m.cfg.StartupThreshold)
	log := m.logger.Info().Str("state", string(st.State)).Str("reason", st.Reason)

	if st.State == logic.StateOn {
		lastSeen := st.Start.In(m.cfg.Location)
		st.Start = m.openSessionStart(ctx, rec).In(m.cfg.Location)
		m.detector.Resume(st.Start)
		m.mu.Lock()
		m.lastSeen = lastSeen
		m.mu.Unlock()
		m.throttle.Reset(now)
		m.keeper.Stop()
		metrics.ChamberOn.Set(1)
		log.Time("session_start", st.Start).Msg("resuming session")
		return st
	}

	log.Msg("starting OFF")
	metrics.ChamberOn.Set(0)
	if st.Recover {
		m.recoverSession(ctx, rec, now)
	}
	m.keeper.Start()
	return st
}

// sessionEndingAt rebuilds the bounds of the session whose last record is latest.
func (m *Monitor) sessionEndingAt(ctx context.Context, latest storage.LogRecord) (logic.Session, bool) {
	end := latest.CreatedAt
	recs, err := m.store.Range(ctx, end.Add(-m.cfg.SessionLookback), end)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("range").Inc()
		m.logger.Error().Err(err).Msg("read open session failed")
		return logic.Session{}, false
	}
	marks := make([]logic.Mark, len(recs))
	for i, r := range recs {
		marks[i] = r.Mark()
	}
	return logic.RecoverSession(marks, m.cfg.TimeoutOff)
}

// openSessionStart returns the start of the session a restart resumes, so a
// later archive also covers the samples written before the restart. It falls
// back to the latest record's time.
func (m *Monitor) openSessionStart(ctx context.Context, latest storage.LogRecord) time.Time {
	if sess, ok := m.sessionEndingAt(ctx, latest); ok {
		return sess.Start
	}
	return latest.CreatedAt
}

func (m *Monitor) recoverSession(ctx context.Context, latest storage.LogRecord, now time.Time) {
	sess, ok := m.sessionEndingAt(ctx, latest)
	if !ok {
		return
	}
	sess.Start = sess.Start.In(m.cfg.Location)
	sess.End = sess.End.In(m.cfg.Location)
	m.logger.Info().Time("start", sess.Start).Time("end", sess.End).Msg("recovering interrupted session")

	m.archive(ctx, sess)
	m.writeMarker(ctx, storage.StatusOff, now)
}

// Tick evaluates the state machine at now and persists a sample when due.
// It returns the transitions that fired. Faults are logged, never returned.
func (m *Monitor) Tick(ctx context.Context, now time.Time) []logic.Event {
	m.evalMu.Lock()
	defer m.evalMu.Unlock()

	now = m.at(now)
	latest, lastSeen, newData := m.take()

	events := m.detector.Process(logic.Input{Time: now, NewData: newData, LastSeen: lastSeen})
	for _, ev := range events {
		switch ev.Type {
		case logic.EventOn:
			m.turnedOn(ctx, ev)
		case logic.EventOff:
			m.turnedOff(ctx, ev)
		}
	}

	if m.detector.State() == logic.StateOn && latest != nil && m.throttle.Due(now) {
		m.sample(ctx, *latest, now)
	}
	return events
}

func (m *Monitor) turnedOn(ctx context.Context, ev logic.Event) {
	metrics.Transitions.WithLabelValues(string(logic.StateOn)).Inc()
	metrics.ChamberOn.Set(1)
	m.logger.Info().Time("session_start", ev.Session.Start).Msg("chamber ON")

	m.throttle.Reset(ev.Timestamp)
	m.keeper.Stop()
	if m.cfg.Markers {
		m.writeMarker(ctx, storage.StatusOn, ev.Timestamp)
	}
}

func (m *Monitor) turnedOff(ctx context.Context, ev logic.Event) {
	metrics.Transitions.WithLabelValues(string(logic.StateOff)).Inc()
	metrics.ChamberOn.Set(0)
	m.logger.Info().
		Time("session_start", ev.Session.Start).
		Time("session_end", ev.Session.End).
		Msg("chamber OFF")

	m.archive(ctx, ev.Session)
	m.keeper.Start()
	m.writeMarker(ctx, storage.StatusOff, ev.Timestamp)
}

func (m *Monitor) archive(ctx context.Context, sess logic.Session) {
	path, err := m.archiver.Archive(ctx, sess)
	switch {
	case err == nil:
		metrics.Archives.WithLabelValues("ok").Inc()
		m.lastArchive = path
	case errors.Is(err, archive.ErrNoRecords):
		metrics.Archives.WithLabelValues("empty").Inc()
		m.logger.Info().Time("start", sess.Start).Msg("nothing to archive")
	case errors.Is(err, archive.ErrExists):
		metrics.Archives.WithLabelValues("exists").Inc()
		m.logger.Warn().Err(err).Msg("archive already written")
	case errors.Is(err, archive.ErrNoSession):
		metrics.Archives.WithLabelValues("skipped").Inc()
		m.logger.Warn().Msg("archive skipped, session has no start")
	default:
		metrics.Archives.WithLabelValues("error").Inc()
		m.logger.Error().Err(err).Msg("archive failed")
	}
}

func (m *Monitor) sample(ctx context.Context, r logic.Reading, now time.Time) {
	rec, err := m.store.Insert(ctx, storage.NewSample(r, now))
	if err != nil {
		// lastWrite stays put so the next tick retries
		metrics.StoreErrors.WithLabelValues("insert").Inc()
		m.logger.Warn().Err(err).Msg("sample write failed")
		return
	}
	m.throttle.Mark(now)
	metrics.SamplesWritten.Inc()
	m.logger.Debug().Int64("id", rec.ID).Time("at", now).Msg("sample written")
}

func (m *Monitor) writeMarker(ctx context.Context, status storage.Status, now time.Time) {
	if _, err := m.store.Insert(ctx, storage.NewMarker(status, now)); err != nil {
		metrics.StoreErrors.WithLabelValues("marker").Inc()
		m.logger.Warn().Err(err).Str("status", string(status)).Msg("status marker write failed")
	}
}

// Snapshot is a view of the evaluator state for status reporting.
type Snapshot struct {
	State       logic.State
	Session     logic.Session // zero while OFF
	Counts      logic.EventCounts
	LastSeen    time.Time
	LastWrite   time.Time
	LastArchive string
}

// Snapshot returns the current evaluator state.
func (m *Monitor) Snapshot() Snapshot {
	m.evalMu.Lock()
	s := Snapshot{
		State:       m.detector.State(),
		Counts:      m.detector.EventCountsSnapshot(),
		LastWrite:   m.throttle.LastWrite(),
		LastArchive: m.lastArchive,
	}
	if sess, ok := m.detector.Session(); ok {
		s.Session = sess
	}
	m.evalMu.Unlock()

	m.mu.Lock()
	s.LastSeen = m.lastSeen.In(m.cfg.Location)
	m.mu.Unlock()
	return s
}
