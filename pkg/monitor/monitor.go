// Package monitor drives the detection pipeline: one cycle fetches all
// sources, detects, persists, recomputes convergences and dispatches
// alerts. Cycles are strictly serial; an overlapping tick is skipped and
// recorded.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/afrostorm/hazard-monitor/pkg/adapters"
	"github.com/afrostorm/hazard-monitor/pkg/alerts"
	"github.com/afrostorm/hazard-monitor/pkg/convergence"
	"github.com/afrostorm/hazard-monitor/pkg/detectors"
	"github.com/afrostorm/hazard-monitor/pkg/hazard"
	"github.com/afrostorm/hazard-monitor/pkg/models"
	"github.com/afrostorm/hazard-monitor/pkg/store"
)

// cycleBudget is the soft full-cycle budget; exceedance is logged, not
// killed.
const cycleBudget = 10 * time.Minute

// sleepChunk bounds how long the daemon sleeps before re-checking for
// cancellation.
const sleepChunk = time.Minute

// alertProbabilityThreshold promotes a forecast cyclone to an alert even
// below TS strength.
const alertProbabilityThreshold = 0.7

// OutbreakSource supplies the active outbreak set for convergence
// detection.
type OutbreakSource interface {
	Name() string
	Fetch(ctx context.Context, w adapters.Window) ([]hazard.Outbreak, error)
}

// Monitor owns one detection cycle end to end.
type Monitor struct {
	interval  time.Duration
	detectors []detectors.Detector
	outbreaks OutbreakSource
	engine    *convergence.Engine
	pipeline  *alerts.Pipeline
	store     *store.Store

	mu  sync.Mutex // serializes cycles
	now func() time.Time
}

// New wires the scheduler. Detector order fixes persistence order.
func New(interval time.Duration, dets []detectors.Detector, outbreaks OutbreakSource, engine *convergence.Engine, pipeline *alerts.Pipeline, st *store.Store) *Monitor {
	return &Monitor{
		interval:  interval,
		detectors: dets,
		outbreaks: outbreaks,
		engine:    engine,
		pipeline:  pipeline,
		store:     st,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the clock (tests).
func (m *Monitor) SetClock(now func() time.Time) { m.now = now }

// RunOnce executes a single cycle. If a cycle is already in flight the
// tick is skipped and recorded in the run log. Exactly one monitor_runs
// row is produced per invocation.
func (m *Monitor) RunOnce(ctx context.Context) (*models.MonitorRun, error) {
	if !m.mu.TryLock() {
		run := &models.MonitorRun{
			RunTime:    m.now(),
			DataSource: "scheduler",
			Status:     models.RunSkipped,
		}
		if err := m.store.InsertMonitorRun(run); err != nil {
			zap.S().Errorf("Failed to record skipped tick: %v", err)
		}
		zap.S().Warn("Previous cycle still running, tick skipped")
		return run, nil
	}
	defer m.mu.Unlock()

	return m.cycle(ctx)
}

// cycle walks the state machine: fetching -> detecting -> persisting ->
// alerting -> summarizing. Cancellation is honored at state boundaries;
// the active state always completes to persistence quiescence.
func (m *Monitor) cycle(ctx context.Context) (*models.MonitorRun, error) {
	start := m.now()
	window := adapters.WindowEnding(start, m.interval)
	outbreakWindow := adapters.WindowEnding(start, 30*24*time.Hour)

	var notes []string
	sources := make([]string, 0, len(m.detectors)+1)
	for _, d := range m.detectors {
		sources = append(sources, d.Name())
	}
	sources = append(sources, m.outbreaks.Name())

	zap.S().Infof("Cycle starting: window %s .. %s", window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))

	// fetching: overlap I/O across adapters, bounded.
	var outbreakSet []hazard.Outbreak
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(5)
	var noteMu sync.Mutex
	for _, d := range m.detectors {
		d := d
		g.Go(func() error {
			if err := d.Fetch(gctx, window); err != nil {
				noteMu.Lock()
				notes = append(notes, fmt.Sprintf("%s: %v", d.Name(), err))
				noteMu.Unlock()
				zap.S().Warnf("Source %s unavailable this cycle: %v", d.Name(), err)
			}
			return nil
		})
	}
	g.Go(func() error {
		set, err := m.outbreaks.Fetch(gctx, outbreakWindow)
		if err != nil {
			noteMu.Lock()
			notes = append(notes, fmt.Sprintf("%s: %v", m.outbreaks.Name(), err))
			noteMu.Unlock()
			zap.S().Warnf("Source %s unavailable this cycle: %v", m.outbreaks.Name(), err)
			return nil
		}
		outbreakSet = set
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		notes = append(notes, "cancelled after fetch")
		return m.finish(start, sources, notes, 0, 0, models.RunSuccess)
	}

	// detecting: single worker, in detector order.
	batches := make([][]hazard.Hazard, len(m.detectors))
	total := 0
	for i, d := range m.detectors {
		hs, err := d.Detect(start)
		if err != nil {
			notes = append(notes, fmt.Sprintf("%s detect: %v", d.Name(), err))
			zap.S().Warnf("Detector %s failed: %v", d.Name(), err)
			continue
		}
		batches[i] = hs
		total += len(hs)
	}
	zap.S().Infof("Cycle detected %d hazards across %d sources", total, len(m.detectors))

	// persisting: source order preserved; retry once, abort on second
	// failure.
	for i, d := range m.detectors {
		if len(batches[i]) == 0 {
			continue
		}
		if err := d.Persist(m.store, batches[i]); err != nil {
			zap.S().Warnf("Persist for %s failed, retrying: %v", d.Name(), err)
			if err := d.Persist(m.store, batches[i]); err != nil {
				notes = append(notes, fmt.Sprintf("%s persist: %v", d.Name(), err))
				run, ferr := m.finish(start, sources, notes, total, 0, models.RunError)
				if ferr != nil {
					return run, ferr
				}
				return run, fmt.Errorf("cycle aborted: %s persistence failed twice: %w", d.Name(), err)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		notes = append(notes, "cancelled after persistence")
		return m.finish(start, sources, notes, total, 0, models.RunSuccess)
	}

	// alerting: only after every detection of the cycle is persisted.
	alertsSent, alertNotes := m.alert(ctx, batches, outbreakSet, start)
	notes = append(notes, alertNotes...)

	// summarizing
	run, err := m.finish(start, sources, notes, total, alertsSent, models.RunSuccess)
	if err != nil {
		return run, err
	}

	if d := m.now().Sub(start); d > cycleBudget {
		zap.S().Warnf("Cycle exceeded soft budget: %s", d)
	}
	zap.S().Infof("Cycle complete: %d detections, %d alerts in %.1fs", total, alertsSent, run.DurationSeconds)
	return run, nil
}

// alert selects the detections that cross the alert threshold, folds in
// fresh convergences and dispatches them.
func (m *Monitor) alert(ctx context.Context, batches [][]hazard.Hazard, outbreaks []hazard.Outbreak, now time.Time) (int, []string) {
	var notes []string
	candidates := make([]hazard.Hazard, 0)
	cyclones := make([]*hazard.Cyclone, 0)

	for _, batch := range batches {
		for _, h := range batch {
			if c, ok := h.(*hazard.Cyclone); ok {
				cyclones = append(cyclones, c)
			}
			if shouldAlert(h) {
				candidates = append(candidates, h)
			}
		}
	}

	for _, conv := range m.engine.Detect(cyclones, outbreaks, now) {
		if conv.Priority == hazard.PriorityHigh || conv.RiskScore > 0.7 {
			candidates = append(candidates, conv)
		}
	}

	sent := 0
	for _, h := range candidates {
		if ctx.Err() != nil {
			notes = append(notes, "cancelled during alerting")
			break
		}
		results, err := m.pipeline.Dispatch(ctx, h, now)
		if err != nil {
			notes = append(notes, fmt.Sprintf("alert %s: %v", h.HazardID(), err))
			zap.S().Errorf("Alert dispatch for %s failed: %v", h.HazardID(), err)
			continue
		}
		for _, r := range results {
			if !r.Deduped {
				sent++
			}
		}
	}
	return sent, notes
}

// shouldAlert is the per-kind alert threshold.
func shouldAlert(h hazard.Hazard) bool {
	switch v := h.(type) {
	case *hazard.Cyclone:
		return v.ThreatLevel.Rank() >= hazard.ThreatTS.Rank() || v.TrackProbability >= alertProbabilityThreshold
	case *hazard.Flood:
		return v.Severity == hazard.FloodMajor || v.Severity == hazard.FloodCatastrophic
	case *hazard.LandslideRisk:
		return v.RiskLevel == hazard.RiskExtreme
	default:
		return false
	}
}

// finish writes the run-log row. The row itself retries once; a cycle
// must never end without one.
func (m *Monitor) finish(start time.Time, sources, notes []string, detections, alertsSent int, status string) (*models.MonitorRun, error) {
	run := &models.MonitorRun{
		RunTime:         start,
		DataSource:      strings.Join(sources, ","),
		DetectionsCount: detections,
		AlertsSent:      alertsSent,
		DurationSeconds: m.now().Sub(start).Seconds(),
		Status:          status,
	}
	if len(notes) > 0 {
		joined := strings.Join(notes, "; ")
		run.Error = &joined
	}

	if err := m.store.InsertMonitorRun(run); err != nil {
		zap.S().Warnf("Run-log insert failed, retrying: %v", err)
		if err := m.store.InsertMonitorRun(run); err != nil {
			return run, fmt.Errorf("failed to record cycle: %w", err)
		}
	}
	return run, nil
}

// RunContinuous loops at the configured cadence until ctx is cancelled.
// Sleep happens in chunks so cancellation is observed within a minute.
// An in-flight cycle finishes its persistence before return.
func (m *Monitor) RunContinuous(ctx context.Context) {
	zap.S().Infof("Monitor daemon starting, cadence %s", m.interval)

	for {
		if _, err := m.RunOnce(ctx); err != nil {
			zap.S().Errorf("Cycle failed: %v", err)
		}
		if !m.sleep(ctx, m.interval) {
			zap.S().Info("Monitor daemon stopping")
			return
		}
	}
}

// sleep waits for d in chunks, returning false when cancelled.
func (m *Monitor) sleep(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		chunk := remaining
		if chunk > sleepChunk {
			chunk = sleepChunk
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(chunk):
		}
	}
}
