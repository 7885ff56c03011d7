package server

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/proposal-cli/internal/model"
	"github.com/sells-group/proposal-cli/internal/pipeline"
)

// RunManager launches generation runs asynchronously and owns their progress
// trackers. Completed runs keep their tracker so clients can still read the
// final snapshot.
type RunManager struct {
	gen *pipeline.Generator

	mu       sync.RWMutex
	trackers map[string]*pipeline.ProgressTracker
}

// NewRunManager creates a RunManager around a Generator.
func NewRunManager(gen *pipeline.Generator) *RunManager {
	return &RunManager{
		gen:      gen,
		trackers: make(map[string]*pipeline.ProgressTracker),
	}
}

// Start records a run and executes it in the background. The run record is
// returned immediately; progress is readable through Tracker.
func (m *RunManager) Start(ctx context.Context, rfq model.RFQ, entity model.Entity) (*model.Run, error) {
	run, err := m.gen.NewRun(ctx, rfq, entity)
	if err != nil {
		return nil, err
	}

	tracker := pipeline.NewProgressTracker()
	m.mu.Lock()
	m.trackers[run.ID] = tracker
	m.mu.Unlock()

	// The pipeline outlives the request; it stops with the server's
	// context, not the caller's.
	bg := context.WithoutCancel(ctx)
	go func() {
		if _, err := m.gen.Execute(bg, run, tracker); err != nil {
			zap.L().Error("server: generation run failed",
				zap.String("run_id", run.ID),
				zap.Error(err),
			)
		}
	}()

	return run, nil
}

// Tracker returns the progress tracker for a run, if the run was started by
// this manager instance.
func (m *RunManager) Tracker(runID string) (*pipeline.ProgressTracker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tracker, ok := m.trackers[runID]
	return tracker, ok
}
