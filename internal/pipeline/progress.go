package pipeline

import (
	"sync"

	"github.com/sells-group/proposal-cli/internal/model"
)

// ProgressTracker projects orchestrator events into a snapshot a UI can
// poll. Writes replace the whole snapshot; readers get a deep copy, so no
// partial update is ever visible.
type ProgressTracker struct {
	mu   sync.RWMutex
	snap model.Progress
}

// NewProgressTracker returns a tracker with every stage pending.
func NewProgressTracker() *ProgressTracker {
	stages := make(map[model.StageName]model.StageState, len(model.StageOrder))
	for _, name := range model.StageOrder {
		stages[name] = model.StageState{Phase: model.StagePending}
	}
	return &ProgressTracker{snap: model.Progress{Stages: stages}}
}

// StageStarted marks a stage in-progress.
func (t *ProgressTracker) StageStarted(name model.StageName, message string) {
	t.set(name, model.StageState{Phase: model.StageInProgress, Message: message})
}

// StageDone marks a stage complete with a summary and a result digest.
func (t *ProgressTracker) StageDone(name model.StageName, message string, digest map[string]int) {
	t.set(name, model.StageState{Phase: model.StageDone, Message: message, Digest: digest})
}

// StageFailed marks a stage failed. Later stages stay pending.
func (t *ProgressTracker) StageFailed(name model.StageName, message string) {
	t.set(name, model.StageState{Phase: model.StageFailed, Message: message})
}

func (t *ProgressTracker) set(name model.StageName, state model.StageState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make(map[model.StageName]model.StageState, len(t.snap.Stages))
	for k, v := range t.snap.Stages {
		next[k] = v
	}
	next[name] = state
	t.snap = model.Progress{Stages: next}
}

// Snapshot returns a copy of the current progress.
func (t *ProgressTracker) Snapshot() model.Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stages := make(map[model.StageName]model.StageState, len(t.snap.Stages))
	for k, v := range t.snap.Stages {
		stages[k] = v
	}
	return model.Progress{Stages: stages}
}
