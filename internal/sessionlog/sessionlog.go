// Package sessionlog writes per-stage diagnostic records as JSON files.
// The files are write-only from the pipeline's point of view: nothing in
// the system reads them back, they exist for offline inspection of a run.
package sessionlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/proposal-cli/internal/model"
)

// Writer records stage executions under <dir>/<session-id>/, one JSON file
// per stage execution. It is safe for concurrent use.
type Writer struct {
	dir       string
	sessionID string

	mu  sync.Mutex
	seq int
}

// record is the on-disk shape of one stage execution.
type record struct {
	SessionID  string            `json:"session_id"`
	RunID      string            `json:"run_id"`
	RecordedAt time.Time         `json:"recorded_at"`
	Result     model.StageResult `json:"result"`
	Output     any               `json:"output,omitempty"`
}

// New creates a Writer with a fresh session ID and ensures its directory
// exists.
func New(dir string) (*Writer, error) {
	sessionID := fmt.Sprintf("%s-%s",
		time.Now().UTC().Format("20060102-150405"),
		uuid.NewString()[:8],
	)
	sessionDir := filepath.Join(dir, sessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "sessionlog: create session dir")
	}
	return &Writer{dir: sessionDir, sessionID: sessionID}, nil
}

// SessionID returns the writer's session identifier.
func (w *Writer) SessionID() string {
	return w.sessionID
}

// RecordStage writes one stage execution to its own file. File names carry
// a sequence number so directory order matches execution order.
func (w *Writer) RecordStage(runID string, result model.StageResult, output any) error {
	w.mu.Lock()
	w.seq++
	seq := w.seq
	w.mu.Unlock()

	rec := record{
		SessionID:  w.sessionID,
		RunID:      runID,
		RecordedAt: time.Now().UTC(),
		Result:     result,
		Output:     output,
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return eris.Wrap(err, "sessionlog: marshal record")
	}

	name := fmt.Sprintf("%03d-%s-%s.json", seq, runID, result.Name)
	if err := os.WriteFile(filepath.Join(w.dir, name), data, 0o644); err != nil {
		return eris.Wrap(err, "sessionlog: write record")
	}
	return nil
}
