package main

import (
	"go.uber.org/zap"

	"github.com/sells-group/proposal-cli/internal/pipeline"
	"github.com/sells-group/proposal-cli/internal/sessionlog"
)

// newSessionLogger opens a session log under the configured directory.
// Failures are logged and generation proceeds without per-stage records.
func newSessionLogger() pipeline.SessionLogger {
	session, err := sessionlog.New(cfg.Session.Dir)
	if err != nil {
		zap.L().Warn("session log unavailable, continuing without it", zap.Error(err))
		return nil
	}
	zap.L().Info("session started", zap.String("session_id", session.SessionID()))
	return session
}
