package detector

import "github.com/jonesrussell/feedguard/internal/logger"

// LoggingEffects is the default Effects wiring when no UI collaborator
// is attached: blur requests are logged and exposed through the
// tracker's render state, which the collaborator polls.
type LoggingEffects struct {
	log logger.Logger
}

// NewLoggingEffects creates a LoggingEffects.
func NewLoggingEffects(log logger.Logger) *LoggingEffects {
	return &LoggingEffects{log: log}
}

// RequestBlur logs a blur request.
func (e *LoggingEffects) RequestBlur(postID string) {
	e.log.Info("Blur requested", logger.String("post_id", postID))
}

// RequestUnblur logs an unblur request.
func (e *LoggingEffects) RequestUnblur(postID string) {
	e.log.Info("Unblur requested", logger.String("post_id", postID))
}
