package notify

import "go.uber.org/zap"

// LogNotifier surfaces store acknowledgments through the structured log.
type LogNotifier struct {
	log *zap.SugaredLogger
}

func NewLogNotifier(log *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Success(msg string) {
	n.log.Infow("ack", "outcome", "success", "message", msg)
}

func (n *LogNotifier) Error(msg string) {
	n.log.Warnw("ack", "outcome", "error", "message", msg)
}
