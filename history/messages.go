package history

import (
	"context"
	"log/slog"

	"github.com/poiesic/chatsession/core"
)

// recorder collects the messages of one operation and mirrors each one to
// the service logger as it is added.
type recorder struct {
	ctx      context.Context
	logger   *slog.Logger
	messages core.Messages
}

func (s *DataService) newRecorder(ctx context.Context, op string) *recorder {
	return &recorder{
		ctx:      ctx,
		logger:   s.logger.With("op", op),
		messages: core.Messages{},
	}
}

func (r *recorder) info(format string, args ...any) {
	r.add(core.Info(format, args...))
}

func (r *recorder) warn(format string, args ...any) {
	r.add(core.Warn(format, args...))
}

func (r *recorder) error(format string, args ...any) {
	r.add(core.Error(format, args...))
}

func (r *recorder) add(msg core.LogMessage) {
	r.messages = append(r.messages, msg)
	switch msg.Type {
	case core.MessageTypeError:
		r.logger.ErrorContext(r.ctx, msg.Message)
	case core.MessageTypeWarning:
		r.logger.WarnContext(r.ctx, msg.Message)
	default:
		r.logger.InfoContext(r.ctx, msg.Message)
	}
}

// result returns the collected messages with the given outcome.
func (r *recorder) result(success bool) (core.Messages, bool) {
	return r.messages, success
}
