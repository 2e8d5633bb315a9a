package services

import (
	"context"
	"log/slog"
)

// MirroredSink commits to a primary sink and then copies the message to each
// mirror. Only a primary failure fails the commit; mirror failures are logged.
type MirroredSink struct {
	primary MessageSink
	mirrors []MessageSink
	logger  *slog.Logger
}

func NewMirroredSink(primary MessageSink, logger *slog.Logger, mirrors ...MessageSink) *MirroredSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MirroredSink{primary: primary, mirrors: mirrors, logger: logger}
}

func (s *MirroredSink) Commit(ctx context.Context, roomID, senderID uint, content string) error {
	if err := s.primary.Commit(ctx, roomID, senderID, content); err != nil {
		return err
	}

	for _, mirror := range s.mirrors {
		if err := mirror.Commit(ctx, roomID, senderID, content); err != nil {
			s.logger.Warn("Failed to mirror message", "roomID", roomID, "senderID", senderID, "error", err)
		}
	}
	return nil
}
