package local

import (
	"context"
	"log/slog"
)

// LogNotifier writes recovery links to the log. It is the delivery channel of
// installs without outbound mail.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendRecovery(ctx context.Context, email, link string) error {
	n.logger.InfoContext(ctx, "password recovery link issued", "email", email, "link", link)
	return nil
}
