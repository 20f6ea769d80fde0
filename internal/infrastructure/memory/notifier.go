package memory

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier stands in for email delivery in local runs. It writes the code
// to the log at debug level so a developer can complete the reset flow.
type LogNotifier struct {
	lg zerolog.Logger
}

func NewLogNotifier(lg zerolog.Logger) *LogNotifier {
	return &LogNotifier{lg: lg.With().Str("component", "log_notifier").Logger()}
}

func (n *LogNotifier) SendVerificationCode(ctx context.Context, email, code string) error {
	n.lg.Debug().Str("to", email).Str("code", code).Msg("verification code (not sent)")
	return nil
}
