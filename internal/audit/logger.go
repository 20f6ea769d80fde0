package audit

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Logger writes one structured line per auth business event.
type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// failures are logged at warn so they surface in alerting
var warnActions = map[string]bool{
	"login_failed":         true,
	"oauth_rejected":       true,
	"code_verify_failed":   true,
	"code_delivery_failed": true,
	"status_changed":       true,
}

// never written even if a caller passes them
var secretKeys = map[string]bool{
	"password": true,
	"code":     true,
	"token":    true,
}

// Record matches the auth service's audit hook.
func (l *Logger) Record(action string, fields map[string]string) {
	ev := l.log.Info()
	if warnActions[action] {
		ev = l.log.Warn()
	}
	ev = ev.Str("action", action)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if secretKeys[k] {
			continue
		}
		v := fields[k]
		if k == "email" {
			v = maskEmail(v)
		}
		ev = ev.Str(k, v)
	}
	ev.Msg("auth event")
}

// maskEmail partially masks email for privacy in logs
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if len(email) < 5 || at <= 0 {
		return "***"
	}
	if at < 2 {
		return email[:1] + "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}
