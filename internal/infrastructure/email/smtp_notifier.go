package email

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// ErrPermanent marks failures a retry will not fix (bad address, rejected auth).
var ErrPermanent = errors.New("permanent smtp failure")

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
	Insecure bool
	// CodeTTL is only used for the expiry line in the message body.
	CodeTTL time.Duration
}

// SMTPNotifier mails verification codes directly.
type SMTPNotifier struct {
	lg zerolog.Logger

	host     string
	port     int
	user     string
	pass     string
	from     string
	insecure bool
	codeTTL  time.Duration

	timeout time.Duration
}

func NewSMTPNotifier(cfg SMTPConfig, lg zerolog.Logger) *SMTPNotifier {
	ttl := cfg.CodeTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SMTPNotifier{
		lg:       lg.With().Str("component", "smtp_notifier").Logger(),
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.Username,
		pass:     cfg.Password,
		from:     cfg.From,
		insecure: cfg.Insecure,
		codeTTL:  ttl,
		timeout:  cfg.Timeout,
	}
}

func (s *SMTPNotifier) SendVerificationCode(ctx context.Context, toEmail, code string) error {
	m, err := s.codeMessage(toEmail, code)
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, m)
}

func (s *SMTPNotifier) codeMessage(to, code string) (*mail.Msg, error) {
	minutes := int(s.codeTTL.Minutes())
	subject := "Your password reset code"
	text := fmt.Sprintf(
		"Use this code to reset your password:\n\n%s\n\nThe code expires in %d minutes. If you did not ask for a reset, ignore this email.\n",
		code, minutes,
	)
	htmlBody := renderCodeHTML(
		"Reset your password",
		"Enter this code on the password reset page.",
		code,
		fmt.Sprintf("The code expires in %d minutes. If you did not ask for a reset, ignore this email.", minutes),
	)

	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("%w: invalid from address: %v", ErrPermanent, err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("%w: invalid to address: %v", ErrPermanent, err)
	}
	m.Subject(subject)

	// Text fallback + HTML alternative
	m.SetBodyString(mail.TypeTextPlain, text)
	m.AddAlternativeString(mail.TypeTextHTML, htmlBody)
	return m, nil
}

func (s *SMTPNotifier) send(ctx context.Context, to string, m *mail.Msg) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tlsPolicy := mail.TLSMandatory
	if s.insecure {
		tlsPolicy = mail.TLSOpportunistic
	}

	opts := []mail.Option{
		mail.WithPort(s.port),
		mail.WithTLSPolicy(tlsPolicy),
	}
	if s.user != "" {
		opts = append(opts, mail.WithSMTPAuth(mail.SMTPAuthPlain), mail.WithUsername(s.user), mail.WithPassword(s.pass))
	}

	c, err := mail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("%w: smtp client init failed: %v", ErrPermanent, err)
	}

	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		s.lg.Error().Err(err).Str("host", s.host).Msg("smtp send failed")

		msg := err.Error()
		if containsAny(msg, "535", "5.7.8", "authentication", "Username and Password not accepted") {
			return fmt.Errorf("%w: smtp auth failed: %s", ErrPermanent, msg)
		}
		return fmt.Errorf("smtp transient failure: %w", err)
	}

	s.lg.Debug().Str("host", s.host).Msg("verification code mailed")
	return nil
}

func renderCodeHTML(title, intro, code, footer string) string {
	escTitle := html.EscapeString(title)
	escIntro := html.EscapeString(intro)
	escCode := html.EscapeString(code)
	escFooter := html.EscapeString(footer)

	return `<!doctype html>
<html>
  <body style="font-family:Arial,Helvetica,sans-serif; line-height:1.4;">
    <h2>` + escTitle + `</h2>
    <p>` + escIntro + `</p>

    <p style="font-size:28px; letter-spacing:6px; font-weight:bold; background:#f3f3f3; padding:10px 14px; display:inline-block; border-radius:6px;">` + escCode + `</p>

    <p style="color:#555; font-size:12px;">` + escFooter + `</p>
  </body>
</html>`
}

func containsAny(s string, subs ...string) bool {
	for _, x := range subs {
		if x != "" && strings.Contains(s, x) {
			return true
		}
	}
	return false
}
