package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/baechuer/orgdocs/services/auth-service/internal/domain"
)

const (
	DefaultExchange = "orgdocs.auth"

	// RoutingKeyResetCode is consumed by the mailer, which delivers the code.
	RoutingKeyResetCode = "auth.password.reset.code_issued"

	// Minimum window to wait for Return / Confirm.
	publishWait = 2 * time.Second
)

// CodeIssuedEvent is the message body for RoutingKeyResetCode.
type CodeIssuedEvent struct {
	EventID          string    `json:"event_id"`
	Email            string    `json:"email"`
	Code             string    `json:"code"`
	ExpiresInMinutes int       `json:"expires_in_minutes"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Publisher hands verification codes to the mailer through a topic exchange,
// with publisher confirms and mandatory routing.
type Publisher struct {
	url      string
	exchange string
	codeTTL  time.Duration
	lg       zerolog.Logger

	mu sync.Mutex

	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return

	now func() time.Time
}

func NewPublisher(url, exchange string, codeTTL time.Duration, lg zerolog.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if codeTTL <= 0 {
		codeTTL = 10 * time.Minute
	}
	p := &Publisher{
		url:      url,
		exchange: exchange,
		codeTTL:  codeTTL,
		lg:       lg.With().Str("component", "rabbitmq_publisher").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	if err := p.connect(); err != nil {
		return nil, domain.ErrRabbitUnavailable(err)
	}
	return p, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetConn()
	return nil
}

// ---- auth.CodeNotifier ----

func (p *Publisher) SendVerificationCode(ctx context.Context, email, code string) error {
	msg, err := p.codeMessage(email, code)
	if err != nil {
		return err
	}
	return p.publish(ctx, RoutingKeyResetCode, msg)
}

// ---- internal ----

func (p *Publisher) codeMessage(email, code string) (amqp.Publishing, error) {
	evt := CodeIssuedEvent{
		EventID:          uuid.NewString(),
		Email:            email,
		Code:             code,
		ExpiresInMinutes: int(p.codeTTL.Minutes()),
		OccurredAt:       p.now(),
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal payload: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.EventID,
		Timestamp:    evt.OccurredAt,
		// the code is useless after its window
		Expiration: fmt.Sprintf("%d", p.codeTTL.Milliseconds()),
		Body:       body,
	}, nil
}

func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}

	// Declare topic exchange (idempotent).
	if err := ch.ExchangeDeclare(
		p.exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false,
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("exchange declare: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("confirm mode: %w", err)
	}

	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 1))

	p.conn = conn
	p.ch = ch
	return nil
}

func (p *Publisher) ensureConnected() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil {
		return nil
	}
	return p.connect()
}

func (p *Publisher) publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	// Ensure there is a deadline to avoid blocking forever.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureConnected(); err != nil {
		return domain.ErrRabbitUnavailable(err)
	}

	// Drain any stale confirm / return messages to avoid mixing results.
drain:
	for {
		select {
		case <-p.confirmCh:
		case <-p.returnCh:
		default:
			break drain
		}
	}

	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, true, false, msg); err != nil {
		p.resetConn()
		return domain.ErrRabbitUnavailable(fmt.Errorf("publish failed: %w", err))
	}

	// A Return for an unroutable mandatory message is sent before the Ack.
	select {
	case ret := <-p.returnCh:
		select {
		case <-p.confirmCh:
		case <-ctx.Done():
		}
		return fmt.Errorf("rabbitmq unroutable: key=%s code=%d text=%s", routingKey, ret.ReplyCode, ret.ReplyText)

	case conf := <-p.confirmCh:
		if !conf.Ack {
			return fmt.Errorf("rabbitmq nack: key=%s deliveryTag=%d", routingKey, conf.DeliveryTag)
		}
		p.lg.Debug().Str("routing_key", routingKey).Str("message_id", msg.MessageId).Msg("code event confirmed")
		return nil

	case <-time.After(publishWait):
		p.lg.Warn().Str("routing_key", routingKey).Msg("publish confirm timeout")
		p.resetConn()
		return fmt.Errorf("rabbitmq publish timeout: key=%s", routingKey)

	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) resetConn() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
