package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// CodeSender delivers one verification code. The SMTP notifier satisfies it.
type CodeSender interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

// retryPublisher is an interface so tests can run handleDelivery without a broker.
type retryPublisher interface {
	PublishRetry(ctx context.Context, tier string, orig amqp.Delivery, nextAttempt int, cause error) error
	PublishFinal(ctx context.Context, orig amqp.Delivery, reason string, cause error) error
}

type ConsumerConfig struct {
	URL         string
	Exchange    string
	Queue       string
	Prefetch    int
	Tag         string
	MaxAttempts int

	// Permanent reports delivery errors a retry cannot fix; those go straight
	// to the dead-letter queue.
	Permanent func(error) bool
}

var MessagesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "auth_mailer",
		Name:      "messages_total",
		Help:      "Code-issued messages handled by the mailer, by outcome.",
	},
	[]string{"result"},
)

const (
	tier10s = "10s"
	tier1m  = "1m"

	defaultMaxAttempts = 4
)

// Consumer drains code-issued events and hands them to a CodeSender. Failed
// deliveries go through two delayed retry queues and end in a dead-letter queue.
type Consumer struct {
	url         string
	exchange    string
	queue       string
	prefetch    int
	tag         string
	maxAttempts int
	permanent   func(error) bool

	lg     zerolog.Logger
	sender CodeSender
	now    func() time.Time

	mu      sync.Mutex
	running bool
	doneCh  chan struct{}

	conn       *amqp.Connection
	chConsume  *amqp.Channel
	chPublish  *amqp.Channel
	deliveries <-chan amqp.Delivery
	pub        retryPublisher
}

func NewConsumer(cfg ConsumerConfig, sender CodeSender, lg zerolog.Logger) *Consumer {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Permanent == nil {
		cfg.Permanent = func(error) bool { return false }
	}
	return &Consumer{
		url:         cfg.URL,
		exchange:    cfg.Exchange,
		queue:       cfg.Queue,
		prefetch:    cfg.Prefetch,
		tag:         cfg.Tag,
		maxAttempts: cfg.MaxAttempts,
		permanent:   cfg.Permanent,
		sender:      sender,
		lg:          lg.With().Str("component", "rabbitmq_consumer").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (c *Consumer) retryExchange(tier string) string { return c.exchange + ".retry." + tier }
func (c *Consumer) retryQueue(tier string) string    { return c.queue + ".retry." + tier }
func (c *Consumer) deadExchange() string             { return c.exchange + ".dlx" }
func (c *Consumer) deadQueue() string                { return c.queue + ".dlq" }

func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	if c.sender == nil {
		return errors.New("nil code sender")
	}

	c.doneCh = make(chan struct{})
	c.running = true
	go c.run(ctx)
	return nil
}

// Stop closes the connection and waits for the supervisor to exit.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	doneCh := c.doneCh
	c.running = false
	c.mu.Unlock()

	c.closeConn()

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) run(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		doneCh := c.doneCh
		c.doneCh = nil
		c.running = false
		c.mu.Unlock()

		if doneCh != nil {
			close(doneCh)
		}
	}()

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil || !c.isRunning() {
			c.lg.Info().Msg("consumer supervisor exiting")
			return
		}

		if err := c.connectAndDeclare(); err != nil {
			if isPreconditionFailed(err) {
				c.lg.Error().Err(err).Msg("topology precondition failed; delete the queues and restart")
				return
			}
			c.lg.Error().Err(err).Dur("backoff", backoff).Msg("connect failed; retrying")
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = time.Second
		c.consumeLoop(ctx)
		if ctx.Err() != nil {
			return
		}

		c.lg.Warn().Dur("backoff", backoff).Msg("deliveries closed; reconnecting")
		c.closeConn()
		if !sleepOrDone(ctx, backoff) {
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (c *Consumer) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Consumer) connectAndDeclare() error {
	c.closeConn()

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	chConsume, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("consume channel: %w", err)
	}
	chPublish, err := conn.Channel()
	if err != nil {
		closeAll(conn, chConsume, nil)
		return fmt.Errorf("publish channel: %w", err)
	}

	if err := c.declareTopology(chConsume); err != nil {
		closeAll(conn, chConsume, chPublish)
		return err
	}

	if c.prefetch > 0 {
		if err := chConsume.Qos(c.prefetch, 0, false); err != nil {
			closeAll(conn, chConsume, chPublish)
			return fmt.Errorf("qos: %w", err)
		}
	}

	dlv, err := chConsume.Consume(c.queue, c.tag, false, false, false, false, nil)
	if err != nil {
		closeAll(conn, chConsume, chPublish)
		return fmt.Errorf("consume: %w", err)
	}

	pub, err := newRetryPublisher(chPublish, c, c.lg)
	if err != nil {
		closeAll(conn, chConsume, chPublish)
		return fmt.Errorf("retry publisher: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.chConsume = chConsume
	c.chPublish = chPublish
	c.deliveries = dlv
	c.pub = pub
	c.mu.Unlock()

	c.lg.Info().
		Str("exchange", c.exchange).
		Str("queue", c.queue).
		Int("prefetch", c.prefetch).
		Msg("rabbitmq consumer ready")
	return nil
}

// declareTopology is idempotent. Retry queues dead-letter back to the main
// exchange once their TTL runs out.
func (c *Consumer) declareTopology(ch *amqp.Channel) error {
	exchanges := []string{c.exchange, c.retryExchange(tier10s), c.retryExchange(tier1m), c.deadExchange()}
	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(ex, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("exchange declare (%s): %w", ex, err)
		}
	}

	mainArgs := amqp.Table{
		"x-dead-letter-exchange":    c.deadExchange(),
		"x-dead-letter-routing-key": RoutingKeyResetCode,
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, mainArgs); err != nil {
		return fmt.Errorf("main queue declare: %w", err)
	}
	if err := ch.QueueBind(c.queue, RoutingKeyResetCode, c.exchange, false, nil); err != nil {
		return fmt.Errorf("main queue bind: %w", err)
	}

	if _, err := ch.QueueDeclare(c.deadQueue(), true, false, false, false, nil); err != nil {
		return fmt.Errorf("dlq declare: %w", err)
	}
	if err := ch.QueueBind(c.deadQueue(), "#", c.deadExchange(), false, nil); err != nil {
		return fmt.Errorf("dlq bind: %w", err)
	}

	for tier, ttl := range map[string]time.Duration{tier10s: 10 * time.Second, tier1m: time.Minute} {
		args := amqp.Table{
			"x-message-ttl":          int64(ttl / time.Millisecond),
			"x-dead-letter-exchange": c.exchange,
		}
		q := c.retryQueue(tier)
		if _, err := ch.QueueDeclare(q, true, false, false, false, args); err != nil {
			return fmt.Errorf("retry queue declare (%s): %w", q, err)
		}
		if err := ch.QueueBind(q, "#", c.retryExchange(tier), false, nil); err != nil {
			return fmt.Errorf("retry queue bind (%s): %w", q, err)
		}
	}
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case d, ok := <-c.deliveries:
			if !ok {
				return
			}

			start := time.Now()
			err := c.handleDelivery(ctx, d)
			if err == nil {
				_ = d.Ack(false)
				c.lg.Debug().Str("message_id", d.MessageId).Dur("took", time.Since(start)).Msg("message processed")
				continue
			}

			var rerr *requeueError
			if errors.As(err, &rerr) {
				_ = d.Nack(false, true)
				c.lg.Warn().Err(err).Str("message_id", d.MessageId).Msg("handle failed; requeued")
				continue
			}

			// dead-letters through the main queue's DLX
			_ = d.Nack(false, false)
			c.lg.Error().Err(err).Str("message_id", d.MessageId).Msg("handle failed; dead-lettered")
		}
	}
}

// handleDelivery returns nil when the message should be acked, including
// when it was handed to a retry or dead-letter queue.
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) error {
	if strings.TrimSpace(d.RoutingKey) != RoutingKeyResetCode {
		MessagesTotal.WithLabelValues("dropped").Inc()
		c.lg.Warn().Str("routing_key", truncate(d.RoutingKey, 100)).Msg("unknown routing key; dropping")
		return nil
	}

	var evt CodeIssuedEvent
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		return c.toDeadLetter(ctx, d, "bad_json", err)
	}
	if evt.Email == "" || evt.Code == "" {
		return c.toDeadLetter(ctx, d, "missing_fields", errors.New("email and code are required"))
	}

	// a code nobody can redeem is not worth mailing
	if evt.ExpiresInMinutes > 0 && !evt.OccurredAt.IsZero() {
		expires := evt.OccurredAt.Add(time.Duration(evt.ExpiresInMinutes) * time.Minute)
		if c.now().After(expires) {
			MessagesTotal.WithLabelValues("expired").Inc()
			c.lg.Info().Str("message_id", d.MessageId).Msg("code expired before delivery; dropping")
			return nil
		}
	}

	if err := c.sender.SendVerificationCode(ctx, evt.Email, evt.Code); err != nil {
		return c.onSendError(ctx, d, err)
	}
	MessagesTotal.WithLabelValues("sent").Inc()
	return nil
}

func (c *Consumer) onSendError(ctx context.Context, d amqp.Delivery, err error) error {
	if errors.Is(err, context.Canceled) {
		return requeue(err)
	}
	if c.permanent(err) {
		return c.toDeadLetter(ctx, d, "permanent", err)
	}

	attempt := getAttempt(d.Headers)
	if attempt+1 >= c.maxAttempts {
		return c.toDeadLetter(ctx, d, "max_attempts_exceeded", err)
	}

	next := attempt + 1
	tier := retryTier(next)
	if c.pub == nil {
		return requeue(errors.New("nil retry publisher"))
	}
	if pubErr := c.pub.PublishRetry(ctx, tier, d, next, err); pubErr != nil {
		return requeue(fmt.Errorf("republish retry failed: %w", pubErr))
	}

	MessagesTotal.WithLabelValues("retried").Inc()
	c.lg.Warn().Err(err).Int("attempt", next).Str("tier", tier).Msg("send failed; scheduled retry")
	return nil
}

func (c *Consumer) toDeadLetter(ctx context.Context, d amqp.Delivery, reason string, cause error) error {
	if c.pub == nil {
		return requeue(errors.New("nil retry publisher"))
	}
	if pubErr := c.pub.PublishFinal(ctx, d, reason, cause); pubErr != nil {
		return requeue(fmt.Errorf("republish dlq failed: %w", pubErr))
	}
	MessagesTotal.WithLabelValues("dead_lettered").Inc()
	c.lg.Error().Err(cause).Str("reason", reason).Str("message_id", d.MessageId).Msg("sent to dead-letter queue")
	return nil
}

func retryTier(nextAttempt int) string {
	if nextAttempt <= 1 {
		return tier10s
	}
	return tier1m
}

func getAttempt(h amqp.Table) int {
	if h == nil {
		return 0
	}
	switch t := h["x-attempt"].(type) {
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}

type requeueError struct{ err error }

func (e *requeueError) Error() string { return e.err.Error() }
func (e *requeueError) Unwrap() error { return e.err }

func requeue(err error) error { return &requeueError{err: err} }

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func closeAll(conn *amqp.Connection, a, b *amqp.Channel) {
	if b != nil {
		_ = b.Close()
	}
	if a != nil {
		_ = a.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Consumer) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()

	closeAll(c.conn, c.chConsume, c.chPublish)
	c.conn, c.chConsume, c.chPublish = nil, nil, nil
	c.deliveries = nil
	c.pub = nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

func isPreconditionFailed(err error) bool {
	msg := strings.ToUpper(err.Error())
	return strings.Contains(msg, "PRECONDITION_FAILED") || strings.Contains(msg, "INEQUIVALENT ARG")
}
