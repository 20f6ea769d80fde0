package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const retryPublishWait = time.Second

// RetryPublisher republishes failed deliveries to a delay tier or the
// dead-letter exchange, with confirms and mandatory routing.
type RetryPublisher struct {
	ch *amqp.Channel
	lg zerolog.Logger

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return

	exchangeFor func(tier string) string
	deadEx      string
}

func newRetryPublisher(ch *amqp.Channel, c *Consumer, lg zerolog.Logger) (*RetryPublisher, error) {
	if ch == nil {
		return nil, errors.New("nil channel")
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("confirm mode: %w", err)
	}

	p := &RetryPublisher{
		ch:          ch,
		lg:          lg.With().Str("component", "retry_publisher").Logger(),
		exchangeFor: c.retryExchange,
		deadEx:      c.deadExchange(),
	}
	// must be registered after Confirm
	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 32))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 32))
	return p, nil
}

func (p *RetryPublisher) PublishRetry(ctx context.Context, tier string, orig amqp.Delivery, nextAttempt int, cause error) error {
	h := retryHeaders(orig, cause)
	h["x-attempt"] = int32(nextAttempt)

	ex := p.exchangeFor(tier)
	// keep the business routing key so the TTL dead-letter lands back on the main queue
	if err := p.ch.PublishWithContext(ctx, ex, orig.RoutingKey, true, false, republished(orig, h)); err != nil {
		return fmt.Errorf("publish retry: %w", err)
	}
	return p.waitAckOrReturn(ctx, ex, orig.RoutingKey)
}

func (p *RetryPublisher) PublishFinal(ctx context.Context, orig amqp.Delivery, reason string, cause error) error {
	h := retryHeaders(orig, cause)
	h["x-dlq-reason"] = reason

	if err := p.ch.PublishWithContext(ctx, p.deadEx, orig.RoutingKey, true, false, republished(orig, h)); err != nil {
		return fmt.Errorf("publish dlq: %w", err)
	}
	return p.waitAckOrReturn(ctx, p.deadEx, orig.RoutingKey)
}

func (p *RetryPublisher) waitAckOrReturn(ctx context.Context, exchange, rk string) error {
	timer := time.NewTimer(retryPublishWait)
	defer timer.Stop()

	select {
	case r := <-p.returnCh:
		return fmt.Errorf("publish returned: reply=%d text=%q exchange=%q rk=%q",
			r.ReplyCode, r.ReplyText, r.Exchange, r.RoutingKey)
	case c := <-p.confirmCh:
		if !c.Ack {
			return fmt.Errorf("publish nacked by broker (exchange=%q rk=%q)", exchange, rk)
		}
		return nil
	case <-timer.C:
		return errors.New("publish wait timeout (no confirm/return)")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func retryHeaders(orig amqp.Delivery, cause error) amqp.Table {
	h := amqp.Table{}
	for k, v := range orig.Headers {
		h[k] = v
	}
	h["x-orig-routing-key"] = orig.RoutingKey
	if cause != nil {
		h["x-error"] = truncate(cause.Error(), 500)
	}
	return h
}

func republished(orig amqp.Delivery, h amqp.Table) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  orig.ContentType,
		Body:         orig.Body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      h,
		MessageId:    orig.MessageId,
	}
}
