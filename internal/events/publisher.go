// Package events publishes token revocations to RabbitMQ so that resource
// servers holding cached token state can drop it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// RevocationEvent is the JSON body of every published message.
type RevocationEvent struct {
	Kind      auth.TokenKind `json:"kind"`
	TokenID   string         `json:"token_id"`
	RevokedAt time.Time      `json:"revoked_at"`
}

// RoutingKey returns the key a revocation of kind is published under.
func RoutingKey(kind auth.TokenKind) string {
	return "token.revoked." + string(kind)
}

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher implements auth.RevocationNotifier on top of an AMQP topic exchange.
type Publisher struct {
	conn     *amqp.Connection
	ch       Channel
	exchange string
	now      func() time.Time
}

// NewPublisher publishes on an already open channel.
func NewPublisher(ch Channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, now: time.Now}
}

// Dial connects to the broker and declares a durable topic exchange.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	log.WithField("exchange", exchange).Info("Publishing token revocations")
	p := NewPublisher(ch, exchange)
	p.conn = conn
	return p, nil
}

// TokenRevoked implements auth.RevocationNotifier.
func (p *Publisher) TokenRevoked(ctx context.Context, kind auth.TokenKind, id string) error {
	body, err := json.Marshal(RevocationEvent{
		Kind:      kind,
		TokenID:   id,
		RevokedAt: p.now().UTC(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.ch.PublishWithContext(ctx,
		p.exchange,
		RoutingKey(kind),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    id,
			Timestamp:    p.now(),
			Body:         body,
		},
	)
}

// Close releases the channel and, when the publisher dialled it, the connection.
func (p *Publisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
