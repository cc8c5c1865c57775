// Package alert publishes operator alerts for states that need manual repair.
package alert

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Alert describes an event an operator must act on.
type Alert struct {
	Kind    string            `json:"kind"`
	Service string            `json:"service"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	At      time.Time         `json:"at"`
}

// Alerter delivers alerts to an alert sink.
type Alerter interface {
	Alert(ctx context.Context, a Alert) error
}

// Log writes alerts to the structured log at error level with alert=true.
type Log struct{ log *zap.Logger }

// NewLog constructs a log-only alerter.
func NewLog(log *zap.Logger) *Log { return &Log{log: log} }

// Alert implements Alerter.
func (l *Log) Alert(_ context.Context, a Alert) error {
	fields := []zap.Field{
		zap.Bool("alert", true),
		zap.String("kind", a.Kind),
		zap.String("service", a.Service),
		zap.Time("at", a.At),
	}
	for k, v := range a.Fields {
		fields = append(fields, zap.String(k, v))
	}
	l.log.Error(a.Message, fields...)
	return nil
}

// Publisher is the subset of *amqp.Channel used for alerts.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQP publishes alerts as persistent JSON messages to a RabbitMQ queue.
type AMQP struct {
	pub   Publisher
	queue string
}

// NewAMQP constructs a RabbitMQ alerter over an open channel.
func NewAMQP(pub Publisher, queue string) *AMQP {
	return &AMQP{pub: pub, queue: queue}
}

// Alert implements Alerter.
func (q *AMQP) Alert(ctx context.Context, a Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return q.pub.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    a.At,
		Type:         a.Kind,
		Body:         body,
	})
}

// Conn owns a RabbitMQ connection and channel.
type Conn struct {
	conn *amqp.Connection
	chn  *amqp.Channel
}

// Dial connects to RabbitMQ and declares the durable alert queue.
func Dial(url, queue string) (*Conn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	chn, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := chn.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = chn.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Conn{conn: conn, chn: chn}, nil
}

// Channel returns the publishing channel.
func (c *Conn) Channel() *amqp.Channel { return c.chn }

// Close closes the channel and the connection.
func (c *Conn) Close() error {
	return errors.Join(c.chn.Close(), c.conn.Close())
}

// Multi fans an alert out to every sink and joins their failures.
type Multi []Alerter

// Alert implements Alerter.
func (m Multi) Alert(ctx context.Context, a Alert) error {
	var out error
	for _, s := range m {
		out = errors.Join(out, s.Alert(ctx, a))
	}
	return out
}
