package rabbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lomoval/sked/internal/occurrence"
	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

var ErrChannelClosed = errors.New("delivery channel closed")

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Queue    string
}

// Message is a reminder for one member about one event occurrence.
type Message struct {
	EventID         string    `json:"eventId"`
	Label           string    `json:"label"`
	MemberID        string    `json:"memberId"`
	OccursAt        time.Time `json:"occursAt"`
	LeadTimeMinutes int       `json:"leadTime"`
}

func NewMessage(r occurrence.Reminder) Message {
	return Message{
		EventID:         r.EventID,
		Label:           r.Label,
		MemberID:        r.MemberID,
		OccursAt:        r.OccursAt,
		LeadTimeMinutes: r.LeadTimeMinutes,
	}
}

// Text renders the reminder for a human reader.
func (m Message) Text() string {
	if m.LeadTimeMinutes <= 0 {
		return fmt.Sprintf("%q starts now (%s)", m.Label, m.OccursAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	return fmt.Sprintf("%q starts in %s (%s)",
		m.Label, time.Duration(m.LeadTimeMinutes)*time.Minute, m.OccursAt.UTC().Format("2006-01-02 15:04 MST"))
}

type MessageProcess = func(ctx context.Context, m Message) error

type Provider struct {
	conn       *amqp.Connection
	queue      amqp.Queue
	channel    *amqp.Channel
	connString string
	queueName  string
}

func New(config Config) *Provider {
	return &Provider{
		connString: fmt.Sprintf(
			"amqp://%s:%s@%s:%d/",
			config.User,
			config.Password,
			config.Host,
			config.Port,
		),
		queueName: config.Queue,
	}
}

func (r *Provider) Connect() error {
	var err error
	r.conn, err = amqp.Dial(r.connString)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbit: %w", err)
	}

	r.channel, err = r.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	r.queue, err = r.channel.QueueDeclare(
		r.queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", r.queueName, err)
	}
	return nil
}

func (r *Provider) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

func (r *Provider) Publish(_ context.Context, m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return r.channel.Publish(
		"",           // exchange
		r.queue.Name, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		})
}

// Consume passes every delivery to process until ctx is done.
func (r *Provider) Consume(ctx context.Context, process MessageProcess) error {
	msgs, err := r.channel.Consume(
		r.queue.Name, // queue
		"",           // consumer
		false,        // auto-ack
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,          // args
	)
	if err != nil {
		return fmt.Errorf("failed to consume %q: %w", r.queue.Name, err)
	}
	return consume(ctx, msgs, process)
}

func consume(ctx context.Context, msgs <-chan amqp.Delivery, process MessageProcess) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return ErrChannelClosed
			}
			handleDelivery(ctx, d, process)
		}
	}
}

// handleDelivery acks processed messages. Undecodable messages are dropped,
// failed ones are requeued.
func handleDelivery(ctx context.Context, d amqp.Delivery, process MessageProcess) {
	m := Message{}
	if err := json.Unmarshal(d.Body, &m); err != nil {
		log.Errorf("failed to parse message: %s", err)
		if err := d.Reject(false); err != nil {
			log.Errorf("failed to reject message: %s", err)
		}
		return
	}
	if err := process(ctx, m); err != nil {
		log.Errorf("failed to process message for event %s: %s", m.EventID, err)
		if err := d.Nack(false, !d.Redelivered); err != nil {
			log.Errorf("failed to nack message: %s", err)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		log.Errorf("failed to ack message: %s", err)
	}
}
