package queue

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"
)

// dispatchJob is the wire format on the broker.
type dispatchJob struct {
	CampaignID uuid.UUID `json:"campaign_id"`
}

// RabbitQueue is the broker-backed Queue used when the server and the worker
// run as separate processes.
type RabbitQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewRabbitQueue(url string) (*RabbitQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return &RabbitQueue{conn: conn, ch: ch}, nil
}

func (q *RabbitQueue) declare(topic string) (amqp.Queue, error) {
	return q.ch.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
}

func (q *RabbitQueue) Publish(topic string, campaignID uuid.UUID) error {
	if _, err := q.declare(topic); err != nil {
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}

	body, err := json.Marshal(dispatchJob{CampaignID: campaignID})
	if err != nil {
		return err
	}

	return q.ch.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Subscribe consumes jobs from the topic until the channel closes. Handler
// errors nack the delivery for a bounded number of redeliveries; the claim in
// the dispatcher keeps redelivery safe.
func (q *RabbitQueue) Subscribe(topic string, handler func(campaignID uuid.UUID) error) error {
	if _, err := q.declare(topic); err != nil {
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}

	msgs, err := q.ch.Consume(
		topic,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	go func() {
		for d := range msgs {
			var j dispatchJob
			if err := json.Unmarshal(d.Body, &j); err != nil {
				log.Warn().Err(err).Msg("dropping malformed dispatch job")
				d.Ack(false)
				continue
			}

			if err := handler(j.CampaignID); err != nil {
				log.Error().Err(err).Str("campaign_id", j.CampaignID.String()).Msg("dispatch job failed")
				if !d.Redelivered {
					d.Nack(false, true) // one requeue, then give up to the sweep
					continue
				}
			}

			d.Ack(false)
		}
	}()

	return nil
}

func (q *RabbitQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		return err
	}
	return q.conn.Close()
}

var _ Queue = (*RabbitQueue)(nil)
