package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ResultPublisher exports finished batch reports.
type ResultPublisher interface {
	Publish(ctx context.Context, report *BatchReport) error
	Close() error
}

// QueuePublisher publishes batch reports to a durable RabbitMQ queue.
type QueuePublisher struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
}

// NewQueuePublisher connects to RabbitMQ and declares the queue.
func NewQueuePublisher(rabbitURL, queueName string, maxRetries int, delay time.Duration) (*QueuePublisher, error) {
	conn, err := connectWithRetry(rabbitURL, maxRetries, delay)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	slog.Info("connected to rabbitmq", "queue", queueName)

	return &QueuePublisher{
		conn:      conn,
		channel:   channel,
		queueName: queueName,
	}, nil
}

func connectWithRetry(url string, maxRetries int, delay time.Duration) (*amqp.Connection, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var conn *amqp.Connection
	var err error
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}

		slog.Warn("failed to connect to rabbitmq", "attempt", i+1, "max_attempts", maxRetries, "error", err)
		if i < maxRetries-1 {
			time.Sleep(delay)
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, err)
}

// Publish sends the report as a persistent JSON message.
func (p *QueuePublisher) Publish(ctx context.Context, report *BatchReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",          // exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    report.BatchID,
			Timestamp:    report.FinishedAt,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}

	slog.Info("batch report published", "batch_id", report.BatchID, "queue", p.queueName, "size", len(body))
	return nil
}

func (p *QueuePublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
