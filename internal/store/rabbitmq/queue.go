package rabbitmq

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lingodoc/platform/internal/translation"
)

const attemptsHeader = "x-attempts"

// Queue owns one connection/channel pair and the three-queue topology:
// main, retry (per-message TTL dead-lettering back to main) and DLQ.
// A message that keeps failing bounces main -> retry -> main until the
// attempt budget is spent, then lands in the DLQ for inspection.
type Queue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	maxAttempts int
	backoffBase time.Duration
}

func New(url, queue string, maxAttempts int, backoffBase time.Duration) (*Queue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	mainQ := queue
	retryQ := queue + ".retry"
	dlqQ := queue + ".dlq"

	// DLQ
	if _, err := ch.QueueDeclare(
		dlqQ,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	// Retry queue: message TTL -> dead-letter back to main queue
	if _, err := ch.QueueDeclare(
		retryQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": mainQ,
		},
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false)
	if _, err := ch.QueueDeclare(
		mainQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlqQ,
		},
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Queue{conn: conn, ch: ch, queue: queue, maxAttempts: maxAttempts, backoffBase: backoffBase}, nil
}

func (q *Queue) Close() error {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// Enqueue publishes a fresh job to the main queue.
func (q *Queue) Enqueue(ctx context.Context, msg translation.JobMessage) error {
	return q.publish(ctx, q.queue, msg, 0, "")
}

// requeue schedules a failed delivery for another attempt. The retry
// queue's per-message TTL gives exponential backoff: base << attempt.
func (q *Queue) requeue(ctx context.Context, msg translation.JobMessage, attempt int) error {
	delay := q.backoffBase << uint(attempt-1)
	expiration := strconv.FormatInt(delay.Milliseconds(), 10)
	return q.publish(ctx, q.queue+".retry", msg, attempt, expiration)
}

func (q *Queue) publish(ctx context.Context, routingKey string, msg translation.JobMessage, attempt int, expiration string) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
		Headers:      amqp.Table{attemptsHeader: int32(attempt)},
	}
	if expiration != "" {
		pub.Expiration = expiration
	}

	return q.ch.PublishWithContext(cctx,
		"",         // default exchange
		routingKey, // routing key = queue
		false,
		false,
		pub,
	)
}

// Handler processes one delivery. A non-nil error counts the attempt.
type Handler func(ctx context.Context, msg translation.JobMessage) error

// Consume runs a bounded worker pool over the main queue. Failed
// deliveries go back through the retry queue until maxAttempts is
// reached, then are dead-lettered. Blocks until ctx is cancelled or the
// delivery channel closes.
func (q *Queue) Consume(ctx context.Context, concurrency int, handle Handler) error {
	if err := q.ch.Qos(concurrency, 0, false); err != nil {
		return err
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			for d := range jobs {
				q.dispatch(ctx, d, handle)
			}
		}()
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				close(jobs)
				wg.Wait()
				return amqp.ErrClosed
			}
			jobs <- d
		}
	}
}

func (q *Queue) dispatch(ctx context.Context, d amqp.Delivery, handle Handler) {
	var msg translation.JobMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.JobID == "" {
		// malformed payload, straight to the DLQ
		_ = d.Nack(false, false)
		return
	}

	if err := handle(ctx, msg); err != nil {
		attempt := deliveryAttempt(d) + 1
		if attempt >= q.maxAttempts {
			_ = d.Nack(false, false)
			return
		}
		if pubErr := q.requeue(ctx, msg, attempt); pubErr != nil {
			// could not schedule the retry; dead-letter rather than lose it
			_ = d.Nack(false, false)
			return
		}
		_ = d.Ack(false)
		return
	}

	_ = d.Ack(false)
}

func deliveryAttempt(d amqp.Delivery) int {
	if d.Headers == nil {
		return 0
	}
	switch v := d.Headers[attemptsHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
