// Package kafka adapts github.com/segmentio/kafka-go to the queue
// interfaces of the core package.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	segmentio "github.com/segmentio/kafka-go"

	"github.com/JonMunkholm/airwarehouse/internal/core"
)

// Config holds the connection settings shared by Consumer and Producer.
type Config struct {
	Brokers  []string
	GroupID  string
	ClientID string
}

// Consumer reads the raw topic as part of a consumer group. Offsets are
// committed explicitly after each message is handled.
type Consumer struct {
	reader *segmentio.Reader
}

var _ core.Consumer = (*Consumer)(nil)

// NewConsumer subscribes to topic.
func NewConsumer(cfg Config, topic string) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	r := segmentio.NewReader(segmentio.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          topic,
		StartOffset:    segmentio.FirstOffset,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // synchronous commits
		Dialer: &segmentio.Dialer{
			ClientID: cfg.ClientID,
			Timeout:  10 * time.Second,
		},
	})
	return &Consumer{reader: r}, nil
}

// Poll waits up to timeout for the next message. It returns (nil, nil) when
// the timeout elapses.
func (c *Consumer) Poll(ctx context.Context, timeout time.Duration) (*core.Message, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := c.reader.FetchMessage(fetchCtx)
	switch {
	case err == nil:
		return &core.Message{
			Topic:  msg.Topic,
			Key:    msg.Key,
			Value:  msg.Value,
			Handle: msg,
		}, nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		return nil, fmt.Errorf("%w: fetch: %v", core.ErrTransportFault, err)
	}
}

// Commit marks msg as consumed for the group.
func (c *Consumer) Commit(ctx context.Context, msg *core.Message) error {
	m, ok := msg.Handle.(segmentio.Message)
	if !ok {
		return errors.New("kafka: message was not fetched by this consumer")
	}
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("commit offset %d: %w", m.Offset, err)
	}
	return nil
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// Producer publishes batches as JSON messages.
type Producer struct {
	writer *segmentio.Writer
}

var _ core.Publisher = (*Producer)(nil)

// NewProducer returns a producer for any topic on the cluster.
func NewProducer(cfg Config) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	w := &segmentio.Writer{
		Addr:                   segmentio.TCP(cfg.Brokers...),
		Balancer:               &segmentio.Hash{},
		RequiredAcks:           segmentio.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		Transport:              &segmentio.Transport{ClientID: cfg.ClientID},
	}
	return &Producer{writer: w}, nil
}

// Publish sends batch to topic with key, so batches for one table stay on
// one partition.
func (p *Producer) Publish(ctx context.Context, topic, key string, batch core.Batch) error {
	value, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	err = p.writer.WriteMessages(ctx, segmentio.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", core.ErrTransportFault, topic, err)
	}
	return nil
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// EnsureTopics creates topics through the cluster controller. Topics that
// already exist are left alone.
func EnsureTopics(ctx context.Context, cfg Config, partitions int, topics ...string) (err error) {
	if len(cfg.Brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}
	dialer := &segmentio.Dialer{ClientID: cfg.ClientID, Timeout: 10 * time.Second}

	conn, err := dialer.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("dial %s: %w", cfg.Brokers[0], err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing kafka connection: %w", cerr)
		}
	}()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("finding kafka controller: %w", err)
	}
	ctrl, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("connecting to kafka controller: %w", err)
	}
	defer func() {
		if cerr := ctrl.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing kafka controller connection: %w", cerr)
		}
	}()

	if partitions <= 0 {
		partitions = 1
	}
	configs := make([]segmentio.TopicConfig, 0, len(topics))
	for _, t := range topics {
		configs = append(configs, segmentio.TopicConfig{
			Topic:             t,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		})
	}
	err = ctrl.CreateTopics(configs...)
	if err != nil && !errors.Is(err, segmentio.TopicAlreadyExists) {
		return fmt.Errorf("create topics: %w", err)
	}
	slog.Info("kafka topics ready", "topics", topics, "partitions", partitions)
	return nil
}
