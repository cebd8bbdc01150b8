package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Batch is the queue payload in both directions: raw rows on the input
// topic and clean rows on the output topic.
type Batch struct {
	TableName string   `json:"table_name"`
	Data      []Record `json:"data"`
}

// Message is one delivery from the input topic. Handle is opaque to this
// package and is passed back to Commit.
type Message struct {
	Topic  string
	Key    []byte
	Value  []byte
	Handle any
}

// Consumer delivers messages from the input topic in arrival order.
// Poll returns (nil, nil) when timeout elapses with nothing to deliver.
type Consumer interface {
	Poll(ctx context.Context, timeout time.Duration) (*Message, error)
	Commit(ctx context.Context, msg *Message) error
}

// Publisher sends a batch to topic under key.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, batch Batch) error
}

// StreamState is the position of the loop in its two-state cycle.
type StreamState int32

const (
	Polling StreamState = iota
	Processing
)

func (s StreamState) String() string {
	if s == Processing {
		return "processing"
	}
	return "polling"
}

// StreamConfig configures a StreamLoop.
type StreamConfig struct {
	CleanTopic  string
	PollTimeout time.Duration
}

// StreamLoop consumes raw batches, cleans them, publishes the clean half and
// sends the quarantined half to the sink. Clean rows are not committed here;
// a downstream consumer of CleanTopic owns that.
type StreamLoop struct {
	consumer  Consumer
	publisher Publisher
	cleaner   *Cleaner
	sink      *QuarantineSink
	rec       Recorder
	cfg       StreamConfig

	state atomic.Int32
}

// NewStreamLoop wires a loop. A zero PollTimeout defaults to one second.
func NewStreamLoop(consumer Consumer, publisher Publisher, cleaner *Cleaner, sink *QuarantineSink, rec Recorder, cfg StreamConfig) *StreamLoop {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if rec == nil {
		rec = NopRecorder
	}
	return &StreamLoop{
		consumer:  consumer,
		publisher: publisher,
		cleaner:   cleaner,
		sink:      sink,
		rec:       rec,
		cfg:       cfg,
	}
}

// State reports whether the loop is waiting for or handling a message.
func (l *StreamLoop) State() StreamState {
	return StreamState(l.state.Load())
}

// Run polls until ctx is cancelled. Poll errors, undecodable messages and
// unknown tables are logged and skipped; none of them stop the loop.
func (l *StreamLoop) Run(ctx context.Context) error {
	slog.Info("stream loop started", "clean_topic", l.cfg.CleanTopic)
	for {
		l.state.Store(int32(Polling))
		if err := ctx.Err(); err != nil {
			slog.Info("stream loop stopped")
			return nil
		}

		msg, err := l.consumer.Poll(ctx, l.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			l.rec.StreamMessage(OutcomeTransport)
			slog.Warn("poll failed", "error", err)
			continue
		}
		if msg == nil {
			continue
		}

		l.state.Store(int32(Processing))
		l.Handle(ctx, msg)
	}
}

// Handle processes one message and commits its offset. It returns the
// outcome recorded for the message.
//
// A message whose clean batch could not be published is left uncommitted so
// the group redelivers it.
func (l *StreamLoop) Handle(ctx context.Context, msg *Message) string {
	outcome := l.process(ctx, msg)
	l.rec.StreamMessage(outcome)

	if outcome == OutcomePublish {
		slog.Warn("offset not committed, message will be redelivered", "topic", msg.Topic)
		return outcome
	}
	if err := l.consumer.Commit(ctx, msg); err != nil {
		slog.Warn("commit offset failed", "topic", msg.Topic, "error", err)
	}
	return outcome
}

func (l *StreamLoop) process(ctx context.Context, msg *Message) string {
	var batch Batch
	if err := json.Unmarshal(msg.Value, &batch); err != nil {
		slog.Warn("discarding undecodable message", "topic", msg.Topic, "error", err)
		return OutcomeDecodeErr
	}

	kind, auto, err := ParseEntityKind(batch.TableName)
	if err != nil || auto {
		// No quarantine entry: the payload has no known destination.
		slog.Warn("discarding message for unknown table",
			"topic", msg.Topic,
			"table_name", batch.TableName,
			"rows", len(batch.Data))
		return OutcomeUnknown
	}

	p := l.cleaner.Clean(kind, batch.Data)
	table := kind.Table()

	if len(p.Clean) > 0 {
		out := Batch{TableName: table, Data: p.Records()}
		if err := l.publisher.Publish(ctx, l.cfg.CleanTopic, table, out); err != nil {
			slog.Error("publish clean batch failed",
				"topic", l.cfg.CleanTopic,
				"table", table,
				"rows", len(out.Data),
				"error", err)
			// The whole message is redelivered; quarantining now would
			// record its bad rows twice.
			return OutcomePublish
		}
	}

	if len(p.Quarantined) > 0 {
		// The sink logs its own failures.
		_ = l.sink.Write(ctx, p.Quarantined)
	}

	slog.Info("stream batch processed",
		"table", table,
		"clean", len(p.Clean),
		"quarantined", len(p.Quarantined))
	return OutcomeProcessed
}

// PublishRaw sends rows for kind to topic as one raw batch keyed by table.
func PublishRaw(ctx context.Context, pub Publisher, topic string, kind EntityKind, rows []RawRecord) error {
	if pub == nil {
		return ErrStreamingDisabled
	}
	table := kind.Table()
	if err := pub.Publish(ctx, topic, table, Batch{TableName: table, Data: rows}); err != nil {
		if errors.Is(err, ErrTransportFault) {
			return err
		}
		return fmt.Errorf("%w: publish %s: %v", ErrTransportFault, topic, err)
	}
	return nil
}
