// Package eventlog mirrors room and lobby broadcasts to a Kafka topic so game
// history can be replayed or analysed offline.
package eventlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"sketchroom/internal/event"
)

// Writer is the subset of *kafka.Writer the log uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns an asynchronous writer that keys messages onto
// partitions by hash, so one scope's events stay ordered.
func NewKafkaWriter(brokers []string, topic string, log zerolog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warn().Err(err).Int("messages", len(msgs)).Msg("event log write failed")
			}
		},
	}
}

type record struct {
	Scope string          `json:"scope"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	At    int64           `json:"at"`
}

// Log writes events best-effort. Failures are logged and otherwise ignored.
type Log struct {
	w     Writer
	log   zerolog.Logger
	clock func() time.Time
}

func New(w Writer, log zerolog.Logger) *Log {
	return &Log{w: w, log: log.With().Str("component", "eventlog").Logger(), clock: time.Now}
}

// Record appends e under scope.
func (l *Log) Record(scope string, e event.Event) {
	var data json.RawMessage
	if e.Data != nil {
		raw, err := json.Marshal(e.Data)
		if err != nil {
			l.log.Warn().Err(err).Str("event", e.Name).Msg("event not encodable")
			return
		}
		data = raw
	}
	value, err := json.Marshal(record{Scope: scope, Type: e.Name, Data: data, At: l.clock().UnixMilli()})
	if err != nil {
		l.log.Warn().Err(err).Str("event", e.Name).Msg("event not encodable")
		return
	}
	err = l.w.WriteMessages(context.Background(), kafka.Message{Key: []byte(scope), Value: value})
	if err != nil {
		l.log.Warn().Err(err).Str("event", e.Name).Str("scope", scope).Msg("event log write failed")
	}
}

func (l *Log) Close() error { return l.w.Close() }

// Tee is an event.Emitter that forwards to another emitter and mirrors its
// broadcasts into a Log. Stroke data is too chatty to keep and is skipped.
type Tee struct {
	event.Emitter
	log *Log
}

func NewTee(inner event.Emitter, log *Log) *Tee {
	return &Tee{Emitter: inner, log: log}
}

func (t *Tee) Broadcast(scope string, e event.Event, exceptUserID string) {
	t.Emitter.Broadcast(scope, e, exceptUserID)
	if e.Name == event.CanvasStrokeData {
		return
	}
	t.log.Record(scope, e)
}
