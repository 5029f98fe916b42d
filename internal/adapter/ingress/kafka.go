package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/iho/paymentsengine/internal/domain"
)

// KafkaConfig groups the consumer settings.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// MessageReader is the subset of *kafka.Reader the source uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaReader creates a consumer-group reader starting from the earliest
// uncommitted offset. Producers must key messages by client ID so that one
// client's events share a partition and keep their order.
func NewKafkaReader(cfg KafkaConfig) (*kafka.Reader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic must not be empty")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("kafka group id must not be empty")
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	}), nil
}

// kafkaEvent is the JSON message payload. Amount may be a JSON string or
// number and is omitted for dispute, resolve and chargeback.
type kafkaEvent struct {
	Type   string              `json:"type"`
	Client *uint16             `json:"client"`
	Tx     *uint32             `json:"tx"`
	Amount decimal.NullDecimal `json:"amount"`
}

// KafkaSource streams events from a Kafka topic.
//
// Offsets are committed only through Commit, which the caller invokes after
// every streamed event has been applied. Until then a restart replays the
// messages, and replayed events are rejected by the ledger as duplicates or
// invalid transitions.
type KafkaSource struct {
	reader  MessageReader
	logger  zerolog.Logger
	pending map[int]kafka.Message
	skipped int64
}

// NewKafkaSource creates a source on reader.
func NewKafkaSource(reader MessageReader, logger zerolog.Logger) *KafkaSource {
	return &KafkaSource{
		reader:  reader,
		logger:  logger.With().Str("component", "kafka_source").Logger(),
		pending: make(map[int]kafka.Message),
	}
}

// Stream fetches messages until ctx is cancelled. Undecodable messages are
// logged and skipped; their offsets are committed with the rest.
func (s *KafkaSource) Stream(ctx context.Context, out chan<- domain.Event) error {
	backoff := time.Second

	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error().Err(err).Msg("fetch failed")
			select {
			case <-time.After(backoff):
				if backoff < 10*time.Second {
					backoff *= 2
				}
				continue
			case <-ctx.Done():
				return nil
			}
		}
		backoff = time.Second

		ev, err := s.handleMessage(msg)
		if err != nil {
			s.skipped++
			s.logger.Warn().
				Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("skipping undecodable message")
			s.pending[msg.Partition] = msg
			continue
		}

		select {
		case out <- ev:
			s.pending[msg.Partition] = msg
		case <-ctx.Done():
			// Not handed off, so it must be redelivered.
			return nil
		}
	}
}

// handleMessage decodes msg into an event.
func (s *KafkaSource) handleMessage(msg kafka.Message) (domain.Event, error) {
	var payload kafkaEvent
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}

	return payload.toEvent()
}

func (p kafkaEvent) toEvent() (domain.Event, error) {
	eventType, err := domain.ParseEventType(p.Type)
	if err != nil {
		return domain.Event{}, err
	}
	if p.Client == nil || p.Tx == nil {
		return domain.Event{}, fmt.Errorf("%w: client and tx are required", domain.ErrMalformedEvent)
	}

	ev := domain.Event{
		Type:     eventType,
		ClientID: *p.Client,
		TxID:     *p.Tx,
		Amount:   p.Amount,
	}
	if err := ev.Validate(); err != nil {
		return domain.Event{}, err
	}

	return ev, nil
}

// Skipped returns the number of undecodable messages seen so far.
func (s *KafkaSource) Skipped() int64 {
	return s.skipped
}

// Commit commits the highest fetched offset of every partition.
func (s *KafkaSource) Commit(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(s.pending))
	for _, msg := range s.pending {
		msgs = append(msgs, msg)
	}

	if err := s.reader.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("commit offsets: %w", err)
	}

	clear(s.pending)
	return nil
}

// Close closes the underlying reader.
func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
