package ingress

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/paymentsengine/internal/domain"
)

// fakeReader serves a fixed list of messages and then blocks until the
// context is cancelled.
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []kafka.Message
	drained   chan struct{}
	closed    bool
}

func newFakeReader(messages ...kafka.Message) *fakeReader {
	return &fakeReader{messages: messages, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	select {
	case <-r.drained:
	default:
		close(r.drained)
	}
	r.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func message(partition int, offset int64, value string) kafka.Message {
	return kafka.Message{Partition: partition, Offset: offset, Value: []byte(value)}
}

func TestKafkaSourceHandleMessage(t *testing.T) {
	source := NewKafkaSource(newFakeReader(), zerolog.Nop())

	tests := []struct {
		name    string
		value   string
		want    domain.Event
		wantErr bool
	}{
		{
			name:  "deposit with string amount",
			value: `{"type":"deposit","client":1,"tx":10,"amount":"2.5"}`,
			want:  domain.Deposit(1, 10, decimal.RequireFromString("2.5")),
		},
		{
			name:  "withdrawal with numeric amount",
			value: `{"type":"withdrawal","client":1,"tx":11,"amount":0.75}`,
			want:  domain.Withdrawal(1, 11, decimal.RequireFromString("0.75")),
		},
		{
			name:  "dispute with null amount",
			value: `{"type":"dispute","client":1,"tx":10,"amount":null}`,
			want:  domain.Dispute(1, 10),
		},
		{name: "not json", value: `deposit,1,1,1`, wantErr: true},
		{name: "missing client", value: `{"type":"resolve","tx":1}`, wantErr: true},
		{name: "client out of range", value: `{"type":"resolve","client":70000,"tx":1}`, wantErr: true},
		{name: "deposit without amount", value: `{"type":"deposit","client":1,"tx":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := source.handleMessage(message(0, 1, tt.value))
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrMalformedEvent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Type, got.Type)
			assert.Equal(t, tt.want.ClientID, got.ClientID)
			assert.Equal(t, tt.want.TxID, got.TxID)
			assert.Equal(t, tt.want.Amount.Valid, got.Amount.Valid)
			assert.True(t, tt.want.Amount.Decimal.Equal(got.Amount.Decimal))
		})
	}
}

func TestKafkaSourceStreamAndCommit(t *testing.T) {
	reader := newFakeReader(
		message(0, 5, `{"type":"deposit","client":1,"tx":1,"amount":"1"}`),
		message(1, 8, `{"type":"deposit","client":2,"tx":2,"amount":"1"}`),
		message(0, 6, `garbage`),
		message(0, 7, `{"type":"dispute","client":1,"tx":1}`),
	)
	source := NewKafkaSource(reader, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan domain.Event, 8)

	done := make(chan error, 1)
	go func() { done <- source.Stream(ctx, out) }()

	<-reader.drained
	cancel()
	require.NoError(t, <-done)
	close(out)

	var events []domain.Event
	for ev := range out {
		events = append(events, ev)
	}
	require.Len(t, events, 3)
	assert.Equal(t, int64(1), source.Skipped())

	require.NoError(t, source.Commit(context.Background()))

	offsets := map[int]int64{}
	for _, msg := range reader.committed {
		offsets[msg.Partition] = msg.Offset
	}
	assert.Equal(t, map[int]int64{0: 7, 1: 8}, offsets)

	// Nothing new to commit.
	reader.committed = nil
	require.NoError(t, source.Commit(context.Background()))
	assert.Empty(t, reader.committed)
}

func TestKafkaSourceDoesNotCommitUndelivered(t *testing.T) {
	reader := newFakeReader(message(0, 1, `{"type":"deposit","client":1,"tx":1,"amount":"1"}`))
	source := NewKafkaSource(reader, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unbuffered and never read, so the event cannot be handed off.
	require.NoError(t, source.Stream(ctx, make(chan domain.Event)))
	require.NoError(t, source.Commit(context.Background()))
	assert.Empty(t, reader.committed)
}

func TestNewKafkaReaderValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  KafkaConfig
	}{
		{"no brokers", KafkaConfig{Topic: "events", GroupID: "ledger"}},
		{"no topic", KafkaConfig{Brokers: []string{"localhost:9092"}, GroupID: "ledger"}},
		{"no group", KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "events"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKafkaReader(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestKafkaSourceClose(t *testing.T) {
	reader := newFakeReader()
	source := NewKafkaSource(reader, zerolog.Nop())

	require.NoError(t, source.Close())
	assert.True(t, reader.closed)
}
