package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	skafka "github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs []skafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...skafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublishKeysByUser(t *testing.T) {
	fw := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(fw)

	err := p.Publish(context.Background(), Event{
		ID:         "1",
		Type:       EventPaymentCompleted,
		UserID:     "user-1",
		PaymentID:  "pay-1",
		CreditDays: 2,
		Balance:    5,
		OccurredAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(fw.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fw.msgs))
	}
	msg := fw.msgs[0]
	if string(msg.Key) != "user-1" {
		t.Fatalf("expected user key, got %q", msg.Key)
	}
	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != EventPaymentCompleted || decoded.CreditDays != 2 {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafkaPublisherWithWriter(&fakeWriter{err: boom})
	if err := p.Publish(context.Background(), Event{UserID: "u"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped writer error, got %v", err)
	}
}
