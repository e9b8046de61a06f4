package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/petadopt/adoption-analytics/pkg/config"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w)

	err := p.Publish(context.Background(), Event{
		Key:   "full_adoption_report",
		Value: map[string]any{"records": 3},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "full_adoption_report" {
		t.Errorf("key = %q", w.msgs[0].Key)
	}
	var got map[string]int
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if got["records"] != 3 {
		t.Errorf("records = %d, want 3", got["records"])
	}
}

func TestPublishBatch(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w)

	events := []Event{{Key: "a", Value: 1}, {Key: "b", Value: 2}}
	if err := p.PublishBatch(context.Background(), events); err != nil {
		t.Fatalf("PublishBatch: %v", err)
	}
	if len(w.msgs) != 2 {
		t.Errorf("messages = %d, want 2", len(w.msgs))
	}
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := newProducer(&fakeWriter{err: boom})

	err := p.Publish(context.Background(), Event{Key: "k", Value: "v"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func TestPublishRejectsUnencodableValue(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w)

	if err := p.Publish(context.Background(), Event{Key: "k", Value: make(chan int)}); err == nil {
		t.Fatal("expected marshal error")
	}
	if len(w.msgs) != 0 {
		t.Error("nothing should be written")
	}
}

func TestNewProducerUsesReportTopic(t *testing.T) {
	p := NewProducer(config.KafkaConfig{
		Brokers: []string{"localhost:9092"},
		Topics:  config.KafkaTopics{ReportEvents: "adoption-report-events"},
	})
	defer p.Close()

	kw, ok := p.writer.(*kafka.Writer)
	if !ok {
		t.Fatalf("writer = %T", p.writer)
	}
	if kw.Topic != "adoption-report-events" {
		t.Errorf("topic = %q", kw.Topic)
	}
}
