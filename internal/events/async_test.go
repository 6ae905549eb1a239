package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type captureEmitter struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (e *captureEmitter) Emit(_ context.Context, ev *Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, ev)
	return nil
}

func (e *captureEmitter) Close() error { return nil }

func (e *captureEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}

func TestEmitAsync_Delivers(t *testing.T) {
	emitter := &captureEmitter{}
	EmitAsync(emitter, context.Background(), &Event{ID: "e1", Type: TypeUserLogin})

	deadline := time.Now().Add(2 * time.Second)
	for emitter.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event never delivered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEmitAsync_NilEmitterAndEvent(t *testing.T) {
	// Must not panic or spawn anything.
	EmitAsync(nil, context.Background(), &Event{ID: "e1"})
	emitter := &captureEmitter{}
	EmitAsync(emitter, context.Background(), nil)
	time.Sleep(20 * time.Millisecond)
	if emitter.count() != 0 {
		t.Fatalf("nil event should not emit, got %d", emitter.count())
	}
}

func TestEmitAsync_ErrorIsSwallowed(t *testing.T) {
	emitter := &captureEmitter{err: errors.New("broker down")}
	EmitAsync(emitter, context.Background(), &Event{ID: "e1", Type: TypeUserLogin})
	time.Sleep(20 * time.Millisecond)
	// No way to observe beyond "did not panic"; the error is logged only.
}

func TestNewKafkaEmitter_DisabledWhenUnconfigured(t *testing.T) {
	tests := []struct {
		name    string
		brokers []string
		topic   string
	}{
		{name: "no brokers", brokers: nil, topic: "auth-events"},
		{name: "no topic", brokers: []string{"localhost:9092"}, topic: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewKafkaEmitter(tt.brokers, tt.topic)
			if err != nil {
				t.Fatalf("NewKafkaEmitter: %v", err)
			}
			if e != nil {
				t.Fatal("expected nil emitter when unconfigured")
			}
			// Nil emitter methods are safe.
			if err := e.Emit(context.Background(), &Event{}); err != nil {
				t.Fatalf("Emit on nil: %v", err)
			}
			if err := e.Close(); err != nil {
				t.Fatalf("Close on nil: %v", err)
			}
		})
	}
}
