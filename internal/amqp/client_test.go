package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"closed connection", errors.New("connection closed"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"amqp closed", fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{"other error", errors.New("some other error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "budget", queueName: "transactions_sync"}

	if client.isCircuitOpen() {
		t.Fatal("circuit breaker should be closed initially")
	}

	for i := 0; i < maxFailures; i++ {
		client.recordFailure()
	}
	if !client.isCircuitOpen() {
		t.Fatal("circuit breaker should open after max failures")
	}

	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if client.isCircuitOpen() {
		t.Fatal("circuit should move to half-open after the timeout")
	}
	if atomic.LoadInt32(&client.state) != StateHalfOpen {
		t.Errorf("state = %d, want StateHalfOpen", client.state)
	}

	client.recordSuccess()
	if atomic.LoadInt64(&client.failureCount) != 0 || atomic.LoadInt32(&client.state) != StateClosed {
		t.Error("success should reset the breaker")
	}
}

func TestClient_PublishTransactionSync(t *testing.T) {
	t.Run("fails fast when circuit is open", func(t *testing.T) {
		client := &Client{exchangeName: "budget", queueName: "transactions_sync"}
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()

		err := client.PublishTransactionSync(context.Background(), 123, 1)
		if !errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("err = %v, want ErrCircuitOpen", err)
		}
		if !strings.Contains(err.Error(), "circuit breaker is open") {
			t.Errorf("error should mention the circuit breaker, got %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		client := &Client{exchangeName: "budget", queueName: "transactions_sync"}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := client.PublishTransactionSync(ctx, 123, 1); err != context.Canceled {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }

func (f *fakeAck) Nack(_ bool, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func TestSettle(t *testing.T) {
	body, err := NewTransactionSyncMessage(7, 1).ToJSON()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		body       []byte
		handlerErr error
		wantAck    bool
		wantNack   bool
		wantRequeu bool
	}{
		{"handled", body, nil, true, false, false},
		{"handler failure requeues", body, errors.New("sheets down"), false, true, true},
		{"bad payload is dropped", []byte(`{"id":"x"}`), nil, false, true, false},
		{"message without id is dropped", []byte(`{"version":1}`), nil, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAck{}
			var got *TransactionSyncMessage
			settle(context.Background(), tt.body, ack, func(_ context.Context, m *TransactionSyncMessage) error {
				got = m
				return tt.handlerErr
			})

			if ack.acked != tt.wantAck || ack.nacked != tt.wantNack || ack.requeued != tt.wantRequeu {
				t.Errorf("ack=%v nack=%v requeue=%v", ack.acked, ack.nacked, ack.requeued)
			}
			if tt.wantAck && (got == nil || got.ID != 7) {
				t.Errorf("handler got %+v, want id 7", got)
			}
		})
	}
}

func TestTransactionSyncMessage_JSON(t *testing.T) {
	timestamp := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := &TransactionSyncMessage{ID: 12345, Version: 2, Timestamp: timestamp}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	parsed, err := TransactionSyncMessageFromJSON(data)
	if err != nil {
		t.Fatalf("TransactionSyncMessageFromJSON() error = %v", err)
	}
	if parsed.ID != msg.ID || parsed.Version != msg.Version || !parsed.Timestamp.Equal(timestamp) {
		t.Errorf("parsed = %+v, want %+v", parsed, msg)
	}

	for _, body := range []string{`{"id": "not_a_number"}`, `{"version": 1}`, `{"id": -3}`} {
		if _, err := TransactionSyncMessageFromJSON([]byte(body)); !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("FromJSON(%s) error = %v, want ErrInvalidMessage", body, err)
		}
	}
}
