package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSender struct {
	name  string
	sent  int
	err   error
	title string
}

func (s *stubSender) Send(ctx context.Context, title, message string) error {
	if s.err != nil {
		return s.err
	}
	s.sent++
	s.title = title
	return nil
}

func (s *stubSender) Name() string { return s.name }

func TestNotifyDeliversToAllSenders(t *testing.T) {
	a := &stubSender{name: "telegram"}
	b := &stubSender{name: "discord"}
	n := New([]Sender{a, b}, nil, testLogger())

	if err := n.Notify(context.Background(), "trade_filled", "Trade filled", "Buy AAPL x1"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if a.sent != 1 || b.sent != 1 {
		t.Errorf("deliveries = %d/%d, want 1/1", a.sent, b.sent)
	}
	if a.title != "Trade filled" {
		t.Errorf("title = %q", a.title)
	}
}

func TestNotifyEventFilter(t *testing.T) {
	s := &stubSender{name: "telegram"}
	n := New([]Sender{s}, []string{"order_failed"}, testLogger())

	if err := n.Notify(context.Background(), "trade_filled", "Trade filled", "x"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if s.sent != 0 {
		t.Errorf("filtered event delivered %d times, want 0", s.sent)
	}

	if err := n.Notify(context.Background(), "order_failed", "Order failed", "x"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if s.sent != 1 {
		t.Errorf("allowed event delivered %d times, want 1", s.sent)
	}
}

func TestNotifyFailingSenderDoesNotBlockOthers(t *testing.T) {
	bad := &stubSender{name: "telegram", err: errors.New("api down")}
	good := &stubSender{name: "discord"}
	n := New([]Sender{bad, good}, nil, testLogger())

	err := n.Notify(context.Background(), "trade_filled", "Trade filled", "x")
	if err == nil {
		t.Fatal("expected combined error")
	}
	if good.sent != 1 {
		t.Errorf("healthy sender deliveries = %d, want 1", good.sent)
	}
}

func TestNotifyNoSenders(t *testing.T) {
	n := New(nil, nil, testLogger())
	if err := n.Notify(context.Background(), "trade_filled", "t", "m"); err != nil {
		t.Fatalf("Notify with no senders: %v", err)
	}
}
