package oracle

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type fakeBackend struct {
	calls     atomic.Int64
	responses []string
	fail      error
}

func (f *fakeBackend) Complete(ctx context.Context, req Request) (string, int, error) {
	if f.fail != nil {
		return "", 0, f.fail
	}
	idx := f.calls.Add(1) - 1
	if int(idx) < len(f.responses) {
		return f.responses[idx], 10, nil
	}
	return "ok", 10, nil
}

func TestAsk_SuccessRecordsUsage(t *testing.T) {
	backend := &fakeBackend{responses: []string{"hello"}}
	o := New(backend, 60, 90_000, 5*time.Second)

	text, err := o.Ask(context.Background(), "p1", "hi", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello" {
		t.Errorf("expected 'hello', got %q", text)
	}

	status := o.Status()
	if status.RequestsThisMinute != 1 {
		t.Errorf("expected 1 request recorded, got %d", status.RequestsThisMinute)
	}
}

func TestAsk_ConversationMemoryReplaysHistory(t *testing.T) {
	backend := &fakeBackend{responses: []string{"first reply", "second reply"}}
	o := New(backend, 60, 90_000, 5*time.Second)

	if _, err := o.Ask(context.Background(), "p1", "turn one", Options{ConversationKey: "p1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	o.mu.Lock()
	history := o.conversations["p1"]
	o.mu.Unlock()
	if len(history) != 1 || history[0].response != "first reply" {
		t.Fatalf("expected conversation memory to retain the first turn, got %+v", history)
	}
}

func TestShouldDegrade_TripsOnConsecutiveRateLimits(t *testing.T) {
	backend := &fakeBackend{fail: &Failure{Kind: RateLimited, Message: "429"}}
	o := New(backend, 60, 90_000, 200*time.Millisecond)

	for i := 0; i < DegradeConsecutiveRateLimits; i++ {
		o.tracker.noteRateLimited()
	}

	if !o.ShouldDegrade() {
		t.Errorf("expected ShouldDegrade to trip after %d consecutive rate limits", DegradeConsecutiveRateLimits)
	}
}

func TestShouldDegrade_TripsOnBudgetPressure(t *testing.T) {
	backend := &fakeBackend{}
	o := New(backend, 10, 1000, time.Second)

	for i := 0; i < 9; i++ {
		if _, err := o.Ask(context.Background(), "p1", "x", Options{}); err != nil {
			t.Fatalf("unexpected error on call %d: %v", i, err)
		}
	}

	if !o.ShouldDegrade() {
		t.Errorf("expected ShouldDegrade to trip at >=90%% of request budget")
	}
}

func TestAsk_RespectsDeadline(t *testing.T) {
	backend := &fakeBackend{}
	o := New(backend, 1, 1, time.Millisecond) // TPM=1 guarantees the 2nd call is denied and must wait out a backoff longer than the deadline

	if _, err := o.Ask(context.Background(), "p1", "x", Options{}); err != nil {
		t.Fatalf("unexpected error on first call: %v", err)
	}

	_, err := o.Ask(context.Background(), "p1", "x", Options{})
	if err == nil {
		t.Fatalf("expected second call to fail under an exhausted 1ms-deadline budget")
	}
}
