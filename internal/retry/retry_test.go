package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() Policy {
	return Policy{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func(ctx context.Context) error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsRetryBudget(t *testing.T) {
	calls := 0
	failure := errors.New("dial tcp: connection refused")
	err := Do(context.Background(), fastPolicy(), func(ctx context.Context) error {
		calls++
		return failure
	})

	if !errors.Is(err, failure) {
		t.Fatalf("Expected the last failure to propagate, got %v", err)
	}
	// 1 attempt + 2 retries
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestDo_DoesNotRetryPermanentFailures(t *testing.T) {
	calls := 0
	failure := errors.New("duplicate key value violates unique constraint")
	err := Do(context.Background(), fastPolicy(), func(ctx context.Context) error {
		calls++
		return failure
	})

	if !errors.Is(err, failure) {
		t.Fatalf("Expected failure to propagate, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected no retries for a structural failure, got %d calls", calls)
	}
}

func TestDo_CustomClassifier(t *testing.T) {
	calls := 0
	policy := fastPolicy()
	policy.Classify = func(error) bool { return false }

	Do(context.Background(), policy, func(ctx context.Context) error {
		calls++
		return errors.New("timeout")
	})

	if calls != 1 {
		t.Errorf("Expected classifier to suppress retries, got %d calls", calls)
	}
}

func TestDoValue_ReturnsValue(t *testing.T) {
	calls := 0
	got, err := DoValue(context.Background(), fastPolicy(), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("request timed out")
		}
		return "user-123", nil
	})

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if got != "user-123" {
		t.Errorf("Expected user-123, got %q", got)
	}
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastPolicy(), func(ctx context.Context) error {
		calls++
		return errors.New("connection refused")
	})

	if err == nil {
		t.Fatal("Expected an error after cancellation")
	}
	if calls > 1 {
		t.Errorf("Expected no retries after cancellation, got %d calls", calls)
	}
}
