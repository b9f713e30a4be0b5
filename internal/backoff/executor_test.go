package backoff

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/fetchr/internal/domain"
)

// newTestExecutor returns an executor whose sleeps are recorded instead of waited.
func newTestExecutor(maxRetries int, notices *[]string) (*Executor, *[]time.Duration) {
	var slept []time.Duration
	e := New(Config{
		MaxRetries: maxRetries,
		Notify: func(msg string) {
			if notices != nil {
				*notices = append(*notices, msg)
			}
		},
	})
	e.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return e, &slept
}

func rateLimited() error {
	return &domain.APIError{Service: "Serper", StatusCode: http.StatusTooManyRequests}
}

func TestDo_SuccessFirstTry(t *testing.T) {
	e, slept := newTestExecutor(3, nil)
	calls := 0

	v, err := Do(context.Background(), e, "test", func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ok" || calls != 1 {
		t.Errorf("expected one call returning ok, got %q after %d calls", v, calls)
	}
	if len(*slept) != 0 {
		t.Errorf("expected no sleeps, got %v", *slept)
	}
}

func TestDo_RetriesRateLimitWithExponentialDelay(t *testing.T) {
	var notices []string
	e, slept := newTestExecutor(3, &notices)
	calls := 0

	v, err := Do(context.Background(), e, "Serper", func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, rateLimited()
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 || calls != 3 {
		t.Errorf("expected 42 after 3 calls, got %d after %d", v, calls)
	}

	want := []time.Duration{time.Second, 2 * time.Second}
	if fmt.Sprint(*slept) != fmt.Sprint(want) {
		t.Errorf("delays = %v, want %v", *slept, want)
	}
	if len(notices) != 2 || !strings.Contains(notices[0], "retrying in 1s") {
		t.Errorf("unexpected notices: %v", notices)
	}
}

func TestDo_ServiceUnavailableIsRateLimit(t *testing.T) {
	e, slept := newTestExecutor(1, nil)
	calls := 0

	_, err := Do(context.Background(), e, "Gemini", func(context.Context) (struct{}, error) {
		calls++
		return struct{}{}, &domain.APIError{Service: "Gemini", StatusCode: http.StatusServiceUnavailable}
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls (1 + 1 retry), got %d", calls)
	}
	if len(*slept) != 1 {
		t.Errorf("expected 1 sleep, got %d", len(*slept))
	}
}

func TestDo_ExhaustedReturnsLastError(t *testing.T) {
	e, slept := newTestExecutor(3, nil)
	calls := 0

	_, err := Do(context.Background(), e, "Serper", func(context.Context) (int, error) {
		calls++
		return 0, rateLimited()
	})
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if fmt.Sprint(*slept) != fmt.Sprint(want) {
		t.Errorf("delays = %v, want %v", *slept, want)
	}
	if !errors.Is(err, domain.ErrTransient) {
		t.Errorf("expected ErrTransient in chain, got %v", err)
	}
}

func TestDo_NonRateLimitFailsImmediately(t *testing.T) {
	e, slept := newTestExecutor(3, nil)
	calls := 0
	boom := errors.New("boom")

	_, err := Do(context.Background(), e, "test", func(context.Context) (int, error) {
		calls++
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if calls != 1 || len(*slept) != 0 {
		t.Errorf("expected a single call without sleep, got %d calls, %d sleeps", calls, len(*slept))
	}
}

func TestDo_TagStrippedOnExhaustion(t *testing.T) {
	e, _ := newTestExecutor(2, nil)
	inner := errors.New("Serper API error: quota")

	_, err := Do(context.Background(), e, "test", func(context.Context) (int, error) {
		return 0, MarkRateLimited(inner)
	})
	if err != inner { //nolint:errorlint // identity check on purpose
		t.Fatalf("expected the untagged inner error, got %#v", err)
	}
	if IsRateLimited(err) {
		t.Error("returned error must not carry the rate-limit tag")
	}
}

func TestDo_ZeroRetries(t *testing.T) {
	e, slept := newTestExecutor(0, nil)
	calls := 0

	_, err := Do(context.Background(), e, "test", func(context.Context) (int, error) {
		calls++
		return 0, rateLimited()
	})
	if err == nil || calls != 1 || len(*slept) != 0 {
		t.Errorf("expected one failed call, got calls=%d sleeps=%d err=%v", calls, len(*slept), err)
	}
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	e := New(Config{MaxRetries: 3, InitialDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := Do(ctx, e, "test", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, rateLimited()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_NilExecutor(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), nil, "test", func(context.Context) (int, error) {
		calls++
		return 0, MarkRateLimited(errors.New("slow down"))
	})
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if IsRateLimited(err) {
		t.Error("nil executor must still strip the tag")
	}
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"429", rateLimited(), true},
		{"wrapped 503", fmt.Errorf("call: %w", &domain.APIError{StatusCode: 503}), true},
		{"500", &domain.APIError{StatusCode: 500}, false},
		{"tagged", MarkRateLimited(errors.New("x")), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRateLimited(tc.err); got != tc.want {
				t.Errorf("IsRateLimited = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	e := New(Config{MaxRetries: -1})
	if e.MaxRetries() != 0 {
		t.Errorf("negative retries should clamp to 0, got %d", e.MaxRetries())
	}
	if e.initialDelay != DefaultInitialDelay || e.multiplier != DefaultMultiplier {
		t.Errorf("unexpected defaults: %v x%v", e.initialDelay, e.multiplier)
	}
}
