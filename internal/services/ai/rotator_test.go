package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/laila-tgbot-go/internal/config"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestRotatorAdvanceWrapsAround(t *testing.T) {
	r := NewRotator([]string{"k1", "k2", "k3"}, time.Hour)

	if got := r.Active(); got != "k1" {
		t.Fatalf("Active() = %q, want k1", got)
	}
	r.Advance()
	r.Advance()
	if got := r.Active(); got != "k3" {
		t.Fatalf("Active() = %q, want k3", got)
	}
	r.Advance()
	if got := r.Active(); got != "k1" {
		t.Fatalf("Active() after wrap = %q, want k1", got)
	}
}

func TestRotatorCooldown(t *testing.T) {
	now := time.Now()
	r := NewRotator([]string{"k1", "k2"}, time.Hour)
	r.now = func() time.Time { return now }

	if r.IsCooling() {
		t.Fatal("fresh credential should not be cooling")
	}

	r.MarkCooldown()
	if !r.IsCooling() {
		t.Fatal("credential should be cooling right after MarkCooldown")
	}

	now = now.Add(time.Hour + time.Second)
	if r.IsCooling() {
		t.Fatal("credential should be available after the cooldown elapsed")
	}
}

func newTestGemini(keys []string) *Gemini {
	return NewGemini(&config.AIConfig{
		Model:    "gemini-1.5-flash",
		APIKeys:  keys,
		Cooldown: time.Hour,
	}, testLogger())
}

func TestCompleteRotatesOnQuotaErrors(t *testing.T) {
	g := newTestGemini([]string{"k1", "k2", "k3"})

	var used []string
	g.call = func(ctx context.Context, key string, req Request) (string, error) {
		used = append(used, key)
		if key == "k3" {
			return "answer", nil
		}
		return "", ErrQuotaExceeded
	}

	got, err := g.Complete(context.Background(), Request{UserText: "hello"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "answer" {
		t.Fatalf("Complete() = %q, want %q", got, "answer")
	}
	if len(used) != 3 {
		t.Fatalf("used %d keys, want 3 (rotation through the pool)", len(used))
	}
}

func TestCompleteExhaustsAllCredentials(t *testing.T) {
	g := newTestGemini([]string{"k1", "k2", "k3", "k4", "k5"})

	attempts := 0
	g.call = func(ctx context.Context, key string, req Request) (string, error) {
		attempts++
		return "", ErrQuotaExceeded
	}

	_, err := g.Complete(context.Background(), Request{UserText: "hello"})
	if !errors.Is(err, ErrAllCredentialsExhausted) {
		t.Fatalf("Complete() error = %v, want ErrAllCredentialsExhausted", err)
	}
	if attempts != 5 {
		t.Fatalf("made %d attempts, want exactly 5 (one per credential)", attempts)
	}
}

func TestCompleteSkipsCoolingCredentials(t *testing.T) {
	g := newTestGemini([]string{"k1", "k2"})
	g.rotator.MarkCooldown() // k1 unavailable

	var used []string
	g.call = func(ctx context.Context, key string, req Request) (string, error) {
		used = append(used, key)
		return "ok", nil
	}

	if _, err := g.Complete(context.Background(), Request{UserText: "hi"}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if len(used) != 1 || used[0] != "k2" {
		t.Fatalf("used keys = %v, want [k2]", used)
	}
}

func TestCompleteDoesNotRotateOnNonQuotaErrors(t *testing.T) {
	g := newTestGemini([]string{"k1", "k2"})

	attempts := 0
	backendErr := errors.New("connection reset")
	g.call = func(ctx context.Context, key string, req Request) (string, error) {
		attempts++
		return "", backendErr
	}

	_, err := g.Complete(context.Background(), Request{UserText: "hi"})
	if !errors.Is(err, backendErr) {
		t.Fatalf("Complete() error = %v, want the backend error surfaced", err)
	}
	if attempts != 1 {
		t.Fatalf("made %d attempts, want 1 (no rotation on generic failure)", attempts)
	}
}

func TestCompleteDoesNotRetryBlockedContent(t *testing.T) {
	g := newTestGemini([]string{"k1", "k2"})

	attempts := 0
	g.call = func(ctx context.Context, key string, req Request) (string, error) {
		attempts++
		return "", ErrContentBlocked
	}

	_, err := g.Complete(context.Background(), Request{UserText: "hi"})
	if !errors.Is(err, ErrContentBlocked) {
		t.Fatalf("Complete() error = %v, want ErrContentBlocked", err)
	}
	if attempts != 1 {
		t.Fatalf("made %d attempts, want 1", attempts)
	}
}

func TestCompleteHonorsContextCancellation(t *testing.T) {
	g := newTestGemini([]string{"k1", "k2"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g.call = func(ctx context.Context, key string, req Request) (string, error) {
		t.Fatal("call should not run with a cancelled context")
		return "", nil
	}

	_, err := g.Complete(ctx, Request{UserText: "hi"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Complete() error = %v, want context.Canceled", err)
	}
}
