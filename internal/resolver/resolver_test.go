package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"github.com/laila-tgbot-go/internal/config"
	"github.com/laila-tgbot-go/internal/models"
	"github.com/laila-tgbot-go/internal/services/ai"
	"github.com/laila-tgbot-go/internal/services/qa"
)

type stubBackend struct {
	mu      sync.Mutex
	answer  string
	err     error
	calls   int
	lastReq ai.Request
}

func (s *stubBackend) Complete(ctx context.Context, req ai.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastReq = req
	return s.answer, s.err
}

type memStore struct {
	mu   sync.Mutex
	rows map[string]string
}

func (m *memStore) AppendRow(ctx context.Context, question, answer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = make(map[string]string)
	}
	m.rows[strings.ToLower(question)] = answer
	return nil
}

func (m *memStore) FindByQuestion(ctx context.Context, question string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[strings.ToLower(question)]
	return a, ok, nil
}

func testConfig() *config.Config {
	return &config.Config{
		AI: config.AIConfig{
			SystemPrompt:   "persona",
			Temperature:    0.9,
			ShortMaxTokens: 100,
			LongMaxTokens:  350,
			RequestTimeout: 5 * time.Second,
		},
		History: config.HistoryConfig{
			MaxTurns: 20,
			IdleTTL:  time.Hour,
		},
	}
}

func newTestResolver(t *testing.T, primary, secondary ai.Service, store qa.Store) *Resolver {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	norm := qa.NewNormalizer("Laila", "LailaVCBot")

	var answers *qa.AnswerCache
	if store != nil {
		answers = qa.NewAnswerCache(store, norm, time.Minute, log)
	}
	return NewResolver(testConfig(), primary, secondary, answers, norm, log)
}

func privateMsg(text string) models.IncomingMessage {
	return models.IncomingMessage{ChatID: 10, Text: text, Kind: models.ChatPrivate}
}

func TestStaticDictionaryBypassesBackend(t *testing.T) {
	primary := &stubBackend{answer: "should not be used"}
	r := newTestResolver(t, primary, nil, nil)

	got, ok := r.Resolve(context.Background(), privateMsg("Hi"), true)
	if !ok {
		t.Fatal("Resolve() ok = false, want true")
	}
	want := "Hi there! Laila is ready to help you."
	if got != want {
		t.Fatalf("Resolve(Hi) = %q, want %q", got, want)
	}
	if primary.calls != 0 {
		t.Fatalf("primary backend called %d times, want 0", primary.calls)
	}
}

func TestCacheHitBypassesBackend(t *testing.T) {
	store := &memStore{rows: map[string]string{"what is go": "A language."}}
	primary := &stubBackend{answer: "should not be used"}
	r := newTestResolver(t, primary, nil, store)

	got, ok := r.Resolve(context.Background(), privateMsg("What is Go"), true)
	if !ok || got != "A language." {
		t.Fatalf("Resolve() = %q, %v; want cached answer", got, ok)
	}
	if primary.calls != 0 {
		t.Fatalf("primary backend called %d times, want 0", primary.calls)
	}
}

func TestPrimarySuccessIsCachedAndRemembered(t *testing.T) {
	store := &memStore{}
	primary := &stubBackend{answer: "Generated reply."}
	r := newTestResolver(t, primary, nil, store)

	got, ok := r.Resolve(context.Background(), privateMsg("tell me about go"), true)
	if !ok || got != "Generated reply." {
		t.Fatalf("Resolve() = %q, %v", got, ok)
	}

	if a, found := store.rows["tell me about go"]; !found || a != "Generated reply." {
		t.Fatalf("answer not persisted, rows = %v", store.rows)
	}

	// Second identical question must come from the cache.
	if _, _ = r.Resolve(context.Background(), privateMsg("tell me about go"), true); primary.calls != 1 {
		t.Fatalf("primary backend called %d times, want 1", primary.calls)
	}
}

func TestHistoryIsBoundedFIFO(t *testing.T) {
	primary := &stubBackend{answer: "ok"}
	r := newTestResolver(t, primary, nil, nil)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		r.Resolve(ctx, privateMsg(fmt.Sprintf("message %d", i)), true)
	}

	sess := r.session(10)
	if len(sess.turns) != 20 {
		t.Fatalf("history length = %d, want 20", len(sess.turns))
	}
	// Oldest surviving turn is the user message of exchange 20.
	want := models.Turn{Role: models.RoleUser, Text: "message 20"}
	if diff := cmp.Diff(want, sess.turns[0]); diff != "" {
		t.Fatalf("oldest turn mismatch (-want +got):\n%s", diff)
	}
}

func TestHistoryIsPassedToBackend(t *testing.T) {
	primary := &stubBackend{answer: "ok"}
	r := newTestResolver(t, primary, nil, nil)
	ctx := context.Background()

	r.Resolve(ctx, privateMsg("first question please answer"), true)
	r.Resolve(ctx, privateMsg("second question please answer"), true)

	want := []models.Turn{
		{Role: models.RoleUser, Text: "first question please answer"},
		{Role: models.RoleAssistant, Text: "ok"},
	}
	if diff := cmp.Diff(want, primary.lastReq.History); diff != "" {
		t.Fatalf("backend history mismatch (-want +got):\n%s", diff)
	}
}

func TestAllCredentialsExhaustedNoSecondary(t *testing.T) {
	primary := &stubBackend{err: ai.ErrAllCredentialsExhausted}
	r := newTestResolver(t, primary, nil, nil)

	got, ok := r.Resolve(context.Background(), privateMsg("anything at all"), true)
	if !ok {
		t.Fatal("Resolve() must still produce a reply")
	}
	if got != "Apologies, I'm currently offline. Please try again later." {
		t.Fatalf("Resolve() = %q, want the offline apology", got)
	}
}

func TestSecondaryBackendFallback(t *testing.T) {
	primary := &stubBackend{err: ai.ErrAllCredentialsExhausted}
	secondary := &stubBackend{answer: "secondary reply"}
	store := &memStore{}
	r := newTestResolver(t, primary, secondary, store)

	got, ok := r.Resolve(context.Background(), privateMsg("interesting question here"), true)
	if !ok || got != "secondary reply" {
		t.Fatalf("Resolve() = %q, %v; want the secondary answer", got, ok)
	}
	if secondary.calls != 1 {
		t.Fatalf("secondary called %d times, want 1", secondary.calls)
	}
	if _, found := store.rows["interesting question here"]; !found {
		t.Fatal("secondary answers must be cached too")
	}
}

func TestContentBlockedApology(t *testing.T) {
	primary := &stubBackend{err: ai.ErrContentBlocked}
	secondary := &stubBackend{answer: "must not run"}
	store := &memStore{}
	r := newTestResolver(t, primary, secondary, store)

	got, _ := r.Resolve(context.Background(), privateMsg("blocked topic question"), true)
	if got != "Apologies, I can't discuss that topic." {
		t.Fatalf("Resolve() = %q, want the blocked apology", got)
	}
	if secondary.calls != 0 {
		t.Fatal("content-policy rejections must not fall through to the secondary")
	}
	if len(store.rows) != 0 {
		t.Fatal("content-policy rejections must not be cached")
	}
}

func TestGenericErrorDoesNotLeakDetail(t *testing.T) {
	primary := &stubBackend{err: fmt.Errorf("dial tcp 10.0.0.1: connection refused")}
	r := newTestResolver(t, primary, nil, nil)

	got, _ := r.Resolve(context.Background(), privateMsg("some question for laila"), true)
	if strings.Contains(got, "connection refused") {
		t.Fatalf("reply leaks backend error detail: %q", got)
	}
	if got != "Oops! I couldn't understand that. Please try again in a moment." {
		t.Fatalf("Resolve() = %q, want the generic apology", got)
	}
}

func TestGroupMessageWithoutIntentGetsNoReply(t *testing.T) {
	primary := &stubBackend{answer: "nope"}
	r := newTestResolver(t, primary, nil, nil)

	msg := models.IncomingMessage{ChatID: 20, Text: "random group chatter", Kind: models.ChatGroup}
	if _, ok := r.Resolve(context.Background(), msg, false); ok {
		t.Fatal("ungated group message must produce no reply")
	}
	if primary.calls != 0 {
		t.Fatal("ungated group message must not reach the backend")
	}

	// Static answers still apply in ungated groups.
	msg.Text = "hi"
	if got, ok := r.Resolve(context.Background(), msg, false); !ok || got != "Hi there! Laila is ready to help you." {
		t.Fatalf("static answer missing for ungated group message, got %q, %v", got, ok)
	}
}

func TestResolutionHookReportsSourceAndDuration(t *testing.T) {
	primary := &stubBackend{answer: "generated"}
	r := newTestResolver(t, primary, nil, nil)

	var gotSource string
	var gotElapsed time.Duration
	fired := 0
	r.SetResolutionHook(func(source string, elapsed time.Duration) {
		fired++
		gotSource = source
		gotElapsed = elapsed
	})

	r.Resolve(context.Background(), privateMsg("hi"), true)
	if fired != 1 || gotSource != SourceStatic {
		t.Fatalf("hook fired %d times with source %q, want 1 and %q", fired, gotSource, SourceStatic)
	}
	if gotElapsed < 0 {
		t.Fatalf("hook elapsed = %v, want >= 0", gotElapsed)
	}

	r.Resolve(context.Background(), privateMsg("tell me something new"), true)
	if fired != 2 || gotSource != SourcePrimary {
		t.Fatalf("hook fired %d times with source %q, want 2 and %q", fired, gotSource, SourcePrimary)
	}
}

func TestAdaptiveTokenBudget(t *testing.T) {
	primary := &stubBackend{answer: "ok"}
	r := newTestResolver(t, primary, nil, nil)
	ctx := context.Background()

	r.Resolve(ctx, privateMsg("sup"), true)
	if primary.lastReq.MaxTokens != 100 {
		t.Fatalf("short message budget = %d, want 100", primary.lastReq.MaxTokens)
	}

	r.Resolve(ctx, privateMsg("how to write a web server in go"), true)
	if primary.lastReq.MaxTokens != 350 {
		t.Fatalf("detailed message budget = %d, want 350", primary.lastReq.MaxTokens)
	}

	r.Resolve(ctx, privateMsg("why?"), true)
	if primary.lastReq.MaxTokens != 350 {
		t.Fatalf("question budget = %d, want 350", primary.lastReq.MaxTokens)
	}
}
