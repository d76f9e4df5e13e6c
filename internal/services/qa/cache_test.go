package qa

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

// fakeStore is an in-memory Store used across tests.
type fakeStore struct {
	mu      sync.Mutex
	rows    map[string]string
	appends int
	finds   int
	failing bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]string)}
}

func (f *fakeStore) AppendRow(ctx context.Context, question, answer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends++
	if f.failing {
		return errors.New("store unavailable")
	}
	f.rows[strings.ToLower(question)] = answer
	return nil
}

func (f *fakeStore) FindByQuestion(ctx context.Context, question string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	if f.failing {
		return "", false, errors.New("store unavailable")
	}
	a, ok := f.rows[strings.ToLower(question)]
	return a, ok, nil
}

func newTestCache(store Store) *AnswerCache {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewAnswerCache(store, NewNormalizer("Laila", "LailaVCBot"), 0, log)
}

func TestStoreLookupRoundTrip(t *testing.T) {
	store := newFakeStore()
	cache := newTestCache(store)
	ctx := context.Background()

	cache.Store(ctx, "What is Go?", "A programming language.")

	got, found := cache.Lookup(ctx, "what is go?")
	if !found {
		t.Fatal("Lookup() found = false, want true")
	}
	if got != "A programming language." {
		t.Fatalf("Lookup() = %q, want the stored answer", got)
	}
}

func TestLookupNormalizesLikeStore(t *testing.T) {
	store := newFakeStore()
	cache := newTestCache(store)
	ctx := context.Background()

	cache.Store(ctx, "@LailaVCBot Laila ko batao kya haal hai", "sab badhiya")

	if _, found := cache.Lookup(ctx, "BATAO   kya haal hai"); !found {
		t.Fatal("lookup with different casing/spacing should hit the stored row")
	}
}

func TestSensitiveQuestionsNeverTouchStore(t *testing.T) {
	store := newFakeStore()
	cache := newTestCache(store)
	ctx := context.Background()

	cache.Store(ctx, "what is my phone number", "123")
	if _, found := cache.Lookup(ctx, "what is my phone number"); found {
		t.Fatal("sensitive question must not produce a cached answer")
	}

	if store.appends != 0 || store.finds != 0 {
		t.Fatalf("store saw %d appends and %d finds, want 0 and 0", store.appends, store.finds)
	}
}

func TestStoreFailuresAreSwallowed(t *testing.T) {
	store := newFakeStore()
	store.failing = true
	cache := newTestCache(store)
	ctx := context.Background()

	// Neither call may panic or surface an error.
	cache.Store(ctx, "hello world question", "answer")
	if _, found := cache.Lookup(ctx, "hello world question"); found {
		t.Fatal("lookup against a failing store must degrade to a miss")
	}
}

func TestLookupUsesLocalLayer(t *testing.T) {
	store := newFakeStore()
	cache := newTestCache(store)
	ctx := context.Background()

	cache.Store(ctx, "capital of france", "Paris")

	for i := 0; i < 3; i++ {
		if _, found := cache.Lookup(ctx, "capital of france"); !found {
			t.Fatal("expected a hit")
		}
	}

	if store.finds != 0 {
		t.Fatalf("store.finds = %d, want 0 (served from the local layer)", store.finds)
	}
}
