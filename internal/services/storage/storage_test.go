package storage

import (
	"context"
	"sort"
	"testing"
)

func TestMemoryStorageToggles(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	enabled, err := s.GlobalEnabled(ctx)
	if err != nil || !enabled {
		t.Fatalf("GlobalEnabled() = %v, %v; want true, nil", enabled, err)
	}

	if err := s.SetGlobalEnabled(ctx, false); err != nil {
		t.Fatal(err)
	}
	if enabled, _ = s.GlobalEnabled(ctx); enabled {
		t.Fatal("global flag should be off after SetGlobalEnabled(false)")
	}

	// Untoggled chats default to enabled.
	if enabled, _ = s.ChatEnabled(ctx, 42); !enabled {
		t.Fatal("ChatEnabled should default to true")
	}

	if err := s.SetChatEnabled(ctx, 42, false); err != nil {
		t.Fatal(err)
	}
	if enabled, _ = s.ChatEnabled(ctx, 42); enabled {
		t.Fatal("chat 42 should be disabled")
	}
	if enabled, _ = s.ChatEnabled(ctx, 43); !enabled {
		t.Fatal("other chats should stay enabled")
	}
}

func TestMemoryStorageKnownChats(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	for _, id := range []int64{1, 2, 2, 3} {
		if err := s.AddKnownChat(ctx, id); err != nil {
			t.Fatal(err)
		}
	}

	chats, err := s.KnownChats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i] < chats[j] })
	want := []int64{1, 2, 3}
	if len(chats) != len(want) {
		t.Fatalf("KnownChats() = %v, want %v", chats, want)
	}
	for i := range want {
		if chats[i] != want[i] {
			t.Fatalf("KnownChats() = %v, want %v", chats, want)
		}
	}
}

func TestMemoryStorageMessageCount(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.IncrementMessageCount(ctx); err != nil {
			t.Fatal(err)
		}
	}

	count, err := s.MessageCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Fatalf("MessageCount() = %d, want 5", count)
	}
}
