package checker

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	sess := &Session{ID: "s1", Symptoms: []string{"fatigue"}, Answers: map[string]string{}}
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "s1" || len(got.Symptoms) != 1 {
		t.Errorf("unexpected session %+v", got)
	}

	// Mutating the returned copy must not leak back into the store.
	got.Symptoms = append(got.Symptoms, "nausea")
	again, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(again.Symptoms) != 1 {
		t.Errorf("store returned a shared reference")
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	defer store.Close()
	ctx := context.Background()

	if err := store.Put(ctx, &Session{ID: "s1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := store.Get(ctx, "s1"); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	if err := store.Put(ctx, &Session{ID: "s1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Get(ctx, "s1"); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("deleting unknown session should be a no-op, got %v", err)
	}
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("same")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("expected 50 increments, got %d", counter)
	}
	km.mu.Lock()
	remaining := len(km.locks)
	km.mu.Unlock()
	if remaining != 0 {
		t.Errorf("expected lock table to drain, %d entries left", remaining)
	}
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex()
	unlockA := km.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("b")
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
	unlockA()
}
