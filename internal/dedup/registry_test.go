package dedup

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegistryNormalizes(t *testing.T) {
	r := New()
	r.Record("  Alice@Example.COM ")

	if !r.Contains("alice@example.com") {
		t.Error("Expected normalized address to be found")
	}
	if r.Contains("bob@example.com") {
		t.Error("Did not expect unknown address")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistryClearStartsNewGeneration(t *testing.T) {
	r := New()
	gen := r.Generation()
	if !r.RecordIn(gen, "a@x.com") {
		t.Fatal("Expected record in current generation")
	}

	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Expected empty registry after Clear, got %d", r.Len())
	}

	// A write from before the clear must not leak into the new session
	if r.RecordIn(gen, "late@x.com") {
		t.Error("Expected stale generation write to be rejected")
	}
	if r.Contains("late@x.com") {
		t.Error("Stale write leaked into registry")
	}

	if !r.RecordIn(r.Generation(), "a@x.com") {
		t.Error("Expected write in new generation to succeed")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr := fmt.Sprintf("user%d@example.com", i%5)
			r.Record(addr)
			_ = r.Contains(addr)
			_ = r.Snapshot()
		}(i)
	}
	wg.Wait()

	if r.Len() != 5 {
		t.Errorf("Len() = %d, want 5", r.Len())
	}
}
