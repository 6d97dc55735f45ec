package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/vladislavdragonenkov/market/internal/storage/memory"
)

func newTenant(t *testing.T) *memory.TenantStore {
	t.Helper()
	store, err := memory.NewStore([]string{"shop1"})
	if err != nil {
		t.Fatalf("new store failed: %v", err)
	}
	return store.Tenant("shop1")
}

func TestNextSeq_FirstCallerGetsOne(t *testing.T) {
	ts := newTenant(t)
	ctx := context.Background()

	got, err := ts.NextSeq(ctx, "order")
	if err != nil {
		t.Fatalf("nextseq failed: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}

	got, err = ts.NextSeq(ctx, "order")
	if err != nil {
		t.Fatalf("nextseq failed: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}

	// Независимый kind начинает свою последовательность заново.
	got, err = ts.NextSeq(ctx, "review")
	if err != nil {
		t.Fatalf("nextseq failed: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected 1 for new kind, got %d", got)
	}
}

func TestNextSeq_ConcurrentAllocationsAreDistinct(t *testing.T) {
	ts := newTenant(t)
	ctx := context.Background()

	const n = 100
	results := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := ts.NextSeq(ctx, "order")
			if err != nil {
				t.Errorf("nextseq failed: %v", err)
				return
			}
			results <- id
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool, n)
	for id := range results {
		if seen[id] {
			t.Fatalf("id %d allocated twice", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d ids, got %d", n, len(seen))
	}
	// Диапазон 1..n покрыт без пропусков.
	for i := int64(1); i <= n; i++ {
		if !seen[i] {
			t.Fatalf("id %d missing from allocation range", i)
		}
	}
}
