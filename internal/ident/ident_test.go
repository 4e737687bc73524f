package ident

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNextIsUniquePerGenerator(t *testing.T) {
	gen := NewGenerator()
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen.Next("msg")
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
	if gen.Counter() != 1000 {
		t.Fatalf("expected counter 1000, got %d", gen.Counter())
	}
}

func TestNextCarriesPrefixAndTimestamp(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	gen := NewGeneratorWithClock(func() time.Time { return fixed })
	id := gen.Next("post")
	if !strings.HasPrefix(id, "post-1700000000000-1-") {
		t.Fatalf("unexpected id format %s", id)
	}
}

func TestNextIsSafeUnderConcurrency(t *testing.T) {
	gen := NewGenerator()
	const workers = 8
	const perWorker = 250

	var mu sync.Mutex
	seen := make(map[string]struct{}, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, gen.Next("evt"))
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d unique ids, got %d", workers*perWorker, len(seen))
	}
}
