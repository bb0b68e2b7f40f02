package useragent

import (
	"sync"
	"testing"
)

func TestPool_RoundRobin(t *testing.T) {
	p := NewPool([]string{"a", "b", "c"})

	got := []string{
		p.GetSequential(), p.GetSequential(), p.GetSequential(), p.GetSequential(),
	}
	want := []string{"a", "b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPool_FallbackToDefaults(t *testing.T) {
	p := NewPool(nil)
	if p.Size() == 0 {
		t.Fatal("expected non-empty default pool")
	}
	if p.GetSequential() == "" {
		t.Error("expected non-empty User-Agent")
	}
}

func TestPool_CopiesInput(t *testing.T) {
	src := []string{"original"}
	p := NewPool(src)
	src[0] = "mutated"
	if got := p.GetSequential(); got != "original" {
		t.Errorf("pool shares caller slice: got %q", got)
	}
}

func TestPool_ConcurrentAccess(t *testing.T) {
	p := NewPool([]string{"a", "b"})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.GetSequential() == "" {
				t.Error("empty agent")
			}
		}()
	}
	wg.Wait()
}
