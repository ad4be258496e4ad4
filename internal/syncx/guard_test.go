package syncx

import (
	"sync"
	"testing"
)

func TestGuardGetSet(t *testing.T) {
	g := NewGuard(42)

	if got := g.Get(); got != 42 {
		t.Errorf("Get() = %d, want 42", got)
	}

	g.Set(100)
	if got := g.Get(); got != 100 {
		t.Errorf("Get() after Set = %d, want 100", got)
	}
}

func TestGuardUpdate(t *testing.T) {
	g := NewGuard(0)

	changed := g.Update(func(v *int) bool {
		*v = 7
		return true
	})
	if !changed || g.Get() != 7 {
		t.Errorf("Update result = %v, value = %d, want true, 7", changed, g.Get())
	}
}

func TestGuardConcurrentAccess(t *testing.T) {
	g := NewGuard(0)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Update(func(v *int) bool {
				*v++
				return true
			})
		}()
	}
	wg.Wait()

	if got := g.Get(); got != 50 {
		t.Errorf("value = %d after 50 increments, want 50", got)
	}
}
