package safecell

import (
	"sync"
	"testing"
)

func TestAccessGetDoneRoundTrip(t *testing.T) {
	c := New(41)
	g := c.Access()
	*g.Get()++
	g.Done()

	g2 := c.Access()
	if *g2.Get() != 42 {
		t.Fatalf("value = %d, want 42", *g2.Get())
	}
	g2.Done()
}

func TestReentrantAccessPanics(t *testing.T) {
	c := New(0)
	g := c.Access()
	defer g.Done()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on reentrant Access")
		}
	}()
	c.Access()
}

func TestConflictingCrossGoroutineAccessPanics(t *testing.T) {
	c := New(0)
	g := c.Access()
	defer g.Done()

	var wg sync.WaitGroup
	panicked := false
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if recover() != nil {
				panicked = true
			}
		}()
		c.Access()
	}()
	wg.Wait()
	if !panicked {
		t.Fatal("expected the second goroutine's Access to panic instead of blocking")
	}
}

func TestAccessSucceedsAfterDone(t *testing.T) {
	c := New("x")
	g := c.Access()
	g.Done()

	g2 := c.Access()
	g2.Done()
}

func TestDoubleDonePanics(t *testing.T) {
	c := New(0)
	g := c.Access()
	g.Done()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double Done")
		}
	}()
	g.Done()
}
