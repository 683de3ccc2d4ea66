package proc

import "testing"

func TestTableGetSetDel(t *testing.T) {
	tb := NewTable[string]()
	if _, ok := tb.Get(1); ok {
		t.Fatal("Get on empty table found something")
	}
	tb.Set(1, "one")
	tb.Set(2, "two")
	if got, ok := tb.Get(1); !ok || got != "one" {
		t.Fatalf("Get(1) = (%q, %v), want (\"one\", true)", got, ok)
	}
	if tb.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tb.Len())
	}
	tb.Del(1)
	if _, ok := tb.Get(1); ok {
		t.Fatal("Get(1) found a deleted entry")
	}
	if tb.Len() != 1 {
		t.Fatalf("Len() after Del = %d, want 1", tb.Len())
	}
}

func TestTableElemsIsASnapshot(t *testing.T) {
	tb := NewTable[int]()
	tb.Set(1, 10)
	tb.Set(2, 20)
	elems := tb.Elems()
	if len(elems) != 2 {
		t.Fatalf("Elems() returned %d elements, want 2", len(elems))
	}
	tb.Set(3, 30)
	if len(elems) != 2 {
		t.Fatal("Elems() slice was mutated by a later Set")
	}
}
