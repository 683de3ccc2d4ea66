package proc

import "github.com/gokernel/rvos/safecell"

// Table is a generic, cell-guarded map from a small integer key (pid
// or tid) to its control block, generalizing the teacher's
// hashtable.Hashtable_t (which dispatches on interface{} keys at
// runtime) to a single Go-generic type parameterized on the value type,
// since every table in this package keys on exactly one concrete type
// (int) and the teacher's runtime type switch (hash.go's hash/equal
// functions) is unnecessary overhead once the key type is fixed at
// compile time. Its backing map is wrapped in the interrupt-masking
// cell (component K) rather than a bare sync.RWMutex, per §5's "all
// mutable kernel state is wrapped in K."
type Table[V any] struct {
	cell *safecell.Cell[map[int]V]
}

// NewTable returns an empty Table.
func NewTable[V any]() *Table[V] {
	return &Table[V]{cell: safecell.New(make(map[int]V))}
}

// Get returns the value stored for key and whether it was present.
func (t *Table[V]) Get(key int) (V, bool) {
	g := t.cell.Access()
	defer g.Done()
	v, ok := (*g.Get())[key]
	return v, ok
}

// Set stores value for key, overwriting any prior value.
func (t *Table[V]) Set(key int, value V) {
	g := t.cell.Access()
	defer g.Done()
	(*g.Get())[key] = value
}

// Del removes key from the table. It is a no-op if key is absent.
func (t *Table[V]) Del(key int) {
	g := t.cell.Access()
	defer g.Done()
	delete(*g.Get(), key)
}

// Len returns the number of entries currently stored.
func (t *Table[V]) Len() int {
	g := t.cell.Access()
	defer g.Done()
	return len(*g.Get())
}

// Elems returns a snapshot slice of every value currently stored.
func (t *Table[V]) Elems() []V {
	g := t.cell.Access()
	defer g.Done()
	m := *g.Get()
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
