package util

import "testing"

func TestCeilDiv(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{0, 4, 0},
		{1, 4, 1},
		{4, 4, 1},
		{5, 4, 2},
	}
	for _, c := range cases {
		if got := CeilDiv(c.a, c.b); got != c.want {
			t.Errorf("CeilDiv(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestReadnWritenRoundTrip(t *testing.T) {
	for _, sz := range []int{1, 2, 4, 8} {
		buf := make([]byte, 16)
		want := 0x1234
		Writen(buf, sz, 4, want)
		mask := (1 << uint(sz*8)) - 1
		if sz == 8 {
			mask = -1 // full width, no masking needed
		}
		got := Readn(buf, sz, 4)
		if mask != -1 {
			got &= mask
			want &= mask
		}
		if got != want {
			t.Errorf("size %d: Readn(Writen(%#x)) = %#x, want %#x", sz, want, got, want)
		}
	}
}

func TestReadnOutOfBoundsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic reading past the end of the slice")
		}
	}()
	Readn(make([]byte, 4), 8, 0)
}

func TestWritenOutOfBoundsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic writing past the end of the slice")
		}
	}()
	Writen(make([]byte, 4), 8, 0, 1)
}

func TestWritenUnsupportedSizePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for an unsupported field size")
		}
	}()
	Writen(make([]byte, 16), 3, 0, 1)
}
