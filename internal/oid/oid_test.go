package oid

import "testing"

func TestZero(t *testing.T) {
	if !Zero.IsZero() {
		t.Fatal("Zero should report IsZero")
	}
	if Zero.String() != "0000000000000000000000000000000000000000" {
		t.Fatalf("unexpected zero string: %s", Zero.String())
	}
}

func TestNewRoundTrip(t *testing.T) {
	s := "1234567890abcdef1234567890abcdef12345678"
	o, err := New(s)
	if err != nil {
		t.Fatal(err)
	}
	if o.String() != s {
		t.Fatalf("round trip mismatch: got %s want %s", o.String(), s)
	}
}

func TestNewInvalidLength(t *testing.T) {
	if _, err := New("abc"); err != ErrInvalidLength {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
}

func TestCompareAndPair(t *testing.T) {
	a := MustNew("0000000000000000000000000000000000000001")
	b := MustNew("0000000000000000000000000000000000000002")
	if !a.Less(b) {
		t.Fatal("a should be less than b")
	}
	lo, hi := Pair(b, a)
	if lo != a || hi != b {
		t.Fatal("Pair did not canonicalize order")
	}
}

func TestSort(t *testing.T) {
	a := MustNew("0000000000000000000000000000000000000003")
	b := MustNew("0000000000000000000000000000000000000001")
	c := MustNew("0000000000000000000000000000000000000002")
	s := Slice{a, b, c}
	Sort(s)
	if s[0] != b || s[1] != c || s[2] != a {
		t.Fatalf("unexpected order: %v", s)
	}
}
