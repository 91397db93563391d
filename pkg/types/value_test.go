// pkg/types/value_test.go
package types

import "testing"

func TestValueAccessors(t *testing.T) {
	if v := NewInt(42); v.Type() != TypeInt || v.Int() != 42 {
		t.Errorf("NewInt: %v", v)
	}
	if v := NewText("hi"); v.Type() != TypeText || v.Text() != "hi" {
		t.Errorf("NewText: %v", v)
	}
	if v := NewReal(1.5); v.Type() != TypeReal || v.Real() != 1.5 {
		t.Errorf("NewReal: %v", v)
	}
	if v := NewNull(); !v.IsNull() {
		t.Errorf("NewNull: %v", v)
	}
}

func TestBlobCopies(t *testing.T) {
	src := []byte{1, 2, 3}
	v := NewBlob(src)
	src[0] = 9
	if v.Blob()[0] != 1 {
		t.Error("NewBlob shares storage with its argument")
	}
	out := v.Blob()
	out[1] = 9
	if v.Blob()[1] != 2 {
		t.Error("Blob() shares storage with the value")
	}
}

func TestCompareNumeric(t *testing.T) {
	cases := []struct {
		a, b Value
		want int
	}{
		{NewInt(1), NewInt(2), -1},
		{NewInt(2), NewInt(2), 0},
		{NewInt(3), NewInt(2), 1},
		{NewInt(1), NewReal(1.5), -1},
		{NewReal(2.0), NewInt(2), 0},
		{NewText("a"), NewText("b"), -1},
		{NewText("b"), NewText("b"), 0},
	}
	for _, tc := range cases {
		got, ok := Compare(tc.a, tc.b)
		if !ok {
			t.Errorf("Compare(%v, %v) not comparable", tc.a, tc.b)
			continue
		}
		if got != tc.want {
			t.Errorf("Compare(%v, %v) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

// incomparable pairs yield ok=false for every operator rather than an error
func TestCompareIncomparable(t *testing.T) {
	pairs := [][2]Value{
		{NewInt(1), NewText("1")},
		{NewText("a"), NewBlob([]byte("a"))},
		{NewNull(), NewInt(1)},
		{NewNull(), NewNull()},
		{NewInt(1), NewNull()},
	}
	for _, p := range pairs {
		if _, ok := Compare(p[0], p[1]); ok {
			t.Errorf("Compare(%v, %v) should not be comparable", p[0], p[1])
		}
	}
}

func TestEqualIdentity(t *testing.T) {
	if !NewNull().Equal(NewNull()) {
		t.Error("NULL identity")
	}
	if NewInt(1).Equal(NewReal(1)) {
		t.Error("Equal must not cross kinds")
	}
}
