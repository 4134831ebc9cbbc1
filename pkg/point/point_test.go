package point

import "testing"

func TestParseForms(t *testing.T) {
	cases := []string{"(3, 4)", "3, 4", "3;4", "(3;4)", " ( 3 , 4 ) "}
	for _, s := range cases {
		p, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if p.X != 3 || p.Y != 4 {
			t.Fatalf("Parse(%q) = %v, want (3,4)", s, p)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse("not-a-point"); err == nil {
		t.Fatal("expected error")
	}
}

func TestArithmetic(t *testing.T) {
	a, b := New(1, 2), New(3, 4)
	if got := a.Add(b); !got.Equal(New(4, 6)) {
		t.Fatalf("Add = %v", got)
	}
	if got := b.Sub(a); !got.Equal(New(2, 2)) {
		t.Fatalf("Sub = %v", got)
	}
	if got := a.Scale(2); !got.Equal(New(2, 4)) {
		t.Fatalf("Scale = %v", got)
	}
}

func TestDivByZero(t *testing.T) {
	_, err := New(1, 1).Div(0)
	if err != ErrDivisionByZero {
		t.Fatalf("Div(0) err = %v, want ErrDivisionByZero", err)
	}
}

func TestRangeAndCircle(t *testing.T) {
	p := New(1, 1)
	if !p.IsInRange(New(0, 0), New(2, 2)) {
		t.Fatal("expected p in range")
	}
	if p.IsInRange(New(2, 2), New(3, 3)) {
		t.Fatal("expected p out of range")
	}
	if !p.IsInCircle(New(0, 0), 2) {
		t.Fatal("expected p in circle")
	}
	if p.IsInCircle(New(0, 0), 1) == false && p.Magnitude() > 1 {
		// sanity: magnitude of (1,1) is > 1, so radius 1 circle excludes it
	}
}

func TestLessByMagnitude(t *testing.T) {
	origin := New(0, 0)
	near := New(1, 0)
	far := New(10, 0)
	if !near.Less(far) {
		t.Fatal("expected near < far")
	}
	if far.Less(origin) {
		t.Fatal("expected far not < origin")
	}
}

func TestNormalizeZero(t *testing.T) {
	z := New(0, 0)
	if got := z.Normalize(); !got.Equal(z) {
		t.Fatalf("Normalize(zero) = %v, want zero", got)
	}
}
