package version

import "testing"

func TestCompareReflexiveAndOrder(t *testing.T) {
	cases := []string{"1.2.3", "0.0.1", "10.20.30", "1.2.3+build.5", "weird"}
	for _, c := range cases {
		v := Parse(c)
		if Compare(v, v) != 0 {
			t.Errorf("Compare(%q, %q) should be 0, got non-zero", c, c)
		}
	}

	a, b := Parse("1.2.3"), Parse("1.2.4")
	if Compare(a, b) >= 0 {
		t.Errorf("expected 1.2.3 < 1.2.4")
	}
	if Compare(b, a) <= 0 {
		t.Errorf("expected 1.2.4 > 1.2.3")
	}
}

func TestSatisfiesAny(t *testing.T) {
	for _, v := range []string{"1.0.0", "weird", "0.0.0"} {
		if !Satisfies(v, "*") {
			t.Errorf("Satisfies(%q, \"*\") should be true", v)
		}
		if !Satisfies(v, "") {
			t.Errorf("Satisfies(%q, \"\") should be true", v)
		}
		if !Satisfies(v, "any") {
			t.Errorf("Satisfies(%q, \"any\") should be true", v)
		}
	}
}

func TestSatisfiesTilde(t *testing.T) {
	cases := []struct {
		v    string
		want bool
	}{
		{"1.2.3", true},
		{"1.2.99", true},
		{"1.3.0", false},
		{"1.2.2", false},
	}
	for _, c := range cases {
		if got := Satisfies(c.v, "~1.2.3"); got != c.want {
			t.Errorf("Satisfies(%q, \"~1.2.3\") = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestSatisfiesInterval(t *testing.T) {
	cases := []struct {
		v    string
		want bool
	}{
		{"1.0", true},
		{"1.9.9", true},
		{"0.9.9", false},
		{"2.0", false},
	}
	for _, c := range cases {
		if got := Satisfies(c.v, "[1.0,2.0)"); got != c.want {
			t.Errorf("Satisfies(%q, \"[1.0,2.0)\") = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestSatisfiesComparators(t *testing.T) {
	if !Satisfies("2.0.0", ">=2.0.0") {
		t.Error("expected >=2.0.0 to match 2.0.0")
	}
	if Satisfies("1.9.9", ">=2.0.0") {
		t.Error("expected >=2.0.0 to reject 1.9.9")
	}
	if !Satisfies("1.5.0", "<2.0.0") {
		t.Error("expected <2.0.0 to match 1.5.0")
	}
}

func TestSatisfiesWildcard(t *testing.T) {
	if !Satisfies("1.20.1", "1.20.x") {
		t.Error("expected 1.20.x to match 1.20.1")
	}
	if Satisfies("1.21.0", "1.20.x") {
		t.Error("expected 1.20.x to reject 1.21.0")
	}
	if !Satisfies("1.20.1+build.7", "1.20.x") {
		t.Error("expected trailing +metadata to still match 1.20.x")
	}
}

func TestSatisfiesSpaceAND(t *testing.T) {
	if !Satisfies("1.5.0", ">=1.0.0 <2.0.0") {
		t.Error("expected 1.5.0 to satisfy >=1.0.0 <2.0.0")
	}
	if Satisfies("2.5.0", ">=1.0.0 <2.0.0") {
		t.Error("expected 2.5.0 to fail >=1.0.0 <2.0.0")
	}
}

func TestSatisfiesExact(t *testing.T) {
	if !Satisfies("1.2.3", "1.2.3") {
		t.Error("expected exact match 1.2.3 == 1.2.3")
	}
	if Satisfies("1.2.4", "1.2.3") {
		t.Error("expected exact mismatch 1.2.4 != 1.2.3")
	}
}
