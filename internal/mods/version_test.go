package mods

import "testing"

func TestNormalizeVersion(t *testing.T) {
	cases := map[string]string{
		"0.2.2":   "0.2.2",
		"0.14.0":  "0.14.0",
		"0.2.02":  "0.2.2",
		"0.14.00": "0.14.0",
	}
	for in, want := range cases {
		if got := NormalizeVersion(in); got != want {
			t.Errorf("NormalizeVersion(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeVersionIdempotent(t *testing.T) {
	inputs := []string{"0.2.2", "0.2.02", "1.14.00", "0.0.1"}
	for _, in := range inputs {
		once := NormalizeVersion(in)
		twice := NormalizeVersion(once)
		if once != twice {
			t.Errorf("NormalizeVersion not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestParseDependency(t *testing.T) {
	cases := []struct {
		in       string
		wantName Name
		wantKind DependencyKind
		wantReq  bool
	}{
		{"base", "base", DependencyRequired, false},
		{"base >= 1.0.0", "base", DependencyRequired, true},
		{"? optional-lib", "optional-lib", DependencyOptional, false},
		{"(?) hidden-optional", "hidden-optional", DependencyHiddenOptional, false},
		{"! incompatible-mod", "incompatible-mod", DependencyIncompatible, false},
		{"some-lib = 1.2.3", "some-lib", DependencyRequired, true},
	}
	for _, c := range cases {
		dep, err := ParseDependency(c.in)
		if err != nil {
			t.Errorf("ParseDependency(%q) error: %v", c.in, err)
			continue
		}
		if dep.Name != c.wantName || dep.Kind != c.wantKind || (dep.Requirement != nil) != c.wantReq {
			t.Errorf("ParseDependency(%q) = %+v, want name=%q kind=%v hasReq=%v", c.in, dep, c.wantName, c.wantKind, c.wantReq)
		}
	}
}

func TestFactorioVersionMatch(t *testing.T) {
	cases := []struct {
		installed, mod string
		want           bool
	}{
		{"1.1.0", "1.1", true},
		{"1.1.0", "0.18", true},
		{"1.1.0", "1.0", false},
		{"0.17.79", "0.17", true},
		{"2.0.0", "1.1", false},
	}
	for _, c := range cases {
		if got := FactorioVersionMatch(c.installed, c.mod); got != c.want {
			t.Errorf("FactorioVersionMatch(%q, %q) = %v, want %v", c.installed, c.mod, got, c.want)
		}
	}
}

func TestIsBuiltIn(t *testing.T) {
	for _, name := range []Name{"base", "core", "space-age", "quality", "elevated-rails"} {
		if !IsBuiltIn(name) {
			t.Errorf("IsBuiltIn(%q) = false, want true", name)
		}
	}
	if IsBuiltIn("boblibrary") {
		t.Error("IsBuiltIn(\"boblibrary\") = true, want false")
	}
}
