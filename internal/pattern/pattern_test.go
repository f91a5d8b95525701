package pattern

import "testing"

func TestNormalizeIdempotent(t *testing.T) {
	cases := []string{
		"./src/main.rs", "././src/main.rs", "src\\lib.rs", "/src/main.rs",
		"  src/main.rs  ", "src/", "src/api/", "/", "./",
	}
	for _, c := range cases {
		once := Normalize(c)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("normalize not idempotent for %q: %q vs %q", c, once, twice)
		}
	}
}

func TestNormalizeValues(t *testing.T) {
	cases := map[string]string{
		"./src/main.rs": "src/main.rs",
		"src\\lib.rs":    "src/lib.rs",
		"/src/main.rs":   "src/main.rs",
		"src/":           "src",
		"/":              "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOverlapsSymmetry(t *testing.T) {
	pairs := [][2]string{
		{"src/**", "src/main.rs"},
		{"src/*.rs", "docs/*.md"},
		{"./src/**", "src/**"},
		{"src/a*", "src/*b"},
		{"src", "src/main.rs"},
		{"src/main", "src/main.rs"},
	}
	for _, p := range pairs {
		if Overlaps(p[0], p[1]) != Overlaps(p[1], p[0]) {
			t.Errorf("overlap not symmetric for %v", p)
		}
	}
}

func TestOverlapsScenarioS3(t *testing.T) {
	if !Overlaps("src/**", "src/main.rs") {
		t.Error("expected overlap: src/** vs src/main.rs")
	}
	if Overlaps("src/*.rs", "docs/*.md") {
		t.Error("expected no overlap: src/*.rs vs docs/*.md")
	}
	if !Overlaps("./src/**", "src/**") {
		t.Error("expected overlap: ./src/** vs src/**")
	}
	if !Overlaps("src/a*", "src/*b") {
		t.Error("expected conservative overlap: src/a* vs src/*b")
	}
}

func TestOverlapsDirectoryPrefix(t *testing.T) {
	if !Overlaps("src", "src/main.rs") {
		t.Error("expected directory-prefix overlap")
	}
	if Overlaps("src/main", "src/main.rs") {
		t.Error("non-boundary prefix must not overlap")
	}
}

func TestOverlapsInvalidGlobOnlyMatchesIdentical(t *testing.T) {
	if Overlaps("[abc", "abc") {
		t.Error("invalid glob must not overlap with unrelated literal")
	}
	if !Overlaps("[abc", " [abc ") {
		t.Error("identical invalid glob text must overlap with itself")
	}
	if Overlaps("[abc", "[def") {
		t.Error("distinct invalid globs must not overlap")
	}
}

func TestCacheEvictionPreservesCorrectness(t *testing.T) {
	for i := 0; i < cacheCapacity+64; i++ {
		left := "dir/**"
		right := "dir/main.rs"
		_ = Overlaps(left, right)
	}
	if !Overlaps("src/**/*.rs", "src/main.rs") {
		t.Error("expected overlap after cache churn")
	}
}
