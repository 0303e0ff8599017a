// Package textx contains tests for the text utilities.
package textx

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Senior Python Developer", "senior python developer"},
		{"collapses whitespace", "django\t\nexperience   required", "django experience required"},
		{"strips punctuation", "C++, SQL & REST-APIs!", "c sql restapis"},
		{"keeps periods", "B.Sc. in C.S.", "b.sc. in c.s."},
		{"empty", "", ""},
		{"whitespace only", " \n\t ", ""},
		{"unicode letters kept", "Développeur Sénior", "développeur sénior"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Senior Python Developer, 5+ years (Django)!",
		"a - b",
		"  MIXED   case\twith\nnewlines  ",
		"plain",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestSanitizeText(t *testing.T) {
	in := "he\x00llo\nwo\x7frld\t!"
	got := SanitizeText(in)
	if got != "hello\nworld\t!" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestContentHashNormalizes(t *testing.T) {
	a := ContentHash("Senior   Python Developer")
	b := ContentHash("senior python developer")
	if a != b {
		t.Fatalf("hashes differ for texts with the same normalized form")
	}
	if ContentHash("senior python developer") == ContentHash("graphic designer") {
		t.Fatalf("distinct texts must not collide")
	}
}

func TestWordCount(t *testing.T) {
	if got := WordCount("senior python developer"); got != 3 {
		t.Fatalf("got %d, want 3", got)
	}
	if got := WordCount(""); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}
