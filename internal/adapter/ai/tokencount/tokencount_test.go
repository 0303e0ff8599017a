package tokencount

import "testing"

func TestNormalizeModelName(t *testing.T) {
	cases := map[string]string{
		"gpt-4o":                             "gpt-4",
		"GPT-3.5-Turbo":                      "gpt-3.5-turbo",
		"meta-llama/llama-3.1-8b-instruct":   "gpt-4",
		"qwen/qwen-2.5-7b-instruct:free":     "gpt-4",
		"phi-2":                              "gpt-4",
		"mistralai/mistral-7b-instruct:free": "gpt-4",
	}
	for in, want := range cases {
		if got := normalizeModelName(in); got != want {
			t.Errorf("normalizeModelName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncateNoBudgetIsIdentity(t *testing.T) {
	c := NewCounter()
	text := "senior go engineer with postgres experience"
	if got := c.Truncate(text, "phi-2", 0); got != text {
		t.Fatalf("zero budget must not truncate, got %q", got)
	}
	if got := c.Truncate(text, "phi-2", -5); got != text {
		t.Fatalf("negative budget must not truncate, got %q", got)
	}
}
