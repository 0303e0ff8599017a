package llmscore

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
)

// numberPattern matches decimal-shaped substrings ("0.82", ".75", "1", "42").
// Candidates outside [0,1] are rejected afterwards, so "10" or "1.5" never
// masquerade as scores.
var numberPattern = regexp.MustCompile(`\d*\.\d+|\d+`)

// ParseScore extracts the first decimal in [0,1] from free-form model output.
// When no such value exists it returns 0.0 together with
// domain.ErrParseFailure so callers can tell a degraded zero from a genuine
// one.
func ParseScore(raw string) (float64, error) {
	for _, m := range numberPattern.FindAllString(raw, -1) {
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			continue
		}
		if v >= 0 && v <= 1 {
			return v, nil
		}
	}
	return 0.0, fmt.Errorf("op=llmscore.ParseScore: %w: no decimal in [0,1] in %q",
		domain.ErrParseFailure, truncateForLog(raw))
}

func truncateForLog(s string) string {
	if len(s) > 128 {
		return s[:128]
	}
	return s
}
