package usecase

import (
	"github.com/fairyhunter13/resume-job-matcher/internal/config"
)

// Fusion combines the embedding similarity and LLM relevance signals into a
// single hybrid score and classifies it. Pure and total: every input pair in
// [0,1]x[0,1] yields a bounded score and exactly one category.
type Fusion struct {
	cosineWeight float64
	llmWeight    float64

	thresholdExcellent float64
	thresholdGood      float64
	thresholdModerate  float64

	labelExcellent string
	labelGood      string
	labelModerate  string
	labelPoor      string
}

// NewFusion builds the fusion policy from config. Config validation already
// guarantees non-negative weights with a positive sum and ordered thresholds.
func NewFusion(cfg config.Config) Fusion {
	return Fusion{
		cosineWeight:       cfg.HybridCosineWeight,
		llmWeight:          cfg.HybridLLMWeight,
		thresholdExcellent: cfg.ThresholdExcellent,
		thresholdGood:      cfg.ThresholdGood,
		thresholdModerate:  cfg.ThresholdModerate,
		labelExcellent:     cfg.LabelExcellent,
		labelGood:          cfg.LabelGood,
		labelModerate:      cfg.LabelModerate,
		labelPoor:          cfg.LabelPoor,
	}
}

// Fuse returns the weighted hybrid score rounded to 2 decimals plus its
// category. The sum normalization keeps the score in [0,1] even when the
// configured weights do not sum to exactly one.
func (f Fusion) Fuse(cosineScore, llmScore float64) (float64, string) {
	cosineScore = clamp01(cosineScore)
	llmScore = clamp01(llmScore)
	hybrid := (f.cosineWeight*cosineScore + f.llmWeight*llmScore) / (f.cosineWeight + f.llmWeight)
	hybrid = round(hybrid, 2)
	return hybrid, f.Categorize(hybrid)
}

// Categorize maps a hybrid score to its match tier.
func (f Fusion) Categorize(score float64) string {
	switch {
	case score >= f.thresholdExcellent:
		return f.labelExcellent
	case score >= f.thresholdGood:
		return f.labelGood
	case score >= f.thresholdModerate:
		return f.labelModerate
	default:
		return f.labelPoor
	}
}
