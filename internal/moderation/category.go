// Package moderation implements the multi-stage content evaluation pipeline.
package moderation

import "strings"

// Category is a closed tag set for moderation outcomes. Classifier category
// names outside the set parse to CategoryUnknown so override logic stays
// exhaustive.
type Category string

const (
	CategoryEmpty            Category = "empty"
	CategoryClean            Category = "clean"
	CategoryBannedWord       Category = "banned_word"
	CategorySexual           Category = "sexual"
	CategoryViolence         Category = "violence"
	CategoryDeath            Category = "death"
	CategoryHarassment       Category = "harassment"
	CategoryHate             Category = "hate"
	CategorySelfHarm         Category = "self_harm"
	CategoryFictionalContext Category = "fictional_context"
	CategoryFlagged          Category = "flagged"
	CategoryConfigError      Category = "config_error"
	CategoryModerationError  Category = "moderation_error"
	CategoryError            Category = "error"
	CategoryUnknown          Category = "unknown"
)

// ParseCategory maps a raw classifier category name onto the closed set.
// Classifier vocabularies use slash- and dash-qualified names like
// "sexual/minors" or "self-harm/intent"; the leading segment decides the tag.
func ParseCategory(raw string) Category {
	name := strings.ToLower(strings.TrimSpace(raw))
	if idx := strings.IndexAny(name, "/"); idx >= 0 {
		name = name[:idx]
	}
	name = strings.ReplaceAll(name, "-", "_")

	switch Category(name) {
	case CategorySexual, CategoryViolence, CategoryDeath, CategoryHarassment,
		CategoryHate, CategorySelfHarm, CategoryBannedWord, CategoryFlagged,
		CategoryEmpty, CategoryClean, CategoryFictionalContext,
		CategoryConfigError, CategoryModerationError, CategoryError:
		return Category(name)
	}
	return CategoryUnknown
}

// Severity is the policy bucket a verdict falls into.
type Severity int

const (
	SeverityNone Severity = iota
	SeveritySoft
	SeverityHard
)

func (s Severity) String() string {
	switch s {
	case SeveritySoft:
		return "soft"
	case SeverityHard:
		return "hard"
	default:
		return "none"
	}
}

// Verdict is the pipeline's output for a single evaluation.
type Verdict struct {
	Flagged  bool     `json:"flagged"`
	Category Category `json:"category"`
	Score    *float64 `json:"score,omitempty"`
	Reason   string   `json:"reason"`
	Severity Severity `json:"-"`
}
