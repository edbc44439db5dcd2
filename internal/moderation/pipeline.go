package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"weebchat/internal/middleware"
	"weebchat/internal/observability"
)

// Score thresholds for bucketing classifier output.
const (
	hardThreshold = 0.85
	softThreshold = 0.55
)

var bannedWords = []string{
	"fuck", "bitch", "btch", "asshole", "slut",
	"nude", "n00d", "idiot",
}

var fictionHints = []string{
	"anime", "manga", "episode", "character", "season", "arc",
	"villain", "hero", "fight", "battle", "series", "story", "plot",
}

// capsPattern matches capitalized word-tokens used as a proper-noun heuristic.
var capsPattern = regexp.MustCompile(`\b[A-Z][a-z]{3,}\b`)

const fictionPreamble = "The following conversation is about fictional anime or manga storylines. " +
	"Mentions of killing, death, or violence are part of fictional discussions and not real threats.\n\n"

// Pipeline evaluates message content through ordered, short-circuiting stages:
// lexical filter, fiction heuristic, external classifier, override rules, and
// score bucketing. Evaluate never fails; classifier errors resolve to a
// fail-open verdict.
type Pipeline struct {
	classifier Classifier
	logger     *slog.Logger
}

// NewPipeline returns a Pipeline backed by the given classifier.
func NewPipeline(classifier Classifier) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		logger:     middleware.Logger,
	}
}

func record(v Verdict) Verdict {
	observability.RecordVerdict(string(v.Category), v.Severity.String())
	return v
}

func floatPtr(f float64) *float64 {
	return &f
}

// Evaluate runs the full pipeline for one message. contextSnippet is the
// room's recent-message snapshot and feeds only the fiction heuristic and the
// classifier input, never the lexical filter.
func (p *Pipeline) Evaluate(ctx context.Context, content, contextSnippet, senderUid string) Verdict {
	if strings.TrimSpace(content) == "" {
		return record(Verdict{
			Flagged:  false,
			Category: CategoryEmpty,
			Score:    floatPtr(0),
			Reason:   "No content provided",
		})
	}

	// Lexical filter short-circuits before any network call.
	lower := strings.ToLower(content)
	for _, word := range bannedWords {
		if strings.Contains(lower, word) {
			return record(Verdict{
				Flagged:  true,
				Category: CategoryBannedWord,
				Score:    floatPtr(1.0),
				Reason:   fmt.Sprintf("Detected banned term: %s", word),
				Severity: SeverityHard,
			})
		}
	}

	isFictional := detectFictionalContext(contextSnippet + " " + content)
	input := buildClassifierInput(content, contextSnippet, isFictional)

	result, err := p.classifier.Classify(ctx, input)
	if err != nil {
		return record(p.failOpen(ctx, err))
	}

	category, score := extractPrimary(result)

	// Sexual content is blocked outright; neither the fiction override nor
	// score bucketing can downgrade it.
	if strings.Contains(string(category), "sexual") || strings.Contains(lower, "sex") {
		return record(Verdict{
			Flagged:  true,
			Category: CategorySexual,
			Score:    floatPtr(score),
			Reason:   "Explicit or sexual content not allowed",
			Severity: SeverityHard,
		})
	}

	// Fictional narrative downgrades violence/death flags only.
	if isFictional && result.Flagged && (category == CategoryViolence || category == CategoryDeath) {
		p.logger.InfoContext(ctx, "fiction override applied",
			slog.String("category", string(category)),
			slog.String("sender_uid", senderUid),
		)
		return record(Verdict{
			Flagged:  false,
			Category: CategoryFictionalContext,
			Score:    floatPtr(score),
			Reason:   "Allowed due to fictional story context",
		})
	}

	if !result.Flagged {
		return record(Verdict{
			Flagged:  false,
			Category: CategoryClean,
			Score:    floatPtr(0),
			Reason:   "Passed AI moderation",
		})
	}

	switch {
	case score >= hardThreshold:
		return record(Verdict{
			Flagged:  true,
			Category: category,
			Score:    floatPtr(score),
			Reason:   "Severe violation",
			Severity: SeverityHard,
		})
	case score >= softThreshold:
		return record(Verdict{
			Flagged:  true,
			Category: category,
			Score:    floatPtr(score),
			Reason:   "Soft violation",
			Severity: SeveritySoft,
		})
	default:
		return record(Verdict{
			Flagged:  false,
			Category: category,
			Score:    floatPtr(score),
			Reason:   "Below moderation threshold",
		})
	}
}

// failOpen maps classifier failures onto diagnostic, not-flagged verdicts.
// Availability wins over strictness: messaging is never blocked by the
// moderation service being down or unconfigured.
func (p *Pipeline) failOpen(ctx context.Context, err error) Verdict {
	category := CategoryModerationError
	reason := "AI moderation failed"
	if errors.Is(err, ErrMissingCredential) {
		category = CategoryConfigError
		reason = "OPENAI_API_KEY missing"
	}

	p.logger.WarnContext(ctx, "moderation classifier failure, failing open",
		slog.String("category", string(category)),
		slog.String("error", err.Error()),
	)

	return Verdict{
		Flagged:  false,
		Category: category,
		Score:    floatPtr(0),
		Reason:   reason,
	}
}

// detectFictionalContext reports whether text reads like fandom or narrative
// discussion: any hint word, or at least two distinct capitalized tokens.
func detectFictionalContext(text string) bool {
	lower := strings.ToLower(text)
	for _, hint := range fictionHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}

	seen := make(map[string]struct{})
	for _, token := range capsPattern.FindAllString(text, -1) {
		seen[token] = struct{}{}
		if len(seen) >= 2 {
			return true
		}
	}
	return false
}

func buildClassifierInput(content, contextSnippet string, isFictional bool) string {
	body := fmt.Sprintf("Conversation so far:\n%s\n---\nNew message:\n%s", contextSnippet, content)
	if isFictional {
		return fictionPreamble + body
	}
	return body
}

// extractPrimary picks the first triggered category in deterministic order and
// the max confidence among triggered categories. Map iteration order must not
// leak into verdicts, so category names are sorted before selection.
func extractPrimary(result *ClassifierResult) (Category, float64) {
	names := make([]string, 0, len(result.Categories))
	for name, triggered := range result.Categories {
		if triggered {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	primary := CategoryFlagged
	if len(names) > 0 {
		primary = ParseCategory(names[0])
	}

	score := 1.0
	found := false
	for _, name := range names {
		if s, ok := result.CategoryScores[name]; ok {
			if !found || s > score {
				score = s
				found = true
			}
		}
	}
	if !result.Flagged && !found {
		score = 0
	}
	return primary, score
}
