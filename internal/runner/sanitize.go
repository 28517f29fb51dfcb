package runner

import (
	"log/slog"
	"regexp"
	"strings"
)

// Sanitize cleans accumulated agent output before it is recorded as a
// conversation message. CLIs occasionally leak reasoning tags or repeat
// whole paragraphs when their stream is replayed; routing markers are
// deliberately left untouched.
func Sanitize(content string) string {
	if content == "" {
		return content
	}
	original := content

	content = stripThinkingTags(content)
	content = collapseDuplicateBlocks(content)
	content = strings.TrimSpace(content)

	if content != original {
		slog.Debug("sanitized agent output",
			"original_len", len(original), "cleaned_len", len(content))
	}
	return content
}

// Reasoning tags some models emit as literal text. Go regexp has no
// backreferences, so one pattern per tag.
var thinkingTagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<think>.*?</think>`),
	regexp.MustCompile(`(?is)<thinking>.*?</thinking>`),
	regexp.MustCompile(`(?is)<thought>.*?</thought>`),
}

func stripThinkingTags(content string) string {
	lower := strings.ToLower(content)
	if !strings.Contains(lower, "<think") && !strings.Contains(lower, "<thought") {
		return content
	}
	for _, pat := range thinkingTagPatterns {
		content = pat.ReplaceAllString(content, "")
	}
	return strings.TrimSpace(content)
}

// collapseDuplicateBlocks removes consecutively repeated paragraph blocks.
func collapseDuplicateBlocks(content string) string {
	blocks := strings.Split(content, "\n\n")
	if len(blocks) <= 1 {
		return content
	}

	var result []string
	for _, block := range blocks {
		trimmed := strings.TrimSpace(block)
		if trimmed == "" {
			continue
		}
		if len(result) > 0 && trimmed == strings.TrimSpace(result[len(result)-1]) {
			continue
		}
		result = append(result, block)
	}
	return strings.Join(result, "\n\n")
}
