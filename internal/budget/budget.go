// Package budget provides token budget estimation and reference trimming for
// generation prompts. Because generation supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose and code).
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default prompt budget in tokens. It fits
	// within 8k-context models while leaving room for the output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimReferences drops the lowest-ranked references (the tail of refs) until
// fixed plus the remaining references fit within maxTokens. refs must be
// ordered best-first. fixed is never trimmed; if it alone exceeds the budget
// an empty slice is returned and the caller decides whether to proceed.
func TrimReferences(fixed string, refs []string, maxTokens int) []string {
	used := Estimate(fixed)
	for i, r := range refs {
		used += Estimate(r)
		if used > maxTokens {
			return refs[:i]
		}
	}
	return refs
}
