package resolver

import (
	"context"
	"strings"

	"routersupervisor/internal/embeddings"
)

// hintMatch is the outcome of locating one of a parameter's semantic
// hints' presence in a prompt, whether literal or only semantically
// similar to some prompt word.
type hintMatch struct {
	hint       string  // the declared semantic hint that matched
	promptText string  // the literal prompt substring to center context on
	score      float64 // 1.0 for a literal hit, else the best word similarity
}

// locateRelevantHint implements the relevance gate of §4.8: a hint counts
// as present if it appears literally in the prompt, or if any prompt word
// has semantic similarity ≥ relevanceWordThreshold to it; the overall score
// must also clear minRelevanceScore (trivially true whenever either
// condition above holds, since both thresholds exceed it — this mirrors
// the spec text, which states the same gate as two redundant conditions).
func (r *Resolver) locateRelevantHint(ctx context.Context, prompt string, hints []string) (hintMatch, bool, error) {
	lowerPrompt := strings.ToLower(prompt)
	for _, hint := range hints {
		if hint == "" {
			continue
		}
		if strings.Contains(lowerPrompt, strings.ToLower(hint)) {
			return hintMatch{hint: hint, promptText: hint, score: 1.0}, true, nil
		}
	}

	words := tokenizeWithPositions(prompt)
	if len(words) == 0 || len(hints) == 0 {
		return hintMatch{}, false, nil
	}

	var best hintMatch
	for _, hint := range hints {
		if hint == "" {
			continue
		}
		hintVec, err := r.embedder.Embed(ctx, hint)
		if err != nil {
			return hintMatch{}, false, err
		}
		for _, w := range words {
			wordVec, err := r.embedder.Embed(ctx, w.text)
			if err != nil {
				return hintMatch{}, false, err
			}
			sim := embeddings.CosineSimilarity(wordVec, hintVec)
			if sim > best.score {
				best = hintMatch{hint: hint, promptText: w.text, score: sim}
			}
		}
	}

	relevant := best.score >= r.cfg.RelevanceWordThreshold && best.score >= r.cfg.MinRelevanceScore
	return best, relevant, nil
}

// extractContext implements §4.8's three-tier context-extraction strategy.
// anchor is the literal text (a hint or a matched prompt word) to center
// the window on; an empty anchor degrades to the plain length-based rule.
func (r *Resolver) extractContext(prompt, anchor string) string {
	if len(prompt) <= fullPromptCeiling {
		return prompt
	}

	idx, anchorLen := locate(prompt, anchor)
	if idx < 0 {
		if len(prompt) > fullPromptCeiling {
			return prompt[:fullPromptCeiling]
		}
		return prompt
	}

	if sentence := sentenceWindow(prompt, idx); len(sentence) >= 100 {
		if len(sentence) > 400 {
			sentence = sentence[:400]
		}
		return sentence
	}

	return fixedWindow(prompt, idx, anchorLen)
}

func locate(prompt, anchor string) (idx, length int) {
	if anchor == "" {
		return -1, 0
	}
	idx = strings.Index(strings.ToLower(prompt), strings.ToLower(anchor))
	return idx, len(anchor)
}

// sentenceWindow returns the sentence containing byte offset idx plus one
// sentence on each side, using '.', '!', '?', '\n' as boundaries.
func sentenceWindow(prompt string, idx int) string {
	spans := splitSentenceSpans(prompt)
	if len(spans) == 0 {
		return ""
	}
	center := -1
	for i, s := range spans {
		if idx >= s.start && idx < s.end {
			center = i
			break
		}
	}
	if center < 0 {
		center = len(spans) - 1
	}
	from := center - 1
	if from < 0 {
		from = 0
	}
	to := center + 1
	if to >= len(spans) {
		to = len(spans) - 1
	}
	return strings.TrimSpace(prompt[spans[from].start:spans[to].end])
}

func fixedWindow(prompt string, idx, anchorLen int) string {
	start := idx - 100
	if start < 0 {
		start = 0
	}
	end := idx + anchorLen + 100
	if end > len(prompt) {
		end = len(prompt)
	}
	return prompt[start:end]
}

type sentenceSpan struct{ start, end int }

func splitSentenceSpans(s string) []sentenceSpan {
	var spans []sentenceSpan
	start := 0
	for i, r := range s {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			spans = append(spans, sentenceSpan{start: start, end: i + 1})
			start = i + 1
		}
	}
	if start < len(s) {
		spans = append(spans, sentenceSpan{start: start, end: len(s)})
	}
	return spans
}

type positionedWord struct {
	text  string
	start int
}

// tokenizeWithPositions splits prompt into lowercase word tokens, used only
// for the embedding comparison side of relevance matching (byte offsets of
// the tokens themselves are not needed since locate() re-finds the winning
// word's own text in the original prompt).
func tokenizeWithPositions(prompt string) []positionedWord {
	lower := strings.ToLower(prompt)
	var words []positionedWord
	start := -1
	for i, r := range lower {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			words = append(words, positionedWord{text: lower[start:i], start: start})
			start = -1
		}
	}
	if start >= 0 {
		words = append(words, positionedWord{text: lower[start:], start: start})
	}
	return words
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' || r > 0x2FFF
}
