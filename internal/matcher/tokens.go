package matcher

import (
	"strings"
	"unicode"
)

// simpleTokens is the small multilingual set of words whose presence in a
// prompt forces a LOW confidence regardless of normalized score (spec.md
// §4.6). Plain Go string-set literals: no i18n library appears anywhere in
// the example corpus to justify a dependency for this (see DESIGN.md).
var simpleTokens = map[string]bool{
	// English
	"simple": true, "basic": true, "minimal": true, "just": true, "only": true, "plain": true,
	// Spanish
	"básico": true, "basico": true, "mínimo": true, "minimo": true, "solo": true, "solamente": true,
	// French
	"basique": true, "juste": true, "seulement": true,
	// German
	"einfach": true, "simpel": true, "nur": true,
	// Italian
	"semplice": true, "basilare": true,
	// Portuguese
	"simples": true, "apenas": true,
	// Japanese
	"シンプル": true, "簡単": true, "基本": true,
	// Chinese (simplified)
	"简单": true, "基础": true, "仅仅": true,
}

// hasSimpleToken reports whether any multilingual "simple" cue word
// appears in prompt as a whole word or script-level substring.
func hasSimpleToken(prompt string) bool {
	lower := strings.ToLower(prompt)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r == '_' || r == '-' || isWordRune(r))
	})
	wordSet := make(map[string]bool, len(fields))
	for _, f := range fields {
		wordSet[f] = true
	}
	for token := range simpleTokens {
		if wordSet[token] {
			return true
		}
		// CJK tokens have no word-boundary spacing; fall back to substring.
		if containsCJK(token) && strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r > 0x2FFF
}

func containsCJK(s string) bool {
	for _, r := range s {
		if r > 0x2E80 {
			return true
		}
	}
	return false
}
