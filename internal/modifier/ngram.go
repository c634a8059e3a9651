package modifier

import (
	"strings"
	"unicode"
)

// maxNGram bounds how many prompt words are joined into a single candidate
// n-gram when searching for the best match to one phrase word.
const maxNGram = 3

// tokenize splits s into lowercase word tokens, treating any run of
// non-alphanumeric runes (other than '_' and '-') as a separator.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r > 0x2FFF
}

// promptNGrams returns every contiguous run of 1..maxNGram tokens in prompt,
// joined back into space-separated phrases, as candidates for the
// best-n-gram search in Extract.
func promptNGrams(prompt string) []string {
	tokens := tokenize(prompt)
	var grams []string
	for n := 1; n <= maxNGram; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			grams = append(grams, strings.Join(tokens[i:i+n], " "))
		}
	}
	return grams
}
