// Package simhash fingerprints job postings so near-identical listings
// (the same position reposted with cosmetic tweaks) can be collapsed.
package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
	"unicode"
)

// DefaultThreshold is the Hamming distance at or below which two
// postings are treated as the same listing.
const DefaultThreshold = 3

// Fingerprint computes a 64-bit SimHash of the given fields.
// Uses FNV-64a on tokens with bit vector accumulation. Fields are
// tokenized independently so reordering text across fields changes
// the fingerprint less than changing the text itself.
func Fingerprint(fields ...string) uint64 {
	var tokens []string
	for _, f := range fields {
		tokens = append(tokens, tokenize(f)...)
	}
	if len(tokens) == 0 {
		return 0
	}

	var vector [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		hash := h.Sum64()

		for i := 0; i < 64; i++ {
			if hash&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fingerprint uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fingerprint |= 1 << uint(i)
		}
	}
	return fingerprint
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether the Hamming distance between two
// fingerprints is at most threshold.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

// tokenize splits text into comparable tokens. Latin and digit runs
// split on whitespace like English words; Han runs have no word
// boundaries, so they become overlapping rune bigrams instead.
func tokenize(text string) []string {
	var tokens []string
	var latin []rune
	var han []rune

	flushLatin := func() {
		if len(latin) > 0 {
			tokens = append(tokens, strings.ToLower(string(latin)))
			latin = latin[:0]
		}
	}
	flushHan := func() {
		if len(han) == 1 {
			tokens = append(tokens, string(han))
		}
		for i := 0; i+1 < len(han); i++ {
			tokens = append(tokens, string(han[i:i+2]))
		}
		han = han[:0]
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flushLatin()
			han = append(han, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushHan()
			latin = append(latin, r)
		default:
			flushLatin()
			flushHan()
		}
	}
	flushLatin()
	flushHan()
	return tokens
}
