// Package simhash computes 64-bit SimHash fingerprints for listing titles
// and result-page layouts.
package simhash

import (
	"hash/fnv"
	"math/bits"
	"regexp"
	"strings"
)

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

// Fingerprint computes a 64-bit SimHash of the given tokens.
// Uses FNV-64a per token with bit vector accumulation.
func Fingerprint(tokens []string) uint64 {
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

// Title fingerprints a product title. Punctuation and case are ignored;
// words and adjacent word pairs both contribute, so reordered titles stay
// close while titles differing in a model number drift apart.
func Title(title string) uint64 {
	words := wordRe.FindAllString(strings.ToLower(title), -1)
	tokens := make([]string, 0, 2*len(words))
	tokens = append(tokens, words...)
	tokens = append(tokens, makeShingles(words, 2)...)
	return Fingerprint(tokens)
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Near reports whether two fingerprints are within threshold bits.
func Near(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

// makeShingles creates n-gram shingles from a slice of tokens.
func makeShingles(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}

	shingles := make([]string, 0, len(tokens)-n+1)
	for i := 0; i <= len(tokens)-n; i++ {
		shingles = append(shingles, strings.Join(tokens[i:i+n], "_"))
	}
	return shingles
}
