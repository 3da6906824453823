package dedup

import (
	"hash/fnv"
	"math/bits"
	"strings"
	"unicode"

	"qaforge/types"
)

// shingleSize is the number of words per feature. Three-word shingles keep
// reworded-but-equivalent test cases within a few bits of each other while
// unrelated cases land far apart.
const shingleSize = 3

// Fingerprint computes a 64-bit simhash over the given text.
func Fingerprint(text string) uint64 {
	features := shingles(normalize(text), shingleSize)
	if len(features) == 0 {
		return 0
	}

	var vector [64]int
	for _, feature := range features {
		h := fnv.New64a()
		h.Write([]byte(feature))
		sum := h.Sum64()
		for bit := 0; bit < 64; bit++ {
			if sum&(1<<uint(bit)) != 0 {
				vector[bit]++
			} else {
				vector[bit]--
			}
		}
	}

	var fp uint64
	for bit := 0; bit < 64; bit++ {
		if vector[bit] > 0 {
			fp |= 1 << uint(bit)
		}
	}
	return fp
}

// CaseFingerprint derives the similarity fingerprint for a test case from
// its title and steps.
func CaseFingerprint(tc types.TestCase) uint64 {
	var sb strings.Builder
	sb.WriteString(tc.Title)
	for _, step := range tc.Steps {
		sb.WriteString(" ")
		sb.WriteString(step)
	}
	return Fingerprint(sb.String())
}

// Hamming returns the number of differing bits between two fingerprints.
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

func normalize(text string) []string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)
	return strings.Fields(mapped)
}

func shingles(words []string, size int) []string {
	if len(words) == 0 {
		return nil
	}
	if len(words) <= size {
		return []string{strings.Join(words, " ")}
	}
	out := make([]string, 0, len(words)-size+1)
	for i := 0; i+size <= len(words); i++ {
		out = append(out, strings.Join(words[i:i+size], " "))
	}
	return out
}
