package codec

// The character permutation below is the "shuffle" half of the obfuscation.
// It is seeded from the input length alone, so the same length always
// produces the same permutation and decode can reconstruct it exactly.

const (
	seedMix  = 0x9E3779B97F4A7C15 // Weyl constant, mixes the length into the seed
	lcgMul   = 6364136223846793005
	lcgInc   = 1442695040888963407
	seedBase = 0x5DEECE66D
)

// permutation returns the deterministic index permutation for length n.
func permutation(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	s := uint64(seedBase) ^ uint64(n)*seedMix
	for i := n - 1; i > 0; i-- {
		s = s*lcgMul + lcgInc
		j := int(s % uint64(i+1))
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx
}

// scramble permutes the characters of text.
func scramble(text string) string {
	perm := permutation(len(text))
	out := make([]byte, len(text))
	for i, p := range perm {
		out[i] = text[p]
	}
	return string(out)
}

// unscramble inverts scramble. Returns false only for input that cannot be
// a scrambled string (currently nothing; kept for parity with Decode's
// uniform failure contract).
func unscramble(s string) (string, bool) {
	perm := permutation(len(s))
	out := make([]byte, len(s))
	for i, p := range perm {
		out[p] = s[i]
	}
	return string(out), true
}
