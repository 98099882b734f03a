package similarity

import "math"

// keywordMinLen is the length a token must exceed to count as a keyword.
const keywordMinLen = 3

// profile is the tokenized form of one text, shared by all three metrics.
type profile struct {
	set      map[string]struct{}
	keywords map[string]struct{}
	freq     map[string]int
}

func newProfile(text string) *profile {
	tokens := Tokens(text)
	p := &profile{
		set:      make(map[string]struct{}, len(tokens)),
		keywords: make(map[string]struct{}),
		freq:     make(map[string]int, len(tokens)),
	}
	for _, tok := range tokens {
		p.set[tok] = struct{}{}
		p.freq[tok]++
		if len(tok) > keywordMinLen {
			p.keywords[tok] = struct{}{}
		}
	}
	return p
}

// Jaccard is |A∩B| / |A∪B| over the token sets of a and b.
func Jaccard(a, b string) float64 {
	return jaccard(newProfile(a), newProfile(b))
}

// KeywordOverlap is |A∩B| / max(|A|,|B|) over tokens longer than three characters.
func KeywordOverlap(a, b string) float64 {
	return keywordOverlap(newProfile(a), newProfile(b))
}

// Cosine is the cosine of the term-frequency vectors of a and b.
func Cosine(a, b string) float64 {
	return cosine(newProfile(a), newProfile(b))
}

func jaccard(a, b *profile) float64 {
	if len(a.set) == 0 && len(b.set) == 0 {
		return 1.0
	}
	if len(a.set) == 0 || len(b.set) == 0 {
		return 0.0
	}
	inter := intersectionSize(a.set, b.set)
	union := len(a.set) + len(b.set) - inter
	return float64(inter) / float64(union)
}

func keywordOverlap(a, b *profile) float64 {
	if len(a.keywords) == 0 && len(b.keywords) == 0 {
		return 1.0
	}
	if len(a.keywords) == 0 || len(b.keywords) == 0 {
		return 0.0
	}
	inter := intersectionSize(a.keywords, b.keywords)
	return float64(inter) / float64(max(len(a.keywords), len(b.keywords)))
}

func cosine(a, b *profile) float64 {
	if len(a.freq) == 0 && len(b.freq) == 0 {
		return 1.0
	}
	// Terms missing from either side contribute zero to the dot product, so
	// only the shared vocabulary needs visiting.
	var dot, normA, normB int
	for tok, ca := range a.freq {
		normA += ca * ca
		if cb, ok := b.freq[tok]; ok {
			dot += ca * cb
		}
	}
	for _, cb := range b.freq {
		normB += cb * cb
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return float64(dot) / (math.Sqrt(float64(normA)) * math.Sqrt(float64(normB)))
}

func intersectionSize(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
