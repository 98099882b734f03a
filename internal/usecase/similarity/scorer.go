package similarity

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"agentjungle/internal/domain"
)

// DefaultThreshold is the minimum combined score for an agent to be reused.
const DefaultThreshold = 0.09

// DefaultCacheSize is the number of candidate profiles kept by NewScorer callers
// that have no configured size.
const DefaultCacheSize = 512

// Weights are the coefficients of the three sub-metrics in the combined score.
type Weights struct {
	Jaccard float64
	Keyword float64
	Cosine  float64
}

// DefaultWeights returns the standard 0.4/0.3/0.3 weighting.
func DefaultWeights() Weights {
	return Weights{Jaccard: 0.4, Keyword: 0.3, Cosine: 0.3}
}

// Scorer combines Jaccard, keyword overlap and cosine similarity into a
// single score in [0,1]. It is safe for concurrent use.
type Scorer struct {
	weights Weights
	cache   *lru.Cache[string, *profile] // candidate text -> profile; nil = disabled
}

// NewScorer creates a Scorer. cacheSize <= 0 disables the candidate profile cache.
func NewScorer(weights Weights, cacheSize int) *Scorer {
	s := &Scorer{weights: weights}
	if cacheSize > 0 {
		// lru.New only errors on a non-positive size, which is guarded above.
		s.cache, _ = lru.New[string, *profile](cacheSize)
	}
	return s
}

// Weights returns the scorer's metric weights.
func (s *Scorer) Weights() Weights { return s.weights }

// Score returns the clamped weighted similarity of query and candidateText.
func (s *Scorer) Score(query, candidateText string) float64 {
	return s.combine(newProfile(query), s.candidate(candidateText))
}

// CandidateText is the text an agent is compared on: its description, task
// type and name, space-joined in that order.
func CandidateText(rec domain.AgentRecord) string {
	return rec.Description + " " + rec.TaskType + " " + rec.Name
}

func (s *Scorer) candidate(text string) *profile {
	if s.cache == nil {
		return newProfile(text)
	}
	if p, ok := s.cache.Get(text); ok {
		return p
	}
	p := newProfile(text)
	s.cache.Add(text, p)
	return p
}

func (s *Scorer) combine(q, c *profile) float64 {
	score := jaccard(q, c)*s.weights.Jaccard +
		keywordOverlap(q, c)*s.weights.Keyword +
		cosine(q, c)*s.weights.Cosine
	// Float rounding, or weights summing past 1, can push the total above 1.
	if score > 1.0 {
		return 1.0
	}
	if score < 0 {
		return 0
	}
	return score
}
