package similarity

import (
	"io"
	"log/slog"
	"sort"

	"agentjungle/internal/domain"
)

// Match is the best-scoring agent of a matching pass.
type Match struct {
	Agent domain.AgentRecord
	Score float64
}

// Candidate is one row of a Rank report.
type Candidate struct {
	Agent          domain.AgentRecord `json:"agent"`
	Score          float64            `json:"similarity_score"`
	MeetsThreshold bool               `json:"meets_threshold"`
}

// Matcher selects the registry record most similar to a capability description.
type Matcher struct {
	scorer *Scorer
	logger *slog.Logger
}

// NewMatcher creates a Matcher. A nil scorer uses the default weights and
// cache size; a nil logger discards output.
func NewMatcher(scorer *Scorer, logger *slog.Logger) *Matcher {
	if scorer == nil {
		scorer = NewScorer(DefaultWeights(), DefaultCacheSize)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Matcher{scorer: scorer, logger: logger}
}

// FindBestMatch scans snapshot in stored order and returns the first record
// with the highest score, provided that score reaches threshold.
func (m *Matcher) FindBestMatch(query string, snapshot []domain.AgentRecord, threshold float64) (Match, bool) {
	if len(snapshot) == 0 {
		m.logger.Debug("no agents available for matching")
		return Match{}, false
	}

	q := newProfile(query)
	best, bestScore := -1, 0.0
	for i, rec := range snapshot {
		score := m.scorer.combine(q, m.scorer.candidate(CandidateText(rec)))
		m.logger.Debug("agent scored", "agent", rec.Name, "score", score)
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}

	if bestScore >= threshold {
		m.logger.Info("similar agent found",
			"agent", snapshot[best].Name, "score", bestScore, "threshold", threshold)
		return Match{Agent: snapshot[best], Score: bestScore}, true
	}
	m.logger.Info("no similar agent found", "best_score", bestScore, "threshold", threshold)
	return Match{}, false
}

// Rank scores every record in snapshot and returns them best first. Records
// with equal scores keep their stored order.
func (m *Matcher) Rank(query string, snapshot []domain.AgentRecord, threshold float64) []Candidate {
	q := newProfile(query)
	out := make([]Candidate, 0, len(snapshot))
	for _, rec := range snapshot {
		score := m.scorer.combine(q, m.scorer.candidate(CandidateText(rec)))
		out = append(out, Candidate{Agent: rec, Score: score, MeetsThreshold: score >= threshold})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
