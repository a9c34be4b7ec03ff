package results

import (
	"sort"

	"election_client/pkg/api"
)

// CandidateResult is one candidate's share of a position's tally.
type CandidateResult struct {
	Name     string  `json:"name"`
	ImageURL string  `json:"image_url"`
	Votes    int     `json:"votes"`
	Percent  float64 `json:"percent"`
}

// PositionResult is the computed standing for one position. Leader is the
// top candidate after sorting; it is empty when the position has no votes.
type PositionResult struct {
	Position   string            `json:"position"`
	Candidates []CandidateResult `json:"candidates"`
	TotalVotes int               `json:"total_votes"`
	Leader     string            `json:"leader,omitempty"`
}

// Compute turns raw tallies into display-ready standings. Pure: identical
// input always yields identical output. Candidates sort by votes descending;
// ties keep their input order (no tie-break on name). Percentages are
// votes/total*100, defined as 0 when the total is 0. Positions are ordered
// by name so output is deterministic regardless of map iteration.
func Compute(raw map[string][]api.TallyEntry) []PositionResult {
	positions := make([]string, 0, len(raw))
	for position := range raw {
		positions = append(positions, position)
	}
	sort.Strings(positions)

	computed := make([]PositionResult, 0, len(positions))
	for _, position := range positions {
		computed = append(computed, computePosition(position, raw[position]))
	}
	return computed
}

func computePosition(position string, entries []api.TallyEntry) PositionResult {
	sorted := make([]api.TallyEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Votes > sorted[j].Votes
	})

	total := 0
	for _, entry := range sorted {
		total += entry.Votes
	}

	result := PositionResult{
		Position:   position,
		Candidates: make([]CandidateResult, 0, len(sorted)),
		TotalVotes: total,
	}

	for _, entry := range sorted {
		percent := 0.0
		if total > 0 {
			percent = float64(entry.Votes) / float64(total) * 100
		}
		result.Candidates = append(result.Candidates, CandidateResult{
			Name:     entry.Name,
			ImageURL: entry.ImageURL,
			Votes:    entry.Votes,
			Percent:  percent,
		})
	}

	if total > 0 && len(result.Candidates) > 0 {
		result.Leader = result.Candidates[0].Name
	}

	return result
}
