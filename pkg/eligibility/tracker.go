package eligibility

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"election_client/pkg/api"
)

// Status is a position's eligibility state for the current user.
type Status string

const (
	// StatusUnknown means no duplicate rejection or acceptance has been
	// observed yet; the user may attempt to vote.
	StatusUnknown Status = "unknown"
	// StatusVoted is terminal: once set it never reverts within a session.
	StatusVoted Status = "voted"
)

// Prober submits a vote request purely to read the rejection reason.
type Prober interface {
	Vote(ctx context.Context, candidateID, position string) (string, error)
}

// Tracker infers per-position vote eligibility. The backend has no "list my
// votes" endpoint, so the only reliable signal of a prior vote is its
// duplicate rejection. Every position starts Unknown and flips to Voted
// strictly on an observed duplicate rejection or an accepted submission.
type Tracker struct {
	prober       Prober
	sentinelID   string
	probeEnabled bool
	logger       *zap.Logger

	mu    sync.RWMutex
	voted map[string]bool
}

// NewTracker creates an eligibility tracker. sentinelID is the candidate id
// used for probe requests; it must not identify a real candidate.
func NewTracker(prober Prober, sentinelID string, probeEnabled bool, logger *zap.Logger) *Tracker {
	return &Tracker{
		prober:       prober,
		sentinelID:   sentinelID,
		probeEnabled: probeEnabled,
		logger:       logger,
		voted:        make(map[string]bool),
	}
}

// Check probes each still-Unknown position for a prior vote. A probe is a
// vote request for the sentinel candidate; only the exact duplicate
// rejection flips the position to Voted. Any other outcome, including the
// backend accepting the sentinel, is inconclusive and leaves the position
// Unknown. A probe must never be read as a successful vote.
func (t *Tracker) Check(ctx context.Context, positions []string) {
	if !t.probeEnabled {
		return
	}

	for _, position := range positions {
		if t.HasVoted(position) {
			continue
		}

		_, err := t.prober.Vote(ctx, t.sentinelID, position)
		switch {
		case err == nil:
			// The backend accepted the sentinel as a real vote. The probe
			// heuristic is unsafe against this backend; leave Unknown and
			// say so loudly.
			t.logger.Error("Eligibility probe was accepted as a real vote",
				zap.String("position", position),
				zap.String("sentinelID", t.sentinelID))
		case errors.Is(err, api.ErrAlreadyVoted):
			t.markVoted(position)
			t.logger.Debug("Probe confirmed prior vote",
				zap.String("position", position))
		default:
			// Validation error, network failure, anything else: inconclusive.
			t.logger.Debug("Eligibility probe inconclusive",
				zap.String("position", position),
				zap.Error(err))
		}
	}
}

// MarkVoted records an authoritative observation that the user has voted for
// the position: an accepted submission or a duplicate rejection. Terminal.
func (t *Tracker) MarkVoted(position string) {
	t.markVoted(position)
}

// HasVoted reports whether the position is known to be voted.
func (t *Tracker) HasVoted(position string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.voted[position]
}

// Status returns the position's eligibility state.
func (t *Tracker) Status(position string) Status {
	if t.HasVoted(position) {
		return StatusVoted
	}
	return StatusUnknown
}

// VotedPositions returns all positions known to be voted.
func (t *Tracker) VotedPositions() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	positions := make([]string, 0, len(t.voted))
	for position := range t.voted {
		positions = append(positions, position)
	}
	return positions
}

// Reset clears all eligibility state. Eligibility is scoped to one
// authenticated session; call this when the user changes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.voted = make(map[string]bool)
	t.mu.Unlock()
}

func (t *Tracker) markVoted(position string) {
	t.mu.Lock()
	t.voted[position] = true
	t.mu.Unlock()
}
