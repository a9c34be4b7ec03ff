package ballot

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"election_client/pkg/api"
	"election_client/pkg/catalog"
	"election_client/pkg/eligibility"
)

// Outcome classifies how a submission attempt resolved.
type Outcome string

const (
	// OutcomeAccepted means the backend recorded the vote.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeRejectedDuplicate means the backend reported a prior vote for
	// the position. This is a resolved terminal state, not an error.
	OutcomeRejectedDuplicate Outcome = "rejected_duplicate"
	// OutcomeRejectedOther covers validation errors, network failures and
	// unknown rejections. The user may retry.
	OutcomeRejectedOther Outcome = "rejected_other"
	// OutcomeInProgress means another submission for the same position was
	// already in flight; the attempt never reached the backend.
	OutcomeInProgress Outcome = "submission_in_progress"
)

// Result is the resolved state of one submission attempt.
type Result struct {
	AttemptID   string
	Position    string
	CandidateID string
	Outcome     Outcome
	Message     string
}

// Submitter sends a single vote request.
type Submitter interface {
	Vote(ctx context.Context, candidateID, position string) (string, error)
}

// CatalogSource exposes the currently published catalog.
type CatalogSource interface {
	Current() (*catalog.Catalog, bool)
}

// Controller serializes vote submissions per position and maps backend
// outcomes onto the fixed result set. Each accepted attempt sends exactly one
// request; nothing is retried automatically, since a vote is not safe to
// resend without knowing whether the first attempt was recorded.
type Controller struct {
	backend  Submitter
	catalogs CatalogSource
	tracker  *eligibility.Tracker
	logger   *zap.Logger

	mu       sync.Mutex
	inflight map[string]bool
}

// NewController creates a ballot submission controller
func NewController(backend Submitter, catalogs CatalogSource, tracker *eligibility.Tracker, logger *zap.Logger) *Controller {
	return &Controller{
		backend:  backend,
		catalogs: catalogs,
		tracker:  tracker,
		logger:   logger,
		inflight: make(map[string]bool),
	}
}

// Submit casts a vote for candidateID in position. Submissions for different
// positions proceed independently; a second submission for a position with a
// pending attempt resolves locally with OutcomeInProgress. An in-flight
// submission runs to completion before the position is released.
func (c *Controller) Submit(ctx context.Context, position, candidateID string) Result {
	result := Result{
		AttemptID:   uuid.NewString(),
		Position:    position,
		CandidateID: candidateID,
	}

	cat, ok := c.catalogs.Current()
	if !ok || !cat.Has(position) {
		result.Outcome = OutcomeRejectedOther
		result.Message = "Unknown position"
		return result
	}
	if !cat.CandidateIn(position, candidateID) {
		result.Outcome = OutcomeRejectedOther
		result.Message = "Candidate does not run for this position"
		return result
	}

	// Locally known prior vote: resolve without a network call.
	if c.tracker.HasVoted(position) {
		result.Outcome = OutcomeRejectedDuplicate
		result.Message = "Already voted for this position"
		return result
	}

	if !c.acquire(position) {
		result.Outcome = OutcomeInProgress
		result.Message = api.ErrSubmissionInProgress.Error()
		return result
	}
	defer c.release(position)

	c.logger.Info("Submitting vote",
		zap.String("attemptID", result.AttemptID),
		zap.String("position", position),
		zap.String("candidateID", candidateID))

	msg, err := c.backend.Vote(ctx, candidateID, position)
	switch {
	case err == nil:
		c.tracker.MarkVoted(position)
		result.Outcome = OutcomeAccepted
		result.Message = msg
	case errors.Is(err, api.ErrAlreadyVoted):
		// This attempt lost, but the position is now authoritatively voted.
		c.tracker.MarkVoted(position)
		result.Outcome = OutcomeRejectedDuplicate
		result.Message = api.ErrorMessage(err)
	default:
		// Eligibility stays Unknown so the user may retry.
		result.Outcome = OutcomeRejectedOther
		result.Message = api.ErrorMessage(err)
	}

	c.logger.Info("Vote attempt resolved",
		zap.String("attemptID", result.AttemptID),
		zap.String("position", position),
		zap.String("outcome", string(result.Outcome)))
	return result
}

// InFlight reports whether a submission is pending for the position.
func (c *Controller) InFlight(position string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight[position]
}

func (c *Controller) acquire(position string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[position] {
		return false
	}
	c.inflight[position] = true
	return true
}

func (c *Controller) release(position string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, position)
}
