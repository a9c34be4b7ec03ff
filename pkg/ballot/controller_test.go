package ballot

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"election_client/pkg/api"
	"election_client/pkg/catalog"
	"election_client/pkg/eligibility"
)

// fakeSubmitter counts backend calls and replies via a pluggable func
type fakeSubmitter struct {
	calls atomic.Int64
	vote  func(ctx context.Context, candidateID, position string) (string, error)
}

func (f *fakeSubmitter) Vote(ctx context.Context, candidateID, position string) (string, error) {
	f.calls.Add(1)
	return f.vote(ctx, candidateID, position)
}

// fixedCatalog implements CatalogSource
type fixedCatalog struct {
	cat *catalog.Catalog
}

func (f *fixedCatalog) Current() (*catalog.Catalog, bool) {
	if f.cat == nil {
		return nil, false
	}
	return f.cat, true
}

func electionCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Order: []string{"President", "Secretary"},
		Candidates: map[string][]api.Candidate{
			"President": {{ID: "1", Name: "A"}, {ID: "2", Name: "B"}},
			"Secretary": {{ID: "3", Name: "C"}},
		},
	}
}

func newTestController(backend *fakeSubmitter) (*Controller, *eligibility.Tracker) {
	tracker := eligibility.NewTracker(backend, "test", false, zap.NewNop())
	controller := NewController(backend, &fixedCatalog{cat: electionCatalog()}, tracker, zap.NewNop())
	return controller, tracker
}

func TestSubmit(t *testing.T) {
	t.Run("AcceptedThenDuplicate", func(t *testing.T) {
		// Backend accepts the first vote per position, rejects repeats.
		voted := make(map[string]bool)
		backend := &fakeSubmitter{vote: func(ctx context.Context, candidateID, position string) (string, error) {
			if voted[position] {
				return "", api.ErrAlreadyVoted
			}
			voted[position] = true
			return "Vote recorded successfully", nil
		}}
		controller, tracker := newTestController(backend)

		result := controller.Submit(context.Background(), "President", "1")
		assert.Equal(t, OutcomeAccepted, result.Outcome)
		assert.Equal(t, "Vote recorded successfully", result.Message)
		assert.True(t, tracker.HasVoted("President"))

		// Repeat vote with a different candidate resolves as duplicate,
		// locally, with no second request for the position.
		callsBefore := backend.calls.Load()
		result = controller.Submit(context.Background(), "President", "2")
		assert.Equal(t, OutcomeRejectedDuplicate, result.Outcome)
		assert.Equal(t, callsBefore, backend.calls.Load())

		// Secretary is independent and still votable
		result = controller.Submit(context.Background(), "Secretary", "3")
		assert.Equal(t, OutcomeAccepted, result.Outcome)
	})

	t.Run("BackendDuplicateMarksVoted", func(t *testing.T) {
		backend := &fakeSubmitter{vote: func(ctx context.Context, candidateID, position string) (string, error) {
			return "", api.ErrAlreadyVoted
		}}
		controller, tracker := newTestController(backend)

		result := controller.Submit(context.Background(), "President", "1")
		assert.Equal(t, OutcomeRejectedDuplicate, result.Outcome)
		assert.Equal(t, "Already voted for this position", result.Message)

		// The losing attempt still settles the position as voted
		assert.True(t, tracker.HasVoted("President"))
	})

	t.Run("OtherRejectionLeavesEligibilityUnknown", func(t *testing.T) {
		failing := true
		backend := &fakeSubmitter{vote: func(ctx context.Context, candidateID, position string) (string, error) {
			if failing {
				return "", &api.APIError{StatusCode: 500, Message: "temporary glitch"}
			}
			return "Vote recorded successfully", nil
		}}
		controller, tracker := newTestController(backend)

		result := controller.Submit(context.Background(), "President", "1")
		assert.Equal(t, OutcomeRejectedOther, result.Outcome)
		assert.Equal(t, "temporary glitch", result.Message)
		assert.False(t, tracker.HasVoted("President"))

		// The user may retry the same position
		failing = false
		result = controller.Submit(context.Background(), "President", "1")
		assert.Equal(t, OutcomeAccepted, result.Outcome)
	})

	t.Run("LocalPreconditions", func(t *testing.T) {
		backend := &fakeSubmitter{vote: func(ctx context.Context, candidateID, position string) (string, error) {
			return "Vote recorded successfully", nil
		}}
		controller, _ := newTestController(backend)

		result := controller.Submit(context.Background(), "Janitor", "1")
		assert.Equal(t, OutcomeRejectedOther, result.Outcome)

		result = controller.Submit(context.Background(), "President", "3")
		assert.Equal(t, OutcomeRejectedOther, result.Outcome)

		// Neither precondition failure reached the backend
		assert.EqualValues(t, 0, backend.calls.Load())
	})

	t.Run("NoCatalogLoaded", func(t *testing.T) {
		backend := &fakeSubmitter{vote: func(ctx context.Context, candidateID, position string) (string, error) {
			return "", nil
		}}
		tracker := eligibility.NewTracker(backend, "test", false, zap.NewNop())
		controller := NewController(backend, &fixedCatalog{}, tracker, zap.NewNop())

		result := controller.Submit(context.Background(), "President", "1")
		assert.Equal(t, OutcomeRejectedOther, result.Outcome)
		assert.EqualValues(t, 0, backend.calls.Load())
	})
}

func TestPerPositionSerialization(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	backend := &fakeSubmitter{vote: func(ctx context.Context, candidateID, position string) (string, error) {
		close(entered)
		<-release
		return "Vote recorded successfully", nil
	}}
	controller, _ := newTestController(backend)

	results := make(chan Result, 1)
	go func() {
		results <- controller.Submit(context.Background(), "President", "1")
	}()

	// Wait until the first submission holds the position
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first submission never reached the backend")
	}
	assert.True(t, controller.InFlight("President"))

	// Second attempt for the same position resolves locally
	second := controller.Submit(context.Background(), "President", "2")
	assert.Equal(t, OutcomeInProgress, second.Outcome)

	close(release)

	first := <-results
	assert.Equal(t, OutcomeAccepted, first.Outcome)

	// Exactly one request reached the backend
	assert.EqualValues(t, 1, backend.calls.Load())
	assert.False(t, controller.InFlight("President"))
}

func TestIndependentPositionsProceedInParallel(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	backend := &fakeSubmitter{vote: func(ctx context.Context, candidateID, position string) (string, error) {
		if position == "President" {
			close(entered)
			<-release
		}
		return "Vote recorded successfully", nil
	}}
	controller, _ := newTestController(backend)

	results := make(chan Result, 1)
	go func() {
		results <- controller.Submit(context.Background(), "President", "1")
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("president submission never reached the backend")
	}

	// Secretary is not blocked by the in-flight President submission
	secretary := controller.Submit(context.Background(), "Secretary", "3")
	require.Equal(t, OutcomeAccepted, secretary.Outcome)

	close(release)
	president := <-results
	assert.Equal(t, OutcomeAccepted, president.Outcome)
}
