package results

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"election_client/pkg/api"
)

// fakeBackend serves canned tallies or an error
type fakeBackend struct {
	tallies map[string][]api.TallyEntry
	err     error
}

func (f *fakeBackend) Results(ctx context.Context) (map[string][]api.TallyEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tallies, nil
}

func TestRefresh(t *testing.T) {
	t.Run("CachesLatestSnapshot", func(t *testing.T) {
		backend := &fakeBackend{tallies: map[string][]api.TallyEntry{
			"President": {{Name: "A", Votes: 7}, {Name: "B", Votes: 3}},
		}}
		poller := NewPoller(backend, "@every 1m", 5*time.Second, zap.NewNop())

		_, _, ok := poller.Latest()
		assert.False(t, ok)

		computed, err := poller.Refresh(context.Background())
		require.NoError(t, err)
		require.Len(t, computed, 1)
		assert.Equal(t, "A", computed[0].Leader)

		latest, refreshed, ok := poller.Latest()
		require.True(t, ok)
		assert.Equal(t, computed, latest)
		assert.WithinDuration(t, time.Now(), refreshed, 5*time.Second)
	})

	t.Run("FetchFailure", func(t *testing.T) {
		backend := &fakeBackend{err: &api.APIError{StatusCode: 503, Message: "down"}}
		poller := NewPoller(backend, "@every 1m", 5*time.Second, zap.NewNop())

		_, err := poller.Refresh(context.Background())
		assert.ErrorIs(t, err, api.ErrResultsUnavailable)

		// Cache stays empty after a failed refresh
		_, _, ok := poller.Latest()
		assert.False(t, ok)
	})

	t.Run("SnapshotReplacedWholesale", func(t *testing.T) {
		backend := &fakeBackend{tallies: map[string][]api.TallyEntry{
			"President": {{Name: "A", Votes: 1}},
		}}
		poller := NewPoller(backend, "@every 1m", 5*time.Second, zap.NewNop())

		_, err := poller.Refresh(context.Background())
		require.NoError(t, err)

		backend.tallies = map[string][]api.TallyEntry{
			"Secretary": {{Name: "C", Votes: 2}},
		}
		_, err = poller.Refresh(context.Background())
		require.NoError(t, err)

		latest, _, ok := poller.Latest()
		require.True(t, ok)
		require.Len(t, latest, 1)
		assert.Equal(t, "Secretary", latest[0].Position)
	})
}

func TestStartStop(t *testing.T) {
	backend := &fakeBackend{tallies: map[string][]api.TallyEntry{}}
	poller := NewPoller(backend, "@every 1h", time.Second, zap.NewNop())

	require.NoError(t, poller.Start())
	poller.Stop()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	backend := &fakeBackend{}
	poller := NewPoller(backend, "not a schedule", time.Second, zap.NewNop())

	assert.Error(t, poller.Start())
}
