package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"election_client/pkg/api"
)

// fakeBackend implements Backend with pluggable behavior
type fakeBackend struct {
	positions  func(ctx context.Context) ([]api.Position, error)
	candidates func(ctx context.Context, position string) ([]api.Candidate, error)
}

func (f *fakeBackend) Positions(ctx context.Context) ([]api.Position, error) {
	return f.positions(ctx)
}

func (f *fakeBackend) CandidatesByPosition(ctx context.Context, position string) ([]api.Candidate, error) {
	return f.candidates(ctx, position)
}

func TestLoad(t *testing.T) {
	t.Run("AssemblesFullCatalog", func(t *testing.T) {
		backend := &fakeBackend{
			positions: func(ctx context.Context) ([]api.Position, error) {
				return []api.Position{{Name: "President"}, {Name: "Secretary"}, {Name: "Treasurer"}}, nil
			},
			candidates: func(ctx context.Context, position string) ([]api.Candidate, error) {
				return []api.Candidate{{ID: "c-" + position, Name: "A", Position: position}}, nil
			},
		}

		loader := NewLoader(backend, zap.NewNop())
		cat, err := loader.Load(context.Background())
		require.NoError(t, err)

		// Fetch order preserved, not alphabetical
		assert.Equal(t, []string{"President", "Secretary", "Treasurer"}, cat.Order)
		require.Len(t, cat.Candidates, 3)
		assert.Equal(t, "c-Secretary", cat.Candidates["Secretary"][0].ID)

		current, ok := loader.Current()
		require.True(t, ok)
		assert.Equal(t, cat, current)
	})

	t.Run("PositionsFetchFailureFailsWhole", func(t *testing.T) {
		backend := &fakeBackend{
			positions: func(ctx context.Context) ([]api.Position, error) {
				return nil, &api.APIError{StatusCode: 503, Message: "backend down"}
			},
		}

		loader := NewLoader(backend, zap.NewNop())
		_, err := loader.Load(context.Background())
		assert.ErrorIs(t, err, api.ErrCatalogUnavailable)

		// No partial catalog is ever published
		_, ok := loader.Current()
		assert.False(t, ok)
	})

	t.Run("CandidateFetchFailureDegradesPosition", func(t *testing.T) {
		backend := &fakeBackend{
			positions: func(ctx context.Context) ([]api.Position, error) {
				return []api.Position{{Name: "President"}, {Name: "Secretary"}}, nil
			},
			candidates: func(ctx context.Context, position string) ([]api.Candidate, error) {
				if position == "Secretary" {
					return nil, &api.APIError{StatusCode: 500, Message: "flaky"}
				}
				return []api.Candidate{{ID: "c1", Name: "A", Position: position}}, nil
			},
		}

		loader := NewLoader(backend, zap.NewNop())
		cat, err := loader.Load(context.Background())
		require.NoError(t, err)

		assert.Len(t, cat.Candidates["President"], 1)
		assert.Empty(t, cat.Candidates["Secretary"])
		assert.True(t, cat.Has("Secretary"))
	})
}

func TestCatalogLookups(t *testing.T) {
	cat := &Catalog{
		Order: []string{"President"},
		Candidates: map[string][]api.Candidate{
			"President": {{ID: "c1"}, {ID: "c2"}},
		},
	}

	assert.True(t, cat.Has("President"))
	assert.False(t, cat.Has("Secretary"))
	assert.True(t, cat.CandidateIn("President", "c2"))
	assert.False(t, cat.CandidateIn("President", "c9"))
	assert.False(t, cat.CandidateIn("Secretary", "c1"))
}

func TestInvalidate(t *testing.T) {
	backend := &fakeBackend{
		positions: func(ctx context.Context) ([]api.Position, error) {
			return []api.Position{{Name: "President"}}, nil
		},
		candidates: func(ctx context.Context, position string) ([]api.Candidate, error) {
			return nil, nil
		},
	}

	loader := NewLoader(backend, zap.NewNop())
	_, err := loader.Load(context.Background())
	require.NoError(t, err)

	loader.Invalidate()
	_, ok := loader.Current()
	assert.False(t, ok)
}
