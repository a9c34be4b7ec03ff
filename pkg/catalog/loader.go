package catalog

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"election_client/pkg/api"
)

// Backend is the slice of the API the catalog loader needs.
type Backend interface {
	Positions(ctx context.Context) ([]api.Position, error)
	CandidatesByPosition(ctx context.Context, position string) ([]api.Candidate, error)
}

// Catalog is the assembled position→candidates view consumed by the ballot
// layer. Order preserves the backend's position ordering for stable display.
// A catalog is immutable once published; a changed backend catalog means a
// full reload, never an incremental patch.
type Catalog struct {
	Order      []string
	Candidates map[string][]api.Candidate
}

// Has reports whether the position exists in the catalog.
func (c *Catalog) Has(position string) bool {
	_, ok := c.Candidates[position]
	return ok
}

// CandidateIn reports whether the candidate runs for the given position.
func (c *Catalog) CandidateIn(position, candidateID string) bool {
	for _, candidate := range c.Candidates[position] {
		if candidate.ID == candidateID {
			return true
		}
	}
	return false
}

// Loader fetches and caches the election catalog.
type Loader struct {
	backend Backend
	logger  *zap.Logger

	mu      sync.RWMutex
	current *Catalog
}

// NewLoader creates a catalog loader
func NewLoader(backend Backend, logger *zap.Logger) *Loader {
	return &Loader{
		backend: backend,
		logger:  logger,
	}
}

// Load fetches all positions and their candidates and publishes the
// assembled catalog. Candidate fetches run concurrently across positions; the
// catalog is only published once every fetch of this load cycle has finished.
// A failed positions fetch fails the whole load; a failed candidate fetch
// degrades that one position to an empty list so other offices stay votable.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	positions, err := l.backend.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", api.ErrCatalogUnavailable, api.ErrorMessage(err))
	}

	order := make([]string, len(positions))
	fetched := make([][]api.Candidate, len(positions))

	var wg sync.WaitGroup
	for i, position := range positions {
		order[i] = position.Name

		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()

			candidates, err := l.backend.CandidatesByPosition(ctx, name)
			if err != nil {
				l.logger.Warn("Failed to fetch candidates, degrading position",
					zap.String("position", name),
					zap.Error(err))
				fetched[i] = []api.Candidate{}
				return
			}
			fetched[i] = candidates
		}(i, position.Name)
	}
	wg.Wait()

	catalog := &Catalog{
		Order:      order,
		Candidates: make(map[string][]api.Candidate, len(positions)),
	}
	for i, name := range order {
		catalog.Candidates[name] = fetched[i]
	}

	l.mu.Lock()
	l.current = catalog
	l.mu.Unlock()

	l.logger.Info("Catalog loaded", zap.Int("positions", len(order)))
	return catalog, nil
}

// Current returns the last published catalog, if any.
func (l *Loader) Current() (*Catalog, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.current == nil {
		return nil, false
	}
	return l.current, true
}

// Invalidate drops the cached catalog. Called after an administrator creates
// a position or candidate; consumers must Load again before voting.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.current = nil
	l.mu.Unlock()

	l.logger.Debug("Catalog invalidated")
}
