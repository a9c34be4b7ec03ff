package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"election_client/pkg/api"
	"election_client/pkg/ballot"
	"election_client/pkg/catalog"
	"election_client/pkg/config"
	"election_client/pkg/eligibility"
	"election_client/pkg/results"
	"election_client/pkg/session"
	"election_client/pkg/utils"
)

// App wires the election client together and exposes the methods the view
// layer calls. Views render what comes back from here; no component is
// reached around the App.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	config *config.Config

	// Core services
	creds    *session.CredentialFile
	client   *api.Client
	sessions *session.Store
	loader   *catalog.Loader
	tracker  *eligibility.Tracker
	ballots  *ballot.Controller
	results  *results.Poller

	// State
	mu      sync.RWMutex
	running bool
}

// AppStatus reports the state of the application's core services
type AppStatus struct {
	Running       bool `json:"running"`
	Authenticated bool `json:"authenticated"`
	Admin         bool `json:"admin"`
	CatalogLoaded bool `json:"catalogLoaded"`
}

// NewApp creates a new application instance
func NewApp(cfg *config.Config, logger *zap.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	creds := session.NewCredentialFile(cfg.Auth.TokenFile)
	client := api.NewClient(&cfg.API, creds,
		utils.LoggerWithContext(logger, zap.String("component", "api")))
	sessions := session.NewStore(client, creds,
		utils.LoggerWithContext(logger, zap.String("component", "session")))
	loader := catalog.NewLoader(client,
		utils.LoggerWithContext(logger, zap.String("component", "catalog")))
	tracker := eligibility.NewTracker(client,
		cfg.Eligibility.SentinelCandidateID,
		cfg.Eligibility.ProbeEnabled,
		utils.LoggerWithContext(logger, zap.String("component", "eligibility")))
	ballots := ballot.NewController(client, loader, tracker,
		utils.LoggerWithContext(logger, zap.String("component", "ballot")))
	poller := results.NewPoller(client, cfg.Results.RefreshSchedule, cfg.API.Timeout,
		utils.LoggerWithContext(logger, zap.String("component", "results")))

	return &App{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		config:   cfg,
		creds:    creds,
		client:   client,
		sessions: sessions,
		loader:   loader,
		tracker:  tracker,
		ballots:  ballots,
		results:  poller,
	}
}

// Startup restores any persisted session and starts background services.
// A rejected or expired credential resolves to an anonymous session; startup
// itself only fails when a service cannot start.
func (a *App) Startup(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return nil
	}

	if a.sessions.Restore(ctx) {
		if identity, ok := a.sessions.Identity(); ok {
			a.logger.Info("Resumed session", zap.String("username", identity.Username))
		}
	}

	if err := a.results.Start(); err != nil {
		return fmt.Errorf("starting results poller: %w", err)
	}

	a.running = true
	a.logger.Info("Application started")
	return nil
}

// Shutdown stops background services.
func (a *App) Shutdown(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}

	a.results.Stop()

	a.running = false
	a.cancel()
	a.logger.Info("Application stopped")
}

// Session methods

// Login authenticates the user. Eligibility state is scoped to the
// authenticated user, so it is reset on every successful login.
func (a *App) Login(ctx context.Context, username, password string) error {
	if err := a.sessions.Login(ctx, username, password); err != nil {
		return err
	}
	a.tracker.Reset()
	return nil
}

// Register creates an account; the caller must Login afterwards.
func (a *App) Register(ctx context.Context, username, email, password string) error {
	return a.sessions.Register(ctx, username, email, password)
}

// Logout clears the session and all per-user eligibility state.
func (a *App) Logout() {
	a.sessions.Logout()
	a.tracker.Reset()
}

// CurrentUser returns the authenticated identity, if any.
func (a *App) CurrentUser() (*api.Identity, bool) {
	return a.sessions.Identity()
}

// Ballot methods

// LoadBallot fetches the catalog and, when authenticated, probes eligibility
// for each position. The returned catalog is the complete position→candidate
// view; partial results are never returned.
func (a *App) LoadBallot(ctx context.Context) (*catalog.Catalog, error) {
	cat, err := a.loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	if a.sessions.IsAuthenticated() {
		a.tracker.Check(ctx, cat.Order)
	}

	return cat, nil
}

// SubmitVote casts a ballot for candidateID in position.
func (a *App) SubmitVote(ctx context.Context, position, candidateID string) ballot.Result {
	return a.ballots.Submit(ctx, position, candidateID)
}

// HasVoted reports whether the position is known to be voted by the
// current user.
func (a *App) HasVoted(position string) bool {
	return a.tracker.HasVoted(position)
}

// VotedPositions returns the positions known to be voted.
func (a *App) VotedPositions() []string {
	return a.tracker.VotedPositions()
}

// Results methods

// RefreshResults fetches the latest tallies and returns computed standings.
func (a *App) RefreshResults(ctx context.Context) ([]results.PositionResult, error) {
	return a.results.Refresh(ctx)
}

// LatestResults returns the cached standings from the last refresh.
func (a *App) LatestResults() ([]results.PositionResult, time.Time, bool) {
	return a.results.Latest()
}

// Administration methods. Thin pass-throughs to the backend; their only core
// responsibility is invalidating the catalog cache after a create.

// CreatePosition creates a new electable position.
func (a *App) CreatePosition(ctx context.Context, name string) error {
	if err := a.client.CreatePosition(ctx, name); err != nil {
		return fmt.Errorf("creating position: %w", err)
	}
	a.loader.Invalidate()
	return nil
}

// CreateCandidate creates a candidate with an opaque image payload.
func (a *App) CreateCandidate(ctx context.Context, name, position, filename string, image []byte) error {
	if err := a.client.CreateCandidate(ctx, name, position, filename, image); err != nil {
		return fmt.Errorf("creating candidate: %w", err)
	}
	a.loader.Invalidate()
	return nil
}

// Status returns the state of the application's services
func (a *App) Status() AppStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	_, catalogLoaded := a.loader.Current()

	return AppStatus{
		Running:       a.running,
		Authenticated: a.sessions.IsAuthenticated(),
		Admin:         a.sessions.IsAdmin(),
		CatalogLoaded: catalogLoaded,
	}
}
