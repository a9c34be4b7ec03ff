package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"election_client/pkg/config"
)

// CredentialSource supplies the current bearer credential. The session store
// owns the credential; everything else reads it through this interface so a
// logout is observed immediately by in-flight components.
type CredentialSource interface {
	Credential() (string, bool)
}

// Client talks to the election backend. All methods translate backend error
// payloads into the package error taxonomy; raw transport errors never reach
// callers undecorated.
type Client struct {
	baseURL string
	httpc   *http.Client
	creds   CredentialSource
	logger  *zap.Logger
}

// NewClient creates a backend client
func NewClient(cfg *config.APIConfig, creds CredentialSource, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   &http.Client{Timeout: cfg.Timeout},
		creds:   creds,
		logger:  logger,
	}
}

// Token exchanges credentials for a bearer token via the password grant.
func (c *Client) Token(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp, "Login failed")
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", &APIError{StatusCode: resp.StatusCode, Message: "empty access token"}
	}

	return payload.AccessToken, nil
}

// Me resolves the identity behind the current credential.
func (c *Client) Me(ctx context.Context) (*Identity, error) {
	var identity Identity
	if err := c.getJSON(ctx, "/users/me", &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Register creates a new account. The backend does not log the account in;
// callers must follow up with Token.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	q := url.Values{}
	q.Set("username", username)
	q.Set("email", email)
	q.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/register?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building register request: %w", err)
	}
	c.attachAuth(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("requesting registration: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp, "Registration failed")
	}

	return nil
}

// Positions fetches all electable positions.
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	var positions []Position
	if err := c.getJSON(ctx, "/positions", &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// CandidatesByPosition fetches the candidates running for one position.
func (c *Client) CandidatesByPosition(ctx context.Context, position string) ([]Candidate, error) {
	var candidates []Candidate
	path := "/candidates/position/" + url.PathEscape(position)
	if err := c.getJSON(ctx, path, &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

// Vote casts a ballot for a candidate in a position. Returns the backend's
// confirmation message on success. A duplicate rejection comes back as
// ErrAlreadyVoted; every other rejection as *APIError.
func (c *Client) Vote(ctx context.Context, candidateID, position string) (string, error) {
	q := url.Values{}
	q.Set("candidate_id", candidateID)
	q.Set("position", position)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/vote?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("building vote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.attachAuth(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting vote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", decodeError(resp, "Failed to record vote")
	}

	var payload voteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding vote response: %w", err)
	}
	if payload.Msg == "" {
		payload.Msg = "Vote recorded successfully"
	}

	return payload.Msg, nil
}

// Results fetches the raw tallies grouped by position.
func (c *Client) Results(ctx context.Context) (map[string][]TallyEntry, error) {
	var tallies map[string][]TallyEntry
	if err := c.getJSON(ctx, "/results", &tallies); err != nil {
		return nil, err
	}
	return tallies, nil
}

// CreatePosition creates a new electable position. Administrator surface;
// callers are responsible for invalidating any cached catalog afterwards.
func (c *Client) CreatePosition(ctx context.Context, name string) error {
	body, err := json.Marshal(Position{Name: name})
	if err != nil {
		return fmt.Errorf("encoding position: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/positions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building position request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.attachAuth(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("creating position: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp, "Failed to create position")
	}

	return nil
}

// CreateCandidate creates a candidate with an image payload. The image is
// treated as opaque bytes; no inspection or validation happens client-side.
func (c *Client) CreateCandidate(ctx context.Context, name, position, filename string, image []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("name", name); err != nil {
		return fmt.Errorf("writing name field: %w", err)
	}
	if err := w.WriteField("position", position); err != nil {
		return fmt.Errorf("writing position field: %w", err)
	}
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return fmt.Errorf("creating image part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return fmt.Errorf("writing image payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/candidates", &buf)
	if err != nil {
		return fmt.Errorf("building candidate request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.attachAuth(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("creating candidate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp, "Failed to create candidate")
	}

	return nil
}

// getJSON performs an authenticated GET and decodes the response body.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	c.attachAuth(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp, fmt.Sprintf("request to %s failed", path))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}

	return nil
}

// attachAuth adds the bearer header when a credential is present. Public
// endpoints tolerate the header's absence.
func (c *Client) attachAuth(req *http.Request) {
	if c.creds == nil {
		return
	}
	token, ok := c.creds.Credential()
	if !ok {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
	c.logger.Debug("attached bearer credential", zap.String("path", req.URL.Path))
}
