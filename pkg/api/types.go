package api

// Position represents an electable office. The name doubles as the
// identifier across the whole backend contract.
type Position struct {
	Name string `json:"name"`
}

// Candidate represents a person running for exactly one position.
type Candidate struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Position string `json:"position"`
	ImageURL string `json:"image_url"`
}

// Identity is the authenticated user as reported by the backend.
type Identity struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// TallyEntry is one candidate's vote count inside a position's tally.
// Entries are read-only and always replaced wholesale on refresh.
type TallyEntry struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
	Votes    int    `json:"votes"`
}

// tokenResponse is the /token payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// voteResponse is the /vote success payload.
type voteResponse struct {
	Msg string `json:"msg"`
}
