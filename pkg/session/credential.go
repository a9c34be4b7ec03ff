package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// CredentialFile holds the process-wide bearer credential and mirrors it to
// a single file so a later run can restore the session. Reads are safe from
// any goroutine; only the session store writes.
type CredentialFile struct {
	path string

	mu    sync.RWMutex
	token string
}

// NewCredentialFile creates a credential holder backed by the given file.
func NewCredentialFile(path string) *CredentialFile {
	return &CredentialFile{path: path}
}

// Credential returns the current token, if any.
func (c *CredentialFile) Credential() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.token != ""
}

// Load reads a previously persisted token from disk into memory. A missing
// file is not an error; it just means no prior session.
func (c *CredentialFile) Load() (string, bool, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading credential file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", false, nil
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	return token, true, nil
}

// Store persists the token and makes it visible to readers atomically.
func (c *CredentialFile) Store(token string) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}
	if err := os.WriteFile(c.path, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	return nil
}

// Clear drops the in-memory token and removes the persisted copy.
// Idempotent: clearing an absent credential is a no-op.
func (c *CredentialFile) Clear() error {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing credential file: %w", err)
	}
	return nil
}
