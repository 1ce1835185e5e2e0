// Package auth persists login state (browser storage state) as opaque
// per-domain blobs. The blob format is owned by the browser
// collaborator; this package only resolves, loads, cleans, and saves
// it.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound indicates no saved login state covers the requested
// domain.
var ErrNotFound = errors.New("auth: no saved login state for domain")

// AuthStateError reports a missing or corrupt login-state blob, with
// guidance for re-initialization.
type AuthStateError struct {
	Domain string
	Err    error
}

func (e *AuthStateError) Error() string {
	return fmt.Sprintf("auth: login state for %q unusable: %v (run `exogram auth --start-url <login page>` to re-initialize)", e.Domain, e.Err)
}

func (e *AuthStateError) Unwrap() error { return e.Err }

// cdpIncompatibleCookieFields lists storage-state cookie fields the
// devtools protocol rejects; they are stripped before a blob is handed
// to the browser.
var cdpIncompatibleCookieFields = []string{"partitionKey", "_crHasCrossSiteAncestor"}

// Manager stores one JSON blob per domain under a single directory.
type Manager struct {
	dir string
}

// NewManager creates a manager rooted at dir, defaulting to
// ~/.exogram/auth.
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("auth: resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".exogram", "auth")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("auth: init directory %s: %w", dir, err)
	}
	return &Manager{dir: dir}, nil
}

// Save persists a login-state blob for a domain. The blob must at
// least be valid JSON; its internal shape is not inspected further.
func (m *Manager) Save(domain string, blob []byte) error {
	if domain == "" {
		return fmt.Errorf("auth: domain is required")
	}
	if !json.Valid(blob) {
		return &AuthStateError{Domain: domain, Err: errors.New("blob is not valid JSON")}
	}
	path := filepath.Join(m.dir, domain+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("auth: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("auth: atomic rename %s: %w", path, err)
	}
	return nil
}

// SaveForURL persists a login-state blob under the URL's domain.
func (m *Manager) SaveForURL(rawURL string, blob []byte) error {
	domain := domainOf(rawURL)
	if domain == "" {
		return fmt.Errorf("auth: no domain in %q", rawURL)
	}
	return m.Save(domain, blob)
}

// Load resolves and reads the login-state blob covering rawURL.
// Resolution prefers the exact domain, then the base domain, then
// same-organization sibling domains (an SSO host frequently carries
// the session for the whole organization).
func (m *Manager) Load(rawURL string) ([]byte, error) {
	path, err := m.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, &AuthStateError{Domain: domainOf(rawURL), Err: err}
	}
	if !json.Valid(blob) {
		return nil, &AuthStateError{Domain: domainOf(rawURL), Err: errors.New("blob is corrupt")}
	}
	return blob, nil
}

// StorageStatePath returns a browser-attachable storage-state file for
// rawURL, with devtools-incompatible cookie fields stripped into a
// temporary copy. ErrNotFound when no blob covers the domain.
func (m *Manager) StorageStatePath(rawURL string) (string, error) {
	blob, err := m.Load(rawURL)
	if err != nil {
		return "", err
	}

	var state map[string]json.RawMessage
	if err := json.Unmarshal(blob, &state); err != nil {
		return "", &AuthStateError{Domain: domainOf(rawURL), Err: err}
	}
	if raw, ok := state["cookies"]; ok {
		var cookies []map[string]json.RawMessage
		if err := json.Unmarshal(raw, &cookies); err == nil {
			for _, c := range cookies {
				for _, field := range cdpIncompatibleCookieFields {
					delete(c, field)
				}
			}
			if cleaned, err := json.Marshal(cookies); err == nil {
				state["cookies"] = cleaned
			}
		}
	}

	cleaned, err := json.Marshal(state)
	if err != nil {
		return "", &AuthStateError{Domain: domainOf(rawURL), Err: err}
	}
	tmp, err := os.CreateTemp("", "exogram-auth-*.json")
	if err != nil {
		return "", fmt.Errorf("auth: create temp state file: %w", err)
	}
	if _, err := tmp.Write(cleaned); err != nil {
		tmp.Close()
		return "", fmt.Errorf("auth: write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("auth: close temp state file: %w", err)
	}
	return tmp.Name(), nil
}

// Domains lists every domain with saved login state.
func (m *Manager) Domains() []string {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil
	}
	var domains []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		domains = append(domains, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(domains)
	return domains
}

func (m *Manager) resolve(rawURL string) (string, error) {
	domain := domainOf(rawURL)
	if domain == "" {
		return "", ErrNotFound
	}

	exact := filepath.Join(m.dir, domain+".json")
	if fileExists(exact) {
		return exact, nil
	}

	base := baseDomain(domain)
	if base != domain {
		if path := filepath.Join(m.dir, base+".json"); fileExists(path) {
			return path, nil
		}
		// Sibling domains of the same organization.
		for _, d := range m.Domains() {
			if d != domain && strings.HasSuffix(d, "."+base) {
				return filepath.Join(m.dir, d+".json"), nil
			}
		}
	}
	return "", ErrNotFound
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		// Accept a bare domain as well.
		if rawURL != "" && !strings.Contains(rawURL, "/") {
			return rawURL
		}
		return ""
	}
	return u.Hostname()
}

func baseDomain(domain string) string {
	parts := strings.Split(domain, ".")
	if len(parts) <= 2 {
		return domain
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
