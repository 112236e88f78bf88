// Package session persists login state between runs. The target site
// throttles anonymous visitors hard, so a reusable logged-in session
// is the difference between full listings and a teaser page.
package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Cookie is the serialized subset of a browser cookie the crawler
// needs to restore a session.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	SameSite string  `json:"same_site,omitempty"`
}

// State is one saved session for one site.
type State struct {
	Domain    string            `json:"domain"`
	Cookies   []Cookie          `json:"cookies"`
	UserInfo  map[string]string `json:"user_info,omitempty"`
	SavedAt   time.Time         `json:"saved_at"`
	ExpiresAt time.Time         `json:"expires_at"`
	PageURL   string            `json:"page_url,omitempty"`
}

// Expired reports whether the session is past its trust window.
func (s *State) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// identityMarkers are cookie-name fragments worth persisting: session
// identity, auth tokens, and the site's own state cookies.
var identityMarkers = []string{
	"login", "session", "token", "auth", "user", "uid", "sid",
	"boss", "zhipin", "geek", "wt2", "suc", "__zp_stoken__",
}

// trackingMarkers are analytics cookies that are dropped on save.
// Persisting them is useless and makes the session file churn on
// every run.
// Broad substrings on purpose: "ga" catches the whole _ga/_gat/gac
// family. Identity markers win first, so auth cookies are safe from
// the wide net.
var trackingMarkers = []string{
	"ga", "gid", "gat", "gtm", "utm", "track", "analytics", "ads",
}

// Keep decides whether a cookie is persisted. Identity cookies are
// kept, tracking cookies dropped, and unknown cookies kept because
// anti-bot checks sometimes key off innocuous-looking ones.
func Keep(name string) bool {
	lower := strings.ToLower(name)
	for _, m := range identityMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	for _, m := range trackingMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	return true
}

// Store reads and writes session files under a directory, one file
// per domain.
type Store struct {
	log *slog.Logger
	dir string
	ttl time.Duration
}

// NewStore creates the directory if needed. A nil logger uses
// slog.Default.
func NewStore(log *slog.Logger, dir string, ttl time.Duration) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 168 * time.Hour
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &Store{log: log, dir: dir, ttl: ttl}, nil
}

func (s *Store) path(domain string) string {
	safe := strings.NewReplacer("/", "_", ":", "_", ".", "_").Replace(domain)
	return filepath.Join(s.dir, safe+"_session.json")
}

// Save filters cookies and writes the session file. Saving an empty
// cookie set is refused so a failed login cannot clobber a good
// session.
func (s *Store) Save(domain string, cookies []Cookie, userInfo map[string]string, pageURL string) error {
	kept := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		if Keep(c.Name) {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return fmt.Errorf("refusing to save session for %s: no cookies to keep", domain)
	}

	now := time.Now()
	state := State{
		Domain:    domain,
		Cookies:   kept,
		UserInfo:  userInfo,
		SavedAt:   now,
		ExpiresAt: now.Add(s.ttl),
		PageURL:   pageURL,
	}
	data, err := json.MarshalIndent(&state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	path := s.path(domain)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	s.log.Info("session saved",
		"domain", domain,
		"cookies", len(kept),
		"dropped", len(cookies)-len(kept),
		"expires_at", state.ExpiresAt,
	)
	return nil
}

// Load returns the saved session for a domain, or (nil, nil) when
// none exists. Expired or corrupt files are deleted on sight.
func (s *Store) Load(domain string) (*State, error) {
	path := s.path(domain)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		s.log.Warn("corrupt session file, deleting", "path", path, "error", err)
		_ = os.Remove(path)
		return nil, nil
	}
	if state.Expired() {
		s.log.Info("session expired, deleting", "domain", domain, "saved_at", state.SavedAt)
		_ = os.Remove(path)
		return nil, nil
	}
	return &state, nil
}

// Clear removes the saved session for a domain.
func (s *Store) Clear(domain string) error {
	err := os.Remove(s.path(domain))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// List returns the domains with a currently valid saved session.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read session dir: %w", err)
	}
	var domains []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), "_session.json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var state State
		if err := json.Unmarshal(data, &state); err != nil || state.Expired() {
			continue
		}
		domains = append(domains, state.Domain)
	}
	return domains, nil
}
