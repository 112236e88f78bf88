package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	s, err := NewStore(nil, t.TempDir(), ttl)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestKeepFiltersTrackingCookies(t *testing.T) {
	tests := []struct {
		name string
		keep bool
	}{
		{"__zp_stoken__", true},
		{"wt2", true},
		{"geek_zp_token", true},
		{"session_id", true},
		{"_ga", false},
		{"ga", false},
		{"gac", false},
		{"_gid", false},
		{"__utma", false},
		{"utm_source", false},
		{"some_random_cookie", true}, // unknown cookies are kept
	}
	for _, tt := range tests {
		if got := Keep(tt.name); got != tt.keep {
			t.Errorf("Keep(%q) = %v, want %v", tt.name, got, tt.keep)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t, time.Hour)
	cookies := []Cookie{
		{Name: "__zp_stoken__", Value: "abc", Domain: ".zhipin.com"},
		{Name: "_ga", Value: "tracker", Domain: ".zhipin.com"},
		{Name: "wt2", Value: "def", Domain: ".zhipin.com"},
	}
	if err := s.Save("zhipin.com", cookies, map[string]string{"name": "测试用户"}, "https://www.zhipin.com/"); err != nil {
		t.Fatal(err)
	}

	state, err := s.Load("zhipin.com")
	if err != nil {
		t.Fatal(err)
	}
	if state == nil {
		t.Fatal("Load returned nil for saved session")
	}
	if len(state.Cookies) != 2 {
		t.Errorf("got %d cookies, want 2 (tracker dropped)", len(state.Cookies))
	}
	for _, c := range state.Cookies {
		if c.Name == "_ga" {
			t.Error("tracking cookie survived the save filter")
		}
	}
	if state.UserInfo["name"] != "测试用户" {
		t.Errorf("user info = %v", state.UserInfo)
	}
}

func TestSaveRefusesEmptyKeepSet(t *testing.T) {
	s := newTestStore(t, time.Hour)
	if err := s.Save("zhipin.com", []Cookie{{Name: "_ga", Value: "x"}}, nil, ""); err == nil {
		t.Error("expected error when nothing survives the filter")
	}
	if state, _ := s.Load("zhipin.com"); state != nil {
		t.Error("no session file should have been written")
	}
}

func TestLoadExpiredSessionDeletesFile(t *testing.T) {
	s := newTestStore(t, time.Hour)
	if err := s.Save("zhipin.com", []Cookie{{Name: "wt2", Value: "x"}}, nil, ""); err != nil {
		t.Fatal(err)
	}

	// Rewrite the file with a past expiry.
	path := s.path("zhipin.com")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		t.Fatal(err)
	}
	state.ExpiresAt = time.Now().Add(-time.Minute)
	data, _ = json.Marshal(&state)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load("zhipin.com")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("expired session should load as nil")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expired session file should be deleted")
	}
}

func TestLoadCorruptSessionDeletesFile(t *testing.T) {
	s := newTestStore(t, time.Hour)
	path := s.path("zhipin.com")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load("zhipin.com")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("corrupt session should load as nil")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt session file should be deleted")
	}
}

func TestLoadMissingIsNil(t *testing.T) {
	s := newTestStore(t, time.Hour)
	state, err := s.Load("nosuch.example")
	if err != nil || state != nil {
		t.Errorf("Load = (%v, %v), want (nil, nil)", state, err)
	}
}

func TestListValidSessions(t *testing.T) {
	s := newTestStore(t, time.Hour)
	if err := s.Save("zhipin.com", []Cookie{{Name: "wt2", Value: "x"}}, nil, ""); err != nil {
		t.Fatal(err)
	}
	// Unrelated file must be ignored.
	if err := os.WriteFile(filepath.Join(s.dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	domains, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(domains) != 1 || domains[0] != "zhipin.com" {
		t.Errorf("List = %v", domains)
	}
}
