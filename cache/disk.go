package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JJJJun123/boss-automation-sub000/models"
)

// diskFile is the on-disk layout of one cached result set. The search
// parameters ride along so files stay meaningful without the index.
type diskFile struct {
	Key       string             `json:"key"`
	Records   []models.JobRecord `json:"data"`
	CreatedAt time.Time          `json:"timestamp"`
	ExpiresAt time.Time          `json:"expires_at"`
	Keyword   string             `json:"keyword"`
	Location  string             `json:"location"`
	Limit     int                `json:"limit"`
}

type diskStore struct {
	log *slog.Logger
	dir string
}

func newDiskStore(log *slog.Logger, dir string) (*diskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &diskStore{log: log, dir: dir}, nil
}

func (d *diskStore) path(key string) string {
	return filepath.Join(d.dir, key+".json")
}

func (d *diskStore) save(key string, e *entry) error {
	f := diskFile{
		Key:       key,
		Records:   e.records,
		CreatedAt: e.createdAt,
		ExpiresAt: e.expiresAt,
		Keyword:   e.keyword,
		Location:  e.location,
		Limit:     e.limit,
	}
	data, err := json.Marshal(&f)
	if err != nil {
		return err
	}
	tmp := d.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.path(key))
}

// load returns (nil, nil) when no file exists; corrupt files are
// deleted and reported as missing.
func (d *diskStore) load(key string) (*diskFile, error) {
	data, err := os.ReadFile(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var f diskFile
	if err := json.Unmarshal(data, &f); err != nil {
		d.log.Warn("corrupt cache file, deleting", "key", key, "error", err)
		d.remove(key)
		return nil, nil
	}
	return &f, nil
}

func (d *diskStore) remove(key string) {
	_ = os.Remove(d.path(key))
}

// sweep deletes expired cache files.
func (d *diskStore) sweep(now time.Time) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(d.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var f diskFile
		if err := json.Unmarshal(data, &f); err != nil || now.After(f.ExpiresAt) {
			_ = os.Remove(path)
		}
	}
}
