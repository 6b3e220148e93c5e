// stores/disk.go
// --------------
// On-disk cache store: one JSON file per key under a base directory, over
// an afero filesystem so tests run against an in-memory fs. Keys are
// identity digests (hex), so they are filename-safe as-is. Writes go
// through a temp file and rename, which keeps concurrent readers off
// half-written entries; concurrent writers on the same key are
// last-writer-wins.
//
// A remote KV variant is intentionally not shipped; the Store interface is
// the extension point for one.
package stores

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	callbridge "github.com/opengovern/call-bridge"
)

type diskEntry struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"body,omitempty"`
	StoredAt   time.Time         `json:"stored_at"`
}

type Disk struct {
	fs  afero.Fs
	dir string
}

// NewDisk builds a store rooted at dir, creating it if needed. Pass
// afero.NewOsFs() for a real on-disk store or afero.NewMemMapFs() in
// tests.
func NewDisk(fs afero.Fs, dir string) (*Disk, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir %s: %w", dir, err)
	}
	return &Disk{fs: fs, dir: dir}, nil
}

func (d *Disk) path(key string) string {
	return filepath.Join(d.dir, key+".json")
}

func (d *Disk) Get(key string) (*callbridge.RawResponse, bool, error) {
	data, err := afero.ReadFile(d.fs, d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	return &callbridge.RawResponse{
		StatusCode: entry.StatusCode,
		Headers:    entry.Headers,
		Body:       entry.Body,
	}, true, nil
}

func (d *Disk) Put(key string, resp *callbridge.RawResponse) error {
	data, err := json.Marshal(diskEntry{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
		StoredAt:   time.Now(),
	})
	if err != nil {
		return err
	}

	tmp := d.path(key) + ".tmp"
	if err := afero.WriteFile(d.fs, tmp, data, 0o644); err != nil {
		return err
	}
	return d.fs.Rename(tmp, d.path(key))
}

// Clear removes every entry under the store's directory.
func (d *Disk) Clear() error {
	if err := d.fs.RemoveAll(d.dir); err != nil {
		return err
	}
	return d.fs.MkdirAll(d.dir, 0o755)
}
