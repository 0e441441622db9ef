package vaultcrypt

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/absfs/absfs"
	"github.com/absfs/osfs"
)

// StagingEntry is one attachment prepared by a transaction. At commit the
// file at SourcePath is removed and the staged bytes are written to
// TargetPath.
type StagingEntry struct {
	SourcePath  string
	TargetPath  string
	StagingPath string
	Mapping     FileMapping
}

// stagingArea is the private directory of one transaction
type stagingArea struct {
	mu   sync.Mutex
	fsys absfs.FileSystem
	dir  string
}

func newStagingArea(cfg *Config, txID string) (*stagingArea, error) {
	fsys, base := cfg.StagingFS, cfg.StagingDir
	if fsys == nil {
		disk, err := osfs.NewFS()
		if err != nil {
			return nil, NewStorageError("stage", "", err)
		}
		fsys = disk
		if base == "" {
			base = defaultStagingDir()
		}
	}
	if base == "" {
		base = "/"
	}

	dir := path.Join(base, "vaultcrypt-"+txID)
	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return nil, NewStorageError("stage", dir, err)
	}
	return &stagingArea{fsys: fsys, dir: dir}, nil
}

// defaultStagingDir is the on-disk staging root used when Config.StagingFS
// is nil
func defaultStagingDir() string {
	return osfs.FromNative(filepath.Join(os.TempDir(), "vaultcrypt"))
}

// put writes data under a name derived from index and target
func (s *stagingArea) put(index int, target string, data []byte) (string, error) {
	p := path.Join(s.dir, fmt.Sprintf("%03d_%s", index, path.Base(target)))

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.fsys.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", NewStorageError("stage", p, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", NewStorageError("stage", p, err)
	}
	if err := f.Close(); err != nil {
		return "", NewStorageError("stage", p, err)
	}
	return p, nil
}

func (s *stagingArea) get(p string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.fsys.ReadFile(p)
	if err != nil {
		return nil, NewStorageError("read staged", p, err)
	}
	return data, nil
}

// purge removes the transaction directory and everything in it
func (s *stagingArea) purge() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fsys.RemoveAll(s.dir); err != nil {
		return NewStorageError("purge", s.dir, err)
	}
	return nil
}
