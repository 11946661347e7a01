// Package filestore persists record store snapshots as JSON files, one file
// per collection, under a data directory.
//
// Writes go to a temporary file in the same directory which is fsynced and
// then renamed over the target, so a crash leaves either the previous or the
// new snapshot on disk.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var (
	ErrEmptyDir = errors.New("filestore: data directory is required")
)

// Config holds the data directory location.
type Config struct {
	Dir string `env:"DATA_DIR" envDefault:"data"`
}

// Backend writes <dir>/<collection>.json files.
type Backend struct {
	dir string
}

// New creates the data directory if needed.
func New(cfg Config) (*Backend, error) {
	if cfg.Dir == "" {
		return nil, ErrEmptyDir
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create data dir: %w", err)
	}
	return &Backend{dir: cfg.Dir}, nil
}

// Path returns the file holding a collection.
func (b *Backend) Path(collection string) string {
	return filepath.Join(b.dir, collection+".json")
}

func (b *Backend) Load(ctx context.Context, collection string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(b.Path(collection))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return raw, err
}

func (b *Backend) Save(ctx context.Context, collection string, snapshot []byte) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(b.dir, "."+collection+"-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(snapshot); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.Path(collection))
}
