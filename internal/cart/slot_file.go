package cart

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
)

// FileSlot keeps one file per key under dir, the way a device keeps its
// local app storage. Writes go through a temp file and a rename so a crash
// never leaves a half-written snapshot behind.
type FileSlot struct {
	dir string
}

func NewFileSlot(dir string) (*FileSlot, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create slot dir: %w", err)
	}
	return &FileSlot{dir: dir}, nil
}

func (s *FileSlot) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+".json")
}

func (s *FileSlot) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read slot: %w", err)
	}
	return string(b), true, nil
}

func (s *FileSlot) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.CreateTemp(s.dir, ".slot-*")
	if err != nil {
		return fmt.Errorf("write slot: %w", err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.WriteString(value); err != nil {
		_ = f.Close()
		return fmt.Errorf("write slot: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync slot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close slot: %w", err)
	}

	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("rename slot: %w", err)
	}
	return nil
}

func (s *FileSlot) Ping(ctx context.Context) error {
	fi, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("slot dir %s is not a directory", s.dir)
	}
	return nil
}
