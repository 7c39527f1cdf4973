package inventory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	dataDirPerm  = 0o755
	dataFilePerm = 0o644
)

// FileBackend keeps the collection in one JSON file. Writes go to a sibling temp
// file that is synced and renamed over the original, so readers see either the
// old or the new collection, never a torn one.
type FileBackend struct {
	path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Path() string { return b.path }

// Ping reports whether Save could place the file: the nearest existing ancestor
// of its directory must be a directory. Missing levels are created on save.
func (b *FileBackend) Ping(_ context.Context) error {
	dir := filepath.Dir(b.path)
	for {
		info, err := os.Stat(dir)
		switch {
		case err == nil && info.IsDir():
			return nil
		case err == nil:
			return fmt.Errorf("%s is not a directory", dir)
		case !errors.Is(err, fs.ErrNotExist):
			return err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return err
		}
		dir = parent
	}
}

// Load reads the file. A missing file is created holding an empty collection.
func (b *FileBackend) Load(ctx context.Context) ([]Product, error) {
	raw, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		products := []Product{}
		if err := b.Save(ctx, products); err != nil {
			return nil, fmt.Errorf("initialize %s: %w", b.path, err)
		}
		return products, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}

	products, err := unmarshalCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", b.path, err)
	}
	return products, nil
}

func (b *FileBackend) Save(_ context.Context, products []Product) error {
	raw, err := marshalCollection(products)
	if err != nil {
		return fmt.Errorf("encode products: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(b.path), dataDirPerm); err != nil {
		return err
	}

	tmp := b.path + ".tmp-" + uuid.NewString()
	if err := writeSynced(tmp, raw); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, b.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func writeSynced(path string, raw []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, dataFilePerm)
	if err != nil {
		return err
	}
	if _, err := f.Write(raw); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
