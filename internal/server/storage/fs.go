package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/dropkeeper/internal/common"
	"github.com/dmitrijs2005/dropkeeper/internal/filex"
)

// FSStore lays blobs out as <root>/<filesystemID>/<ref>.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, err
	}
	return &FSStore{root: abs}, nil
}

func (s *FSStore) path(filesystemID, ref string) (string, error) {
	if err := validate(filesystemID, ref); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filesystemID, ref), nil
}

func (s *FSStore) Get(ctx context.Context, filesystemID, ref string) ([]byte, error) {
	p, err := s.path(filesystemID, ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrorNotFound
		}
		return nil, unavailable(err)
	}
	return data, nil
}

// Put writes via a temporary file and rename so readers never see a
// partial blob.
func (s *FSStore) Put(ctx context.Context, filesystemID, ref string, data []byte) error {
	p, err := s.path(filesystemID, ref)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return unavailable(err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return unavailable(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return unavailable(err)
	}
	if err := tmp.Close(); err != nil {
		return unavailable(err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *FSStore) Delete(ctx context.Context, filesystemID, ref string) error {
	p, err := s.path(filesystemID, ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return unavailable(err)
	}
	return nil
}
