package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	pkgerrors "github.com/citymotion/tripfacts/pkg/errors"
)

// Store is a filesystem-backed store rooted at a base directory.
type Store struct {
	base string
}

func New(base string) (*Store, error) {
	if base == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "local store base dir is required")
	}
	return &Store{base: base}, nil
}

func (s *Store) List(_ context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.base, filepath.FromSlash(dir)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeIO, err, fmt.Sprintf("listing %s", dir))
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func (s *Store) Read(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.base, filepath.FromSlash(name)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, fmt.Sprintf("reading %s", name))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeIO, err, fmt.Sprintf("reading %s", name))
	}
	return data, nil
}

func (s *Store) Write(_ context.Context, name string, data []byte) error {
	path := filepath.Join(s.base, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), fs.FileMode(0o755)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeIO, err, fmt.Sprintf("creating parent dirs for %s", name))
	}
	if err := os.WriteFile(path, data, fs.FileMode(0o644)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeIO, err, fmt.Sprintf("writing %s", name))
	}
	return nil
}
