// Package file stores each cart document as a JSON file in a directory.
package file

import (
	"context"
	"os"
	"path/filepath"
	"regexp"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

var _ cart.Storage = (*Storage)(nil)

// ErrInvalidKey is returned for keys that are not safe file names.
var ErrInvalidKey = errors.New("invalid cart key")

var validKey = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Storage writes one <key>.json file per cart under dir.
type Storage struct {
	dir string
}

// New creates dir if needed and returns a Storage rooted at it.
func New(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "create cart dir %q", dir)
	}
	return &Storage{dir: dir}, nil
}

func (s *Storage) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", errors.Wrapf(ErrInvalidKey, "%q", key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

func (s *Storage) Load(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	doc, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, cart.ErrNoDocument
	}
	if err != nil {
		return nil, errors.Wrap(err, "read cart file")
	}
	return doc, nil
}

// Save replaces the document atomically: readers see either the old or the
// new file, never a partial write.
func (s *Storage) Save(_ context.Context, key string, doc []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(doc); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return errors.Wrap(err, "rename cart file")
	}
	return nil
}

// Ping checks that the directory is still accessible.
func (s *Storage) Ping(context.Context) error {
	if _, err := os.Stat(s.dir); err != nil {
		return errors.Wrap(err, "stat cart dir")
	}
	return nil
}
