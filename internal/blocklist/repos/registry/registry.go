// Package registry persists the repository registry as a JSON document.
package registry

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/haukened/blocklist-manager/internal/blocklist/common/log"
	"github.com/haukened/blocklist-manager/internal/blocklist/domain"
	"github.com/knadh/koanf"
	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"gitlab.com/tozd/go/errors"
)

// Store loads and saves the whole registry.
type Store interface {
	Load() (domain.Registry, error)
	Save(domain.Registry) error
}

// DefaultSettings returns the settings written when no registry file exists.
func DefaultSettings(destination string) domain.RegistrySettings {
	return domain.RegistrySettings{
		DefaultDestination:     destination,
		AutoEnableNew:          true,
		VerifyDownloads:        false,
		MaxConcurrentDownloads: 5,
	}
}

// FileStore keeps the registry in a single JSON file.
type FileStore struct {
	path     string
	defaults domain.RegistrySettings
	logger   log.Logger
}

// NewFileStore returns a store backed by path. defaults seed the registry
// created when the file is missing.
func NewFileStore(path string, defaults domain.RegistrySettings, logger log.Logger) *FileStore {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &FileStore{path: path, defaults: defaults, logger: logger}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Load reads the registry. A missing file is replaced by an empty registry
// with default settings, which is written back immediately. A file that
// cannot be parsed yields an empty registry together with the error.
func (s *FileStore) Load() (domain.Registry, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		reg := domain.Registry{Repositories: []domain.RepositorySource{}, Settings: s.defaults}
		s.logger.Info(map[string]any{"path": s.path}, "registry not found, writing defaults")
		if err := s.Save(reg); err != nil {
			return reg, err
		}
		return reg, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(s.path), kjson.Parser()); err != nil {
		return emptyRegistry(), errors.Errorf("loading registry %s: %w", s.path, err)
	}

	var reg domain.Registry
	if err := k.UnmarshalWithConf("", &reg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return emptyRegistry(), errors.Errorf("decoding registry %s: %w", s.path, err)
	}
	if reg.Repositories == nil {
		reg.Repositories = []domain.RepositorySource{}
	}
	s.logger.Debug(map[string]any{"path": s.path, "repositories": len(reg.Repositories)}, "registry loaded")
	return reg, nil
}

// Save writes reg atomically: the document goes to a temp file in the same
// directory, which then replaces the target.
func (s *FileStore) Save(reg domain.Registry) error {
	if reg.Repositories == nil {
		reg.Repositories = []domain.RepositorySource{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(reg); err != nil {
		return errors.Errorf("encoding registry: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Errorf("creating registry directory: %w", err)
	}
	if err := writeFile(s.path, buf.Bytes(), 0o644); err != nil {
		return errors.Errorf("writing registry %s: %w", s.path, err)
	}
	return nil
}

func emptyRegistry() domain.Registry {
	return domain.Registry{Repositories: []domain.RepositorySource{}}
}

// writeFile writes b via a temp file, then replaces path.
func writeFile(path string, b []byte, mode os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.WithStack(err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return errors.WithStack(err)
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return errors.WithStack(err)
	}
	if err := f.Close(); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Rename(tmp, path))
}
