package persona

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Source loads and stores persona configurations.
// Implementations must be safe for concurrent use.
type Source interface {
	// Load returns a copy of the configuration stored under name, or
	// ErrNotFound.
	Load(ctx context.Context, name string) (*Config, error)

	// Save validates and stores cfg under name, replacing any previous
	// configuration.
	Save(ctx context.Context, name string, cfg *Config) error

	// List returns a summary of every stored persona, sorted by name.
	List(ctx context.Context) ([]Summary, error)
}

// extensions are probed in order when resolving a persona file.
var extensions = []string{".yaml", ".yml", ".json"}

// FileSource keeps one document per persona in a directory. Parsed configs
// are cached; Save refreshes the cache entry it writes.
type FileSource struct {
	dir string

	mu    sync.RWMutex
	cache map[string]*Config
}

var _ Source = (*FileSource)(nil)

// NewFileSource returns a FileSource rooted at dir, creating it if needed.
func NewFileSource(dir string) (*FileSource, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create personas dir: %w", err)
	}
	return &FileSource{
		dir:   dir,
		cache: make(map[string]*Config),
	}, nil
}

// Load implements Source.
func (s *FileSource) Load(_ context.Context, name string) (*Config, error) {
	if !ValidName(name) {
		return nil, oops.In("persona").With("persona", name).Wrapf(ErrNotFound, "invalid name")
	}

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return cached.Clone(), nil
	}

	cfg, err := s.read(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[name] = cfg
	s.mu.Unlock()

	return cfg.Clone(), nil
}

// Save implements Source. The document is written as YAML through a temp
// file and rename, and any other-extension file for the same persona is
// removed so the new one is authoritative.
func (s *FileSource) Save(_ context.Context, name string, cfg *Config) error {
	if !ValidName(name) {
		return oops.In("persona").With("persona", name).Wrapf(ErrInvalidConfig, "invalid name")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return oops.In("persona").With("persona", name).Wrapf(err, "marshal")
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+"-*.tmp")
	if err != nil {
		return oops.In("persona").Wrapf(errors.Join(ErrUnavailable, err), "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return oops.In("persona").Wrapf(errors.Join(ErrUnavailable, err), "write temp file")
	}
	if err := tmp.Close(); err != nil {
		return oops.In("persona").Wrapf(errors.Join(ErrUnavailable, err), "close temp file")
	}

	target := filepath.Join(s.dir, name+".yaml")
	if err := os.Rename(tmp.Name(), target); err != nil {
		return oops.In("persona").Wrapf(errors.Join(ErrUnavailable, err), "rename into place")
	}
	for _, ext := range extensions[1:] {
		_ = os.Remove(filepath.Join(s.dir, name+ext))
	}

	s.mu.Lock()
	s.cache[name] = cfg.Clone()
	s.mu.Unlock()

	slog.Info("persona saved", "persona", name)
	return nil
}

// List implements Source. Documents that fail to load are logged and
// skipped so one broken file does not hide the rest.
func (s *FileSource) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, oops.In("persona").Wrapf(errors.Join(ErrUnavailable, err), "read personas dir")
	}

	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		name := strings.TrimSuffix(e.Name(), ext)
		if !isPersonaExt(ext) || !ValidName(name) || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Summary, 0, len(names))
	for _, name := range names {
		cfg, err := s.Load(ctx, name)
		if err != nil {
			slog.Warn("skipping persona", "persona", name, "err", err)
			continue
		}
		out = append(out, cfg.Summarize(name))
	}
	return out, nil
}

// Loaded returns the number of cached configurations.
func (s *FileSource) Loaded() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// Exists reports whether a document for name is present on disk.
func (s *FileSource) Exists(name string) bool {
	_, _, err := s.locate(name)
	return err == nil
}

func (s *FileSource) locate(name string) (string, string, error) {
	for _, ext := range extensions {
		path := filepath.Join(s.dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, ext, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", "", errors.Join(ErrUnavailable, err)
		}
	}
	return "", "", ErrNotFound
}

func (s *FileSource) read(name string) (*Config, error) {
	path, ext, err := s.locate(name)
	if err != nil {
		return nil, oops.In("persona").With("persona", name).Wrapf(err, "locate")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.In("persona").With("persona", name).Wrapf(errors.Join(ErrUnavailable, err), "read")
	}

	var cfg Config
	if ext == ".json" {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, oops.In("persona").With("persona", name, "path", path).Wrapf(errors.Join(ErrInvalidConfig, err), "decode")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isPersonaExt(ext string) bool {
	return slices.Contains(extensions, ext)
}
