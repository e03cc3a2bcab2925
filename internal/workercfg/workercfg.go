// Package workercfg discovers and validates worker configuration records.
//
// A config directory holds one file per worker identity. Supported formats are
// JSON, TOML and YAML, selected by file extension. Each record must carry a
// unique "id"; "profile.path" is optional. Every other field is passed
// through to the worker untouched: the supervisor hands the worker the file
// path, never the decoded contents.
package workercfg

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Common errors
var (
	ErrConfigDirMissing = errors.New("config directory not found")
	ErrUnsupported      = errors.New("unsupported config format")
	ErrInvalid          = errors.New("invalid worker config")
	ErrDuplicateID      = errors.New("duplicate worker id")
)

// idPattern restricts ids to characters that are safe in file names, since
// the id is embedded in per-run log paths.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// WorkerConfig is one decoded worker record.
type WorkerConfig struct {
	// ID is the worker identity, the key for every supervisor map.
	ID string
	// ProfilePath is the directory the worker expects to exist before launch.
	ProfilePath string
	// Fields is the full decoded record.
	Fields map[string]any
}

// Entry pairs a config with the file it was loaded from.
type Entry struct {
	Config WorkerConfig
	Path   string
}

// LoadError describes one rejected config file.
type LoadError struct {
	Path   string
	Err    error
	Issues []string
}

func (e *LoadError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Path, e.Err, strings.Join(e.Issues, "; "))
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsConfigFile reports whether name has a supported extension and is not hidden.
func IsConfigFile(name string) bool {
	if strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".toml", ".yaml", ".yml":
		return true
	}
	return false
}

// EnsureConfigDir returns ErrConfigDirMissing unless dir is an existing directory.
func EnsureConfigDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w at %s", ErrConfigDirMissing, dir)
		}
		return fmt.Errorf("checking config directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrConfigDirMissing, dir)
	}
	return nil
}

// Discover loads every config file in dir in lexical filename order.
// Files that fail to load are returned as LoadErrors and excluded from the
// entries; they never stop discovery of the remaining files. A later file
// reusing an id already seen in this batch is rejected with ErrDuplicateID.
// The error return is reserved for an unreadable directory.
func Discover(dir string) ([]Entry, []*LoadError, error) {
	if err := EnsureConfigDir(dir); err != nil {
		return nil, nil, err
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.Type().IsRegular() || !IsConfigFile(de.Name()) {
			continue
		}
		names = append(names, de.Name())
	}
	sort.Strings(names)

	var (
		entries []Entry
		failed  []*LoadError
		seen    = make(map[string]string)
	)
	for _, name := range names {
		path := filepath.Join(dir, name)
		cfg, loadErr := LoadFile(path)
		if loadErr != nil {
			failed = append(failed, loadErr)
			continue
		}
		if prev, dup := seen[cfg.ID]; dup {
			failed = append(failed, &LoadError{
				Path:   path,
				Err:    ErrDuplicateID,
				Issues: []string{fmt.Sprintf("id %q already defined in %s", cfg.ID, prev)},
			})
			continue
		}
		seen[cfg.ID] = path
		entries = append(entries, Entry{Config: *cfg, Path: path})
	}

	return entries, failed, nil
}

// LoadFile decodes and validates a single config file.
func LoadFile(path string) (*WorkerConfig, *LoadError) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the config directory listing
	if err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("reading: %w", err)}
	}

	fields, err := decode(path, data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	cfg, issues := validate(fields)
	if len(issues) > 0 {
		return nil, &LoadError{Path: path, Err: ErrInvalid, Issues: issues}
	}
	return cfg, nil
}

func decode(path string, data []byte) (map[string]any, error) {
	fields := make(map[string]any)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &fields); err != nil {
			return nil, fmt.Errorf("parsing TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
		if fields == nil {
			fields = make(map[string]any)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}

	return fields, nil
}

// validate extracts the fields the supervisor relies on and reports every
// problem found rather than stopping at the first.
func validate(fields map[string]any) (*WorkerConfig, []string) {
	var issues []string
	cfg := &WorkerConfig{Fields: fields}

	switch id := fields["id"].(type) {
	case nil:
		issues = append(issues, "id: required")
	case string:
		if !idPattern.MatchString(id) {
			issues = append(issues, fmt.Sprintf("id: %q must match %s", id, idPattern.String()))
		}
		cfg.ID = id
	default:
		issues = append(issues, fmt.Sprintf("id: expected string, got %T", id))
	}

	if raw, ok := fields["profile"]; ok && raw != nil {
		profile, ok := raw.(map[string]any)
		if !ok {
			issues = append(issues, fmt.Sprintf("profile: expected table, got %T", raw))
		} else if p, present := profile["path"]; present {
			switch path := p.(type) {
			case string:
				if strings.TrimSpace(path) == "" {
					issues = append(issues, "profile.path: must not be empty")
				}
				cfg.ProfilePath = path
			default:
				issues = append(issues, fmt.Sprintf("profile.path: expected string, got %T", p))
			}
		}
	}

	if len(issues) > 0 {
		return nil, issues
	}
	return cfg, nil
}
