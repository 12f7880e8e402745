package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rename maps a default primitive name to a replacement leaf name. Front
// ends that cannot emit the exact `__autoken_*` names (e.g. because a
// linker mangles them) can redirect the recognizer here.
type Rename struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// File is the YAML run configuration read by Load.
type File struct {
	// Entry is the fully-qualified entry function name. Defaults to
	// DefaultEntryPoint when empty.
	Entry string `yaml:"entry"`

	// Packages restricts real-Go-source loading (internal/goir) to this set
	// of package patterns, in the same syntax accepted by `go list`. A nil
	// slice means "the package in the current directory".
	Packages []string `yaml:"packages"`

	Renames []Rename `yaml:"renames"`

	// WarnOnly lists diagnostic kinds (by their D-code, e.g. "D3") that should
	// be downgraded to warning severity and therefore not affect the process
	// exit code.
	WarnOnly []string `yaml:"warn_only"`

	// CachePath, if non-empty, points at a SQLite fact cache (internal/cache)
	// used to carry facts across runs.
	CachePath string `yaml:"cache_path"`

	// WireOut, if non-empty, additionally writes the diagnostic report to
	// this path using the dynamic-protobuf wire format (internal/wire).
	WireOut string `yaml:"wire_out"`
}

// Load reads a YAML run configuration from path. A missing file is not an
// error; it yields the zero File, which callers should treat as "use every
// default".
func Load(path string) (*File, error) {
	if path == "" {
		return &File{}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &File{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &f, nil
}

// EntryOrDefault returns f.Entry, falling back to DefaultEntryPoint.
func (f *File) EntryOrDefault() string {
	if f == nil || f.Entry == "" {
		return DefaultEntryPoint
	}
	return f.Entry
}
