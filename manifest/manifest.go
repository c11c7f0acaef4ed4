// Package manifest handles jolt.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/jolt/vm"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "jolt.toml"

// Manifest represents a jolt.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Run     Run     `toml:"run"`
	Classes Classes `toml:"classes"`
	Log     Log     `toml:"log"`

	// Dir is the directory containing the jolt.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Run configures the entry point and the interpreter.
type Run struct {
	MainClass  string `toml:"main-class"`
	Method     string `toml:"method"`
	Descriptor string `toml:"descriptor"`
	MaxSteps   int    `toml:"max-steps"`
	Dispatch   string `toml:"dispatch"`
	Bootstrap  *bool  `toml:"bootstrap"`
}

// Classes configures where class artifacts come from.
type Classes struct {
	Store string   `toml:"store"`
	Dirs  []string `toml:"dirs"`
}

// Log configures the diagnostic sink.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the manifest used when no jolt.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

// Load parses a jolt.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes and validates manifest text. Dir is left empty.
func Parse(data []byte) (*Manifest, error) {
	var doc map[string]any
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if err := validate(doc); err != nil {
		return nil, err
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	m.applyDefaults()
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Run.Method == "" {
		m.Run.Method = "main"
	}
	if m.Run.Descriptor == "" {
		m.Run.Descriptor = "([Ljava/lang/String;)V"
	}
	if m.Run.Dispatch == "" {
		m.Run.Dispatch = vm.PolicyHeuristic.String()
	}
	if m.Run.Bootstrap == nil {
		b := true
		m.Run.Bootstrap = &b
	}
	if m.Classes.Store == "" {
		m.Classes.Store = filepath.Join(".jolt", "classes.db")
	}
}

// FindAndLoad walks up from startDir to find a jolt.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// StorePath returns the absolute path of the class store.
func (m *Manifest) StorePath() string {
	return m.resolve(m.Classes.Store)
}

// ClassDirPaths returns absolute paths for the configured artifact directories.
func (m *Manifest) ClassDirPaths() []string {
	var paths []string
	for _, d := range m.Classes.Dirs {
		paths = append(paths, m.resolve(d))
	}
	return paths
}

// LogFilePath returns the absolute log file path, or nil for stderr.
func (m *Manifest) LogFilePath() *string {
	if m.Log.File == "" {
		return nil
	}
	p := m.resolve(m.Log.File)
	return &p
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// VMOptions turns the [run] section into interpreter options.
func (m *Manifest) VMOptions() ([]vm.Option, error) {
	policy, err := vm.ParseDispatchPolicy(m.Run.Dispatch)
	if err != nil {
		return nil, err
	}
	opts := []vm.Option{vm.WithDispatchPolicy(policy)}
	if m.Run.MaxSteps > 0 {
		opts = append(opts, vm.WithMaxSteps(m.Run.MaxSteps))
	}
	if m.Run.Bootstrap != nil && !*m.Run.Bootstrap {
		opts = append(opts, vm.WithoutBootstrap())
	}
	return opts, nil
}
