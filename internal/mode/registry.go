// Package mode loads the competition mode catalog: named instruction sets
// that steer how cautiously or aggressively the traders are prompted to act.
// The catalog lives in a YAML file and is hot-reloaded on change, so modes
// can be tuned mid-competition without a restart.
package mode

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"ludus/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrUnknownMode reports a mode ID absent from the current catalog.
var ErrUnknownMode = errors.New("unknown competition mode")

// Mode is one named instruction set. Instructions are rendered verbatim
// into every trader prompt while the mode is active.
type Mode struct {
	ID           string   `mapstructure:"id" yaml:"id"`
	Description  string   `mapstructure:"description" yaml:"description"`
	Instructions []string `mapstructure:"instructions" yaml:"instructions"`
}

// PromptBlock renders the mode as a prompt section.
func (m Mode) PromptBlock() string {
	if len(m.Instructions) == 0 {
		return ""
	}
	var b strings.Builder
	title := fmt.Sprintf("\n## Trading Mode: %s\n", m.ID)
	if desc := strings.TrimSpace(m.Description); desc != "" {
		title = fmt.Sprintf("\n## Trading Mode: %s (%s)\n", m.ID, desc)
	}
	b.WriteString(title)
	for _, line := range m.Instructions {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.WriteString("- " + line + "\n")
	}
	return b.String()
}

// FileConfig maps the modes file root.
type FileConfig struct {
	Modes map[string]Mode `mapstructure:"modes" yaml:"modes"`
}

// Snapshot is an immutable view of the catalog.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Modes    map[string]Mode
}

// Registry watches the modes file and serves the latest valid catalog.
// A failed reload keeps the previous snapshot in place.
type Registry struct {
	path string
	v    *viper.Viper

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewRegistry reads the catalog and starts watching the file for updates.
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("mode registry requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read modes config failed: %w", err)
	}
	r := &Registry{path: path, v: v}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("mode catalog reload failed: %v", err)
			return
		}
	})
	v.WatchConfig()
	return r, nil
}

// Snapshot returns the current catalog.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneSnapshot(r.snapshot)
}

// Mode returns the mode with the given ID.
func (r *Registry) Mode(id string) (Mode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.snapshot.Modes[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Mode{}, fmt.Errorf("%w: %s", ErrUnknownMode, id)
	}
	return m, nil
}

// Names lists the available mode IDs sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.snapshot.Modes))
	for id := range r.snapshot.Modes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) reload() error {
	cfg, err := readModesFile(r.path)
	if err != nil {
		return err
	}
	modes := make(map[string]Mode, len(cfg.Modes))
	for name, m := range cfg.Modes {
		norm := normalizeMode(name, m)
		modes[norm.ID] = norm
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Modes:    modes,
	}
	r.mu.Unlock()
	logger.Infof("Mode catalog loaded %d modes from %s", len(modes), filepath.Base(r.path))
	return nil
}

func normalizeMode(name string, m Mode) Mode {
	m.ID = strings.ToLower(strings.TrimSpace(m.ID))
	if m.ID == "" {
		m.ID = strings.ToLower(strings.TrimSpace(name))
	}
	m.Description = strings.TrimSpace(m.Description)
	return m
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Modes:    make(map[string]Mode, len(src.Modes)),
	}
	for id, m := range src.Modes {
		dst.Modes[id] = m
	}
	return dst
}

// modesSchema constrains the catalog file shape before the strict decode
// runs, so schema errors name the offending field instead of surfacing as
// a generic yaml type mismatch.
const modesSchema = `{
  "type": "object",
  "required": ["modes"],
  "additionalProperties": false,
  "properties": {
    "modes": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "object",
        "required": ["instructions"],
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string"},
          "description": {"type": "string"},
          "instructions": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string", "minLength": 1}
          }
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	schemaCompiled *jsonschema.Schema
	schemaErr      error
)

func compiledModesSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("modes.json", strings.NewReader(modesSchema)); err != nil {
			schemaErr = err
			return
		}
		schemaCompiled, schemaErr = compiler.Compile("modes.json")
	})
	return schemaCompiled, schemaErr
}

func readModesFile(path string) (FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read modes config failed: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return FileConfig{}, fmt.Errorf("parse modes config failed: %w", err)
	}
	schema, err := compiledModesSchema()
	if err != nil {
		return FileConfig{}, fmt.Errorf("modes schema unavailable: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return FileConfig{}, fmt.Errorf("modes config invalid: %w", err)
	}

	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse modes config failed: %w", err)
	}
	return cfg, nil
}
