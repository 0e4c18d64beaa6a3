package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Workflow maps a client-facing workflow alias to an engine path.
type Workflow struct {
	Path        string `json:"path" yaml:"path" toml:"path"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
}

// Schedule fires a workflow on a cron expression.
type Schedule struct {
	Workflow string                 `json:"workflow" yaml:"workflow" toml:"workflow"`
	Cron     string                 `json:"cron" yaml:"cron" toml:"cron"`
	Payload  map[string]interface{} `json:"payload,omitempty" yaml:"payload,omitempty" toml:"payload,omitempty"`
}

// file is the on-disk catalog shape.
type file struct {
	Workflows map[string]Workflow `json:"workflows" yaml:"workflows" toml:"workflows"`
	Schedules []Schedule          `json:"schedules" yaml:"schedules" toml:"schedules"`
}

// Catalog holds workflow aliases and schedule entries. It is loaded
// once at startup and immutable afterward.
type Catalog struct {
	workflows map[string]Workflow
	schedules []Schedule
}

// Empty creates a catalog with no entries. Triggers fall back to the
// engine's default path convention.
func Empty() *Catalog {
	return &Catalog{workflows: make(map[string]Workflow)}
}

// Load reads a catalog from a YAML, TOML, or JSON file. An empty path
// yields an empty catalog. Validation failures abort startup rather
// than surface later as broken triggers.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Empty(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}

	var f file
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing YAML catalog %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing TOML catalog %s: %w", path, err)
		}
	default:
		if err := sonic.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing JSON catalog %s: %w", path, err)
		}
	}

	return build(&f)
}

// build validates the decoded file and assembles the catalog.
func build(f *file) (*Catalog, error) {
	c := Empty()

	for name, wf := range f.Workflows {
		if name == "" {
			return nil, fmt.Errorf("workflow name cannot be empty")
		}
		if wf.Path == "" {
			return nil, fmt.Errorf("workflow %q: path is required", name)
		}
		if !strings.HasPrefix(wf.Path, "/") {
			wf.Path = "/" + wf.Path
		}
		c.workflows[name] = wf
	}

	for i, s := range f.Schedules {
		if s.Workflow == "" {
			return nil, fmt.Errorf("schedule %d: workflow is required", i)
		}
		if _, ok := c.workflows[s.Workflow]; !ok {
			return nil, fmt.Errorf("schedule %d: unknown workflow %q", i, s.Workflow)
		}
		if _, err := cron.ParseStandard(s.Cron); err != nil {
			return nil, fmt.Errorf("schedule %d: invalid cron expression %q: %w", i, s.Cron, err)
		}
		c.schedules = append(c.schedules, s)
	}

	return c, nil
}

// Resolve returns the engine path for a workflow alias.
func (c *Catalog) Resolve(name string) (string, bool) {
	wf, ok := c.workflows[name]
	return wf.Path, ok
}

// Schedules returns the schedule entries.
func (c *Catalog) Schedules() []Schedule {
	out := make([]Schedule, len(c.schedules))
	copy(out, c.schedules)
	return out
}

// Names returns registered workflow aliases sorted alphabetically.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.workflows))
	for name := range c.workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered workflow aliases.
func (c *Catalog) Len() int {
	return len(c.workflows)
}
