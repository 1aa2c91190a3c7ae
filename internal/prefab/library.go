package prefab

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/blengine/engine/internal/core/ecs"
)

// Template describes one entity and, through Children, the subtree spawned
// under it.
type Template struct {
	Name      string     `yaml:"name"`
	World     uint8      `yaml:"world"`
	Flags     []string   `yaml:"flags"`    // "dummy", "world_object"
	Behavior  string     `yaml:"behavior"` // "destroyed_with_parent" (default) or "orphaned_by_parent"
	Transform *Transform `yaml:"transform"`
	Velocity  *Velocity  `yaml:"velocity"`
	Sprite    *Sprite    `yaml:"sprite"`
	Hidden    bool       `yaml:"hidden"`
	Children  []Template `yaml:"children"`

	flags    ecs.Flags
	behavior ecs.ParentDestructionBehavior
}

type Transform struct {
	X        float32 `yaml:"x"`
	Y        float32 `yaml:"y"`
	Rotation float32 `yaml:"rotation"`
}

type Velocity struct {
	X       float32 `yaml:"x"`
	Y       float32 `yaml:"y"`
	Angular float32 `yaml:"angular"`
}

type Sprite struct {
	Texture string    `yaml:"texture"`
	Layer   int       `yaml:"layer"`
	Tint    []float32 `yaml:"tint"` // rgba, defaults to opaque white
}

// Library holds prefab templates keyed by folded name.
type Library struct {
	prefabs map[string]*Template
}

// LoadLibrary loads a prefab YAML file: a list of templates.
func LoadLibrary(path string) (*Library, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prefab library: %w", err)
	}
	lib, err := ParseLibrary(raw)
	if err != nil {
		return nil, fmt.Errorf("prefab library %s: %w", path, err)
	}
	return lib, nil
}

func ParseLibrary(raw []byte) (*Library, error) {
	var entries []Template
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse prefab library: %w", err)
	}
	lib := &Library{prefabs: make(map[string]*Template, len(entries))}
	for i := range entries {
		t := &entries[i]
		if err := t.resolve(); err != nil {
			return nil, err
		}
		key := foldName(t.Name)
		if key == "" {
			return nil, fmt.Errorf("prefab #%d has no name", i)
		}
		if _, dup := lib.prefabs[key]; dup {
			return nil, fmt.Errorf("duplicate prefab %q", t.Name)
		}
		lib.prefabs[key] = t
	}
	return lib, nil
}

// resolve parses the string-valued fields of t and its children.
func (t *Template) resolve() error {
	t.flags = ecs.FlagNone
	for _, name := range t.Flags {
		f, ok := ecs.ParseFlag(name)
		if !ok {
			return fmt.Errorf("prefab %q: unknown flag %q", t.Name, name)
		}
		t.flags |= f
	}
	b, ok := ecs.ParseParentDestructionBehavior(t.Behavior)
	if !ok {
		return fmt.Errorf("prefab %q: unknown behavior %q", t.Name, t.Behavior)
	}
	t.behavior = b
	if t.World > ecs.MaxWorldIndex {
		return fmt.Errorf("prefab %q: world %d out of range", t.Name, t.World)
	}
	if t.Sprite != nil && len(t.Sprite.Tint) != 0 && len(t.Sprite.Tint) != 4 {
		return fmt.Errorf("prefab %q: tint needs 4 components", t.Name)
	}
	for i := range t.Children {
		if err := t.Children[i].resolve(); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the named prefab, or nil. Lookup ignores case and Unicode
// normalization differences.
func (l *Library) Get(name string) *Template {
	return l.prefabs[foldName(name)]
}

// Count returns the number of prefabs loaded.
func (l *Library) Count() int {
	return len(l.prefabs)
}

// Names returns the prefab names in sorted order.
func (l *Library) Names() []string {
	out := make([]string, 0, len(l.prefabs))
	for _, t := range l.prefabs {
		out = append(out, t.Name)
	}
	sort.Strings(out)
	return out
}

func foldName(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}
