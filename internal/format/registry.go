package format

import (
	"sort"
	"strings"
	"sync"
)

// Registry holds named formats. Names are case-insensitive. Registered
// formats are never mutated, so a resolved *FormatConfig is a stable
// snapshot even if the format is replaced afterwards.
type Registry struct {
	mu      sync.RWMutex
	formats map[string]*Format
}

// NewRegistry creates an empty format registry.
func NewRegistry() *Registry {
	return &Registry{formats: make(map[string]*Format)}
}

// Register validates and compiles every version of f, then adds it,
// replacing any format with the same name. Nothing is registered on error.
func (r *Registry) Register(f Format) error {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return &Error{Kind: ErrInvalid, Detail: "format name is required"}
	}
	if len(f.Versions) == 0 {
		return &Error{Kind: ErrInvalid, Format: name, Detail: "format has no versions"}
	}

	versions := make(map[string]*FormatConfig, len(f.Versions))
	for v, cfg := range f.Versions {
		if cfg == nil {
			return &Error{Kind: ErrInvalid, Format: name, Version: v, Detail: "empty version"}
		}
		c := cloneConfig(cfg)
		if err := c.Compile(); err != nil {
			return withContext(err, name, v)
		}
		versions[v] = c
	}

	def := f.DefaultVersion
	if def == "" && len(versions) == 1 {
		for v := range versions {
			def = v
		}
	}
	if _, ok := versions[def]; !ok {
		return &Error{Kind: ErrUnknownVersion, Format: name, Version: def, Detail: "default version is not defined"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats[strings.ToLower(name)] = &Format{Name: name, DefaultVersion: def, Versions: versions}
	return nil
}

// Remove deletes a format. It reports whether the format existed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(name))
	_, ok := r.formats[key]
	delete(r.formats, key)
	return ok
}

// Get returns the named format.
func (r *Registry) Get(name string) (*Format, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.formats[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// Names returns the registered format names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.formats))
	for _, f := range r.formats {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the config for (name, version). An empty version selects
// the format's default version.
func (r *Registry) Resolve(name, version string) (*FormatConfig, error) {
	f, ok := r.Get(name)
	if !ok {
		return nil, &Error{Kind: ErrUnknownFormat, Format: name, Suggestion: suggest(name, r.Names())}
	}
	v := version
	if v == "" {
		v = f.DefaultVersion
	}
	cfg, ok := f.Versions[v]
	if !ok {
		return nil, &Error{Kind: ErrUnknownVersion, Format: f.Name, Version: v, Suggestion: suggest(v, f.VersionNames())}
	}
	return cfg, nil
}

func cloneConfig(c *FormatConfig) *FormatConfig {
	out := *c
	if c.Header != nil {
		out.Header = append([]string(nil), c.Header...)
	}
	out.Columns = make(map[CanonicalField]ColumnStrategy, len(c.Columns))
	for field, s := range c.Columns {
		s.Columns = append([]string(nil), s.Columns...)
		s.Sources = append([]RegexSource(nil), s.Sources...)
		out.Columns[field] = s
	}
	return &out
}
