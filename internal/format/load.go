package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of a formats file (YAML, TOML or JSON). Keys are
// snake_case in all three encodings; column keys are canonical field names.
type File struct {
	Formats []FormatSpec `yaml:"formats" json:"formats" toml:"formats"`
}

// FormatSpec is one named format as written by users.
type FormatSpec struct {
	Name     string                 `yaml:"name" json:"name" toml:"name"`
	Default  string                 `yaml:"default" json:"default" toml:"default"`
	Versions map[string]VersionSpec `yaml:"versions" json:"versions" toml:"versions"`
}

// VersionSpec is one format version as written by users.
type VersionSpec struct {
	Encoding         string                `yaml:"encoding,omitempty" json:"encoding,omitempty" toml:"encoding"`
	Delimiter        string                `yaml:"delimiter" json:"delimiter" toml:"delimiter"`
	DecimalSeparator string                `yaml:"decimal_separator" json:"decimal_separator" toml:"decimal_separator"`
	DateFormat       string                `yaml:"date_format" json:"date_format" toml:"date_format"`
	HeaderSkipLines  int                   `yaml:"header_skip_lines,omitempty" json:"header_skip_lines,omitempty" toml:"header_skip_lines"`
	Header           []string              `yaml:"header,omitempty" json:"header,omitempty" toml:"header"`
	Columns          map[string]ColumnSpec `yaml:"columns" json:"columns" toml:"columns"`
}

// ColumnSpec selects a strategy by which of its fields is set. All empty
// means unused.
type ColumnSpec struct {
	Name      string      `yaml:"name,omitempty" json:"name,omitempty" toml:"name"`
	Join      []string    `yaml:"join,omitempty" json:"join,omitempty" toml:"join"`
	Separator string      `yaml:"separator,omitempty" json:"separator,omitempty" toml:"separator"`
	Regex     []RegexSpec `yaml:"regex,omitempty" json:"regex,omitempty" toml:"regex"`
}

// RegexSpec is one regex source.
type RegexSpec struct {
	Name    string `yaml:"name" json:"name" toml:"name"`
	Pattern string `yaml:"pattern" json:"pattern" toml:"pattern"`
}

// Decode parses a formats document. kind is a file extension (".yaml",
// ".yml", ".toml", ".json").
func Decode(data []byte, kind string) (*File, error) {
	var f File
	switch strings.ToLower(kind) {
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing formats YAML: %w", err)
		}
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
			return nil, fmt.Errorf("parsing formats TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing formats JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported formats file type %q", kind)
	}
	return &f, nil
}

// LoadFile reads and decodes a formats file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading formats: %w", err)
	}
	return Decode(data, filepath.Ext(path))
}

// RegisterAll registers every format in f. A broken format is skipped and
// reported; the others are still registered.
func (r *Registry) RegisterAll(f *File) (int, error) {
	var errs []error
	n := 0
	for _, spec := range f.Formats {
		format, err := spec.Format()
		if err == nil {
			err = r.Register(format)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// Format converts the file form into a Format (not yet compiled).
func (s FormatSpec) Format() (Format, error) {
	f := Format{
		Name:           strings.TrimSpace(s.Name),
		DefaultVersion: s.Default,
		Versions:       make(map[string]*FormatConfig, len(s.Versions)),
	}
	for v, vs := range s.Versions {
		cfg, err := vs.Config()
		if err != nil {
			return Format{}, withContext(err, f.Name, v)
		}
		f.Versions[v] = cfg
	}
	return f, nil
}

// Config converts the file form into a FormatConfig (not yet compiled).
func (s VersionSpec) Config() (*FormatConfig, error) {
	delim, err := singleRune("delimiter", s.Delimiter, ',')
	if err != nil {
		return nil, err
	}
	decSep, err := singleRune("decimal_separator", s.DecimalSeparator, '.')
	if err != nil {
		return nil, err
	}
	cfg := &FormatConfig{
		Encoding:         strings.TrimSpace(s.Encoding),
		Delimiter:        delim,
		DecimalSeparator: decSep,
		DateFormat:       s.DateFormat,
		HeaderSkipLines:  s.HeaderSkipLines,
		Header:           s.Header,
		Columns:          make(map[CanonicalField]ColumnStrategy, len(s.Columns)),
	}
	for key, cs := range s.Columns {
		field, ok := ParseField(key)
		if !ok {
			return nil, &Error{Kind: ErrInvalid, Field: CanonicalField(key), Detail: "unknown canonical field", Suggestion: suggest(key, fieldNames())}
		}
		strategy, err := cs.Strategy()
		if err != nil {
			return nil, withField(err, field)
		}
		cfg.Columns[field] = strategy
	}
	return cfg, nil
}

// Strategy converts the file form into a ColumnStrategy.
func (c ColumnSpec) Strategy() (ColumnStrategy, error) {
	set := 0
	if c.Name != "" {
		set++
	}
	if len(c.Join) > 0 {
		set++
	}
	if len(c.Regex) > 0 {
		set++
	}
	if set > 1 {
		return ColumnStrategy{}, &Error{Kind: ErrInvalid, Detail: "only one of name, join, regex may be set"}
	}
	switch {
	case c.Name != "":
		return Name(c.Name), nil
	case len(c.Join) > 0:
		return Join(c.Separator, c.Join...), nil
	case len(c.Regex) > 0:
		sources := make([]RegexSource, len(c.Regex))
		for i, r := range c.Regex {
			sources[i] = RegexSource{Column: r.Name, Pattern: r.Pattern}
		}
		return Regex(sources...), nil
	}
	return ColumnStrategy{Kind: StrategyUnused}, nil
}

// Spec converts a registered format back into its file form.
func Spec(f *Format) FormatSpec {
	out := FormatSpec{Name: f.Name, Default: f.DefaultVersion, Versions: make(map[string]VersionSpec, len(f.Versions))}
	for v, cfg := range f.Versions {
		vs := VersionSpec{
			Encoding:         cfg.Encoding,
			Delimiter:        string(cfg.Delimiter),
			DecimalSeparator: string(cfg.DecimalSeparator),
			DateFormat:       cfg.DateFormat,
			HeaderSkipLines:  cfg.HeaderSkipLines,
			Header:           cfg.Header,
			Columns:          make(map[string]ColumnSpec, len(cfg.Columns)),
		}
		for field, s := range cfg.Columns {
			var cs ColumnSpec
			switch s.Kind {
			case StrategyName:
				cs.Name = s.Column
			case StrategyJoin:
				cs.Join, cs.Separator = s.Columns, s.Separator
			case StrategyRegex:
				for _, src := range s.Sources {
					cs.Regex = append(cs.Regex, RegexSpec{Name: src.Column, Pattern: src.Pattern})
				}
			default:
				continue
			}
			vs.Columns[string(field)] = cs
		}
		out.Versions[v] = vs
	}
	return out
}

func singleRune(name, s string, def rune) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		return def, nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, &Error{Kind: ErrInvalid, Detail: fmt.Sprintf("%s must be a single character, got %q", name, s)}
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

func withField(err error, field CanonicalField) error {
	var fe *Error
	if errors.As(err, &fe) && fe.Field == "" {
		fe.Field = field
	}
	return err
}
