package manifest

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

type Format string

const (
	FormatConanfilePy  Format = "conanfile.py"
	FormatConanfileTxt Format = "conanfile.txt"
	FormatTOML         Format = "toml"
	FormatYAML         Format = "yaml"
	FormatJSON         Format = "json"
)

// DefaultSettings are the settings axes of a native library recipe.
var DefaultSettings = []string{"os", "compiler", "build_type", "arch"}

// Manifest is the declarative dependency description of a project.
// Settings hold axis names only; concrete values come from a profile at resolution time.
type Manifest struct {
	Name           string      `json:"name,omitempty"`
	Version        string      `json:"version,omitempty"`
	Settings       []string    `json:"settings"`
	Requires       []Reference `json:"requires"`
	BuildRequires  []Reference `json:"build_requires"`
	Generators     []string    `json:"generators"`
	DefaultOptions Options     `json:"default_options,omitempty"`
	// Path and Format describe where the manifest was read from.
	Path   string `json:"-"`
	Format Format `json:"-"`
}

// Option is a single 'dependency:option' override.
type Option struct {
	Key   string
	Value string
}

// Options keeps option overrides in declaration order.
// Values keep their textual form; Python style booleans are normalized to True/False.
type Options []Option

func (o Options) Get(key string) (string, bool) {
	for _, option := range o {
		if option.Key == key {
			return option.Value, true
		}
	}
	return "", false
}

// Bool returns the boolean value of key. ok is false when the key is missing or not a boolean.
func (o Options) Bool(key string) (value, ok bool) {
	raw, found := o.Get(key)
	if !found {
		return false, false
	}
	return ParseBoolOption(raw)
}

// Set replaces the value of an existing key or appends a new one.
func (o *Options) Set(key, value string) {
	for i := range *o {
		if (*o)[i].Key == key {
			(*o)[i].Value = value
			return
		}
	}
	*o = append(*o, Option{Key: key, Value: value})
}

// Merge returns a copy of o overridden by other.
func (o Options) Merge(other Options) Options {
	merged := make(Options, len(o), len(o)+len(other))
	copy(merged, o)
	for _, option := range other {
		merged.Set(option.Key, option.Value)
	}
	return merged
}

func (o Options) Keys() []string {
	keys := make([]string, 0, len(o))
	for _, option := range o {
		keys = append(keys, option.Key)
	}
	return keys
}

// ForPackage returns the options addressed to a package, keyed by bare option name.
func (o Options) ForPackage(name string) Options {
	var result Options
	for _, option := range o {
		pkg, opt, ok := SplitOptionKey(option.Key)
		if ok && (pkg == name || pkg == "*") {
			result.Set(opt, option.Value)
		}
	}
	return result
}

func (o Options) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, option := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(option.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(option.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SplitOptionKey splits 'boost:without_test' into its package and option names.
// Pattern keys such as 'boost/*:shared' resolve to the package name, '*:shared' to '*'.
// A key without a package part addresses the manifest's own options and returns ok == false.
func SplitOptionKey(key string) (pkg, option string, ok bool) {
	idx := strings.LastIndex(key, ":")
	if idx <= 0 || idx == len(key)-1 {
		return "", key, false
	}
	pkg, option = key[:idx], key[idx+1:]
	if name, _, found := strings.Cut(pkg, "/"); found {
		pkg = name
	}
	return pkg, option, true
}

func ParseBoolOption(raw string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	}
	return false, false
}

// FormatOptionValue renders a decoded scalar the way recipes spell it.
func FormatOptionValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "None"
	case bool:
		if v {
			return "True"
		}
		return "False"
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// AllReferences returns requires followed by build requires.
func (m *Manifest) AllReferences() []Reference {
	refs := make([]Reference, 0, len(m.Requires)+len(m.BuildRequires))
	refs = append(refs, m.Requires...)
	return append(refs, m.BuildRequires...)
}

// FindRequire returns the runtime requirement named name.
func (m *Manifest) FindRequire(name string) (Reference, bool) {
	return findReference(m.Requires, name)
}

// FindBuildRequire returns the build requirement named name.
func (m *Manifest) FindBuildRequire(name string) (Reference, bool) {
	return findReference(m.BuildRequires, name)
}

func findReference(refs []Reference, name string) (Reference, bool) {
	for _, ref := range refs {
		if ref.Name == name {
			return ref, true
		}
	}
	return Reference{}, false
}

// ProjectId returns the module id used in build-info.
func (m *Manifest) ProjectId() string {
	return FormatDependencyKey(m.Name, m.Version)
}
