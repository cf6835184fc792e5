package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/geode-native/depmanifest/manifest"
)

// MissingSettingError is returned when a profile gives no value for declared settings axes.
type MissingSettingError struct {
	Profile string
	Axes    []string
}

func (err *MissingSettingError) Error() string {
	return fmt.Sprintf("profile '%s' has no value for settings: %s", err.Profile, strings.Join(err.Axes, ", "))
}

// Configuration is a manifest bound to a profile: one concrete value per declared axis.
type Configuration struct {
	Profile       string
	Settings      map[string]string
	Options       manifest.Options
	BuildRequires []manifest.Reference
	Env           map[string]string
}

// Bind resolves the settings axes of m against p. Sub-settings such as compiler.version are
// kept only when their root axis is declared. Options merge as manifest < profile, and profile
// build requires are appended unless the manifest already names the package.
func Bind(m *manifest.Manifest, p *Profile) (*Configuration, error) {
	cfg := &Configuration{
		Profile:  p.Name,
		Settings: map[string]string{},
		Options:  m.DefaultOptions.Merge(p.Options),
		Env:      p.Env,
	}
	var missing []string
	declared := map[string]bool{}
	for _, axis := range m.Settings {
		declared[axis] = true
		value, ok := p.Settings[axis]
		if !ok || value == "" {
			missing = append(missing, axis)
			continue
		}
		cfg.Settings[axis] = value
	}
	if len(missing) > 0 {
		return nil, &MissingSettingError{Profile: p.Name, Axes: missing}
	}
	for key, value := range p.Settings {
		if root, _, isSub := strings.Cut(key, "."); isSub && declared[root] {
			cfg.Settings[key] = value
		}
	}

	cfg.BuildRequires = append(cfg.BuildRequires, m.BuildRequires...)
	for _, ref := range p.BuildRequires {
		if _, exists := m.FindBuildRequire(ref.Name); exists {
			continue
		}
		if _, exists := m.FindRequire(ref.Name); exists {
			continue
		}
		cfg.BuildRequires = append(cfg.BuildRequires, ref)
	}
	return cfg, nil
}

// SettingsPairs returns the bound settings as sorted key=value strings.
func (c *Configuration) SettingsPairs() []string {
	pairs := make([]string, 0, len(c.Settings))
	for key, value := range c.Settings {
		pairs = append(pairs, key+"="+value)
	}
	sort.Strings(pairs)
	return pairs
}

func (c *Configuration) Setting(key string) string {
	return c.Settings[key]
}
