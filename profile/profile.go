package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/geode-native/depmanifest/manifest"
	"github.com/geode-native/depmanifest/utils"
	"github.com/jfrog/gofrog/log"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

const (
	DefaultProfileName = "default"
	HomeEnv            = "DEPMANIFEST_HOME"
	profilesDirName    = "profiles"
)

// Profile holds concrete values for settings axes together with option and tool overrides.
type Profile struct {
	Name          string
	Settings      map[string]string
	Options       manifest.Options
	BuildRequires []manifest.Reference
	Env           map[string]string
}

func New(name string) *Profile {
	return &Profile{Name: name, Settings: map[string]string{}, Env: map[string]string{}}
}

// Load reads an INI profile with [settings], [options], [build_requires] or [tool_requires], and [env] or [buildenv] sections.
func Load(path string) (*Profile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read profile")
	}
	p, err := Parse(content)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load profile '%s'", path)
	}
	p.Name = filepath.Base(path)
	log.Debug(fmt.Sprintf("Loaded profile '%s' with %d settings", path, len(p.Settings)))
	return p, nil
}

func Parse(content []byte) (*Profile, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		KeyValueDelimiters:       "=",
		UnparseableSections:      []string{"build_requires", "tool_requires"},
		SpaceBeforeInlineComment: true,
	}, content)
	if err != nil {
		return nil, err
	}
	p := New("")
	for _, key := range sectionKeys(cfg, "settings") {
		p.Settings[key.Name()] = key.Value()
	}
	for _, key := range sectionKeys(cfg, "options") {
		p.Options.Set(key.Name(), key.Value())
	}
	for _, section := range []string{"env", "buildenv"} {
		for _, key := range sectionKeys(cfg, section) {
			p.Env[key.Name()] = key.Value()
		}
	}
	for _, section := range []string{"build_requires", "tool_requires"} {
		if !cfg.HasSection(section) {
			continue
		}
		for _, line := range strings.Split(cfg.Section(section).Body(), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			// Conan scopes tool requires with a pattern prefix, e.g. '*: cmake/3.21.0'.
			if pattern, ref, found := strings.Cut(line, ": "); found && !strings.Contains(pattern, "/") {
				line = strings.TrimSpace(ref)
			}
			ref, err := manifest.ParseReference(line)
			if err != nil {
				return nil, errors.Wrapf(err, "section [%s]", section)
			}
			p.BuildRequires = append(p.BuildRequires, ref)
		}
	}
	return p, nil
}

func sectionKeys(cfg *ini.File, section string) []*ini.Key {
	if !cfg.HasSection(section) {
		return nil
	}
	return cfg.Section(section).Keys()
}

// Home returns the directory holding profiles and the default catalog.
func Home() (string, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userHome, ".depmanifest"), nil
}

// Find resolves a profile argument. An existing file path is loaded as is, otherwise the name is
// looked up in the profiles directory of Home. A missing default profile is detected from the host.
func Find(nameOrPath string) (*Profile, error) {
	if nameOrPath == "" {
		nameOrPath = DefaultProfileName
	}
	exists, err := utils.IsFileExists(nameOrPath, true)
	if err != nil {
		return nil, err
	}
	if exists {
		return Load(nameOrPath)
	}
	home, err := Home()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(home, profilesDirName, nameOrPath)
	if exists, err = utils.IsFileExists(path, true); err != nil {
		return nil, err
	}
	if exists {
		return Load(path)
	}
	if nameOrPath == DefaultProfileName {
		log.Debug("No default profile found, detecting settings from the host")
		return Detect(), nil
	}
	return nil, fmt.Errorf("profile '%s' not found", nameOrPath)
}

// Override applies '-s key=value' settings and '-o pkg:option=value' options. The last value of a key wins.
func (p *Profile) Override(settings, options []string) error {
	for _, assignment := range settings {
		key, value, ok := utils.SplitKeyValue(assignment)
		if !ok {
			return fmt.Errorf("invalid setting '%s': expected key=value", assignment)
		}
		p.Settings[key] = value
	}
	for _, assignment := range options {
		key, value, ok := utils.SplitKeyValue(assignment)
		if !ok {
			return fmt.Errorf("invalid option '%s': expected package:option=value", assignment)
		}
		switch strings.ToLower(value) {
		case "true", "false":
			b, _ := manifest.ParseBoolOption(value)
			value = manifest.FormatOptionValue(b)
		}
		p.Options.Set(key, value)
	}
	return nil
}

// String renders the profile in INI form.
func (p *Profile) String() string {
	var sb strings.Builder
	sb.WriteString("[settings]\n")
	keys := make([]string, 0, len(p.Settings))
	for key := range p.Settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		sb.WriteString(key + "=" + p.Settings[key] + "\n")
	}
	if len(p.Options) > 0 {
		sb.WriteString("[options]\n")
		for _, option := range p.Options {
			sb.WriteString(option.Key + "=" + option.Value + "\n")
		}
	}
	if len(p.BuildRequires) > 0 {
		sb.WriteString("[tool_requires]\n")
		for _, ref := range p.BuildRequires {
			sb.WriteString(ref.String() + "\n")
		}
	}
	return sb.String()
}
