package manifest

import (
	"bufio"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// Sections holding bare lines rather than key=value pairs. Version ranges contain '=' and must not be split.
var conanfileTxtListSections = []string{"requires", "build_requires", "tool_requires", "test_requires", "generators"}

// ParseConanfileTxt reads a conanfile.txt. Such a file has no settings attribute,
// so the manifest declares DefaultSettings.
func ParseConanfileTxt(content []byte) (*Manifest, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		KeyValueDelimiters:       "=",
		UnparseableSections:      conanfileTxtListSections,
		AllowBooleanKeys:         true,
		SpaceBeforeInlineComment: true,
	}, content)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse conanfile.txt")
	}

	m := &Manifest{
		Format:   FormatConanfileTxt,
		Settings: append([]string(nil), DefaultSettings...),
	}
	if m.Requires, err = txtReferences(cfg, "requires"); err != nil {
		return nil, err
	}
	for _, section := range []string{"build_requires", "tool_requires", "test_requires"} {
		refs, err := txtReferences(cfg, section)
		if err != nil {
			return nil, err
		}
		m.BuildRequires = append(m.BuildRequires, refs...)
	}
	m.Generators = txtLines(cfg, "generators")
	if cfg.HasSection("options") {
		for _, key := range cfg.Section("options").Keys() {
			m.DefaultOptions.Set(key.Name(), key.Value())
		}
	}
	return m, nil
}

func txtReferences(cfg *ini.File, section string) ([]Reference, error) {
	refs, err := ParseReferences(txtLines(cfg, section))
	if err != nil {
		return nil, errors.Wrapf(err, "section [%s]", section)
	}
	return refs, nil
}

func txtLines(cfg *ini.File, section string) []string {
	if !cfg.HasSection(section) {
		return nil
	}
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(cfg.Section(section).Body()))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if idx := strings.Index(line, " #"); idx != -1 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
