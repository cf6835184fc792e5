package manifest

import (
	"fmt"
	"strings"

	"github.com/jfrog/gofrog/log"
	"github.com/pkg/errors"
)

// ParseConanfilePy reads the declarative attributes of a conanfile.py recipe class.
// Only literal values are understood; attributes computed at runtime are skipped.
func ParseConanfilePy(content []byte) (*Manifest, error) {
	className, attrs, err := extractClassAttributes(string(content))
	if err != nil {
		return nil, err
	}
	log.Debug(fmt.Sprintf("Reading recipe class %s with %d class attributes", className, len(attrs)))

	m := &Manifest{Format: FormatConanfilePy}
	for _, attr := range attrs {
		if !isManifestAttribute(attr.name) {
			continue
		}
		value, err := parsePyLiteral(attr.expr)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: cannot read '%s'", attr.line, attr.name)
		}
		if err = m.applyPyAttribute(attr.name, value); err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid '%s'", attr.line, attr.name)
		}
	}
	return m, nil
}

func isManifestAttribute(name string) bool {
	switch name {
	case "name", "version", "settings", "requires", "build_requires", "tool_requires", "test_requires", "generators", "default_options":
		return true
	}
	return false
}

func (m *Manifest) applyPyAttribute(name string, value pyValue) error {
	switch name {
	case "name", "version":
		text, ok := value.scalar()
		if !ok || value.kind == pyNone {
			return fmt.Errorf("expected a string, got %s", value.describe())
		}
		if name == "name" {
			m.Name = text
		} else {
			m.Version = text
		}
	case "settings":
		settings, err := pySettings(value)
		if err != nil {
			return err
		}
		m.Settings = settings
	case "requires":
		refs, err := pyReferences(value)
		if err != nil {
			return err
		}
		m.Requires = append(m.Requires, refs...)
	case "build_requires", "tool_requires", "test_requires":
		refs, err := pyReferences(value)
		if err != nil {
			return err
		}
		m.BuildRequires = append(m.BuildRequires, refs...)
	case "generators":
		generators, err := value.stringList()
		if err != nil {
			return err
		}
		m.Generators = generators
	case "default_options":
		options, err := pyOptions(value)
		if err != nil {
			return err
		}
		m.DefaultOptions = options
	}
	return nil
}

// pySettings accepts "os", ("os", "arch") or a dict whose keys are the axes.
func pySettings(value pyValue) ([]string, error) {
	if value.kind != pyDict {
		return value.stringList()
	}
	settings := make([]string, 0, len(value.keys))
	for _, key := range value.keys {
		text, _ := key.scalar()
		settings = append(settings, text)
	}
	return settings, nil
}

// pyReferences accepts a reference string, a sequence of them, or a sequence of
// tuples whose first element is the reference (the legacy ("ref", "private") form).
func pyReferences(value pyValue) ([]Reference, error) {
	var raw []string
	switch {
	case value.kind == pyString:
		raw = []string{value.text}
	case value.isSequence():
		for _, item := range value.items {
			if item.isSequence() && len(item.items) > 0 {
				item = item.items[0]
			}
			if item.kind != pyString {
				return nil, fmt.Errorf("expected a reference string, got %s", item.describe())
			}
			raw = append(raw, item.text)
		}
	default:
		return nil, fmt.Errorf("expected a reference string or a sequence, got %s", value.describe())
	}
	return ParseReferences(raw)
}

// pyOptions accepts a dict, or the legacy "dep:opt=value" string form alone or in a sequence.
func pyOptions(value pyValue) (Options, error) {
	var options Options
	switch {
	case value.kind == pyDict:
		for i, key := range value.keys {
			keyText, _ := key.scalar()
			valueText, ok := value.items[i].scalar()
			if !ok {
				return nil, fmt.Errorf("option '%s' must have a scalar value, got %s", keyText, value.items[i].describe())
			}
			options.Set(keyText, valueText)
		}
	case value.kind == pyString || value.isSequence():
		assignments, err := value.stringList()
		if err != nil {
			return nil, err
		}
		for _, assignment := range assignments {
			key, optionValue, found := strings.Cut(assignment, "=")
			if !found || strings.TrimSpace(key) == "" {
				return nil, fmt.Errorf("expected 'key=value', got '%s'", assignment)
			}
			options.Set(strings.TrimSpace(key), strings.TrimSpace(optionValue))
		}
	default:
		return nil, fmt.Errorf("expected a dict, got %s", value.describe())
	}
	return options, nil
}
