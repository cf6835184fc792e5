package manifest

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// documentManifest is the shared shape of the TOML and YAML renditions.
type documentManifest struct {
	Name          string   `toml:"name" yaml:"name"`
	Version       string   `toml:"version" yaml:"version"`
	Settings      []string `toml:"settings" yaml:"settings"`
	Requires      []string `toml:"requires" yaml:"requires"`
	BuildRequires []string `toml:"build_requires" yaml:"build_requires"`
	ToolRequires  []string `toml:"tool_requires" yaml:"tool_requires"`
	Generators    []string `toml:"generators" yaml:"generators"`
}

func (doc *documentManifest) toManifest(format Format) (*Manifest, error) {
	m := &Manifest{
		Name:       doc.Name,
		Version:    doc.Version,
		Settings:   doc.Settings,
		Generators: doc.Generators,
		Format:     format,
	}
	var err error
	if m.Requires, err = ParseReferences(doc.Requires); err != nil {
		return nil, errors.Wrap(err, "requires")
	}
	if m.BuildRequires, err = ParseReferences(append(doc.BuildRequires, doc.ToolRequires...)); err != nil {
		return nil, errors.Wrap(err, "build_requires")
	}
	return m, nil
}

// ParseTOML reads a TOML manifest. default_options is a table whose key order is kept.
func ParseTOML(content []byte) (*Manifest, error) {
	var doc struct {
		documentManifest
		DefaultOptions map[string]interface{} `toml:"default_options"`
	}
	metadata, err := toml.Decode(string(content), &doc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse TOML manifest")
	}
	m, err := doc.documentManifest.toManifest(FormatTOML)
	if err != nil {
		return nil, err
	}
	for _, key := range metadata.Keys() {
		if len(key) == 2 && key[0] == "default_options" {
			m.DefaultOptions.Set(key[1], FormatOptionValue(doc.DefaultOptions[key[1]]))
		}
	}
	return m, nil
}

// ParseYAML reads a YAML manifest. default_options is decoded node by node to keep its order.
func ParseYAML(content []byte) (*Manifest, error) {
	var doc struct {
		documentManifest `yaml:",inline"`
		DefaultOptions   yaml.Node `yaml:"default_options"`
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, errors.New("YAML manifest is empty")
	}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML manifest")
	}
	m, err := doc.documentManifest.toManifest(FormatYAML)
	if err != nil {
		return nil, err
	}
	options := doc.DefaultOptions
	if options.Kind == 0 {
		return m, nil
	}
	if options.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: default_options must be a mapping", options.Line)
	}
	for i := 0; i+1 < len(options.Content); i += 2 {
		var value interface{}
		if err = options.Content[i+1].Decode(&value); err != nil {
			return nil, errors.Wrapf(err, "default_options '%s'", options.Content[i].Value)
		}
		m.DefaultOptions.Set(options.Content[i].Value, FormatOptionValue(value))
	}
	return m, nil
}

// ParseJSON reads a JSON manifest, walking the document so default_options keeps its order.
func ParseJSON(content []byte) (*Manifest, error) {
	m := &Manifest{Format: FormatJSON}
	var rawRequires, rawBuildRequires []string
	err := jsonparser.ObjectEach(content, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) (err error) {
		switch string(key) {
		case "name":
			m.Name, err = jsonString(value, dataType)
		case "version":
			m.Version, err = jsonString(value, dataType)
		case "settings":
			m.Settings, err = jsonStrings(value, dataType)
		case "requires":
			rawRequires, err = jsonStrings(value, dataType)
		case "build_requires", "tool_requires":
			var refs []string
			refs, err = jsonStrings(value, dataType)
			rawBuildRequires = append(rawBuildRequires, refs...)
		case "generators":
			m.Generators, err = jsonStrings(value, dataType)
		case "default_options":
			m.DefaultOptions, err = jsonOptions(value, dataType)
		}
		if err != nil {
			return errors.Wrapf(err, "field '%s'", string(key))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse JSON manifest")
	}
	if m.Requires, err = ParseReferences(rawRequires); err != nil {
		return nil, errors.Wrap(err, "requires")
	}
	if m.BuildRequires, err = ParseReferences(rawBuildRequires); err != nil {
		return nil, errors.Wrap(err, "build_requires")
	}
	return m, nil
}

func jsonString(value []byte, dataType jsonparser.ValueType) (string, error) {
	if dataType != jsonparser.String {
		return "", fmt.Errorf("expected a string, got %s", dataType)
	}
	return jsonparser.ParseString(value)
}

func jsonStrings(value []byte, dataType jsonparser.ValueType) ([]string, error) {
	if dataType == jsonparser.Null {
		return nil, nil
	}
	if dataType != jsonparser.Array {
		return nil, fmt.Errorf("expected an array, got %s", dataType)
	}
	result := []string{}
	var itemErr error
	_, err := jsonparser.ArrayEach(value, func(item []byte, itemType jsonparser.ValueType, _ int, _ error) {
		if itemErr != nil {
			return
		}
		var text string
		text, itemErr = jsonString(item, itemType)
		result = append(result, text)
	})
	if err == nil {
		err = itemErr
	}
	return result, err
}

func jsonOptions(value []byte, dataType jsonparser.ValueType) (Options, error) {
	if dataType == jsonparser.Null {
		return nil, nil
	}
	if dataType != jsonparser.Object {
		return nil, fmt.Errorf("expected an object, got %s", dataType)
	}
	var options Options
	err := jsonparser.ObjectEach(value, func(key []byte, optionValue []byte, optionType jsonparser.ValueType, _ int) error {
		name, err := jsonparser.ParseString(key)
		if err != nil {
			return err
		}
		switch optionType {
		case jsonparser.String:
			text, err := jsonparser.ParseString(optionValue)
			if err != nil {
				return err
			}
			options.Set(name, text)
		case jsonparser.Boolean:
			b, err := jsonparser.ParseBoolean(optionValue)
			if err != nil {
				return err
			}
			options.Set(name, FormatOptionValue(b))
		case jsonparser.Number:
			options.Set(name, string(optionValue))
		case jsonparser.Null:
			options.Set(name, FormatOptionValue(nil))
		default:
			return fmt.Errorf("option '%s' must be a scalar, got %s", name, optionType)
		}
		return nil
	})
	return options, err
}
