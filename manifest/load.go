package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/geode-native/depmanifest/utils"
	"github.com/jfrog/gofrog/log"
	"github.com/pkg/errors"
)

// ManifestFileNames lists the files looked up in a project directory, in priority order.
var ManifestFileNames = []string{
	"conanfile.py",
	"conanfile.txt",
	"depmanifest.toml",
	"depmanifest.yaml",
	"depmanifest.yml",
	"depmanifest.json",
}

// Load reads a manifest from a file, or from the first known manifest file in a directory.
func Load(path string) (*Manifest, error) {
	isDir, err := utils.IsDirExists(path, true)
	if err != nil {
		return nil, err
	}
	manifestPath := path
	if isDir {
		if manifestPath, err = FindManifestFile(path); err != nil {
			return nil, err
		}
	}
	format, err := DetectFormat(manifestPath)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read manifest")
	}
	m, err := Parse(content, format)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load '%s'", manifestPath)
	}
	m.Path = manifestPath
	if m.Name == "" {
		absPath, err := filepath.Abs(manifestPath)
		if err != nil {
			return nil, err
		}
		m.Name = filepath.Base(filepath.Dir(absPath))
	}
	log.Debug(fmt.Sprintf("Loaded %s manifest '%s' with %d requires and %d build requires", m.Format, manifestPath, len(m.Requires), len(m.BuildRequires)))
	return m, nil
}

// FindManifestFile returns the path of the highest priority manifest file in dir.
func FindManifestFile(dir string) (string, error) {
	for _, name := range ManifestFileNames {
		candidate := filepath.Join(dir, name)
		exists, err := utils.IsFileExists(candidate, true)
		if err != nil {
			return "", err
		}
		if exists {
			return candidate, nil
		}
	}
	return "", &utils.ErrManifestNotFound{Dir: dir}
}

// DetectFormat derives the manifest format from the file name.
func DetectFormat(path string) (Format, error) {
	base := strings.ToLower(filepath.Base(path))
	switch filepath.Ext(base) {
	case ".py":
		return FormatConanfilePy, nil
	case ".txt":
		return FormatConanfileTxt, nil
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", &utils.ErrUnsupportedFormat{Path: path}
}

// Parse decodes content in the given format.
func Parse(content []byte, format Format) (*Manifest, error) {
	switch format {
	case FormatConanfilePy:
		return ParseConanfilePy(content)
	case FormatConanfileTxt:
		return ParseConanfileTxt(content)
	case FormatTOML:
		return ParseTOML(content)
	case FormatYAML:
		return ParseYAML(content)
	case FormatJSON:
		return ParseJSON(content)
	}
	return nil, fmt.Errorf("unknown manifest format '%s'", format)
}
