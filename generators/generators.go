package generators

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/geode-native/depmanifest/resolve"
	"github.com/geode-native/depmanifest/utils"
	"github.com/jfrog/gofrog/log"
	"github.com/pkg/errors"
)

// File is a generated file, Name is relative to the output folder.
type File struct {
	Name    string
	Content []byte
}

// Generator turns a resolved graph into build-system integration files.
type Generator interface {
	Name() string
	Generate(graph *resolve.Graph) ([]File, error)
}

var registry = map[string]Generator{}

func register(generator Generator) {
	registry[generator.Name()] = generator
}

func init() {
	register(&CMakeFindPackageMulti{})
	register(&CMakeFindPackage{})
	register(&CMakePaths{})
	register(&JSON{})
}

func Get(name string) (Generator, error) {
	generator, exists := registry[name]
	if !exists {
		return nil, fmt.Errorf("unknown generator '%s', supported generators are %s", name, strings.Join(Names(), ", "))
	}
	return generator, nil
}

// Names returns the registered generator names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Write stores files under dir, replacing existing files atomically.
func Write(dir string, files []File) ([]string, error) {
	if err := utils.CreateDirIfNotExist(dir); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(files))
	for _, file := range files {
		path := filepath.Join(dir, file.Name)
		if err := utils.WriteFileAtomic(path, file.Content); err != nil {
			return nil, errors.Wrapf(err, "failed to write '%s'", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Run generates the files of every named generator and writes them under dir.
func Run(dir string, graph *resolve.Graph, names []string) ([]string, error) {
	var written []string
	for _, name := range names {
		generator, err := Get(name)
		if err != nil {
			return nil, err
		}
		files, err := generator.Generate(graph)
		if err != nil {
			return nil, errors.Wrapf(err, "generator '%s'", name)
		}
		paths, err := Write(dir, files)
		if err != nil {
			return nil, err
		}
		log.Info(fmt.Sprintf("Generator %s created %d files", name, len(paths)))
		written = append(written, paths...)
	}
	return written, nil
}
