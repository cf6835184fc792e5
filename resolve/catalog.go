package resolve

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/geode-native/depmanifest/manifest"
	"github.com/geode-native/depmanifest/utils"
	"github.com/jfrog/gofrog/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const RecipeFileName = "recipe.yaml"

// Recipe describes one version of a package available for resolution.
type Recipe struct {
	Name        string                 `yaml:"name" json:"name"`
	Version     string                 `yaml:"version" json:"version"`
	Requires    []manifest.Reference   `yaml:"requires" json:"requires"`
	RawOptions  map[string]interface{} `yaml:"options" json:"options"`
	Libs        []string               `yaml:"libs" json:"libs"`
	IncludeDirs []string               `yaml:"include_dirs" json:"include_dirs"`
	LibDirs     []string               `yaml:"lib_dirs" json:"lib_dirs"`
	BinDirs     []string               `yaml:"bin_dirs" json:"bin_dirs"`
	Defines     []string               `yaml:"defines" json:"defines"`
	// CMakeName is the find_package name, e.g. XercesC for xerces-c. Defaults to Name.
	CMakeName string `yaml:"cmake_name" json:"cmake_name"`
	// Root is the package folder. Relative roots are resolved against the catalog location.
	Root string `yaml:"root" json:"root"`

	// Options holds the declared option defaults, sorted by name.
	Options manifest.Options `yaml:"-" json:"-"`
	// File is the recipe file the entry was read from, empty for entries of a catalog file.
	File string `yaml:"-" json:"-"`
	// entry is the canonical YAML form of a catalog file entry.
	entry []byte
}

func (r *Recipe) Reference() manifest.Reference {
	return manifest.Reference{Name: r.Name, Version: r.Version}
}

func (r *Recipe) FindPackageName() string {
	if r.CMakeName != "" {
		return r.CMakeName
	}
	return r.Name
}

func (r *Recipe) HasOption(name string) bool {
	_, exists := r.Options.Get(name)
	return exists
}

// ChecksumFile returns the file identifying the package contents: a package archive,
// conanmanifest.txt or conanfile.py under Root, falling back to the recipe file.
func (r *Recipe) ChecksumFile() string {
	if r.Root != "" {
		for _, pattern := range []string{"*.tgz", "*.tar.gz", "*.zip"} {
			matches, err := filepath.Glob(filepath.Join(r.Root, pattern))
			if err == nil && len(matches) > 0 {
				return matches[0]
			}
		}
		for _, name := range []string{"conanmanifest.txt", "conanfile.py"} {
			candidate := filepath.Join(r.Root, name)
			if exists, _ := utils.IsFileExists(candidate, true); exists {
				return candidate
			}
		}
	}
	return r.File
}

// CalcChecksums checksums the package file, or the catalog entry itself when the recipe has no file.
// A recipe with neither has empty checksums.
func (r *Recipe) CalcChecksums() (utils.Checksums, error) {
	if path := r.ChecksumFile(); path != "" {
		return utils.GetFileChecksums(path)
	}
	if len(r.entry) > 0 {
		return utils.CalcChecksums(bytes.NewReader(r.entry))
	}
	return utils.Checksums{}, nil
}

// HasChecksumSource reports whether CalcChecksums has anything to read.
func (r *Recipe) HasChecksumSource() bool {
	return len(r.entry) > 0 || r.ChecksumFile() != ""
}

// normalize fills defaults. A relative Root is resolved against baseDir, a missing one defaults to defaultRoot
// or, when that is empty, to <baseDir>/<name>/<version>.
func (r *Recipe) normalize(baseDir, defaultRoot string) error {
	if r.Name == "" || r.Version == "" {
		return errors.New("recipe must have a name and a version")
	}
	r.Options = nil
	for name, value := range r.RawOptions {
		r.Options.Set(name, manifest.FormatOptionValue(value))
	}
	sort.Slice(r.Options, func(i, j int) bool { return r.Options[i].Key < r.Options[j].Key })
	if len(r.IncludeDirs) == 0 {
		r.IncludeDirs = []string{"include"}
	}
	if len(r.LibDirs) == 0 {
		r.LibDirs = []string{"lib"}
	}
	if len(r.BinDirs) == 0 {
		r.BinDirs = []string{"bin"}
	}
	switch {
	case r.Root == "" && defaultRoot != "":
		r.Root = defaultRoot
	case r.Root == "":
		r.Root = filepath.Join(baseDir, r.Name, r.Version)
	case !filepath.IsAbs(r.Root):
		r.Root = filepath.Join(baseDir, r.Root)
	}
	return nil
}

// Catalog holds the recipes available locally, indexed by name with versions in ascending order.
type Catalog struct {
	recipes map[string][]*Recipe
}

func NewCatalog(recipes ...*Recipe) (*Catalog, error) {
	c := &Catalog{recipes: map[string][]*Recipe{}}
	for _, recipe := range recipes {
		if err := c.Add(recipe); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add inserts a recipe. Recipes are expected to be normalized, their Options are used as is.
func (c *Catalog) Add(recipe *Recipe) error {
	if _, exists := c.Find(recipe.Name, recipe.Version); exists {
		return fmt.Errorf("duplicate recipe '%s/%s' in catalog", recipe.Name, recipe.Version)
	}
	versions := append(c.recipes[recipe.Name], recipe)
	sort.SliceStable(versions, func(i, j int) bool {
		return compareVersions(versions[i].Version, versions[j].Version) < 0
	})
	c.recipes[recipe.Name] = versions
	return nil
}

func (c *Catalog) Find(name, version string) (*Recipe, bool) {
	for _, recipe := range c.recipes[name] {
		if recipe.Version == version {
			return recipe, true
		}
	}
	return nil, false
}

func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.recipes))
	for name := range c.recipes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Versions returns the available versions of name in ascending order.
func (c *Catalog) Versions(name string) []string {
	var versions []string
	for _, recipe := range c.recipes[name] {
		versions = append(versions, recipe.Version)
	}
	return versions
}

// Select returns the recipe satisfying ref: the exact version, or the highest version
// matching a version range.
func (c *Catalog) Select(ref manifest.Reference) (*Recipe, error) {
	if !ref.IsRange() {
		if recipe, exists := c.Find(ref.Name, ref.Version); exists {
			return recipe, nil
		}
		return nil, &MissingPackageError{Ref: ref, Available: c.Versions(ref.Name)}
	}
	constraint, err := ref.Constraint()
	if err != nil {
		return nil, err
	}
	versions := c.recipes[ref.Name]
	for i := len(versions) - 1; i >= 0; i-- {
		version, err := semver.NewVersion(versions[i].Version)
		if err != nil {
			continue
		}
		if constraint.Check(version) {
			return versions[i], nil
		}
	}
	return nil, &MissingPackageError{Ref: ref, Available: c.Versions(ref.Name)}
}

// compareVersions orders semantic versions by precedence and anything else lexically.
func compareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	}
	return strings.Compare(a, b)
}

type catalogDocument struct {
	Recipes []*Recipe `yaml:"recipes" json:"recipes"`
}

// LoadCatalog reads a catalog file (YAML or JSON), or scans a directory of <name>/<version>/recipe.yaml entries.
func LoadCatalog(path string) (*Catalog, error) {
	isDir, err := utils.IsDirExists(path, true)
	if err != nil {
		return nil, err
	}
	var catalog *Catalog
	if isDir {
		catalog, err = loadCatalogDir(path)
	} else {
		catalog, err = loadCatalogFile(path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load catalog '%s'", path)
	}
	log.Debug(fmt.Sprintf("Loaded catalog '%s' with %d packages", path, len(catalog.recipes)))
	return catalog, nil
}

func loadCatalogFile(path string) (*Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc catalogDocument
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(content, &doc)
	} else {
		err = yaml.Unmarshal(content, &doc)
	}
	if err != nil {
		return nil, err
	}
	baseDir := filepath.Dir(path)
	for i, recipe := range doc.Recipes {
		// Entries share one file, each is identified by its own serialized form.
		if recipe.entry, err = yaml.Marshal(recipe); err != nil {
			return nil, errors.Wrapf(err, "recipe #%d", i+1)
		}
		if err = recipe.normalize(baseDir, ""); err != nil {
			return nil, errors.Wrapf(err, "recipe #%d", i+1)
		}
	}
	return NewCatalog(doc.Recipes...)
}

func loadCatalogDir(dir string) (*Catalog, error) {
	recipeFiles, err := filepath.Glob(filepath.Join(dir, "*", "*", RecipeFileName))
	if err != nil {
		return nil, err
	}
	catalog, _ := NewCatalog()
	for _, recipeFile := range recipeFiles {
		recipe, err := loadRecipeFile(recipeFile)
		if err != nil {
			return nil, err
		}
		if err = catalog.Add(recipe); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// loadRecipeFile reads <name>/<version>/recipe.yaml. Name and version default to the directory names.
func loadRecipeFile(recipeFile string) (*Recipe, error) {
	content, err := os.ReadFile(recipeFile)
	if err != nil {
		return nil, err
	}
	recipe := new(Recipe)
	if err = yaml.Unmarshal(content, recipe); err != nil {
		return nil, errors.Wrapf(err, "failed to parse '%s'", recipeFile)
	}
	versionDir := filepath.Dir(recipeFile)
	name, version := filepath.Base(filepath.Dir(versionDir)), filepath.Base(versionDir)
	if recipe.Name == "" {
		recipe.Name = name
	}
	if recipe.Version == "" {
		recipe.Version = version
	}
	if recipe.Name != name || recipe.Version != version {
		return nil, fmt.Errorf("'%s' declares %s/%s but is stored as %s/%s", recipeFile, recipe.Name, recipe.Version, name, version)
	}
	recipe.File = recipeFile
	if err = recipe.normalize(versionDir, versionDir); err != nil {
		return nil, errors.Wrap(err, recipeFile)
	}
	return recipe, nil
}
