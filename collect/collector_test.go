package collect

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/geode-native/depmanifest/entities"
	"github.com/geode-native/depmanifest/lockfile"
	"github.com/geode-native/depmanifest/manifest"
	"github.com/geode-native/depmanifest/profile"
	"github.com/geode-native/depmanifest/resolve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadVariant1(t *testing.T) *manifest.Manifest {
	m, err := manifest.Load(filepath.Join("..", "manifest", "testdata", "variant1"))
	require.NoError(t, err)
	return m
}

func resolveVariant1(t *testing.T) (*manifest.Manifest, *profile.Configuration, *resolve.Graph) {
	m := loadVariant1(t)
	p := profile.New("linux")
	p.Settings = map[string]string{"os": "Linux", "arch": "x86_64", "compiler": "gcc", "build_type": "Release"}
	p.Env = map[string]string{"CXXFLAGS": "-O2"}
	cfg, err := profile.Bind(m, p)
	require.NoError(t, err)
	catalog, err := resolve.LoadCatalog(filepath.Join("..", "resolve", "testdata", "catalog.yaml"))
	require.NoError(t, err)
	graph, err := resolve.NewResolver(catalog).Resolve(context.Background(), m, cfg)
	require.NoError(t, err)
	return m, cfg, graph
}

func newNode(target resolve.Context, ref string) *resolve.Node {
	parsed := manifest.MustParseReference(ref)
	return &resolve.Node{ID: resolve.NodeID(target, parsed), Ref: parsed, Context: target}
}

// bothContextsGraph has zlib required by the project and by the cmake tool.
func bothContextsGraph() *resolve.Graph {
	graph := resolve.NewGraph(&resolve.Node{ID: resolve.RootID, Ref: manifest.Reference{Name: "app", Version: "1.0"}})
	hostZlib := newNode(resolve.ContextHost, "zlib/1.2.11")
	cmake := newNode(resolve.ContextBuild, "cmake/3.21.3")
	buildZlib := newNode(resolve.ContextBuild, "zlib/1.2.11")
	for _, node := range []*resolve.Node{hostZlib, cmake, buildZlib} {
		graph.AddNode(node)
	}
	graph.AddEdge(resolve.RootID, hostZlib.ID)
	graph.AddEdge(resolve.RootID, cmake.ID)
	graph.AddEdge(cmake.ID, buildZlib.ID)
	return graph
}

func findDependency(t *testing.T, dependencies []entities.Dependency, id string) entities.Dependency {
	for _, dependency := range dependencies {
		if dependency.Id == id {
			return dependency
		}
	}
	require.Failf(t, "dependency not found", "no dependency %s", id)
	return entities.Dependency{}
}

func TestCollectBuildInfo(t *testing.T) {
	m, cfg, graph := resolveVariant1(t)
	collector := NewCollector(m, graph)
	collector.SetConfiguration(cfg)
	collector.SetWorkingDirectory(t.TempDir())
	collector.SetUseCache(false)
	collector.SetAgent("depmanifest", "1.2.0")

	buildInfo, err := collector.CollectBuildInfo("geode-native", "42")
	require.NoError(t, err)
	assert.Equal(t, "geode-native", buildInfo.Name)
	assert.Equal(t, "42", buildInfo.Number)
	assert.Equal(t, &entities.Agent{Name: "depmanifest", Version: "1.2.0"}, buildInfo.Agent)
	assert.NotEmpty(t, buildInfo.Started)
	assert.Equal(t, "-O2", buildInfo.Properties[entities.BuildInfoEnvPrefix+"CXXFLAGS"])

	require.Len(t, buildInfo.Modules, 1)
	module := buildInfo.Modules[0]
	assert.Equal(t, "variant1", module.Id)
	assert.Equal(t, entities.Conan, module.Type)
	assert.Equal(t, "Linux", module.Properties["settings.os"])
	assert.Equal(t, "True", module.Properties["options.boost:without_test"])

	match, err := entities.IsEqualDependencySlices(module.Dependencies, []entities.Dependency{
		{Id: "boost:1.73.0", Type: DependencyType, Scopes: []string{entities.ScopeRuntime}, RequestedBy: [][]string{{"variant1"}}},
		{Id: "xerces-c:3.2.3", Type: DependencyType, Scopes: []string{entities.ScopeRuntime}, RequestedBy: [][]string{{"variant1"}}},
		{Id: "zlib:1.2.11", Type: DependencyType, Scopes: []string{entities.ScopeRuntime}, RequestedBy: [][]string{{"boost:1.73.0", "variant1"}}},
		{Id: "bzip2:1.0.8", Type: DependencyType, Scopes: []string{entities.ScopeRuntime}, RequestedBy: [][]string{{"boost:1.73.0", "variant1"}}},
		{Id: "gtest:1.10.0", Type: DependencyType, Scopes: []string{entities.ScopeBuild}, RequestedBy: [][]string{{"variant1"}}},
		{Id: "benchmark:1.5.0", Type: DependencyType, Scopes: []string{entities.ScopeBuild}, RequestedBy: [][]string{{"variant1"}}},
		{Id: "sqlite3:3.32.3", Type: DependencyType, Scopes: []string{entities.ScopeBuild}, RequestedBy: [][]string{{"variant1"}}},
		{Id: "doxygen:1.8.17", Type: DependencyType, Scopes: []string{entities.ScopeBuild}, RequestedBy: [][]string{{"variant1"}}},
		{Id: "zlib:1.2.13", Type: DependencyType, Scopes: []string{entities.ScopeBuild}, RequestedBy: [][]string{{"doxygen:1.8.17", "variant1"}}},
	})
	require.NoError(t, err)
	assert.True(t, match)
	for _, dependency := range module.Dependencies {
		assert.NotEmpty(t, dependency.Sha1, dependency.Id)
		assert.NotEmpty(t, dependency.Sha256, dependency.Id)
	}
	assert.Equal(t, []string{entities.ScopeRuntime, entities.ScopeBuild}, CalculateScopes(module.Dependencies))
}

func TestCollectMergesContexts(t *testing.T) {
	m := &manifest.Manifest{Name: "app", Version: "1.0"}
	collector := NewCollector(m, bothContextsGraph())
	collector.SetWorkingDirectory(t.TempDir())
	collector.SetUseCache(false)

	buildInfo, err := collector.CollectBuildInfo("app", "1")
	require.NoError(t, err)
	module := buildInfo.Modules[0]
	assert.Equal(t, "app:1.0", module.Id)
	require.Len(t, module.Dependencies, 2)
	zlib := findDependency(t, module.Dependencies, "zlib:1.2.11")
	assert.Equal(t, []string{entities.ScopeRuntime, entities.ScopeBuild}, zlib.Scopes)
	assert.Equal(t, [][]string{{"app:1.0"}, {"cmake:3.21.3", "app:1.0"}}, zlib.RequestedBy)
	assert.True(t, zlib.Checksum.IsEmpty())
	assert.Nil(t, module.Properties)
}

func TestCollectUsesCache(t *testing.T) {
	workDir := t.TempDir()
	cached := entities.Checksum{Sha1: "a1", Md5: "m5", Sha256: "s256"}
	require.NoError(t, UpdateDependenciesCache(map[string]entities.Dependency{"cmake:3.21.3": {Id: "cmake:3.21.3", Checksum: cached}}, workDir))

	collector := NewCollector(&manifest.Manifest{Name: "app", Version: "1.0"}, bothContextsGraph())
	collector.SetWorkingDirectory(workDir)
	buildInfo, err := collector.CollectBuildInfo("app", "1")
	require.NoError(t, err)
	assert.Equal(t, cached, findDependency(t, buildInfo.Modules[0].Dependencies, "cmake:3.21.3").Checksum)

	// An expired cache is ignored.
	collector.SetCacheMaxAge(time.Nanosecond)
	time.Sleep(time.Millisecond)
	buildInfo, err = collector.CollectBuildInfo("app", "2")
	require.NoError(t, err)
	cmake := findDependency(t, buildInfo.Modules[0].Dependencies, "cmake:3.21.3")
	assert.True(t, cmake.Checksum.IsEmpty())
}

func TestCollectSavesCache(t *testing.T) {
	m, _, graph := resolveVariant1(t)
	workDir := t.TempDir()
	collector := NewCollector(m, graph)
	collector.SetWorkingDirectory(workDir)
	_, err := collector.CollectBuildInfo("geode-native", "1")
	require.NoError(t, err)

	cache, err := GetDependenciesCache(workDir)
	require.NoError(t, err)
	require.NotNil(t, cache)
	assert.True(t, cache.IsValid(time.Hour))
	assert.Len(t, cache.DepsMap, len(graph.Nodes))
	boost, found := cache.GetDependency("boost:1.73.0")
	assert.True(t, found)
	assert.Equal(t, graph.Node("boost").Checksums.Sha1, boost.Sha1)
}

func TestLockfileCollector(t *testing.T) {
	m, _, graph := resolveVariant1(t)
	collector, err := NewLockfileCollector(m, lockfile.FromGraph(graph))
	require.NoError(t, err)
	collector.SetWorkingDirectory(t.TempDir())
	collector.SetUseCache(false)

	buildInfo, err := collector.CollectBuildInfo("geode-native", "1")
	require.NoError(t, err)
	dependencies := buildInfo.Modules[0].Dependencies
	assert.Len(t, dependencies, len(graph.Nodes))
	assert.Equal(t, [][]string{{"boost:1.73.0", "variant1"}}, findDependency(t, dependencies, "zlib:1.2.11").RequestedBy)
	// Packages with a locked path are checksummed from their package files.
	doxygen := findDependency(t, dependencies, "doxygen:1.8.17")
	assert.Equal(t, graph.NodeIn(resolve.ContextBuild, "doxygen").Checksums.Sha1, doxygen.Sha1)
}

func TestCollectArtifacts(t *testing.T) {
	workDir := t.TempDir()
	generated := filepath.Join(workDir, "build", "BoostConfig.cmake")
	require.NoError(t, os.MkdirAll(filepath.Dir(generated), 0755))
	require.NoError(t, os.WriteFile(generated, []byte("set(Boost_FOUND TRUE)\n"), 0644))

	collector := NewCollector(&manifest.Manifest{Name: "app", Version: "1.0"}, bothContextsGraph())
	collector.SetWorkingDirectory(workDir)
	collector.SetUseCache(false)
	collector.SetArtifacts(generated)
	buildInfo, err := collector.CollectBuildInfo("app", "1")
	require.NoError(t, err)

	artifacts := buildInfo.Modules[0].Artifacts
	require.Len(t, artifacts, 1)
	assert.Equal(t, "BoostConfig.cmake", artifacts[0].Name)
	assert.Equal(t, "cmake", artifacts[0].Type)
	assert.Equal(t, "build/BoostConfig.cmake", artifacts[0].Path)
	assert.Len(t, artifacts[0].Sha1, 40)

	collector.SetArtifacts(filepath.Join(workDir, "missing.cmake"))
	_, err = collector.CollectBuildInfo("app", "1")
	assert.Error(t, err)
}

func TestCycloneDxFromCollectedBuildInfo(t *testing.T) {
	collector := NewCollector(&manifest.Manifest{Name: "app", Version: "1.0"}, bothContextsGraph())
	collector.SetWorkingDirectory(t.TempDir())
	collector.SetUseCache(false)
	buildInfo, err := collector.CollectBuildInfo("app", "1")
	require.NoError(t, err)

	bom, err := buildInfo.ToCycloneDxBom()
	require.NoError(t, err)
	var refs []string
	for _, component := range *bom.Components {
		refs = append(refs, component.BOMRef)
	}
	assert.Equal(t, []string{"app:1.0", "cmake:3.21.3", "zlib:1.2.11"}, refs)
}
