// Package collect turns a resolved dependency graph into build-info.
package collect

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/geode-native/depmanifest/entities"
	"github.com/geode-native/depmanifest/lockfile"
	"github.com/geode-native/depmanifest/manifest"
	"github.com/geode-native/depmanifest/profile"
	"github.com/geode-native/depmanifest/resolve"
	"github.com/geode-native/depmanifest/utils"
	"github.com/jfrog/gofrog/log"
)

const (
	DefaultAgentName   = "depmanifest"
	DependencyType     = "conan"
	DefaultCacheMaxAge = 24 * time.Hour
)

// Collector builds the build-info of one manifest from its resolved graph.
type Collector struct {
	manifest     *manifest.Manifest
	graph        *resolve.Graph
	config       *profile.Configuration
	workDir      string
	artifacts    []string
	useCache     bool
	cacheMaxAge  time.Duration
	agentName    string
	agentVersion string
	logger       utils.Log
}

func NewCollector(m *manifest.Manifest, graph *resolve.Graph) *Collector {
	workDir := "."
	if m.Path != "" {
		workDir = filepath.Dir(m.Path)
	}
	return &Collector{
		manifest:    m,
		graph:       graph,
		workDir:     workDir,
		useCache:    true,
		cacheMaxAge: DefaultCacheMaxAge,
		agentName:   DefaultAgentName,
		logger:      &utils.NullLog{},
	}
}

// NewLockfileCollector collects from a lockfile instead of a fresh resolution.
func NewLockfileCollector(m *manifest.Manifest, lock *lockfile.Lockfile) (*Collector, error) {
	graph, err := lock.ToGraph()
	if err != nil {
		return nil, fmt.Errorf("failed to read the locked graph: %w", err)
	}
	return NewCollector(m, graph), nil
}

// SetConfiguration adds the bound profile: its options become module properties and its env build properties.
func (c *Collector) SetConfiguration(cfg *profile.Configuration) {
	c.config = cfg
}

func (c *Collector) SetWorkingDirectory(workDir string) {
	c.workDir = workDir
}

// SetArtifacts records files produced for the module, such as generator output.
func (c *Collector) SetArtifacts(paths ...string) {
	c.artifacts = paths
}

func (c *Collector) SetUseCache(useCache bool) {
	c.useCache = useCache
}

func (c *Collector) SetCacheMaxAge(maxAge time.Duration) {
	c.cacheMaxAge = maxAge
}

func (c *Collector) SetAgent(name, version string) {
	c.agentName = name
	c.agentVersion = version
}

func (c *Collector) SetLogger(logger utils.Log) {
	c.logger = logger
}

func (c *Collector) CollectBuildInfo(buildName, buildNumber string) (*entities.BuildInfo, error) {
	dependencies, err := c.buildDependencyEntities()
	if err != nil {
		return nil, err
	}
	artifacts, err := c.buildArtifactEntities()
	if err != nil {
		return nil, err
	}

	buildInfo := entities.New()
	buildInfo.Name = buildName
	buildInfo.Number = buildNumber
	buildInfo.SetStarted(time.Now())
	buildInfo.SetAgentName(c.agentName)
	buildInfo.SetAgentVersion(c.agentVersion)
	buildInfo.SetBuildAgentVersion(c.agentVersion)
	buildInfo.Modules = append(buildInfo.Modules, entities.Module{
		Id:           c.moduleId(),
		Type:         entities.Conan,
		Properties:   c.moduleProperties(),
		Artifacts:    artifacts,
		Dependencies: dependencies,
	})
	if c.config != nil {
		buildInfo.SetEnv(c.config.Env)
	}
	if vcs := collectVcsInfo(c.workDir); vcs != nil {
		buildInfo.VcsList = append(buildInfo.VcsList, *vcs)
	}
	c.logger.Info(fmt.Sprintf("Collected build-info for %s with %d dependencies (scopes: %s)",
		c.moduleId(), len(dependencies), strings.Join(CalculateScopes(dependencies), ", ")))
	return buildInfo, nil
}

// moduleId is name:version of the project, or the bare name when it has no version.
func (c *Collector) moduleId() string {
	root := c.graph.Root.Ref
	if root.User != "" && root.Channel != "" {
		return fmt.Sprintf("%s/%s@%s/%s", root.Name, root.Version, root.User, root.Channel)
	}
	return root.Key()
}

func (c *Collector) moduleProperties() map[string]string {
	properties := map[string]string{}
	for key, value := range c.graph.Root.Settings {
		properties["settings."+key] = value
	}
	options := c.manifest.DefaultOptions
	if c.config != nil {
		options = c.config.Options
	}
	for _, option := range options {
		properties["options."+option.Key] = option.Value
	}
	if len(properties) == 0 {
		return nil
	}
	return properties
}

// buildDependencyEntities returns one dependency per name:version in resolution order.
// A package used in both contexts gets both scopes.
func (c *Collector) buildDependencyEntities() ([]entities.Dependency, error) {
	requestedBy, err := c.requestedByPaths()
	if err != nil {
		return nil, err
	}
	cache := c.loadCache()

	var dependencies []entities.Dependency
	indexes := map[string]int{}
	for _, node := range c.graph.Nodes {
		scope := scopeOf(node)
		if i, exists := indexes[node.Key()]; exists {
			if !dependencies[i].HasScope(scope) {
				dependencies[i].Scopes = append(dependencies[i].Scopes, scope)
			}
			dependencies[i].RequestedBy = appendUniquePaths(dependencies[i].RequestedBy, requestedBy[node.ID])
			continue
		}
		indexes[node.Key()] = len(dependencies)
		dependencies = append(dependencies, entities.Dependency{
			Id:          node.Key(),
			Type:        DependencyType,
			Scopes:      []string{scope},
			RequestedBy: requestedBy[node.ID],
			Checksum:    c.checksumOf(node, cache),
		})
	}
	c.saveCache(dependencies)
	return dependencies, nil
}

// requestedByPaths builds, per node id, every path from the node's parent up to the module.
// Dependents are visited before their dependencies so parent paths are complete when used.
func (c *Collector) requestedByPaths() (map[string][][]string, error) {
	order, err := c.graph.TopoOrder()
	if err != nil {
		return nil, err
	}
	rootId := c.moduleId()
	paths := map[string][][]string{}
	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		dependency := entities.Dependency{Id: node.Key()}
		for _, parentId := range c.graph.RequestedBy(node.ID) {
			if parentId == resolve.RootID {
				dependency.UpdateRequestedBy(rootId, [][]string{{}})
				continue
			}
			dependency.UpdateRequestedBy(c.graph.Get(parentId).Key(), paths[parentId])
		}
		for j, path := range dependency.RequestedBy {
			if len(path) > entities.RequestedByMaxLength {
				dependency.RequestedBy[j] = path[:entities.RequestedByMaxLength]
			}
		}
		paths[node.ID] = dependency.RequestedBy
	}
	return paths, nil
}

func scopeOf(node *resolve.Node) string {
	if node.Context == resolve.ContextBuild {
		return entities.ScopeBuild
	}
	return entities.ScopeRuntime
}

func appendUniquePaths(paths, more [][]string) [][]string {
	seen := map[string]bool{}
	for _, path := range paths {
		seen[strings.Join(path, ">")] = true
	}
	for _, path := range more {
		if key := strings.Join(path, ">"); !seen[key] {
			seen[key] = true
			paths = append(paths, path)
		}
	}
	return paths
}

// checksumOf prefers the checksums calculated during resolution, then the cache, then the package file itself.
func (c *Collector) checksumOf(node *resolve.Node, cache *DependenciesCache) entities.Checksum {
	if node.Checksums != (utils.Checksums{}) {
		return toChecksum(node.Checksums)
	}
	if cached, found := cache.GetDependency(node.Key()); found && !cached.Checksum.IsEmpty() {
		log.Debug("Using cached checksums of " + node.Key())
		return cached.Checksum
	}
	if node.Recipe == nil || !node.Recipe.HasChecksumSource() {
		return entities.Checksum{}
	}
	checksums, err := node.Recipe.CalcChecksums()
	if err != nil {
		log.Warn(fmt.Sprintf("Failed to calculate checksums of %s: %s", node.Key(), err.Error()))
		return entities.Checksum{}
	}
	return toChecksum(checksums)
}

func toChecksum(checksums utils.Checksums) entities.Checksum {
	return entities.Checksum{Sha1: checksums.Sha1, Md5: checksums.Md5, Sha256: checksums.Sha256}
}

func (c *Collector) loadCache() *DependenciesCache {
	if !c.useCache {
		return nil
	}
	cache, err := GetDependenciesCache(c.workDir)
	if err != nil {
		log.Warn("Ignoring the dependencies cache: " + err.Error())
		return nil
	}
	if !cache.IsValid(c.cacheMaxAge) {
		return nil
	}
	return cache
}

func (c *Collector) saveCache(dependencies []entities.Dependency) {
	if !c.useCache {
		return
	}
	depsMap := map[string]entities.Dependency{}
	for _, dependency := range dependencies {
		if !dependency.Checksum.IsEmpty() {
			depsMap[dependency.Id] = entities.Dependency{Id: dependency.Id, Checksum: dependency.Checksum}
		}
	}
	if len(depsMap) == 0 {
		return
	}
	if err := UpdateDependenciesCache(depsMap, c.workDir); err != nil {
		log.Warn("Failed to update the dependencies cache: " + err.Error())
	}
}

func (c *Collector) buildArtifactEntities() ([]entities.Artifact, error) {
	var artifacts []entities.Artifact
	for _, path := range c.artifacts {
		checksums, err := utils.GetFileChecksums(path)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate checksums of %s: %w", path, err)
		}
		artifactPath := path
		if rel, err := filepath.Rel(c.workDir, path); err == nil && !strings.HasPrefix(rel, "..") {
			artifactPath = filepath.ToSlash(rel)
		}
		artifacts = append(artifacts, entities.Artifact{
			Name:     filepath.Base(path),
			Type:     strings.TrimPrefix(filepath.Ext(path), "."),
			Path:     artifactPath,
			Checksum: toChecksum(checksums),
		})
	}
	return artifacts, nil
}

// CalculateScopes returns the scopes used by dependencies, runtime first.
func CalculateScopes(dependencies []entities.Dependency) []string {
	var scopes []string
	for _, scope := range []string{entities.ScopeRuntime, entities.ScopeBuild} {
		for _, dependency := range dependencies {
			if dependency.HasScope(scope) {
				scopes = append(scopes, scope)
				break
			}
		}
	}
	return scopes
}
