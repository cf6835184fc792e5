package collect

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/geode-native/depmanifest/entities"
	"github.com/geode-native/depmanifest/utils"
	"github.com/jfrog/gofrog/log"
)

const (
	cacheLatestVersion = 1
	CacheDirName       = ".depmanifest"
	CacheFileName      = "deps.cache.json"
)

// DependenciesCache keeps dependency checksums between runs, keyed by dependency id.
type DependenciesCache struct {
	Version     int                            `json:"version,omitempty"`
	DepsMap     map[string]entities.Dependency `json:"dependencies,omitempty"`
	LastUpdated time.Time                      `json:"lastUpdated,omitempty"`
	ProjectPath string                         `json:"projectPath,omitempty"`
}

func CacheFilePath(projectPath string) string {
	return filepath.Join(projectPath, CacheDirName, CacheFileName)
}

// GetDependenciesCache reads the cache of the project. A missing cache is not an error, nil is returned.
func GetDependenciesCache(projectPath string) (*DependenciesCache, error) {
	cacheFilePath := CacheFilePath(projectPath)
	exists, err := utils.IsFileExists(cacheFilePath, true)
	if err != nil {
		return nil, err
	}
	if !exists {
		log.Debug("Dependencies cache not found: " + cacheFilePath)
		return nil, nil
	}
	cache := new(DependenciesCache)
	if err = utils.Unmarshal(cacheFilePath, cache); err != nil {
		return nil, fmt.Errorf("failed to parse cache file: %w", err)
	}
	log.Debug(fmt.Sprintf("Loaded dependencies cache with %d entries", len(cache.DepsMap)))
	return cache, nil
}

// UpdateDependenciesCache replaces the project's cache with dependenciesMap.
func UpdateDependenciesCache(dependenciesMap map[string]entities.Dependency, projectPath string) error {
	updatedCache := DependenciesCache{
		Version:     cacheLatestVersion,
		DepsMap:     dependenciesMap,
		LastUpdated: time.Now(),
		ProjectPath: projectPath,
	}
	content, err := json.MarshalIndent(&updatedCache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}
	cacheFilePath := CacheFilePath(projectPath)
	if err = utils.CreateDirIfNotExist(filepath.Dir(cacheFilePath)); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err = utils.WriteFileAtomic(cacheFilePath, content); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	log.Debug(fmt.Sprintf("Saved %d dependencies to %s", len(dependenciesMap), cacheFilePath))
	return nil
}

func (cache *DependenciesCache) GetDependency(dependencyId string) (entities.Dependency, bool) {
	if cache == nil || cache.DepsMap == nil {
		return entities.Dependency{}, false
	}
	dependency, found := cache.DepsMap[dependencyId]
	return dependency, found
}

// IsValid reports whether the cache has the current version and is not older than maxAge. A zero maxAge never expires.
func (cache *DependenciesCache) IsValid(maxAge time.Duration) bool {
	if cache == nil {
		return false
	}
	if cache.Version != cacheLatestVersion {
		log.Debug(fmt.Sprintf("Cache version mismatch: expected %d, got %d", cacheLatestVersion, cache.Version))
		return false
	}
	if maxAge > 0 && time.Since(cache.LastUpdated) > maxAge {
		log.Debug(fmt.Sprintf("Cache expired: last updated %v ago", time.Since(cache.LastUpdated)))
		return false
	}
	return true
}
