package collect

import (
	"os"
	"testing"
	"time"

	"github.com/geode-native/depmanifest/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDependenciesCacheMissing(t *testing.T) {
	cache, err := GetDependenciesCache(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cache)
	assert.False(t, cache.IsValid(0))
	_, found := cache.GetDependency("zlib:1.2.11")
	assert.False(t, found)
}

func TestGetDependenciesCacheCorrupt(t *testing.T) {
	workDir := t.TempDir()
	require.NoError(t, UpdateDependenciesCache(map[string]entities.Dependency{}, workDir))
	require.NoError(t, os.WriteFile(CacheFilePath(workDir), []byte("{"), 0644))
	_, err := GetDependenciesCache(workDir)
	assert.ErrorContains(t, err, "failed to parse cache file")
}

func TestCacheIsValid(t *testing.T) {
	tests := []struct {
		name     string
		cache    DependenciesCache
		maxAge   time.Duration
		expected bool
	}{
		{"fresh", DependenciesCache{Version: cacheLatestVersion, LastUpdated: time.Now()}, time.Hour, true},
		{"no max age", DependenciesCache{Version: cacheLatestVersion, LastUpdated: time.Now().Add(-48 * time.Hour)}, 0, true},
		{"expired", DependenciesCache{Version: cacheLatestVersion, LastUpdated: time.Now().Add(-2 * time.Hour)}, time.Hour, false},
		{"old version", DependenciesCache{Version: 0, LastUpdated: time.Now()}, time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cache.IsValid(tt.maxAge))
		})
	}
}
