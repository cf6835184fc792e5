package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fileContent    = "Why did the robot bring a ladder to the bar? It heard the drinks were on the house."
	expectedMd5    = "70bd6370a86813f2504020281e4a2e2e"
	expectedSha1   = "8c3578ac814c9f02803001a5d3e5d78a7fd0f9cc"
	expectedSha256 = "093d901b28a59f7d95921f3f4fb97a03fe7a1cf8670507ffb1d6f9a01b3e890a"
)

func TestGetFileChecksums(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "TestGetFileChecksums")
	require.NoError(t, os.WriteFile(filePath, []byte(fileContent), 0644))

	// Calculate only sha1 and match
	checksums, err := GetFileChecksums(filePath, SHA1)
	assert.NoError(t, err)
	assert.Empty(t, checksums.Md5)
	assert.Equal(t, expectedSha1, checksums.Sha1)
	assert.Empty(t, checksums.Sha256)

	// Calculate all checksums and match
	checksums, err = GetFileChecksums(filePath)
	assert.NoError(t, err)
	assert.Equal(t, expectedMd5, checksums.Md5)
	assert.Equal(t, expectedSha1, checksums.Sha1)
	assert.Equal(t, expectedSha256, checksums.Sha256)
}

func TestGetFileChecksumsMissingFile(t *testing.T) {
	_, err := GetFileChecksums(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestCalcChecksumsStream(t *testing.T) {
	checksums, err := CalcChecksums(strings.NewReader(fileContent), SHA256, SHA256)
	assert.NoError(t, err)
	assert.Equal(t, expectedSha256, checksums.Sha256)
	assert.Empty(t, checksums.Md5)
}

func TestCalcSha1(t *testing.T) {
	assert.Equal(t, expectedSha1, CalcSha1([]byte(fileContent)))
}
