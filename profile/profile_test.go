package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/geode-native/depmanifest/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	p, err := Load(filepath.Join("testdata", "linux-gcc"))
	require.NoError(t, err)
	assert.Equal(t, "linux-gcc", p.Name)
	assert.Equal(t, map[string]string{
		"os":               "Linux",
		"arch":             "x86_64",
		"compiler":         "gcc",
		"compiler.version": "9",
		"compiler.libcxx":  "libstdc++11",
		"build_type":       "Debug",
		"cppstd":           "17",
	}, p.Settings)
	assert.Equal(t, manifest.Options{{Key: "boost:without_test", Value: "False"}, {Key: "xerces-c:shared", Value: "True"}}, p.Options)
	assert.Equal(t, []string{"cmake/3.21.0", "ninja/1.10.2"}, manifest.ReferenceStrings(p.BuildRequires))
	assert.Equal(t, map[string]string{"CXXFLAGS": "-O2"}, p.Env)
}

func TestParseInvalidToolRequire(t *testing.T) {
	_, err := Parse([]byte("[tool_requires]\ncmake\n"))
	assert.ErrorContains(t, err, "[tool_requires]")
}

func TestFind(t *testing.T) {
	home := t.TempDir()
	t.Setenv(HomeEnv, home)

	// A missing default profile falls back to host detection.
	p, err := Find("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfileName, p.Name)
	assert.Equal(t, "Release", p.Settings["build_type"])

	_, err = Find("missing")
	assert.ErrorContains(t, err, "profile 'missing' not found")

	require.NoError(t, os.MkdirAll(filepath.Join(home, "profiles"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "profiles", "ci"), []byte("[settings]\nos=Linux\n"), 0644))
	p, err = Find("ci")
	require.NoError(t, err)
	assert.Equal(t, "ci", p.Name)
	assert.Equal(t, map[string]string{"os": "Linux"}, p.Settings)

	p, err = Find(filepath.Join("testdata", "partial"))
	require.NoError(t, err)
	assert.Equal(t, "Windows", p.Settings["os"])
}

func TestOverride(t *testing.T) {
	p, err := Load(filepath.Join("testdata", "linux-gcc"))
	require.NoError(t, err)
	require.NoError(t, p.Override(
		[]string{"build_type=Release", "compiler.version=11", "build_type=RelWithDebInfo"},
		[]string{"boost:without_test=true", "sqlite3:threadsafe=1"},
	))
	assert.Equal(t, "RelWithDebInfo", p.Settings["build_type"])
	assert.Equal(t, "11", p.Settings["compiler.version"])
	assert.Equal(t, manifest.Options{
		{Key: "boost:without_test", Value: "True"},
		{Key: "xerces-c:shared", Value: "True"},
		{Key: "sqlite3:threadsafe", Value: "1"},
	}, p.Options)

	assert.Error(t, p.Override([]string{"build_type"}, nil))
	assert.Error(t, p.Override(nil, []string{"=True"}))
}

func TestDetect(t *testing.T) {
	tests := []struct {
		goos, goarch, cc string
		expected         map[string]string
	}{
		{"linux", "amd64", "", map[string]string{"os": "Linux", "arch": "x86_64", "build_type": "Release", "compiler": "gcc", "compiler.libcxx": "libstdc++11"}},
		{"linux", "arm64", "/usr/bin/clang-14", map[string]string{"os": "Linux", "arch": "armv8", "build_type": "Release", "compiler": "clang", "compiler.libcxx": "libstdc++11"}},
		{"darwin", "arm64", "", map[string]string{"os": "Macos", "arch": "armv8", "build_type": "Release", "compiler": "apple-clang", "compiler.libcxx": "libc++"}},
		{"windows", "386", "", map[string]string{"os": "Windows", "arch": "x86", "build_type": "Release", "compiler": "msvc", "compiler.runtime": "dynamic"}},
		{"windows", "amd64", `C:\mingw\bin\gcc.exe`, map[string]string{"os": "Windows", "arch": "x86_64", "build_type": "Release", "compiler": "gcc", "compiler.libcxx": "libstdc++11"}},
		{"freebsd", "riscv64", "", map[string]string{"os": "FreeBSD", "arch": "riscv64", "build_type": "Release", "compiler": "clang", "compiler.libcxx": "libc++"}},
	}
	for _, tt := range tests {
		t.Run(tt.goos+"-"+tt.goarch, func(t *testing.T) {
			assert.Equal(t, tt.expected, detect(tt.goos, tt.goarch, tt.cc).Settings)
		})
	}
}

func TestString(t *testing.T) {
	p := New("ci")
	p.Settings["os"] = "Linux"
	p.Settings["arch"] = "x86_64"
	p.Options.Set("boost:shared", "True")
	p.BuildRequires = []manifest.Reference{manifest.MustParseReference("cmake/3.21.0")}
	assert.Equal(t, "[settings]\narch=x86_64\nos=Linux\n[options]\nboost:shared=True\n[tool_requires]\ncmake/3.21.0\n", p.String())

	parsed, err := Parse([]byte(p.String()))
	require.NoError(t, err)
	assert.Equal(t, p.Settings, parsed.Settings)
	assert.Equal(t, p.Options, parsed.Options)
}

func loadManifest(t *testing.T) *manifest.Manifest {
	m, err := manifest.Load(filepath.Join("..", "manifest", "testdata", "variant1"))
	require.NoError(t, err)
	return m
}

func TestBind(t *testing.T) {
	p, err := Load(filepath.Join("testdata", "linux-gcc"))
	require.NoError(t, err)
	require.NoError(t, p.Override(nil, []string{"boost:layout=system"}))

	cfg, err := Bind(loadManifest(t), p)
	require.NoError(t, err)
	assert.Equal(t, "linux-gcc", cfg.Profile)
	// cppstd is not a declared axis.
	assert.Equal(t, []string{
		"arch=x86_64",
		"build_type=Debug",
		"compiler.libcxx=libstdc++11",
		"compiler.version=9",
		"compiler=gcc",
		"os=Linux",
	}, cfg.SettingsPairs())
	assert.Equal(t, "Debug", cfg.Setting("build_type"))
	// Profile values override manifest defaults, CLI values were folded into the profile.
	assert.Equal(t, manifest.Options{
		{Key: "boost:without_test", Value: "False"},
		{Key: "xerces-c:shared", Value: "True"},
		{Key: "boost:layout", Value: "system"},
	}, cfg.Options)
	assert.Equal(t, []string{
		"gtest/1.10.0", "benchmark/1.5.0", "sqlite3/3.32.3", "doxygen/1.8.17", "cmake/3.21.0", "ninja/1.10.2",
	}, manifest.ReferenceStrings(cfg.BuildRequires))
}

func TestBindManifestToolRequireWins(t *testing.T) {
	m := loadManifest(t)
	p := New("tools")
	p.Settings = map[string]string{"os": "Linux", "arch": "x86_64", "compiler": "gcc", "build_type": "Release"}
	p.BuildRequires = []manifest.Reference{manifest.MustParseReference("doxygen/1.9.1")}
	cfg, err := Bind(m, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"gtest", "benchmark", "sqlite3", "doxygen"}, referenceNames(cfg.BuildRequires))
	ref, _ := (&manifest.Manifest{BuildRequires: cfg.BuildRequires}).FindBuildRequire("doxygen")
	assert.Equal(t, "1.8.17", ref.Version)
}

func referenceNames(refs []manifest.Reference) []string {
	var names []string
	for _, ref := range refs {
		names = append(names, ref.Name)
	}
	return names
}

func TestBindMissingSettings(t *testing.T) {
	p, err := Load(filepath.Join("testdata", "partial"))
	require.NoError(t, err)
	_, err = Bind(loadManifest(t), p)
	var missingErr *MissingSettingError
	require.True(t, errors.As(err, &missingErr))
	assert.Equal(t, []string{"build_type", "arch"}, missingErr.Axes)
	assert.EqualError(t, err, "profile 'partial' has no value for settings: build_type, arch")
}
