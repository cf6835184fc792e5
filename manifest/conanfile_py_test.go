package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadVariant(t *testing.T, variant string) *Manifest {
	m, err := Load(filepath.Join("testdata", variant))
	require.NoError(t, err)
	return m
}

func TestParseConanfilePyVariant1(t *testing.T) {
	m := loadVariant(t, "variant1")

	assert.Equal(t, FormatConanfilePy, m.Format)
	assert.Equal(t, filepath.Join("testdata", "variant1", "conanfile.py"), m.Path)
	assert.Equal(t, "variant1", m.Name)
	assert.Equal(t, []string{"os", "compiler", "build_type", "arch"}, m.Settings)
	assert.Equal(t, []Reference{
		{Name: "boost", Version: "1.73.0"},
		{Name: "xerces-c", Version: "3.2.3"},
	}, m.Requires)
	assert.Equal(t, []Reference{
		{Name: "gtest", Version: "1.10.0"},
		{Name: "benchmark", Version: "1.5.0"},
		{Name: "sqlite3", Version: "3.32.3"},
		{Name: "doxygen", Version: "1.8.17"},
	}, m.BuildRequires)
	assert.Equal(t, []string{"cmake_find_package_multi", "cmake_paths"}, m.Generators)
	assert.Equal(t, Options{{Key: "boost:without_test", Value: "True"}}, m.DefaultOptions)
	withoutTest, ok := m.DefaultOptions.Bool("boost:without_test")
	assert.True(t, ok)
	assert.True(t, withoutTest)
}

func TestParseConanfilePyVariants(t *testing.T) {
	v2 := loadVariant(t, "variant2")
	assert.Len(t, v2.Requires, 3)
	_, found := v2.FindBuildRequire("doxygen_installer")
	assert.True(t, found)

	v3 := loadVariant(t, "variant3")
	assert.Empty(t, v3.DefaultOptions)
	_, found = v3.FindRequire("boost")
	assert.False(t, found)
	assert.Equal(t, []string{"cmake_find_package_multi", "cmake_paths"}, v3.Generators)
}

func TestParseConanfilePyLiteralForms(t *testing.T) {
	recipe := `
import os
from conan import ConanFile

class Helper:
    requires = "ignored/1.0"

class GeodeNative(ConanFile):
    """Geode native client.

    settings = "not", "an", "attribute"
    """
    name = "geode-native"
    version = '1.15.0'
    settings = {"os": None, "compiler": None,
                "build_type": None, "arch": None}
    requires = [
        "boost/1.73.0",   # runtime
        ("xerces-c/3.2.3", "private"),
    ]
    tool_requires = "doxygen/1.8.17"
    test_requires = ("gtest/1.10.0",)
    generators = "cmake_paths"
    default_options = ("boost:without_test=True",
                       "xerces-c:shared=False")
    exports_sources = os.path.join("src", "*")

    def requirements(self):
        requires = "computed/1.0"
        self.requires(requires)
`
	m, err := ParseConanfilePy([]byte(recipe))
	require.NoError(t, err)
	assert.Equal(t, "geode-native", m.Name)
	assert.Equal(t, "1.15.0", m.Version)
	assert.Equal(t, DefaultSettings, m.Settings)
	assert.Equal(t, []string{"boost/1.73.0", "xerces-c/3.2.3"}, ReferenceStrings(m.Requires))
	assert.Equal(t, []string{"doxygen/1.8.17", "gtest/1.10.0"}, ReferenceStrings(m.BuildRequires))
	assert.Equal(t, []string{"cmake_paths"}, m.Generators)
	assert.Equal(t, Options{{Key: "boost:without_test", Value: "True"}, {Key: "xerces-c:shared", Value: "False"}}, m.DefaultOptions)
}

func TestParseConanfilePyAnnotatedAttributes(t *testing.T) {
	recipe := `
from conan import ConanFile

class App(ConanFile):
    name: str = "app"
    settings: tuple = "os", "compiler", "build_type", "arch"
    requires: tuple = ("boost/1.73.0",)
    default_options: dict = {"boost:shared": False}
    generators: str
    url : str="https://example.com"

    def requirements(self) -> None:
        pass
`
	m, err := ParseConanfilePy([]byte(recipe))
	require.NoError(t, err)
	assert.Equal(t, "app", m.Name)
	assert.Equal(t, DefaultSettings, m.Settings)
	assert.Equal(t, []Reference{{Name: "boost", Version: "1.73.0"}}, m.Requires)
	assert.Equal(t, Options{{Key: "boost:shared", Value: "False"}}, m.DefaultOptions)
	assert.Empty(t, m.Generators)
}

func TestParseConanfilePyBackslashContinuation(t *testing.T) {
	recipe := "class A(ConanFile):\n    requires = \"boost/1.73.0\", \\\n        \"xerces-c/3.2.3\"\n"
	m, err := ParseConanfilePy([]byte(recipe))
	require.NoError(t, err)
	assert.Equal(t, []string{"boost/1.73.0", "xerces-c/3.2.3"}, ReferenceStrings(m.Requires))
}

func TestParseConanfilePyErrors(t *testing.T) {
	tests := []struct {
		name   string
		recipe string
	}{
		{name: "no class", recipe: "requires = \"boost/1.73.0\"\n"},
		{name: "computed requires", recipe: "class A(ConanFile):\n    requires = get_requires()\n"},
		{name: "bad reference", recipe: "class A(ConanFile):\n    requires = \"boost\"\n"},
		{name: "unterminated list", recipe: "class A(ConanFile):\n    generators = [\"cmake\"\n"},
		{name: "non scalar option", recipe: "class A(ConanFile):\n    default_options = {\"boost:x\": [1]}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConanfilePy([]byte(tt.recipe))
			assert.Error(t, err)
		})
	}
}

func TestParsePyLiteral(t *testing.T) {
	value, err := parsePyLiteral(`"a", 'b' "c", r"d\n", -1, True, None, [1, 2,], {"k": False},`)
	require.NoError(t, err)
	require.Equal(t, pyTuple, value.kind)
	require.Len(t, value.items, 8)
	assert.Equal(t, "a", value.items[0].text)
	assert.Equal(t, "bc", value.items[1].text)
	assert.Equal(t, `d\n`, value.items[2].text)
	assert.Equal(t, "-1", value.items[3].text)
	assert.Equal(t, pyBool, value.items[4].kind)
	assert.Equal(t, pyNone, value.items[5].kind)
	assert.Len(t, value.items[6].items, 2)
	assert.Equal(t, "k", value.items[7].keys[0].text)

	value, err = parsePyLiteral(`("single")`)
	require.NoError(t, err)
	assert.Equal(t, pyString, value.kind)

	_, err = parsePyLiteral(`f"{name}"`)
	assert.Error(t, err)
}

func TestLoadMissingManifest(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "no dependency manifest found")
}

func TestLoadPrefersConanfilePy(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conanfile.txt"), []byte("[requires]\nzlib/1.2.13\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conanfile.py"), []byte("class A(ConanFile):\n    requires = \"boost/1.73.0\"\n"), 0644))
	m, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, FormatConanfilePy, m.Format)
	assert.Equal(t, "boost", m.Requires[0].Name)
}
