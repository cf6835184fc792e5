package generators

import (
	"bytes"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/geode-native/depmanifest/resolve"
)

const defaultBuildType = "Release"

// cmakePackage is the template view of a host package.
type cmakePackage struct {
	Name        string
	FindName    string
	Version     string
	Root        string
	BuildType   string
	Config      string
	IncludeDirs []string
	LibDirs     []string
	BinDirs     []string
	Libs        []string
	Defines     []string
	Deps        []string
}

var templateFuncs = template.FuncMap{
	"quote": func(items []string) string {
		quoted := make([]string, 0, len(items))
		for _, item := range items {
			quoted = append(quoted, `"`+item+`"`)
		}
		return strings.Join(quoted, " ")
	},
	"join": strings.Join,
}

func mustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(templateFuncs).Parse(text))
}

func render(tmpl *template.Template, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildType(graph *resolve.Graph) string {
	if value := graph.Root.Settings["build_type"]; value != "" {
		return value
	}
	return defaultBuildType
}

// cmakePath returns an absolute path with forward slashes, as CMake expects on every platform.
func cmakePath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.ToSlash(path)
}

func cmakePaths(root string, dirs []string) []string {
	paths := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		paths = append(paths, cmakePath(filepath.Join(root, dir)))
	}
	return paths
}

func newCMakePackage(graph *resolve.Graph, node *resolve.Node) *cmakePackage {
	recipe := node.Recipe
	pkg := &cmakePackage{
		Name:        node.Name(),
		FindName:    recipe.FindPackageName(),
		Version:     node.Version(),
		Root:        cmakePath(recipe.Root),
		BuildType:   buildType(graph),
		IncludeDirs: cmakePaths(recipe.Root, recipe.IncludeDirs),
		LibDirs:     cmakePaths(recipe.Root, recipe.LibDirs),
		BinDirs:     cmakePaths(recipe.Root, recipe.BinDirs),
		Libs:        recipe.Libs,
		Defines:     recipe.Defines,
	}
	pkg.Config = strings.ToUpper(pkg.BuildType)
	for _, id := range node.Requires {
		if dep := graph.Get(id); dep != nil {
			pkg.Deps = append(pkg.Deps, dep.Recipe.FindPackageName())
		}
	}
	return pkg
}

// hostPackages returns the linked packages with dependencies first.
func hostPackages(graph *resolve.Graph) ([]*cmakePackage, error) {
	order, err := graph.TopoOrder()
	if err != nil {
		return nil, err
	}
	var packages []*cmakePackage
	for _, node := range order {
		if node.Context == resolve.ContextHost {
			packages = append(packages, newCMakePackage(graph, node))
		}
	}
	return packages, nil
}

var configTemplate = mustTemplate("config", `# Generated by depmanifest for {{.Name}}/{{.Version}}
include(CMakeFindDependencyMacro)
{{range .Deps}}
if(NOT {{.}}_FOUND)
    find_dependency({{.}} REQUIRED NO_MODULE)
endif()
{{end}}
include(${CMAKE_CURRENT_LIST_DIR}/{{.FindName}}Targets.cmake)

set({{.FindName}}_FOUND TRUE)
set({{.FindName}}_VERSION "{{.Version}}")
`)

var configVersionTemplate = mustTemplate("configVersion", `set(PACKAGE_VERSION "{{.Version}}")

if(PACKAGE_VERSION VERSION_LESS PACKAGE_FIND_VERSION)
    set(PACKAGE_VERSION_COMPATIBLE FALSE)
else()
    set(PACKAGE_VERSION_COMPATIBLE TRUE)
    if(PACKAGE_FIND_VERSION STREQUAL PACKAGE_VERSION)
        set(PACKAGE_VERSION_EXACT TRUE)
    endif()
endif()
`)

var targetsTemplate = mustTemplate("targets", `if(NOT TARGET {{.FindName}}::{{.FindName}})
    add_library({{.FindName}}::{{.FindName}} INTERFACE IMPORTED)
endif()

# Load the per configuration target files
get_filename_component(_DIR "${CMAKE_CURRENT_LIST_FILE}" PATH)
file(GLOB CONFIG_FILES "${_DIR}/{{.FindName}}Target-*.cmake")

foreach(f ${CONFIG_FILES})
    include(${f})
endforeach()
`)

var targetConfigTemplate = mustTemplate("targetConfig", `set({{.FindName}}_ROOT_{{.Config}} "{{.Root}}")
set({{.FindName}}_INCLUDE_DIRS_{{.Config}} {{quote .IncludeDirs}})
set({{.FindName}}_LIB_DIRS_{{.Config}} {{quote .LibDirs}})
set({{.FindName}}_LIBS_{{.Config}} {{quote .Libs}})
set({{.FindName}}_DEFINITIONS_{{.Config}} {{quote .Defines}})
set({{.FindName}}_DEPENDENCIES_{{.Config}} {{range .Deps}}{{.}}::{{.}} {{end}})

set_property(TARGET {{.FindName}}::{{.FindName}} APPEND PROPERTY INTERFACE_INCLUDE_DIRECTORIES
             $<$<CONFIG:{{.BuildType}}>:${{"{"}}{{.FindName}}_INCLUDE_DIRS_{{.Config}}}>)
set_property(TARGET {{.FindName}}::{{.FindName}} APPEND PROPERTY INTERFACE_LINK_DIRECTORIES
             $<$<CONFIG:{{.BuildType}}>:${{"{"}}{{.FindName}}_LIB_DIRS_{{.Config}}}>)
set_property(TARGET {{.FindName}}::{{.FindName}} APPEND PROPERTY INTERFACE_LINK_LIBRARIES
             $<$<CONFIG:{{.BuildType}}>:${{"{"}}{{.FindName}}_LIBS_{{.Config}}};${{"{"}}{{.FindName}}_DEPENDENCIES_{{.Config}}}>)
set_property(TARGET {{.FindName}}::{{.FindName}} APPEND PROPERTY INTERFACE_COMPILE_DEFINITIONS
             $<$<CONFIG:{{.BuildType}}>:${{"{"}}{{.FindName}}_DEFINITIONS_{{.Config}}}>)
`)

// CMakeFindPackageMulti writes config files per host package, one target file per build type.
type CMakeFindPackageMulti struct{}

func (g *CMakeFindPackageMulti) Name() string {
	return "cmake_find_package_multi"
}

func (g *CMakeFindPackageMulti) Generate(graph *resolve.Graph) ([]File, error) {
	packages, err := hostPackages(graph)
	if err != nil {
		return nil, err
	}
	var files []File
	for _, pkg := range packages {
		for _, entry := range []struct {
			name string
			tmpl *template.Template
		}{
			{pkg.FindName + "Config.cmake", configTemplate},
			{pkg.FindName + "ConfigVersion.cmake", configVersionTemplate},
			{pkg.FindName + "Targets.cmake", targetsTemplate},
			{pkg.FindName + "Target-" + strings.ToLower(pkg.BuildType) + ".cmake", targetConfigTemplate},
		} {
			content, err := render(entry.tmpl, pkg)
			if err != nil {
				return nil, err
			}
			files = append(files, File{Name: entry.name, Content: content})
		}
	}
	return files, nil
}

var findModuleTemplate = mustTemplate("findModule", `# Generated by depmanifest for {{.Name}}/{{.Version}}
include(FindPackageHandleStandardArgs)

set({{.FindName}}_FOUND TRUE)
set({{.FindName}}_VERSION "{{.Version}}")
set({{.FindName}}_ROOT "{{.Root}}")
set({{.FindName}}_INCLUDE_DIRS {{quote .IncludeDirs}})
set({{.FindName}}_INCLUDE_DIR {{quote .IncludeDirs}})
set({{.FindName}}_LIB_DIRS {{quote .LibDirs}})
set({{.FindName}}_LIBRARIES {{quote .Libs}})
set({{.FindName}}_DEFINITIONS {{quote .Defines}})

find_package_handle_standard_args({{.FindName}} REQUIRED_VARS {{.FindName}}_VERSION VERSION_VAR {{.FindName}}_VERSION)
mark_as_advanced({{.FindName}}_FOUND {{.FindName}}_VERSION)
{{range .Deps}}
if(NOT {{.}}_FOUND)
    find_package({{.}} REQUIRED)
endif()
{{end}}
if(NOT TARGET {{.FindName}}::{{.FindName}})
    add_library({{.FindName}}::{{.FindName}} INTERFACE IMPORTED)
    set_target_properties({{.FindName}}::{{.FindName}} PROPERTIES
                          INTERFACE_INCLUDE_DIRECTORIES "${{"{"}}{{.FindName}}_INCLUDE_DIRS}"
                          INTERFACE_LINK_DIRECTORIES "${{"{"}}{{.FindName}}_LIB_DIRS}"
                          INTERFACE_LINK_LIBRARIES "${{"{"}}{{.FindName}}_LIBRARIES}{{range .Deps}};{{.}}::{{.}}{{end}}"
                          INTERFACE_COMPILE_DEFINITIONS "${{"{"}}{{.FindName}}_DEFINITIONS}")
endif()
`)

// CMakeFindPackage writes one Find<Name>.cmake module per host package.
type CMakeFindPackage struct{}

func (g *CMakeFindPackage) Name() string {
	return "cmake_find_package"
}

func (g *CMakeFindPackage) Generate(graph *resolve.Graph) ([]File, error) {
	packages, err := hostPackages(graph)
	if err != nil {
		return nil, err
	}
	files := make([]File, 0, len(packages))
	for _, pkg := range packages {
		content, err := render(findModuleTemplate, pkg)
		if err != nil {
			return nil, err
		}
		files = append(files, File{Name: "Find" + pkg.FindName + ".cmake", Content: content})
	}
	return files, nil
}

var pathsTemplate = mustTemplate("paths", `# Generated by depmanifest
{{range .Packages}}set(CONAN_{{.Var}}_ROOT "{{.Root}}")
{{end}}
set(CMAKE_MODULE_PATH {{quote .Roots}} ${CMAKE_MODULE_PATH} ${CMAKE_CURRENT_LIST_DIR})
set(CMAKE_PREFIX_PATH {{quote .Roots}} ${CMAKE_PREFIX_PATH} ${CMAKE_CURRENT_LIST_DIR})
`)

// CMakePaths writes conan_paths.cmake pointing CMake at the root of every package, tools included.
type CMakePaths struct{}

func (g *CMakePaths) Name() string {
	return "cmake_paths"
}

func (g *CMakePaths) Generate(graph *resolve.Graph) ([]File, error) {
	type pathsPackage struct {
		Var  string
		Root string
	}
	data := struct {
		Packages []pathsPackage
		Roots    []string
	}{}
	// Host packages come first in the graph, so they win over a build tool of the same name.
	seen := map[string]bool{}
	for _, node := range graph.Nodes {
		if seen[node.Name()] {
			continue
		}
		seen[node.Name()] = true
		root := cmakePath(node.Recipe.Root)
		data.Packages = append(data.Packages, pathsPackage{Var: strings.ToUpper(node.Name()), Root: root})
		data.Roots = append(data.Roots, root)
	}
	content, err := render(pathsTemplate, data)
	if err != nil {
		return nil, err
	}
	return []File{{Name: "conan_paths.cmake", Content: content}}, nil
}
