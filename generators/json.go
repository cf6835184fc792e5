package generators

import (
	"encoding/json"

	"github.com/geode-native/depmanifest/manifest"
	"github.com/geode-native/depmanifest/resolve"
)

const JSONFileName = "depmanifest_buildinfo.json"

type jsonBuildInfo struct {
	Project      string            `json:"project"`
	Settings     map[string]string `json:"settings"`
	Dependencies []jsonDependency  `json:"dependencies"`
}

type jsonDependency struct {
	Id          string           `json:"id"`
	Reference   string           `json:"reference"`
	Name        string           `json:"name"`
	Version     string           `json:"version"`
	Context     resolve.Context  `json:"context"`
	Direct      bool             `json:"direct"`
	PackageId   string           `json:"package_id"`
	Options     manifest.Options `json:"options"`
	Requires    []string         `json:"requires"`
	RootPath    string           `json:"rootpath"`
	IncludeDirs []string         `json:"include_paths"`
	LibDirs     []string         `json:"lib_paths"`
	BinDirs     []string         `json:"bin_paths"`
	Libs        []string         `json:"libs"`
	Defines     []string         `json:"defines"`
}

// JSON writes depmanifest_buildinfo.json describing every node of both contexts, dependencies first.
type JSON struct{}

func (g *JSON) Name() string {
	return "json"
}

func (g *JSON) Generate(graph *resolve.Graph) ([]File, error) {
	order, err := graph.TopoOrder()
	if err != nil {
		return nil, err
	}
	info := jsonBuildInfo{
		Project:      graph.Root.String(),
		Settings:     graph.Root.Settings,
		Dependencies: make([]jsonDependency, 0, len(order)),
	}
	for _, node := range order {
		recipe := node.Recipe
		dep := jsonDependency{
			Id:          node.ID,
			Reference:   node.Ref.String(),
			Name:        node.Name(),
			Version:     node.Version(),
			Context:     node.Context,
			Direct:      node.Direct,
			PackageId:   node.PackageID,
			Options:     node.Options,
			Requires:    node.Requires,
			RootPath:    cmakePath(recipe.Root),
			IncludeDirs: cmakePaths(recipe.Root, recipe.IncludeDirs),
			LibDirs:     cmakePaths(recipe.Root, recipe.LibDirs),
			BinDirs:     cmakePaths(recipe.Root, recipe.BinDirs),
			Libs:        recipe.Libs,
			Defines:     recipe.Defines,
		}
		if dep.Options == nil {
			dep.Options = manifest.Options{}
		}
		if dep.Requires == nil {
			dep.Requires = []string{}
		}
		info.Dependencies = append(info.Dependencies, dep)
	}
	content, err := json.MarshalIndent(&info, "", "  ")
	if err != nil {
		return nil, err
	}
	return []File{{Name: JSONFileName, Content: content}}, nil
}
