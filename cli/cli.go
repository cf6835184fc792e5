package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/geode-native/depmanifest/collect"
	"github.com/geode-native/depmanifest/entities"
	"github.com/geode-native/depmanifest/generators"
	"github.com/geode-native/depmanifest/lockfile"
	"github.com/geode-native/depmanifest/manifest"
	"github.com/geode-native/depmanifest/profile"
	"github.com/geode-native/depmanifest/resolve"
	"github.com/geode-native/depmanifest/utils"
	"github.com/pkg/errors"
	clitool "github.com/urfave/cli/v2"
)

const (
	formatFlag       = "format"
	profileFlag      = "profile"
	catalogFlag      = "catalog"
	settingFlag      = "setting"
	optionFlag       = "option"
	lockfileFlag     = "lockfile"
	lockfileOutFlag  = "lockfile-out"
	threadsFlag      = "threads"
	outputFolderFlag = "output-folder"
	generatorFlag    = "generator"
	strictFlag       = "strict"
	buildNameFlag    = "build-name"
	buildNumberFlag  = "build-number"
	artifactFlag     = "artifact"
	envIncludeFlag   = "env-include"
	envExcludeFlag   = "env-exclude"
	noCacheFlag      = "no-cache"

	formatText    = "text"
	formatJson    = "json"
	cycloneDxXml  = "cyclonedx/xml"
	cycloneDxJson = "cyclonedx/json"

	defaultEnvExclude = "*password*;*psw*;*secret*;*key*;*token*;*auth*"
)

// Version is reported as the build-info agent version.
var Version = "1.0.0"

func GetCommands(logger utils.Log) []*clitool.Command {
	textFormatFlag := &clitool.StringFlag{
		Name:  formatFlag,
		Value: formatText,
		Usage: fmt.Sprintf("[Optional] Output format. Supported values are '%s' and '%s'.` `", formatText, formatJson),
	}
	resolveFlags := []clitool.Flag{
		&clitool.StringFlag{
			Name:    profileFlag,
			Aliases: []string{"pr"},
			Value:   profile.DefaultProfileName,
			Usage:   "[Optional] Profile name or path binding the settings axes.` `",
		},
		&clitool.StringFlag{
			Name:    catalogFlag,
			EnvVars: []string{"DEPMANIFEST_CATALOG"},
			Usage:   "[Optional] Catalog file or directory of available recipes. Defaults to the catalog in DEPMANIFEST_HOME.` `",
		},
		&clitool.StringSliceFlag{
			Name:    settingFlag,
			Aliases: []string{"s"},
			Usage:   "[Optional] Setting override, key=value.` `",
		},
		&clitool.StringSliceFlag{
			Name:    optionFlag,
			Aliases: []string{"o"},
			Usage:   "[Optional] Option override, package:option=value.` `",
		},
		&clitool.StringFlag{
			Name:  lockfileFlag,
			Usage: "[Optional] Lockfile pinning the resolved versions.` `",
		},
		&clitool.IntFlag{
			Name:  threadsFlag,
			Value: 3,
			Usage: "[Default: 3] Number of threads calculating package checksums.` `",
		},
	}

	return []*clitool.Command{
		{
			Name:      "inspect",
			Usage:     "Print the manifest of a project",
			UsageText: "depmanifest inspect [path]",
			Flags:     []clitool.Flag{textFormatFlag},
			Action: func(c *clitool.Context) error {
				m, err := manifest.Load(pathArg(c, 0))
				if err != nil {
					return err
				}
				if c.String(formatFlag) == formatJson {
					content, err := manifest.ToJSON(m)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, string(content))
					return err
				}
				if err = checkTextFormat(c); err != nil {
					return err
				}
				return printManifest(c.App.Writer, m)
			},
		},
		{
			Name:      "validate",
			Usage:     "Check the manifest of a project, failing on error issues",
			UsageText: "depmanifest validate [path]",
			Flags: []clitool.Flag{
				textFormatFlag,
				&clitool.BoolFlag{Name: strictFlag, Usage: "[Default: false] Fail on warnings too.` `"},
			},
			Action: func(c *clitool.Context) error {
				m, err := manifest.Load(pathArg(c, 0))
				if err != nil {
					return err
				}
				report := (&manifest.Validator{KnownGenerators: generators.Names()}).Validate(m)
				if c.String(formatFlag) == formatJson {
					if err = printJson(c.App.Writer, report); err != nil {
						return err
					}
				} else {
					if err = checkTextFormat(c); err != nil {
						return err
					}
					for _, issue := range report.Issues {
						fmt.Fprintln(c.App.Writer, issue.String())
					}
					if report.Valid() {
						fmt.Fprintf(c.App.Writer, "%s is valid\n", m.Path)
					}
				}
				if err = report.Err(); err != nil {
					return err
				}
				if c.Bool(strictFlag) && len(report.Warnings()) > 0 {
					return fmt.Errorf("%d warnings in strict mode", len(report.Warnings()))
				}
				return nil
			},
		},
		{
			Name:      "diff",
			Usage:     "Report the configuration drift between two manifests",
			UsageText: "depmanifest diff <before> <after>",
			Flags:     []clitool.Flag{textFormatFlag},
			Action: func(c *clitool.Context) error {
				if c.NArg() != 2 {
					return errors.New("diff expects exactly two manifest paths")
				}
				before, err := manifest.Load(c.Args().Get(0))
				if err != nil {
					return err
				}
				after, err := manifest.Load(c.Args().Get(1))
				if err != nil {
					return err
				}
				drift := manifest.Diff(before, after)
				if c.String(formatFlag) == formatJson {
					return printJson(c.App.Writer, drift)
				}
				if err = checkTextFormat(c); err != nil {
					return err
				}
				_, err = fmt.Fprint(c.App.Writer, drift.String())
				return err
			},
		},
		{
			Name:      "resolve",
			Usage:     "Resolve the requirements of a project to concrete packages",
			UsageText: "depmanifest resolve [path]",
			Flags:     append([]clitool.Flag{textFormatFlag}, resolveFlags...),
			Action: func(c *clitool.Context) error {
				_, graph, _, err := resolveProject(c, pathArg(c, 0), logger)
				if err != nil {
					return err
				}
				if c.String(formatFlag) == formatJson {
					files, err := (&generators.JSON{}).Generate(graph)
					if err != nil {
						return err
					}
					_, err = c.App.Writer.Write(files[0].Content)
					return err
				}
				if err = checkTextFormat(c); err != nil {
					return err
				}
				return printGraph(c.App.Writer, graph)
			},
		},
		{
			Name:      "install",
			Usage:     "Resolve a project and write the generator files and lockfile",
			UsageText: "depmanifest install [path]",
			Flags: append([]clitool.Flag{
				&clitool.StringFlag{
					Name:    outputFolderFlag,
					Aliases: []string{"of"},
					Value:   "build",
					Usage:   "[Default: build] Folder receiving the generated files.` `",
				},
				&clitool.StringSliceFlag{
					Name:    generatorFlag,
					Aliases: []string{"g"},
					Usage:   "[Optional] Generators to run instead of the manifest's.` `",
				},
				&clitool.StringFlag{
					Name:  lockfileOutFlag,
					Usage: "[Optional] Path of the written lockfile. Defaults to conan.lock in the output folder.` `",
				},
			}, resolveFlags...),
			Action: func(c *clitool.Context) error {
				m, graph, _, err := resolveProject(c, pathArg(c, 0), logger)
				if err != nil {
					return err
				}
				names := c.StringSlice(generatorFlag)
				if len(names) == 0 {
					names = m.Generators
				}
				outputFolder := c.String(outputFolderFlag)
				written, err := generators.Run(outputFolder, graph, names)
				if err != nil {
					return err
				}
				lockPath := c.String(lockfileOutFlag)
				if lockPath == "" {
					lockPath = filepath.Join(outputFolder, lockfile.FileName)
				}
				if err = lockfile.FromGraph(graph).Save(lockPath); err != nil {
					return err
				}
				for _, path := range append(written, lockPath) {
					fmt.Fprintln(c.App.Writer, path)
				}
				return nil
			},
		},
		{
			Name:      "build-info",
			Usage:     "Generate build-info for a project",
			UsageText: "depmanifest build-info [path...]",
			Flags: append([]clitool.Flag{
				&clitool.StringFlag{
					Name:  formatFlag,
					Usage: fmt.Sprintf("[Optional] Set to convert the build-info to a different format. Supported values are '%s' and '%s'.` `", cycloneDxXml, cycloneDxJson),
				},
				&clitool.StringFlag{
					Name:    buildNameFlag,
					EnvVars: []string{"DEPMANIFEST_BUILD_NAME"},
					Usage:   "[Optional] Build name. Defaults to the project name.` `",
				},
				&clitool.StringFlag{
					Name:    buildNumberFlag,
					EnvVars: []string{"DEPMANIFEST_BUILD_NUMBER"},
					Value:   "1",
					Usage:   "[Default: 1] Build number.` `",
				},
				&clitool.StringSliceFlag{
					Name:  artifactFlag,
					Usage: "[Optional] File produced by the build, such as generator output, recorded as a module artifact.` `",
				},
				&clitool.StringFlag{
					Name:  envIncludeFlag,
					Value: "*",
					Usage: "[Default: *] Semicolon separated patterns of profile env variables to include.` `",
				},
				&clitool.StringFlag{
					Name:  envExcludeFlag,
					Value: defaultEnvExclude,
					Usage: fmt.Sprintf("[Default: %s] Semicolon separated patterns of profile env variables to exclude.` `", defaultEnvExclude),
				},
				&clitool.BoolFlag{
					Name:  noCacheFlag,
					Usage: "[Default: false] Do not read or write the dependencies checksum cache.` `",
				},
			}, resolveFlags...),
			Action: func(c *clitool.Context) error {
				paths := c.Args().Slice()
				if len(paths) == 0 {
					paths = []string{"."}
				}
				// Several projects are aggregated into one build, one module each.
				var buildInfo *entities.BuildInfo
				buildName := c.String(buildNameFlag)
				for _, path := range paths {
					collector, m, err := newCollector(c, path, logger)
					if err != nil {
						return err
					}
					if buildName == "" {
						buildName = m.Name
					}
					collected, err := collector.CollectBuildInfo(buildName, c.String(buildNumberFlag))
					if err != nil {
						return err
					}
					if buildInfo == nil {
						buildInfo = collected
					} else {
						buildInfo.Append(collected)
					}
				}
				if err := buildInfo.IncludeEnv(splitPatterns(c.String(envIncludeFlag))...); err != nil {
					return err
				}
				if err := buildInfo.ExcludeEnv(splitPatterns(c.String(envExcludeFlag))...); err != nil {
					return err
				}
				return printBuild(c.App.Writer, buildInfo, c.String(formatFlag))
			},
		},
	}
}

// pathArg returns the index'th argument, the current directory when missing.
func pathArg(c *clitool.Context, index int) string {
	if path := c.Args().Get(index); path != "" {
		return path
	}
	return "."
}

func checkTextFormat(c *clitool.Context) error {
	if format := c.String(formatFlag); format != formatText {
		return fmt.Errorf("'%s' is not a valid value for '%s'", format, formatFlag)
	}
	return nil
}

// bindProfile loads the selected profile, applies the command line overrides and binds it to m.
func bindProfile(c *clitool.Context, m *manifest.Manifest) (*profile.Configuration, error) {
	p, err := profile.Find(c.String(profileFlag))
	if err != nil {
		return nil, err
	}
	if err = p.Override(c.StringSlice(settingFlag), c.StringSlice(optionFlag)); err != nil {
		return nil, err
	}
	return profile.Bind(m, p)
}

func loadCatalog(c *clitool.Context) (*resolve.Catalog, error) {
	path := c.String(catalogFlag)
	if path == "" {
		home, err := profile.Home()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, "catalog")
		if exists, _ := utils.IsFileExists(path+".yaml", true); exists {
			path += ".yaml"
		}
	}
	return resolve.LoadCatalog(path)
}

func loadLockfile(c *clitool.Context, m *manifest.Manifest, cfg *profile.Configuration) (*lockfile.Lockfile, error) {
	path := c.String(lockfileFlag)
	if path == "" {
		return nil, nil
	}
	lock, err := lockfile.Load(path)
	if err != nil {
		return nil, err
	}
	// Profile tools are part of the locked build requires.
	required := *m
	required.BuildRequires = cfg.BuildRequires
	if mismatches := lock.Check(&required); len(mismatches) > 0 {
		var lines []string
		for _, mismatch := range mismatches {
			lines = append(lines, mismatch.String())
		}
		return nil, fmt.Errorf("lockfile '%s' is out of date:\n%s", path, strings.Join(lines, "\n"))
	}
	return lock, nil
}

func resolveProject(c *clitool.Context, path string, logger utils.Log) (*manifest.Manifest, *resolve.Graph, *profile.Configuration, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := bindProfile(c, m)
	if err != nil {
		return nil, nil, nil, err
	}
	catalog, err := loadCatalog(c)
	if err != nil {
		return nil, nil, nil, err
	}
	resolver := resolve.NewResolver(catalog)
	resolver.SetLogger(logger)
	resolver.SetThreads(c.Int(threadsFlag))
	lock, err := loadLockfile(c, m, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if lock != nil {
		resolver.SetPins(lock)
	}
	graph, err := resolver.Resolve(c.Context, m, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return m, graph, cfg, nil
}

// newCollector resolves the project, or reads the lockfile alone when no catalog is given.
func newCollector(c *clitool.Context, path string, logger utils.Log) (*collect.Collector, *manifest.Manifest, error) {
	var collector *collect.Collector
	var m *manifest.Manifest
	if c.String(lockfileFlag) != "" && c.String(catalogFlag) == "" {
		var err error
		if m, err = manifest.Load(path); err != nil {
			return nil, nil, err
		}
		cfg, err := bindProfile(c, m)
		if err != nil {
			return nil, nil, err
		}
		lock, err := loadLockfile(c, m, cfg)
		if err != nil {
			return nil, nil, err
		}
		if collector, err = collect.NewLockfileCollector(m, lock); err != nil {
			return nil, nil, err
		}
		collector.SetConfiguration(cfg)
	} else {
		var graph *resolve.Graph
		var cfg *profile.Configuration
		var err error
		if m, graph, cfg, err = resolveProject(c, path, logger); err != nil {
			return nil, nil, err
		}
		collector = collect.NewCollector(m, graph)
		collector.SetConfiguration(cfg)
	}
	collector.SetLogger(logger)
	collector.SetAgent(collect.DefaultAgentName, Version)
	collector.SetArtifacts(c.StringSlice(artifactFlag)...)
	collector.SetUseCache(!c.Bool(noCacheFlag))
	return collector, m, nil
}

func splitPatterns(patterns string) []string {
	var result []string
	for _, pattern := range strings.Split(patterns, ";") {
		if pattern = strings.TrimSpace(pattern); pattern != "" {
			result = append(result, pattern)
		}
	}
	return result
}

func printManifest(w io.Writer, m *manifest.Manifest) error {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("name: %s\n", m.Name))
	if m.Version != "" {
		sb.WriteString(fmt.Sprintf("version: %s\n", m.Version))
	}
	sb.WriteString(fmt.Sprintf("format: %s\n", m.Format))
	sb.WriteString(fmt.Sprintf("settings: %s\n", strings.Join(m.Settings, ", ")))
	writeList := func(title string, items []string) {
		sb.WriteString(title + ":\n")
		for _, item := range items {
			sb.WriteString("  " + item + "\n")
		}
	}
	writeList("requires", manifest.ReferenceStrings(m.Requires))
	writeList("build_requires", manifest.ReferenceStrings(m.BuildRequires))
	writeList("generators", m.Generators)
	var options []string
	for _, option := range m.DefaultOptions {
		options = append(options, option.Key+"="+option.Value)
	}
	writeList("default_options", options)
	_, err := io.WriteString(w, sb.String())
	return err
}

func printGraph(w io.Writer, graph *resolve.Graph) error {
	if _, err := fmt.Fprintf(w, "%s\n", graph.Root.String()); err != nil {
		return err
	}
	for _, node := range graph.Nodes {
		direct := ""
		if node.Direct {
			direct = " (direct)"
		}
		if _, err := fmt.Fprintf(w, "  %-5s %s %s%s\n", node.Context, node.Ref.String(), node.PackageID, direct); err != nil {
			return err
		}
	}
	return nil
}

func printJson(w io.Writer, value interface{}) error {
	content, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(content))
	return err
}

func printBuild(w io.Writer, buildInfo *entities.BuildInfo, format string) error {
	switch format {
	case cycloneDxXml:
		cdxBom, err := buildInfo.ToCycloneDxBom()
		if err != nil {
			return err
		}
		encoder := cdx.NewBOMEncoder(w, cdx.BOMFileFormatXML)
		encoder.SetPretty(true)
		if err = encoder.Encode(cdxBom); err != nil {
			return err
		}
	case cycloneDxJson:
		cdxBom, err := buildInfo.ToCycloneDxBom()
		if err != nil {
			return err
		}
		encoder := cdx.NewBOMEncoder(w, cdx.BOMFileFormatJSON)
		encoder.SetPretty(true)
		if err = encoder.Encode(cdxBom); err != nil {
			return err
		}
	case "", formatJson:
		b, err := json.Marshal(buildInfo)
		if err != nil {
			return err
		}
		var content bytes.Buffer
		err = json.Indent(&content, b, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, content.String())
	default:
		return fmt.Errorf("'%s' is not a valid value for '%s'", format, formatFlag)
	}
	return nil
}
