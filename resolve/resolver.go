package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/geode-native/depmanifest/manifest"
	"github.com/geode-native/depmanifest/profile"
	"github.com/geode-native/depmanifest/utils"
	"github.com/jfrog/gofrog/log"
)

const defaultThreads = 3

// Pins replaces version ranges with previously locked references.
type Pins interface {
	Pinned(target Context, name string) (manifest.Reference, bool)
}

type Resolver struct {
	catalog *Catalog
	pins    Pins
	threads int
	logger  utils.Log
}

func NewResolver(catalog *Catalog) *Resolver {
	return &Resolver{catalog: catalog, threads: defaultThreads, logger: &utils.NullLog{}}
}

func (r *Resolver) SetPins(pins Pins) {
	r.pins = pins
}

func (r *Resolver) SetThreads(threads int) {
	if threads > 0 {
		r.threads = threads
	}
}

func (r *Resolver) SetLogger(logger utils.Log) {
	r.logger = logger
}

type request struct {
	ref    manifest.Reference
	parent *Node
}

type resolution struct {
	*Resolver
	graph    *Graph
	config   *profile.Configuration
	resolved map[Context]map[string]*Node
}

// Resolve expands the requires of m in the host context and the build requires of cfg in the build context,
// assigning every node a package id for the bound configuration.
func (r *Resolver) Resolve(ctx context.Context, m *manifest.Manifest, cfg *profile.Configuration) (*Graph, error) {
	root := &Node{
		ID:       RootID,
		Ref:      manifest.Reference{Name: m.Name, Version: m.Version},
		Context:  ContextHost,
		Settings: cfg.Settings,
	}
	res := &resolution{
		Resolver: r,
		graph:    NewGraph(root),
		config:   cfg,
		resolved: map[Context]map[string]*Node{ContextHost: {}, ContextBuild: {}},
	}
	if err := res.expand(ctx, ContextHost, m.Requires); err != nil {
		return nil, err
	}
	if err := res.expand(ctx, ContextBuild, cfg.BuildRequires); err != nil {
		return nil, err
	}
	if _, err := res.graph.TopoOrder(); err != nil {
		return nil, err
	}
	res.warnUnusedOptions()
	if err := r.calcChecksums(ctx, res.graph); err != nil {
		return nil, err
	}
	r.logger.Info(fmt.Sprintf("Resolved %d host and %d build packages for profile '%s'", len(res.graph.Host()), len(res.graph.Build()), cfg.Profile))
	return res.graph, nil
}

// expand resolves refs breadth first, so direct requirements are visited before transitive ones.
func (res *resolution) expand(ctx context.Context, target Context, refs []manifest.Reference) error {
	queue := make([]request, 0, len(refs))
	for _, ref := range refs {
		queue = append(queue, request{ref: ref, parent: res.graph.Root})
	}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := queue[0]
		queue = queue[1:]
		node, isNew, err := res.visit(target, req)
		if err != nil {
			return err
		}
		res.graph.AddEdge(req.parent.ID, node.ID)
		if !isNew {
			continue
		}
		for _, dep := range node.Recipe.Requires {
			queue = append(queue, request{ref: dep, parent: node})
		}
	}
	return nil
}

func (res *resolution) visit(target Context, req request) (node *Node, isNew bool, err error) {
	ref := res.pin(target, req.ref)
	if existing, exists := res.resolved[target][ref.Name]; exists {
		if err = res.checkCompatible(existing, ref, req.parent); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	recipe, err := res.catalog.Select(ref)
	if err != nil {
		if missing, ok := err.(*MissingPackageError); ok {
			missing.RequestedBy = req.parent.String()
		}
		return nil, false, err
	}
	options, err := res.effectiveOptions(recipe)
	if err != nil {
		return nil, false, err
	}
	resolvedRef := ref
	resolvedRef.Version = recipe.Version
	if ref.IsRange() {
		res.logger.Debug(fmt.Sprintf("Version range %s resolved to %s", ref.String(), resolvedRef.String()))
	}
	node = &Node{
		ID:       NodeID(target, resolvedRef),
		Ref:      resolvedRef,
		Context:  target,
		Direct:   req.parent == res.graph.Root,
		Settings: res.config.Settings,
		Options:  options,
		Recipe:   recipe,
	}
	node.PackageID = PackageID(resolvedRef, res.config.Settings, options)
	res.resolved[target][ref.Name] = node
	res.graph.AddNode(node)
	return node, true, nil
}

func (res *resolution) pin(target Context, ref manifest.Reference) manifest.Reference {
	if res.pins == nil {
		return ref
	}
	pinned, ok := res.pins.Pinned(target, ref.Name)
	if !ok {
		return ref
	}
	if ref.IsRange() || pinned.Version == ref.Version {
		return pinned
	}
	res.logger.Warn(fmt.Sprintf("Ignoring locked %s, %s is required", pinned.String(), ref.String()))
	return ref
}

// checkCompatible accepts a second request for an already resolved package when it names the
// same version or a range the resolved version satisfies.
func (res *resolution) checkCompatible(existing *Node, ref manifest.Reference, requester *Node) error {
	if ref.IsRange() {
		if constraint, err := ref.Constraint(); err == nil {
			if version, err := semver.NewVersion(existing.Version()); err == nil && constraint.Check(version) {
				return nil
			}
		}
	} else if ref.Version == existing.Version() {
		return nil
	}
	existingBy := res.graph.Root.String()
	if parents := res.graph.RequestedBy(existing.ID); len(parents) > 0 {
		existingBy = res.graph.Get(parents[0]).String()
	}
	return &ConflictError{
		Name:        ref.Name,
		Context:     existing.Context,
		Existing:    existing.Ref.String(),
		ExistingBy:  existingBy,
		Requested:   ref.String(),
		RequestedBy: requester.String(),
	}
}

// effectiveOptions overrides the recipe defaults with the configuration options, pattern
// options ('*:shared') first, then options naming the package.
func (res *resolution) effectiveOptions(recipe *Recipe) (manifest.Options, error) {
	options := recipe.Options.Merge(nil)
	var specific manifest.Options
	for _, option := range res.config.Options {
		pkg, name, ok := manifest.SplitOptionKey(option.Key)
		switch {
		case !ok:
			continue
		case pkg == "*":
			if recipe.HasOption(name) {
				options.Set(name, option.Value)
			}
		case pkg == recipe.Name:
			if !recipe.HasOption(name) {
				return nil, &OptionError{Package: recipe.Name, Option: name, Declared: recipe.Options.Keys()}
			}
			specific.Set(name, option.Value)
		}
	}
	options = options.Merge(specific)
	sort.SliceStable(options, func(i, j int) bool { return options[i].Key < options[j].Key })
	return options, nil
}

func (res *resolution) warnUnusedOptions() {
	for _, option := range res.config.Options {
		pkg, _, ok := manifest.SplitOptionKey(option.Key)
		if ok && pkg != "*" && res.graph.Node(pkg) == nil {
			log.Warn(fmt.Sprintf("Option '%s' addresses '%s' which is not part of the dependency graph", option.Key, pkg))
		}
	}
}

// PackageID identifies the binary of ref built with the given settings and options.
// The same reference and configuration always produce the same id.
func PackageID(ref manifest.Reference, settings map[string]string, options manifest.Options) string {
	var sb strings.Builder
	sb.WriteString("[requires]\n" + ref.String() + "\n[settings]\n")
	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		sb.WriteString(key + "=" + settings[key] + "\n")
	}
	sb.WriteString("[options]\n")
	sorted := options.Merge(nil)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	for _, option := range sorted {
		sb.WriteString(option.Key + "=" + option.Value + "\n")
	}
	return utils.CalcSha1([]byte(sb.String()))
}
