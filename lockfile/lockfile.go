package lockfile

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/Masterminds/semver/v3"
	"github.com/geode-native/depmanifest/manifest"
	"github.com/geode-native/depmanifest/resolve"
	"github.com/geode-native/depmanifest/utils"
	"github.com/jfrog/gofrog/log"
	"github.com/pkg/errors"
)

const (
	FileName = "conan.lock"
	Version  = "0.4"
	rootID   = "0"
)

// Lockfile records a resolved graph so later resolutions reproduce the same versions.
type Lockfile struct {
	Version       string            `json:"version"`
	ProfileHost   map[string]string `json:"profile_host"`
	Requires      []string          `json:"requires"`
	BuildRequires []string          `json:"build_requires"`
	Graph         map[string]Node   `json:"graph"`
}

// Node is a locked package. Requires and BuildRequires hold graph keys.
type Node struct {
	Ref           string            `json:"ref"`
	Context       resolve.Context   `json:"context,omitempty"`
	Options       map[string]string `json:"options,omitempty"`
	Settings      map[string]string `json:"settings,omitempty"`
	Requires      []string          `json:"requires,omitempty"`
	BuildRequires []string          `json:"build_requires,omitempty"`
	Path          string            `json:"path,omitempty"`
	PackageId     string            `json:"package_id,omitempty"`
}

// FromGraph locks graph. The root is stored under key "0", the other nodes are numbered in resolution order.
func FromGraph(graph *resolve.Graph) *Lockfile {
	lock := &Lockfile{
		Version:       Version,
		ProfileHost:   graph.Root.Settings,
		Requires:      []string{},
		BuildRequires: []string{},
		Graph:         map[string]Node{},
	}
	keys := map[string]string{resolve.RootID: rootID}
	for i, node := range graph.Nodes {
		keys[node.ID] = strconv.Itoa(i + 1)
	}

	root := Node{Ref: graph.Root.String()}
	for _, id := range graph.Root.Requires {
		child := graph.Get(id)
		if child.Context == resolve.ContextBuild {
			root.BuildRequires = append(root.BuildRequires, keys[id])
		} else {
			root.Requires = append(root.Requires, keys[id])
		}
	}
	lock.Graph[rootID] = root

	for _, node := range graph.Nodes {
		locked := Node{
			Ref:       node.Ref.String(),
			Context:   node.Context,
			Settings:  node.Settings,
			Path:      node.Recipe.Root,
			PackageId: node.PackageID,
		}
		if len(node.Options) > 0 {
			locked.Options = map[string]string{}
			for _, option := range node.Options {
				locked.Options[option.Key] = option.Value
			}
		}
		for _, id := range node.Requires {
			locked.Requires = append(locked.Requires, keys[id])
		}
		lock.Graph[keys[node.ID]] = locked
		if node.Context == resolve.ContextBuild {
			lock.BuildRequires = append(lock.BuildRequires, node.Ref.String())
		} else {
			lock.Requires = append(lock.Requires, node.Ref.String())
		}
	}
	return lock
}

func Load(path string) (*Lockfile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read lockfile")
	}
	lock := new(Lockfile)
	if err = json.Unmarshal(content, lock); err != nil {
		return nil, errors.Wrapf(err, "failed to parse lockfile '%s'", path)
	}
	if lock.Version != Version {
		return nil, fmt.Errorf("unsupported lockfile version '%s' in '%s', expected %s", lock.Version, path, Version)
	}
	if _, exists := lock.Graph[rootID]; !exists {
		return nil, fmt.Errorf("lockfile '%s' has no root node", path)
	}
	log.Debug(fmt.Sprintf("Loaded lockfile '%s' with %d locked packages", path, len(lock.Graph)-1))
	return lock, nil
}

func (lock *Lockfile) Save(path string) error {
	content, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, append(content, '\n'))
}

// Keys returns the graph keys in numeric order, the root first.
func (lock *Lockfile) Keys() []string {
	keys := make([]string, 0, len(lock.Graph))
	for key := range lock.Graph {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})
	return keys
}

// Pinned returns the locked reference of name in the given context.
func (lock *Lockfile) Pinned(target resolve.Context, name string) (manifest.Reference, bool) {
	for _, key := range lock.Keys() {
		node := lock.Graph[key]
		if key == rootID || node.context() != target {
			continue
		}
		ref, err := manifest.ParseReference(node.Ref)
		if err == nil && ref.Name == name {
			return ref, true
		}
	}
	return manifest.Reference{}, false
}

func (node Node) context() resolve.Context {
	if node.Context == "" {
		return resolve.ContextHost
	}
	return node.Context
}

// Mismatch is a manifest requirement the lockfile no longer satisfies.
type Mismatch struct {
	Name     string
	Context  resolve.Context
	Required string
	Locked   string
}

func (m Mismatch) String() string {
	switch {
	case m.Locked == "":
		return fmt.Sprintf("%s is required but not locked", m.Required)
	case m.Required == "":
		return fmt.Sprintf("%s is locked but no longer required", m.Locked)
	}
	return fmt.Sprintf("%s is required but %s is locked", m.Required, m.Locked)
}

// Check compares the direct requirements of m with the locked ones.
func (lock *Lockfile) Check(m *manifest.Manifest) []Mismatch {
	root := lock.Graph[rootID]
	mismatches := lock.check(resolve.ContextHost, m.Requires, root.Requires)
	return append(mismatches, lock.check(resolve.ContextBuild, m.BuildRequires, root.BuildRequires)...)
}

func (lock *Lockfile) check(target resolve.Context, required []manifest.Reference, lockedKeys []string) []Mismatch {
	locked := map[string]manifest.Reference{}
	var lockedNames []string
	for _, key := range lockedKeys {
		ref, err := manifest.ParseReference(lock.Graph[key].Ref)
		if err != nil {
			continue
		}
		locked[ref.Name] = ref
		lockedNames = append(lockedNames, ref.Name)
	}
	var mismatches []Mismatch
	requiredNames := map[string]bool{}
	for _, ref := range required {
		requiredNames[ref.Name] = true
		lockedRef, exists := locked[ref.Name]
		if !exists {
			mismatches = append(mismatches, Mismatch{Name: ref.Name, Context: target, Required: ref.String()})
			continue
		}
		if !satisfies(ref, lockedRef) {
			mismatches = append(mismatches, Mismatch{Name: ref.Name, Context: target, Required: ref.String(), Locked: lockedRef.String()})
		}
	}
	for _, name := range lockedNames {
		if !requiredNames[name] {
			mismatches = append(mismatches, Mismatch{Name: name, Context: target, Locked: locked[name].String()})
		}
	}
	return mismatches
}

func satisfies(required, locked manifest.Reference) bool {
	if !required.IsRange() {
		return required.Version == locked.Version
	}
	constraint, err := required.Constraint()
	if err != nil {
		return false
	}
	version, err := semver.NewVersion(locked.Version)
	return err == nil && constraint.Check(version)
}

// ToGraph rebuilds the locked graph. Recipes only carry the locked package path,
// enough to checksum packages without a catalog.
func (lock *Lockfile) ToGraph() (*resolve.Graph, error) {
	lockedRoot, exists := lock.Graph[rootID]
	if !exists {
		return nil, errors.New("lockfile has no root node")
	}
	rootRef := manifest.Reference{Name: lockedRoot.Ref}
	if ref, err := manifest.ParseReference(lockedRoot.Ref); err == nil {
		rootRef = ref
	}
	graph := resolve.NewGraph(&resolve.Node{
		ID:       resolve.RootID,
		Ref:      rootRef,
		Context:  resolve.ContextHost,
		Settings: lock.ProfileHost,
	})

	ids := map[string]string{rootID: resolve.RootID}
	keys := lock.Keys()
	for _, key := range keys {
		if key == rootID {
			continue
		}
		locked := lock.Graph[key]
		ref, err := manifest.ParseReference(locked.Ref)
		if err != nil {
			return nil, errors.Wrapf(err, "locked node %s", key)
		}
		node := &resolve.Node{
			ID:        resolve.NodeID(locked.context(), ref),
			Ref:       ref,
			Context:   locked.context(),
			PackageID: locked.PackageId,
			Settings:  locked.Settings,
			Recipe:    &resolve.Recipe{Name: ref.Name, Version: ref.Version, Root: locked.Path},
		}
		for _, name := range sortedKeys(locked.Options) {
			node.Options.Set(name, locked.Options[name])
		}
		ids[key] = node.ID
		graph.AddNode(node)
	}

	for _, key := range keys {
		locked := lock.Graph[key]
		for _, child := range append(append([]string{}, locked.Requires...), locked.BuildRequires...) {
			childID, exists := ids[child]
			if !exists {
				return nil, fmt.Errorf("locked node %s requires unknown node %s", key, child)
			}
			if key == rootID {
				graph.Get(childID).Direct = true
			}
			graph.AddEdge(ids[key], childID)
		}
	}
	if _, err := graph.TopoOrder(); err != nil {
		return nil, err
	}
	return graph, nil
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
