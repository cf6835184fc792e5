package manifest

import (
	"fmt"
	"strings"

	"github.com/geode-native/depmanifest/utils"
)

// Change records a value that differs between two manifests.
type Change struct {
	Name string `json:"name"`
	From string `json:"from"`
	To   string `json:"to"`
}

type ReferenceDrift struct {
	Added   []Reference `json:"added,omitempty"`
	Removed []Reference `json:"removed,omitempty"`
	Changed []Change    `json:"changed,omitempty"`
}

func (d ReferenceDrift) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

type SetDrift struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

func (d SetDrift) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

type OptionsDrift struct {
	Added   Options  `json:"added,omitempty"`
	Removed Options  `json:"removed,omitempty"`
	Changed []Change `json:"changed,omitempty"`
}

func (d OptionsDrift) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Drift is the configuration difference between two manifests of the same project.
type Drift struct {
	Settings       SetDrift       `json:"settings"`
	Requires       ReferenceDrift `json:"requires"`
	BuildRequires  ReferenceDrift `json:"build_requires"`
	Generators     SetDrift       `json:"generators"`
	DefaultOptions OptionsDrift   `json:"default_options"`
}

func (d *Drift) Empty() bool {
	return d.Settings.Empty() && d.Requires.Empty() && d.BuildRequires.Empty() && d.Generators.Empty() && d.DefaultOptions.Empty()
}

// Diff compares manifest a (before) with b (after).
func Diff(a, b *Manifest) *Drift {
	return &Drift{
		Settings:       diffSets(a.Settings, b.Settings),
		Requires:       diffReferences(a.Requires, b.Requires),
		BuildRequires:  diffReferences(a.BuildRequires, b.BuildRequires),
		Generators:     diffSets(a.Generators, b.Generators),
		DefaultOptions: diffOptions(a.DefaultOptions, b.DefaultOptions),
	}
}

func diffSets(a, b []string) SetDrift {
	before, after := utils.NewStringSet(a...), utils.NewStringSet(b...)
	return SetDrift{Added: after.Difference(before), Removed: before.Difference(after)}
}

func diffReferences(a, b []Reference) ReferenceDrift {
	var drift ReferenceDrift
	for _, ref := range b {
		previous, exists := findReference(a, ref.Name)
		switch {
		case !exists:
			drift.Added = append(drift.Added, ref)
		case previous.String() != ref.String():
			drift.Changed = append(drift.Changed, Change{Name: ref.Name, From: previous.String(), To: ref.String()})
		}
	}
	for _, ref := range a {
		if _, exists := findReference(b, ref.Name); !exists {
			drift.Removed = append(drift.Removed, ref)
		}
	}
	return drift
}

func diffOptions(a, b Options) OptionsDrift {
	var drift OptionsDrift
	for _, option := range b {
		previous, exists := a.Get(option.Key)
		switch {
		case !exists:
			drift.Added = append(drift.Added, option)
		case previous != option.Value:
			drift.Changed = append(drift.Changed, Change{Name: option.Key, From: previous, To: option.Value})
		}
	}
	for _, option := range a {
		if _, exists := b.Get(option.Key); !exists {
			drift.Removed = append(drift.Removed, option)
		}
	}
	return drift
}

// String renders the drift as a unified-diff style listing.
func (d *Drift) String() string {
	if d.Empty() {
		return "no drift\n"
	}
	var sb strings.Builder
	writeSet := func(section string, set SetDrift) {
		for _, added := range set.Added {
			sb.WriteString(fmt.Sprintf("+ %s: %s\n", section, added))
		}
		for _, removed := range set.Removed {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", section, removed))
		}
	}
	writeReferences := func(section string, refs ReferenceDrift) {
		for _, added := range refs.Added {
			sb.WriteString(fmt.Sprintf("+ %s: %s\n", section, added.String()))
		}
		for _, removed := range refs.Removed {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", section, removed.String()))
		}
		for _, changed := range refs.Changed {
			sb.WriteString(fmt.Sprintf("~ %s: %s -> %s\n", section, changed.From, changed.To))
		}
	}
	writeSet("settings", d.Settings)
	writeReferences("requires", d.Requires)
	writeReferences("build_requires", d.BuildRequires)
	writeSet("generators", d.Generators)
	for _, added := range d.DefaultOptions.Added {
		sb.WriteString(fmt.Sprintf("+ default_options: %s=%s\n", added.Key, added.Value))
	}
	for _, removed := range d.DefaultOptions.Removed {
		sb.WriteString(fmt.Sprintf("- default_options: %s=%s\n", removed.Key, removed.Value))
	}
	for _, changed := range d.DefaultOptions.Changed {
		sb.WriteString(fmt.Sprintf("~ default_options: %s %s -> %s\n", changed.Name, changed.From, changed.To))
	}
	return sb.String()
}
