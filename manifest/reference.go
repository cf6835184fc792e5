package manifest

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Reference identifies a required package.
// Format: name/version[@user/channel][#revision][:package_id]
// The version may be a range written in brackets, e.g. boost/[>=1.70 <2].
// References encode as their string form.
type Reference struct {
	Name     string
	Version  string
	User     string
	Channel  string
	Revision string
}

// ParseReference parses a reference string. A missing name or version is an error.
func ParseReference(ref string) (Reference, error) {
	raw := strings.TrimSpace(ref)
	name, rest, found := strings.Cut(raw, "/")
	if !found {
		return Reference{}, errors.Errorf("invalid reference '%s': expected name/version", ref)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Reference{}, errors.Errorf("invalid reference '%s': empty package name", ref)
	}

	var version string
	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end == -1 {
			return Reference{}, errors.Errorf("invalid reference '%s': unterminated version range", ref)
		}
		version, rest = rest[:end+1], rest[end+1:]
	} else {
		end := strings.IndexAny(rest, "@#:")
		if end == -1 {
			end = len(rest)
		}
		version, rest = rest[:end], rest[end:]
	}
	version = strings.TrimSpace(version)
	if version == "" || version == "[]" {
		return Reference{}, errors.Errorf("invalid reference '%s': empty version", ref)
	}
	if !strings.HasPrefix(version, "[") && strings.ContainsAny(version, " \t") {
		return Reference{}, errors.Errorf("invalid reference '%s': whitespace in version", ref)
	}
	result := Reference{Name: name, Version: version}

	// Package ID is not part of a requirement.
	if idx := strings.Index(rest, ":"); idx != -1 {
		rest = rest[:idx]
	}
	if idx := strings.Index(rest, "#"); idx != -1 {
		result.Revision = rest[idx+1:]
		rest = rest[:idx]
	}
	if strings.HasPrefix(rest, "@") {
		user, channel, hasChannel := strings.Cut(rest[1:], "/")
		if user == "" {
			return Reference{}, errors.Errorf("invalid reference '%s': empty user", ref)
		}
		if hasChannel && channel == "" {
			return Reference{}, errors.Errorf("invalid reference '%s': empty channel", ref)
		}
		result.User, result.Channel = user, channel
	} else if rest != "" {
		return Reference{}, errors.Errorf("invalid reference '%s': unexpected '%s'", ref, rest)
	}
	return result, nil
}

// MustParseReference is like ParseReference but panics on error.
func MustParseReference(ref string) Reference {
	r, err := ParseReference(ref)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Reference) String() string {
	var sb strings.Builder
	sb.WriteString(r.Name)
	sb.WriteString("/")
	sb.WriteString(r.Version)
	if r.User != "" || r.Channel != "" {
		sb.WriteString("@" + r.User)
		if r.Channel != "" {
			sb.WriteString("/" + r.Channel)
		}
	}
	if r.Revision != "" {
		sb.WriteString("#" + r.Revision)
	}
	return sb.String()
}

func (r Reference) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Reference) UnmarshalText(text []byte) error {
	parsed, err := ParseReference(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Key returns the build-info dependency id, name:version.
func (r Reference) Key() string {
	return FormatDependencyKey(r.Name, r.Version)
}

// IsRange reports whether the version is a bracketed version range.
func (r Reference) IsRange() bool {
	return strings.HasPrefix(r.Version, "[") && strings.HasSuffix(r.Version, "]")
}

// Constraint returns the semver constraint of a range reference.
// Range flags such as include_prerelease and loose are dropped.
func (r Reference) Constraint() (*semver.Constraints, error) {
	if !r.IsRange() {
		return nil, fmt.Errorf("'%s' is not a version range", r.String())
	}
	expr := strings.TrimSpace(r.Version[1 : len(r.Version)-1])
	var parts []string
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "include_prerelease" || part == "loose" {
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty version range in '%s'", r.String())
	}
	constraint, err := semver.NewConstraint(strings.Join(parts, ", "))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid version range in '%s'", r.String())
	}
	return constraint, nil
}

func FormatDependencyKey(name, version string) string {
	if version == "" {
		return name
	}
	return name + ":" + version
}

// ParseReferences parses a list of reference strings, keeping their order.
func ParseReferences(refs []string) ([]Reference, error) {
	result := make([]Reference, 0, len(refs))
	for _, raw := range refs {
		ref, err := ParseReference(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, ref)
	}
	return result, nil
}

// ReferenceStrings formats references back to strings.
func ReferenceStrings(refs []Reference) []string {
	result := make([]string, 0, len(refs))
	for _, ref := range refs {
		result = append(result, ref.String())
	}
	return result
}
