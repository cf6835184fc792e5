package manifest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/geode-native/depmanifest/utils"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rule names reported in issues.
const (
	RuleSettingsAxes       = "settings-axes"
	RuleReferenceShape     = "reference-shape"
	RuleVersionConflict    = "version-conflict"
	RuleDuplicateReference = "duplicate-reference"
	RuleGeneratorsPresent  = "generators-present"
	RuleOptionsScope       = "options-scope"
	RuleSemver             = "semver"
	RuleKnownGenerator     = "known-generator"
)

var packageNamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_+.-]*$`)

type Issue struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Subject  string   `json:"subject,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	if i.Subject == "" {
		return fmt.Sprintf("%s [%s] %s", i.Severity, i.Rule, i.Message)
	}
	return fmt.Sprintf("%s [%s] %s: %s", i.Severity, i.Rule, i.Subject, i.Message)
}

type Report struct {
	Manifest string  `json:"manifest,omitempty"`
	Issues   []Issue `json:"issues"`
}

func (r *Report) add(rule string, severity Severity, subject, format string, args ...interface{}) {
	r.Issues = append(r.Issues, Issue{Rule: rule, Severity: severity, Subject: subject, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) filter(severity Severity) []Issue {
	var result []Issue
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			result = append(result, issue)
		}
	}
	return result
}

func (r *Report) Errors() []Issue {
	return r.filter(SeverityError)
}

func (r *Report) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

func (r *Report) Valid() bool {
	return len(r.Errors()) == 0
}

// Err joins all error-severity issues, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, issue := range r.Errors() {
		errs = append(errs, errors.New(issue.String()))
	}
	return errors.Join(errs...)
}

// Validator checks the structural rules every manifest must satisfy.
// KnownGenerators, when set, turns unknown generator names into warnings.
type Validator struct {
	KnownGenerators []string
}

// Validate runs all rules with the default validator.
func Validate(m *Manifest) *Report {
	return (&Validator{}).Validate(m)
}

func (v *Validator) Validate(m *Manifest) *Report {
	report := &Report{Manifest: m.Path}
	checkSettings(m, report)
	checkReferences(m.Requires, "requires", report)
	checkReferences(m.BuildRequires, "build_requires", report)
	checkConflicts(m, report)
	checkGenerators(m, v.KnownGenerators, report)
	checkOptionsScope(m, report)
	return report
}

func checkSettings(m *Manifest, report *Report) {
	if len(m.Settings) == 0 {
		report.add(RuleSettingsAxes, SeverityError, "settings", "no settings axes declared, expected %s", strings.Join(DefaultSettings, ", "))
		return
	}
	declared := utils.NewStringSet()
	for _, axis := range m.Settings {
		if declared.Contains(axis) {
			report.add(RuleSettingsAxes, SeverityError, axis, "settings axis declared more than once")
		}
		declared.Add(axis)
	}
	expected := utils.NewStringSet(DefaultSettings...)
	if missing := expected.Difference(declared); len(missing) > 0 {
		report.add(RuleSettingsAxes, SeverityError, "settings", "missing settings axes: %s", strings.Join(missing, ", "))
	}
	if extra := declared.Difference(expected); len(extra) > 0 {
		report.add(RuleSettingsAxes, SeverityError, "settings", "unexpected settings axes: %s", strings.Join(extra, ", "))
	}
}

func checkReferences(refs []Reference, list string, report *Report) {
	seen := make(map[string]Reference)
	for _, ref := range refs {
		subject := list + ": " + ref.String()
		if !packageNamePattern.MatchString(ref.Name) {
			report.add(RuleReferenceShape, SeverityError, subject, "invalid package name '%s'", ref.Name)
		}
		if strings.TrimSpace(ref.Version) == "" {
			report.add(RuleReferenceShape, SeverityError, subject, "missing version")
			continue
		}
		if previous, exists := seen[ref.Name]; exists {
			report.add(RuleDuplicateReference, SeverityError, subject, "'%s' is already required as %s", ref.Name, previous.String())
		}
		seen[ref.Name] = ref
		checkVersion(ref, subject, report)
	}
}

func checkVersion(ref Reference, subject string, report *Report) {
	if ref.IsRange() {
		if _, err := ref.Constraint(); err != nil {
			report.add(RuleSemver, SeverityError, subject, "%s", err.Error())
		}
		return
	}
	if _, err := semver.StrictNewVersion(ref.Version); err != nil {
		if _, looseErr := semver.NewVersion(ref.Version); looseErr != nil {
			report.add(RuleSemver, SeverityWarning, subject, "version '%s' is not a semantic version", ref.Version)
		}
	}
}

func checkConflicts(m *Manifest, report *Report) {
	for _, ref := range m.Requires {
		buildRef, exists := m.FindBuildRequire(ref.Name)
		if exists && buildRef.Version != ref.Version {
			report.add(RuleVersionConflict, SeverityError, ref.Name, "required as %s but build-required as %s", ref.String(), buildRef.String())
		}
	}
}

func checkGenerators(m *Manifest, known []string, report *Report) {
	if len(m.Requires) > 0 && len(m.Generators) == 0 {
		report.add(RuleGeneratorsPresent, SeverityError, "generators", "manifest has requires but declares no generator")
	}
	if len(known) == 0 {
		return
	}
	knownSet := utils.NewStringSet(known...)
	for _, generator := range m.Generators {
		if !knownSet.Contains(generator) {
			report.add(RuleKnownGenerator, SeverityWarning, generator, "unknown generator, supported generators are %s", strings.Join(known, ", "))
		}
	}
}

func checkOptionsScope(m *Manifest, report *Report) {
	for _, option := range m.DefaultOptions {
		pkg, _, ok := SplitOptionKey(option.Key)
		// Own options and wildcard patterns do not name a dependency.
		if !ok || pkg == "*" {
			continue
		}
		if _, required := m.FindRequire(pkg); !required {
			report.add(RuleOptionsScope, SeverityError, option.Key, "option targets '%s' which is not in requires", pkg)
		}
	}
}
