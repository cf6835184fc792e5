package resolve

import (
	"fmt"
	"strings"

	"github.com/geode-native/depmanifest/manifest"
)

// MissingPackageError is returned when no catalog recipe satisfies a reference.
type MissingPackageError struct {
	Ref         manifest.Reference
	RequestedBy string
	Available   []string
}

func (err *MissingPackageError) Error() string {
	msg := fmt.Sprintf("package '%s' not found in catalog", err.Ref.String())
	if err.RequestedBy != "" {
		msg += fmt.Sprintf(" (required by %s)", err.RequestedBy)
	}
	if len(err.Available) > 0 {
		msg += fmt.Sprintf(", available versions: %s", strings.Join(err.Available, ", "))
	}
	return msg
}

// ConflictError is returned when one context needs two versions of the same package.
type ConflictError struct {
	Name        string
	Context     Context
	Existing    string
	ExistingBy  string
	Requested   string
	RequestedBy string
}

func (err *ConflictError) Error() string {
	return fmt.Sprintf("version conflict for '%s' in %s context: %s required by %s, %s required by %s",
		err.Name, err.Context, err.Existing, err.ExistingBy, err.Requested, err.RequestedBy)
}

// OptionError is returned when an option addresses an option the package does not declare.
type OptionError struct {
	Package  string
	Option   string
	Declared []string
}

func (err *OptionError) Error() string {
	if len(err.Declared) == 0 {
		return fmt.Sprintf("package '%s' declares no options, got '%s'", err.Package, err.Option)
	}
	return fmt.Sprintf("package '%s' has no option '%s', declared options: %s", err.Package, err.Option, strings.Join(err.Declared, ", "))
}

// CycleError is returned when recipes require each other.
type CycleError struct {
	Path []string
}

func (err *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(err.Path, " -> ")
}
