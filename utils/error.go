package utils

import (
	"fmt"
)

// ErrManifestNotFound is returned when no supported manifest file exists in a project directory.
type ErrManifestNotFound struct {
	Dir string
}

func (err *ErrManifestNotFound) Error() string {
	return fmt.Sprintf("no dependency manifest found in '%s'", err.Dir)
}

// ErrUnsupportedFormat is returned for a manifest file whose format cannot be detected.
type ErrUnsupportedFormat struct {
	Path string
}

func (err *ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("unsupported manifest format: '%s'", err.Path)
}
