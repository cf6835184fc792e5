package manifest

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed manifest-schema.json
var manifestSchema []byte

// Schema returns the JSON schema of the canonical manifest document.
func Schema() []byte {
	return manifestSchema
}

// ToJSON renders the canonical JSON document of m. Empty lists are encoded as [] rather than null.
func ToJSON(m *Manifest) ([]byte, error) {
	canonical := *m
	if canonical.Settings == nil {
		canonical.Settings = []string{}
	}
	if canonical.Requires == nil {
		canonical.Requires = []Reference{}
	}
	if canonical.BuildRequires == nil {
		canonical.BuildRequires = []Reference{}
	}
	if canonical.Generators == nil {
		canonical.Generators = []string{}
	}
	return json.MarshalIndent(&canonical, "", "  ")
}

// ValidateSchema checks a JSON document against the manifest schema.
func ValidateSchema(document []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(manifestSchema), gojsonschema.NewBytesLoader(document))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	var errs []error
	for _, resultError := range result.Errors() {
		errs = append(errs, fmt.Errorf("%s", resultError.String()))
	}
	return errors.Join(errs...)
}
