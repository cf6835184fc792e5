// Package cienv detects the CI system a build runs in and reads the VCS details it exposes.
//
// Only one provider is active at a time. Detection requires CI=true plus the
// provider's own variables.
package cienv

import "os"

const CIEnvVar = "CI"

// CIVcsInfo is the VCS information a CI system exposes through its environment.
type CIVcsInfo struct {
	Provider string
	Org      string
	Repo     string
	Url      string
	Revision string
	Branch   string
}

func (v CIVcsInfo) IsEmpty() bool {
	return v.Provider == "" && v.Org == "" && v.Repo == ""
}

type CIProvider interface {
	Name() string
	IsActive() bool
	GetVcsInfo() CIVcsInfo
}

// Registration happens in init(), the slice is read-only after that.
var providers []CIProvider

func RegisterProvider(p CIProvider) {
	providers = append(providers, p)
}

// GetActiveProvider returns the active CI provider, or nil outside a supported CI system.
func GetActiveProvider() CIProvider {
	if os.Getenv(CIEnvVar) != "true" {
		return nil
	}
	for _, p := range providers {
		if p.IsActive() {
			return p
		}
	}
	return nil
}

// GetCIVcsInfo returns the VCS information of the active provider, empty outside CI.
func GetCIVcsInfo() CIVcsInfo {
	provider := GetActiveProvider()
	if provider == nil {
		return CIVcsInfo{}
	}
	return provider.GetVcsInfo()
}

func IsRunningInCI() bool {
	return GetActiveProvider() != nil
}
