package profile

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

var osNames = map[string]string{
	"linux":   "Linux",
	"windows": "Windows",
	"darwin":  "Macos",
	"freebsd": "FreeBSD",
}

var archNames = map[string]string{
	"amd64": "x86_64",
	"386":   "x86",
	"arm64": "armv8",
	"arm":   "armv7",
}

// Detect builds the default profile of the running host. The compiler comes from CC when set.
func Detect() *Profile {
	return detect(runtime.GOOS, runtime.GOARCH, os.Getenv("CC"))
}

func detect(goos, goarch, cc string) *Profile {
	p := New(DefaultProfileName)
	p.Settings["os"] = mapName(osNames, goos)
	p.Settings["arch"] = mapName(archNames, goarch)
	p.Settings["build_type"] = "Release"
	compiler := detectCompiler(goos, cc)
	p.Settings["compiler"] = compiler
	switch compiler {
	case "gcc":
		p.Settings["compiler.libcxx"] = "libstdc++11"
	case "clang", "apple-clang":
		if goos == "linux" {
			p.Settings["compiler.libcxx"] = "libstdc++11"
		} else {
			p.Settings["compiler.libcxx"] = "libc++"
		}
	case "msvc":
		p.Settings["compiler.runtime"] = "dynamic"
	}
	return p
}

func mapName(names map[string]string, goName string) string {
	if name, ok := names[goName]; ok {
		return name
	}
	return goName
}

func detectCompiler(goos, cc string) string {
	if cc != "" {
		base := strings.ToLower(strings.TrimSuffix(filepath.Base(cc), ".exe"))
		switch {
		case strings.Contains(base, "clang"):
			if goos == "darwin" {
				return "apple-clang"
			}
			return "clang"
		case strings.Contains(base, "gcc"), strings.Contains(base, "g++"):
			return "gcc"
		case base == "cl":
			return "msvc"
		}
	}
	switch goos {
	case "darwin":
		return "apple-clang"
	case "windows":
		return "msvc"
	case "freebsd":
		return "clang"
	default:
		return "gcc"
	}
}
