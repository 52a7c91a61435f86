package manifest

import (
	"runtime"
	"strings"
)

// Platform identifies the host a manifest is resolved for.
type Platform struct {
	OS   string
	Arch string
}

// Current returns the platform of the running process.
func Current() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

func (p Platform) String() string {
	if p.Arch == "" {
		return p.OS
	}
	return p.OS + "-" + p.Arch
}

// Keys returns the manifest keys that match p, most specific first.
func (p Platform) Keys() []string {
	osName := normalizeOS(p.OS)
	if p.Arch == "" {
		return []string{osName}
	}
	return []string{osName + "-" + normalizeArch(p.Arch), osName}
}

var osAliases = map[string]string{
	"win":    "windows",
	"win32":  "windows",
	"win64":  "windows",
	"macos":  "darwin",
	"osx":    "darwin",
	"mac":    "darwin",
	"linux":  "linux",
	"darwin": "darwin",
}

var archAliases = map[string]string{
	"x64":     "amd64",
	"x86_64":  "amd64",
	"aarch64": "arm64",
	"x86":     "386",
	"ia32":    "386",
}

func normalizeOS(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := osAliases[name]; ok {
		return alias
	}
	return name
}

func normalizeArch(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := archAliases[name]; ok {
		return alias
	}
	return name
}

// normalizeKey canonicalizes a manifest os key such as "win32" or "macos-x64".
func normalizeKey(key string) string {
	osPart, archPart, found := strings.Cut(strings.TrimSpace(key), "-")
	if !found {
		return normalizeOS(osPart)
	}
	return normalizeOS(osPart) + "-" + normalizeArch(archPart)
}
