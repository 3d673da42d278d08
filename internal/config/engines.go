package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform names accepted by DefaultEngines and the renderer.
const (
	PlatformWindows = "win32"
	PlatformLinux   = "linux"
)

// CurrentPlatform maps runtime.GOOS to a platform name.
func CurrentPlatform() string {
	if runtime.GOOS == "windows" {
		return PlatformWindows
	}
	return PlatformLinux
}

// NormalizePlatform accepts common spellings ("windows", "win", "Linux")
// and returns the canonical platform name.
func NormalizePlatform(p string) (string, error) {
	switch strings.ToLower(p) {
	case "":
		return CurrentPlatform(), nil
	case "win32", "win", "windows":
		return PlatformWindows, nil
	case "linux", "darwin", "unix":
		return PlatformLinux, nil
	}
	return "", fmt.Errorf("config: unknown platform %q", p)
}

// DefaultEngines returns the interpreter locations assumed on a build
// machine for the given platform. Callers are expected to override the
// entries that do not match their installation.
func DefaultEngines(platform string) (Context, error) {
	switch platform {
	case PlatformWindows:
		return FromStrings(map[string]string{
			"Anaconda2":   `d:\Anaconda`,
			"Anaconda3":   `d:\Anaconda3`,
			"Python37":    `c:\Python37_x64`,
			"Python36":    `c:\Python36_x64`,
			"Python35":    `c:\Python35_x64`,
			"Python34":    `c:\Python34_x64`,
			"Python27":    `c:\Python27`,
			"WinPython37": `c:\APythonENSAE\python37`,
			"WinPython36": `c:\APythonENSAE\python36`,
			"WinPython35": `c:\APythonENSAE\python35`,
		}), nil
	case PlatformLinux:
		return FromStrings(map[string]string{
			"Anaconda3": "/usr/local/miniconda3",
			"Python37":  "/usr/local/python37",
			"Python36":  "/usr/local/python36",
		}), nil
	}
	return nil, fmt.Errorf("config: unknown platform %q", platform)
}
