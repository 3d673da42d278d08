package config

import (
	"strings"
	"testing"
)

func TestValidateAcceptsIdentifiers(t *testing.T) {
	ctx := Context{"Python35": String("/p"), "project_name": Null, "_x1": String("")}
	if err := Validate(ctx); err != nil {
		t.Fatalf("Validate returned unexpected error: %v", err)
	}
}

// TestValidateCollectsAllErrors verifies that every bad name is reported,
// not just the first one.
func TestValidateCollectsAllErrors(t *testing.T) {
	ctx := Context{"1abc": String("x"), "has-dash": String("y"), "ok": String("z")}
	err := Validate(ctx)
	if err == nil {
		t.Fatal("Validate returned nil for invalid names")
	}
	for _, want := range []string{"context.1abc", "context.has-dash"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error = %q, want it to contain %q", err.Error(), want)
		}
	}
	if strings.Contains(err.Error(), "context.ok") {
		t.Errorf("error = %q, valid name reported", err.Error())
	}
}

func TestDefaultEngines(t *testing.T) {
	win, err := DefaultEngines(PlatformWindows)
	if err != nil {
		t.Fatalf("DefaultEngines(win32): %v", err)
	}
	if v, _ := win.Lookup("Python27"); v != `c:\Python27` {
		t.Errorf("win32 Python27 = %q, want %q", v, `c:\Python27`)
	}

	linux, err := DefaultEngines(PlatformLinux)
	if err != nil {
		t.Fatalf("DefaultEngines(linux): %v", err)
	}
	if linux.Has("Python27") {
		t.Error("linux engines should not define Python27")
	}
	if v, _ := linux.Lookup("Anaconda3"); v != "/usr/local/miniconda3" {
		t.Errorf("linux Anaconda3 = %q, want %q", v, "/usr/local/miniconda3")
	}

	if _, err := DefaultEngines("plan9"); err == nil {
		t.Error("DefaultEngines(plan9) returned nil error")
	}
}

func TestNormalizePlatform(t *testing.T) {
	tests := map[string]string{
		"win":     PlatformWindows,
		"Windows": PlatformWindows,
		"win32":   PlatformWindows,
		"linux":   PlatformLinux,
		"darwin":  PlatformLinux,
		"":        CurrentPlatform(),
	}
	for in, want := range tests {
		got, err := NormalizePlatform(in)
		if err != nil {
			t.Errorf("NormalizePlatform(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("NormalizePlatform(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := NormalizePlatform("beos"); err == nil {
		t.Error("NormalizePlatform(beos) returned nil error")
	}
}
